package domain

import (
	"database/sql"
	"encoding/base64"
	"strconv"
	"time"
)

// DataPoint is one received (possibly partial) telemetry sample. It is a
// tagged union over the six payload types: exactly one payload field is
// populated, selected by DType, and each variant is stored in its own
// table. Byte and Image payloads live on disk; Path holds the file
// location and Bytes carries the decoded content in memory for transport.
type DataPoint struct {
	ID             int64
	DType          DType
	DataSourceID   int64
	RunID          int64
	TumblebaseIDs  []int64 // relays that delivered (parts of) this sample
	ReceivingStart time.Time
	ReceivingDone  sql.NullTime
	Packets        int
	PacketsReceived int
	MessageID      int64
	Size           sql.NullInt64

	IntValue    sql.NullInt64
	LongValue   sql.NullInt64
	FloatValue  sql.NullFloat64
	StringValue sql.NullString
	Path        sql.NullString // bytedata/imagedata payload file
	ImageFormat sql.NullString
	Bytes       []byte
}

// Complete reports whether all expected packets have arrived.
func (p *DataPoint) Complete() bool { return p.ReceivingDone.Valid }

// ToJSON serializes for transport. Long payloads are rendered as strings
// because destination clients cannot represent 64-bit integers natively;
// Byte and Image payloads are base64-encoded.
func (p *DataPoint) ToJSON() map[string]any {
	m := map[string]any{
		"id":               p.ID,
		"dtype":            string(p.DType),
		"data_source_id":   p.DataSourceID,
		"run_id":           p.RunID,
		"receiving_start":  p.ReceivingStart.Format(time.RFC3339),
		"packets":          p.Packets,
		"packets_received": p.PacketsReceived,
		"message_id":       p.MessageID,
	}
	if p.ReceivingDone.Valid {
		m["receiving_done"] = p.ReceivingDone.Time.Format(time.RFC3339)
	} else {
		m["receiving_done"] = nil
	}
	if p.Size.Valid {
		m["size"] = p.Size.Int64
	}
	if len(p.TumblebaseIDs) > 0 {
		m["tumblebase_ids"] = p.TumblebaseIDs
	}
	switch p.DType {
	case DTypeInt:
		if p.IntValue.Valid {
			m["data"] = p.IntValue.Int64
		}
	case DTypeLong:
		if p.LongValue.Valid {
			m["data"] = strconv.FormatInt(p.LongValue.Int64, 10)
		}
	case DTypeFloat:
		if p.FloatValue.Valid {
			m["data"] = p.FloatValue.Float64
		}
	case DTypeString:
		if p.StringValue.Valid {
			m["data"] = p.StringValue.String
		}
	case DTypeByte:
		if p.Bytes != nil {
			m["data"] = base64.StdEncoding.EncodeToString(p.Bytes)
		}
	case DTypeImage:
		if p.Bytes != nil {
			m["data"] = base64.StdEncoding.EncodeToString(p.Bytes)
		}
		if p.ImageFormat.Valid {
			m["image_format"] = p.ImageFormat.String
		}
	}
	return m
}
