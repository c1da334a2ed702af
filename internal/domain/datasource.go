package domain

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DType tags the payload type of a data source and fixes which of the six
// variant tables its datapoints live in. The tag is immutable after the
// data source is created.
type DType string

const (
	DTypeInt    DType = "I"
	DTypeLong   DType = "L"
	DTypeFloat  DType = "F"
	DTypeString DType = "S"
	DTypeByte   DType = "B"
	DTypeImage  DType = "M"
)

// ParseDType accepts either the single-letter wire code or the spelled-out
// name, case-insensitively.
func ParseDType(s string) (DType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I", "INT":
		return DTypeInt, nil
	case "L", "LONG":
		return DTypeLong, nil
	case "F", "FLOAT":
		return DTypeFloat, nil
	case "S", "STRING":
		return DTypeString, nil
	case "B", "BYTE":
		return DTypeByte, nil
	case "M", "IMAGE":
		return DTypeImage, nil
	}
	return "", fmt.Errorf("%w: unknown dtype %q", ErrInvalidFormat, s)
}

func (d DType) Name() string {
	switch d {
	case DTypeInt:
		return "Int"
	case DTypeLong:
		return "Long"
	case DTypeFloat:
		return "Float"
	case DTypeString:
		return "String"
	case DTypeByte:
		return "Byte"
	case DTypeImage:
		return "Image"
	}
	return string(d)
}

// ImageFormat values accepted for imagedata payloads.
var ImageFormats = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"tiff": true, "bmp": true, "bat": true, "raw": true,
}

// DataSource is a named, typed telemetry channel on a tumbleweed. The
// tumbleweed reference is denormalized from the owning subsystem so the
// ingestion path can resolve (device, short_key) with one lookup.
// short_key is unique per tumbleweed, not globally.
type DataSource struct {
	ID           int64          `db:"id"`
	SubSystemID  int64          `db:"subsystem_id"`
	TumbleweedID int64          `db:"tumbleweed_id"`
	ShortKey     string         `db:"short_key"` // NOT NULL
	DType        DType          `db:"dtype"`
	Name         string         `db:"name"` // NOT NULL
	Type         sql.NullString `db:"type"`
	Description  sql.NullString `db:"description"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (d *DataSource) ToJSON() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"subsystem_id":  d.SubSystemID,
		"tumbleweed_id": d.TumbleweedID,
		"short_key":     d.ShortKey,
		"dtype":         string(d.DType),
		"name":          d.Name,
		"created_at":    d.CreatedAt.Format(time.RFC3339),
	}
	if d.Type.Valid {
		m["type"] = d.Type.String
	}
	if d.Description.Valid {
		m["description"] = d.Description.String
	}
	return m
}
