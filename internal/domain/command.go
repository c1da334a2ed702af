package domain

import (
	"database/sql"
	"time"
)

// CommandType categorizes commands ("reboot", "set-interval", ...).
type CommandType struct {
	ID          int64          `db:"id"`
	Type        string         `db:"type"` // NOT NULL
	Description sql.NullString `db:"description"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (c *CommandType) ToJSON() map[string]any {
	m := map[string]any{
		"id":         c.ID,
		"type":       c.Type,
		"created_at": c.CreatedAt.Format(time.RFC3339),
	}
	if c.Description.Valid {
		m["description"] = c.Description.String
	}
	return m
}

// Command is one instruction sent to a tumbleweed through a tumblebase.
// The command row is persisted before transmission; Transmitted records
// whether the relay accepted it, and the response fields are filled in
// later through the update path when the device answers.
type Command struct {
	ID                int64          `db:"id"`
	CommandTypeID     int64          `db:"command_type_id"`
	SenderBaseID      int64          `db:"sender_base_id"`
	TumbleweedID      int64          `db:"tumbleweed_id"`
	RunID             int64          `db:"run_id"`
	ReceivedFromBases []int64        // relays the response came back through
	Args              sql.NullString `db:"args"`
	Transmitted       bool           `db:"transmitted"`
	Response          sql.NullString `db:"response"`
	ReceivedResponseAt sql.NullTime  `db:"received_response_at"`
	ResponseMessageID sql.NullInt64  `db:"response_message_id"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (c *Command) ToJSON() map[string]any {
	m := map[string]any{
		"id":              c.ID,
		"command_type_id": c.CommandTypeID,
		"sender_base_id":  c.SenderBaseID,
		"tumbleweed_id":   c.TumbleweedID,
		"run_id":          c.RunID,
		"transmitted":     c.Transmitted,
		"created_at":      c.CreatedAt.Format(time.RFC3339),
	}
	if c.Args.Valid {
		m["args"] = c.Args.String
	}
	if c.Response.Valid {
		m["response"] = c.Response.String
	}
	if c.ReceivedResponseAt.Valid {
		m["received_response_at"] = c.ReceivedResponseAt.Time.Format(time.RFC3339)
	}
	if c.ResponseMessageID.Valid {
		m["response_message_id"] = c.ResponseMessageID.Int64
	}
	if len(c.ReceivedFromBases) > 0 {
		m["received_from_base_ids"] = c.ReceivedFromBases
	}
	return m
}
