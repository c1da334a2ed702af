package domain

import (
	"database/sql"
	"time"
)

// Tumblebase is a relay station that forwards device telemetry to the
// service and delivers commands back to devices. The address is unique;
// host/port/command_route describe the relay's command endpoint and may be
// unset for relays that were auto-created on first ingestion.
type Tumblebase struct {
	ID           int64          `db:"id"`
	Address      string         `db:"address"` // unique
	Name         sql.NullString `db:"name"`
	Host         sql.NullString `db:"host"`
	Port         sql.NullInt64  `db:"port"`
	CommandRoute sql.NullString `db:"command_route"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (b *Tumblebase) ToJSON() map[string]any {
	m := map[string]any{
		"id":         b.ID,
		"address":    b.Address,
		"created_at": b.CreatedAt.Format(time.RFC3339),
	}
	if b.Name.Valid {
		m["name"] = b.Name.String
	}
	if b.Host.Valid {
		m["host"] = b.Host.String
	}
	if b.Port.Valid {
		m["port"] = b.Port.Int64
	}
	if b.CommandRoute.Valid {
		m["command_route"] = b.CommandRoute.String
	}
	return m
}
