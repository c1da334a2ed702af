package domain

import (
	"database/sql"
	"time"
)

// Tumbleweed is a field device that produces telemetry and receives
// commands. Its address is not unique: several devices may share one radio
// address, in which case at most one of them may hold an active run.
type Tumbleweed struct {
	ID        int64          `db:"id"`
	Address   string         `db:"address"` // NOT NULL, not unique
	Name      sql.NullString `db:"name"`
	CreatedAt time.Time      `db:"created_at"`
}

func (t *Tumbleweed) ToJSON() map[string]any {
	m := map[string]any{
		"id":         t.ID,
		"address":    t.Address,
		"created_at": t.CreatedAt.Format(time.RFC3339),
	}
	if t.Name.Valid {
		m["name"] = t.Name.String
	}
	return m
}
