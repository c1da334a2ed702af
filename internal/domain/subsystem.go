package domain

import (
	"database/sql"
	"time"
)

// SubSystem groups the data sources of one tumbleweed (e.g. "power",
// "sensors"). It must be emptied of data sources before it can be deleted.
type SubSystem struct {
	ID           int64          `db:"id"`
	TumbleweedID int64          `db:"tumbleweed_id"`
	Name         string         `db:"name"` // NOT NULL
	Description  sql.NullString `db:"description"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (s *SubSystem) ToJSON() map[string]any {
	m := map[string]any{
		"id":            s.ID,
		"tumbleweed_id": s.TumbleweedID,
		"name":          s.Name,
		"created_at":    s.CreatedAt.Format(time.RFC3339),
	}
	if s.Description.Valid {
		m["description"] = s.Description.String
	}
	return m
}
