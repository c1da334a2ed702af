package domain

import (
	"database/sql"
	"time"
)

// Run is a bounded observation session scoping a batch of telemetry and
// commands to one tumbleweed. A run with a null ended_at is active; once
// ended_at is set the run can never be reactivated.
type Run struct {
	ID           int64          `db:"id"`
	TumbleweedID int64          `db:"tumbleweed_id"`
	Name         sql.NullString `db:"name"`
	Description  sql.NullString `db:"description"`
	CreatedAt    time.Time      `db:"created_at"`
	EndedAt      sql.NullTime   `db:"ended_at"`
}

// Active reports whether the run is still open.
func (r *Run) Active() bool { return !r.EndedAt.Valid }

func (r *Run) ToJSON() map[string]any {
	m := map[string]any{
		"id":            r.ID,
		"tumbleweed_id": r.TumbleweedID,
		"created_at":    r.CreatedAt.Format(time.RFC3339),
	}
	if r.Name.Valid {
		m["name"] = r.Name.String
	}
	if r.Description.Valid {
		m["description"] = r.Description.String
	}
	if r.EndedAt.Valid {
		m["ended_at"] = r.EndedAt.Time.Format(time.RFC3339)
	} else {
		m["ended_at"] = nil
	}
	return m
}
