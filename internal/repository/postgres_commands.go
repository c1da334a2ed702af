package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresCommandsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresCommandsRepo(db *sql.DB, logger *zap.Logger) *PostgresCommandsRepo {
	return &PostgresCommandsRepo{db: db, logger: logger}
}

const commandCols = `id, command_type_id, sender_base_id, tumbleweed_id, run_id, args,
	transmitted, response, received_response_at, response_message_id, created_at`

func scanCommand(row interface{ Scan(...any) error }) (*domain.Command, error) {
	var c domain.Command
	err := row.Scan(&c.ID, &c.CommandTypeID, &c.SenderBaseID, &c.TumbleweedID, &c.RunID,
		&c.Args, &c.Transmitted, &c.Response, &c.ReceivedResponseAt, &c.ResponseMessageID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCommandsRepo) Create(ctx context.Context, c *domain.Command) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO command (command_type_id, sender_base_id, tumbleweed_id, run_id, args, transmitted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, c.CommandTypeID, c.SenderBaseID, c.TumbleweedID, c.RunID, c.Args, c.Transmitted, c.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert command: %w", err)
	}
	return id, nil
}

func (r *PostgresCommandsRepo) Get(ctx context.Context, id int64) (*domain.Command, error) {
	c, err := scanCommand(r.db.QueryRowContext(ctx,
		`SELECT `+commandCols+` FROM command WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadReceivedBases(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCommandsRepo) loadReceivedBases(ctx context.Context, c *domain.Command) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tumblebase_id FROM tumblebase_command WHERE command_id = $1 ORDER BY tumblebase_id`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var baseID int64
		if err := rows.Scan(&baseID); err != nil {
			return err
		}
		c.ReceivedFromBases = append(c.ReceivedFromBases, baseID)
	}
	return rows.Err()
}

func (r *PostgresCommandsRepo) SetTransmitted(ctx context.Context, id int64, transmitted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE command SET transmitted = $2 WHERE id = $1`, id, transmitted)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresCommandsRepo) UpdateResponse(ctx context.Context, id int64, response string, responseMessageID *int64, receivedAt time.Time) error {
	var msgID sql.NullInt64
	if responseMessageID != nil {
		msgID = sql.NullInt64{Int64: *responseMessageID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE command SET response = $2, response_message_id = $3, received_response_at = $4
		WHERE id = $1
	`, id, response, msgID, receivedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: command %d", domain.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresCommandsRepo) ListByTumbleweedAndRun(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	return r.list(ctx, `
		SELECT `+commandCols+` FROM command
		WHERE tumbleweed_id = $1 AND run_id = $2 ORDER BY id
	`, tumbleweedID, runID)
}

func (r *PostgresCommandsRepo) ListUnanswered(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error) {
	return r.list(ctx, `
		SELECT `+commandCols+` FROM command
		WHERE tumbleweed_id = $1 AND run_id = $2
		  AND response IS NULL AND received_response_at IS NULL AND response_message_id IS NULL
		ORDER BY id
	`, tumbleweedID, runID)
}

func (r *PostgresCommandsRepo) list(ctx context.Context, q string, args ...any) ([]*domain.Command, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Command{}
	ids := []int64{}
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	// batch the received-from associations instead of one query per command
	byID := make(map[int64]*domain.Command, len(out))
	for _, c := range out {
		byID[c.ID] = c
	}
	linkRows, err := r.db.QueryContext(ctx, `
		SELECT command_id, tumblebase_id FROM tumblebase_command
		WHERE command_id = ANY($1) ORDER BY tumblebase_id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var cmdID, baseID int64
		if err := linkRows.Scan(&cmdID, &baseID); err != nil {
			return nil, err
		}
		if c, ok := byID[cmdID]; ok {
			c.ReceivedFromBases = append(c.ReceivedFromBases, baseID)
		}
	}
	return out, linkRows.Err()
}
