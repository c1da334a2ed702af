package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresCommandTypesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresCommandTypesRepo(db *sql.DB, logger *zap.Logger) *PostgresCommandTypesRepo {
	return &PostgresCommandTypesRepo{db: db, logger: logger}
}

func (r *PostgresCommandTypesRepo) Create(ctx context.Context, c *domain.CommandType) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO commandtype (type, description, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, c.Type, c.Description, c.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert commandtype: %w", err)
	}
	return id, nil
}

func (r *PostgresCommandTypesRepo) Get(ctx context.Context, id int64) (*domain.CommandType, error) {
	var c domain.CommandType
	err := r.db.QueryRowContext(ctx, `
		SELECT id, type, description, created_at FROM commandtype WHERE id = $1
	`, id).Scan(&c.ID, &c.Type, &c.Description, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: commandType %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCommandTypesRepo) List(ctx context.Context) ([]*domain.CommandType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, description, created_at FROM commandtype ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.CommandType{}
	for rows.Next() {
		var c domain.CommandType
		if err := rows.Scan(&c.ID, &c.Type, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Delete removes the type together with every command of that type. This
// is deliberately unconditional: retiring a command type retires its
// history.
func (r *PostgresCommandTypesRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM commandtype WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: commandType %d", domain.ErrNotFound, id)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tumblebase_command WHERE command_id IN (SELECT id FROM command WHERE command_type_id = $1)
	`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM command WHERE command_type_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM commandtype WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
