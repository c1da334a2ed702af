package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresSubSystemsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSubSystemsRepo(db *sql.DB, logger *zap.Logger) *PostgresSubSystemsRepo {
	return &PostgresSubSystemsRepo{db: db, logger: logger}
}

func (r *PostgresSubSystemsRepo) Create(ctx context.Context, s *domain.SubSystem) (int64, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumbleweed WHERE id = $1)`, s.TumbleweedID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, s.TumbleweedID)
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO subsystem (tumbleweed_id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.TumbleweedID, s.Name, s.Description, s.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert subsystem: %w", err)
	}
	return id, nil
}

func (r *PostgresSubSystemsRepo) Get(ctx context.Context, id int64) (*domain.SubSystem, error) {
	var s domain.SubSystem
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tumbleweed_id, name, description, created_at FROM subsystem WHERE id = $1
	`, id).Scan(&s.ID, &s.TumbleweedID, &s.Name, &s.Description, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PostgresSubSystemsRepo) ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.SubSystem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tumbleweed_id, name, description, created_at
		FROM subsystem WHERE tumbleweed_id = $1 ORDER BY id
	`, tumbleweedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.SubSystem{}
	for rows.Next() {
		var s domain.SubSystem
		if err := rows.Scan(&s.ID, &s.TumbleweedID, &s.Name, &s.Description, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *PostgresSubSystemsRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM subsystem WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, id)
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM datasource WHERE subsystem_id = $1`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: subSystem %d still owns data sources", domain.ErrHasDependents, id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM subsystem WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
