package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresTumbleweedsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresTumbleweedsRepo(db *sql.DB, logger *zap.Logger) *PostgresTumbleweedsRepo {
	return &PostgresTumbleweedsRepo{db: db, logger: logger}
}

func (r *PostgresTumbleweedsRepo) Create(ctx context.Context, t *domain.Tumbleweed) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tumbleweed (address, name, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, t.Address, t.Name, t.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tumbleweed: %w", err)
	}
	return id, nil
}

func (r *PostgresTumbleweedsRepo) Get(ctx context.Context, id int64) (*domain.Tumbleweed, error) {
	var t domain.Tumbleweed
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, name, created_at FROM tumbleweed WHERE id = $1
	`, id).Scan(&t.ID, &t.Address, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTumbleweedsRepo) List(ctx context.Context) ([]*domain.Tumbleweed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, name, created_at FROM tumbleweed ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Tumbleweed{}
	for rows.Next() {
		var t domain.Tumbleweed
		if err := rows.Scan(&t.ID, &t.Address, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *PostgresTumbleweedsRepo) GetByAddress(ctx context.Context, address string) ([]*domain.Tumbleweed, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address, name, created_at FROM tumbleweed WHERE address = $1 ORDER BY id
	`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Tumbleweed{}
	for rows.Next() {
		var t domain.Tumbleweed
		if err := rows.Scan(&t.ID, &t.Address, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *PostgresTumbleweedsRepo) LinkTumblebase(ctx context.Context, tumbleweedID, tumblebaseID int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumbleweed WHERE id = $1)`, tumbleweedID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, tumbleweedID)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumblebase WHERE id = $1)`, tumblebaseID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, tumblebaseID)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tumbleweed_tumblebase (tumbleweed_id, tumblebase_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, tumbleweedID, tumblebaseID)
	return err
}

// Delete refuses while subsystems or data sources exist, then removes all
// runs with their datapoints and commands, the tumbleweed's own commands,
// and its tumblebase associations, in one transaction. Blob paths of
// removed byte/image datapoints are collected for file cleanup after
// commit.
func (r *PostgresTumbleweedsRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumbleweed WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, id)
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subsystem WHERE tumbleweed_id = $1`, id).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: tumbleweed %d still owns subsystems", domain.ErrHasDependents, id)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM datasource WHERE tumbleweed_id = $1`, id).Scan(&n); err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: tumbleweed %d still owns data sources", domain.ErrHasDependents, id)
	}

	paths, err := deleteDataPointsWhereRunOf(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// commands attached to the tumbleweed's runs, then direct commands
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tumblebase_command WHERE command_id IN (
			SELECT c.id FROM command c JOIN run r ON c.run_id = r.id WHERE r.tumbleweed_id = $1
		)
	`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM command WHERE run_id IN (SELECT id FROM run WHERE tumbleweed_id = $1)
	`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tumblebase_command WHERE command_id IN (
			SELECT id FROM command WHERE tumbleweed_id = $1
		)
	`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM command WHERE tumbleweed_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run WHERE tumbleweed_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tumbleweed_tumblebase WHERE tumbleweed_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tumbleweed WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

// deleteDataPointsWhereRunOf removes every datapoint belonging to any run
// of the tumbleweed, clearing link rows first, and returns blob paths of
// byte/image payloads.
func deleteDataPointsWhereRunOf(ctx context.Context, tx *sql.Tx, tumbleweedID int64) ([]string, error) {
	var paths []string
	for _, d := range allDTypes {
		table, _ := dataTable(d)
		link, _ := linkTable(d)

		if d == domain.DTypeByte || d == domain.DTypeImage {
			rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
				SELECT t.data FROM %s t JOIN run r ON t.run_id = r.id
				WHERE r.tumbleweed_id = $1 AND t.data IS NOT NULL
			`, table), tumbleweedID)
			if err != nil {
				return nil, err
			}
			for rows.Next() {
				var p string
				if err := rows.Scan(&p); err != nil {
					rows.Close()
					return nil, err
				}
				paths = append(paths, p)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}

		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE %s_id IN (
				SELECT t.id FROM %s t JOIN run r ON t.run_id = r.id WHERE r.tumbleweed_id = $1
			)
		`, link, table, table), tumbleweedID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE run_id IN (SELECT id FROM run WHERE tumbleweed_id = $1)
		`, table), tumbleweedID); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
