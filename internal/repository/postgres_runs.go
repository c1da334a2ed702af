package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresRunsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresRunsRepo(db *sql.DB, logger *zap.Logger) *PostgresRunsRepo {
	return &PostgresRunsRepo{db: db, logger: logger}
}

const runCols = `id, tumbleweed_id, name, description, created_at, ended_at`

func scanRun(row interface{ Scan(...any) error }) (*domain.Run, error) {
	var r domain.Run
	err := row.Scan(&r.ID, &r.TumbleweedID, &r.Name, &r.Description, &r.CreatedAt, &r.EndedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *PostgresRunsRepo) Create(ctx context.Context, run *domain.Run) (int64, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumbleweed WHERE id = $1)`, run.TumbleweedID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotFound, run.TumbleweedID)
	}
	var id int64
	// uq_run_active (partial unique index) backstops the single-active-run
	// invariant under concurrent starts.
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO run (tumbleweed_id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, run.TumbleweedID, run.Name, run.Description, run.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

func (r *PostgresRunsRepo) Get(ctx context.Context, id int64) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runCols+` FROM run WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
	}
	return run, err
}

func (r *PostgresRunsRepo) ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runCols+` FROM run WHERE tumbleweed_id = $1 ORDER BY id`, tumbleweedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *PostgresRunsRepo) GetActive(ctx context.Context, tumbleweedID int64) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `
		SELECT `+runCols+` FROM run
		WHERE tumbleweed_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, tumbleweedID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if run.EndedAt.Valid {
		return nil, nil
	}
	return run, nil
}

func (r *PostgresRunsRepo) End(ctx context.Context, id int64, endedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE run SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL
	`, id, endedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM run WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
		}
		return fmt.Errorf("%w: run %d already ended", domain.ErrNotActive, id)
	}
	return nil
}

// Delete cascades the run's datapoints and commands in one transaction.
// The refusal to delete an active run is the caller's business rule.
func (r *PostgresRunsRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM run WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: run %d", domain.ErrNotFound, id)
	}

	paths, err := deleteDataPointsOfRun(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM tumblebase_command WHERE command_id IN (SELECT id FROM command WHERE run_id = $1)
	`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM command WHERE run_id = $1`, id); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run WHERE id = $1`, id); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}

func deleteDataPointsOfRun(ctx context.Context, tx *sql.Tx, runID int64) ([]string, error) {
	var paths []string
	for _, d := range allDTypes {
		table, _ := dataTable(d)
		link, _ := linkTable(d)

		if d == domain.DTypeByte || d == domain.DTypeImage {
			rows, err := tx.QueryContext(ctx, fmt.Sprintf(
				`SELECT data FROM %s WHERE run_id = $1 AND data IS NOT NULL`, table), runID)
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
			DELETE FROM %s WHERE %s_id IN (SELECT id FROM %s WHERE run_id = $1)
		`, link, table, table), runID); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE run_id = $1`, table), runID); err != nil {
			return nil, err
		}
	}
	return paths, nil
}
