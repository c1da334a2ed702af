package repository

import (
	"context"
	"database/sql"
	"fmt"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresDataSourcesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDataSourcesRepo(db *sql.DB, logger *zap.Logger) *PostgresDataSourcesRepo {
	return &PostgresDataSourcesRepo{db: db, logger: logger}
}

const dataSourceCols = `id, subsystem_id, tumbleweed_id, short_key, dtype, name, type, description, created_at`

func scanDataSource(row interface{ Scan(...any) error }) (*domain.DataSource, error) {
	var (
		d     domain.DataSource
		dtype string
	)
	err := row.Scan(&d.ID, &d.SubSystemID, &d.TumbleweedID, &d.ShortKey, &dtype,
		&d.Name, &d.Type, &d.Description, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.DType = domain.DType(dtype)
	return &d, nil
}

func (r *PostgresDataSourcesRepo) Create(ctx context.Context, d *domain.DataSource) (int64, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM subsystem WHERE id = $1)`, d.SubSystemID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%w: subSystem %d", domain.ErrNotFound, d.SubSystemID)
	}
	if err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM datasource WHERE tumbleweed_id = $1 AND short_key = $2)
	`, d.TumbleweedID, d.ShortKey).Scan(&exists); err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: short_key %q already used on tumbleweed %d",
			domain.ErrInvalidFormat, d.ShortKey, d.TumbleweedID)
	}
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO datasource (subsystem_id, tumbleweed_id, short_key, dtype, name, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, d.SubSystemID, d.TumbleweedID, d.ShortKey, string(d.DType), d.Name, d.Type, d.Description, d.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert datasource: %w", err)
	}
	return id, nil
}

func (r *PostgresDataSourcesRepo) Get(ctx context.Context, id int64) (*domain.DataSource, error) {
	d, err := scanDataSource(r.db.QueryRowContext(ctx,
		`SELECT `+dataSourceCols+` FROM datasource WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: dataSource %d", domain.ErrNotFound, id)
	}
	return d, err
}

func (r *PostgresDataSourcesRepo) ListBySubSystem(ctx context.Context, subSystemID int64) ([]*domain.DataSource, error) {
	return r.list(ctx, `SELECT `+dataSourceCols+` FROM datasource WHERE subsystem_id = $1 ORDER BY id`, subSystemID)
}

func (r *PostgresDataSourcesRepo) ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.DataSource, error) {
	return r.list(ctx, `SELECT `+dataSourceCols+` FROM datasource WHERE tumbleweed_id = $1 ORDER BY id`, tumbleweedID)
}

func (r *PostgresDataSourcesRepo) list(ctx context.Context, q string, arg any) ([]*domain.DataSource, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.DataSource{}
	for rows.Next() {
		d, err := scanDataSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresDataSourcesRepo) GetByTumbleweedAndShortKey(ctx context.Context, tumbleweedID int64, shortKey string) (*domain.DataSource, error) {
	d, err := scanDataSource(r.db.QueryRowContext(ctx, `
		SELECT `+dataSourceCols+` FROM datasource WHERE tumbleweed_id = $1 AND short_key = $2
	`, tumbleweedID, shortKey))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: dataSource with short_key %q on tumbleweed %d",
			domain.ErrNotFound, shortKey, tumbleweedID)
	}
	return d, err
}

// Delete cascades the data source's datapoints across all six variant
// tables. Unlike subsystems, a data source clears its own children.
func (r *PostgresDataSourcesRepo) Delete(ctx context.Context, id int64) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM datasource WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: dataSource %d", domain.ErrNotFound, id)
	}

	var paths []string
	for _, d := range allDTypes {
		table, _ := dataTable(d)
		link, _ := linkTable(d)

		if d == domain.DTypeByte || d == domain.DTypeImage {
			rows, err := tx.QueryContext(ctx, fmt.Sprintf(
				`SELECT data FROM %s WHERE data_source_id = $1 AND data IS NOT NULL`, table), id)
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
			DELETE FROM %s WHERE %s_id IN (SELECT id FROM %s WHERE data_source_id = $1)
		`, link, table, table), id); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE data_source_id = $1`, table), id); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM datasource WHERE id = $1`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}
