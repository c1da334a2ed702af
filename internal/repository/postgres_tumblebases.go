package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

type PostgresTumblebasesRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresTumblebasesRepo(db *sql.DB, logger *zap.Logger) *PostgresTumblebasesRepo {
	return &PostgresTumblebasesRepo{db: db, logger: logger}
}

const tumblebaseCols = `id, address, name, host, port, command_route, created_at`

func scanTumblebase(row interface{ Scan(...any) error }) (*domain.Tumblebase, error) {
	var b domain.Tumblebase
	err := row.Scan(&b.ID, &b.Address, &b.Name, &b.Host, &b.Port, &b.CommandRoute, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PostgresTumblebasesRepo) Create(ctx context.Context, b *domain.Tumblebase) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tumblebase (address, name, host, port, command_route, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, b.Address, b.Name, b.Host, b.Port, b.CommandRoute, b.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert tumblebase: %w", err)
	}
	return id, nil
}

func (r *PostgresTumblebasesRepo) Get(ctx context.Context, id int64) (*domain.Tumblebase, error) {
	b, err := scanTumblebase(r.db.QueryRowContext(ctx,
		`SELECT `+tumblebaseCols+` FROM tumblebase WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, id)
	}
	return b, err
}

func (r *PostgresTumblebasesRepo) List(ctx context.Context) ([]*domain.Tumblebase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tumblebaseCols+` FROM tumblebase ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Tumblebase{}
	for rows.Next() {
		b, err := scanTumblebase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresTumblebasesRepo) GetByAddress(ctx context.Context, address string) (*domain.Tumblebase, error) {
	b, err := scanTumblebase(r.db.QueryRowContext(ctx,
		`SELECT `+tumblebaseCols+` FROM tumblebase WHERE address = $1`, address))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tumblebase address %q", domain.ErrNotFound, address)
	}
	return b, err
}

// GetOrCreateByAddress resolves or creates the relay in a single upsert so
// concurrent ingestion for the same unseen address cannot create duplicate
// rows.
func (r *PostgresTumblebasesRepo) GetOrCreateByAddress(ctx context.Context, address, host string) (*domain.Tumblebase, bool, error) {
	var (
		b       domain.Tumblebase
		created bool
	)
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tumblebase (address, name, host, created_at)
		VALUES ($1, 'Default', $2, $3)
		ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, address, name, host, port, command_route, created_at, (xmax = 0)
	`, address, nullString(host), time.Now().UTC()).Scan(
		&b.ID, &b.Address, &b.Name, &b.Host, &b.Port, &b.CommandRoute, &b.CreatedAt, &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve tumblebase %q: %w", address, err)
	}
	return &b, created, nil
}

// Delete refuses while any sent command, received-command association or
// typed-datapoint association references the relay, then clears its
// tumbleweed links.
func (r *PostgresTumblebasesRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tumblebase WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: tumblebase %d", domain.ErrNotFound, id)
	}

	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM command WHERE sender_base_id = $1`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: tumblebase %d has sent commands", domain.ErrHasDependents, id)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tumblebase_command WHERE tumblebase_id = $1`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: tumblebase %d has received commands", domain.ErrHasDependents, id)
	}
	for _, d := range allDTypes {
		link, _ := linkTable(d)
		if err := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE tumblebase_id = $1`, link), id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: tumblebase %d has relayed datapoints", domain.ErrHasDependents, id)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tumbleweed_tumblebase WHERE tumblebase_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM tumblebase WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
