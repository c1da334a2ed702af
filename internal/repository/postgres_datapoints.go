package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tumbleweb-data/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresDataPointsRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresDataPointsRepo(db *sql.DB, logger *zap.Logger) *PostgresDataPointsRepo {
	return &PostgresDataPointsRepo{db: db, logger: logger}
}

const dataPointCommonCols = `id, data_source_id, run_id, receiving_start, receiving_done,
	packets, packets_received, message_id, size, data`

// payload returns the value bound to the variant table's data column.
// Byte and image payloads store the blob file path, not the content.
func payload(p *domain.DataPoint) (any, error) {
	switch p.DType {
	case domain.DTypeInt:
		return p.IntValue, nil
	case domain.DTypeLong:
		return p.LongValue, nil
	case domain.DTypeFloat:
		return p.FloatValue, nil
	case domain.DTypeString:
		return p.StringValue, nil
	case domain.DTypeByte, domain.DTypeImage:
		return p.Path, nil
	}
	return nil, fmt.Errorf("%w: dtype %q", domain.ErrInvalidFormat, p.DType)
}

func (r *PostgresDataPointsRepo) Insert(ctx context.Context, p *domain.DataPoint) (int64, error) {
	table, err := dataTable(p.DType)
	if err != nil {
		return 0, err
	}
	link, _ := linkTable(p.DType)
	value, err := payload(p)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var id int64
	if p.DType == domain.DTypeImage {
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (data_source_id, run_id, receiving_start, receiving_done,
				packets, packets_received, message_id, size, data, image_format)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, table), p.DataSourceID, p.RunID, p.ReceivingStart, p.ReceivingDone,
			p.Packets, p.PacketsReceived, p.MessageID, p.Size, value, p.ImageFormat).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (data_source_id, run_id, receiving_start, receiving_done,
				packets, packets_received, message_id, size, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id
		`, table), p.DataSourceID, p.RunID, p.ReceivingStart, p.ReceivingDone,
			p.Packets, p.PacketsReceived, p.MessageID, p.Size, value).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s datapoint: %w", p.DType.Name(), err)
	}

	for _, baseID := range p.TumblebaseIDs {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (tumblebase_id, %s_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, link, table), baseID, id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PostgresDataPointsRepo) Get(ctx context.Context, dtype domain.DType, id int64) (*domain.DataPoint, error) {
	table, err := dataTable(dtype)
	if err != nil {
		return nil, err
	}
	p, err := r.scanOne(dtype, r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT `+r.cols(dtype)+` FROM %s WHERE id = $1`, table), id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s datapoint %d", domain.ErrNotFound, dtype.Name(), id)
	}
	if err != nil {
		return nil, err
	}
	link, _ := linkTable(dtype)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT tumblebase_id FROM %s WHERE %s_id = $1 ORDER BY tumblebase_id`, link, table), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var baseID int64
		if err := rows.Scan(&baseID); err != nil {
			return nil, err
		}
		p.TumblebaseIDs = append(p.TumblebaseIDs, baseID)
	}
	return p, rows.Err()
}

func (r *PostgresDataPointsRepo) cols(dtype domain.DType) string {
	if dtype == domain.DTypeImage {
		return dataPointCommonCols + `, image_format`
	}
	return dataPointCommonCols
}

func (r *PostgresDataPointsRepo) scanOne(dtype domain.DType, row interface{ Scan(...any) error }) (*domain.DataPoint, error) {
	p := domain.DataPoint{DType: dtype}
	dest := []any{&p.ID, &p.DataSourceID, &p.RunID, &p.ReceivingStart, &p.ReceivingDone,
		&p.Packets, &p.PacketsReceived, &p.MessageID, &p.Size}
	switch dtype {
	case domain.DTypeInt:
		dest = append(dest, &p.IntValue)
	case domain.DTypeLong:
		dest = append(dest, &p.LongValue)
	case domain.DTypeFloat:
		dest = append(dest, &p.FloatValue)
	case domain.DTypeString:
		dest = append(dest, &p.StringValue)
	case domain.DTypeByte:
		dest = append(dest, &p.Path)
	case domain.DTypeImage:
		dest = append(dest, &p.Path, &p.ImageFormat)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresDataPointsRepo) Update(ctx context.Context, dtype domain.DType, id int64, patch DataPointPatch) error {
	table, err := dataTable(dtype)
	if err != nil {
		return err
	}

	sets := []string{}
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.PacketsReceived != nil {
		add("packets_received", *patch.PacketsReceived)
	}
	if patch.ReceivingDone != nil {
		add("receiving_done", *patch.ReceivingDone)
	}
	if patch.Size != nil {
		add("size", *patch.Size)
	}
	if patch.IntValue != nil {
		add("data", *patch.IntValue)
	}
	if patch.LongValue != nil {
		add("data", *patch.LongValue)
	}
	if patch.FloatValue != nil {
		add("data", *patch.FloatValue)
	}
	if patch.StringValue != nil {
		add("data", *patch.StringValue)
	}
	if patch.Path != nil {
		add("data", *patch.Path)
	}
	if len(sets) == 0 {
		return nil
	}

	res, err := r.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s WHERE id = $1`, table, strings.Join(sets, ", ")), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s datapoint %d", domain.ErrNotFound, dtype.Name(), id)
	}
	return nil
}

func (r *PostgresDataPointsRepo) ListByDataSourceAndRun(ctx context.Context, dtype domain.DType, dataSourceID, runID int64) ([]*domain.DataPoint, error) {
	table, err := dataTable(dtype)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT `+r.cols(dtype)+` FROM %s
		WHERE data_source_id = $1 AND run_id = $2 ORDER BY id
	`, table), dataSourceID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.DataPoint{}
	ids := []int64{}
	for rows.Next() {
		p, err := r.scanOne(dtype, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	link, _ := linkTable(dtype)
	byID := make(map[int64]*domain.DataPoint, len(out))
	for _, p := range out {
		byID[p.ID] = p
	}
	linkRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s_id, tumblebase_id FROM %s WHERE %s_id = ANY($1) ORDER BY tumblebase_id
	`, table, link, table), pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var pointID, baseID int64
		if err := linkRows.Scan(&pointID, &baseID); err != nil {
			return nil, err
		}
		if p, ok := byID[pointID]; ok {
			p.TumblebaseIDs = append(p.TumblebaseIDs, baseID)
		}
	}
	return out, linkRows.Err()
}
