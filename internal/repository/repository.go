package repository

import (
	"context"
	"time"

	"tumbleweb-data/internal/domain"
)

// Repositories return domain.ErrNotFound (possibly wrapped) for missing
// rows and domain.ErrHasDependents when a delete would orphan dependent
// rows, so the Postgres and memory implementations are interchangeable.

type TumbleweedsRepo interface {
	Create(ctx context.Context, t *domain.Tumbleweed) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Tumbleweed, error)
	List(ctx context.Context) ([]*domain.Tumbleweed, error)
	// GetByAddress returns every tumbleweed sharing the address; addresses
	// are not unique.
	GetByAddress(ctx context.Context, address string) ([]*domain.Tumbleweed, error)
	LinkTumblebase(ctx context.Context, tumbleweedID, tumblebaseID int64) error
	// Delete refuses while the tumbleweed owns subsystems or data sources,
	// then cascades runs, datapoints and commands. Returns the blob paths
	// of removed byte/image datapoints so the caller can delete the files
	// after the transaction commits.
	Delete(ctx context.Context, id int64) ([]string, error)
}

type TumblebasesRepo interface {
	Create(ctx context.Context, b *domain.Tumblebase) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Tumblebase, error)
	List(ctx context.Context) ([]*domain.Tumblebase, error)
	// GetByAddress returns (nil, domain.ErrNotFound) for an unknown address.
	GetByAddress(ctx context.Context, address string) (*domain.Tumblebase, error)
	// GetOrCreateByAddress resolves the relay for an ingestion call,
	// creating a default entry (name "Default", host from the caller's
	// network origin) when the address is unseen. The bool reports whether
	// a new row was created.
	GetOrCreateByAddress(ctx context.Context, address, host string) (*domain.Tumblebase, bool, error)
	// Delete refuses while any command or datapoint references the relay.
	Delete(ctx context.Context, id int64) error
}

type RunsRepo interface {
	Create(ctx context.Context, r *domain.Run) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Run, error)
	ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.Run, error)
	// GetActive returns the most recently created run with a null ended_at,
	// or (nil, nil) when the tumbleweed has no active run.
	GetActive(ctx context.Context, tumbleweedID int64) (*domain.Run, error)
	// End sets ended_at. Ending an already-ended run is rejected with
	// domain.ErrNotActive; ended_at is immutable once set.
	End(ctx context.Context, id int64, endedAt time.Time) error
	// Delete cascades the run's datapoints and commands. The active-run
	// refusal is a business rule checked by the caller.
	Delete(ctx context.Context, id int64) ([]string, error)
}

type SubSystemsRepo interface {
	Create(ctx context.Context, s *domain.SubSystem) (int64, error)
	Get(ctx context.Context, id int64) (*domain.SubSystem, error)
	ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.SubSystem, error)
	// Delete refuses while the subsystem owns any data source.
	Delete(ctx context.Context, id int64) error
}

type DataSourcesRepo interface {
	// Create rejects a short_key already used by another data source of the
	// same tumbleweed.
	Create(ctx context.Context, d *domain.DataSource) (int64, error)
	Get(ctx context.Context, id int64) (*domain.DataSource, error)
	ListBySubSystem(ctx context.Context, subSystemID int64) ([]*domain.DataSource, error)
	ListByTumbleweed(ctx context.Context, tumbleweedID int64) ([]*domain.DataSource, error)
	GetByTumbleweedAndShortKey(ctx context.Context, tumbleweedID int64, shortKey string) (*domain.DataSource, error)
	// Delete cascades the data source's datapoints across all six variant
	// tables and returns removed blob paths.
	Delete(ctx context.Context, id int64) ([]string, error)
}

type CommandTypesRepo interface {
	Create(ctx context.Context, c *domain.CommandType) (int64, error)
	Get(ctx context.Context, id int64) (*domain.CommandType, error)
	List(ctx context.Context) ([]*domain.CommandType, error)
	// Delete unconditionally removes the type and every command of it.
	Delete(ctx context.Context, id int64) error
}

type CommandsRepo interface {
	Create(ctx context.Context, c *domain.Command) (int64, error)
	Get(ctx context.Context, id int64) (*domain.Command, error)
	SetTransmitted(ctx context.Context, id int64, transmitted bool) error
	UpdateResponse(ctx context.Context, id int64, response string, responseMessageID *int64, receivedAt time.Time) error
	ListByTumbleweedAndRun(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error)
	// ListUnanswered returns commands of the run that have no response,
	// response timestamp or response message id yet.
	ListUnanswered(ctx context.Context, tumbleweedID, runID int64) ([]*domain.Command, error)
}

// DataPointPatch completes a partially received sample. Nil fields are
// left untouched.
type DataPointPatch struct {
	PacketsReceived *int
	ReceivingDone   *time.Time
	Size            *int64

	IntValue    *int64
	LongValue   *int64
	FloatValue  *float64
	StringValue *string
	Path        *string
}

type DataPointsRepo interface {
	// Insert persists the datapoint and its datasource, run and tumblebase
	// links in a single transaction.
	Insert(ctx context.Context, p *domain.DataPoint) (int64, error)
	Get(ctx context.Context, dtype domain.DType, id int64) (*domain.DataPoint, error)
	Update(ctx context.Context, dtype domain.DType, id int64, patch DataPointPatch) error
	// ListByDataSourceAndRun returns datapoints ordered by id ascending.
	ListByDataSourceAndRun(ctx context.Context, dtype domain.DType, dataSourceID, runID int64) ([]*domain.DataPoint, error)
}

// Repos bundles every repository for service wiring.
type Repos struct {
	Tumbleweeds  TumbleweedsRepo
	Tumblebases  TumblebasesRepo
	Runs         RunsRepo
	SubSystems   SubSystemsRepo
	DataSources  DataSourcesRepo
	CommandTypes CommandTypesRepo
	Commands     CommandsRepo
	DataPoints   DataPointsRepo
}
