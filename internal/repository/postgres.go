package repository

import (
	"database/sql"
	"fmt"

	"tumbleweb-data/internal/domain"

	"go.uber.org/zap"
)

// NewPostgresRepos wires the Postgres implementation of every repository
// over one shared connection pool.
func NewPostgresRepos(db *sql.DB, logger *zap.Logger) Repos {
	return Repos{
		Tumbleweeds:  NewPostgresTumbleweedsRepo(db, logger),
		Tumblebases:  NewPostgresTumblebasesRepo(db, logger),
		Runs:         NewPostgresRunsRepo(db, logger),
		SubSystems:   NewPostgresSubSystemsRepo(db, logger),
		DataSources:  NewPostgresDataSourcesRepo(db, logger),
		CommandTypes: NewPostgresCommandTypesRepo(db, logger),
		Commands:     NewPostgresCommandsRepo(db, logger),
		DataPoints:   NewPostgresDataPointsRepo(db, logger),
	}
}

// dataTable returns the variant table holding datapoints of the dtype.
func dataTable(d domain.DType) (string, error) {
	switch d {
	case domain.DTypeInt:
		return "intdata", nil
	case domain.DTypeLong:
		return "longdata", nil
	case domain.DTypeFloat:
		return "floatdata", nil
	case domain.DTypeString:
		return "stringdata", nil
	case domain.DTypeByte:
		return "bytedata", nil
	case domain.DTypeImage:
		return "imagedata", nil
	}
	return "", fmt.Errorf("%w: dtype %q", domain.ErrInvalidFormat, d)
}

// linkTable returns the tumblebase association table for the dtype.
func linkTable(d domain.DType) (string, error) {
	t, err := dataTable(d)
	if err != nil {
		return "", err
	}
	return "tumblebase_" + t, nil
}

var allDTypes = []domain.DType{
	domain.DTypeInt, domain.DTypeLong, domain.DTypeFloat,
	domain.DTypeString, domain.DTypeByte, domain.DTypeImage,
}
