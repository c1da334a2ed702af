package service

import (
	"context"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/repository"

	"go.uber.org/zap"
)

// TopologyService manages the static device graph: tumbleweeds,
// tumblebases, subsystems, data sources, command types and their links.
type TopologyService struct {
	repos  repository.Repos
	logger *zap.Logger
}

func NewTopologyService(repos repository.Repos, logger *zap.Logger) *TopologyService {
	return &TopologyService{repos: repos, logger: logger}
}

func (s *TopologyService) CreateTumbleweed(ctx context.Context, address, name string) (int64, error) {
	if address == "" {
		return 0, fmt.Errorf("%w: tumbleweed address is required", domain.ErrInvalidFormat)
	}
	t := &domain.Tumbleweed{Address: address, CreatedAt: time.Now().UTC()}
	if name != "" {
		t.Name.String, t.Name.Valid = name, true
	}
	return s.repos.Tumbleweeds.Create(ctx, t)
}

func (s *TopologyService) GetTumbleweed(ctx context.Context, id int64) (*domain.Tumbleweed, error) {
	return s.repos.Tumbleweeds.Get(ctx, id)
}

func (s *TopologyService) ListTumbleweeds(ctx context.Context) ([]*domain.Tumbleweed, error) {
	return s.repos.Tumbleweeds.List(ctx)
}

func (s *TopologyService) CreateTumblebase(ctx context.Context, address, name, host string, port *int64, commandRoute string) (int64, error) {
	if address == "" {
		return 0, fmt.Errorf("%w: tumblebase address is required", domain.ErrInvalidFormat)
	}
	if existing, err := s.repos.Tumblebases.GetByAddress(ctx, address); err == nil && existing != nil {
		return 0, fmt.Errorf("%w: tumblebase address %q already exists", domain.ErrInvalidFormat, address)
	}
	b := &domain.Tumblebase{Address: address, CreatedAt: time.Now().UTC()}
	if name != "" {
		b.Name.String, b.Name.Valid = name, true
	}
	if host != "" {
		b.Host.String, b.Host.Valid = host, true
	}
	if port != nil {
		b.Port.Int64, b.Port.Valid = *port, true
	}
	if commandRoute != "" {
		b.CommandRoute.String, b.CommandRoute.Valid = commandRoute, true
	}
	return s.repos.Tumblebases.Create(ctx, b)
}

func (s *TopologyService) GetTumblebase(ctx context.Context, id int64) (*domain.Tumblebase, error) {
	return s.repos.Tumblebases.Get(ctx, id)
}

func (s *TopologyService) ListTumblebases(ctx context.Context) ([]*domain.Tumblebase, error) {
	return s.repos.Tumblebases.List(ctx)
}

// AddTumblebaseToTumbleweed records that the relay serves the device.
// Linking twice is a no-op.
func (s *TopologyService) AddTumblebaseToTumbleweed(ctx context.Context, tumblebaseID, tumbleweedID int64) error {
	return s.repos.Tumbleweeds.LinkTumblebase(ctx, tumbleweedID, tumblebaseID)
}

func (s *TopologyService) CreateSubSystem(ctx context.Context, tumbleweedID int64, name, description string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: subSystem name is required", domain.ErrInvalidFormat)
	}
	sub := &domain.SubSystem{TumbleweedID: tumbleweedID, Name: name, CreatedAt: time.Now().UTC()}
	if description != "" {
		sub.Description.String, sub.Description.Valid = description, true
	}
	return s.repos.SubSystems.Create(ctx, sub)
}

func (s *TopologyService) ListSubSystems(ctx context.Context, tumbleweedID int64) ([]*domain.SubSystem, error) {
	if _, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID); err != nil {
		return nil, err
	}
	return s.repos.SubSystems.ListByTumbleweed(ctx, tumbleweedID)
}

// CreateDataSource derives the denormalized tumbleweed reference from the
// owning subsystem and validates the dtype tag. The tag is immutable after
// creation.
func (s *TopologyService) CreateDataSource(ctx context.Context, subSystemID int64, name, description, shortKey, dtype, typ string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: dataSource name is required", domain.ErrInvalidFormat)
	}
	if shortKey == "" {
		return 0, fmt.Errorf("%w: dataSource short_key is required", domain.ErrInvalidFormat)
	}
	parsed, err := domain.ParseDType(dtype)
	if err != nil {
		return 0, err
	}
	sub, err := s.repos.SubSystems.Get(ctx, subSystemID)
	if err != nil {
		return 0, err
	}
	d := &domain.DataSource{
		SubSystemID:  subSystemID,
		TumbleweedID: sub.TumbleweedID,
		ShortKey:     shortKey,
		DType:        parsed,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}
	if typ != "" {
		d.Type.String, d.Type.Valid = typ, true
	}
	if description != "" {
		d.Description.String, d.Description.Valid = description, true
	}
	return s.repos.DataSources.Create(ctx, d)
}

func (s *TopologyService) ListDataSources(ctx context.Context, subSystemID int64) ([]*domain.DataSource, error) {
	if _, err := s.repos.SubSystems.Get(ctx, subSystemID); err != nil {
		return nil, err
	}
	return s.repos.DataSources.ListBySubSystem(ctx, subSystemID)
}

func (s *TopologyService) CreateCommandType(ctx context.Context, typ, description string) (int64, error) {
	if typ == "" {
		return 0, fmt.Errorf("%w: commandType type is required", domain.ErrInvalidFormat)
	}
	c := &domain.CommandType{Type: typ, CreatedAt: time.Now().UTC()}
	if description != "" {
		c.Description.String, c.Description.Valid = description, true
	}
	return s.repos.CommandTypes.Create(ctx, c)
}

func (s *TopologyService) ListCommandTypes(ctx context.Context) ([]*domain.CommandType, error) {
	return s.repos.CommandTypes.List(ctx)
}
