package service

import (
	"context"
	"fmt"
	"time"

	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/repository"

	"go.uber.org/zap"
)

// RunService enforces the single-active-run invariant. Because device
// addresses are not unique, at most one run may be active across every
// device sharing an address, not just per device id. Activation is
// serialized through the shared address locks; the partial unique index on
// the run table backstops the invariant should two processes race.
type RunService struct {
	repos  repository.Repos
	locks  *AddressLocks
	logger *zap.Logger
}

func NewRunService(repos repository.Repos, locks *AddressLocks, logger *zap.Logger) *RunService {
	return &RunService{repos: repos, locks: locks, logger: logger}
}

func (s *RunService) StartRun(ctx context.Context, tumbleweedID int64, name, description string) (int64, error) {
	weed, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(weed.Address)
	defer unlock()

	holder, err := s.activeRunHolder(ctx, weed.Address)
	if err != nil {
		return 0, err
	}
	if holder != 0 {
		return 0, fmt.Errorf("%w: tumbleweed %d holds the active run for address %q",
			domain.ErrAlreadyActive, holder, weed.Address)
	}

	run := &domain.Run{
		TumbleweedID: tumbleweedID,
		CreatedAt:    time.Now().UTC(),
	}
	if name != "" {
		run.Name.String, run.Name.Valid = name, true
	}
	if description != "" {
		run.Description.String, run.Description.Valid = description, true
	}
	id, err := s.repos.Runs.Create(ctx, run)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Run started",
		zap.Int64("run_id", id),
		zap.Int64("tumbleweed_id", tumbleweedID),
	)
	return id, nil
}

func (s *RunService) StopRun(ctx context.Context, tumbleweedID int64) (int64, error) {
	weed, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(weed.Address)
	defer unlock()

	run, err := s.repos.Runs.GetActive(ctx, tumbleweedID)
	if err != nil {
		return 0, err
	}
	if run == nil {
		return 0, fmt.Errorf("%w: tumbleweed %d", domain.ErrNotActive, tumbleweedID)
	}
	if err := s.repos.Runs.End(ctx, run.ID, time.Now().UTC()); err != nil {
		return 0, err
	}
	s.logger.Info("Run stopped",
		zap.Int64("run_id", run.ID),
		zap.Int64("tumbleweed_id", tumbleweedID),
	)
	return run.ID, nil
}

// GetActiveRun returns nil without error when no run is active.
func (s *RunService) GetActiveRun(ctx context.Context, tumbleweedID int64) (*domain.Run, error) {
	if _, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID); err != nil {
		return nil, err
	}
	return s.repos.Runs.GetActive(ctx, tumbleweedID)
}

func (s *RunService) GetRuns(ctx context.Context, tumbleweedID int64) ([]*domain.Run, error) {
	if _, err := s.repos.Tumbleweeds.Get(ctx, tumbleweedID); err != nil {
		return nil, err
	}
	return s.repos.Runs.ListByTumbleweed(ctx, tumbleweedID)
}

// activeRunHolder returns the id of the device holding the active run for
// the address group, or 0 when none does.
func (s *RunService) activeRunHolder(ctx context.Context, address string) (int64, error) {
	weeds, err := s.repos.Tumbleweeds.GetByAddress(ctx, address)
	if err != nil {
		return 0, err
	}
	for _, w := range weeds {
		run, err := s.repos.Runs.GetActive(ctx, w.ID)
		if err != nil {
			return 0, err
		}
		if run != nil {
			return w.ID, nil
		}
	}
	return 0, nil
}
