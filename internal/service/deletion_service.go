package service

import (
	"context"
	"fmt"

	"tumbleweb-data/internal/blob"
	"tumbleweb-data/internal/domain"
	"tumbleweb-data/internal/repository"

	"go.uber.org/zap"
)

// DeletionService applies the two-tier removal policy: data containers
// (data sources, runs, tumbleweeds past their topology, command types)
// cascade their own children, organizational nodes (subsystems,
// tumblebases) must be emptied by the caller first. Row cascades run in
// one repository transaction; payload files are removed only after the
// transaction commits.
type DeletionService struct {
	repos  repository.Repos
	blobs  *blob.Store
	logger *zap.Logger
}

func NewDeletionService(repos repository.Repos, blobs *blob.Store, logger *zap.Logger) *DeletionService {
	return &DeletionService{repos: repos, blobs: blobs, logger: logger}
}

func (s *DeletionService) DeleteTumbleweed(ctx context.Context, id int64) error {
	paths, err := s.repos.Tumbleweeds.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeFiles(paths)
	s.logger.Info("Tumbleweed deleted", zap.Int64("tumbleweed_id", id))
	return nil
}

func (s *DeletionService) DeleteTumblebase(ctx context.Context, id int64) error {
	if err := s.repos.Tumblebases.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Tumblebase deleted", zap.Int64("tumblebase_id", id))
	return nil
}

func (s *DeletionService) DeleteSubSystem(ctx context.Context, id int64) error {
	return s.repos.SubSystems.Delete(ctx, id)
}

func (s *DeletionService) DeleteDataSource(ctx context.Context, id int64) error {
	paths, err := s.repos.DataSources.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeFiles(paths)
	s.logger.Info("DataSource deleted",
		zap.Int64("data_source_id", id),
		zap.Int("payload_files_removed", len(paths)),
	)
	return nil
}

func (s *DeletionService) DeleteCommandType(ctx context.Context, id int64) error {
	return s.repos.CommandTypes.Delete(ctx, id)
}

// DeleteRun refuses while the run is still active.
func (s *DeletionService) DeleteRun(ctx context.Context, id int64) error {
	run, err := s.repos.Runs.Get(ctx, id)
	if err != nil {
		return err
	}
	if run.Active() {
		return fmt.Errorf("%w: run %d must be stopped before deletion", domain.ErrAlreadyActive, id)
	}
	paths, err := s.repos.Runs.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.removeFiles(paths)
	s.logger.Info("Run deleted", zap.Int64("run_id", id))
	return nil
}

func (s *DeletionService) removeFiles(paths []string) {
	for _, p := range paths {
		if err := s.blobs.Remove(p); err != nil {
			s.logger.Warn("Failed to remove payload file after delete",
				zap.String("path", p), zap.Error(err))
		}
	}
}
