package service

import (
	"context"
	"testing"
	"time"

	"tumbleweb-data/internal/blob"
	"tumbleweb-data/internal/repository"
	"tumbleweb-data/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	repos    repository.Repos
	blobs    *blob.Store
	kv       *store.MemoryKV
	topology *TopologyService
	runs     *RunService
	ingest   *IngestService
	commands *CommandService
	deletion *DeletionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	repos := repository.NewMemoryRepos()
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	kv := store.NewMemoryKV()
	locks := NewAddressLocks()
	relay := NewRelayClient(2*time.Second, logger)

	return &testEnv{
		repos:    repos,
		blobs:    blobs,
		kv:       kv,
		topology: NewTopologyService(repos, logger),
		runs:     NewRunService(repos, locks, logger),
		ingest:   NewIngestService(repos, blobs, kv, locks, logger),
		commands: NewCommandService(repos, relay, logger),
		deletion: NewDeletionService(repos, blobs, logger),
	}
}

// seedDataSource creates a tumbleweed, subsystem and data source and
// returns their ids.
func (e *testEnv) seedDataSource(t *testing.T, address, shortKey, dtype string) (weedID, subID, dsID int64) {
	t.Helper()
	ctx := context.Background()
	weedID, err := e.topology.CreateTumbleweed(ctx, address, "Test device")
	require.NoError(t, err)
	subID, err = e.topology.CreateSubSystem(ctx, weedID, "Main board", "")
	require.NoError(t, err)
	dsID, err = e.topology.CreateDataSource(ctx, subID, "Sensor", "", shortKey, dtype, "")
	require.NoError(t, err)
	return weedID, subID, dsID
}
