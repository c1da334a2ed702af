package service

import (
	"context"
	"testing"

	"tumbleweb-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRunTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)

	runID, err := env.runs.StartRun(ctx, weedID, "first", "")
	require.NoError(t, err)
	assert.Greater(t, runID, int64(0))

	_, err = env.runs.StartRun(ctx, weedID, "second", "")
	require.ErrorIs(t, err, domain.ErrAlreadyActive)

	// failed start must not have created a second run
	runs, err := env.runs.GetRuns(ctx, weedID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStartRunSharedAddressExclusive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, err := env.topology.CreateTumbleweed(ctx, "A1", "one")
	require.NoError(t, err)
	second, err := env.topology.CreateTumbleweed(ctx, "A1", "two")
	require.NoError(t, err)

	_, err = env.runs.StartRun(ctx, first, "", "")
	require.NoError(t, err)

	// the other device shares the address, so its start is rejected too
	_, err = env.runs.StartRun(ctx, second, "", "")
	require.ErrorIs(t, err, domain.ErrAlreadyActive)

	_, err = env.runs.StopRun(ctx, first)
	require.NoError(t, err)

	_, err = env.runs.StartRun(ctx, second, "", "")
	require.NoError(t, err)
}

func TestStopRunEndsActiveRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)

	runID, err := env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	stoppedID, err := env.runs.StopRun(ctx, weedID)
	require.NoError(t, err)
	assert.Equal(t, runID, stoppedID)

	active, err := env.runs.GetActiveRun(ctx, weedID)
	require.NoError(t, err)
	assert.Nil(t, active)

	run, err := env.repos.Runs.Get(ctx, runID)
	require.NoError(t, err)
	assert.True(t, run.EndedAt.Valid)
}

func TestStopRunWithoutActiveFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)

	_, err = env.runs.StopRun(ctx, weedID)
	require.ErrorIs(t, err, domain.ErrNotActive)
}

func TestStartRunUnknownTumbleweed(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.runs.StartRun(context.Background(), 42, "", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
