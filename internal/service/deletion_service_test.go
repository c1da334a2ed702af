package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"testing"

	"tumbleweb-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteSubSystemRefusesWithDataSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, subID, dsID := env.seedDataSource(t, "A1", "T1", "I")

	err := env.deletion.DeleteSubSystem(ctx, subID)
	require.ErrorIs(t, err, domain.ErrHasDependents)

	require.NoError(t, env.deletion.DeleteDataSource(ctx, dsID))
	require.NoError(t, env.deletion.DeleteSubSystem(ctx, subID))
}

func TestDeleteDataSourceCascadesDataPointsAndFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, _, dsID := env.seedDataSource(t, "A1", "T1", "B")

	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString([]byte("payload")))
	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", Sample{Data: encoded, Packets: 1, PacketsReceived: 1}, "")
	require.NoError(t, err)

	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	points, err := env.ingest.GetDataPointsByDataSourceAndRun(ctx, dsID, run.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	path := points[0].Path.String

	require.NoError(t, env.deletion.DeleteDataSource(ctx, dsID))

	_, err = env.ingest.GetDataPointsByDataSourceAndRun(ctx, dsID, run.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "payload file must be gone after cascade")
}

func TestDeleteRunRefusedWhileActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, _, dsID := env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.NoError(t, err)
	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)

	err = env.deletion.DeleteRun(ctx, run.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyActive)

	_, err = env.runs.StopRun(ctx, weedID)
	require.NoError(t, err)
	require.NoError(t, env.deletion.DeleteRun(ctx, run.ID))

	// datapoints of the run are gone, the datasource survives
	_, err = env.repos.Runs.Get(ctx, run.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.repos.DataSources.Get(ctx, dsID)
	require.NoError(t, err)
}

func TestDeleteTumbleweedRequiresEmptyTopology(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, subID, dsID := env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.NoError(t, err)
	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)

	err = env.deletion.DeleteTumbleweed(ctx, weedID)
	require.ErrorIs(t, err, domain.ErrHasDependents)

	require.NoError(t, env.deletion.DeleteDataSource(ctx, dsID))
	require.NoError(t, env.deletion.DeleteSubSystem(ctx, subID))
	require.NoError(t, env.deletion.DeleteTumbleweed(ctx, weedID))

	// runs of the device are cascaded away with it
	_, err = env.repos.Runs.Get(ctx, run.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteCommandTypeCascadesCommands(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)
	typeID, err := env.topology.CreateCommandType(ctx, "reboot", "")
	require.NoError(t, err)
	_, err = env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	port := int64(1)
	baseID, err := env.topology.CreateTumblebase(ctx, "R1", "", "127.0.0.1", &port, "/command")
	require.NoError(t, err)

	// relay is unreachable, the command row still exists afterwards
	id, err := env.commands.SendCommand(ctx, weedID, baseID, typeID, "")
	require.ErrorIs(t, err, domain.ErrRelayDelivery)

	require.NoError(t, env.deletion.DeleteCommandType(ctx, typeID))

	_, err = env.repos.Commands.Get(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.runs.GetActiveRun(ctx, weedID)
	require.NoError(t, err)
}

func TestDeleteTumblebaseRefusedWithDataPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.NoError(t, err)

	base, err := env.repos.Tumblebases.GetByAddress(ctx, "R1")
	require.NoError(t, err)

	err = env.deletion.DeleteTumblebase(ctx, base.ID)
	require.ErrorIs(t, err, domain.ErrHasDependents)
}
