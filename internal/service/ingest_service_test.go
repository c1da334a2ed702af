package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strconv"
	"testing"

	"tumbleweb-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intSample(v int64) Sample {
	return Sample{Data: json.RawMessage(strconv.FormatInt(v, 10)), Packets: 1, PacketsReceived: 1}
}

func TestIngestAutoProvisionsRelayAndRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, _, dsID := env.seedDataSource(t, "A1", "T1", "I")

	id, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(42), "10.0.0.7")
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	// relay auto-created with defaults
	base, err := env.repos.Tumblebases.GetByAddress(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "Default", base.Name.String)
	assert.Equal(t, "10.0.0.7", base.Host.String)

	// run auto-created and active
	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "Unnamed run", run.Name.String)

	// datapoint linked to datasource, run and relay
	points, err := env.ingest.GetDataPointsByDataSourceAndRun(ctx, dsID, run.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(42), points[0].IntValue.Int64)
	assert.Equal(t, []int64{base.ID}, points[0].TumblebaseIDs)
}

func TestIngestReusesRelay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(2), "")
	require.NoError(t, err)

	bases, err := env.repos.Tumblebases.List(ctx)
	require.NoError(t, err)
	assert.Len(t, bases, 1)
}

func TestIngestUnknownReferences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.Ingest(ctx, "NOPE", "R1", "T1", intSample(1), "")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.ingest.Ingest(ctx, "A1", "R1", "WRONG-KEY", intSample(1), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestAmbiguousAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first, _, _ := env.seedDataSource(t, "A1", "T1", "I")
	_, err := env.topology.CreateTumbleweed(ctx, "A1", "twin")
	require.NoError(t, err)

	// two devices share the address and none holds an active run
	_, err = env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.ErrorIs(t, err, domain.ErrAmbiguousAddress)

	// once one holds the active run it becomes the unambiguous target
	_, err = env.runs.StartRun(ctx, first, "", "")
	require.NoError(t, err)
	_, err = env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(1), "")
	require.NoError(t, err)
}

func TestLongPayloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, _, dsID := env.seedDataSource(t, "A1", "T1", "L")

	const big = int64(9007199254740993) // not representable as a float64
	sample := Sample{Data: json.RawMessage(strconv.FormatInt(big, 10)), Packets: 1, PacketsReceived: 1}
	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", sample, "")
	require.NoError(t, err)

	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	points, err := env.ingest.GetDataPointsByDataSourceAndRun(ctx, dsID, run.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)

	encoded := points[0].ToJSON()["data"]
	str, ok := encoded.(string)
	require.True(t, ok, "long payload must serialize as a string")
	parsed, err := strconv.ParseInt(str, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, big, parsed)
}

func TestBytePayloadStoredOnDisk(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	weedID, _, dsID := env.seedDataSource(t, "A1", "T1", "B")

	content := []byte{0x01, 0x02, 0xFF}
	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString(content))
	sample := Sample{Data: encoded, Packets: 1, PacketsReceived: 1}
	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", sample, "")
	require.NoError(t, err)

	run, err := env.repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	points, err := env.ingest.GetDataPointsByDataSourceAndRun(ctx, dsID, run.ID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	require.True(t, points[0].Path.Valid)

	// the row holds a path, the file holds the content
	onDisk, err := os.ReadFile(points[0].Path.String)
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)
	assert.Equal(t, content, points[0].Bytes)
	assert.Equal(t, int64(len(content)), points[0].Size.Int64)
}

func TestImagePayloadRequiresKnownFormat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDataSource(t, "A1", "T1", "M")

	encoded, _ := json.Marshal(base64.StdEncoding.EncodeToString([]byte("img")))
	sample := Sample{Data: encoded, ImageFormat: "webp", Packets: 1, PacketsReceived: 1}
	_, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", sample, "")
	require.ErrorIs(t, err, domain.ErrInvalidFormat)

	sample.ImageFormat = "png"
	_, err = env.ingest.Ingest(ctx, "A1", "R1", "T1", sample, "")
	require.NoError(t, err)
}

func TestLatestDataPointCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, _, dsID := env.seedDataSource(t, "A1", "T1", "I")

	_, err := env.ingest.GetLatestDataPoint(ctx, dsID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	id, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", intSample(7), "")
	require.NoError(t, err)

	latest, err := env.ingest.GetLatestDataPoint(ctx, dsID)
	require.NoError(t, err)
	assert.Equal(t, float64(id), latest["id"])
	assert.Equal(t, float64(7), latest["data"])
}

func TestUpdateDataPointCompletesSample(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedDataSource(t, "A1", "T1", "I")

	// partial sample: payload arrives later
	sample := Sample{Packets: 3, PacketsReceived: 1}
	id, err := env.ingest.Ingest(ctx, "A1", "R1", "T1", sample, "")
	require.NoError(t, err)

	point, err := env.repos.DataPoints.Get(ctx, domain.DTypeInt, id)
	require.NoError(t, err)
	assert.False(t, point.Complete())
	assert.False(t, point.IntValue.Valid)

	received := 3
	patch := SamplePatch{
		PacketsReceived: &received,
		Data:            json.RawMessage("42"),
	}
	require.NoError(t, env.ingest.UpdateDataPoint(ctx, domain.DTypeInt, id, patch))

	point, err = env.repos.DataPoints.Get(ctx, domain.DTypeInt, id)
	require.NoError(t, err)
	assert.Equal(t, 3, point.PacketsReceived)
	assert.Equal(t, int64(42), point.IntValue.Int64)
}
