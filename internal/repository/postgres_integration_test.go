//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"tumbleweb-data/internal/config"
	"tumbleweb-data/internal/database"
	"tumbleweb-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEnvStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getTestDB connects to the integration database or skips the test when it
// is unreachable.
func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Host:     testEnvStr("TEST_DB_HOST", "localhost"),
		Port:     testEnvInt("TEST_DB_PORT", 5432),
		User:     testEnvStr("TEST_DB_USER", "postgres"),
		Password: testEnvStr("TEST_DB_PASSWORD", "postgres"),
		Database: testEnvStr("TEST_DB_NAME", "tumbleweb"),
		SSLMode:  testEnvStr("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil
	}
	return db
}

func cleanupTumbleweed(db *sql.DB, address string) {
	db.Exec(`DELETE FROM tumblebase_intdata WHERE intdata_id IN (
		SELECT d.id FROM intdata d
		JOIN datasource ds ON ds.id = d.data_source_id
		JOIN tumbleweed w ON w.id = ds.tumbleweed_id
		WHERE w.address = $1)`, address)
	db.Exec(`DELETE FROM intdata WHERE data_source_id IN (
		SELECT ds.id FROM datasource ds
		JOIN tumbleweed w ON w.id = ds.tumbleweed_id
		WHERE w.address = $1)`, address)
	db.Exec(`DELETE FROM datasource WHERE tumbleweed_id IN (SELECT id FROM tumbleweed WHERE address = $1)`, address)
	db.Exec(`DELETE FROM subsystem WHERE tumbleweed_id IN (SELECT id FROM tumbleweed WHERE address = $1)`, address)
	db.Exec(`DELETE FROM run WHERE tumbleweed_id IN (SELECT id FROM tumbleweed WHERE address = $1)`, address)
	db.Exec(`DELETE FROM tumbleweed WHERE address = $1`, address)
}

func TestPostgresRunLifecycle(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	const address = "it-run-lifecycle"
	cleanupTumbleweed(db, address)
	defer cleanupTumbleweed(db, address)

	repos := NewPostgresRepos(db, zap.NewNop())
	ctx := context.Background()

	weedID, err := repos.Tumbleweeds.Create(ctx, &domain.Tumbleweed{Address: address, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	active, err := repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	assert.Nil(t, active)

	runID, err := repos.Runs.Create(ctx, &domain.Run{TumbleweedID: weedID, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	// the partial unique index rejects a second open run
	_, err = repos.Runs.Create(ctx, &domain.Run{TumbleweedID: weedID, CreatedAt: time.Now().UTC()})
	require.Error(t, err)

	active, err = repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, runID, active.ID)

	require.NoError(t, repos.Runs.End(ctx, runID, time.Now().UTC()))

	// ended_at is immutable once set
	err = repos.Runs.End(ctx, runID, time.Now().UTC())
	require.ErrorIs(t, err, domain.ErrNotActive)

	active, err = repos.Runs.GetActive(ctx, weedID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestPostgresDataPointInsertAndList(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	const address = "it-datapoint-insert"
	cleanupTumbleweed(db, address)
	defer cleanupTumbleweed(db, address)

	repos := NewPostgresRepos(db, zap.NewNop())
	ctx := context.Background()

	weedID, err := repos.Tumbleweeds.Create(ctx, &domain.Tumbleweed{Address: address, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	subID, err := repos.SubSystems.Create(ctx, &domain.SubSystem{TumbleweedID: weedID, Name: "board", CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	dsID, err := repos.DataSources.Create(ctx, &domain.DataSource{
		SubSystemID: subID, TumbleweedID: weedID, ShortKey: "T1",
		DType: domain.DTypeInt, Name: "temp", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	// duplicate short_key on the same tumbleweed is rejected
	_, err = repos.DataSources.Create(ctx, &domain.DataSource{
		SubSystemID: subID, TumbleweedID: weedID, ShortKey: "T1",
		DType: domain.DTypeInt, Name: "temp again", CreatedAt: time.Now().UTC(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)

	runID, err := repos.Runs.Create(ctx, &domain.Run{TumbleweedID: weedID, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	p := &domain.DataPoint{
		DType:           domain.DTypeInt,
		DataSourceID:    dsID,
		RunID:           runID,
		ReceivingStart:  time.Now().UTC(),
		Packets:         1,
		PacketsReceived: 1,
	}
	p.IntValue.Int64, p.IntValue.Valid = 42, true
	id, err := repos.DataPoints.Insert(ctx, p)
	require.NoError(t, err)

	points, err := repos.DataPoints.ListByDataSourceAndRun(ctx, domain.DTypeInt, dsID, runID)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, id, points[0].ID)
	assert.Equal(t, int64(42), points[0].IntValue.Int64)
}
