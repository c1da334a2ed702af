package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tumbleweb-data/internal/blob"
	"tumbleweb-data/internal/repository"
	"tumbleweb-data/internal/service"
	"tumbleweb-data/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()
	repos := repository.NewMemoryRepos()
	blobs, err := blob.NewStore(t.TempDir())
	require.NoError(t, err)
	kv := store.NewMemoryKV()
	locks := service.NewAddressLocks()
	relay := service.NewRelayClient(2*time.Second, logger)

	api := NewAPI(
		service.NewTopologyService(repos, logger),
		service.NewRunService(repos, locks, logger),
		service.NewIngestService(repos, blobs, kv, locks, logger),
		service.NewCommandService(repos, relay, logger),
		service.NewDeletionService(repos, blobs, logger),
		logger,
	)
	router := NewRouter(logger)
	router.RegisterRoutes(api)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func getList(t *testing.T, url string) (int, []map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// infoID pulls the created id out of the `{info}` envelope.
func infoID(t *testing.T, body map[string]any) int64 {
	t.Helper()
	id, ok := body["info"].(float64)
	require.True(t, ok, "expected numeric info field, got %v", body["info"])
	return int64(id)
}

func TestStartRunTwiceOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/add-tumbleweed",
		map[string]any{"address": "A1", "name": "probe"})
	require.Equal(t, http.StatusOK, status)
	weedID := infoID(t, body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/start-run/%d", srv.URL, weedID),
		map[string]any{"name": "first"})
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, infoID(t, body), int64(0))

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/start-run/%d", srv.URL, weedID),
		map[string]any{"name": "second"})
	require.Equal(t, http.StatusBadRequest, status)
	msg, ok := body["info"].(string)
	require.True(t, ok)
	assert.Contains(t, msg, "active")
}

func TestDataPointFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/add-tumbleweed",
		map[string]any{"address": "A1"})
	require.Equal(t, http.StatusOK, status)
	weedID := infoID(t, body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/add-subSystem/%d", srv.URL, weedID),
		map[string]any{"name": "Main board"})
	require.Equal(t, http.StatusOK, status)
	subID := infoID(t, body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/add-dataSource/%d", srv.URL, subID),
		map[string]any{"name": "Temperature", "short_key": "T1", "dtype": "I"})
	require.Equal(t, http.StatusOK, status)
	dsID := infoID(t, body)

	// first sample auto-provisions the relay and the run
	status, body = doJSON(t, http.MethodPost, srv.URL+"/add-datapoint/A1/R1/T1",
		map[string]any{"data": 42, "packets": 1, "packets_received": 1})
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, infoID(t, body), int64(0))

	status, active := doJSON(t, http.MethodGet, fmt.Sprintf("%s/get-active-run/%d", srv.URL, weedID), nil)
	require.Equal(t, http.StatusOK, status)
	runID := int64(active["id"].(float64))

	status, points := getList(t, fmt.Sprintf("%s/get-datapoints-by-dataSource-and-run/%d/%d", srv.URL, dsID, runID))
	require.Equal(t, http.StatusOK, status)
	require.Len(t, points, 1)
	assert.Equal(t, float64(42), points[0]["data"])

	status, latest := doJSON(t, http.MethodGet, fmt.Sprintf("%s/get-latest-datapoint/%d", srv.URL, dsID), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(42), latest["data"])
}

func TestDeleteSubSystemConflictOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/add-tumbleweed",
		map[string]any{"address": "A1"})
	require.Equal(t, http.StatusOK, status)
	weedID := infoID(t, body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/add-subSystem/%d", srv.URL, weedID),
		map[string]any{"name": "Main board"})
	require.Equal(t, http.StatusOK, status)
	subID := infoID(t, body)

	status, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/add-dataSource/%d", srv.URL, subID),
		map[string]any{"name": "Temperature", "short_key": "T1", "dtype": "I"})
	require.Equal(t, http.StatusOK, status)
	dsID := infoID(t, body)

	status, body = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/delete-subSystem/%d", srv.URL, subID), nil)
	require.Equal(t, http.StatusBadRequest, status)
	msg, ok := body["info"].(string)
	require.True(t, ok)
	assert.Contains(t, msg, "data sources")

	status, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/delete-dataSource/%d", srv.URL, dsID), nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/delete-subSystem/%d", srv.URL, subID), nil)
	require.Equal(t, http.StatusOK, status)
}

func TestMethodNotAllowedOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/add-tumbleweed", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "Method not allowed.", body["info"])
}

func TestUnknownRouteOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not found.", body["info"])
}
