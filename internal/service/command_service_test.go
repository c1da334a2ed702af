package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"tumbleweb-data/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRelay registers a tumblebase whose command endpoint points at the
// test server.
func seedRelay(t *testing.T, env *testEnv, address, serverURL string) int64 {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.ParseInt(portStr, 10, 64)
	require.NoError(t, err)

	id, err := env.topology.CreateTumblebase(context.Background(), address, "Relay", host, &port, "/command")
	require.NoError(t, err)
	return id
}

func TestSendCommandTransmits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var received RelayCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)
	baseID := seedRelay(t, env, "R1", srv.URL)
	typeID, err := env.topology.CreateCommandType(ctx, "reboot", "")
	require.NoError(t, err)
	_, err = env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	id, err := env.commands.SendCommand(ctx, weedID, baseID, typeID, "delay=5")
	require.NoError(t, err)

	assert.Equal(t, "A1", received.Address)
	assert.Equal(t, "reboot+delay=5", received.Command)

	cmd, err := env.repos.Commands.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, cmd.Transmitted)
	assert.Equal(t, "delay=5", cmd.Args.String)
}

func TestSendCommandRelayFailureKeepsCommand(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)
	baseID := seedRelay(t, env, "R1", srv.URL)
	typeID, err := env.topology.CreateCommandType(ctx, "reboot", "")
	require.NoError(t, err)
	_, err = env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	id, err := env.commands.SendCommand(ctx, weedID, baseID, typeID, "")
	require.ErrorIs(t, err, domain.ErrRelayDelivery)
	require.Greater(t, id, int64(0))

	// delivery failure must not roll back the persisted command
	cmd, err := env.repos.Commands.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, cmd.Transmitted)
}

func TestSendCommandPreconditionOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)

	// no active run
	_, err = env.commands.SendCommand(ctx, weedID, 99, 99, "")
	require.ErrorIs(t, err, domain.ErrNotActive)

	_, err = env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	// active run, relay missing
	_, err = env.commands.SendCommand(ctx, weedID, 99, 99, "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateCommandRecordsResponse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	weedID, err := env.topology.CreateTumbleweed(ctx, "A1", "")
	require.NoError(t, err)
	baseID := seedRelay(t, env, "R1", srv.URL)
	typeID, err := env.topology.CreateCommandType(ctx, "reboot", "")
	require.NoError(t, err)
	runID, err := env.runs.StartRun(ctx, weedID, "", "")
	require.NoError(t, err)

	id, err := env.commands.SendCommand(ctx, weedID, baseID, typeID, "")
	require.NoError(t, err)

	unanswered, err := env.commands.GetUnansweredCommands(ctx, weedID, runID)
	require.NoError(t, err)
	require.Len(t, unanswered, 1)

	msgID := int64(7)
	require.NoError(t, env.commands.UpdateCommand(ctx, id, "ok", &msgID))

	unanswered, err = env.commands.GetUnansweredCommands(ctx, weedID, runID)
	require.NoError(t, err)
	assert.Empty(t, unanswered)

	cmd, err := env.repos.Commands.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ok", cmd.Response.String)
	assert.True(t, cmd.ReceivedResponseAt.Valid)
	assert.Equal(t, msgID, cmd.ResponseMessageID.Int64)
}
