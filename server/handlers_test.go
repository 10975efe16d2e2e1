package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scriptrelay/pkg/config"
	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/protocol"
	"scriptrelay/pkg/storage"
	"scriptrelay/relay"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *relay.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.Database.Path = ":memory:"

	store, err := storage.NewStore(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.Get()
	clock := clockwork.NewRealClock()
	registry := relay.NewRegistry(clock, log)

	services := &Services{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		Registry:    registry,
		Broadcaster: relay.NewBroadcaster(registry, log),
		Monitor:     relay.NewMonitor(registry, clock, cfg.Heartbeat.PingInterval(), cfg.Heartbeat.PongTimeout(), log),
		Gateway:     relay.NewGateway(registry, log),
	}

	return NewServer(services), registry
}

func doExecute(t *testing.T, srv *Server, body string) (*httptest.ResponseRecorder, ExecuteResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExecuteEmptyBody(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doExecute(t, srv, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "No file path provided", resp.Error)
	assert.Nil(t, resp.ClientsReached)
}

func TestExecuteMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doExecute(t, srv, "/nonexistent/script.lua")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "does not exist")
}

func TestExecuteDirectoryRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	rec, resp := doExecute(t, srv, t.TempDir())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "is not a file")
}

func TestExecuteBadExtension(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeScript(t, "script.exe", "bad")

	rec, resp := doExecute(t, srv, path)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error, "File must be one of")
}

func TestExecuteExtensionCaseInsensitive(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeScript(t, "SCRIPT.LUA", "print(1)")

	// No clients are connected, so getting past validation means 503
	rec, _ := doExecute(t, srv, path)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestExecuteNoClients(t *testing.T) {
	srv, _ := newTestServer(t)
	path := writeScript(t, "script.lua", "print(1)")

	rec, resp := doExecute(t, srv, path)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "No clients connected", resp.Error)
	require.NotNil(t, resp.ClientsReached)
	require.NotNil(t, resp.TotalClients)
	assert.Equal(t, 0, *resp.ClientsReached)
	assert.Equal(t, 0, *resp.TotalClients)
}

func TestExecuteFullDelivery(t *testing.T) {
	srv, registry := newTestServer(t)
	path := writeScript(t, "script.lua", "print('hello')")

	sender := relay.NewSender()
	registry.Register(sender)

	rec, resp := doExecute(t, srv, path)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "sent to all connected clients")
	assert.Equal(t, 1, *resp.ClientsReached)
	assert.Equal(t, 1, *resp.TotalClients)

	select {
	case payload := <-sender.Recv():
		var directive protocol.ExecuteDirective
		require.NoError(t, json.Unmarshal(payload, &directive))
		assert.Equal(t, protocol.MsgTypeExecute, directive.Type)
		assert.Equal(t, "print('hello')", directive.Script)
		assert.Equal(t, "script.lua", directive.Filename)
	default:
		t.Fatal("Client did not receive the execute directive")
	}
}

func TestExecutePartialDelivery(t *testing.T) {
	srv, registry := newTestServer(t)
	path := writeScript(t, "script.lua", "print(1)")

	healthy := relay.NewSender()
	broken := relay.NewSender()
	registry.Register(healthy)
	registry.Register(broken)
	broken.Close()

	rec, resp := doExecute(t, srv, path)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "only reached 1/2 clients")
	assert.Equal(t, 1, *resp.ClientsReached)
	assert.Equal(t, 2, *resp.TotalClients)

	// The unreachable client is evicted by the broadcast
	assert.Equal(t, 1, registry.Count())
}

func TestExecuteRecordsDispatch(t *testing.T) {
	srv, registry := newTestServer(t)
	path := writeScript(t, "script.lua", "print(1)")

	sender := relay.NewSender()
	registry.Register(sender)

	_, _ = doExecute(t, srv, path)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var history HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Dispatches, 1)

	d := history.Dispatches[0]
	assert.Equal(t, "script.lua", d.Filename)
	assert.Equal(t, 1, d.Delivered)
	assert.Equal(t, 1, d.Total)
	assert.Equal(t, storage.OutcomeDelivered, d.Outcome)
	assert.NotEmpty(t, d.ID)
}

func TestStatus(t *testing.T) {
	srv, registry := newTestServer(t)
	registry.Register(relay.NewSender())
	registry.Register(relay.NewSender())

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 2, status.ConnectedClients)
	assert.NotEmpty(t, status.Timestamp)
}

func TestHistoryEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/history", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var history HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Empty(t, history.Dispatches)
}

func TestHistoryInvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, limit := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest(http.MethodGet, "/history?limit="+limit, nil)
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_connected_clients")
}
