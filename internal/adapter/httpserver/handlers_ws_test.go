package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/config"
)

const wsTimeout = 2 * time.Second

func startServer(t *testing.T, env *testEnv) string {
	t.Helper()
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *gorillaws.Conn {
	t.Helper()
	ws, resp, err := gorillaws.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readText(t *testing.T, ws *gorillaws.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(wsTimeout)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func requireClose(t *testing.T, ws *gorillaws.Conn, code int) *gorillaws.CloseError {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(wsTimeout)))
	for {
		_, _, err := ws.ReadMessage()
		if err == nil {
			continue
		}
		closeErr, ok := errors.AsType[*gorillaws.CloseError](err)
		require.True(t, ok, "expected close frame, got %v", err)
		assert.Equal(t, code, closeErr.Code)
		return closeErr
	}
}

func waitForClients(t *testing.T, env *testEnv, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return env.hub.ClientCount() == n }, wsTimeout, 10*time.Millisecond)
}

func TestWebSocket_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)

	ws := dial(t, url+"/ws", nil)

	closeErr := requireClose(t, ws, broadcast.ClosePolicyViolation)
	assert.Equal(t, reasonAuthRequired, closeErr.Text)
	assert.Equal(t, 0, env.hub.ClientCount())
}

func TestWebSocket_RejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)

	ws := dial(t, url+"/ws", bearer("not-a-session"))

	requireClose(t, ws, broadcast.ClosePolicyViolation)
}

func TestWebSocket_ReceivesBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)

	ws := dial(t, url+"/ws", bearer(env.login(t)))
	waitForClients(t, env, 1)

	result, err := env.hub.Broadcast([]byte(`{"lat":36.8}`))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)

	assert.JSONEq(t, `{"lat":36.8}`, readText(t, ws))
}

func TestWebSocket_CookieSession(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)
	login := env.do(t, http.MethodPost, "/login", `{"username":"admin","password":"aquawing-test"}`, jsonHeader)
	require.Equal(t, http.StatusOK, login.Code)

	dial(t, url+"/ws", cookies(login))

	waitForClients(t, env, 1)
}

func TestWebSocket_Commands(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)
	ws := dial(t, url+"/ws", bearer(env.login(t)))
	waitForClients(t, env, 1)

	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"set speed", `{"cmd":"set_speed","value":4}`, `{"type":"ack","cmd":"set_speed","status":"ok","value":4}`},
		{"send route", `{"cmd":"send_route","name":"harbour","points":[{"lat":1,"lon":2}]}`, `{"type":"ack","cmd":"send_route","status":"ok","name":"harbour","count":1}`},
		{"start flight", `{"cmd":"start_flight"}`, `{"type":"ack","cmd":"start_flight","status":"ok"}`},
		{"unknown", `{"cmd":"barrel_roll"}`, `{"type":"error","msg":"Unknown cmd: barrel_roll"}`},
		{"invalid json", `not json`, `{"type":"error","msg":"Invalid JSON"}`},
		{"abort", `{"cmd":"abort"}`, `{"type":"ack","cmd":"abort","status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ws.WriteMessage(gorillaws.TextMessage, []byte(tt.frame)))
			assert.JSONEq(t, tt.want, readText(t, ws))
		})
	}

	state := env.flight.State()
	assert.False(t, state.Flying)
	assert.Equal(t, 4.0, state.CruiseSpeed)
	assert.Equal(t, 1, env.hub.ClientCount())
}

func TestWebSocket_RevalidationClosesExpiredSession(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *config.Config) {
		cfg.AuthRevalidateInterval = 50 * time.Millisecond
	}))
	url := startServer(t, env)
	token := env.login(t)

	ws := dial(t, url+"/ws", bearer(token))
	waitForClients(t, env, 1)

	require.NoError(t, env.sessions.Destroy(context.Background(), token))

	closeErr := requireClose(t, ws, broadcast.ClosePolicyViolation)
	assert.Equal(t, reasonSessionEnded, closeErr.Text)
	waitForClients(t, env, 0)
}

func TestWebSocket_LegacyEndpoint(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)

	ws := dial(t, url+"/ws/telemetry", nil)

	closeErr := requireClose(t, ws, broadcast.CloseNormalClosure)
	assert.Equal(t, reasonDeprecated, closeErr.Text)
}

func TestWebSocket_PerIPLimit(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *config.Config) {
		cfg.MaxConnectionsPerIP = 1
	}))
	url := startServer(t, env)
	token := env.login(t)

	dial(t, url+"/ws", bearer(token))
	waitForClients(t, env, 1)

	_, resp, err := gorillaws.DefaultDialer.Dial(url+"/ws", bearer(token))
	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWebSocket_HubFull(t *testing.T) {
	env := newTestEnv(t)
	cfg := broadcast.DefaultConfig()
	cfg.MaxClients = 1
	env.hub.Stop()
	env.hub = broadcast.NewHub(cfg, env.srv.clock, env.hubMetrics)
	env.srv.hub = env.hub
	t.Cleanup(env.hub.Stop)
	url := startServer(t, env)
	token := env.login(t)

	dial(t, url+"/ws", bearer(token))
	waitForClients(t, env, 1)

	second := dial(t, url+"/ws", bearer(token))
	requireClose(t, second, broadcast.CloseTryAgainLater)
}

func TestWebSocket_ShutdownClosesClients(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)

	ws := dial(t, url+"/ws", bearer(env.login(t)))
	waitForClients(t, env, 1)

	env.hub.Stop()

	closeErr := requireClose(t, ws, broadcast.CloseGoingAway)
	assert.Equal(t, broadcast.ReasonShutdown, closeErr.Text)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	url := startServer(t, env)
	header := bearer(env.login(t))
	header.Set("Origin", "https://evil.example")

	_, resp, err := gorillaws.DefaultDialer.Dial(url+"/ws", header)

	require.ErrorIs(t, err, gorillaws.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.hub.ClientCount())
}
