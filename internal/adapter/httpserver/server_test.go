package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/app"
	"github.com/Ahmedmecatronique/AquaWing/internal/auth"
	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/config"
	"github.com/Ahmedmecatronique/AquaWing/internal/simulator"
)

const (
	testUser     = "admin"
	testPassword = "aquawing-test"
)

type fakeTelemetry struct {
	mu      sync.Mutex
	sample  *domain.TelemetrySample
	running bool
	tick    int64
}

func (f *fakeTelemetry) Latest() (domain.TelemetrySample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sample == nil {
		return domain.TelemetrySample{}, false
	}
	return *f.sample, true
}

func (f *fakeTelemetry) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeTelemetry) Tick() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick
}

func (f *fakeTelemetry) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return true
}

func (f *fakeTelemetry) publish(s domain.TelemetrySample, tick int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sample = &s
	f.tick = tick
}

type testEnv struct {
	srv        *Server
	cfg        *config.Config
	hub        *broadcast.Hub
	sessions   *auth.SessionManager
	telemetry  *fakeTelemetry
	flight     *simulator.FlightController
	hubMetrics *metrics.HubMetrics
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "development",
		Port:                    "0",
		AppURL:                  "http://localhost:8080",
		SessionSecret:           "test-secret-key-32-bytes-long!!!",
		SessionTimeout:          time.Hour,
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     10,
		ConnectionRatePerSecond: 100,
		ConnectionRateBurst:     100,
		HeatmapSize:             64,
		HeatmapTempMin:          18,
		HeatmapTempMax:          45,
		HeatmapQuality:          85,
	}
}

func newTestEnv(t *testing.T, opts ...func(*config.Config, *Deps)) *testEnv {
	t.Helper()

	cfg := testConfig()
	reg := prometheus.NewRegistry()
	clock := clockwork.NewRealClock()

	hubMetrics := metrics.NewHubMetrics(reg)
	hub := broadcast.NewHub(broadcast.DefaultConfig(), clock, hubMetrics)
	t.Cleanup(hub.Stop)

	sessions := auth.NewSessionManager(auth.NewMemoryStore(), clock, cfg.SessionTimeout)
	verifier, err := auth.DevelopmentVerifier(map[string]string{testUser: testPassword})
	require.NoError(t, err)

	telemetry := &fakeTelemetry{}
	model := simulator.NewPositionModel()
	flight := simulator.NewFlightController(model)
	telemetryMetrics := metrics.NewTelemetryMetrics(reg)

	deps := Deps{
		Sessions:       sessions,
		Credentials:    verifier,
		Hub:            hub,
		Telemetry:      telemetry,
		Commands:       app.NewCommandService(flight, clock, telemetryMetrics),
		Flight:         flight,
		Thermal:        simulator.NewThermalSimulator(simulator.DefaultThermalParams(), 42),
		Clock:          clock,
		Registry:       reg,
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
		HubMetrics:     hubMetrics,
		HeatmapMetrics: metrics.NewHeatmapMetrics(reg),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	return &testEnv{
		srv:        NewServer(cfg, deps),
		cfg:        cfg,
		hub:        hub,
		sessions:   sessions,
		telemetry:  telemetry,
		flight:     flight,
		hubMetrics: hubMetrics,
	}
}

func withConfig(fn func(*config.Config)) func(*config.Config, *Deps) {
	return func(cfg *config.Config, _ *Deps) { fn(cfg) }
}

func withHealthChecks(checks ...HealthCheck) func(*config.Config, *Deps) {
	return func(_ *config.Config, d *Deps) { d.HealthChecks = checks }
}

// do runs a request through the full router.
func (e *testEnv) do(t *testing.T, method, target string, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	session, err := e.sessions.Create(context.Background(), testUser)
	require.NoError(t, err)
	return session.Token
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// cookies turns a response's Set-Cookie headers into a request Cookie header.
func cookies(rec *httptest.ResponseRecorder) http.Header {
	h := http.Header{}
	for _, c := range rec.Result().Cookies() {
		h.Add("Cookie", c.Name+"="+c.Value)
	}
	return h
}
