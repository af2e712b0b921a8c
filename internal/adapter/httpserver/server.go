package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	gorillaws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/websocket"
	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/config"
)

type sessionService interface {
	Create(ctx context.Context, owner domain.Identity) (domain.Session, error)
	Validate(ctx context.Context, token string) (domain.Identity, error)
	Destroy(ctx context.Context, token string) error
	ActiveSessions(ctx context.Context) (int, error)
	Timeout() time.Duration
}

type credentialVerifier interface {
	Verify(username, password string) (domain.Identity, error)
}

type clientHub interface {
	Register(conn broadcast.Conn, identity domain.Identity) error
	Unregister(conn broadcast.Conn)
	Disconnect(conn broadcast.Conn, code int, reason string) error
	Send(conn broadcast.Conn, data []byte) error
	ClientCount() int
	Running() bool
}

type telemetrySource interface {
	Latest() (domain.TelemetrySample, bool)
	Running() bool
	Tick() int64
}

type commandHandler interface {
	Handle(ctx context.Context, identity domain.Identity, raw []byte) []byte
}

type thermalSource interface {
	NextFrame() (domain.ThermalFrame, float64)
	Stats() domain.ThermalStats
}

// Deps are the collaborators the HTTP layer drives. Registry, metrics and
// health checks are optional.
type Deps struct {
	Sessions    sessionService
	Credentials credentialVerifier
	Hub         clientHub
	Telemetry   telemetrySource
	Commands    commandHandler
	Flight      domain.FlightController
	Thermal     thermalSource
	Clock       clockwork.Clock

	Registry       *prometheus.Registry
	HTTPMetrics    *metrics.HTTPMetrics
	HubMetrics     *metrics.HubMetrics
	HeatmapMetrics *metrics.HeatmapMetrics
	HealthChecks   []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	sessions    sessionService
	credentials credentialVerifier
	hub         clientHub
	telemetry   telemetrySource
	commands    commandHandler
	flight      domain.FlightController
	thermal     thermalSource

	cookieStore *sessions.CookieStore
	limits      *ConnectionLimits
	upgrader    gorillaws.Upgrader

	registry       *prometheus.Registry
	httpMetrics    *metrics.HTTPMetrics
	hubMetrics     *metrics.HubMetrics
	heatmapMetrics *metrics.HeatmapMetrics
	healthChecks   []HealthCheck
	startTime      time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:        e,
		config:      cfg,
		clock:       clock,
		sessions:    deps.Sessions,
		credentials: deps.Credentials,
		hub:         deps.Hub,
		telemetry:   deps.Telemetry,
		commands:    deps.Commands,
		flight:      deps.Flight,
		thermal:     deps.Thermal,
		cookieStore: setupCookieStore(cfg),
		limits: NewConnectionLimits(clock, cfg.MaxWebSocketConnections, cfg.MaxConnectionsPerIP,
			cfg.ConnectionRatePerSecond, cfg.ConnectionRateBurst),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     websocket.NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()),
		},
		registry:       deps.Registry,
		httpMetrics:    deps.HTTPMetrics,
		hubMetrics:     deps.HubMetrics,
		heatmapMetrics: deps.HeatmapMetrics,
		healthChecks:   deps.HealthChecks,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked WebSocket connections are not
// tracked by echo and are closed by the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests and embedders drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Session cookie
const (
	sessionName     = "aquawing-session"
	sessionKeyToken = "token"
)

func setupCookieStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTimeout.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
