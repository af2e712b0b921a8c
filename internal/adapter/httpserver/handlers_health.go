package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ahmedmecatronique/AquaWing/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health", s.handleHealthSummary)
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	return s.respondHealth(c, startupProbeTimeout)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	return s.respondHealth(c, readinessProbeTimeout)
}

type healthReport struct {
	Status      string            `json:"status"`
	FailedCheck string            `json:"failed_check,omitempty"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// respondHealth runs every check, even after a failure, so operators see
// the whole picture. The first failing check is named in failed_check.
func (s *Server) respondHealth(c echo.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()

	report := healthReport{Status: "ready"}
	status := http.StatusOK
	if len(s.healthChecks) > 0 {
		report.Checks = make(map[string]string, len(s.healthChecks))
	}

	for _, hc := range s.healthChecks {
		err := hc.Check(ctx)
		if err == nil {
			report.Checks[hc.Name] = "ok"
			continue
		}

		report.Checks[hc.Name] = err.Error()
		if report.FailedCheck == "" {
			report.Status = "unhealthy"
			report.FailedCheck = hc.Name
			status = http.StatusServiceUnavailable
			slog.WarnContext(ctx, "Health check failed", "check", hc.Name, "error", err)
		}
	}

	if err := c.JSON(status, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}

// handleHealthSummary reports connected clients and live sessions for
// operators. It never fails; a session count error is reported as -1.
func (s *Server) handleHealthSummary(c echo.Context) error {
	sessions, err := s.sessions.ActiveSessions(c.Request().Context())
	if err != nil {
		sessions = -1
	}

	response := map[string]any{
		"ok":              s.hub.Running(),
		"ws":              s.hub.ClientCount(),
		"active_sessions": sessions,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}
