package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/Ahmedmecatronique/AquaWing/internal/platform/errors"
)

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", s.requireAuth)
	api.GET("/telemetry", s.handleTelemetry)
	api.GET("/status", s.handleStatus)
	api.GET("/thermal/stats", s.handleThermalStats)
}

func (s *Server) handleTelemetry(c echo.Context) error {
	sample, ok := s.telemetry.Latest()
	if !ok {
		return apperrors.NotFoundError("no telemetry published yet")
	}

	if err := c.JSON(http.StatusOK, sample); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type statusResponse struct {
	PublisherRunning bool    `json:"publisher_running"`
	Tick             int64   `json:"tick"`
	Clients          int     `json:"clients"`
	Flying           bool    `json:"flying"`
	CruiseSpeed      float64 `json:"cruise_speed"`
	RouteName        string  `json:"route_name,omitempty"`
	RouteWaypoints   int     `json:"route_waypoints"`
}

func (s *Server) handleStatus(c echo.Context) error {
	flight := s.flight.State()

	resp := statusResponse{
		PublisherRunning: s.telemetry.Running(),
		Tick:             s.telemetry.Tick(),
		Clients:          s.hub.ClientCount(),
		Flying:           flight.Flying,
		CruiseSpeed:      flight.CruiseSpeed,
	}
	if flight.Route != nil {
		resp.RouteName = flight.Route.Name
		resp.RouteWaypoints = len(flight.Route.Waypoints)
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleThermalStats(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.thermal.Stats()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
