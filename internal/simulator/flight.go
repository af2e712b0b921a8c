package simulator

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
)

// FlightController records commands instead of forwarding them to a vehicle.
// Speed changes are reflected in the position model.
type FlightController struct {
	model *PositionModel

	mu     sync.RWMutex
	route  *domain.Route
	flying bool
}

var _ domain.FlightController = (*FlightController)(nil)

func NewFlightController(model *PositionModel) *FlightController {
	return &FlightController{model: model}
}

func (f *FlightController) UploadRoute(ctx context.Context, route domain.Route) error {
	if len(route.Waypoints) == 0 {
		return domain.ErrInvalidRoute
	}

	route.Waypoints = append([]domain.Waypoint(nil), route.Waypoints...)

	f.mu.Lock()
	f.route = &route
	f.mu.Unlock()

	slog.InfoContext(ctx, "Route uploaded", "name", route.Name, "waypoints", len(route.Waypoints))
	return nil
}

func (f *FlightController) StartFlight(ctx context.Context) error {
	f.mu.Lock()
	f.flying = true
	f.mu.Unlock()

	slog.InfoContext(ctx, "Flight started")
	return nil
}

func (f *FlightController) Abort(ctx context.Context) error {
	f.mu.Lock()
	f.flying = false
	f.mu.Unlock()

	slog.WarnContext(ctx, "Flight aborted")
	return nil
}

func (f *FlightController) SetCruiseSpeed(ctx context.Context, metersPerSecond float64) error {
	if metersPerSecond <= 0 || math.IsNaN(metersPerSecond) || math.IsInf(metersPerSecond, 0) {
		return domain.ErrInvalidSpeed
	}
	f.model.SetSpeed(metersPerSecond)

	slog.InfoContext(ctx, "Cruise speed set", "speed", metersPerSecond)
	return nil
}

func (f *FlightController) State() domain.FlightState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	state := domain.FlightState{
		CruiseSpeed: f.model.Speed(),
		Flying:      f.flying,
	}
	if f.route != nil {
		r := *f.route
		state.Route = &r
	}
	return state
}
