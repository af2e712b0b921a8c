package domain

import (
	"context"
	"time"
)

type Waypoint struct {
	Lat float64  `json:"lat"`
	Lon float64  `json:"lon"`
	Alt *float64 `json:"alt,omitempty"`
}

type Route struct {
	Name       string     `json:"name"`
	Waypoints  []Waypoint `json:"points"`
	ReceivedAt time.Time  `json:"received_at"`
}

// FlightState is a snapshot of what the flight controller was last told.
type FlightState struct {
	Route       *Route  `json:"route,omitempty"`
	CruiseSpeed float64 `json:"cruise_speed"`
	Flying      bool    `json:"flying"`
}

// FlightController is the boundary to the vehicle. The ground station only
// issues commands; it never computes control outputs.
type FlightController interface {
	UploadRoute(ctx context.Context, route Route) error
	StartFlight(ctx context.Context) error
	Abort(ctx context.Context) error
	SetCruiseSpeed(ctx context.Context, metersPerSecond float64) error
	State() FlightState
}
