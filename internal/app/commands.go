package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/jonboulle/clockwork"
)

const (
	CmdSendRoute   = "send_route"
	CmdStartFlight = "start_flight"
	CmdAbort       = "abort"
	CmdSetSpeed    = "set_speed"
)

// Ack confirms that a command was applied.
type Ack struct {
	Type   string   `json:"type"`
	Cmd    string   `json:"cmd"`
	Status string   `json:"status"`
	Name   string   `json:"name,omitempty"`
	Count  *int     `json:"count,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// ErrorReply is sent to the issuing client when a command cannot be applied.
type ErrorReply struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type commandEnvelope struct {
	Cmd    string            `json:"cmd"`
	Name   string            `json:"name"`
	Points []domain.Waypoint `json:"points"`
	Value  *float64          `json:"value"`
}

// CommandService applies operator commands to the flight controller. Replies
// go only to the issuing client; the telemetry stream is never touched, so one
// client cannot silence it for the others.
type CommandService struct {
	flight  domain.FlightController
	clock   clockwork.Clock
	metrics *metrics.TelemetryMetrics
}

func NewCommandService(flight domain.FlightController, clock clockwork.Clock, m *metrics.TelemetryMetrics) *CommandService {
	return &CommandService{flight: flight, clock: clock, metrics: m}
}

// Handle decodes one inbound frame, applies it, and returns the encoded reply.
func (s *CommandService) Handle(ctx context.Context, identity domain.Identity, raw []byte) []byte {
	var env commandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.metrics.Commands.WithLabelValues("invalid", "error").Inc()
		slog.DebugContext(ctx, "Malformed command", "user", string(identity), "error", err)
		return encodeReply(ErrorReply{Type: "error", Msg: "Invalid JSON"})
	}

	slog.InfoContext(ctx, "Command received", "cmd", env.Cmd, "user", string(identity))

	var (
		ack Ack
		err error
	)
	switch env.Cmd {
	case CmdSendRoute:
		ack, err = s.sendRoute(ctx, env)
	case CmdStartFlight:
		ack, err = s.startFlight(ctx)
	case CmdAbort:
		ack, err = s.abort(ctx)
	case CmdSetSpeed:
		ack, err = s.setSpeed(ctx, env)
	default:
		s.metrics.Commands.WithLabelValues("unknown", "error").Inc()
		return encodeReply(ErrorReply{Type: "error", Msg: "Unknown cmd: " + env.Cmd})
	}

	if err != nil {
		s.metrics.Commands.WithLabelValues(env.Cmd, "error").Inc()
		slog.WarnContext(ctx, "Command rejected", "cmd", env.Cmd, "user", string(identity), "error", err)
		return encodeReply(ErrorReply{Type: "error", Msg: fmt.Sprintf("%s: %v", env.Cmd, err)})
	}

	s.metrics.Commands.WithLabelValues(env.Cmd, "ok").Inc()
	return encodeReply(ack)
}

func (s *CommandService) sendRoute(ctx context.Context, env commandEnvelope) (Ack, error) {
	now := s.clock.Now()
	name := env.Name
	if name == "" {
		name = fmt.Sprintf("mission_%d", now.Unix())
	}

	route := domain.Route{Name: name, Waypoints: env.Points, ReceivedAt: now}
	if err := s.flight.UploadRoute(ctx, route); err != nil {
		return Ack{}, err
	}

	count := len(env.Points)
	return Ack{Type: "ack", Cmd: CmdSendRoute, Status: "ok", Name: name, Count: &count}, nil
}

func (s *CommandService) startFlight(ctx context.Context) (Ack, error) {
	if err := s.flight.StartFlight(ctx); err != nil {
		return Ack{}, err
	}
	return Ack{Type: "ack", Cmd: CmdStartFlight, Status: "ok"}, nil
}

func (s *CommandService) abort(ctx context.Context) (Ack, error) {
	if err := s.flight.Abort(ctx); err != nil {
		return Ack{}, err
	}
	return Ack{Type: "ack", Cmd: CmdAbort, Status: "ok"}, nil
}

func (s *CommandService) setSpeed(ctx context.Context, env commandEnvelope) (Ack, error) {
	if env.Value == nil {
		return Ack{}, errors.New("value is required")
	}
	if err := s.flight.SetCruiseSpeed(ctx, *env.Value); err != nil {
		return Ack{}, err
	}
	value := *env.Value
	return Ack{Type: "ack", Cmd: CmdSetSpeed, Status: "ok", Value: &value}, nil
}

func encodeReply(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reachable with non-finite floats, which are rejected upstream.
		return []byte(`{"type":"error","msg":"internal error"}`)
	}
	return data
}
