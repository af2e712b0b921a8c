package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/simulator"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commandFixture struct {
	svc     *CommandService
	flight  *simulator.FlightController
	model   *simulator.PositionModel
	metrics *metrics.TelemetryMetrics
}

func newCommandFixture() commandFixture {
	model := simulator.NewPositionModel()
	flight := simulator.NewFlightController(model)
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	m := metrics.NewTelemetryMetrics(prometheus.NewRegistry())
	return commandFixture{
		svc:     NewCommandService(flight, clock, m),
		flight:  flight,
		model:   model,
		metrics: m,
	}
}

func (f commandFixture) handle(t *testing.T, raw string) map[string]any {
	t.Helper()
	reply := f.svc.Handle(context.Background(), domain.Identity("admin"), []byte(raw))
	var out map[string]any
	require.NoError(t, json.Unmarshal(reply, &out))
	return out
}

func TestHandle_SendRoute(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"send_route","name":"m1","points":[{"lat":1,"lon":2},{"lat":3,"lon":4,"alt":12}]}`)

	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, "send_route", reply["cmd"])
	assert.Equal(t, "ok", reply["status"])
	assert.Equal(t, "m1", reply["name"])
	assert.Equal(t, 2.0, reply["count"])

	state := f.flight.State()
	require.NotNil(t, state.Route)
	assert.Equal(t, "m1", state.Route.Name)
	require.Len(t, state.Route.Waypoints, 2)
	require.NotNil(t, state.Route.Waypoints[1].Alt)
	assert.Equal(t, 12.0, *state.Route.Waypoints[1].Alt)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Commands.WithLabelValues("send_route", "ok")))
}

func TestHandle_SendRouteDefaultsName(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"send_route","points":[{"lat":1,"lon":2}]}`)

	assert.Equal(t, "mission_1700000000", reply["name"])
	assert.Equal(t, 1.0, reply["count"])
}

func TestHandle_SendRouteRejectsEmptyRoute(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"send_route","name":"empty","points":[]}`)

	assert.Equal(t, "error", reply["type"])
	assert.Contains(t, reply["msg"], "send_route")
	assert.Nil(t, f.flight.State().Route)
}

func TestHandle_StartFlight(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"start_flight"}`)

	assert.Equal(t, map[string]any{"type": "ack", "cmd": "start_flight", "status": "ok"}, reply)
	assert.True(t, f.flight.State().Flying)
}

func TestHandle_Abort(t *testing.T) {
	f := newCommandFixture()
	f.handle(t, `{"cmd":"start_flight"}`)

	reply := f.handle(t, `{"cmd":"abort"}`)

	assert.Equal(t, map[string]any{"type": "ack", "cmd": "abort", "status": "ok"}, reply)
	assert.False(t, f.flight.State().Flying)
}

func TestHandle_FlightCommandsKeepTelemetryFlowing(t *testing.T) {
	hub := &mockBroadcaster{}
	model := simulator.NewPositionModel()
	clock := clockwork.NewFakeClock()
	m := metrics.NewTelemetryMetrics(prometheus.NewRegistry())
	p := NewPublisher(hub, model, clock, 500*time.Millisecond, m)
	t.Cleanup(func() { p.Stop() })
	svc := NewCommandService(simulator.NewFlightController(model), clock, m)

	require.True(t, p.Start())
	waitForTicker(t, clock)

	for _, raw := range []string{`{"cmd":"start_flight"}`, `{"cmd":"abort"}`} {
		svc.Handle(context.Background(), domain.Identity("pilot"), []byte(raw))
	}

	assert.True(t, p.Running())
	for i := 1; i <= 2; i++ {
		clock.Advance(500 * time.Millisecond)
		assert.Eventually(t, func() bool { return hub.count() == i }, time.Second, 5*time.Millisecond)
	}
}

func TestHandle_SetSpeed(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"set_speed","value":4.5}`)

	assert.Equal(t, "ack", reply["type"])
	assert.Equal(t, "set_speed", reply["cmd"])
	assert.Equal(t, 4.5, reply["value"])
	assert.Equal(t, 4.5, f.model.Speed())
}

func TestHandle_SetSpeedValidation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing value", `{"cmd":"set_speed"}`},
		{"zero", `{"cmd":"set_speed","value":0}`},
		{"negative", `{"cmd":"set_speed","value":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCommandFixture()

			reply := f.handle(t, tt.raw)

			assert.Equal(t, "error", reply["type"])
			assert.Equal(t, 2.5, f.model.Speed())
		})
	}
}

func TestHandle_UnknownCommand(t *testing.T) {
	f := newCommandFixture()

	reply := f.handle(t, `{"cmd":"barrel_roll"}`)

	assert.Equal(t, map[string]any{"type": "error", "msg": "Unknown cmd: barrel_roll"}, reply)
}

func TestHandle_InvalidJSON(t *testing.T) {
	for _, raw := range []string{`not json`, `{"cmd":`, `[1,2]`} {
		f := newCommandFixture()

		reply := f.handle(t, raw)

		assert.Equal(t, map[string]any{"type": "error", "msg": "Invalid JSON"}, reply, raw)
	}
}
