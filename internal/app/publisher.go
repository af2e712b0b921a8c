package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ahmedmecatronique/AquaWing/internal/adapter/metrics"
	"github.com/Ahmedmecatronique/AquaWing/internal/broadcast"
	"github.com/Ahmedmecatronique/AquaWing/internal/domain"
	"github.com/Ahmedmecatronique/AquaWing/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

const DefaultTelemetryInterval = 500 * time.Millisecond

type telemetryBroadcaster interface {
	Broadcast(data []byte) (broadcast.Result, error)
}

type positionSource interface {
	Sample(tick int64, now time.Time) domain.TelemetrySample
}

// Publisher produces one telemetry sample per interval and hands it to the
// hub and any secondary sinks. The tick counter survives Stop/Start so the
// trajectory resumes where it left off.
type Publisher struct {
	hub      telemetryBroadcaster
	model    positionSource
	clock    clockwork.Clock
	interval time.Duration
	metrics  *metrics.TelemetryMetrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	sinksMu sync.RWMutex
	sinks   map[string]domain.TelemetrySink

	tick   atomic.Int64
	latest atomic.Pointer[domain.TelemetrySample]
}

func NewPublisher(hub telemetryBroadcaster, model positionSource, clock clockwork.Clock, interval time.Duration, m *metrics.TelemetryMetrics) *Publisher {
	if interval <= 0 {
		interval = DefaultTelemetryInterval
	}
	return &Publisher{
		hub:      hub,
		model:    model,
		sinks:    make(map[string]domain.TelemetrySink),
		clock:    clock,
		interval: interval,
		metrics:  m,
	}
}

// AddSink registers a secondary destination.
func (p *Publisher) AddSink(name string, sink domain.TelemetrySink) {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	p.sinks[name] = sink
}

// Start launches the publishing loop. It reports false if the loop was
// already running, in which case nothing changes.
func (p *Publisher) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go p.run(ctx, done)

	p.metrics.Running.Set(1)
	slog.Info("Telemetry publisher started", "interval", p.interval, "tick", p.tick.Load())
	return true
}

// Stop ends the loop before its next tick. A tick already in progress runs to
// completion; Stop returns once it has. It reports false if not running.
func (p *Publisher) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return false
	}

	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil

	p.metrics.Running.Set(0)
	slog.Info("Telemetry publisher stopped", "tick", p.tick.Load())
	return true
}

func (p *Publisher) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Tick returns the number of samples published so far.
func (p *Publisher) Tick() int64 {
	return p.tick.Load()
}

// Latest returns the most recently published sample.
func (p *Publisher) Latest() (domain.TelemetrySample, bool) {
	s := p.latest.Load()
	if s == nil {
		return domain.TelemetrySample{}, false
	}
	return *s, true
}

func (p *Publisher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			p.publish(context.WithoutCancel(ctx))
		}
	}
}

func (p *Publisher) publish(ctx context.Context) {
	start := p.clock.Now()
	ctx = correlation.WithID(ctx, correlation.NewID())

	tick := p.tick.Add(1)
	sample := p.model.Sample(tick, start)

	data, err := json.Marshal(sample)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal telemetry", "tick", tick, "error", err)
		return
	}

	res, err := p.hub.Broadcast(data)
	if err != nil {
		slog.WarnContext(ctx, "Telemetry broadcast failed", "tick", tick, "error", err)
	}

	p.sinksMu.RLock()
	sinks := make(map[string]domain.TelemetrySink, len(p.sinks))
	for name, sink := range p.sinks {
		sinks[name] = sink
	}
	p.sinksMu.RUnlock()

	for name, sink := range sinks {
		if err := sink.PublishTelemetry(ctx, data); err != nil {
			p.metrics.SinkErrors.WithLabelValues(name).Inc()
			slog.WarnContext(ctx, "Telemetry sink failed", "sink", name, "tick", tick, "error", err)
		}
	}

	p.latest.Store(&sample)
	p.metrics.Ticks.Inc()
	p.metrics.TickDuration.Observe(p.clock.Since(start).Seconds())
	slog.DebugContext(ctx, "Telemetry published", "tick", tick, "delivered", res.Delivered, "evicted", res.Evicted)
}
