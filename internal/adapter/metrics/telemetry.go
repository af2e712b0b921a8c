package metrics

import "github.com/prometheus/client_golang/prometheus"

// TelemetryMetrics covers the publisher loop and its sinks.
type TelemetryMetrics struct {
	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	Running      prometheus.Gauge
	SinkErrors   *prometheus.CounterVec
	Commands     *prometheus.CounterVec
}

func NewTelemetryMetrics(reg prometheus.Registerer) *TelemetryMetrics {
	m := &TelemetryMetrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "ticks_total",
			Help:      "Total number of telemetry samples published.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "tick_duration_seconds",
			Help:      "Time spent producing and publishing one sample.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "publisher_running",
			Help:      "1 while the telemetry publisher is running, 0 otherwise.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "sink_errors_total",
			Help:      "Total number of failed deliveries to secondary sinks.",
		}, []string{"sink"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "commands_total",
			Help:      "Total number of control commands received, by command and outcome.",
		}, []string{"cmd", "status"}),
	}

	reg.MustRegister(m.Ticks, m.TickDuration, m.Running, m.SinkErrors, m.Commands)
	return m
}
