package metrics

import "github.com/prometheus/client_golang/prometheus"

// HubMetrics holds Prometheus metrics for the WebSocket broadcast hub.
type HubMetrics struct {
	ConnectedClients  prometheus.Gauge
	Registrations     prometheus.Counter
	Rejections        *prometheus.CounterVec
	Evictions         *prometheus.CounterVec
	MessagesQueued    prometheus.Counter
	BroadcastDuration prometheus.Histogram
	SendDuration      prometheus.Histogram
	PingFailures      prometheus.Counter
	CommandDepth      prometheus.Gauge
}

// NewHubMetrics creates and registers hub metrics on the given registry.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	m := &HubMetrics{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "connected_clients",
			Help:      "Number of WebSocket clients currently registered with the hub.",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "registrations_total",
			Help:      "Total number of successful client registrations.",
		}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "rejections_total",
			Help:      "Total number of WebSocket connections rejected before registration, by reason.",
		}, []string{"reason"}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "evictions_total",
			Help:      "Total number of clients removed by the hub, by reason.",
		}, []string{"reason"}),
		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "messages_queued_total",
			Help:      "Total number of messages queued to client writers.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent fanning one message out to all clients.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "send_duration_seconds",
			Help:      "Time spent writing one message to a client socket.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "ping_failures_total",
			Help:      "Total number of failed keepalive pings.",
		}),
		CommandDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "command_channel_depth",
			Help:      "Number of commands waiting for the hub actor.",
		}),
	}

	reg.MustRegister(m.ConnectedClients, m.Registrations, m.Rejections, m.Evictions, m.MessagesQueued,
		m.BroadcastDuration, m.SendDuration, m.PingFailures, m.CommandDepth)
	return m
}
