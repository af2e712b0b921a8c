package metrics

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests that hit no registered route, keeping the
// route label bounded.
const unmatchedRoute = "unmatched"

// HTTPMetrics tracks the request/response API. Probes, the scrape endpoint
// and WebSocket upgrades are excluded.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	labels := []string{"method", "route", "status_code"}
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, labels),
		// /thermal encodes a JPEG per request, hence the long tail.
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, labels),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of HTTP requests currently being processed.",
		}),
	}

	reg.MustRegister(m.Requests, m.Duration, m.InFlight)
	return m
}

func untracked(route string) bool {
	return route == "/metrics" || route == "/health" ||
		strings.HasPrefix(route, "/health/") || strings.HasPrefix(route, "/ws")
}

// Middleware records request count and latency per route. It must run
// outside the error handling middleware so that the final status is seen.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if untracked(route) {
				return next(c)
			}
			if route == "" {
				route = unmatchedRoute
			}

			m.InFlight.Inc()
			timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
				m.InFlight.Dec()
				method := c.Request().Method
				status := strconv.Itoa(c.Response().Status)
				m.Duration.WithLabelValues(method, route, status).Observe(v)
				m.Requests.WithLabelValues(method, route, status).Inc()
			}))
			defer timer.ObserveDuration()

			return next(c)
		}
	}
}
