package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aquawing"

// Set bundles every collector family the ground station exports.
type Set struct {
	HTTP      *HTTPMetrics
	Hub       *HubMetrics
	Telemetry *TelemetryMetrics
	Heatmap   *HeatmapMetrics
	Redis     *RedisMetrics
}

// NewSet registers all collector families on reg.
func NewSet(reg prometheus.Registerer) *Set {
	return &Set{
		HTTP:      NewHTTPMetrics(reg),
		Hub:       NewHubMetrics(reg),
		Telemetry: NewTelemetryMetrics(reg),
		Heatmap:   NewHeatmapMetrics(reg),
		Redis:     NewRedisMetrics(reg),
	}
}

// NewRegistry returns a registry preloaded with runtime, process and build info collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format. Scrape errors are
// reported in the handler's own promhttp_* series.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry:          reg,
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}
