package metrics

import "github.com/prometheus/client_golang/prometheus"

// HeatmapMetrics covers thermal frame rendering.
type HeatmapMetrics struct {
	RenderDuration prometheus.Histogram
	ImageBytes     prometheus.Histogram
	Renders        *prometheus.CounterVec
}

func NewHeatmapMetrics(reg prometheus.Registerer) *HeatmapMetrics {
	m := &HeatmapMetrics{
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heatmap",
			Name:      "render_duration_seconds",
			Help:      "Time spent simulating, upsampling and encoding one heatmap.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		ImageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "heatmap",
			Name:      "image_bytes",
			Help:      "Size of encoded heatmap images.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 8),
		}),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heatmap",
			Name:      "renders_total",
			Help:      "Total number of heatmap renders, by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.RenderDuration, m.ImageBytes, m.Renders)
	return m
}
