package detector

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	Images         *prometheus.CounterVec
	DecodeFailures *prometheus.CounterVec
	Detections     *prometheus.CounterVec
	Suppressed     prometheus.Counter
	Duration       prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates the collectors and registers them on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dms",
			Name:      "images_processed_total",
			Help:      "Images processed, by outcome.",
		}, []string{"status"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dms",
			Name:      "decode_failures_total",
			Help:      "Model outputs discarded for a malformed tensor.",
		}, []string{"model"}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dms",
			Name:      "fused_detections_total",
			Help:      "Detections kept after fusion, by canonical class.",
		}, []string{"class"}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dms",
			Name:      "suppressed_detections_total",
			Help:      "Detections removed as duplicates during fusion.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dms",
			Name:      "image_duration_seconds",
			Help:      "Time to process one image.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.Images, m.DecodeFailures, m.Detections, m.Suppressed, m.Duration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeImage(ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.Images.WithLabelValues(status).Inc()
	m.Duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeDecodeFailure(model string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(model).Inc()
}

func (m *Metrics) observeFusion(counts map[string]int, suppressed int) {
	if m == nil {
		return
	}
	for class, n := range counts {
		m.Detections.WithLabelValues(class).Add(float64(n))
	}
	m.Suppressed.Add(float64(suppressed))
}
