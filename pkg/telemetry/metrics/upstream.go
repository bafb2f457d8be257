package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks the model server behind the proxy.
//
// Metrics:
//   - infollama_upstream_up: 1 when the last probe succeeded, else 0
//   - infollama_upstream_latency_seconds: time to upstream response headers
//   - infollama_upstream_errors_total: upstream failures by type
type UpstreamMetrics struct {
	health  prometheus.Gauge
	latency *prometheus.HistogramVec
	errors  *prometheus.CounterVec
}

// NewUpstreamMetrics creates and registers upstream metrics with the provided registry.
func NewUpstreamMetrics(namespace string, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_up",
			Help:      "Upstream health status (1=reachable, 0=unreachable)",
		}),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Time until upstream response headers in seconds",
				Buckets:   DefaultDurationBuckets,
			},
			[]string{"endpoint"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream errors by type",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(um.health, um.latency, um.errors)

	return um
}

// RecordLatency records time to response headers for an endpoint.
func (um *UpstreamMetrics) RecordLatency(endpoint string, latency time.Duration) {
	um.latency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordError increments the error counter for errorType.
func (um *UpstreamMetrics) RecordError(errorType string) {
	um.errors.WithLabelValues(errorType).Inc()
}

// UpdateHealth sets the health gauge.
func (um *UpstreamMetrics) UpdateHealth(healthy bool) {
	if healthy {
		um.health.Set(1)
	} else {
		um.health.Set(0)
	}
}
