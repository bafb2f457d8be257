package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks proxied requests.
//
// Metrics:
//   - infollama_requests_total: request count by endpoint, method, status
//   - infollama_request_duration_seconds: request duration by endpoint and mode
//   - infollama_response_size_bytes: bytes sent to clients by endpoint
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sizeBytes       *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests served by the proxy",
			},
			[]string{"endpoint", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   DefaultDurationBuckets,
			},
			[]string{"endpoint", "mode"},
		),

		sizeBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_size_bytes",
				Help:      "Size of responses sent to clients in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 10), // 256B to 64MB
			},
			[]string{"endpoint"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.sizeBytes,
	)

	return rm
}

// Record records one completed request.
func (rm *RequestMetrics) Record(endpoint, method, mode, status string, duration time.Duration, bytes int64) {
	rm.requestsTotal.WithLabelValues(endpoint, method, status).Inc()
	rm.requestDuration.WithLabelValues(endpoint, mode).Observe(duration.Seconds())
	if bytes > 0 {
		rm.sizeBytes.WithLabelValues(endpoint).Observe(float64(bytes))
	}
}
