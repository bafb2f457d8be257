package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"toutjavascript/infollama/pkg/config"
)

// Collector owns every Prometheus metric of the proxy. All methods are safe
// for concurrent use and are no-ops when metrics are disabled, so callers
// never need to check.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	upstreamMetrics *UpstreamMetrics
	accessMetrics   *AccessMetrics

	// Bounds the endpoint label; paths are caller-controlled.
	cardinalityLimiter *CardinalityLimiter
}

// DefaultDurationBuckets covers short probes up to long generations.
var DefaultDurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// NewCollector creates a collector registering into registry. A nil registry
// gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(128),
	}

	c.requestMetrics = NewRequestMetrics(cfg.Namespace, registry)
	c.upstreamMetrics = NewUpstreamMetrics(cfg.Namespace, registry)
	c.accessMetrics = NewAccessMetrics(cfg.Namespace, registry)

	return c
}

// Enabled reports whether metrics are recorded.
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordRequest records a completed proxied request.
//
// Parameters:
//   - endpoint: normalized endpoint (e.g., "api/chat")
//   - method: HTTP method
//   - mode: "buffered", "streamed" or "local"
//   - status: HTTP status sent to the client
//   - duration: total time spent serving the request
//   - bytes: response body bytes sent to the client
func (c *Collector) RecordRequest(endpoint, method, mode string, status int, duration time.Duration, bytes int64) {
	if !c.Enabled() {
		return
	}

	if !c.cardinalityLimiter.Allow(endpoint) {
		endpoint = "other"
	}

	c.requestMetrics.Record(endpoint, method, mode, strconv.Itoa(status), duration, bytes)
}

// RecordAccessDecision records the outcome of an authorization check.
func (c *Collector) RecordAccessDecision(class string, allowed bool) {
	if !c.Enabled() {
		return
	}
	c.accessMetrics.RecordDecision(class, allowed)
}

// RecordUpstreamLatency records the time until upstream response headers.
func (c *Collector) RecordUpstreamLatency(endpoint string, latency time.Duration) {
	if !c.Enabled() {
		return
	}
	if !c.cardinalityLimiter.Allow(endpoint) {
		endpoint = "other"
	}
	c.upstreamMetrics.RecordLatency(endpoint, latency)
}

// RecordUpstreamError records an upstream failure.
//
// errorType is one of "unavailable", "server_error" or "stream_interrupted".
func (c *Collector) RecordUpstreamError(errorType string) {
	if !c.Enabled() {
		return
	}
	c.upstreamMetrics.RecordError(errorType)
}

// UpdateUpstreamHealth sets the upstream health gauge.
func (c *Collector) UpdateUpstreamHealth(healthy bool) {
	if !c.Enabled() {
		return
	}
	c.upstreamMetrics.UpdateHealth(healthy)
}

// RecordAuditDropped counts access records dropped by the audit mirror.
func (c *Collector) RecordAuditDropped() {
	if !c.Enabled() {
		return
	}
	c.accessMetrics.auditDropped.Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a label value may be used. Values already seen are
// always allowed; new values are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}
