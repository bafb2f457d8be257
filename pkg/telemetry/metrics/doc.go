// Package metrics exposes Prometheus metrics for the proxy.
//
// The Collector records request counts and durations per endpoint, upstream
// latency, errors and health, authorization outcomes and audit queue drops.
// The endpoint label is capped so arbitrary client paths cannot blow up the
// series count; overflow is reported as "other".
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Metrics, nil)
//	router.Handle("/metrics", collector.Handler())
package metrics
