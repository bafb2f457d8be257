// Package telemetry groups the proxy's observability packages.
//
// # Components
//
//   - logging: the access log (EventLog) and the slog process logger
//   - metrics: Prometheus request, access-decision and upstream metrics
//   - tracing: OpenTelemetry spans around upstream calls
//   - health: periodic upstream probe with outage logging
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Verbosity: cfg.LogLevel, Format: "text", RedactTokens: true})
//
//	events, err := logging.OpenEventLog(cfg.LogFile, verbosity, logger)
//	defer events.Close()
//
//	collector := metrics.NewCollector(&cfg.Metrics, prometheus.NewRegistry())
//
//	tracer, err := tracing.New(&cfg.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
// Metrics and tracing are off unless configured; their disabled forms are
// safe to call.
//
// # Token Protection
//
// The process logger redacts bearer tokens and credential-file tokens
// before they reach stderr. The access log never contains a token, only
// the identity name.
package telemetry
