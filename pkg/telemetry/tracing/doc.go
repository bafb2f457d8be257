// Package tracing provides OpenTelemetry tracing for upstream calls.
//
// Tracing is off unless an OTLP gRPC endpoint is configured. When on, every
// upstream call runs in a span and the W3C traceparent header is injected
// into the forwarded request, so the proxy hop shows up in the caller's
// trace when the caller sent one.
//
//	tracing:
//	  endpoint: "localhost:4317"
//	  sample_ratio: 0.25
//	  insecure: true
package tracing
