package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on upstream spans.
const (
	AttrEndpoint   = "infollama.endpoint"
	AttrMode       = "infollama.mode"
	AttrRequestID  = "infollama.request_id"
	AttrHTTPMethod = "http.request.method"
	AttrHTTPStatus = "http.response.status_code"
	AttrServerURL  = "url.full"
)

// UpstreamAttributes returns the attributes describing an upstream call.
func UpstreamAttributes(method, url, endpoint, mode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrServerURL, url),
		attribute.String(AttrEndpoint, endpoint),
		attribute.String(AttrMode, mode),
	}
}

// SetStatus records the HTTP status on span, marking 5xx as errors.
func SetStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
	if status >= 500 {
		span.SetStatus(codes.Error, "upstream server error")
	}
}

// RecordError records err on span and marks the span failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
