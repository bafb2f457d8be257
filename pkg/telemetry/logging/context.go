package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the caller's identity name.
	IdentityKey contextKey = "identity"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithIdentity adds the caller's identity name to the context.
func WithIdentity(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, IdentityKey, name)
}

// GetIdentity retrieves the identity name from the context.
func GetIdentity(ctx context.Context) string {
	if name, ok := ctx.Value(IdentityKey).(string); ok {
		return name
	}
	return ""
}

// FromContext returns logger enriched with the request fields found in ctx.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	fields := extractContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// extractContextFields extracts common fields from context for logging.
func extractContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if name := GetIdentity(ctx); name != "" {
		fields = append(fields, "identity", name)
	}

	return fields
}
