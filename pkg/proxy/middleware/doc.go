// Package middleware provides HTTP middleware for cross-cutting concerns:
// request IDs, diagnostic logging, CORS, body size limits and panic
// recovery.
//
// # Middleware Chain
//
// The server assembles the chain outermost first:
//
//	Recovery → RequestID → RealIP (optional) → rate limit (optional) →
//	Logging → BodyLimit → CORS → router
//
// CORS sits closest to the router so that, when a CORS policy is set,
// OPTIONS preflights are answered with 204 before any authorization runs.
//
// # Request ID
//
// RequestIDMiddleware assigns a UUID to each request unless the client sent
// X-Request-ID:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored through the logging package so that every slog line and
// audit record for the request carries it.
//
// # Logging
//
// LoggingMiddleware emits process diagnostics through slog. It does not
// write the access log; the router does that because only it knows the
// identity and the log severity of the call. The wrapped ResponseWriter
// implements http.Flusher so streamed responses are delivered chunk by
// chunk.
//
// # CORS
//
// NewCORSConfig turns the configured policy string into a CORSConfig:
//
//	""                                  disabled
//	"*"                                 any origin
//	"http://a.example,http://b.example" listed origins only
package middleware
