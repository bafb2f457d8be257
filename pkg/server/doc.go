// Package server runs the proxy's HTTP listener.
//
// The server binds the configured host and port, wraps the proxy router in
// the middleware chain and shuts down gracefully when its context is
// canceled.
//
// # Basic Usage
//
//	router, err := proxy.NewRouter(state)
//	if err != nil {
//	    return err
//	}
//
//	srv := server.NewServer(cfg, router, logger)
//	if err := srv.Listen(); err != nil {
//	    return err // port in use, bad host
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start calls Listen itself when it has not been called, but calling it
// first lets the caller report a bind failure before logging that the proxy
// is up.
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: turns panics into a 500 JSON error
//  2. RequestID: assigns or propagates X-Request-ID
//  3. RealIP: only with trust_proxy_headers, takes the client IP from
//     X-Forwarded-For or X-Real-IP
//  4. Rate limit: only with rate_limit_per_minute, per client IP, answers 429
//  5. Tracing: joins the caller's W3C trace context
//  6. Logging: diagnostic request log on the process logger
//  7. BodyLimit: caps inbound bodies at max_body_bytes
//  8. CORS: per cors_policy, answers preflight OPTIONS with 204
//
// # Graceful Shutdown
//
// On cancellation the server stops accepting connections and waits up to
// shutdown_timeout for in-flight requests, including open streams.
package server
