// Package proxy implements the request router of the infollama proxy.
//
// # Request lifecycle
//
// Every request not served by a local page goes through the same steps:
//
//  1. The bearer token is resolved to an Identity (auth.IdentityMiddleware).
//     A missing or unknown token resolves to the anonymous identity.
//  2. Only GET and POST are forwarded; anything else is a 405.
//  3. The access policy authorizes the identity for the endpoint (the path
//     without its leading slash). A rejection is a 403 {"error":"forbidden"}
//     and the upstream is never contacted.
//  4. GET is forwarded as a buffered call. For POST, ResolveMode inspects the
//     body once: "stream": false selects a buffered call, anything else a
//     streamed one. A body that is not JSON is a 400.
//  5. The upstream answer is relayed. Unreachable upstream → 500, upstream
//     5xx → 502; neither exposes upstream text. Other statuses pass through.
//  6. One access record is written to the EventLog and one set of metric
//     samples is recorded.
//
// # Local pages
//
//	GET  /info          embedded HTML console
//	GET  /info/ping     proxy, upstream and caller state (any caller)
//	POST /info/ping
//	GET  /info/device   host inventory (policy endpoint info/device)
//	GET  /info/ps       upstream api/ps with expires_in added (info/ps)
//	GET  /favicon.ico
//	GET  /robots.txt
//	GET  /metrics       Prometheus, when enabled
//
// These are recorded at the lowest severity and only reach the access log
// at verbosity ALL.
//
// # Log severity
//
// Read-only upstream calls (auth.IsReadOnly) are INFO. Every other accepted
// call, every rejection and every failure is ERROR. At PROMPT verbosity,
// generation calls carry a prompt excerpt in the detail column.
//
// # Streaming
//
// Streamed responses are written chunk by chunk and flushed after each
// write. The first chunk is read before the status line is sent, so an
// upstream that drops the connection before sending anything still yields
// a 500. A failure after data has been sent simply ends the response.
// A client that disconnects cancels the upstream request through the
// request context.
package proxy
