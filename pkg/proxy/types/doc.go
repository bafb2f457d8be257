// Package types defines the JSON bodies the proxy reads or produces itself.
//
// Most traffic is relayed byte for byte and never decoded. The proxy only
// looks inside POST bodies to choose between a buffered and a streamed
// upstream call and, at PROMPT verbosity, to copy an excerpt of the prompt
// into the access log (GenerationRequest). It produces its own JSON for
// synthesized errors (ErrorResponse) and for the /info endpoints
// (PingResponse, ProcessList).
//
// Error bodies are intentionally small:
//
//	{"error":"forbidden"}
//	{"error":"upstream service unavailable","code":"upstream_unavailable"}
package types
