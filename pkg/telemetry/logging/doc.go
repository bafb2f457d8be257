// Package logging provides the process logger and the access log.
//
// # Process Logs
//
// Diagnostics go through log/slog, as JSON or text on stderr. The slog level
// follows the access-log verbosity:
//
//	NEVER   error
//	ERROR   warn
//	INFO    info
//	PROMPT  info
//	ALL     debug
//
// Bearer and proxy tokens are redacted from attributes when RedactTokens is set.
//
// # Access Log
//
// EventLog appends one line per request to a file opened in append mode:
//
//	192.168.1.20 - alice [19/Oct/2026 14:03:11] "POST /api/chat HTTP/1.1" 200	model=llama3
//
// A record carries a severity and is written only when the severity does not
// exceed the configured verbosity. Registered sinks (the SQLite audit mirror)
// receive every written record.
package logging
