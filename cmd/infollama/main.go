// Infollama is a local reverse proxy in front of an Ollama model server.
//
// It adds per-token access control and an access log to the model API:
//   - Anonymous callers reach read-only endpoints only
//   - Users may generate and chat, admins may also manage models
//   - Every request is written to a text access log, optionally mirrored
//     to SQLite
//   - Generation responses stream through unchanged
//
// Usage:
//
//	# Start the proxy with defaults (127.0.0.1:11430 -> localhost:11434)
//	infollama run
//
//	# Listen on the LAN and log prompts
//	infollama run --host 0.0.0.0 --log-level PROMPT
//
//	# Generate a token for a new user
//	infollama users token --type user --name alice
//
//	# Check the credential file
//	infollama users check
//
//	# Show version information
//	infollama version
package main

import (
	"os"

	"toutjavascript/infollama/pkg/cli"
)

func main() {
	os.Exit(cli.ExitCode(Execute()))
}
