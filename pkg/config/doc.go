// Package config provides the proxy configuration snapshot.
//
// A Config is built exactly once at startup by Load and is read-only
// afterwards; components receive it by pointer and never modify it.
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from an optional YAML file
//  3. A dotenv file and INFOLLAMA_* environment variables
//  4. Command-line flags, passed as LoadOptions.Overrides
//  5. Normalization and validation (fails fast if invalid)
//
// # Environment Variables
//
//   - INFOLLAMA_BASE_URL overrides base_url
//   - INFOLLAMA_PORT overrides port
//   - INFOLLAMA_LOG_LEVEL overrides log_level
//   - INFOLLAMA_ANONYMOUS_ACCESS overrides anonymous_access
//
// # Example Configuration
//
//	base_url: "localhost:11434"
//	host: "0.0.0.0"
//	port: 11430
//	cors_policy: "*"
//	users_file: "users.conf"
//	log_file: "logs/proxy.log"
//	log_level: "INFO"
//	audit:
//	  path: "data/audit.db"
//	  retention_days: 30
//
// The upstream base URL is normalized: "localhost:11434/" becomes
// "http://localhost:11434".
package config
