package config

import "time"

// Config is the immutable snapshot of proxy settings. It is built once at
// startup by Load and handed to every component by pointer; nothing mutates
// it afterwards.
type Config struct {
	// UpstreamBaseURL is the model-serving API the proxy forwards to.
	// After Load it always carries a scheme and never a trailing slash.
	// Default: "http://localhost:11434"
	UpstreamBaseURL string `yaml:"base_url"`

	// BindHost is the interface the proxy listens on.
	// Use "0.0.0.0" to allow LAN access.
	// Default: "127.0.0.1"
	BindHost string `yaml:"host"`

	// BindPort is the TCP port the proxy listens on.
	// Default: 11430
	BindPort int `yaml:"port"`

	// CORSPolicy controls cross-origin access.
	//   ""    CORS disabled (no headers, OPTIONS is not special)
	//   "*"   any origin
	//   other comma-separated list of allowed origins
	// Default: ""
	CORSPolicy string `yaml:"cors_policy"`

	// UsersFile is the colon-delimited credential file (type:name:token).
	// Default: "users.conf"
	UsersFile string `yaml:"users_file"`

	// LogFile is the append-only access log.
	// Default: "logs/proxy.log"
	LogFile string `yaml:"log_file"`

	// LogLevel is the access-log verbosity: NEVER, ERROR, INFO, PROMPT or ALL.
	// Default: "INFO"
	LogLevel string `yaml:"log_level"`

	// AnonymousAccess opens every endpoint to every caller ("openbar" mode).
	// Default: false
	AnonymousAccess bool `yaml:"anonymous_access"`

	// RequestTimeout bounds buffered upstream calls and the wait for stream
	// response headers. Zero means no proxy-side timeout.
	// Default: 0
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests on shutdown.
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the size of inbound request bodies.
	// Default: 32MB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a trusted tunnel or reverse proxy.
	// Default: false
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	// RateLimitPerMinute limits requests per client IP. Zero disables it.
	// Default: 0
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// WatchUsersFile warns when the credential file changes on disk.
	// Default: true
	WatchUsersFile bool `yaml:"watch_users_file"`

	// ProcessLogFormat is the format of diagnostic logs on stderr: "json" or "text".
	// Default: "text"
	ProcessLogFormat string `yaml:"process_log_format"`

	// Metrics contains the Prometheus endpoint settings.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `yaml:"tracing"`

	// Audit contains the optional SQLite mirror of the access log.
	Audit AuditConfig `yaml:"audit"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled mounts the metrics handler on Path.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "infollama"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Endpoint is the OTLP gRPC collector address (host:port).
	// Tracing is disabled when empty.
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the fraction of requests traced, between 0 and 1.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "infollama-proxy"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS towards the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`
}

// AuditConfig contains configuration for the SQLite access-record mirror.
type AuditConfig struct {
	// Path is the database file. The mirror is disabled when empty.
	Path string `yaml:"path"`

	// RetentionDays removes records older than this many days.
	// Zero keeps records forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a standard cron expression for pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// AsyncBuffer is the number of records queued before new ones are dropped.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`
}

// ListenAddress returns the host:port pair the server binds to.
func (c *Config) ListenAddress() string {
	return joinHostPort(c.BindHost, c.BindPort)
}

// CORSEnabled reports whether any CORS policy is configured.
func (c *Config) CORSEnabled() bool {
	return c.CORSPolicy != ""
}

// AllowedOrigins splits the CORS policy into its origin list.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSPolicy)
}
