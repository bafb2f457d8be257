package config

import "time"

// Default values for configuration fields.
const (
	DefaultUpstreamBaseURL  = "http://localhost:11434"
	DefaultBindHost         = "127.0.0.1"
	DefaultBindPort         = 11430
	DefaultCORSPolicy       = ""
	DefaultUsersFile        = "users.conf"
	DefaultLogFile          = "logs/proxy.log"
	DefaultLogLevel         = "INFO"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultMaxBodyBytes     = int64(32 << 20)
	DefaultProcessLogFormat = "text"

	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "infollama"

	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "infollama-proxy"

	DefaultAuditRetentionDays = 30
	DefaultAuditPruneSchedule = "0 3 * * *"
	DefaultAuditAsyncBuffer   = 1000
)

// LogLevels lists the accepted access-log verbosities, most silent first.
var LogLevels = []string{"NEVER", "ERROR", "INFO", "PROMPT", "ALL"}

// Defaults returns a configuration populated with default values only.
func Defaults() *Config {
	cfg := &Config{
		WatchUsersFile: true,
		Tracing:        TracingConfig{Insecure: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean fields
// are left untouched since false is a meaningful value for each of them.
func ApplyDefaults(cfg *Config) {
	if cfg.UpstreamBaseURL == "" {
		cfg.UpstreamBaseURL = DefaultUpstreamBaseURL
	}
	if cfg.BindHost == "" {
		cfg.BindHost = DefaultBindHost
	}
	if cfg.BindPort == 0 {
		cfg.BindPort = DefaultBindPort
	}
	if cfg.UsersFile == "" {
		cfg.UsersFile = DefaultUsersFile
	}
	if cfg.LogFile == "" {
		cfg.LogFile = DefaultLogFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ProcessLogFormat == "" {
		cfg.ProcessLogFormat = DefaultProcessLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}

	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = DefaultAuditPruneSchedule
	}
	if cfg.Audit.AsyncBuffer == 0 {
		cfg.Audit.AsyncBuffer = DefaultAuditAsyncBuffer
	}
}
