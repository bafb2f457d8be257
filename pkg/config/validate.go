package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the configuration key (e.g., "port").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every problem found, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateUpstream(cfg)...)
	errs = append(errs, validateListener(cfg)...)
	errs = append(errs, validateLogging(cfg)...)
	errs = append(errs, validateTelemetry(cfg)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateUpstream(cfg *Config) []FieldError {
	var errs []FieldError

	u, err := url.Parse(cfg.UpstreamBaseURL)
	switch {
	case cfg.UpstreamBaseURL == "":
		errs = append(errs, FieldError{Field: "base_url", Message: "upstream base URL is required"})
	case err != nil:
		errs = append(errs, FieldError{Field: "base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, FieldError{Field: "base_url", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)})
	case u.Host == "":
		errs = append(errs, FieldError{Field: "base_url", Message: "host is required"})
	case strings.HasSuffix(cfg.UpstreamBaseURL, "/"):
		errs = append(errs, FieldError{Field: "base_url", Message: "must not end with a slash"})
	}

	if cfg.RequestTimeout < 0 {
		errs = append(errs, FieldError{Field: "request_timeout", Message: "must not be negative"})
	}

	return errs
}

func validateListener(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.BindHost == "" {
		errs = append(errs, FieldError{Field: "host", Message: "bind host is required"})
	}
	if cfg.BindPort < 1 || cfg.BindPort > 65535 {
		errs = append(errs, FieldError{Field: "port", Message: fmt.Sprintf("port %d out of range 1-65535", cfg.BindPort)})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "shutdown_timeout", Message: "must not be negative"})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "max_body_bytes", Message: "must not be negative"})
	}
	if cfg.RateLimitPerMinute < 0 {
		errs = append(errs, FieldError{Field: "rate_limit_per_minute", Message: "must not be negative"})
	}
	if cfg.UsersFile == "" {
		errs = append(errs, FieldError{Field: "users_file", Message: "credential file path is required"})
	}
	for _, origin := range cfg.AllowedOrigins() {
		if origin == "*" {
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{Field: "cors_policy", Message: fmt.Sprintf("invalid origin %q", origin)})
		}
	}

	return errs
}

func validateLogging(cfg *Config) []FieldError {
	var errs []FieldError

	if !slices.Contains(LogLevels, cfg.LogLevel) {
		errs = append(errs, FieldError{
			Field:   "log_level",
			Message: fmt.Sprintf("unknown level %q (want one of %s)", cfg.LogLevel, strings.Join(LogLevels, ", ")),
		})
	}
	if cfg.LogFile == "" && cfg.LogLevel != "NEVER" {
		errs = append(errs, FieldError{Field: "log_file", Message: "log file path is required unless log_level is NEVER"})
	}
	if cfg.ProcessLogFormat != "json" && cfg.ProcessLogFormat != "text" {
		errs = append(errs, FieldError{Field: "process_log_format", Message: fmt.Sprintf("unknown format %q", cfg.ProcessLogFormat)})
	}

	return errs
}

func validateTelemetry(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "metrics.path", Message: "must start with /"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "tracing.sample_ratio", Message: "must be between 0 and 1"})
	}

	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		return nil
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "audit.retention_days", Message: "must not be negative"})
	}
	if cfg.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "audit.async_buffer", Message: "must be at least 1"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{Field: "audit.prune_schedule", Message: fmt.Sprintf("invalid cron expression: %v", err)})
	}

	return errs
}
