package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "INFOLLAMA_"

// LoadOptions describes where configuration comes from.
type LoadOptions struct {
	// Path is an optional YAML file. An empty path skips file loading;
	// a non-empty path that does not exist is an error.
	Path string

	// EnvFile is an optional dotenv file loaded into the process
	// environment before INFOLLAMA_* variables are read. A missing
	// file is ignored.
	EnvFile string

	// Overrides is applied last, typically from command-line flags.
	Overrides func(cfg *Config)
}

// Load builds the configuration snapshot.
//
// The loading sequence is:
// 1. Defaults
// 2. YAML file (if any)
// 3. dotenv file and INFOLLAMA_* environment variables
// 4. Overrides (command-line flags)
// 5. Normalization and validation
func Load(opts LoadOptions) (*Config, error) {
	cfg := Defaults()

	if opts.Path != "" {
		if err := loadFile(opts.Path, cfg); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %q: %w", opts.EnvFile, err)
		}
	}
	applyEnvOverrides(cfg)

	if opts.Overrides != nil {
		opts.Overrides(cfg)
	}

	ApplyDefaults(cfg)
	cfg.UpstreamBaseURL = NormalizeBaseURL(cfg.UpstreamBaseURL)
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile decodes a YAML file on top of cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies INFOLLAMA_* environment variables to cfg.
// Unparseable values are ignored and left to validation of the previous value.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvPrefix + "BASE_URL"); val != "" {
		cfg.UpstreamBaseURL = val
	}
	if val := os.Getenv(EnvPrefix + "HOST"); val != "" {
		cfg.BindHost = val
	}
	if val := os.Getenv(EnvPrefix + "PORT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.BindPort = i
		}
	}
	if val, ok := os.LookupEnv(EnvPrefix + "CORS_POLICY"); ok {
		cfg.CORSPolicy = val
	}
	if val := os.Getenv(EnvPrefix + "USERS_FILE"); val != "" {
		cfg.UsersFile = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_FILE"); val != "" {
		cfg.LogFile = val
	}
	if val := os.Getenv(EnvPrefix + "LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv(EnvPrefix + "ANONYMOUS_ACCESS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.AnonymousAccess = b
		}
	}
	if val := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.RequestTimeout = d
		}
	}
	if val := os.Getenv(EnvPrefix + "TRUST_PROXY_HEADERS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.TrustProxyHeaders = b
		}
	}
	if val := os.Getenv(EnvPrefix + "RATE_LIMIT_PER_MINUTE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.RateLimitPerMinute = i
		}
	}
	if val := os.Getenv(EnvPrefix + "METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if val := os.Getenv(EnvPrefix + "TRACING_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := os.Getenv(EnvPrefix + "AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv(EnvPrefix + "AUDIT_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Audit.RetentionDays = i
		}
	}
}

// NormalizeBaseURL adds an http scheme when none is present and strips
// trailing slashes.
func NormalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
