package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantField string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name:      "bad scheme",
			mutate:    func(cfg *Config) { cfg.UpstreamBaseURL = "ftp://host" },
			wantField: "base_url",
		},
		{
			name:      "trailing slash",
			mutate:    func(cfg *Config) { cfg.UpstreamBaseURL = "http://host/" },
			wantField: "base_url",
		},
		{
			name:      "port out of range",
			mutate:    func(cfg *Config) { cfg.BindPort = 70000 },
			wantField: "port",
		},
		{
			name:      "unknown log level",
			mutate:    func(cfg *Config) { cfg.LogLevel = "DEBUG" },
			wantField: "log_level",
		},
		{
			name: "no log file needed when silent",
			mutate: func(cfg *Config) {
				cfg.LogLevel = "NEVER"
				cfg.LogFile = ""
			},
		},
		{
			name:      "log file required otherwise",
			mutate:    func(cfg *Config) { cfg.LogFile = "" },
			wantField: "log_file",
		},
		{
			name:      "invalid origin",
			mutate:    func(cfg *Config) { cfg.CORSPolicy = "not-an-origin" },
			wantField: "cors_policy",
		},
		{
			name:   "wildcard origin",
			mutate: func(cfg *Config) { cfg.CORSPolicy = "*" },
		},
		{
			name: "bad cron schedule",
			mutate: func(cfg *Config) {
				cfg.Audit.Path = "audit.db"
				cfg.Audit.PruneSchedule = "every day"
			},
			wantField: "audit.prune_schedule",
		},
		{
			name: "cron ignored when audit disabled",
			mutate: func(cfg *Config) {
				cfg.Audit.PruneSchedule = "every day"
			},
		},
		{
			name:      "sample ratio",
			mutate:    func(cfg *Config) { cfg.Tracing.SampleRatio = 2 },
			wantField: "tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Multiple(t *testing.T) {
	cfg := Defaults()
	cfg.BindPort = -1
	cfg.BindHost = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("expected both errors to be reported, got %q", err.Error())
	}
}
