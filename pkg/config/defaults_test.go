package config

import "testing"

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		BindPort:  8080,
		LogLevel:  "ALL",
		UsersFile: "/etc/infollama/users.conf",
	}
	ApplyDefaults(cfg)

	if cfg.BindPort != 8080 {
		t.Errorf("port overwritten: %d", cfg.BindPort)
	}
	if cfg.LogLevel != "ALL" {
		t.Errorf("log level overwritten: %q", cfg.LogLevel)
	}
	if cfg.UsersFile != "/etc/infollama/users.conf" {
		t.Errorf("users file overwritten: %q", cfg.UsersFile)
	}
	if cfg.BindHost != DefaultBindHost {
		t.Errorf("expected default host, got %q", cfg.BindHost)
	}
	if cfg.MaxBodyBytes != DefaultMaxBodyBytes {
		t.Errorf("expected default body limit, got %d", cfg.MaxBodyBytes)
	}
}

func TestDefaults_Valid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
