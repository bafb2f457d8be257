package main

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"toutjavascript/infollama/pkg/config"
)

func TestApplyRunFlags(t *testing.T) {
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.AddFlagSet(runCmd.Flags())

	if err := flags.Parse([]string{
		"--base-url", "gpu-box:11434",
		"--port", "8080",
		"--cors", "*",
		"--anonymous-access",
		"--log-level", "prompt",
		"--request-timeout", "90s",
		"--rate-limit", "60",
	}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := config.Defaults()
	cfg.UsersFile = "from-file.conf"
	applyRunFlags(flags)(cfg)

	if cfg.UpstreamBaseURL != "gpu-box:11434" || cfg.BindPort != 8080 || cfg.CORSPolicy != "*" {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if !cfg.AnonymousAccess || cfg.LogLevel != "prompt" || cfg.RequestTimeout != 90*time.Second || cfg.RateLimitPerMinute != 60 {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.UsersFile != "from-file.conf" {
		t.Errorf("unset flag overrode UsersFile: %q", cfg.UsersFile)
	}
	if cfg.BindHost != config.DefaultBindHost {
		t.Errorf("unset flag overrode BindHost: %q", cfg.BindHost)
	}
}

func TestRunCommand_DryRun(t *testing.T) {
	out, err := executeCommand(t, "run", "--dry-run", "--log-level", "ALL", "--process-log-format", "json")
	if err != nil {
		t.Fatalf("run --dry-run error = %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	_, err := executeCommand(t, "run", "--dry-run", "--log-level", "LOUD")
	if err == nil {
		t.Fatal("expected config error")
	}
	runFlags.logLevel = ""
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Defaults()
	cfg.AnonymousAccess = true
	cfg.Metrics.Enabled = true
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 11430}

	var b strings.Builder
	printBanner(&b, cfg, addr, 2)
	out := b.String()

	for _, want := range []string{
		"✓ Upstream: http://localhost:11434",
		"(2 identities)",
		"Anonymous access enabled",
		"http://127.0.0.1:11430/metrics",
		"✓ Proxy listening on http://127.0.0.1:11430",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}
