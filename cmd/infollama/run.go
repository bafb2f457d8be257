package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"toutjavascript/infollama/pkg/audit"
	"toutjavascript/infollama/pkg/audit/retention"
	"toutjavascript/infollama/pkg/cli"
	"toutjavascript/infollama/pkg/config"
	"toutjavascript/infollama/pkg/device"
	"toutjavascript/infollama/pkg/proxy"
	"toutjavascript/infollama/pkg/security/auth"
	"toutjavascript/infollama/pkg/server"
	"toutjavascript/infollama/pkg/telemetry/health"
	"toutjavascript/infollama/pkg/telemetry/logging"
	"toutjavascript/infollama/pkg/telemetry/metrics"
	"toutjavascript/infollama/pkg/telemetry/tracing"
	"toutjavascript/infollama/pkg/upstream"
)

// upstreamProbeInterval is how often the upstream root endpoint is probed.
const upstreamProbeInterval = 30 * time.Second

var runFlags struct {
	baseURL          string
	host             string
	port             int
	cors             string
	anonymousAccess  bool
	logLevel         string
	usersFile        string
	logFile          string
	requestTimeout   time.Duration
	metrics          bool
	auditDB          string
	trustProxy       bool
	rateLimit        int
	traceEndpoint    string
	processLogFormat string
	dryRun           bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy in front of the Ollama API.

Settings come from defaults, then the YAML file given with --config, then
the dotenv file and INFOLLAMA_* environment variables, then flags.

Examples:
  # Start with defaults
  infollama run

  # Allow LAN access and log prompts
  infollama run --host 0.0.0.0 --log-level PROMPT

  # Open every endpoint to every caller
  infollama run --anonymous-access

  # Validate config without starting the server
  infollama run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runFlags.baseURL, "base-url", "", "upstream Ollama API base URL (default http://localhost:11434)")
	f.StringVar(&runFlags.host, "host", "", "interface to listen on, 0.0.0.0 for LAN access (default 127.0.0.1)")
	f.IntVar(&runFlags.port, "port", 0, "port to listen on (default 11430)")
	f.StringVar(&runFlags.cors, "cors", "", `CORS policy: "" disabled, "*" any origin, or a comma-separated origin list`)
	f.BoolVar(&runFlags.anonymousAccess, "anonymous-access", false, "grant every endpoint to every caller")
	f.StringVar(&runFlags.logLevel, "log-level", "", "access log verbosity (NEVER, ERROR, INFO, PROMPT, ALL)")
	f.StringVar(&runFlags.usersFile, "users-file", "", "credential file (default users.conf)")
	f.StringVar(&runFlags.logFile, "log-file", "", "access log file (default logs/proxy.log)")
	f.DurationVar(&runFlags.requestTimeout, "request-timeout", 0, "timeout for buffered upstream calls, 0 for none")
	f.BoolVar(&runFlags.metrics, "metrics", false, "expose Prometheus metrics")
	f.StringVar(&runFlags.auditDB, "audit-db", "", "mirror access records to this SQLite database")
	f.BoolVar(&runFlags.trustProxy, "trust-proxy", false, "take the client IP from X-Forwarded-For / X-Real-IP")
	f.IntVar(&runFlags.rateLimit, "rate-limit", 0, "requests per minute per client IP, 0 for unlimited")
	f.StringVar(&runFlags.traceEndpoint, "trace-endpoint", "", "OTLP gRPC collector address for tracing")
	f.StringVar(&runFlags.processLogFormat, "process-log-format", "", "diagnostic log format on stderr (text, json)")
	f.BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

// applyRunFlags copies the flags the user actually set onto cfg.
func applyRunFlags(flags *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		if flags.Changed("base-url") {
			cfg.UpstreamBaseURL = runFlags.baseURL
		}
		if flags.Changed("host") {
			cfg.BindHost = runFlags.host
		}
		if flags.Changed("port") {
			cfg.BindPort = runFlags.port
		}
		if flags.Changed("cors") {
			cfg.CORSPolicy = runFlags.cors
		}
		if flags.Changed("anonymous-access") {
			cfg.AnonymousAccess = runFlags.anonymousAccess
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = runFlags.logLevel
		}
		if flags.Changed("users-file") {
			cfg.UsersFile = runFlags.usersFile
		}
		if flags.Changed("log-file") {
			cfg.LogFile = runFlags.logFile
		}
		if flags.Changed("request-timeout") {
			cfg.RequestTimeout = runFlags.requestTimeout
		}
		if flags.Changed("metrics") {
			cfg.Metrics.Enabled = runFlags.metrics
		}
		if flags.Changed("audit-db") {
			cfg.Audit.Path = runFlags.auditDB
		}
		if flags.Changed("trust-proxy") {
			cfg.TrustProxyHeaders = runFlags.trustProxy
		}
		if flags.Changed("rate-limit") {
			cfg.RateLimitPerMinute = runFlags.rateLimit
		}
		if flags.Changed("trace-endpoint") {
			cfg.Tracing.Endpoint = runFlags.traceEndpoint
		}
		if flags.Changed("process-log-format") {
			cfg.ProcessLogFormat = runFlags.processLogFormat
		}
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(applyRunFlags(cmd.Flags()))
	if err != nil {
		return cli.NewConfigError("config", err.Error())
	}

	logger, err := logging.New(logging.Config{
		Verbosity:    cfg.LogLevel,
		Format:       cfg.ProcessLogFormat,
		RedactTokens: true,
		Writer:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return cli.NewConfigError("process_log_format", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	verbosity, err := logging.ParseVerbosity(cfg.LogLevel)
	if err != nil {
		return cli.NewConfigError("log_level", err.Error())
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	events, err := logging.OpenEventLog(cfg.LogFile, verbosity, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer events.Close()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Metrics, nil)
	}

	tracer, err := tracing.New(&cfg.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	if cfg.Audit.Path != "" {
		closeAudit, err := startAudit(ctx, cfg, events, collector, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer closeAudit()
	}

	client, err := upstream.New(upstream.Options{
		BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.RequestTimeout,
		Tracer:  tracer,
		Metrics: collector,
		Logger:  logger,
	})
	if err != nil {
		return cli.NewConfigError("base_url", err.Error())
	}

	users, err := auth.LoadUsers(cfg.UsersFile, cfg.AnonymousAccess, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	inventory := device.NewInventory(logger)

	router, err := proxy.NewRouter(&proxy.State{
		Config:   cfg,
		Users:    users,
		Policy:   auth.NewPolicy(cfg.AnonymousAccess),
		Events:   events,
		Upstream: client,
		Device:   inventory,
		Metrics:  collector,
		Tracer:   tracer,
		Version:  Version,
		Logger:   logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	srv := server.NewServer(cfg, router, logger)
	if err := srv.Listen(); err != nil {
		return cli.NewCommandError("run", err)
	}

	if cfg.WatchUsersFile {
		watchUsers(ctx, cfg.UsersFile, logger)
	}

	monitor := health.NewMonitor("upstream", func(ctx context.Context) error {
		if !client.CheckHealth(ctx) {
			return fmt.Errorf("%s did not answer 200", cfg.UpstreamBaseURL)
		}
		return nil
	}, upstreamProbeInterval, 5*time.Second, logger)
	go monitor.Run(ctx)

	go func() {
		info := inventory.Get(context.WithoutCancel(ctx))
		logger.Debug("device inventory collected", "summary", device.Describe(info))
	}()

	printBanner(out, cfg, srv.Addr(), users.Len())

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// startAudit opens the SQLite mirror, attaches it to the event log and
// schedules pruning. The returned function flushes and closes everything.
func startAudit(ctx context.Context, cfg *config.Config, events *logging.EventLog, collector *metrics.Collector, logger *slog.Logger) (func(), error) {
	store, err := audit.OpenStore(audit.StoreConfig{
		Path:        cfg.Audit.Path,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	recorder := audit.NewRecorder(store, audit.RecorderConfig{AsyncBuffer: cfg.Audit.AsyncBuffer}, collector)
	events.AddSink(recorder)

	scheduler := retention.NewScheduler(retention.NewPruner(store, &retention.Config{
		RetentionDays: cfg.Audit.RetentionDays,
		PruneSchedule: cfg.Audit.PruneSchedule,
	}))
	if err := scheduler.Start(ctx); err != nil {
		logger.Warn("failed to start audit retention scheduler", "error", err)
	} else if next := scheduler.NextRun(); next != nil {
		logger.Debug("audit retention scheduler started", "next_run", next)
	}

	logger.Info("audit mirror enabled", "path", cfg.Audit.Path, "retention_days", cfg.Audit.RetentionDays)

	return func() {
		scheduler.Stop()
		if err := recorder.Close(); err != nil {
			logger.Warn("audit recorder close failed", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("audit store close failed", "error", err)
		}
	}, nil
}

// watchUsers warns when the credential file is edited while the proxy runs.
func watchUsers(ctx context.Context, path string, logger *slog.Logger) {
	watcher, err := auth.NewUsersWatcher(path, 0, logger)
	if err != nil {
		logger.Warn("credential file watch disabled", "path", path, "error", err)
		return
	}

	go func() {
		if err := watcher.Watch(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("credential file watch stopped", "error", err)
		}
	}()
}

func printBanner(w io.Writer, cfg *config.Config, addr net.Addr, identities int) {
	fmt.Fprintf(w, "Infollama v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(w, "✓ Configuration loaded from %s\n", cfgFile)
	}
	fmt.Fprintf(w, "✓ Upstream: %s\n", cfg.UpstreamBaseURL)
	fmt.Fprintf(w, "✓ Credentials: %s (%d identities)\n", cfg.UsersFile, identities)
	if cfg.AnonymousAccess {
		fmt.Fprintln(w, "! Anonymous access enabled: every caller may use every endpoint")
	}
	fmt.Fprintf(w, "✓ Access log: %s (%s)\n", cfg.LogFile, cfg.LogLevel)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Metrics.Path)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ Proxy listening on http://%s\n", addr)
	if port := portOf(addr); port != "" && cfg.BindHost == "0.0.0.0" {
		fmt.Fprintf(w, "✓ LAN address: http://%s\n", net.JoinHostPort(proxy.LANIP(), port))
	}
	fmt.Fprintf(w, "✓ Web console: http://%s/info\n", addr)
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}

func portOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return port
}
