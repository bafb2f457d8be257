package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"toutjavascript/infollama/pkg/audit"
	"toutjavascript/infollama/pkg/audit/retention"
	"toutjavascript/infollama/pkg/cli"
	"toutjavascript/infollama/pkg/config"
	"toutjavascript/infollama/pkg/telemetry/logging"
)

var auditFlags struct {
	db            string
	limit         int
	output        string
	retentionDays int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read and prune the SQLite access-record mirror",
	Long: `Read and prune the SQLite copy of the access log written when
audit.path (or --audit-db on run) is set.`,
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent access records",
	Long: `Show the most recent access records, newest first.

Examples:
  infollama audit recent --db logs/audit.db
  infollama audit recent --db logs/audit.db --limit 100 --output json`,
	RunE: runAuditRecent,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete records older than the retention period",
	Long: `Delete access records older than the retention period now, without
waiting for the scheduled pruning.

Examples:
  infollama audit prune --db logs/audit.db --retention-days 7`,
	RunE: runAuditPrune,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRecentCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditCmd.PersistentFlags().StringVar(&auditFlags.db, "db", "", "audit database (default from config)")

	auditRecentCmd.Flags().IntVarP(&auditFlags.limit, "limit", "n", 20, "number of records to show")
	auditRecentCmd.Flags().StringVarP(&auditFlags.output, "output", "o", "table", "output format (table, json)")

	auditPruneCmd.Flags().IntVar(&auditFlags.retentionDays, "retention-days", 0, "days to keep (default from config)")
}

// recentReport is the result of audit recent.
type recentReport struct {
	Records []auditEntry `json:"records"`
	now     time.Time
}

type auditEntry struct {
	Time      time.Time `json:"time"`
	ClientIP  string    `json:"client_ip"`
	Identity  string    `json:"identity"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	Severity  string    `json:"severity"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Header implements cli.Table.
func (r recentReport) Header() []string {
	return []string{"WHEN", "CLIENT", "IDENTITY", "REQUEST", "STATUS", "DETAIL"}
}

// Rows implements cli.Table.
func (r recentReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Records))
	for _, rec := range r.Records {
		rows = append(rows, []string{
			humanize.RelTime(rec.Time, r.now, "ago", "from now"),
			rec.ClientIP,
			rec.Identity,
			rec.Method + " " + rec.Path,
			strconv.Itoa(rec.Status),
			rec.Detail,
		})
	}
	return rows
}

func newRecentReport(records []logging.LogRecord, now time.Time) recentReport {
	report := recentReport{Records: make([]auditEntry, 0, len(records)), now: now}
	for _, rec := range records {
		report.Records = append(report.Records, auditEntry{
			Time:      rec.Timestamp,
			ClientIP:  rec.ClientIP,
			Identity:  rec.IdentityName,
			Method:    rec.Method,
			Path:      rec.Path,
			Status:    rec.StatusCode,
			Severity:  rec.Severity.String(),
			Detail:    rec.Detail,
			RequestID: rec.RequestID,
		})
	}
	return report
}

// openAuditStore resolves the database path and opens it.
func openAuditStore() (*audit.Store, *config.Config, error) {
	cfg, err := loadConfig(func(c *config.Config) {
		if auditFlags.db != "" {
			c.Audit.Path = auditFlags.db
		}
	})
	if err != nil {
		return nil, nil, cli.NewConfigError("config", err.Error())
	}
	if cfg.Audit.Path == "" {
		return nil, nil, cli.NewConfigError("audit.path", "no audit database configured; pass --db")
	}

	store, err := audit.OpenStore(audit.StoreConfig{Path: cfg.Audit.Path, BusyTimeout: 5 * time.Second})
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func runAuditRecent(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditFlags.output)
	if err != nil {
		return err
	}

	store, _, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(cmd.Context(), auditFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit recent", err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), newRecentReport(records, time.Now()))
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	days := cfg.Audit.RetentionDays
	if cmd.Flags().Changed("retention-days") {
		days = auditFlags.retentionDays
	}
	if days <= 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Retention disabled, nothing pruned")
		return nil
	}

	deleted, err := retention.NewPruner(store, &retention.Config{RetentionDays: days}).Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("audit prune", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %s records older than %d days\n", humanize.Comma(deleted), days)
	return nil
}
