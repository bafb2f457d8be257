package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"toutjavascript/infollama/pkg/cli"
	"toutjavascript/infollama/pkg/security/auth"
)

var usersFlags struct {
	usersFile string
	output    string
	class     string
	name      string
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect the credential file and create tokens",
	Long: `Inspect the credential file and create tokens.

The credential file holds one identity per line as type:name:token, where
type is "user" or "admin". The proxy reads it once at startup.`,
}

var usersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the credential file",
	Long: `Parse the credential file and list the identities it defines, with
tokens masked. Malformed lines, duplicate tokens and tokens that do not
follow the pro_ convention are reported. The command fails when any line
is malformed.

Examples:
  infollama users check
  infollama users check --users-file /etc/infollama/users.conf --output json`,
	RunE: runUsersCheck,
}

var usersTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a new token",
	Long: `Generate a random pro_ token. With --name the full credential line is
printed, ready to append to the credential file.

Examples:
  infollama users token
  infollama users token --type admin --name root >> users.conf`,
	RunE: runUsersToken,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCheckCmd)
	usersCmd.AddCommand(usersTokenCmd)

	usersCheckCmd.Flags().StringVar(&usersFlags.usersFile, "users-file", "", "credential file (default from config)")
	usersCheckCmd.Flags().StringVarP(&usersFlags.output, "output", "o", "table", "output format (table, json)")

	usersTokenCmd.Flags().StringVar(&usersFlags.class, "type", "user", `identity type, "user" or "admin"`)
	usersTokenCmd.Flags().StringVar(&usersFlags.name, "name", "", "identity name; prints a full credential line")
}

// userEntry is one identity as reported by users check.
type userEntry struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

// usersReport is the result of users check.
type usersReport struct {
	Path    string             `json:"path"`
	Users   []userEntry        `json:"users"`
	Skipped []skippedEntry `json:"skipped,omitempty"`
}

// skippedEntry reports a malformed line without its text, which may hold a
// token.
type skippedEntry struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Header implements cli.Table.
func (r usersReport) Header() []string {
	return []string{"TYPE", "NAME", "TOKEN", "STATUS"}
}

// Rows implements cli.Table.
func (r usersReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Users)+len(r.Skipped))
	for _, u := range r.Users {
		rows = append(rows, []string{u.Type, u.Name, u.Token, u.Status})
	}
	for _, s := range r.Skipped {
		rows = append(rows, []string{"-", "-", "-", fmt.Sprintf("line %d skipped: %s", s.Line, s.Reason)})
	}
	return rows
}

// checkUsers builds the report for the parsed identities.
func checkUsers(path string, identities []auth.Identity, skipped []auth.SkippedLine) usersReport {
	report := usersReport{Path: path}
	for _, line := range skipped {
		report.Skipped = append(report.Skipped, skippedEntry{Line: line.Number, Reason: line.Reason})
	}
	seen := make(map[string]string, len(identities))

	for _, id := range identities {
		first, dup := seen[id.Token]
		if !dup {
			seen[id.Token] = id.Name
		}

		status := "ok"
		switch {
		case dup:
			status = "duplicate token, " + first + " wins"
		case !auth.WellFormedToken(id.Token):
			status = fmt.Sprintf("token should start with %s and have %d+ characters", auth.TokenPrefix, auth.MinTokenLength)
		}

		report.Users = append(report.Users, userEntry{
			Type:   id.Class.String(),
			Name:   id.Name,
			Token:  auth.MaskToken(id.Token),
			Status: status,
		})
	}

	return report
}

func runUsersCheck(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(usersFlags.output)
	if err != nil {
		return err
	}

	path := usersFlags.usersFile
	if path == "" {
		cfg, err := loadConfig(nil)
		if err != nil {
			return cli.NewConfigError("config", err.Error())
		}
		path = cfg.UsersFile
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cli.NewCommandError("users check", fmt.Errorf("credential file %q not found; it is created on the first run", path))
	}
	if err != nil {
		return cli.NewCommandError("users check", err)
	}
	defer f.Close()

	identities, skipped, err := auth.ParseUsers(f)
	if err != nil {
		return cli.NewCommandError("users check", fmt.Errorf("failed to read %q: %w", path, err))
	}

	report := checkUsers(path, identities, skipped)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if len(skipped) > 0 {
		return cli.NewCommandError("users check", fmt.Errorf("%d malformed line(s) in %s", len(skipped), path))
	}
	return nil
}

func runUsersToken(cmd *cobra.Command, args []string) error {
	class, ok := auth.ParseClass(usersFlags.class)
	if !ok {
		return cli.NewConfigError("type", fmt.Sprintf("unknown identity type %q (want user or admin)", usersFlags.class))
	}

	if strings.ContainsAny(usersFlags.name, ":\n") {
		return cli.NewConfigError("name", "must not contain a colon or a newline")
	}

	token := auth.GenerateToken()
	if usersFlags.name == "" {
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s:%s:%s\n", class, usersFlags.name, token)
	return nil
}
