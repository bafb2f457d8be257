package auth

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

//go:embed users.conf.tmpl
var usersTemplate []byte

// UsersTemplate returns the commented credential file written on first run.
func UsersTemplate() []byte {
	return append([]byte(nil), usersTemplate...)
}

// SkippedLine describes a credential-file line that was ignored.
type SkippedLine struct {
	Number int
	Text   string
	Reason string
}

// UserStore resolves bearer tokens to identities. It is built once at
// startup and never modified, so it is safe for concurrent use.
type UserStore struct {
	identities []Identity
	byToken    map[string]Identity
	openbar    bool
}

// NewUserStore builds a store from already parsed identities. When a token
// appears more than once the first identity wins.
func NewUserStore(identities []Identity, openbar bool) *UserStore {
	s := &UserStore{
		identities: make([]Identity, 0, len(identities)),
		byToken:    make(map[string]Identity, len(identities)),
		openbar:    openbar,
	}
	for _, id := range identities {
		s.identities = append(s.identities, id)
		if _, dup := s.byToken[id.Token]; !dup {
			s.byToken[id.Token] = id
		}
	}
	return s
}

// LoadUsers reads the credential file at path.
//
// A missing file yields an empty store and a warning; the commented template
// is written in its place so the operator has something to edit. Malformed
// lines are skipped with a warning. Any other read failure is returned.
func LoadUsers(path string, openbar bool, logger *slog.Logger) (*UserStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("credential file not found, only anonymous endpoints are reachable",
			"path", path,
		)
		if werr := writeTemplate(path); werr != nil {
			logger.Warn("failed to write credential file template", "path", path, "error", werr)
		} else {
			logger.Info("credential file template written", "path", path)
		}
		return NewUserStore(nil, openbar), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open credential file %q: %w", path, err)
	}
	defer f.Close()

	identities, skipped, err := ParseUsers(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file %q: %w", path, err)
	}

	for _, line := range skipped {
		logger.Warn("skipping malformed credential line",
			"path", path,
			"line", line.Number,
			"reason", line.Reason,
		)
	}

	logger.Info("credential file loaded",
		"path", path,
		"identities", len(identities),
		"skipped", len(skipped),
	)

	return NewUserStore(identities, openbar), nil
}

// ParseUsers parses credential lines of the form type:name:token. Blank lines
// and lines starting with '#' are ignored silently; every other line that is
// not exactly three non-empty fields with a known type is reported as skipped.
func ParseUsers(r io.Reader) ([]Identity, []SkippedLine, error) {
	var identities []Identity
	var skipped []SkippedLine

	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id, reason := parseLine(line)
		if reason != "" {
			skipped = append(skipped, SkippedLine{Number: number, Text: line, Reason: reason})
			continue
		}
		identities = append(identities, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return identities, skipped, nil
}

func parseLine(line string) (Identity, string) {
	fields := strings.Split(line, ":")
	if len(fields) != 3 {
		return Identity{}, fmt.Sprintf("expected 3 fields, got %d", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
		if fields[i] == "" {
			return Identity{}, "empty field"
		}
	}

	class, ok := ParseClass(fields[0])
	if !ok {
		return Identity{}, fmt.Sprintf("unknown type %q", fields[0])
	}

	return Identity{Class: class, Name: fields[1], Token: fields[2]}, ""
}

func writeTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(usersTemplate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Resolve maps a bearer token to an identity. With anonymous access enabled
// every caller is the openbar identity. An empty or unknown token resolves
// to Anonymous.
func (s *UserStore) Resolve(token string) Identity {
	if s.openbar {
		return Openbar
	}
	if token == "" {
		return Anonymous
	}
	if id, ok := s.byToken[token]; ok {
		return id
	}
	return Anonymous
}

// Identities returns a copy of the loaded identities in file order.
func (s *UserStore) Identities() []Identity {
	return append([]Identity(nil), s.identities...)
}

// Len returns the number of loaded identities.
func (s *UserStore) Len() int {
	return len(s.identities)
}

// Openbar reports whether anonymous access is enabled.
func (s *UserStore) Openbar() bool {
	return s.openbar
}

// MaskToken keeps the first four characters of a token and hides the rest.
// Tokens of four characters or fewer are hidden entirely.
func MaskToken(token string) string {
	const visible = 4
	if len(token) <= visible {
		return strings.Repeat("*", len(token))
	}
	return token[:visible] + strings.Repeat("*", len(token)-visible)
}
