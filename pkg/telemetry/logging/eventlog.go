package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Verbosity is the configured access-log threshold.
type Verbosity int

const (
	// VerbosityNever disables the access log.
	VerbosityNever Verbosity = iota
	// VerbosityError records rejections, failures and state-changing calls.
	VerbosityError
	// VerbosityInfo also records read-only calls.
	VerbosityInfo
	// VerbosityPrompt also adds prompt excerpts to generation records.
	VerbosityPrompt
	// VerbosityAll also records auxiliary pages and assets.
	VerbosityAll
)

var verbosityNames = []string{"NEVER", "ERROR", "INFO", "PROMPT", "ALL"}

// String returns the configuration spelling of the verbosity.
func (v Verbosity) String() string {
	if v < 0 || int(v) >= len(verbosityNames) {
		return fmt.Sprintf("Verbosity(%d)", int(v))
	}
	return verbosityNames[v]
}

// ParseVerbosity parses NEVER, ERROR, INFO, PROMPT or ALL, case-insensitively.
// The empty string is INFO.
func ParseVerbosity(s string) (Verbosity, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return VerbosityInfo, nil
	}
	for i, name := range verbosityNames {
		if name == s {
			return Verbosity(i), nil
		}
	}
	return VerbosityInfo, fmt.Errorf("unknown log level: %s", s)
}

// Severity is the level of a single access record. A record is written when
// its severity does not exceed the configured verbosity.
type Severity int

const (
	// SeverityError marks rejections, upstream failures and state-changing calls.
	SeverityError Severity = Severity(VerbosityError)
	// SeverityInfo marks read-only calls.
	SeverityInfo Severity = Severity(VerbosityInfo)
	// SeverityPrompt marks records only useful when prompts are logged.
	SeverityPrompt Severity = Severity(VerbosityPrompt)
	// SeverityDebug marks auxiliary pages and assets.
	SeverityDebug Severity = Severity(VerbosityAll)
)

// String returns a short name for the severity.
func (s Severity) String() string {
	return Verbosity(s).String()
}

// LogRecord is one access-log entry.
type LogRecord struct {
	ClientIP     string
	IdentityName string
	Method       string
	Path         string
	StatusCode   int
	Timestamp    time.Time
	Detail       string
	Severity     Severity
	RequestID    string
}

// TimestampLayout is the access-log timestamp format.
const TimestampLayout = "02/Jan/2006 15:04:05"

// FormatLine renders a record as a single access-log line, including the
// trailing newline. Tabs and newlines in the detail are flattened so one
// record is always one line.
func FormatLine(rec LogRecord) string {
	detail := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(rec.Detail)
	return fmt.Sprintf("%s - %s [%s] \"%s %s HTTP/1.1\" %d\t%s\n",
		rec.ClientIP,
		rec.IdentityName,
		rec.Timestamp.Format(TimestampLayout),
		rec.Method,
		rec.Path,
		rec.StatusCode,
		detail,
	)
}

// Sink receives every record written to the access log.
// Implementations must not block.
type Sink interface {
	Record(rec LogRecord)
}

// EventLog appends access records to a file. Appends are serialized by a
// mutex so concurrent requests never interleave within a line.
type EventLog struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	verbosity Verbosity
	sinks     []Sink
	logger    *slog.Logger
	now       func() time.Time
}

// OpenEventLog opens (creating if needed) the access log at path in append
// mode. With VerbosityNever no file is opened.
func OpenEventLog(path string, verbosity Verbosity, logger *slog.Logger) (*EventLog, error) {
	if verbosity == VerbosityNever {
		return NewEventLog(io.Discard, verbosity, logger), nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open access log %q: %w", path, err)
	}

	l := NewEventLog(f, verbosity, logger)
	l.closer = f
	return l, nil
}

// NewEventLog creates an EventLog writing to w.
func NewEventLog(w io.Writer, verbosity Verbosity, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{
		w:         w,
		verbosity: verbosity,
		logger:    logger.With("component", "eventlog"),
		now:       time.Now,
	}
}

// AddSink registers a sink. It must be called before records are written.
func (l *EventLog) AddSink(s Sink) {
	l.sinks = append(l.sinks, s)
}

// Verbosity returns the configured threshold.
func (l *EventLog) Verbosity() Verbosity {
	return l.verbosity
}

// Enabled reports whether a record of the given severity would be written.
func (l *EventLog) Enabled(sev Severity) bool {
	return l.verbosity != VerbosityNever && int(sev) <= int(l.verbosity)
}

// IncludePrompts reports whether generation records carry prompt excerpts.
func (l *EventLog) IncludePrompts() bool {
	return l.verbosity >= VerbosityPrompt
}

// Record writes rec if its severity passes the threshold and reports whether
// it was written. Write failures are logged and never returned.
func (l *EventLog) Record(rec LogRecord) bool {
	if !l.Enabled(rec.Severity) {
		return false
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}

	line := FormatLine(rec)

	l.mu.Lock()
	_, err := io.WriteString(l.w, line)
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("failed to write access record",
			"error", err,
			"path", rec.Path,
			"request_id", rec.RequestID,
		)
	}

	for _, s := range l.sinks {
		s.Record(rec)
	}

	return err == nil
}

// Close closes the underlying file, if any.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	l.w = io.Discard
	return err
}
