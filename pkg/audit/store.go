package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"toutjavascript/infollama/pkg/telemetry/logging"
)

// StoreConfig configures the SQLite access-record store.
type StoreConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Store persists access records to SQLite.
type Store struct {
	db     *sql.DB
	config StoreConfig
	insert *sql.Stmt
	logger *slog.Logger
}

// OpenStore opens (creating if needed) the database at cfg.Path and applies
// the schema.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, storageError("open", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "audit.store"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit store initialized",
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *Store) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return storageError("enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return storageError("set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return storageError("create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return storageError("insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storageError("get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return storageError("schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	stmt, err := s.db.Prepare(insertRecord)
	if err != nil {
		return storageError("prepare_insert", err)
	}
	s.insert = stmt

	return nil
}

// Insert stores a single access record.
func (s *Store) Insert(ctx context.Context, rec logging.LogRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.insert.ExecContext(ctx,
		rec.RequestID,
		ts.UnixNano(),
		rec.ClientIP,
		rec.IdentityName,
		rec.Method,
		rec.Path,
		rec.StatusCode,
		int(rec.Severity),
		rec.Detail,
	)
	if err != nil {
		return storageError("insert", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]logging.LogRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, recorded_at, client_ip, identity, method, path, status, severity, detail
		FROM access_records
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, storageError("query", err)
	}
	defer rows.Close()

	var records []logging.LogRecord
	for rows.Next() {
		var (
			rec       logging.LogRecord
			requestID sql.NullString
			detail    sql.NullString
			severity  int
			recorded  int64
		)
		if err := rows.Scan(&requestID, &recorded, &rec.ClientIP, &rec.IdentityName,
			&rec.Method, &rec.Path, &rec.StatusCode, &severity, &detail); err != nil {
			return nil, storageError("scan", err)
		}
		rec.Timestamp = time.Unix(0, recorded)
		rec.RequestID = requestID.String
		rec.Detail = detail.String
		rec.Severity = logging.Severity(severity)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("query", err)
	}

	return records, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM access_records").Scan(&count); err != nil {
		return 0, storageError("count", err)
	}
	return count, nil
}

// DeleteBefore removes records older than cutoff and returns how many were
// deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM access_records WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, storageError("delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("delete", err)
	}
	return count, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}
	if err := s.db.Close(); err != nil {
		return storageError("close", err)
	}
	s.logger.Info("audit store closed")
	return nil
}
