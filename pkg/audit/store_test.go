package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"toutjavascript/infollama/pkg/telemetry/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(StoreConfig{
		Path:    filepath.Join(t.TempDir(), "audit", "access.db"),
		WALMode: true,
	})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenStore_EmptyPath(t *testing.T) {
	if _, err := OpenStore(StoreConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStore_InsertAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []logging.LogRecord{
		{ClientIP: "127.0.0.1", IdentityName: "alice", Method: "GET", Path: "/api/tags", StatusCode: 200, Timestamp: base, Severity: logging.SeverityInfo, RequestID: "r1"},
		{ClientIP: "10.0.0.2", IdentityName: "anonymous", Method: "POST", Path: "/api/create", StatusCode: 403, Timestamp: base.Add(time.Second), Detail: "forbidden", Severity: logging.SeverityError},
	}
	for _, rec := range records {
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}

	newest := got[0]
	if newest.Path != "/api/create" || newest.StatusCode != 403 || newest.Detail != "forbidden" {
		t.Errorf("unexpected newest record: %+v", newest)
	}
	if newest.Severity != logging.SeverityError {
		t.Errorf("expected severity %v, got %v", logging.SeverityError, newest.Severity)
	}
	if !newest.Timestamp.Equal(base.Add(time.Second)) {
		t.Errorf("timestamp not preserved: %v", newest.Timestamp)
	}
	if got[1].RequestID != "r1" || got[1].IdentityName != "alice" {
		t.Errorf("unexpected oldest record: %+v", got[1])
	}
}

func TestStore_DeleteBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{0, 24 * time.Hour, 10 * 24 * time.Hour, 40 * 24 * time.Hour} {
		rec := logging.LogRecord{ClientIP: "127.0.0.1", IdentityName: "bob", Method: "GET", Path: "/api/ps", StatusCode: 200, Timestamp: now.Add(-age)}
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	deleted, err := s.DeleteBefore(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	count, _ := s.Count(ctx)
	if count != 2 {
		t.Errorf("expected 2 remaining, got %d", count)
	}
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.db")

	s, err := OpenStore(StoreConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if err := s.Insert(context.Background(), logging.LogRecord{Method: "GET", Path: "/api/tags", StatusCode: 200}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	s.Close()

	s, err = OpenStore(StoreConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	count, err := s.Count(context.Background())
	if err != nil || count != 1 {
		t.Errorf("expected 1 record after reopen, got %d (%v)", count, err)
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := storageError("insert", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be unwrapped")
	}
	if err.Error() != "audit storage insert: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
