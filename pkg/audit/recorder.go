package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"toutjavascript/infollama/pkg/telemetry/logging"
)

// Inserter is the write side of a record store.
type Inserter interface {
	Insert(ctx context.Context, rec logging.LogRecord) error
}

// DropCounter is notified whenever a record is dropped because the queue
// is full.
type DropCounter interface {
	RecordAuditDropped()
}

// RecorderConfig contains configuration for the async recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds each insert.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// Recorder mirrors access records into a store without blocking the caller.
// It implements logging.Sink.
type Recorder struct {
	store   Inserter
	config  RecorderConfig
	drops   DropCounter
	records chan logging.LogRecord
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// NewRecorder starts a recorder writing to store. drops may be nil.
func NewRecorder(store Inserter, cfg RecorderConfig, drops DropCounter) *Recorder {
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	r := &Recorder{
		store:   store,
		config:  cfg,
		drops:   drops,
		records: make(chan logging.LogRecord, cfg.AsyncBuffer),
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("audit recorder started", "async_buffer", cfg.AsyncBuffer)
	return r
}

// Record enqueues rec. When the queue is full the record is dropped.
func (r *Recorder) Record(rec logging.LogRecord) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	select {
	case r.records <- rec:
	default:
		if r.drops != nil {
			r.drops.RecordAuditDropped()
		}
		r.logger.Warn("audit queue full, record dropped",
			"path", rec.Path,
			"request_id", rec.RequestID,
		)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for rec := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
		if err := r.store.Insert(ctx, rec); err != nil {
			r.logger.Error("failed to store access record",
				"error", err,
				"request_id", rec.RequestID,
			)
		}
		cancel()
	}
}

// Close stops accepting records and waits until the queue is drained.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.records)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Debug("audit recorder stopped")
	return nil
}
