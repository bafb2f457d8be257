package health

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// CheckFunc probes a dependency. It returns nil when the dependency is
// healthy, or an error describing the problem.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one probe.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	// Message explains an unhealthy status.
	Message string `json:"message,omitempty"`

	// Duration is how long the probe took.
	Duration time.Duration `json:"duration_ms,omitempty"`

	// Timestamp is when the probe finished.
	Timestamp time.Time `json:"timestamp"`
}

// Healthy reports whether the probe succeeded.
func (r CheckResult) Healthy() bool {
	return r.Status == "ok"
}

// ErrCheckTimeout is reported when a probe does not return in time.
var ErrCheckTimeout = errors.New("health check timeout")

// Monitor probes one dependency on an interval and logs every change
// between healthy and unhealthy.
type Monitor struct {
	name         string
	check        CheckFunc
	interval     time.Duration
	checkTimeout time.Duration
	logger       *slog.Logger

	mu      sync.RWMutex
	last    CheckResult
	checked bool
}

// NewMonitor creates a monitor for the named dependency. A zero interval
// defaults to 30 seconds and a zero timeout to 5 seconds.
func NewMonitor(name string, check CheckFunc, interval, checkTimeout time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		name:         name,
		check:        check,
		interval:     interval,
		checkTimeout: checkTimeout,
		logger:       logger.With("component", "health", "dependency", name),
	}
}

// Run probes immediately, then on every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow runs one probe and records its result.
func (m *Monitor) CheckNow(ctx context.Context) CheckResult {
	result := m.runCheck(ctx)

	m.mu.Lock()
	previous, checked := m.last, m.checked
	m.last, m.checked = result, true
	m.mu.Unlock()

	switch {
	case !checked && !result.Healthy():
		m.logger.Warn("dependency unhealthy", "message", result.Message)
	case checked && previous.Healthy() && !result.Healthy():
		m.logger.Warn("dependency became unhealthy", "message", result.Message)
	case checked && !previous.Healthy() && result.Healthy():
		m.logger.Info("dependency recovered", "duration", result.Duration)
	}

	return result
}

// Last returns the most recent result and whether any probe has run.
func (m *Monitor) Last() (CheckResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.checked
}

// runCheck executes the probe with timeout.
func (m *Monitor) runCheck(ctx context.Context) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	start := time.Now()

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.check(checkCtx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return CheckResult{
				Status:    "unhealthy",
				Message:   err.Error(),
				Duration:  time.Since(start),
				Timestamp: time.Now(),
			}
		}
		return CheckResult{
			Status:    "ok",
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}

	case <-checkCtx.Done():
		return CheckResult{
			Status:    "unhealthy",
			Message:   ErrCheckTimeout.Error(),
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		}
	}
}
