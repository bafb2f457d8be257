package auth

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is the quiet period before a change is reported.
const DefaultWatchDebounce = 200 * time.Millisecond

// UsersWatcher reports edits to the credential file. The store is immutable,
// so the watcher only tells the operator that a restart is needed.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file on save are still noticed.
type UsersWatcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// NewUsersWatcher creates a watcher for the credential file at path.
func NewUsersWatcher(path string, debounce time.Duration, logger *slog.Logger) (*UsersWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", filepath.Dir(abs), err)
	}

	return &UsersWatcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		watcher:  w,
	}, nil
}

// Watch blocks until ctx is cancelled, calling onChange once per burst of
// modifications to the credential file. A nil onChange logs a warning.
func (uw *UsersWatcher) Watch(ctx context.Context, onChange func(path string)) error {
	if onChange == nil {
		onChange = func(path string) {
			uw.logger.Warn("credential file changed, restart the proxy to apply", "path", path)
		}
	}

	defer uw.stop()

	uw.logger.Debug("watching credential file", "path", uw.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-uw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !uw.relevant(event) {
				continue
			}
			uw.trigger(func() { onChange(uw.path) })

		case err, ok := <-uw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			uw.logger.Error("credential watcher error", "error", err)
		}
	}
}

func (uw *UsersWatcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == uw.path
}

func (uw *UsersWatcher) trigger(fn func()) {
	uw.mu.Lock()
	defer uw.mu.Unlock()

	if uw.timer != nil {
		uw.timer.Stop()
	}
	uw.timer = time.AfterFunc(uw.debounce, fn)
}

func (uw *UsersWatcher) stop() {
	uw.mu.Lock()
	if uw.timer != nil {
		uw.timer.Stop()
		uw.timer = nil
	}
	uw.mu.Unlock()

	if err := uw.watcher.Close(); err != nil {
		uw.logger.Warn("failed to close credential watcher", "error", err)
	}
}
