package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultReloadDebounce = 500 * time.Millisecond

// RosterReloader is implemented by Ledger.
type RosterReloader interface {
	ReloadRoster() error
}

// Watcher reloads the roster whenever its CSV file changes on disk. The parent directory
// is watched so editors that save through rename are picked up too.
type Watcher struct {
	path     string
	target   RosterReloader
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher builds a roster watcher.
func NewWatcher(path string, target RosterReloader, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: filepath.Clean(path), target: target, debounce: debounce, logger: logger.Named("roster-watcher")}
}

// Run blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ledger: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("ledger: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching roster", zap.String("path", w.path))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			if err := w.target.ReloadRoster(); err != nil {
				w.logger.Warn("roster reload failed, keeping previous roster", zap.Error(err))
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("roster watcher error", zap.Error(err))
		}
	}
}
