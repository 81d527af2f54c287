package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/starford/adrkb/internal/repository"
)

// debounceDelay coalesces bursts of editor writes into one rescan.
const debounceDelay = 200 * time.Millisecond

// RefreshFunc rescans the folders and brings the index up to date.
type RefreshFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on the ADR folders and processes change
// events until ctx is cancelled. Relations and numbering depend on the whole
// collection, so every burst of .md events triggers one call to refresh,
// normally (*Syncer).Refresh so watcher passes never overlap other callers.
func Watch(ctx context.Context, folders []repository.Folder, refresh RefreshFunc, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := 0
	for _, f := range folders {
		if err := w.Add(f.Path); err != nil {
			logger.Warn("watcher: add folder failed",
				slog.String("path", f.Path),
				slog.String("package", f.Package.String()),
				slog.String("error", err.Error()))
			continue
		}
		watched++
	}
	logger.Info("watcher: started", slog.Int("folders", watched))

	timer := time.NewTimer(debounceDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("watcher: stopped")
			return nil

		case <-timer.C:
			if err := refresh(ctx); err != nil {
				logger.Warn("watcher: refresh failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			timer.Reset(debounceDelay)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant filters out staging files and anything that is not markdown.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(name), ".md")
}
