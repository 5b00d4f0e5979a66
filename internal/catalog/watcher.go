package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Loader when files in its directory change. Bursts of
// events within the debounce window cause a single reload.
type Watcher struct {
	loader   *Loader
	debounce time.Duration
	logger   *slog.Logger
}

func NewWatcher(loader *Loader, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		loader:   loader,
		debounce: debounce,
		logger:   slog.Default().With("component", "catalog-watcher"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fs watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.loader.Dir()); err != nil {
		return fmt.Errorf("watching %s: %w", w.loader.Dir(), err)
	}
	w.logger.Info("watching search directory", "dir", w.loader.Dir())

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("search file changed",
				"file", filepath.Base(ev.Name),
				"op", ev.Op.String(),
			)
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("fs watcher error", "error", err)
		case <-timer.C:
			pending = false
			// A failed reload keeps the previous catalog and is already logged.
			_, _ = w.loader.Reload(ctx)
		}
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(ev.Name)
	if name == SectionsFile {
		return true
	}
	_, _, ok := ParseFileName(name)
	return ok
}
