package config

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
)

// Watcher polls file modification times and reloads the bag specs on change.
// A file that appears or disappears counts as a change.
type Watcher struct {
	loader   *Loader
	interval time.Duration
	onReload func([]BagSpec)
	log      *zap.Logger

	lastMTime map[string]time.Time
}

// NewWatcher creates a watcher for the files of loader.
// onReload receives the freshly loaded specs; failed reloads are logged and skipped.
func NewWatcher(loader *Loader, interval time.Duration, onReload func([]BagSpec), log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		loader:    loader,
		interval:  interval,
		onReload:  onReload,
		log:       log,
		lastMTime: make(map[string]time.Time),
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// prime cache
	w.scan()
	for {
		select {
		case <-ticker.C:
			if w.scan() {
				w.reload()
			}
		case <-ctx.Done():
			return
		}
	}
}

// scan records mtimes and reports whether any file changed since the last scan.
func (w *Watcher) scan() bool {
	changed := false
	paths := w.loader.WatchPaths()
	current := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			// missing file: zero mtime
			current[p] = time.Time{}
		} else {
			current[p] = fi.ModTime()
		}
		last, ok := w.lastMTime[p]
		if ok && !last.Equal(current[p]) {
			changed = true
		}
	}
	w.lastMTime = current
	return changed
}

func (w *Watcher) reload() {
	w.loader.Invalidate()
	specs, err := w.loader.Load()
	if err != nil {
		w.log.Warn("config reload failed; keeping previous bags", zap.Error(err))
		return
	}
	w.log.Info("config reloaded", zap.Int("bags", len(specs)))
	if w.onReload != nil {
		w.onReload(specs)
	}
	// new bags may bring new override paths
	w.scan()
}
