package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/paramref"
)

// DefaultReloadDelay coalesces the bursts of events editors produce when
// saving a file.
const DefaultReloadDelay = 100 * time.Millisecond

// WatchFile reloads the catalog file at path whenever it changes and passes
// the outcome to onLoad. It blocks until ctx is cancelled. The containing
// directory is watched so atomic renames are seen.
func WatchFile(ctx context.Context, path string, delay time.Duration, onLoad func([]paramref.Parameter, error)) error {
	if delay <= 0 {
		delay = DefaultReloadDelay
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		params, err := LoadFile(abs)
		if err != nil {
			eventlog.Emit("catalog.reload", map[string]any{"path": abs, "error": err})
		} else {
			eventlog.Emit("catalog.reload", map[string]any{"path": abs, "count": len(params)})
		}
		onLoad(params, err)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(delay, reload)
			mu.Unlock()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			eventlog.Emit("catalog.watch", map[string]any{"path": abs, "error": err})
		}
	}
}
