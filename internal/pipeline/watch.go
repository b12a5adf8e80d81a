package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"turbopix/internal/logging"
)

// watcher wraps the fsnotify.Watcher whose events watchRoots feeds into a
// debouncer, turning a burst of filesystem events into a single re-index,
// directly grounded on the teacher's indexDebouncer.
type watcher struct {
	fs *fsnotify.Watcher
}

func (w *watcher) close() {
	if w != nil && w.fs != nil {
		w.fs.Close()
	}
}

// debouncer resets a timer on every trigger call so a burst of events
// collapses into one callback invocation after delay of quiet.
type debouncer struct {
	delay    time.Duration
	callback func()
	timer    *time.Timer
	mu       sync.Mutex
}

func newDebouncer(delay time.Duration, callback func()) *debouncer {
	return &debouncer{delay: delay, callback: callback}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.callback)
}

// watchRoots adds every non-hidden directory under the configured roots to
// an fsnotify watcher and re-indexes (a non-full rescan: new/changed files
// only, no orphan sweep) after a quiet period following the last change.
func (s *Scheduler) watchRoots(ctx context.Context) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Error("pipeline: failed to create file watcher: %v", err)
		return
	}
	s.watch = &watcher{fs: fw}

	count := 0
	for _, root := range s.cfg.Roots {
		count += addDirectoriesToWatcher(fw, root)
	}
	logging.Debug("pipeline: watching %d directories across %d roots", count, len(s.cfg.Roots))

	debounce := newDebouncer(s.cfg.DebounceDelay, func() {
		logging.Debug("pipeline: file changes detected, re-indexing")
		if err := s.RunOnce(ctx, false); err != nil {
			logging.Error("pipeline: re-index after file change failed: %v", err)
		}
	})

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			handleWatchEvent(fw, event, debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("pipeline: watcher error: %v", err)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func addDirectoriesToWatcher(fw *fsnotify.Watcher, root string) int {
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if addErr := fw.Add(path); addErr != nil {
				logging.Warn("pipeline: failed to watch %s: %v", path, addErr)
			} else {
				count++
			}
		}
		return nil
	})
	if err != nil {
		logging.Error("pipeline: failed to walk %s for watcher setup: %v", root, err)
	}
	return count
}

func handleWatchEvent(fw *fsnotify.Watcher, event fsnotify.Event, debounce *debouncer) {
	if strings.Contains(event.Name, string(filepath.Separator)+".") {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				logging.Warn("pipeline: failed to watch new directory %s: %v", event.Name, err)
			}
		}
		debounce.trigger()

	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		debounce.trigger()

	case event.Op&fsnotify.Write != 0:
		if info, err := os.Stat(event.Name); err == nil && !info.IsDir() {
			debounce.trigger()
		}
	}
}
