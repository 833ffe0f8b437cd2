// Package watcher provides debounced filesystem watching for watch mode.
// Change bursts are coalesced into one callback so a save-all in an editor
// triggers a single re-analysis instead of one per file.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher monitors source files for changes with debouncing and
// pause/resume support.
type FileWatcher interface {
	// Start begins watching, calling callback with debounced file changes.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the file watcher and cleans up resources.
	Stop() error

	// Pause stops firing callbacks but continues accumulating events.
	Pause()

	// Resume resumes firing callbacks. If events accumulated during pause,
	// fires immediately.
	Resume()
}

// skipDirNames are directory trees never worth watching. They mirror the
// discovery defaults; user-configured ignore globs are applied by discovery
// on each re-run, so a stray event under an ignored path costs one no-op
// analysis at worst.
var skipDirNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	"target":       true,
	"build":        true,
	"dist":         true,
	"__pycache__":  true,
	".venv":        true,
	".prism":       true,
}

const debounceTime = 500 * time.Millisecond

type fileWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool // Extensions to monitor (.go, .ts, etc.)
	callback   func(files []string)
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	paused   bool
	pausedMu sync.RWMutex

	accumulated   map[string]bool // Changed files awaiting the next flush
	accumulatedMu sync.Mutex

	debounceTimer *time.Timer
	timerMu       sync.Mutex

	stopOnce sync.Once
	doneCh   chan struct{} // Signals the watch goroutine has finished
}

// NewFileWatcher creates a watcher over dir and every subdirectory not in
// the skip set. extensions lists the file extensions to monitor, normally
// taken from the language registry for the configured languages.
func NewFileWatcher(dir string, extensions []string, logger *slog.Logger) (FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[strings.ToLower(ext)] = true
	}
	if logger == nil {
		logger = slog.Default()
	}

	fw := &fileWatcher{
		watcher:     w,
		extensions:  extMap,
		logger:      logger,
		accumulated: make(map[string]bool),
		doneCh:      make(chan struct{}),
	}

	if err := fw.watchTree(dir); err != nil {
		w.Close()
		return nil, err
	}
	return fw, nil
}

// Start begins watching for file changes.
func (fw *fileWatcher) Start(ctx context.Context, callback func(files []string)) error {
	if callback == nil {
		return nil
	}

	fw.callback = callback
	fw.ctx, fw.cancel = context.WithCancel(ctx)

	go fw.watch()
	return nil
}

// Stop stops the file watcher. Safe to call more than once.
func (fw *fileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			// Wait for the goroutine to finish (only if Start was called)
			<-fw.doneCh
		} else {
			// Never started, close doneCh manually
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

// Pause stops firing callbacks but continues accumulating events.
func (fw *fileWatcher) Pause() {
	fw.pausedMu.Lock()
	defer fw.pausedMu.Unlock()
	fw.paused = true
}

// Resume resumes firing callbacks. Events that accumulated during the
// pause fire immediately.
func (fw *fileWatcher) Resume() {
	fw.pausedMu.Lock()
	wasPaused := fw.paused
	fw.paused = false
	fw.pausedMu.Unlock()

	if !wasPaused {
		return
	}
	if files := fw.takeAccumulated(); len(files) > 0 && fw.callback != nil {
		fw.callback(files)
	}
}

// watch is the main event loop.
func (fw *fileWatcher) watch() {
	defer close(fw.doneCh)

	flushCh := make(chan struct{}, 1)

	for {
		select {
		case <-fw.ctx.Done():
			fw.stopDebounceTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// New directories need watches of their own
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := fw.watchTree(event.Name); err != nil {
						fw.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
				}
			}

			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.accumulatedMu.Lock()
			fw.accumulated[event.Name] = true
			fw.accumulatedMu.Unlock()

			fw.resetDebounceTimer(flushCh)

		case <-flushCh:
			fw.handleDebounceExpired()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

// handleDebounceExpired fires the callback with the accumulated batch,
// unless paused, in which case the batch keeps growing until Resume.
func (fw *fileWatcher) handleDebounceExpired() {
	fw.pausedMu.RLock()
	paused := fw.paused
	fw.pausedMu.RUnlock()
	if paused {
		return
	}

	if files := fw.takeAccumulated(); len(files) > 0 && fw.callback != nil {
		fw.callback(files)
	}
}

// takeAccumulated returns the pending batch and resets it.
func (fw *fileWatcher) takeAccumulated() []string {
	fw.accumulatedMu.Lock()
	defer fw.accumulatedMu.Unlock()

	if len(fw.accumulated) == 0 {
		return nil
	}
	files := make([]string, 0, len(fw.accumulated))
	for file := range fw.accumulated {
		files = append(files, file)
	}
	fw.accumulated = make(map[string]bool)
	return files
}

// resetDebounceTimer restarts the quiet-period timer, stopping and
// draining any previous one.
func (fw *fileWatcher) resetDebounceTimer(flushCh chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		if !fw.debounceTimer.Stop() {
			// Timer already fired, drain the channel
			select {
			case <-fw.debounceTimer.C:
			default:
			}
		}
	}

	fw.debounceTimer = time.AfterFunc(debounceTime, func() {
		select {
		case flushCh <- struct{}{}:
		default:
		}
	})
}

func (fw *fileWatcher) stopDebounceTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.debounceTimer != nil {
		fw.debounceTimer.Stop()
		fw.debounceTimer = nil
	}
}

// shouldProcessEvent reports whether an event is for a monitored source
// file. Only write, create, and remove matter; chmod and rename of the
// old name would double-count edits most editors make via rename.
func (fw *fileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
		return false
	}
	if underSkippedDir(event.Name) {
		return false
	}
	return fw.extensions[strings.ToLower(filepath.Ext(event.Name))]
}

// watchTree adds path and every subdirectory to the watcher, pruning the
// skip set so node_modules and friends never consume watch descriptors.
func (fw *fileWatcher) watchTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// The root must be watchable; subdirectories may come and go
			if path == root {
				return err
			}
			fw.logger.Warn("error accessing path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && skipDirNames[info.Name()] {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			fw.logger.Warn("failed to watch directory", "dir", path, "error", err)
		}
		return nil
	})
}

// underSkippedDir reports whether any path element is in the skip set.
func underSkippedDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if skipDirNames[part] {
			return true
		}
	}
	return false
}
