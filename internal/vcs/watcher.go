package vcs

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

// DefaultDebounce is how long HeadWatcher waits for git to finish updating
// refs before firing.
const DefaultDebounce = 250 * time.Millisecond

// HeadWatcher invokes a callback whenever HEAD or a branch ref changes,
// e.g. after a commit, checkout or pull from another terminal.
//
// Git replaces refs by renaming lock files, so the watcher observes the
// containing directories rather than the ref files themselves. Bursts of
// events are coalesced into one callback.
type HeadWatcher struct {
	gitDir   string
	debounce time.Duration
	callback func()
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewHeadWatcher creates a watcher for the repository in gitDir.
func NewHeadWatcher(gitDir string, debounce time.Duration, logger *slog.Logger, callback func()) (*HeadWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeadWatcher{
		gitDir:   gitDir,
		debounce: debounce,
		callback: callback,
		watcher:  w,
		logger:   logger,
	}, nil
}

// Start watches until ctx is cancelled. It returns an error only if the git
// directory itself cannot be watched.
func (w *HeadWatcher) Start(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(w.gitDir); err != nil {
		return err
	}
	heads := filepath.Join(w.gitDir, "refs", "heads")
	if _, err := os.Stat(heads); err == nil {
		if err := w.watcher.Add(heads); err != nil {
			w.logger.Debug("failed to watch refs/heads", "path", heads, "error", err)
		}
	}
	w.logger.Debug("watching git HEAD", "git_dir", w.gitDir)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("git HEAD watcher error", "error", err)

		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil
		}
	}
}

func (w *HeadWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.isRefEvent(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("git HEAD changed", "path", event.Name)
		if w.callback != nil {
			w.callback()
		}
	})
}

func (w *HeadWatcher) isRefEvent(name string) bool {
	if strings.HasSuffix(name, ".lock") {
		return false
	}
	rel, err := filepath.Rel(w.gitDir, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == "HEAD" || rel == "packed-refs" || strings.HasPrefix(rel, "refs/heads/")
}
