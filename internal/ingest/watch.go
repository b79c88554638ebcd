package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watcher waits for changes to settle.
const DefaultDebounce = 2 * time.Second

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watcher reports changes to the documents under a directory. fsnotify
// watches are not recursive, so every subdirectory is added, including
// ones created while watching.
type Watcher struct {
	root     string
	debounce time.Duration
	ignore   ignoreRules
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

// NewWatcher watches dir and its subdirectories, honoring the same skip
// rules as Load. A non-positive debounce selects DefaultDebounce.
func NewWatcher(dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	root, err := validateDir(dir)
	if err != nil {
		return nil, err
	}
	ignore, err := loadIgnore(root)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w := &Watcher{root: root, debounce: debounce, ignore: ignore, watcher: fw, logger: logger}
	if _, err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run calls onChange with the sorted relative paths that changed, once
// per quiet period, until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	var (
		pending = map[string]struct{}{}
		timer   *time.Timer
		fire    <-chan time.Time
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

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			changed := w.handle(event)
			if len(changed) == 0 {
				continue
			}
			for _, rel := range changed {
				pending[rel] = struct{}{}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for rel := range pending {
				paths = append(paths, rel)
			}
			sort.Strings(paths)
			clear(pending)
			onChange(paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("filesystem watcher error", zap.Error(err))
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// handle returns the relative paths an event touched that Load cares about.
func (w *Watcher) handle(event fsnotify.Event) []string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return nil
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if defaultSkipDirs[info.Name()] || w.ignore.matchDir(rel) {
				return nil
			}
			// files may land before the new directory is watched
			found, err := w.addTree(event.Name)
			if err != nil {
				w.logger.Warn("watching new directory", zap.String("dir", rel), zap.Error(err))
			}
			return found
		}
	}

	if rel == IgnoreFile {
		w.reloadIgnore()
		return []string{rel}
	}
	if !Supported(rel) || w.ignore.match(rel) {
		return nil
	}
	return []string{rel}
}

// reloadIgnore re-reads the ignore rules and watches any directory they
// no longer exclude. Invalid rules keep the previous set.
func (w *Watcher) reloadIgnore() {
	rules, err := loadIgnore(w.root)
	if err != nil {
		w.logger.Warn("keeping previous ignore rules", zap.Error(err))
		return
	}
	w.ignore = rules
	if _, err := w.addTree(w.root); err != nil {
		w.logger.Warn("rewatching after ignore change", zap.Error(err))
	}
}

// addTree watches dir and every subdirectory Load would descend into, and
// returns the supported files already present.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !d.IsDir() {
			if Supported(path) && !w.ignore.match(rel) {
				found = append(found, rel)
			}
			return nil
		}
		if path != w.root && (defaultSkipDirs[d.Name()] || w.ignore.matchDir(rel)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", rel, err)
		}
		return nil
	})
	return found, err
}

// Watch re-runs ingestion with a reset whenever documents under dir
// change, until ctx is done. Each run's outcome is passed to onRun.
func (i *Ingester) Watch(ctx context.Context, dir string, debounce time.Duration, onRun func(*Report, error)) error {
	if dir == "" {
		dir = i.cfg.DocsDir
	}
	w, err := NewWatcher(dir, debounce, i.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	i.logger.Info("watching documents", zap.String("dir", dir))
	return w.Run(ctx, func(changed []string) {
		i.logger.Info("documents changed, re-indexing", zap.Strings("changed", changed))
		report, err := i.Run(ctx, dir, true)
		if onRun != nil {
			onRun(report, err)
		}
	})
}
