package store

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long Watch waits for a burst of file events to
// settle.
const DefaultDebounce = 300 * time.Millisecond

// WatchOption configures Dir.Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
	log      *zap.Logger
}

// WithDebounce sets the settle time for file events.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) { c.debounce = d }
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(log *zap.Logger) WatchOption {
	return func(c *watchConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Watch calls fn with the names of the pages that changed below Root,
// once per burst of events, until ctx is done. Subdirectories created
// while watching are watched too.
func (d *Dir) Watch(ctx context.Context, fn func(pages []string), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := addTree(w, d.Root); err != nil {
		return err
	}
	cfg.log.Debug("Watching pages", zap.String("root", d.Root))

	timer := time.NewTimer(cfg.debounce)
	timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(w, event.Name); err != nil {
						cfg.log.Warn("Unable to watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
			}
			name, ok := d.PageName(event.Name)
			if !ok {
				continue
			}
			pending[name] = true
			timer.Reset(cfg.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			cfg.log.Warn("Watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			pages := make([]string, 0, len(pending))
			for name := range pending {
				pages = append(pages, name)
			}
			sort.Strings(pages)
			clear(pending)

			cfg.log.Debug("Pages changed", zap.Strings("pages", pages))
			fn(pages)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(entry.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
