package sodabuild

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/soda-gql/sodabuild/internal/resolver"
)

// watchSkipDirs are never registered with the file watcher.
var watchSkipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// WatchOptions controls watch mode.
type WatchOptions struct {
	// Debounce is how long the watcher waits after the last event
	// before rebuilding. Defaults to 250ms.
	Debounce time.Duration

	// OnBuild receives every build's outcome, including the initial
	// build and failed ones. Optional.
	OnBuild func(*Report, error)
}

// Watch runs an initial build, then rebuilds whenever source files
// change, until the context is canceled. Build failures are reported
// through OnBuild and do not stop the watch loop.
func (b *Builder) Watch(ctx context.Context, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return buildErr(CodeResolve, "create watcher", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, b.root); err != nil {
		return buildErr(CodeResolve, "register watch dirs", err)
	}

	notify := func(report *Report, err error) {
		if err != nil {
			b.log.Error("build failed", "error", err)
		}
		if opts.OnBuild != nil {
			opts.OnBuild(report, err)
		}
	}
	notify(b.Build(ctx, BuildOptions{}))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New directories need registration before their contents
			// produce events.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if !skipWatchDir(filepath.Base(ev.Name)) {
						_ = addWatchDirs(watcher, ev.Name)
						pending = time.After(opts.Debounce)
					}
					continue
				}
			}
			if !resolver.Supported(ev.Name) {
				continue
			}
			pending = time.After(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("watch error", "error", err)

		case <-pending:
			pending = nil
			notify(b.Build(ctx, BuildOptions{}))
		}
	}
}

func skipWatchDir(name string) bool {
	return watchSkipDirs[name] || strings.HasPrefix(name, ".")
}

// addWatchDirs registers root and every non-skipped directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipWatchDir(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
