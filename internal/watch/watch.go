// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch triggers a full index rebuild when the source tree or the
// links file changes. Bursts of events are coalesced: the rebuild runs once
// the tree has been quiet for the debounce interval.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RebuildFunc runs one full build.
type RebuildFunc func(ctx context.Context) error

// Watcher observes Root recursively and LinksFile.
type Watcher struct {
	Root      string
	LinksFile string
	Debounce  time.Duration
	Rebuild   RebuildFunc
	Logger    *slog.Logger

	root  string
	links string
}

// New returns a Watcher. A zero debounce fires on the first event.
func New(root, linksFile string, debounce time.Duration, rebuild RebuildFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		Root:      root,
		LinksFile: linksFile,
		Debounce:  debounce,
		Rebuild:   rebuild,
		Logger:    logger,
	}
}

// Run watches until ctx is cancelled. Rebuild errors are logged and do not
// stop the watcher; cancellation returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := w.open()
	if err != nil {
		return err
	}
	defer fsw.Close()
	return w.loop(ctx, fsw)
}

func (w *Watcher) open() (*fsnotify.Watcher, error) {
	root, err := filepath.Abs(w.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	// Events carry the watched path, so a symlinked root is watched at its target.
	if w.root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, fmt.Errorf("watching %s: %w", w.Root, err)
	}
	if w.LinksFile != "" {
		if w.links, err = filepath.Abs(w.LinksFile); err != nil {
			return nil, fmt.Errorf("resolving links file: %w", err)
		}
		if dir, err := filepath.EvalSymlinks(filepath.Dir(w.links)); err == nil {
			w.links = filepath.Join(dir, filepath.Base(w.links))
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.addTree(fsw, w.root); err != nil {
		fsw.Close()
		return nil, err
	}
	// The directory is watched rather than the file so editors that
	// replace the file by rename keep being observed.
	if w.links != "" {
		if err := fsw.Add(filepath.Dir(w.links)); err != nil {
			w.Logger.Warn("kb.watch_links_error", "path", w.links, "error", err)
		}
	}

	w.Logger.Info("kb.watch_started", "root", w.root, "links_file", w.links, "debounce", w.Debounce)
	return fsw, nil
}

// addTree watches dir and every non-hidden directory below it.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			w.Logger.Warn("kb.watch_walk_error", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
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

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && w.underRoot(ev.Name) && !isHidden(w.rel(ev.Name)) {
				// New directories need their own watch; errors mean it vanished already.
				_ = w.addTree(fsw, ev.Name)
			}
			if !w.relevant(ev) {
				continue
			}
			w.Logger.Debug("kb.watch_event", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Stop()
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("kb.watch_error", "error", err)

		case <-fire:
			fire = nil
			w.Logger.Info("kb.watch_rebuild")
			if err := w.Rebuild(ctx); err != nil && ctx.Err() == nil {
				w.Logger.Error("kb.watch_rebuild_failed", "error", err)
			}
		}
	}
}

// relevant reports whether ev should schedule a rebuild: any content change
// to the links file, or to a non-hidden path under the root.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if w.links != "" && name == w.links {
		return true
	}
	if !w.underRoot(name) {
		return false
	}
	return !isHidden(w.rel(name))
}

func (w *Watcher) underRoot(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHidden reports whether any element of the relative path starts with a dot.
// "." and ".." are not hidden.
func isHidden(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
