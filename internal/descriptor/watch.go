// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher schedules a callback whenever a descriptor file under
// baseDir is created, written, removed, or renamed. It debounces bursts
// of filesystem events (e.g. an archive extraction writing dozens of
// files) into a single callback per quiet period.
//
// This supplements spec §4.1's "after any mutation the discovery phase
// is re-run" — the source only re-ran discovery on explicit
// package-manager calls; watch mode triggers it automatically.
type Watcher struct {
	fsw    *fsnotify.Watcher
	debounce time.Duration
	onChange func()
	done   chan struct{}
}

// NewWatcher starts watching baseDir (non-recursively per directory,
// but every directory up to maxWalkDepth is registered) for descriptor
// file changes. onChange is invoked at most once per debounce window.
func NewWatcher(baseDir string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := addTree(fsw, baseDir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, debounce: debounce, onChange: onChange, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return addDirLevel(fsw, root, 0, maxWalkDepth)
}

func addDirLevel(fsw *fsnotify.Watcher, dir string, depth, maxDepth int) error {
	if err := fsw.Add(dir); err != nil {
		return err
	}
	if depth >= maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := addDirLevel(fsw, filepath.Join(dir, e.Name()), depth+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	fire := make(chan struct{})

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isDescriptorEvent(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				case <-w.done:
				}
			})
		case <-fire:
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("descriptor: watch error", "error", err)
		case <-w.done:
			return
		}
	}
}

func isDescriptorEvent(ev fsnotify.Event) bool {
	return strings.HasSuffix(ev.Name, ModuleExtension) || strings.HasSuffix(ev.Name, PluginExtension)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
