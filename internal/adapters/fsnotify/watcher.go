// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It recursively watches a model directory, reports only model documents
// (.yaml, .yml, .json) and debounces rapid events (editors often trigger
// multiple writes per save).
package fsnotify

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Directories to ignore when watching.
var ignoreDirs = map[string]bool{
	".git":         true,
	".aswin":       true,
	"node_modules": true,
	".idea":        true,
	".vscode":      true,
}

// Extensions of model documents.
var modelExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".json": true,
}

// DebounceInterval is how long a path must stay quiet before its callback fires.
const DebounceInterval = 50 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw      *fsnotify.Watcher
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewWatcher creates a new file system watcher.
func NewWatcher() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:   fw,
		done: make(chan struct{}),
	}, nil
}

// Watch starts monitoring dir recursively.
// onChange is called with the absolute path of each changed model document.
func (w *Watcher) Watch(dir string, onChange func(path string)) error {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absPath); err != nil {
		return err
	}

	err = filepath.Walk(absPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if info.IsDir() {
			if ignoreDirs[info.Name()] && path != absPath {
				return filepath.SkipDir
			}
			return w.fw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	pending := make(map[string]*time.Timer)

	go func() {
		for {
			select {
			case event, ok := <-w.fw.Events:
				if !ok {
					return
				}
				path := event.Name

				// New subdirectories join the watch list.
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(path); err == nil && info.IsDir() {
						if !ignoreDirs[info.Name()] {
							w.fw.Add(path)
						}
						continue
					}
				}

				if !IsModelDocument(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}

				// Fire once the path has been quiet for DebounceInterval.
				if t, ok := pending[path]; ok && t.Stop() {
					t.Reset(DebounceInterval)
					continue
				}
				pending[path] = time.AfterFunc(DebounceInterval, func() {
					select {
					case <-w.done:
					default:
						onChange(path)
					}
				})

			case _, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				// fsnotify recovers from queue overflows on its own

			case <-w.done:
				return
			}
		}
	}()

	return nil
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	return w.fw.Close()
}

// IsModelDocument reports whether path names a model document outside the
// ignored directories. Editor swap and backup files are rejected by their
// extension.
func IsModelDocument(path string) bool {
	if !modelExts[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if ignoreDirs[part] {
			return false
		}
	}
	return true
}
