// Package watcher triggers re-syncs when BUILD files or project sources
// under the import roots change.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"querysync/internal/engine/workspace"
	"querysync/internal/shared/observability"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultExcludeDirs are directory base names never watched.
var DefaultExcludeDirs = []string{".git", ".querysync", "bazel-*", "node_modules"}

var buildFileNames = map[string]bool{
	"BUILD":       true,
	"BUILD.bazel": true,
}

type Watcher struct {
	fsWatcher   *fsnotify.Watcher
	root        string
	def         *workspace.ProjectDefinition
	debounce    time.Duration
	excludeDirs []glob.Glob
	onChange    func([]string)
	callbackMu  sync.Mutex
	logger      *slog.Logger

	pending   map[string]time.Time
	hashes    map[string]uint64
	pendingMu sync.Mutex
	timer     *time.Timer
}

// NewWatcher watches the import roots of def below the workspace root.
// onChange receives the sorted workspace-relative paths changed within one
// debounce window.
func NewWatcher(root string, def *workspace.ProjectDefinition, debounce time.Duration, excludeDirs []string, onChange func([]string), logger *slog.Logger) (*Watcher, error) {
	if onChange == nil || def == nil {
		return nil, os.ErrInvalid
	}
	if logger == nil {
		logger = slog.Default()
	}

	compiledDirs := make([]glob.Glob, 0, len(excludeDirs))
	for _, pattern := range excludeDirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiledDirs = append(compiledDirs, g)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:   fsw,
		root:        filepath.Clean(root),
		def:         def,
		debounce:    debounce,
		excludeDirs: compiledDirs,
		onChange:    onChange,
		logger:      logger,
		pending:     make(map[string]time.Time),
		hashes:      make(map[string]uint64),
	}, nil
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch registers every existing import root and starts the event loop.
func (w *Watcher) Watch() error {
	watched := 0
	for _, root := range w.def.ImportRoots() {
		dir := filepath.Join(w.root, filepath.FromSlash(root))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Warn("import root not found, not watching", "import_root", root)
			continue
		}
		if err := w.watchRecursive(dir); err != nil {
			return err
		}
		watched++
	}
	if watched == 0 {
		return os.ErrNotExist
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}

		if !w.shouldExcludeFile(path) {
			w.recordHash(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()

			if event.Op&fsnotify.Create == fsnotify.Create {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name); err != nil {
							w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
						} else {
							w.enqueueExistingFiles(event.Name)
						}
					}
					continue
				}
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
				w.forgetHash(event.Name)
				w.scheduleChange(event.Name)
			case event.Op&fsnotify.Write == fsnotify.Write, event.Op&fsnotify.Create == fsnotify.Create:
				if w.contentChanged(event.Name) {
					w.scheduleChange(event.Name)
				}
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// contentChanged reports whether the file content differs from the last
// seen version. Unreadable files count as changed.
func (w *Watcher) contentChanged(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	sum := xxhash.Sum64(data)

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if prev, ok := w.hashes[path]; ok && prev == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) recordHash(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	w.pendingMu.Lock()
	w.hashes[path] = xxhash.Sum64(data)
	w.pendingMu.Unlock()
}

func (w *Watcher) forgetHash(path string) {
	w.pendingMu.Lock()
	delete(w.hashes, path)
	w.pendingMu.Unlock()
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[w.relative(path)] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		w.flushChanges()
	})
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	if len(paths) > 0 {
		sort.Strings(paths)
		w.callbackMu.Lock()
		defer w.callbackMu.Unlock()
		w.onChange(paths)
	}
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return w.def.IsExcluded(w.relative(path))
}

// shouldExcludeFile keeps BUILD files, Starlark files and sources of the
// configured languages inside included directories.
func (w *Watcher) shouldExcludeFile(path string) bool {
	rel := w.relative(path)
	if !w.def.IsIncluded(rel) {
		return true
	}

	base := filepath.Base(path)
	if buildFileNames[base] || strings.HasSuffix(base, ".bzl") {
		return false
	}
	for _, lang := range w.def.Languages() {
		if lang.IsSource(rel) {
			return false
		}
	}
	return true
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		w.scheduleChange(path)
		return nil
	})
}
