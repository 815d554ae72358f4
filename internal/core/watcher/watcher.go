// Package watcher reports MATLAB source changes under the search path roots.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mpath/internal/shared/observability"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"
)

// Batch is one debounced group of changes. Structural is set when files or
// folders appeared, disappeared or were renamed, which invalidates the scan.
type Batch struct {
	Changed    []string
	Structural bool
}

// Target is what a batch is applied to; *collection.Collection satisfies it.
type Target interface {
	Evict(paths ...string)
	Rescan(ctx context.Context) error
}

// Apply evicts the changed files from target and rescans on structural
// changes.
func Apply(ctx context.Context, target Target, b Batch) error {
	if len(b.Changed) > 0 {
		target.Evict(b.Changed...)
	}
	if b.Structural {
		return target.Rescan(ctx)
	}
	return nil
}

// Applier applies batches to a target, spacing rescans at least interval
// apart. Evictions are never delayed.
type Applier struct {
	target  Target
	limiter *rate.Limiter
}

func NewApplier(target Target, interval time.Duration) *Applier {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Applier{target: target, limiter: rate.NewLimiter(limit, 1)}
}

func (a *Applier) Apply(ctx context.Context, b Batch) error {
	if b.Structural {
		if len(b.Changed) > 0 {
			a.target.Evict(b.Changed...)
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		return a.target.Rescan(ctx)
	}
	return Apply(ctx, a.target, b)
}

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	extensions   map[string]bool
	onChange     func(Batch)
	callbackMu   sync.Mutex

	roots   map[string]bool
	rootsMu sync.Mutex

	pending    map[string]time.Time
	structural bool
	hashes     map[string]string
	pendingMu  sync.Mutex
	timer      *time.Timer
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func(Batch)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs, err := compile(excludeDirs)
	if err != nil {
		return nil, err
	}
	compiledFiles, err := compile(excludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		extensions:   map[string]bool{".m": true, ".mlx": true, ".md": true},
		onChange:     onChange,
		roots:        make(map[string]bool),
		pending:      make(map[string]time.Time),
		hashes:       make(map[string]string),
	}, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// SetExtensions replaces the file extensions that produce events.
func (w *Watcher) SetExtensions(extensions []string) {
	filter := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		filter[normalized] = true
	}
	w.extensions = filter
}

func (w *Watcher) SetDebounce(debounce time.Duration) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.debounce = debounce
}

// Watch adds every folder under paths and starts delivering batches.
func (w *Watcher) Watch(paths []string) error {
	if err := w.AddRoots(paths); err != nil {
		return err
	}

	go w.run()
	return nil
}

// AddRoots watches the folders under any of paths not already watched. It
// is safe to call while the watcher runs; existing files are not reported.
func (w *Watcher) AddRoots(paths []string) error {
	w.rootsMu.Lock()
	defer w.rootsMu.Unlock()
	for _, path := range paths {
		if w.roots[path] {
			continue
		}
		if err := w.watchRecursive(path, false); err != nil {
			return err
		}
		w.roots[path] = true
		slog.Debug("watching root", "root", path)
	}
	return nil
}

// watchRecursive adds the folders under root. Known files are hashed so
// rewrites with identical content can be ignored.
func (w *Watcher) watchRecursive(root string, enqueue bool) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return w.fsWatcher.Add(path)
		}
		if w.shouldExcludeFile(path) {
			return nil
		}
		if enqueue {
			w.schedule(path, true)
			return nil
		}
		if sum, err := hashFile(path); err == nil {
			w.pendingMu.Lock()
			w.hashes[path] = sum
			w.pendingMu.Unlock()
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

			if event.Has(fsnotify.Create) {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() {
					if !w.shouldExcludeDir(event.Name) {
						if err := w.watchRecursive(event.Name, true); err != nil {
							slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
						}
						w.markStructural()
					}
					continue
				}
			}

			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// A removed folder cannot be stat'ed; any removal may change
				// the folder layout.
				if w.shouldExcludeFile(event.Name) && filepath.Ext(event.Name) != "" {
					continue
				}
				w.forget(event.Name)
				w.schedule(event.Name, true)
				continue
			}

			if w.shouldExcludeFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.schedule(event.Name, true)
				continue
			}
			if event.Has(fsnotify.Write) && w.contentChanged(event.Name) {
				w.schedule(event.Name, false)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// contentChanged records the file's hash and reports whether it differs from
// the last one seen.
func (w *Watcher) contentChanged(path string) bool {
	sum, err := hashFile(path)
	if err != nil {
		return true
	}
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.hashes[path] == sum {
		return false
	}
	w.hashes[path] = sum
	return true
}

func (w *Watcher) forget(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	for p := range w.hashes {
		if p == path || strings.HasPrefix(p, path+string(filepath.Separator)) {
			delete(w.hashes, p)
		}
	}
}

func (w *Watcher) markStructural() {
	w.pendingMu.Lock()
	w.structural = true
	w.pendingMu.Unlock()
	w.schedule("", true)
}

func (w *Watcher) schedule(path string, structural bool) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if path != "" {
		w.pending[path] = time.Now()
		if structural {
			if sum, err := hashFile(path); err == nil {
				w.hashes[path] = sum
			}
		}
	}
	w.structural = w.structural || structural

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	b := Batch{Structural: w.structural}
	for path := range w.pending {
		b.Changed = append(b.Changed, path)
	}
	w.pending = make(map[string]time.Time)
	w.structural = false
	w.pendingMu.Unlock()

	if len(b.Changed) == 0 && !b.Structural {
		return
	}
	sort.Strings(b.Changed)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(b)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) shouldExcludeFile(path string) bool {
	base := filepath.Base(path)
	if len(w.extensions) > 0 && !w.extensions[strings.ToLower(filepath.Ext(base))] {
		return true
	}
	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
