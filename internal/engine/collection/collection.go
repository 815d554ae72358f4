// Package collection resolves MATLAB names over an ordered search path.
//
// A Collection scans its roots into an immutable snapshot and resolves names
// lazily against it, following MATLAB precedence: the working directory
// first, then class folders, then plain files, with ties broken by root
// order and then by folder discovery order. Objects are memoized by path and
// resolutions by qualified name.
package collection

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"mpath/internal/core/errors"
	"mpath/internal/engine/livescript"
	"mpath/internal/engine/model"
	"mpath/internal/engine/parser"
	"mpath/internal/shared/observability"

	"github.com/maypok86/otter"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheCapacity     = 10_000
	defaultScanCacheCapacity = 64
	defaultLinesCapacity     = 256
	defaultConcurrency       = 8
)

type Exclude struct {
	// Dirs and Files are glob patterns matched against entry base names.
	Dirs  []string
	Files []string
}

type Options struct {
	// Recursive adds every descendant of a root to the path, as genpath does.
	Recursive bool
	// ParseLiveScripts makes .mlx files candidates and reads plain-text live
	// code in .m files as live scripts.
	ParseLiveScripts bool
	// WorkingDir takes precedence over every root. Empty disables it.
	WorkingDir string
	Exclude    Exclude
	// CacheCapacity bounds the name resolution cache.
	CacheCapacity int
	// ScanCacheCapacity bounds the number of remembered root scans.
	ScanCacheCapacity int
	// Concurrency bounds the parses run by Materialize.
	Concurrency int
}

func (o *Options) applyDefaults() {
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = defaultCacheCapacity
	}
	if o.ScanCacheCapacity <= 0 {
		o.ScanCacheCapacity = defaultScanCacheCapacity
	}
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
}

type Collection struct {
	opts    Options
	parser  *parser.Parser
	scanner *scanner

	state atomic.Pointer[snapshot]
	// mutate serializes path mutations.
	mutate sync.Mutex
	// fence orders resolution cache writes against snapshot swaps.
	fence sync.RWMutex

	names    otter.Cache[string, resolution]
	resolves singleflight.Group
	scans    *lruCache[string, *rootScan]
	lines    *lruCache[string, []string]

	objMu   sync.RWMutex
	objects map[string]*objectEntry
	loads   singleflight.Group
}

type objectEntry struct {
	obj *model.Object
	err error
	// sources are the files a composite was built from.
	sources []string
}

type Stats struct {
	Roots         int
	CachedObjects int
	Resolutions   int
	Hits          int64
	Misses        int64
}

// New builds a collection over roots, the first root having the highest
// precedence. Every root must be an existing directory.
func New(opts Options, roots ...string) (*Collection, error) {
	opts.applyDefaults()
	sc, err := newScanner(opts)
	if err != nil {
		return nil, err
	}
	names, err := otter.MustBuilder[string, resolution](opts.CacheCapacity).CollectStats().Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeConfiguration, "build resolution cache")
	}

	c := &Collection{
		opts:    opts,
		parser:  parser.NewParser(),
		scanner: sc,
		names:   names,
		scans:   newLRUCache[string, *rootScan](opts.ScanCacheCapacity),
		lines:   newLRUCache[string, []string](defaultLinesCapacity),
		objects: make(map[string]*objectEntry),
	}
	c.parser.RegisterExtractor(parser.ExtSource, parser.ExtractorFunc(c.extractSource))
	c.parser.RegisterBinaryExtractor(parser.ExtLiveScript, parser.ExtractorFunc(livescript.Extract))

	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		root, err := checkDir(r)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(abs, root) {
			abs = append(abs, root)
		}
	}
	cwd := ""
	if opts.WorkingDir != "" {
		if cwd, err = checkDir(opts.WorkingDir); err != nil {
			return nil, err
		}
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()
	c.publish(c.snapshotFor(abs, cwd), nil)
	slog.Debug("collection ready", "roots", len(abs), "cwd", cwd, "recursive", opts.Recursive)
	return c, nil
}

// extractSource reads .m files, routing plain-text live code to the live
// script extractor when live scripts are enabled.
func (c *Collection) extractSource(src []byte, path string) (*model.Object, error) {
	if c.opts.ParseLiveScripts && livescript.IsLiveCode(src) {
		return livescript.ExtractText(src, path), nil
	}
	return parser.ExtractMatlab(src, path)
}

func checkDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid path %q", dir))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeConfiguration, "search path root does not exist"), errors.CtxPath, abs)
	}
	if !info.IsDir() {
		return "", errors.AddContext(errors.New(errors.CodeConfiguration, "search path root is not a directory"), errors.CtxPath, abs)
	}
	return abs, nil
}

// snapshotFor scans what is not already cached and assembles a snapshot.
// Callers hold c.mutate.
func (c *Collection) snapshotFor(roots []string, cwd string) *snapshot {
	scans := make([]*rootScan, len(roots))
	for i, r := range roots {
		scans[i] = c.scan(r, c.opts.Recursive)
	}
	var cwdScan *rootScan
	if cwd != "" {
		cwdScan = c.scan(cwd, false)
	}
	return newSnapshot(roots, scans, cwd, cwdScan)
}

func (c *Collection) scan(dir string, recursive bool) *rootScan {
	key := fmt.Sprintf("%s|%t", dir, recursive)
	if rs, ok := c.scans.Get(key); ok {
		return rs
	}
	rs := c.scanner.scanRoot(dir, recursive)
	c.scans.Put(key, rs)
	return rs
}

// publish swaps in snap and invalidates resolutions. A nil drop clears the
// whole resolution cache; otherwise only entries it selects are removed.
// Callers hold c.mutate.
func (c *Collection) publish(snap *snapshot, drop func(resolution) bool) {
	c.fence.Lock()
	defer c.fence.Unlock()
	c.state.Store(snap)
	if drop == nil {
		c.names.Clear()
	} else {
		c.names.DeleteByFunc(func(_ string, r resolution) bool { return drop(r) })
	}
	observability.SearchPathRoots.Set(float64(len(snap.roots)))
}

// AddPath puts root on the search path, at the front when prepend is set and
// at the end otherwise. A root already on the path is moved.
func (c *Collection) AddPath(root string, prepend bool) error {
	pos := 0
	if !prepend {
		pos = -1
	}
	return c.InsertPath(root, pos)
}

// InsertPath puts root at the given priority index. Negative or out of range
// positions append.
func (c *Collection) InsertPath(root string, position int) error {
	abs, err := checkDir(root)
	if err != nil {
		return err
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()
	cur := c.state.Load()
	roots := slices.DeleteFunc(slices.Clone(cur.roots), func(r string) bool { return r == abs })
	if position < 0 || position > len(roots) {
		position = len(roots)
	}
	roots = slices.Insert(roots, position, abs)

	c.publish(c.snapshotFor(roots, cur.cwd), nil)
	slog.Info("search path updated", "root", abs, "position", position, "roots", len(roots))
	return nil
}

// RemovePath takes root off the search path. Resolutions won by other roots
// stay cached.
func (c *Collection) RemovePath(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid path %q", root))
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()
	cur := c.state.Load()
	if !slices.Contains(cur.roots, abs) {
		return errors.AddContext(errors.New(errors.CodeNotFound, "root is not on the search path"), errors.CtxPath, abs)
	}
	roots := slices.DeleteFunc(slices.Clone(cur.roots), func(r string) bool { return r == abs })

	c.publish(c.snapshotFor(roots, cur.cwd), func(r resolution) bool {
		return slices.Contains(r.bases, abs)
	})
	slog.Info("search path updated", "removed", abs, "roots", len(roots))
	return nil
}

// Paths returns the roots in precedence order.
func (c *Collection) Paths() []string {
	return slices.Clone(c.state.Load().roots)
}

func (c *Collection) WorkingDirectory() string {
	return c.state.Load().cwd
}

// SetWorkingDirectory replaces the working directory. An empty dir disables
// the working directory tier.
func (c *Collection) SetWorkingDirectory(dir string) error {
	abs := ""
	if dir != "" {
		var err error
		if abs, err = checkDir(dir); err != nil {
			return err
		}
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()
	cur := c.state.Load()
	c.publish(c.snapshotFor(cur.roots, abs), nil)
	slog.Debug("working directory changed", "cwd", abs)
	return nil
}

// Rescan walks every root again. Class composites are dropped because their
// method sets may have changed; plain file objects stay cached.
func (c *Collection) Rescan(ctx context.Context) error {
	_, span := observability.Tracer.Start(ctx, "collection.Rescan")
	defer span.End()

	c.mutate.Lock()
	defer c.mutate.Unlock()
	cur := c.state.Load()
	c.scans.Clear()
	c.lines.Clear()
	snap := c.snapshotFor(cur.roots, cur.cwd)

	c.objMu.Lock()
	for key, e := range c.objects {
		if e.sources != nil {
			delete(c.objects, key)
			c.loads.Forget(key)
		}
	}
	observability.CachedObjects.Set(float64(len(c.objects)))
	c.objMu.Unlock()

	c.publish(snap, nil)
	slog.Debug("rescanned search path", "roots", len(snap.roots))
	return nil
}

// Evict drops the cached objects of the given files and every composite
// built from them. Resolutions are kept because the winners are unchanged.
func (c *Collection) Evict(paths ...string) {
	if len(paths) == 0 {
		return
	}
	drop := make(map[string]bool, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			drop[abs] = true
			c.lines.Remove(abs)
		}
	}

	c.objMu.Lock()
	evicted := 0
	for key, e := range c.objects {
		hit := drop[key]
		for _, src := range e.sources {
			hit = hit || drop[src]
		}
		if hit {
			delete(c.objects, key)
			c.loads.Forget(key)
			evicted++
		}
	}
	observability.CachedObjects.Set(float64(len(c.objects)))
	c.objMu.Unlock()

	// Namespace objects hold member pointers; fresh scopes rebuild them.
	c.mutate.Lock()
	c.publish(c.state.Load().rebuild(), func(resolution) bool { return false })
	c.mutate.Unlock()
	slog.Debug("evicted objects", "paths", len(paths), "evicted", evicted)
}

// Warnings returns the entries skipped while scanning.
func (c *Collection) Warnings() []string {
	return c.state.Load().warnings()
}

func (c *Collection) Stats() Stats {
	st := c.names.Stats()
	c.objMu.RLock()
	cached := len(c.objects)
	c.objMu.RUnlock()
	return Stats{
		Roots:         len(c.state.Load().roots),
		CachedObjects: cached,
		Resolutions:   c.names.Size(),
		Hits:          st.Hits(),
		Misses:        st.Misses(),
	}
}

// Close releases the resolution cache.
func (c *Collection) Close() {
	c.names.Close()
}
