package collection

import (
	"sort"
	"sync"
	"sync/atomic"

	"mpath/internal/engine/model"
)

// Candidate tiers, best first.
const (
	tierCwdClass = iota
	tierCwdFile
	tierClass
	tierFile
)

// candidate is one artifact that can answer a name.
type candidate struct {
	name  string
	tier  int
	root  int // -1 for the working directory
	order int
	path  string
	class *classFolder
	// base is the root or working directory the candidate was found under.
	base string
}

func (c *candidate) less(o *candidate) bool {
	if c.tier != o.tier {
		return c.tier < o.tier
	}
	if c.root != o.root {
		return c.root < o.root
	}
	return c.order < o.order
}

// source is one folder contributing to a scope.
type source struct {
	folder *folderScan
	root   int
	base   string
}

// scope is the global namespace or one merged namespace package. Its index
// is built on first use, once per snapshot.
type scope struct {
	qualified string
	sources   []source

	once sync.Once
	idx  *scopeIndex

	nsOnce sync.Once
	nsObj  atomic.Pointer[model.Object]
}

type scopeIndex struct {
	candidates map[string][]*candidate
	names      []string
	namespaces map[string]*scope
	nsNames    []string
}

func (s *scope) index() *scopeIndex {
	s.once.Do(func() {
		idx := &scopeIndex{
			candidates: make(map[string][]*candidate),
			namespaces: make(map[string]*scope),
		}
		add := func(c *candidate) {
			if _, ok := idx.candidates[c.name]; !ok {
				idx.names = append(idx.names, c.name)
			}
			idx.candidates[c.name] = append(idx.candidates[c.name], c)
		}
		for _, src := range s.sources {
			f := src.folder
			classTier, fileTier := tierClass, tierFile
			if src.root < 0 {
				classTier, fileTier = tierCwdClass, tierCwdFile
			}
			for _, n := range f.classNames {
				cf := f.classes[n]
				add(&candidate{name: n, tier: classTier, root: src.root, order: f.order, path: cf.dir, class: cf, base: src.base})
			}
			for _, n := range f.fileNames {
				add(&candidate{name: n, tier: fileTier, root: src.root, order: f.order, path: f.files[n], base: src.base})
			}
			for _, n := range f.nsNames {
				child, ok := idx.namespaces[n]
				if !ok {
					child = &scope{qualified: model.Join(s.qualified, ".", n)}
					idx.namespaces[n] = child
					idx.nsNames = append(idx.nsNames, n)
				}
				child.sources = append(child.sources, source{folder: f.namespaces[n], root: src.root, base: src.base})
			}
		}
		for _, cands := range idx.candidates {
			sort.SliceStable(cands, func(i, j int) bool { return cands[i].less(cands[j]) })
		}
		s.idx = idx
	})
	return s.idx
}

// scans lists the namespace folders' scans in precedence order.
func (s *scope) scans() []*folderScan {
	out := make([]*folderScan, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src.folder)
	}
	return out
}

// dirs lists the namespace folders in precedence order.
func (s *scope) dirs() []string {
	out := make([]string, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src.folder.dir)
	}
	return out
}

// bases lists the distinct roots contributing to the scope.
func (s *scope) bases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, src := range s.sources {
		if !seen[src.base] {
			seen[src.base] = true
			out = append(out, src.base)
		}
	}
	return out
}

// snapshot is the immutable search path state read by resolutions.
type snapshot struct {
	roots []string
	scans []*rootScan
	cwd   string
	// cwdScan is nil when no working directory is set.
	cwdScan *rootScan

	global *scope
	// privates maps a private folder to its scan.
	privates map[string]*folderScan
	// classes maps a class folder to its scan.
	classes map[string]*classFolder
	// folders maps every plain path folder to its scan.
	folders map[string]*pathFolder
}

// pathFolder is a plain folder on the path. Its Folder object is built on
// first use, once per snapshot.
type pathFolder struct {
	scan *folderScan
	base string

	once sync.Once
	obj  atomic.Pointer[model.Object]
}

func newSnapshot(roots []string, scans []*rootScan, cwd string, cwdScan *rootScan) *snapshot {
	snap := &snapshot{
		roots:    roots,
		scans:    scans,
		cwd:      cwd,
		cwdScan:  cwdScan,
		global:   &scope{},
		privates: make(map[string]*folderScan),
		classes:  make(map[string]*classFolder),
		folders:  make(map[string]*pathFolder),
	}
	if cwdScan != nil {
		for _, f := range cwdScan.folders {
			snap.global.sources = append(snap.global.sources, source{folder: f, root: -1, base: cwd})
			snap.addFolder(f, cwd)
		}
	}
	for i, rs := range scans {
		for _, f := range rs.folders {
			snap.global.sources = append(snap.global.sources, source{folder: f, root: i, base: rs.root})
			snap.addFolder(f, rs.root)
		}
	}
	return snap
}

func (s *snapshot) addFolder(f *folderScan, base string) {
	if _, ok := s.folders[f.dir]; !ok {
		s.folders[f.dir] = &pathFolder{scan: f, base: base}
	}
	s.register(f)
}

// rebuild returns a snapshot over the same scans with fresh scopes.
func (s *snapshot) rebuild() *snapshot {
	return newSnapshot(s.roots, s.scans, s.cwd, s.cwdScan)
}

func (s *snapshot) register(f *folderScan) {
	if f.private != nil {
		s.privates[f.private.dir] = f.private
	}
	for _, cf := range f.classes {
		s.classes[cf.dir] = cf
		if cf.private != nil {
			s.privates[cf.private.dir] = cf.private
		}
	}
	for _, nf := range f.namespaces {
		s.register(nf)
	}
}

// scopeFor descends to the namespace scope with the given qualified name.
func (s *snapshot) scopeFor(qualified string) (*scope, bool) {
	sc := s.global
	for _, seg := range model.SplitQualified(qualified) {
		child, ok := sc.index().namespaces[seg]
		if !ok {
			return nil, false
		}
		sc = child
	}
	return sc, true
}

// warnings collects the scan warnings of every root.
func (s *snapshot) warnings() []string {
	var out []string
	if s.cwdScan != nil {
		out = append(out, s.cwdScan.warnings...)
	}
	for _, rs := range s.scans {
		out = append(out, rs.warnings...)
	}
	return out
}

// namespaces lists the namespace objects built in this snapshot.
func (s *snapshot) namespaces() []*model.Object {
	var out []*model.Object
	var walk func(sc *scope)
	walk = func(sc *scope) {
		idx := sc.index()
		for _, n := range idx.nsNames {
			child := idx.namespaces[n]
			if obj := child.nsObj.Load(); obj != nil {
				out = append(out, obj)
			}
			walk(child)
		}
	}
	walk(s.global)
	return out
}

// builtFolders lists the Folder objects built in this snapshot.
func (s *snapshot) builtFolders() []*model.Object {
	var out []*model.Object
	for _, pf := range s.folders {
		if obj := pf.obj.Load(); obj != nil {
			out = append(out, obj)
		}
	}
	return out
}
