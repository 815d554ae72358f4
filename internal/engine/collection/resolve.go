package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/engine/parser"
	"mpath/internal/shared/observability"
)

// resolution is a cached name lookup. It records where the winner lives,
// not the object itself.
type resolution struct {
	found bool
	cand  *candidate
	// namespace is set when the name denotes a namespace package.
	namespace string
	isNS      bool
	// folder is set when the name denotes a plain path folder.
	folder   string
	isFolder bool
	// members are the segments left after a class or function leaf.
	members []string
	// local names a subfunction for the file>local form.
	local string
	// bases are the roots whose removal invalidates the entry.
	bases []string
}

// Resolve returns the object named by a qualified name. A missing name is a
// NOT_FOUND error.
func (c *Collection) Resolve(name string) (*model.Object, error) {
	obj, found, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NotFound(name)
	}
	return obj, nil
}

// Lookup is Resolve with a missing name reported as found=false. Errors are
// the cached parse or configuration errors of the winner, shared between
// callers.
func (c *Collection) Lookup(name string) (*model.Object, bool, error) {
	snap := c.state.Load()
	res := c.resolve(snap, name)
	if !res.found {
		observability.ResolutionsTotal.WithLabelValues(observability.ResultNotFound).Inc()
		return nil, false, nil
	}
	obj, found, err := c.materialize(snap, res)
	if err != nil {
		observability.ResolutionsTotal.WithLabelValues(observability.ResultError).Inc()
		return nil, false, err
	}
	return obj, found, nil
}

// GetPath returns the winning path for name without parsing it. Class
// folders answer with their definition file when they have one.
func (c *Collection) GetPath(name string) (string, bool) {
	res := c.resolve(c.state.Load(), name)
	if !res.found {
		return "", false
	}
	if res.isFolder {
		return res.folder, true
	}
	if res.isNS {
		sc, ok := c.state.Load().scopeFor(res.namespace)
		if !ok || len(sc.sources) == 0 {
			return "", false
		}
		return sc.sources[0].folder.dir, true
	}
	cf := res.cand.class
	if cf == nil {
		return res.cand.path, true
	}
	if len(res.members) > 0 {
		if p, ok := cf.methods[res.members[0]]; ok {
			return p, true
		}
	}
	if cf.def != "" {
		return cf.def, true
	}
	return cf.dir, true
}

// resolve consults the resolution cache, computing and caching misses.
// Concurrent misses share one computation per snapshot.
func (c *Collection) resolve(snap *snapshot, name string) resolution {
	if res, ok := c.names.Get(name); ok {
		observability.ResolutionsTotal.WithLabelValues(observability.ResultHit).Inc()
		return res
	}
	observability.ResolutionsTotal.WithLabelValues(observability.ResultMiss).Inc()

	key := fmt.Sprintf("%p|%s", snap, name)
	v, _, _ := c.resolves.Do(key, func() (any, error) {
		res := compute(snap, name)
		c.fence.RLock()
		if c.state.Load() == snap {
			c.names.Set(name, res)
		}
		c.fence.RUnlock()
		return res, nil
	})
	return v.(resolution)
}

// compute resolves name against snap.
func compute(snap *snapshot, name string) resolution {
	name = strings.TrimSpace(name)
	if name == "" {
		return resolution{}
	}
	if file, local, ok := strings.Cut(name, ">"); ok {
		res := compute(snap, file)
		if !res.found || res.isNS || res.isFolder || local == "" {
			return resolution{}
		}
		res.local = local
		return res
	}
	if strings.Contains(name, "/") {
		return folderPath(snap, name)
	}
	if strings.HasPrefix(name, "+") {
		return explicitNamespace(snap, name)
	}

	segments := model.SplitQualified(name)
	sc := snap.global
	for i, seg := range segments {
		idx := sc.index()
		last := i == len(segments)-1
		if !last {
			if child, ok := idx.namespaces[seg]; ok {
				sc = child
				continue
			}
		}
		if cands := idx.candidates[seg]; len(cands) > 0 {
			win := cands[0]
			return resolution{found: true, cand: win, members: segments[i+1:], bases: []string{win.base}}
		}
		if last {
			if child, ok := idx.namespaces[seg]; ok {
				return namespaceResolution(child)
			}
		}
		return resolution{}
	}
	return resolution{}
}

// explicitNamespace handles "+a.+b" and "+a.b", which always name a
// namespace.
func explicitNamespace(snap *snapshot, name string) resolution {
	var parts []string
	for _, seg := range model.SplitQualified(name) {
		parts = append(parts, strings.TrimPrefix(seg, "+"))
	}
	sc, ok := snap.scopeFor(strings.Join(parts, "."))
	if !ok {
		return resolution{}
	}
	return namespaceResolution(sc)
}

// folderPath handles "/"-style names: a plain path folder, or a file in
// one named with its extension. Relative names start at the working
// directory, or the process directory when none is set.
func folderPath(snap *snapshot, name string) resolution {
	path := filepath.FromSlash(name)
	if !filepath.IsAbs(path) {
		base := snap.cwd
		if base == "" {
			wd, err := os.Getwd()
			if err != nil {
				return resolution{}
			}
			base = wd
		}
		path = filepath.Join(base, path)
	}
	path = filepath.Clean(path)
	if pf, ok := snap.folders[path]; ok {
		return resolution{found: true, isFolder: true, folder: path, bases: []string{pf.base}}
	}

	ext := filepath.Ext(path)
	pf, ok := snap.folders[filepath.Dir(path)]
	if ext == "" || !ok {
		return resolution{}
	}
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	win := &candidate{name: stem, root: -1, base: pf.base}
	if file, ok := pf.scan.files[stem]; ok {
		win.path = file
	} else if cf, ok := pf.scan.classes[stem]; ok {
		win.path, win.class = cf.dir, cf
	} else {
		return resolution{}
	}
	return resolution{found: true, cand: win, bases: []string{pf.base}}
}

func namespaceResolution(sc *scope) resolution {
	return resolution{found: true, isNS: true, namespace: sc.qualified, bases: sc.bases()}
}

// materialize loads the object a resolution points at and descends into any
// leftover members.
func (c *Collection) materialize(snap *snapshot, res resolution) (*model.Object, bool, error) {
	var (
		obj *model.Object
		err error
	)
	switch {
	case res.isFolder:
		pf, ok := snap.folders[res.folder]
		if !ok {
			return nil, false, nil
		}
		obj = c.folderObject(snap, pf)
	case res.isNS:
		sc, ok := snap.scopeFor(res.namespace)
		if !ok {
			return nil, false, nil
		}
		obj = c.namespaceObject(snap, sc)
	case res.cand.class != nil:
		obj, err = c.classObject(res.cand.class)
	default:
		obj, err = c.file(res.cand.path)
	}
	if err != nil {
		return nil, false, err
	}

	if res.local != "" {
		for _, l := range strings.Split(res.local, ">") {
			m, ok := obj.Member(l)
			if !ok || m.Callable == nil || !m.Callable.Local {
				return nil, false, nil
			}
			obj = m
		}
	}
	for _, seg := range res.members {
		m, ok := obj.Member(seg)
		if !ok {
			return nil, false, nil
		}
		obj = m
	}
	return obj, true, nil
}

// ResolveFrom resolves name as code in callerPath sees it: the caller's own
// subfunctions, then private functions, then class methods, then the
// enclosing namespace, then the global path.
func (c *Collection) ResolveFrom(callerPath, name string) (*model.Object, error) {
	caller, err := filepath.Abs(callerPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "invalid caller path")
	}
	snap := c.state.Load()
	simple := !strings.ContainsAny(name, ".>+")

	if simple {
		if obj, ok := c.callerLocal(caller, name); ok {
			return obj, nil
		}
		if obj, ok, err := c.privateFor(snap, caller, name); ok || err != nil {
			return obj, err
		}
		if obj, ok, err := c.classMethodFor(snap, caller, name); ok || err != nil {
			return obj, err
		}
	}
	if ns := enclosingNamespace(caller); ns != "" {
		res := compute(snap, ns+"."+name)
		if res.found && !res.isNS {
			obj, found, err := c.materialize(snap, res)
			if err != nil {
				return nil, err
			}
			if found {
				return obj, nil
			}
		}
	}
	return c.Resolve(name)
}

func (c *Collection) callerLocal(caller, name string) (*model.Object, bool) {
	obj, err := c.file(caller)
	if err != nil {
		return nil, false
	}
	m, ok := obj.Member(name)
	if !ok || m.Callable == nil || !m.Callable.Local {
		return nil, false
	}
	return m, true
}

// privateFor looks name up in the private folder visible to caller. A
// method file in @Cls sees @Cls/private the same way.
func (c *Collection) privateFor(snap *snapshot, caller, name string) (*model.Object, bool, error) {
	dir := filepath.Dir(caller)
	privateDir := filepath.Join(dir, parser.PrivateDir)
	if parser.IsPrivateDir(filepath.Base(dir)) {
		privateDir = dir
	}
	pf, ok := snap.privates[privateDir]
	if !ok {
		return nil, false, nil
	}
	path, ok := pf.files[name]
	if !ok {
		return nil, false, nil
	}
	obj, err := c.file(path)
	if err != nil {
		return nil, true, err
	}
	return obj, true, nil
}

// classMethodFor answers names that are methods of the class whose folder
// holds caller.
func (c *Collection) classMethodFor(snap *snapshot, caller, name string) (*model.Object, bool, error) {
	dir := filepath.Dir(caller)
	if parser.IsPrivateDir(filepath.Base(dir)) {
		dir = filepath.Dir(dir)
	}
	cf, ok := snap.classes[dir]
	if !ok {
		return nil, false, nil
	}
	cls, err := c.classObject(cf)
	if err != nil {
		return nil, true, err
	}
	m, ok := cls.Member(name)
	if !ok || m.Kind != model.KindMethod {
		return nil, false, nil
	}
	return m, true, nil
}

// enclosingNamespace is the dotted namespace of the folders around path.
func enclosingNamespace(path string) string {
	var parts []string
	dir := filepath.Dir(path)
	for {
		name := filepath.Base(dir)
		if pkg, ok := parser.NamespaceDir(name); ok {
			parts = append(parts, pkg)
		} else if _, ok := parser.ClassDir(name); !ok && !parser.IsPrivateDir(name) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}
