package collection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/engine/parser"
	"mpath/internal/shared/observability"
)

// load returns the cached entry for key, building it at most once.
func (c *Collection) load(key string, build func() *objectEntry) (*model.Object, error) {
	c.objMu.RLock()
	e, ok := c.objects[key]
	c.objMu.RUnlock()
	if ok {
		return e.obj, e.err
	}

	v, _, _ := c.loads.Do(key, func() (any, error) {
		c.objMu.RLock()
		e, ok := c.objects[key]
		c.objMu.RUnlock()
		if ok {
			return e, nil
		}
		e = build()
		c.objMu.Lock()
		c.objects[key] = e
		observability.CachedObjects.Set(float64(len(c.objects)))
		c.objMu.Unlock()
		return e, nil
	})
	e = v.(*objectEntry)
	return e.obj, e.err
}

// file parses one source file. Parse errors are cached like objects.
func (c *Collection) file(path string) (*model.Object, error) {
	return c.load(path, func() *objectEntry {
		obj, err := c.parser.ParseFile(path)
		if err != nil {
			slog.Debug("parse failed", "path", path, "error", err)
			return &objectEntry{err: err}
		}
		obj.Parent = parser.Qualifier(path)
		return &objectEntry{obj: obj}
	})
}

// classObject builds the composite for a class folder. The definition file
// and each method file are cloned, never mutated.
func (c *Collection) classObject(cf *classFolder) (*model.Object, error) {
	return c.load(cf.Key(), func() *objectEntry {
		sources := []string{cf.dir}
		qualifier := parser.Qualifier(filepath.Join(cf.dir, cf.name+parser.ExtSource))
		qualified := model.Join(qualifier, ".", cf.name)

		var cls *model.Object
		if cf.def != "" {
			sources = append(sources, cf.def)
			def, err := c.file(cf.def)
			if err != nil {
				return &objectEntry{err: err, sources: sources}
			}
			if def.IsClass() {
				cls = def.Clone(qualified, qualifier)
			} else {
				// Old-style class folder: the definition file is the
				// constructor.
				cls = syntheticClass(cf, qualified, qualifier)
				ctor := def.Clone(model.Join(qualified, ".", cf.name), qualified)
				ctor.Kind = model.KindMethod
				if ctor.Callable == nil {
					ctor.Callable = &model.CallableInfo{Access: model.AccessPublic}
				}
				cls.Members.Add(ctor)
			}
		} else {
			cls = syntheticClass(cf, qualified, qualifier)
		}
		cls.Path = cf.dir
		if cf.def != "" {
			cls.DefinitionPath = cf.def
		}

		for _, name := range cf.methodNames {
			path := cf.methods[name]
			sources = append(sources, path)
			obj, err := c.file(path)
			if err != nil {
				cls.Warn(0, fmt.Sprintf("method file %s: %v", filepath.Base(path), err))
				continue
			}
			if obj.IsClass() {
				err := errors.New(errors.CodeAmbiguousConfiguration,
					fmt.Sprintf("class folder @%s holds a second class definition %s", cf.name, obj.Name))
				return &objectEntry{err: errors.AddContext(err, errors.CtxPath, path), sources: sources}
			}
			if obj.Callable == nil {
				cls.Warn(0, fmt.Sprintf("method file %s does not define a function", filepath.Base(path)))
				continue
			}
			cls.Members.Add(attachMethod(cls, obj))
		}
		return &objectEntry{obj: cls, sources: sources}
	})
}

func syntheticClass(cf *classFolder, qualified, qualifier string) *model.Object {
	cls := model.New(model.KindClass, cf.name)
	cls.QualifiedName = qualified
	cls.Parent = qualifier
	cls.Class.Synthetic = true
	return cls
}

// attachMethod turns a method file into a member of cls. A signature
// declared in the classdef keeps its block attributes and takes the file's
// arguments and docstring.
func attachMethod(cls, file *model.Object) *model.Object {
	m := file.Clone(model.Join(cls.QualifiedName, ".", file.Name), cls.QualifiedName)
	m.Kind = model.KindMethod
	if decl, ok := cls.Member(file.Name); ok && decl.Callable != nil && decl.Callable.Declared {
		m.Callable.Access = decl.Callable.Access
		m.Callable.Static = decl.Callable.Static
		m.Callable.Abstract = decl.Callable.Abstract
		m.Callable.Hidden = decl.Callable.Hidden
		m.Callable.Sealed = decl.Callable.Sealed
		if m.Docstring == nil && decl.Docstring != nil {
			d := *decl.Docstring
			m.Docstring = &d
		}
	}
	m.Callable.Declared = false
	parser.DropReceiver(m, cls.Name)
	return m
}

// namespaceObject builds the Namespace composite for sc, once per snapshot.
// Members that fail to parse are recorded as warnings.
func (c *Collection) namespaceObject(snap *snapshot, sc *scope) *model.Object {
	sc.nsOnce.Do(func() {
		segs := model.SplitQualified(sc.qualified)
		ns := model.New(model.KindNamespace, segs[len(segs)-1])
		ns.QualifiedName = sc.qualified
		ns.Parent = strings.Join(segs[:len(segs)-1], ".")
		if dirs := sc.dirs(); len(dirs) > 0 {
			ns.Path = dirs[0]
		}
		ns.Docstring = c.folderDoc(sc.scans())

		idx := sc.index()
		for _, name := range idx.names {
			res := resolution{found: true, cand: idx.candidates[name][0]}
			obj, _, err := c.materialize(snap, res)
			if err != nil {
				ns.Warn(0, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			ns.Members.Add(obj)
		}
		for _, name := range idx.nsNames {
			if ns.Members.Has(name) {
				continue
			}
			ns.Members.Add(c.namespaceObject(snap, idx.namespaces[name]))
		}
		sc.nsObj.Store(ns)
	})
	return sc.nsObj.Load()
}

// folderObject builds the Folder composite for a plain path folder, once
// per snapshot. A class folder hides a file of the same name.
func (c *Collection) folderObject(snap *snapshot, pf *pathFolder) *model.Object {
	pf.once.Do(func() {
		f := pf.scan
		name := filepath.Base(f.dir)
		obj := model.New(model.KindFolder, name)
		obj.QualifiedName = "/" + name
		obj.Path = f.dir
		obj.Docstring = c.folderDoc([]*folderScan{f})

		for _, n := range f.classNames {
			cls, err := c.classObject(f.classes[n])
			if err != nil {
				obj.Warn(0, fmt.Sprintf("%s: %v", n, err))
				continue
			}
			obj.Members.Add(cls)
		}
		for _, n := range f.fileNames {
			if obj.Members.Has(n) {
				continue
			}
			m, err := c.file(f.files[n])
			if err != nil {
				obj.Warn(0, fmt.Sprintf("%s: %v", n, err))
				continue
			}
			obj.Members.Add(m)
		}
		for _, n := range f.nsNames {
			if sc, ok := snap.scopeFor(n); ok && !obj.Members.Has(n) {
				obj.Members.Add(c.namespaceObject(snap, sc))
			}
		}
		pf.obj.Store(obj)
	})
	return pf.obj.Load()
}

// folderDoc documents a folder from the first Contents.m among folders,
// falling back to a README.md.
func (c *Collection) folderDoc(folders []*folderScan) *model.Docstring {
	for _, f := range folders {
		if f.contents == "" {
			continue
		}
		obj, err := c.file(f.contents)
		if err == nil && obj.Docstring != nil {
			d := *obj.Docstring
			return &d
		}
	}
	for _, f := range folders {
		if f.readme == "" {
			continue
		}
		data, err := os.ReadFile(f.readme)
		if err != nil {
			slog.Debug("read folder readme", "path", f.readme, "error", err)
			continue
		}
		if text := markdownText(data); text != "" {
			lines := strings.Count(strings.TrimRight(string(data), "\n"), "\n") + 1
			return &model.Docstring{Text: text, Lines: model.LineRange{Start: 1, End: lines + 1}}
		}
	}
	return nil
}

// Objects returns the objects materialized so far, sorted by path. It never
// parses. Files inside class folders are reported through their class.
func (c *Collection) Objects() []*model.Object {
	var out []*model.Object
	c.objMu.RLock()
	for key, e := range c.objects {
		if e.obj == nil || key == "" {
			continue
		}
		if e.sources == nil {
			if _, ok := parser.ClassDir(filepath.Base(filepath.Dir(key))); ok {
				continue
			}
			if filepath.Base(key) == parser.ContentsFile {
				continue
			}
		}
		out = append(out, e.obj)
	}
	c.objMu.RUnlock()

	snap := c.state.Load()
	out = append(out, snap.namespaces()...)
	out = append(out, snap.builtFolders()...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].QualifiedName < out[j].QualifiedName
	})
	return out
}

// Names returns every globally indexed qualified name in precedence order,
// namespaces included. Private functions are not indexed.
func (c *Collection) Names() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(sc *scope)
	walk = func(sc *scope) {
		idx := sc.index()
		for _, n := range idx.names {
			q := model.Join(sc.qualified, ".", n)
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
		for _, n := range idx.nsNames {
			child := idx.namespaces[n]
			if !seen[child.qualified] {
				seen[child.qualified] = true
				out = append(out, child.qualified)
			}
			walk(child)
		}
	}
	walk(c.state.Load().global)
	return out
}
