package collection

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, files)
	return dir
}

func newCollection(t *testing.T, opts Options, roots ...string) *Collection {
	t.Helper()
	c, err := New(opts, roots...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestResolve_Idempotent(t *testing.T) {
	root := newTree(t, map[string]string{
		"greet.m": "function greet(name)\n% GREET Says hello.\ndisp(name)\nend\n",
	})
	c := newCollection(t, Options{}, root)

	first, err := c.Resolve("greet")
	require.NoError(t, err)
	second, err := c.Resolve("greet")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, model.KindFunction, first.Kind)
	assert.Equal(t, "GREET Says hello.", first.DocText())
	assert.Equal(t, filepath.Join(root, "greet.m"), first.Path)
}

func TestResolve_ClassFolderShadowsFunctionAcrossRoots(t *testing.T) {
	root1 := newTree(t, map[string]string{
		"A.m": "function A()\nend\n",
	})
	root2 := newTree(t, map[string]string{
		"@A/A.m":      "classdef A\nend\n",
		"@A/helper.m": "function helper(obj)\nend\n",
	})

	c := newCollection(t, Options{})
	require.NoError(t, c.AddPath(root2, true))
	require.NoError(t, c.AddPath(root1, true))
	assert.Equal(t, []string{root1, root2}, c.Paths())

	obj, err := c.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, model.KindClass, obj.Kind)
	assert.Equal(t, filepath.Join(root2, "@A"), obj.Path)
	assert.Equal(t, filepath.Join(root2, "@A", "A.m"), obj.DefinitionPath)
	helper, ok := obj.Member("helper")
	require.True(t, ok)
	assert.Equal(t, model.KindMethod, helper.Kind)
	assert.Equal(t, "A.helper", helper.QualifiedName)

	require.NoError(t, c.RemovePath(root2))
	obj, err = c.Resolve("A")
	require.NoError(t, err)
	assert.Equal(t, model.KindFunction, obj.Kind)
	assert.Equal(t, filepath.Join(root1, "A.m"), obj.Path)
}

func TestResolve_RootOrderBreaksTies(t *testing.T) {
	root1 := newTree(t, map[string]string{"f.m": "function f()\n% first\nend\n"})
	root2 := newTree(t, map[string]string{"f.m": "function f()\n% second\nend\n"})

	c := newCollection(t, Options{}, root1, root2)
	obj, err := c.Resolve("f")
	require.NoError(t, err)
	assert.Equal(t, "first", obj.DocText())

	require.NoError(t, c.AddPath(root2, true))
	obj, err = c.Resolve("f")
	require.NoError(t, err)
	assert.Equal(t, "second", obj.DocText())

	require.NoError(t, c.AddPath(root2, false))
	assert.Equal(t, []string{root1, root2}, c.Paths())
}

func TestResolve_RecursiveDiscoveryOrder(t *testing.T) {
	root := newTree(t, map[string]string{
		"b/g.m":        "function g()\n% from b\nend\n",
		"a/g.m":        "function g()\n% from a\nend\n",
		"a/sub/h.m":    "function h()\n% from a/sub\nend\n",
		"ab/h.m":       "function h()\n% from ab\nend\n",
		"k.m":          "function k()\n% from root\nend\n",
		"a/k.m":        "function k()\n% from a\nend\n",
		"skip/x.m":     "function x()\nend\n",
		".hidden/y.m":  "function y()\nend\n",
		"private/z.m":  "function z()\nend\n",
		"+pkg/inner.m": "function inner()\nend\n",
	})

	c := newCollection(t, Options{Recursive: true, Exclude: Exclude{Dirs: []string{"skip"}}}, root)
	cases := map[string]string{"g": "from a", "h": "from a/sub", "k": "from root"}
	for name, doc := range cases {
		obj, err := c.Resolve(name)
		require.NoError(t, err, name)
		assert.Equal(t, doc, obj.DocText(), name)
	}

	for _, name := range []string{"x", "y", "z", "inner"} {
		_, found, err := c.Lookup(name)
		require.NoError(t, err)
		assert.False(t, found, name)
	}
	_, err := c.Resolve("pkg.inner")
	require.NoError(t, err)

	flat := newCollection(t, Options{}, root)
	_, found, err := flat.Lookup("g")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResolve_WorkingDirectoryOverride(t *testing.T) {
	root := newTree(t, map[string]string{
		"@tool/tool.m": "classdef tool\nend\n",
		"run.m":        "function run()\n% root run\nend\n",
	})
	cwd := newTree(t, map[string]string{
		"tool.m": "function tool()\n% cwd tool\nend\n",
		"run.m":  "function run()\n% cwd run\nend\n",
	})

	c := newCollection(t, Options{WorkingDir: cwd}, root)
	obj, err := c.Resolve("tool")
	require.NoError(t, err)
	assert.Equal(t, model.KindFunction, obj.Kind, "cwd file beats a class folder on the path")
	obj, err = c.Resolve("run")
	require.NoError(t, err)
	assert.Equal(t, "cwd run", obj.DocText())

	require.NoError(t, c.SetWorkingDirectory(""))
	obj, err = c.Resolve("run")
	require.NoError(t, err)
	assert.Equal(t, "root run", obj.DocText())
	obj, err = c.Resolve("tool")
	require.NoError(t, err)
	assert.Equal(t, model.KindClass, obj.Kind)
}

func TestResolve_WorkingDirectoryClassBeatsFile(t *testing.T) {
	cwd := newTree(t, map[string]string{
		"Thing.m":        "function Thing()\nend\n",
		"@Thing/Thing.m": "classdef Thing\nend\n",
	})
	c := newCollection(t, Options{WorkingDir: cwd})
	obj, err := c.Resolve("Thing")
	require.NoError(t, err)
	assert.Equal(t, model.KindClass, obj.Kind)
}

func TestResolve_PrivateVisibility(t *testing.T) {
	root := newTree(t, map[string]string{
		"main.m":               "function main()\nhelper();\nend\n",
		"private/helper.m":     "function helper()\n% private helper\nsibling();\nend\n",
		"private/sibling.m":    "function sibling()\nend\n",
		"other/caller.m":       "function caller()\nend\n",
		"+pkg/api.m":           "function api()\nend\n",
		"+pkg/private/impl.m":  "function impl()\nend\n",
		"+pkg/private/api2.m":  "function api2()\nend\n",
	})
	c := newCollection(t, Options{Recursive: true}, root)

	_, err := c.Resolve("helper")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "private functions are not global: %v", err)

	obj, err := c.ResolveFrom(filepath.Join(root, "main.m"), "helper")
	require.NoError(t, err)
	assert.Equal(t, "private helper", obj.DocText())

	obj, err = c.ResolveFrom(filepath.Join(root, "private", "helper.m"), "sibling")
	require.NoError(t, err)
	assert.Equal(t, "sibling", obj.Name)

	_, err = c.ResolveFrom(filepath.Join(root, "other", "caller.m"), "helper")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	obj, err = c.ResolveFrom(filepath.Join(root, "+pkg", "api.m"), "impl")
	require.NoError(t, err)
	assert.Equal(t, "impl", obj.Name)
	assert.NotContains(t, c.Names(), "helper")
}

func TestResolveFrom_LocalsAndNamespace(t *testing.T) {
	root := newTree(t, map[string]string{
		"+pkg/outer.m": "function outer()\nutil();\nend\n\nfunction util()\n% local util\nend\n",
		"+pkg/peer.m":  "function peer()\n% namespace peer\nend\n",
		"peer.m":       "function peer()\n% global peer\nend\n",
		"util.m":       "function util()\n% global util\nend\n",
	})
	c := newCollection(t, Options{}, root)
	caller := filepath.Join(root, "+pkg", "outer.m")

	obj, err := c.ResolveFrom(caller, "util")
	require.NoError(t, err)
	assert.Equal(t, "local util", obj.DocText())
	assert.Equal(t, "pkg.outer>util", obj.QualifiedName)

	obj, err = c.ResolveFrom(caller, "peer")
	require.NoError(t, err)
	assert.Equal(t, "namespace peer", obj.DocText())

	obj, err = c.Resolve("peer")
	require.NoError(t, err)
	assert.Equal(t, "global peer", obj.DocText())

	obj, err = c.Resolve("pkg.outer>util")
	require.NoError(t, err)
	assert.True(t, obj.Callable.Local)
}

func TestResolve_Namespaces(t *testing.T) {
	root1 := newTree(t, map[string]string{
		"+pkg/Contents.m":  "% PKG Toolbox utilities.\n%   Version 1.0\n",
		"+pkg/+sub/deep.m": "function deep()\nend\n",
		"+pkg/top.m":       "function top()\nend\n",
		"+pkg/@Cls/Cls.m":  "classdef Cls\n    methods\n        function r = run(obj)\n            r = 1;\n        end\n    end\nend\n",
	})
	root2 := newTree(t, map[string]string{
		"+pkg/extra.m":     "function extra()\nend\n",
		"+other/README.md": "# Other\n\nOther **namespace** tools\nutilities.\n\n```matlab\nx = 1;\n```\n",
	})
	c := newCollection(t, Options{}, root1, root2)

	deep, err := c.Resolve("pkg.sub.deep")
	require.NoError(t, err)
	assert.Equal(t, "pkg.sub.deep", deep.QualifiedName)
	assert.Equal(t, "pkg.sub", deep.Parent)

	_, err = c.Resolve("deep")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	_, err = c.Resolve("pkg.missing.deep")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	method, err := c.Resolve("pkg.Cls.run")
	require.NoError(t, err)
	assert.Equal(t, "pkg.Cls.run", method.QualifiedName)
	assert.Equal(t, "obj", method.Callable.Receiver)

	ns, err := c.Resolve("pkg")
	require.NoError(t, err)
	assert.Equal(t, model.KindNamespace, ns.Kind)
	assert.Equal(t, filepath.Join(root1, "+pkg"), ns.Path)
	assert.Equal(t, "PKG Toolbox utilities.\n  Version 1.0", ns.DocText())
	assert.ElementsMatch(t, []string{"Cls", "top", "extra", "sub"}, ns.Members.Keys())

	sub, err := c.Resolve("+pkg.+sub")
	require.NoError(t, err)
	assert.Equal(t, model.KindNamespace, sub.Kind)
	assert.Equal(t, "pkg", sub.Parent)

	other, err := c.Resolve("+other")
	require.NoError(t, err)
	assert.Equal(t, "Other\n\nOther namespace tools\nutilities.", other.DocText())

	names := c.Names()
	for _, want := range []string{"pkg", "pkg.top", "pkg.extra", "pkg.Cls", "pkg.sub", "pkg.sub.deep", "other"} {
		assert.Contains(t, names, want)
	}
}

func TestResolve_ParseErrorDoesNotFallThrough(t *testing.T) {
	root1 := newTree(t, map[string]string{"bad.m": "function (x)\nend\n"})
	root2 := newTree(t, map[string]string{"bad.m": "function bad()\nend\n"})
	c := newCollection(t, Options{}, root1, root2)

	_, err := c.Resolve("bad")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeParseError), "got %v", err)
	path, line, ok := errors.ParseLocation(err)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root1, "bad.m"), path)
	assert.Equal(t, 1, line)

	_, _, err = c.Lookup("bad")
	assert.True(t, errors.IsCode(err, errors.CodeParseError))
}

func TestRemovePath_KeepsOtherRootsCached(t *testing.T) {
	root1 := newTree(t, map[string]string{"x.m": "function x()\nend\n"})
	root2 := newTree(t, map[string]string{"y.m": "function y()\nend\n"})
	c := newCollection(t, Options{}, root1, root2)

	x, err := c.Resolve("x")
	require.NoError(t, err)
	_, err = c.Resolve("y")
	require.NoError(t, err)
	_, found, err := c.Lookup("nothing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.RemovePath(root2))
	_, ok := c.names.Get("x")
	assert.True(t, ok, "entries won by other roots stay cached")
	_, ok = c.names.Get("y")
	assert.False(t, ok)
	_, ok = c.names.Get("nothing")
	assert.True(t, ok, "a cached miss stays a miss")

	again, err := c.Resolve("x")
	require.NoError(t, err)
	assert.Same(t, x, again)
	_, err = c.Resolve("y")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	err = c.RemovePath(root2)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestAddPath_InvalidatesResolutions(t *testing.T) {
	root1 := newTree(t, map[string]string{"only.m": "function only()\nend\n"})
	root2 := newTree(t, map[string]string{"later.m": "function later()\nend\n"})
	c := newCollection(t, Options{}, root1)

	_, found, err := c.Lookup("later")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.InsertPath(root2, 1))
	obj, err := c.Resolve("later")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root2, "later.m"), obj.Path)
	assert.Equal(t, []string{root1, root2}, c.Paths())

	err = c.AddPath(filepath.Join(root1, "missing"), true)
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
}

func TestResolve_ConcurrentWithPathChanges(t *testing.T) {
	low := newTree(t, map[string]string{"f.m": "function f()\n% low\nend\n"})
	high := newTree(t, map[string]string{"f.m": "function f()\n% high\nend\n"})
	c := newCollection(t, Options{}, low)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _, _ = c.Lookup("f")
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		require.NoError(t, c.AddPath(high, true))
		obj, err := c.Resolve("f")
		require.NoError(t, err)
		require.Equal(t, "high", obj.DocText(), "iteration %d", i)

		require.NoError(t, c.RemovePath(high))
		obj, err = c.Resolve("f")
		require.NoError(t, err)
		require.Equal(t, "low", obj.DocText(), "iteration %d", i)
	}
	close(stop)
	wg.Wait()
}

func TestNew_MissingRoot(t *testing.T) {
	_, err := New(Options{}, filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))

	_, err = New(Options{Exclude: Exclude{Files: []string{"[unclosed"}}})
	assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
}

func TestObjects_DoesNotForceParsing(t *testing.T) {
	root := newTree(t, map[string]string{
		"a.m":                "function a()\nend\n",
		"b.m":                "function b()\nend\n",
		"@Shape/Shape.m":     "classdef Shape\nend\n",
		"@Shape/area.m":      "function r = area(obj)\nr = 0;\nend\n",
	})
	c := newCollection(t, Options{}, root)
	assert.Empty(t, c.Objects())

	_, err := c.Resolve("b")
	require.NoError(t, err)
	_, err = c.Resolve("Shape")
	require.NoError(t, err)

	objs := c.Objects()
	require.Len(t, objs, 2)
	assert.Equal(t, "Shape", objs[0].Name)
	assert.Equal(t, "b", objs[1].Name)
}

func TestResolve_LiveScriptShadowsSource(t *testing.T) {
	files := map[string]string{
		"demo.m":   "function demo()\nend\n",
		"demo.mlx": "%% Intro\n% Narrative.\nx = 1;\n",
		"notes.m":  "%[text] # Notes\nx = 2;\n",
	}
	root := newTree(t, files)

	live := newCollection(t, Options{ParseLiveScripts: true}, root)
	obj, err := live.Resolve("demo")
	require.NoError(t, err)
	assert.Equal(t, model.KindLiveScript, obj.Kind)
	assert.Equal(t, filepath.Join(root, "demo.mlx"), obj.Path)
	notes, err := live.Resolve("notes")
	require.NoError(t, err)
	assert.Equal(t, model.KindLiveScript, notes.Kind)

	plain := newCollection(t, Options{}, root)
	obj, err = plain.Resolve("demo")
	require.NoError(t, err)
	assert.Equal(t, model.KindFunction, obj.Kind)
	notes, err = plain.Resolve("notes")
	require.NoError(t, err)
	assert.Equal(t, model.KindScript, notes.Kind)
}

func TestClassFolder_MethodFiles(t *testing.T) {
	root := newTree(t, map[string]string{
		"@Widget/Widget.m": `classdef Widget < handle
    % WIDGET A thing with an area.
    methods (Access = protected)
        r = area(obj, scale)
    end
    methods
        function obj = Widget()
        end
    end
end
`,
		"@Widget/area.m":        "function r = area(obj, scale)\n% AREA Scaled area.\nr = util(scale);\nend\n",
		"@Widget/resize.m":      "function resize(obj, factor)\n% RESIZE Changes the size.\nend\n",
		"@Widget/private/util.m": "function r = util(x)\nr = x;\nend\n",
	})
	c := newCollection(t, Options{}, root)

	cls, err := c.Resolve("Widget")
	require.NoError(t, err)
	assert.False(t, cls.Class.Synthetic)
	assert.Equal(t, []string{"area", "Widget", "resize"}, cls.Members.Keys())

	area, err := c.Resolve("Widget.area")
	require.NoError(t, err)
	assert.Equal(t, model.KindMethod, area.Kind)
	assert.Equal(t, model.AccessProtected, area.Callable.Access)
	assert.False(t, area.Callable.Declared)
	assert.Equal(t, "obj", area.Callable.Receiver)
	require.Len(t, area.Callable.Arguments, 1)
	assert.Equal(t, "scale", area.Callable.Arguments[0].Name)
	assert.Equal(t, "AREA Scaled area.", area.DocText())
	assert.Equal(t, "Widget", area.Parent)
	assert.Equal(t, filepath.Join(root, "@Widget", "area.m"), area.Path)

	resize, ok := cls.Member("resize")
	require.True(t, ok)
	assert.Equal(t, "Widget.resize", resize.QualifiedName)
	assert.Equal(t, "obj", resize.Callable.Receiver)

	parent, ok := c.Parent(area)
	require.True(t, ok)
	assert.Same(t, cls, parent)

	util, err := c.ResolveFrom(filepath.Join(root, "@Widget", "area.m"), "util")
	require.NoError(t, err)
	assert.Equal(t, "util", util.Name)
	sibling, err := c.ResolveFrom(filepath.Join(root, "@Widget", "private", "util.m"), "resize")
	require.NoError(t, err)
	assert.Equal(t, "Widget.resize", sibling.QualifiedName)

	p, ok := c.GetPath("Widget.area")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "@Widget", "area.m"), p)
	p, ok = c.GetPath("Widget")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "@Widget", "Widget.m"), p)
}

func TestClassFolder_Synthetic(t *testing.T) {
	root := newTree(t, map[string]string{
		"@Legacy/run.m":  "function run(obj)\nend\n",
		"@Legacy/stop.m": "function stop(obj)\nend\n",
	})
	c := newCollection(t, Options{}, root)

	cls, err := c.Resolve("Legacy")
	require.NoError(t, err)
	assert.True(t, cls.Class.Synthetic)
	assert.Equal(t, filepath.Join(root, "@Legacy"), cls.Path)
	assert.Empty(t, cls.DefinitionPath)
	assert.Equal(t, []string{"run", "stop"}, cls.Members.Keys())

	p, ok := c.GetPath("Legacy")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "@Legacy"), p)
}

func TestClassFolder_SecondClassdefIsAmbiguous(t *testing.T) {
	root := newTree(t, map[string]string{
		"@Amb/Amb.m":   "classdef Amb\nend\n",
		"@Amb/Other.m": "classdef Other\nend\n",
	})
	c := newCollection(t, Options{}, root)

	_, err := c.Resolve("Amb")
	assert.True(t, errors.IsCode(err, errors.CodeAmbiguousConfiguration), "got %v", err)
}

func TestEvict_RereadsChangedFiles(t *testing.T) {
	root := newTree(t, map[string]string{
		"tool.m":        "function tool()\n% version one\nend\n",
		"@Box/Box.m":    "classdef Box\nend\n",
		"@Box/open.m":   "function open(obj)\n% first open\nend\n",
	})
	c := newCollection(t, Options{}, root)

	obj, err := c.Resolve("tool")
	require.NoError(t, err)
	assert.Equal(t, "version one", obj.DocText())
	open, err := c.Resolve("Box.open")
	require.NoError(t, err)
	assert.Equal(t, "first open", open.DocText())

	writeTree(t, root, map[string]string{
		"tool.m":      "function tool()\n% version two\nend\n",
		"@Box/open.m": "function open(obj)\n% second open\nend\n",
	})
	obj, err = c.Resolve("tool")
	require.NoError(t, err)
	assert.Equal(t, "version one", obj.DocText(), "changes need an explicit eviction")

	c.Evict(filepath.Join(root, "tool.m"), filepath.Join(root, "@Box", "open.m"))
	obj, err = c.Resolve("tool")
	require.NoError(t, err)
	assert.Equal(t, "version two", obj.DocText())
	open, err = c.Resolve("Box.open")
	require.NoError(t, err)
	assert.Equal(t, "second open", open.DocText())
}

func TestRescan_PicksUpNewFiles(t *testing.T) {
	root := newTree(t, map[string]string{"old.m": "function old()\nend\n"})
	c := newCollection(t, Options{}, root)

	_, found, err := c.Lookup("fresh")
	require.NoError(t, err)
	require.False(t, found)

	writeTree(t, root, map[string]string{"fresh.m": "function fresh()\nend\n"})
	_, found, err = c.Lookup("fresh")
	require.NoError(t, err)
	assert.False(t, found, "misses are cached until the path changes")

	require.NoError(t, c.Rescan(context.Background()))
	_, found, err = c.Lookup("fresh")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMaterialize(t *testing.T) {
	root := newTree(t, map[string]string{
		"ok.m":     "function ok()\nend\n",
		"broken.m": "classdef\nend\n",
		"+ns/f.m":  "function f()\nend\n",
	})
	c := newCollection(t, Options{Concurrency: 2}, root)

	failures, err := c.Materialize(context.Background())
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.True(t, errors.IsCode(failures["broken"], errors.CodeParseError))

	var names []string
	for _, o := range c.Objects() {
		names = append(names, o.QualifiedName)
	}
	assert.ElementsMatch(t, []string{"ok", "ns", "ns.f"}, names)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Materialize(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatsAndWarnings(t *testing.T) {
	root := newTree(t, map[string]string{"a.m": "function a()\nend\n"})
	c := newCollection(t, Options{}, root)

	_, err := c.Resolve("a")
	require.NoError(t, err)
	_, err = c.Resolve("a")
	require.NoError(t, err)

	st := c.Stats()
	assert.Equal(t, 1, st.Roots)
	assert.Equal(t, 1, st.CachedObjects)
	assert.Empty(t, c.Warnings())
}

func TestResolve_FolderPaths(t *testing.T) {
	root := newTree(t, map[string]string{
		"main.m":               "function main()\nend\n",
		"tools/Contents.m":     "% TOOLS Shared helpers.\n",
		"tools/fmt.m":          "function out = fmt(x)\nout = x;\nend\n",
		"tools/Shape.m":        "function Shape()\nend\n",
		"tools/@Shape/Shape.m": "classdef Shape\nend\n",
		"tools/+geo/area.m":    "function area()\nend\n",
		"docs/README.md":       "# Docs\n\nUser guide.\n",
		"docs/broken.m":        "classdef\nend\n",
	})
	c := newCollection(t, Options{Recursive: true, WorkingDir: root}, root)

	folder, err := c.Resolve("tools/")
	require.NoError(t, err)
	assert.Equal(t, model.KindFolder, folder.Kind)
	assert.Equal(t, "tools", folder.Name)
	assert.Equal(t, "/tools", folder.QualifiedName)
	assert.Equal(t, filepath.Join(root, "tools"), folder.Path)
	assert.Equal(t, "TOOLS Shared helpers.", folder.DocText())
	assert.Equal(t, []string{"Shape", "fmt", "geo"}, folder.Members.Keys())
	shape, _ := folder.Member("Shape")
	assert.Equal(t, model.KindClass, shape.Kind)
	geo, _ := folder.Member("geo")
	assert.Equal(t, model.KindNamespace, geo.Kind)
	assert.Empty(t, folder.Warnings)

	again, err := c.Resolve("./tools")
	require.NoError(t, err)
	assert.Same(t, folder, again)
	path, ok := c.GetPath("tools")
	assert.False(t, ok, "names without a slash are not folder paths: %s", path)
	path, ok = c.GetPath("./tools")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "tools"), path)

	fmtFile, err := c.Resolve("tools/fmt.m")
	require.NoError(t, err)
	fmtMember, _ := folder.Member("fmt")
	assert.Same(t, fmtMember, fmtFile)
	shapeFile, err := c.Resolve("tools/Shape.m")
	require.NoError(t, err)
	assert.Equal(t, model.KindFunction, shapeFile.Kind, "an explicit file name picks the file")

	abs, err := c.Resolve(filepath.ToSlash(filepath.Join(root, "tools")))
	require.NoError(t, err)
	assert.Same(t, folder, abs)

	docs, err := c.Resolve("docs")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", docs)
	docs, err = c.Resolve("./docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs\n\nUser guide.", docs.DocText())
	assert.Empty(t, docs.Members.Keys())
	require.Len(t, docs.Warnings, 1)
	assert.Contains(t, docs.Warnings[0].Message, "broken")

	for _, name := range []string{"tools/missing.m", "nowhere/", "tools/fmt.m>local", "./tools/+geo"} {
		_, err := c.Resolve(name)
		assert.True(t, errors.IsCode(err, errors.CodeNotFound), name)
	}

	assert.Contains(t, c.Objects(), folder)

	// Eviction rebuilds the folder around the re-read file.
	c.Evict(filepath.Join(root, "tools", "fmt.m"))
	rebuilt, err := c.Resolve("./tools")
	require.NoError(t, err)
	assert.NotSame(t, folder, rebuilt)
	fresh, _ := rebuilt.Member("fmt")
	assert.NotSame(t, fmtMember, fresh)
}

func TestMarkdownText(t *testing.T) {
	src := "# Title\n\nSome `code` and a [link](http://x).\n\n- one\n- two\n\n<div>raw</div>\n"
	assert.Equal(t, "Title\n\nSome code and a link.\n\none\n\ntwo", markdownText([]byte(src)))
	assert.Empty(t, markdownText([]byte("```\nonly code\n```\n")))
}
