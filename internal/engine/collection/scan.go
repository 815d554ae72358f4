package collection

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"mpath/internal/core/errors"
	"mpath/internal/engine/parser"
	"mpath/internal/shared/observability"

	"github.com/gobwas/glob"
)

// folderScan is the classified content of one directory.
type folderScan struct {
	dir string
	// order is the folder's genpath position within its root.
	order int

	files     map[string]string // artifact name -> file path
	fileNames []string

	classes    map[string]*classFolder
	classNames []string

	namespaces map[string]*folderScan
	nsNames    []string

	private  *folderScan
	contents string // Contents.m
	readme   string
}

func newFolderScan(dir string) *folderScan {
	return &folderScan{
		dir:        dir,
		files:      make(map[string]string),
		classes:    make(map[string]*classFolder),
		namespaces: make(map[string]*folderScan),
	}
}

// classFolder is an "@Name" directory.
type classFolder struct {
	name string
	dir  string
	// def is the definition file Name.m, empty for synthetic classes.
	def         string
	methods     map[string]string
	methodNames []string
	private     *folderScan
}

// Key is the object cache key of the class composite.
func (cf *classFolder) Key() string {
	return "@" + cf.dir
}

// rootScan holds the path folders of one root in genpath order.
type rootScan struct {
	root     string
	folders  []*folderScan
	warnings []string
}

// scanner walks roots. It is not safe for concurrent use.
type scanner struct {
	recursive    bool
	live         bool
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	warnings     []string
}

func newScanner(opts Options) (*scanner, error) {
	s := &scanner{recursive: opts.Recursive, live: opts.ParseLiveScripts}
	var err error
	if s.excludeDirs, err = compileGlobs(opts.Exclude.Dirs); err != nil {
		return nil, err
	}
	if s.excludeFiles, err = compileGlobs(opts.Exclude.Files); err != nil {
		return nil, err
	}
	return s, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeConfiguration, fmt.Sprintf("invalid exclude pattern %q", p))
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// scanRoot classifies root and, in recursive mode, its descendants.
func (s *scanner) scanRoot(root string, recursive bool) *rootScan {
	start := time.Now()
	s.warnings = nil
	rs := &rootScan{root: root}
	s.walk(rs, root, recursive)
	rs.warnings = s.warnings
	observability.ScanDuration.Observe(time.Since(start).Seconds())
	slog.Debug("scanned root", "root", root, "folders", len(rs.folders), "warnings", len(rs.warnings))
	return rs
}

func (s *scanner) walk(rs *rootScan, dir string, recursive bool) {
	f, subdirs := s.scanFolder(dir)
	f.order = len(rs.folders)
	rs.folders = append(rs.folders, f)
	if !recursive {
		return
	}
	for _, sub := range subdirs {
		s.walk(rs, sub, recursive)
	}
}

// scanFolder classifies the entries of dir and returns the plain
// subdirectories that genpath would descend into.
func (s *scanner) scanFolder(dir string) (*folderScan, []string) {
	f := newFolderScan(dir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn("read %s: %v", dir, err)
		return f, nil
	}

	var subdirs []string
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)
		isDir, err := entryIsDir(e, path)
		if err != nil {
			s.warn("stat %s: %v", path, err)
			continue
		}
		if !isDir {
			s.addFile(f, path)
			continue
		}
		if strings.HasPrefix(name, ".") || matchAny(s.excludeDirs, name) {
			continue
		}
		if cls, ok := parser.ClassDir(name); ok {
			if cf := s.scanClass(path, cls); cf != nil {
				f.classes[cls] = cf
				f.classNames = append(f.classNames, cls)
			}
			continue
		}
		if ns, ok := parser.NamespaceDir(name); ok {
			nf, _ := s.scanFolder(path)
			f.namespaces[ns] = nf
			f.nsNames = append(f.nsNames, ns)
			continue
		}
		if parser.IsPrivateDir(name) {
			f.private, _ = s.scanFolder(path)
			continue
		}
		subdirs = append(subdirs, path)
	}
	return f, subdirs
}

// entryIsDir follows symlinks so linked folders take part in discovery.
func entryIsDir(e os.DirEntry, path string) (bool, error) {
	if e.Type()&os.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (s *scanner) addFile(f *folderScan, path string) {
	name := filepath.Base(path)
	if matchAny(s.excludeFiles, name) {
		return
	}
	switch {
	case name == parser.ContentsFile:
		f.contents = path
		return
	case strings.EqualFold(name, "README.md"):
		f.readme = path
		return
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if !isIdentifier(stem) {
		return
	}
	switch ext {
	case parser.ExtSource:
		if prev, ok := f.files[stem]; ok && filepath.Ext(prev) == parser.ExtLiveScript {
			return
		}
	case parser.ExtLiveScript:
		if !s.live {
			return
		}
	default:
		return
	}
	if _, ok := f.files[stem]; !ok {
		f.fileNames = append(f.fileNames, stem)
	}
	f.files[stem] = path
}

func (s *scanner) scanClass(dir, name string) *classFolder {
	cf := &classFolder{name: name, dir: dir, methods: make(map[string]string)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn("read %s: %v", dir, err)
		return nil
	}
	for _, e := range entries {
		entry := e.Name()
		path := filepath.Join(dir, entry)
		if e.IsDir() {
			if parser.IsPrivateDir(entry) {
				cf.private, _ = s.scanFolder(path)
			}
			continue
		}
		if filepath.Ext(entry) != parser.ExtSource || matchAny(s.excludeFiles, entry) {
			continue
		}
		stem := parser.Stem(entry)
		if !isIdentifier(stem) {
			continue
		}
		if stem == name {
			cf.def = path
			continue
		}
		cf.methods[stem] = path
		cf.methodNames = append(cf.methodNames, stem)
	}
	return cf
}

func (s *scanner) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.warnings = append(s.warnings, msg)
	observability.ScanWarningsTotal.Inc()
	slog.Warn("skipping search path entry", "reason", msg)
}

// isIdentifier reports whether name is a valid MATLAB identifier.
func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' && i > 0:
		case r < unicode.MaxASCII && unicode.IsLetter(r):
		case i > 0 && r < unicode.MaxASCII && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}
