package parser

import (
	"path/filepath"
	"strings"
)

const (
	ExtSource     = ".m"
	ExtLiveScript = ".mlx"
	ContentsFile  = "Contents.m"
	PrivateDir    = "private"
)

// NamespaceDir reports whether a folder name denotes a namespace package
// ("+pkg") and returns the package name.
func NamespaceDir(name string) (string, bool) {
	if len(name) > 1 && name[0] == '+' {
		return name[1:], true
	}
	return "", false
}

// ClassDir reports whether a folder name denotes a class folder ("@Cls").
func ClassDir(name string) (string, bool) {
	if len(name) > 1 && name[0] == '@' {
		return name[1:], true
	}
	return "", false
}

func IsPrivateDir(name string) bool {
	return name == PrivateDir
}

// Stem returns the file name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Qualifier returns the dotted prefix implied by the folders around path:
// enclosing "+pkg" folders, plus the class name for a method file inside a
// "@Cls" folder. Private folders are transparent.
func Qualifier(path string) string {
	var parts []string
	dir := filepath.Dir(path)
	stem := Stem(path)
	first := true
	for {
		name := filepath.Base(dir)
		if IsPrivateDir(name) {
			dir = filepath.Dir(dir)
			first = false
			continue
		}
		if cls, ok := ClassDir(name); ok {
			if first && cls != stem {
				parts = append(parts, cls)
			}
		} else if pkg, ok := NamespaceDir(name); ok {
			parts = append(parts, pkg)
		} else {
			break
		}
		first = false
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
