package collection

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/engine/parser"
)

// Lines returns the source lines spanned by obj. Objects without a line
// range, such as scripts read as a whole, return their entire file. Classes
// read their definition file; namespaces, folders and binary live scripts
// have no text source.
func (c *Collection) Lines(obj *model.Object) ([]string, error) {
	if obj == nil {
		return nil, errors.New(errors.CodeValidationError, "nil object")
	}
	path := obj.Path
	if obj.DefinitionPath != "" {
		path = obj.DefinitionPath
	}
	if path == "" || !strings.EqualFold(filepath.Ext(path), parser.ExtSource) {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("%s %s has no text source", obj.Kind, obj.QualifiedName))
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	lines, err := c.fileLines(path)
	if err != nil {
		return nil, err
	}
	r := obj.Lines
	if r.Start <= 0 {
		return lines, nil
	}
	start, end := r.Start-1, min(r.End-1, len(lines))
	if start >= end {
		return nil, nil
	}
	return lines[start:end], nil
}

// Source is Lines joined and stripped of the indentation common to every
// non-blank line.
func (c *Collection) Source(obj *model.Object) (string, error) {
	lines, err := c.Lines(obj)
	if err != nil {
		return "", err
	}
	return dedent(lines), nil
}

// fileLines reads and caches the decoded lines of one file.
func (c *Collection) fileLines(path string) ([]string, error) {
	if lines, ok := c.lines.Get(path); ok {
		return lines, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read source"), errors.CtxPath, path)
	}
	decoded, err := parser.DecodeSource(data)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	c.lines.Put(path, lines)
	return lines, nil
}

func dedent(lines []string) string {
	indent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case strings.TrimSpace(l) == "":
			l = ""
		case indent > 0:
			l = l[indent:]
		}
		out[i] = l
	}
	return strings.Join(out, "\n")
}
