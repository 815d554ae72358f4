// Package livescript extracts MATLAB live scripts into LiveScript objects.
//
// Two formats are understood: the binary .mlx archive (a ZIP file holding an
// Office Open XML document) and plain-text live code, where sections are
// separated by %% lines.
package livescript

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/engine/parser"
)

// zipMagic opens every binary .mlx file.
var zipMagic = []byte("PK")

// Extract builds a LiveScript object. Binary archives are detected by their
// magic bytes; anything else is read as plain-text live code.
func Extract(src []byte, path string) (*model.Object, error) {
	if bytes.HasPrefix(src, zipMagic) {
		return extractArchive(src, path)
	}
	decoded, err := parser.DecodeSource(src)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return ExtractText(decoded, path), nil
}

// ExtractText builds a LiveScript object from plain-text live code.
func ExtractText(src []byte, path string) *model.Object {
	obj := newLiveScript(path)
	obj.Live.Sections = SplitSections(string(src))
	rows := bytes.Count(src, []byte("\n"))
	if len(src) > 0 && src[len(src)-1] != '\n' {
		rows++
	}
	obj.Lines = model.LineRange{Start: 1, End: rows + 1}
	obj.Docstring = leadingText(obj.Live.Sections)
	slog.Debug("parsed plain-text live code", "path", path, "sections", len(obj.Live.Sections))
	return obj
}

func extractArchive(src []byte, path string) (*model.Object, error) {
	r, err := zip.NewReader(bytes.NewReader(src), int64(len(src)))
	if err != nil {
		return nil, errors.NewParseError(path, 0, fmt.Sprintf("not a valid .mlx archive: %v", err))
	}

	var doc *zip.File
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "document.xml") {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, errors.NewParseError(path, 0, "archive has no document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, errors.NewParseError(path, 0, fmt.Sprintf("open %s: %v", doc.Name, err))
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.NewParseError(path, 0, fmt.Sprintf("read %s: %v", doc.Name, err))
	}

	obj := newLiveScript(path)
	sections, err := ParseDocument(data)
	if err != nil {
		obj.Warn(0, fmt.Sprintf("document.xml is not well formed: %v", err))
	}
	obj.Live.Sections = sections
	obj.Docstring = leadingText(sections)
	slog.Debug("parsed binary live script", "path", path, "sections", len(sections))
	return obj, nil
}

func newLiveScript(path string) *model.Object {
	stem := parser.Stem(path)
	obj := model.New(model.KindLiveScript, stem)
	obj.QualifiedName = model.Join(parser.Qualifier(path), ".", stem)
	obj.Path = path
	return obj
}

// leadingText documents a live script with the narrative that precedes its
// first code section.
func leadingText(sections []model.Section) *model.Docstring {
	if len(sections) == 0 || sections[0].Kind != model.SectionText {
		return nil
	}
	return &model.Docstring{Text: sections[0].Content}
}
