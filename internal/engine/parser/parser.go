package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/shared/observability"
)

// Extractor turns the decoded bytes of one file into a model object.
type Extractor interface {
	Extract(src []byte, path string) (*model.Object, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(src []byte, path string) (*model.Object, error)

func (f ExtractorFunc) Extract(src []byte, path string) (*model.Object, error) {
	return f(src, path)
}

type Parser struct {
	extractors map[string]Extractor // extension -> extractor
	// decode controls whether bytes pass through DecodeSource; binary
	// formats such as .mlx archives must not be transcoded.
	raw map[string]bool
}

// NewParser returns a parser for MATLAB source files.
func NewParser() *Parser {
	p := &Parser{
		extractors: make(map[string]Extractor),
		raw:        make(map[string]bool),
	}
	p.RegisterExtractor(ExtSource, ExtractorFunc(ExtractMatlab))
	return p
}

func (p *Parser) RegisterExtractor(ext string, e Extractor) {
	p.extractors[strings.ToLower(ext)] = e
}

// RegisterBinaryExtractor registers an extractor that receives the file
// bytes untouched.
func (p *Parser) RegisterBinaryExtractor(ext string, e Extractor) {
	p.RegisterExtractor(ext, e)
	p.raw[strings.ToLower(ext)] = true
}

func (p *Parser) Supports(path string) bool {
	_, ok := p.extractors[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse builds the object for one file. Failures to establish the top-level
// construct are returned as PARSE_ERROR domain errors.
func (p *Parser) Parse(src []byte, path string) (*model.Object, error) {
	ext := strings.ToLower(filepath.Ext(path))
	extractor := p.extractors[ext]
	if extractor == nil {
		err := errors.New(errors.CodeValidationError, fmt.Sprintf("unsupported source extension: %s", ext))
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	if !p.raw[ext] {
		decoded, err := DecodeSource(src)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxPath, path)
		}
		src = decoded
	}

	start := time.Now()
	obj, err := extractor.Extract(src, path)
	if err != nil {
		observability.ParseErrorsTotal.Inc()
		return nil, err
	}
	observability.ParsingDuration.WithLabelValues(obj.Kind.String()).Observe(time.Since(start).Seconds())
	return obj, nil
}

// ParseFile reads and parses path.
func (p *Parser) ParseFile(path string) (*model.Object, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeIO, "read source"), errors.CtxPath, path)
	}
	return p.Parse(src, path)
}
