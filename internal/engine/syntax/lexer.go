package syntax

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokSemicolon
	tokComma
	tokIdent
	tokKeyword
	tokNumber
	tokString
	tokComment
	tokBlockComment
	tokPunct
)

var keywords = map[string]bool{
	"break":      true,
	"case":       true,
	"catch":      true,
	"classdef":   true,
	"continue":   true,
	"else":       true,
	"elseif":     true,
	"end":        true,
	"for":        true,
	"function":   true,
	"global":     true,
	"if":         true,
	"otherwise":  true,
	"parfor":     true,
	"persistent": true,
	"return":     true,
	"spmd":       true,
	"switch":     true,
	"try":        true,
	"while":      true,
}

var multiCharPunct = []string{"==", "~=", "!=", "<=", ">=", "&&", "||", ".*", "./", `.\`, ".^", ".'"}

type token struct {
	kind   tokenKind
	text   string
	start  int
	end    int
	pos    Point
	endPos Point
	// spaced is set when whitespace or a continuation separates the token
	// from the previous one on the same logical line.
	spaced bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool {
	return t.kind == tokPunct && t.text == text
}

func isSep(t token) bool {
	return t.kind == tokNewline || t.kind == tokSemicolon || t.kind == tokComma
}

func isComment(t token) bool {
	return t.kind == tokComment || t.kind == tokBlockComment
}

type lexer struct {
	src       []byte
	off       int
	row       int
	col       int
	depth     int
	spaced    bool
	lineStart bool
	toks      []token
}

func lex(src []byte) []token {
	l := &lexer{src: src, lineStart: true}
	l.run()
	return l.toks
}

func (l *lexer) point() Point {
	return Point{Row: l.row, Column: l.col}
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.row++
			l.col = 0
		} else {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) emit(kind tokenKind, start int, startPos Point) {
	l.toks = append(l.toks, token{
		kind:   kind,
		text:   string(l.src[start:l.off]),
		start:  start,
		end:    l.off,
		pos:    startPos,
		endPos: l.point(),
		spaced: l.spaced,
	})
	l.spaced = false
	l.lineStart = kind == tokNewline
}

func (l *lexer) peekByte(i int) byte {
	if l.off+i < len(l.src) {
		return l.src[l.off+i]
	}
	return 0
}

func (l *lexer) run() {
	for l.off < len(l.src) {
		c := l.src[l.off]
		start, startPos := l.off, l.point()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance(1)
			l.spaced = true
		case c == '\n':
			l.advance(1)
			l.emit(tokNewline, start, startPos)
		case c == '%':
			if l.lineStart && l.atBlockCommentOpen() {
				l.blockComment()
				l.emit(tokBlockComment, start, startPos)
			} else {
				l.toEOL()
				l.emit(tokComment, start, startPos)
			}
		case c == '.' && l.peekByte(1) == '.' && l.peekByte(2) == '.':
			// Continuation: the rest of the physical line is ignored.
			l.toEOL()
			l.advance(1)
			l.spaced = true
		case c == ';':
			l.advance(1)
			l.emit(tokSemicolon, start, startPos)
		case c == ',':
			l.advance(1)
			l.emit(tokComma, start, startPos)
		case isIdentStart(c):
			for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
				l.advance(1)
			}
			kind := tokIdent
			if keywords[string(l.src[start:l.off])] && !l.afterDot() {
				kind = tokKeyword
			}
			l.emit(kind, start, startPos)
		case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
			l.number()
			l.emit(tokNumber, start, startPos)
		case c == '"':
			l.str('"')
			l.emit(tokString, start, startPos)
		case c == '\'':
			if l.quoteIsTranspose() {
				l.advance(1)
				l.emit(tokPunct, start, startPos)
			} else {
				l.str('\'')
				l.emit(tokString, start, startPos)
			}
		default:
			l.punct()
			l.emit(tokPunct, start, startPos)
		}
	}
	eof := l.point()
	l.toks = append(l.toks, token{kind: tokEOF, start: len(l.src), end: len(l.src), pos: eof, endPos: eof})
}

func (l *lexer) toEOL() {
	for l.off < len(l.src) && l.src[l.off] != '\n' {
		l.advance(1)
	}
}

// restOfLine returns the text from off to the end of the physical line.
func (l *lexer) restOfLine(off int) string {
	end := off
	for end < len(l.src) && l.src[end] != '\n' {
		end++
	}
	return string(l.src[off:end])
}

func (l *lexer) atBlockCommentOpen() bool {
	return strings.TrimSpace(l.restOfLine(l.off)) == "%{"
}

// blockComment consumes a %{ ... %} block, honouring nesting. An unterminated
// block runs to the end of the buffer.
func (l *lexer) blockComment() {
	depth := 0
	for l.off < len(l.src) {
		line := strings.TrimSpace(l.restOfLine(l.off))
		switch line {
		case "%{":
			depth++
		case "%}":
			depth--
		}
		l.toEOL()
		if depth == 0 {
			return
		}
		l.advance(1)
	}
}

func (l *lexer) afterDot() bool {
	if len(l.toks) == 0 {
		return false
	}
	prev := l.toks[len(l.toks)-1]
	return prev.punct(".") && !l.spaced
}

// quoteIsTranspose decides between the transpose operator and a character
// vector delimiter, based on the previous token on the line.
func (l *lexer) quoteIsTranspose() bool {
	if len(l.toks) == 0 {
		return false
	}
	prev := l.toks[len(l.toks)-1]
	valueLike := false
	switch prev.kind {
	case tokIdent, tokNumber:
		valueLike = true
	case tokKeyword:
		valueLike = prev.text == "end"
	case tokPunct:
		switch prev.text {
		case ")", "]", "}", "'", ".'":
			valueLike = true
		}
	}
	if !valueLike {
		return false
	}
	return !l.spaced || l.depth == 0
}

func (l *lexer) str(quote byte) {
	l.advance(1)
	for l.off < len(l.src) && l.src[l.off] != '\n' {
		if l.src[l.off] == quote {
			if l.peekByte(1) == quote {
				l.advance(2)
				continue
			}
			l.advance(1)
			return
		}
		l.advance(1)
	}
}

func (l *lexer) number() {
	if l.src[l.off] == '0' && (l.peekByte(1) == 'x' || l.peekByte(1) == 'X') {
		l.advance(2)
		for l.off < len(l.src) && isIdentPart(l.src[l.off]) {
			l.advance(1)
		}
		return
	}
	for l.off < len(l.src) && isDigit(l.src[l.off]) {
		l.advance(1)
	}
	if l.off < len(l.src) && l.src[l.off] == '.' && !isOperatorAfterDot(l.peekByte(1)) {
		l.advance(1)
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance(1)
		}
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' || c == 'd' || c == 'D' {
		n := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			n = 2
		}
		if isDigit(l.peekByte(n)) {
			l.advance(n)
			for l.off < len(l.src) && isDigit(l.src[l.off]) {
				l.advance(1)
			}
		}
	}
	if c := l.peekByte(0); (c == 'i' || c == 'j') && !isIdentPart(l.peekByte(1)) {
		l.advance(1)
	}
}

func (l *lexer) punct() {
	for _, op := range multiCharPunct {
		if strings.HasPrefix(string(l.src[l.off:min(l.off+len(op), len(l.src))]), op) {
			l.advance(len(op))
			return
		}
	}
	switch l.src[l.off] {
	case '[', '{':
		l.depth++
	case ']', '}':
		if l.depth > 0 {
			l.depth--
		}
	}
	l.advance(1)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isOperatorAfterDot(c byte) bool {
	switch c {
	case '*', '/', '\\', '^', '\'':
		return true
	}
	return false
}
