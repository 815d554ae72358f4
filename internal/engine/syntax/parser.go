package syntax

// blockKeywords open a construct closed by a statement-level end.
var blockKeywords = map[string]bool{
	"if":     true,
	"for":    true,
	"parfor": true,
	"while":  true,
	"switch": true,
	"try":    true,
	"spmd":   true,
}

var classBlocks = map[string]string{
	"properties":  KindProperties,
	"methods":     KindMethods,
	"events":      KindEvents,
	"enumeration": KindEnumeration,
}

type parser struct {
	src     []byte
	toks    []token
	pos     int
	last    token
	endMode bool
}

// Parse builds a concrete syntax tree. It never fails; malformed input
// produces ERROR nodes.
func Parse(src []byte) *Tree {
	toks := lex(src)
	p := &parser{src: src, toks: toks, endMode: functionsUseEnd(toks)}
	return &Tree{Root: p.sourceFile(), Source: src}
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(i int) token {
	if p.pos+i < len(p.toks) {
		return p.toks[p.pos+i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
		// Node ends never extend over line breaks.
		if t.kind != tokNewline {
			p.last = t
		}
	}
	return t
}

func (p *parser) open(kind string, t token) *Node {
	return &Node{Kind: kind, StartByte: t.start, Start: t.pos, EndByte: t.end, End: t.endPos}
}

func (p *parser) leaf(kind string) *Node {
	return p.open(kind, p.advance())
}

func (p *parser) close(n *Node) *Node {
	if p.last.end > n.EndByte {
		n.EndByte = p.last.end
		n.End = p.last.endPos
	}
	return n
}

func (p *parser) missing() *Node {
	t := p.peek()
	return &Node{Kind: KindError, StartByte: t.start, EndByte: t.start, Start: t.pos, End: t.pos, Missing: true}
}

func (p *parser) atLineEnd() bool {
	t := p.peek()
	return t.kind == tokEOF || isSep(t) || isComment(t)
}

func (p *parser) sourceFile() *Node {
	eof := p.toks[len(p.toks)-1]
	root := &Node{Kind: KindSourceFile, EndByte: len(p.src), End: eof.endPos}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			return root
		case isSep(t):
			p.advance()
		case isComment(t):
			root.Children = append(root.Children, p.leaf(KindComment))
		case t.is(tokKeyword, "classdef"):
			root.Children = append(root.Children, p.classDefinition())
		case t.is(tokKeyword, "function"):
			root.Children = append(root.Children, p.functionDefinition(p.endMode))
		case t.is(tokKeyword, "end"):
			root.Children = append(root.Children, p.restAsError())
		default:
			root.Children = append(root.Children, p.statement())
		}
	}
}

func (p *parser) statement() *Node {
	t := p.peek()
	if t.kind == tokKeyword && blockKeywords[t.text] {
		return p.blockStatement()
	}
	return p.simpleStatement(KindStatement)
}

// simpleStatement consumes one statement up to a depth-zero separator. The
// node becomes an ERROR when its brackets do not balance.
func (p *parser) simpleStatement(kind string) *Node {
	n := p.open(kind, p.peek())
	if !p.expression(nil) {
		n.Kind = KindError
	}
	return p.close(n)
}

// restAsError wraps everything up to the end of the statement in an ERROR
// node.
func (p *parser) restAsError() *Node {
	n := p.open(KindError, p.peek())
	p.advance()
	p.expression(nil)
	return p.close(n)
}

// expression consumes tokens until a depth-zero separator, comment or end
// keyword, or a depth-zero punctuation token accepted by stop. Newlines are
// allowed inside brackets and braces but end an unbalanced parenthesis. It
// reports whether the consumed brackets balanced.
func (p *parser) expression(stop func(token) bool) bool {
	var stack []string
	ok := true
	startPos := p.pos
	for {
		t := p.peek()
		if t.kind == tokEOF {
			break
		}
		if len(stack) == 0 {
			if isSep(t) || isComment(t) {
				break
			}
			if t.is(tokKeyword, "end") && p.pos != startPos {
				break
			}
			if stop != nil && stop(t) {
				break
			}
		} else if t.kind == tokNewline {
			if stack[len(stack)-1] == "(" {
				break
			}
			next := p.peekAt(1)
			if next.is(tokKeyword, "function") || next.is(tokKeyword, "classdef") {
				break
			}
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				stack = append(stack, t.text)
			case ")", "]", "}":
				if len(stack) == 0 || !matches(stack[len(stack)-1], t.text) {
					ok = false
				}
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
		p.advance()
	}
	return ok && len(stack) == 0
}

func matches(open, close string) bool {
	switch open {
	case "(":
		return close == ")"
	case "[":
		return close == "]"
	case "{":
		return close == "}"
	}
	return false
}

func (p *parser) blockStatement() *Node {
	kw := p.peek()
	n := p.open(kw.text+"_statement", kw)
	n.append(p.simpleStatement(KindStatement))
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF, t.is(tokKeyword, "function"), t.is(tokKeyword, "classdef"):
			n.append(p.missing())
			return p.close(n)
		case isSep(t):
			p.advance()
		case isComment(t):
			n.append(p.leaf(KindComment))
		case t.is(tokKeyword, "end"):
			p.advance()
			return p.close(n)
		default:
			n.append(p.statement())
		}
	}
}

// functionDefinition parses a function and its body. withEnd selects whether
// the body is closed by end (and may contain nested functions) or by the next
// function keyword.
func (p *parser) functionDefinition(withEnd bool) *Node {
	n := p.open(KindFunctionDefinition, p.advance())
	p.signature(n)
	var block *Node
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF:
			if withEnd {
				n.append(p.missing())
			}
			return p.close(n)
		case isSep(t):
			p.advance()
		case isComment(t):
			if !withEnd && block != nil && p.commentsPrecedeFunction() {
				return p.close(n)
			}
			c := p.leaf(KindComment)
			if block == nil {
				n.append(c)
			} else {
				block.append(c)
			}
		case t.is(tokKeyword, "end"):
			p.advance()
			return p.close(n)
		case t.is(tokKeyword, "function"):
			if !withEnd {
				return p.close(n)
			}
			if block == nil {
				block = p.open(KindBlock, t).withField(FieldBody)
				n.append(block)
			}
			block.append(p.functionDefinition(true))
		case t.is(tokKeyword, "classdef"):
			n.append(p.missing())
			return p.close(n)
		case block == nil && p.atArgumentsBlock():
			n.append(p.argumentsStatement())
		default:
			if block == nil {
				block = p.open(KindBlock, t).withField(FieldBody)
				n.append(block)
			}
			block.append(p.statement())
		}
	}
}

// commentsPrecedeFunction reports whether the comment run starting at the
// current token is followed by a function keyword, in which case it belongs
// to the next function rather than the current body.
func (p *parser) commentsPrecedeFunction() bool {
	for i := p.pos; i < len(p.toks); i++ {
		t := p.toks[i]
		if isComment(t) || t.kind == tokNewline {
			continue
		}
		return t.is(tokKeyword, "function")
	}
	return false
}

// signature parses "[out1, out2] = name(arg1, arg2)" into n, leaving any
// unexpected trailing tokens as an ERROR child.
func (p *parser) signature(n *Node) {
	if out := p.functionOutput(); out != nil {
		n.append(out.withField(FieldOutput))
	}
	if p.peek().kind == tokIdent {
		n.append(p.dottedName(false).withField(FieldName))
	} else {
		n.append(p.missing().withField(FieldName))
	}
	if p.peek().punct("(") {
		n.append(p.functionArguments().withField(FieldArguments))
	}
	if !p.atLineEnd() {
		n.append(p.restAsError())
	}
}

func (p *parser) functionOutput() *Node {
	t := p.peek()
	if t.kind == tokIdent && p.peekAt(1).punct("=") {
		out := p.open(KindFunctionOutput, t)
		out.append(p.leaf(KindIdentifier))
		p.close(out)
		p.advance()
		return out
	}
	if !t.punct("[") {
		return nil
	}
	// Confirm "[ ... ] =" before committing.
	i := 1
	for ; ; i++ {
		c := p.peekAt(i)
		if c.punct("]") {
			break
		}
		if c.kind != tokIdent && c.kind != tokComma && !c.punct("~") {
			return nil
		}
	}
	if !p.peekAt(i + 1).punct("=") {
		return nil
	}
	out := p.open(KindFunctionOutput, p.advance())
	for !p.peek().punct("]") {
		c := p.peek()
		if c.kind == tokIdent || c.punct("~") {
			out.append(p.leaf(KindIdentifier))
			continue
		}
		p.advance()
	}
	p.advance()
	p.close(out)
	p.advance()
	return out
}

func (p *parser) functionArguments() *Node {
	args := p.open(KindFunctionArguments, p.advance())
	for {
		t := p.peek()
		switch {
		case t.punct(")"):
			p.advance()
			return p.close(args)
		case t.kind == tokIdent || t.punct("~"):
			args.append(p.leaf(KindIdentifier))
		case t.kind == tokComma:
			p.advance()
		case t.kind == tokEOF || t.kind == tokNewline || isComment(t):
			args.append(p.missing())
			return p.close(args)
		default:
			args.append(p.leaf(KindError))
		}
	}
}

// dottedName parses name(.name)*. Segments must not be separated by
// whitespace. With meta set, a "?pkg.Class" tail is accepted as used by
// options-struct arguments.
func (p *parser) dottedName(meta bool) *Node {
	first := p.peek()
	n := p.open(KindIdentifier, first)
	n.append(p.leaf(KindIdentifier))
	for {
		dot, next := p.peek(), p.peekAt(1)
		if !dot.punct(".") || dot.spaced || next.spaced {
			break
		}
		if next.kind == tokIdent || next.kind == tokKeyword {
			p.advance()
			n.append(p.leaf(KindIdentifier))
			continue
		}
		if meta && next.punct("?") {
			p.advance()
			p.advance()
			for p.peek().kind == tokIdent || (p.peek().punct(".") && !p.peek().spaced) {
				p.advance()
			}
			p.close(n)
			n.Kind = KindPropertyName
			return n
		}
		break
	}
	p.close(n)
	if len(n.Children) > 1 {
		n.Kind = KindPropertyName
	} else {
		n.Children = nil
	}
	return n
}

func (p *parser) classDefinition() *Node {
	n := p.open(KindClassDefinition, p.advance())
	if p.peek().punct("(") {
		n.append(p.attributes().withField(FieldAttributes))
	}
	if p.peek().kind == tokIdent {
		n.append(p.dottedName(false).withField(FieldName))
	} else {
		n.append(p.missing().withField(FieldName))
	}
	if p.peek().punct("<") {
		n.append(p.superclasses().withField(FieldSuperclasses))
	}
	if !p.atLineEnd() {
		n.append(p.restAsError())
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF, t.is(tokKeyword, "function"), t.is(tokKeyword, "classdef"):
			n.append(p.missing())
			return p.close(n)
		case isSep(t):
			p.advance()
		case isComment(t):
			n.append(p.leaf(KindComment))
		case t.is(tokKeyword, "end"):
			p.advance()
			return p.close(n)
		case t.kind == tokIdent && classBlocks[t.text] != "" && p.blockHeaderFollows():
			n.append(p.classBlock(classBlocks[t.text]))
		default:
			n.append(p.restAsError())
		}
	}
}

func (p *parser) blockHeaderFollows() bool {
	next := p.peekAt(1)
	return next.kind == tokEOF || isSep(next) || isComment(next) || next.punct("(")
}

func (p *parser) superclasses() *Node {
	n := p.open(KindSuperclasses, p.advance())
	for {
		t := p.peek()
		switch {
		case t.kind == tokIdent:
			n.append(p.dottedName(false))
		case t.punct("&"):
			p.advance()
		default:
			return p.close(n)
		}
	}
}

func (p *parser) attributes() *Node {
	n := p.open(KindAttributes, p.advance())
	for {
		t := p.peek()
		switch {
		case t.punct(")"):
			p.advance()
			return p.close(n)
		case t.kind == tokEOF || t.kind == tokNewline || isComment(t):
			n.append(p.missing())
			return p.close(n)
		case t.kind == tokComma:
			p.advance()
		case t.kind == tokIdent || t.punct("~") || t.punct("!"):
			n.append(p.attribute())
		default:
			e := p.open(KindError, t)
			p.advance()
			p.expression(attributeStop)
			n.append(p.close(e))
		}
	}
}

func attributeStop(t token) bool {
	return t.punct(")")
}

func (p *parser) attribute() *Node {
	n := p.open(KindAttribute, p.peek())
	if t := p.peek(); t.punct("~") || t.punct("!") {
		n.append(p.leaf(KindNot))
	}
	if p.peek().kind != tokIdent {
		n.append(p.missing().withField(FieldName))
		return p.close(n)
	}
	n.append(p.leaf(KindIdentifier).withField(FieldName))
	if p.peek().punct("=") {
		p.advance()
		v := p.open(KindAttributeValue, p.peek())
		if p.atLineEnd() || p.peek().punct(")") {
			n.append(p.missing().withField(FieldValue))
			return p.close(n)
		}
		if !p.expression(attributeStop) {
			v.Kind = KindError
		}
		n.append(p.close(v).withField(FieldValue))
	}
	return p.close(n)
}

func (p *parser) classBlock(kind string) *Node {
	n := p.open(kind, p.advance())
	if p.peek().punct("(") {
		n.append(p.attributes().withField(FieldAttributes))
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF, t.is(tokKeyword, "classdef"):
			n.append(p.missing())
			return p.close(n)
		case isSep(t):
			p.advance()
		case isComment(t):
			n.append(p.leaf(KindComment))
		case t.is(tokKeyword, "end"):
			p.advance()
			return p.close(n)
		case kind == KindMethods && t.is(tokKeyword, "function"):
			n.append(p.functionDefinition(true))
		case t.is(tokKeyword, "function"):
			n.append(p.missing())
			return p.close(n)
		case t.kind == tokIdent || (kind == KindMethods && t.punct("[")):
			n.append(p.classBlockEntry(kind))
		default:
			n.append(p.restAsError())
		}
	}
}

func (p *parser) classBlockEntry(kind string) *Node {
	switch kind {
	case KindProperties:
		return p.property()
	case KindMethods:
		sig := p.open(KindFunctionSignature, p.peek())
		p.signature(sig)
		return p.close(sig)
	case KindEnumeration:
		return p.enum()
	default:
		n := p.leaf(KindIdentifier)
		if !p.atLineEnd() {
			e := p.restAsError()
			return &Node{Kind: KindError, StartByte: n.StartByte, EndByte: e.EndByte, Start: n.Start, End: e.End, Children: []*Node{n}}
		}
		return n
	}
}

func (p *parser) enum() *Node {
	n := p.open(KindEnum, p.peek())
	n.append(p.leaf(KindIdentifier).withField(FieldName))
	if p.peek().punct("(") {
		v := p.open(KindEnumValue, p.peek())
		if !p.expression(nil) {
			v.Kind = KindError
		}
		n.append(p.close(v).withField(FieldValue))
	}
	if !p.atLineEnd() && !p.peek().is(tokKeyword, "end") {
		n.append(p.restAsError())
	}
	return p.close(n)
}

// atArgumentsBlock recognises "arguments" opening a validation block rather
// than a variable or call of that name.
func (p *parser) atArgumentsBlock() bool {
	t := p.peek()
	if t.kind != tokIdent || t.text != "arguments" {
		return false
	}
	next := p.peekAt(1)
	if next.kind == tokEOF || isSep(next) || isComment(next) {
		return true
	}
	return next.punct("(") && argumentsAttribute(p.peekAt(2))
}

func argumentsAttribute(t token) bool {
	if t.kind != tokIdent {
		return false
	}
	switch t.text {
	case "Input", "Output", "Repeating":
		return true
	}
	return false
}

func (p *parser) argumentsStatement() *Node {
	n := p.open(KindArgumentsStatement, p.advance())
	if p.peek().punct("(") {
		n.append(p.attributes().withField(FieldAttributes))
	}
	for {
		t := p.peek()
		switch {
		case t.kind == tokEOF, t.is(tokKeyword, "function"), t.is(tokKeyword, "classdef"):
			n.append(p.missing())
			return p.close(n)
		case isSep(t):
			p.advance()
		case isComment(t):
			n.append(p.leaf(KindComment))
		case t.is(tokKeyword, "end"):
			p.advance()
			return p.close(n)
		case t.kind == tokIdent:
			n.append(p.property())
		default:
			n.append(p.restAsError())
		}
	}
}

// property parses a property or argument declaration:
//
//	name (dims) Type {validators} = default
func (p *parser) property() *Node {
	n := p.open(KindProperty, p.peek())
	n.append(p.dottedName(true).withField(FieldName))
	if t := p.peek(); t.punct("(") {
		d := p.open(KindDimensions, t)
		if !p.balanced() {
			d.Kind = KindError
		}
		n.append(p.close(d).withField(FieldDimensions))
	}
	if p.peek().kind == tokIdent {
		n.append(p.dottedName(false).withField(FieldType))
	}
	if t := p.peek(); t.punct("{") {
		n.append(p.validationFunctions().withField(FieldValidators))
	}
	if p.peek().punct("=") {
		p.advance()
		if p.atLineEnd() {
			n.append(p.missing().withField(FieldDefault))
		} else {
			d := p.open(KindDefaultValue, p.peek())
			if !p.expression(nil) {
				d.Kind = KindError
			}
			n.append(p.close(d).withField(FieldDefault))
		}
	}
	if !p.atLineEnd() && !p.peek().is(tokKeyword, "end") {
		n.append(p.restAsError())
	}
	return p.close(n)
}

// balanced consumes one bracketed group starting at the current opener. The
// group must close on the same line.
func (p *parser) balanced() bool {
	depth := 0
	for {
		t := p.peek()
		if t.kind == tokEOF || (t.kind == tokNewline && depth > 0) {
			return false
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				depth--
			}
		}
		p.advance()
		if depth <= 0 {
			return depth == 0
		}
	}
}

func (p *parser) validationFunctions() *Node {
	n := p.open(KindValidationFunctions, p.advance())
	for {
		t := p.peek()
		switch {
		case t.punct("}"):
			p.advance()
			return p.close(n)
		case t.kind == tokEOF || t.kind == tokNewline:
			n.append(p.missing())
			return p.close(n)
		case t.kind == tokComma:
			p.advance()
		default:
			v := p.open(KindValidationFunction, t)
			if !p.expression(validatorStop) {
				v.Kind = KindError
			}
			n.append(p.close(v))
		}
	}
}

func validatorStop(t token) bool {
	return t.punct("}")
}

// functionsUseEnd decides whether the functions of a file are terminated by
// end. Either every function in a file is closed by end or none is, so the
// number of depth-zero end keywords is compared with the number of openers.
func functionsUseEnd(toks []token) bool {
	openers, ends, functions := 0, 0, 0
	depth := 0
	atStart := true
	classFile, seen := false, false
	for i, t := range toks {
		switch {
		case t.kind == tokEOF:
			continue
		case t.kind == tokNewline || t.kind == tokSemicolon || (t.kind == tokComma && depth == 0):
			atStart = true
			continue
		case isComment(t):
			continue
		}
		if !seen {
			seen = true
			classFile = t.is(tokKeyword, "classdef")
		}
		if atStart && depth == 0 {
			switch {
			case t.kind == tokKeyword && (blockKeywords[t.text] || t.text == "function" || t.text == "classdef"):
				openers++
				if t.text == "function" {
					functions++
				}
			case t.kind == tokIdent && opensIdentBlock(toks, i, classFile):
				openers++
			}
		}
		if t.is(tokKeyword, "end") && depth == 0 {
			ends++
		}
		if t.kind == tokPunct {
			switch t.text {
			case "(", "[", "{":
				depth++
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
			}
		}
		atStart = false
	}
	if functions == 0 {
		return true
	}
	return ends >= openers
}

func opensIdentBlock(toks []token, i int, classFile bool) bool {
	t := toks[i]
	var next, after token
	if i+1 < len(toks) {
		next = toks[i+1]
	}
	if i+2 < len(toks) {
		after = toks[i+2]
	}
	lineEnd := next.kind == tokEOF || isSep(next) || isComment(next)
	switch {
	case t.text == "arguments":
		return lineEnd || (next.punct("(") && argumentsAttribute(after))
	case classFile && classBlocks[t.text] != "":
		return lineEnd || next.punct("(")
	}
	return false
}
