package parser

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
	"mpath/internal/engine/syntax"
)

// localSep joins a file object and one of its subfunctions.
const localSep = ">"

// builder maps one syntax tree to a model object. Recoverable problems are
// collected as warnings on the top-level object.
type builder struct {
	src      []byte
	path     string
	stem     string
	prefix   string
	comments *comments
	warnings []model.Warning
	reported map[*syntax.Node]bool
}

// ExtractMatlab builds the object for a .m file. The first significant
// top-level construct selects a class, a function or a script.
func ExtractMatlab(src []byte, path string) (*model.Object, error) {
	tree := syntax.Parse(src)
	b := &builder{
		src:      src,
		path:     path,
		stem:     Stem(path),
		prefix:   Qualifier(path),
		comments: collectComments(tree),
		reported: make(map[*syntax.Node]bool),
	}

	var first *syntax.Node
	for _, n := range tree.Root.Children {
		if n.Kind == syntax.KindComment {
			continue
		}
		if first == nil {
			first = n
			continue
		}
		if n.Kind == syntax.KindClassDefinition {
			return nil, errors.NewParseError(path, line(n), "classdef must be the first statement in a file")
		}
	}

	var (
		obj *model.Object
		err error
	)
	switch {
	case first != nil && first.Kind == syntax.KindClassDefinition:
		obj, err = b.class(first)
	case first != nil && first.Kind == syntax.KindFunctionDefinition:
		obj, err = b.function(first)
	default:
		obj = b.script(tree.Root)
	}
	if err != nil {
		return nil, err
	}

	b.locals(obj, tree.Root, first)
	b.syntaxWarnings(tree.Root)
	sort.SliceStable(b.warnings, func(i, j int) bool { return b.warnings[i].Line < b.warnings[j].Line })
	obj.Warnings = append(obj.Warnings, b.warnings...)
	return obj, nil
}

func (b *builder) warn(row int, format string, args ...interface{}) {
	b.warnings = append(b.warnings, model.Warning{Line: row + 1, Message: fmt.Sprintf(format, args...)})
}

func line(n *syntax.Node) int {
	return n.Start.Row + 1
}

func span(n *syntax.Node) model.LineRange {
	return model.LineRange{Start: n.Start.Row + 1, End: n.End.Row + 2}
}

func (b *builder) text(n *syntax.Node) string {
	return strings.TrimSpace(n.Text(b.src))
}

// top allocates the file-level object. Its name is always the file stem.
func (b *builder) top(kind model.Kind, n *syntax.Node) *model.Object {
	obj := model.New(kind, b.stem)
	obj.QualifiedName = model.Join(b.prefix, ".", b.stem)
	obj.Path = b.path
	if n != nil {
		obj.Lines = span(n)
	}
	return obj
}

// headerName returns the declared name of a classdef or function, or a
// parse error when the header carries none.
func (b *builder) headerName(n *syntax.Node, construct string) (string, error) {
	name := n.ChildByField(syntax.FieldName)
	if name == nil || name.IsError() || b.text(name) == "" {
		return "", errors.NewParseError(b.path, line(n), construct+" header has no name")
	}
	b.reported[name] = true
	return b.text(name), nil
}

func (b *builder) checkName(n *syntax.Node, declared string) {
	if declared != b.stem {
		b.warn(n.Start.Row, "declared name %q does not match file name %q", declared, b.stem)
	}
}

func (b *builder) script(root *syntax.Node) *model.Object {
	obj := b.top(model.KindScript, nil)
	rows := bytes.Count(b.src, []byte("\n"))
	if len(b.src) > 0 && b.src[len(b.src)-1] != '\n' {
		rows++
	}
	obj.Lines = model.LineRange{Start: 1, End: rows + 1}
	if len(root.Children) > 0 && root.Children[0].Kind == syntax.KindComment {
		obj.Docstring = b.comments.take(b.comments.after(root.Children[0].Start.Row))
	}
	return obj
}

func (b *builder) function(n *syntax.Node) (*model.Object, error) {
	declared, err := b.headerName(n, "function")
	if err != nil {
		return nil, err
	}
	b.checkName(n, declared)
	obj := b.top(model.KindFunction, n)
	b.callable(obj, n)
	return obj, nil
}

// locals attaches every top-level function other than the primary one as a
// file-local member, and flags stray statements in function and class files.
func (b *builder) locals(obj *model.Object, root, primary *syntax.Node) {
	for _, n := range root.Children {
		if n == primary {
			continue
		}
		switch {
		case n.Kind == syntax.KindFunctionDefinition:
			name := n.ChildByField(syntax.FieldName)
			if name == nil || name.IsError() {
				b.warn(n.Start.Row, "local function header has no name")
				continue
			}
			b.reported[name] = true
			local := b.newCallable(model.KindFunction, b.text(name), obj.QualifiedName, localSep, n)
			local.Callable.Local = true
			obj.Members.Add(local)
		case obj.Kind != model.KindScript && n.Kind != syntax.KindComment && !n.IsError():
			b.warn(n.Start.Row, "statement outside of a function")
		}
	}
}

func (b *builder) newCallable(kind model.Kind, name, owner, sep string, n *syntax.Node) *model.Object {
	obj := model.New(kind, name)
	obj.QualifiedName = model.Join(owner, sep, name)
	obj.Parent = owner
	obj.Path = b.path
	obj.Lines = span(n)
	b.callable(obj, n)
	return obj
}

// callable fills the signature, arguments blocks, docstring and nested
// functions of a function definition or method signature.
func (b *builder) callable(obj *model.Object, n *syntax.Node) {
	c := obj.Callable
	sigEnd := n.Start.Row
	if out := n.ChildByField(syntax.FieldOutput); out != nil {
		for _, id := range out.ChildrenByKind(syntax.KindIdentifier) {
			c.Returns = append(c.Returns, b.newArgument(obj, b.text(id), id))
		}
		sigEnd = max(sigEnd, out.End.Row)
	}
	if name := n.ChildByField(syntax.FieldName); name != nil {
		sigEnd = max(sigEnd, name.End.Row)
	}
	if args := n.ChildByField(syntax.FieldArguments); args != nil {
		for _, id := range args.ChildrenByKind(syntax.KindIdentifier) {
			c.Arguments = append(c.Arguments, b.newArgument(obj, b.text(id), id))
		}
		sigEnd = max(sigEnd, args.End.Row)
	}

	if obj.Kind == model.KindMethod {
		if prop, ok := strings.CutPrefix(obj.Name, "get."); ok {
			c.Accessor, c.BoundProperty = model.Getter, prop
		} else if prop, ok := strings.CutPrefix(obj.Name, "set."); ok {
			c.Accessor, c.BoundProperty = model.Setter, prop
		}
	}

	if run := b.comments.after(sigEnd); len(run) > 0 {
		obj.Docstring = b.comments.take(run)
	} else {
		obj.Docstring = b.comments.take(b.comments.before(n.Start.Row))
	}

	for _, st := range n.ChildrenByKind(syntax.KindArgumentsStatement) {
		b.argumentsBlock(obj, st)
	}
	for _, a := range c.Arguments {
		if a.Name == "varargin" {
			a.Argument.Repeating = true
		}
	}

	if body := n.ChildByField(syntax.FieldBody); body != nil {
		for _, fn := range body.ChildrenByKind(syntax.KindFunctionDefinition) {
			name := fn.ChildByField(syntax.FieldName)
			if name == nil || name.IsError() {
				continue
			}
			b.reported[name] = true
			nested := b.newCallable(model.KindFunction, b.text(name), obj.QualifiedName, localSep, fn)
			nested.Callable.Local = true
			obj.Members.Add(nested)
		}
	}
}

func (b *builder) newArgument(owner *model.Object, name string, n *syntax.Node) *model.Object {
	a := model.New(model.KindArgument, name)
	a.QualifiedName = model.Join(owner.QualifiedName, ".", name)
	a.Parent = owner.QualifiedName
	a.Path = b.path
	a.Lines = span(n)
	return a
}

// argumentsBlock applies one arguments block. Positional entries update the
// signature argument of the same name in place; options-struct entries
// replace their struct argument and follow the positional ones.
func (b *builder) argumentsBlock(fn *model.Object, st *syntax.Node) {
	attrs := b.attributes(st.ChildByField(syntax.FieldAttributes))
	target := &fn.Callable.Arguments
	if attrs.flag("output") {
		target = &fn.Callable.Returns
	}
	repeating := attrs.flag("repeating")

	entries := st.ChildrenByKind(syntax.KindProperty)
	var named []*model.Object
	for i, e := range entries {
		nameNode := e.ChildByField(syntax.FieldName)
		if nameNode == nil {
			continue
		}
		sameRow := i == len(entries)-1 || entries[i+1].Start.Row != e.Start.Row
		doc := b.comments.take(b.comments.trailing(e.Start.Row, e.Start.Column, sameRow))

		name, group := b.text(nameNode), ""
		if nameNode.Kind == syntax.KindPropertyName && len(nameNode.Children) > 0 {
			group = b.text(nameNode.Children[0])
			name = strings.TrimPrefix(name, group+".")
		}

		var arg *model.Object
		if group != "" {
			arg = b.newArgument(fn, name, e)
			arg.Argument.Named = true
			arg.Argument.Group = group
			*target = removeArgument(*target, group)
			named = append(named, arg)
		} else {
			arg = findArgument(*target, name)
			if arg == nil {
				b.warn(e.Start.Row, "argument %q is not in the signature of %s", name, fn.Name)
				arg = b.newArgument(fn, name, e)
				*target = append(*target, arg)
			}
			arg.Lines = span(e)
		}
		b.declaration(e, &arg.Argument.DeclaredType, &arg.Argument.Dimensions, &arg.Argument.Validators, &arg.Argument.Default, &arg.Argument.HasDefault)
		arg.Argument.Repeating = arg.Argument.Repeating || repeating
		if doc != nil {
			arg.Docstring = doc
		}
	}
	*target = append(*target, named...)
}

func findArgument(args []*model.Object, name string) *model.Object {
	for _, a := range args {
		if a.Name == name && !a.Argument.Named {
			return a
		}
	}
	return nil
}

func removeArgument(args []*model.Object, name string) []*model.Object {
	out := args[:0]
	for _, a := range args {
		if a.Name == name && !a.Argument.Named {
			continue
		}
		out = append(out, a)
	}
	return out
}

// declaration reads the "(dims) Type {validators} = default" tail shared by
// properties and arguments.
func (b *builder) declaration(n *syntax.Node, typ, dims *string, validators *[]string, def *string, hasDef *bool) {
	if d := n.ChildByField(syntax.FieldDimensions); d != nil {
		if d.IsError() {
			b.warn(d.Start.Row, "malformed size constraint %q", b.text(d))
			b.reported[d] = true
		} else {
			*dims = b.text(d)
		}
	}
	if t := n.ChildByField(syntax.FieldType); t != nil {
		*typ = b.text(t)
	}
	if v := n.ChildByField(syntax.FieldValidators); v != nil {
		for _, fn := range v.ChildrenByKind(syntax.KindValidationFunction) {
			*validators = append(*validators, b.text(fn))
		}
	}
	if d := n.ChildByField(syntax.FieldDefault); d != nil {
		if d.IsError() {
			b.warn(d.Start.Row, "malformed default value")
			b.reported[d] = true
			return
		}
		*def, *hasDef = b.text(d), true
	}
}

func (b *builder) class(n *syntax.Node) (*model.Object, error) {
	declared, err := b.headerName(n, "classdef")
	if err != nil {
		return nil, err
	}
	b.checkName(n, declared)
	cls := b.top(model.KindClass, n)

	headerEnd := n.Start.Row
	attrs := b.attributes(n.ChildByField(syntax.FieldAttributes))
	cls.Class.Abstract = attrs.flag("abstract")
	cls.Class.Sealed = attrs.flag("sealed")
	cls.Class.Hidden = attrs.flag("hidden")
	if sc := n.ChildByField(syntax.FieldSuperclasses); sc != nil {
		for _, base := range sc.Children {
			if base.Kind != syntax.KindIdentifier && base.Kind != syntax.KindPropertyName {
				continue
			}
			name := b.text(base)
			cls.Class.Bases = append(cls.Class.Bases, name)
			if name == "handle" {
				cls.Class.Handle = true
			}
		}
		headerEnd = max(headerEnd, sc.End.Row)
	}
	if name := n.ChildByField(syntax.FieldName); name != nil {
		headerEnd = max(headerEnd, name.End.Row)
	}
	if run := b.comments.after(headerEnd); len(run) > 0 {
		cls.Docstring = b.comments.take(run)
	} else {
		cls.Docstring = b.comments.take(b.comments.before(n.Start.Row))
	}

	for _, blk := range n.Children {
		switch blk.Kind {
		case syntax.KindProperties:
			b.properties(cls, blk)
		case syntax.KindMethods:
			b.methods(cls, blk)
		case syntax.KindEnumeration:
			b.enumeration(cls, blk)
		}
	}
	b.bindAccessors(cls)
	return cls, nil
}

func (b *builder) member(cls *model.Object, kind model.Kind, name string, n *syntax.Node) *model.Object {
	m := model.New(kind, name)
	m.QualifiedName = model.Join(cls.QualifiedName, ".", name)
	m.Parent = cls.QualifiedName
	m.Path = b.path
	m.Lines = span(n)
	return m
}

// memberDoc prefers a trailing comment and falls back to the comment block
// directly above the declaration.
func (b *builder) memberDoc(n *syntax.Node, sameRow bool) *model.Docstring {
	if run := b.comments.trailing(n.Start.Row, n.Start.Column, sameRow); len(run) > 0 {
		return b.comments.take(run)
	}
	return b.comments.take(b.comments.before(n.Start.Row))
}

func (b *builder) properties(cls *model.Object, blk *syntax.Node) {
	attrs := b.attributes(blk.ChildByField(syntax.FieldAttributes))
	base := model.PropertyInfo{
		Constant:      attrs.flag("constant"),
		Dependent:     attrs.flag("dependent"),
		Hidden:        attrs.flag("hidden"),
		Abstract:      attrs.flag("abstract"),
		Transient:     attrs.flag("transient"),
		NonCopyable:   attrs.flag("noncopyable"),
		GetObservable: attrs.flag("getobservable"),
		SetObservable: attrs.flag("setobservable"),
		AbortSet:      attrs.flag("abortset"),
		WeakHandle:    attrs.flag("weakhandle"),
	}
	access := b.memberAccess(attrs, "access", model.AccessPublic, blk.Start.Row)
	base.Access = access
	base.GetAccess = b.memberAccess(attrs, "getaccess", access, blk.Start.Row)
	base.SetAccess = attrs.access("setaccess", access)

	entries := blk.ChildrenByKind(syntax.KindProperty)
	for i, e := range entries {
		nameNode := e.ChildByField(syntax.FieldName)
		if nameNode == nil {
			continue
		}
		name := b.text(nameNode)
		if nameNode.Kind == syntax.KindPropertyName {
			b.warn(e.Start.Row, "property name %q is not an identifier", name)
		}
		p := b.member(cls, model.KindProperty, name, e)
		*p.Property = base
		b.declaration(e, &p.Property.DeclaredType, &p.Property.Dimensions, &p.Property.Validators, &p.Property.Default, &p.Property.HasDefault)
		p.Docstring = b.memberDoc(e, i == len(entries)-1 || entries[i+1].Start.Row != e.Start.Row)
		cls.Members.Add(p)
	}
}

func (b *builder) methods(cls *model.Object, blk *syntax.Node) {
	attrs := b.attributes(blk.ChildByField(syntax.FieldAttributes))
	access := b.memberAccess(attrs, "access", model.AccessPublic, blk.Start.Row)
	for _, n := range blk.Children {
		if n.Kind != syntax.KindFunctionDefinition && n.Kind != syntax.KindFunctionSignature {
			continue
		}
		nameNode := n.ChildByField(syntax.FieldName)
		if nameNode == nil || nameNode.IsError() {
			b.warn(n.Start.Row, "method header has no name")
			continue
		}
		b.reported[nameNode] = true
		m := b.member(cls, model.KindMethod, b.text(nameNode), n)
		b.callable(m, n)
		c := m.Callable
		c.Access = access
		c.Static = attrs.flag("static")
		c.Abstract = attrs.flag("abstract")
		c.Hidden = attrs.flag("hidden")
		c.Sealed = attrs.flag("sealed")
		c.Declared = n.Kind == syntax.KindFunctionSignature
		DropReceiver(m, cls.Name)
		cls.Members.Add(m)
	}
}

func (b *builder) enumeration(cls *model.Object, blk *syntax.Node) {
	entries := blk.ChildrenByKind(syntax.KindEnum)
	for i, e := range entries {
		nameNode := e.ChildByField(syntax.FieldName)
		if nameNode == nil {
			continue
		}
		m := b.member(cls, model.KindEnumerationMember, b.text(nameNode), e)
		if v := e.ChildByField(syntax.FieldValue); v != nil {
			raw := b.text(v)
			raw = strings.TrimSuffix(strings.TrimPrefix(raw, "("), ")")
			m.Enum.Value = strings.TrimSpace(raw)
		}
		m.Docstring = b.memberDoc(e, i == len(entries)-1 || entries[i+1].Start.Row != e.Start.Row)
		cls.Members.Add(m)
	}
}

func (b *builder) bindAccessors(cls *model.Object) {
	for _, m := range cls.Members.Filter(model.KindMethod) {
		c := m.Callable
		if c.Accessor == model.NotAccessor {
			continue
		}
		p, ok := cls.Member(c.BoundProperty)
		if !ok || p.Kind != model.KindProperty {
			b.warn(m.Lines.Start-1, "accessor %s has no matching property", m.Name)
			continue
		}
		if c.Accessor == model.Getter {
			p.Property.Getter = m.Name
		} else {
			p.Property.Setter = m.Name
		}
	}
}

// DropReceiver moves the instance argument of an ordinary method into
// Receiver. Static methods and the constructor keep their arguments.
func DropReceiver(m *model.Object, className string) {
	c := m.Callable
	if c == nil || c.Static || c.Receiver != "" || m.Name == className || len(c.Arguments) == 0 {
		return
	}
	if c.Arguments[0].Argument.Named {
		return
	}
	c.Receiver = c.Arguments[0].Name
	c.Arguments = c.Arguments[1:]
}

// syntaxWarnings records every grammar error not already reported by a more
// specific check.
func (b *builder) syntaxWarnings(root *syntax.Node) {
	syntax.Walk(root, func(n *syntax.Node) bool {
		if b.reported[n] {
			return false
		}
		if !n.IsError() {
			return true
		}
		switch {
		case n.Missing && n.Field != "":
			b.warn(n.Start.Row, "missing %s", n.Field)
		case n.Missing:
			b.warn(n.Start.Row, "incomplete construct")
		default:
			text, _, _ := strings.Cut(b.text(n), "\n")
			if len(text) > 40 {
				text = text[:40] + "..."
			}
			b.warn(n.Start.Row, "unexpected syntax %q", text)
		}
		return false
	})
}
