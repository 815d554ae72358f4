// Package model holds the semantic objects built from MATLAB source.
//
// Object is a closed tagged variant: Kind selects which payload pointer is
// set, and every kind shares the common record. Parent links are qualified
// name keys, never pointers, so a class and its methods do not reference
// each other.
package model

import "strings"

type Kind int

const (
	KindFunction Kind = iota
	KindClass
	KindScript
	KindNamespace
	KindLiveScript
	KindProperty
	KindMethod
	KindArgument
	KindEnumerationMember
	// KindFolder is a plain path folder addressed by its file system path.
	KindFolder
)

var kindNames = map[Kind]string{
	KindFunction:          "function",
	KindClass:             "class",
	KindScript:            "script",
	KindNamespace:         "namespace",
	KindLiveScript:        "livescript",
	KindProperty:          "property",
	KindMethod:            "method",
	KindArgument:          "argument",
	KindEnumerationMember: "enumeration_member",
	KindFolder:            "folder",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// LineRange is a half-open range of 1-based source lines.
type LineRange struct {
	Start int
	End   int
}

func (r LineRange) Len() int {
	return r.End - r.Start
}

func (r LineRange) Contains(line int) bool {
	return line >= r.Start && line < r.End
}

type Docstring struct {
	Text  string
	Lines LineRange
}

// Warning is a recoverable issue found while building an object.
type Warning struct {
	Line    int
	Message string
}

type Object struct {
	Name          string
	QualifiedName string
	Kind          Kind
	// Path is the source file, or the folder for class folders, namespaces
	// and plain folders.
	Path string
	// DefinitionPath is the classdef file inside a class folder, if any.
	DefinitionPath string
	Lines          LineRange
	Docstring      *Docstring
	// Parent is the qualified name of the owning object, empty at top level.
	Parent   string
	Members  *Members
	Warnings []Warning

	Class    *ClassInfo
	Callable *CallableInfo
	Property *PropertyInfo
	Argument *ArgumentInfo
	Enum     *EnumInfo
	Live     *LiveInfo
}

// New returns an object of the given kind with its payload allocated.
func New(kind Kind, name string) *Object {
	o := &Object{Name: name, QualifiedName: name, Kind: kind, Members: NewMembers()}
	switch kind {
	case KindClass:
		o.Class = &ClassInfo{}
	case KindFunction, KindMethod:
		o.Callable = &CallableInfo{Access: AccessPublic}
	case KindProperty:
		o.Property = &PropertyInfo{Access: AccessPublic, GetAccess: AccessPublic, SetAccess: AccessPublic}
	case KindArgument:
		o.Argument = &ArgumentInfo{}
	case KindEnumerationMember:
		o.Enum = &EnumInfo{}
	case KindLiveScript:
		o.Live = &LiveInfo{}
	}
	return o
}

func (o *Object) Warn(line int, msg string) {
	o.Warnings = append(o.Warnings, Warning{Line: line, Message: msg})
}

func (o *Object) DocText() string {
	if o.Docstring == nil {
		return ""
	}
	return o.Docstring.Text
}

// Member returns a direct member by name.
func (o *Object) Member(name string) (*Object, bool) {
	if o == nil || o.Members == nil {
		return nil, false
	}
	return o.Members.Get(name)
}

func (o *Object) IsProperty() bool {
	return o != nil && o.Kind == KindProperty
}

func (o *Object) IsMethod() bool {
	return o != nil && o.Kind == KindMethod
}

// IsPublic reports whether the object is reachable from outside its owner.
// A property counts as public when it can be read from outside.
func (o *Object) IsPublic() bool {
	if o == nil {
		return false
	}
	switch o.Kind {
	case KindMethod, KindFunction:
		return o.Callable.Access == AccessPublic && !o.Callable.Hidden && !o.Callable.Local
	case KindProperty:
		return o.Property.GetAccess == AccessPublic && !o.Property.Hidden
	case KindClass:
		return !o.Class.Hidden
	}
	return true
}

func (o *Object) IsClass() bool {
	return o != nil && o.Kind == KindClass
}

// Constructor returns the method named after the class.
func (o *Object) Constructor() (*Object, bool) {
	if !o.IsClass() {
		return nil, false
	}
	m, ok := o.Member(o.Name)
	if !ok || m.Kind != KindMethod {
		return nil, false
	}
	return m, true
}

// EnumerationMembers returns the enumeration members in declaration order.
func (o *Object) EnumerationMembers() []*Object {
	if !o.IsClass() {
		return nil
	}
	var out []*Object
	for _, m := range o.Members.Values() {
		if m.Kind == KindEnumerationMember {
			out = append(out, m)
		}
	}
	return out
}

// Walk visits o, its members, and callable arguments and returns depth-first.
func (o *Object) Walk(fn func(*Object) bool) {
	if o == nil || !fn(o) {
		return
	}
	if o.Callable != nil {
		for _, a := range o.Callable.Arguments {
			a.Walk(fn)
		}
		for _, r := range o.Callable.Returns {
			r.Walk(fn)
		}
	}
	for _, m := range o.Members.Values() {
		m.Walk(fn)
	}
}

// Clone deep-copies o, rewriting qualified and parent names so the copy can
// be placed under a different owner. qualifiedName and parent describe the
// new root.
func (o *Object) Clone(qualifiedName, parent string) *Object {
	if o == nil {
		return nil
	}
	c := *o
	c.QualifiedName = qualifiedName
	c.Parent = parent
	c.Warnings = append([]Warning(nil), o.Warnings...)
	if o.Docstring != nil {
		d := *o.Docstring
		c.Docstring = &d
	}
	if o.Class != nil {
		ci := *o.Class
		ci.Bases = append([]string(nil), o.Class.Bases...)
		c.Class = &ci
	}
	if o.Callable != nil {
		ci := *o.Callable
		ci.Arguments = cloneAll(o.Callable.Arguments, qualifiedName)
		ci.Returns = cloneAll(o.Callable.Returns, qualifiedName)
		c.Callable = &ci
	}
	if o.Property != nil {
		pi := *o.Property
		pi.Validators = append([]string(nil), o.Property.Validators...)
		c.Property = &pi
	}
	if o.Argument != nil {
		ai := *o.Argument
		ai.Validators = append([]string(nil), o.Argument.Validators...)
		c.Argument = &ai
	}
	if o.Enum != nil {
		ei := *o.Enum
		c.Enum = &ei
	}
	if o.Live != nil {
		li := *o.Live
		li.Sections = append([]Section(nil), o.Live.Sections...)
		c.Live = &li
	}
	c.Members = NewMembers()
	for _, m := range o.Members.Values() {
		c.Members.Add(m.Clone(Join(qualifiedName, memberSep(m), m.Name), qualifiedName))
	}
	return &c
}

func cloneAll(objs []*Object, parent string) []*Object {
	if objs == nil {
		return nil
	}
	out := make([]*Object, len(objs))
	for i, a := range objs {
		out[i] = a.Clone(Join(parent, ".", a.Name), parent)
	}
	return out
}

func memberSep(m *Object) string {
	if m.Callable != nil && m.Callable.Local {
		return ">"
	}
	return "."
}

// Join builds a qualified name from an owner and a member name.
func Join(owner, sep, name string) string {
	if owner == "" {
		return name
	}
	return owner + sep + name
}

// SplitQualified splits "a.b.c" into its segments.
func SplitQualified(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}
