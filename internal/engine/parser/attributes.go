package parser

import (
	"strings"

	"mpath/internal/engine/model"
	"mpath/internal/engine/syntax"
)

// attrs holds one parenthesized attribute list keyed by lower-cased name.
// A bare name is "true" and a negated name is "false"; other values keep
// their source text.
type attrs map[string]string

// attributes reads an attribute list. A list containing any grammar error is
// reported once and treated as empty so every flag keeps its default.
func (b *builder) attributes(n *syntax.Node) attrs {
	out := attrs{}
	if n == nil {
		return out
	}
	b.reported[n] = true
	if n.HasError() {
		b.warn(n.Start.Row, "malformed attribute list %q, using defaults", b.text(n))
		return attrs{}
	}
	for _, a := range n.ChildrenByKind(syntax.KindAttribute) {
		name := strings.ToLower(b.text(a.ChildByField(syntax.FieldName)))
		switch value := a.ChildByField(syntax.FieldValue); {
		case a.ChildByKind(syntax.KindNot) != nil:
			out[name] = "false"
		case value != nil:
			out[name] = b.text(value)
		default:
			out[name] = "true"
		}
	}
	return out
}

func (a attrs) flag(name string) bool {
	v, ok := a[name]
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "false", "0":
		return false
	}
	return true
}

// access parses an access attribute, returning def when it is absent.
func (a attrs) access(name string, def model.Access) model.Access {
	v, ok := a[name]
	if !ok {
		return def
	}
	v = strings.ToLower(strings.Trim(v, `'"`))
	return model.ParseAccess(v)
}

// memberAccess reads an access attribute that only takes public, protected,
// private or a class list. Immutable is malformed there and reads as def.
func (b *builder) memberAccess(a attrs, name string, def model.Access, row int) model.Access {
	acc := a.access(name, def)
	if acc == model.AccessImmutable {
		b.warn(row, "malformed attribute %s = immutable, using %s", name, def)
		return def
	}
	return acc
}
