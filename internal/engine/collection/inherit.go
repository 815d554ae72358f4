package collection

import (
	"strings"

	"mpath/internal/engine/model"
)

// Parent returns the object owning obj, looked up by its parent key.
func (c *Collection) Parent(obj *model.Object) (*model.Object, bool) {
	if obj == nil || obj.Parent == "" {
		return nil, false
	}
	p, found, err := c.Lookup(obj.Parent)
	if err != nil || !found {
		return nil, false
	}
	return p, true
}

// ResolveBases resolves the declared bases of cls in order. Names that do
// not resolve to a class, such as handle or other built-ins, are returned
// separately.
func (c *Collection) ResolveBases(cls *model.Object) ([]*model.Object, []string) {
	if !cls.IsClass() {
		return nil, nil
	}
	var (
		resolved   []*model.Object
		unresolved []string
	)
	for _, base := range cls.Class.Bases {
		obj, found, err := c.Lookup(base)
		if err != nil || !found || !obj.IsClass() {
			unresolved = append(unresolved, base)
			continue
		}
		resolved = append(resolved, obj)
	}
	return resolved, unresolved
}

// MRO returns cls followed by its ancestors in C3 linearization order. An
// inconsistent hierarchy falls back to depth-first order.
func (c *Collection) MRO(cls *model.Object) []*model.Object {
	if !cls.IsClass() {
		return nil
	}
	memo := make(map[string][]*model.Object)
	if mro, ok := c.linearize(cls, memo, map[string]bool{}); ok {
		return mro
	}
	var out []*model.Object
	seen := make(map[string]bool)
	c.depthFirst(cls, seen, &out)
	return out
}

// linearize computes the C3 linearization of cls. visiting guards against
// cyclic hierarchies.
func (c *Collection) linearize(cls *model.Object, memo map[string][]*model.Object, visiting map[string]bool) ([]*model.Object, bool) {
	key := cls.QualifiedName
	if mro, ok := memo[key]; ok {
		return mro, true
	}
	if visiting[key] {
		return nil, false
	}
	visiting[key] = true
	defer delete(visiting, key)

	bases, _ := c.ResolveBases(cls)
	var seqs [][]*model.Object
	for _, b := range bases {
		mro, ok := c.linearize(b, memo, visiting)
		if !ok {
			return nil, false
		}
		seqs = append(seqs, append([]*model.Object(nil), mro...))
	}
	seqs = append(seqs, append([]*model.Object(nil), bases...))

	out := []*model.Object{cls}
	for {
		seqs = nonEmpty(seqs)
		if len(seqs) == 0 {
			break
		}
		head := pickHead(seqs)
		if head == nil {
			return nil, false
		}
		out = append(out, head)
		for i, s := range seqs {
			if s[0].QualifiedName == head.QualifiedName {
				seqs[i] = s[1:]
			}
		}
	}
	memo[key] = out
	return out, true
}

// pickHead returns the first sequence head that appears in no tail.
func pickHead(seqs [][]*model.Object) *model.Object {
	for _, s := range seqs {
		cand := s[0]
		inTail := false
		for _, other := range seqs {
			for _, o := range other[1:] {
				if o.QualifiedName == cand.QualifiedName {
					inTail = true
					break
				}
			}
			if inTail {
				break
			}
		}
		if !inTail {
			return cand
		}
	}
	return nil
}

func nonEmpty(seqs [][]*model.Object) [][]*model.Object {
	out := seqs[:0]
	for _, s := range seqs {
		if len(s) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func (c *Collection) depthFirst(cls *model.Object, seen map[string]bool, out *[]*model.Object) {
	if seen[cls.QualifiedName] {
		return
	}
	seen[cls.QualifiedName] = true
	*out = append(*out, cls)
	bases, _ := c.ResolveBases(cls)
	for _, b := range bases {
		c.depthFirst(b, seen, out)
	}
}

// InheritedMembers lists the members cls gets from its ancestors, in MRO
// order. Members cls defines itself and base constructors are left out.
func (c *Collection) InheritedMembers(cls *model.Object) []*model.Object {
	mro := c.MRO(cls)
	if len(mro) < 2 {
		return nil
	}
	seen := make(map[string]bool)
	for _, k := range cls.Members.Keys() {
		seen[k] = true
	}
	var out []*model.Object
	for _, base := range mro[1:] {
		for _, m := range base.Members.Values() {
			if seen[m.Name] || m.Name == base.Name {
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	return out
}

// IsHandle reports whether cls derives from handle, directly or through any
// resolved ancestor.
func (c *Collection) IsHandle(cls *model.Object) bool {
	for _, k := range c.MRO(cls) {
		if k.Class.Handle {
			return true
		}
		for _, b := range k.Class.Bases {
			if strings.EqualFold(b, "handle") {
				return true
			}
		}
	}
	return false
}
