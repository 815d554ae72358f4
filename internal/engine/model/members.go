package model

// Members is an insertion-ordered name to object map.
type Members struct {
	keys  []string
	items map[string]*Object
}

func NewMembers() *Members {
	return &Members{items: make(map[string]*Object)}
}

// Add inserts o, or replaces an existing member of the same name in place.
func (m *Members) Add(o *Object) {
	if _, ok := m.items[o.Name]; !ok {
		m.keys = append(m.keys, o.Name)
	}
	m.items[o.Name] = o
}

func (m *Members) Get(name string) (*Object, bool) {
	if m == nil {
		return nil, false
	}
	o, ok := m.items[name]
	return o, ok
}

func (m *Members) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

func (m *Members) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *Members) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Values returns the members in insertion order.
func (m *Members) Values() []*Object {
	if m == nil {
		return nil
	}
	out := make([]*Object, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.items[k]
	}
	return out
}

// Filter returns the members of the given kind in insertion order.
func (m *Members) Filter(kind Kind) []*Object {
	var out []*Object
	for _, o := range m.Values() {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}
