package model

// Access is the visibility of a class member.
type Access int

const (
	AccessPublic Access = iota
	AccessProtected
	AccessPrivate
	// AccessImmutable only applies to property SetAccess.
	AccessImmutable
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	case AccessImmutable:
		return "immutable"
	}
	return "unknown"
}

// ParseAccess maps an attribute value to an access level. Class lists such
// as {?pkg.Friend} and unknown values map to private.
func ParseAccess(value string) Access {
	switch value {
	case "public":
		return AccessPublic
	case "protected":
		return AccessProtected
	case "immutable":
		return AccessImmutable
	}
	return AccessPrivate
}

type ClassInfo struct {
	// Bases holds base class names exactly as declared.
	Bases    []string
	Abstract bool
	Sealed   bool
	Hidden   bool
	// Handle is set when handle is a direct base.
	Handle bool
	// Synthetic marks a class folder without a definition file.
	Synthetic bool
}

type AccessorKind int

const (
	NotAccessor AccessorKind = iota
	Getter
	Setter
)

type CallableInfo struct {
	Arguments []*Object
	Returns   []*Object
	Access    Access
	Static    bool
	Abstract  bool
	Hidden    bool
	Sealed    bool
	// Receiver is the instance argument removed from Arguments.
	Receiver string
	// BoundProperty names the property of a get.X or set.X method.
	BoundProperty string
	Accessor      AccessorKind
	// Local marks a subfunction visible only inside its file.
	Local bool
	// Declared marks a signature without a body inside a methods block.
	Declared bool
}

// ReturnNames lists output names in order.
func (c *CallableInfo) ReturnNames() []string {
	out := make([]string, len(c.Returns))
	for i, r := range c.Returns {
		out[i] = r.Name
	}
	return out
}

// Argument returns the named argument.
func (c *CallableInfo) Argument(name string) (*Object, bool) {
	for _, a := range c.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

type PropertyInfo struct {
	DeclaredType  string
	Dimensions    string
	Validators    []string
	Default       string
	HasDefault    bool
	Access        Access
	GetAccess     Access
	SetAccess     Access
	Constant      bool
	Dependent     bool
	Hidden        bool
	Abstract      bool
	Transient     bool
	NonCopyable   bool
	GetObservable bool
	SetObservable bool
	AbortSet      bool
	WeakHandle    bool
	Getter        string
	Setter        string
}

type ArgumentInfo struct {
	DeclaredType string
	Dimensions   string
	Validators   []string
	Default      string
	HasDefault   bool
	Repeating    bool
	// Named marks options-struct arguments; Group holds the struct name.
	Named bool
	Group string
}

// Required reports whether a caller must supply the argument.
func (a *ArgumentInfo) Required() bool {
	return !a.HasDefault && !a.Named && !a.Repeating
}

type EnumInfo struct {
	// Value is the raw constructor argument text without parentheses.
	Value string
}

type SectionKind string

const (
	SectionCode SectionKind = "code"
	SectionText SectionKind = "text"
)

type Section struct {
	Kind    SectionKind
	Content string
}

type LiveInfo struct {
	Sections []Section
}
