// Package syntax is a concrete-syntax-tree provider for MATLAB source.
//
// The tree mirrors the production names used by tree-sitter-matlab so that
// consumers can be written against either. Grammar errors never abort a
// parse: they appear as nodes of kind ERROR covering the offending tokens, or
// as zero-width ERROR nodes marked Missing where a token was expected.
package syntax

// Node kinds.
const (
	KindSourceFile          = "source_file"
	KindClassDefinition     = "class_definition"
	KindFunctionDefinition  = "function_definition"
	KindFunctionSignature   = "function_signature"
	KindFunctionOutput      = "function_output"
	KindFunctionArguments   = "function_arguments"
	KindIdentifier          = "identifier"
	KindPropertyName        = "property_name"
	KindAttributes          = "attributes"
	KindAttribute           = "attribute"
	KindAttributeValue      = "attribute_value"
	KindNot                 = "not"
	KindSuperclasses        = "superclasses"
	KindProperties          = "properties"
	KindMethods             = "methods"
	KindEvents              = "events"
	KindEnumeration         = "enumeration"
	KindEnum                = "enum"
	KindEnumValue           = "enum_value"
	KindProperty            = "property"
	KindDimensions          = "dimensions"
	KindValidationFunctions = "validation_functions"
	KindValidationFunction  = "validation_function"
	KindDefaultValue        = "default_value"
	KindArgumentsStatement  = "arguments_statement"
	KindComment             = "comment"
	KindBlock               = "block"
	KindStatement           = "statement"
	KindError               = "ERROR"
)

// Field names attached to children.
const (
	FieldName         = "name"
	FieldOutput       = "output"
	FieldArguments    = "arguments"
	FieldAttributes   = "attributes"
	FieldSuperclasses = "superclasses"
	FieldType         = "type"
	FieldDimensions   = "dimensions"
	FieldValidators   = "validators"
	FieldDefault      = "default"
	FieldValue        = "value"
	FieldBody         = "body"
)

// Point is a zero-based row and byte column.
type Point struct {
	Row    int
	Column int
}

type Node struct {
	Kind      string
	Field     string
	StartByte int
	EndByte   int
	Start     Point
	End       Point
	Missing   bool
	Children  []*Node
}

// Tree is the result of parsing one source buffer.
type Tree struct {
	Root   *Node
	Source []byte
}

func (n *Node) Text(src []byte) string {
	if n == nil || n.StartByte >= n.EndByte || n.EndByte > len(src) {
		return ""
	}
	return string(src[n.StartByte:n.EndByte])
}

func (n *Node) IsError() bool {
	return n != nil && n.Kind == KindError
}

// ChildByField returns the first child carrying the given field name.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

func (n *Node) ChildByKind(kind string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

func (n *Node) ChildrenByKind(kind string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// HasError reports whether n or any descendant is an ERROR node.
func (n *Node) HasError() bool {
	found := false
	Walk(n, func(c *Node) bool {
		if c.Kind == KindError {
			found = true
		}
		return !found
	})
	return found
}

// Walk visits n and its descendants depth-first in source order. Returning
// false from fn skips the children of that node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

func (n *Node) append(c *Node) {
	if c == nil {
		return
	}
	n.Children = append(n.Children, c)
	if c.EndByte > n.EndByte {
		n.EndByte = c.EndByte
		n.End = c.End
	}
}

func (n *Node) withField(field string) *Node {
	n.Field = field
	return n
}
