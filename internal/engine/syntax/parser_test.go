package syntax

import (
	"strings"
	"testing"
)

func parseString(t *testing.T, src string) (*Tree, []byte) {
	t.Helper()
	b := []byte(src)
	return Parse(b), b
}

func TestLex_QuoteDisambiguation(t *testing.T) {
	tests := []struct {
		src     string
		strings int
	}{
		{"x = 'abc';", 1},
		{"y = x';", 0},
		{"z = [a' 'str'];", 1},
		{"s = 'it''s';", 1},
		{`d = "double ""quoted""";`, 1},
		{"w = x.';", 0},
	}
	for _, tt := range tests {
		got := 0
		for _, tok := range lex([]byte(tt.src)) {
			if tok.kind == tokString {
				got++
			}
		}
		if got != tt.strings {
			t.Errorf("%q: expected %d string tokens, got %d", tt.src, tt.strings, got)
		}
	}
}

func TestLex_BlockComment(t *testing.T) {
	src := "%{\nline one\n  %{\n  nested\n  %}\n%}\nx = 1;\n"
	toks := lex([]byte(src))
	if toks[0].kind != tokBlockComment {
		t.Fatalf("expected block comment first, got %v", toks[0].kind)
	}
	if !strings.HasSuffix(toks[0].text, "%}") {
		t.Fatalf("block comment should end at the outer delimiter: %q", toks[0].text)
	}
	if toks[0].endPos.Row != 5 {
		t.Fatalf("expected block to end on row 5, got %d", toks[0].endPos.Row)
	}
}

func TestLex_ContinuationAndKeywordFields(t *testing.T) {
	toks := lex([]byte("a = s.end + ... comment\n  b;"))
	for _, tok := range toks {
		if tok.kind == tokNewline {
			t.Fatal("continuation should swallow the newline")
		}
		if tok.kind == tokKeyword {
			t.Fatalf("field name after dot should not be a keyword: %q", tok.text)
		}
	}
}

func TestParse_FunctionSignature(t *testing.T) {
	tree, src := parseString(t, "function [a, b] = compute(x, ~, varargin)\n% Doc line\n  a = x;\nend\n")
	fn := tree.Root.ChildByKind(KindFunctionDefinition)
	if fn == nil {
		t.Fatal("expected function_definition")
	}
	if got := fn.ChildByField(FieldName).Text(src); got != "compute" {
		t.Fatalf("expected name compute, got %q", got)
	}
	outs := fn.ChildByField(FieldOutput).ChildrenByKind(KindIdentifier)
	if len(outs) != 2 || outs[1].Text(src) != "b" {
		t.Fatalf("unexpected outputs %v", outs)
	}
	args := fn.ChildByField(FieldArguments).ChildrenByKind(KindIdentifier)
	if len(args) != 3 || args[1].Text(src) != "~" || args[2].Text(src) != "varargin" {
		t.Fatalf("unexpected arguments")
	}
	if c := fn.ChildByKind(KindComment); c == nil || c.Start.Row != 1 {
		t.Fatal("expected doc comment child on row 1")
	}
	if fn.End.Row != 3 {
		t.Fatalf("expected function to end on row 3, got %d", fn.End.Row)
	}
	if tree.Root.HasError() {
		t.Fatal("unexpected ERROR node")
	}
}

func TestParse_EndlessFunctions(t *testing.T) {
	src := "function main()\n  if true\n    helper();\n  end\n\n% helper doc\nfunction helper()\n  disp('x')\n"
	tree, _ := parseString(t, src)
	fns := tree.Root.ChildrenByKind(KindFunctionDefinition)
	if len(fns) != 2 {
		t.Fatalf("expected 2 top-level functions, got %d", len(fns))
	}
	if fns[0].End.Row != 3 {
		t.Fatalf("expected main to end at its last statement, got row %d", fns[0].End.Row)
	}
	if c := tree.Root.ChildByKind(KindComment); c == nil || c.Start.Row != 5 {
		t.Fatal("expected helper's header comment at top level")
	}
	if tree.Root.HasError() {
		t.Fatal("unexpected ERROR node")
	}
}

func TestParse_NestedFunctionsWithEnd(t *testing.T) {
	src := "function outer()\n  x = 1;\n  function inner()\n    y = x(end);\n  end\nend\nfunction local()\nend\n"
	tree, _ := parseString(t, src)
	fns := tree.Root.ChildrenByKind(KindFunctionDefinition)
	if len(fns) != 2 {
		t.Fatalf("expected outer and local at top level, got %d", len(fns))
	}
	body := fns[0].ChildByField(FieldBody)
	if body == nil || body.ChildByKind(KindFunctionDefinition) == nil {
		t.Fatal("expected nested function in outer body")
	}
}

func TestParse_ClassDefinition(t *testing.T) {
	src := `classdef (Abstract, Sealed = false) Shape < handle & matlab.mixin.Copyable
    % Shape base class
    properties (Access = protected)
        Width (1,1) double {mustBePositive, mustBeFinite} = 1 % the width
        Name string = "shape"
    end
    methods
        function obj = Shape(w)
            obj.Width = w;
        end
        function value = get.Width(obj)
            value = obj.Width;
        end
    end
    methods (Abstract)
        a = area(obj)
    end
    events
        Resized
    end
    enumeration
        Small (1), Large (10) % big
    end
end
`
	tree, b := parseString(t, src)
	if tree.Root.HasError() {
		t.Fatal("unexpected ERROR node")
	}
	cls := tree.Root.ChildByKind(KindClassDefinition)
	if cls == nil {
		t.Fatal("expected class_definition")
	}
	if got := cls.ChildByField(FieldName).Text(b); got != "Shape" {
		t.Fatalf("expected Shape, got %q", got)
	}
	supers := cls.ChildByField(FieldSuperclasses).Children
	if len(supers) != 2 || supers[1].Text(b) != "matlab.mixin.Copyable" || supers[1].Kind != KindPropertyName {
		t.Fatalf("unexpected superclasses")
	}
	attrs := cls.ChildByField(FieldAttributes).ChildrenByKind(KindAttribute)
	if len(attrs) != 2 || attrs[1].ChildByField(FieldValue).Text(b) != "false" {
		t.Fatalf("unexpected class attributes")
	}

	props := cls.ChildByKind(KindProperties)
	plist := props.ChildrenByKind(KindProperty)
	if len(plist) != 2 {
		t.Fatalf("expected 2 properties, got %d", len(plist))
	}
	width := plist[0]
	if width.ChildByField(FieldDimensions).Text(b) != "(1,1)" {
		t.Fatalf("unexpected dimensions %q", width.ChildByField(FieldDimensions).Text(b))
	}
	if width.ChildByField(FieldType).Text(b) != "double" {
		t.Fatal("expected double type")
	}
	if n := len(width.ChildByField(FieldValidators).ChildrenByKind(KindValidationFunction)); n != 2 {
		t.Fatalf("expected 2 validators, got %d", n)
	}
	if width.ChildByField(FieldDefault).Text(b) != "1" {
		t.Fatal("expected default 1")
	}

	methods := cls.ChildrenByKind(KindMethods)
	if len(methods) != 2 {
		t.Fatalf("expected 2 methods blocks, got %d", len(methods))
	}
	fns := methods[0].ChildrenByKind(KindFunctionDefinition)
	if len(fns) != 2 || fns[1].ChildByField(FieldName).Kind != KindPropertyName {
		t.Fatal("expected get.Width accessor")
	}
	if sig := methods[1].ChildByKind(KindFunctionSignature); sig == nil || sig.ChildByField(FieldName).Text(b) != "area" {
		t.Fatal("expected abstract signature area")
	}
	enums := cls.ChildByKind(KindEnumeration).ChildrenByKind(KindEnum)
	if len(enums) != 2 || enums[1].ChildByField(FieldValue).Text(b) != "(10)" {
		t.Fatal("unexpected enumeration members")
	}
}

func TestParse_ArgumentsBlock(t *testing.T) {
	src := `function out = fmt(value, options)
    arguments
        value (1,:) double
        options.precision (1,1) double = 3
        options.?matlab.graphics.primitive.Line
    end
    arguments (Output)
        out string
    end
    out = string(value);
end
`
	tree, b := parseString(t, src)
	fn := tree.Root.ChildByKind(KindFunctionDefinition)
	blocks := fn.ChildrenByKind(KindArgumentsStatement)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 arguments blocks, got %d", len(blocks))
	}
	entries := blocks[0].ChildrenByKind(KindProperty)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if got := entries[1].ChildByField(FieldName).Text(b); got != "options.precision" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := entries[2].ChildByField(FieldName).Text(b); got != "options.?matlab.graphics.primitive.Line" {
		t.Fatalf("unexpected meta name %q", got)
	}
	if fn.ChildByField(FieldBody) == nil {
		t.Fatal("expected body after arguments blocks")
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing class name", "classdef < handle\nend\n"},
		{"unclosed attributes", "classdef (Sealed Foo\nend\n"},
		{"stray end", "end\nx = 1;\n"},
		{"unbalanced paren", "x = (1 + 2;\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, _ := parseString(t, tt.src)
			if !tree.Root.HasError() {
				t.Fatal("expected an ERROR node")
			}
		})
	}
}

func TestParse_ScriptWithLocalFunction(t *testing.T) {
	src := "% Script header\nx = 1;\ny = helper(x);\n\nfunction r = helper(v)\n  r = v + 1;\nend\n"
	tree, _ := parseString(t, src)
	kids := tree.Root.Children
	if kids[0].Kind != KindComment || kids[1].Kind != KindStatement {
		t.Fatalf("unexpected leading nodes %s %s", kids[0].Kind, kids[1].Kind)
	}
	if len(tree.Root.ChildrenByKind(KindFunctionDefinition)) != 1 {
		t.Fatal("expected one local function")
	}
}
