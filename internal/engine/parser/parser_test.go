package parser

import (
	"os"
	"path/filepath"
	"testing"

	"mpath/internal/core/errors"
	"mpath/internal/engine/model"
)

func TestQualifier(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/root/f.m", ""},
		{"/root/+pkg/f.m", "pkg"},
		{"/root/+pkg/+sub/f.m", "pkg.sub"},
		{"/root/+pkg/@Cls/Cls.m", "pkg"},
		{"/root/+pkg/@Cls/method.m", "pkg.Cls"},
		{"/root/+pkg/private/helper.m", "pkg"},
		{"/root/@Cls/private/helper.m", ""},
	}
	for _, tt := range tests {
		if got := Qualifier(filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("Qualifier(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSpecialDirs(t *testing.T) {
	if name, ok := NamespaceDir("+pkg"); !ok || name != "pkg" {
		t.Errorf("expected namespace pkg, got %q %v", name, ok)
	}
	if _, ok := NamespaceDir("+"); ok {
		t.Error("bare + is not a namespace")
	}
	if name, ok := ClassDir("@Cls"); !ok || name != "Cls" {
		t.Errorf("expected class folder Cls, got %q %v", name, ok)
	}
	if !IsPrivateDir("private") || IsPrivateDir("Private") {
		t.Error("private folder match is case-sensitive")
	}
}

func TestDecodeSource(t *testing.T) {
	bom := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1;")...)
	out, err := DecodeSource(bom)
	if err != nil || string(out) != "x = 1;" {
		t.Errorf("BOM should be stripped, got %q %v", out, err)
	}

	latin := []byte("% caf\xe9\n")
	out, err = DecodeSource(latin)
	if err != nil || string(out) != "% café\n" {
		t.Errorf("windows-1252 input should be transcoded, got %q %v", out, err)
	}

	utf16 := []byte{0xFF, 0xFE, 'a', 0, ';', 0}
	out, err = DecodeSource(utf16)
	if err != nil || string(out) != "a;" {
		t.Errorf("UTF-16 input should be transcoded, got %q %v", out, err)
	}
}

func TestParser_Parse(t *testing.T) {
	p := NewParser()
	if !p.Supports("/x/f.m") || p.Supports("/x/f.mlx") {
		t.Fatal("default parser should only support .m")
	}

	_, err := p.Parse([]byte("x"), "/x/f.txt")
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected validation error for unsupported file, got %v", err)
	}

	obj, err := p.Parse([]byte("function r = f()\nr = 1;\nend\n"), "/x/f.m")
	if err != nil {
		t.Fatal(err)
	}
	if obj.Kind != model.KindFunction {
		t.Errorf("expected function, got %s", obj.Kind)
	}
}

func TestParser_RegisterBinaryExtractor(t *testing.T) {
	p := NewParser()
	var got []byte
	p.RegisterBinaryExtractor(".mlx", ExtractorFunc(func(src []byte, path string) (*model.Object, error) {
		got = src
		return model.New(model.KindLiveScript, Stem(path)), nil
	}))

	raw := []byte{'P', 'K', 0x03, 0x04, 0xff}
	obj, err := p.Parse(raw, "/x/Notes.mlx")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(raw) {
		t.Error("binary extractors must receive untouched bytes")
	}
	if obj.Name != "Notes" {
		t.Errorf("unexpected name %q", obj.Name)
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greet.m")
	if err := os.WriteFile(path, []byte("function greet()\n% GREET Says hello.\ndisp('hi');\nend\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewParser()
	obj, err := p.ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if obj.Path != path || obj.DocText() != "GREET Says hello." {
		t.Errorf("unexpected object %q %q", obj.Path, obj.DocText())
	}

	_, err = p.ParseFile(filepath.Join(dir, "missing.m"))
	if !errors.IsCode(err, errors.CodeIO) {
		t.Errorf("expected IO error, got %v", err)
	}
}
