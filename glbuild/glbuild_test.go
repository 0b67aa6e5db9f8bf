package glbuild_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/soypat/sdfwalk/glbuild"
	"github.com/soypat/sdfwalk/glbuild/glsllib"
)

func TestDefinitionNamesUniqueAcrossFunctions(t *testing.T) {
	prog := glbuild.NewProgrammer()
	f1 := prog.AddFunction("float", "a", []glbuild.Param{{Type: "vec3", Name: "p"}})
	d0 := f1.GenDefinition("vec3", []byte("at(1, 0, 0, p)"))
	d1 := f1.GenDefinition("vec3", []byte("at(0, 1, 0, p)"))
	if err := f1.Return([]byte("sd_union(sphere(1, " + d0 + "), sphere(1, " + d1 + "))")); err != nil {
		t.Fatal(err)
	}
	f2 := prog.AddFunction("float", "b", []glbuild.Param{{Type: "vec3", Name: "p"}})
	d2 := f2.GenDefinition("vec3", []byte("at(0, 0, 1, p)"))
	if err := f2.Return([]byte("sphere(1, " + d2 + ")")); err != nil {
		t.Fatal(err)
	}
	names := []string{d0, d1, d2}
	want := []string{"def_0", "def_1", "def_2"}
	for i := range names {
		if names[i] != want[i] {
			t.Errorf("definition %d: want %s, got %s", i, want[i], names[i])
		}
	}
	if prog.Definitions() != 3 {
		t.Errorf("want 3 definitions, got %d", prog.Definitions())
	}
	src := string(prog.AppendSource(nil))
	wantA := "float a(vec3 p) {\n\tvec3 def_0 = at(1, 0, 0, p);\n\tvec3 def_1 = at(0, 1, 0, p);\n\treturn sd_union(sphere(1, def_0), sphere(1, def_1));\n}\n"
	if !strings.HasPrefix(src, wantA) {
		t.Errorf("unexpected function a:\n%s", src)
	}
	if !strings.Contains(src, "float b(vec3 p) {\n\tvec3 def_2 = at(0, 0, 1, p);") {
		t.Errorf("unexpected function b:\n%s", src)
	}
}

func TestDuplicateFunctionName(t *testing.T) {
	prog := glbuild.NewProgrammer()
	params := []glbuild.Param{{Type: "vec3", Name: "p"}}
	if err := prog.AddFunction("float", "f", params).Return([]byte("sphere(1, p)")); err != nil {
		t.Fatal(err)
	}
	// Identical body is deduplicated.
	if err := prog.AddFunction("float", "f", params).Return([]byte("sphere(1, p)")); err != nil {
		t.Fatal("identical function should be skipped:", err)
	}
	if err := prog.AddFunction("float", "f", params).Return([]byte("sphere(2, p)")); err == nil {
		t.Fatal("expected error for conflicting function bodies")
	}
	src := prog.AppendSource(nil)
	if n := bytes.Count(src, []byte("float f(vec3 p)")); n != 1 {
		t.Errorf("want one declaration of f, got %d", n)
	}
	var buf bytes.Buffer
	n, err := prog.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	} else if int(n) != len(src) || !bytes.Equal(buf.Bytes(), src) {
		t.Error("WriteTo and AppendSource mismatch")
	}
}

func TestDefineOrder(t *testing.T) {
	prog := glbuild.NewProgrammer()
	prog.AddFunction("vec4", "map_geometry", []glbuild.Param{{Type: "vec3", Name: "p"}}).Return([]byte("vec4(0.0)"))
	prog.Define("HAS_TRANSPARENT", "")
	src := string(prog.AppendSource(nil))
	geom := strings.Index(src, "map_geometry")
	def := strings.Index(src, "#define HAS_TRANSPARENT\n")
	if geom < 0 || def < 0 || def < geom {
		t.Errorf("define out of order:\n%s", src)
	}
}

func TestAppendCall(t *testing.T) {
	got := string(glbuild.AppendCall([]byte("d = "), "min", []byte("a(p)"), []byte("b(p)")))
	if got != "d = min(a(p), b(p))" {
		t.Errorf("unexpected call %q", got)
	}
	got = string(glbuild.AppendCall(nil, "f"))
	if got != "f()" {
		t.Errorf("unexpected empty call %q", got)
	}
	got = string(glbuild.AppendCallStrings(nil, "at", "1", "2", "3", "p"))
	if got != "at(1, 2, 3, p)" {
		t.Errorf("unexpected call %q", got)
	}
}

func TestParseSignatures(t *testing.T) {
	const src = `
#define FOO 1
struct S { float a; };
// float commented(vec3 p) {
float sphere(float r, vec3 p) {
	if (r > 0.0) { return length(p) - r; }
	return 0.0;
}
/* vec4 hidden(vec3 p) { } */
vec4 csd_union(in vec4 a, vec4 b) { return a.w < b.w ? a : b; }
void main() {}
`
	sigs, err := glbuild.ParseSignatures([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 3 {
		t.Fatalf("want 3 signatures, got %d: %v", len(sigs), sigs)
	}
	if got := sigs[0].String(); got != "float sphere(float r, vec3 p)" {
		t.Errorf("unexpected signature %q", got)
	}
	if got := sigs[1].String(); got != "vec4 csd_union(vec4 a, vec4 b)" {
		t.Errorf("unexpected signature %q", got)
	}
	if sigs[2].Name != "main" || len(sigs[2].Params) != 0 {
		t.Errorf("unexpected main signature %v", sigs[2])
	}
	_, err = glbuild.ParseSignatures([]byte("float f(vec3 p) {"))
	if err == nil {
		t.Error("expected error for unterminated block")
	}
}

func TestLibrarySignatures(t *testing.T) {
	sigs, err := glsllib.LibrarySignatures()
	if err != nil {
		t.Fatal(err)
	}
	found := make(map[string]glbuild.Signature)
	for _, sig := range sigs {
		found[sig.Name] = sig
	}
	for name, ret := range map[string]string{
		"sphere": "float", "box": "float", "sd_union": "float", "sd_smooth_union": "float",
		"csd_union": "vec4", "tsd_union": "vec4", "at": "vec3", "advanced_repeat": "vec3",
	} {
		sig, ok := found[name]
		if !ok {
			t.Errorf("library missing %s", name)
		} else if sig.Return != ret {
			t.Errorf("%s: want return %s, got %s", name, ret, sig.Return)
		}
	}
	if p := found["sphere"].Params; len(p) != 2 || p[1].Type != "vec3" {
		t.Errorf("sphere should take trailing vec3 position, got %v", p)
	}
	if !bytes.HasPrefix(glsllib.Header(), []byte(glbuild.VersionStr)) {
		t.Error("header version mismatch")
	}
	if !bytes.HasPrefix(glsllib.Vertex(), []byte(glbuild.VersionStr)) {
		t.Error("vertex version mismatch")
	}
}
