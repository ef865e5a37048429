package leanfmt

import (
	"bytes"
	"strings"
	"testing"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/testkit"
	"kernelfuzz/internal/textfmt"
)

func render(t *testing.T, store *arena.Store, decls []ir.Declaration) string {
	t.Helper()
	var buf bytes.Buffer
	if err := Print(&buf, store, decls); err != nil {
		t.Fatalf("print: %v", err)
	}
	return buf.String()
}

func TestPrintPreamble(t *testing.T) {
	out := render(t, arena.NewStore(), nil)
	for _, want := range []string{
		"import Lean\n",
		"def name_0 : Lean.Name := .anonymous\n",
		"def level_0 : Lean.Level := .zero\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
	if strings.Contains(out, "expr_") {
		t.Errorf("empty store printed terms:\n%s", out)
	}
}

func TestPrintTextSession(t *testing.T) {
	data, err := textfmt.Encode(testkit.SampleDeclarations())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := textfmt.DecodeBytes("sample.export", data, textfmt.Options{AllowAxioms: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := render(t, s.Store(), s.Declarations())

	for _, want := range []string{
		`: Lean.Name := .str name_0 "False"`,
		".inductDecl [] 0 [inductive_0] false",
		".defnDecl {",
		"hints := (.regular 3)",
		"hints := .abbrev",
		".thmDecl {",
		".opaqueDecl {",
		".axiomDecl {",
		".quotDecl",
		"(.natVal 340282366920938463463374607431768211457)",
		`(.strVal "hi\x00\xff")`,
		"def constructor_0 : Lean.Constructor where",
		"def inductive_0 : Lean.InductiveType where",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
	if got, want := strings.Count(out, "def decl_"), len(s.Declarations()); got != want {
		t.Errorf("declarations printed = %d, want %d", got, want)
	}
	if got, want := strings.Count(out, ": Lean.Expr :="), s.Store().Terms.Len(); got != want {
		t.Errorf("terms printed = %d, want %d", got, want)
	}
}

// Every reference must name something already defined.
func TestPrintReferencesDefinedFirst(t *testing.T) {
	data, _, err := binfmt.Encode(testkit.SampleDeclarations()[1:3])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := binfmt.Decode(data, binfmt.Options{})
	out := render(t, s.Store(), s.Declarations())

	defined := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		for _, f := range strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '[' || r == ']' || r == ',' || r == '(' || r == ')'
		}) {
			if !isRef(f) {
				continue
			}
			if strings.HasPrefix(line, "def "+f+" ") {
				defined[f] = true
				continue
			}
			if !defined[f] {
				t.Fatalf("%s used before definition in %q", f, line)
			}
		}
	}
}

func isRef(f string) bool {
	for _, p := range []string{"name_", "level_", "expr_", "constructor_", "inductive_"} {
		if strings.HasPrefix(f, p) {
			return true
		}
	}
	return false
}

func TestPrintFallbacks(t *testing.T) {
	// a theorem over an empty term table resolves both sides to the fallback
	s := binfmt.Decode([]byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, binfmt.Options{})
	out := render(t, s.Store(), s.Declarations())
	if !strings.Contains(out, `.str name_0 "foo42"`) {
		t.Errorf("placeholder name not printed:\n%s", out)
	}
	if !strings.Contains(out, ".sort level_0") {
		t.Errorf("fallback term not printed:\n%s", out)
	}
}

func TestPrintNilSlot(t *testing.T) {
	d := ir.MkTheorem(ir.ParseName("t"), nil, nil, nil)
	out := render(t, arena.NewStore(), []ir.Declaration{d})
	if strings.Count(out, ": Lean.Expr :=") != 1 {
		t.Errorf("nil terms should share one fallback definition:\n%s", out)
	}
}
