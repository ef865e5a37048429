package kernel

import (
	"errors"
	"testing"

	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/testkit"
)

func TestAdmitSample(t *testing.T) {
	decls := testkit.SampleDeclarations()
	env, n, err := AdmitAll(ScopeKernel{}.Empty(), decls)
	if err != nil {
		t.Fatalf("declaration %d rejected: %v", n, err)
	}
	if n != len(decls) {
		t.Fatalf("admitted %d of %d", n, len(decls))
	}
	for _, name := range []string{"Nat", "Nat.zero", "Nat.succ", "id", "Quot.lift", "fst"} {
		if !env.Contains(ir.ParseName(name)) {
			t.Errorf("environment lacks %s", name)
		}
	}
}

func TestEnvironmentIsPersistent(t *testing.T) {
	prop := ir.Sort(ir.Zero())
	base, err := ScopeKernel{}.Empty().Add(ir.MkAxiom(ir.ParseName("a"), nil, prop))
	if err != nil {
		t.Fatal(err)
	}
	left, err := base.Add(ir.MkAxiom(ir.ParseName("b"), nil, prop))
	if err != nil {
		t.Fatal(err)
	}
	right, err := base.Add(ir.MkAxiom(ir.ParseName("b"), nil, ir.Const(ir.ParseName("a"))))
	if err != nil {
		t.Fatalf("branching from base must not see left's b: %v", err)
	}
	if base.Contains(ir.ParseName("b")) || base.Len() != 1 {
		t.Errorf("base was modified")
	}
	if !left.Contains(ir.ParseName("b")) || !right.Contains(ir.ParseName("a")) {
		t.Errorf("extensions lost constants")
	}
}

func TestFlattenKeepsEverything(t *testing.T) {
	env := ScopeKernel{}.Empty()
	var names []*ir.Name
	for i := 0; i < 3*flattenDepth+5; i++ {
		n := ir.NameNum(ir.ParseName("ax"), uint64(i))
		names = append(names, n)
		next, err := env.Add(ir.MkAxiom(n, nil, ir.Sort(ir.Zero())))
		if err != nil {
			t.Fatalf("axiom %d: %v", i, err)
		}
		env = next
	}
	if env.Len() != len(names) {
		t.Fatalf("Len() = %d", env.Len())
	}
	for _, n := range names {
		if !env.Contains(n) {
			t.Fatalf("lost %s", n)
		}
	}
	if env.(*scopeEnv).depth >= flattenDepth {
		t.Fatalf("layer chain not flattened: depth %d", env.(*scopeEnv).depth)
	}
}

func TestRejections(t *testing.T) {
	prop := ir.Sort(ir.Zero())
	a := ir.ParseName("a")
	u := ir.ParseName("u")
	base, _, err := AdmitAll(ScopeKernel{}.Empty(), []ir.Declaration{
		ir.MkAxiom(a, nil, prop),
		ir.MkQuotient(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		decl ir.Declaration
		want error
	}{
		{"redeclared", ir.MkAxiom(a, nil, prop), ErrAlreadyDeclared},
		{"second quotient", ir.MkQuotient(), ErrAlreadyDeclared},
		{"unknown constant", ir.MkAxiom(ir.ParseName("b"), nil, ir.Const(ir.ParseName("c"))), ErrUnknownConstant},
		{"self reference", ir.MkDefinition(ir.ParseName("f"), nil, prop, ir.Const(ir.ParseName("f")), ir.AbbrevHint()), ErrUnknownConstant},
		{"loose bvar", ir.MkAxiom(ir.ParseName("b"), nil, ir.Pi(nil, prop, ir.BVar(1))), ErrLooseBoundVar},
		{"max bvar", ir.MkAxiom(ir.ParseName("b"), nil, ir.BVar(^uint64(0))), ErrLooseBoundVar},
		{"undeclared universe", ir.MkAxiom(ir.ParseName("b"), nil, ir.Sort(ir.Param(u))), ErrUndeclaredUniv},
		{"universe in constant", ir.MkAxiom(ir.ParseName("b"), nil, ir.Const(a, ir.Param(u))), ErrUndeclaredUniv},
		{"duplicate universe", ir.MkAxiom(ir.ParseName("b"), []*ir.Name{u, u}, prop), ErrDuplicateUnivParam},
		{"anonymous", ir.MkAxiom(nil, nil, prop), ErrMalformedDecl},
		{"missing value", ir.MkTheorem(ir.ParseName("b"), nil, prop, nil), ErrMalformedDecl},
		{"empty inductive", ir.MkInductive(nil, 0, nil, false), ErrMalformedDecl},
		{"constructor clash", ir.MkInductive(nil, 0, []ir.InductiveType{{
			Name: ir.ParseName("T"), Type: prop,
			Ctors: []ir.Constructor{{Name: ir.ParseName("T"), Type: ir.Const(ir.ParseName("T"))}},
		}}, false), ErrAlreadyDeclared},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Admit(base, tt.decl)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if next != base {
				t.Errorf("rejected declaration changed the environment")
			}
			var kerr *Error
			if !errors.As(err, &kerr) || kerr.Kind.Code() == 0 {
				t.Errorf("error has no diagnostic code")
			}
		})
	}
}

type panickyEnv struct{ Environment }

func (panickyEnv) Add(ir.Declaration) (Environment, error) { panic("boom") }

func TestAdmitRecoversPanics(t *testing.T) {
	env := panickyEnv{ScopeKernel{}.Empty()}
	next, err := Admit(env, ir.MkQuotient())
	if !errors.Is(err, ErrPanic) {
		t.Fatalf("err = %v", err)
	}
	if next != env {
		t.Fatalf("environment should be unchanged")
	}
}

func TestSharedDAGIsLinear(t *testing.T) {
	prop := ir.Sort(ir.Zero())
	a := ir.ParseName("a")
	term := ir.Const(a)
	for i := 0; i < 200; i++ {
		term = ir.App(term, term)
	}
	env, _ := ScopeKernel{}.Empty().Add(ir.MkAxiom(a, nil, prop))
	if _, err := env.Add(ir.MkAxiom(ir.ParseName("b"), nil, term)); err != nil {
		t.Fatal(err)
	}
	w := newWalker()
	if r := w.looseRange(ir.Lambda(nil, prop, ir.App(term, ir.BVar(0)))); r != 0 {
		t.Fatalf("looseRange = %d", r)
	}
	if len(w.looseMemo) > 210 {
		t.Fatalf("walker visited %d nodes", len(w.looseMemo))
	}
}
