package testkit

import (
	"kernelfuzz/internal/bignum"
	"kernelfuzz/internal/ir"
)

// Sample names shared by the fixtures.
var (
	NatName   = ir.ParseName("Nat")
	ZeroName  = ir.ParseName("Nat.zero")
	SuccName  = ir.ParseName("Nat.succ")
	FalseName = ir.ParseName("False")
	UName     = ir.ParseName("u")
)

// Nat returns the inductive declaration of the natural numbers.
func Nat() ir.Declaration {
	nat := ir.Const(NatName)
	return ir.MkInductive(nil, 0, []ir.InductiveType{{
		Name: NatName,
		Type: ir.Sort(ir.Succ(ir.Zero())),
		Ctors: []ir.Constructor{
			{Name: ZeroName, Type: nat},
			{Name: SuccName, Type: ir.Pi(ir.ParseName("n"), nat, nat)},
		},
	}}, false)
}

// SampleDeclarations is a small, well-scoped environment that exercises
// every term, level and declaration kind of the text format.
func SampleDeclarations() []ir.Declaration {
	u := ir.Param(UName)
	sortU := ir.Sort(u)
	nat := ir.Const(NatName)
	prop := ir.Sort(ir.Zero())
	big, _ := bignum.ParseDecimal("340282366920938463463374607431768211457")

	// id.{u} : (α : Sort u) -> α -> α
	alpha := ir.ParseName("α")
	idType := ir.Pi(alpha, sortU, ir.Pi(ir.ParseName("a"), ir.BVar(0), ir.BVar(1)))
	idValue := ir.Lambda(alpha, sortU, ir.Lambda(ir.ParseName("a"), ir.BVar(0), ir.BVar(0)))

	two := ir.App(ir.Const(SuccName), ir.App(ir.Const(SuccName), ir.Const(ZeroName)))
	letTwo := ir.Let(ir.ParseName("x"), nat, two, ir.BVar(0))

	return []ir.Declaration{
		ir.MkAxiom(FalseName, nil, prop),
		Nat(),
		ir.MkDefinition(ir.ParseName("id"), []*ir.Name{UName}, idType, idValue, ir.RegularHint(3)),
		ir.MkDefinition(ir.ParseName("two"), nil, nat, letTwo, ir.AbbrevHint()),
		ir.MkDefinition(ir.ParseName("big"), nil, nat, ir.NatLit(big), ir.OpaqueHint()),
		ir.MkTheorem(ir.ParseName("two.eq"), nil, nat, two),
		ir.MkAxiom(ir.ParseName("String"), nil, ir.Sort(ir.Succ(ir.Zero()))),
		ir.MkAxiom(ir.ParseName("pair"), []*ir.Name{UName}, sortU),
		ir.MkOpaque(ir.ParseName("greeting"), nil, ir.Const(ir.ParseName("String")),
			ir.StrLit([]byte("hi\x00\xff"))),
		ir.MkOpaque(ir.ParseName("fst"), []*ir.Name{UName, ir.ParseName("v")},
			ir.Sort(ir.IMax(u, ir.Max(ir.Param(ir.ParseName("v")), ir.Succ(ir.Zero())))),
			ir.Proj(ir.ParseName("Prod"), 0, ir.Const(ir.ParseName("pair"), u))),
		ir.MkQuotient(),
	}
}
