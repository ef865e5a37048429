package ir

import (
	"fmt"
	"strconv"
)

// HintKind is the reducibility hint variant of a definition.
type HintKind uint8

const (
	HintOpaque HintKind = iota
	HintAbbrev
	HintRegular
)

// ReducibilityHint tells the kernel how eagerly to unfold a definition.
// Height is meaningful only for HintRegular.
type ReducibilityHint struct {
	Kind   HintKind
	Height uint32
}

func OpaqueHint() ReducibilityHint { return ReducibilityHint{Kind: HintOpaque} }
func AbbrevHint() ReducibilityHint { return ReducibilityHint{Kind: HintAbbrev} }

func RegularHint(height uint32) ReducibilityHint {
	return ReducibilityHint{Kind: HintRegular, Height: height}
}

func (h ReducibilityHint) String() string {
	switch h.Kind {
	case HintOpaque:
		return "opaque"
	case HintAbbrev:
		return "abbrev"
	case HintRegular:
		return "regular " + strconv.FormatUint(uint64(h.Height), 10)
	default:
		return fmt.Sprintf("hint(%d)", h.Kind)
	}
}

// Constructor is a named constructor of an inductive type.
type Constructor struct {
	Name *Name
	Type *Term
}

func (c Constructor) Equal(o Constructor) bool {
	return c.Name.Equal(o.Name) && c.Type.Equal(o.Type)
}

// InductiveType is one member of a (possibly mutual) inductive family.
type InductiveType struct {
	Name  *Name
	Type  *Term
	Ctors []Constructor
}

func (t InductiveType) Equal(o InductiveType) bool {
	if !t.Name.Equal(o.Name) || !t.Type.Equal(o.Type) || len(t.Ctors) != len(o.Ctors) {
		return false
	}
	for i := range t.Ctors {
		if !t.Ctors[i].Equal(o.Ctors[i]) {
			return false
		}
	}
	return true
}

// DeclKind discriminates declarations.
type DeclKind uint8

const (
	DeclAxiom DeclKind = iota
	DeclDefinition
	DeclTheorem
	DeclOpaque
	DeclInductive
	DeclQuotient
)

func (k DeclKind) String() string {
	switch k {
	case DeclAxiom:
		return "axiom"
	case DeclDefinition:
		return "def"
	case DeclTheorem:
		return "theorem"
	case DeclOpaque:
		return "opaque"
	case DeclInductive:
		return "inductive"
	case DeclQuotient:
		return "quot"
	default:
		return fmt.Sprintf("decl(%d)", k)
	}
}

// Declaration is a top-level unit submitted to the kernel.
//
// Fields by kind:
//
//	Axiom       Name, Params, Type
//	Definition  Name, Params, Type, Value, Hint
//	Theorem     Name, Params, Type, Value
//	Opaque      Name, Params, Type, Value
//	Inductive   Params, NumParams, Types, Recursive
//	Quotient    (none)
type Declaration struct {
	Kind      DeclKind
	Name      *Name
	Params    []*Name
	Type      *Term
	Value     *Term
	Hint      ReducibilityHint
	NumParams uint64
	Types     []InductiveType
	Recursive bool
}

func MkAxiom(name *Name, params []*Name, typ *Term) Declaration {
	return Declaration{Kind: DeclAxiom, Name: name, Params: params, Type: typ}
}

func MkDefinition(name *Name, params []*Name, typ, value *Term, hint ReducibilityHint) Declaration {
	return Declaration{Kind: DeclDefinition, Name: name, Params: params, Type: typ, Value: value, Hint: hint}
}

func MkTheorem(name *Name, params []*Name, typ, value *Term) Declaration {
	return Declaration{Kind: DeclTheorem, Name: name, Params: params, Type: typ, Value: value}
}

func MkOpaque(name *Name, params []*Name, typ, value *Term) Declaration {
	return Declaration{Kind: DeclOpaque, Name: name, Params: params, Type: typ, Value: value}
}

func MkInductive(params []*Name, numParams uint64, types []InductiveType, recursive bool) Declaration {
	return Declaration{Kind: DeclInductive, Params: params, NumParams: numParams, Types: types, Recursive: recursive}
}

func MkQuotient() Declaration { return Declaration{Kind: DeclQuotient} }

// Constants lists the global names the declaration introduces. Inductive
// declarations introduce each type and each of its constructors.
func (d Declaration) Constants() []*Name {
	switch d.Kind {
	case DeclQuotient:
		return nil
	case DeclInductive:
		var out []*Name
		for _, t := range d.Types {
			out = append(out, t.Name)
			for _, c := range t.Ctors {
				out = append(out, c.Name)
			}
		}
		return out
	default:
		return []*Name{d.Name}
	}
}

// Equal compares declarations structurally.
func (d Declaration) Equal(o Declaration) bool {
	if d.Kind != o.Kind || len(d.Params) != len(o.Params) {
		return false
	}
	for i := range d.Params {
		if !d.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	switch d.Kind {
	case DeclQuotient:
		return true
	case DeclInductive:
		if d.NumParams != o.NumParams || d.Recursive != o.Recursive || len(d.Types) != len(o.Types) {
			return false
		}
		for i := range d.Types {
			if !d.Types[i].Equal(o.Types[i]) {
				return false
			}
		}
		return true
	case DeclAxiom:
		return d.Name.Equal(o.Name) && d.Type.Equal(o.Type)
	default:
		return d.Name.Equal(o.Name) && d.Type.Equal(o.Type) &&
			d.Value.Equal(o.Value) && d.Hint == o.Hint
	}
}

func (d Declaration) String() string {
	switch d.Kind {
	case DeclQuotient:
		return "quot"
	case DeclInductive:
		s := "inductive"
		for i, t := range d.Types {
			if i > 0 {
				s += ","
			}
			s += " " + t.Name.String()
		}
		return s
	default:
		return d.Kind.String() + " " + d.Name.String()
	}
}

// ConstructorRecord is a staged constructor together with the bookkeeping its
// record carried. Inductive, Index, NumParams, NumFields and Params are
// informational and never validated against each other.
type ConstructorRecord struct {
	Constructor
	Inductive *Name
	Index     uint64
	NumParams uint64
	NumFields uint64
	Params    []*Name
}
