package ir

import (
	"strconv"
	"strings"

	"kernelfuzz/internal/bignum"
)

// TermKind discriminates term nodes.
type TermKind uint8

const (
	TermBVar TermKind = iota
	TermSort
	TermConst
	TermApp
	TermLambda
	TermPi
	TermLet
	TermProj
	TermNatLit
	TermStrLit
)

// NumTermKinds is the number of term variants.
const NumTermKinds = int(TermStrLit) + 1

func (k TermKind) String() string {
	switch k {
	case TermBVar:
		return "bvar"
	case TermSort:
		return "sort"
	case TermConst:
		return "const"
	case TermApp:
		return "app"
	case TermLambda:
		return "lam"
	case TermPi:
		return "pi"
	case TermLet:
		return "let"
	case TermProj:
		return "proj"
	case TermNatLit:
		return "natlit"
	case TermStrLit:
		return "strlit"
	default:
		return "term(" + strconv.Itoa(int(k)) + ")"
	}
}

// Term is a kernel expression. Fields are interpreted per Kind:
//
//	BVar    idx
//	Sort    level
//	Const   name, levels
//	App     fn, arg
//	Lambda  name, typ, body
//	Pi      name, typ, body
//	Let     name, typ, value, body
//	Proj    name (structure), idx (field), value
//	NatLit  nat
//	StrLit  str
type Term struct {
	kind   TermKind
	idx    uint64
	name   *Name
	level  *Level
	levels []*Level
	fn     *Term
	arg    *Term
	typ    *Term
	value  *Term
	body   *Term
	nat    bignum.BigUint
	str    []byte
	digest Digest
}

func (t *Term) Kind() TermKind { return t.kind }
func (t *Term) Digest() Digest { return t.digest }

func (t *Term) Equal(other *Term) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.digest == other.digest
}

// BVar returns a de Bruijn variable reference.
func BVar(idx uint64) *Term {
	w := newDigestWriter(termDomainKey, uint8(TermBVar))
	w.u64(idx)
	return &Term{kind: TermBVar, idx: idx, digest: w.sum()}
}

// Sort returns the universe at level l.
func Sort(l *Level) *Term {
	l = orZero(l)
	w := newDigestWriter(termDomainKey, uint8(TermSort))
	w.digest(l.digest)
	return &Term{kind: TermSort, level: l, digest: w.sum()}
}

// Const references a global constant with universe instantiation.
func Const(n *Name, levels ...*Level) *Term {
	n = orAnonymous(n)
	ls := make([]*Level, len(levels))
	w := newDigestWriter(termDomainKey, uint8(TermConst))
	w.digest(n.digest)
	w.u64(uint64(len(levels)))
	for i, l := range levels {
		ls[i] = orZero(l)
		w.digest(ls[i].digest)
	}
	return &Term{kind: TermConst, name: n, levels: ls, digest: w.sum()}
}

// App applies fn to arg.
func App(fn, arg *Term) *Term {
	w := newDigestWriter(termDomainKey, uint8(TermApp))
	w.digest(fn.digest)
	w.digest(arg.digest)
	return &Term{kind: TermApp, fn: fn, arg: arg, digest: w.sum()}
}

// Lambda builds fun (n : typ) => body.
func Lambda(n *Name, typ, body *Term) *Term { return mkBinder(TermLambda, n, typ, body) }

// Pi builds (n : typ) -> body.
func Pi(n *Name, typ, body *Term) *Term { return mkBinder(TermPi, n, typ, body) }

func mkBinder(kind TermKind, n *Name, typ, body *Term) *Term {
	n = orAnonymous(n)
	w := newDigestWriter(termDomainKey, uint8(kind))
	w.digest(n.digest)
	w.digest(typ.digest)
	w.digest(body.digest)
	return &Term{kind: kind, name: n, typ: typ, body: body, digest: w.sum()}
}

// Let builds let n : typ := value; body.
func Let(n *Name, typ, value, body *Term) *Term {
	n = orAnonymous(n)
	w := newDigestWriter(termDomainKey, uint8(TermLet))
	w.digest(n.digest)
	w.digest(typ.digest)
	w.digest(value.digest)
	w.digest(body.digest)
	return &Term{kind: TermLet, name: n, typ: typ, value: value, body: body, digest: w.sum()}
}

// Proj projects field idx out of value, a term of structure type structName.
func Proj(structName *Name, idx uint64, value *Term) *Term {
	structName = orAnonymous(structName)
	w := newDigestWriter(termDomainKey, uint8(TermProj))
	w.digest(structName.digest)
	w.u64(idx)
	w.digest(value.digest)
	return &Term{kind: TermProj, name: structName, idx: idx, value: value, digest: w.sum()}
}

// NatLit is an arbitrary-precision natural literal.
func NatLit(v bignum.BigUint) *Term {
	v = bignum.BigUint{Limbs: append([]uint32(nil), v.Limbs...)}
	w := newDigestWriter(termDomainKey, uint8(TermNatLit))
	w.bytes(v.BytesBE())
	return &Term{kind: TermNatLit, nat: v, digest: w.sum()}
}

// StrLit is a literal byte string. Bytes are not required to be UTF-8.
func StrLit(b []byte) *Term {
	b = append([]byte{}, b...)
	w := newDigestWriter(termDomainKey, uint8(TermStrLit))
	w.bytes(b)
	return &Term{kind: TermStrLit, str: b, digest: w.sum()}
}

func (t *Term) BVarIndex() uint64 { return t.idx }
func (t *Term) SortLevel() *Level { return t.level }
func (t *Term) ConstName() *Name { return t.name }
func (t *Term) ConstLevels() []*Level { return t.levels }
func (t *Term) AppFn() *Term { return t.fn }
func (t *Term) AppArg() *Term { return t.arg }
func (t *Term) BinderName() *Name { return t.name }
func (t *Term) BinderType() *Term { return t.typ }
func (t *Term) Body() *Term { return t.body }
func (t *Term) LetValue() *Term { return t.value }
func (t *Term) ProjStruct() *Name { return t.name }
func (t *Term) ProjIndex() uint64 { return t.idx }
func (t *Term) ProjValue() *Term { return t.value }
func (t *Term) Nat() bignum.BigUint { return t.nat }

// Str returns the literal bytes; callers must not modify them.
func (t *Term) Str() []byte { return t.str }

// Children returns the immediate subterms in a fixed order.
func (t *Term) Children() []*Term {
	switch t.kind {
	case TermApp:
		return []*Term{t.fn, t.arg}
	case TermLambda, TermPi:
		return []*Term{t.typ, t.body}
	case TermLet:
		return []*Term{t.typ, t.value, t.body}
	case TermProj:
		return []*Term{t.value}
	default:
		return nil
	}
}

func (t *Term) String() string {
	var sb strings.Builder
	budget := renderBudget
	writeTerm(&sb, t, &budget)
	return sb.String()
}

func writeTerm(sb *strings.Builder, t *Term, budget *int) {
	if *budget <= 0 {
		sb.WriteString("…")
		return
	}
	*budget--
	switch t.kind {
	case TermBVar:
		sb.WriteString("#")
		sb.WriteString(strconv.FormatUint(t.idx, 10))
	case TermSort:
		sb.WriteString("Sort ")
		writeLevelAtom(sb, t.level, budget)
	case TermConst:
		sb.WriteString(t.name.String())
		if len(t.levels) > 0 {
			sb.WriteString(".{")
			for i, l := range t.levels {
				if i > 0 {
					sb.WriteString(", ")
				}
				writeLevel(sb, l, budget)
			}
			sb.WriteString("}")
		}
	case TermApp:
		sb.WriteByte('(')
		writeTerm(sb, t.fn, budget)
		sb.WriteByte(' ')
		writeTerm(sb, t.arg, budget)
		sb.WriteByte(')')
	case TermLambda, TermPi:
		if t.kind == TermLambda {
			sb.WriteString("fun (")
		} else {
			sb.WriteString("((")
		}
		sb.WriteString(t.name.String())
		sb.WriteString(" : ")
		writeTerm(sb, t.typ, budget)
		if t.kind == TermLambda {
			sb.WriteString(") => ")
		} else {
			sb.WriteString(") -> ")
		}
		writeTerm(sb, t.body, budget)
		if t.kind == TermPi {
			sb.WriteByte(')')
		}
	case TermLet:
		sb.WriteString("let ")
		sb.WriteString(t.name.String())
		sb.WriteString(" : ")
		writeTerm(sb, t.typ, budget)
		sb.WriteString(" := ")
		writeTerm(sb, t.value, budget)
		sb.WriteString("; ")
		writeTerm(sb, t.body, budget)
	case TermProj:
		writeTerm(sb, t.value, budget)
		sb.WriteString(".")
		sb.WriteString(strconv.FormatUint(t.idx+1, 10))
	case TermNatLit:
		sb.WriteString(t.nat.String())
	case TermStrLit:
		sb.WriteString(strconv.Quote(string(t.str)))
	}
}
