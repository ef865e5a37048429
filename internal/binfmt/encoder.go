package binfmt

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"fortio.org/safecast"

	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
)

// ErrUnencodable reports IR that the binary format cannot carry: axioms,
// opaque constants and quotients have no opcode, and every count and index is
// bounded by its field width.
var ErrUnencodable = errors.New("binfmt: unencodable")

// Encoder writes declarations in the binary format. String name components
// are interned into the pool handed to the decoder alongside the bytes.
type Encoder struct {
	buf  bytes.Buffer
	pool *strpool.Pool
	err  error

	names  map[ir.Digest]uint16
	levels map[ir.Digest]uint16
	terms  map[ir.Digest]uint16

	ctors      map[ir.Digest]ir.Constructor
	inductives map[ir.Digest]ir.InductiveType
}

// NewEncoder interns into pool; a nil pool starts a fresh one.
func NewEncoder(pool *strpool.Pool) *Encoder {
	if pool == nil {
		pool = strpool.New()
	}
	return &Encoder{
		pool:       pool,
		names:      map[ir.Digest]uint16{ir.Anonymous().Digest(): 0},
		levels:     map[ir.Digest]uint16{ir.Zero().Digest(): 0},
		terms:      map[ir.Digest]uint16{},
		ctors:      map[ir.Digest]ir.Constructor{},
		inductives: map[ir.Digest]ir.InductiveType{},
	}
}

// Encode renders decls and returns the bytes with their string pool.
func Encode(decls []ir.Declaration) ([]byte, *strpool.Pool, error) {
	enc := NewEncoder(nil)
	for i := range decls {
		if err := enc.Declaration(decls[i]); err != nil {
			return nil, nil, err
		}
	}
	return enc.Bytes(), enc.Pool(), nil
}

func (e *Encoder) Bytes() []byte       { return slices.Clone(e.buf.Bytes()) }
func (e *Encoder) Pool() *strpool.Pool { return e.pool }
func (e *Encoder) Err() error          { return e.err }

func (e *Encoder) fail(format string, args ...any) error {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s", ErrUnencodable, fmt.Sprintf(format, args...))
	}
	return e.err
}

func (e *Encoder) u8(v uint8) { e.buf.WriteByte(v) }

func (e *Encoder) u16(v uint16) { e.buf.Write([]byte{byte(v >> 8), byte(v)}) }

func (e *Encoder) u32(v uint32) {
	e.u16(uint16(v >> 16))
	e.u16(uint16(v))
}

func (e *Encoder) width16(what string, v uint64) uint16 {
	n, err := safecast.Conv[uint16](v)
	if err != nil {
		e.fail("%s %d does not fit 16 bits", what, v)
	}
	return n
}

func (e *Encoder) count8(what string, n int) uint8 {
	v, err := safecast.Conv[uint8](n)
	if err != nil {
		e.fail("%s: %d entries do not fit a u8 count", what, n)
	}
	return v
}

func (e *Encoder) slot(tbl map[ir.Digest]uint16, d ir.Digest, what string) uint16 {
	idx, err := safecast.Conv[uint16](len(tbl))
	if err != nil {
		e.fail("%s table is full", what)
		return 0
	}
	tbl[d] = idx
	return idx
}

// Declaration appends d. After an error the encoder is unusable.
func (e *Encoder) Declaration(d ir.Declaration) error {
	if e.err != nil {
		return e.err
	}
	switch d.Kind {
	case ir.DeclDefinition, ir.DeclTheorem:
		name := e.name(d.Name, false)
		typ := e.term(d.Type)
		val := e.term(d.Value)
		params := e.nameList("universe parameters", d.Params)
		if e.err != nil {
			return e.err
		}
		if d.Kind == ir.DeclDefinition {
			e.u8(opDefinition)
		} else {
			e.u8(opTheorem)
		}
		e.u16(name)
		e.u16(typ)
		e.u16(val)
		if d.Kind == ir.DeclDefinition {
			e.hint(d.Hint)
		}
		e.list(params)
	case ir.DeclInductive:
		e.inductive(d)
	default:
		return e.fail("%s declarations have no binary opcode", d.Kind)
	}
	return e.err
}

func (e *Encoder) list(refs []uint16) {
	e.u8(uint8(len(refs))) //nolint:gosec // checked by count8
	for _, r := range refs {
		e.u16(r)
	}
}

func (e *Encoder) hint(h ir.ReducibilityHint) {
	e.u8(uint8(slices.Index(hintOps[:], h.Kind))) //nolint:gosec // small table
	if h.Kind == ir.HintRegular {
		e.u32(h.Height)
	}
}

func (e *Encoder) nameList(what string, ns []*ir.Name) []uint16 {
	e.count8(what, len(ns))
	out := make([]uint16, 0, len(ns))
	for _, n := range ns {
		out = append(out, e.name(n, true))
	}
	return out
}

func (e *Encoder) inductive(d ir.Declaration) {
	numParams, err := safecast.Conv[uint8](d.NumParams)
	if err != nil {
		e.fail("parameter count %d does not fit a u8", d.NumParams)
		return
	}
	params := e.nameList("universe parameters", d.Params)
	e.count8("inductive types", len(d.Types))
	inds := make([]uint16, 0, len(d.Types))
	for _, t := range d.Types {
		inds = append(inds, e.inductiveType(t))
	}
	if e.err != nil {
		return
	}
	e.u8(opFamily)
	e.u8(numParams)
	e.list(inds)
	e.list(params)
}

func (e *Encoder) inductiveType(t ir.InductiveType) uint16 {
	name := e.name(t.Name, false)
	if prev, ok := e.inductives[t.Name.Digest()]; ok {
		if !prev.Equal(t) {
			e.fail("inductive %s redefined", t.Name)
		}
		return name
	}
	e.count8("constructors of "+t.Name.String(), len(t.Ctors))
	ctors := make([]uint16, 0, len(t.Ctors))
	for _, c := range t.Ctors {
		ctors = append(ctors, e.constructor(c))
	}
	typ := e.term(t.Type)
	if e.err != nil {
		return 0
	}
	e.u8(opInductive)
	e.u16(name)
	e.u16(typ)
	e.list(ctors)
	e.inductives[t.Name.Digest()] = t
	return name
}

func (e *Encoder) constructor(c ir.Constructor) uint16 {
	name := e.name(c.Name, false)
	if prev, ok := e.ctors[c.Name.Digest()]; ok {
		if !prev.Equal(c) {
			e.fail("constructor %s redefined", c.Name)
		}
		return name
	}
	typ := e.term(c.Type)
	if e.err != nil {
		return 0
	}
	e.u8(opConstructor)
	e.u16(name)
	e.u16(typ)
	e.ctors[c.Name.Digest()] = c
	return name
}

func (e *Encoder) name(n *ir.Name, allowAnon bool) uint16 {
	if e.err != nil {
		return 0
	}
	if n.IsAnonymous() && !allowAnon {
		e.fail("anonymous name in a position that requires a name")
		return 0
	}
	if idx, ok := e.names[n.Digest()]; ok {
		return idx
	}
	parent := e.name(n.Parent(), true)
	var comp uint16
	kind := uint8(slices.Index(nameOps[:], n.Kind())) //nolint:gosec // small table
	switch n.Kind() {
	case ir.NameString:
		idx, err := e.pool.Intern(n.Str())
		if err != nil {
			e.fail("name component: %v", err)
		}
		comp = idx
	case ir.NameNumeric:
		comp = e.width16("numeric name component", n.Num())
	}
	if e.err != nil {
		return 0
	}
	e.u8(opName)
	e.u8(kind)
	e.u16(parent)
	e.u16(comp)
	return e.slot(e.names, n.Digest(), "name")
}

func (e *Encoder) level(l *ir.Level) uint16 {
	if e.err != nil {
		return 0
	}
	if idx, ok := e.levels[l.Digest()]; ok {
		return idx
	}
	var operands []uint16
	switch l.Kind() {
	case ir.LevelSucc:
		operands = []uint16{e.level(l.Pred())}
	case ir.LevelMax, ir.LevelIMax:
		lhs := e.level(l.Lhs())
		operands = []uint16{lhs, e.level(l.Rhs())}
	case ir.LevelParam:
		operands = []uint16{e.name(l.ParamName(), false)}
	}
	if e.err != nil {
		return 0
	}
	e.u8(opLevel)
	e.u8(uint8(slices.Index(levelOps[:], l.Kind()))) //nolint:gosec // small table
	for _, r := range operands {
		e.u16(r)
	}
	return e.slot(e.levels, l.Digest(), "level")
}

func (e *Encoder) term(t *ir.Term) uint16 {
	if e.err != nil {
		return 0
	}
	if t == nil {
		e.fail("missing term")
		return 0
	}
	if idx, ok := e.terms[t.Digest()]; ok {
		return idx
	}
	var body bytes.Buffer
	ref := func(v uint16) { body.Write([]byte{byte(v >> 8), byte(v)}) }
	switch t.Kind() {
	case ir.TermBVar:
		ref(e.width16("de Bruijn index", t.BVarIndex()))
	case ir.TermSort:
		ref(e.level(t.SortLevel()))
	case ir.TermConst:
		ref(e.name(t.ConstName(), false))
		body.WriteByte(e.count8("constant levels", len(t.ConstLevels())))
		for _, l := range t.ConstLevels() {
			ref(e.level(l))
		}
	case ir.TermApp:
		ref(e.term(t.AppFn()))
		ref(e.term(t.AppArg()))
	case ir.TermLambda, ir.TermPi:
		ref(e.name(t.BinderName(), true))
		ref(e.term(t.BinderType()))
		ref(e.term(t.Body()))
	case ir.TermLet:
		ref(e.name(t.BinderName(), false))
		ref(e.term(t.BinderType()))
		ref(e.term(t.LetValue()))
		ref(e.term(t.Body()))
	case ir.TermProj:
		ref(e.name(t.ProjStruct(), false))
		ref(e.width16("projection index", t.ProjIndex()))
		ref(e.term(t.ProjValue()))
	case ir.TermNatLit:
		digits := t.Nat().BytesBE()
		body.WriteByte(e.count8("natural literal bytes", len(digits)))
		body.Write(digits)
	case ir.TermStrLit:
		body.WriteByte(e.count8("string literal bytes", len(t.Str())))
		body.Write(t.Str())
	}
	if e.err != nil {
		return 0
	}
	e.u8(opTerm)
	e.u8(uint8(slices.Index(termOps[:], t.Kind()))) //nolint:gosec // small table
	e.buf.Write(body.Bytes())
	return e.slot(e.terms, t.Digest(), "term")
}
