// Package snapshot flattens a decoded session into plain index-linked
// records that can be exported as deterministic CBOR or JSON and rebuilt
// into declarations later.
package snapshot

import (
	"fmt"

	"fortio.org/safecast"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/bignum"
	"kernelfuzz/internal/ir"
)

// Version is bumped whenever the record layout changes.
const Version = 1

type Name struct {
	Kind   ir.NameKind `cbor:"k" json:"kind"`
	Parent uint32      `cbor:"p,omitempty" json:"parent,omitempty"`
	Str    string      `cbor:"s,omitempty" json:"str,omitempty"`
	Num    uint64      `cbor:"n,omitempty" json:"num,omitempty"`
}

// Level operands: Lhs is the predecessor of succ, Name the param name.
type Level struct {
	Kind ir.LevelKind `cbor:"k" json:"kind"`
	Lhs  uint32       `cbor:"l,omitempty" json:"lhs,omitempty"`
	Rhs  uint32       `cbor:"r,omitempty" json:"rhs,omitempty"`
	Name uint32       `cbor:"n,omitempty" json:"name,omitempty"`
}

// Term keeps child terms in Kids in constructor argument order.
type Term struct {
	Kind   ir.TermKind `cbor:"k" json:"kind"`
	Index  uint64      `cbor:"i,omitempty" json:"index,omitempty"`
	Name   uint32      `cbor:"n,omitempty" json:"name,omitempty"`
	Level  uint32      `cbor:"l,omitempty" json:"level,omitempty"`
	Levels []uint32    `cbor:"ls,omitempty" json:"levels,omitempty"`
	Kids   []uint32    `cbor:"c,omitempty" json:"kids,omitempty"`
	Nat    string      `cbor:"nat,omitempty" json:"nat,omitempty"`
	Str    []byte      `cbor:"str,omitempty" json:"str,omitempty"`
}

type Constructor struct {
	Name uint32 `cbor:"n" json:"name"`
	Type uint32 `cbor:"t" json:"type"`
}

type Inductive struct {
	Name  uint32        `cbor:"n" json:"name"`
	Type  uint32        `cbor:"t" json:"type"`
	Ctors []Constructor `cbor:"c,omitempty" json:"ctors,omitempty"`
}

type Declaration struct {
	Kind      ir.DeclKind `cbor:"k" json:"kind"`
	Name      uint32      `cbor:"n,omitempty" json:"name,omitempty"`
	Params    []uint32    `cbor:"p,omitempty" json:"params,omitempty"`
	Type      uint32      `cbor:"t,omitempty" json:"type,omitempty"`
	Value     uint32      `cbor:"v,omitempty" json:"value,omitempty"`
	Hint      ir.HintKind `cbor:"h,omitempty" json:"hint,omitempty"`
	Height    uint32      `cbor:"hh,omitempty" json:"height,omitempty"`
	NumParams uint64      `cbor:"np,omitempty" json:"num_params,omitempty"`
	Types     []Inductive `cbor:"ty,omitempty" json:"types,omitempty"`
	Recursive bool        `cbor:"rec,omitempty" json:"recursive,omitempty"`
}

// Snapshot is a whole session. The first Tables.Names entries of Names are
// the session's name table in order (likewise for levels and terms);
// anything referenced from outside the tables is appended after them.
type Snapshot struct {
	Version int           `cbor:"version" json:"version"`
	Source  string        `cbor:"source,omitempty" json:"source,omitempty"`
	Tables  arena.Sizes   `cbor:"tables" json:"tables"`
	Names   []Name        `cbor:"names" json:"names"`
	Levels  []Level       `cbor:"levels" json:"levels"`
	Terms   []Term        `cbor:"terms" json:"terms"`
	Decls   []Declaration `cbor:"decls" json:"decls"`
}

type builder struct {
	snap   *Snapshot
	names  map[ir.Digest]uint32
	levels map[ir.Digest]uint32
	terms  map[ir.Digest]uint32
}

// Build flattens store and decls. source is an informational label.
func Build(source string, store *arena.Store, decls []ir.Declaration) *Snapshot {
	b := &builder{
		snap:   &Snapshot{Version: Version, Source: source, Tables: store.Sizes()},
		names:  make(map[ir.Digest]uint32, store.Names.Len()),
		levels: make(map[ir.Digest]uint32, store.Levels.Len()),
		terms:  make(map[ir.Digest]uint32, store.Terms.Len()),
	}
	for _, n := range store.Names.Data() {
		b.addName(n)
	}
	for _, l := range store.Levels.Data() {
		b.addLevel(l)
	}
	for _, t := range store.Terms.Data() {
		b.addTerm(t)
	}
	b.snap.Decls = make([]Declaration, 0, len(decls))
	for _, d := range decls {
		b.snap.Decls = append(b.snap.Decls, b.decl(d))
	}
	return b.snap
}

func index(n int) uint32 {
	idx, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("snapshot overflow: %w", err))
	}
	return idx
}

func (b *builder) name(n *ir.Name) uint32 {
	if idx, ok := b.names[n.Digest()]; ok {
		return idx
	}
	return b.addName(n)
}

func (b *builder) addName(n *ir.Name) uint32 {
	e := Name{Kind: n.Kind(), Str: n.Str(), Num: n.Num()}
	if !n.IsAnonymous() {
		e.Parent = b.name(n.Parent())
	}
	idx := index(len(b.snap.Names))
	b.snap.Names = append(b.snap.Names, e)
	if _, seen := b.names[n.Digest()]; !seen {
		b.names[n.Digest()] = idx
	}
	return idx
}

func (b *builder) level(l *ir.Level) uint32 {
	if idx, ok := b.levels[l.Digest()]; ok {
		return idx
	}
	return b.addLevel(l)
}

func (b *builder) addLevel(l *ir.Level) uint32 {
	e := Level{Kind: l.Kind()}
	switch l.Kind() {
	case ir.LevelSucc:
		e.Lhs = b.level(l.Pred())
	case ir.LevelMax, ir.LevelIMax:
		e.Lhs = b.level(l.Lhs())
		e.Rhs = b.level(l.Rhs())
	case ir.LevelParam:
		e.Name = b.name(l.ParamName())
	}
	idx := index(len(b.snap.Levels))
	b.snap.Levels = append(b.snap.Levels, e)
	if _, seen := b.levels[l.Digest()]; !seen {
		b.levels[l.Digest()] = idx
	}
	return idx
}

func (b *builder) term(t *ir.Term) uint32 {
	if t == nil {
		t = arena.FallbackTerm
	}
	if idx, ok := b.terms[t.Digest()]; ok {
		return idx
	}
	return b.addTerm(t)
}

func (b *builder) addTerm(t *ir.Term) uint32 {
	e := Term{Kind: t.Kind()}
	switch t.Kind() {
	case ir.TermBVar:
		e.Index = t.BVarIndex()
	case ir.TermSort:
		e.Level = b.level(t.SortLevel())
	case ir.TermConst:
		e.Name = b.name(t.ConstName())
		for _, l := range t.ConstLevels() {
			e.Levels = append(e.Levels, b.level(l))
		}
	case ir.TermApp:
		e.Kids = []uint32{b.term(t.AppFn()), b.term(t.AppArg())}
	case ir.TermLambda, ir.TermPi:
		e.Name = b.name(t.BinderName())
		e.Kids = []uint32{b.term(t.BinderType()), b.term(t.Body())}
	case ir.TermLet:
		e.Name = b.name(t.BinderName())
		e.Kids = []uint32{b.term(t.BinderType()), b.term(t.LetValue()), b.term(t.Body())}
	case ir.TermProj:
		e.Name = b.name(t.ProjStruct())
		e.Index = t.ProjIndex()
		e.Kids = []uint32{b.term(t.ProjValue())}
	case ir.TermNatLit:
		e.Nat = t.Nat().String()
	case ir.TermStrLit:
		e.Str = t.Str()
	}
	idx := index(len(b.snap.Terms))
	b.snap.Terms = append(b.snap.Terms, e)
	if _, seen := b.terms[t.Digest()]; !seen {
		b.terms[t.Digest()] = idx
	}
	return idx
}

func (b *builder) nameList(ns []*ir.Name) []uint32 {
	if len(ns) == 0 {
		return nil
	}
	out := make([]uint32, 0, len(ns))
	for _, n := range ns {
		out = append(out, b.name(n))
	}
	return out
}

func (b *builder) decl(d ir.Declaration) Declaration {
	e := Declaration{Kind: d.Kind}
	switch d.Kind {
	case ir.DeclQuotient:
	case ir.DeclInductive:
		e.Params = b.nameList(d.Params)
		e.NumParams = d.NumParams
		e.Recursive = d.Recursive
		for _, ind := range d.Types {
			out := Inductive{Name: b.name(ind.Name), Type: b.term(ind.Type)}
			for _, c := range ind.Ctors {
				out.Ctors = append(out.Ctors, Constructor{Name: b.name(c.Name), Type: b.term(c.Type)})
			}
			e.Types = append(e.Types, out)
		}
	default:
		e.Name = b.name(d.Name)
		e.Params = b.nameList(d.Params)
		e.Type = b.term(d.Type)
		if d.Kind != ir.DeclAxiom {
			e.Value = b.term(d.Value)
		}
		if d.Kind == ir.DeclDefinition {
			e.Hint = d.Hint.Kind
			e.Height = d.Hint.Height
		}
	}
	return e
}

// --- rebuilding ---

type rebuilder struct {
	snap   *Snapshot
	names  []*ir.Name
	levels []*ir.Level
	terms  []*ir.Term
}

func ref[T any](kind string, tbl []T, idx uint32) (T, error) {
	if int(idx) >= len(tbl) {
		var zero T
		return zero, fmt.Errorf("snapshot: %s index %d out of range (have %d)", kind, idx, len(tbl))
	}
	return tbl[idx], nil
}

// Declarations rebuilds the declaration sequence. Every reference must point
// to an earlier record.
func (s *Snapshot) Declarations() ([]ir.Declaration, error) {
	if s.Version != Version {
		return nil, fmt.Errorf("snapshot: version %d, want %d", s.Version, Version)
	}
	r := &rebuilder{snap: s}
	for i, e := range s.Names {
		n, err := r.name(e)
		if err != nil {
			return nil, fmt.Errorf("name %d: %w", i, err)
		}
		r.names = append(r.names, n)
	}
	for i, e := range s.Levels {
		l, err := r.level(e)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		r.levels = append(r.levels, l)
	}
	for i, e := range s.Terms {
		t, err := r.term(e)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i, err)
		}
		r.terms = append(r.terms, t)
	}
	decls := make([]ir.Declaration, 0, len(s.Decls))
	for i, e := range s.Decls {
		d, err := r.decl(e)
		if err != nil {
			return nil, fmt.Errorf("declaration %d: %w", i, err)
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func (r *rebuilder) name(e Name) (*ir.Name, error) {
	if e.Kind == ir.NameAnonymous {
		return ir.Anonymous(), nil
	}
	parent, err := ref("name", r.names, e.Parent)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case ir.NameString:
		return ir.NameStr(parent, e.Str), nil
	case ir.NameNumeric:
		return ir.NameNum(parent, e.Num), nil
	}
	return nil, fmt.Errorf("snapshot: unknown name kind %d", e.Kind)
}

func (r *rebuilder) level(e Level) (*ir.Level, error) {
	switch e.Kind {
	case ir.LevelZero:
		return ir.Zero(), nil
	case ir.LevelSucc:
		pred, err := ref("level", r.levels, e.Lhs)
		if err != nil {
			return nil, err
		}
		return ir.Succ(pred), nil
	case ir.LevelMax, ir.LevelIMax:
		lhs, err := ref("level", r.levels, e.Lhs)
		if err != nil {
			return nil, err
		}
		rhs, err := ref("level", r.levels, e.Rhs)
		if err != nil {
			return nil, err
		}
		if e.Kind == ir.LevelMax {
			return ir.Max(lhs, rhs), nil
		}
		return ir.IMax(lhs, rhs), nil
	case ir.LevelParam:
		n, err := ref("name", r.names, e.Name)
		if err != nil {
			return nil, err
		}
		return ir.Param(n), nil
	}
	return nil, fmt.Errorf("snapshot: unknown level kind %d", e.Kind)
}

func (r *rebuilder) kids(e Term, want int) ([]*ir.Term, error) {
	if len(e.Kids) != want {
		return nil, fmt.Errorf("snapshot: %s has %d children, want %d", e.Kind, len(e.Kids), want)
	}
	out := make([]*ir.Term, want)
	for i, k := range e.Kids {
		t, err := ref("term", r.terms, k)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (r *rebuilder) term(e Term) (*ir.Term, error) {
	switch e.Kind {
	case ir.TermBVar:
		return ir.BVar(e.Index), nil
	case ir.TermSort:
		l, err := ref("level", r.levels, e.Level)
		if err != nil {
			return nil, err
		}
		return ir.Sort(l), nil
	case ir.TermConst:
		n, err := ref("name", r.names, e.Name)
		if err != nil {
			return nil, err
		}
		ls := make([]*ir.Level, 0, len(e.Levels))
		for _, idx := range e.Levels {
			l, err := ref("level", r.levels, idx)
			if err != nil {
				return nil, err
			}
			ls = append(ls, l)
		}
		return ir.Const(n, ls...), nil
	case ir.TermApp:
		k, err := r.kids(e, 2)
		if err != nil {
			return nil, err
		}
		return ir.App(k[0], k[1]), nil
	case ir.TermLambda, ir.TermPi:
		n, err := ref("name", r.names, e.Name)
		if err != nil {
			return nil, err
		}
		k, err := r.kids(e, 2)
		if err != nil {
			return nil, err
		}
		if e.Kind == ir.TermLambda {
			return ir.Lambda(n, k[0], k[1]), nil
		}
		return ir.Pi(n, k[0], k[1]), nil
	case ir.TermLet:
		n, err := ref("name", r.names, e.Name)
		if err != nil {
			return nil, err
		}
		k, err := r.kids(e, 3)
		if err != nil {
			return nil, err
		}
		return ir.Let(n, k[0], k[1], k[2]), nil
	case ir.TermProj:
		n, err := ref("name", r.names, e.Name)
		if err != nil {
			return nil, err
		}
		k, err := r.kids(e, 1)
		if err != nil {
			return nil, err
		}
		return ir.Proj(n, e.Index, k[0]), nil
	case ir.TermNatLit:
		v, err := bignum.ParseDecimal(e.Nat)
		if err != nil {
			return nil, fmt.Errorf("snapshot: nat literal %q: %w", e.Nat, err)
		}
		return ir.NatLit(v), nil
	case ir.TermStrLit:
		return ir.StrLit(e.Str), nil
	}
	return nil, fmt.Errorf("snapshot: unknown term kind %d", e.Kind)
}

func (r *rebuilder) nameList(idxs []uint32) ([]*ir.Name, error) {
	if len(idxs) == 0 {
		return nil, nil
	}
	out := make([]*ir.Name, 0, len(idxs))
	for _, idx := range idxs {
		n, err := ref("name", r.names, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *rebuilder) decl(e Declaration) (ir.Declaration, error) {
	switch e.Kind {
	case ir.DeclQuotient:
		return ir.MkQuotient(), nil
	case ir.DeclInductive:
		params, err := r.nameList(e.Params)
		if err != nil {
			return ir.Declaration{}, err
		}
		types := make([]ir.InductiveType, 0, len(e.Types))
		for _, it := range e.Types {
			n, err := ref("name", r.names, it.Name)
			if err != nil {
				return ir.Declaration{}, err
			}
			typ, err := ref("term", r.terms, it.Type)
			if err != nil {
				return ir.Declaration{}, err
			}
			out := ir.InductiveType{Name: n, Type: typ}
			for _, c := range it.Ctors {
				cn, err := ref("name", r.names, c.Name)
				if err != nil {
					return ir.Declaration{}, err
				}
				ct, err := ref("term", r.terms, c.Type)
				if err != nil {
					return ir.Declaration{}, err
				}
				out.Ctors = append(out.Ctors, ir.Constructor{Name: cn, Type: ct})
			}
			types = append(types, out)
		}
		return ir.MkInductive(params, e.NumParams, types, e.Recursive), nil
	case ir.DeclAxiom, ir.DeclDefinition, ir.DeclTheorem, ir.DeclOpaque:
	default:
		return ir.Declaration{}, fmt.Errorf("snapshot: unknown declaration kind %d", e.Kind)
	}

	n, err := ref("name", r.names, e.Name)
	if err != nil {
		return ir.Declaration{}, err
	}
	params, err := r.nameList(e.Params)
	if err != nil {
		return ir.Declaration{}, err
	}
	typ, err := ref("term", r.terms, e.Type)
	if err != nil {
		return ir.Declaration{}, err
	}
	if e.Kind == ir.DeclAxiom {
		return ir.MkAxiom(n, params, typ), nil
	}
	val, err := ref("term", r.terms, e.Value)
	if err != nil {
		return ir.Declaration{}, err
	}
	switch e.Kind {
	case ir.DeclDefinition:
		return ir.MkDefinition(n, params, typ, val, ir.ReducibilityHint{Kind: e.Hint, Height: e.Height}), nil
	case ir.DeclTheorem:
		return ir.MkTheorem(n, params, typ, val), nil
	default:
		return ir.MkOpaque(n, params, typ, val), nil
	}
}
