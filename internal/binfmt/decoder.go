package binfmt

import (
	"strconv"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/bignum"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/trace"
)

// Record opcodes, taken modulo numOps.
const (
	opLevel uint8 = iota
	opTerm
	opDefinition
	opTheorem
	opInductive
	opFamily
	opConstructor
	opName
	numOps
)

var (
	nameOps  = [...]ir.NameKind{ir.NameString, ir.NameNumeric}
	levelOps = [...]ir.LevelKind{ir.LevelSucc, ir.LevelMax, ir.LevelIMax, ir.LevelParam}
	termOps  = [...]ir.TermKind{
		ir.TermBVar, ir.TermSort, ir.TermConst, ir.TermApp, ir.TermLambda,
		ir.TermPi, ir.TermLet, ir.TermProj, ir.TermNatLit, ir.TermStrLit,
	}
	hintOps = [...]ir.HintKind{ir.HintOpaque, ir.HintAbbrev, ir.HintRegular}
)

// Options configures a lenient decode.
type Options struct {
	// Pool resolves string name components. A nil or empty pool yields the
	// placeholder component.
	Pool       *strpool.Pool
	Tracer     trace.Tracer
	ParentSpan uint64
}

// Stats counts how often leniency kicked in.
type Stats struct {
	Records   int `json:"records"`
	Overruns  int `json:"overruns"`
	Wrapped   int `json:"wrapped"`
	Fallbacks int `json:"fallbacks"`
}

// Session owns the tables and output of one lenient decode.
type Session struct {
	opts    Options
	cur     *Cursor
	store   *arena.Store
	decls   []ir.Declaration
	stats   Stats
	tracing bool
	probed  bool
}

// Decode runs a lenient session over data. It always succeeds.
func Decode(data []byte, opts Options) *Session {
	s := newSession(data, opts)
	span := trace.Begin(s.opts.Tracer, trace.ScopeSession, "decode.bin", s.opts.ParentSpan)
	for s.cur.Remaining() > 0 {
		s.step()
	}
	span.WithExtra("records", strconv.Itoa(s.stats.Records)).
		WithExtra("wrapped", strconv.Itoa(s.stats.Wrapped)).
		WithExtra("fallbacks", strconv.Itoa(s.stats.Fallbacks)).
		End("")
	return s
}

func newSession(data []byte, opts Options) *Session {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	if opts.Pool == nil {
		opts.Pool = strpool.New()
	}
	return &Session{
		opts:    opts,
		cur:     NewCursor(data),
		store:   arena.NewStore(),
		tracing: opts.Tracer.Enabled() && opts.Tracer.Level().ShouldEmit(trace.ScopeNode),
	}
}

// step decodes one record.
func (s *Session) step() {
	before := s.cur.Overruns()
	s.record()
	if s.cur.Overruns() > before {
		s.fault("read over the end", uint64(s.stats.Records))
	}
	s.stats.Records++
	s.stats.Overruns = s.cur.Overruns()
}

func (s *Session) Store() *arena.Store            { return s.store }
func (s *Session) Declarations() []ir.Declaration { return s.decls }
func (s *Session) Stats() Stats                   { return s.stats }

func (s *Session) fault(what string, idx uint64) {
	if s.tracing {
		trace.Point(s.opts.Tracer, trace.ScopeNode, what, strconv.FormatUint(idx, 10), s.opts.ParentSpan)
	}
}

// AddFalseProbe appends `theorem foo : False := <last term>`. If a kernel
// admits the whole sequence, the input proved False. It reports false when no
// term was decoded or the probe was already added.
func (s *Session) AddFalseProbe() bool {
	proof, ok := s.store.Terms.Last()
	if !ok || s.probed {
		return false
	}
	s.probed = true
	falseType := ir.Const(ir.NameStr(ir.Anonymous(), "False"))
	s.decls = append(s.decls, ir.MkTheorem(ir.NameStr(ir.Anonymous(), "foo"), nil, falseType, proof))
	return true
}

func (s *Session) record() {
	switch s.cur.U8() % numOps {
	case opLevel:
		s.level()
	case opTerm:
		s.term()
	case opDefinition:
		s.definition()
	case opTheorem:
		s.theorem()
	case opInductive:
		s.inductive()
	case opFamily:
		s.family()
	case opConstructor:
		s.constructor()
	case opName:
		s.name()
	}
}

// --- references ---

func (s *Session) nameRef(allowAnon bool) *ir.Name {
	raw := uint64(s.cur.U16())
	if raw >= uint64(s.store.Names.Len()) {
		s.stats.Wrapped++
		s.fault("bad name index", raw)
	}
	idx := s.store.Names.WrapIndex(raw)
	if idx == 0 && !allowAnon {
		s.stats.Fallbacks++
		return arena.PlaceholderName
	}
	n, _ := s.store.Names.Get(idx)
	return n
}

func (s *Session) levelRef() *ir.Level {
	raw := uint64(s.cur.U16())
	if raw >= uint64(s.store.Levels.Len()) {
		s.stats.Wrapped++
		s.fault("bad level index", raw)
	}
	return s.store.Levels.Wrap(raw)
}

func (s *Session) termRef() *ir.Term {
	raw := uint64(s.cur.U16())
	if s.store.Terms.Len() == 0 {
		s.stats.Fallbacks++
		s.fault("term reference into empty table", raw)
		return arena.FallbackTerm
	}
	if raw >= uint64(s.store.Terms.Len()) {
		s.stats.Wrapped++
		s.fault("bad term index", raw)
	}
	return s.store.Terms.Wrap(raw)
}

// objs reads a u8 count of u16 references into tbl. Entries are wrapped, so
// anonymous names are allowed.
func objs[T any](s *Session, tbl *arena.Table[T]) []T {
	n := int(s.cur.U8())
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for range n {
		raw := uint64(s.cur.U16())
		if raw >= uint64(tbl.Len()) {
			s.stats.Wrapped++
		}
		out = append(out, tbl.Wrap(raw))
	}
	return out
}

func (s *Session) names() []*ir.Name   { return objs(s, s.store.Names) }
func (s *Session) levels() []*ir.Level { return objs(s, s.store.Levels) }

func (s *Session) hint() ir.ReducibilityHint {
	kind := hintOps[int(s.cur.U8())%len(hintOps)]
	if kind == ir.HintRegular {
		return ir.RegularHint(s.cur.U32())
	}
	return ir.ReducibilityHint{Kind: kind}
}

// --- fallbacks ---

func (s *Session) anyName() *ir.Name {
	if s.store.Names.Len() > 1 {
		n, _ := s.store.Names.Last()
		return n
	}
	return arena.PlaceholderName
}

func (s *Session) anyTerm() *ir.Term {
	if t, ok := s.store.Terms.Last(); ok {
		return t
	}
	return arena.FallbackTerm
}

func (s *Session) anyConstructor() ir.Constructor {
	return ir.Constructor{Name: s.anyName(), Type: s.anyTerm()}
}

func (s *Session) anyInductive() ir.InductiveType {
	return ir.InductiveType{Name: s.anyName(), Type: s.anyTerm(), Ctors: []ir.Constructor{s.anyConstructor()}}
}

// --- node records ---

func (s *Session) name() {
	kind := nameOps[int(s.cur.U8())%len(nameOps)]
	parent := s.nameRef(true)
	if kind == ir.NameString {
		s.store.Names.Append(ir.NameStr(parent, s.opts.Pool.Lookup(s.cur.U16())))
		return
	}
	s.store.Names.Append(ir.NameNum(parent, uint64(s.cur.U16())))
}

func (s *Session) level() {
	var l *ir.Level
	switch kind := levelOps[int(s.cur.U8())%len(levelOps)]; kind {
	case ir.LevelSucc:
		l = ir.Succ(s.levelRef())
	case ir.LevelMax:
		lhs := s.levelRef()
		l = ir.Max(lhs, s.levelRef())
	case ir.LevelIMax:
		lhs := s.levelRef()
		l = ir.IMax(lhs, s.levelRef())
	default:
		l = ir.Param(s.nameRef(false))
	}
	s.store.Levels.Append(l)
}

func (s *Session) term() {
	var t *ir.Term
	switch kind := termOps[int(s.cur.U8())%len(termOps)]; kind {
	case ir.TermBVar:
		t = ir.BVar(uint64(s.cur.U16()))
	case ir.TermSort:
		t = ir.Sort(s.levelRef())
	case ir.TermConst:
		n := s.nameRef(false)
		t = ir.Const(n, s.levels()...)
	case ir.TermApp:
		fn := s.termRef()
		t = ir.App(fn, s.termRef())
	case ir.TermLambda, ir.TermPi:
		n := s.nameRef(true)
		typ := s.termRef()
		body := s.termRef()
		if kind == ir.TermLambda {
			t = ir.Lambda(n, typ, body)
		} else {
			t = ir.Pi(n, typ, body)
		}
	case ir.TermLet:
		n := s.nameRef(false)
		typ := s.termRef()
		val := s.termRef()
		t = ir.Let(n, typ, val, s.termRef())
	case ir.TermProj:
		n := s.nameRef(false)
		idx := uint64(s.cur.U16())
		t = ir.Proj(n, idx, s.termRef())
	case ir.TermNatLit:
		digits := s.cur.Bytes(int(s.cur.U8()))
		v, err := bignum.UintFromBytesBE(digits)
		if err != nil {
			s.stats.Fallbacks++
			v = bignum.UintZero()
		}
		t = ir.NatLit(v)
	case ir.TermStrLit:
		t = ir.StrLit(s.cur.Bytes(int(s.cur.U8())))
	}
	s.store.Terms.Append(t)
}

// --- declaration records ---

func (s *Session) definition() {
	name := s.nameRef(false)
	typ := s.termRef()
	val := s.termRef()
	h := s.hint()
	s.decls = append(s.decls, ir.MkDefinition(name, s.names(), typ, val, h))
}

func (s *Session) theorem() {
	name := s.nameRef(false)
	typ := s.termRef()
	val := s.termRef()
	s.decls = append(s.decls, ir.MkTheorem(name, s.names(), typ, val))
}

func (s *Session) constructor() {
	name := s.nameRef(false)
	typ := s.termRef()
	s.store.Ctors.Insert(name, ir.ConstructorRecord{
		Constructor: ir.Constructor{Name: name, Type: typ},
		Inductive:   ir.Anonymous(),
	})
}

func (s *Session) inductive() {
	name := s.nameRef(false)
	typ := s.termRef()
	ctorNames := s.names()
	ctors := make([]ir.Constructor, 0, len(ctorNames))
	for _, cn := range ctorNames {
		rec, ok := s.store.Ctors.Lookup(cn)
		if !ok {
			s.stats.Fallbacks++
			s.fault("constructor fallback", uint64(len(ctors)))
			ctors = append(ctors, s.anyConstructor())
			continue
		}
		ctors = append(ctors, rec.Constructor)
	}
	s.store.Inductives.Insert(name, ir.InductiveType{Name: name, Type: typ, Ctors: ctors})
}

func (s *Session) family() {
	numParams := uint64(s.cur.U8())
	indNames := s.names()
	params := s.names()
	types := make([]ir.InductiveType, 0, len(indNames))
	for _, in := range indNames {
		ind, ok := s.store.Inductives.Lookup(in)
		if !ok {
			s.stats.Fallbacks++
			s.fault("inductive fallback", uint64(len(types)))
			types = append(types, s.anyInductive())
			continue
		}
		types = append(types, ind)
	}
	s.decls = append(s.decls, ir.MkInductive(params, numParams, types, false))
}
