package textfmt

import (
	"bytes"
	"fmt"
	"strconv"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/bignum"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/trace"
)

// Options configures a strict decode.
type Options struct {
	// AllowAxioms accepts #AX records. Only the prelude may declare axioms.
	AllowAxioms bool
	// Version pins the expected header; empty accepts any registered grammar.
	Version string
	// Reporter receives the sticky error as a diagnostic.
	Reporter diag.Reporter
	Tracer   trace.Tracer
	// ParentSpan links the session span into an enclosing trace span.
	ParentSpan uint64
}

// State is the session state machine: Ready -> Done | Aborted.
type State uint8

const (
	StateReady State = iota
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Session owns the tables and output of one strict decode.
type Session struct {
	opts    Options
	grammar *Grammar
	files   *source.FileSet
	store   *arena.Store
	decls   []ir.Declaration
	state   State
	err     *DecodeError
	records int

	cur     lineCursor
	lineNo  int
	keyword string
}

// NewSession creates a session with freshly seeded tables.
func NewSession(opts Options) *Session {
	if opts.Tracer == nil {
		opts.Tracer = trace.Nop
	}
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	return &Session{opts: opts, store: arena.NewStore()}
}

func (s *Session) Store() *arena.Store            { return s.store }
func (s *Session) Declarations() []ir.Declaration { return s.decls }
func (s *Session) State() State                   { return s.state }
func (s *Session) HadError() bool                 { return s.err != nil }
func (s *Session) Records() int                   { return s.records }
func (s *Session) Grammar() *Grammar              { return s.grammar }
func (s *Session) Files() *source.FileSet         { return s.files }

// Err returns the sticky error, or nil.
func (s *Session) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// DecodeBytes decodes in-memory text registered under name.
func DecodeBytes(name string, data []byte, opts Options) (*Session, error) {
	fs := source.NewFileSet()
	id := fs.AddVirtual(name, data)
	return Decode(fs, id, opts)
}

// Decode runs a strict session over a file of fs. The returned session is
// never nil; on error it is Aborted and its output must be discarded.
func Decode(fs *source.FileSet, id source.FileID, opts Options) (*Session, error) {
	s := NewSession(opts)
	s.files = fs
	f := fs.Get(id)
	if f == nil {
		return s, fmt.Errorf("textfmt: unknown file id %d", id)
	}
	err := s.run(f)
	return s, err
}

func (s *Session) run(f *source.File) error {
	span := trace.Begin(s.opts.Tracer, trace.ScopeSession, "decode.text", s.opts.ParentSpan)
	defer func() {
		span.WithExtra("records", strconv.Itoa(s.records)).
			WithExtra("decls", strconv.Itoa(len(s.decls))).
			End(s.state.String())
	}()

	content := f.Content
	body, ok := s.checkHeader(f.ID, content)
	if !ok {
		return s.Err()
	}
	base := uint32(len(content) - len(body)) //nolint:gosec // bounded by the FileSet
	lineNo := 1
	for len(body) > 0 {
		lineNo++
		line := body
		next := []byte(nil)
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			line, next = body[:i], body[i+1:]
		}
		if len(line) > 0 {
			s.cur.reset(f.ID, line, base)
			s.lineNo = lineNo
			if err := s.record(); err != nil {
				s.abort(err)
				return s.Err()
			}
			s.records++
		}
		base += uint32(len(line) + 1) //nolint:gosec // bounded by the FileSet
		body = next
	}
	s.state = StateDone
	return nil
}

func (s *Session) checkHeader(file source.FileID, content []byte) ([]byte, bool) {
	end := bytes.IndexByte(content, '\n')
	if end < 0 {
		s.abort(s.errorf(diag.WireVersionMismatch, source.Span{File: file, End: uint32(len(content))}, //nolint:gosec // bounded by the FileSet
			"missing format header line"))
		return nil, false
	}
	header := string(content[:end])
	sp := source.Span{File: file, End: uint32(end)} //nolint:gosec // bounded by the FileSet
	if s.opts.Version != "" && header != s.opts.Version {
		s.abort(s.errorf(diag.WireVersionMismatch, sp, "format header %q, expected %q", header, s.opts.Version))
		return nil, false
	}
	g, ok := Lookup(header)
	if !ok {
		s.abort(s.errorf(diag.WireVersionMismatch, sp, "unsupported format header %q", header))
		return nil, false
	}
	s.grammar = g
	return content[end+1:], true
}

func (s *Session) abort(err *DecodeError) {
	if s.err != nil {
		return
	}
	s.err = err
	s.state = StateAborted
	b := diag.ReportError(s.opts.Reporter, err.Code, err.Span, err.Msg)
	if err.Line > 0 && err.Span != s.cur.lineSpan() {
		b.WithNote(s.cur.lineSpan(), "in record "+s.keyword)
	}
	b.Emit()
}

func (s *Session) errorf(code diag.Code, sp source.Span, format string, args ...any) *DecodeError {
	return &DecodeError{Code: code, Span: sp, Line: s.lineNo, Msg: fmt.Sprintf(format, args...)}
}

// record dispatches one line and checks that it was fully consumed.
func (s *Session) record() *DecodeError {
	kw, sp, ok := s.cur.next()
	if !ok {
		return nil
	}
	s.keyword = kw
	kind, ok := s.grammar.Records[kw]
	if !ok {
		return s.errorf(diag.WireUnknownRecord, sp, "unknown record keyword %q", kw)
	}
	trace.Point(s.opts.Tracer, trace.ScopeNode, kw, "line "+strconv.Itoa(s.lineNo), s.opts.ParentSpan)

	var err *DecodeError
	switch kind {
	case RecName:
		err = s.nameRecord()
	case RecLevel:
		err = s.levelRecord()
	case RecTerm:
		err = s.termRecord()
	case RecAxiom:
		if !s.opts.AllowAxioms {
			return s.errorf(diag.WireAxiomRejected, sp, "axioms are only accepted in prelude mode")
		}
		err = s.axiomRecord()
	case RecDefinition:
		err = s.definitionRecord()
	case RecTheorem, RecOpaque:
		err = s.valueDeclRecord(kind)
	case RecInductive:
		err = s.inductiveRecord()
	case RecInductiveFamily:
		err = s.familyRecord()
	case RecConstructor:
		err = s.constructorRecord()
	case RecQuotient:
		s.decls = append(s.decls, ir.MkQuotient())
	}
	if err != nil {
		return err
	}
	if !s.cur.peekEmpty() {
		return s.errorf(diag.WireTrailingData, s.cur.remaining(), "record %s not fully consumed", kw)
	}
	return nil
}

// --- token readers ---

func (s *Session) token(what string) (string, source.Span, *DecodeError) {
	tok, sp, ok := s.cur.next()
	if !ok {
		return "", sp, s.errorf(diag.WireMissingToken, sp, "expected %s", what)
	}
	return tok, sp, nil
}

func (s *Session) u64(what string) (uint64, source.Span, *DecodeError) {
	tok, sp, err := s.token(what)
	if err != nil {
		return 0, sp, err
	}
	v, perr := strconv.ParseUint(tok, 10, 64)
	if perr != nil {
		return 0, sp, s.errorf(diag.WireMalformedNumber, sp, "%s: %q is not an unsigned integer", what, tok)
	}
	return v, sp, nil
}

func (s *Session) u32(what string) (uint32, *DecodeError) {
	tok, sp, err := s.token(what)
	if err != nil {
		return 0, err
	}
	v, perr := strconv.ParseUint(tok, 10, 32)
	if perr != nil {
		return 0, s.errorf(diag.WireMalformedNumber, sp, "%s: %q is not a 32-bit unsigned integer", what, tok)
	}
	return uint32(v), nil
}

func (s *Session) nameAt(idx uint64, sp source.Span, allowAnon bool) (*ir.Name, *DecodeError) {
	if !allowAnon && idx == 0 {
		return nil, s.errorf(diag.WireAnonymousName, sp, "anonymous name not allowed here")
	}
	n, ok := s.store.Names.Get(idx)
	if !ok {
		return nil, s.errorf(diag.WireNameOutOfRange, sp, "name index %d out of range (table has %d)", idx, s.store.Names.Len())
	}
	return n, nil
}

func (s *Session) nameRef(what string, allowAnon bool) (*ir.Name, *DecodeError) {
	idx, sp, err := s.u64(what)
	if err != nil {
		return nil, err
	}
	return s.nameAt(idx, sp, allowAnon)
}

func (s *Session) levelAt(idx uint64, sp source.Span) (*ir.Level, *DecodeError) {
	l, ok := s.store.Levels.Get(idx)
	if !ok {
		return nil, s.errorf(diag.WireLevelOutOfRange, sp, "level index %d out of range (table has %d)", idx, s.store.Levels.Len())
	}
	return l, nil
}

func (s *Session) levelRef(what string) (*ir.Level, *DecodeError) {
	idx, sp, err := s.u64(what)
	if err != nil {
		return nil, err
	}
	return s.levelAt(idx, sp)
}

func (s *Session) termRef(what string) (*ir.Term, *DecodeError) {
	idx, sp, err := s.u64(what)
	if err != nil {
		return nil, err
	}
	t, ok := s.store.Terms.Get(idx)
	if !ok {
		return nil, s.errorf(diag.WireTermOutOfRange, sp, "term index %d out of range (table has %d)", idx, s.store.Terms.Len())
	}
	return t, nil
}

// nameStar reads name indices to the end of the line. Anonymous entries are
// accepted, as in every list position.
func (s *Session) nameStar() ([]*ir.Name, *DecodeError) {
	var out []*ir.Name
	for !s.cur.peekEmpty() {
		n, err := s.nameRef("universe parameter", true)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Session) levelStar() ([]*ir.Level, *DecodeError) {
	var out []*ir.Level
	for !s.cur.peekEmpty() {
		l, err := s.levelRef("level")
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Session) hint() (ir.ReducibilityHint, *DecodeError) {
	tok, sp, err := s.token("reducibility hint")
	if err != nil {
		return ir.ReducibilityHint{}, err
	}
	kind, ok := s.grammar.Hints[tok]
	if !ok {
		return ir.ReducibilityHint{}, s.errorf(diag.WireUnknownHint, sp, "unknown reducibility hint %q", tok)
	}
	if kind != ir.HintRegular {
		return ir.ReducibilityHint{Kind: kind}, nil
	}
	h, err := s.u32("hint height")
	if err != nil {
		return ir.ReducibilityHint{}, err
	}
	return ir.RegularHint(h), nil
}

func (s *Session) hexStar() ([]byte, *DecodeError) {
	var out []byte
	for !s.cur.peekEmpty() {
		tok, sp, _ := s.cur.next()
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, s.errorf(diag.WireMalformedHex, sp, "%q is not a hex byte", tok)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// --- node records ---

func (s *Session) nameRecord() *DecodeError {
	tok, sp, err := s.token("name kind")
	if err != nil {
		return err
	}
	kind, ok := s.grammar.Names[tok]
	if !ok {
		return s.errorf(diag.WireUnknownNodeKind, sp, "unknown name kind %q", tok)
	}
	parent, err := s.nameRef("parent name", true)
	if err != nil {
		return err
	}
	switch kind {
	case ir.NameString:
		comp, _, err := s.token("name component")
		if err != nil {
			return err
		}
		s.store.Names.Append(ir.NameStr(parent, comp))
	case ir.NameNumeric:
		comp, _, err := s.u64("numeric name component")
		if err != nil {
			return err
		}
		s.store.Names.Append(ir.NameNum(parent, comp))
	}
	return nil
}

func (s *Session) levelRecord() *DecodeError {
	tok, sp, err := s.token("level kind")
	if err != nil {
		return err
	}
	kind, ok := s.grammar.Levels[tok]
	if !ok {
		return s.errorf(diag.WireUnknownNodeKind, sp, "unknown level kind %q", tok)
	}
	var l *ir.Level
	switch kind {
	case ir.LevelSucc:
		pred, err := s.levelRef("level")
		if err != nil {
			return err
		}
		l = ir.Succ(pred)
	case ir.LevelMax, ir.LevelIMax:
		lhs, err := s.levelRef("left level")
		if err != nil {
			return err
		}
		rhs, err := s.levelRef("right level")
		if err != nil {
			return err
		}
		if kind == ir.LevelMax {
			l = ir.Max(lhs, rhs)
		} else {
			l = ir.IMax(lhs, rhs)
		}
	case ir.LevelParam:
		n, err := s.nameRef("universe parameter", false)
		if err != nil {
			return err
		}
		l = ir.Param(n)
	default:
		return s.errorf(diag.WireUnknownNodeKind, sp, "level kind %q cannot be declared", tok)
	}
	s.store.Levels.Append(l)
	return nil
}

func (s *Session) termRecord() *DecodeError {
	tok, sp, err := s.token("term kind")
	if err != nil {
		return err
	}
	kind, ok := s.grammar.Terms[tok]
	if !ok {
		return s.errorf(diag.WireUnknownNodeKind, sp, "unknown term kind %q", tok)
	}
	t, err := s.term(kind)
	if err != nil {
		return err
	}
	s.store.Terms.Append(t)
	return nil
}

func (s *Session) term(kind ir.TermKind) (*ir.Term, *DecodeError) {
	switch kind {
	case ir.TermBVar:
		idx, _, err := s.u64("de Bruijn index")
		if err != nil {
			return nil, err
		}
		return ir.BVar(idx), nil
	case ir.TermSort:
		l, err := s.levelRef("sort level")
		if err != nil {
			return nil, err
		}
		return ir.Sort(l), nil
	case ir.TermConst:
		n, err := s.nameRef("constant name", false)
		if err != nil {
			return nil, err
		}
		ls, err := s.levelStar()
		if err != nil {
			return nil, err
		}
		return ir.Const(n, ls...), nil
	case ir.TermApp:
		fn, err := s.termRef("function")
		if err != nil {
			return nil, err
		}
		arg, err := s.termRef("argument")
		if err != nil {
			return nil, err
		}
		return ir.App(fn, arg), nil
	case ir.TermLambda, ir.TermPi:
		if _, _, err := s.token("binder info"); err != nil {
			return nil, err
		}
		n, err := s.nameRef("binder name", true)
		if err != nil {
			return nil, err
		}
		typ, err := s.termRef("binder type")
		if err != nil {
			return nil, err
		}
		body, err := s.termRef("body")
		if err != nil {
			return nil, err
		}
		if kind == ir.TermLambda {
			return ir.Lambda(n, typ, body), nil
		}
		return ir.Pi(n, typ, body), nil
	case ir.TermLet:
		n, err := s.nameRef("let name", false)
		if err != nil {
			return nil, err
		}
		typ, err := s.termRef("let type")
		if err != nil {
			return nil, err
		}
		val, err := s.termRef("let value")
		if err != nil {
			return nil, err
		}
		body, err := s.termRef("body")
		if err != nil {
			return nil, err
		}
		return ir.Let(n, typ, val, body), nil
	case ir.TermProj:
		n, err := s.nameRef("structure name", false)
		if err != nil {
			return nil, err
		}
		idx, err := s.u32("field index")
		if err != nil {
			return nil, err
		}
		val, err := s.termRef("projected term")
		if err != nil {
			return nil, err
		}
		return ir.Proj(n, uint64(idx), val), nil
	case ir.TermNatLit:
		tok, sp, err := s.token("natural literal")
		if err != nil {
			return nil, err
		}
		v, perr := bignum.ParseDecimal(tok)
		if perr != nil {
			return nil, s.errorf(diag.WireMalformedNumber, sp, "natural literal %q: %v", tok, perr)
		}
		return ir.NatLit(v), nil
	case ir.TermStrLit:
		b, err := s.hexStar()
		if err != nil {
			return nil, err
		}
		return ir.StrLit(b), nil
	}
	return nil, s.errorf(diag.WireUnknownNodeKind, s.cur.lineSpan(), "unsupported term kind %s", kind)
}

// --- declaration records ---

func (s *Session) axiomRecord() *DecodeError {
	name, err := s.nameRef("axiom name", false)
	if err != nil {
		return err
	}
	typ, err := s.termRef("axiom type")
	if err != nil {
		return err
	}
	params, err := s.nameStar()
	if err != nil {
		return err
	}
	s.decls = append(s.decls, ir.MkAxiom(name, params, typ))
	return nil
}

func (s *Session) definitionRecord() *DecodeError {
	name, err := s.nameRef("definition name", false)
	if err != nil {
		return err
	}
	typ, err := s.termRef("definition type")
	if err != nil {
		return err
	}
	val, err := s.termRef("definition value")
	if err != nil {
		return err
	}
	h, err := s.hint()
	if err != nil {
		return err
	}
	params, err := s.nameStar()
	if err != nil {
		return err
	}
	s.decls = append(s.decls, ir.MkDefinition(name, params, typ, val, h))
	return nil
}

func (s *Session) valueDeclRecord(kind RecordKind) *DecodeError {
	name, err := s.nameRef("declaration name", false)
	if err != nil {
		return err
	}
	typ, err := s.termRef("declaration type")
	if err != nil {
		return err
	}
	val, err := s.termRef("declaration value")
	if err != nil {
		return err
	}
	params, err := s.nameStar()
	if err != nil {
		return err
	}
	if kind == RecTheorem {
		s.decls = append(s.decls, ir.MkTheorem(name, params, typ, val))
	} else {
		s.decls = append(s.decls, ir.MkOpaque(name, params, typ, val))
	}
	return nil
}

func (s *Session) constructorRecord() *DecodeError {
	name, err := s.nameRef("constructor name", false)
	if err != nil {
		return err
	}
	typ, err := s.termRef("constructor type")
	if err != nil {
		return err
	}
	parent, err := s.nameRef("parent inductive", false)
	if err != nil {
		return err
	}
	idx, _, err := s.u64("constructor index")
	if err != nil {
		return err
	}
	numParams, _, err := s.u64("parameter count")
	if err != nil {
		return err
	}
	numFields, _, err := s.u64("field count")
	if err != nil {
		return err
	}
	params, err := s.nameStar()
	if err != nil {
		return err
	}
	s.store.Ctors.Insert(name, ir.ConstructorRecord{
		Constructor: ir.Constructor{Name: name, Type: typ},
		Inductive:   parent,
		Index:       idx,
		NumParams:   numParams,
		NumFields:   numFields,
		Params:      params,
	})
	return nil
}

func (s *Session) inductiveRecord() *DecodeError {
	name, err := s.nameRef("inductive name", false)
	if err != nil {
		return err
	}
	typ, err := s.termRef("inductive type")
	if err != nil {
		return err
	}
	n, _, err := s.u64("constructor count")
	if err != nil {
		return err
	}
	ctors := make([]ir.Constructor, 0, min(n, 16))
	for i := uint64(0); i < n; i++ {
		idx, sp, err := s.u64("constructor name")
		if err != nil {
			return err
		}
		cn, err := s.nameAt(idx, sp, true)
		if err != nil {
			return err
		}
		rec, ok := s.store.Ctors.Lookup(cn)
		if !ok {
			return s.errorf(diag.WireUnknownConstructor, sp, "constructor %s was not declared", cn)
		}
		ctors = append(ctors, rec.Constructor)
	}
	s.store.Inductives.Insert(name, ir.InductiveType{Name: name, Type: typ, Ctors: ctors})
	return nil
}

func (s *Session) familyRecord() *DecodeError {
	numParams, _, err := s.u64("parameter count")
	if err != nil {
		return err
	}
	n, _, err := s.u64("inductive count")
	if err != nil {
		return err
	}
	types := make([]ir.InductiveType, 0, min(n, 16))
	for i := uint64(0); i < n; i++ {
		idx, sp, err := s.u64("inductive name")
		if err != nil {
			return err
		}
		in, err := s.nameAt(idx, sp, true)
		if err != nil {
			return err
		}
		ind, ok := s.store.Inductives.Lookup(in)
		if !ok {
			return s.errorf(diag.WireUnknownInductive, sp, "inductive %s was not declared", in)
		}
		types = append(types, ind)
	}
	params, err := s.nameStar()
	if err != nil {
		return err
	}
	s.decls = append(s.decls, ir.MkInductive(params, numParams, types, false))
	return nil
}
