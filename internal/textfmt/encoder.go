package textfmt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"fortio.org/safecast"

	"kernelfuzz/internal/ir"
)

// ErrUnencodable reports IR that has no text form in the grammar.
var ErrUnencodable = errors.New("textfmt: unencodable")

// Encoder writes declarations in the strict text format. Names, levels and
// terms are emitted once each, keyed by their structural digest, so shared
// subterms stay shared on the wire.
type Encoder struct {
	w       io.Writer
	g       *Grammar
	buf     bytes.Buffer
	started bool
	err     error

	names  map[ir.Digest]uint64
	levels map[ir.Digest]uint64
	terms  map[ir.Digest]uint64
	nTerms uint64

	ctors      map[ir.Digest]ir.ConstructorRecord
	inductives map[ir.Digest]ir.InductiveType
}

// NewEncoder writes the latest grammar to w.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderFor(w, Latest())
}

// NewEncoderFor writes grammar g to w.
func NewEncoderFor(w io.Writer, g *Grammar) *Encoder {
	return &Encoder{
		w:          w,
		g:          g,
		names:      map[ir.Digest]uint64{ir.Anonymous().Digest(): 0},
		levels:     map[ir.Digest]uint64{ir.Zero().Digest(): 0},
		terms:      map[ir.Digest]uint64{},
		ctors:      map[ir.Digest]ir.ConstructorRecord{},
		inductives: map[ir.Digest]ir.InductiveType{},
	}
}

// Encode renders decls as a complete prelude text.
func Encode(decls []ir.Declaration) ([]byte, error) {
	var out bytes.Buffer
	enc := NewEncoder(&out)
	for i := range decls {
		if err := enc.Declaration(decls[i]); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Flush writes the header (if nothing else was written) and pending records.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	e.begin()
	if e.buf.Len() == 0 {
		return nil
	}
	_, err := e.w.Write(e.buf.Bytes())
	e.buf.Reset()
	if err != nil {
		e.err = err
	}
	return err
}

func (e *Encoder) begin() {
	if !e.started {
		e.buf.WriteString(e.g.Header())
		e.started = true
	}
}

func (e *Encoder) fail(format string, args ...any) error {
	e.err = fmt.Errorf("%w: %s", ErrUnencodable, fmt.Sprintf(format, args...))
	return e.err
}

// line appends one record. Fields are joined by single spaces.
func (e *Encoder) line(kind RecordKind, fields ...string) {
	e.buf.WriteString(e.g.recordKeyword(kind))
	for _, f := range fields {
		e.buf.WriteByte(' ')
		e.buf.WriteString(f)
	}
	e.buf.WriteByte('\n')
}

func u64s(v uint64) string { return strconv.FormatUint(v, 10) }

// Declaration appends d. After an error the encoder is unusable.
func (e *Encoder) Declaration(d ir.Declaration) error {
	if e.err != nil {
		return e.err
	}
	e.begin()
	switch d.Kind {
	case ir.DeclAxiom:
		head, err := e.declHead(d)
		if err != nil {
			return err
		}
		e.line(RecAxiom, append(head, e.paramRefs(d.Params)...)...)
	case ir.DeclDefinition:
		head, err := e.declHead(d)
		if err != nil {
			return err
		}
		v, err := e.term(d.Value)
		if err != nil {
			return err
		}
		fields := append(head, v)
		fields = append(fields, e.hint(d.Hint)...)
		e.line(RecDefinition, append(fields, e.paramRefs(d.Params)...)...)
	case ir.DeclTheorem, ir.DeclOpaque:
		head, err := e.declHead(d)
		if err != nil {
			return err
		}
		v, err := e.term(d.Value)
		if err != nil {
			return err
		}
		kind := RecTheorem
		if d.Kind == ir.DeclOpaque {
			kind = RecOpaque
		}
		fields := append(head, v)
		e.line(kind, append(fields, e.paramRefs(d.Params)...)...)
	case ir.DeclInductive:
		return e.inductive(d)
	case ir.DeclQuotient:
		e.line(RecQuotient)
	default:
		return e.fail("declaration kind %s", d.Kind)
	}
	return e.err
}

// declHead emits name and type and returns their references.
func (e *Encoder) declHead(d ir.Declaration) ([]string, error) {
	if d.Name.IsAnonymous() {
		return nil, e.fail("%s with anonymous name", d.Kind)
	}
	n, err := e.name(d.Name)
	if err != nil {
		return nil, err
	}
	t, err := e.term(d.Type)
	if err != nil {
		return nil, err
	}
	return []string{n, t}, nil
}

// paramRefs emits universe parameter names; e.err carries any failure.
func (e *Encoder) paramRefs(params []*ir.Name) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		ref, err := e.name(p)
		if err != nil {
			return nil
		}
		out = append(out, ref)
	}
	return out
}

func (e *Encoder) hint(h ir.ReducibilityHint) []string {
	kw := e.g.hintKeyword(h.Kind)
	if h.Kind == ir.HintRegular {
		return []string{kw, strconv.FormatUint(uint64(h.Height), 10)}
	}
	return []string{kw}
}

func (e *Encoder) inductive(d ir.Declaration) error {
	params := e.paramRefs(d.Params)
	if e.err != nil {
		return e.err
	}
	indRefs := make([]string, 0, len(d.Types))
	for _, t := range d.Types {
		if t.Name.IsAnonymous() {
			return e.fail("inductive type with anonymous name")
		}
		if prev, ok := e.inductives[t.Name.Digest()]; ok {
			if !prev.Equal(t) {
				return e.fail("inductive %s redefined", t.Name)
			}
			ref, _ := e.name(t.Name)
			indRefs = append(indRefs, ref)
			continue
		}
		indRef, err := e.name(t.Name)
		if err != nil {
			return err
		}
		ctorRefs := make([]string, 0, len(t.Ctors))
		for i, c := range t.Ctors {
			ref, err := e.constructor(ir.ConstructorRecord{
				Constructor: c,
				Inductive:   t.Name,
				Index:       uint64(i),
				NumParams:   d.NumParams,
				NumFields:   fieldCount(c.Type, d.NumParams),
				Params:      d.Params,
			})
			if err != nil {
				return err
			}
			ctorRefs = append(ctorRefs, ref)
		}
		typ, err := e.term(t.Type)
		if err != nil {
			return err
		}
		fields := []string{indRef, typ, u64s(uint64(len(t.Ctors)))}
		e.line(RecInductive, append(fields, ctorRefs...)...)
		e.inductives[t.Name.Digest()] = t
		indRefs = append(indRefs, indRef)
	}
	fields := []string{u64s(d.NumParams), u64s(uint64(len(d.Types)))}
	fields = append(fields, indRefs...)
	e.line(RecInductiveFamily, append(fields, params...)...)
	return nil
}

func (e *Encoder) constructor(rec ir.ConstructorRecord) (string, error) {
	if rec.Name.IsAnonymous() {
		return "", e.fail("constructor of %s with anonymous name", rec.Inductive)
	}
	ref, err := e.name(rec.Name)
	if err != nil {
		return "", err
	}
	if prev, ok := e.ctors[rec.Name.Digest()]; ok {
		if !prev.Constructor.Equal(rec.Constructor) || !prev.Inductive.Equal(rec.Inductive) || prev.Index != rec.Index {
			return "", e.fail("constructor %s redefined", rec.Name)
		}
		return ref, nil
	}
	typ, err := e.term(rec.Type)
	if err != nil {
		return "", err
	}
	parent, err := e.name(rec.Inductive)
	if err != nil {
		return "", err
	}
	fields := []string{ref, typ, parent, u64s(rec.Index), u64s(rec.NumParams), u64s(rec.NumFields)}
	e.line(RecConstructor, append(fields, e.paramRefs(rec.Params)...)...)
	e.ctors[rec.Name.Digest()] = rec
	return ref, e.err
}

// fieldCount is the number of leading binders of a constructor type past
// its parameters.
func fieldCount(t *ir.Term, numParams uint64) uint64 {
	var n uint64
	for t != nil && t.Kind() == ir.TermPi {
		n++
		t = t.Body()
	}
	if n < numParams {
		return 0
	}
	return n - numParams
}

func validComponent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if isSpace(s[i]) || s[i] == '\n' {
			return false
		}
	}
	return true
}

func (e *Encoder) name(n *ir.Name) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if idx, ok := e.names[n.Digest()]; ok {
		return u64s(idx), nil
	}
	parent, err := e.name(n.Parent())
	if err != nil {
		return "", err
	}
	switch n.Kind() {
	case ir.NameString:
		if !validComponent(n.Str()) {
			return "", e.fail("name component %q", n.Str())
		}
		e.line(RecName, e.g.nameKeyword(ir.NameString), parent, n.Str())
	case ir.NameNumeric:
		e.line(RecName, e.g.nameKeyword(ir.NameNumeric), parent, u64s(n.Num()))
	}
	idx := uint64(len(e.names))
	e.names[n.Digest()] = idx
	return u64s(idx), nil
}

func (e *Encoder) level(l *ir.Level) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if idx, ok := e.levels[l.Digest()]; ok {
		return u64s(idx), nil
	}
	switch l.Kind() {
	case ir.LevelSucc:
		p, err := e.level(l.Pred())
		if err != nil {
			return "", err
		}
		e.line(RecLevel, e.g.levelKeyword(ir.LevelSucc), p)
	case ir.LevelMax, ir.LevelIMax:
		a, err := e.level(l.Lhs())
		if err != nil {
			return "", err
		}
		b, err := e.level(l.Rhs())
		if err != nil {
			return "", err
		}
		e.line(RecLevel, e.g.levelKeyword(l.Kind()), a, b)
	case ir.LevelParam:
		if l.ParamName().IsAnonymous() {
			return "", e.fail("universe parameter with anonymous name")
		}
		n, err := e.name(l.ParamName())
		if err != nil {
			return "", err
		}
		e.line(RecLevel, e.g.levelKeyword(ir.LevelParam), n)
	}
	idx := uint64(len(e.levels))
	e.levels[l.Digest()] = idx
	return u64s(idx), nil
}

func (e *Encoder) term(t *ir.Term) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	if t == nil {
		return "", e.fail("missing term")
	}
	if idx, ok := e.terms[t.Digest()]; ok {
		return u64s(idx), nil
	}
	kw := e.g.termKeyword(t.Kind())
	var fields []string
	switch t.Kind() {
	case ir.TermBVar:
		fields = []string{kw, u64s(t.BVarIndex())}
	case ir.TermSort:
		l, err := e.level(t.SortLevel())
		if err != nil {
			return "", err
		}
		fields = []string{kw, l}
	case ir.TermConst:
		if t.ConstName().IsAnonymous() {
			return "", e.fail("constant with anonymous name")
		}
		n, err := e.name(t.ConstName())
		if err != nil {
			return "", err
		}
		fields = []string{kw, n}
		for _, l := range t.ConstLevels() {
			ref, err := e.level(l)
			if err != nil {
				return "", err
			}
			fields = append(fields, ref)
		}
	case ir.TermApp:
		fn, err := e.term(t.AppFn())
		if err != nil {
			return "", err
		}
		arg, err := e.term(t.AppArg())
		if err != nil {
			return "", err
		}
		fields = []string{kw, fn, arg}
	case ir.TermLambda, ir.TermPi:
		n, err := e.name(t.BinderName())
		if err != nil {
			return "", err
		}
		typ, err := e.term(t.BinderType())
		if err != nil {
			return "", err
		}
		body, err := e.term(t.Body())
		if err != nil {
			return "", err
		}
		fields = []string{kw, e.g.BinderInfo, n, typ, body}
	case ir.TermLet:
		if t.BinderName().IsAnonymous() {
			return "", e.fail("let binder with anonymous name")
		}
		n, err := e.name(t.BinderName())
		if err != nil {
			return "", err
		}
		typ, err := e.term(t.BinderType())
		if err != nil {
			return "", err
		}
		val, err := e.term(t.LetValue())
		if err != nil {
			return "", err
		}
		body, err := e.term(t.Body())
		if err != nil {
			return "", err
		}
		fields = []string{kw, n, typ, val, body}
	case ir.TermProj:
		if t.ProjStruct().IsAnonymous() {
			return "", e.fail("projection with anonymous structure name")
		}
		idx, err := safecast.Conv[uint32](t.ProjIndex())
		if err != nil {
			return "", e.fail("projection index %d", t.ProjIndex())
		}
		n, err := e.name(t.ProjStruct())
		if err != nil {
			return "", err
		}
		val, err := e.term(t.ProjValue())
		if err != nil {
			return "", err
		}
		fields = []string{kw, n, strconv.FormatUint(uint64(idx), 10), val}
	case ir.TermNatLit:
		fields = []string{kw, t.Nat().String()}
	case ir.TermStrLit:
		fields = make([]string, 0, len(t.Str())+1)
		fields = append(fields, kw)
		for _, b := range t.Str() {
			fields = append(fields, hexByte(b))
		}
	default:
		return "", e.fail("term kind %s", t.Kind())
	}
	e.line(RecTerm, fields...)
	idx := e.nTerms
	e.nTerms++
	e.terms[t.Digest()] = idx
	return u64s(idx), nil
}

func hexByte(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}
