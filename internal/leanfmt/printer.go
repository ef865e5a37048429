// Package leanfmt renders a decoded session as Lean 4 source that rebuilds
// the same kernel objects, one definition per table entry.
package leanfmt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/ir"
)

// Printer emits definitions in dependency order. Nodes that are not in the
// session tables (lenient fallbacks, probe declarations) get definitions
// of their own the first time they are referenced.
type Printer struct {
	w   *bufio.Writer
	err error

	names  map[ir.Digest]string
	levels map[ir.Digest]string
	terms  map[ir.Digest]string
	ctors  map[ir.Digest]string
	inds   map[ir.Digest]string

	nNames, nLevels, nTerms, nCtors, nInds, nDecls int
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      bufio.NewWriter(w),
		names:  map[ir.Digest]string{},
		levels: map[ir.Digest]string{},
		terms:  map[ir.Digest]string{},
		ctors:  map[ir.Digest]string{},
		inds:   map[ir.Digest]string{},
	}
}

// Print renders store and decls to w.
func Print(w io.Writer, store *arena.Store, decls []ir.Declaration) error {
	p := NewPrinter(w)
	p.Header()
	p.Store(store)
	for _, d := range decls {
		p.Declaration(d)
	}
	return p.Flush()
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) Flush() error {
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}

func (p *Printer) Header() {
	p.printf("import Lean\nopen Lean\n\n")
}

// Store emits every table entry in index order, then the side tables.
func (p *Printer) Store(s *arena.Store) {
	for _, n := range s.Names.Data() {
		p.defineName(n)
	}
	for _, l := range s.Levels.Data() {
		p.defineLevel(l)
	}
	for _, t := range s.Terms.Data() {
		p.defineTerm(t)
	}
	for _, c := range s.Ctors.Values() {
		p.constructor(c.Constructor)
	}
	for _, ind := range s.Inductives.Values() {
		p.inductive(ind)
	}
}

// --- names, levels, terms ---

func (p *Printer) name(n *ir.Name) string {
	if ref, ok := p.names[n.Digest()]; ok {
		return ref
	}
	return p.defineName(n)
}

func (p *Printer) defineName(n *ir.Name) string {
	ref := "name_" + strconv.Itoa(p.nNames)
	var rhs string
	switch n.Kind() {
	case ir.NameAnonymous:
		rhs = ".anonymous"
	case ir.NameString:
		rhs = fmt.Sprintf(".str %s %s", p.name(n.Parent()), strconv.Quote(n.Str()))
	case ir.NameNumeric:
		rhs = fmt.Sprintf(".num %s %d", p.name(n.Parent()), n.Num())
	}
	p.nNames++
	if _, seen := p.names[n.Digest()]; !seen {
		p.names[n.Digest()] = ref
	}
	p.printf("def %s : Lean.Name := %s\n", ref, rhs)
	return ref
}

func (p *Printer) level(l *ir.Level) string {
	if ref, ok := p.levels[l.Digest()]; ok {
		return ref
	}
	return p.defineLevel(l)
}

func (p *Printer) defineLevel(l *ir.Level) string {
	var rhs string
	switch l.Kind() {
	case ir.LevelZero:
		rhs = ".zero"
	case ir.LevelSucc:
		rhs = ".succ " + p.level(l.Pred())
	case ir.LevelMax:
		rhs = fmt.Sprintf(".max %s %s", p.level(l.Lhs()), p.level(l.Rhs()))
	case ir.LevelIMax:
		rhs = fmt.Sprintf(".imax %s %s", p.level(l.Lhs()), p.level(l.Rhs()))
	case ir.LevelParam:
		rhs = ".param " + p.name(l.ParamName())
	}
	ref := "level_" + strconv.Itoa(p.nLevels)
	p.nLevels++
	if _, seen := p.levels[l.Digest()]; !seen {
		p.levels[l.Digest()] = ref
	}
	p.printf("def %s : Lean.Level := %s\n", ref, rhs)
	return ref
}

func (p *Printer) term(t *ir.Term) string {
	if t == nil {
		// declarations built by hand may leave a slot empty
		t = arena.FallbackTerm
	}
	if ref, ok := p.terms[t.Digest()]; ok {
		return ref
	}
	return p.defineTerm(t)
}

func (p *Printer) defineTerm(t *ir.Term) string {
	var rhs string
	switch t.Kind() {
	case ir.TermBVar:
		rhs = fmt.Sprintf(".bvar %d", t.BVarIndex())
	case ir.TermSort:
		rhs = ".sort " + p.level(t.SortLevel())
	case ir.TermConst:
		ls := make([]string, 0, len(t.ConstLevels()))
		for _, l := range t.ConstLevels() {
			ls = append(ls, p.level(l))
		}
		rhs = fmt.Sprintf(".const %s [%s]", p.name(t.ConstName()), strings.Join(ls, ", "))
	case ir.TermApp:
		fn := p.term(t.AppFn())
		rhs = fmt.Sprintf(".app %s %s", fn, p.term(t.AppArg()))
	case ir.TermLambda, ir.TermPi:
		head := ".lam"
		if t.Kind() == ir.TermPi {
			head = ".forallE"
		}
		n := p.name(t.BinderName())
		typ := p.term(t.BinderType())
		rhs = fmt.Sprintf("%s %s %s %s .default", head, n, typ, p.term(t.Body()))
	case ir.TermLet:
		n := p.name(t.BinderName())
		typ := p.term(t.BinderType())
		val := p.term(t.LetValue())
		rhs = fmt.Sprintf(".letE %s %s %s %s false", n, typ, val, p.term(t.Body()))
	case ir.TermProj:
		n := p.name(t.ProjStruct())
		rhs = fmt.Sprintf(".proj %s %d %s", n, t.ProjIndex(), p.term(t.ProjValue()))
	case ir.TermNatLit:
		rhs = fmt.Sprintf(".lit (.natVal %s)", t.Nat())
	case ir.TermStrLit:
		rhs = fmt.Sprintf(".lit (.strVal %s)", strconv.Quote(string(t.Str())))
	}
	ref := "expr_" + strconv.Itoa(p.nTerms)
	p.nTerms++
	if _, seen := p.terms[t.Digest()]; !seen {
		p.terms[t.Digest()] = ref
	}
	p.printf("def %s : Lean.Expr := %s\n", ref, rhs)
	return ref
}

// --- constructors and inductive types ---

func ctorKey(c ir.Constructor) ir.Digest {
	return ir.SumInput(digestBytes(c.Name.Digest()), digestBytes(c.Type.Digest()))
}

func digestBytes(d ir.Digest) []byte { return d[:] }

func (p *Printer) constructor(c ir.Constructor) string {
	key := ctorKey(c)
	if ref, ok := p.ctors[key]; ok {
		return ref
	}
	n, typ := p.name(c.Name), p.term(c.Type)
	ref := "constructor_" + strconv.Itoa(p.nCtors)
	p.nCtors++
	p.ctors[key] = ref
	p.printf("def %s : Lean.Constructor where\n  name := %s\n  type := %s\n", ref, n, typ)
	return ref
}

func inductiveKey(ind ir.InductiveType) ir.Digest {
	parts := [][]byte{digestBytes(ind.Name.Digest()), digestBytes(ind.Type.Digest())}
	for _, c := range ind.Ctors {
		k := ctorKey(c)
		parts = append(parts, k[:])
	}
	return ir.SumInput(parts...)
}

func (p *Printer) inductive(ind ir.InductiveType) string {
	key := inductiveKey(ind)
	if ref, ok := p.inds[key]; ok {
		return ref
	}
	n, typ := p.name(ind.Name), p.term(ind.Type)
	ctors := make([]string, 0, len(ind.Ctors))
	for _, c := range ind.Ctors {
		ctors = append(ctors, p.constructor(c))
	}
	ref := "inductive_" + strconv.Itoa(p.nInds)
	p.nInds++
	p.inds[key] = ref
	p.printf("def %s : Lean.InductiveType where\n  name := %s\n  type := %s\n  ctors := [%s]\n",
		ref, n, typ, strings.Join(ctors, ", "))
	return ref
}

// --- declarations ---

func (p *Printer) nameList(ns []*ir.Name) string {
	refs := make([]string, 0, len(ns))
	for _, n := range ns {
		refs = append(refs, p.name(n))
	}
	return "[" + strings.Join(refs, ", ") + "]"
}

func hint(h ir.ReducibilityHint) string {
	switch h.Kind {
	case ir.HintOpaque:
		return ".opaque"
	case ir.HintAbbrev:
		return ".abbrev"
	default:
		return fmt.Sprintf("(.regular %d)", h.Height)
	}
}

// Declaration emits d as decl_N.
func (p *Printer) Declaration(d ir.Declaration) {
	ref := "decl_" + strconv.Itoa(p.nDecls)
	p.nDecls++
	switch d.Kind {
	case ir.DeclQuotient:
		p.printf("def %s : Lean.Declaration := .quotDecl\n", ref)
	case ir.DeclInductive:
		params := p.nameList(d.Params)
		inds := make([]string, 0, len(d.Types))
		for _, t := range d.Types {
			inds = append(inds, p.inductive(t))
		}
		p.printf("def %s : Lean.Declaration :=\n  .inductDecl %s %d [%s] %t\n",
			ref, params, d.NumParams, strings.Join(inds, ", "), d.Recursive)
	case ir.DeclAxiom:
		n, params, typ := p.name(d.Name), p.nameList(d.Params), p.term(d.Type)
		p.printf("def %s : Lean.Declaration :=\n  .axiomDecl {\n    name := %s\n    levelParams := %s\n"+
			"    type := %s\n    isUnsafe := false\n  }\n", ref, n, params, typ)
	default:
		n, params, typ, val := p.name(d.Name), p.nameList(d.Params), p.term(d.Type), p.term(d.Value)
		var b strings.Builder
		fmt.Fprintf(&b, "    name := %s\n    levelParams := %s\n    type := %s\n    value := %s\n", n, params, typ, val)
		head := ".thmDecl"
		switch d.Kind {
		case ir.DeclDefinition:
			head = ".defnDecl"
			fmt.Fprintf(&b, "    hints := %s\n    safety := .safe\n    all := [%s]\n", hint(d.Hint), n)
		case ir.DeclOpaque:
			head = ".opaqueDecl"
			fmt.Fprintf(&b, "    isUnsafe := false\n    all := [%s]\n", n)
		}
		p.printf("def %s : Lean.Declaration :=\n  %s {\n%s  }\n", ref, head, b.String())
	}
}
