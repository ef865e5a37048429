package kernel

import (
	"math"

	"kernelfuzz/internal/ir"
)

// walker visits a term DAG once per distinct node. Decoded terms share
// subterms heavily, so tree-shaped recursion could take exponential time.
type walker struct {
	looseMemo map[ir.Digest]uint64
	seenTerm  map[ir.Digest]struct{}
	seenLevel map[ir.Digest]struct{}

	onConst func(n *ir.Name) error
	onParam func(n *ir.Name) error
}

func newWalker() *walker {
	return &walker{
		looseMemo: make(map[ir.Digest]uint64),
		seenTerm:  make(map[ir.Digest]struct{}),
		seenLevel: make(map[ir.Digest]struct{}),
	}
}

// looseRange is one past the largest loose de Bruijn index of t; zero means t
// is closed.
func (w *walker) looseRange(t *ir.Term) uint64 {
	if r, ok := w.looseMemo[t.Digest()]; ok {
		return r
	}
	var r uint64
	switch t.Kind() {
	case ir.TermBVar:
		r = t.BVarIndex()
		if r < math.MaxUint64 {
			r++
		}
	case ir.TermApp:
		r = max(w.looseRange(t.AppFn()), w.looseRange(t.AppArg()))
	case ir.TermLambda, ir.TermPi:
		r = max(w.looseRange(t.BinderType()), under(w.looseRange(t.Body())))
	case ir.TermLet:
		r = max(w.looseRange(t.BinderType()), w.looseRange(t.LetValue()), under(w.looseRange(t.Body())))
	case ir.TermProj:
		r = w.looseRange(t.ProjValue())
	}
	w.looseMemo[t.Digest()] = r
	return r
}

func under(r uint64) uint64 {
	if r == 0 {
		return 0
	}
	return r - 1
}

// visit calls the hooks for every constant and universe parameter in t.
func (w *walker) visit(t *ir.Term) error {
	if _, ok := w.seenTerm[t.Digest()]; ok {
		return nil
	}
	w.seenTerm[t.Digest()] = struct{}{}
	switch t.Kind() {
	case ir.TermSort:
		return w.visitLevel(t.SortLevel())
	case ir.TermConst:
		if w.onConst != nil {
			if err := w.onConst(t.ConstName()); err != nil {
				return err
			}
		}
		for _, l := range t.ConstLevels() {
			if err := w.visitLevel(l); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range t.Children() {
		if err := w.visit(c); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visitLevel(l *ir.Level) error {
	if _, ok := w.seenLevel[l.Digest()]; ok {
		return nil
	}
	w.seenLevel[l.Digest()] = struct{}{}
	switch l.Kind() {
	case ir.LevelSucc:
		return w.visitLevel(l.Pred())
	case ir.LevelMax, ir.LevelIMax:
		if err := w.visitLevel(l.Lhs()); err != nil {
			return err
		}
		return w.visitLevel(l.Rhs())
	case ir.LevelParam:
		if w.onParam != nil {
			return w.onParam(l.ParamName())
		}
	}
	return nil
}
