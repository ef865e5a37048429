package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/source"
)

// CheckStoreInvariants verifies the table invariants every decode session
// must keep, whatever its input:
// 1) Names[0] is anonymous and Levels[0] is zero
// 2) every node refers only to entries appended before it, or to the
// lenient fallbacks
// 3) side-table entries point at nodes present in the tables
func CheckStoreInvariants(s *arena.Store) error {
	if s == nil {
		return fmt.Errorf("nil store")
	}
	if n, ok := s.Names.Get(0); !ok || !n.IsAnonymous() {
		return fmt.Errorf("Names[0] is not anonymous")
	}
	if l, ok := s.Levels.Get(0); !ok || l.Kind() != ir.LevelZero {
		return fmt.Errorf("Levels[0] is not zero")
	}

	// 2) names: parent precedes child
	names := map[ir.Digest]struct{}{arena.PlaceholderName.Digest(): {}}
	for i, n := range s.Names.Data() {
		if i > 0 {
			if _, ok := names[n.Parent().Digest()]; !ok {
				return fmt.Errorf("Names[%d] = %s: parent not defined earlier", i, n)
			}
		}
		names[n.Digest()] = struct{}{}
	}
	hasName := func(n *ir.Name) bool {
		_, ok := names[n.Digest()]
		return ok
	}

	levels := make(map[ir.Digest]struct{}, s.Levels.Len())
	hasLevel := func(l *ir.Level) bool {
		_, ok := levels[l.Digest()]
		return ok
	}
	for i, l := range s.Levels.Data() {
		switch l.Kind() {
		case ir.LevelSucc:
			if !hasLevel(l.Pred()) {
				return fmt.Errorf("Levels[%d]: operand not defined earlier", i)
			}
		case ir.LevelMax, ir.LevelIMax:
			if !hasLevel(l.Lhs()) || !hasLevel(l.Rhs()) {
				return fmt.Errorf("Levels[%d]: operand not defined earlier", i)
			}
		case ir.LevelParam:
			if !hasName(l.ParamName()) {
				return fmt.Errorf("Levels[%d]: parameter name %s not in the name table", i, l.ParamName())
			}
		}
		levels[l.Digest()] = struct{}{}
	}

	terms := map[ir.Digest]struct{}{arena.FallbackTerm.Digest(): {}}
	for i, t := range s.Terms.Data() {
		for _, c := range t.Children() {
			if _, ok := terms[c.Digest()]; !ok {
				return fmt.Errorf("Terms[%d] (%s): subterm not defined earlier", i, t.Kind())
			}
		}
		switch t.Kind() {
		case ir.TermSort:
			if !hasLevel(t.SortLevel()) {
				return fmt.Errorf("Terms[%d]: sort level not in the level table", i)
			}
		case ir.TermConst:
			if !hasName(t.ConstName()) {
				return fmt.Errorf("Terms[%d]: constant name not in the name table", i)
			}
			for _, l := range t.ConstLevels() {
				if !hasLevel(l) {
					return fmt.Errorf("Terms[%d]: constant level not in the level table", i)
				}
			}
		case ir.TermLambda, ir.TermPi, ir.TermLet:
			if !hasName(t.BinderName()) {
				return fmt.Errorf("Terms[%d]: binder name not in the name table", i)
			}
		case ir.TermProj:
			if !hasName(t.ProjStruct()) {
				return fmt.Errorf("Terms[%d]: structure name not in the name table", i)
			}
		}
		terms[t.Digest()] = struct{}{}
	}

	// 3) side tables
	hasTerm := func(t *ir.Term) bool {
		if t == nil {
			return false
		}
		_, ok := terms[t.Digest()]
		return ok
	}
	for _, c := range s.Ctors.Values() {
		if !hasName(c.Name) || !hasTerm(c.Type) {
			return fmt.Errorf("constructor %s refers outside the tables", c.Name)
		}
	}
	for _, ind := range s.Inductives.Values() {
		if !hasName(ind.Name) || !hasTerm(ind.Type) {
			return fmt.Errorf("inductive %s refers outside the tables", ind.Name)
		}
	}
	return nil
}

// CheckGrowth reports a table that shrank between two snapshots.
func CheckGrowth(before, after arena.Sizes) error {
	if !before.AtMost(after) {
		return fmt.Errorf("tables shrank: %+v -> %+v", before, after)
	}
	return nil
}

// CheckDiagnosticSpans runs span sanity checks on reported diagnostics:
// 1) a located diagnostic points to a known file
// 2) its primary span is ordered and within the file content
// 3) its notes obey the same rules
func CheckDiagnosticSpans(bag *diag.Bag, fs *source.FileSet) error {
	if bag == nil || fs == nil {
		return fmt.Errorf("nil bag or file set")
	}
	check := func(sp source.Span) error {
		if sp.File == source.NoFileID {
			return nil
		}
		f := fs.Get(sp.File)
		if f == nil {
			return fmt.Errorf("span %v points to unknown file", sp)
		}
		if sp.End < sp.Start {
			return fmt.Errorf("span %v is inverted", sp)
		}
		lenContent, err := safecast.Conv[uint32](len(f.Content))
		if err != nil {
			return fmt.Errorf("len content overflow: %w", err)
		}
		if sp.End > lenContent {
			return fmt.Errorf("span end beyond content: %d > %d", sp.End, lenContent)
		}
		return nil
	}
	for _, d := range bag.Items() {
		if err := check(d.Primary); err != nil {
			return fmt.Errorf("%s: %w", d.Code.ID(), err)
		}
		for _, n := range d.Notes {
			if err := check(n.Span); err != nil {
				return fmt.Errorf("%s note: %w", d.Code.ID(), err)
			}
		}
	}
	return nil
}
