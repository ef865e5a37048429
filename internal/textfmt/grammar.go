package textfmt

import (
	"maps"
	"slices"
	"sync"

	"kernelfuzz/internal/ir"
)

// RecordKind identifies a top-level record.
type RecordKind uint8

const (
	RecName RecordKind = iota
	RecLevel
	RecTerm
	RecAxiom
	RecDefinition
	RecTheorem
	RecOpaque
	RecInductive
	RecInductiveFamily
	RecConstructor
	RecQuotient
)

// Grammar maps the keywords of one format version onto record and node
// kinds. Versions observed so far differ only in the header and in which
// keywords exist, so a new version is a new table, not a new decoder.
type Grammar struct {
	Version string
	Records map[string]RecordKind
	Names   map[string]ir.NameKind
	Levels  map[string]ir.LevelKind
	Terms   map[string]ir.TermKind
	Hints   map[string]ir.HintKind
	// BinderInfo is the token the encoder writes for the ignored binder-info
	// field of lambda and pi records.
	BinderInfo string

	recordKw map[RecordKind]string
	nameKw   map[ir.NameKind]string
	levelKw  map[ir.LevelKind]string
	termKw   map[ir.TermKind]string
	hintKw   map[ir.HintKind]string
}

func invert[K comparable, V comparable](m map[K]V) map[V]K {
	out := make(map[V]K, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

// Header is the first line of an input in this grammar, newline included.
func (g *Grammar) Header() string { return g.Version + "\n" }

func (g *Grammar) recordKeyword(k RecordKind) string { return g.recordKw[k] }

func (g *Grammar) nameKeyword(k ir.NameKind) string { return g.nameKw[k] }

func (g *Grammar) levelKeyword(k ir.LevelKind) string { return g.levelKw[k] }

func (g *Grammar) termKeyword(k ir.TermKind) string { return g.termKw[k] }

func (g *Grammar) hintKeyword(k ir.HintKind) string { return g.hintKw[k] }

var (
	registryMu sync.RWMutex
	registry   = map[string]*Grammar{}
	latest     *Grammar
)

// Register adds g to the version table. The most recently registered grammar
// becomes the default for encoding.
func Register(g *Grammar) {
	g.recordKw = invert(g.Records)
	g.nameKw = invert(g.Names)
	g.levelKw = invert(g.Levels)
	g.termKw = invert(g.Terms)
	g.hintKw = invert(g.Hints)
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[g.Version] = g
	latest = g
}

// Lookup returns the grammar for a version string.
func Lookup(version string) (*Grammar, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	g, ok := registry[version]
	return g, ok
}

// Latest returns the default grammar.
func Latest() *Grammar {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return latest
}

// Versions lists registered versions in sorted order.
func Versions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// Markus005 is the "markus-0.0.5" grammar.
var Markus005 = &Grammar{
	Version: "markus-0.0.5",
	Records: map[string]RecordKind{
		"#NAME": RecName,
		"#LVL":  RecLevel,
		"#EXPR": RecTerm,
		"#AX":   RecAxiom,
		"#DEF":  RecDefinition,
		"#THM":  RecTheorem,
		"#OPAQ": RecOpaque,
		"#IND":  RecInductive,
		"#INDF": RecInductiveFamily,
		"#CTOR": RecConstructor,
		"#QUOT": RecQuotient,
	},
	Names: map[string]ir.NameKind{
		"#NS": ir.NameString,
		"#NI": ir.NameNumeric,
	},
	Levels: map[string]ir.LevelKind{
		"#US":  ir.LevelSucc,
		"#UM":  ir.LevelMax,
		"#UIM": ir.LevelIMax,
		"#UP":  ir.LevelParam,
	},
	Terms: map[string]ir.TermKind{
		"#EV":  ir.TermBVar,
		"#ES":  ir.TermSort,
		"#EC":  ir.TermConst,
		"#EA":  ir.TermApp,
		"#EL":  ir.TermLambda,
		"#EP":  ir.TermPi,
		"#EZ":  ir.TermLet,
		"#EJ":  ir.TermProj,
		"#ELN": ir.TermNatLit,
		"#ELS": ir.TermStrLit,
	},
	Hints: map[string]ir.HintKind{
		"O": ir.HintOpaque,
		"A": ir.HintAbbrev,
		"R": ir.HintRegular,
	},
	BinderInfo: "#BD",
}

func init() {
	Register(Markus005)
}
