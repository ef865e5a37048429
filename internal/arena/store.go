package arena

import (
	"kernelfuzz/internal/ir"
)

// Fallbacks manufactured by lenient resolution when a table has nothing
// suitable to offer.
var (
	PlaceholderName = ir.NameStr(ir.Anonymous(), "foo42")
	FallbackTerm    = ir.Sort(ir.Zero())
)

// Store bundles the tables of one decode session.
type Store struct {
	Names      *Table[*ir.Name]
	Levels     *Table[*ir.Level]
	Terms      *Table[*ir.Term]
	Ctors      *Index[ir.ConstructorRecord]
	Inductives *Index[ir.InductiveType]
}

// NewStore creates a store with Names[0] = anonymous and Levels[0] = zero.
// Terms start empty.
func NewStore() *Store {
	return &Store{
		Names:      NewTable("names", 64, ir.Anonymous()),
		Levels:     NewTable("levels", 32, ir.Zero()),
		Terms:      NewTable[*ir.Term]("terms", 128),
		Ctors:      NewIndex[ir.ConstructorRecord]("constructors"),
		Inductives: NewIndex[ir.InductiveType]("inductives"),
	}
}

// Sizes is a snapshot of table sizes.
type Sizes struct {
	Names      int `json:"names"`
	Levels     int `json:"levels"`
	Terms      int `json:"terms"`
	Ctors      int `json:"constructors"`
	Inductives int `json:"inductives"`
}

func (s *Store) Sizes() Sizes {
	return Sizes{
		Names:      s.Names.Len(),
		Levels:     s.Levels.Len(),
		Terms:      s.Terms.Len(),
		Ctors:      s.Ctors.Len(),
		Inductives: s.Inductives.Len(),
	}
}

// AtMost reports whether every table in s is no larger than in o.
func (s Sizes) AtMost(o Sizes) bool {
	return s.Names <= o.Names && s.Levels <= o.Levels && s.Terms <= o.Terms &&
		s.Ctors <= o.Ctors && s.Inductives <= o.Inductives
}
