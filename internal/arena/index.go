package arena

import (
	"kernelfuzz/internal/ir"
)

// Index is a side table keyed by the structural identity of a name. Two names
// that denote the same tree address the same slot even when they were decoded
// from different table indices.
type Index[T any] struct {
	name  string
	slots map[ir.Digest]int
	keys  []*ir.Name
	vals  []T
}

func NewIndex[T any](name string) *Index[T] {
	return &Index[T]{
		name:  name,
		slots: make(map[ir.Digest]int, 16),
	}
}

// Insert stores v under key unless the key is already bound. The first
// binding wins; the return value reports whether v was stored.
func (ix *Index[T]) Insert(key *ir.Name, v T) bool {
	d := key.Digest()
	if _, ok := ix.slots[d]; ok {
		return false
	}
	ix.slots[d] = len(ix.vals)
	ix.keys = append(ix.keys, key)
	ix.vals = append(ix.vals, v)
	return true
}

func (ix *Index[T]) Lookup(key *ir.Name) (T, bool) {
	if slot, ok := ix.slots[key.Digest()]; ok {
		return ix.vals[slot], true
	}
	var zero T
	return zero, false
}

// Last returns the most recently stored value.
func (ix *Index[T]) Last() (T, bool) {
	if len(ix.vals) == 0 {
		var zero T
		return zero, false
	}
	return ix.vals[len(ix.vals)-1], true
}

func (ix *Index[T]) Len() int { return len(ix.vals) }

func (ix *Index[T]) Name() string { return ix.name }

// Keys returns keys in insertion order.
func (ix *Index[T]) Keys() []*ir.Name { return ix.keys }

// Values returns values in insertion order.
func (ix *Index[T]) Values() []T { return ix.vals }
