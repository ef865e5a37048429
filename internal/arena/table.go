// Package arena holds the append-only tables a decode session resolves
// references against.
package arena

import (
	"fmt"

	"fortio.org/safecast"
)

// Table is an append-only, index-addressable arena. The first entries are
// seeds installed at construction and are never replaced.
type Table[T any] struct {
	name  string
	data  []T
	seeds int
}

// NewTable creates a table with an optional capacity hint and seed entries.
func NewTable[T any](name string, capacity int, seeds ...T) *Table[T] {
	if capacity < len(seeds) {
		capacity = len(seeds) + 32
	}
	t := &Table[T]{
		name:  name,
		data:  make([]T, 0, capacity),
		seeds: len(seeds),
	}
	t.data = append(t.data, seeds...)
	return t
}

// Append stores v and returns its index.
func (t *Table[T]) Append(v T) uint32 {
	idx, err := safecast.Conv[uint32](len(t.data))
	if err != nil {
		panic(fmt.Errorf("%s table overflow: %w", t.name, err))
	}
	t.data = append(t.data, v)
	return idx
}

// Get resolves idx strictly.
func (t *Table[T]) Get(idx uint64) (T, bool) {
	if idx >= uint64(len(t.data)) {
		var zero T
		return zero, false
	}
	return t.data[idx], true
}

// WrapIndex reduces idx modulo the table size. It panics on an empty table;
// seeded tables are never empty.
func (t *Table[T]) WrapIndex(idx uint64) uint64 {
	if len(t.data) == 0 {
		panic(fmt.Sprintf("%s table: wrap on empty table", t.name))
	}
	return idx % uint64(len(t.data))
}

// Wrap resolves idx leniently.
func (t *Table[T]) Wrap(idx uint64) T {
	return t.data[t.WrapIndex(idx)]
}

// Last returns the most recently appended entry, seeds included.
func (t *Table[T]) Last() (T, bool) {
	if len(t.data) == 0 {
		var zero T
		return zero, false
	}
	return t.data[len(t.data)-1], true
}

// Len reports the number of entries including seeds.
func (t *Table[T]) Len() int { return len(t.data) }

// Seeds reports how many leading entries are seeds.
func (t *Table[T]) Seeds() int { return t.seeds }

// Name returns the table label used in diagnostics.
func (t *Table[T]) Name() string { return t.name }

// Data exposes the storage. Callers must not modify it.
func (t *Table[T]) Data() []T { return t.data }
