// Package ir defines the kernel intermediate representation produced by the
// wire decoders: names, universe levels, terms, constructors, inductive types
// and declarations.
//
// Every node is immutable once constructed. Nodes carry a BLAKE3 structural
// digest computed from their children's digests, so equality and map keying
// are constant time regardless of how much sharing a term DAG has. Two names
// built from different table indices but denoting the same tree are equal.
package ir
