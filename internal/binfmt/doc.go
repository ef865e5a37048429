// Package binfmt implements the lenient binary encoding of the kernel IR, the
// format fuzzers mutate.
//
// The format has no header. Every record starts with an opcode byte taken
// modulo 8:
//
//	0 level        kind%4: succ l | max l l | imax l l | param n
//	1 term         kind%10: bvar u16 | sort l | const n ls | app t t |
//	               lam n t t | pi n t t | let n t t t | proj n u16 t |
//	               natlit u8 len, digits | strlit u8 len, bytes
//	2 definition   n t t hint ns
//	3 theorem      n t t ns
//	4 inductive    n t ns (constructor names)
//	5 family       u8 params, ns (inductive names), ns (universe params)
//	6 constructor  n t
//	7 name         kind%2: parent, u16 pool index | parent, u16
//
// References are big-endian u16 indices, lists are a u8 count followed by
// that many references, and a hint is a byte taken modulo 3 (regular is
// followed by a u32 height).
//
// Decoding is total. Reads past the end yield zero, references wrap modulo
// the table size, and unresolvable constructor or inductive names are
// replaced by manufactured values, so every byte sequence decodes to some
// well-formed declaration list.
package binfmt
