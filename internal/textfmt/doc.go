// Package textfmt implements the strict, line-oriented text encoding of the
// kernel IR used for the trusted prelude.
//
// An input starts with a version header line (for example "markus-0.0.5")
// followed by one record per line. Each record begins with a keyword and
// refers to earlier names, levels and terms by their table index. Decoding
// stops at the first error; the error is sticky and the partially built
// tables must not be handed to a kernel.
//
//	markus-0.0.5
//	#NAME #NS 0 Nat
//	#LVL #US 0
//	#EXPR #ES 1
//	#AX 1 0
package textfmt
