// Package diag defines the diagnostic model shared by the decoders, the
// kernel driver and the CLI.
//
// A Diagnostic carries a Severity, a numeric Code with a stable string ID, a
// message, a primary source.Span and optional notes. Producers emit through
// the Reporter interface (usually a BagReporter); rendering lives in
// internal/diagfmt.
//
// Wire codes (WIR) describe strict-decode failures and map onto five coarse
// categories via Code.Category: malformed token, out-of-range reference,
// unknown record kind, trailing data and version mismatch. Kernel codes (KRN)
// describe admission failures reported by the driver; they never originate in
// a decoder.
package diag
