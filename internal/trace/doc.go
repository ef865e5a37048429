// Package trace records structured events from the decoders and the replay
// driver.
//
// Enable it from the CLI:
//
//	kernelfuzz replay --trace=- --trace-level=detail corpus/
//
// Tracers: Nop (disabled), StreamTracer (text or NDJSON to a writer),
// RingTracer (last N events, dumped on crash) and MultiTracer (fan-out).
//
// Levels gate scopes: phase admits driver and pass events, detail adds one
// span per decode session, debug adds node-level points such as a lenient
// decoder wrapping an index or substituting a fallback.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "prelude", 0)
//	defer span.End("")
package trace
