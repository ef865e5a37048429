package replay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/trace"
)

// DefaultMaxInput is the clamp applied to inputs when none is configured.
const DefaultMaxInput = 1 << 16

// Verdict classifies one run.
type Verdict uint8

const (
	// VerdictRejected: the kernel refused a declaration. The normal case.
	VerdictRejected Verdict = iota
	// VerdictAdmitted: every declaration went in.
	VerdictAdmitted
	// VerdictUnsound: a type-checking kernel admitted the False probe.
	VerdictUnsound
	// VerdictKernelPanic: the kernel panicked while adding a declaration.
	VerdictKernelPanic
	// VerdictDecoderPanic: the lenient decoder panicked. Always a bug.
	VerdictDecoderPanic
)

func (v Verdict) String() string {
	switch v {
	case VerdictRejected:
		return "rejected"
	case VerdictAdmitted:
		return "admitted"
	case VerdictUnsound:
		return "UNSOUND"
	case VerdictKernelPanic:
		return "kernel-panic"
	case VerdictDecoderPanic:
		return "decoder-panic"
	default:
		return fmt.Sprintf("verdict(%d)", v)
	}
}

// Finding reports whether v needs a human.
func (v Verdict) Finding() bool { return v >= VerdictUnsound }

// Outcome is the result of running one input. It is what the disk cache
// stores, so every field must survive msgpack.
type Outcome struct {
	Path     string        `msgpack:"-" json:"path"`
	Digest   ir.Digest     `msgpack:"digest" json:"digest"`
	Verdict  Verdict       `msgpack:"verdict" json:"verdict"`
	Decls    int           `msgpack:"decls" json:"decls"`
	Admitted int           `msgpack:"admitted" json:"admitted"`
	Probed   bool          `msgpack:"probed" json:"probed"`
	Stats    binfmt.Stats  `msgpack:"stats" json:"stats"`
	Sizes    arena.Sizes   `msgpack:"sizes" json:"sizes"`
	Kind     string        `msgpack:"kind,omitempty" json:"kind,omitempty"`
	Message  string        `msgpack:"message,omitempty" json:"message,omitempty"`
	Elapsed  time.Duration `msgpack:"-" json:"elapsed_ns"`
	Cached   bool          `msgpack:"-" json:"cached"`
}

// Options configures a Runner.
type Options struct {
	Pool       *strpool.Pool
	ProbeFalse bool
	// MaxInput truncates longer inputs; zero means DefaultMaxInput.
	MaxInput int
}

// Runner feeds inputs into copies of a base environment. Environments are
// persistent, so one Runner is safe for concurrent use.
type Runner struct {
	kernel kernel.Kernel
	base   kernel.Environment
	opts   Options
}

func NewRunner(k kernel.Kernel, base kernel.Environment, opts Options) *Runner {
	if base == nil {
		base = k.Empty()
	}
	if opts.MaxInput <= 0 {
		opts.MaxInput = DefaultMaxInput
	}
	if opts.Pool == nil {
		opts.Pool = strpool.New()
	}
	return &Runner{kernel: k, base: base, opts: opts}
}

// Fingerprint identifies everything besides the input bytes that influences
// an outcome. It is mixed into cache keys.
func (r *Runner) Fingerprint(prelude ir.Digest) []byte {
	fp := fmt.Sprintf("%s|%t|%d|%s|", r.kernel.Name(), r.opts.ProbeFalse, r.opts.MaxInput, prelude)
	return append([]byte(fp), r.opts.Pool.Bytes()...)
}

// Run decodes data leniently and admits the result.
func (r *Runner) Run(ctx context.Context, data []byte) (out Outcome) {
	start := time.Now()
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "run", trace.CurrentSpan(ctx))
	defer func() {
		out.Elapsed = time.Since(start)
		span.WithExtra("verdict", out.Verdict.String()).End(strconv.Itoa(out.Admitted))
	}()

	out.Digest = ir.SumInput(data)
	if len(data) > r.opts.MaxInput {
		data = data[:r.opts.MaxInput]
	}

	sess, perr := r.decode(data, tracer, span.ID())
	if perr != "" {
		out.Verdict = VerdictDecoderPanic
		out.Message = perr
		return out
	}
	if r.opts.ProbeFalse {
		out.Probed = sess.AddFalseProbe()
	}
	decls := sess.Declarations()
	out.Decls = len(decls)
	out.Stats = sess.Stats()
	out.Sizes = sess.Store().Sizes()

	_, n, err := kernel.AdmitAll(r.base, decls)
	out.Admitted = n
	if err != nil {
		out.Verdict = VerdictRejected
		out.Message = err.Error()
		var kerr *kernel.Error
		if errors.As(err, &kerr) {
			out.Kind = kerr.Kind.String()
			if kerr.Kind == kernel.KindPanic {
				out.Verdict = VerdictKernelPanic
			}
		}
		return out
	}
	out.Verdict = VerdictAdmitted
	if out.Probed && r.kernel.TypeChecks() {
		out.Verdict = VerdictUnsound
		out.Message = "theorem foo : False admitted"
	}
	return out
}

func (r *Runner) decode(data []byte, tracer trace.Tracer, parent uint64) (sess *binfmt.Session, msg string) {
	defer func() {
		if rec := recover(); rec != nil {
			msg = fmt.Sprintf("%v\n%s", rec, debug.Stack())
		}
	}()
	return binfmt.Decode(data, binfmt.Options{Pool: r.opts.Pool, Tracer: tracer, ParentSpan: parent}), ""
}
