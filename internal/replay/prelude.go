// Package replay drives decoded inputs into a kernel: it loads the trusted
// prelude once, then runs each fuzz input against a copy of the prelude
// environment, optionally in parallel and backed by a disk cache.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/textfmt"
	"kernelfuzz/internal/trace"
)

// Prelude is a strictly decoded export admitted into a kernel environment.
type Prelude struct {
	Path    string
	Digest  ir.Digest
	Env     kernel.Environment
	Session *textfmt.Session
	// Skipped lists declarations rejected for referring to unknown
	// constants; loading continues past them.
	Skipped []*kernel.Error
}

// PreludeOptions tunes prelude loading. The zero value admits axioms and
// drops diagnostics.
type PreludeOptions struct {
	Reporter     diag.Reporter
	RejectAxioms bool
}

// LoadPrelude reads the text export at path into fs and admits it into a
// fresh environment of k. A decode error or any kernel rejection other than
// an unknown constant is fatal; diagnostics refer to fs.
func LoadPrelude(ctx context.Context, fs *source.FileSet, path string, k kernel.Kernel, opts PreludeOptions) (*Prelude, error) {
	data, err := corpus.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prelude: %w", err)
	}
	return AdmitPrelude(ctx, fs, fs.Add(path, data, 0), k, opts)
}

// AdmitPrelude is LoadPrelude over a file already in fs.
func AdmitPrelude(ctx context.Context, fs *source.FileSet, id source.FileID, k kernel.Kernel, opts PreludeOptions) (*Prelude, error) {
	r := opts.Reporter
	if r == nil {
		r = diag.NopReporter{}
	}
	f := fs.Get(id)
	if f == nil {
		return nil, fmt.Errorf("prelude: unknown file id %d", id)
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopePass, "prelude", trace.CurrentSpan(ctx)).WithExtra("path", f.Path)
	defer span.End("")

	sess, err := textfmt.Decode(fs, id, textfmt.Options{
		AllowAxioms: !opts.RejectAxioms,
		Reporter:    r,
		Tracer:      tracer,
		ParentSpan:  span.ID(),
	})
	if err != nil {
		return nil, fmt.Errorf("prelude: %w", err)
	}

	p := &Prelude{Path: f.Path, Digest: ir.SumInput(f.Content), Session: sess, Env: k.Empty()}
	for _, d := range sess.Declarations() {
		next, err := kernel.Admit(p.Env, d)
		if err == nil {
			p.Env = next
			continue
		}
		var kerr *kernel.Error
		if !errors.As(err, &kerr) {
			return nil, fmt.Errorf("prelude: %w", err)
		}
		if kerr.Kind != kernel.KindUnknownConstant {
			diag.ReportError(r, kerr.Kind.Code(), source.Span{}, kerr.Error()).Emit()
			return nil, fmt.Errorf("prelude: %w", err)
		}
		diag.ReportWarning(r, kerr.Kind.Code(), source.Span{}, kerr.Error()).Emit()
		p.Skipped = append(p.Skipped, kerr)
	}
	span.WithExtra("admitted", strconv.Itoa(p.Env.Len()))
	return p, nil
}
