package replay

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/trace"
)

// Config controls a corpus replay.
type Config struct {
	Jobs  int
	Cache *Cache
	// Prelude is mixed into cache keys; zero when replaying without one.
	Prelude ir.Digest
	// Progress, if set, is called once per finished input from worker
	// goroutines.
	Progress func(Outcome)
}

// Replay runs every file in paths. Results are in input order. Unreadable
// files abort the replay; kernel rejections do not.
func Replay(ctx context.Context, r *Runner, paths []string, cfg Config) ([]Outcome, error) {
	results := make([]Outcome, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	fingerprint := r.Fingerprint(cfg.Prelude)

	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "replay", trace.CurrentSpan(ctx)).
		WithExtra("inputs", strconv.Itoa(len(paths)))
	defer span.End("")

	g, gctx := errgroup.WithContext(trace.WithSpan(ctx, span))
	g.SetLimit(min(jobs, len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			out, err := replayOne(gctx, r, cfg.Cache, fingerprint, path)
			if err != nil {
				return err
			}
			// индекс i уникален, мьютекс не нужен
			results[i] = out
			if cfg.Progress != nil {
				cfg.Progress(out)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func replayOne(ctx context.Context, r *Runner, cache *Cache, fingerprint []byte, path string) (Outcome, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeSession, "input", trace.CurrentSpan(ctx)).WithExtra("path", path)
	defer span.End("")

	entry, err := corpus.Load(path)
	if err != nil {
		return Outcome{Path: path}, fmt.Errorf("replay: %w", err)
	}
	key := CacheKey(entry.Digest, fingerprint)
	if out, ok, err := cache.Get(key); err == nil && ok {
		out.Path = path
		out.Cached = true
		return out, nil
	}

	out := r.Run(trace.WithSpan(ctx, span), entry.Data)
	out.Path = path
	if err := cache.Put(key, out); err != nil {
		trace.Point(tracer, trace.ScopeSession, "cache write failed", err.Error(), span.ID())
	}
	return out, nil
}

// Summary counts outcomes by verdict.
type Summary struct {
	Total    int `json:"total"`
	Rejected int `json:"rejected"`
	Admitted int `json:"admitted"`
	Unsound  int `json:"unsound"`
	Panics   int `json:"panics"`
	Cached   int `json:"cached"`
}

func Summarize(outs []Outcome) Summary {
	s := Summary{Total: len(outs)}
	for _, o := range outs {
		switch o.Verdict {
		case VerdictRejected:
			s.Rejected++
		case VerdictAdmitted:
			s.Admitted++
		case VerdictUnsound:
			s.Unsound++
		case VerdictKernelPanic, VerdictDecoderPanic:
			s.Panics++
		}
		if o.Cached {
			s.Cached++
		}
	}
	return s
}

// Findings counts the outcomes that need a human.
func (s Summary) Findings() int { return s.Unsound + s.Panics }

func (s Summary) String() string {
	return fmt.Sprintf("%d inputs: %d rejected, %d admitted, %d unsound, %d panics (%d cached)",
		s.Total, s.Rejected, s.Admitted, s.Unsound, s.Panics, s.Cached)
}
