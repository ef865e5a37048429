package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/testkit"
	"kernelfuzz/internal/textfmt"
)

// trusting claims to type check so that the False probe counts.
type trusting struct{ kernel.ScopeKernel }

func (trusting) TypeChecks() bool { return true }

type panicky struct{ kernel.ScopeKernel }

type panickyEnv struct{ kernel.Environment }

func (panickyEnv) Add(ir.Declaration) (kernel.Environment, error) { panic("boom") }

func (panicky) Empty() kernel.Environment { return panickyEnv{kernel.ScopeKernel{}.Empty()} }

func export(t *testing.T, decls []ir.Declaration) []byte {
	t.Helper()
	data, err := textfmt.Encode(decls)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func admit(t *testing.T, name string, data []byte, k kernel.Kernel, r diag.Reporter) (*Prelude, error) {
	t.Helper()
	fs := source.NewFileSet()
	return AdmitPrelude(context.Background(), fs, fs.AddVirtual(name, data), k, PreludeOptions{Reporter: r})
}

func samplePrelude(t *testing.T, k kernel.Kernel) *Prelude {
	t.Helper()
	p, err := admit(t, "prelude.export", export(t, testkit.SampleDeclarations()), k, nil)
	if err != nil {
		t.Fatalf("prelude: %v", err)
	}
	return p
}

func TestPreludeAdmitsSample(t *testing.T) {
	p := samplePrelude(t, kernel.ScopeKernel{})
	if len(p.Skipped) != 0 {
		t.Fatalf("skipped = %v", p.Skipped)
	}
	if !p.Env.Contains(testkit.NatName) || !p.Env.Contains(testkit.SuccName) {
		t.Fatal("Nat and its constructors should be declared")
	}
}

func TestPreludeSkipsUnknownConstants(t *testing.T) {
	missing := ir.ParseName("Missing")
	decls := []ir.Declaration{
		ir.MkAxiom(ir.ParseName("a"), nil, ir.Const(missing)),
		ir.MkAxiom(ir.ParseName("b"), nil, ir.Sort(ir.Zero())),
	}
	bag := diag.NewBag(10)
	p, err := admit(t, "p", export(t, decls), kernel.ScopeKernel{}, diag.BagReporter{Bag: bag})
	if err != nil {
		t.Fatalf("prelude: %v", err)
	}
	if len(p.Skipped) != 1 || !errors.Is(p.Skipped[0], kernel.ErrUnknownConstant) {
		t.Fatalf("skipped = %v", p.Skipped)
	}
	if !p.Env.Contains(ir.ParseName("b")) || p.Env.Contains(ir.ParseName("a")) {
		t.Fatal("loading should continue past the unknown constant")
	}
	if bag.Len() != 1 || bag.HasErrors() {
		t.Fatalf("want one warning, got %s", bag)
	}
}

func TestPreludeFatalErrors(t *testing.T) {
	dup := []ir.Declaration{
		ir.MkAxiom(ir.ParseName("a"), nil, ir.Sort(ir.Zero())),
		ir.MkAxiom(ir.ParseName("a"), nil, ir.Sort(ir.Zero())),
	}
	if _, err := admit(t, "dup", export(t, dup), kernel.ScopeKernel{}, nil); !errors.Is(err, kernel.ErrAlreadyDeclared) {
		t.Fatalf("duplicate: err = %v", err)
	}
	_, err := admit(t, "bad", []byte("markus-9.9.9\n"), kernel.ScopeKernel{}, nil)
	if !errors.Is(err, textfmt.ErrVersionMismatch) {
		t.Fatalf("header: err = %v", err)
	}
}

func TestPreludeRejectAxioms(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("ax", export(t, testkit.SampleDeclarations()))
	bag := diag.NewBag(10)
	_, err := AdmitPrelude(context.Background(), fs, id, kernel.ScopeKernel{}, PreludeOptions{
		Reporter:     diag.BagReporter{Bag: bag},
		RejectAxioms: true,
	})
	if err == nil || !bag.HasErrors() {
		t.Fatalf("axioms should be rejected: err = %v, bag = %s", err, bag)
	}
}

func TestLoadPreludeFromCompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prelude.export.zst")
	if err := corpus.WriteFile(path, export(t, testkit.SampleDeclarations())); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPrelude(context.Background(), source.NewFileSet(), path, kernel.ScopeKernel{}, PreludeOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Env.Len() == 0 {
		t.Fatal("empty environment")
	}
}

func TestLoadPreludeTestdata(t *testing.T) {
	path := filepath.Join("..", "..", "testdata", "text", "prelude.export")
	p, err := LoadPrelude(context.Background(), source.NewFileSet(), path, kernel.ScopeKernel{}, PreludeOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Skipped) != 0 {
		t.Fatalf("skipped = %v", p.Skipped)
	}
	for _, n := range []string{"False", "Nat", "Nat.succ", "two", "two.eq", "id"} {
		if !p.Env.Contains(ir.ParseName(n)) {
			t.Errorf("%s should be declared", n)
		}
	}
}

// probeInput encodes a closed definition so the probe has a term to use.
func probeInput(t *testing.T) ([]byte, *strpool.Pool) {
	t.Helper()
	d := ir.MkDefinition(ir.ParseName("d"), nil, ir.Sort(ir.Zero()), ir.Const(testkit.FalseName), ir.OpaqueHint())
	data, pool, err := binfmt.Encode([]ir.Declaration{d})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data, pool
}

func TestRunVerdicts(t *testing.T) {
	data, pool := probeInput(t)
	ctx := context.Background()

	scope := samplePrelude(t, kernel.ScopeKernel{})
	out := NewRunner(kernel.ScopeKernel{}, scope.Env, Options{Pool: pool, ProbeFalse: true}).Run(ctx, data)
	if out.Verdict != VerdictAdmitted || !out.Probed || out.Decls != 2 || out.Admitted != 2 {
		t.Fatalf("scope kernel: %+v", out)
	}

	trust := samplePrelude(t, trusting{})
	out = NewRunner(trusting{}, trust.Env, Options{Pool: pool, ProbeFalse: true}).Run(ctx, data)
	if out.Verdict != VerdictUnsound || !out.Verdict.Finding() {
		t.Fatalf("trusting kernel: %+v", out)
	}

	// without the prelude False is unknown
	out = NewRunner(trusting{}, nil, Options{Pool: pool, ProbeFalse: true}).Run(ctx, data)
	if out.Verdict != VerdictRejected || out.Kind != kernel.KindUnknownConstant.String() || out.Admitted != 0 {
		t.Fatalf("no prelude: %+v", out)
	}

	out = NewRunner(panicky{}, nil, Options{Pool: pool}).Run(ctx, data)
	if out.Verdict != VerdictKernelPanic || out.Kind != kernel.KindPanic.String() {
		t.Fatalf("panicky kernel: %+v", out)
	}
}

func TestRunEmptyInput(t *testing.T) {
	out := NewRunner(kernel.ScopeKernel{}, nil, Options{ProbeFalse: true}).Run(context.Background(), nil)
	if out.Verdict != VerdictAdmitted || out.Probed || out.Decls != 0 {
		t.Fatalf("empty: %+v", out)
	}
	if out.Sizes.Names != 1 || out.Sizes.Levels != 1 || out.Sizes.Terms != 0 {
		t.Fatalf("seeded tables changed: %+v", out.Sizes)
	}
}

func TestRunClampsInput(t *testing.T) {
	data, pool := probeInput(t)
	r := NewRunner(kernel.ScopeKernel{}, nil, Options{Pool: pool, MaxInput: 1})
	out := r.Run(context.Background(), data)
	if out.Digest != ir.SumInput(data) {
		t.Fatal("digest should cover the whole input")
	}
	if out.Stats.Records != 1 {
		t.Fatalf("records = %d, want 1 after clamping", out.Stats.Records)
	}
}

func TestReplayWithCache(t *testing.T) {
	data, pool := probeInput(t)
	dir := t.TempDir()
	var paths []string
	for _, in := range [][]byte{data, {0x01, 0x01, 0x00, 0x00}, {}} {
		p, err := corpus.WriteSeed(dir, in, corpus.CompressionZstd)
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(kernel.ScopeKernel{}, nil, Options{Pool: pool})

	cfg := Config{Jobs: 2, Cache: cache, Progress: func(Outcome) {}}
	first, err := Replay(context.Background(), r, paths, cfg)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	second, err := Replay(context.Background(), r, paths, cfg)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i := range paths {
		if first[i].Path != paths[i] || first[i].Cached {
			t.Fatalf("first run %d: %+v", i, first[i])
		}
		if !second[i].Cached || second[i].Verdict != first[i].Verdict || second[i].Digest != first[i].Digest {
			t.Fatalf("second run %d: %+v vs %+v", i, second[i], first[i])
		}
	}
	if s := Summarize(second); s.Total != 3 || s.Cached != 3 || s.Findings() != 0 {
		t.Fatalf("summary = %s", s)
	}

	// a different configuration must not reuse the entries
	other := NewRunner(kernel.ScopeKernel{}, nil, Options{Pool: pool, ProbeFalse: true})
	third, err := Replay(context.Background(), other, paths, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if Summarize(third).Cached != 0 {
		t.Fatal("cache key ignored the runner configuration")
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := cache.Get(CacheKey(first[0].Digest, r.Fingerprint(ir.Digest{}))); ok {
		t.Fatal("entry survived DropAll")
	}
}

func TestReplayMissingFile(t *testing.T) {
	r := NewRunner(kernel.ScopeKernel{}, nil, Options{})
	if _, err := Replay(context.Background(), r, []string{filepath.Join(t.TempDir(), "nope")}, Config{}); err == nil {
		t.Fatal("expected an error")
	}
}
