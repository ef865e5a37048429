package main

import (
	"path/filepath"
	"testing"

	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/replay"
	"kernelfuzz/internal/testkit"
	"kernelfuzz/internal/textfmt"
)

func TestResolveInputFormat(t *testing.T) {
	text, err := textfmt.Encode(testkit.SampleDeclarations())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := []struct {
		flag string
		data []byte
		want bool
	}{
		{"auto", text, true},
		{"auto", []byte("markus-9.9.9\n"), true},
		{"auto", []byte{0x02, 0, 0}, false},
		{"auto", nil, false},
		{"text", []byte{0x02}, true},
		{"bin", text, false},
	}
	for _, tc := range cases {
		got, err := resolveInputFormat(tc.flag, tc.data)
		if err != nil {
			t.Fatalf("resolveInputFormat(%q): %v", tc.flag, err)
		}
		if got != tc.want {
			t.Fatalf("resolveInputFormat(%q, %q) = %v, want %v", tc.flag, tc.data, got, tc.want)
		}
	}
	if _, err := resolveInputFormat("yaml", nil); err == nil {
		t.Fatal("expected an error for an unknown input format")
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, " ON ": uiModeOn, "off": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatal("expected an error")
	}
	if shouldUseTUI(uiModeOn, true) {
		t.Fatal("--json must disable the progress view")
	}
}

func TestSeedGroupsKeepsBinaryKinds(t *testing.T) {
	decls := testkit.SampleDeclarations()
	joined := seedGroups(decls, false)
	if len(joined) != 1 {
		t.Fatalf("joined groups = %d, want 1", len(joined))
	}
	for _, d := range joined[0] {
		switch d.Kind {
		case ir.DeclDefinition, ir.DeclTheorem, ir.DeclInductive:
		default:
			t.Fatalf("%s should have been filtered", d.Kind)
		}
	}
	split := seedGroups(decls, true)
	if len(split) != len(joined[0]) {
		t.Fatalf("split groups = %d, want %d", len(split), len(joined[0]))
	}
	if seedGroups(nil, true) != nil {
		t.Fatal("no declarations should yield no groups")
	}
}

func TestSeedsShareOnePool(t *testing.T) {
	dir := t.TempDir()
	poolPath := filepath.Join(dir, ".strings")
	pool, err := openPool(poolPath)
	if err != nil {
		t.Fatalf("missing pool should start empty: %v", err)
	}

	groups := seedGroups(testkit.SampleDeclarations(), true)
	var seeds [][]byte
	for _, g := range groups {
		data, err := encodeSeed(pool, g)
		if err != nil {
			t.Fatalf("encode %s: %v", g[0].Name, err)
		}
		if _, err := corpus.WriteSeed(dir, data, corpus.Zstd); err != nil {
			t.Fatal(err)
		}
		seeds = append(seeds, data)
	}
	if err := corpus.WritePool(poolPath, pool); err != nil {
		t.Fatal(err)
	}

	reread, err := openPool(poolPath)
	if err != nil {
		t.Fatal(err)
	}
	for i, data := range seeds {
		sess := binfmt.Decode(data, binfmt.Options{Pool: reread})
		got := sess.Declarations()
		if len(got) != 1 || !got[0].Equal(groups[i][0]) {
			t.Fatalf("seed %d: decoded %v, want %v", i, got, groups[i][0])
		}
	}

	paths, err := corpus.Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != len(seeds) {
		t.Fatalf("discovered %d seeds, want %d (pool file must stay hidden)", len(paths), len(seeds))
	}
}

func TestReplayReportUsesStrings(t *testing.T) {
	outs := []replay.Outcome{{Path: "a", Digest: ir.SumInput([]byte("a")), Verdict: replay.VerdictKernelPanic}}
	rep := newReplayReport(replay.Summarize(outs), outs)
	got := rep.Outcomes[0]
	if got.Verdict != "kernel-panic" || len(got.Digest) != 64 {
		t.Fatalf("outcome = %+v", got)
	}
	if rep.Summary.Panics != 1 {
		t.Fatalf("summary = %+v", rep.Summary)
	}
}
