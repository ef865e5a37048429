package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/source"
)

func sampleBag() (*diag.Bag, *source.FileSet) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("prelude.txt", []byte("markus-0.0.5\n#NAME #NS 0 foo extra\n"))
	bag := diag.NewBag(10)
	r := diag.BagReporter{Bag: bag}
	diag.ReportError(r, diag.WireTrailingData, source.Span{File: id, Start: 29, End: 34}, "unconsumed token \"extra\"").
		WithNote(source.Span{File: id, Start: 13, End: 18}, "record starts here").
		Emit()
	diag.ReportError(r, diag.KernelUnknownConstant, source.Span{}, "unknown constant Nat").Emit()
	return bag, fs
}

func TestPrettyPlain(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})
	out := buf.String()
	wantLines := []string{
		"prelude.txt:2:17: ERROR WIR1016: unconsumed token \"extra\"",
		"  2 | #NAME #NS 0 foo extra",
		"    | " + strings.Repeat(" ", 16) + "^~~~~",
		"  note: prelude.txt:2:1: record starts here",
		"ERROR KRN2002: unknown constant Nat",
	}
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(got) != len(wantLines) {
		t.Fatalf("got %d lines:\n%s", len(got), out)
	}
	for i := range wantLines {
		if got[i] != wantLines[i] {
			t.Errorf("line %d:\n got %q\nwant %q", i, got[i], wantLines[i])
		}
	}
}

func TestJSONOutput(t *testing.T) {
	bag, fs := sampleBag()
	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, IncludeNotes: true}); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d", out.Count)
	}
	first := out.Diagnostics[0]
	if first.Category != "TrailingData" || first.Location == nil || first.Location.StartLine != 2 {
		t.Fatalf("unexpected first diagnostic: %+v", first)
	}
	if out.Diagnostics[1].Location != nil {
		t.Fatalf("kernel diagnostic should have no location")
	}
}
