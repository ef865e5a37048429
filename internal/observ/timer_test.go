package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	a := tm.Begin("prelude")
	tm.End(a, 12, "strict")
	b := tm.Begin("replay")
	tm.End(b, 0, "")
	tm.End(42, 1, "ignored")

	r := tm.Report()
	if len(r.Phases) != 2 {
		t.Fatalf("phases = %d", len(r.Phases))
	}
	if r.Phases[0].Items != 12 || r.Phases[0].Note != "strict" {
		t.Fatalf("unexpected phase: %+v", r.Phases[0])
	}
	s := tm.Summary()
	if !strings.Contains(s, "prelude") || !strings.Contains(s, "// strict") || !strings.Contains(s, "total") {
		t.Fatalf("summary:\n%s", s)
	}
}

func TestEmptyTimer(t *testing.T) {
	if r := NewTimer().Report(); r.TotalMS != 0 || r.Phases != nil {
		t.Fatalf("empty report = %+v", r)
	}
}
