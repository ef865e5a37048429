package fuzztests

import (
	"errors"
	"testing"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/textfmt"
)

func FuzzTextDecodeRoundTrip(f *testing.F) {
	addTextSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		bag := diag.NewBag(8)
		s, err := textfmt.DecodeBytes("fuzz.export", input, textfmt.Options{
			AllowAxioms: true,
			Reporter:    diag.BagReporter{Bag: bag},
		})
		if err != nil {
			var de *textfmt.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error of type %T: %v", err, err)
			}
			if s.State() != textfmt.StateAborted || bag.Len() == 0 {
				t.Fatalf("state %s with %d diagnostics after %v", s.State(), bag.Len(), err)
			}
			return
		}

		again, err := textfmt.Encode(s.Declarations())
		if errors.Is(err, textfmt.ErrUnencodable) {
			return
		}
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		back, err := textfmt.DecodeBytes("again.export", again, textfmt.Options{AllowAxioms: true})
		if err != nil {
			t.Fatalf("re-decode: %v\n%s", err, again)
		}
		want, got := s.Declarations(), back.Declarations()
		if len(got) != len(want) {
			t.Fatalf("got %d declarations, want %d", len(got), len(want))
		}
		for i := range want {
			if !got[i].Equal(want[i]) {
				t.Fatalf("declaration %d: %s != %s", i, got[i], want[i])
			}
		}
	})
}
