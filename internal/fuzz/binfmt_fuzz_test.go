package fuzztests

import (
	"errors"
	"testing"
	"time"

	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/testkit"
)

// decodeTimeout is far above the linear decode cost of a clamped input.
const decodeTimeout = 5 * time.Second

func FuzzBinaryDecode(f *testing.F) {
	addBinarySeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("decoder panicked on %x: %v", input, r)
			}
		}()

		s := binfmt.Decode(input, binfmt.Options{Pool: seedPool})
		if err := testkit.CheckStoreInvariants(s.Store()); err != nil {
			t.Fatalf("invariants: %v", err)
		}
		if s.Stats().Records > len(input) {
			t.Fatalf("%d records from %d bytes", s.Stats().Records, len(input))
		}
		s.AddFalseProbe()

		_, _, err := kernel.AdmitAll(kernel.ScopeKernel{}.Empty(), s.Declarations())
		if errors.Is(err, kernel.ErrPanic) {
			t.Fatalf("kernel panicked: %v", err)
		}
	})
}

// FuzzBinaryDecodeNoHang guards the decode loop against inputs that stop
// advancing the cursor.
func FuzzBinaryDecodeNoHang(f *testing.F) {
	addBinarySeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		done := make(chan struct{})
		go func() {
			defer close(done)
			binfmt.Decode(input, binfmt.Options{Pool: seedPool})
		}()
		select {
		case <-done:
		case <-time.After(decodeTimeout):
			t.Fatalf("decode did not finish within %s on %d bytes", decodeTimeout, len(input))
		}
	})
}

// Decoding is deterministic: two sessions over the same bytes agree.
func FuzzBinaryDecodeDeterministic(f *testing.F) {
	addBinarySeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		a := binfmt.Decode(input, binfmt.Options{Pool: seedPool})
		b := binfmt.Decode(input, binfmt.Options{Pool: seedPool})
		if a.Stats() != b.Stats() || a.Store().Sizes() != b.Store().Sizes() {
			t.Fatalf("stats differ: %+v vs %+v", a.Stats(), b.Stats())
		}
		da, db := a.Declarations(), b.Declarations()
		if len(da) != len(db) {
			t.Fatalf("declaration counts differ: %d vs %d", len(da), len(db))
		}
		for i := range da {
			if !da[i].Equal(db[i]) {
				t.Fatalf("declaration %d differs: %s vs %s", i, da[i], db[i])
			}
		}
	})
}
