package bignum

import (
	"testing"
)

func TestParseDecimalRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"7",
		"4294967295",
		"4294967296",
		"18446744073709551615",
		"18446744073709551616",
		"123456789012345678901234567890123456789",
	}
	for _, tc := range cases {
		u, err := ParseDecimal(tc)
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", tc, err)
		}
		if got := FormatUint(u); got != tc {
			t.Errorf("FormatUint(ParseDecimal(%q)) = %q", tc, got)
		}
	}
}

func TestParseDecimalLeadingZeros(t *testing.T) {
	u, err := ParseDecimal("000042")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, ok := u.Uint64(); !ok || v != 42 {
		t.Fatalf("expected 42, got %v (ok=%v)", v, ok)
	}
}

func TestParseDecimalRejects(t *testing.T) {
	for _, bad := range []string{"", "-1", "+1", "0x10", "1_000", "12a", " 1"} {
		if _, err := ParseDecimal(bad); err == nil {
			t.Errorf("ParseDecimal(%q) expected error", bad)
		}
	}
}

func TestFromBytesBE(t *testing.T) {
	u, err := UintFromBytesBE([]byte{0x01, 0x00, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FormatUint(u); got != "4294967296" {
		t.Fatalf("expected 2^32, got %s", got)
	}

	zero, err := UintFromBytesBE(nil)
	if err != nil || !zero.IsZero() {
		t.Fatalf("empty digits must be zero, got %v err=%v", zero, err)
	}

	// ведущие нули не влияют на значение
	a, _ := UintFromBytesBE([]byte{0, 0, 0xff})
	b, _ := UintFromBytesBE([]byte{0xff})
	if !a.Equal(b) {
		t.Fatalf("leading zero bytes changed value: %s vs %s", a, b)
	}
}

func TestBytesBERoundTrip(t *testing.T) {
	in := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x11}
	u, err := UintFromBytesBE(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := u.BytesBE()
	if string(out) != string(in) {
		t.Fatalf("BytesBE mismatch: %x vs %x", out, in)
	}
	if UintZero().BytesBE() != nil {
		t.Fatalf("zero must encode to no bytes")
	}
}

func TestUint64Conversion(t *testing.T) {
	u := UintFromUint64(1<<40 + 5)
	v, ok := u.Uint64()
	if !ok || v != 1<<40+5 {
		t.Fatalf("Uint64 = %d ok=%v", v, ok)
	}
	big, _ := ParseDecimal("18446744073709551616")
	if _, ok := big.Uint64(); ok {
		t.Fatalf("2^64 must not fit into uint64")
	}
}
