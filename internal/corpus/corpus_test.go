package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
)

func TestCompressionRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("markus-0.0.5\n#NAME #NS 0 foo\n"), 100)
	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			packed, err := Compress(data, c)
			if err != nil {
				t.Fatalf("compress: %v", err)
			}
			if c != CompressionNone && len(packed) >= len(data) {
				t.Errorf("%s did not shrink repetitive input: %d >= %d", c, len(packed), len(data))
			}
			back, err := Decompress(packed, c)
			if err != nil {
				t.Fatalf("decompress: %v", err)
			}
			if !bytes.Equal(back, data) {
				t.Fatal("round trip mismatch")
			}
		})
	}
}

func TestDecompressGarbage(t *testing.T) {
	for _, c := range []Compression{CompressionZstd, CompressionLZ4} {
		if _, err := Decompress([]byte("definitely not compressed"), c); err == nil {
			t.Errorf("%s accepted garbage", c)
		}
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]Compression{"": CompressionNone, "none": CompressionNone, "ZSTD": CompressionZstd, "lz4": CompressionLZ4}
	for in, want := range cases {
		got, err := ParseCompression(in)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("gzip should be rejected")
	}
	if CompressionOf("a/b.bin.zst") != CompressionZstd || CompressionOf("x.lz4") != CompressionLZ4 || CompressionOf("x") != CompressionNone {
		t.Error("extension inference is wrong")
	}
}

func TestWriteSeedAndDiscover(t *testing.T) {
	dir := t.TempDir()
	seeds := [][]byte{{0x01, 0x01, 0x00, 0x00}, {0x07}, {}}
	var paths []string
	for i, s := range seeds {
		c := []Compression{CompressionNone, CompressionZstd, CompressionLZ4}[i]
		p, err := WriteSeed(dir, s, c)
		if err != nil {
			t.Fatalf("write seed: %v", err)
		}
		paths = append(paths, p)
	}
	// identical content collapses onto the same file
	again, err := WriteSeed(dir, seeds[0], CompressionNone)
	if err != nil || again != paths[0] {
		t.Fatalf("rewrite = %q, %v; want %q", again, err, paths[0])
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(found) != len(seeds) {
		t.Fatalf("found %v, want %d files", found, len(seeds))
	}
	for i, p := range paths {
		e, err := Load(p)
		if err != nil {
			t.Fatalf("load %s: %v", p, err)
		}
		if !bytes.Equal(e.Data, seeds[i]) || e.Digest != ir.SumInput(seeds[i]) {
			t.Errorf("entry %s does not match seed %d", p, i)
		}
	}
}

func TestDiscoverSingleFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "input.bin")
	if err := WriteFile(p, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	found, err := Discover(p)
	if err != nil || len(found) != 1 || found[0] != p {
		t.Fatalf("Discover(file) = %v, %v", found, err)
	}
	if _, err := Discover(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing root: %v", err)
	}
}

func TestPoolFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "strings.zst")
	pool := strpool.New("Nat", "zero", "succ")
	if err := WritePool(p, pool); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ReadPool(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if back.Len() != 3 || back.Lookup(1) != "zero" {
		t.Fatalf("pool = %v", back.Strings())
	}
}
