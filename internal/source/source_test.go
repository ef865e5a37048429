package source

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAddVirtualLineIdx(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("prelude.txt", []byte("markus-0.0.5\n#NAME #NS 0 foo\n"))
	f := fs.Get(id)
	if len(f.LineIdx) != 2 || f.LineIdx[0] != 12 {
		t.Fatalf("unexpected line index %v", f.LineIdx)
	}
	if f.Flags&FileVirtual == 0 {
		t.Fatalf("virtual flag not set")
	}
	if got := f.GetLine(2); got != "#NAME #NS 0 foo" {
		t.Fatalf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(3); got != "" {
		t.Fatalf("GetLine(3) = %q, want empty", got)
	}
	if f.LineCount() != 2 {
		t.Fatalf("LineCount() = %d", f.LineCount())
	}
}

func TestResolve(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("x", []byte("ab\ncde\nf"))
	start, end := fs.Resolve(Span{File: id, Start: 4, End: 6})
	if start != (LineCol{Line: 2, Col: 2}) || end != (LineCol{Line: 2, Col: 4}) {
		t.Fatalf("Resolve = %v-%v", start, end)
	}
	start, _ = fs.Resolve(Span{File: id, Start: 7, End: 7})
	if start != (LineCol{Line: 3, Col: 1}) {
		t.Fatalf("start of last line resolved to %v", start)
	}
	start, _ = fs.Resolve(Span{File: id, Start: 2, End: 2})
	if start != (LineCol{Line: 1, Col: 3}) {
		t.Fatalf("newline position resolved to %v", start)
	}
}

func TestLineSpanAndCount(t *testing.T) {
	fs := NewFileSet()
	f := fs.Get(fs.AddVirtual("x", []byte("ab\ncde")))
	if sp := f.LineSpan(2); sp.Start != 3 || sp.End != 6 {
		t.Fatalf("LineSpan(2) = %v", sp)
	}
	if f.LineCount() != 2 {
		t.Fatalf("LineCount() = %d", f.LineCount())
	}
}

func TestLoadNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prelude.txt")
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a\r\nb\r\n")...)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs := NewFileSet()
	id, err := fs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f := fs.Get(id)
	if string(f.Content) != "a\nb\n" {
		t.Fatalf("content = %q", f.Content)
	}
	if f.Flags&FileHadBOM == 0 || f.Flags&FileNormalizedCRLF == 0 {
		t.Fatalf("flags = %b", f.Flags)
	}
	if got, ok := fs.GetByPath(path); !ok || got.ID != id {
		t.Fatalf("GetByPath failed")
	}
}

func TestFileVersioning(t *testing.T) {
	fs := NewFileSet()
	first := fs.AddVirtual("a", []byte("1"))
	second := fs.AddVirtual("a", []byte("2"))
	if first == second {
		t.Fatalf("повторное добавление должно выдавать новый ID")
	}
	f, _ := fs.GetByPath("a")
	if f.ID != second {
		t.Fatalf("index should point at the latest version")
	}
	if fs.Get(first).Hash == fs.Get(second).Hash {
		t.Fatalf("different content must hash differently")
	}
}

func TestNoFileID(t *testing.T) {
	fs := NewFileSet()
	if fs.Get(NoFileID) != nil {
		t.Fatalf("NoFileID must not resolve")
	}
	if id := fs.AddVirtual("a", nil); id == NoFileID {
		t.Fatalf("first file got the reserved id")
	}
	if start, _ := fs.Resolve(Span{}); start != (LineCol{}) {
		t.Fatalf("empty span resolved to %v", start)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 6}
	b := Span{File: 1, Start: 2, End: 5}
	if got := a.Cover(b); got.Start != 2 || got.End != 6 {
		t.Fatalf("Cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 100}); got != a {
		t.Fatalf("cross-file cover changed span")
	}
	if got := a.ZeroideToEnd(); got.Start != 6 || !got.Empty() {
		t.Fatalf("ZeroideToEnd = %v", got)
	}
}

func TestRelativePath(t *testing.T) {
	tmp := t.TempDir()
	base := filepath.Join(tmp, "base")
	inside := filepath.Join(base, "corpus", "seed.bin")
	outside := filepath.Join(tmp, "other", "seed.bin")

	got, err := RelativePath(inside, base)
	if err != nil || got != "corpus/seed.bin" {
		t.Fatalf("inside: %q, %v", got, err)
	}
	got, err = RelativePath(outside, base)
	if err != nil || got != normalizePath(outside) {
		t.Fatalf("outside: %q, %v", got, err)
	}
}
