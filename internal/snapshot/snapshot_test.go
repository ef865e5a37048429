package snapshot

import (
	"bytes"
	"testing"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/testkit"
	"kernelfuzz/internal/textfmt"
)

func textSession(t *testing.T) (*arena.Store, []ir.Declaration) {
	t.Helper()
	data, err := textfmt.Encode(testkit.SampleDeclarations())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s, err := textfmt.DecodeBytes("sample.export", data, textfmt.Options{AllowAxioms: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return s.Store(), s.Declarations()
}

func sameDecls(t *testing.T, got, want []ir.Declaration) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d declarations, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("declaration %d:\n got  %s\n want %s", i, got[i], want[i])
		}
	}
}

func TestBuildKeepsTableOrder(t *testing.T) {
	store, decls := textSession(t)
	snap := Build("sample", store, decls)
	if snap.Tables != store.Sizes() {
		t.Fatalf("tables = %+v, want %+v", snap.Tables, store.Sizes())
	}
	if len(snap.Names) != store.Names.Len() || len(snap.Terms) != store.Terms.Len() {
		t.Fatalf("strict session needs no extra records: names %d/%d terms %d/%d",
			len(snap.Names), store.Names.Len(), len(snap.Terms), store.Terms.Len())
	}
	if snap.Names[0].Kind != ir.NameAnonymous || snap.Levels[0].Kind != ir.LevelZero {
		t.Fatalf("seeds = %+v %+v", snap.Names[0], snap.Levels[0])
	}
}

func TestCBORRoundTrip(t *testing.T) {
	store, decls := textSession(t)
	snap := Build("sample", store, decls)
	data, err := snap.CBOR()
	if err != nil {
		t.Fatalf("cbor: %v", err)
	}
	again, err := Build("sample", store, decls).CBOR()
	if err != nil {
		t.Fatalf("cbor: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Fatal("encoding is not deterministic")
	}

	back, err := DecodeCBOR(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := back.Declarations()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	sameDecls(t, got, decls)
}

func TestJSONRoundTrip(t *testing.T) {
	store, decls := textSession(t)
	var buf bytes.Buffer
	if err := Build("sample", store, decls).WriteJSON(&buf); err != nil {
		t.Fatalf("json: %v", err)
	}
	back, err := ReadJSON(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := back.Declarations()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	sameDecls(t, got, decls)
}

// Fallbacks live outside the tables and are appended after them.
func TestBuildLenientFallbacks(t *testing.T) {
	s := binfmt.Decode([]byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, binfmt.Options{})
	snap := Build("probe", s.Store(), s.Declarations())
	if len(snap.Names) != s.Store().Names.Len()+1 {
		t.Fatalf("names = %d, want placeholder appended", len(snap.Names))
	}
	if len(snap.Terms) != 1 {
		t.Fatalf("terms = %d, want the fallback sort", len(snap.Terms))
	}
	got, err := snap.Declarations()
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	sameDecls(t, got, s.Declarations())
}

func TestDeclarationsRejectsBadReferences(t *testing.T) {
	cases := map[string]*Snapshot{
		"version": {Version: Version + 1},
		"forward name": {Version: Version, Names: []Name{
			{Kind: ir.NameAnonymous}, {Kind: ir.NameString, Parent: 2, Str: "x"},
		}},
		"level": {Version: Version, Levels: []Level{{Kind: ir.LevelSucc, Lhs: 0}}},
		"kids": {Version: Version, Terms: []Term{{Kind: ir.TermBVar}, {Kind: ir.TermApp, Kids: []uint32{0}}}},
		"nat":  {Version: Version, Terms: []Term{{Kind: ir.TermNatLit, Nat: "12a"}}},
		"decl": {Version: Version, Decls: []Declaration{{Kind: ir.DeclAxiom}}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := snap.Declarations(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
