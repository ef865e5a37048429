package binfmt

import (
	"errors"
	"math/rand/v2"
	"testing"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/testkit"
)

func TestEmptyBuffer(t *testing.T) {
	s := Decode(nil, Options{})
	if len(s.Declarations()) != 0 {
		t.Fatalf("decls = %v", s.Declarations())
	}
	want := arena.Sizes{Names: 1, Levels: 1}
	if got := s.Store().Sizes(); got != want {
		t.Fatalf("sizes = %+v, want %+v", got, want)
	}
	if s.Stats() != (Stats{}) {
		t.Fatalf("stats = %+v", s.Stats())
	}
}

func TestCursorZeroPastEnd(t *testing.T) {
	c := NewCursor([]byte{0x12, 0x34, 0x56})
	if got := c.U16(); got != 0x1234 {
		t.Fatalf("U16 = %#x", got)
	}
	if got := c.U32(); got != 0x56000000 {
		t.Fatalf("U32 = %#x", got)
	}
	if c.Overruns() != 3 || c.Remaining() != 0 {
		t.Fatalf("overruns = %d, remaining = %d", c.Overruns(), c.Remaining())
	}
	if got := NewCursor([]byte{1, 2}).Bytes(4); string(got) != "\x01\x02\x00\x00" {
		t.Fatalf("Bytes = %q", got)
	}
}

func TestTruncatedRecordReadsZero(t *testing.T) {
	s := Decode([]byte{0x01}, Options{})
	term, ok := s.Store().Terms.Get(0)
	if !ok || !term.Equal(ir.BVar(0)) {
		t.Fatalf("terms = %v", s.Store().Terms.Data())
	}
	if st := s.Stats(); st.Records != 1 || st.Overruns != 3 {
		t.Fatalf("stats = %+v", st)
	}
}

func decodeChecked(t *testing.T, data []byte, pool *strpool.Pool) (s *Session) {
	t.Helper()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("decode of %x panicked: %v", data, r)
		}
	}()
	s = Decode(data, Options{Pool: pool})
	if err := testkit.CheckStoreInvariants(s.Store()); err != nil {
		t.Fatalf("%x: %v", data, err)
	}
	return s
}

func TestTotalityRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	pools := []*strpool.Pool{nil, strpool.New(), strpool.New("Nat", "zero", "succ")}
	for i := 0; i < 2000; i++ {
		data := make([]byte, rng.IntN(512))
		for j := range data {
			data[j] = byte(rng.UintN(256))
		}
		decodeChecked(t, data, pools[i%len(pools)])
	}
}

func TestTotalityShortInputs(t *testing.T) {
	pool := strpool.New("a")
	for a := 0; a < 256; a++ {
		decodeChecked(t, []byte{byte(a)}, pool)
		for b := 0; b < 256; b++ {
			decodeChecked(t, []byte{byte(a), byte(b)}, pool)
		}
	}
}

func TestTablesGrowMonotonically(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 200; i++ {
		data := make([]byte, 64+rng.IntN(256))
		for j := range data {
			data[j] = byte(rng.UintN(256))
		}
		s := newSession(data, Options{})
		prev := s.store.Sizes()
		for s.cur.Remaining() > 0 {
			s.step()
			cur := s.store.Sizes()
			if err := testkit.CheckGrowth(prev, cur); err != nil {
				t.Fatalf("record %d of %x: %v", s.stats.Records, data, err)
			}
			prev = cur
		}
	}
}

func TestSeedsSurvive(t *testing.T) {
	s := decodeChecked(t, []byte{0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, nil)
	if n, _ := s.Store().Names.Get(0); !n.IsAnonymous() {
		t.Fatalf("Names[0] = %s", n)
	}
	if l, _ := s.Store().Levels.Get(0); l.Kind() != ir.LevelZero {
		t.Fatalf("Levels[0] = %s", l)
	}
	// the empty pool hands out the placeholder component
	if n, _ := s.Store().Names.Get(1); n.Str() != strpool.Placeholder {
		t.Fatalf("Names[1] = %s", n)
	}
}

func TestWraparoundDeterminism(t *testing.T) {
	pool := strpool.New("a", "b", "c")
	prefix := []byte{
		0x07, 0x00, 0x00, 0x00, 0x00, 0x00, // a
		0x07, 0x00, 0x00, 0x00, 0x00, 0x01, // b
		0x07, 0x00, 0x00, 0x00, 0x00, 0x02, // c
	}
	param := func(i uint16) []byte {
		return append(append([]byte{}, prefix...), 0x00, 0x03, byte(i>>8), byte(i))
	}
	const size = 4
	for _, i := range []uint16{0, 1, 2, 3, 4, 5, 7, 8, 41, 1000, 0xffff} {
		got, _ := Decode(param(i), Options{Pool: pool}).Store().Levels.Last()
		want, _ := Decode(param(i%size), Options{Pool: pool}).Store().Levels.Last()
		if !got.Equal(want) {
			t.Errorf("param(%d) = %s, param(%d) = %s", i, got, i%size, want)
		}
		again, _ := Decode(param(i), Options{Pool: pool}).Store().Levels.Last()
		if !again.Equal(got) {
			t.Errorf("param(%d) is not deterministic", i)
		}
	}
	// index 0 in a position that forbids anonymity becomes the placeholder
	l, _ := Decode(param(4), Options{Pool: pool}).Store().Levels.Last()
	if !l.ParamName().Equal(arena.PlaceholderName) {
		t.Errorf("param(4) = %s", l)
	}
}

func TestEmptyTermTableFallback(t *testing.T) {
	// app of two references into the empty term table
	s := decodeChecked(t, []byte{0x01, 0x03, 0x00, 0x09, 0x00, 0x00}, nil)
	app, _ := s.Store().Terms.Get(0)
	if !app.AppFn().Equal(arena.FallbackTerm) || !app.AppArg().Equal(arena.FallbackTerm) {
		t.Fatalf("app = %s", app)
	}
	if s.Stats().Fallbacks != 2 {
		t.Fatalf("stats = %+v", s.Stats())
	}
}

func TestConstructorAndInductiveFallbacks(t *testing.T) {
	data := []byte{
		0x07, 0x00, 0x00, 0x00, 0x00, 0x00, // name X
		0x01, 0x01, 0x00, 0x00, // sort 0
		0x04, 0x00, 0x01, 0x00, 0x00, 0x01, 0x00, 0x01, // inductive X : Sort 0 with ctor X (missing)
		0x05, 0x02, 0x02, 0x00, 0x05, 0x00, 0x00, 0x00, // family of X (5 % 2) and anonymous (missing)
	}
	s := decodeChecked(t, data, strpool.New("X"))
	x := ir.NameStr(nil, "X")
	sort0 := ir.Sort(ir.Zero())
	anyCtor := ir.Constructor{Name: x, Type: sort0}
	want := ir.InductiveType{Name: x, Type: sort0, Ctors: []ir.Constructor{anyCtor}}

	decls := s.Declarations()
	if len(decls) != 1 || decls[0].Kind != ir.DeclInductive {
		t.Fatalf("decls = %v", decls)
	}
	d := decls[0]
	if d.NumParams != 2 || len(d.Types) != 2 || len(d.Params) != 0 {
		t.Fatalf("family = %+v", d)
	}
	for i, ind := range d.Types {
		if !ind.Equal(want) {
			t.Errorf("Types[%d] = %+v", i, ind)
		}
	}
	if st := s.Stats(); st.Fallbacks != 2 || st.Wrapped != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFalseProbe(t *testing.T) {
	if Decode(nil, Options{}).AddFalseProbe() {
		t.Fatalf("probe without terms")
	}
	s := Decode([]byte{0x01, 0x00, 0x00, 0x00}, Options{})
	if !s.AddFalseProbe() || s.AddFalseProbe() {
		t.Fatalf("probe should be added exactly once")
	}
	decls := s.Declarations()
	probe := decls[len(decls)-1]
	if probe.Kind != ir.DeclTheorem || probe.Name.String() != "foo" || probe.Type.String() != "False" {
		t.Fatalf("probe = %s", probe)
	}
	if !probe.Value.Equal(ir.BVar(0)) {
		t.Fatalf("probe proof = %s", probe.Value)
	}
}

func binaryDecls() []ir.Declaration {
	var out []ir.Declaration
	for _, d := range testkit.SampleDeclarations() {
		switch d.Kind {
		case ir.DeclDefinition, ir.DeclTheorem, ir.DeclInductive:
			out = append(out, d)
		}
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	decls := append(binaryDecls(),
		ir.MkDefinition(ir.ParseName("s"), nil, ir.Const(ir.ParseName("String")), ir.StrLit([]byte{0, 1, 0xff}), ir.OpaqueHint()),
		ir.MkTheorem(ir.NameNum(ir.ParseName("t"), 3), nil, ir.Sort(ir.Zero()),
			ir.Proj(ir.ParseName("P"), 2, ir.BVar(7))),
	)
	data, pool, err := Encode(decls)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := decodeChecked(t, data, pool)
	got := s.Declarations()
	if len(got) != len(decls) {
		t.Fatalf("got %d declarations, want %d", len(got), len(decls))
	}
	for i := range decls {
		if !got[i].Equal(decls[i]) {
			t.Errorf("declaration %d:\n got  %s\n want %s", i, got[i], decls[i])
		}
	}
	if st := s.Stats(); st.Wrapped != 0 || st.Fallbacks != 0 || st.Overruns != 0 {
		t.Errorf("encoded input should decode without leniency: %+v", st)
	}
}

func TestEncodeRejects(t *testing.T) {
	nat := ir.Const(testkit.NatName)
	tests := []struct {
		name string
		decl ir.Declaration
	}{
		{"axiom", ir.MkAxiom(ir.ParseName("a"), nil, nat)},
		{"opaque", ir.MkOpaque(ir.ParseName("a"), nil, nat, nat)},
		{"quotient", ir.MkQuotient()},
		{"anonymous name", ir.MkTheorem(nil, nil, nat, nat)},
		{"wide bvar", ir.MkTheorem(ir.ParseName("a"), nil, nat, ir.BVar(1<<16))},
		{"long strlit", ir.MkTheorem(ir.ParseName("a"), nil, nat, ir.StrLit(make([]byte, 256)))},
		{"newline component", ir.MkTheorem(ir.NameStr(nil, "a\nb"), nil, nat, nat)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Encode([]ir.Declaration{tt.decl}); !errors.Is(err, ErrUnencodable) {
				t.Fatalf("err = %v", err)
			}
		})
	}
}
