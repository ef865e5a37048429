package fuzztests

import (
	"os"
	"path/filepath"
	"testing"

	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/testkit"
	"kernelfuzz/internal/textfmt"
)

const (
	maxFuzzInput = 1 << 16 // 64 KiB
	maxSeedBytes = 64 << 10
)

// binarySample keeps the declarations the binary format can carry.
func binarySample() []ir.Declaration {
	var out []ir.Declaration
	for _, d := range testkit.SampleDeclarations() {
		switch d.Kind {
		case ir.DeclDefinition, ir.DeclTheorem, ir.DeclInductive:
			out = append(out, d)
		}
	}
	return out
}

// seedPool is shared by every binary harness so that seeds decode to what
// they were encoded from.
var seedPool = func() *strpool.Pool {
	_, pool, err := binfmt.Encode(binarySample())
	if err != nil {
		panic("fuzz: encode sample: " + err.Error())
	}
	return pool
}()

func addBinarySeeds(f *testing.F) {
	data, _, err := binfmt.Encode(binarySample())
	if err != nil {
		f.Fatalf("encode sample: %v", err)
	}
	f.Add(data)
	for _, d := range binarySample() {
		one, _, err := binfmt.Encode([]ir.Declaration{d})
		if err == nil {
			f.Add(one)
		}
	}
	f.Add([]byte{})
	f.Add([]byte{0x03, 0xff, 0xff, 0xff, 0xff})       // theorem over an empty term table
	f.Add([]byte{0x05, 0x02, 0x02, 0x00, 0x05, 0x00}) // family of missing inductives
	addTestdataSeeds(f, "bin")
}

func addTextSeeds(f *testing.F) {
	data, err := textfmt.Encode(testkit.SampleDeclarations())
	if err != nil {
		f.Fatalf("encode sample: %v", err)
	}
	f.Add(data)
	f.Add([]byte(textfmt.Markus005.Header() + "#NAME #NS 0 \"foo\"\n#LVL #US 0\n#EXPR #ES 1\n"))
	f.Add([]byte(textfmt.Markus005.Header()))
	f.Add([]byte("markus-0.0.4\n"))
	addTestdataSeeds(f, "text")
}

// addTestdataSeeds adds every corpus file under testdata/<kind>.
func addTestdataSeeds(f *testing.F, kind string) {
	root := filepath.Join("..", "..", "testdata", kind)
	if _, err := os.Stat(root); err != nil {
		return
	}
	paths, err := corpus.Discover(root)
	if err != nil {
		return
	}
	for _, p := range paths {
		data, err := corpus.ReadFile(p)
		if err != nil {
			continue
		}
		f.Add(clampSeed(data))
	}
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}

func clampInput(input []byte) []byte {
	if len(input) > maxFuzzInput {
		return append([]byte(nil), input[:maxFuzzInput]...)
	}
	return append([]byte(nil), input...)
}
