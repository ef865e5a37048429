package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/leanfmt"
	"kernelfuzz/internal/snapshot"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/textfmt"
	"kernelfuzz/internal/trace"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [flags] FILE",
	Short: "Decode a text or binary export and print it",
	Long: `Decode a kernel export. Text exports (starting with a format header) are
decoded strictly and stop at the first error; anything else is decoded with
the lenient binary decoder, which never fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().String("input", "auto", "input format (auto|text|bin)")
	decodeCmd.Flags().String("format", "summary", "output format (summary|lean|json|cbor)")
	decodeCmd.Flags().String("strings", "", "string pool for binary input (default: [fuzz].strings)")
	decodeCmd.Flags().Bool("no-axioms", false, "reject axiom records in text input")
	decodeCmd.Flags().Bool("probe-false", false, "append the False probe to a binary decode")
	decodeCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
}

// decoded is what every output format renders.
type decoded struct {
	source string
	kind   string
	store  *arena.Store
	decls  []ir.Declaration
	stats  *binfmt.Stats
}

func runDecode(cmd *cobra.Command, args []string) error {
	cleanup, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	stopProfiling, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer stopProfiling()

	inputFmt, _ := cmd.Flags().GetString("input")
	outFmt, _ := cmd.Flags().GetString("format")
	outFmt = strings.ToLower(outFmt)
	switch outFmt {
	case "summary", "lean", "json", "cbor":
	default:
		return fmt.Errorf("unsupported format %q (must be summary, lean, json or cbor)", outFmt)
	}

	tm := newTimings(cmd)
	defer tm.print()

	path := args[0]
	idx := tm.begin("read")
	data, err := corpus.ReadFile(path)
	if err != nil {
		return err
	}
	tm.end(idx, len(data), "bytes")

	text, err := resolveInputFormat(inputFmt, data)
	if err != nil {
		return err
	}

	var d *decoded
	idx = tm.begin("decode")
	if text {
		d, err = decodeText(cmd, path, data)
	} else {
		d, err = decodeBinary(cmd, path, data)
	}
	if err != nil {
		return err
	}
	tm.end(idx, len(d.decls), "declarations")

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOut()

	idx = tm.begin("render")
	defer tm.end(idx, 0, outFmt)
	switch outFmt {
	case "lean":
		return leanfmt.Print(out, d.store, d.decls)
	case "json":
		return snapshot.Build(d.source, d.store, d.decls).WriteJSON(out)
	case "cbor":
		b, err := snapshot.Build(d.source, d.store, d.decls).CBOR()
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	default:
		return writeSummary(out, d)
	}
}

func resolveInputFormat(flag string, data []byte) (bool, error) {
	switch strings.ToLower(flag) {
	case "text":
		return true, nil
	case "bin", "binary":
		return false, nil
	case "auto", "":
		return looksLikeText(data), nil
	default:
		return false, fmt.Errorf("invalid --input value %q (expected auto|text|bin)", flag)
	}
}

// looksLikeText reports whether data opens with a registered format header.
func looksLikeText(data []byte) bool {
	line, _, _ := bytes.Cut(data, []byte{'\n'})
	if _, ok := textfmt.Lookup(string(line)); ok {
		return true
	}
	return bytes.HasPrefix(data, []byte("markus-"))
}

func decodeText(cmd *cobra.Command, path string, data []byte) (*decoded, error) {
	noAxioms, _ := cmd.Flags().GetBool("no-axioms")
	fs := source.NewFileSet()
	id := fs.Add(path, data, 0)
	bag := newBag(cmd)
	sess, err := textfmt.Decode(fs, id, textfmt.Options{
		AllowAxioms: !noAxioms,
		Reporter:    diag.BagReporter{Bag: bag},
		Tracer:      trace.FromContext(cmd.Context()),
		ParentSpan:  trace.CurrentSpan(cmd.Context()),
	})
	if err != nil {
		printDiagnostics(cmd, bag, fs)
		return nil, err
	}
	return &decoded{source: path, kind: "text " + sess.Grammar().Version, store: sess.Store(), decls: sess.Declarations()}, nil
}

func decodeBinary(cmd *cobra.Command, path string, data []byte) (*decoded, error) {
	poolPath, _ := cmd.Flags().GetString("strings")
	if poolPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		poolPath = cfg.Resolve(cfg.Fuzz.Strings)
	}
	pool, err := loadPool(poolPath)
	if err != nil {
		return nil, err
	}
	sess := binfmt.Decode(data, binfmt.Options{
		Pool:       pool,
		Tracer:     trace.FromContext(cmd.Context()),
		ParentSpan: trace.CurrentSpan(cmd.Context()),
	})
	if probe, _ := cmd.Flags().GetBool("probe-false"); probe {
		sess.AddFalseProbe()
	}
	stats := sess.Stats()
	return &decoded{source: path, kind: "binary", store: sess.Store(), decls: sess.Declarations(), stats: &stats}, nil
}

func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "close %s: %v\n", path, err)
		}
	}, nil
}

func writeSummary(w io.Writer, d *decoded) error {
	sizes := d.store.Sizes()
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", d.source, d.kind)
	fmt.Fprintf(&b, "  names        %d\n", sizes.Names)
	fmt.Fprintf(&b, "  levels       %d\n", sizes.Levels)
	fmt.Fprintf(&b, "  terms        %d\n", sizes.Terms)
	fmt.Fprintf(&b, "  constructors %d\n", sizes.Ctors)
	fmt.Fprintf(&b, "  inductives   %d\n", sizes.Inductives)
	if d.stats != nil {
		fmt.Fprintf(&b, "  records %d, overruns %d, wrapped %d, fallbacks %d\n",
			d.stats.Records, d.stats.Overruns, d.stats.Wrapped, d.stats.Fallbacks)
	}
	fmt.Fprintf(&b, "declarations: %d\n", len(d.decls))
	for _, decl := range d.decls {
		fmt.Fprintf(&b, "  %s\n", decl)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
