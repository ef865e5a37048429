package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"kernelfuzz/internal/binfmt"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/strpool"
	"kernelfuzz/internal/textfmt"
	"kernelfuzz/internal/trace"
)

var seedCmd = &cobra.Command{
	Use:   "seed [flags] EXPORT",
	Short: "Turn a text export into binary fuzz seeds",
	Long: `Decode a text export strictly and re-encode its definitions, theorems and
inductive types in the binary format. Every seed shares one string pool, which
is extended in place when it already exists. Seeds are named by digest, so
re-running over the same export does not duplicate files.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringP("out", "o", "", "seed directory (default: [fuzz].corpus)")
	seedCmd.Flags().String("strings", "", "string pool to extend (default: [fuzz].strings or OUT/.strings)")
	seedCmd.Flags().String("compress", "none", "seed compression (none|zstd|lz4)")
	seedCmd.Flags().Bool("split", false, "write one seed per declaration")
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	outDir := absFlag(cmd, "out")
	if outDir == "" {
		outDir = cfg.Resolve(cfg.Fuzz.Corpus)
	}
	if outDir == "" {
		return fmt.Errorf("no output directory given and no [fuzz].corpus configured")
	}
	poolPath := absFlag(cmd, "strings")
	if poolPath == "" {
		poolPath = cfg.Resolve(cfg.Fuzz.Strings)
	}
	if poolPath == "" {
		poolPath = filepath.Join(outDir, ".strings")
	}
	compName, _ := cmd.Flags().GetString("compress")
	comp, err := corpus.ParseCompression(compName)
	if err != nil {
		return err
	}
	split, _ := cmd.Flags().GetBool("split")

	tm := newTimings(cmd)
	defer tm.print()

	idx := tm.begin("decode")
	decls, err := decodeExport(cmd, args[0])
	if err != nil {
		return err
	}
	tm.end(idx, len(decls), "declarations")

	pool, err := openPool(poolPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	idx = tm.begin("encode")
	seeds := seedGroups(decls, split)
	var written, skipped int
	for _, group := range seeds {
		data, err := encodeSeed(pool, group)
		if err != nil {
			if !split {
				return err
			}
			skipped++
			if !quiet(cmd) {
				fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: %v\n", group[0].Name, err)
			}
			continue
		}
		if _, err := corpus.WriteSeed(outDir, data, comp); err != nil {
			return err
		}
		written++
	}
	if err := corpus.WritePool(poolPath, pool); err != nil {
		return err
	}
	tm.end(idx, written, fmt.Sprintf("%d skipped", skipped))

	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "%d seed(s) in %s, %d strings in %s\n", written, outDir, pool.Len(), poolPath)
	}
	return nil
}

func decodeExport(cmd *cobra.Command, path string) ([]ir.Declaration, error) {
	data, err := corpus.ReadFile(path)
	if err != nil {
		return nil, err
	}
	files := source.NewFileSet()
	id := files.Add(path, data, 0)
	bag := newBag(cmd)
	sess, err := textfmt.Decode(files, id, textfmt.Options{
		AllowAxioms: true,
		Reporter:    diag.BagReporter{Bag: bag},
		Tracer:      trace.FromContext(cmd.Context()),
		ParentSpan:  trace.CurrentSpan(cmd.Context()),
	})
	if err != nil {
		printDiagnostics(cmd, bag, files)
		return nil, err
	}
	return sess.Declarations(), nil
}

// openPool loads the pool at path, or starts an empty one.
func openPool(path string) (*strpool.Pool, error) {
	pool, err := corpus.ReadPool(path)
	if errors.Is(err, fs.ErrNotExist) {
		return strpool.New(), nil
	}
	return pool, err
}

// seedGroups keeps the declarations the binary format can carry.
func seedGroups(decls []ir.Declaration, split bool) [][]ir.Declaration {
	var kept []ir.Declaration
	for _, d := range decls {
		switch d.Kind {
		case ir.DeclDefinition, ir.DeclTheorem, ir.DeclInductive:
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if !split {
		return [][]ir.Declaration{kept}
	}
	groups := make([][]ir.Declaration, len(kept))
	for i := range kept {
		groups[i] = kept[i : i+1]
	}
	return groups
}

func encodeSeed(pool *strpool.Pool, decls []ir.Declaration) ([]byte, error) {
	enc := binfmt.NewEncoder(pool)
	for i := range decls {
		if err := enc.Declaration(decls[i]); err != nil {
			return nil, err
		}
	}
	return enc.Bytes(), nil
}
