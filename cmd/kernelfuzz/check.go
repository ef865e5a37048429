package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/replay"
	"kernelfuzz/internal/source"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [PRELUDE]",
	Short: "Decode a text export and admit it into a fresh kernel environment",
	Long: `Decode a text export strictly and admit every declaration in order.
Declarations that refer to unknown constants are skipped with a warning; any
other rejection stops the check. Without an argument the [prelude].path from
kernelfuzz.toml is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("no-axioms", false, "reject axiom records")
}

func runCheck(cmd *cobra.Command, args []string) error {
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
	path := cfg.Resolve(cfg.Prelude.Path)
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no prelude given and no [prelude].path configured")
	}
	noAxioms, _ := cmd.Flags().GetBool("no-axioms")
	if !cmd.Flags().Changed("no-axioms") {
		noAxioms = !cfg.Prelude.AllowAxioms
	}

	tm := newTimings(cmd)
	defer tm.print()

	fs := source.NewFileSet()
	bag := newBag(cmd)
	idx := tm.begin("prelude")
	p, err := replay.LoadPrelude(cmd.Context(), fs, path, kernel.ScopeKernel{}, replay.PreludeOptions{
		Reporter:     diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
		RejectAxioms: noAxioms,
	})
	printDiagnostics(cmd, bag, fs)
	if err != nil {
		return err
	}
	tm.end(idx, p.Env.Len(), "declarations")

	if !quiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d admitted, %d skipped (digest %s)\n",
			p.Path, len(p.Session.Declarations())-len(p.Skipped), len(p.Skipped), p.Digest.Short())
	}
	return nil
}
