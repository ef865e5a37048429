package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kernelfuzz/internal/arena"
	"kernelfuzz/internal/config"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/ir"
	"kernelfuzz/internal/kernel"
	"kernelfuzz/internal/replay"
	"kernelfuzz/internal/source"
)

var replayCmd = &cobra.Command{
	Use:   "replay [flags] [CORPUS...]",
	Short: "Replay binary fuzz inputs against the kernel",
	Long: `Decode every input under the given files or directories with the lenient
binary decoder and admit the result into a copy of the prelude environment.
Kernel panics, decoder panics and admissions of False are findings; the
command fails when any were seen. Without arguments [fuzz].corpus is used.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().String("prelude", "", "text export to admit first (default: [prelude].path)")
	replayCmd.Flags().Bool("no-prelude", false, "replay against an empty environment")
	replayCmd.Flags().String("strings", "", "string pool (default: [fuzz].strings)")
	replayCmd.Flags().IntP("jobs", "j", 0, "max parallel inputs (0=auto)")
	replayCmd.Flags().Bool("probe-false", true, "append a definition of False to every input")
	replayCmd.Flags().Int("max-input", 0, "truncate inputs to this many bytes (0=config)")
	replayCmd.Flags().Int("max-memory-mb", 0, "address space limit for the process (0=config)")
	replayCmd.Flags().Bool("no-cache", false, "disable the outcome cache")
	replayCmd.Flags().String("cache-dir", "", "outcome cache directory (default: [cache].dir or user cache)")
	replayCmd.Flags().Bool("drop-cache", false, "clear the outcome cache before replaying")
	replayCmd.Flags().String("ui", "auto", "progress view (auto|on|off)")
	replayCmd.Flags().Bool("json", false, "print outcomes and summary as JSON")
	replayCmd.Flags().Bool("all", false, "list every input, not only findings")
}

type replayReport struct {
	Summary  replay.Summary `json:"summary"`
	Outcomes []outcomeJSON  `json:"outcomes"`
}

// outcomeJSON renders digests and verdicts as strings.
type outcomeJSON struct {
	Path     string      `json:"path"`
	Digest   string      `json:"digest"`
	Verdict  string      `json:"verdict"`
	Decls    int         `json:"decls"`
	Admitted int         `json:"admitted"`
	Probed   bool        `json:"probed"`
	Sizes    arena.Sizes `json:"sizes"`
	Kind     string      `json:"kind,omitempty"`
	Message  string      `json:"message,omitempty"`
	Elapsed  float64     `json:"elapsed_ms"`
	Cached   bool        `json:"cached"`
}

func newReplayReport(sum replay.Summary, outs []replay.Outcome) replayReport {
	rep := replayReport{Summary: sum, Outcomes: make([]outcomeJSON, 0, len(outs))}
	for _, o := range outs {
		rep.Outcomes = append(rep.Outcomes, outcomeJSON{
			Path:     o.Path,
			Digest:   o.Digest.String(),
			Verdict:  o.Verdict.String(),
			Decls:    o.Decls,
			Admitted: o.Admitted,
			Probed:   o.Probed,
			Sizes:    o.Sizes,
			Kind:     o.Kind,
			Message:  o.Message,
			Elapsed:  float64(o.Elapsed.Microseconds()) / 1000,
			Cached:   o.Cached,
		})
	}
	return rep
}

func runReplay(cmd *cobra.Command, args []string) error {
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
	applyReplayFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	tm := newTimings(cmd)
	defer tm.print()

	if cfg.Fuzz.MaxMemoryMB > 0 {
		if err := replay.LimitMemory(cfg.Fuzz.MaxMemoryMB); err != nil {
			return err
		}
	}

	var (
		base    kernel.Environment
		digest  ir.Digest
		kern    = kernel.ScopeKernel{}
		prelude = cfg.Resolve(cfg.Prelude.Path)
	)
	if noPrelude, _ := cmd.Flags().GetBool("no-prelude"); noPrelude {
		prelude = ""
	}
	if prelude != "" {
		idx := tm.begin("prelude")
		fs := source.NewFileSet()
		bag := newBag(cmd)
		p, err := replay.LoadPrelude(cmd.Context(), fs, prelude, kern, replay.PreludeOptions{
			Reporter:     diag.NewDedupReporter(diag.BagReporter{Bag: bag}),
			RejectAxioms: !cfg.Prelude.AllowAxioms,
		})
		if !quiet(cmd) || err != nil {
			printDiagnostics(cmd, bag, fs)
		}
		if err != nil {
			return err
		}
		base, digest = p.Env, p.Digest
		tm.end(idx, p.Env.Len(), "declarations")
	}

	pool, err := loadPool(cfg.Resolve(cfg.Fuzz.Strings))
	if err != nil {
		return err
	}

	cache, err := openReplayCache(cmd, cfg)
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		if cfg.Fuzz.Corpus == "" {
			return fmt.Errorf("no corpus given and no [fuzz].corpus configured")
		}
		roots = []string{cfg.Resolve(cfg.Fuzz.Corpus)}
	}
	idx := tm.begin("discover")
	var paths []string
	for _, root := range roots {
		found, err := corpus.Discover(root)
		if err != nil {
			return err
		}
		paths = append(paths, found...)
	}
	tm.end(idx, len(paths), "inputs")

	runner := replay.NewRunner(kern, base, replay.Options{
		Pool:       pool,
		ProbeFalse: cfg.Fuzz.ProbeFalse,
		MaxInput:   cfg.Fuzz.MaxInput,
	})
	rcfg := replay.Config{Jobs: cfg.Fuzz.Jobs, Cache: cache, Prelude: digest}

	idx = tm.begin("replay")
	var outs []replay.Outcome
	if shouldUseTUI(mode, jsonOut) {
		outs, err = replayWithUI(cmd.Context(), "replaying corpus", runner, paths, rcfg)
	} else {
		outs, err = replay.Replay(cmd.Context(), runner, paths, rcfg)
	}
	if err != nil {
		return err
	}
	sum := replay.Summarize(outs)
	tm.end(idx, sum.Total, fmt.Sprintf("%d cached", sum.Cached))

	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(newReplayReport(sum, outs)); err != nil {
			return err
		}
	} else {
		all, _ := cmd.Flags().GetBool("all")
		printOutcomes(out, outs, all)
		if !quiet(cmd) || sum.Findings() > 0 {
			fmt.Fprintln(out, sum.String())
		}
	}
	if n := sum.Findings(); n > 0 {
		return fmt.Errorf("%d finding(s)", n)
	}
	return nil
}

// applyReplayFlags overrides config values with explicitly set flags.
func applyReplayFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("prelude") {
		cfg.Prelude.Path = absFlag(cmd, "prelude")
	}
	if flags.Changed("strings") {
		cfg.Fuzz.Strings = absFlag(cmd, "strings")
	}
	if flags.Changed("jobs") {
		cfg.Fuzz.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("probe-false") {
		cfg.Fuzz.ProbeFalse, _ = flags.GetBool("probe-false")
	}
	if flags.Changed("max-input") {
		cfg.Fuzz.MaxInput, _ = flags.GetInt("max-input")
	}
	if flags.Changed("max-memory-mb") {
		cfg.Fuzz.MaxMemoryMB, _ = flags.GetInt("max-memory-mb")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	if flags.Changed("cache-dir") {
		cfg.Cache.Dir = absFlag(cmd, "cache-dir")
	}
}

// absFlag reads a path flag relative to the working directory, so that
// config.Resolve leaves it alone.
func absFlag(cmd *cobra.Command, name string) string {
	p, _ := cmd.Flags().GetString(name)
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// openReplayCache returns nil when caching is off; a nil cache never hits.
func openReplayCache(cmd *cobra.Command, cfg *config.Config) (*replay.Cache, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	cache, err := replay.OpenCache(cfg.Resolve(cfg.Cache.Dir))
	if err != nil {
		return nil, err
	}
	if drop, _ := cmd.Flags().GetBool("drop-cache"); drop {
		if err := cache.DropAll(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

var (
	findingColor = color.New(color.FgRed, color.Bold)
	cachedColor  = color.New(color.Faint)
)

func printOutcomes(w io.Writer, outs []replay.Outcome, all bool) {
	for _, o := range outs {
		if !all && !o.Verdict.Finding() {
			continue
		}
		verdict := o.Verdict.String()
		if o.Verdict.Finding() {
			verdict = findingColor.Sprint(verdict)
		}
		line := fmt.Sprintf("%-10s %s", verdict, o.Path)
		if o.Message != "" {
			line += ": " + o.Message
		}
		if o.Cached {
			line += cachedColor.Sprint(" (cached)")
		}
		fmt.Fprintln(w, line)
	}
}
