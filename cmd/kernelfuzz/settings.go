package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kernelfuzz/internal/config"
	"kernelfuzz/internal/corpus"
	"kernelfuzz/internal/diag"
	"kernelfuzz/internal/diagfmt"
	"kernelfuzz/internal/observ"
	"kernelfuzz/internal/source"
	"kernelfuzz/internal/strpool"
)

// loadConfig reads --config or the nearest kernelfuzz.toml.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.Discover(".")
	return cfg, err
}

// colorEnabled resolves --color against the terminal and sets the global
// fatih/color switch to match.
func colorEnabled(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, err
	}
	var on bool
	switch strings.ToLower(mode) {
	case "on", "always":
		on = true
	case "off", "never":
		on = false
	case "auto", "":
		on = isTerminal(f)
	default:
		return false, fmt.Errorf("invalid --color value %q (expected auto|on|off)", mode)
	}
	color.NoColor = !on
	return on, nil
}

func quiet(cmd *cobra.Command) bool {
	q, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return q
}

func newBag(cmd *cobra.Command) *diag.Bag {
	maxDiag, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil || maxDiag <= 0 {
		maxDiag = 100
	}
	return diag.NewBag(maxDiag)
}

// printDiagnostics renders bag to stderr in the --diagnostics format.
func printDiagnostics(cmd *cobra.Command, bag *diag.Bag, fs *source.FileSet) {
	if bag.Len() == 0 {
		return
	}
	bag.Sort()
	if format, _ := cmd.Root().PersistentFlags().GetString("diagnostics"); strings.EqualFold(format, "json") {
		err := diagfmt.JSON(cmd.ErrOrStderr(), bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeAuto,
			IncludeNotes:     true,
		})
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "failed to write diagnostics: %v\n", err)
		}
		return
	}
	on, err := colorEnabled(cmd, os.Stderr)
	if err != nil {
		on = false
	}
	diagfmt.Pretty(cmd.ErrOrStderr(), bag, fs, diagfmt.PrettyOpts{
		Color:     on,
		PathMode:  diagfmt.PathModeAuto,
		ShowNotes: true,
	})
}

// loadPool reads the string pool at path; an empty path yields an empty
// pool, which makes every string component the placeholder.
func loadPool(path string) (*strpool.Pool, error) {
	if path == "" {
		return strpool.New(), nil
	}
	return corpus.ReadPool(path)
}

type timings struct {
	on    bool
	timer *observ.Timer
	out   io.Writer
}

func newTimings(cmd *cobra.Command) *timings {
	on, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return &timings{on: on, timer: observ.NewTimer(), out: cmd.ErrOrStderr()}
}

func (t *timings) begin(name string) int { return t.timer.Begin(name) }

func (t *timings) end(idx, items int, note string) { t.timer.End(idx, items, note) }

func (t *timings) print() {
	if t.on {
		fmt.Fprint(t.out, t.timer.Summary())
	}
}
