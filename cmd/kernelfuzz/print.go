package main

import (
	"github.com/spf13/cobra"
)

var printCmd = &cobra.Command{
	Use:   "print [flags] FILE",
	Short: "Print a binary input as Lean source",
	Long: `Decode a binary fuzz input leniently and print it as Lean 4 definitions
that rebuild the same names, levels, expressions and declarations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Set("input", "bin"); err != nil {
			return err
		}
		if err := cmd.Flags().Set("format", "lean"); err != nil {
			return err
		}
		return runDecode(cmd, args)
	},
}

func init() {
	printCmd.Flags().String("input", "bin", "")
	printCmd.Flags().String("format", "lean", "")
	printCmd.Flags().Bool("no-axioms", false, "")
	_ = printCmd.Flags().MarkHidden("input")
	_ = printCmd.Flags().MarkHidden("format")
	_ = printCmd.Flags().MarkHidden("no-axioms")
	printCmd.Flags().String("strings", "", "string pool (default: [fuzz].strings)")
	printCmd.Flags().Bool("probe-false", false, "append the False probe")
	printCmd.Flags().StringP("output", "o", "", "write output to file instead of stdout")
}
