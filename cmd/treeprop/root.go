// treeprop computes exact marginals on tree-structured factor graphs:
// belief propagation with memoized messages, plus bucket elimination.
//
// Usage:
//
//	treeprop query -m <model> -q <variable> [-e Var=val ...]
//	treeprop batch -m <model> -f <queries.yaml> [--parallel N]
//	treeprop validate -m <model>
//	treeprop history [--limit N]
//	treeprop serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"treeprop/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel  string
	logFormat string
}

var rootCmd = &cobra.Command{
	Use:   "treeprop",
	Short: "Exact inference on tree-structured factor graphs",
	Long: "Treeprop answers marginal queries P(Q | evidence) on discrete factor graphs.\nTrees run through belief propagation with per-evidence message memoization;\nloopy graphs fall back to bucket elimination.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level, err := logging.ParseLevel(rootFlags.logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, rootFlags.logFormat, nil)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&rootFlags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
