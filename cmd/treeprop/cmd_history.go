package main

import (
	"github.com/spf13/cobra"

	"treeprop/internal/display"
	"treeprop/internal/store"
)

var historyFlags struct {
	dbPath string
	limit  int
	model  string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded inference runs, newest first",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.dbPath, "db", store.DefaultDBPath, "Run-history SQLite path")
	f.IntVar(&historyFlags.limit, "limit", 20, "Max runs to show (0 = all)")
	f.StringVar(&historyFlags.model, "model", "", "Only show runs for this model file")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := store.Open(historyFlags.dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns(historyFlags.limit)
	if err != nil {
		return err
	}
	if historyFlags.model != "" {
		kept := runs[:0]
		for _, r := range runs {
			if r.Model == historyFlags.model {
				kept = append(kept, r)
			}
		}
		runs = kept
	}
	return display.Runs(cmd.OutOrStdout(), runs)
}
