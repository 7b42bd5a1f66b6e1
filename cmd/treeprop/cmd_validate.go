package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"treeprop/internal/display"
	"treeprop/internal/model"
)

var validateFlags struct {
	model string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a model file: tables, domains, and graph shape",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVarP(&validateFlags.model, "model", "m", "", "Model file (YAML or JSON, required)")
	_ = validateCmd.MarkFlagRequired("model")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	f, err := model.LoadFromPath(validateFlags.model)
	if err != nil {
		return err
	}
	g, err := f.Build()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, display.GraphSummary(f.Name, g))
	for _, v := range g.Variables() {
		fmt.Fprintf(out, "  %s: %d values, %d factors\n", v.Name(), len(v.Domain()), v.Degree())
	}
	if err := g.CheckTree(); err != nil {
		fmt.Fprintf(out, "propagation unavailable: %v (use query --method elimination)\n", err)
	}
	return nil
}
