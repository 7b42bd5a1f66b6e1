// Package display renders inference results for humans.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and logs. Keep raw maps and canonical
// evidence keys for JSON fields and equality comparisons.
package display

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"treeprop/internal/store"
	"treeprop/pkg/factorgraph"
	"treeprop/pkg/infer"
)

// Marginal renders a query result as a small aligned table, values in
// domain order:
//
//	P(Rain | GrassWet=yes)
//	  yes  0.350000
//	  no   0.650000
func Marginal(query *factorgraph.Variable, ev factorgraph.Evidence, dist infer.Distribution) string {
	var b strings.Builder
	b.WriteString("P(")
	b.WriteString(query.Name())
	if key := ev.Key(); key != "" {
		b.WriteString(" | ")
		b.WriteString(strings.ReplaceAll(key, ";", ", "))
	}
	b.WriteString(")\n")

	width := 0
	for _, val := range query.Domain() {
		if len(val) > width {
			width = len(val)
		}
	}
	for _, val := range query.Domain() {
		fmt.Fprintf(&b, "  %-*s  %.6f\n", width, string(val), dist[val])
	}
	return b.String()
}

// Evidence humanizes a canonical evidence key for prose contexts.
// "A=0;B=1" -> "A=0, B=1"; empty -> "(none)".
func Evidence(key string) string {
	if key == "" {
		return "(none)"
	}
	return strings.ReplaceAll(key, ";", ", ")
}

// Runs writes run-history records as a tab-aligned table, one row per run.
func Runs(w io.Writer, runs []*store.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tMODEL\tQUERY\tEVIDENCE\tMETHOD\tMS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Model,
			r.Query,
			Evidence(r.EvidenceKey),
			r.Method,
			r.DurationMS,
		)
	}
	return tw.Flush()
}

// GraphSummary is a one-paragraph description of a loaded model, for the
// validate command.
func GraphSummary(name string, g *factorgraph.Graph) string {
	shape := "tree"
	if err := g.CheckTree(); err != nil {
		shape = "not a tree"
	}
	return fmt.Sprintf("model %s: %d variables, %d factors (%s)",
		name, len(g.Variables()), len(g.Factors()), shape)
}
