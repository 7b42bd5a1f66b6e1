package infer

import (
	"sort"

	"treeprop/pkg/factorgraph"
)

// DefaultOrder returns a valid elimination order for query under evidence:
// every non-evidentiary variable except the query, sorted by name. Callers
// with structural knowledge of the graph can do better; this one is merely
// always accepted by RunElimination.
func DefaultOrder(g *factorgraph.Graph, query *factorgraph.Variable, evidence factorgraph.Evidence) []*factorgraph.Variable {
	var order []*factorgraph.Variable
	for _, v := range g.Variables() {
		if query != nil && v.ID() == query.ID() {
			continue
		}
		if _, ok := evidence.Observed(v); ok {
			continue
		}
		order = append(order, v)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Name() < order[j].Name() })
	return order
}
