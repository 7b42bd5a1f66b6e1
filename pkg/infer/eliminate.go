package infer

import (
	"fmt"
	"math"

	"treeprop/pkg/factorgraph"
)

// RunElimination computes P(query | evidence) by bucket elimination along
// an externally supplied order. The order must list exactly the
// non-evidentiary variables other than the query, each once; choosing a
// good order is the caller's problem, not this function's. Unlike the
// propagation engine it accepts loopy graphs, provided the order is valid.
func RunElimination(g *factorgraph.Graph, order []*factorgraph.Variable, query *factorgraph.Variable, evidence factorgraph.Evidence) (Distribution, error) {
	if query == nil {
		return nil, ErrEmptyQuery
	}
	if err := evidence.Validate(g); err != nil {
		return nil, err
	}
	if _, ok := evidence.Observed(query); ok {
		return nil, fmt.Errorf("%w: %q", ErrQueryIsEvidence, query.Name())
	}
	if err := checkOrder(g, order, query, evidence); err != nil {
		return nil, err
	}

	live := make([]*LogFactor, 0, len(g.Factors()))
	for _, f := range g.Factors() {
		live = append(live, LogFactorFrom(g, f, evidence))
	}

	for _, v := range order {
		bucket := NewBucket(v)
		rest := live[:0]
		for _, lf := range live {
			if lf.Mentions(v) {
				if err := bucket.AddLogFactor(lf); err != nil {
					return nil, err
				}
			} else {
				rest = append(rest, lf)
			}
		}
		live = rest
		if !bucket.HasLogFactors() {
			continue
		}
		if err := bucket.Partition(); err != nil {
			return nil, err
		}
		out, err := bucket.OutputLogFactor()
		if err != nil {
			return nil, err
		}
		live = append(live, out)
	}

	// Every remaining factor mentions at most the query; constants shift
	// all values equally and cancel in the normalization.
	domain := query.Domain()
	logs := make([]float64, len(domain))
	terms := make([]float64, len(live))
	maxLog := math.Inf(-1)
	for i, val := range domain {
		a := factorgraph.Assignment{{Var: query, Val: val}}
		for j, lf := range live {
			lv, err := lf.At(a)
			if err != nil {
				return nil, err
			}
			terms[j] = lv
		}
		logs[i] = fsum(terms)
		if logs[i] > maxLog {
			maxLog = logs[i]
		}
	}
	unnormalized := make([]float64, len(domain))
	for i := range domain {
		unnormalized[i] = math.Exp(logs[i] - maxLog)
	}
	norm := fsum(unnormalized)
	if norm <= 0 || math.IsNaN(norm) {
		return nil, fmt.Errorf("%w: normalization constant for query %q", ErrNonPositiveFactor, query.Name())
	}
	dist := make(Distribution, len(domain))
	for i, val := range domain {
		dist[val] = unnormalized[i] / norm
	}
	return dist, nil
}

// checkOrder verifies the order covers exactly the non-evidentiary,
// non-query variables, each once.
func checkOrder(g *factorgraph.Graph, order []*factorgraph.Variable, query *factorgraph.Variable, evidence factorgraph.Evidence) error {
	seen := make(map[int]bool, len(order))
	for _, v := range order {
		if v == nil {
			return fmt.Errorf("%w: nil variable", ErrBadEliminationOrder)
		}
		if v.ID() == query.ID() {
			return fmt.Errorf("%w: query %q in order", ErrBadEliminationOrder, query.Name())
		}
		if _, ok := evidence.Observed(v); ok {
			return fmt.Errorf("%w: evidentiary variable %q in order", ErrBadEliminationOrder, v.Name())
		}
		if seen[v.ID()] {
			return fmt.Errorf("%w: variable %q listed twice", ErrBadEliminationOrder, v.Name())
		}
		seen[v.ID()] = true
	}
	for _, v := range g.Variables() {
		if v.ID() == query.ID() {
			continue
		}
		if _, ok := evidence.Observed(v); ok {
			continue
		}
		if !seen[v.ID()] {
			return fmt.Errorf("%w: variable %q missing from order", ErrBadEliminationOrder, v.Name())
		}
	}
	return nil
}
