package main

import (
	"fmt"
	"strings"

	"treeprop/internal/store"
	"treeprop/pkg/factorgraph"
	"treeprop/pkg/infer"
)

// parseEvidence turns repeated --evidence Var=val flags into a binding map.
func parseEvidence(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	bindings := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("evidence %q: want Var=value", p)
		}
		if _, dup := bindings[name]; dup {
			return nil, fmt.Errorf("evidence %q: variable %s bound twice", p, name)
		}
		bindings[name] = val
	}
	return bindings, nil
}

// resolveOrder maps a comma-separated --order flag to graph variables.
// Empty means the name-sorted default.
func resolveOrder(g *factorgraph.Graph, spec string, query *factorgraph.Variable, ev factorgraph.Evidence) ([]*factorgraph.Variable, error) {
	if spec == "" {
		return infer.DefaultOrder(g, query, ev), nil
	}
	names := strings.Split(spec, ",")
	order := make([]*factorgraph.Variable, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		v, ok := g.VariableByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: order variable %q", factorgraph.ErrUnknownVariable, name)
		}
		order = append(order, v)
	}
	return order, nil
}

// openHistory opens the run-history store at path, or a throwaway
// in-memory one when recording is disabled.
func openHistory(path string, disabled bool) (store.Store, error) {
	if disabled {
		return store.NewMemStore(), nil
	}
	return store.Open(path)
}
