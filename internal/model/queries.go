package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	yaml "gopkg.in/yaml.v3"

	"treeprop/pkg/factorgraph"
)

// QueryFile is a batch of queries against one model.
type QueryFile struct {
	Queries []QuerySpec `yaml:"queries" json:"queries"`
}

// QuerySpec is one marginal request: the query variable and the observed
// values, by name.
type QuerySpec struct {
	Query    string            `yaml:"query" json:"query"`
	Evidence map[string]string `yaml:"evidence" json:"evidence"`
}

// LoadQueries reads a batch query file (YAML; JSON is valid YAML here).
func LoadQueries(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parse queries %s: %w", filepath.Base(path), err)
	}
	if len(qf.Queries) == 0 {
		return nil, fmt.Errorf("%w: no queries in %s", ErrInvalidModel, filepath.Base(path))
	}
	return &qf, nil
}

// Resolve binds the query and evidence names against g. Unknown names
// surface the graph's own errors.
func (q QuerySpec) Resolve(g *factorgraph.Graph) (*factorgraph.Variable, factorgraph.Evidence, error) {
	query, ok := g.VariableByName(q.Query)
	if !ok {
		return nil, nil, fmt.Errorf("%w: query %q", factorgraph.ErrUnknownVariable, q.Query)
	}
	ev, err := ResolveEvidence(g, q.Evidence)
	if err != nil {
		return nil, nil, err
	}
	return query, ev, nil
}

// ResolveEvidence binds a name→value map against g, in sorted name order
// so errors are deterministic.
func ResolveEvidence(g *factorgraph.Graph, bindings map[string]string) (factorgraph.Evidence, error) {
	if len(bindings) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	ev := make(factorgraph.Evidence, 0, len(names))
	for _, name := range names {
		v, ok := g.VariableByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: evidence variable %q", factorgraph.ErrUnknownVariable, name)
		}
		val := factorgraph.Value(bindings[name])
		if !v.HasValue(val) {
			return nil, fmt.Errorf("%w: %q for variable %q", factorgraph.ErrUnknownValue, val, name)
		}
		ev = append(ev, factorgraph.Pair{Var: v, Val: val})
	}
	return ev, nil
}
