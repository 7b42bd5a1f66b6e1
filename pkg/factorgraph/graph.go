package factorgraph

import "fmt"

// Graph is an immutable bipartite factor graph: an arena of variables and
// factors addressed by dense ids. Construct one with a Builder; once Build
// returns, the graph is safe to share across concurrent inference runs.
type Graph struct {
	vars    []*Variable
	factors []*Factor
	varIdx  map[string]int
	facIdx  map[string]int
}

// Variables returns all variables in insertion order.
func (g *Graph) Variables() []*Variable { return g.vars }

// Factors returns all factors in insertion order.
func (g *Graph) Factors() []*Factor { return g.factors }

// Variable returns the variable with the given arena id.
func (g *Graph) Variable(id int) *Variable { return g.vars[id] }

// Factor returns the factor with the given arena id.
func (g *Graph) Factor(id int) *Factor { return g.factors[id] }

// VariableByName resolves a variable by name.
func (g *Graph) VariableByName(name string) (*Variable, bool) {
	id, ok := g.varIdx[name]
	if !ok {
		return nil, false
	}
	return g.vars[id], true
}

// FactorByName resolves a factor by name.
func (g *Graph) FactorByName(name string) (*Factor, bool) {
	id, ok := g.facIdx[name]
	if !ok {
		return nil, false
	}
	return g.factors[id], true
}

// FactorLeaves returns the factors with exactly one incident variable.
func (g *Graph) FactorLeaves() []*Factor {
	var leaves []*Factor
	for _, f := range g.factors {
		if f.Degree() == 1 {
			leaves = append(leaves, f)
		}
	}
	return leaves
}

// VariableLeaves returns the variables with exactly one incident factor.
func (g *Graph) VariableLeaves() []*Variable {
	var leaves []*Variable
	for _, v := range g.vars {
		if v.Degree() == 1 {
			leaves = append(leaves, v)
		}
	}
	return leaves
}

// NodeCount returns the total number of nodes (variables plus factors).
// The propagation engine derives its relay iteration bound from it.
func (g *Graph) NodeCount() int { return len(g.vars) + len(g.factors) }

// CheckTree verifies that the bipartite graph is a tree: acyclic and
// connected. Union-find over variable and factor nodes; an edge joining
// two nodes already in one component is a cycle.
func (g *Graph) CheckTree() error {
	n := g.NodeCount()
	if n == 0 {
		return fmt.Errorf("%w: empty graph", ErrNotATree)
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(x int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	// Variables occupy [0, len(vars)); factors are offset behind them.
	offset := len(g.vars)
	components := n
	for _, f := range g.factors {
		for _, vid := range f.vars {
			a, b := find(vid), find(offset+f.id)
			if a == b {
				return fmt.Errorf("%w: cycle through factor %q", ErrNotATree, f.name)
			}
			parent[a] = b
			components--
		}
	}
	if components != 1 {
		return fmt.Errorf("%w: %d disconnected components", ErrNotATree, components)
	}
	return nil
}

// Builder accumulates variable and factor definitions and freezes them
// into a Graph. A Builder is single-use: after Build it must be discarded.
type Builder struct {
	vars    []*Variable
	factors []*Factor
	varIdx  map[string]int
	facIdx  map[string]int
	built   bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		varIdx: make(map[string]int),
		facIdx: make(map[string]int),
	}
}

// AddVariable declares a variable with an ordered, non-empty domain of
// distinct values.
func (b *Builder) AddVariable(name string, domain []Value) error {
	if b.built {
		return fmt.Errorf("%w: builder already built", ErrInvalidDefinition)
	}
	if name == "" {
		return fmt.Errorf("%w: variable with empty name", ErrInvalidDefinition)
	}
	if _, ok := b.varIdx[name]; ok {
		return fmt.Errorf("%w: variable %q", ErrDuplicate, name)
	}
	if len(domain) == 0 {
		return fmt.Errorf("%w: variable %q has empty domain", ErrInvalidDefinition, name)
	}
	seen := make(map[Value]bool, len(domain))
	for _, val := range domain {
		if seen[val] {
			return fmt.Errorf("%w: domain value %q of variable %q", ErrDuplicate, val, name)
		}
		seen[val] = true
	}
	v := &Variable{
		id:     len(b.vars),
		name:   name,
		domain: append([]Value(nil), domain...),
	}
	b.varIdx[name] = v.id
	b.vars = append(b.vars, v)
	return nil
}

// AddFactor declares a factor over previously declared variables. The
// variable order given here is the order Evaluate receives values in.
func (b *Builder) AddFactor(name string, variables []string, eval Evaluator) error {
	if b.built {
		return fmt.Errorf("%w: builder already built", ErrInvalidDefinition)
	}
	if name == "" {
		return fmt.Errorf("%w: factor with empty name", ErrInvalidDefinition)
	}
	if _, ok := b.facIdx[name]; ok {
		return fmt.Errorf("%w: factor %q", ErrDuplicate, name)
	}
	if len(variables) == 0 {
		return fmt.Errorf("%w: factor %q has no variables", ErrInvalidDefinition, name)
	}
	if eval == nil {
		return fmt.Errorf("%w: factor %q has no evaluator", ErrInvalidDefinition, name)
	}
	ids := make([]int, len(variables))
	seen := make(map[string]bool, len(variables))
	for i, vn := range variables {
		id, ok := b.varIdx[vn]
		if !ok {
			return fmt.Errorf("%w: %q in factor %q", ErrUnknownVariable, vn, name)
		}
		if seen[vn] {
			return fmt.Errorf("%w: variable %q repeated in factor %q", ErrDuplicate, vn, name)
		}
		seen[vn] = true
		ids[i] = id
	}
	f := &Factor{
		id:   len(b.factors),
		name: name,
		vars: ids,
		eval: eval,
	}
	b.facIdx[name] = f.id
	b.factors = append(b.factors, f)
	return nil
}

// Build links incidence lists and freezes the graph. The builder must have
// at least one variable.
func (b *Builder) Build() (*Graph, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already built", ErrInvalidDefinition)
	}
	if len(b.vars) == 0 {
		return nil, fmt.Errorf("%w: graph without variables", ErrInvalidDefinition)
	}
	for _, f := range b.factors {
		for _, vid := range f.vars {
			v := b.vars[vid]
			v.factors = append(v.factors, f.id)
		}
	}
	b.built = true
	return &Graph{
		vars:    b.vars,
		factors: b.factors,
		varIdx:  b.varIdx,
		facIdx:  b.facIdx,
	}, nil
}
