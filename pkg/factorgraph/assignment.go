package factorgraph

import (
	"fmt"
	"sort"
	"strings"
)

// Pair binds one variable to one of its domain values.
type Pair struct {
	Var *Variable
	Val Value
}

// Assignment is an ordered sequence of variable bindings.
type Assignment []Pair

// Get returns the bound value for v, if present.
func (a Assignment) Get(v *Variable) (Value, bool) {
	for _, p := range a {
		if p.Var.ID() == v.ID() {
			return p.Val, true
		}
	}
	return "", false
}

// With returns a new Assignment extended by one binding. The receiver is
// not modified.
func (a Assignment) With(v *Variable, val Value) Assignment {
	out := make(Assignment, len(a), len(a)+1)
	copy(out, a)
	return append(out, Pair{Var: v, Val: val})
}

// Evidence is a set of observed variable bindings conditioning a query.
// The observation order is irrelevant: cache keys are canonicalized by
// variable name, so two orderings of the same observations share memoized
// messages.
type Evidence []Pair

// Observed returns the fixed value for v, if v is evidentiary.
func (e Evidence) Observed(v *Variable) (Value, bool) {
	for _, p := range e {
		if p.Var.ID() == v.ID() {
			return p.Val, true
		}
	}
	return "", false
}

// Key returns the canonical cache key: bindings sorted by variable name,
// rendered as "name=value" joined with ";". Empty evidence yields "".
func (e Evidence) Key() string {
	if len(e) == 0 {
		return ""
	}
	parts := make([]string, len(e))
	for i, p := range e {
		parts[i] = p.Var.Name() + "=" + string(p.Val)
	}
	sort.Strings(parts)
	return strings.Join(parts, ";")
}

// Validate checks that every evidence variable belongs to g, every value is
// in its variable's domain, and no variable is observed twice.
func (e Evidence) Validate(g *Graph) error {
	seen := make(map[int]bool, len(e))
	for _, p := range e {
		if p.Var == nil {
			return fmt.Errorf("%w: nil evidence variable", ErrUnknownVariable)
		}
		v, ok := g.VariableByName(p.Var.Name())
		if !ok || v.ID() != p.Var.ID() {
			return fmt.Errorf("%w: evidence variable %q", ErrUnknownVariable, p.Var.Name())
		}
		if !p.Var.HasValue(p.Val) {
			return fmt.Errorf("%w: %s=%s", ErrUnknownValue, p.Var.Name(), p.Val)
		}
		if seen[p.Var.ID()] {
			return fmt.Errorf("%w: evidence variable %q observed twice", ErrDuplicate, p.Var.Name())
		}
		seen[p.Var.ID()] = true
	}
	return nil
}
