package factorgraph

import (
	"fmt"
	"strings"
)

// Evaluator computes a factor's value for a full assignment of its
// variables, given as values aligned with the factor's variable order.
// Implementations must return strictly positive values; the inference
// engine takes logarithms of them. The two stock implementations are
// TableEvaluator (dense lookup, used by model files) and EvaluatorFunc
// (arbitrary closure, used for synthesized factors).
type Evaluator interface {
	Evaluate(values []Value) (float64, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc func(values []Value) (float64, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(values []Value) (float64, error) { return f(values) }

// Factor is one factor of the graph: a strictly positive function over an
// ordered tuple of incident variables. Like Variable, it is immutable after
// Build and addressed by a dense id.
type Factor struct {
	id   int
	name string
	vars []int // incident variable ids, in declaration order
	eval Evaluator
}

// ID returns the factor's arena id.
func (f *Factor) ID() int { return f.id }

// Name returns the factor's name, unique within its graph.
func (f *Factor) Name() string { return f.name }

// VariableIDs returns the ordered incident variable ids. Callers must not
// mutate the returned slice.
func (f *Factor) VariableIDs() []int { return f.vars }

// Degree returns the number of incident variables.
func (f *Factor) Degree() int { return len(f.vars) }

// Evaluate computes the factor value for values aligned with VariableIDs.
func (f *Factor) Evaluate(values []Value) (float64, error) {
	if len(values) != len(f.vars) {
		return 0, fmt.Errorf("%w: factor %s expects %d values, got %d",
			ErrInvalidDefinition, f.name, len(f.vars), len(values))
	}
	return f.eval.Evaluate(values)
}

// tableKey joins values into a map key. The unit separator keeps values
// containing commas or spaces unambiguous.
func tableKey(values []Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, "\x1f")
}

// TableEvaluator is a dense table of factor values keyed by the full value
// tuple. Rows are inserted with Set and must be unique.
type TableEvaluator struct {
	arity int
	table map[string]float64
}

// NewTableEvaluator returns an empty table for factors of the given arity.
func NewTableEvaluator(arity int) *TableEvaluator {
	return &TableEvaluator{arity: arity, table: make(map[string]float64)}
}

// Len returns the number of rows inserted so far.
func (t *TableEvaluator) Len() int { return len(t.table) }

// Set inserts one row. Duplicate rows are rejected.
func (t *TableEvaluator) Set(values []Value, p float64) error {
	if len(values) != t.arity {
		return fmt.Errorf("%w: table row has %d values, want %d",
			ErrInvalidDefinition, len(values), t.arity)
	}
	key := tableKey(values)
	if _, ok := t.table[key]; ok {
		return fmt.Errorf("%w: table row %v", ErrDuplicate, values)
	}
	t.table[key] = p
	return nil
}

// Evaluate implements Evaluator. A missing row is a definition error.
func (t *TableEvaluator) Evaluate(values []Value) (float64, error) {
	p, ok := t.table[tableKey(values)]
	if !ok {
		return 0, fmt.Errorf("%w: no table row for %v", ErrInvalidDefinition, values)
	}
	return p, nil
}
