package factorgraph

import (
	"errors"
	"testing"
)

func uniform(p float64) Evaluator {
	return EvaluatorFunc(func(values []Value) (float64, error) { return p, nil })
}

func buildChain(t *testing.T) *Graph {
	t.Helper()
	b := NewBuilder()
	for _, name := range []string{"A", "B", "C"} {
		if err := b.AddVariable(name, []Value{"0", "1"}); err != nil {
			t.Fatalf("AddVariable(%s): %v", name, err)
		}
	}
	if err := b.AddFactor("F1", []string{"A", "B"}, uniform(1)); err != nil {
		t.Fatalf("AddFactor(F1): %v", err)
	}
	if err := b.AddFactor("F2", []string{"B", "C"}, uniform(1)); err != nil {
		t.Fatalf("AddFactor(F2): %v", err)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuilder_ChainIncidence(t *testing.T) {
	g := buildChain(t)

	bv, ok := g.VariableByName("B")
	if !ok {
		t.Fatal("VariableByName(B) not found")
	}
	if bv.Degree() != 2 {
		t.Errorf("B degree = %d, want 2", bv.Degree())
	}
	f1, ok := g.FactorByName("F1")
	if !ok {
		t.Fatal("FactorByName(F1) not found")
	}
	if f1.Degree() != 2 {
		t.Errorf("F1 degree = %d, want 2", f1.Degree())
	}
	if g.NodeCount() != 5 {
		t.Errorf("NodeCount = %d, want 5", g.NodeCount())
	}
}

func TestBuilder_Leaves(t *testing.T) {
	g := buildChain(t)

	vl := g.VariableLeaves()
	if len(vl) != 2 {
		t.Fatalf("variable leaves = %d, want 2", len(vl))
	}
	if vl[0].Name() != "A" || vl[1].Name() != "C" {
		t.Errorf("variable leaves = %s,%s want A,C", vl[0].Name(), vl[1].Name())
	}
	if len(g.FactorLeaves()) != 0 {
		t.Errorf("factor leaves = %d, want 0", len(g.FactorLeaves()))
	}
}

func TestBuilder_Rejections(t *testing.T) {
	b := NewBuilder()
	if err := b.AddVariable("X", nil); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("empty domain: got %v, want ErrInvalidDefinition", err)
	}
	if err := b.AddVariable("X", []Value{"a", "a"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate domain value: got %v, want ErrDuplicate", err)
	}
	if err := b.AddVariable("X", []Value{"a", "b"}); err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	if err := b.AddVariable("X", []Value{"a"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate variable: got %v, want ErrDuplicate", err)
	}
	if err := b.AddFactor("F", []string{"Y"}, uniform(1)); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("unknown factor variable: got %v, want ErrUnknownVariable", err)
	}
	if err := b.AddFactor("F", []string{"X", "X"}, uniform(1)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("repeated factor variable: got %v, want ErrDuplicate", err)
	}
	if err := b.AddFactor("F", nil, uniform(1)); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("factor without variables: got %v, want ErrInvalidDefinition", err)
	}
}

func TestCheckTree_Chain(t *testing.T) {
	g := buildChain(t)
	if err := g.CheckTree(); err != nil {
		t.Errorf("CheckTree on chain: %v", err)
	}
}

func TestCheckTree_Cycle(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"A", "B"} {
		if err := b.AddVariable(name, []Value{"0", "1"}); err != nil {
			t.Fatalf("AddVariable: %v", err)
		}
	}
	// Two factors over the same pair close a cycle A-F1-B-F2-A.
	if err := b.AddFactor("F1", []string{"A", "B"}, uniform(1)); err != nil {
		t.Fatalf("AddFactor: %v", err)
	}
	if err := b.AddFactor("F2", []string{"A", "B"}, uniform(1)); err != nil {
		t.Fatalf("AddFactor: %v", err)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := g.CheckTree(); !errors.Is(err, ErrNotATree) {
		t.Errorf("CheckTree on cycle: got %v, want ErrNotATree", err)
	}
}

func TestCheckTree_Disconnected(t *testing.T) {
	b := NewBuilder()
	for _, name := range []string{"A", "B"} {
		if err := b.AddVariable(name, []Value{"0", "1"}); err != nil {
			t.Fatalf("AddVariable: %v", err)
		}
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := g.CheckTree(); !errors.Is(err, ErrNotATree) {
		t.Errorf("CheckTree on disconnected graph: got %v, want ErrNotATree", err)
	}
}

func TestTableEvaluator(t *testing.T) {
	te := NewTableEvaluator(2)
	if err := te.Set([]Value{"0", "0"}, 0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := te.Set([]Value{"0", "0"}, 0.3); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate row: got %v, want ErrDuplicate", err)
	}
	if err := te.Set([]Value{"0"}, 0.3); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("arity mismatch: got %v, want ErrInvalidDefinition", err)
	}
	p, err := te.Evaluate([]Value{"0", "0"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if p != 0.5 {
		t.Errorf("Evaluate = %v, want 0.5", p)
	}
	if _, err := te.Evaluate([]Value{"1", "1"}); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("missing row: got %v, want ErrInvalidDefinition", err)
	}
}
