package infer

import (
	"errors"
	"math"
	"testing"

	"treeprop/pkg/factorgraph"
)

func chainLogFactors(t *testing.T, g *factorgraph.Graph, ev factorgraph.Evidence) (f1, f2 *LogFactor) {
	t.Helper()
	gf1, _ := g.FactorByName("F1")
	gf2, _ := g.FactorByName("F2")
	return LogFactorFrom(g, gf1, ev), LogFactorFrom(g, gf2, ev)
}

func TestBucket_PartitionSortsAndDedups(t *testing.T) {
	g := buildChain(t)
	b := NewBucket(variable(t, g, "B"))
	f1, f2 := chainLogFactors(t, g, nil)

	// Feed in reverse order so the sort is observable.
	if err := b.AddLogFactor(f2); err != nil {
		t.Fatalf("AddLogFactor: %v", err)
	}
	if err := b.AddLogFactor(f1); err != nil {
		t.Fatalf("AddLogFactor: %v", err)
	}
	if err := b.Partition(); err != nil {
		t.Fatalf("Partition: %v", err)
	}

	free := b.FreeVariables()
	if len(free) != 2 || free[0].Name() != "A" || free[1].Name() != "C" {
		names := make([]string, len(free))
		for i, v := range free {
			names[i] = v.Name()
		}
		t.Fatalf("free variables = %v, want [A C]", names)
	}
}

func TestBucket_PartitionCarriesEvidence(t *testing.T) {
	g := buildChain(t)
	a := variable(t, g, "A")
	ev := factorgraph.Evidence{{Var: a, Val: "0"}}

	b := NewBucket(variable(t, g, "B"))
	f1, f2 := chainLogFactors(t, g, ev)
	for _, lf := range []*LogFactor{f1, f2} {
		if err := b.AddLogFactor(lf); err != nil {
			t.Fatalf("AddLogFactor: %v", err)
		}
	}
	if err := b.Partition(); err != nil {
		t.Fatalf("Partition: %v", err)
	}

	free := b.FreeVariables()
	if len(free) != 1 || free[0].Name() != "C" {
		t.Fatalf("free variables = %d, want only C", len(free))
	}
	out, err := b.OutputLogFactor()
	if err != nil {
		t.Fatalf("OutputLogFactor: %v", err)
	}
	fixed := out.Fixed()
	if len(fixed) != 1 || fixed[0].Var.ID() != a.ID() || fixed[0].Val != "0" {
		t.Errorf("output fixed bindings = %v, want A=0", fixed)
	}
}

func TestBucket_OutputMatchesDirectSum(t *testing.T) {
	g := buildChain(t)
	a := variable(t, g, "A")
	bv := variable(t, g, "B")
	c := variable(t, g, "C")
	gf1, _ := g.FactorByName("F1")
	gf2, _ := g.FactorByName("F2")

	b := NewBucket(bv)
	f1, f2 := chainLogFactors(t, g, nil)
	for _, lf := range []*LogFactor{f1, f2} {
		if err := b.AddLogFactor(lf); err != nil {
			t.Fatalf("AddLogFactor: %v", err)
		}
	}
	if err := b.Partition(); err != nil {
		t.Fatalf("Partition: %v", err)
	}
	out, err := b.OutputLogFactor()
	if err != nil {
		t.Fatalf("OutputLogFactor: %v", err)
	}

	for _, av := range a.Domain() {
		for _, cv := range c.Domain() {
			sum := 0.0
			for _, bval := range bv.Domain() {
				p1, err := gf1.Evaluate([]factorgraph.Value{av, bval})
				if err != nil {
					t.Fatalf("Evaluate: %v", err)
				}
				p2, err := gf2.Evaluate([]factorgraph.Value{bval, cv})
				if err != nil {
					t.Fatalf("Evaluate: %v", err)
				}
				sum += p1 * p2
			}
			got, err := out.At(factorgraph.Assignment{{Var: a, Val: av}, {Var: c, Val: cv}})
			if err != nil {
				t.Fatalf("At(A=%s, C=%s): %v", av, cv, err)
			}
			if want := math.Log(sum); math.Abs(got-want) > tol {
				t.Errorf("output(A=%s, C=%s) = %.12f, want %.12f", av, cv, got, want)
			}
		}
	}
}

func TestBucket_StateErrors(t *testing.T) {
	g := buildChain(t)
	f1, _ := chainLogFactors(t, g, nil)

	b := NewBucket(variable(t, g, "B"))
	if _, err := b.OutputLogFactor(); !errors.Is(err, ErrBucketState) {
		t.Errorf("OutputLogFactor before Partition: got %v, want ErrBucketState", err)
	}
	if err := b.AddLogFactor(f1); err != nil {
		t.Fatalf("AddLogFactor: %v", err)
	}
	if err := b.Partition(); err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if err := b.Partition(); !errors.Is(err, ErrBucketState) {
		t.Errorf("second Partition: got %v, want ErrBucketState", err)
	}
	if err := b.AddLogFactor(f1); !errors.Is(err, ErrBucketState) {
		t.Errorf("AddLogFactor after Partition: got %v, want ErrBucketState", err)
	}

	empty := NewBucket(variable(t, g, "A"))
	if err := empty.Partition(); err != nil {
		t.Fatalf("Partition on empty bucket: %v", err)
	}
	if _, err := empty.OutputLogFactor(); !errors.Is(err, ErrBucketState) {
		t.Errorf("OutputLogFactor on empty bucket: got %v, want ErrBucketState", err)
	}
}

func TestBucket_ExtremeMagnitudesStayFinite(t *testing.T) {
	// Factor values far outside float range in linear space must survive
	// the shifted log-sum-exp.
	b := factorgraph.NewBuilder()
	for _, name := range []string{"A", "B"} {
		if err := b.AddVariable(name, []factorgraph.Value{"0", "1"}); err != nil {
			t.Fatalf("AddVariable: %v", err)
		}
	}
	eval := factorgraph.EvaluatorFunc(func(values []factorgraph.Value) (float64, error) {
		if values[0] == values[1] {
			return 1e-280, nil
		}
		return 1e-290, nil
	})
	if err := b.AddFactor("F", []string{"A", "B"}, eval); err != nil {
		t.Fatalf("AddFactor: %v", err)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	bkt := NewBucket(variable(t, g, "B"))
	f, _ := g.FactorByName("F")
	if err := bkt.AddLogFactor(LogFactorFrom(g, f, nil)); err != nil {
		t.Fatalf("AddLogFactor: %v", err)
	}
	if err := bkt.Partition(); err != nil {
		t.Fatalf("Partition: %v", err)
	}
	out, err := bkt.OutputLogFactor()
	if err != nil {
		t.Fatalf("OutputLogFactor: %v", err)
	}
	a := variable(t, g, "A")
	for _, av := range a.Domain() {
		got, err := out.At(factorgraph.Assignment{{Var: a, Val: av}})
		if err != nil {
			t.Fatalf("At: %v", err)
		}
		want := math.Log(1e-280 + 1e-290)
		if math.IsInf(got, 0) || math.IsNaN(got) || math.Abs(got-want) > 1e-6 {
			t.Errorf("output(A=%s) = %v, want %v", av, got, want)
		}
	}
}
