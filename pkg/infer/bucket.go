package infer

import (
	"fmt"
	"math"
	"sort"

	"treeprop/pkg/factorgraph"
)

// Bucket accumulates the log-factors that mention one variable and sums
// that variable out, producing a new log-factor over the remaining free
// variables for the next bucket in an elimination order. The same
// max-shift log-sum-exp used by the propagation engine's interior rule
// keeps the summation stable.
type Bucket struct {
	variable    *factorgraph.Variable
	inputs      []*LogFactor
	free        []*factorgraph.Variable
	evidential  factorgraph.Evidence
	partitioned bool
}

// NewBucket returns an empty bucket that will eliminate v.
func NewBucket(v *factorgraph.Variable) *Bucket {
	return &Bucket{variable: v}
}

// Variable returns the variable this bucket eliminates.
func (b *Bucket) Variable() *factorgraph.Variable { return b.variable }

// HasLogFactors reports whether any input has been added.
func (b *Bucket) HasLogFactors() bool { return len(b.inputs) > 0 }

// FreeVariables returns the free variables computed by Partition.
func (b *Bucket) FreeVariables() []*factorgraph.Variable { return b.free }

// AddLogFactor appends one input. No recomputation is triggered; call
// Partition once all inputs are in.
func (b *Bucket) AddLogFactor(lf *LogFactor) error {
	if b.partitioned {
		return fmt.Errorf("%w: add after Partition on bucket %q", ErrBucketState, b.variable.Name())
	}
	b.inputs = append(b.inputs, lf)
	return nil
}

// Partition splits the union of the input factors' variables, minus the
// bucket's own variable, into the free tuple (sorted by name, so the
// output factor's signature is deterministic) and the evidentiary
// bindings carried forward. Must be called exactly once, after all
// AddLogFactor calls and before OutputLogFactor.
func (b *Bucket) Partition() error {
	if b.partitioned {
		return fmt.Errorf("%w: Partition called twice on bucket %q", ErrBucketState, b.variable.Name())
	}
	seenFree := make(map[int]bool)
	seenFixed := make(map[int]bool)
	for _, lf := range b.inputs {
		for _, v := range lf.Variables() {
			if v.ID() == b.variable.ID() || seenFree[v.ID()] {
				continue
			}
			seenFree[v.ID()] = true
			b.free = append(b.free, v)
		}
		for _, p := range lf.Fixed() {
			if seenFixed[p.Var.ID()] {
				continue
			}
			seenFixed[p.Var.ID()] = true
			b.evidential = append(b.evidential, p)
		}
	}
	sort.Slice(b.free, func(i, j int) bool { return b.free[i].Name() < b.free[j].Name() })
	b.partitioned = true
	return nil
}

// OutputLogFactor sums the bucket variable out: for every joint assignment
// of the free variables it computes, per bucket-variable value, the sum of
// all inputs, then collapses the values with a max-shifted log-sum-exp.
// The result is a table-backed log-factor over the free variables.
func (b *Bucket) OutputLogFactor() (*LogFactor, error) {
	if !b.partitioned {
		return nil, fmt.Errorf("%w: OutputLogFactor before Partition on bucket %q", ErrBucketState, b.variable.Name())
	}
	if len(b.inputs) == 0 {
		return nil, fmt.Errorf("%w: bucket %q has no input factors", ErrBucketState, b.variable.Name())
	}

	table := make(map[string]float64)
	terms := make([]float64, len(b.inputs))
	err := eachJoint(b.free, func(frees []factorgraph.Value) error {
		base := make(factorgraph.Assignment, len(b.free), len(b.free)+1)
		for i, v := range b.free {
			base[i] = factorgraph.Pair{Var: v, Val: frees[i]}
		}
		sums := make([]float64, 0, len(b.variable.Domain()))
		maxSum := math.Inf(-1)
		for _, bv := range b.variable.Domain() {
			a := base.With(b.variable, bv)
			for i, lf := range b.inputs {
				lv, err := lf.At(a)
				if err != nil {
					return err
				}
				terms[i] = lv
			}
			s := fsum(terms)
			sums = append(sums, s)
			if s > maxSum {
				maxSum = s
			}
		}
		var acc accumulator
		for _, s := range sums {
			acc.add(math.Exp(s - maxSum))
		}
		table[jointKey(frees)] = maxSum + math.Log(acc.value())
		return nil
	})
	if err != nil {
		return nil, err
	}

	free := b.free
	fn := func(values []factorgraph.Value) (float64, error) {
		lv, ok := table[jointKey(values)]
		if !ok {
			return 0, fmt.Errorf("%w: bucket output of %q at %v", ErrMessageMissing, b.variable.Name(), values)
		}
		return lv, nil
	}
	return NewLogFactor("log_f_"+b.variable.Name(), free, b.evidential, fn), nil
}

func jointKey(values []factorgraph.Value) string {
	key := ""
	for i, v := range values {
		if i > 0 {
			key += "\x1f"
		}
		key += string(v)
	}
	return key
}
