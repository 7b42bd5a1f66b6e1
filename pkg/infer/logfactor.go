package infer

import (
	"fmt"
	"math"

	"treeprop/pkg/factorgraph"
)

// LogFactor is a detached log-space factor used by elimination buckets:
// an evaluation closure over an ordered tuple of free (non-evidentiary)
// variables, with the evidentiary bindings it depends on carried along as
// fixed values. Unlike factorgraph.Factor it is not linked into a graph,
// so bucket outputs can be created and discarded freely between buckets.
type LogFactor struct {
	name  string
	vars  []*factorgraph.Variable
	fixed factorgraph.Evidence
	fn    func(values []factorgraph.Value) (float64, error)
}

// NewLogFactor builds a detached log-factor. fn receives values aligned
// with vars.
func NewLogFactor(name string, vars []*factorgraph.Variable, fixed factorgraph.Evidence, fn func([]factorgraph.Value) (float64, error)) *LogFactor {
	return &LogFactor{name: name, vars: vars, fixed: fixed, fn: fn}
}

// LogFactorFrom lifts a graph factor into log space under the given
// evidence: evidentiary incident variables are fixed to their observed
// values, the remaining ones become the log-factor's free tuple.
func LogFactorFrom(g *factorgraph.Graph, f *factorgraph.Factor, evidence factorgraph.Evidence) *LogFactor {
	var free []*factorgraph.Variable
	var fixed factorgraph.Evidence
	freePos := make([]int, 0, f.Degree())
	fixedVals := make([]factorgraph.Value, f.Degree())
	fixedMask := make([]bool, f.Degree())
	for i, vid := range f.VariableIDs() {
		v := g.Variable(vid)
		if val, ok := evidence.Observed(v); ok {
			fixed = append(fixed, factorgraph.Pair{Var: v, Val: val})
			fixedVals[i] = val
			fixedMask[i] = true
		} else {
			free = append(free, v)
			freePos = append(freePos, i)
		}
	}
	fn := func(values []factorgraph.Value) (float64, error) {
		args := make([]factorgraph.Value, f.Degree())
		for i := range args {
			if fixedMask[i] {
				args[i] = fixedVals[i]
			}
		}
		for i, p := range freePos {
			args[p] = values[i]
		}
		p, err := f.Evaluate(args)
		if err != nil {
			return 0, err
		}
		if p <= 0 {
			return 0, fmt.Errorf("%w: factor %q at %v", ErrNonPositiveFactor, f.Name(), args)
		}
		return math.Log(p), nil
	}
	return &LogFactor{name: "log_" + f.Name(), vars: free, fixed: fixed, fn: fn}
}

// Name returns the log-factor's name.
func (lf *LogFactor) Name() string { return lf.name }

// Variables returns the ordered free variables.
func (lf *LogFactor) Variables() []*factorgraph.Variable { return lf.vars }

// Fixed returns the evidentiary bindings the log-factor carries.
func (lf *LogFactor) Fixed() factorgraph.Evidence { return lf.fixed }

// Mentions reports whether v is one of the free variables.
func (lf *LogFactor) Mentions(v *factorgraph.Variable) bool {
	for _, fv := range lf.vars {
		if fv.ID() == v.ID() {
			return true
		}
	}
	return false
}

// At evaluates the log-factor under an assignment that must bind every
// free variable. Extra bindings are ignored.
func (lf *LogFactor) At(a factorgraph.Assignment) (float64, error) {
	values := make([]factorgraph.Value, len(lf.vars))
	for i, v := range lf.vars {
		val, ok := a.Get(v)
		if !ok {
			return 0, fmt.Errorf("%w: log-factor %q needs a value for %q", ErrMessageMissing, lf.name, v.Name())
		}
		values[i] = val
	}
	return lf.fn(values)
}

// eachJoint invokes fn for every joint assignment of the variables'
// domains, in row-major order. With no variables fn runs once with an
// empty tuple.
func eachJoint(vars []*factorgraph.Variable, fn func(values []factorgraph.Value) error) error {
	values := make([]factorgraph.Value, len(vars))
	var rec func(i int) error
	rec = func(i int) error {
		if i == len(vars) {
			return fn(values)
		}
		for _, v := range vars[i].Domain() {
			values[i] = v
			if err := rec(i + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return rec(0)
}
