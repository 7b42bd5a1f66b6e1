package factorgraph

// Value is one categorical value of a variable's domain.
type Value string

// Variable is a categorical random variable. Variables are created by the
// Builder and addressed by a dense id that is stable for the lifetime of
// the graph. A Variable carries no traversal state; per-run bookkeeping is
// kept in side tables by the inference engine.
type Variable struct {
	id      int
	name    string
	domain  []Value
	factors []int // incident factor ids, in factor insertion order
}

// ID returns the variable's arena id.
func (v *Variable) ID() int { return v.id }

// Name returns the variable's name, unique within its graph.
func (v *Variable) Name() string { return v.name }

// Domain returns the ordered value domain. Callers must not mutate it.
func (v *Variable) Domain() []Value { return v.domain }

// FactorIDs returns the ids of the incident factors. Callers must not
// mutate the returned slice.
func (v *Variable) FactorIDs() []int { return v.factors }

// Degree returns the number of incident factors.
func (v *Variable) Degree() int { return len(v.factors) }

// HasValue reports whether val belongs to the variable's domain.
func (v *Variable) HasValue(val Value) bool {
	for _, d := range v.domain {
		if d == val {
			return true
		}
	}
	return false
}
