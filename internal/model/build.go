package model

import (
	"fmt"

	"treeprop/pkg/factorgraph"
)

// Build validates the file and links it into an immutable graph. Every
// factor table must be complete (one row per joint value tuple) with
// strictly positive weights.
func (f *File) Build() (*factorgraph.Graph, error) {
	if len(f.Variables) == 0 {
		return nil, fmt.Errorf("%w: no variables", ErrInvalidModel)
	}
	if len(f.Factors) == 0 {
		return nil, fmt.Errorf("%w: no factors", ErrInvalidModel)
	}

	domains := make(map[string][]string, len(f.Variables))
	b := factorgraph.NewBuilder()
	for _, vs := range f.Variables {
		if vs.Name == "" {
			return nil, fmt.Errorf("%w: variable with empty name", ErrInvalidModel)
		}
		if len(vs.Domain) == 0 {
			return nil, fmt.Errorf("%w: variable %q has an empty domain", ErrInvalidModel, vs.Name)
		}
		domain := make([]factorgraph.Value, len(vs.Domain))
		seen := make(map[string]bool, len(vs.Domain))
		for i, d := range vs.Domain {
			if seen[d] {
				return nil, fmt.Errorf("%w: variable %q repeats value %q", ErrInvalidModel, vs.Name, d)
			}
			seen[d] = true
			domain[i] = factorgraph.Value(d)
		}
		if err := b.AddVariable(vs.Name, domain); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		domains[vs.Name] = vs.Domain
	}

	for _, fs := range f.Factors {
		eval, err := buildTable(fs, domains)
		if err != nil {
			return nil, err
		}
		if err := b.AddFactor(fs.Name, fs.Variables, eval); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
	}
	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	return g, nil
}

// buildTable checks one factor's rows for coverage, membership, and
// positivity, and returns the table evaluator.
func buildTable(fs FactorSpec, domains map[string][]string) (*factorgraph.TableEvaluator, error) {
	if fs.Name == "" {
		return nil, fmt.Errorf("%w: factor with empty name", ErrInvalidModel)
	}
	if len(fs.Variables) == 0 {
		return nil, fmt.Errorf("%w: factor %q has no variables", ErrInvalidModel, fs.Name)
	}
	want := 1
	for _, name := range fs.Variables {
		domain, ok := domains[name]
		if !ok {
			return nil, fmt.Errorf("%w: factor %q mentions unknown variable %q", ErrInvalidModel, fs.Name, name)
		}
		want *= len(domain)
	}
	if len(fs.Rows) != want {
		return nil, fmt.Errorf("%w: factor %q has %d rows, its domains need %d",
			ErrInvalidModel, fs.Name, len(fs.Rows), want)
	}

	eval := factorgraph.NewTableEvaluator(len(fs.Variables))
	for _, row := range fs.Rows {
		if len(row.Values) != len(fs.Variables) {
			return nil, fmt.Errorf("%w: factor %q row %v arity mismatch",
				ErrInvalidModel, fs.Name, row.Values)
		}
		for i, val := range row.Values {
			if !contains(domains[fs.Variables[i]], val) {
				return nil, fmt.Errorf("%w: factor %q row value %q not in domain of %q",
					ErrInvalidModel, fs.Name, val, fs.Variables[i])
			}
		}
		if row.P <= 0 {
			return nil, fmt.Errorf("%w: factor %q row %v has non-positive weight %v",
				ErrInvalidModel, fs.Name, row.Values, row.P)
		}
		values := make([]factorgraph.Value, len(row.Values))
		for i, v := range row.Values {
			values[i] = factorgraph.Value(v)
		}
		if err := eval.Set(values, row.P); err != nil {
			return nil, fmt.Errorf("%w: factor %q row %v: %v", ErrInvalidModel, fs.Name, row.Values, err)
		}
	}
	// Set rejects duplicates, so want rows set means full coverage.
	return eval, nil
}

func contains(domain []string, val string) bool {
	for _, d := range domain {
		if d == val {
			return true
		}
	}
	return false
}
