package infer

// accumulator is a Neumaier-compensated running sum. Messages are sums of
// many small logarithms; naive addition loses low-order bits that the
// normalization step at the end of a run would amplify.
type accumulator struct {
	sum, comp float64
}

func (a *accumulator) add(x float64) {
	t := a.sum + x
	if abs(a.sum) >= abs(x) {
		a.comp += (a.sum - t) + x
	} else {
		a.comp += (x - t) + a.sum
	}
	a.sum = t
}

func (a *accumulator) value() float64 { return a.sum + a.comp }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// fsum returns the compensated sum of xs.
func fsum(xs []float64) float64 {
	var acc accumulator
	for _, x := range xs {
		acc.add(x)
	}
	return acc.value()
}
