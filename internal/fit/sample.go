package fit

import (
	"fmt"

	"arbor-tracer/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// Chordal assigns each point a parameter proportional to the cumulative
// Euclidean distance travelled along the sequence, normalized to [0, 1].
// A sequence without two distinct consecutive points has no length and
// returns ErrInput.
func Chordal(points []geometry.Point2D) ([]float64, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: chordal parameterization needs 2 points, got %d", ErrInput, len(points))
	}
	t := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		t[i] = t[i-1] + points[i].Distance(points[i-1])
	}
	total := t[len(t)-1]
	if total == 0 {
		return nil, fmt.Errorf("%w: zero chord length over %d points", ErrInput, len(points))
	}
	floats.Scale(1/total, t)
	return t, nil
}

// Linspace returns n evenly spaced values from a to b inclusive.
func Linspace(a, b float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{a}
	}
	return floats.Span(make([]float64, n), a, b)
}

// Gradient returns the discrete derivative of v with respect to its index:
// central differences inside, one-sided differences at both ends.
func Gradient(v []float64) []float64 {
	n := len(v)
	g := make([]float64, n)
	if n < 2 {
		return g
	}
	g[0] = v[1] - v[0]
	g[n-1] = v[n-1] - v[n-2]
	for i := 1; i < n-1; i++ {
		g[i] = (v[i+1] - v[i-1]) / 2
	}
	return g
}
