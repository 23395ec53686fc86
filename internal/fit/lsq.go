// Package fit provides equality-constrained least-squares polynomial fitting
// for parametric curves.
package fit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNumerical reports a singular or ill-conditioned system.
	ErrNumerical = errors.New("fit: singular constrained least-squares system")
	// ErrInput reports malformed input such as mismatched lengths or a
	// degenerate parameterization.
	ErrInput = errors.New("fit: invalid input")
)

// Polynomial holds monomial coefficients, constant term first.
type Polynomial []float64

// Degree returns the polynomial degree, -1 for the empty polynomial.
func (p Polynomial) Degree() int {
	return len(p) - 1
}

// Eval evaluates the polynomial at t with Horner's scheme.
func (p Polynomial) Eval(t float64) float64 {
	if len(p) == 0 {
		return 0
	}
	v := p[len(p)-1]
	for k := len(p) - 2; k >= 0; k-- {
		v = v*t + p[k]
	}
	return v
}

// EvalAll evaluates the polynomial at every parameter in ts.
func (p Polynomial) EvalAll(ts []float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = p.Eval(t)
	}
	return out
}

// Constrained returns the degree-d polynomial minimizing the squared
// residual over the samples (t[i], y[i]) while passing exactly through every
// constraint (tc[j], yc[j]). It solves the Lagrange saddle-point system
//
//	[ AᵗA  Fᵗ ] [ c ]   [ Aᵗy ]
//	[  F   0  ] [ λ ] = [ yc  ]
//
// where A and F are the monomial bases evaluated at t and tc. The system is
// singular when the samples cannot pin down d+1 coefficients (too few
// distinct parameters) and ErrNumerical is returned.
func Constrained(t, y, tc, yc []float64, degree int) (Polynomial, error) {
	if len(t) != len(y) || len(tc) != len(yc) {
		return nil, fmt.Errorf("%w: %d samples vs %d values, %d constraints vs %d values",
			ErrInput, len(t), len(y), len(tc), len(yc))
	}
	if len(t) == 0 || degree < 0 {
		return nil, fmt.Errorf("%w: %d samples, degree %d", ErrInput, len(t), degree)
	}

	n, m, p := len(t), len(tc), degree+1
	a := monomials(t, p)
	f := monomials(tc, p)

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var aty mat.VecDense
	aty.MulVec(a.T(), mat.NewVecDense(n, append([]float64(nil), y...)))

	size := p + m
	sys := mat.NewDense(size, size, nil)
	rhs := mat.NewVecDense(size, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			sys.Set(i, j, ata.At(i, j))
		}
		rhs.SetVec(i, aty.AtVec(i))
	}
	for r := 0; r < m; r++ {
		for j := 0; j < p; j++ {
			sys.Set(p+r, j, f.At(r, j))
			sys.Set(j, p+r, f.At(r, j))
		}
		rhs.SetVec(p+r, yc[r])
	}

	var sol mat.VecDense
	if err := sol.SolveVec(sys, rhs); err != nil {
		return nil, fmt.Errorf("%w: degree %d with %d samples: %v", ErrNumerical, degree, n, err)
	}

	coeffs := make(Polynomial, p)
	for i := range coeffs {
		c := sol.AtVec(i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrNumerical, i)
		}
		coeffs[i] = c
	}
	return coeffs, nil
}

// monomials returns the len(t)×p matrix whose row i is 1, t[i], t[i]², ...
func monomials(t []float64, p int) *mat.Dense {
	m := mat.NewDense(len(t), p, nil)
	for i, ti := range t {
		v := 1.0
		for k := 0; k < p; k++ {
			m.Set(i, k, v)
			v *= ti
		}
	}
	return m
}
