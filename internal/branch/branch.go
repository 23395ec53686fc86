// Package branch models one traced branch of the skeleton: its pixel path,
// the parametric curve fitted through it and the metrics measured on that
// curve.
package branch

import (
	"errors"
	"fmt"
	"math"

	"arbor-tracer/internal/fit"
	"arbor-tracer/internal/logging"
	"arbor-tracer/pkg/geometry"
)

// Measurement defaults.
const (
	DefaultDegree           = 8
	DefaultThicknessSamples = 10
	DefaultLengthSamples    = 300
)

// Stage names the processing step that failed for a branch.
type Stage string

const (
	StageFit       Stage = "fit"
	StageThickness Stage = "thickness"
	StageLength    Stage = "length"
)

// Error reports a failure on one branch, identified by its end points.
type Error struct {
	Stage Stage
	Start geometry.Point
	End   geometry.Point
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("branch %v-%v: %s: %v", e.Start, e.End, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotFitted is returned by measurements run before Fit.
var ErrNotFitted = errors.New("branch: curve not fitted")

// Branch is a pixel path between a junction and either another junction or
// a free tip. Tracing fills Points, Terminal and RootLinked; Fit sets the
// curve and the measurements set Thickness and Length.
type Branch struct {
	Points     []geometry.Point `json:"points"`
	Terminal   bool             `json:"terminal"`    // End is a free tip
	RootLinked bool             `json:"root_linked"` // Start lies on the soma boundary

	// RootLink is the straight pixel line from Start to the soma centre,
	// set for root-linked branches.
	RootLink []geometry.Point `json:"root_link,omitempty"`

	CurveX fit.Polynomial `json:"curve_x,omitempty"`
	CurveY fit.Polynomial `json:"curve_y,omitempty"`
	Degree int            `json:"degree"`

	Thickness float64 `json:"thickness"`
	Length    float64 `json:"length"`
}

// New creates a branch over points, which must hold at least one point.
func New(points []geometry.Point, terminal, rootLinked bool) *Branch {
	return &Branch{Points: points, Terminal: terminal, RootLinked: rootLinked}
}

// Start returns the first traced point.
func (b *Branch) Start() geometry.Point { return b.Points[0] }

// End returns the last traced point.
func (b *Branch) End() geometry.Point { return b.Points[len(b.Points)-1] }

// Fitted reports whether Fit has succeeded.
func (b *Branch) Fitted() bool { return b.CurveX != nil && b.CurveY != nil }

// LinkRoot records the straight line from Start to root and marks the
// branch as root-linked.
func (b *Branch) LinkRoot(root geometry.Point) {
	b.RootLinked = true
	b.RootLink = geometry.Line(b.Start(), root)
}

// Fit approximates the branch by a parametric polynomial curve (x(t), y(t))
// over a chordal parameterization, constrained to pass through Start at t=0
// and End at t=1. If the system at the requested degree is singular the
// degree is lowered one step at a time down to minDegree.
func (b *Branch) Fit(degree, minDegree int) error {
	n := len(b.Points)
	xs := make([]float64, n)
	ys := make([]float64, n)
	pts := make([]geometry.Point2D, n)
	for i, p := range b.Points {
		pts[i] = p.ToFloat()
		xs[i], ys[i] = pts[i].X, pts[i].Y
	}

	t, err := fit.Chordal(pts)
	if err != nil {
		return b.fail(StageFit, err)
	}
	tc := []float64{t[0], t[n-1]}
	xc := []float64{xs[0], xs[n-1]}
	yc := []float64{ys[0], ys[n-1]}

	minDegree = max(0, min(minDegree, degree))
	for d := degree; d >= minDegree; d-- {
		cx, errX := fit.Constrained(t, xs, tc, xc, d)
		cy, errY := fit.Constrained(t, ys, tc, yc, d)
		if err = errors.Join(errX, errY); err == nil {
			if d != degree {
				logging.Logger().Debug("branch fit degree lowered",
					"start", b.Start(), "end", b.End(), "requested", degree, "used", d)
			}
			b.CurveX, b.CurveY, b.Degree = cx, cy, d
			return nil
		}
		if !errors.Is(err, fit.ErrNumerical) {
			break
		}
	}
	return b.fail(StageFit, err)
}

// Curve samples the fitted curve at n evenly spaced parameters.
func (b *Branch) Curve(n int) []geometry.Point2D {
	if !b.Fitted() {
		return nil
	}
	t := fit.Linspace(0, 1, n)
	xs, ys := b.CurveX.EvalAll(t), b.CurveY.EvalAll(t)
	out := make([]geometry.Point2D, n)
	for i := range out {
		out[i] = geometry.Point2D{X: xs[i], Y: ys[i]}
	}
	return out
}

// MeasureLength sets Length to the arc length of the fitted curve, summing
// the discrete derivative magnitude over samples evenly spaced parameters.
func (b *Branch) MeasureLength(samples int) error {
	if !b.Fitted() {
		return b.fail(StageLength, ErrNotFitted)
	}
	if samples < 2 {
		return b.fail(StageLength, fmt.Errorf("need at least 2 samples, got %d", samples))
	}
	t := fit.Linspace(0, 1, samples)
	dx := fit.Gradient(b.CurveX.EvalAll(t))
	dy := fit.Gradient(b.CurveY.EvalAll(t))

	var length float64
	for i := range dx {
		length += math.Hypot(dx[i], dy[i])
	}
	b.Length = round2(length)
	return nil
}

func (b *Branch) fail(stage Stage, err error) error {
	return &Error{Stage: stage, Start: b.Start(), End: b.End(), Err: err}
}

// round2 rounds to two decimals, halves to even.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
