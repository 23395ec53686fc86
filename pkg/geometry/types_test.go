package geometry_test

import (
	"math"
	"testing"

	"arbor-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestLine_Endpoints(t *testing.T) {
	cases := []struct {
		name string
		a, b geometry.Point
		n    int
	}{
		{"single", geometry.Pt(3, 3), geometry.Pt(3, 3), 1},
		{"horizontal", geometry.Pt(0, 0), geometry.Pt(5, 0), 6},
		{"diagonal", geometry.Pt(5, 5), geometry.Pt(0, 0), 6},
		{"steep", geometry.Pt(0, 0), geometry.Pt(2, 7), 8},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line := geometry.Line(tc.a, tc.b)
			assert.Len(t, line, tc.n)
			assert.Equal(t, tc.a, line[0])
			assert.Equal(t, tc.b, line[len(line)-1])
			for i := 1; i < len(line); i++ {
				d := line[i].Sub(line[i-1])
				assert.LessOrEqual(t, d.X*d.X+d.Y*d.Y, 2, "line must stay 8-connected")
			}
		})
	}
}

func TestRound_HalfToEven(t *testing.T) {
	assert.Equal(t, geometry.Pt(2, 4), geometry.Point2D{X: 2.5, Y: 3.5}.Round())
	assert.Equal(t, geometry.Pt(-2, 1), geometry.Point2D{X: -2.4, Y: 0.6}.Round())
}

func TestAngle(t *testing.T) {
	up := geometry.Point2D{X: 0, Y: -1}
	assert.InDelta(t, math.Pi, geometry.Angle(up, up.Scale(-1)), 1e-12)
	assert.InDelta(t, math.Pi/2, geometry.Angle(up, up.Perp()), 1e-12)
	assert.InDelta(t, 0, geometry.Angle(up, up.Scale(3)), 1e-7)
}

func TestConvexHull(t *testing.T) {
	pts := []geometry.Point{
		{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 3}, {X: 0, Y: 3},
		{X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 0}, {X: 4, Y: 3},
	}
	hull := geometry.ConvexHull(pts)
	assert.Equal(t, []geometry.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 3}, {X: 0, Y: 3}}, hull)
	assert.Equal(t, 12.0, geometry.PolygonArea(hull))
	assert.Len(t, pts, 8, "input must be left alone")
}

func TestConvexHull_Degenerate(t *testing.T) {
	line := []geometry.Point{{X: 3, Y: 3}, {X: 1, Y: 1}, {X: 2, Y: 2}}
	hull := geometry.ConvexHull(line)
	assert.Equal(t, []geometry.Point{{X: 1, Y: 1}, {X: 3, Y: 3}}, hull)
	assert.Zero(t, geometry.PolygonArea(hull))
	assert.Empty(t, geometry.ConvexHull(nil))
}
