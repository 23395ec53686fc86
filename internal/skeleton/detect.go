package skeleton

import (
	"math"

	"arbor-tracer/internal/logging"
	"arbor-tracer/pkg/geometry"
)

// Junction detection tuning. The values shape which pixels qualify and are
// kept fixed so results stay reproducible across runs.
const (
	// ProbeSteps is how far each probe walks away from a candidate.
	ProbeSteps = 10
	// ArrivalProximity is the distance under which two probe arrivals are
	// taken to lie on the same branch.
	ArrivalProximity = 3.0

	angleTolerance = 1e-9
)

// DetectJunctions returns the branching points of the skeleton. The result
// starts with seed (typically the soma boundary pixels) followed by every
// detected junction in scan order. The grid is not modified, so repeated
// calls yield the same set.
//
// A pixel qualifies when it has exactly three neighbours, the three probes
// started from them end up well apart, and the three neighbour directions
// form at least two equal angles (a Y or T split).
func DetectJunctions(g *GridIndex, seed []geometry.Point) *JunctionSet {
	js := NewJunctionSet(seed...)

	var candidates []geometry.Point
	for _, p := range g.Points() {
		neighbors := g.Neighbors(p)
		if len(neighbors) != 3 {
			continue
		}
		if distinctArrivals(g, p, neighbors) == 3 {
			candidates = append(candidates, p)
		}
	}

	for _, p := range candidates {
		if symmetricSplit(p, g.Neighbors(p)) {
			js.Add(p)
		}
	}

	logging.Logger().Debug("junctions detected",
		"candidates", len(candidates), "seeded", len(seed), "total", js.Len())
	return js
}

// probe walks ProbeSteps times from start, each time stepping to the
// neighbour farthest from origin, and returns where it stopped.
func probe(g *GridIndex, origin, start geometry.Point) geometry.Point {
	cur := start
	for k := 0; k < ProbeSteps; k++ {
		next, ok := farthest(g.Neighbors(cur), origin)
		if !ok {
			break
		}
		cur = next
	}
	return cur
}

// distinctArrivals probes every neighbour of p and counts the arrivals that
// have no other arrival closer than ArrivalProximity.
func distinctArrivals(g *GridIndex, p geometry.Point, neighbors []geometry.Point) int {
	arrivals := make([]geometry.Point, len(neighbors))
	for i, n := range neighbors {
		arrivals[i] = probe(g, p, n)
	}

	distinct := 0
	for i, a := range arrivals {
		isolated := true
		for j, b := range arrivals {
			if i != j && a.Distance(b) < ArrivalProximity {
				isolated = false
				break
			}
		}
		if isolated {
			distinct++
		}
	}
	return distinct
}

// symmetricSplit reports whether at least two of the three pairwise angles
// between the unit vectors from p to its neighbours are equal.
func symmetricSplit(p geometry.Point, neighbors []geometry.Point) bool {
	if len(neighbors) != 3 {
		return false
	}
	u0 := neighbors[0].Sub(p).ToFloat()
	u1 := neighbors[1].Sub(p).ToFloat()
	u2 := neighbors[2].Sub(p).ToFloat()

	a01 := geometry.Angle(u0, u1)
	a12 := geometry.Angle(u1, u2)
	a20 := geometry.Angle(u2, u0)

	return math.Abs(a01-a12) <= angleTolerance ||
		math.Abs(a12-a20) <= angleTolerance ||
		math.Abs(a20-a01) <= angleTolerance
}

// farthest returns the point of candidates farthest from ref. Ties keep the
// earliest candidate.
func farthest(candidates []geometry.Point, ref geometry.Point) (geometry.Point, bool) {
	if len(candidates) == 0 {
		return geometry.Point{}, false
	}
	best := candidates[0]
	bestDist := best.Distance(ref)
	for _, c := range candidates[1:] {
		if d := c.Distance(ref); d > bestDist {
			best, bestDist = c, d
		}
	}
	return best, true
}
