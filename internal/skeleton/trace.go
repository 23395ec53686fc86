package skeleton

import (
	"arbor-tracer/internal/branch"
	"arbor-tracer/internal/logging"
	"arbor-tracer/pkg/geometry"
)

// Tracing tuning.
const (
	// HeadingSwitchStep is the step from which the walk steers away from the
	// previous point instead of the originating junction. Steps count from 1.
	HeadingSwitchStep = 5
	// MinBranchPoints is the noise floor: shorter traces are dropped.
	MinBranchPoints = 6
)

// Tracing is the outcome of Trace.
type Tracing struct {
	Branches []*branch.Branch
	// Dropped counts traces shorter than MinBranchPoints.
	Dropped int
	covered map[geometry.Point]bool
}

// Covered reports whether p belongs to a kept branch.
func (tr *Tracing) Covered(p geometry.Point) bool {
	return tr.covered[p]
}

// Trace walks out of every junction along each neighbour not yet part of a
// branch and returns the branches found. The walk from a junction stops on
// the next junction or when it runs out of unvisited pixels (a free tip).
// Branch starts on a root boundary pixel are marked root-linked.
//
// Tracing depends on the branches recorded so far and must run on a single
// goroutine.
func Trace(g *GridIndex, junctions *JunctionSet, root RootInfo) *Tracing {
	tr := &Tracing{covered: make(map[geometry.Point]bool)}
	adjacent := root.AdjacentSet()

	for _, j := range junctions.Points() {
		for _, n := range g.Neighbors(j) {
			if tr.covered[n] {
				continue
			}

			points := walk(g, junctions, j, n)
			if len(points) < MinBranchPoints {
				tr.Dropped++
				continue
			}

			end := points[len(points)-1]
			b := branch.New(points, !junctions.Contains(end), false)
			if adjacent[j] {
				b.LinkRoot(root.Root)
			}
			for _, p := range points {
				tr.covered[p] = true
			}
			tr.Branches = append(tr.Branches, b)
		}
	}

	logging.Logger().Debug("skeleton traced",
		"junctions", junctions.Len(), "branches", len(tr.Branches), "dropped", tr.Dropped)
	return tr
}

// walk follows the skeleton from junction j through its neighbour first.
// A neighbouring junction ends the walk immediately. Otherwise the walk
// moves to the unvisited neighbour farthest from j for the first steps, then
// to the one farthest from the previous point so it cannot fold back.
func walk(g *GridIndex, junctions *JunctionSet, j, first geometry.Point) []geometry.Point {
	points := []geometry.Point{j}
	visited := map[geometry.Point]bool{j: true}
	prev, cur := j, first

	for step := 1; ; step++ {
		points = append(points, cur)
		visited[cur] = true
		if junctions.Contains(cur) {
			return points
		}

		next := g.NeighborsExcluding(cur, visited)
		if len(next) == 0 {
			return points
		}

		// The last junction in enumeration order wins.
		target, isJunction := geometry.Point{}, false
		for _, p := range next {
			if junctions.Contains(p) {
				target, isJunction = p, true
			}
		}
		if !isJunction {
			ref := prev
			if step < HeadingSwitchStep {
				ref = j
			}
			target, _ = farthest(next, ref)
		}
		prev, cur = cur, target
	}
}
