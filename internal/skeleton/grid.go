// Package skeleton turns a thinned binary raster into branches: it indexes
// the foreground pixels, finds branching points and traces the branches
// running between them.
package skeleton

import (
	"math"

	"arbor-tracer/pkg/geometry"
)

// Raster is a binary image. Foreground must report false outside the image.
type Raster interface {
	Size() (width, height int)
	Foreground(p geometry.Point) bool
}

// neighborOffsets is the 8-neighbourhood in enumeration order: dx outer,
// dy inner. Farthest-point ties in detection and tracing resolve to the
// earliest entry, so the order is part of the observable behaviour.
var neighborOffsets = [8]geometry.Point{
	{X: -1, Y: -1}, {X: -1, Y: 0}, {X: -1, Y: 1},
	{X: 0, Y: -1}, {X: 0, Y: 1},
	{X: 1, Y: -1}, {X: 1, Y: 0}, {X: 1, Y: 1},
}

// GridIndex is the set of skeleton pixels. Points keeps the scan order
// (column by column, top to bottom) and the set answers membership.
type GridIndex struct {
	points []geometry.Point
	set    map[geometry.Point]struct{}
}

// NewGridIndex builds an index from points. Duplicates are dropped and the
// first occurrence decides the position in Points.
func NewGridIndex(points []geometry.Point) *GridIndex {
	g := &GridIndex{
		points: make([]geometry.Point, 0, len(points)),
		set:    make(map[geometry.Point]struct{}, len(points)),
	}
	for _, p := range points {
		if _, ok := g.set[p]; ok {
			continue
		}
		g.set[p] = struct{}{}
		g.points = append(g.points, p)
	}
	return g
}

// FromRaster collects every foreground pixel of r.
func FromRaster(r Raster) *GridIndex {
	w, h := r.Size()
	var points []geometry.Point
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			p := geometry.Point{X: x, Y: y}
			if r.Foreground(p) {
				points = append(points, p)
			}
		}
	}
	return NewGridIndex(points)
}

// Len returns the number of skeleton pixels.
func (g *GridIndex) Len() int { return len(g.points) }

// Points returns the pixels in scan order. The slice must not be modified.
func (g *GridIndex) Points() []geometry.Point { return g.points }

// Contains reports whether p is a skeleton pixel.
func (g *GridIndex) Contains(p geometry.Point) bool {
	_, ok := g.set[p]
	return ok
}

// Neighbors returns the 8-connected skeleton neighbours of p.
func (g *GridIndex) Neighbors(p geometry.Point) []geometry.Point {
	return g.NeighborsExcluding(p, nil)
}

// NeighborsExcluding returns the 8-connected neighbours of p that are not
// in skip. A nil skip excludes nothing.
func (g *GridIndex) NeighborsExcluding(p geometry.Point, skip map[geometry.Point]bool) []geometry.Point {
	out := make([]geometry.Point, 0, 4)
	for _, off := range neighborOffsets {
		n := p.Add(off)
		if !g.Contains(n) || skip[n] {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Neighbors4 returns the 4-connected skeleton neighbours of p.
func (g *GridIndex) Neighbors4(p geometry.Point) []geometry.Point {
	out := make([]geometry.Point, 0, 4)
	for _, off := range neighborOffsets {
		if off.X != 0 && off.Y != 0 {
			continue
		}
		if n := p.Add(off); g.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Simplify drops every pixel whose left and upper neighbours are both
// present. Thinning leaves such staircase corners behind and they show up
// as spurious 4-neighbour branching points. The test runs against the
// unsimplified set, so removals do not cascade.
func (g *GridIndex) Simplify() *GridIndex {
	kept := make([]geometry.Point, 0, len(g.points))
	for _, p := range g.points {
		if g.Contains(geometry.Pt(p.X-1, p.Y)) && g.Contains(geometry.Pt(p.X, p.Y-1)) {
			continue
		}
		kept = append(kept, p)
	}
	return NewGridIndex(kept)
}

// Without returns a copy of the index with every point satisfying drop removed.
func (g *GridIndex) Without(drop func(geometry.Point) bool) *GridIndex {
	kept := make([]geometry.Point, 0, len(g.points))
	for _, p := range g.points {
		if !drop(p) {
			kept = append(kept, p)
		}
	}
	return NewGridIndex(kept)
}

// Nearest finds the skeleton pixel closest to pt, scanning square rings of
// growing radius up to maxRadius. It reports false when none is in range.
func (g *GridIndex) Nearest(pt geometry.Point, maxRadius int) (geometry.Point, bool) {
	if g.Contains(pt) {
		return pt, true
	}

	best := math.Inf(1)
	var bestPt geometry.Point
	found := false
	consider := func(x, y int) {
		p := geometry.Pt(x, y)
		if !g.Contains(p) {
			return
		}
		if d := p.Distance(pt); d < best {
			best, bestPt, found = d, p, true
		}
	}

	for r := 1; r <= maxRadius; r++ {
		for dx := -r; dx <= r; dx++ {
			consider(pt.X+dx, pt.Y-r)
			consider(pt.X+dx, pt.Y+r)
		}
		for dy := -r + 1; dy <= r-1; dy++ {
			consider(pt.X-r, pt.Y+dy)
			consider(pt.X+r, pt.Y+dy)
		}
		// Stop at the first ring with a hit; outer rings are not searched.
		if found {
			return bestPt, true
		}
	}
	return geometry.Point{}, false
}
