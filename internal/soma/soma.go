// Package soma turns a user supplied soma disk into the root of the arbor.
package soma

import (
	"fmt"

	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"
)

// FromDisk cuts the disk of the given radius around center out of the
// skeleton. Skeleton pixels outside the disk that touch a removed pixel
// become the root boundary, in grid order. A radius of 0 keeps the skeleton
// whole and leaves the boundary empty, so center itself must then sit near
// the skeleton.
func FromDisk(g *skeleton.GridIndex, center geometry.Point, radius int) (skeleton.RootInfo, *skeleton.GridIndex, error) {
	root := skeleton.RootInfo{Root: center}
	if radius < 0 {
		return root, nil, fmt.Errorf("soma radius must not be negative, got %d", radius)
	}
	if radius == 0 {
		return root, g, nil
	}

	r2 := radius * radius
	inside := func(p geometry.Point) bool {
		d := p.Sub(center)
		return d.X*d.X+d.Y*d.Y <= r2
	}

	trimmed := g.Without(inside)
	for _, p := range trimmed.Points() {
		for _, n := range g.Neighbors(p) {
			if inside(n) {
				root.Adjacent = append(root.Adjacent, p)
				break
			}
		}
	}
	if len(root.Adjacent) == 0 {
		return root, trimmed, fmt.Errorf("no skeleton pixel leaves the soma disk at %v radius %d", center, radius)
	}
	return root, trimmed, nil
}
