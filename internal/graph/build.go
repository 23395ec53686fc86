package graph

import (
	"errors"

	"arbor-tracer/internal/branch"
	"arbor-tracer/internal/logging"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"
)

// Rejection explains why a branch got no edge.
type Rejection struct {
	Branch int
	Reason string
}

// CollapseFence returns junctions without the soma boundary pixels, followed
// by the root. The boundary pixels all stand for the single root node.
func CollapseFence(junctions []geometry.Point, root skeleton.RootInfo) []geometry.Point {
	adjacent := root.AdjacentSet()
	out := make([]geometry.Point, 0, len(junctions)+1)
	hasRoot := false
	for _, j := range junctions {
		if adjacent[j] {
			continue
		}
		if j == root.Root {
			hasRoot = true
		}
		out = append(out, j)
	}
	if !hasRoot {
		out = append(out, root.Root)
	}
	return out
}

// Build creates the arbor graph. Nodes are the junctions left after
// CollapseFence, the root and the free tips; every branch becomes one edge
// weighted by its length. A root-linked branch runs from the root to its end,
// and any end lying on the soma boundary is moved onto the root. Branches
// under the noise floor or collapsing onto a single node are rejected.
func Build(branches []*branch.Branch, junctions []geometry.Point, root skeleton.RootInfo) (*Graph, []Rejection) {
	g := New()
	for _, n := range CollapseFence(junctions, root) {
		g.AddNode(n)
	}

	adjacent := root.AdjacentSet()
	resolve := func(p geometry.Point) geometry.Point {
		if adjacent[p] {
			return root.Root
		}
		return p
	}

	var rejected []Rejection
	for i, b := range branches {
		if len(b.Points) < skeleton.MinBranchPoints {
			rejected = append(rejected, Rejection{Branch: i, Reason: "too short"})
			continue
		}
		u, v := resolve(b.Start()), resolve(b.End())
		if b.RootLinked {
			u = root.Root
		}
		if _, err := g.AddEdge(u, v, b.Thickness, b.Length, i); err != nil {
			reason := err.Error()
			if errors.Is(err, ErrSelfLoop) {
				reason = "self-loop"
			}
			rejected = append(rejected, Rejection{Branch: i, Reason: reason})
			logging.Logger().Warn("branch left out of graph",
				"start", b.Start(), "end", b.End(), "reason", reason)
		}
	}

	logging.Logger().Debug("graph built",
		"nodes", len(g.Nodes()), "edges", len(g.Edges()), "rejected", len(rejected))
	return g, rejected
}
