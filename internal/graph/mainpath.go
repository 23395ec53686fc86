package graph

import (
	"fmt"

	"arbor-tracer/pkg/geometry"
)

// Path is an ordered run of edges starting at the root.
type Path struct {
	Nodes  []geometry.Point `json:"nodes"`
	Edges  []Edge           `json:"edges"`
	Length float64          `json:"length"`
}

// HasBranch reports whether the edge built from branch i is on the path.
func (p Path) HasBranch(i int) bool {
	for _, e := range p.Edges {
		if e.Branch == i {
			return true
		}
	}
	return false
}

// MainPath returns the main branch of the arbor: among the shortest paths
// (by length) from root to every node, the one with the largest total
// length. Ties go to the node met first in node order. Every node must be
// reachable from root, otherwise ErrDisconnected is returned.
func MainPath(g *Graph, root geometry.Point) (Path, error) {
	tree, err := ShortestPaths[geometry.Point](g, root)
	if err != nil {
		return Path{}, err
	}

	best, bestDist := root, 0.0
	for _, n := range g.Nodes() {
		d, ok := tree.Dist(n)
		if !ok {
			return Path{}, fmt.Errorf("%w: %v from %v", ErrDisconnected, n, root)
		}
		if d > bestDist {
			best, bestDist = n, d
		}
	}

	nodes, ids, _ := tree.Path(best)
	edges := make([]Edge, len(ids))
	for i, id := range ids {
		edges[i] = g.Edge(id)
	}
	return Path{Nodes: nodes, Edges: edges, Length: bestDist}, nil
}
