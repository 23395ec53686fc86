// Package graph assembles traced branches into an undirected weighted graph
// and extracts the main branch of the arbor from it.
package graph

import (
	"errors"
	"fmt"

	"arbor-tracer/pkg/geometry"
)

var (
	// ErrDisconnected reports a node the root cannot reach.
	ErrDisconnected = errors.New("graph: node unreachable from root")
	// ErrNodeNotFound reports a node missing from the graph.
	ErrNodeNotFound = errors.New("graph: node not found")
	// ErrNegativeWeight reports an edge weight below zero.
	ErrNegativeWeight = errors.New("graph: negative edge weight")
	// ErrSelfLoop reports an edge whose two ends are the same node.
	ErrSelfLoop = errors.New("graph: self-loop")
)

// Edge is one branch between two nodes.
type Edge struct {
	ID        int            `json:"id"`
	U         geometry.Point `json:"u"`
	V         geometry.Point `json:"v"`
	Thickness float64        `json:"thickness"`
	Length    float64        `json:"length"`
	Branch    int            `json:"branch"` // index of the branch the edge stands for
}

// Other returns the end of e opposite to n.
func (e Edge) Other(n geometry.Point) geometry.Point {
	if e.U == n {
		return e.V
	}
	return e.U
}

// Graph is an undirected multigraph keyed by pixel position. Nodes and
// edges keep insertion order so every traversal is reproducible.
type Graph struct {
	nodes []geometry.Point
	index map[geometry.Point]int
	edges []Edge
	adj   map[geometry.Point][]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[geometry.Point]int),
		adj:   make(map[geometry.Point][]int),
	}
}

// AddNode inserts n and reports whether it was new.
func (g *Graph) AddNode(n geometry.Point) bool {
	if _, ok := g.index[n]; ok {
		return false
	}
	g.index[n] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return true
}

// HasNode reports whether n is in the graph.
func (g *Graph) HasNode(n geometry.Point) bool {
	_, ok := g.index[n]
	return ok
}

// AddEdge connects u and v, adding missing nodes. Parallel edges are kept.
func (g *Graph) AddEdge(u, v geometry.Point, thickness, length float64, branch int) (Edge, error) {
	if u == v {
		return Edge{}, fmt.Errorf("%w at %v", ErrSelfLoop, u)
	}
	if length < 0 {
		return Edge{}, fmt.Errorf("%w: %v-%v length=%g", ErrNegativeWeight, u, v, length)
	}
	g.AddNode(u)
	g.AddNode(v)

	e := Edge{ID: len(g.edges), U: u, V: v, Thickness: thickness, Length: length, Branch: branch}
	g.edges = append(g.edges, e)
	g.adj[u] = append(g.adj[u], e.ID)
	g.adj[v] = append(g.adj[v], e.ID)
	return e, nil
}

// Nodes returns the nodes in insertion order. The slice must not be modified.
func (g *Graph) Nodes() []geometry.Point { return g.nodes }

// Edges returns the edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id int) Edge { return g.edges[id] }

// Degree returns the number of edges incident to n.
func (g *Graph) Degree(n geometry.Point) int { return len(g.adj[n]) }

// Arcs implements WeightedGraph with edge length as the weight.
func (g *Graph) Arcs(n geometry.Point) []Arc[geometry.Point] {
	ids := g.adj[n]
	arcs := make([]Arc[geometry.Point], len(ids))
	for i, id := range ids {
		e := g.edges[id]
		arcs[i] = Arc[geometry.Point]{To: e.Other(n), Weight: e.Length, Edge: id}
	}
	return arcs
}
