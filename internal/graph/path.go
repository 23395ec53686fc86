package graph

import (
	"container/heap"
	"fmt"
	"math"
)

// Arc is a traversable edge end as seen from one node.
type Arc[N comparable] struct {
	To     N
	Weight float64
	Edge   int // caller-defined edge identifier
}

// WeightedGraph is the view ShortestPaths needs. Undirected graphs report
// each edge from both of its ends.
type WeightedGraph[N comparable] interface {
	Nodes() []N
	Arcs(n N) []Arc[N]
}

// Tree is a shortest-path tree rooted at Source.
type Tree[N comparable] struct {
	Source N
	dist   map[N]float64
	prev   map[N]Arc[N] // Arc.To is the predecessor
}

// Dist returns the distance from Source to n and whether n is reachable.
func (t *Tree[N]) Dist(n N) (float64, bool) {
	d, ok := t.dist[n]
	return d, ok
}

// Path returns the nodes and edge identifiers from Source to n, or false
// when n is unreachable.
func (t *Tree[N]) Path(n N) ([]N, []int, bool) {
	if _, ok := t.dist[n]; !ok {
		return nil, nil, false
	}
	nodes := []N{n}
	var edges []int
	for cur := n; cur != t.Source; {
		arc := t.prev[cur]
		edges = append(edges, arc.Edge)
		nodes = append(nodes, arc.To)
		cur = arc.To
	}
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return nodes, edges, true
}

// ShortestPaths runs Dijkstra from source over g. Weights must be
// non-negative. Nodes the source cannot reach are absent from the tree.
func ShortestPaths[N comparable](g WeightedGraph[N], source N) (*Tree[N], error) {
	found := false
	for _, n := range g.Nodes() {
		if n == source {
			found = true
		}
		for _, a := range g.Arcs(n) {
			if a.Weight < 0 || math.IsNaN(a.Weight) {
				return nil, fmt.Errorf("%w: edge %d from %v weight=%g", ErrNegativeWeight, a.Edge, n, a.Weight)
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: source %v", ErrNodeNotFound, source)
	}

	t := &Tree[N]{
		Source: source,
		dist:   map[N]float64{source: 0},
		prev:   make(map[N]Arc[N]),
	}
	done := make(map[N]bool)

	pq := &queue[N]{}
	heap.Push(pq, &queueItem[N]{node: source})
	seq := 1
	for pq.Len() > 0 {
		item := heap.Pop(pq).(*queueItem[N])
		u := item.node
		if done[u] {
			continue // stale entry
		}
		done[u] = true

		for _, a := range g.Arcs(u) {
			if done[a.To] {
				continue
			}
			nd := t.dist[u] + a.Weight
			if old, ok := t.dist[a.To]; ok && nd >= old {
				continue
			}
			t.dist[a.To] = nd
			t.prev[a.To] = Arc[N]{To: u, Weight: a.Weight, Edge: a.Edge}
			heap.Push(pq, &queueItem[N]{node: a.To, dist: nd, seq: seq})
			seq++
		}
	}
	return t, nil
}

// queueItem is a node in the Dijkstra priority queue. seq breaks distance
// ties in push order.
type queueItem[N comparable] struct {
	node N
	dist float64
	seq  int
}

// queue implements heap.Interface as a min-heap on dist.
type queue[N comparable] []*queueItem[N]

func (q queue[N]) Len() int { return len(q) }
func (q queue[N]) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].seq < q[j].seq
}
func (q queue[N]) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue[N]) Push(x interface{}) { *q = append(*q, x.(*queueItem[N])) }

func (q *queue[N]) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
