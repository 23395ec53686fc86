package graph_test

import (
	"math/rand"
	"testing"

	"arbor-tracer/internal/branch"
	"arbor-tracer/internal/graph"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// straight returns a measured branch along the pixel line from a to b.
func straight(a, b geometry.Point, terminal bool, length float64) *branch.Branch {
	br := branch.New(geometry.Line(a, b), terminal, false)
	br.Length = length
	br.Thickness = 2
	return br
}

func TestBuild_Y(t *testing.T) {
	j := geometry.Pt(20, 20)
	tips := []geometry.Point{{X: 8, Y: 32}, {X: 20, Y: 5}, {X: 32, Y: 32}}
	branches := []*branch.Branch{
		straight(j, tips[0], true, 17),
		straight(j, tips[1], true, 15),
		straight(j, tips[2], true, 17),
	}

	g, rejected := graph.Build(branches, []geometry.Point{j}, skeleton.RootInfo{Root: j})
	assert.Empty(t, rejected)
	assert.Len(t, g.Nodes(), 4)
	require.Len(t, g.Edges(), 3)
	assert.Equal(t, 3, g.Degree(j))
	for i, e := range g.Edges() {
		assert.Equal(t, i, e.Branch)
		assert.Equal(t, j, e.U)
		assert.Equal(t, tips[i], e.V)
	}

	p, err := graph.MainPath(g, j)
	require.NoError(t, err)
	// Two arms tie at 17; the first in node order wins.
	assert.Equal(t, []geometry.Point{j, tips[0]}, p.Nodes)
	assert.Equal(t, 17.0, p.Length)
	assert.True(t, p.HasBranch(0))
	assert.False(t, p.HasBranch(1))
}

func TestBuild_CollapsesFenceOntoRoot(t *testing.T) {
	root := skeleton.RootInfo{
		Root:     geometry.Pt(50, 50),
		Adjacent: []geometry.Point{{X: 50, Y: 40}, {X: 60, Y: 50}},
	}
	j := geometry.Pt(50, 20)
	branches := []*branch.Branch{
		straight(root.Adjacent[0], j, false, 20),
		straight(j, geometry.Pt(40, 5), true, 18),
		straight(j, geometry.Pt(60, 5), true, 18),
		straight(root.Adjacent[1], geometry.Pt(90, 50), true, 30),
	}
	branches[0].RootLinked = true
	branches[3].RootLinked = true

	junctions := []geometry.Point{root.Adjacent[0], root.Adjacent[1], j}
	g, rejected := graph.Build(branches, junctions, root)
	assert.Empty(t, rejected)

	for _, a := range root.Adjacent {
		assert.False(t, g.HasNode(a), "fence pixel %v must not be a node", a)
	}
	assert.True(t, g.HasNode(root.Root))
	assert.Equal(t, 2, g.Degree(root.Root))
	assert.Equal(t, root.Root, g.Edges()[0].U)
	assert.Equal(t, root.Root, g.Edges()[3].U)

	p, err := graph.MainPath(g, root.Root)
	require.NoError(t, err)
	assert.Equal(t, 38.0, p.Length)
	assert.Equal(t, []geometry.Point{root.Root, j, {X: 40, Y: 5}}, p.Nodes)
	require.Len(t, p.Edges, 2)
	assert.Equal(t, 0, p.Edges[0].Branch)
	assert.Equal(t, 1, p.Edges[1].Branch)
}

func TestBuild_RejectsSelfLoopAndShort(t *testing.T) {
	root := skeleton.RootInfo{Root: geometry.Pt(0, 0)}
	j := geometry.Pt(10, 10)

	loop := branch.New([]geometry.Point{j, {X: 11, Y: 10}, {X: 12, Y: 11}, {X: 12, Y: 12}, {X: 11, Y: 12}, {X: 10, Y: 11}, j}, false, false)
	short := branch.New([]geometry.Point{j, {X: 11, Y: 11}, {X: 12, Y: 12}}, true, false)
	link := straight(j, root.Root, false, 14)

	g, rejected := graph.Build([]*branch.Branch{loop, short, link}, []geometry.Point{j}, root)
	require.Len(t, rejected, 2)
	assert.Equal(t, graph.Rejection{Branch: 0, Reason: "self-loop"}, rejected[0])
	assert.Equal(t, 1, rejected[1].Branch)
	assert.Len(t, g.Edges(), 1)
}

func TestBuild_KeepsParallelEdges(t *testing.T) {
	a, b := geometry.Pt(0, 0), geometry.Pt(20, 0)
	upper := branch.New([]geometry.Point{a, {X: 4, Y: -3}, {X: 8, Y: -4}, {X: 12, Y: -4}, {X: 16, Y: -3}, b}, false, false)
	lower := branch.New([]geometry.Point{a, {X: 4, Y: 3}, {X: 8, Y: 4}, {X: 12, Y: 4}, {X: 16, Y: 3}, b}, false, false)
	upper.Length, lower.Length = 23, 21

	g, rejected := graph.Build([]*branch.Branch{upper, lower}, []geometry.Point{a, b}, skeleton.RootInfo{Root: a})
	assert.Empty(t, rejected)
	assert.Len(t, g.Edges(), 2)

	p, err := graph.MainPath(g, a)
	require.NoError(t, err)
	assert.Equal(t, 21.0, p.Length)
	assert.Equal(t, 1, p.Edges[0].Branch)
}

func TestCollapseFence(t *testing.T) {
	root := skeleton.RootInfo{Root: geometry.Pt(5, 5), Adjacent: []geometry.Point{{X: 5, Y: 1}}}
	got := graph.CollapseFence([]geometry.Point{{X: 5, Y: 1}, {X: 9, Y: 9}}, root)
	assert.Equal(t, []geometry.Point{{X: 9, Y: 9}, {X: 5, Y: 5}}, got)

	got = graph.CollapseFence([]geometry.Point{{X: 5, Y: 5}, {X: 9, Y: 9}}, root)
	assert.Equal(t, []geometry.Point{{X: 5, Y: 5}, {X: 9, Y: 9}}, got)
}

func TestMainPath_SimplePath(t *testing.T) {
	g := graph.New()
	pts := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 30, Y: 0}}
	for i := 1; i < len(pts); i++ {
		_, err := g.AddEdge(pts[i-1], pts[i], 1, 10, i-1)
		require.NoError(t, err)
	}

	p, err := graph.MainPath(g, pts[0])
	require.NoError(t, err)
	assert.Equal(t, pts, p.Nodes)
	assert.Equal(t, 30.0, p.Length)
	assert.Len(t, p.Edges, len(g.Edges()))
}

func TestMainPath_Errors(t *testing.T) {
	g := graph.New()
	_, err := g.AddEdge(geometry.Pt(0, 0), geometry.Pt(1, 0), 1, 5, 0)
	require.NoError(t, err)
	_, err = g.AddEdge(geometry.Pt(9, 9), geometry.Pt(9, 12), 1, 5, 1)
	require.NoError(t, err)

	_, err = graph.MainPath(g, geometry.Pt(0, 0))
	assert.ErrorIs(t, err, graph.ErrDisconnected)

	_, err = graph.MainPath(g, geometry.Pt(3, 3))
	assert.ErrorIs(t, err, graph.ErrNodeNotFound)

	_, err = g.AddEdge(geometry.Pt(0, 0), geometry.Pt(0, 0), 1, 5, 2)
	assert.ErrorIs(t, err, graph.ErrSelfLoop)

	_, err = g.AddEdge(geometry.Pt(0, 0), geometry.Pt(2, 0), 1, -1, 3)
	assert.ErrorIs(t, err, graph.ErrNegativeWeight)
}

// Distances agree with gonum's Dijkstra on random connected graphs.
func TestShortestPaths_MatchesGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		n := 5 + rng.Intn(20)
		g := graph.New()
		ref := simple.NewWeightedUndirectedGraph(0, 0)
		pt := func(i int) geometry.Point { return geometry.Pt(i, 0) }

		connect := func(u, v int, w float64) {
			if u == v || ref.HasEdgeBetween(int64(u), int64(v)) {
				return
			}
			_, err := g.AddEdge(pt(u), pt(v), 1, w, len(g.Edges()))
			require.NoError(t, err)
			ref.SetWeightedEdge(ref.NewWeightedEdge(simple.Node(u), simple.Node(v), w))
		}
		for i := 1; i < n; i++ {
			connect(rng.Intn(i), i, float64(1+rng.Intn(50)))
		}
		for k := 0; k < n; k++ {
			connect(rng.Intn(n), rng.Intn(n), float64(1+rng.Intn(50)))
		}

		tree, err := graph.ShortestPaths[geometry.Point](g, pt(0))
		require.NoError(t, err)
		want := path.DijkstraFrom(simple.Node(0), ref)

		nodes := ref.Nodes()
		for nodes.Next() {
			id := nodes.Node().ID()
			got, ok := tree.Dist(pt(int(id)))
			require.True(t, ok)
			assert.Equal(t, want.WeightTo(id), got, "trial %d node %d", trial, id)

			route, _, ok := tree.Path(pt(int(id)))
			require.True(t, ok)
			assert.Equal(t, pt(0), route[0])
			assert.Equal(t, pt(int(id)), route[len(route)-1])
		}
	}
}
