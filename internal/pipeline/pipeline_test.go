package pipeline_test

import (
	"context"
	"testing"

	"arbor-tracer/internal/branch"
	"arbor-tracer/internal/graph"
	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/raster"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/internal/soma"
	"arbor-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yArbor draws a Y skeleton with its junction at (20,20) and a mask that
// widens every skeleton pixel to a 3×3 block.
func yArbor() (skel, mask *raster.Bitmap, j geometry.Point) {
	j = geometry.Pt(20, 20)
	skel = raster.NewBitmap(50, 50)
	drawY(skel, j)
	return skel, dilate(skel), j
}

// drawY draws an arm of 15 pixels up from j and two diagonal arms of 12
// pixels down.
func drawY(skel *raster.Bitmap, j geometry.Point) {
	skel.Set(j, true)
	for _, d := range []geometry.Point{{X: 0, Y: -1}, {X: -1, Y: 1}, {X: 1, Y: 1}} {
		n := 12
		if d.X == 0 {
			n = 15
		}
		p := j
		for i := 0; i < n; i++ {
			p = p.Add(d)
			skel.Set(p, true)
		}
	}
}

func dilate(skel *raster.Bitmap) *raster.Bitmap {
	mask := raster.NewBitmap(skel.W, skel.H)
	for y := 0; y < skel.H; y++ {
		for x := 0; x < skel.W; x++ {
			if !skel.Foreground(geometry.Pt(x, y)) {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					mask.Set(geometry.Pt(x+dx, y+dy), true)
				}
			}
		}
	}
	return mask
}

func TestRun_Y(t *testing.T) {
	skel, mask, j := yArbor()
	opts := pipeline.DefaultOptions()
	opts.Workers = 2

	res, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: j}, opts)
	require.NoError(t, err)

	assert.Equal(t, []geometry.Point{j}, res.Junctions.Points())
	require.Len(t, res.Branches, 3)
	require.Len(t, res.Thickness, 3)
	assert.Empty(t, res.Skipped)
	for i, b := range res.Branches {
		assert.True(t, b.Fitted())
		assert.Greater(t, b.Thickness, 0.0)
		assert.GreaterOrEqual(t, b.Length, b.Start().Distance(b.End()))
		assert.Subset(t, res.Thickness[i].Raw, res.Thickness[i].Kept)
	}

	assert.Len(t, res.Graph.Nodes(), 4)
	assert.Len(t, res.Graph.Edges(), 3)
	require.Len(t, res.MainPath.Edges, 1)
	assert.Equal(t, j, res.MainPath.Nodes[0])
	// The diagonal arms (12√2) outreach the vertical one (15).
	assert.NotEqual(t, geometry.Pt(20, 5), res.MainPath.Nodes[1])
}

func TestAnalyze_SomaCutOut(t *testing.T) {
	skel, mask, j := yArbor()
	root, g, err := soma.FromDisk(skeleton.FromRaster(skel), j, 3)
	require.NoError(t, err)

	res, err := pipeline.Analyze(context.Background(), g, mask, root, pipeline.DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Branches, 3)
	for _, b := range res.Branches {
		assert.True(t, b.RootLinked)
		assert.Equal(t, j, b.RootLink[len(b.RootLink)-1])
	}
	assert.Len(t, res.Graph.Nodes(), 4)
	assert.Equal(t, 3, res.Graph.Degree(j))
	for _, a := range root.Adjacent {
		assert.False(t, res.Graph.HasNode(a))
	}
}

func TestRun_Simplify(t *testing.T) {
	skel, mask, j := yArbor()
	opts := pipeline.DefaultOptions()
	opts.Simplify = true

	res, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: j}, opts)
	require.NoError(t, err)
	assert.Len(t, res.Branches, 3)
}

func TestRun_InvalidInput(t *testing.T) {
	skel, mask, j := yArbor()
	ctx := context.Background()
	opts := pipeline.DefaultOptions()

	tests := []struct {
		name string
		skel *raster.Bitmap
		mask *raster.Bitmap
		root skeleton.RootInfo
	}{
		{"empty skeleton", raster.NewBitmap(50, 50), mask, skeleton.RootInfo{Root: j}},
		{"mask size", skel, raster.NewBitmap(40, 50), skeleton.RootInfo{Root: j}},
		{"root outside image", skel, mask, skeleton.RootInfo{Root: geometry.Pt(-3, 4)}},
		{"fence off skeleton", skel, mask, skeleton.RootInfo{Root: j, Adjacent: []geometry.Point{{X: 1, Y: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := pipeline.Run(ctx, tt.skel, tt.mask, tt.root, opts)
			assert.ErrorIs(t, err, pipeline.ErrInput)
			assert.Nil(t, res)
		})
	}

	t.Run("root far from skeleton", func(t *testing.T) {
		opts := opts
		opts.MaxRootDistance = 5
		_, err := pipeline.Run(ctx, skel, mask, skeleton.RootInfo{Root: geometry.Pt(45, 5)}, opts)
		assert.ErrorIs(t, err, pipeline.ErrInput)
	})
}

func TestRun_RootMovedOntoGraph(t *testing.T) {
	skel, mask, j := yArbor()
	tip := geometry.Pt(20, 5)

	tests := []struct {
		name  string
		given geometry.Point
		want  geometry.Point
	}{
		{"next to the junction", geometry.Pt(21, 20), j},
		{"on the upper arm", geometry.Pt(20, 10), tip},
		{"off the skeleton", geometry.Pt(22, 12), tip},
		{"on the junction", j, j},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: tt.given}, pipeline.DefaultOptions())
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Root.Root)
			assert.Empty(t, res.Root.Adjacent)
			assert.Len(t, res.Graph.Nodes(), 4)
			assert.Len(t, res.Graph.Edges(), 3)
			require.NotEmpty(t, res.MainPath.Edges)
			assert.Equal(t, tt.want, res.MainPath.Nodes[0])
		})
	}
}

func TestRun_RootFarFromEveryNode(t *testing.T) {
	skel, mask, _ := yArbor()
	opts := pipeline.DefaultOptions()
	opts.MaxRootDistance = 5

	// (20,12) lies on the upper arm, 7 from its tip and 8 from the junction.
	_, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: geometry.Pt(20, 12)}, opts)
	assert.ErrorIs(t, err, pipeline.ErrInput)
	assert.NotErrorIs(t, err, graph.ErrDisconnected)
}

func TestRun_DisconnectedArbor(t *testing.T) {
	j := geometry.Pt(20, 20)
	skel := raster.NewBitmap(100, 50)
	drawY(skel, j)
	drawY(skel, geometry.Pt(70, 20))

	res, err := pipeline.Run(context.Background(), skel, dilate(skel), skeleton.RootInfo{Root: j}, pipeline.DefaultOptions())
	require.ErrorIs(t, err, graph.ErrDisconnected)
	assert.NotContains(t, err.Error(), "graph: graph:")
	require.NotNil(t, res)
	assert.Len(t, res.Graph.Edges(), 6)
	assert.Len(t, res.Branches, 6)
}

func TestRun_FailFast(t *testing.T) {
	skel, mask, j := yArbor()
	opts := pipeline.DefaultOptions()
	opts.ThicknessSamples = 2

	res, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: j}, opts)
	var be *branch.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, branch.StageThickness, be.Stage)
	require.NotNil(t, res)
	assert.Nil(t, res.Graph)
}

func TestRun_SkipBranch(t *testing.T) {
	skel, mask, j := yArbor()
	opts := pipeline.DefaultOptions()
	opts.ThicknessSamples = 2
	opts.Policy = pipeline.SkipBranch

	res, err := pipeline.Run(context.Background(), skel, mask, skeleton.RootInfo{Root: j}, opts)
	require.NoError(t, err)
	assert.Empty(t, res.Branches)
	require.Len(t, res.Skipped, 3)
	for _, e := range res.Skipped {
		var be *branch.Error
		require.ErrorAs(t, e, &be)
		assert.Equal(t, j, be.Start)
	}
	assert.Equal(t, []geometry.Point{j}, res.MainPath.Nodes)
	assert.Zero(t, res.MainPath.Length)
}

func TestRun_Cancelled(t *testing.T) {
	skel, mask, j := yArbor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.Run(ctx, skel, mask, skeleton.RootInfo{Root: j}, pipeline.DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePolicy(t *testing.T) {
	p, err := pipeline.ParsePolicy("skip")
	require.NoError(t, err)
	assert.Equal(t, pipeline.SkipBranch, p)
	assert.Equal(t, "skip", p.String())

	p, err = pipeline.ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.FailFast, p)

	_, err = pipeline.ParsePolicy("retry")
	assert.Error(t, err)
}
