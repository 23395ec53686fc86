package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/raster"
	"arbor-tracer/internal/report"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// analysed runs the pipeline on a Y with its junction at (20,20), rooted
// at the tip of its vertical arm.
func analysed(t *testing.T) (*pipeline.Result, skeleton.RootInfo) {
	t.Helper()
	j := geometry.Pt(20, 20)
	skel := raster.NewBitmap(50, 50)
	mask := raster.NewBitmap(50, 50)
	skel.Set(j, true)
	for _, arm := range []struct {
		d geometry.Point
		n int
	}{{geometry.Pt(0, -1), 15}, {geometry.Pt(-1, 1), 12}, {geometry.Pt(1, 1), 12}} {
		p := j
		for i := 0; i < arm.n; i++ {
			p = p.Add(arm.d)
			skel.Set(p, true)
		}
	}
	for _, p := range skeleton.FromRaster(skel).Points() {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				mask.Set(p.Add(geometry.Pt(dx, dy)), true)
			}
		}
	}

	root := skeleton.RootInfo{Root: geometry.Pt(20, 5)}
	res, err := pipeline.Run(context.Background(), skel, mask, root, pipeline.DefaultOptions())
	require.NoError(t, err)
	return res, root
}

func mkdir(dir string) error { return os.MkdirAll(dir, 0o755) }

func TestNew(t *testing.T) {
	res, root := analysed(t)
	f := report.New(res, root)

	assert.Equal(t, report.Version, f.Version)
	assert.Equal(t, len(res.Branches), f.Summary.Branches)
	assert.Len(t, f.Branches, len(res.Branches))
	assert.Equal(t, res.MainPath.Length, f.Summary.MainPathLength)
	assert.Greater(t, f.Summary.FieldArea, 0.0)

	var total float64
	onPath := 0
	for _, b := range f.Branches {
		total += b.Length
		assert.True(t, b.InGraph)
		if b.MainPath {
			onPath++
		}
	}
	assert.InDelta(t, total, f.Summary.TotalLength, 1e-9)
	assert.Equal(t, len(f.MainPath.Branches), onPath)
	assert.Equal(t, root.Root, f.MainPath.Nodes[0])
}

func TestSaveLoad(t *testing.T) {
	res, root := analysed(t)
	f := report.New(res, root)

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "cell.arbor.json")
	f.SetImage(path, filepath.Join(dir, "images", "cell.tif"))
	assert.Equal(t, filepath.Join("..", "images", "cell.tif"), f.ImagePath)

	require.NoError(t, mkdir(filepath.Dir(path)))
	require.NoError(t, f.Save(path))

	back, err := report.Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.Summary, back.Summary)
	assert.Equal(t, f.Branches, back.Branches)
	assert.Equal(t, f.Root, back.Root)
	assert.Equal(t, filepath.Join(dir, "images", "cell.tif"), back.Image(path))
}

func TestWriteCSV(t *testing.T) {
	res, root := analysed(t)
	f := report.New(res, root)

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(f.Branches)+1)
	assert.Equal(t, "index", rows[0][0])
	assert.Equal(t, "length", rows[0][9])
	for _, row := range rows[1:] {
		assert.Len(t, row, 11)
	}
}
