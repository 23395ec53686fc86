// Package report saves an analysis as JSON and exports its branch table as
// CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Version of the report file layout.
const Version = 1

// File is a saved analysis (.arbor.json).
type File struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`

	// Image path relative to the report file.
	ImagePath       string  `json:"image,omitempty"`
	PixelsPerMicron float64 `json:"pixels_per_micron,omitempty"`

	Root     skeleton.RootInfo `json:"root"`
	Summary  Summary           `json:"summary"`
	Branches []Branch          `json:"branches"`
	MainPath MainPath          `json:"main_path"`
	Skipped  []string          `json:"skipped,omitempty"`
}

// Summary holds arbor-wide figures.
type Summary struct {
	Pixels         int     `json:"pixels"`
	Junctions      int     `json:"junctions"`
	Branches       int     `json:"branches"`
	Dropped        int     `json:"dropped"`
	TotalLength    float64 `json:"total_length"`
	MeanThickness  float64 `json:"mean_thickness"`
	MainPathLength float64 `json:"main_path_length"`
	// FieldArea is the convex hull area of the skeleton, in square pixels.
	FieldArea float64 `json:"field_area"`
}

// Branch is one row of the branch table.
type Branch struct {
	Index      int            `json:"index"`
	Start      geometry.Point `json:"start"`
	End        geometry.Point `json:"end"`
	U          geometry.Point `json:"u"` // graph end points, after soma collapse
	V          geometry.Point `json:"v"`
	Terminal   bool           `json:"terminal"`
	RootLinked bool           `json:"root_linked"`
	Degree     int            `json:"degree"`
	Thickness  float64        `json:"thickness"`
	Length     float64        `json:"length"`
	MainPath   bool           `json:"main_path"`
	InGraph    bool           `json:"in_graph"`
	Samples    []float64      `json:"thickness_samples,omitempty"`
}

// MainPath lists the branch indices from the root outwards.
type MainPath struct {
	Nodes    []geometry.Point `json:"nodes"`
	Branches []int            `json:"branches"`
	Length   float64          `json:"length"`
}

// New summarises res. The result must come from a run that got past
// measurement; the graph may be missing when main path extraction failed.
func New(res *pipeline.Result, root skeleton.RootInfo) *File {
	f := &File{
		Version: Version,
		Created: time.Now(),
		Root:    root,
	}

	for _, e := range res.MainPath.Edges {
		f.MainPath.Branches = append(f.MainPath.Branches, e.Branch)
	}
	f.MainPath.Nodes = res.MainPath.Nodes
	f.MainPath.Length = res.MainPath.Length

	type ends struct{ u, v geometry.Point }
	inGraph := make(map[int]ends)
	if res.Graph != nil {
		for _, e := range res.Graph.Edges() {
			inGraph[e.Branch] = ends{e.U, e.V}
		}
	}

	lengths := make([]float64, len(res.Branches))
	thickness := make([]float64, len(res.Branches))
	for i, b := range res.Branches {
		row := Branch{
			Index:      i,
			Start:      b.Start(),
			End:        b.End(),
			Terminal:   b.Terminal,
			RootLinked: b.RootLinked,
			Degree:     b.Degree,
			Thickness:  b.Thickness,
			Length:     b.Length,
			MainPath:   res.MainPath.HasBranch(i),
		}
		if e, ok := inGraph[i]; ok {
			row.InGraph, row.U, row.V = true, e.u, e.v
		}
		if i < len(res.Thickness) {
			row.Samples = res.Thickness[i].Kept
		}
		f.Branches = append(f.Branches, row)
		lengths[i], thickness[i] = b.Length, b.Thickness
	}

	for _, err := range res.Skipped {
		f.Skipped = append(f.Skipped, err.Error())
	}

	f.Summary = Summary{
		Branches:       len(res.Branches),
		Dropped:        res.Dropped,
		TotalLength:    floats.Sum(lengths),
		MainPathLength: res.MainPath.Length,
	}
	if len(thickness) > 0 {
		f.Summary.MeanThickness = stat.Mean(thickness, nil)
	}
	if res.Junctions != nil {
		f.Summary.Junctions = res.Junctions.Len()
	}
	if res.Grid != nil {
		f.Summary.Pixels = res.Grid.Len()
		f.Summary.FieldArea = geometry.PolygonArea(geometry.ConvexHull(res.Grid.Points()))
	}
	return f
}

// SetImage records imagePath relative to the report location.
func (f *File) SetImage(reportPath, imagePath string) {
	rel, err := filepath.Rel(filepath.Dir(reportPath), imagePath)
	if err != nil {
		f.ImagePath = imagePath
	} else {
		f.ImagePath = rel
	}
}

// Image returns the absolute path of the analysed image.
func (f *File) Image(reportPath string) string {
	if f.ImagePath == "" {
		return ""
	}
	if filepath.IsAbs(f.ImagePath) {
		return f.ImagePath
	}
	return filepath.Join(filepath.Dir(reportPath), f.ImagePath)
}

// Load reads a report file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	if f.Version > Version {
		return nil, fmt.Errorf("report %s has version %d, newest supported is %d", path, f.Version, Version)
	}
	return &f, nil
}

// Save writes the report as indented JSON.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var csvHeader = []string{
	"index", "start_x", "start_y", "end_x", "end_y",
	"terminal", "root_linked", "degree", "thickness", "length", "main_path",
}

// WriteCSV writes the branch table, one row per branch.
func (f *File) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range f.Branches {
		row := []string{
			strconv.Itoa(b.Index),
			strconv.Itoa(b.Start.X), strconv.Itoa(b.Start.Y),
			strconv.Itoa(b.End.X), strconv.Itoa(b.End.Y),
			strconv.FormatBool(b.Terminal),
			strconv.FormatBool(b.RootLinked),
			strconv.Itoa(b.Degree),
			strconv.FormatFloat(b.Thickness, 'f', 2, 64),
			strconv.FormatFloat(b.Length, 'f', 2, 64),
			strconv.FormatBool(b.MainPath),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
