// Package pipeline runs the whole analysis on one skeleton: junction
// detection, branch tracing, per-branch measurement, graph assembly and main
// path extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"time"

	"arbor-tracer/internal/branch"
	"arbor-tracer/internal/graph"
	"arbor-tracer/internal/logging"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/geometry"

	"golang.org/x/sync/errgroup"
)

// ErrInput reports an input the pipeline cannot work on.
var ErrInput = errors.New("pipeline: invalid input")

// Policy decides what a branch measurement failure does to the run.
type Policy int

const (
	// FailFast aborts the run on the first failing branch.
	FailFast Policy = iota
	// SkipBranch drops the failing branch and records its error.
	SkipBranch
)

func (p Policy) String() string {
	if p == SkipBranch {
		return "skip"
	}
	return "failfast"
}

// ParsePolicy accepts "failfast" and "skip". The empty string is FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "failfast", "fail-fast":
		return FailFast, nil
	case "skip":
		return SkipBranch, nil
	}
	return FailFast, fmt.Errorf("unknown branch failure policy %q", s)
}

// Options tunes a run. The zero value is not usable; start from
// DefaultOptions.
type Options struct {
	Simplify bool // drop staircase corners before detection

	Degree    int
	MinDegree int

	ThicknessSamples int
	LengthSamples    int

	// MaxRootDistance bounds how far a root given without a soma boundary
	// may sit from the graph node it is moved onto.
	MaxRootDistance int

	Workers int
	Policy  Policy
}

// DefaultOptions returns the standard measurement settings.
func DefaultOptions() Options {
	return Options{
		Degree:           branch.DefaultDegree,
		MinDegree:        1,
		ThicknessSamples: branch.DefaultThicknessSamples,
		LengthSamples:    branch.DefaultLengthSamples,
		MaxRootDistance:  50,
		Workers:          runtime.NumCPU(),
		Policy:           FailFast,
	}
}

// Result holds everything a run produced. Thickness is parallel to Branches.
// Root is the root the graph was built from: the one passed in, or for a
// root without a soma boundary, the junction or branch end nearest to it.
type Result struct {
	Root      skeleton.RootInfo
	Grid      *skeleton.GridIndex
	Junctions *skeleton.JunctionSet
	Branches  []*branch.Branch
	Thickness []branch.ThicknessSamples

	Dropped int     // traces under the noise floor
	Skipped []error // measurement failures under SkipBranch

	Graph    *graph.Graph
	Rejected []graph.Rejection
	MainPath graph.Path
}

// Run analyses the skeleton raster. mask is the thresholded image the
// skeleton was thinned from and must have the same size.
func Run(ctx context.Context, skel skeleton.Raster, mask branch.Mask, root skeleton.RootInfo, opts Options) (*Result, error) {
	sw, sh := skel.Size()
	if mw, mh := mask.Size(); mw != sw || mh != sh {
		return nil, fmt.Errorf("%w: mask is %dx%d, skeleton is %dx%d", ErrInput, mw, mh, sw, sh)
	}
	return Analyze(ctx, skeleton.FromRaster(skel), mask, root, opts)
}

// Analyze runs the analysis on an already indexed skeleton, for callers that
// edit the grid first (cutting out the soma for instance). Once the input is
// validated Analyze always returns a Result, filled as far as the run got,
// next to any error.
func Analyze(ctx context.Context, g *skeleton.GridIndex, mask branch.Mask, root skeleton.RootInfo, opts Options) (*Result, error) {
	start := time.Now()
	log := logging.Logger()

	if err := validate(g, mask, root, opts); err != nil {
		return nil, err
	}
	if opts.Simplify {
		g = g.Simplify()
	}

	res := &Result{Root: root, Grid: g}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Junctions = skeleton.DetectJunctions(g, root.Adjacent)
	tr := skeleton.Trace(g, res.Junctions, root)
	res.Dropped = tr.Dropped

	kept, samples, skipped, err := measure(ctx, tr.Branches, mask, opts)
	res.Skipped = skipped
	if err != nil {
		res.Branches = tr.Branches
		return res, err
	}
	res.Branches, res.Thickness = kept, samples

	if res.Root, err = placeRoot(root, res.Junctions.Points(), res.Branches, opts.MaxRootDistance); err != nil {
		return res, err
	}
	if res.Root.Root != root.Root {
		log.Debug("root moved onto graph", "from", root.Root, "to", res.Root.Root)
	}

	res.Graph, res.Rejected = graph.Build(res.Branches, res.Junctions.Points(), res.Root)
	res.MainPath, err = graph.MainPath(res.Graph, res.Root.Root)
	if err != nil {
		return res, fmt.Errorf("main path: %w", err)
	}

	log.Info("arbor analysed",
		"pixels", g.Len(),
		"junctions", res.Junctions.Len(),
		"branches", len(res.Branches),
		"skipped", len(res.Skipped),
		"main_path", res.MainPath.Length,
		"elapsed", time.Since(start))
	return res, nil
}

func validate(g *skeleton.GridIndex, mask branch.Mask, root skeleton.RootInfo, opts Options) error {
	if g.Len() == 0 {
		return fmt.Errorf("%w: skeleton has no foreground pixel", ErrInput)
	}
	w, h := mask.Size()
	r := root.Root
	if r.X < 0 || r.Y < 0 || r.X >= w || r.Y >= h {
		return fmt.Errorf("%w: root %v outside %dx%d image", ErrInput, r, w, h)
	}
	for _, p := range root.Adjacent {
		if !g.Contains(p) {
			return fmt.Errorf("%w: root boundary point %v is not on the skeleton", ErrInput, p)
		}
	}
	if len(root.Adjacent) == 0 {
		if _, ok := g.Nearest(r, opts.MaxRootDistance); !ok {
			return fmt.Errorf("%w: no skeleton pixel within %d of root %v", ErrInput, opts.MaxRootDistance, r)
		}
	}
	return nil
}

// placeRoot moves a root given without a soma boundary onto the nearest
// junction or branch end, so that the root is a node the branches reach.
// The first candidate wins ties, junctions before branch ends.
func placeRoot(root skeleton.RootInfo, junctions []geometry.Point, branches []*branch.Branch, maxDist int) (skeleton.RootInfo, error) {
	if len(root.Adjacent) > 0 {
		return root, nil
	}
	candidates := make([]geometry.Point, 0, len(junctions)+2*len(branches))
	candidates = append(candidates, junctions...)
	for _, b := range branches {
		candidates = append(candidates, b.Start(), b.End())
	}

	best, bestDist := root.Root, math.Inf(1)
	for _, c := range candidates {
		if d := root.Root.Distance(c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist > float64(maxDist) {
		return root, fmt.Errorf("%w: no junction or branch end within %d of root %v", ErrInput, maxDist, root.Root)
	}
	return skeleton.RootInfo{Root: best}, nil
}

// measure fits and measures every branch on a bounded worker pool. Each
// goroutine touches only its own branch and its own result slots.
func measure(ctx context.Context, branches []*branch.Branch, mask branch.Mask, opts Options) ([]*branch.Branch, []branch.ThicknessSamples, []error, error) {
	samples := make([]branch.ThicknessSamples, len(branches))
	errs := make([]error, len(branches))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, opts.Workers))
	for i, b := range branches {
		i, b := i, b
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := measureOne(b, mask, opts)
			if err == nil {
				samples[i] = s
				return nil
			}
			if opts.Policy == FailFast {
				return err
			}
			errs[i] = err
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, nil, err
	}

	var (
		kept    []*branch.Branch
		keptS   []branch.ThicknessSamples
		skipped []error
	)
	for i, b := range branches {
		if errs[i] != nil {
			logging.Logger().Warn("branch skipped", "err", errs[i])
			skipped = append(skipped, errs[i])
			continue
		}
		kept = append(kept, b)
		keptS = append(keptS, samples[i])
	}
	return kept, keptS, skipped, nil
}

func measureOne(b *branch.Branch, mask branch.Mask, opts Options) (branch.ThicknessSamples, error) {
	if err := b.Fit(opts.Degree, opts.MinDegree); err != nil {
		return branch.ThicknessSamples{}, err
	}
	s, err := b.MeasureThickness(mask, opts.ThicknessSamples)
	if err != nil {
		return branch.ThicknessSamples{}, err
	}
	if err := b.MeasureLength(opts.LengthSamples); err != nil {
		return branch.ThicknessSamples{}, err
	}
	return s, nil
}
