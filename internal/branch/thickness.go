package branch

import (
	"fmt"
	"math"

	"arbor-tracer/internal/fit"
	"arbor-tracer/internal/logging"
	"arbor-tracer/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// Mask is the thresholded (not thinned) binary image the branch was
// skeletonized from. Foreground must report false outside the image.
type Mask interface {
	Size() (width, height int)
	Foreground(p geometry.Point) bool
}

// ThicknessSamples holds the local cross-section counts behind Thickness.
type ThicknessSamples struct {
	Raw  []float64 // one count per sampled curve point
	Kept []float64 // Raw minus the outliers

	// Degenerate counts curve points left out of Raw because the curve
	// tangent vanishes there and has no normal.
	Degenerate int
}

// MeasureThickness sets Thickness to the mean cross-section width of the
// branch. The fitted curve is cut into samples points; the first one sits on
// the originating junction and is skipped, as is the last one when the
// branch ends on another junction. At each remaining point the foreground
// run along the curve normal is counted in both directions. Counts at or
// beyond one standard deviation from the mean are discarded before
// averaging.
func (b *Branch) MeasureThickness(mask Mask, samples int) (ThicknessSamples, error) {
	if !b.Fitted() {
		return ThicknessSamples{}, b.fail(StageThickness, ErrNotFitted)
	}
	if samples < 3 {
		return ThicknessSamples{}, b.fail(StageThickness, fmt.Errorf("need at least 3 samples, got %d", samples))
	}

	t := fit.Linspace(0, 1, samples)
	xs, ys := b.CurveX.EvalAll(t), b.CurveY.EvalAll(t)
	dx, dy := fit.Gradient(xs), fit.Gradient(ys)

	last := samples - 1
	if b.Terminal {
		last = samples
	}

	var (
		raw        []float64
		degenerate int
	)
	for i := 1; i < last; i++ {
		tangent := geometry.Point2D{X: dx[i], Y: dy[i]}
		norm := tangent.Norm()
		if norm == 0 {
			degenerate++
			continue
		}
		normal := tangent.Scale(1 / norm).Perp()
		p := geometry.Point2D{X: xs[i], Y: ys[i]}
		count := run(mask, p, normal) + run(mask, p, normal.Scale(-1))
		raw = append(raw, float64(count))
	}

	if degenerate > 0 {
		logging.Logger().Debug("thickness samples without a normal",
			"start", b.Start(), "end", b.End(), "skipped", degenerate, "samples", samples)
	}

	kept := filterOutliers(raw)
	b.Thickness = 0
	if len(kept) > 0 {
		b.Thickness = round2(stat.Mean(kept, nil))
	}
	return ThicknessSamples{Raw: raw, Kept: kept, Degenerate: degenerate}, nil
}

// run counts consecutive foreground pixels met when stepping from p along
// dir one unit at a time, p itself included. The walk stops at the first
// background pixel or at the image border.
func run(mask Mask, p, dir geometry.Point2D) int {
	w, h := mask.Size()
	count := 0
	for k := 0; ; k++ {
		cell := p.Add(dir.Scale(float64(k))).Round()
		if cell.X < 0 || cell.Y < 0 || cell.X >= w || cell.Y >= h {
			return count
		}
		if !mask.Foreground(cell) {
			return count
		}
		count++
	}
}

// filterOutliers keeps the samples closer than one population standard
// deviation to the mean (rounded to two decimals). When every sample is equal
// they are all kept.
func filterOutliers(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	if std == 0 {
		return append([]float64(nil), samples...)
	}
	mean = round2(mean)

	kept := make([]float64, 0, len(samples))
	for _, s := range samples {
		if math.Abs(s-mean) < std {
			kept = append(kept, s)
		}
	}
	return kept
}
