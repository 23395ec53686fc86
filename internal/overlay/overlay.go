// Package overlay draws an analysis on top of the micrograph with OpenCV.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"arbor-tracer/internal/config"
	"arbor-tracer/internal/pipeline"
	"arbor-tracer/internal/skeleton"
	"arbor-tracer/pkg/colorutil"
	"arbor-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

// Options selects the layers to draw.
type Options struct {
	Display      config.Display
	CurveSamples int
}

// Render returns a BGR image of bg with the requested layers drawn over it.
// The caller owns the returned Mat.
func Render(bg *image.Gray, res *pipeline.Result, root skeleton.RootInfo, opts Options) (gocv.Mat, error) {
	gray, err := gocv.ImageGrayToMatGray(bg)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert background: %w", err)
	}
	defer gray.Close()

	img := gocv.NewMat()
	gocv.CvtColor(gray, &img, gocv.ColorGrayToBGR)

	d := opts.Display
	if d.DrawSkeleton && res.Grid != nil {
		for _, p := range res.Grid.Points() {
			setPixel(&img, p, colorutil.White)
		}
	}

	if d.DrawCurves {
		palette := colorutil.Palette(len(res.Branches))
		for i, b := range res.Branches {
			polyline(&img, b.Curve(opts.CurveSamples), palette[i], 1)
		}
	}

	if d.DrawRootLinks {
		for _, b := range res.Branches {
			if len(b.RootLink) > 1 {
				gocv.Line(&img, pt(b.RootLink[0]), pt(b.RootLink[len(b.RootLink)-1]), colorutil.Cyan, 1)
			}
		}
	}

	if d.DrawMainPath {
		for _, e := range res.MainPath.Edges {
			b := res.Branches[e.Branch]
			polyline(&img, b.Curve(opts.CurveSamples), colorutil.Yellow, 2)
		}
	}

	if d.DrawJunctions && res.Junctions != nil {
		for _, j := range res.Junctions.Points() {
			gocv.Circle(&img, pt(j), 2, colorutil.Red, -1)
		}
	}
	gocv.Circle(&img, pt(root.Root), 4, colorutil.Magenta, -1)
	return img, nil
}

// Save renders the overlay and writes it to path; the format follows the
// file extension.
func Save(path string, bg *image.Gray, res *pipeline.Result, root skeleton.RootInfo, opts Options) error {
	img, err := Render(bg, res, root, opts)
	if err != nil {
		return err
	}
	defer img.Close()
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("failed to write overlay %s", path)
	}
	return nil
}

func pt(p geometry.Point) image.Point { return image.Pt(p.X, p.Y) }

func setPixel(img *gocv.Mat, p geometry.Point, c color.RGBA) {
	if p.X < 0 || p.Y < 0 || p.X >= img.Cols() || p.Y >= img.Rows() {
		return
	}
	img.SetUCharAt(p.Y, p.X*3, c.B)
	img.SetUCharAt(p.Y, p.X*3+1, c.G)
	img.SetUCharAt(p.Y, p.X*3+2, c.R)
}

func polyline(img *gocv.Mat, curve []geometry.Point2D, c color.RGBA, thickness int) {
	for i := 1; i < len(curve); i++ {
		a, b := curve[i-1].Round(), curve[i].Round()
		if a == b {
			continue
		}
		gocv.Line(img, pt(a), pt(b), c, thickness)
	}
}
