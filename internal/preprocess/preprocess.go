// Package preprocess turns a grayscale micrograph into the binary mask and
// the one pixel wide skeleton the analysis runs on.
package preprocess

import (
	"fmt"
	"image"

	"arbor-tracer/internal/config"
	"arbor-tracer/internal/logging"
	"arbor-tracer/internal/raster"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Result holds the preprocessed rasters. Gray is the image the mask was
// thresholded from, after resizing and blurring; overlays draw on it.
type Result struct {
	Gray     *image.Gray
	Mask     *raster.Bitmap
	Skeleton *raster.Bitmap
}

// Run resizes, blurs and thresholds gray with OpenCV, then thins the mask
// with Zhang-Suen. Root coordinates given by the user refer to the resized
// image.
func Run(gray *image.Gray, opts config.Preprocess) (*Result, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	work := src.Clone()
	defer func() { work.Close() }()

	if opts.Resize > 0 {
		resized := gocv.NewMat()
		gocv.Resize(work, &resized, image.Pt(opts.Resize, opts.Resize), 0, 0, gocv.InterpolationLinear)
		work.Close()
		work = resized
	}
	if opts.BlurKernel > 0 {
		gocv.GaussianBlur(work, &work, image.Pt(opts.BlurKernel, opts.BlurKernel), 0, 0, gocv.BorderDefault)
	}

	blurred, err := toGray(work)
	if err != nil {
		return nil, err
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(work, &binary, float32(opts.Threshold), 255, gocv.ThresholdBinary)

	thresholded, err := toGray(binary)
	if err != nil {
		return nil, err
	}
	mask := raster.FromGray(thresholded, 127)

	skel, err := thin(binary)
	if err != nil {
		return nil, err
	}

	logging.Logger().Debug("image preprocessed",
		"width", mask.W, "height", mask.H,
		"mask_pixels", mask.Count(), "skeleton_pixels", skel.Count())
	return &Result{Gray: blurred, Mask: mask, Skeleton: skel}, nil
}

// Thin reduces the foreground of b to one pixel wide lines. b is left
// unchanged.
func Thin(b *raster.Bitmap) (*raster.Bitmap, error) {
	src, err := gocv.ImageGrayToMatGray(b.Gray())
	if err != nil {
		return nil, fmt.Errorf("failed to convert bitmap: %w", err)
	}
	defer src.Close()
	return thin(src)
}

// thin runs Zhang-Suen thinning on a binary 8-bit Mat.
func thin(binary gocv.Mat) (*raster.Bitmap, error) {
	dst := gocv.NewMat()
	defer dst.Close()
	contrib.Thinning(binary, &dst, contrib.ThinningZhangSuen)

	g, err := toGray(dst)
	if err != nil {
		return nil, err
	}
	return raster.FromGray(g, 127), nil
}

func toGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat: %w", err)
	}
	return raster.ToGray(img), nil
}
