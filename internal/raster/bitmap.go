// Package raster holds binary images and the Go side of image input:
// decoding, grayscale conversion, thresholding and thinning.
package raster

import (
	"image"
	"image/color"

	"arbor-tracer/pkg/geometry"
)

// Bitmap is a binary image stored row-major. Foreground is false outside the
// image, so a Bitmap serves as both the skeleton raster and the thickness
// mask.
type Bitmap struct {
	W, H int
	Pix  []bool
}

// NewBitmap returns an all-background w×h bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, Pix: make([]bool, w*h)}
}

// Size returns the bitmap dimensions.
func (b *Bitmap) Size() (int, int) { return b.W, b.H }

func (b *Bitmap) in(p geometry.Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.W && p.Y < b.H
}

// Foreground reports whether p is set.
func (b *Bitmap) Foreground(p geometry.Point) bool {
	return b.in(p) && b.Pix[p.Y*b.W+p.X]
}

// Set sets or clears p. Points outside the bitmap are ignored.
func (b *Bitmap) Set(p geometry.Point, on bool) {
	if b.in(p) {
		b.Pix[p.Y*b.W+p.X] = on
	}
}

// Count returns the number of foreground pixels.
func (b *Bitmap) Count() int {
	n := 0
	for _, on := range b.Pix {
		if on {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{W: b.W, H: b.H, Pix: append([]bool(nil), b.Pix...)}
}

// FromGray thresholds g: pixels brighter than threshold are foreground.
func FromGray(g *image.Gray, threshold uint8) *Bitmap {
	r := g.Bounds()
	b := NewBitmap(r.Dx(), r.Dy())
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			b.Pix[y*b.W+x] = g.GrayAt(r.Min.X+x, r.Min.Y+y).Y > threshold
		}
	}
	return b
}

// Gray renders the bitmap as 255 on 0.
func (b *Bitmap) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, b.W, b.H))
	for i, on := range b.Pix {
		if on {
			g.Pix[i] = 255
		}
	}
	return g
}

// ToGray converts any image to 8-bit grayscale.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	r := img.Bounds()
	g := image.NewGray(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return g
}
