package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/tiff"
)

// ErrUnsupportedFormat reports a file extension Load does not decode.
var ErrUnsupportedFormat = errors.New("raster: unsupported image format")

// Image is a decoded micrograph.
type Image struct {
	Path string
	Gray *image.Gray

	// PixelsPerMicron comes from the TIFF resolution tags, 0 when unknown.
	PixelsPerMicron float64
}

// Load decodes a PNG, JPEG or TIFF file into grayscale. Other extensions
// fail with ErrUnsupportedFormat before the file is opened.
func Load(path string) (*Image, error) {
	if !IsSupportedFormat(path) {
		return nil, fmt.Errorf("%w: %s (want one of %s)", ErrUnsupportedFormat, path, strings.Join(extensions, ", "))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	out := &Image{Path: path, Gray: ToGray(img)}

	if isTIFF(path) {
		if ppm, err := tiffResolution(file); err == nil {
			out.PixelsPerMicron = ppm
		}
	}
	return out, nil
}

// Width returns the image width in pixels.
func (im *Image) Width() int { return im.Gray.Bounds().Dx() }

// Height returns the image height in pixels.
func (im *Image) Height() int { return im.Gray.Bounds().Dy() }

// Microns converts a pixel distance, returning 0 when the scale is unknown.
func (im *Image) Microns(pixels float64) float64 {
	if im.PixelsPerMicron == 0 {
		return 0
	}
	return pixels / im.PixelsPerMicron
}

// TIFF tags and field types used by tiffResolution.
const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296

	typeShort    = 3
	typeRational = 5

	unitInch       = 2
	unitCentimeter = 3

	micronsPerInch = 25400.0
	micronsPerCm   = 10000.0
)

// tiffResolution reads the first IFD of a TIFF file and returns its
// resolution in pixels per micron.
func tiffResolution(r io.ReaderAt) (float64, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, err
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("not a valid TIFF file")
	}
	ifd := int64(order.Uint32(header[4:8]))

	count := make([]byte, 2)
	if _, err := r.ReadAt(count, ifd); err != nil {
		return 0, err
	}
	n := int(order.Uint16(count))

	var xRes, yRes float64
	unit := uint16(unitInch)
	entry := make([]byte, 12)
	for i := 0; i < n; i++ {
		if _, err := r.ReadAt(entry, ifd+2+int64(12*i)); err != nil {
			return 0, err
		}
		tag := order.Uint16(entry[0:2])
		typ := order.Uint16(entry[2:4])
		switch {
		case tag == tagXResolution && typ == typeRational:
			xRes = rational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == tagYResolution && typ == typeRational:
			yRes = rational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == tagResolutionUnit && typ == typeShort:
			unit = order.Uint16(entry[8:10])
		}
	}

	res := xRes
	if res == 0 {
		res = yRes
	}
	if res == 0 {
		return 0, fmt.Errorf("no resolution tags found")
	}

	switch unit {
	case unitInch:
		return res / micronsPerInch, nil
	case unitCentimeter:
		return res / micronsPerCm, nil
	}
	return 0, fmt.Errorf("resolution has no absolute unit (%d)", unit)
}

// rational reads a RATIONAL value (two uint32s) at offset.
func rational(r io.ReaderAt, offset int64, order binary.ByteOrder) float64 {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0
	}
	num, denom := order.Uint32(buf[0:4]), order.Uint32(buf[4:8])
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

var extensions = []string{".tif", ".tiff", ".png", ".jpg", ".jpeg"}

// SupportedFormats lists the file extensions Load accepts.
func SupportedFormats() []string { return slices.Clone(extensions) }

// IsSupportedFormat reports whether Load accepts path, judging by its
// extension alone.
func IsSupportedFormat(path string) bool {
	return slices.Contains(extensions, strings.ToLower(filepath.Ext(path)))
}

func isTIFF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}
