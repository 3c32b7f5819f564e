// Package pixels converts host pixel sources into height×width×channel byte
// data for tensor ingestion.
package pixels

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// ErrNoRenderingSurface is returned when a pixel source needs an auxiliary
// drawing surface to decode. Video sources cannot be sampled outside a
// rendering environment.
var ErrNoRenderingSurface = errors.New("pixels: source requires a rendering surface, which is not available in this environment")

// Source is a pixel input for ingestion.
type Source interface {
	pixelSource()
}

// ImageSource wraps a decoded still image.
type ImageSource struct {
	Image image.Image
}

func (ImageSource) pixelSource() {}

// VideoSource identifies a streaming video element. Sampling a frame needs a
// drawing surface; ingesting one always fails here.
type VideoSource struct {
	URI string
}

func (VideoSource) pixelSource() {}

// FromSource extracts H×W×numChannels byte data from a pixel source.
func FromSource(src Source, numChannels int) (data []uint8, height, width int, err error) {
	switch s := src.(type) {
	case ImageSource:
		return FromImage(s.Image, numChannels)
	case VideoSource:
		return nil, 0, 0, ErrNoRenderingSurface
	default:
		return nil, 0, 0, fmt.Errorf("pixels: unsupported source type %T", src)
	}
}

// FromImage extracts H×W×numChannels byte data from an image.
// numChannels selects the leading channels of RGBA: 1 (grayscale red), 3
// (RGB) or 4 (RGBA).
func FromImage(img image.Image, numChannels int) (data []uint8, height, width int, err error) {
	if img == nil {
		return nil, 0, 0, errors.New("pixels: nil image")
	}
	if numChannels < 1 || numChannels > 4 {
		return nil, 0, 0, fmt.Errorf("pixels: numChannels must be 1..4, got %d", numChannels)
	}

	bounds := img.Bounds()
	height, width = bounds.Dy(), bounds.Dx()
	data = make([]uint8, height*width*numChannels)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			rgba := [4]uint8{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8), uint8(a >> 8)}
			for c := 0; c < numChannels; c++ {
				data[i] = rgba[c]
				i++
			}
		}
	}
	return data, height, width, nil
}

// Resize scales an image to width×height. Bilinear filtering when bilinear
// is set, nearest-neighbor otherwise.
func Resize(img image.Image, width, height int, bilinear bool) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler := draw.Scaler(draw.NearestNeighbor)
	if bilinear {
		scaler = draw.BiLinear
	}
	scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
