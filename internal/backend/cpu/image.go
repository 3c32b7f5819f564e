package cpu

import (
	"fmt"
	"image"

	"github.com/flare-ml/flare/internal/pixels"
	"github.com/flare-ml/flare/internal/tensor"
)

// ResizeBilinear rescales NHWC data to [batch, newHeight, newWidth, channels]
// with bilinear interpolation.
func (b *Backend) ResizeBilinear(x *tensor.NDArray, newHeight, newWidth int, alignCorners bool) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("cpu: resize requires 4D NHWC input, got %v", shape)
	}
	if newHeight <= 0 || newWidth <= 0 {
		return nil, fmt.Errorf("cpu: invalid resize target %dx%d", newHeight, newWidth)
	}
	batch, inH, inW, channels := shape[0], shape[1], shape[2], shape[3]

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	scaleH := resizeScale(inH, newHeight, alignCorners)
	scaleW := resizeScale(inW, newWidth, alignCorners)

	outShape := tensor.Shape{batch, newHeight, newWidth, channels}
	out := make([]float32, outShape.NumElements())
	i := 0
	for n := 0; n < batch; n++ {
		base := n * inH * inW * channels
		for oy := 0; oy < newHeight; oy++ {
			srcY := float64(oy) * scaleH
			y0 := int(srcY)
			y1 := min(y0+1, inH-1)
			fy := float32(srcY - float64(y0))
			for ox := 0; ox < newWidth; ox++ {
				srcX := float64(ox) * scaleW
				x0 := int(srcX)
				x1 := min(x0+1, inW-1)
				fx := float32(srcX - float64(x0))
				for c := 0; c < channels; c++ {
					topLeft := xv[base+(y0*inW+x0)*channels+c]
					topRight := xv[base+(y0*inW+x1)*channels+c]
					bottomLeft := xv[base+(y1*inW+x0)*channels+c]
					bottomRight := xv[base+(y1*inW+x1)*channels+c]
					top := topLeft + (topRight-topLeft)*fx
					bottom := bottomLeft + (bottomRight-bottomLeft)*fx
					out[i] = top + (bottom-top)*fy
					i++
				}
			}
		}
	}
	return b.newOutput(outShape, tensor.Float32, out)
}

func resizeScale(in, out int, alignCorners bool) float64 {
	if alignCorners && out > 1 {
		return float64(in-1) / float64(out-1)
	}
	return float64(in) / float64(out)
}

// FromPixels ingests a decoded image as an [h, w, numChannels] uint8 array.
func (b *Backend) FromPixels(img image.Image, numChannels int) (*tensor.NDArray, error) {
	data, h, w, err := pixels.FromImage(img, numChannels)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	shape := tensor.Shape{h, w, numChannels}
	out, err := b.arena.Make(shape, tensor.Uint8)
	if err != nil {
		return nil, err
	}
	if err := b.Register(out.DataID(), shape, tensor.Uint8); err != nil {
		return nil, err
	}
	if err := b.Write(out.DataID(), tensor.FromUint8(data)); err != nil {
		return nil, err
	}
	return out, nil
}
