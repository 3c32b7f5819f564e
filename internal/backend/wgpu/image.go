package wgpu

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
		return nil, fmt.Errorf("wgpu: resize requires 4D NHWC input, got %v", shape)
	}
	if newHeight <= 0 || newWidth <= 0 {
		return nil, fmt.Errorf("wgpu: invalid resize target %dx%d", newHeight, newWidth)
	}
	batch, inH, inW, channels := shape[0], shape[1], shape[2], shape[3]

	scaleH := resizeScale(inH, newHeight, alignCorners)
	scaleW := resizeScale(inW, newWidth, alignCorners)

	outShape := tensor.Shape{batch, newHeight, newWidth, channels}
	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	return b.runProgram(programDesc{
		kind:     fmt.Sprintf("resize_bilinear[ac=%t]", alignCorners),
		inputs:   []*tensor.NDArray{x},
		outShape: outShape,
		outDType: tensor.Float32,
		source: func() string {
			return resizeBilinearShader(inH, inW, newHeight, newWidth, channels, scaleH, scaleW)
		},
		params: pb,
		groups: grid1D(n),
	})
}

func resizeScale(in, out int, alignCorners bool) float64 {
	if alignCorners && out > 1 {
		return float64(in-1) / float64(out-1)
	}
	return float64(in) / float64(out)
}

// FromPixels ingests a decoded image as an [h, w, numChannels] uint8 array.
// Extraction happens host-side; the array uploads lazily like any other.
func (b *Backend) FromPixels(img image.Image, numChannels int) (*tensor.NDArray, error) {
	data, h, w, err := pixels.FromImage(img, numChannels)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
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
