package wgpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
)

// BatchNorm computes (x - mean) / sqrt(variance + epsilon) * scale + offset,
// broadcasting mean, variance, scale and offset over the trailing channel
// dimension. scale and offset may be nil.
func (b *Backend) BatchNorm(x, mean, variance, scale, offset *tensor.NDArray, epsilon float32) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(shape) == 0 {
		return nil, fmt.Errorf("wgpu: batch norm requires at least 1D input")
	}
	channels := shape[len(shape)-1]
	for name, arr := range map[string]*tensor.NDArray{
		"mean": mean, "variance": variance, "scale": scale, "offset": offset,
	} {
		if arr != nil && arr.Shape().NumElements() != channels {
			return nil, fmt.Errorf("wgpu: batch norm %s has %d values for %d channels",
				name, arr.Shape().NumElements(), channels)
		}
	}
	if mean == nil || variance == nil {
		return nil, fmt.Errorf("wgpu: batch norm requires mean and variance")
	}

	kind := "batch_norm"
	inputs := []*tensor.NDArray{x, mean, variance}
	if scale != nil {
		kind += "_scale"
		inputs = append(inputs, scale)
	}
	if offset != nil {
		kind += "_offset"
		inputs = append(inputs, offset)
	}

	n := shape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n))        //nolint:gosec // G115: element counts are non-negative
	pb.putU32(uint32(channels)) //nolint:gosec // G115: dimensions are non-negative
	pb.putF32(epsilon)

	hasScale, hasOffset := scale != nil, offset != nil
	return b.runProgram(programDesc{
		kind:     kind,
		inputs:   inputs,
		outShape: shape,
		outDType: tensor.Float32,
		source:   func() string { return batchNormShader(hasScale, hasOffset) },
		params:   pb,
		groups:   grid1D(n),
	})
}
