package wgpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

// convParams serializes convolution geometry into the shared uniform layout.
// Field order matches convParamsWGSL.
func convParams(info backend.ConvInfo, size int) *params {
	pb := &params{}
	for _, v := range []int{
		size, info.Batch, info.InHeight, info.InWidth, info.InChannels,
		info.OutHeight, info.OutWidth, info.OutChannels,
		info.FilterHeight, info.FilterWidth,
		info.StrideHeight, info.StrideWidth,
		info.PadTop, info.PadLeft,
	} {
		pb.putU32(uint32(v)) //nolint:gosec // G115: geometry is non-negative
	}
	return pb
}

// Conv2D computes a 2D convolution over NHWC input with an HWIO filter.
// bias may be nil; when present it is one value per output channel.
func (b *Backend) Conv2D(x, filter, bias *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("wgpu: conv input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if !filter.Shape().Equal(info.FilterShape()) {
		return nil, fmt.Errorf("wgpu: conv filter shape %v does not match geometry %v", filter.Shape(), info.FilterShape())
	}

	kind := "conv2d"
	inputs := []*tensor.NDArray{x, filter}
	if bias != nil {
		if bias.Shape().NumElements() != info.OutChannels {
			return nil, fmt.Errorf("wgpu: conv bias has %d values for %d output channels",
				bias.Shape().NumElements(), info.OutChannels)
		}
		kind = "conv2d_bias"
		inputs = append(inputs, bias)
	}

	n := info.OutShape().NumElements()
	hasBias := bias != nil
	return b.runProgram(programDesc{
		kind:     kind,
		inputs:   inputs,
		outShape: info.OutShape(),
		outDType: tensor.Float32,
		source:   func() string { return conv2dShader(hasBias) },
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}

// Conv2DInputBackward computes the gradient of a convolution with respect to
// its input.
func (b *Backend) Conv2DInputBackward(dy, filter *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("wgpu: conv grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	n := info.InShape().NumElements()
	return b.runProgram(programDesc{
		kind:     "conv2d_input_backward",
		inputs:   []*tensor.NDArray{dy, filter},
		outShape: info.InShape(),
		outDType: tensor.Float32,
		source:   conv2dInputBackwardShader,
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}

// Conv2DFilterBackward computes the gradient of a convolution with respect
// to its filter.
func (b *Backend) Conv2DFilterBackward(x, dy *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("wgpu: conv input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("wgpu: conv grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	n := info.FilterShape().NumElements()
	return b.runProgram(programDesc{
		kind:     "conv2d_filter_backward",
		inputs:   []*tensor.NDArray{x, dy},
		outShape: info.FilterShape(),
		outDType: tensor.Float32,
		source:   conv2dFilterBackwardShader,
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}

// Conv2DBiasBackward sums dy over every dimension except channels.
func (b *Backend) Conv2DBiasBackward(dy *tensor.NDArray) (*tensor.NDArray, error) {
	shape := dy.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("wgpu: conv bias backward requires 4D NHWC grad, got %v", shape)
	}
	channels := shape[3]
	pb := &params{}
	pb.putU32(uint32(channels))                //nolint:gosec // G115: dimensions are non-negative
	pb.putU32(uint32(shape.NumElements()))     //nolint:gosec // G115: element counts are non-negative
	return b.runProgram(programDesc{
		kind:     "conv2d_bias_backward",
		inputs:   []*tensor.NDArray{dy},
		outShape: tensor.Shape{channels},
		outDType: tensor.Float32,
		source:   conv2dBiasBackwardShader,
		params:   pb,
		groups:   grid1D(channels),
	})
}
