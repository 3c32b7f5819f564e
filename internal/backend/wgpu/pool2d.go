package wgpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

func checkPoolGeometry(x *tensor.NDArray, info backend.ConvInfo) error {
	if !x.Shape().Equal(info.InShape()) {
		return fmt.Errorf("wgpu: pool input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if info.InChannels != info.OutChannels {
		return fmt.Errorf("wgpu: pooling cannot change channel count (%d -> %d)", info.InChannels, info.OutChannels)
	}
	return nil
}

// MaxPool takes the maximum over each pooling window.
func (b *Backend) MaxPool(x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	return b.pool2d("max_pool", true, x, info)
}

// AvgPool averages the in-bounds elements of each pooling window.
func (b *Backend) AvgPool(x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	return b.pool2d("avg_pool", false, x, info)
}

func (b *Backend) pool2d(kind string, isMax bool, x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if err := checkPoolGeometry(x, info); err != nil {
		return nil, err
	}
	n := info.OutShape().NumElements()
	return b.runProgram(programDesc{
		kind:     kind,
		inputs:   []*tensor.NDArray{x},
		outShape: info.OutShape(),
		outDType: tensor.Float32,
		source:   func() string { return poolShader(isMax) },
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}

// MaxPoolBackward routes each output gradient to the first position in its
// window that held the maximum.
func (b *Backend) MaxPoolBackward(dy, x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("wgpu: pool grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	if err := checkPoolGeometry(x, info); err != nil {
		return nil, err
	}
	n := info.InShape().NumElements()
	return b.runProgram(programDesc{
		kind:     "max_pool_backward",
		inputs:   []*tensor.NDArray{dy, x},
		outShape: info.InShape(),
		outDType: tensor.Float32,
		source:   maxPoolBackwardShader,
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}

// AvgPoolBackward spreads each output gradient evenly over its window's
// in-bounds positions.
func (b *Backend) AvgPoolBackward(dy *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("wgpu: pool grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	n := info.InShape().NumElements()
	return b.runProgram(programDesc{
		kind:     "avg_pool_backward",
		inputs:   []*tensor.NDArray{dy},
		outShape: info.InShape(),
		outDType: tensor.Float32,
		source:   avgPoolBackwardShader,
		params:   convParams(info, n),
		groups:   grid1D(n),
	})
}
