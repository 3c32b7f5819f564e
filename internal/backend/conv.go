package backend

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
)

// PadMode selects how convolution padding is derived.
type PadMode int

// Supported padding modes.
const (
	// PadValid applies no padding; output shrinks by the filter extent.
	PadValid PadMode = iota
	// PadSame pads so that output spatial size equals ceil(in/stride).
	PadSame
)

// ConvInfo carries the full geometry of one convolution or pooling
// operation over NHWC data. It is computed once by ComputeConvInfo and
// passed through to both forward and backward ops so that every pass agrees
// on the padding arithmetic.
type ConvInfo struct {
	Batch                     int
	InHeight, InWidth         int
	InChannels                int
	OutHeight, OutWidth       int
	OutChannels               int
	FilterHeight, FilterWidth int
	StrideHeight, StrideWidth int
	PadTop, PadLeft           int
	PadBottom, PadRight       int
}

// InShape returns the NHWC input shape.
func (ci ConvInfo) InShape() tensor.Shape {
	return tensor.Shape{ci.Batch, ci.InHeight, ci.InWidth, ci.InChannels}
}

// OutShape returns the NHWC output shape.
func (ci ConvInfo) OutShape() tensor.Shape {
	return tensor.Shape{ci.Batch, ci.OutHeight, ci.OutWidth, ci.OutChannels}
}

// FilterShape returns the HWIO filter shape.
func (ci ConvInfo) FilterShape() tensor.Shape {
	return tensor.Shape{ci.FilterHeight, ci.FilterWidth, ci.InChannels, ci.OutChannels}
}

// ComputeConvInfo derives output geometry for a convolution or pooling op.
// inShape is NHWC. For pooling, outChannels must equal inShape's channel
// count and the filter dims are the window dims.
func ComputeConvInfo(inShape tensor.Shape, filterHeight, filterWidth, outChannels,
	strideHeight, strideWidth int, pad PadMode) (ConvInfo, error) {
	if len(inShape) != 4 {
		return ConvInfo{}, fmt.Errorf("conv: input must be 4D NHWC, got %v", inShape)
	}
	if filterHeight <= 0 || filterWidth <= 0 {
		return ConvInfo{}, fmt.Errorf("conv: invalid filter size %dx%d", filterHeight, filterWidth)
	}
	if strideHeight <= 0 || strideWidth <= 0 {
		return ConvInfo{}, fmt.Errorf("conv: invalid strides %dx%d", strideHeight, strideWidth)
	}

	ci := ConvInfo{
		Batch:        inShape[0],
		InHeight:     inShape[1],
		InWidth:      inShape[2],
		InChannels:   inShape[3],
		OutChannels:  outChannels,
		FilterHeight: filterHeight,
		FilterWidth:  filterWidth,
		StrideHeight: strideHeight,
		StrideWidth:  strideWidth,
	}

	switch pad {
	case PadValid:
		ci.OutHeight = (ci.InHeight-filterHeight)/strideHeight + 1
		ci.OutWidth = (ci.InWidth-filterWidth)/strideWidth + 1
	case PadSame:
		ci.OutHeight = ceilDiv(ci.InHeight, strideHeight)
		ci.OutWidth = ceilDiv(ci.InWidth, strideWidth)
		padAlongH := max((ci.OutHeight-1)*strideHeight+filterHeight-ci.InHeight, 0)
		padAlongW := max((ci.OutWidth-1)*strideWidth+filterWidth-ci.InWidth, 0)
		ci.PadTop = padAlongH / 2
		ci.PadBottom = padAlongH - ci.PadTop
		ci.PadLeft = padAlongW / 2
		ci.PadRight = padAlongW - ci.PadLeft
	default:
		return ConvInfo{}, fmt.Errorf("conv: unknown pad mode %d", pad)
	}

	if ci.OutHeight <= 0 || ci.OutWidth <= 0 {
		return ConvInfo{}, fmt.Errorf("conv: filter %dx%d does not fit input %dx%d with stride %dx%d",
			filterHeight, filterWidth, ci.InHeight, ci.InWidth, strideHeight, strideWidth)
	}
	return ci, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
