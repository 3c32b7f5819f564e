package cpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

// Conv2D computes a 2D convolution over NHWC input with an HWIO filter.
// bias may be nil; when present it is one value per output channel.
func (b *Backend) Conv2D(x, filter, bias *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("cpu: conv input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if !filter.Shape().Equal(info.FilterShape()) {
		return nil, fmt.Errorf("cpu: conv filter shape %v does not match geometry %v", filter.Shape(), info.FilterShape())
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	fv, err := b.valuesOf(filter)
	if err != nil {
		return nil, err
	}
	var biasv []float32
	if bias != nil {
		if biasv, err = b.valuesOf(bias); err != nil {
			return nil, err
		}
		if len(biasv) != info.OutChannels {
			return nil, fmt.Errorf("cpu: conv bias has %d values for %d output channels", len(biasv), info.OutChannels)
		}
	}

	out := make([]float32, info.OutShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()
	fStride := info.FilterShape().ComputeStrides()

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for oc := 0; oc < info.OutChannels; oc++ {
					var sum float32
					for fy := 0; fy < info.FilterHeight; fy++ {
						iy := oy*info.StrideHeight + fy - info.PadTop
						if iy < 0 || iy >= info.InHeight {
							continue
						}
						for fx := 0; fx < info.FilterWidth; fx++ {
							ix := ox*info.StrideWidth + fx - info.PadLeft
							if ix < 0 || ix >= info.InWidth {
								continue
							}
							for ic := 0; ic < info.InChannels; ic++ {
								sum += xv[n*inStride[0]+iy*inStride[1]+ix*inStride[2]+ic] *
									fv[fy*fStride[0]+fx*fStride[1]+ic*fStride[2]+oc]
							}
						}
					}
					if biasv != nil {
						sum += biasv[oc]
					}
					out[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+oc] = sum
				}
			}
		}
	}
	return b.newOutput(info.OutShape(), tensor.Float32, out)
}

// Conv2DInputBackward computes the gradient of a convolution with respect to
// its input (a full correlation of dy with the flipped filter).
func (b *Backend) Conv2DInputBackward(dy, filter *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("cpu: conv grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	dyv, err := b.valuesOf(dy)
	if err != nil {
		return nil, err
	}
	fv, err := b.valuesOf(filter)
	if err != nil {
		return nil, err
	}

	dx := make([]float32, info.InShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()
	fStride := info.FilterShape().ComputeStrides()

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for oc := 0; oc < info.OutChannels; oc++ {
					g := dyv[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+oc]
					if g == 0 {
						continue
					}
					for fy := 0; fy < info.FilterHeight; fy++ {
						iy := oy*info.StrideHeight + fy - info.PadTop
						if iy < 0 || iy >= info.InHeight {
							continue
						}
						for fx := 0; fx < info.FilterWidth; fx++ {
							ix := ox*info.StrideWidth + fx - info.PadLeft
							if ix < 0 || ix >= info.InWidth {
								continue
							}
							for ic := 0; ic < info.InChannels; ic++ {
								dx[n*inStride[0]+iy*inStride[1]+ix*inStride[2]+ic] +=
									g * fv[fy*fStride[0]+fx*fStride[1]+ic*fStride[2]+oc]
							}
						}
					}
				}
			}
		}
	}
	return b.newOutput(info.InShape(), tensor.Float32, dx)
}

// Conv2DFilterBackward computes the gradient of a convolution with respect
// to its filter.
func (b *Backend) Conv2DFilterBackward(x, dy *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("cpu: conv input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("cpu: conv grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	dyv, err := b.valuesOf(dy)
	if err != nil {
		return nil, err
	}

	df := make([]float32, info.FilterShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()
	fStride := info.FilterShape().ComputeStrides()

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for oc := 0; oc < info.OutChannels; oc++ {
					g := dyv[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+oc]
					if g == 0 {
						continue
					}
					for fy := 0; fy < info.FilterHeight; fy++ {
						iy := oy*info.StrideHeight + fy - info.PadTop
						if iy < 0 || iy >= info.InHeight {
							continue
						}
						for fx := 0; fx < info.FilterWidth; fx++ {
							ix := ox*info.StrideWidth + fx - info.PadLeft
							if ix < 0 || ix >= info.InWidth {
								continue
							}
							for ic := 0; ic < info.InChannels; ic++ {
								df[fy*fStride[0]+fx*fStride[1]+ic*fStride[2]+oc] +=
									g * xv[n*inStride[0]+iy*inStride[1]+ix*inStride[2]+ic]
							}
						}
					}
				}
			}
		}
	}
	return b.newOutput(info.FilterShape(), tensor.Float32, df)
}

// Conv2DBiasBackward sums dy over every dimension except channels.
func (b *Backend) Conv2DBiasBackward(dy *tensor.NDArray) (*tensor.NDArray, error) {
	shape := dy.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("cpu: conv bias backward requires 4D NHWC grad, got %v", shape)
	}
	dyv, err := b.valuesOf(dy)
	if err != nil {
		return nil, err
	}
	channels := shape[3]
	out := make([]float32, channels)
	for i, v := range dyv {
		out[i%channels] += v
	}
	return b.newOutput(tensor.Shape{channels}, tensor.Float32, out)
}
