package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

// poolOp iterates every pooling window of an NHWC input. visit receives the
// flat input index of each in-bounds element; emit produces the output value
// after the window is consumed.
func (b *Backend) poolOp(x *tensor.NDArray, info backend.ConvInfo,
	window func(xv []float32, indices []int) float32) (*tensor.NDArray, error) {
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("cpu: pool input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	if info.InChannels != info.OutChannels {
		return nil, fmt.Errorf("cpu: pooling cannot change channel count (%d -> %d)", info.InChannels, info.OutChannels)
	}
	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	out := make([]float32, info.OutShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()
	indices := make([]int, 0, info.FilterHeight*info.FilterWidth)

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for c := 0; c < info.InChannels; c++ {
					indices = indices[:0]
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
							indices = append(indices, n*inStride[0]+iy*inStride[1]+ix*inStride[2]+c)
						}
					}
					out[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+c] = window(xv, indices)
				}
			}
		}
	}
	return b.newOutput(info.OutShape(), tensor.Float32, out)
}

// MaxPool takes the maximum over each pooling window.
func (b *Backend) MaxPool(x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	return b.poolOp(x, info, func(xv []float32, indices []int) float32 {
		best := math32.Inf(-1)
		for _, idx := range indices {
			if xv[idx] > best {
				best = xv[idx]
			}
		}
		return best
	})
}

// AvgPool averages each pooling window. Padding positions count toward the
// divisor the same way the forward window defines them: only in-bounds
// elements are averaged.
func (b *Backend) AvgPool(x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	return b.poolOp(x, info, func(xv []float32, indices []int) float32 {
		var sum float32
		for _, idx := range indices {
			sum += xv[idx]
		}
		if len(indices) == 0 {
			return 0
		}
		return sum / float32(len(indices))
	})
}

// MaxPoolBackward routes each output gradient to the first position in its
// window that held the maximum.
func (b *Backend) MaxPoolBackward(dy, x *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("cpu: pool grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	if !x.Shape().Equal(info.InShape()) {
		return nil, fmt.Errorf("cpu: pool input shape %v does not match geometry %v", x.Shape(), info.InShape())
	}
	dyv, err := b.valuesOf(dy)
	if err != nil {
		return nil, err
	}
	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	dx := make([]float32, info.InShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for c := 0; c < info.InChannels; c++ {
					bestIdx := -1
					best := math32.Inf(-1)
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
							idx := n*inStride[0] + iy*inStride[1] + ix*inStride[2] + c
							if xv[idx] > best {
								best = xv[idx]
								bestIdx = idx
							}
						}
					}
					if bestIdx >= 0 {
						dx[bestIdx] += dyv[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+c]
					}
				}
			}
		}
	}
	return b.newOutput(info.InShape(), tensor.Float32, dx)
}

// AvgPoolBackward spreads each output gradient evenly over its window.
func (b *Backend) AvgPoolBackward(dy *tensor.NDArray, info backend.ConvInfo) (*tensor.NDArray, error) {
	if !dy.Shape().Equal(info.OutShape()) {
		return nil, fmt.Errorf("cpu: pool grad shape %v does not match geometry %v", dy.Shape(), info.OutShape())
	}
	dyv, err := b.valuesOf(dy)
	if err != nil {
		return nil, err
	}

	dx := make([]float32, info.InShape().NumElements())
	inStride := info.InShape().ComputeStrides()
	outStride := info.OutShape().ComputeStrides()

	for n := 0; n < info.Batch; n++ {
		for oy := 0; oy < info.OutHeight; oy++ {
			for ox := 0; ox < info.OutWidth; ox++ {
				for c := 0; c < info.InChannels; c++ {
					count := 0
					for fy := 0; fy < info.FilterHeight; fy++ {
						iy := oy*info.StrideHeight + fy - info.PadTop
						if iy >= 0 && iy < info.InHeight {
							for fx := 0; fx < info.FilterWidth; fx++ {
								ix := ox*info.StrideWidth + fx - info.PadLeft
								if ix >= 0 && ix < info.InWidth {
									count++
								}
							}
						}
					}
					if count == 0 {
						continue
					}
					g := dyv[n*outStride[0]+oy*outStride[1]+ox*outStride[2]+c] / float32(count)
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
							dx[n*inStride[0]+iy*inStride[1]+ix*inStride[2]+c] += g
						}
					}
				}
			}
		}
	}
	return b.newOutput(info.InShape(), tensor.Float32, dx)
}
