package cpu

import (
	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

// reduceOp folds each [reduceSize] row of the flattened [batch, reduceSize]
// view into one value.
func (b *Backend) reduceOp(x *tensor.NDArray, axes []int, dtype tensor.DataType,
	fold func(row []float32) float32) (*tensor.NDArray, error) {
	outShape, batch, reduceSize, err := backend.ReduceView(x.Shape(), axes)
	if err != nil {
		return nil, err
	}
	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	out := make([]float32, batch)
	for i := 0; i < batch; i++ {
		out[i] = fold(xv[i*reduceSize : (i+1)*reduceSize])
	}
	return b.newOutput(outShape, dtype, out)
}

// Sum reduces the innermost axes by addition.
func (b *Backend) Sum(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	dtype := x.DType()
	if dtype == tensor.Bool {
		dtype = tensor.Int32
	}
	return b.reduceOp(x, axes, dtype, func(row []float32) float32 {
		var s float32
		for _, v := range row {
			s += v
		}
		return s
	})
}

// Min reduces the innermost axes to the smallest element.
func (b *Backend) Min(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduceOp(x, axes, x.DType(), func(row []float32) float32 {
		best := row[0]
		for _, v := range row[1:] {
			if v < best {
				best = v
			}
		}
		return best
	})
}

// Max reduces the innermost axes to the largest element.
func (b *Backend) Max(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduceOp(x, axes, x.DType(), func(row []float32) float32 {
		best := row[0]
		for _, v := range row[1:] {
			if v > best {
				best = v
			}
		}
		return best
	})
}

// ArgMin returns the index of the smallest element along the innermost axes.
// Ties resolve to the first occurrence.
func (b *Backend) ArgMin(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduceOp(x, axes, tensor.Int32, func(row []float32) float32 {
		best, bestIdx := row[0], 0
		for i, v := range row[1:] {
			if v < best {
				best, bestIdx = v, i+1
			}
		}
		return float32(bestIdx)
	})
}

// ArgMax returns the index of the largest element along the innermost axes.
// Ties resolve to the first occurrence.
func (b *Backend) ArgMax(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduceOp(x, axes, tensor.Int32, func(row []float32) float32 {
		best, bestIdx := row[0], 0
		for i, v := range row[1:] {
			if v > best {
				best, bestIdx = v, i+1
			}
		}
		return float32(bestIdx)
	})
}
