package wgpu

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

// reduceWindow is the per-pass window size for a row of the given width:
// min(width, max(2, floor(sqrt(width)))). Square-root windows balance the
// number of passes against per-thread work, so a full reduction finishes in
// O(log log n) passes without any single pass serializing long rows.
func reduceWindow(width int) int {
	if width <= 1 {
		return 1
	}
	w := int(math.Sqrt(float64(width)))
	if w < 2 {
		w = 2
	}
	if w > width {
		w = width
	}
	return w
}

// reduce runs a windowed multi-pass reduction of x viewed as
// [batch, reduceSize] rows, folding with the given WGSL expression until one
// value per row remains. The final pass writes the output block directly.
func (b *Backend) reduce(op, fold string, x *tensor.NDArray, axes []int, outDType tensor.DataType) (*tensor.NDArray, error) {
	outShape, batch, reduceSize, err := backend.ReduceView(x.Shape(), axes)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	src, err := b.ensureDevice(x.DataID())
	if err != nil {
		return nil, err
	}
	out, outRec, err := b.newOutput(outShape, outDType)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*tensor.NDArray, error) {
		_ = b.DisposeData(out.DataID())
		return nil, err
	}

	if reduceSize == 1 {
		if err := b.ctx.CopyBuffer(src.device, outRec.device, blockBytes(outRec.devShape)); err != nil {
			return fail(err)
		}
		return out, nil
	}

	cur := src.device
	var curShape tensor.Shape // nil while cur is the input block
	width := reduceSize
	for width > 1 {
		window := reduceWindow(width)
		outW := ceilDiv(width, window)

		dst := outRec.device
		var dstShape tensor.Shape
		if outW > 1 {
			dstShape = tensor.Shape{batch, outW}
			if dst, err = b.pool.Acquire(dstShape, KindStorage); err != nil {
				if curShape != nil {
					b.pool.Release(cur, curShape, KindStorage)
				}
				return fail(err)
			}
		}

		n := batch * outW
		pb := &params{}
		pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
		sig := Signature(fmt.Sprintf("reduce_%s[w=%d]", op, window),
			[]operand{{shape: tensor.Shape{batch, width}, dtype: tensor.Float32}},
			operand{shape: tensor.Shape{batch, outW}, dtype: tensor.Float32})
		w := width
		err = b.dispatch(sig, func() string { return reducePassShader(fold, w, window) },
			[]*wgpu.Buffer{cur, dst}, pb, grid1D(n))

		if curShape != nil {
			b.pool.Release(cur, curShape, KindStorage)
		}
		if err != nil {
			if outW > 1 {
				b.pool.Release(dst, dstShape, KindStorage)
			}
			return fail(err)
		}
		cur, curShape, width = dst, dstShape, outW
	}
	return out, nil
}

// Sum reduces by addition over the innermost axes. Bool inputs count as
// Int32.
func (b *Backend) Sum(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	outDType := x.DType()
	if outDType == tensor.Bool {
		outDType = tensor.Int32
	}
	return b.reduce("sum", "acc + v", x, axes, outDType)
}

// Min reduces by minimum over the innermost axes.
func (b *Backend) Min(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduce("min", "min(acc, v)", x, axes, x.DType())
}

// Max reduces by maximum over the innermost axes.
func (b *Backend) Max(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.reduce("max", "max(acc, v)", x, axes, x.DType())
}

// argReduce is the index-carrying variant of reduce: every pass folds
// (value, index) candidate pairs, and the final pass writes winning indices
// into the output block. Strict comparison preserves the first-encountered
// winner across passes.
func (b *Backend) argReduce(op, cmp string, x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	outShape, batch, reduceSize, err := backend.ReduceView(x.Shape(), axes)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w", err)
	}
	if reduceSize == 1 {
		return b.hostOutput(outShape, tensor.Int32, make([]float32, batch))
	}
	src, err := b.ensureDevice(x.DataID())
	if err != nil {
		return nil, err
	}
	out, outRec, err := b.newOutput(outShape, tensor.Int32)
	if err != nil {
		return nil, err
	}

	// Candidate pair blocks between passes; the final pass swaps the index
	// target for the output block and uses a scratch value target.
	var curVals, curIdxs *wgpu.Buffer
	var curShape tensor.Shape
	release := func() {
		if curShape == nil {
			return
		}
		b.pool.Release(curVals, curShape, KindStorage)
		b.pool.Release(curIdxs, curShape, KindStorage)
		curShape = nil
	}
	fail := func(err error) (*tensor.NDArray, error) {
		release()
		_ = b.DisposeData(out.DataID())
		return nil, err
	}

	width := reduceSize
	first := true
	for width > 1 {
		window := reduceWindow(width)
		outW := ceilDiv(width, window)

		dstShape := tensor.Shape{batch, outW}
		dstVals, err := b.pool.Acquire(dstShape, KindStorage)
		if err != nil {
			return fail(err)
		}
		dstIdxs := outRec.device
		if outW > 1 {
			if dstIdxs, err = b.pool.Acquire(dstShape, KindStorage); err != nil {
				b.pool.Release(dstVals, dstShape, KindStorage)
				return fail(err)
			}
		}

		n := batch * outW
		pb := &params{}
		pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
		inOp := operand{shape: tensor.Shape{batch, width}, dtype: tensor.Float32}
		outOp := operand{shape: dstShape, dtype: tensor.Float32}
		w := width
		if first {
			sig := Signature(fmt.Sprintf("arg_%s_first[w=%d]", op, window), []operand{inOp}, outOp)
			err = b.dispatch(sig, func() string { return argReduceFirstShader(cmp, w, window) },
				[]*wgpu.Buffer{src.device, dstVals, dstIdxs}, pb, grid1D(n))
		} else {
			sig := Signature(fmt.Sprintf("arg_%s_combine[w=%d]", op, window), []operand{inOp, inOp}, outOp)
			err = b.dispatch(sig, func() string { return argReduceCombineShader(cmp, w, window) },
				[]*wgpu.Buffer{curVals, curIdxs, dstVals, dstIdxs}, pb, grid1D(n))
		}
		release()
		if err != nil {
			b.pool.Release(dstVals, dstShape, KindStorage)
			if outW > 1 {
				b.pool.Release(dstIdxs, dstShape, KindStorage)
			}
			return fail(err)
		}

		if outW == 1 {
			b.pool.Release(dstVals, dstShape, KindStorage)
		} else {
			curVals, curIdxs, curShape = dstVals, dstIdxs, dstShape
		}
		width = outW
		first = false
	}
	return out, nil
}

// ArgMin returns the within-row index of the minimum over the innermost
// axes. The first occurrence wins ties.
func (b *Backend) ArgMin(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.argReduce("min", "<", x, axes)
}

// ArgMax returns the within-row index of the maximum over the innermost
// axes. The first occurrence wins ties.
func (b *Backend) ArgMax(x *tensor.NDArray, axes []int) (*tensor.NDArray, error) {
	return b.argReduce("max", ">", x, axes)
}
