package cpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
)

// Slice extracts a contiguous region: out[i...] = x[begin[i]+i...].
func (b *Backend) Slice(x *tensor.NDArray, begin, size []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(begin) != len(shape) || len(size) != len(shape) {
		return nil, fmt.Errorf("cpu: slice begin %v / size %v do not match rank of %v", begin, size, shape)
	}
	for i := range shape {
		if begin[i] < 0 || size[i] <= 0 || begin[i]+size[i] > shape[i] {
			return nil, fmt.Errorf("cpu: slice [%d:%d) out of bounds for dimension %d of %v",
				begin[i], begin[i]+size[i], i, shape)
		}
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	outShape := tensor.Shape(size).Clone()
	out := make([]float32, outShape.NumElements())
	inStride := shape.ComputeStrides()
	outStride := outShape.ComputeStrides()

	for i := range out {
		srcIdx := 0
		rem := i
		for d := range outShape {
			coord := rem / outStride[d]
			rem %= outStride[d]
			srcIdx += (coord + begin[d]) * inStride[d]
		}
		out[i] = xv[srcIdx]
	}
	return b.newOutput(outShape, x.DType(), out)
}

// Concat joins two arrays along axis. All other dimensions must match.
func (b *Backend) Concat(a, other *tensor.NDArray, axis int) (*tensor.NDArray, error) {
	as, bs := a.Shape(), other.Shape()
	if len(as) != len(bs) {
		return nil, fmt.Errorf("cpu: concat rank mismatch: %v vs %v", as, bs)
	}
	if axis < 0 || axis >= len(as) {
		return nil, fmt.Errorf("cpu: concat axis %d out of range for %v", axis, as)
	}
	for i := range as {
		if i != axis && as[i] != bs[i] {
			return nil, fmt.Errorf("cpu: concat shapes %v and %v differ outside axis %d", as, bs, axis)
		}
	}

	av, err := b.valuesOf(a)
	if err != nil {
		return nil, err
	}
	bv, err := b.valuesOf(other)
	if err != nil {
		return nil, err
	}

	outShape := as.Clone()
	outShape[axis] = as[axis] + bs[axis]

	// Views: [outer, axis, inner] for both inputs.
	outer, inner := 1, 1
	for i := 0; i < axis; i++ {
		outer *= as[i]
	}
	for i := axis + 1; i < len(as); i++ {
		inner *= as[i]
	}

	out := make([]float32, outShape.NumElements())
	aBlock := as[axis] * inner
	bBlock := bs[axis] * inner
	for o := 0; o < outer; o++ {
		dst := o * (aBlock + bBlock)
		copy(out[dst:dst+aBlock], av[o*aBlock:(o+1)*aBlock])
		copy(out[dst+aBlock:dst+aBlock+bBlock], bv[o*bBlock:(o+1)*bBlock])
	}
	return b.newOutput(outShape, tensor.Upcast(a.DType(), other.DType()), out)
}

// Transpose permutes the dimensions of x by perm.
func (b *Backend) Transpose(x *tensor.NDArray, perm []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(perm) != len(shape) {
		return nil, fmt.Errorf("cpu: transpose perm %v does not match rank of %v", perm, shape)
	}
	seen := make([]bool, len(perm))
	outShape := make(tensor.Shape, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(shape) || seen[p] {
			return nil, fmt.Errorf("cpu: invalid permutation %v for shape %v", perm, shape)
		}
		seen[p] = true
		outShape[i] = shape[p]
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	out := make([]float32, len(xv))
	inStride := shape.ComputeStrides()
	outStride := outShape.ComputeStrides()
	for i := range out {
		srcIdx := 0
		rem := i
		for d := range outShape {
			coord := rem / outStride[d]
			rem %= outStride[d]
			srcIdx += coord * inStride[perm[d]]
		}
		out[i] = xv[srcIdx]
	}
	return b.newOutput(outShape, x.DType(), out)
}

// Tile repeats x reps[i] times along each dimension.
func (b *Backend) Tile(x *tensor.NDArray, reps []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(reps) != len(shape) {
		return nil, fmt.Errorf("cpu: tile reps %v do not match rank of %v", reps, shape)
	}
	outShape := make(tensor.Shape, len(shape))
	for i, r := range reps {
		if r <= 0 {
			return nil, fmt.Errorf("cpu: tile rep %d at dimension %d must be > 0", r, i)
		}
		outShape[i] = shape[i] * r
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	out := make([]float32, outShape.NumElements())
	inStride := shape.ComputeStrides()
	outStride := outShape.ComputeStrides()
	for i := range out {
		srcIdx := 0
		rem := i
		for d := range outShape {
			coord := rem / outStride[d]
			rem %= outStride[d]
			srcIdx += (coord % shape[d]) * inStride[d]
		}
		out[i] = xv[srcIdx]
	}
	return b.newOutput(outShape, x.DType(), out)
}

// Pad surrounds x with constantValue; paddings[i] is {before, after} for
// dimension i.
func (b *Backend) Pad(x *tensor.NDArray, paddings [][2]int, constantValue float32) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(paddings) != len(shape) {
		return nil, fmt.Errorf("cpu: pad spec %v does not match rank of %v", paddings, shape)
	}
	outShape := make(tensor.Shape, len(shape))
	for i, p := range paddings {
		if p[0] < 0 || p[1] < 0 {
			return nil, fmt.Errorf("cpu: negative padding %v at dimension %d", p, i)
		}
		outShape[i] = shape[i] + p[0] + p[1]
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}

	out := make([]float32, outShape.NumElements())
	for i := range out {
		out[i] = constantValue
	}
	inStride := shape.ComputeStrides()
	outStride := outShape.ComputeStrides()
	for i := range xv {
		dstIdx := 0
		rem := i
		for d := range shape {
			coord := rem / inStride[d]
			rem %= inStride[d]
			dstIdx += (coord + paddings[d][0]) * outStride[d]
		}
		out[dstIdx] = xv[i]
	}
	return b.newOutput(outShape, x.DType(), out)
}

// Gather selects slices of x along axis using an Int32 index vector.
func (b *Backend) Gather(x, indices *tensor.NDArray, axis int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("cpu: gather axis %d out of range for %v", axis, shape)
	}
	if indices.DType() != tensor.Int32 || len(indices.Shape()) != 1 {
		return nil, fmt.Errorf("cpu: gather indices must be a 1D int32 array, got %s %v",
			indices.DType(), indices.Shape())
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	idxBuf, err := b.ReadSync(indices.DataID())
	if err != nil {
		return nil, err
	}
	idx := idxBuf.Int32s()

	outShape := shape.Clone()
	outShape[axis] = len(idx)
	out := make([]float32, outShape.NumElements())
	inStride := shape.ComputeStrides()
	outStride := outShape.ComputeStrides()

	for i := range out {
		srcIdx := 0
		rem := i
		for d := range outShape {
			coord := rem / outStride[d]
			rem %= outStride[d]
			if d == axis {
				j := int(idx[coord])
				if j < 0 || j >= shape[axis] {
					return nil, fmt.Errorf("cpu: gather index %d out of range [0,%d)", j, shape[axis])
				}
				coord = j
			}
			srcIdx += coord * inStride[d]
		}
		out[i] = xv[srcIdx]
	}
	return b.newOutput(outShape, x.DType(), out)
}

// OneHot expands a 1D Int32 index vector into an [n, depth] matrix.
func (b *Backend) OneHot(indices *tensor.NDArray, depth int, onValue, offValue float32) (*tensor.NDArray, error) {
	if indices.DType() != tensor.Int32 || len(indices.Shape()) != 1 {
		return nil, fmt.Errorf("cpu: one-hot indices must be a 1D int32 array, got %s %v",
			indices.DType(), indices.Shape())
	}
	if depth <= 0 {
		return nil, fmt.Errorf("cpu: one-hot depth must be > 0, got %d", depth)
	}
	idxBuf, err := b.ReadSync(indices.DataID())
	if err != nil {
		return nil, err
	}
	idx := idxBuf.Int32s()

	out := make([]float32, len(idx)*depth)
	for i := range out {
		out[i] = offValue
	}
	for i, j := range idx {
		if int(j) >= 0 && int(j) < depth {
			out[i*depth+int(j)] = onValue
		}
	}
	return b.newOutput(tensor.Shape{len(idx), depth}, tensor.Float32, out)
}
