package wgpu

import (
	"fmt"
	"strings"

	"github.com/flare-ml/flare/internal/tensor"
)

// strideWalk emits the WGSL loop-free decomposition of the flat output index
// into per-dimension coordinates, accumulating the source index with term.
// term receives the dimension and the coordinate variable.
func strideWalk(outShape tensor.Shape, term func(d int, coord string) string) string {
	outStride := outShape.ComputeStrides()
	var sb strings.Builder
	sb.WriteString("    var rem = idx;\n    var src = 0u;\n")
	for d := range outShape {
		fmt.Fprintf(&sb, `    {
        let coord = rem / %du;
        rem = rem %% %du;
        %s
    }
`, outStride[d], outStride[d], term(d, "coord"))
	}
	return sb.String()
}

// Slice extracts a contiguous region: out[i...] = x[begin[i]+i...].
func (b *Backend) Slice(x *tensor.NDArray, begin, size []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(begin) != len(shape) || len(size) != len(shape) {
		return nil, fmt.Errorf("wgpu: slice begin %v / size %v do not match rank of %v", begin, size, shape)
	}
	for i := range shape {
		if begin[i] < 0 || size[i] <= 0 || begin[i]+size[i] > shape[i] {
			return nil, fmt.Errorf("wgpu: slice [%d:%d) out of bounds for dimension %d of %v",
				begin[i], begin[i]+size[i], i, shape)
		}
	}

	outShape := tensor.Shape(size).Clone()
	inStride := shape.ComputeStrides()
	body := strideWalk(outShape, func(d int, coord string) string {
		return fmt.Sprintf("src = src + (%s + %du) * %du;", coord, begin[d], inStride[d])
	}) + "    let out = x[src];"
	return b.remap(fmt.Sprintf("slice[b=%v]", begin), x, outShape, x.DType(), body)
}

// Transpose permutes the dimensions of x by perm.
func (b *Backend) Transpose(x *tensor.NDArray, perm []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(perm) != len(shape) {
		return nil, fmt.Errorf("wgpu: transpose perm %v does not match rank of %v", perm, shape)
	}
	seen := make([]bool, len(perm))
	outShape := make(tensor.Shape, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(shape) || seen[p] {
			return nil, fmt.Errorf("wgpu: invalid permutation %v for shape %v", perm, shape)
		}
		seen[p] = true
		outShape[i] = shape[p]
	}

	inStride := shape.ComputeStrides()
	body := strideWalk(outShape, func(d int, coord string) string {
		return fmt.Sprintf("src = src + %s * %du;", coord, inStride[perm[d]])
	}) + "    let out = x[src];"
	return b.remap(fmt.Sprintf("transpose[p=%v]", perm), x, outShape, x.DType(), body)
}

// Tile repeats x reps[i] times along each dimension.
func (b *Backend) Tile(x *tensor.NDArray, reps []int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(reps) != len(shape) {
		return nil, fmt.Errorf("wgpu: tile reps %v do not match rank of %v", reps, shape)
	}
	outShape := make(tensor.Shape, len(shape))
	for i, r := range reps {
		if r <= 0 {
			return nil, fmt.Errorf("wgpu: tile rep %d at dimension %d must be > 0", r, i)
		}
		outShape[i] = shape[i] * r
	}

	inStride := shape.ComputeStrides()
	body := strideWalk(outShape, func(d int, coord string) string {
		return fmt.Sprintf("src = src + (%s %% %du) * %du;", coord, shape[d], inStride[d])
	}) + "    let out = x[src];"
	return b.remap(fmt.Sprintf("tile[r=%v]", reps), x, outShape, x.DType(), body)
}

// Pad surrounds x with constantValue; paddings[i] is {before, after} for
// dimension i.
func (b *Backend) Pad(x *tensor.NDArray, paddings [][2]int, constantValue float32) (*tensor.NDArray, error) {
	shape := x.Shape()
	if len(paddings) != len(shape) {
		return nil, fmt.Errorf("wgpu: pad spec %v does not match rank of %v", paddings, shape)
	}
	outShape := make(tensor.Shape, len(shape))
	for i, p := range paddings {
		if p[0] < 0 || p[1] < 0 {
			return nil, fmt.Errorf("wgpu: negative padding %v at dimension %d", p, i)
		}
		outShape[i] = shape[i] + p[0] + p[1]
	}

	inStride := shape.ComputeStrides()
	var sb strings.Builder
	sb.WriteString("    var inside = true;\n")
	sb.WriteString(strideWalk(outShape, func(d int, coord string) string {
		return fmt.Sprintf(
			"if (%s < %du || %s >= %du) { inside = false; } else { src = src + (%s - %du) * %du; }",
			coord, paddings[d][0], coord, paddings[d][0]+shape[d], coord, paddings[d][0], inStride[d])
	}))
	fmt.Fprintf(&sb, "    var out = f32(%v);\n    if (inside) {\n        out = x[src];\n    }", constantValue)
	return b.remap(fmt.Sprintf("pad[p=%v,v=%v]", paddings, constantValue), x, outShape, x.DType(), sb.String())
}

// remap dispatches a one-input index remapping program over x.
func (b *Backend) remap(kind string, x *tensor.NDArray, outShape tensor.Shape, outDType tensor.DataType, body string) (*tensor.NDArray, error) {
	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	return b.runProgram(programDesc{
		kind:     kind,
		inputs:   []*tensor.NDArray{x},
		outShape: outShape,
		outDType: outDType,
		source:   func() string { return remapShader(body) },
		params:   pb,
		groups:   grid1D(n),
	})
}

// Concat joins two arrays along axis. All other dimensions must match.
func (b *Backend) Concat(x, y *tensor.NDArray, axis int) (*tensor.NDArray, error) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("wgpu: concat rank mismatch: %v vs %v", xs, ys)
	}
	if axis < 0 || axis >= len(xs) {
		return nil, fmt.Errorf("wgpu: concat axis %d out of range for %v", axis, xs)
	}
	for i := range xs {
		if i != axis && xs[i] != ys[i] {
			return nil, fmt.Errorf("wgpu: concat shapes %v and %v differ outside axis %d", xs, ys, axis)
		}
	}

	outShape := xs.Clone()
	outShape[axis] = xs[axis] + ys[axis]
	inner := 1
	for i := axis + 1; i < len(xs); i++ {
		inner *= xs[i]
	}
	aBlock, bBlock := xs[axis]*inner, ys[axis]*inner

	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	return b.runProgram(programDesc{
		kind:     fmt.Sprintf("concat[axis=%d]", axis),
		inputs:   []*tensor.NDArray{x, y},
		outShape: outShape,
		outDType: tensor.Upcast(x.DType(), y.DType()),
		source:   func() string { return concatShader(aBlock, bBlock) },
		params:   pb,
		groups:   grid1D(n),
	})
}

// Gather selects slices of x along axis using an Int32 index vector. Index
// values are validated host-side; the program assumes they are in range.
func (b *Backend) Gather(x, indices *tensor.NDArray, axis int) (*tensor.NDArray, error) {
	shape := x.Shape()
	if axis < 0 || axis >= len(shape) {
		return nil, fmt.Errorf("wgpu: gather axis %d out of range for %v", axis, shape)
	}
	if indices.DType() != tensor.Int32 || len(indices.Shape()) != 1 {
		return nil, fmt.Errorf("wgpu: gather indices must be a 1D int32 array, got %s %v",
			indices.DType(), indices.Shape())
	}
	idxBuf, err := b.ReadSync(indices.DataID())
	if err != nil {
		return nil, err
	}
	for _, j := range idxBuf.Int32s() {
		if int(j) < 0 || int(j) >= shape[axis] {
			return nil, fmt.Errorf("wgpu: gather index %d out of range [0,%d)", j, shape[axis])
		}
	}

	outShape := shape.Clone()
	outShape[axis] = indices.Shape().NumElements()
	inStride := shape.ComputeStrides()
	body := strideWalk(outShape, func(d int, coord string) string {
		if d == axis {
			return fmt.Sprintf("src = src + u32(indices[%s]) * %du;", coord, inStride[d])
		}
		return fmt.Sprintf("src = src + %s * %du;", coord, inStride[d])
	}) + "    let out = x[src];"

	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	return b.runProgram(programDesc{
		kind:     fmt.Sprintf("gather[axis=%d]", axis),
		inputs:   []*tensor.NDArray{x, indices},
		outShape: outShape,
		outDType: x.DType(),
		source:   func() string { return gatherShader(body) },
		params:   pb,
		groups:   grid1D(n),
	})
}

// OneHot expands a 1D Int32 index vector into an [n, depth] matrix.
func (b *Backend) OneHot(indices *tensor.NDArray, depth int, onValue, offValue float32) (*tensor.NDArray, error) {
	if indices.DType() != tensor.Int32 || len(indices.Shape()) != 1 {
		return nil, fmt.Errorf("wgpu: one-hot indices must be a 1D int32 array, got %s %v",
			indices.DType(), indices.Shape())
	}
	if depth <= 0 {
		return nil, fmt.Errorf("wgpu: one-hot depth must be > 0, got %d", depth)
	}

	rows := indices.Shape().NumElements()
	outShape := tensor.Shape{rows, depth}
	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	pb.putF32(onValue)
	pb.putF32(offValue)
	return b.runProgram(programDesc{
		kind:     "one_hot",
		inputs:   []*tensor.NDArray{indices},
		outShape: outShape,
		outDType: tensor.Float32,
		source:   func() string { return oneHotShader(depth) },
		params:   pb,
		groups:   grid1D(n),
	})
}
