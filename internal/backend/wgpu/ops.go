package wgpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
)

// binaryOp dispatches an element-wise program over two same-shape operands.
func (b *Backend) binaryOp(kind, expr string, x, y *tensor.NDArray, outDType tensor.DataType) (*tensor.NDArray, error) {
	if err := checkSameShape(kind, x, y); err != nil {
		return nil, err
	}
	n := x.Shape().NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	pb.putF32(0)
	pb.putF32(0)
	return b.runProgram(programDesc{
		kind:     "binary_" + kind,
		inputs:   []*tensor.NDArray{x, y},
		outShape: x.Shape(),
		outDType: outDType,
		source:   func() string { return binaryShader(expr) },
		params:   pb,
		groups:   grid1D(n),
	})
}

// unaryOp dispatches an element-wise program over one operand. lo and hi feed
// the uniform block for programs that use them.
func (b *Backend) unaryOp(kind, expr string, x *tensor.NDArray, outDType tensor.DataType, lo, hi float32) (*tensor.NDArray, error) {
	n := x.Shape().NumElements()
	pb := &params{}
	pb.putU32(uint32(n)) //nolint:gosec // G115: element counts are non-negative
	pb.putF32(lo)
	pb.putF32(hi)
	return b.runProgram(programDesc{
		kind:     "unary_" + kind,
		inputs:   []*tensor.NDArray{x},
		outShape: x.Shape(),
		outDType: outDType,
		source:   func() string { return unaryShader(expr) },
		params:   pb,
		groups:   grid1D(n),
	})
}

func (b *Backend) arith(kind, expr string, x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(kind, expr, x, y, tensor.Upcast(x.DType(), y.DType()))
}

// Add computes x + y element-wise.
func (b *Backend) Add(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("add", "a[idx] + b[idx]", x, y)
}

// Sub computes x - y element-wise.
func (b *Backend) Sub(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("sub", "a[idx] - b[idx]", x, y)
}

// Mul computes x * y element-wise.
func (b *Backend) Mul(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("mul", "a[idx] * b[idx]", x, y)
}

// Div computes x / y element-wise.
func (b *Backend) Div(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("div", "a[idx] / b[idx]", x, y)
}

// Pow computes x ^ y element-wise.
func (b *Backend) Pow(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("pow", "pow(a[idx], b[idx])", x, y)
}

// Maximum computes the element-wise maximum of x and y.
func (b *Backend) Maximum(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("maximum", "max(a[idx], b[idx])", x, y)
}

// Minimum computes the element-wise minimum of x and y.
func (b *Backend) Minimum(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.arith("minimum", "min(a[idx], b[idx])", x, y)
}

// Neg computes -x element-wise.
func (b *Backend) Neg(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("neg", "-x[idx]", x, x.DType(), 0, 0)
}

// Exp computes e^x element-wise.
func (b *Backend) Exp(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("exp", "exp(x[idx])", x, tensor.Float32, 0, 0)
}

// Log computes the natural logarithm element-wise.
func (b *Backend) Log(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("log", "log(x[idx])", x, tensor.Float32, 0, 0)
}

// Sqrt computes the square root element-wise.
func (b *Backend) Sqrt(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("sqrt", "sqrt(x[idx])", x, tensor.Float32, 0, 0)
}

// Abs computes |x| element-wise.
func (b *Backend) Abs(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("abs", "abs(x[idx])", x, x.DType(), 0, 0)
}

// Relu computes max(x, 0) element-wise.
func (b *Backend) Relu(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("relu", "max(x[idx], 0.0)", x, x.DType(), 0, 0)
}

// Sigmoid computes 1 / (1 + e^-x) element-wise.
func (b *Backend) Sigmoid(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("sigmoid", "1.0 / (1.0 + exp(-x[idx]))", x, tensor.Float32, 0, 0)
}

// Tanh computes the hyperbolic tangent element-wise.
func (b *Backend) Tanh(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("tanh", "tanh(x[idx])", x, tensor.Float32, 0, 0)
}

// Floor rounds down element-wise.
func (b *Backend) Floor(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("floor", "floor(x[idx])", x, x.DType(), 0, 0)
}

// Ceil rounds up element-wise.
func (b *Backend) Ceil(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp("ceil", "ceil(x[idx])", x, x.DType(), 0, 0)
}

// Clip clamps x into [lo, hi] element-wise.
func (b *Backend) Clip(x *tensor.NDArray, lo, hi float32) (*tensor.NDArray, error) {
	if lo > hi {
		return nil, fmt.Errorf("wgpu: clip bounds [%g, %g] are inverted", lo, hi)
	}
	return b.unaryOp("clip", "clamp(x[idx], params.lo, params.hi)", x, x.DType(), lo, hi)
}

func (b *Backend) compareOp(kind, expr string, x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(kind, expr, x, y, tensor.Bool)
}

// Equal compares x == y element-wise, yielding Bool.
func (b *Backend) Equal(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("equal", "select(0.0, 1.0, a[idx] == b[idx])", x, y)
}

// NotEqual compares x != y element-wise, yielding Bool.
func (b *Backend) NotEqual(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("not_equal", "select(0.0, 1.0, a[idx] != b[idx])", x, y)
}

// Greater compares x > y element-wise, yielding Bool.
func (b *Backend) Greater(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("greater", "select(0.0, 1.0, a[idx] > b[idx])", x, y)
}

// GreaterEqual compares x >= y element-wise, yielding Bool.
func (b *Backend) GreaterEqual(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("greater_equal", "select(0.0, 1.0, a[idx] >= b[idx])", x, y)
}

// Less compares x < y element-wise, yielding Bool.
func (b *Backend) Less(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("less", "select(0.0, 1.0, a[idx] < b[idx])", x, y)
}

// LessEqual compares x <= y element-wise, yielding Bool.
func (b *Backend) LessEqual(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp("less_equal", "select(0.0, 1.0, a[idx] <= b[idx])", x, y)
}

func (b *Backend) logicalOp(kind, expr string, x, y *tensor.NDArray) (*tensor.NDArray, error) {
	if x.DType() != tensor.Bool || y.DType() != tensor.Bool {
		return nil, fmt.Errorf("wgpu: %s requires bool operands, got %s and %s", kind, x.DType(), y.DType())
	}
	return b.binaryOp(kind, expr, x, y, tensor.Bool)
}

// LogicalAnd computes x && y on Bool operands.
func (b *Backend) LogicalAnd(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.logicalOp("logical_and", "select(0.0, 1.0, a[idx] != 0.0 && b[idx] != 0.0)", x, y)
}

// LogicalOr computes x || y on Bool operands.
func (b *Backend) LogicalOr(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	return b.logicalOp("logical_or", "select(0.0, 1.0, a[idx] != 0.0 || b[idx] != 0.0)", x, y)
}

// LogicalNot computes !x on a Bool operand.
func (b *Backend) LogicalNot(x *tensor.NDArray) (*tensor.NDArray, error) {
	if x.DType() != tensor.Bool {
		return nil, fmt.Errorf("wgpu: logical_not requires a bool operand, got %s", x.DType())
	}
	return b.unaryOp("logical_not", "select(1.0, 0.0, x[idx] != 0.0)", x, tensor.Bool, 0, 0)
}

// MatMul multiplies 2D operands: [M,K] @ [K,N] -> [M,N].
func (b *Backend) MatMul(x, y *tensor.NDArray) (*tensor.NDArray, error) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) != 2 || len(ys) != 2 {
		return nil, fmt.Errorf("wgpu: matmul requires 2D operands, got %v and %v", xs, ys)
	}
	if xs[1] != ys[0] {
		return nil, fmt.Errorf("wgpu: matmul inner dimensions differ: %v vs %v", xs, ys)
	}
	m, k, n := xs[0], xs[1], ys[1]

	pb := &params{}
	pb.putU32(uint32(m)) //nolint:gosec // G115: dimensions are non-negative
	pb.putU32(uint32(k)) //nolint:gosec // G115: dimensions are non-negative
	pb.putU32(uint32(n)) //nolint:gosec // G115: dimensions are non-negative
	return b.runProgram(programDesc{
		kind:     "matmul",
		inputs:   []*tensor.NDArray{x, y},
		outShape: tensor.Shape{m, n},
		outDType: tensor.Upcast(x.DType(), y.DType()),
		source:   matmulShader,
		params:   pb,
		groups: [3]uint32{
			uint32(ceilDiv(n, matmulTile)), //nolint:gosec // G115: dimensions are non-negative
			uint32(ceilDiv(m, matmulTile)), //nolint:gosec // G115: dimensions are non-negative
			1,
		},
	})
}
