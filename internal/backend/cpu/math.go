package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/flare-ml/flare/internal/tensor"
)

// binaryOp applies f element-wise over equal-shaped operands and narrows the
// result to the upcast encoding of the two inputs.
func (b *Backend) binaryOp(a, other *tensor.NDArray, f func(x, y float32) float32) (*tensor.NDArray, error) {
	if !a.Shape().Equal(other.Shape()) {
		return nil, fmt.Errorf("cpu: shape mismatch: %v vs %v", a.Shape(), other.Shape())
	}
	av, err := b.valuesOf(a)
	if err != nil {
		return nil, err
	}
	bv, err := b.valuesOf(other)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(av))
	for i := range av {
		out[i] = f(av[i], bv[i])
	}
	return b.newOutput(a.Shape(), tensor.Upcast(a.DType(), other.DType()), out)
}

// compareOp is binaryOp with a Bool result encoding.
func (b *Backend) compareOp(a, other *tensor.NDArray, f func(x, y float32) bool) (*tensor.NDArray, error) {
	return b.binaryOpAs(a, other, tensor.Bool, func(x, y float32) float32 {
		if f(x, y) {
			return 1
		}
		return 0
	})
}

func (b *Backend) binaryOpAs(a, other *tensor.NDArray, dtype tensor.DataType, f func(x, y float32) float32) (*tensor.NDArray, error) {
	if !a.Shape().Equal(other.Shape()) {
		return nil, fmt.Errorf("cpu: shape mismatch: %v vs %v", a.Shape(), other.Shape())
	}
	av, err := b.valuesOf(a)
	if err != nil {
		return nil, err
	}
	bv, err := b.valuesOf(other)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(av))
	for i := range av {
		out[i] = f(av[i], bv[i])
	}
	return b.newOutput(a.Shape(), dtype, out)
}

func (b *Backend) unaryOp(x *tensor.NDArray, dtype tensor.DataType, f func(v float32) float32) (*tensor.NDArray, error) {
	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(xv))
	for i := range xv {
		out[i] = f(xv[i])
	}
	return b.newOutput(x.Shape(), dtype, out)
}

// Add returns a + b element-wise.
func (b *Backend) Add(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b element-wise.
func (b *Backend) Sub(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b element-wise.
func (b *Backend) Mul(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, func(x, y float32) float32 { return x * y })
}

// Div returns a / b element-wise.
func (b *Backend) Div(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, func(x, y float32) float32 { return x / y })
}

// Pow returns a ** b element-wise.
func (b *Backend) Pow(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, math32.Pow)
}

// Maximum returns max(a, b) element-wise.
func (b *Backend) Maximum(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, math32.Max)
}

// Minimum returns min(a, b) element-wise.
func (b *Backend) Minimum(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.binaryOp(a, other, math32.Min)
}

// Neg returns -x.
func (b *Backend) Neg(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, x.DType(), func(v float32) float32 { return -v })
}

// Exp returns e**x.
func (b *Backend) Exp(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, tensor.Float32, math32.Exp)
}

// Log returns the natural logarithm of x.
func (b *Backend) Log(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, tensor.Float32, math32.Log)
}

// Sqrt returns the square root of x.
func (b *Backend) Sqrt(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, tensor.Float32, math32.Sqrt)
}

// Abs returns |x|.
func (b *Backend) Abs(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, x.DType(), math32.Abs)
}

// Relu returns max(x, 0).
func (b *Backend) Relu(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, x.DType(), func(v float32) float32 { return math32.Max(v, 0) })
}

// Sigmoid returns 1 / (1 + e**-x).
func (b *Backend) Sigmoid(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, tensor.Float32, func(v float32) float32 {
		return 1 / (1 + math32.Exp(-v))
	})
}

// Tanh returns the hyperbolic tangent of x.
func (b *Backend) Tanh(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, tensor.Float32, math32.Tanh)
}

// Floor rounds x down element-wise.
func (b *Backend) Floor(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, x.DType(), math32.Floor)
}

// Ceil rounds x up element-wise.
func (b *Backend) Ceil(x *tensor.NDArray) (*tensor.NDArray, error) {
	return b.unaryOp(x, x.DType(), math32.Ceil)
}

// Clip limits x to [lo, hi].
func (b *Backend) Clip(x *tensor.NDArray, lo, hi float32) (*tensor.NDArray, error) {
	if lo > hi {
		return nil, fmt.Errorf("cpu: clip bounds inverted: lo %v > hi %v", lo, hi)
	}
	return b.unaryOp(x, x.DType(), func(v float32) float32 {
		return math32.Min(math32.Max(v, lo), hi)
	})
}

// Equal returns a == b element-wise as Bool.
func (b *Backend) Equal(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x == y })
}

// NotEqual returns a != b element-wise as Bool.
func (b *Backend) NotEqual(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x != y })
}

// Greater returns a > b element-wise as Bool.
func (b *Backend) Greater(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x > y })
}

// GreaterEqual returns a >= b element-wise as Bool.
func (b *Backend) GreaterEqual(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x >= y })
}

// Less returns a < b element-wise as Bool.
func (b *Backend) Less(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x < y })
}

// LessEqual returns a <= b element-wise as Bool.
func (b *Backend) LessEqual(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	return b.compareOp(a, other, func(x, y float32) bool { return x <= y })
}

// LogicalAnd returns a && b element-wise on Bool operands.
func (b *Backend) LogicalAnd(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	if a.DType() != tensor.Bool || other.DType() != tensor.Bool {
		return nil, fmt.Errorf("cpu: logical op requires bool operands, got %s and %s", a.DType(), other.DType())
	}
	return b.binaryOpAs(a, other, tensor.Bool, func(x, y float32) float32 {
		if x != 0 && y != 0 {
			return 1
		}
		return 0
	})
}

// LogicalOr returns a || b element-wise on Bool operands.
func (b *Backend) LogicalOr(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	if a.DType() != tensor.Bool || other.DType() != tensor.Bool {
		return nil, fmt.Errorf("cpu: logical op requires bool operands, got %s and %s", a.DType(), other.DType())
	}
	return b.binaryOpAs(a, other, tensor.Bool, func(x, y float32) float32 {
		if x != 0 || y != 0 {
			return 1
		}
		return 0
	})
}

// LogicalNot returns !x element-wise on a Bool operand.
func (b *Backend) LogicalNot(x *tensor.NDArray) (*tensor.NDArray, error) {
	if x.DType() != tensor.Bool {
		return nil, fmt.Errorf("cpu: logical op requires bool operand, got %s", x.DType())
	}
	return b.unaryOp(x, tensor.Bool, func(v float32) float32 {
		if v == 0 {
			return 1
		}
		return 0
	})
}
