// Package backend defines the interface that all flare compute backends
// implement, plus the shared operation geometry helpers.
//
// A backend owns per-handle residency state: callers allocate logical arrays
// through a tensor.Arena, register the handle with one backend, and from then
// on every operation on that handle goes through the same backend. Where the
// data lives at any moment (host, device, or both) is the backend's concern.
package backend

import (
	"context"
	"image"
	"time"

	"github.com/flare-ml/flare/internal/tensor"
)

// Device identifies a compute device kind.
type Device int

// Supported device kinds.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Backend is the full operation contract. Callers hold only this interface;
// the CPU and WebGPU variants are chosen at runtime.
//
// Every operation returns a freshly registered output array. Operations fail
// with an error when a referenced handle is unregistered or disposed, when a
// precondition is violated, or when the backend does not support the path;
// no operation retries internally.
type Backend interface {
	// Residency lifecycle. Register must be called exactly once per handle
	// before any operation references it; DisposeData is terminal.
	Register(id tensor.DataID, shape tensor.Shape, dtype tensor.DataType) error
	Write(id tensor.DataID, values *tensor.HostBuffer) error
	ReadSync(id tensor.DataID) (*tensor.HostBuffer, error)
	Read(ctx context.Context, id tensor.DataID) (*tensor.HostBuffer, error)
	DisposeData(id tensor.DataID) error

	// Element-wise binary arithmetic. Operand encodings promote per the
	// fixed upcast table.
	Add(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Sub(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Mul(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Div(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Pow(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Maximum(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Minimum(a, b *tensor.NDArray) (*tensor.NDArray, error)

	// Element-wise unary.
	Neg(x *tensor.NDArray) (*tensor.NDArray, error)
	Exp(x *tensor.NDArray) (*tensor.NDArray, error)
	Log(x *tensor.NDArray) (*tensor.NDArray, error)
	Sqrt(x *tensor.NDArray) (*tensor.NDArray, error)
	Abs(x *tensor.NDArray) (*tensor.NDArray, error)
	Relu(x *tensor.NDArray) (*tensor.NDArray, error)
	Sigmoid(x *tensor.NDArray) (*tensor.NDArray, error)
	Tanh(x *tensor.NDArray) (*tensor.NDArray, error)
	Floor(x *tensor.NDArray) (*tensor.NDArray, error)
	Ceil(x *tensor.NDArray) (*tensor.NDArray, error)
	Clip(x *tensor.NDArray, lo, hi float32) (*tensor.NDArray, error)

	// Comparisons yield Bool.
	Equal(a, b *tensor.NDArray) (*tensor.NDArray, error)
	NotEqual(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Greater(a, b *tensor.NDArray) (*tensor.NDArray, error)
	GreaterEqual(a, b *tensor.NDArray) (*tensor.NDArray, error)
	Less(a, b *tensor.NDArray) (*tensor.NDArray, error)
	LessEqual(a, b *tensor.NDArray) (*tensor.NDArray, error)

	// Boolean logic on Bool operands.
	LogicalAnd(a, b *tensor.NDArray) (*tensor.NDArray, error)
	LogicalOr(a, b *tensor.NDArray) (*tensor.NDArray, error)
	LogicalNot(x *tensor.NDArray) (*tensor.NDArray, error)

	// Matrix multiplication of 2D operands: [M,K] @ [K,N] -> [M,N].
	MatMul(a, b *tensor.NDArray) (*tensor.NDArray, error)

	// Reductions over the given axes. The reduced axes must be the innermost
	// dimensions of the logical shape; callers permute first if not.
	Sum(x *tensor.NDArray, axes []int) (*tensor.NDArray, error)
	Min(x *tensor.NDArray, axes []int) (*tensor.NDArray, error)
	Max(x *tensor.NDArray, axes []int) (*tensor.NDArray, error)
	ArgMin(x *tensor.NDArray, axes []int) (*tensor.NDArray, error)
	ArgMax(x *tensor.NDArray, axes []int) (*tensor.NDArray, error)

	// Convolution and pooling, NHWC layout. bias may be nil.
	Conv2D(x, filter, bias *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	Conv2DInputBackward(dy, filter *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	Conv2DFilterBackward(x, dy *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	Conv2DBiasBackward(dy *tensor.NDArray) (*tensor.NDArray, error)
	MaxPool(x *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	AvgPool(x *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	MaxPoolBackward(dy, x *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)
	AvgPoolBackward(dy *tensor.NDArray, info ConvInfo) (*tensor.NDArray, error)

	// Normalization. scale and offset may be nil.
	BatchNorm(x, mean, variance, scale, offset *tensor.NDArray, epsilon float32) (*tensor.NDArray, error)

	// Shape and data movement.
	Slice(x *tensor.NDArray, begin, size []int) (*tensor.NDArray, error)
	Concat(a, b *tensor.NDArray, axis int) (*tensor.NDArray, error)
	Transpose(x *tensor.NDArray, perm []int) (*tensor.NDArray, error)
	Tile(x *tensor.NDArray, reps []int) (*tensor.NDArray, error)
	Pad(x *tensor.NDArray, paddings [][2]int, constantValue float32) (*tensor.NDArray, error)
	Gather(x, indices *tensor.NDArray, axis int) (*tensor.NDArray, error)
	OneHot(indices *tensor.NDArray, depth int, onValue, offValue float32) (*tensor.NDArray, error)
	Clone(x *tensor.NDArray) (*tensor.NDArray, error)

	// Sampling and image ops.
	Multinomial(probs *tensor.NDArray, numSamples int, seed int64) (*tensor.NDArray, error)
	ResizeBilinear(x *tensor.NDArray, newHeight, newWidth int, alignCorners bool) (*tensor.NDArray, error)
	FromPixels(img image.Image, numChannels int) (*tensor.NDArray, error)

	// Time runs f and reports how long the programs dispatched inside it
	// spent executing. Scopes nest; a nested scope's total is folded into
	// its parent.
	Time(f func() error) (time.Duration, error)

	// Metadata and teardown.
	Name() string
	Device() Device
	Dispose() error
}
