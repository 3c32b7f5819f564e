package tensor

import (
	"fmt"
	"unsafe"
)

// HostBuffer is a typed host-memory block backing one tensor.
// Backends hand these out on reads and accept them on writes; the raw bytes
// are interpreted according to the buffer's DataType.
type HostBuffer struct {
	data  []byte
	dtype DataType
	n     int
}

// NewHost allocates a zeroed host buffer for n elements of the given type.
func NewHost(n int, dtype DataType) *HostBuffer {
	return &HostBuffer{
		data:  make([]byte, n*dtype.Size()),
		dtype: dtype,
		n:     n,
	}
}

// FromFloat32 wraps a float32 slice in a HostBuffer without copying.
func FromFloat32(values []float32) *HostBuffer {
	if len(values) == 0 {
		return &HostBuffer{dtype: Float32}
	}
	//nolint:gosec // unsafe.Slice for zero-copy reinterpretation, length preserved
	data := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	return &HostBuffer{data: data, dtype: Float32, n: len(values)}
}

// FromInt32 wraps an int32 slice in a HostBuffer without copying.
func FromInt32(values []int32) *HostBuffer {
	if len(values) == 0 {
		return &HostBuffer{dtype: Int32}
	}
	//nolint:gosec // unsafe.Slice for zero-copy reinterpretation, length preserved
	data := unsafe.Slice((*byte)(unsafe.Pointer(&values[0])), len(values)*4)
	return &HostBuffer{data: data, dtype: Int32, n: len(values)}
}

// FromUint8 wraps a byte slice in a HostBuffer without copying.
func FromUint8(values []uint8) *HostBuffer {
	return &HostBuffer{data: values, dtype: Uint8, n: len(values)}
}

// FromBool packs a bool slice into a HostBuffer.
func FromBool(values []bool) *HostBuffer {
	buf := NewHost(len(values), Bool)
	for i, v := range values {
		if v {
			buf.data[i] = 1
		}
	}
	return buf
}

// DType returns the buffer's element encoding.
func (h *HostBuffer) DType() DataType { return h.dtype }

// Len returns the number of elements.
func (h *HostBuffer) Len() int { return h.n }

// Bytes returns the raw backing bytes.
func (h *HostBuffer) Bytes() []byte { return h.data }

// Float32s interprets the data as []float32.
// Panics if the buffer's dtype is not Float32.
func (h *HostBuffer) Float32s() []float32 {
	if h.dtype != Float32 {
		panic(fmt.Sprintf("host buffer dtype is %s, not float32", h.dtype))
	}
	if h.n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by n
	return unsafe.Slice((*float32)(unsafe.Pointer(&h.data[0])), h.n)
}

// Int32s interprets the data as []int32.
// Panics if the buffer's dtype is not Int32.
func (h *HostBuffer) Int32s() []int32 {
	if h.dtype != Int32 {
		panic(fmt.Sprintf("host buffer dtype is %s, not int32", h.dtype))
	}
	if h.n == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by n
	return unsafe.Slice((*int32)(unsafe.Pointer(&h.data[0])), h.n)
}

// Uint8s interprets the data as []uint8.
// Panics if the buffer's dtype is not Uint8.
func (h *HostBuffer) Uint8s() []uint8 {
	if h.dtype != Uint8 {
		panic(fmt.Sprintf("host buffer dtype is %s, not uint8", h.dtype))
	}
	return h.data
}

// Bools interprets the data as []bool.
// Panics if the buffer's dtype is not Bool.
func (h *HostBuffer) Bools() []bool {
	if h.dtype != Bool {
		panic(fmt.Sprintf("host buffer dtype is %s, not bool", h.dtype))
	}
	out := make([]bool, h.n)
	for i := range out {
		out[i] = h.data[i] != 0
	}
	return out
}

// AsFloat32 converts the buffer contents to float32 regardless of encoding.
// Device transfers move everything as float32; this is the widening step.
func (h *HostBuffer) AsFloat32() []float32 {
	switch h.dtype {
	case Float32:
		out := make([]float32, h.n)
		copy(out, h.Float32s())
		return out
	case Int32:
		src := h.Int32s()
		out := make([]float32, h.n)
		for i, v := range src {
			out[i] = float32(v)
		}
		return out
	case Uint8, Bool:
		out := make([]float32, h.n)
		for i := 0; i < h.n; i++ {
			out[i] = float32(h.data[i])
		}
		return out
	default:
		panic("unknown data type")
	}
}

// HostFromFloat32 narrows float32 values back into a buffer of the given
// encoding. The inverse of AsFloat32 for device downloads.
func HostFromFloat32(values []float32, dtype DataType) *HostBuffer {
	switch dtype {
	case Float32:
		out := make([]float32, len(values))
		copy(out, values)
		return FromFloat32(out)
	case Int32:
		out := make([]int32, len(values))
		for i, v := range values {
			out[i] = int32(v)
		}
		return FromInt32(out)
	case Uint8:
		out := make([]uint8, len(values))
		for i, v := range values {
			out[i] = uint8(v)
		}
		return FromUint8(out)
	case Bool:
		buf := NewHost(len(values), Bool)
		for i, v := range values {
			if v != 0 {
				buf.data[i] = 1
			}
		}
		return buf
	default:
		panic("unknown data type")
	}
}

// Clone returns a deep copy of the buffer.
func (h *HostBuffer) Clone() *HostBuffer {
	out := NewHost(h.n, h.dtype)
	copy(out.data, h.data)
	return out
}
