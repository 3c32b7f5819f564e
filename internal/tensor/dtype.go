// Package tensor provides the core shape, dtype and handle types shared by
// all flare compute backends.
package tensor

// DataType represents the element encoding of a tensor.
type DataType int

// Supported element encodings.
const (
	Float32 DataType = iota
	Int32
	Uint8
	Bool
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// rank orders encodings from narrowest to widest for binary-op promotion.
func (dt DataType) rank() int {
	switch dt {
	case Bool:
		return 0
	case Uint8:
		return 1
	case Int32:
		return 2
	case Float32:
		return 3
	default:
		panic("unknown data type")
	}
}

// Upcast returns the result encoding for a binary arithmetic operation.
// Mixing a narrower and a wider numeric kind yields the wider kind.
// Comparison and logical operations always yield Bool and do not consult
// this table.
func Upcast(a, b DataType) DataType {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}
