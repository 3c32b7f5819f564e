package backend

import (
	"fmt"
	"sort"

	"github.com/flare-ml/flare/internal/tensor"
)

// ReduceView validates reduction axes and flattens the input into a
// [batch, reduceSize] view.
//
// The reduced axes must be the innermost dimensions of the logical shape.
// Reductions over other orderings are handled above this layer by permuting
// the input first; here it is a hard error, not a silent wrong answer.
func ReduceView(shape tensor.Shape, axes []int) (outShape tensor.Shape, batch, reduceSize int, err error) {
	rank := len(shape)
	if len(axes) == 0 || len(axes) > rank {
		return nil, 0, 0, fmt.Errorf("reduce: invalid axes %v for shape %v", axes, shape)
	}

	sorted := append([]int(nil), axes...)
	sort.Ints(sorted)
	for i, axis := range sorted {
		if axis < 0 || axis >= rank {
			return nil, 0, 0, fmt.Errorf("reduce: axis %d out of range for shape %v", axis, shape)
		}
		if want := rank - len(axes) + i; axis != want {
			return nil, 0, 0, fmt.Errorf(
				"reduce: axes %v must be the innermost dimensions of shape %v; permute the input first", axes, shape)
		}
	}

	outShape = shape[:rank-len(axes)].Clone()
	batch = outShape.NumElements()
	reduceSize = 1
	for _, axis := range sorted {
		reduceSize *= shape[axis]
	}
	return outShape, batch, reduceSize, nil
}
