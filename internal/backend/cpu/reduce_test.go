package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

func TestSum(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
	})

	out, err := be.Sum(x, []int{1})
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2}))
	assertFloats(t, []float32{6, 15}, f32Of(t, be, out), 1e-5)
}

func TestSumMultiAxis(t *testing.T) {
	arena, be := newBackend(t)
	values := make([]float32, 24)
	for i := range values {
		values[i] = float32(i)
	}
	x := makeF32(t, arena, be, tensor.Shape{2, 3, 4}, values)

	out, err := be.Sum(x, []int{1, 2})
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2}))
	assertFloats(t, []float32{66, 210}, f32Of(t, be, out), 1e-4)
}

func TestSumBoolCounts(t *testing.T) {
	arena, be := newBackend(t)
	x := makeArr(t, arena, be, tensor.Shape{2, 3},
		tensor.FromBool([]bool{true, false, true, true, true, false}))

	out, err := be.Sum(x, []int{1})
	require.NoError(t, err)
	require.Equal(t, tensor.Int32, out.DType())
	assertFloats(t, []float32{2, 2}, f32Of(t, be, out), 0)
}

func TestMinMax(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 4}, []float32{
		3, -1, 7, 2,
		-5, 9, 0, 4,
	})

	out, err := be.Min(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{-1, -5}, f32Of(t, be, out), 0)

	out, err = be.Max(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{7, 9}, f32Of(t, be, out), 0)
}

func TestArgMinArgMax(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 4}, []float32{
		3, -1, 7, 2,
		-5, 9, 0, 4,
	})

	out, err := be.ArgMin(x, []int{1})
	require.NoError(t, err)
	require.Equal(t, tensor.Int32, out.DType())
	assertFloats(t, []float32{1, 0}, f32Of(t, be, out), 0)

	out, err = be.ArgMax(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{2, 1}, f32Of(t, be, out), 0)
}

func TestArgMaxTieKeepsFirst(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{1, 5}, []float32{2, 7, 7, 7, 1})

	out, err := be.ArgMax(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{1}, f32Of(t, be, out), 0)
}

func TestReduceSingleElement(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3, 1}, []float32{4, 5, 6})

	out, err := be.Sum(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{4, 5, 6}, f32Of(t, be, out), 0)

	out, err = be.ArgMax(x, []int{1})
	require.NoError(t, err)
	assertFloats(t, []float32{0, 0, 0}, f32Of(t, be, out), 0)
}

func TestReduceRejectsOuterAxes(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 3}, make([]float32, 6))

	_, err := be.Sum(x, []int{0})
	require.Error(t, err)
	_, err = be.Sum(x, nil)
	require.Error(t, err)
}
