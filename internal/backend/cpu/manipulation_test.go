package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

func TestSlice(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3, 4}, []float32{
		0, 1, 2, 3,
		4, 5, 6, 7,
		8, 9, 10, 11,
	})

	out, err := be.Slice(x, []int{1, 1}, []int{2, 2})
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 2}))
	assertFloats(t, []float32{5, 6, 9, 10}, f32Of(t, be, out), 0)
}

func TestSliceRejects(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3, 4}, make([]float32, 12))

	_, err := be.Slice(x, []int{0}, []int{2})
	require.Error(t, err)
	_, err = be.Slice(x, []int{2, 0}, []int{2, 4})
	require.Error(t, err)
	_, err = be.Slice(x, []int{0, 0}, []int{0, 4})
	require.Error(t, err)
}

func TestConcat(t *testing.T) {
	arena, be := newBackend(t)
	a := makeF32(t, arena, be, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := makeF32(t, arena, be, tensor.Shape{2, 2}, []float32{5, 6, 7, 8})

	out, err := be.Concat(a, b, 0)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{4, 2}))
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, f32Of(t, be, out), 0)

	out, err = be.Concat(a, b, 1)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 4}))
	assertFloats(t, []float32{1, 2, 5, 6, 3, 4, 7, 8}, f32Of(t, be, out), 0)
}

func TestConcatRejects(t *testing.T) {
	arena, be := newBackend(t)
	a := makeF32(t, arena, be, tensor.Shape{2, 2}, make([]float32, 4))
	b := makeF32(t, arena, be, tensor.Shape{2, 3}, make([]float32, 6))

	_, err := be.Concat(a, b, 0)
	require.Error(t, err)
	_, err = be.Concat(a, a, 5)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
	})

	out, err := be.Transpose(x, []int{1, 0})
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{3, 2}))
	assertFloats(t, []float32{1, 4, 2, 5, 3, 6}, f32Of(t, be, out), 0)

	_, err = be.Transpose(x, []int{0, 0})
	require.Error(t, err)
	_, err = be.Transpose(x, []int{0})
	require.Error(t, err)
}

func TestTile(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{1, 2}, []float32{1, 2})

	out, err := be.Tile(x, []int{2, 2})
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 4}))
	assertFloats(t, []float32{1, 2, 1, 2, 1, 2, 1, 2}, f32Of(t, be, out), 0)

	_, err = be.Tile(x, []int{0, 1})
	require.Error(t, err)
}

func TestPad(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})

	out, err := be.Pad(x, [][2]int{{1, 0}, {0, 1}}, 9)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{3, 3}))
	assertFloats(t, []float32{
		9, 9, 9,
		1, 2, 9,
		3, 4, 9,
	}, f32Of(t, be, out), 0)

	_, err = be.Pad(x, [][2]int{{-1, 0}, {0, 0}}, 0)
	require.Error(t, err)
}

func TestGather(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3, 2}, []float32{
		1, 2,
		3, 4,
		5, 6,
	})
	idx := makeArr(t, arena, be, tensor.Shape{4}, tensor.FromInt32([]int32{2, 0, 2, 1}))

	out, err := be.Gather(x, idx, 0)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{4, 2}))
	assertFloats(t, []float32{5, 6, 1, 2, 5, 6, 3, 4}, f32Of(t, be, out), 0)
}

func TestGatherRejects(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3, 2}, make([]float32, 6))

	oob := makeArr(t, arena, be, tensor.Shape{1}, tensor.FromInt32([]int32{3}))
	_, err := be.Gather(x, oob, 0)
	require.ErrorContains(t, err, "out of range")

	f := makeF32(t, arena, be, tensor.Shape{1}, []float32{0})
	_, err = be.Gather(x, f, 0)
	require.Error(t, err)
}

func TestOneHot(t *testing.T) {
	arena, be := newBackend(t)
	idx := makeArr(t, arena, be, tensor.Shape{3}, tensor.FromInt32([]int32{0, 2, 5}))

	out, err := be.OneHot(idx, 3, 1, 0)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{3, 3}))
	// Out-of-depth indices produce an all-off row.
	assertFloats(t, []float32{
		1, 0, 0,
		0, 0, 1,
		0, 0, 0,
	}, f32Of(t, be, out), 0)

	_, err = be.OneHot(idx, 0, 1, 0)
	require.Error(t, err)
}
