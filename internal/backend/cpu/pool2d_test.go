package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

func TestMaxPool(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 4, 4, 1}, 2, 2, 1, 2, 2, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 3, 2, 4,
		5, 6, 8, 7,
		9, 2, 1, 0,
		3, 4, 5, 6,
	})

	out, err := be.MaxPool(x, info)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2, 1}))
	assertFloats(t, []float32{6, 8, 9, 6}, f32Of(t, be, out), 0)
}

func TestAvgPool(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 4, 4, 1}, 2, 2, 1, 2, 2, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 3, 2, 4,
		5, 7, 8, 6,
		8, 2, 2, 0,
		2, 4, 4, 6,
	})

	out, err := be.AvgPool(x, info)
	require.NoError(t, err)
	assertFloats(t, []float32{4, 5, 4, 3}, f32Of(t, be, out), 1e-5)
}

func TestAvgPoolSamePaddingDivisor(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 2, 2, 1, 2, 2, backend.PadSame)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		2, 2, 4,
		2, 2, 4,
		6, 6, 8,
	})

	out, err := be.AvgPool(x, info)
	require.NoError(t, err)
	// Windows that hang over the edge average only the in-bounds elements.
	assertFloats(t, []float32{2, 4, 6, 8}, f32Of(t, be, out), 1e-5)
}

func TestPoolRejectsChannelChange(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 4, 4, 2}, 2, 2, 3, 2, 2, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), make([]float32, 32))
	_, err := be.MaxPool(x, info)
	require.Error(t, err)
}

func TestMaxPoolBackward(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 4, 4, 1}, 2, 2, 1, 2, 2, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 3, 2, 4,
		5, 6, 8, 7,
		9, 2, 1, 0,
		3, 4, 5, 6,
	})
	dy := makeF32(t, arena, be, info.OutShape(), []float32{10, 20, 30, 40})

	dx, err := be.MaxPoolBackward(dy, x, info)
	require.NoError(t, err)
	assertFloats(t, []float32{
		0, 0, 0, 0,
		0, 10, 20, 0,
		30, 0, 0, 0,
		0, 0, 0, 40,
	}, f32Of(t, be, dx), 0)
}

func TestMaxPoolBackwardTieRoutesToFirst(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 2, 2, 1}, 2, 2, 1, 2, 2, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{5, 5, 5, 5})
	dy := makeF32(t, arena, be, info.OutShape(), []float32{8})

	dx, err := be.MaxPoolBackward(dy, x, info)
	require.NoError(t, err)
	assertFloats(t, []float32{8, 0, 0, 0}, f32Of(t, be, dx), 0)
}

func TestAvgPoolBackward(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 4, 4, 1}, 2, 2, 1, 2, 2, backend.PadValid)

	dy := makeF32(t, arena, be, info.OutShape(), []float32{4, 8, 12, 16})

	dx, err := be.AvgPoolBackward(dy, info)
	require.NoError(t, err)
	assertFloats(t, []float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, f32Of(t, be, dx), 1e-5)
}
