package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

func TestBatchNorm(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 2}, []float32{
		1, 10,
		3, 20,
	})
	mean := makeF32(t, arena, be, tensor.Shape{2}, []float32{2, 15})
	variance := makeF32(t, arena, be, tensor.Shape{2}, []float32{1, 25})

	out, err := be.BatchNorm(x, mean, variance, nil, nil, 0)
	require.NoError(t, err)
	assertFloats(t, []float32{-1, -1, 1, 1}, f32Of(t, be, out), 1e-5)
}

func TestBatchNormScaleOffset(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 1}, []float32{1, 3})
	mean := makeF32(t, arena, be, tensor.Shape{1}, []float32{2})
	variance := makeF32(t, arena, be, tensor.Shape{1}, []float32{4})
	scale := makeF32(t, arena, be, tensor.Shape{1}, []float32{3})
	offset := makeF32(t, arena, be, tensor.Shape{1}, []float32{10})

	out, err := be.BatchNorm(x, mean, variance, scale, offset, 0)
	require.NoError(t, err)
	// (x - 2) / 2 * 3 + 10.
	assertFloats(t, []float32{8.5, 11.5}, f32Of(t, be, out), 1e-5)
}

func TestBatchNormRejects(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 3}, make([]float32, 6))
	short := makeF32(t, arena, be, tensor.Shape{2}, make([]float32, 2))
	ok := makeF32(t, arena, be, tensor.Shape{3}, make([]float32, 3))

	_, err := be.BatchNorm(x, short, ok, nil, nil, 1e-5)
	require.Error(t, err)
	_, err = be.BatchNorm(x, nil, ok, nil, nil, 1e-5)
	require.Error(t, err)
	_, err = be.BatchNorm(x, ok, ok, short, nil, 1e-5)
	require.Error(t, err)
}

func TestMultinomialDeterministic(t *testing.T) {
	arena, be := newBackend(t)
	probs := makeF32(t, arena, be, tensor.Shape{2, 4}, []float32{
		0.1, 0.2, 0.3, 0.4,
		0.7, 0.1, 0.1, 0.1,
	})

	a, err := be.Multinomial(probs, 16, 42)
	require.NoError(t, err)
	require.Equal(t, tensor.Int32, a.DType())
	require.True(t, a.Shape().Equal(tensor.Shape{2, 16}))

	b, err := be.Multinomial(probs, 16, 42)
	require.NoError(t, err)

	av := f32Of(t, be, a)
	bv := f32Of(t, be, b)
	require.Equal(t, av, bv)
	for _, v := range av {
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(4))
	}
}

func TestMultinomialDegenerateMass(t *testing.T) {
	arena, be := newBackend(t)

	// All mass on one outcome forces every draw to that index.
	probs := makeF32(t, arena, be, tensor.Shape{1, 3}, []float32{0, 1, 0})
	out, err := be.Multinomial(probs, 8, 7)
	require.NoError(t, err)
	for _, v := range f32Of(t, be, out) {
		require.Equal(t, float32(1), v)
	}

	zero := makeF32(t, arena, be, tensor.Shape{1, 3}, []float32{0, 0, 0})
	_, err = be.Multinomial(zero, 1, 7)
	require.Error(t, err)

	_, err = be.Multinomial(probs, 0, 7)
	require.Error(t, err)
}
