package cpu

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

func convGeometry(t *testing.T, inShape tensor.Shape, fh, fw, oc, sh, sw int, pad backend.PadMode) backend.ConvInfo {
	t.Helper()
	info, err := backend.ComputeConvInfo(inShape, fh, fw, oc, sh, sw, pad)
	require.NoError(t, err)
	return info
}

func TestConv2DIdentityFilter(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 1, 1, 1, 1, 1, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	filt := makeF32(t, arena, be, info.FilterShape(), []float32{1})

	out, err := be.Conv2D(x, filt, nil, info)
	require.NoError(t, err)
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, f32Of(t, be, out), 0)
}

func TestConv2DBoxFilter(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 2, 2, 1, 1, 1, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	filt := makeF32(t, arena, be, info.FilterShape(), []float32{1, 1, 1, 1})

	out, err := be.Conv2D(x, filt, nil, info)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 2, 1}))
	assertFloats(t, []float32{12, 16, 24, 28}, f32Of(t, be, out), 1e-5)
}

func TestConv2DWithBias(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 2, 2, 1}, 1, 1, 2, 1, 1, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{1, 2, 3, 4})
	filt := makeF32(t, arena, be, info.FilterShape(), []float32{1, -1})
	bias := makeF32(t, arena, be, tensor.Shape{2}, []float32{10, 20})

	out, err := be.Conv2D(x, filt, bias, info)
	require.NoError(t, err)
	assertFloats(t, []float32{11, 19, 12, 18, 13, 17, 14, 16}, f32Of(t, be, out), 1e-5)
}

func TestConv2DSamePadding(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 3, 3, 1, 1, 1, backend.PadSame)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})
	filt := makeF32(t, arena, be, info.FilterShape(), []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	})

	out, err := be.Conv2D(x, filt, nil, info)
	require.NoError(t, err)
	// Same padding zero-fills the border, so corners see 4 taps and edges 6.
	assertFloats(t, []float32{
		4, 6, 4,
		6, 9, 6,
		4, 6, 4,
	}, f32Of(t, be, out), 1e-5)
}

func TestConv2DRejectsShapes(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 2, 2, 1, 1, 1, backend.PadValid)

	wrong := makeF32(t, arena, be, tensor.Shape{1, 4, 4, 1}, make([]float32, 16))
	filt := makeF32(t, arena, be, info.FilterShape(), make([]float32, 4))
	_, err := be.Conv2D(wrong, filt, nil, info)
	require.Error(t, err)

	x := makeF32(t, arena, be, info.InShape(), make([]float32, 9))
	badBias := makeF32(t, arena, be, tensor.Shape{3}, make([]float32, 3))
	_, err = be.Conv2D(x, filt, badBias, info)
	require.Error(t, err)
}

func TestConv2DInputBackward(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 2, 2, 1, 1, 1, backend.PadValid)

	dy := makeF32(t, arena, be, info.OutShape(), []float32{1, 1, 1, 1})
	filt := makeF32(t, arena, be, info.FilterShape(), []float32{1, 1, 1, 1})

	dx, err := be.Conv2DInputBackward(dy, filt, info)
	require.NoError(t, err)
	// Each input cell accumulates one gradient per output window covering it.
	assertFloats(t, []float32{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, f32Of(t, be, dx), 1e-5)
}

func TestConv2DFilterBackward(t *testing.T) {
	arena, be := newBackend(t)
	info := convGeometry(t, tensor.Shape{1, 3, 3, 1}, 2, 2, 1, 1, 1, backend.PadValid)

	x := makeF32(t, arena, be, info.InShape(), []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	})
	dy := makeF32(t, arena, be, info.OutShape(), []float32{1, 1, 1, 1})

	df, err := be.Conv2DFilterBackward(x, dy, info)
	require.NoError(t, err)
	// df[fy][fx] = sum of x over the 2x2 window anchored at (fy, fx).
	assertFloats(t, []float32{12, 16, 24, 28}, f32Of(t, be, df), 1e-5)
}

func TestConv2DBiasBackward(t *testing.T) {
	arena, be := newBackend(t)
	dy := makeF32(t, arena, be, tensor.Shape{1, 2, 2, 2}, []float32{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})

	db, err := be.Conv2DBiasBackward(dy)
	require.NoError(t, err)
	require.True(t, db.Shape().Equal(tensor.Shape{2}))
	assertFloats(t, []float32{10, 100}, f32Of(t, be, db), 1e-5)

	bad := makeF32(t, arena, be, tensor.Shape{2, 2}, make([]float32, 4))
	_, err = be.Conv2DBiasBackward(bad)
	require.Error(t, err)
}
