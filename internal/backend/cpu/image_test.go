package cpu

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

func TestResizeBilinearUpscale(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{1, 2, 2, 1}, []float32{
		0, 2,
		4, 6,
	})

	out, err := be.ResizeBilinear(x, 3, 3, true)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 3, 3, 1}))
	// alignCorners maps corners exactly; interior points interpolate.
	assertFloats(t, []float32{
		0, 1, 2,
		2, 3, 4,
		4, 5, 6,
	}, f32Of(t, be, out), 1e-5)
}

func TestResizeBilinearHalfPixel(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{1, 2, 2, 1}, []float32{
		0, 2,
		4, 6,
	})

	out, err := be.ResizeBilinear(x, 4, 4, false)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 4, 4, 1}))

	// Without alignCorners scale = in/out = 0.5; src = oy*0.5.
	got := f32Of(t, be, out)
	assertFloats(t, []float32{0, 1, 2, 2}, got[:4], 1e-5)
	assertFloats(t, []float32{4, 5, 6, 6}, got[12:], 1e-5)
}

func TestResizeBilinearIdentity(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{1, 2, 3, 2}, []float32{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
	})

	out, err := be.ResizeBilinear(x, 2, 3, false)
	require.NoError(t, err)
	assertFloats(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, f32Of(t, be, out), 0)
}

func TestResizeBilinearRejects(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2, 2}, make([]float32, 4))

	_, err := be.ResizeBilinear(x, 4, 4, false)
	require.Error(t, err)

	y := makeF32(t, arena, be, tensor.Shape{1, 2, 2, 1}, make([]float32, 4))
	_, err = be.ResizeBilinear(y, 0, 4, false)
	require.Error(t, err)
}

func TestFromPixels(t *testing.T) {
	_, be := newBackend(t)

	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 128, B: 0, A: 255})
	img.Set(1, 0, color.RGBA{R: 0, G: 64, B: 32, A: 255})

	out, err := be.FromPixels(img, 3)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{1, 2, 3}))
	require.Equal(t, tensor.Uint8, out.DType())

	buf, err := be.ReadSync(out.DataID())
	require.NoError(t, err)
	require.Equal(t, []uint8{255, 128, 0, 0, 64, 32}, buf.Uint8s())

	_, err = be.FromPixels(nil, 3)
	require.Error(t, err)
	_, err = be.FromPixels(img, 5)
	require.Error(t, err)
}
