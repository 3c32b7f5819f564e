package cpu

import (
	"context"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

func newBackend(t *testing.T) (*tensor.Arena, *Backend) {
	t.Helper()
	arena := tensor.NewArena()
	be := New(arena)
	t.Cleanup(func() { _ = be.Dispose() })
	return arena, be
}

// makeArr registers and fills a handle from a typed host buffer.
func makeArr(t *testing.T, arena *tensor.Arena, be *Backend, shape tensor.Shape, values *tensor.HostBuffer) *tensor.NDArray {
	t.Helper()
	arr, err := arena.Make(shape, values.DType())
	require.NoError(t, err)
	require.NoError(t, be.Register(arr.DataID(), shape, values.DType()))
	require.NoError(t, be.Write(arr.DataID(), values))
	return arr
}

func makeF32(t *testing.T, arena *tensor.Arena, be *Backend, shape tensor.Shape, values []float32) *tensor.NDArray {
	t.Helper()
	return makeArr(t, arena, be, shape, tensor.FromFloat32(values))
}

func f32Of(t *testing.T, be *Backend, arr *tensor.NDArray) []float32 {
	t.Helper()
	buf, err := be.ReadSync(arr.DataID())
	require.NoError(t, err)
	return buf.AsFloat32()
}

func assertFloats(t *testing.T, want, got []float32, tol float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math32.Abs(want[i]-got[i]) > tol {
			t.Fatalf("element %d: got %v, want %v (full: got %v, want %v)", i, got[i], want[i], got, want)
		}
	}
}

func TestRegisterLifecycle(t *testing.T) {
	arena, be := newBackend(t)

	arr, err := arena.Make(tensor.Shape{2, 2}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, be.Register(arr.DataID(), arr.Shape(), arr.DType()))

	// Double registration is an error.
	require.Error(t, be.Register(arr.DataID(), arr.Shape(), arr.DType()))

	// Reads before the first write fail.
	_, err = be.ReadSync(arr.DataID())
	require.Error(t, err)

	require.NoError(t, be.Write(arr.DataID(), tensor.FromFloat32([]float32{1, 2, 3, 4})))
	buf, err := be.ReadSync(arr.DataID())
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, buf.Float32s())

	require.NoError(t, be.DisposeData(arr.DataID()))
	_, err = be.ReadSync(arr.DataID())
	require.Error(t, err)
	require.Error(t, be.DisposeData(arr.DataID()))
}

func TestWriteLengthMismatch(t *testing.T) {
	arena, be := newBackend(t)

	arr, err := arena.Make(tensor.Shape{3}, tensor.Float32)
	require.NoError(t, err)
	require.NoError(t, be.Register(arr.DataID(), arr.Shape(), arr.DType()))
	require.Error(t, be.Write(arr.DataID(), tensor.FromFloat32([]float32{1, 2})))
}

func TestReadHonorsContext(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{2}, []float32{1, 2})

	buf, err := be.Read(context.Background(), x.DataID())
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, buf.Float32s())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = be.Read(ctx, x.DataID())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCloneIsIndependent(t *testing.T) {
	arena, be := newBackend(t)
	x := makeF32(t, arena, be, tensor.Shape{3}, []float32{1, 2, 3})

	y, err := be.Clone(x)
	require.NoError(t, err)
	require.NotEqual(t, x.DataID(), y.DataID())
	assertFloats(t, []float32{1, 2, 3}, f32Of(t, be, y), 0)

	// Rewriting the source must not leak into the clone.
	require.NoError(t, be.Write(x.DataID(), tensor.FromFloat32([]float32{9, 9, 9})))
	assertFloats(t, []float32{1, 2, 3}, f32Of(t, be, y), 0)
}

func TestTimeReportsDuration(t *testing.T) {
	_, be := newBackend(t)

	d, err := be.Time(func() error { return nil })
	require.NoError(t, err)
	require.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
}
