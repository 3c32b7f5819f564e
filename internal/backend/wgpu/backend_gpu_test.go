package wgpu

import (
	"context"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/require"

	"github.com/flare-ml/flare/internal/tensor"
)

// newGPU acquires a backend over the real adapter, skipping the test when no
// device is present.
func newGPU(t *testing.T, opts ...Option) (*tensor.Arena, *Backend) {
	t.Helper()
	if !IsAvailable() {
		t.Skip("no WebGPU adapter")
	}
	arena := tensor.NewArena()
	be, err := New(arena, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = be.Dispose() })
	return arena, be
}

func gpuArr(t *testing.T, arena *tensor.Arena, be *Backend, shape tensor.Shape, values *tensor.HostBuffer) *tensor.NDArray {
	t.Helper()
	arr, err := arena.Make(shape, values.DType())
	require.NoError(t, err)
	require.NoError(t, be.Register(arr.DataID(), shape, values.DType()))
	require.NoError(t, be.Write(arr.DataID(), values))
	return arr
}

func gpuF32(t *testing.T, arena *tensor.Arena, be *Backend, shape tensor.Shape, values []float32) *tensor.NDArray {
	t.Helper()
	return gpuArr(t, arena, be, shape, tensor.FromFloat32(values))
}

func gpuValues(t *testing.T, be *Backend, arr *tensor.NDArray) []float32 {
	t.Helper()
	buf, err := be.ReadSync(arr.DataID())
	require.NoError(t, err)
	return buf.AsFloat32()
}

func requireFloats(t *testing.T, want, got []float32, tol float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math32.Abs(want[i]-got[i]) > tol {
			t.Fatalf("element %d: got %v, want %v (full: got %v, want %v)", i, got[i], want[i], got, want)
		}
	}
}

func TestGPUUploadIdempotent(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, 2, 3, 4})

	rec1, err := be.ensureDevice(x.DataID())
	require.NoError(t, err)
	outstanding := be.Pool().NumOutstanding()

	// Re-reconciling an already device-resident array allocates nothing.
	rec2, err := be.ensureDevice(x.DataID())
	require.NoError(t, err)
	require.Same(t, rec1.device, rec2.device)
	require.Equal(t, outstanding, be.Pool().NumOutstanding())
}

func TestGPUProgramCacheReuse(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{8}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	y := gpuF32(t, arena, be, tensor.Shape{8}, []float32{8, 7, 6, 5, 4, 3, 2, 1})

	_, err := be.Add(x, y)
	require.NoError(t, err)
	compiled := be.Programs().Size()

	// Same kind and operand signature must not recompile.
	_, err = be.Add(y, x)
	require.NoError(t, err)
	require.Equal(t, compiled, be.Programs().Size())

	// A different operand shape is a different program.
	a := gpuF32(t, arena, be, tensor.Shape{2, 4}, make([]float32, 8))
	_, err = be.Add(a, a)
	require.NoError(t, err)
	require.Equal(t, compiled+1, be.Programs().Size())
}

func TestGPUArithmetic(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, -2, 3, 4})
	y := gpuF32(t, arena, be, tensor.Shape{4}, []float32{2, 2, 2, 0.5})

	out, err := be.Add(x, y)
	require.NoError(t, err)
	requireFloats(t, []float32{3, 0, 5, 4.5}, gpuValues(t, be, out), 1e-6)

	out, err = be.Mul(x, y)
	require.NoError(t, err)
	requireFloats(t, []float32{2, -4, 6, 2}, gpuValues(t, be, out), 1e-6)

	out, err = be.Relu(x)
	require.NoError(t, err)
	requireFloats(t, []float32{1, 0, 3, 4}, gpuValues(t, be, out), 0)
}

func TestGPUMatMul(t *testing.T) {
	arena, be := newGPU(t)
	a := gpuF32(t, arena, be, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := gpuF32(t, arena, be, tensor.Shape{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	c, err := be.MatMul(a, b)
	require.NoError(t, err)
	requireFloats(t, []float32{58, 64, 139, 154}, gpuValues(t, be, c), 1e-3)
}

func TestGPUReduction(t *testing.T) {
	arena, be := newGPU(t)

	// Wide enough to force several windowed passes.
	const width = 300
	values := make([]float32, 2*width)
	var row0, row1 float32
	for i := 0; i < width; i++ {
		values[i] = float32(i % 17)
		row0 += values[i]
		values[width+i] = float32(i % 5)
		row1 += values[width+i]
	}
	x := gpuF32(t, arena, be, tensor.Shape{2, width}, values)

	out, err := be.Sum(x, []int{1})
	require.NoError(t, err)
	requireFloats(t, []float32{row0, row1}, gpuValues(t, be, out), 1e-2)

	out, err = be.Max(x, []int{1})
	require.NoError(t, err)
	requireFloats(t, []float32{16, 4}, gpuValues(t, be, out), 0)
}

func TestGPUArgMaxTieKeepsFirst(t *testing.T) {
	arena, be := newGPU(t)

	values := make([]float32, 100)
	values[13] = 5
	values[57] = 5
	x := gpuF32(t, arena, be, tensor.Shape{1, 100}, values)

	out, err := be.ArgMax(x, []int{1})
	require.NoError(t, err)
	require.Equal(t, tensor.Int32, out.DType())
	requireFloats(t, []float32{13}, gpuValues(t, be, out), 0)
}

func TestGPUPoolRoundTrip(t *testing.T) {
	arena, be := newGPU(t, WithPolicy(KeepOnDevice))
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, 2, 3, 4})

	_, err := be.ensureDevice(x.DataID())
	require.NoError(t, err)
	outstanding := be.Pool().NumOutstanding()
	free := be.Pool().NumFree()

	require.NoError(t, be.DisposeData(x.DataID()))
	require.Equal(t, outstanding-1, be.Pool().NumOutstanding())
	require.Equal(t, free+1, be.Pool().NumFree())

	// The freed block is recycled for the next same-shape array.
	hits, _, _ := be.Pool().Stats()
	y := gpuF32(t, arena, be, tensor.Shape{4}, []float32{5, 6, 7, 8})
	_, err = be.ensureDevice(y.DataID())
	require.NoError(t, err)
	hitsAfter, _, _ := be.Pool().Stats()
	require.Equal(t, hits+1, hitsAfter)
	requireFloats(t, []float32{5, 6, 7, 8}, gpuValues(t, be, y), 0)
}

func TestGPUDisposeData(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, 2, 3, 4})

	require.NoError(t, be.DisposeData(x.DataID()))
	_, err := be.ReadSync(x.DataID())
	require.Error(t, err)
	_, err = be.Neg(x)
	require.Error(t, err)
	require.Error(t, be.DisposeData(x.DataID()))
}

func TestGPUReadConsistency(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{3}, []float32{1, 2, 3})

	out, err := be.Add(x, x)
	require.NoError(t, err)

	sync := gpuValues(t, be, out)
	async, err := be.Read(context.Background(), out.DataID())
	require.NoError(t, err)
	require.Equal(t, sync, async.AsFloat32())
}

func TestGPUKeepOnDevicePolicy(t *testing.T) {
	arena, be := newGPU(t, WithPolicy(KeepOnDevice))
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, 2, 3, 4})

	_, err := be.ensureDevice(x.DataID())
	require.NoError(t, err)
	outstanding := be.Pool().NumOutstanding()

	_ = gpuValues(t, be, x)
	require.Equal(t, outstanding, be.Pool().NumOutstanding())
}

func TestGPUMinimizeMemoryPolicy(t *testing.T) {
	arena, be := newGPU(t, WithPolicy(MinimizeMemory))
	x := gpuF32(t, arena, be, tensor.Shape{4}, []float32{1, 2, 3, 4})

	_, err := be.ensureDevice(x.DataID())
	require.NoError(t, err)
	outstanding := be.Pool().NumOutstanding()

	// A host read hands the device block back to the pool.
	_ = gpuValues(t, be, x)
	require.Equal(t, outstanding-1, be.Pool().NumOutstanding())

	// The cached host copy stays authoritative.
	requireFloats(t, []float32{1, 2, 3, 4}, gpuValues(t, be, x), 0)
}

func TestGPUCloneIsIndependent(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{3}, []float32{1, 2, 3})

	y, err := be.Clone(x)
	require.NoError(t, err)
	require.NotEqual(t, x.DataID(), y.DataID())

	require.NoError(t, be.Write(x.DataID(), tensor.FromFloat32([]float32{9, 9, 9})))
	requireFloats(t, []float32{1, 2, 3}, gpuValues(t, be, y), 0)
}

func TestGPUTimeScope(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{64}, make([]float32, 64))

	d, err := be.Time(func() error {
		_, err := be.Add(x, x)
		return err
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
}

func TestGPUTimeScopeNesting(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{256}, make([]float32, 256))

	var inner time.Duration
	outer, err := be.Time(func() error {
		if _, err := be.Add(x, x); err != nil {
			return err
		}
		var err error
		inner, err = be.Time(func() error {
			_, err := be.Mul(x, x)
			return err
		})
		return err
	})
	require.NoError(t, err)
	// The inner scope's total folds into its parent.
	require.GreaterOrEqual(t, outer, inner)
}

func TestGPUDeviceRoundTrip(t *testing.T) {
	arena, be := newGPU(t)
	x := gpuF32(t, arena, be, tensor.Shape{5}, []float32{1, 2, 3, 4, 5})

	// Clone copies device-to-device, so the result has no host cache and the
	// read must come back through the staging download.
	y, err := be.Clone(x)
	require.NoError(t, err)
	requireFloats(t, []float32{1, 2, 3, 4, 5}, gpuValues(t, be, y), 0)
}

func TestGPUDisposeReleasesAllBlocks(t *testing.T) {
	arena, be := newGPU(t, WithPolicy(KeepOnDevice))
	x := gpuF32(t, arena, be, tensor.Shape{8}, make([]float32, 8))
	y := gpuF32(t, arena, be, tensor.Shape{8}, make([]float32, 8))

	out, err := be.Add(x, y)
	require.NoError(t, err)
	// One block back on the free list, the inputs still outstanding.
	require.NoError(t, be.DisposeData(out.DataID()))
	require.Greater(t, be.Pool().NumOutstanding(), 0)
	require.Greater(t, be.Pool().NumFree(), 0)

	require.NoError(t, be.Dispose())
	require.Equal(t, 0, be.Pool().NumOutstanding())
	require.Equal(t, 0, be.Pool().NumFree())

	_, err = be.Pool().Acquire(tensor.Shape{1, 8}, KindStorage)
	require.Error(t, err)
}
