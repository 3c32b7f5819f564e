package wgpu

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/envconfig"
	"github.com/flare-ml/flare/internal/tensor"
	"github.com/rs/zerolog"
)

// Backend is the WebGPU implementation of backend.Backend: a dispatcher that
// lowers tensor operations to WGSL compute programs running against one
// persistent device context.
//
// A Backend is driven from a single logical thread. Readback completions are
// the only concurrent activity and touch no dispatcher state.
type Backend struct {
	arena    *tensor.Arena
	ctx      *Context
	pool     *TexturePool
	programs *ProgramCache
	policy   Policy
	log      zerolog.Logger

	records map[tensor.DataID]*residencyRecord
	timers  []*timerScope

	disposed bool
}

var _ backend.Backend = (*Backend)(nil)

// Option configures a Backend at construction.
type Option func(*Backend)

// WithPolicy overrides the residency policy applied after host reads.
func WithPolicy(p Policy) Option {
	return func(b *Backend) { b.policy = p }
}

// WithLogger overrides the backend logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

// New acquires a device context and creates a WebGPU backend allocating
// output arrays from arena. Fails when no adapter is available or the
// adapter does not meet FLARE_MIN_DEVICE_VERSION.
func New(arena *tensor.Arena, opts ...Option) (*Backend, error) {
	flags := envconfig.Get()
	log := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("backend", "webgpu").
		Logger().
		Level(flags.ZerologLevel())

	b := &Backend{
		arena:   arena,
		policy:  MinimizeMemory,
		log:     log,
		records: make(map[tensor.DataID]*residencyRecord),
	}
	for _, opt := range opts {
		opt(b)
	}

	ctx, err := NewContext(b.log)
	if err != nil {
		return nil, err
	}
	b.ctx = ctx
	b.pool = NewTexturePool(ctx)
	b.programs = NewProgramCache(ctx)
	return b, nil
}

// Name returns the backend name.
func (b *Backend) Name() string { return "WebGPU" }

// Device returns the backend's device kind.
func (b *Backend) Device() backend.Device { return backend.WebGPU }

// Dispose tears down every residency record, the program cache, the block
// pool and the device context, in that order. Idempotent.
func (b *Backend) Dispose() error {
	if b.disposed {
		return nil
	}
	b.disposed = true

	b.ctx.RunBarrier()
	for id, rec := range b.records {
		// The pool frees the attached blocks below; only detach here.
		rec.device = nil
		delete(b.records, id)
		residentArrays.Dec()
	}
	b.records = nil

	b.programs.Dispose()
	b.pool.Dispose()
	b.ctx.Dispose()
	return nil
}

// Pool exposes the block pool, for inspection.
func (b *Backend) Pool() *TexturePool { return b.pool }

// Programs exposes the program cache, for inspection.
func (b *Backend) Programs() *ProgramCache { return b.programs }

// newOutput allocates a fresh array, registers it and attaches a device
// block. The block's content is undefined until a program writes it.
func (b *Backend) newOutput(shape tensor.Shape, dtype tensor.DataType) (*tensor.NDArray, *residencyRecord, error) {
	out, err := b.arena.Make(shape, dtype)
	if err != nil {
		return nil, nil, err
	}
	if err := b.Register(out.DataID(), shape, dtype); err != nil {
		return nil, nil, err
	}
	rec := b.records[out.DataID()]
	rec.devShape = packedShape(shape)
	rec.kind = KindStorage
	block, err := b.pool.Acquire(rec.devShape, rec.kind)
	if err != nil {
		_ = b.DisposeData(out.DataID())
		return nil, nil, err
	}
	rec.device = block
	return out, rec, nil
}

// hostOutput allocates a fresh array whose values start host-resident.
func (b *Backend) hostOutput(shape tensor.Shape, dtype tensor.DataType, values []float32) (*tensor.NDArray, error) {
	out, err := b.arena.Make(shape, dtype)
	if err != nil {
		return nil, err
	}
	if err := b.Register(out.DataID(), shape, dtype); err != nil {
		return nil, err
	}
	if err := b.Write(out.DataID(), tensor.HostFromFloat32(values, dtype)); err != nil {
		return nil, err
	}
	return out, nil
}

// Clone copies an array into a newly registered handle via a device-to-device
// copy; host data is uploaded first if the source is not resident.
func (b *Backend) Clone(x *tensor.NDArray) (*tensor.NDArray, error) {
	src, err := b.ensureDevice(x.DataID())
	if err != nil {
		return nil, err
	}
	out, dst, err := b.newOutput(x.Shape(), x.DType())
	if err != nil {
		return nil, err
	}
	if err := b.ctx.CopyBuffer(src.device, dst.device, blockBytes(dst.devShape)); err != nil {
		_ = b.DisposeData(out.DataID())
		return nil, err
	}
	return out, nil
}

//nolint:gosec // G103: zero-copy reinterpretation of numeric slices
func float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}

//nolint:gosec // G103: zero-copy reinterpretation of numeric slices
func bytesFloat32(data []byte, n int) []float32 {
	out := make([]float32, n)
	if n == 0 || len(data) == 0 {
		return out
	}
	copy(out, unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), n))
	return out
}

// checkSameShape is the shared precondition of element-wise binary ops.
func checkSameShape(op string, a, b *tensor.NDArray) error {
	if !a.Shape().Equal(b.Shape()) {
		return fmt.Errorf("wgpu: %s shape mismatch: %v vs %v", op, a.Shape(), b.Shape())
	}
	return nil
}
