// Package cpu implements the reference backend: every operation runs on host
// memory in pure Go. It is the ground truth the GPU backend is tested
// against, and the runtime fallback when no adapter is available.
package cpu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flare-ml/flare/internal/backend"
	"github.com/flare-ml/flare/internal/tensor"
)

type record struct {
	shape tensor.Shape
	dtype tensor.DataType
	host  *tensor.HostBuffer // nil until first write
}

// Backend is the CPU implementation of backend.Backend.
type Backend struct {
	arena *tensor.Arena

	mu      sync.Mutex
	records map[tensor.DataID]*record

	disposed bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates a CPU backend allocating output arrays from arena.
func New(arena *tensor.Arena) *Backend {
	return &Backend{
		arena:   arena,
		records: make(map[tensor.DataID]*record),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string { return "CPU" }

// Device returns the backend's device kind.
func (b *Backend) Device() backend.Device { return backend.CPU }

// Register creates the residency record for a handle. Double registration is
// an error.
func (b *Backend) Register(id tensor.DataID, shape tensor.Shape, dtype tensor.DataType) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return fmt.Errorf("cpu: backend is disposed")
	}
	if _, ok := b.records[id]; ok {
		return fmt.Errorf("cpu: handle %s is already registered", id)
	}
	b.records[id] = &record{shape: shape.Clone(), dtype: dtype}
	return nil
}

// Write stores host values for a handle.
func (b *Backend) Write(id tensor.DataID, values *tensor.HostBuffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		return noDataErr(id)
	}
	if values == nil {
		return fmt.Errorf("cpu: nil values written to handle %s", id)
	}
	if values.Len() != rec.shape.NumElements() {
		return fmt.Errorf("cpu: wrote %d values to handle %s of shape %v",
			values.Len(), id, rec.shape)
	}
	rec.host = values
	return nil
}

// ReadSync returns the host values for a handle.
func (b *Backend) ReadSync(id tensor.DataID) (*tensor.HostBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[id]
	if !ok {
		return nil, noDataErr(id)
	}
	if rec.host == nil {
		return nil, fmt.Errorf("cpu: handle %s has no values yet", id)
	}
	return rec.host, nil
}

// Read is the asynchronous read. On CPU the data is already host-resident so
// this only honors context cancellation.
func (b *Backend) Read(ctx context.Context, id tensor.DataID) (*tensor.HostBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.ReadSync(id)
}

// DisposeData retires a handle's residency record. Valid from any
// non-disposed state.
func (b *Backend) DisposeData(id tensor.DataID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.records[id]; !ok {
		return noDataErr(id)
	}
	delete(b.records, id)
	return nil
}

// Time runs f and measures wall-clock duration. The CPU backend has no
// device queue, so wall clock is exact.
func (b *Backend) Time(f func() error) (time.Duration, error) {
	start := time.Now()
	err := f()
	return time.Since(start), err
}

// Dispose drops all residency records. Idempotent.
func (b *Backend) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disposed {
		return nil
	}
	b.records = nil
	b.disposed = true
	return nil
}

func noDataErr(id tensor.DataID) error {
	return fmt.Errorf("cpu: no data for handle %s; it was never registered or already disposed", id)
}

// valuesOf returns the handle's data widened to float32.
func (b *Backend) valuesOf(a *tensor.NDArray) ([]float32, error) {
	buf, err := b.ReadSync(a.DataID())
	if err != nil {
		return nil, err
	}
	return buf.AsFloat32(), nil
}

// newOutput allocates, registers and fills a result array. values are
// narrowed to dtype on write.
func (b *Backend) newOutput(shape tensor.Shape, dtype tensor.DataType, values []float32) (*tensor.NDArray, error) {
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

// Clone copies an array into a newly registered handle.
func (b *Backend) Clone(x *tensor.NDArray) (*tensor.NDArray, error) {
	vals, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	return b.newOutput(x.Shape(), x.DType(), vals)
}
