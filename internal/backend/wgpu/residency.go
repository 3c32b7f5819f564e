package wgpu

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// Policy controls what happens to an array's device block after a host read
// caches its values.
type Policy int

// Residency policies.
const (
	// MinimizeMemory releases the device block back to the pool as soon as
	// host values are cached. The default.
	MinimizeMemory Policy = iota
	// KeepOnDevice retains the device block alongside the host cache, for
	// read-heavy workloads.
	KeepOnDevice
)

// residencyRecord tracks where one array's data lives. Exactly one of host
// and device is authoritative for reads; both may be valid simultaneously as
// a cache. device is nil before the first upload and after a release.
type residencyRecord struct {
	shape    tensor.Shape
	dtype    tensor.DataType
	host     *tensor.HostBuffer
	device   *wgpu.Buffer
	devShape tensor.Shape // packed allocation shape; may differ from shape
	kind     BlockKind
}

// packedShape maps a logical shape onto the 2D allocation shape device
// blocks are pooled under.
func packedShape(shape tensor.Shape) tensor.Shape {
	n := shape.NumElements()
	cols := 1
	if len(shape) > 0 {
		cols = shape[len(shape)-1]
	}
	if cols <= 0 {
		cols = 1
	}
	return tensor.Shape{n / cols, cols}
}

func (b *Backend) record(id tensor.DataID) (*residencyRecord, error) {
	rec, ok := b.records[id]
	if !ok {
		return nil, fmt.Errorf("wgpu: no data for handle %s; it was never registered or already disposed", id)
	}
	return rec, nil
}

// Register creates the residency record for a handle, initial values null.
// Double registration is an error.
func (b *Backend) Register(id tensor.DataID, shape tensor.Shape, dtype tensor.DataType) error {
	if b.disposed {
		return fmt.Errorf("wgpu: backend is disposed")
	}
	if _, ok := b.records[id]; ok {
		return fmt.Errorf("wgpu: handle %s is already registered", id)
	}
	b.records[id] = &residencyRecord{shape: shape.Clone(), dtype: dtype}
	residentArrays.Inc()
	return nil
}

// Write stores host values for a handle. Any device block becomes stale and
// is returned to the pool; the host copy is authoritative afterwards.
func (b *Backend) Write(id tensor.DataID, values *tensor.HostBuffer) error {
	rec, err := b.record(id)
	if err != nil {
		return err
	}
	if values == nil {
		return fmt.Errorf("wgpu: nil values written to handle %s", id)
	}
	if values.Len() != rec.shape.NumElements() {
		return fmt.Errorf("wgpu: wrote %d values to handle %s of shape %v", values.Len(), id, rec.shape)
	}
	b.releaseDevice(rec)
	rec.host = values
	return nil
}

// ensureDevice makes the handle's data device-resident, uploading stale host
// values if needed. Idempotent: a second call without an intervening write
// acquires nothing.
func (b *Backend) ensureDevice(id tensor.DataID) (*residencyRecord, error) {
	rec, err := b.record(id)
	if err != nil {
		return nil, err
	}
	if rec.device != nil {
		return rec, nil
	}

	rec.devShape = packedShape(rec.shape)
	rec.kind = KindStorage
	block, err := b.pool.Acquire(rec.devShape, rec.kind)
	if err != nil {
		return nil, err
	}
	rec.device = block

	// Device blocks hold widened float32 regardless of logical encoding.
	var values []float32
	if rec.host != nil {
		values = rec.host.AsFloat32()
	} else {
		values = make([]float32, rec.shape.NumElements())
	}
	if err := b.ctx.Upload(block, float32Bytes(values)); err != nil {
		b.pool.Release(block, rec.devShape, rec.kind)
		rec.device = nil
		return nil, err
	}
	return rec, nil
}

// releaseDevice detaches the record's device block, if any, and returns it
// to the pool.
func (b *Backend) releaseDevice(rec *residencyRecord) {
	if rec.device == nil {
		return
	}
	b.pool.Release(rec.device, rec.devShape, rec.kind)
	rec.device = nil
}

// cacheDownloaded narrows downloaded float32 data into the record's host
// cache and applies the residency policy.
func (b *Backend) cacheDownloaded(rec *residencyRecord, values []float32) *tensor.HostBuffer {
	rec.host = tensor.HostFromFloat32(values, rec.dtype)
	if b.policy == MinimizeMemory {
		b.releaseDevice(rec)
	}
	return rec.host
}

// ReadSync returns the handle's values, blocking on queued device work when
// the authoritative copy is device-resident.
func (b *Backend) ReadSync(id tensor.DataID) (*tensor.HostBuffer, error) {
	rec, err := b.record(id)
	if err != nil {
		return nil, err
	}
	if rec.host != nil {
		return rec.host, nil
	}
	if rec.device == nil {
		return nil, fmt.Errorf("wgpu: handle %s has no values yet", id)
	}

	n := rec.shape.NumElements()
	data, err := b.ctx.DownloadSync(rec.device, uint64(n)*4) //nolint:gosec // G115: element counts are non-negative
	if err != nil {
		return nil, err
	}
	return b.cacheDownloaded(rec, bytesFloat32(data, n)), nil
}

// Read is the non-blocking read: it completes when the device signals that
// the work producing this handle's value has retired. Degrades to the
// blocking path when the async download extension is disabled.
func (b *Backend) Read(ctx context.Context, id tensor.DataID) (*tensor.HostBuffer, error) {
	rec, err := b.record(id)
	if err != nil {
		return nil, err
	}
	if rec.host != nil {
		return rec.host, nil
	}
	if rec.device == nil {
		return nil, fmt.Errorf("wgpu: handle %s has no values yet", id)
	}

	n := rec.shape.NumElements()
	ch := b.ctx.DownloadAsync(rec.device, uint64(n)*4) //nolint:gosec // G115: element counts are non-negative
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return b.cacheDownloaded(rec, bytesFloat32(res.data, n)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DisposeData retires a handle's residency record, returning any attached
// device block to the pool first. Valid from any non-disposed state;
// operations on the handle fail afterwards.
func (b *Backend) DisposeData(id tensor.DataID) error {
	rec, err := b.record(id)
	if err != nil {
		return err
	}
	b.releaseDevice(rec)
	delete(b.records, id)
	residentArrays.Dec()
	return nil
}
