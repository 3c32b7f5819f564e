package wgpu

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// BlockKind is the element-storage role of a pooled device block.
type BlockKind int

// Supported block kinds.
const (
	// KindStorage blocks back tensor data and program outputs.
	KindStorage BlockKind = iota
	// KindStaging blocks are mappable readback targets.
	KindStaging
)

// String returns a human-readable kind name.
func (k BlockKind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindStaging:
		return "staging"
	default:
		return "unknown"
	}
}

type poolKey struct {
	shape string
	kind  BlockKind
}

// TexturePool recycles fixed-shape device blocks keyed by (allocation shape,
// storage kind). Device allocation is expensive relative to compute, and a
// training loop reissues the same shapes every iteration, so freed blocks go
// back to an exact-match free list instead of the device.
//
// A block is always in exactly one place: a free list here, or attached to
// one live residency record (tracked in outstanding).
type TexturePool struct {
	ctx *Context

	mu          sync.Mutex
	free        map[poolKey][]*wgpu.Buffer
	outstanding map[*wgpu.Buffer]poolKey
	disposed    bool

	// Statistics
	hits      uint64
	misses    uint64
	allocated uint64
}

// NewTexturePool creates an empty pool allocating through ctx.
func NewTexturePool(ctx *Context) *TexturePool {
	return &TexturePool{
		ctx:         ctx,
		free:        make(map[poolKey][]*wgpu.Buffer),
		outstanding: make(map[*wgpu.Buffer]poolKey),
	}
}

func keyFor(shape tensor.Shape, kind BlockKind) poolKey {
	return poolKey{shape: shape.String(), kind: kind}
}

// blockBytes is the device size of a block for the given allocation shape.
// Device blocks always hold float32 elements.
func blockBytes(shape tensor.Shape) uint64 {
	return alignUp(uint64(shape.NumElements())*4, 4) //nolint:gosec // G115: element counts are non-negative
}

// Acquire returns a free block exactly matching (shape, kind), allocating a
// new one from the device context only on a pool miss. Blocks are never
// split or over-allocated.
func (p *TexturePool) Acquire(shape tensor.Shape, kind BlockKind) (*wgpu.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return nil, fmt.Errorf("wgpu: acquire from disposed texture pool")
	}

	key := keyFor(shape, kind)
	if list := p.free[key]; len(list) > 0 {
		block := list[len(list)-1]
		p.free[key] = list[:len(list)-1]
		p.outstanding[block] = key
		p.hits++
		poolHits.Inc()
		poolFreeBlocks.Dec()
		poolOutstandingBlocks.Inc()
		return block, nil
	}

	var block *wgpu.Buffer
	var err error
	switch kind {
	case KindStorage:
		block, err = p.ctx.CreateStorageBuffer(blockBytes(shape))
	case KindStaging:
		block, err = p.ctx.CreateStagingBuffer(blockBytes(shape))
	default:
		return nil, fmt.Errorf("wgpu: unknown block kind %d", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("wgpu: block allocation for shape %v: %w", shape, err)
	}

	p.outstanding[block] = key
	p.misses++
	p.allocated++
	poolMisses.Inc()
	poolOutstandingBlocks.Inc()
	p.ctx.log.Debug().
		Str("shape", shape.String()).
		Str("kind", kind.String()).
		Msg("pool allocated new block")
	return block, nil
}

// Release returns a block to the free list for later reuse. The underlying
// device memory is not freed until pool teardown.
func (p *TexturePool) Release(block *wgpu.Buffer, shape tensor.Shape, kind BlockKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed || block == nil {
		return
	}

	key := keyFor(shape, kind)
	delete(p.outstanding, block)
	p.free[key] = append(p.free[key], block)
	poolFreeBlocks.Inc()
	poolOutstandingBlocks.Dec()
}

// Dispose frees every pooled and outstanding block. Subsequent Acquire calls
// fail.
func (p *TexturePool) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return
	}
	p.disposed = true

	for _, list := range p.free {
		for _, block := range list {
			block.Release()
			poolFreeBlocks.Dec()
		}
	}
	p.free = nil

	for block := range p.outstanding {
		block.Release()
		poolOutstandingBlocks.Dec()
	}
	p.outstanding = nil
}

// NumFree returns the number of free blocks currently pooled.
func (p *TexturePool) NumFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, list := range p.free {
		n += len(list)
	}
	return n
}

// NumOutstanding returns the number of blocks attached to live residency
// records.
func (p *TexturePool) NumOutstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// Stats returns cumulative hit/miss/allocation counts.
func (p *TexturePool) Stats() (hits, misses, allocated uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses, p.allocated
}
