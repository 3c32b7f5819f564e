package tensor

import (
	"fmt"
	"sync"
)

// DataID is the opaque identity of one logical tensor. The low 32 bits index
// a slot in the issuing Arena, the high 32 bits carry that slot's generation
// so a recycled slot never validates a stale handle.
type DataID uint64

func makeDataID(index, generation uint32) DataID {
	return DataID(uint64(generation)<<32 | uint64(index))
}

func (id DataID) index() uint32      { return uint32(id) }
func (id DataID) generation() uint32 { return uint32(id >> 32) }

// String formats the handle for error messages.
func (id DataID) String() string {
	return fmt.Sprintf("%d", uint64(id))
}

// NDArray is one logical tensor as seen by callers: a handle plus immutable
// shape and dtype metadata. Where its data currently lives is the backend's
// business, keyed by DataID.
type NDArray struct {
	id    DataID
	shape Shape
	dtype DataType
}

// DataID returns the array's handle.
func (a *NDArray) DataID() DataID { return a.id }

// Shape returns the array's logical shape.
func (a *NDArray) Shape() Shape { return a.shape }

// DType returns the array's element encoding.
func (a *NDArray) DType() DataType { return a.dtype }

// NumElements returns the total element count.
func (a *NDArray) NumElements() int { return a.shape.NumElements() }

type arenaSlot struct {
	generation uint32
	live       bool
}

// Arena issues array handles. It is the single allocation authority:
// backends never mint handles, they only attach per-handle state.
type Arena struct {
	mu    sync.Mutex
	slots []arenaSlot
	free  []uint32
}

// NewArena creates an empty handle arena.
func NewArena() *Arena {
	return &Arena{}
}

// Make allocates a new logical array with the given shape and dtype.
func (ar *Arena) Make(shape Shape, dtype DataType) (*NDArray, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("arena: invalid shape: %w", err)
	}

	ar.mu.Lock()
	defer ar.mu.Unlock()

	var index uint32
	if n := len(ar.free); n > 0 {
		index = ar.free[n-1]
		ar.free = ar.free[:n-1]
		ar.slots[index].live = true
	} else {
		index = uint32(len(ar.slots)) //nolint:gosec // G115: slot count bounded by live arrays
		ar.slots = append(ar.slots, arenaSlot{live: true})
	}

	return &NDArray{
		id:    makeDataID(index, ar.slots[index].generation),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// Live reports whether the handle refers to a currently allocated array.
func (ar *Arena) Live(id DataID) bool {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	idx := id.index()
	if int(idx) >= len(ar.slots) {
		return false
	}
	slot := ar.slots[idx]
	return slot.live && slot.generation == id.generation()
}

// Dispose retires the handle. The slot's generation is bumped so any retained
// copy of the handle fails liveness checks from now on.
func (ar *Arena) Dispose(id DataID) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	idx := id.index()
	if int(idx) >= len(ar.slots) || !ar.slots[idx].live || ar.slots[idx].generation != id.generation() {
		return fmt.Errorf("arena: dispose of unknown or already disposed handle %s", id)
	}
	ar.slots[idx].live = false
	ar.slots[idx].generation++
	ar.free = append(ar.free, idx)
	return nil
}

// LiveCount returns the number of currently allocated arrays.
func (ar *Arena) LiveCount() int {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	n := 0
	for _, s := range ar.slots {
		if s.live {
			n++
		}
	}
	return n
}
