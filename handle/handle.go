// Package handle implements the resource slot table and cloneable handle
// described in spec §3: dense storage, a free-list of reusable slots, a
// pending-drop queue keyed by frame index, and a per-slot generation counter.
//
// This has no direct analogue in the teacher repo — the teacher holds GPU
// resources directly on BindGroupProvider/Model/Material structs with no
// indirection layer — so it is new code, grounded on the explicit-release
// idiom the teacher uses everywhere else (BindGroupProvider.Release(),
// engine.go's deterministic shutdown) rather than on any one teacher file.
package handle

import "sync"

// Handle identifies a live resource slot: (ID, Generation). Two handles are
// equal iff both fields match. A handle's validity is always resolved
// through the Table it was allocated from; a stale (ID, Generation) pair
// resolves to the zero value and false.
type Handle struct {
	ID         uint32
	Generation uint32
}

// IsZero reports whether h is the unallocated zero Handle.
func (h Handle) IsZero() bool { return h == Handle{} }

type slot[T any] struct {
	generation uint32
	refs       int32
	alive      bool
	value      T
}

type dropEntry struct {
	id         uint32
	frameIndex uint64
}

// Table is a resource slot table for one resource kind (mesh, texture,
// shader, material, or material instance — spec §3). Safe for concurrent
// use: Get/Len take a shared lock, everything else an exclusive one, per
// spec §5's "each guarded by its own mutex; readers take shared locks,
// writers take exclusive locks."
type Table[T any] struct {
	mu          sync.RWMutex
	slots       []slot[T]
	freeList    []uint32
	dropQueue   []dropEntry
	dropLatency uint64
}

// NewTable creates a Table whose slots are freed dropLatency frames after
// their refcount reaches zero (spec §3's "drop_latency").
func NewTable[T any](dropLatency uint64) *Table[T] {
	return &Table[T]{dropLatency: dropLatency}
}

// Create allocates a slot (reusing a freed one when available), stores
// value, and returns a live Handle with an initial refcount of 1.
func (t *Table[T]) Create(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var id uint32
	if n := len(t.freeList); n > 0 {
		id = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.slots[id].value = value
		t.slots[id].alive = true
		t.slots[id].refs = 1
	} else {
		id = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{generation: 1, refs: 1, alive: true, value: value})
	}
	return Handle{ID: id, Generation: t.slots[id].generation}
}

// Get resolves h to its stored value. ok is false when h is stale (its slot
// was reused or is pending drop) or out of range.
func (t *Table[T]) Get(h Handle) (value T, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h.ID) >= len(t.slots) {
		return value, false
	}
	s := &t.slots[h.ID]
	if !s.alive || s.generation != h.Generation {
		return value, false
	}
	return s.value, true
}

// Mutate applies fn to the slot's value in place. Returns false if h is stale.
func (t *Table[T]) Mutate(h Handle, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h.ID) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.ID]
	if !s.alive || s.generation != h.Generation {
		return false
	}
	fn(&s.value)
	return true
}

// Clone increments the slot's refcount, extending its lifetime. Returns
// false if h is already stale.
func (t *Table[T]) Clone(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h.ID) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.ID]
	if !s.alive || s.generation != h.Generation {
		return false
	}
	s.refs++
	return true
}

// Release decrements the slot's refcount. When the count reaches zero the
// slot is enqueued into the pending-drop queue tagged with frameIndex; the
// underlying storage is not reclaimed until Retire observes dropLatency
// frames have elapsed (see Retire). Returns false if h was already stale.
func (t *Table[T]) Release(h Handle, frameIndex uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h.ID) >= len(t.slots) {
		return false
	}
	s := &t.slots[h.ID]
	if !s.alive || s.generation != h.Generation {
		return false
	}
	s.refs--
	if s.refs <= 0 {
		s.alive = false
		t.dropQueue = append(t.dropQueue, dropEntry{id: h.ID, frameIndex: frameIndex})
	}
	return true
}

// Retire processes the pending-drop queue: any slot enqueued at least
// dropLatency frames before currentFrame is freed — pushed onto the
// free-list with its generation bumped — and its last-held value is
// returned to the caller for disposal (e.g. releasing GPU resources). Call
// once per frame from the frame orchestrator (spec §4.13 step 3), strictly
// before any slot reuse in that frame.
func (t *Table[T]) Retire(currentFrame uint64) []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	var retired []T
	remaining := t.dropQueue[:0]
	for _, e := range t.dropQueue {
		if currentFrame >= e.frameIndex+t.dropLatency {
			var zero T
			retired = append(retired, t.slots[e.id].value)
			t.slots[e.id].value = zero
			t.slots[e.id].generation++
			t.freeList = append(t.freeList, e.id)
		} else {
			remaining = append(remaining, e)
		}
	}
	t.dropQueue = remaining
	return retired
}

// Len returns the number of slots ever allocated, including freed ones
// awaiting reuse.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.slots)
}

// PendingDrops returns the number of slots currently queued for deferred
// drop, for diagnostics/tests.
func (t *Table[T]) PendingDrops() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.dropQueue)
}

// Ref is a cloneable handle bound to the Table it was allocated from — the
// concrete realization of spec §3's "(id, generation, owner)" triple, where
// owner is the table itself. Cloning extends the slot's lifetime; releasing
// the last clone queues the slot for deferred drop.
type Ref[T any] struct {
	Handle
	table *Table[T]
}

// NewRef binds an already-allocated Handle to its owning table.
func (t *Table[T]) NewRef(h Handle) Ref[T] {
	return Ref[T]{Handle: h, table: t}
}

// Clone returns a new Ref to the same slot, having incremented its refcount.
func (r Ref[T]) Clone() Ref[T] {
	r.table.Clone(r.Handle)
	return r
}

// Release decrements the slot's refcount, tagging any resulting drop with
// frameIndex.
func (r Ref[T]) Release(frameIndex uint64) {
	r.table.Release(r.Handle, frameIndex)
}

// Get resolves the ref through its owning table.
func (r Ref[T]) Get() (T, bool) {
	return r.table.Get(r.Handle)
}
