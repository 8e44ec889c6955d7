// Package bufalloc implements the power-of-two buddy allocator that fronts
// each pooled GPU buffer (one per vertex attribute layout, one shared for
// indices, one shared for meshlets — spec §4.1). It tracks only address
// ranges; callers own the actual backing buffer and any upload/copy needed
// when Grow reports a resize.
//
// Grounded on the teacher's own block-bookkeeping style in
// engine/renderer/bind_group_provider/buffer_write.go (offset/length pairs
// into a shared buffer) generalized to the recursive split/merge discipline
// a buddy allocator requires; nothing in the corpus implements buddy
// allocation itself, so the splitting/merging logic below is new code
// written directly from spec §4.1's algorithm description.
package bufalloc

import (
	"math/bits"

	"github.com/ashenforge/rendercore/rerr"
)

// Block is a sub-buffer allocation: a (base, len) pair in elements. len is
// always a power-of-two multiple of the allocator's base block length, and
// base is aligned to len.
type Block struct {
	Base uint32
	Len  uint32
}

// GrowResult describes a backing-buffer resize performed by Grow or an
// internal grow during Allocate. OldLen/NewLen are in elements; NeedsCopy is
// false only when the allocator had no live allocations at all, in which
// case the old contents (if any) don't need preserving.
type GrowResult struct {
	OldLen    uint32
	NewLen    uint32
	NeedsCopy bool
}

// Allocator is a buddy allocator over a single conceptual backing buffer.
// BaseBlockLen is the smallest allocation quantum in elements; the buffer's
// total length in elements is always BaseBlockLen * BlockCount.
type Allocator struct {
	baseBlockLen uint32
	objectSize   uint32
	usageFlags   uint32
	blockCount   uint32
	maxLevel     int
	free         [][]uint32 // free[level] = free base-block indices of that level, unordered
}

// New creates an Allocator. blockCount must be a power of two (the teacher's
// convention of panicking on a caller-side contract violation rather than
// returning an error).
func New(baseBlockLen, blockCount, objectSize, usageFlags uint32) *Allocator {
	if blockCount == 0 || blockCount&(blockCount-1) != 0 {
		panic("bufalloc: block_count must be a power of two")
	}
	maxLevel := bits.Len32(blockCount) - 1
	free := make([][]uint32, maxLevel+1)
	free[maxLevel] = []uint32{0}
	return &Allocator{
		baseBlockLen: baseBlockLen,
		objectSize:   objectSize,
		usageFlags:   usageFlags,
		blockCount:   blockCount,
		maxLevel:     maxLevel,
		free:         free,
	}
}

// BaseBlockLen returns the allocator's allocation quantum, in elements.
func (a *Allocator) BaseBlockLen() uint32 { return a.baseBlockLen }

// ObjectSize returns the per-element byte size this allocator was configured with.
func (a *Allocator) ObjectSize() uint32 { return a.objectSize }

// UsageFlags returns the backing-buffer usage flags this allocator was configured with.
func (a *Allocator) UsageFlags() uint32 { return a.usageFlags }

// TotalLen returns the backing buffer's current total length, in elements.
func (a *Allocator) TotalLen() uint32 { return a.baseBlockLen * a.blockCount }

func requiredLevel(count, baseBlockLen uint32) int {
	if count <= baseBlockLen {
		return 0
	}
	blocks := (count + baseBlockLen - 1) / baseBlockLen
	return bits.Len32(blocks - 1)
}

// Allocate returns a block covering at least count elements, growing the
// backing buffer (per Grow's doubling policy) if no sufficiently large free
// block exists. The returned GrowResult is zero-valued (NewLen == OldLen) if
// no grow was needed.
func (a *Allocator) Allocate(count uint32) (Block, GrowResult, error) {
	if count == 0 {
		return Block{}, GrowResult{}, rerr.Newf(rerr.BadInput, "bufalloc.Allocate", "count must be > 0")
	}
	reqLevel := requiredLevel(count, a.baseBlockLen)

	var grow GrowResult
	if reqLevel > a.maxLevel || !a.hasFreeAtOrAbove(reqLevel) {
		g, err := a.growToLevel(reqLevel)
		if err != nil {
			return Block{}, GrowResult{}, err
		}
		grow = g
	}

	level := reqLevel
	for level <= a.maxLevel && len(a.free[level]) == 0 {
		level++
	}
	if level > a.maxLevel {
		return Block{}, GrowResult{}, rerr.Newf(rerr.ResourceExhausted, "bufalloc.Allocate", "no free block for %d elements after grow", count)
	}

	idx := popFree(&a.free[level])
	for level > reqLevel {
		level--
		buddy := idx + (1 << uint(level))
		a.free[level] = append(a.free[level], buddy)
	}

	return Block{Base: idx * a.baseBlockLen, Len: (1 << uint(reqLevel)) * a.baseBlockLen}, grow, nil
}

func (a *Allocator) hasFreeAtOrAbove(level int) bool {
	for l := level; l <= a.maxLevel; l++ {
		if len(a.free[l]) > 0 {
			return true
		}
	}
	return false
}

// Free returns block to the allocator, merging with its buddy at each level
// while the buddy is itself free, per spec §4.1's free(block) algorithm.
func (a *Allocator) Free(block Block) {
	level := requiredLevel(block.Len, a.baseBlockLen)
	idx := block.Base / a.baseBlockLen

	for level < a.maxLevel {
		buddy := idx ^ (1 << uint(level))
		if removeIfPresent(&a.free[level], buddy) {
			if buddy < idx {
				idx = buddy
			}
			level++
			continue
		}
		break
	}
	a.free[level] = append(a.free[level], idx)
}

// Grow applies the doubling policy directly: grows the backing buffer until
// it can serve a block of the given element count, without allocating one.
// Used by callers that want to pre-size a buffer (e.g. the mesh factory
// sizing a new layout's buffer before its first mesh lands).
func (a *Allocator) Grow(count uint32) (GrowResult, error) {
	return a.growToLevel(requiredLevel(count, a.baseBlockLen))
}

func (a *Allocator) growToLevel(level int) (GrowResult, error) {
	oldLen := a.TotalLen()
	needsCopy := false
	for level > a.maxLevel || !a.hasFreeAtOrAbove(level) {
		// Top-level free set empty means live data occupies it: growth adds
		// a new "right half" free block and a real buffer copy will be
		// needed. Otherwise the whole buffer is still unused and growth is
		// just a bookkeeping resize.
		stepNeedsCopy := len(a.free[a.maxLevel]) == 0
		oldBlockCount := a.blockCount
		a.blockCount *= 2
		a.maxLevel++
		a.free = append(a.free, nil)

		if stepNeedsCopy {
			needsCopy = true
			a.insertFree(a.maxLevel-1, oldBlockCount)
		} else {
			a.free[a.maxLevel-1] = nil
			a.insertFree(a.maxLevel, 0)
		}

		if level <= a.maxLevel && a.hasFreeAtOrAbove(level) {
			break
		}
	}
	return GrowResult{OldLen: oldLen, NewLen: a.TotalLen(), NeedsCopy: needsCopy}, nil
}

// insertFree deposits a free block at (level, idx), coalescing with its
// buddy exactly like Free does — growth and free share one merge path so
// the free-set is always in canonical (maximally-merged) form.
func (a *Allocator) insertFree(level int, idx uint32) {
	for level < a.maxLevel {
		buddy := idx ^ (1 << uint(level))
		if removeIfPresent(&a.free[level], buddy) {
			if buddy < idx {
				idx = buddy
			}
			level++
			continue
		}
		break
	}
	a.free[level] = append(a.free[level], idx)
}

func popFree(list *[]uint32) uint32 {
	n := len(*list)
	v := (*list)[n-1]
	*list = (*list)[:n-1]
	return v
}

func removeIfPresent(list *[]uint32, v uint32) bool {
	for i, x := range *list {
		if x == v {
			last := len(*list) - 1
			(*list)[i] = (*list)[last]
			*list = (*list)[:last]
			return true
		}
	}
	return false
}
