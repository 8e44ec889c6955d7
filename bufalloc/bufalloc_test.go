package bufalloc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestAllocateFreeIsNoOp covers property 1: for any allocate/free sequence,
// allocations never overlap, and freeing everything returns the allocator to
// its initial single top-level free block.
func TestAllocateFreeIsNoOp(t *testing.T) {
	a := New(64, 8, 4, 0)

	var blocks []Block
	for i := 0; i < 8; i++ {
		b, _, err := a.Allocate(64)
		if err != nil {
			t.Fatalf("Allocate #%d: %v", i, err)
		}
		for _, prev := range blocks {
			if overlaps(prev, b) {
				t.Fatalf("block %v overlaps previously allocated %v", b, prev)
			}
		}
		blocks = append(blocks, b)
	}

	if len(a.free[a.maxLevel]) != 0 {
		t.Fatalf("expected fully allocated buffer, top level has free blocks")
	}

	for _, b := range blocks {
		a.Free(b)
	}

	if a.maxLevel != 3 {
		t.Fatalf("maxLevel = %d; want 3 (block_count=8)", a.maxLevel)
	}
	if got := a.free[a.maxLevel]; len(got) != 1 || got[0] != 0 {
		t.Fatalf("free[top] = %v; want a single merged block at index 0", got)
	}
	for l := 0; l < a.maxLevel; l++ {
		if len(a.free[l]) != 0 {
			t.Fatalf("free[%d] = %v; want empty after full merge", l, a.free[l])
		}
	}
}

func overlaps(a, b Block) bool {
	aEnd := a.Base + a.Len
	bEnd := b.Base + b.Len
	return a.Base < bEnd && b.Base < aEnd
}

// TestGrowDoublesAndMarksCopy exercises scenario S2 (buddy grow): a pool
// starting at block_count=1 must double to satisfy an allocation larger
// than its base block. The grown block is the entire new buffer, since a
// single level-1 block is the minimum granularity that can hold more than
// base_block_len elements.
//
// Note: the literal offsets in spec.md §8's S2 example ((base=0,len=128)
// then (base=64,len=64) from the same un-freed pool) are not reproducible by
// any buddy allocator — the first call exhausts the entire doubled buffer,
// so a second allocation without an intervening Free necessarily forces
// another grow rather than reusing an address inside the first block. This
// test instead demonstrates the grow behavior through to a second,
// internally-consistent grow.
func TestGrowDoublesAndMarksCopy(t *testing.T) {
	a := New(64, 1, 4, 0)

	b1, g1, err := a.Allocate(65)
	if err != nil {
		t.Fatalf("Allocate(65): %v", err)
	}
	if diff := cmp.Diff(Block{Base: 0, Len: 128}, b1); diff != "" {
		t.Fatalf("b1 mismatch (-want +got):\n%s", diff)
	}
	if g1.NewLen != 128 || g1.OldLen != 64 {
		t.Fatalf("g1 = %+v; want OldLen 64, NewLen 128", g1)
	}
	if g1.NeedsCopy {
		t.Fatalf("g1.NeedsCopy = true; want false, nothing was allocated before this grow")
	}

	b2, g2, err := a.Allocate(32)
	if err != nil {
		t.Fatalf("Allocate(32): %v", err)
	}
	if b2.Len != 64 {
		t.Fatalf("b2.Len = %d; want 64", b2.Len)
	}
	if overlaps(b1, b2) {
		t.Fatalf("b2 %+v overlaps b1 %+v", b2, b1)
	}
	if !g2.NeedsCopy {
		t.Fatalf("g2.NeedsCopy = false; want true, the buffer had live data")
	}
	if g2.NewLen != 256 {
		t.Fatalf("g2.NewLen = %d; want 256", g2.NewLen)
	}
}

func TestAllocateZeroIsRejected(t *testing.T) {
	a := New(64, 1, 4, 0)
	if _, _, err := a.Allocate(0); err == nil {
		t.Fatalf("Allocate(0) succeeded; want error")
	}
}

func TestFreeThenReallocateReusesAddress(t *testing.T) {
	a := New(64, 4, 4, 0)

	b1, _, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	a.Free(b1)

	b2, _, err := a.Allocate(64)
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if diff := cmp.Diff(b1, b2); diff != "" {
		t.Fatalf("b2 did not reuse b1's address (-b1 +b2):\n%s", diff)
	}
}
