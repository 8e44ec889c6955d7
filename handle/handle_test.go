package handle

import "testing"

func TestCreateGetRoundTrip(t *testing.T) {
	tbl := NewTable[string](2)
	h := tbl.Create("mesh-a")

	got, ok := tbl.Get(h)
	if !ok || got != "mesh-a" {
		t.Fatalf("Get(%v) = %q, %v; want %q, true", h, got, ok, "mesh-a")
	}
}

func TestStaleHandleResolvesToNone(t *testing.T) {
	tbl := NewTable[string](0)
	h := tbl.Create("mesh-a")

	if !tbl.Release(h, 0) {
		t.Fatalf("Release failed on fresh handle")
	}
	tbl.Retire(0)

	if _, ok := tbl.Get(h); ok {
		t.Fatalf("stale handle %v still resolved after retire", h)
	}
}

// TestGenerationMonotonic covers property 3: a slot's generation only ever
// increases, and a handle minted against an earlier generation never
// resolves again once the slot has been recycled.
func TestGenerationMonotonic(t *testing.T) {
	tbl := NewTable[int](0)

	h1 := tbl.Create(1)
	tbl.Release(h1, 0)
	tbl.Retire(0)

	h2 := tbl.Create(2)
	if h2.ID != h1.ID {
		t.Fatalf("expected slot reuse: h1.ID=%d h2.ID=%d", h1.ID, h2.ID)
	}
	if h2.Generation <= h1.Generation {
		t.Fatalf("generation did not advance: h1.Gen=%d h2.Gen=%d", h1.Generation, h2.Generation)
	}
	if _, ok := tbl.Get(h1); ok {
		t.Fatalf("old-generation handle %v resolved after slot reuse", h1)
	}
	v, ok := tbl.Get(h2)
	if !ok || v != 2 {
		t.Fatalf("Get(%v) = %v, %v; want 2, true", h2, v, ok)
	}
}

// TestDropLatencyDefersFree covers scenario S4: a handle cloned twice and
// released both times enters the pending-drop queue exactly once, and the
// slot is only truly freed once dropLatency frames have elapsed.
func TestDropLatencyDefersFree(t *testing.T) {
	const dropLatency = 3
	tbl := NewTable[string](dropLatency)

	h := tbl.Create("texture-a")
	ref := tbl.NewRef(h)
	clone := ref.Clone()

	releaseFrame := uint64(10)
	ref.Release(releaseFrame)
	if tbl.PendingDrops() != 0 {
		t.Fatalf("slot dropped after releasing only one of two clones")
	}

	clone.Release(releaseFrame)
	if tbl.PendingDrops() != 1 {
		t.Fatalf("PendingDrops() = %d; want 1 after both clones released", tbl.PendingDrops())
	}

	// Resolving through the handle still fails immediately: refcount hit
	// zero, so the slot is no longer live even though its storage has not
	// been reclaimed yet.
	if _, ok := tbl.Get(h); ok {
		t.Fatalf("handle resolved after last clone released, before Retire")
	}

	for frame := releaseFrame; frame < releaseFrame+dropLatency; frame++ {
		tbl.Retire(frame)
		if tbl.PendingDrops() != 1 {
			t.Fatalf("frame %d: slot freed before dropLatency elapsed", frame)
		}
	}

	retired := tbl.Retire(releaseFrame + dropLatency)
	if len(retired) != 1 || retired[0] != "texture-a" {
		t.Fatalf("Retire returned %v; want [\"texture-a\"]", retired)
	}
	if tbl.PendingDrops() != 0 {
		t.Fatalf("PendingDrops() = %d; want 0 after Retire past dropLatency", tbl.PendingDrops())
	}

	h2 := tbl.Create("texture-b")
	if h2.ID != h.ID || h2.Generation <= h.Generation {
		t.Fatalf("slot not recycled correctly: h=%v h2=%v", h, h2)
	}
}

func TestDoubleReleaseDoesNotDoubleQueue(t *testing.T) {
	tbl := NewTable[int](1)
	h := tbl.Create(7)

	tbl.Release(h, 5)
	if ok := tbl.Release(h, 5); ok {
		t.Fatalf("Release succeeded on an already-released handle")
	}
	if tbl.PendingDrops() != 1 {
		t.Fatalf("PendingDrops() = %d; want 1", tbl.PendingDrops())
	}
}
