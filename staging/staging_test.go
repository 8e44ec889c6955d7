package staging

import "testing"

func TestUploadMeshFiresOnCompleteAfterDrainAndComplete(t *testing.T) {
	q := NewQueue()
	fired := false
	if err := q.UploadMesh([]byte{1, 2, 3, 4}, []byte{0, 1}, nil, func() { fired = true }); err != nil {
		t.Fatalf("UploadMesh: %v", err)
	}

	if got := q.Pending(); got != 1 {
		t.Fatalf("Pending() = %d; want 1", got)
	}

	n := q.Drain(5)
	if n != 1 {
		t.Fatalf("Drain() = %d; want 1", n)
	}
	if q.Pending() != 0 {
		t.Fatalf("Pending() after Drain = %d; want 0", q.Pending())
	}
	if fired {
		t.Fatalf("onComplete fired before Complete() observed the submission's timeline value")
	}

	q.Complete(4)
	if fired {
		t.Fatalf("onComplete fired for a timeline value (4) below the submission's (5)")
	}

	q.Complete(5)
	if !fired {
		t.Fatalf("onComplete did not fire once completedTimelineValue reached the submission's value")
	}
	if q.InFlight() != 0 {
		t.Fatalf("InFlight() = %d; want 0 after completion", q.InFlight())
	}
}

func TestUploadTextureFullSetsEveryMipBit(t *testing.T) {
	q := NewQueue()
	var loaded uint64
	if err := q.UploadTextureFull(64, 64, 1, 4, make([]byte, 64*64*4), func(l uint64) { loaded = l }); err != nil {
		t.Fatalf("UploadTextureFull: %v", err)
	}
	q.Drain(1)
	q.Complete(1)

	want := uint64(0b1111)
	if loaded != want {
		t.Fatalf("loadedMips = %b; want %b (mips 0..3 all set)", loaded, want)
	}
}

func TestUploadTextureMipFiresSingleBitCallback(t *testing.T) {
	q := NewQueue()
	calls := 0
	if err := q.UploadTextureMip(2, make([]byte, 16), func() { calls++ }); err != nil {
		t.Fatalf("UploadTextureMip: %v", err)
	}
	q.Drain(1)
	q.Complete(1)
	if calls != 1 {
		t.Fatalf("onReady called %d times; want 1", calls)
	}
}

func TestZeroLengthPayloadRejected(t *testing.T) {
	q := NewQueue()
	if err := q.UploadMesh(nil, nil, nil, func() {}); err == nil {
		t.Fatalf("UploadMesh accepted an all-empty payload")
	}
}

func TestCompleteOnlyFiresSubmissionsAtOrBelowValue(t *testing.T) {
	q := NewQueue()
	var firstFired, secondFired bool
	q.UploadTextureMip(0, []byte{1}, func() { firstFired = true })
	q.Drain(1)
	q.UploadTextureMip(1, []byte{1}, func() { secondFired = true })
	q.Drain(2)

	q.Complete(1)
	if !firstFired {
		t.Fatalf("first submission (timeline 1) did not fire at completedTimelineValue=1")
	}
	if secondFired {
		t.Fatalf("second submission (timeline 2) fired early at completedTimelineValue=1")
	}
	if q.InFlight() != 1 {
		t.Fatalf("InFlight() = %d; want 1 (second submission still outstanding)", q.InFlight())
	}

	q.Complete(2)
	if !secondFired {
		t.Fatalf("second submission did not fire once completedTimelineValue reached 2")
	}
}

func TestDrainWithNoPendingRequestsIsNoOp(t *testing.T) {
	q := NewQueue()
	if n := q.Drain(1); n != 0 {
		t.Fatalf("Drain() on empty queue = %d; want 0", n)
	}
	if q.InFlight() != 0 {
		t.Fatalf("InFlight() = %d; want 0", q.InFlight())
	}
}
