package barrier

import "testing"

func tex(id uint64) SubresourceKey {
	return SubresourceKey{Resource: id, IsImage: true}
}

// TestBarrierMinimalityOnReadAfterRead covers property 5: a sequence of
// read-only usages of a subresource with identical layout and queue emits no
// pipeline barriers beyond the first.
func TestBarrierMinimalityOnReadAfterRead(t *testing.T) {
	g := NewGlobalTracker()
	key := tex(1)

	for i, tv := range []uint64{1, 2, 3} {
		s := NewScope()
		if err := s.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal); err != nil {
			t.Fatalf("Use: %v", err)
		}
		res := Submit(g, s, QueueMain, tv)
		if i == 0 {
			if len(res.Barriers) != 1 {
				t.Fatalf("first submit: got %d barriers; want 1 (establishing initial state)", len(res.Barriers))
			}
			continue
		}
		if len(res.Barriers) != 0 {
			t.Fatalf("read-after-read submit %d: got %d barriers; want 0", i, len(res.Barriers))
		}
	}
}

// TestLayoutCorrectnessAfterSubmit covers property 6: after a scope submits,
// the global tracker's layout for every touched subresource equals the
// last-requested layout.
func TestLayoutCorrectnessAfterSubmit(t *testing.T) {
	g := NewGlobalTracker()
	key := tex(1)

	s := NewScope()
	if err := s.Use(key, AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal); err != nil {
		t.Fatalf("Use: %v", err)
	}
	Submit(g, s, QueueTransfer, 1)

	s2 := NewScope()
	if err := s2.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal); err != nil {
		t.Fatalf("Use: %v", err)
	}
	Submit(g, s2, QueueTransfer, 2)

	entry, ok := g.Entry(key)
	if !ok {
		t.Fatalf("Entry() not found after submit")
	}
	if entry.Layout != LayoutShaderReadOnlyOptimal {
		t.Fatalf("global layout = %v; want %v (the last-requested layout)", entry.Layout, LayoutShaderReadOnlyOptimal)
	}
}

// TestCrossQueueOwnershipTransferEmitsExactlyOneReleaseAndOneAcquire covers
// property 7.
func TestCrossQueueOwnershipTransferEmitsExactlyOneReleaseAndOneAcquire(t *testing.T) {
	g := NewGlobalTracker()
	key := tex(1)
	g.SetSharing(key, SharingExclusive)

	s1 := NewScope()
	s1.Use(key, AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
	Submit(g, s1, QueueTransfer, 1)

	s2 := NewScope()
	s2.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	res := Submit(g, s2, QueueMain, 2)

	var releases, acquires int
	for _, b := range res.Barriers {
		if !b.Ownership {
			t.Fatalf("unexpected non-ownership barrier in a cross-queue transition: %+v", b)
		}
		switch b.Queue {
		case QueueTransfer:
			releases++
		case QueueMain:
			acquires++
		}
	}
	if releases != 1 || acquires != 1 {
		t.Fatalf("releases=%d acquires=%d; want exactly one of each", releases, acquires)
	}
}

// TestConcurrentSharingSkipsOwnershipTransfer ensures concurrent-shared
// subresources never emit a release/acquire pair (spec §4.6 step 3).
func TestConcurrentSharingSkipsOwnershipTransfer(t *testing.T) {
	g := NewGlobalTracker()
	key := tex(1)
	g.SetSharing(key, SharingConcurrent)

	s1 := NewScope()
	s1.Use(key, AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
	Submit(g, s1, QueueTransfer, 1)

	s2 := NewScope()
	s2.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	res := Submit(g, s2, QueueMain, 2)

	for _, b := range res.Barriers {
		if b.Ownership {
			t.Fatalf("concurrent-shared subresource emitted an ownership transfer: %+v", b)
		}
	}
}

// TestScenarioS5CrossQueueTextureMipUpload reproduces scenario S5: a
// texture-mip upload on the transfer queue followed by a fragment-shader
// sample on the main queue.
func TestScenarioS5CrossQueueTextureMipUpload(t *testing.T) {
	g := NewGlobalTracker()
	key := tex(7)
	g.SetSharing(key, SharingExclusive)

	upload := NewScope()
	upload.Use(key, AccessTransferWrite, StageTransfer, LayoutTransferDstOptimal)
	Submit(g, upload, QueueTransfer, 1)

	sample := NewScope()
	sample.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal)
	res := Submit(g, sample, QueueMain, 2)

	var release, acquire *Barrier
	for i := range res.Barriers {
		b := &res.Barriers[i]
		if b.Queue == QueueTransfer {
			release = b
		} else if b.Queue == QueueMain {
			acquire = b
		}
	}
	if release == nil || acquire == nil {
		t.Fatalf("expected one release and one acquire barrier, got %+v", res.Barriers)
	}

	if release.DstStage != StageBottomOfPipe || release.DstAccess != 0 {
		t.Fatalf("release = %+v; want DstStage=BOTTOM_OF_PIPE, DstAccess=NONE", release)
	}
	if acquire.SrcStage != StageTopOfPipe || acquire.SrcAccess != 0 {
		t.Fatalf("acquire = %+v; want SrcStage=TOP_OF_PIPE, SrcAccess=NONE", acquire)
	}
	if acquire.NewLayout != LayoutShaderReadOnlyOptimal {
		t.Fatalf("acquire.NewLayout = %v; want SHADER_READ_ONLY_OPTIMAL", acquire.NewLayout)
	}

	if wait, ok := res.CrossQueueWaits[QueueTransfer]; !ok || wait != StageFragmentShader {
		t.Fatalf("CrossQueueWaits[transfer] = %v, ok=%v; want FRAGMENT_SHADER only", wait, ok)
	}
	if len(res.CrossQueueWaits) != 1 {
		t.Fatalf("CrossQueueWaits has %d entries; want exactly 1", len(res.CrossQueueWaits))
	}
}

func TestScopeUseRejectsConflictingLayouts(t *testing.T) {
	s := NewScope()
	key := tex(1)
	if err := s.Use(key, AccessShaderRead, StageFragmentShader, LayoutShaderReadOnlyOptimal); err != nil {
		t.Fatalf("first Use: %v", err)
	}
	if err := s.Use(key, AccessColorAttachmentWrite, StageColorAttachmentOutput, LayoutColorAttachmentOptimal); err == nil {
		t.Fatalf("second Use with a conflicting layout was accepted")
	}
}

func TestScopeUseAllowsGeneralAlongsideAnyLayout(t *testing.T) {
	s := NewScope()
	key := tex(1)
	if err := s.Use(key, AccessShaderRead, StageFragmentShader, LayoutGeneral); err != nil {
		t.Fatalf("first Use: %v", err)
	}
	if err := s.Use(key, AccessShaderWrite, StageComputeShader, LayoutColorAttachmentOptimal); err != nil {
		t.Fatalf("GENERAL followed by a specific layout was rejected: %v", err)
	}
}
