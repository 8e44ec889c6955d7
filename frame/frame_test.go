package frame

import (
	"testing"

	"github.com/ashenforge/rendercore/scenerender"
)

type fakeSurface struct {
	shouldClose   bool
	polled        int
	width, height int
}

func (s *fakeSurface) SurfaceDescriptor() any { return "fake-surface" }
func (s *fakeSurface) Width() int             { return s.width }
func (s *fakeSurface) Height() int            { return s.height }
func (s *fakeSurface) ShouldClose() bool      { return s.shouldClose }
func (s *fakeSurface) PollEvents()            { s.polled++ }

type fakeFence struct{ waitedSlots []uint64 }

func (f *fakeFence) Wait(slot uint64) { f.waitedSlots = append(f.waitedSlots, slot) }

type fakeSwapchain struct {
	acquireOK      bool
	presentInvalid bool
	reconfigured   bool
	reconfigW      uint32
	reconfigH      uint32
	acquired       []uint32
	presented      []uint32
}

func (s *fakeSwapchain) Acquire() (uint32, bool) {
	s.acquired = append(s.acquired, 0)
	return 0, s.acquireOK
}
func (s *fakeSwapchain) Present(imageIndex uint32) bool {
	s.presented = append(s.presented, imageIndex)
	return s.presentInvalid
}
func (s *fakeSwapchain) Reconfigure(w, h uint32) {
	s.reconfigured = true
	s.reconfigW, s.reconfigH = w, h
}

type fakeDrops struct{ retired []uint64 }

func (d *fakeDrops) RetireAll(currentFrame uint64) { d.retired = append(d.retired, currentFrame) }

type fakeStaging struct {
	completed []uint64
	drained   []uint64
}

func (s *fakeStaging) Complete(v uint64)      { s.completed = append(s.completed, v) }
func (s *fakeStaging) Drain(v uint64) int     { s.drained = append(s.drained, v); return 0 }

type fakeSubmitter struct{ submits int }

func (s *fakeSubmitter) Submit() uint64 { s.submits++; return uint64(s.submits) }

type nullBackend struct{}

func (nullBackend) BindCameraUBO()           {}
func (nullBackend) RenderHZBPass()           {}
func (nullBackend) BuildHZBPyramid()         {}
func (nullBackend) RegenFroxels()            {}
func (nullBackend) BuildLightClusters()      {}
func (nullBackend) GenerateDepthPrepassDraws() {}
func (nullBackend) RenderDepthPrepass()      {}
func (nullBackend) RenderShadowCascades()    {}
func (nullBackend) ComputeAO()               {}
func (nullBackend) RenderOpaqueColorPass()   {}
func (nullBackend) RenderTransparentPass()   {}

var _ scenerender.Backend = nullBackend{}

func newTestOrchestrator() (*Orchestrator, *fakeSurface, *fakeFence, *fakeSwapchain, *fakeDrops, *fakeStaging, *fakeSubmitter) {
	surface := &fakeSurface{width: 800, height: 600}
	fence := &fakeFence{}
	swapchain := &fakeSwapchain{acquireOK: true}
	drops := &fakeDrops{}
	staging := &fakeStaging{}
	submitter := &fakeSubmitter{}
	o := New(Config{FIF: 2}, surface, fence, swapchain, drops, staging, submitter, nullBackend{}, func() scenerender.FrameState {
		return scenerender.FrameState{}
	})
	return o, surface, fence, swapchain, drops, staging, submitter
}

func TestRunFrameReturnsFalseWhenSurfaceShouldClose(t *testing.T) {
	o, surface, _, _, _, _, _ := newTestOrchestrator()
	surface.shouldClose = true
	if o.RunFrame(0.016) {
		t.Fatalf("RunFrame returned true while ShouldClose was true")
	}
}

func TestRunFrameDrivesFullSevenStepSequence(t *testing.T) {
	o, _, fence, swapchain, drops, staging, submitter := newTestOrchestrator()

	if !o.RunFrame(0.016) {
		t.Fatalf("RunFrame returned false unexpectedly")
	}
	if len(fence.waitedSlots) != 1 || fence.waitedSlots[0] != 0 {
		t.Fatalf("fence wait slots = %v; want [0]", fence.waitedSlots)
	}
	if len(swapchain.acquired) != 1 || len(swapchain.presented) != 1 {
		t.Fatalf("expected exactly one acquire and one present, got acquired=%d presented=%d", len(swapchain.acquired), len(swapchain.presented))
	}
	if len(drops.retired) != 1 || drops.retired[0] != 0 {
		t.Fatalf("drops.RetireAll called with %v; want [0]", drops.retired)
	}
	if len(staging.completed) != 1 || len(staging.drained) != 1 {
		t.Fatalf("staging Complete/Drain not both called once")
	}
	if submitter.submits != 1 {
		t.Fatalf("submitter.Submit called %d times; want 1", submitter.submits)
	}
	if o.FrameIndex() != 1 {
		t.Fatalf("FrameIndex = %d; want 1 after one frame", o.FrameIndex())
	}
}

func TestRunFrameCyclesFenceSlotsModuloFIF(t *testing.T) {
	o, _, fence, _, _, _, _ := newTestOrchestrator() // FIF=2

	for i := 0; i < 5; i++ {
		o.RunFrame(0.016)
	}
	want := []uint64{0, 1, 0, 1, 0}
	if len(fence.waitedSlots) != len(want) {
		t.Fatalf("got %d waits; want %d", len(fence.waitedSlots), len(want))
	}
	for i := range want {
		if fence.waitedSlots[i] != want[i] {
			t.Fatalf("wait slot %d = %d; want %d (full: %v)", i, fence.waitedSlots[i], want[i], fence.waitedSlots)
		}
	}
}

func TestRunFrameReconfiguresOnAcquireFailureAndSkipsTheRestOfTheFrame(t *testing.T) {
	o, _, _, swapchain, drops, _, submitter := newTestOrchestrator()
	swapchain.acquireOK = false

	if !o.RunFrame(0.016) {
		t.Fatalf("RunFrame returned false on acquire failure; want true (caller keeps looping)")
	}
	if !swapchain.reconfigured {
		t.Fatalf("Reconfigure was not called after a failed Acquire")
	}
	if swapchain.reconfigW != 800 || swapchain.reconfigH != 600 {
		t.Fatalf("Reconfigure got %dx%d; want 800x600", swapchain.reconfigW, swapchain.reconfigH)
	}
	if len(drops.retired) != 0 || submitter.submits != 0 {
		t.Fatalf("drop processing or submission ran despite a failed acquire")
	}
	if o.FrameIndex() != 0 {
		t.Fatalf("FrameIndex advanced on a skipped frame: %d", o.FrameIndex())
	}
}

func TestRunFrameReconfiguresOnPresentInvalidation(t *testing.T) {
	o, _, _, swapchain, _, _, _ := newTestOrchestrator()
	swapchain.presentInvalid = true

	o.RunFrame(0.016)
	if !swapchain.reconfigured {
		t.Fatalf("Reconfigure was not called after Present reported invalidated")
	}
	if o.FrameIndex() != 1 {
		t.Fatalf("FrameIndex = %d; want 1 — a present-time invalidation still completed this frame", o.FrameIndex())
	}
}

func TestAddPreparerRunsEveryPreparerInOrderEachFrame(t *testing.T) {
	o, _, _, _, _, _, _ := newTestOrchestrator()
	var order []string
	o.AddPreparer(PreparerFunc(func(dt float32) { order = append(order, "a") }))
	o.AddPreparer(PreparerFunc(func(dt float32) { order = append(order, "b") }))

	o.RunFrame(0.016)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("preparer order = %v; want [a b]", order)
	}
}
