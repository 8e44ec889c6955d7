// Package frame implements the frame orchestrator (spec §4.13): the
// outermost per-frame driver that maintains FIF (frames-in-flight) frame
// slots and runs the fixed seven-step sequence — fence wait, swapchain
// acquire, drop-queue processing, CPU-side subsystem prepare, scene
// recording, submit, present — once per frame, reconfiguring the surface
// when presentation reports it invalidated (e.g. on resize).
//
// Grounded on engine/engine.go's handleRender goroutine: the teacher already
// drives a render loop with a recognizable phase order (compute dispatch,
// shadow prepare, light-cull prepare, then a single BeginFrame/.../EndFrame/
// Present bracket) gated by error returns from BeginComputeFrame/BeginFrame.
// Orchestrator generalizes that same phase order into the spec's named
// seven steps, expressed against narrow interfaces so the sequencing is
// unit-testable without a live device — each concrete collaborator
// (resource.Factory.RetireAll, staging.Queue.Drain/Complete,
// scenerender.Backend, effects.Binding, gui.Overlay) plugs in with little or
// no adapter code.
package frame

import (
	"context"

	"github.com/ashenforge/rendercore/rtrace"
	"github.com/ashenforge/rendercore/scenerender"
)

// Surface is the narrow window/platform contract the orchestrator needs.
// SurfaceDescriptor is opaque here (an `any` the concrete swapchain
// implementation type-asserts) so this package never imports the windowing
// backend's own types; engine/window.Window satisfies this structurally
// once wrapped by a thin adapter in that package's own import graph.
type Surface interface {
	SurfaceDescriptor() any
	Width() int
	Height() int
	ShouldClose() bool
	PollEvents()
}

// Fence is the per-frame-slot backpressure primitive (spec §4.13 step 1):
// Wait blocks the calling (submission) thread until the frame that last
// used slot has retired on the GPU.
type Fence interface {
	Wait(slot uint64)
}

// Swapchain is the presentable-surface contract (spec §4.13 steps 2 and 7).
// Acquire returns ok=false when the surface needs reconfiguration (e.g. a
// resize invalidated it) instead of a usable image index. Present returns
// invalidated=true under the same condition, discovered after submission.
type Swapchain interface {
	Acquire() (imageIndex uint32, ok bool)
	Present(imageIndex uint32) (invalidated bool)
	Reconfigure(width, height uint32)
}

// DropQueueProcessor advances every factory resource kind's drop queue for
// the frame that just retired (spec §4.13 step 3). Matches
// resource.Factory.RetireAll exactly.
type DropQueueProcessor interface {
	RetireAll(currentFrame uint64)
}

// StagingDrainer is the staging queue's per-frame half: Complete fires
// completion callbacks for uploads the GPU has finished, Drain batches this
// frame's newly enqueued requests under the frame's timeline value. Matches
// staging.Queue's Complete/Drain pair exactly.
type StagingDrainer interface {
	Complete(completedTimelineValue uint64)
	Drain(timelineValue uint64) int
}

// Preparer lets a subsystem contribute CPU-side per-frame state (spec §4.13
// step 4: "renderable set, uploads, dirty flushes"). The orchestrator runs
// every registered Preparer, in registration order, before recording.
type Preparer interface {
	Prepare(dt float32)
}

// PreparerFunc adapts a plain function to Preparer.
type PreparerFunc func(dt float32)

func (f PreparerFunc) Prepare(dt float32) { f(dt) }

// Submitter records and submits the frame's single main command buffer
// (spec §4.13 steps 5-6) and returns the timeline value that submission
// will signal on completion.
type Submitter interface {
	Submit() uint64
}

// Config bundles the orchestrator's fixed per-run parameters.
type Config struct {
	// FIF is the number of frame slots in flight; must be at least 1.
	FIF uint64
}

// Orchestrator drives one surface's frame loop. It holds no GPU device
// state itself — every GPU-facing effect happens through the interfaces
// supplied at construction, so the step sequence and its two failure paths
// (acquire-invalidated, present-invalidated) are exercised in tests with
// plain recording fakes.
type Orchestrator struct {
	fif uint64

	surface   Surface
	fence     Fence
	swapchain Swapchain
	drops     DropQueueProcessor
	staging   StagingDrainer
	preparers []Preparer
	submitter Submitter

	backend  scenerender.Backend
	stateFn  func() scenerender.FrameState
	frameIdx uint64
}

// New creates an Orchestrator. backend and stateFn drive the scene-render
// step (spec §4.13 step 5, delegated to scenerender.RenderFrame).
func New(cfg Config, surface Surface, fence Fence, swapchain Swapchain, drops DropQueueProcessor, staging StagingDrainer, submitter Submitter, backend scenerender.Backend, stateFn func() scenerender.FrameState) *Orchestrator {
	fif := cfg.FIF
	if fif == 0 {
		fif = 1
	}
	return &Orchestrator{
		fif:       fif,
		surface:   surface,
		fence:     fence,
		swapchain: swapchain,
		drops:     drops,
		staging:   staging,
		submitter: submitter,
		backend:   backend,
		stateFn:   stateFn,
	}
}

// AddPreparer registers a subsystem to run during step 4, in the order
// added. Must be called before the first RunFrame.
func (o *Orchestrator) AddPreparer(p Preparer) {
	o.preparers = append(o.preparers, p)
}

// FrameIndex returns the monotonically increasing frame counter; the
// current frame's slot is FrameIndex() % FIF.
func (o *Orchestrator) FrameIndex() uint64 { return o.frameIdx }

// RunFrame executes one iteration of the spec §4.13 seven-step sequence.
// It returns false only when the surface reported ShouldClose — callers
// drive their own loop (`for o.RunFrame(dt) { ... }`) exactly like
// engine.go's handleRender loop did around the teacher's BeginFrame bracket.
func (o *Orchestrator) RunFrame(dt float32) bool {
	if o.surface.ShouldClose() {
		return false
	}
	o.surface.PollEvents()

	slot := o.frameIdx % o.fif
	o.fence.Wait(slot) // step 1: backpressure

	imageIndex, ok := o.swapchain.Acquire() // step 2
	if !ok {
		o.reconfigure()
		return true
	}

	o.drops.RetireAll(o.frameIdx) // step 3
	o.staging.Complete(o.frameIdx)
	o.staging.Drain(o.frameIdx)

	for _, p := range o.preparers { // step 4
		p.Prepare(dt)
	}

	_, span := rtrace.Start(context.Background(), "frame.record_and_submit")
	scenerender.RenderFrame(o.backend, o.stateFn()) // step 5: record
	o.submitter.Submit()                            // step 6
	span.End()

	if invalidated := o.swapchain.Present(imageIndex); invalidated { // step 7
		o.reconfigure()
	}

	o.frameIdx++
	return true
}

func (o *Orchestrator) reconfigure() {
	o.swapchain.Reconfigure(uint32(o.surface.Width()), uint32(o.surface.Height()))
}
