// Package scenerender implements the per-camera, per-frame scene render
// orchestration (spec §4.11): a fixed eleven-step sequence from camera UBO
// bind through the transparent pass, with two conditional skips (the HZB
// pass when the static set changed, froxel regeneration when camera
// parameters did not change).
//
// Grounded on `engine/scene/scene.go`'s per-frame `render()` method, which
// already drives a fixed phase sequence (camera write, light sync, a
// pre-pass, then two worker-pool phases) gated by dirty flags; generalized
// here from that one concrete sequence into the eleven-step pipeline the
// spec names, expressed as calls against a narrow Backend interface so the
// step order and skip conditions can be asserted without a GPU device. The
// concrete Backend implementing these steps against real wgpu calls,
// hzb.Pyramid, shadowrender cascades, and drawgen output is
// gpubackend.Backend; frame.Orchestrator only owns the surface/fence/submit
// bracket around the single RenderFrame call each frame.
package scenerender

// Backend is the set of GPU-facing operations one scene render needs, named
// after spec §4.11's own step list so the orchestration and the backend
// contract read the same way.
type Backend interface {
	// BindCameraUBO writes the active camera's view-projection matrix and
	// position to its per-frame uniform buffer (step 1).
	BindCameraUBO()

	// RenderHZBPass draws the previously visible static opaque+cutout set
	// into the HZB depth target with no culling (step 2).
	RenderHZBPass()

	// BuildHZBPyramid runs the compute min-reduction over the HZB depth
	// target produced by RenderHZBPass (step 3).
	BuildHZBPyramid()

	// RegenFroxels rebuilds the camera's clustered-lighting froxel grid
	// (step 4, conditional).
	RegenFroxels()

	// BuildLightClusters writes per-froxel light lists (step 5).
	BuildLightClusters()

	// GenerateDepthPrepassDraws runs draw generation (HZB-culled) for the
	// depth prepass's opaque+cutout set (step 6).
	GenerateDepthPrepassDraws()

	// RenderDepthPrepass records the depth-only prepass, MSAA-aware (step 7).
	RenderDepthPrepass()

	// RenderShadowCascades generates and renders every shadow cascade
	// (step 8).
	RenderShadowCascades()

	// ComputeAO reads depth+normals, writes a blurred AO image (step 9).
	ComputeAO()

	// RenderOpaqueColorPass loads depth with an equal-test, writes color,
	// and draws the skybox last (step 10).
	RenderOpaqueColorPass()

	// RenderTransparentPass loads depth with a greater-or-equal test and
	// draws the back-to-front-sorted transparent set (step 11).
	RenderTransparentPass()
}

// FrameState carries the two dirty flags that gate optional steps.
type FrameState struct {
	// StaticDirty, when true, skips the HZB pass (spec §4.11 step 2:
	// "skipped if static-dirty" — last frame's late-visibility static set,
	// which the HZB pass re-draws, is stale once the static set itself has
	// changed, so there is nothing valid to re-draw this frame).
	StaticDirty bool
	// CameraParamsChanged gates froxel regeneration (step 4): froxels only
	// need to be rebuilt when the camera's projection parameters change.
	CameraParamsChanged bool
}

// RenderFrame runs the spec §4.11 step sequence against b, honoring both
// conditional skips in FrameState.
func RenderFrame(b Backend, state FrameState) {
	b.BindCameraUBO()

	if !state.StaticDirty {
		b.RenderHZBPass()
	}
	b.BuildHZBPyramid()

	if state.CameraParamsChanged {
		b.RegenFroxels()
	}
	b.BuildLightClusters()

	b.GenerateDepthPrepassDraws()
	b.RenderDepthPrepass()

	b.RenderShadowCascades()

	b.ComputeAO()

	b.RenderOpaqueColorPass()
	b.RenderTransparentPass()
}
