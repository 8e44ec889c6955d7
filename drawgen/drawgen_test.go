package drawgen

import (
	"testing"

	"github.com/ashenforge/rendercore/common"
)

type constHZB struct {
	depth   float32
	mips    uint32
	w, h    uint32
	minUV   [2]float32
	maxUV   [2]float32
	sampled bool
}

func (h *constHZB) SampleMin(minUV, maxUV [2]float32, mip uint32) float32 {
	h.minUV, h.maxUV, h.sampled = minUV, maxUV, true
	return h.depth
}

func (h *constHZB) BaseSize() (uint32, uint32) { return h.w, h.h }
func (h *constHZB) MipCount() uint32           { return h.mips }

func acceptAllFrustum() common.Frustum {
	var f common.Frustum
	for i := range f.Planes {
		f.Planes[i] = common.Plane{Distance: 1e6}
	}
	return f
}

func identityCamera() Camera {
	var vp [16]float32
	common.Identity(vp[:])
	return Camera{ViewProj: vp, XScale: 1, YScale: 1}
}

func unitSphereInstance(id uint64, z float32) Instance {
	var model [16]float32
	common.Identity(model[:])
	return Instance{
		ID:          id,
		ModelMatrix: model,
		Bounds:      common.Bounds{Sphere: common.Sphere{Center: [3]float32{0, 0, z}, Radius: 0.01}},
	}
}

// TestScenarioS1FrustumCullsObjectBehindCamera reproduces scenario S1's
// second frame: a triangle that was in front of the camera is now behind it
// and must produce zero surviving draws.
func TestScenarioS1FrustumCullsObjectBehindCamera(t *testing.T) {
	var view, proj, viewProj [16]float32
	common.LookAt(view[:], 0, 0, -2, 0, 0, 0, 0, 1, 0)
	common.Perspective(proj[:], 1.5708, 1.0, 0.1, 100)
	common.Mul4(viewProj[:], proj[:], view[:])
	frustum := common.ExtractFrustumFromMatrix(viewProj[:])
	camera := Camera{ViewProj: viewProj, XScale: proj[0], YScale: proj[5]}

	inFront := unitSphereInstance(1, 0)
	groups := []Group{{Instances: []Instance{inFront}}}

	res := Generate(groups, camera, frustum, nil)
	if res.SurvivorCount != 1 {
		t.Fatalf("camera facing the triangle: SurvivorCount = %d; want 1", res.SurvivorCount)
	}

	behind := unitSphereInstance(1, -10)
	groups = []Group{{Instances: []Instance{behind}}}
	res = Generate(groups, camera, frustum, nil)
	if res.SurvivorCount != 0 {
		t.Fatalf("triangle behind the camera: SurvivorCount = %d; want 0", res.SurvivorCount)
	}
	if len(res.Opaque) != 0 {
		t.Fatalf("fully-culled group emitted a draw command: %+v", res.Opaque)
	}
}

// TestDrawGenerationConservation covers property 8: the sum of per-group
// instance counts equals the number of objects that passed both tests, and
// the compacted list length matches.
func TestDrawGenerationConservation(t *testing.T) {
	var view, proj, viewProj [16]float32
	common.LookAt(view[:], 0, 0, -2, 0, 0, 0, 0, 1, 0)
	common.Perspective(proj[:], 1.5708, 1.0, 0.1, 100)
	common.Mul4(viewProj[:], proj[:], view[:])
	frustum := common.ExtractFrustumFromMatrix(viewProj[:])
	camera := Camera{ViewProj: viewProj, XScale: proj[0], YScale: proj[5]}

	groups := []Group{
		{Instances: []Instance{unitSphereInstance(1, 0), unitSphereInstance(2, -10)}},
		{Transparent: true, Instances: []Instance{unitSphereInstance(3, 0.5), farOffAxis(4)}},
	}

	res := Generate(groups, camera, frustum, nil)
	if res.TestedCount != 4 {
		t.Fatalf("TestedCount = %d; want 4", res.TestedCount)
	}

	counted := 0
	idCount := 0
	for _, cmd := range res.Opaque {
		counted += int(cmd.InstanceCount)
		idCount += len(cmd.ObjectIDs)
	}
	for _, cmd := range res.Transparent {
		counted += int(cmd.InstanceCount)
		idCount += len(cmd.ObjectIDs)
	}
	if counted != res.SurvivorCount {
		t.Fatalf("sum of InstanceCount = %d; want SurvivorCount = %d", counted, res.SurvivorCount)
	}
	if idCount != res.SurvivorCount {
		t.Fatalf("sum of len(ObjectIDs) = %d; want SurvivorCount = %d", idCount, res.SurvivorCount)
	}
	if res.SurvivorCount != 2 {
		t.Fatalf("SurvivorCount = %d; want 2 (object 1 and object 3 survive)", res.SurvivorCount)
	}
}

func farOffAxis(id uint64) Instance {
	var model [16]float32
	common.Identity(model[:])
	return Instance{
		ID:          id,
		ModelMatrix: model,
		Bounds:      common.Bounds{Sphere: common.Sphere{Center: [3]float32{500, 0, 0}, Radius: 0.01}},
	}
}

// TestScenarioS6HZBCullsFartherObjectAtSameFootprint reproduces scenario
// S6: two quads project to the same footprint; the one farther than the
// previous frame's recorded minimum depth is culled.
func TestScenarioS6HZBCullsFartherObjectAtSameFootprint(t *testing.T) {
	camera := identityCamera()
	frustum := acceptAllFrustum()
	hzb := &constHZB{depth: 0.3, mips: 1, w: 64, h: 64}

	quadA := unitSphereInstance(1, 0.3)
	quadB := unitSphereInstance(2, 0.7)
	groups := []Group{{Instances: []Instance{quadA, quadB}}}

	res := Generate(groups, camera, frustum, hzb)
	if res.SurvivorCount != 1 {
		t.Fatalf("SurvivorCount = %d; want 1 (only the nearer quad)", res.SurvivorCount)
	}
	if len(res.Opaque) != 1 || len(res.Opaque[0].ObjectIDs) != 1 || res.Opaque[0].ObjectIDs[0] != 1 {
		t.Fatalf("compacted opaque list = %+v; want a single command containing only object 1", res.Opaque)
	}
}

// TestNoHZBSamplerSkipsOcclusionTest models the HZB-producing pass itself,
// which must not cull against a pyramid that does not exist yet.
func TestNoHZBSamplerSkipsOcclusionTest(t *testing.T) {
	camera := identityCamera()
	frustum := acceptAllFrustum()

	quadA := unitSphereInstance(1, 0.3)
	quadB := unitSphereInstance(2, 0.7)
	groups := []Group{{Instances: []Instance{quadA, quadB}}}

	res := Generate(groups, camera, frustum, nil)
	if res.SurvivorCount != 2 {
		t.Fatalf("SurvivorCount with hzb=nil = %d; want 2 (no occlusion test run)", res.SurvivorCount)
	}
}
