// Package drawgen implements the GPU draw-call generator (spec §4.8): a
// per-object frustum/HZB visibility test followed by a compaction pass that
// turns surviving object IDs into a contiguous list of indirect draw
// commands, one compaction stream for opaque/cutout groups and a separate
// one for transparent groups so the visibility test never reorders a
// transparency-sorted stream.
//
// A real backend runs this as two compute dispatches (test, then compact)
// writing into GPU buffers that a later indirect-draw call consumes; this
// package models the same two-phase shape in Go so the survivor-count and
// compaction-length invariants (spec §8 property 8) can be checked without a
// device. The per-group atomic instance counter a compute shader would use
// is modeled here as plain slice append, which makes survivor order within a
// group an artifact of input order rather than the nondeterministic order a
// real atomic counter would produce — callers that need a specific draw
// order (e.g. back-to-front transparency) must sort before handing instances
// to Generate, not after, exactly as spec.md's determinism note requires.
package drawgen

import (
	"math"

	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/matres"
	"github.com/ashenforge/rendercore/meshres"
)

// Instance is one object's per-frame visibility-test input: its model-space
// bounds (from the owning mesh) and its model matrix.
type Instance struct {
	ID          uint64
	ModelMatrix [16]float32
	Bounds      common.Bounds
}

// Group is one renderable-set draw group fed into Generate. Transparent
// marks which compaction stream (spec §4.8: "opaque/cutout and transparent
// are compacted separately") the group's survivors land in.
type Group struct {
	Pass         matres.PassID
	Material     matres.MaterialHandle
	VertexLayout meshres.VertexLayout
	VariantKey   string
	Transparent  bool
	Instances    []Instance
}

// Camera carries the view-projection matrix and the two projection-matrix
// scale terms (column-major index 0 and 5 of a common.Perspective-built
// matrix) that the HZB footprint estimate needs to convert a world-space
// radius into a screen-space pixel span.
type Camera struct {
	ViewProj [16]float32
	XScale   float32
	YScale   float32
}

// HZBSampler abstracts a previous frame's hierarchical-Z pyramid (spec
// §4.9) so Generate can be exercised without a live GPU texture. SampleMin
// returns the minimum (nearest) depth recorded anywhere inside the UV-space
// rectangle [minUV, maxUV] at the given mip.
type HZBSampler interface {
	SampleMin(minUV, maxUV [2]float32, mip uint32) float32
	BaseSize() (width, height uint32)
	MipCount() uint32
}

// DrawCommand is one compacted indirect-draw-equivalent entry: a base offset
// and count into its stream's contiguous output plus the surviving object
// IDs feeding instance data upload.
type DrawCommand struct {
	Pass          matres.PassID
	Material      matres.MaterialHandle
	VariantKey    string
	FirstInstance uint32
	InstanceCount uint32
	ObjectIDs     []uint64
}

// Result is the compacted output of one Generate call, split into the two
// independent compaction streams spec §4.8 requires.
type Result struct {
	Opaque        []DrawCommand
	Transparent   []DrawCommand
	TestedCount   int
	SurvivorCount int
}

// Generate runs the frustum test (and, when hzb is non-nil, the HZB
// occlusion test) over every instance in groups and compacts survivors into
// Result. Passing a nil hzb models the HZB-producing pass's own
// non-occluded variant (spec §4.8: "one variant using HZB occlusion, one
// without for the HZB-producing pass itself") and the unconditional first
// frame, which has no prior pyramid to cull against.
func Generate(groups []Group, camera Camera, frustum common.Frustum, hzb HZBSampler) Result {
	var res Result
	var opaqueOffset, transparentOffset uint32

	for _, g := range groups {
		var survivors []uint64
		for _, inst := range g.Instances {
			res.TestedCount++
			worldCenter := common.TransformPoint3(inst.ModelMatrix[:],
				inst.Bounds.Sphere.Center[0], inst.Bounds.Sphere.Center[1], inst.Bounds.Sphere.Center[2])
			worldRadius := inst.Bounds.Sphere.Radius * extractMaxScale(inst.ModelMatrix[:])

			if !frustum.IntersectsSphere(worldCenter, worldRadius) {
				continue
			}
			if hzb != nil && occluded(camera, worldCenter, worldRadius, hzb) {
				continue
			}
			survivors = append(survivors, inst.ID)
		}
		if len(survivors) == 0 {
			continue
		}
		res.SurvivorCount += len(survivors)

		cmd := DrawCommand{
			Pass:          g.Pass,
			Material:      g.Material,
			VariantKey:    g.VariantKey,
			InstanceCount: uint32(len(survivors)),
			ObjectIDs:     survivors,
		}
		if g.Transparent {
			cmd.FirstInstance = transparentOffset
			transparentOffset += cmd.InstanceCount
			res.Transparent = append(res.Transparent, cmd)
		} else {
			cmd.FirstInstance = opaqueOffset
			opaqueOffset += cmd.InstanceCount
			res.Opaque = append(res.Opaque, cmd)
		}
	}

	return res
}

// occluded reprojects center/radius into the HZB's UV space, picks the
// conservative mip level whose texel footprint covers the projected
// bounding rect in at most one texel, and culls if the sphere's projected
// depth is farther than the recorded minimum (spec §4.8 step 3).
//
// The sphere center's own projected depth stands in for "nearest z" rather
// than the true near-point depth of the sphere; at the screen-footprint
// granularity this test operates on (≤ one HZB texel), the difference is
// within the conservatism margin the mip selection already buys.
func occluded(camera Camera, center [3]float32, radius float32, hzb HZBSampler) bool {
	ndc, w := clipOf(camera, center)
	if w <= 0 {
		return false
	}

	bw, bh := hzb.BaseSize()
	halfPixelX := radius * camera.XScale / w * float32(bw) * 0.5
	halfPixelY := radius * camera.YScale / w * float32(bh) * 0.5
	pixelSpan := 2 * halfPixelX
	if 2*halfPixelY > pixelSpan {
		pixelSpan = 2 * halfPixelY
	}
	mip := chooseMipLevel(pixelSpan, hzb.MipCount())

	centerU := ndc[0]*0.5 + 0.5
	centerV := ndc[1]*0.5 + 0.5
	minUV := [2]float32{clamp01(centerU - halfPixelX/float32(bw)), clamp01(centerV - halfPixelY/float32(bh))}
	maxUV := [2]float32{clamp01(centerU + halfPixelX/float32(bw)), clamp01(centerV + halfPixelY/float32(bh))}

	sample := hzb.SampleMin(minUV, maxUV, mip)
	return ndc[2] > sample
}

// clipOf projects a world-space point through the camera's view-projection
// matrix and perspective-divides it, returning NDC xyz and the clip-space w
// (view-space depth for a right-handed projection built by common.Perspective).
func clipOf(camera Camera, p [3]float32) (ndc [3]float32, w float32) {
	m := camera.ViewProj
	cx := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	cy := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	cz := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	cw := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if cw == 0 {
		cw = 1e-6
	}
	return [3]float32{cx / cw, cy / cw, cz / cw}, cw
}

// chooseMipLevel picks the smallest mip whose texel covers a pixelSpan-wide
// footprint, clamped to the pyramid's available mips.
func chooseMipLevel(pixelSpan float32, mipCount uint32) uint32 {
	if pixelSpan <= 1 || mipCount == 0 {
		return 0
	}
	level := uint32(math.Ceil(math.Log2(float64(pixelSpan))))
	if level >= mipCount {
		level = mipCount - 1
	}
	return level
}

// extractMaxScale returns the largest basis-vector length among a column-major
// 4x4 matrix's three rotation/scale columns, used to scale a model-space
// bounds radius into a conservative world-space radius.
func extractMaxScale(m []float32) float32 {
	lens := [3]float32{
		vecLen(m[0], m[1], m[2]),
		vecLen(m[4], m[5], m[6]),
		vecLen(m[8], m[9], m[10]),
	}
	max := lens[0]
	if lens[1] > max {
		max = lens[1]
	}
	if lens[2] > max {
		max = lens[2]
	}
	return max
}

func vecLen(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
