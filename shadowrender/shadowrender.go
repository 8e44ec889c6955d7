// Package shadowrender implements cascaded sun shadows: K cascades, each
// with its own light-space camera computed from a tight fit around that
// cascade's slice of the main camera frustum. This package is pure CPU
// math — split computation and light-view-projection construction — with
// no GPU calls of its own; the per-cascade depth target creation and draw
// recording that consumes these matrices lives in
// gpubackend.Backend.RenderShadowCascades, which builds one depth texture
// and isolated render pass per cascade the way the teacher's single-target
// shadow machinery built one.
package shadowrender

import (
	"fmt"
	"math"

	"github.com/ashenforge/rendercore/common"
)

// Config describes the cascade split range and shadow map resolution shared
// by every cascade.
type Config struct {
	CascadeCount uint32
	Near, Far    float32
	Resolution   uint32 // shadow map width == height, power-of-two preferred
}

// CascadeSplit is one cascade's near/far range within [Config.Near, Config.Far].
type CascadeSplit struct {
	Near, Far float32
}

// ComputeSplits divides [cfg.Near, cfg.Far] into cfg.CascadeCount ranges by
// squaring a linear interpolation parameter, per spec §4.10 — this biases
// splits toward the near plane, giving close cascades tighter, higher
// resolution coverage.
func ComputeSplits(cfg Config) []CascadeSplit {
	splits := make([]CascadeSplit, cfg.CascadeCount)
	span := cfg.Far - cfg.Near
	for i := range splits {
		t0 := float32(i) / float32(cfg.CascadeCount)
		t1 := float32(i+1) / float32(cfg.CascadeCount)
		splits[i] = CascadeSplit{
			Near: cfg.Near + span*t0*t0,
			Far:  cfg.Near + span*t1*t1,
		}
	}
	return splits
}

// LightViewProj computes a tight-fitting orthographic view-projection
// matrix for one cascade: it recovers the eight world-space corners of the
// camera frustum slice between ndcNear and ndcFar (by unprojecting NDC
// corners through the camera's inverse view-projection matrix), builds a
// light-facing view matrix centered on those corners, then fits an
// orthographic box around them in light space.
//
// ndcNear/ndcFar are the split's near/far expressed in the camera's NDC
// depth range [0, 1], not world units — callers convert a CascadeSplit's
// world-space Near/Far via the camera's own projection first.
func LightViewProj(cameraInvViewProj [16]float32, ndcNear, ndcFar float32, sunDirection [3]float32) [16]float32 {
	corners := frustumCornersWorld(cameraInvViewProj, ndcNear, ndcFar)

	var center [3]float32
	for _, c := range corners {
		center[0] += c[0]
		center[1] += c[1]
		center[2] += c[2]
	}
	center[0] /= 8
	center[1] /= 8
	center[2] /= 8

	dir := normalize(sunDirection)
	const backoff = 1000.0 // place the light eye far enough back that every cascade fits in front of it
	eye := [3]float32{center[0] - dir[0]*backoff, center[1] - dir[1]*backoff, center[2] - dir[2]*backoff}

	var view [16]float32
	up := [3]float32{0, 1, 0}
	if absF(dir[1]) > 0.99 {
		up = [3]float32{0, 0, 1}
	}
	common.LookAt(view[:], eye[0], eye[1], eye[2], center[0], center[1], center[2], up[0], up[1], up[2])

	var minB, maxB [3]float32
	for i, c := range corners {
		p := common.TransformPoint3(view[:], c[0], c[1], c[2])
		if i == 0 {
			minB, maxB = p, p
			continue
		}
		for k := 0; k < 3; k++ {
			if p[k] < minB[k] {
				minB[k] = p[k]
			}
			if p[k] > maxB[k] {
				maxB[k] = p[k]
			}
		}
	}

	var proj [16]float32
	common.Ortho(proj[:], minB[0], maxB[0], minB[1], maxB[1], -maxB[2], -minB[2])

	var out [16]float32
	common.Mul4(out[:], proj[:], view[:])
	return out
}

func frustumCornersWorld(invViewProj [16]float32, ndcNear, ndcFar float32) [8][3]float32 {
	var corners [8][3]float32
	i := 0
	for _, z := range [2]float32{ndcNear, ndcFar} {
		for _, y := range [2]float32{-1, 1} {
			for _, x := range [2]float32{-1, 1} {
				corners[i] = unprojectNDC(invViewProj, x, y, z)
				i++
			}
		}
	}
	return corners
}

func unprojectNDC(inv [16]float32, x, y, z float32) [3]float32 {
	cx := inv[0]*x + inv[4]*y + inv[8]*z + inv[12]
	cy := inv[1]*x + inv[5]*y + inv[9]*z + inv[13]
	cz := inv[2]*x + inv[6]*y + inv[10]*z + inv[14]
	cw := inv[3]*x + inv[7]*y + inv[11]*z + inv[15]
	if cw == 0 {
		cw = 1e-6
	}
	return [3]float32{cx / cw, cy / cw, cz / cw}
}

func normalize(v [3]float32) [3]float32 {
	l := vecLen(v[0], v[1], v[2])
	if l == 0 {
		return [3]float32{0, -1, 0}
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

func vecLen(x, y, z float32) float32 {
	return float32(math.Sqrt(float64(x*x + y*y + z*z)))
}

func absF(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// NullShadow describes the 1x1 cleared depth image kept as a fallback bind
// for renderers that must sample a shadow map even when no cascade is
// active (spec §4.10).
type NullShadow struct {
	Width, Height uint32
}

// NewNullShadow returns the fixed 1x1 fallback descriptor.
func NewNullShadow() NullShadow {
	return NullShadow{Width: 1, Height: 1}
}

// ValidateConfig rejects a cascade count of zero, which would make
// ComputeSplits divide by zero.
func ValidateConfig(cfg Config) error {
	if cfg.CascadeCount == 0 {
		return fmt.Errorf("shadowrender: CascadeCount must be at least 1")
	}
	if cfg.Far <= cfg.Near {
		return fmt.Errorf("shadowrender: Far (%v) must exceed Near (%v)", cfg.Far, cfg.Near)
	}
	return nil
}
