// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a texture binding pending GPU upload.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
	// MipLevel is the destination mip level this staging data targets.
	MipLevel uint32
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// texres.Texture carries one as its sampler configuration.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers, used in shadow mapping and similar techniques.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering, which can improve texture quality at oblique viewing angles.
	MaxAnisotropy uint16
}

// Sphere is a bounding sphere in model or world space.
type Sphere struct {
	Center [3]float32
	Radius float32
}

// AABB is an axis-aligned bounding box in model or world space.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// Bounds bundles the two bounding representations a mesh carries, per the
// render core's data model: a sphere for cheap frustum/HZB tests and an AABB
// for tighter ones.
type Bounds struct {
	Sphere Sphere
	AABB   AABB
}

// ComputeBounds derives a Bounds from a flat (x,y,z)-interleaved position slice.
// The sphere radius is the maximum distance from the origin; the AABB is the
// coordinate-wise extent. Callers that already know their bounds (e.g. a
// primitive generator) should skip this and supply Bounds directly.
func ComputeBounds(positions [][3]float32) Bounds {
	if len(positions) == 0 {
		return Bounds{}
	}

	var b Bounds
	b.AABB.Min = positions[0]
	b.AABB.Max = positions[0]
	var maxDistSq float32

	for _, p := range positions {
		for i := 0; i < 3; i++ {
			if p[i] < b.AABB.Min[i] {
				b.AABB.Min[i] = p[i]
			}
			if p[i] > b.AABB.Max[i] {
				b.AABB.Max[i] = p[i]
			}
		}
		distSq := p[0]*p[0] + p[1]*p[1] + p[2]*p[2]
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}

	b.Sphere.Radius = float32(math.Sqrt(float64(maxDistSq)))
	return b
}
