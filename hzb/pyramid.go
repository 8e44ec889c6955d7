// Package hzb builds the hierarchical-Z pyramid drawgen's occlusion test
// samples against (spec §4.9). The GPU side of this is a depth-only
// re-render of the previous frame's late visibility set into a
// power-of-two depth target, using the teacher's shadow-pass-shaped
// minimal pipeline (vertex only, conservative) — that wiring lives in
// gpubackend.Backend, which holds the concrete device and pipeline
// keys for the frame. This package owns the part that needs to be
// independently testable: the compute-style min-reduction chain that turns
// a base depth buffer into ⌈log2(max(w,h))⌉ reduced mips, and the sampling
// query drawgen.HZBSampler needs against it.
package hzb

import (
	"fmt"
	"math"
)

type dim struct{ w, h uint32 }

// Pyramid is the CPU-resident mirror of the GPU depth pyramid. In
// production this mirror is read back once per frame (or, on backends that
// support it, the compute reduction runs entirely on the GPU and this
// struct holds only the dimension bookkeeping the draw-call generator
// needs); the reduction arithmetic is identical either way, which is what
// makes it worth keeping as plain Go rather than only as a shader.
type Pyramid struct {
	dims []dim
	mips [][]float32
}

// NewPyramid allocates a pyramid for a baseWidth x baseHeight depth target.
// baseWidth and baseHeight must both be a power of two and at least 1.
func NewPyramid(baseWidth, baseHeight uint32) (*Pyramid, error) {
	if baseWidth == 0 || baseHeight == 0 {
		return nil, fmt.Errorf("hzb: base dimensions must be non-zero, got %dx%d", baseWidth, baseHeight)
	}
	if !isPowerOfTwo(baseWidth) || !isPowerOfTwo(baseHeight) {
		return nil, fmt.Errorf("hzb: base dimensions must be a power of two, got %dx%d", baseWidth, baseHeight)
	}

	reductions := int(math.Ceil(math.Log2(float64(maxU32(baseWidth, baseHeight)))))
	p := &Pyramid{
		dims: make([]dim, reductions+1),
		mips: make([][]float32, reductions+1),
	}
	w, h := baseWidth, baseHeight
	for i := range p.dims {
		p.dims[i] = dim{w, h}
		p.mips[i] = make([]float32, w*h)
		if w > 1 {
			w = (w + 1) / 2
		}
		if h > 1 {
			h = (h + 1) / 2
		}
	}
	return p, nil
}

// SetBase loads a freshly rendered base-mip depth buffer (row-major,
// baseWidth*baseHeight entries) and rebuilds every reduced mip from it.
func (p *Pyramid) SetBase(depth []float32) error {
	base := p.dims[0]
	if uint32(len(depth)) != base.w*base.h {
		return fmt.Errorf("hzb: base depth buffer has %d texels; want %d (%dx%d)", len(depth), base.w*base.h, base.w, base.h)
	}
	copy(p.mips[0], depth)

	for level := 1; level < len(p.mips); level++ {
		src := p.mips[level-1]
		srcDim := p.dims[level-1]
		dst := p.mips[level]
		dstDim := p.dims[level]
		for y := uint32(0); y < dstDim.h; y++ {
			for x := uint32(0); x < dstDim.w; x++ {
				dst[y*dstDim.w+x] = min4(src, srcDim, x, y)
			}
		}
	}
	return nil
}

// min4 reduces the (up to) 2x2 footprint in src starting at (2x, 2y),
// clamping to the source's edge when an odd dimension leaves a dangling row
// or column — matching a standard min-downsample's edge behavior.
func min4(src []float32, srcDim dim, x, y uint32) float32 {
	x0, y0 := 2*x, 2*y
	x1, y1 := x0+1, y0+1
	if x1 >= srcDim.w {
		x1 = x0
	}
	if y1 >= srcDim.h {
		y1 = y0
	}
	v := src[y0*srcDim.w+x0]
	v = minF(v, src[y0*srcDim.w+x1])
	v = minF(v, src[y1*srcDim.w+x0])
	v = minF(v, src[y1*srcDim.w+x1])
	return v
}

// SampleMin returns the minimum depth recorded anywhere inside the
// UV-space rectangle [minUV, maxUV] at the given mip level, implementing
// drawgen.HZBSampler. minUV/maxUV are expected in [0, 1].
func (p *Pyramid) SampleMin(minUV, maxUV [2]float32, mip uint32) float32 {
	if int(mip) >= len(p.mips) {
		mip = uint32(len(p.mips) - 1)
	}
	d := p.dims[mip]
	x0 := texelClamp(minUV[0], d.w)
	y0 := texelClamp(minUV[1], d.h)
	x1 := texelClamp(maxUV[0], d.w)
	y1 := texelClamp(maxUV[1], d.h)

	m := p.mips[mip]
	result := float32(math.MaxFloat32)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			result = minF(result, m[y*d.w+x])
		}
	}
	return result
}

// BaseSize returns the pyramid's base-mip resolution, implementing
// drawgen.HZBSampler.
func (p *Pyramid) BaseSize() (width, height uint32) {
	return p.dims[0].w, p.dims[0].h
}

// MipCount returns the total number of addressable levels (the base depth
// buffer plus every reduced mip), implementing drawgen.HZBSampler.
func (p *Pyramid) MipCount() uint32 {
	return uint32(len(p.mips))
}

func texelClamp(uv float32, extent uint32) uint32 {
	if uv < 0 {
		uv = 0
	}
	if uv > 1 {
		uv = 1
	}
	t := uint32(uv * float32(extent))
	if t >= extent {
		t = extent - 1
	}
	return t
}

func isPowerOfTwo(v uint32) bool { return v != 0 && v&(v-1) == 0 }

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
