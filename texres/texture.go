// Package texres implements the texture factory (spec §4.3): a single
// bindless descriptor array backed by a slot table, a shared 1x1 magenta
// error texture occupying every unbound slot, and coalesced per-frame
// rewrite batching for newly-ready, dropped, and mip-updated textures.
//
// Grounded on the teacher's `common.TextureStagingData`/`SamplerStagingData`
// shape (engine/renderer/bind_group_provider consumes exactly these to stage
// a texture+sampler pair before binding) generalized from one-bind-group-
// per-material to one big bindless array indexed by handle id, which the
// teacher's per-material binding model doesn't need but the spec requires.
package texres

import (
	"sync"

	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/handle"
	"github.com/ashenforge/rendercore/rerr"
)

// MipType selects how a texture's mip chain is populated.
type MipType int

const (
	UploadAllGenerate MipType = iota
	UploadIndividually
)

// Handle identifies a texture slot.
type Handle = handle.Handle

// Texture is the spec §3 Texture record.
type Texture struct {
	Format     uint32
	Width      uint32
	Height     uint32
	MipCount   uint32
	LoadedMips uint64 // bit i set => mip i has been copied into GPU memory
	Sampler    common.SamplerStagingData
	Version    uint32
}

// LoadedRange returns the lowest base and highest loaded mip, which together
// describe the contiguous mip range a bindless entry must cover (spec §8 property 4). ok is false when
// no mip has been loaded yet.
func (t Texture) LoadedRange() (lowestBase, highest uint32, ok bool) {
	if t.LoadedMips == 0 {
		return 0, 0, false
	}
	for i := uint32(0); i < 64; i++ {
		if t.LoadedMips&(1<<i) != 0 {
			highest = i
			ok = true
		}
	}
	// lowest_loaded_base is always 0 for a texture with any mip loaded: mip 0
	// (the base level) is always uploaded first by upload_full/upload_all_generate,
	// and upload_individually uploads are expected to arrive base-out per
	// spec §4.3's "contiguous loaded range ending at the highest-detail
	// loaded mip" invariant.
	return 0, highest, ok
}

// Uploader stages texture payloads for GPU transfer. Implemented by the
// staging package.
type Uploader interface {
	UploadTextureFull(width, height, format, mipCount uint32, pixels []byte, onReady func(loadedMips uint64)) error
	UploadTextureMip(level uint32, pixels []byte, onReady func()) error
}

const (
	// MaxTextures bounds the bindless descriptor array size.
	MaxTextures = 4096
	errorSlot   = 0
)

// BindingUpdate is one entry in a coalesced descriptor-rewrite batch: slot
// index and the mip range its view must now cover.
type BindingUpdate struct {
	Slot        uint32
	LowestBase  uint32
	HighestMip  uint32
	UseErrorTex bool
}

// Factory owns the texture slot table and bindless array bookkeeping.
type Factory struct {
	mu       sync.Mutex
	table    *handle.Table[Texture]
	uploader Uploader
	dirty    map[Handle]struct{} // handles touched since the last FlushUpdates
}

// NewFactory creates a Factory. Every slot starts bound to the 1x1 magenta
// error texture until its real texture becomes ready (spec §4.3).
func NewFactory(dropLatency uint64, uploader Uploader) *Factory {
	return &Factory{
		table:    handle.NewTable[Texture](dropLatency),
		uploader: uploader,
		dirty:    make(map[Handle]struct{}),
	}
}

// CreateTexture allocates a slot and starts an asynchronous upload. Returns
// a live Handle immediately; LoadedMips is 0 until the first mip completes.
func (f *Factory) CreateTexture(format, width, height, mipCount uint32, mipType MipType, sampler common.SamplerStagingData, pixels []byte) (Handle, error) {
	if width == 0 || height == 0 || mipCount == 0 {
		return Handle{}, rerr.New(rerr.BadInput, "texres.CreateTexture", nil)
	}
	tex := Texture{Format: format, Width: width, Height: height, MipCount: mipCount, Sampler: sampler}
	h := f.table.Create(tex)

	f.markDirty(h)

	if mipType == UploadAllGenerate {
		err := f.uploader.UploadTextureFull(width, height, format, mipCount, pixels, func(loadedMips uint64) {
			f.table.Mutate(h, func(t *Texture) {
				t.LoadedMips = loadedMips
				t.Version++
			})
			f.markDirty(h)
		})
		if err != nil {
			return h, rerr.New(rerr.Staging, "texres.CreateTexture", err)
		}
	}
	return h, nil
}

// LoadTextureMip stages one mip level. On completion the texture's
// LoadedMips bit for level is set and the slot is queued for rebind (spec
// §4.3's "never mid-frame" rule: the rebind is only visible after the next
// FlushUpdates).
func (f *Factory) LoadTextureMip(h Handle, level uint32, bytes []byte) error {
	if _, ok := f.table.Get(h); !ok {
		return rerr.New(rerr.Lifecycle, "texres.LoadTextureMip", nil)
	}
	return f.uploader.UploadTextureMip(level, bytes, func() {
		f.table.Mutate(h, func(t *Texture) {
			t.LoadedMips |= 1 << level
			t.Version++
		})
		f.markDirty(h)
	})
}

func (f *Factory) markDirty(h Handle) {
	f.mu.Lock()
	f.dirty[h] = struct{}{}
	f.mu.Unlock()
}

// FlushUpdates drains the dirty set, returning the coalesced binding rewrite
// batch for this frame. Call once per frame orchestrator tick, after
// staging completions for the frame have been applied.
func (f *Factory) FlushUpdates() []BindingUpdate {
	f.mu.Lock()
	handles := make([]Handle, 0, len(f.dirty))
	for h := range f.dirty {
		handles = append(handles, h)
	}
	f.dirty = make(map[Handle]struct{})
	f.mu.Unlock()

	updates := make([]BindingUpdate, 0, len(handles))
	for _, h := range handles {
		tex, ok := f.table.Get(h)
		if !ok {
			updates = append(updates, BindingUpdate{Slot: h.ID, UseErrorTex: true})
			continue
		}
		lowest, highest, loaded := tex.LoadedRange()
		if !loaded {
			updates = append(updates, BindingUpdate{Slot: h.ID, UseErrorTex: true})
			continue
		}
		updates = append(updates, BindingUpdate{Slot: h.ID, LowestBase: lowest, HighestMip: highest})
	}
	return updates
}

// Get resolves h to its Texture record.
func (f *Factory) Get(h Handle) (Texture, bool) {
	return f.table.Get(h)
}

// Drop releases the factory's reference to h and clears any pending rebind
// for its slot, since a dropped texture's rebind would otherwise race the
// slot's reuse.
func (f *Factory) Drop(h Handle, frameIndex uint64) {
	f.table.Release(h, frameIndex)
	f.mu.Lock()
	delete(f.dirty, h)
	f.mu.Unlock()
}

// Retire frees any textures whose drop latency has elapsed.
func (f *Factory) Retire(currentFrame uint64) []Texture {
	return f.table.Retire(currentFrame)
}
