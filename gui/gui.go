// Package gui implements the GUI overlay pass (spec.md's component table,
// expanded as SPEC_FULL.md §4.14): it accepts one immediate-mode draw list
// per frame from the external editor/GUI application, uploads it through a
// single coalesced vertex/index buffer write, and returns one command per
// clip-rect run for the caller to record as a draw call. It also owns the font atlas texture, which is re-created
// and rebound through an AtlasUploader whenever the host reports a new
// atlas bitmap (e.g. after a DPI or resize change) — following the same
// "next frame boundary, never mid-frame" rule spec §4.3 requires of texture
// mip updates.
package gui

import (
	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/rerr"
)

// Vertex is one immediate-mode GUI vertex: screen-space position, atlas/
// texture UV, and a straight-alpha RGBA tint.
type Vertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

// Rect is an axis-aligned scissor rectangle in framebuffer pixels.
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// Empty reports whether r has zero or negative area, and so draws nothing.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// DrawCommand is one clip-rect run: a contiguous span of the frame's index
// buffer, sampling one texture (the font atlas or a GUI-supplied image id),
// scissored to Clip.
type DrawCommand struct {
	Clip        Rect
	TextureID   uint32
	IndexOffset uint32
	IndexCount  uint32
}

// DrawList is one frame's complete immediate-mode GUI output: a flat vertex
// and index buffer plus the ordered clip-rect runs that index into it.
type DrawList struct {
	Vertices []Vertex
	Indices  []uint32
	Commands []DrawCommand
}

// AtlasUpdate is a new font atlas bitmap the host reports. Pixels is a
// single-channel (alpha-only) bitmap, Width*Height bytes.
type AtlasUpdate struct {
	Width, Height uint32
	Pixels        []byte
}

// atlasFormat is the single-channel format code passed to AtlasUploader;
// opaque outside this package, same convention as texres.Texture.Format.
const atlasFormat uint32 = 1

// MeshUploader stages a frame's GUI vertex+index bytes for GPU transfer.
// Matches staging.Queue.UploadMesh's signature exactly (meshletPayload is
// passed nil — the overlay has no meshlet stream) so the staging package
// satisfies this interface with no adapter, the same narrow-interface
// pattern meshres uses for its own Uploader.
type MeshUploader interface {
	UploadMesh(vertexPayload, indexPayload, meshletPayload []byte, onReady func()) error
}

// AtlasUploader stages a new font atlas bitmap. Matches
// staging.Queue.UploadTextureFull exactly, mirroring texres.Uploader.
type AtlasUploader interface {
	UploadTextureFull(width, height, format, mipCount uint32, pixels []byte, onReady func(loadedMips uint64)) error
}

// Overlay drives one render surface's GUI pass across frames: it owns the
// font atlas's upload lifecycle and turns each frame's DrawList into a
// coalesced mesh upload plus a list of ready-to-issue clip-rect runs.
type Overlay struct {
	mesh  MeshUploader
	atlas AtlasUploader

	atlasGeneration uint64
	atlasReady      bool
	atlasWidth      uint32
	atlasHeight     uint32

	pendingGeneration uint64
	pendingReady      bool
}

// NewOverlay creates an Overlay with no atlas bound yet; SetAtlas must be
// called at least once before the first Submit whose DrawList references
// texture id 0 (the font atlas's conventional slot).
func NewOverlay(mesh MeshUploader, atlas AtlasUploader) *Overlay {
	return &Overlay{mesh: mesh, atlas: atlas}
}

// SetAtlas stages a new font atlas bitmap. Safe to call every frame; a
// no-op re-upload is avoided by the caller simply not calling it when the
// host has not reported a new atlas. The atlas becomes current only once
// its upload completes, matching the "never mid-frame" rebind rule.
func (o *Overlay) SetAtlas(u AtlasUpdate) error {
	if u.Width == 0 || u.Height == 0 {
		return rerr.Newf(rerr.BadInput, "gui.SetAtlas", "atlas dimensions must be nonzero, got %dx%d", u.Width, u.Height)
	}
	if uint64(len(u.Pixels)) != uint64(u.Width)*uint64(u.Height) {
		return rerr.Newf(rerr.BadInput, "gui.SetAtlas", "atlas pixel count %d does not match %dx%d", len(u.Pixels), u.Width, u.Height)
	}

	gen := o.pendingGeneration + 1
	o.pendingGeneration = gen
	o.pendingReady = false

	err := o.atlas.UploadTextureFull(u.Width, u.Height, atlasFormat, 1, u.Pixels, func(loadedMips uint64) {
		if gen != o.pendingGeneration {
			// superseded by a later SetAtlas before this upload completed
			return
		}
		o.atlasGeneration = gen
		o.atlasReady = true
		o.atlasWidth = u.Width
		o.atlasHeight = u.Height
	})
	if err != nil {
		return rerr.Newf(rerr.Staging, "gui.SetAtlas", "upload: %v", err)
	}
	return nil
}

// AtlasReady reports whether any font atlas has completed upload, i.e.
// whether the GUI pass can safely be issued yet.
func (o *Overlay) AtlasReady() bool { return o.atlasReady }

// Submit uploads list's vertex and index buffers as one coalesced write and
// invokes onReady once that upload lands. The caller records one draw call
// per list.Commands entry against the uploaded buffers once onReady fires
// (or immediately, if the upload backend completes synchronously).
func (o *Overlay) Submit(list DrawList, onReady func()) error {
	if len(list.Vertices) == 0 || len(list.Indices) == 0 {
		return rerr.Newf(rerr.BadInput, "gui.Submit", "draw list has no geometry")
	}
	for i, cmd := range list.Commands {
		if cmd.IndexOffset+cmd.IndexCount > uint32(len(list.Indices)) {
			return rerr.Newf(rerr.BadInput, "gui.Submit",
				"command %d spans indices [%d,%d) past the %d-index buffer", i, cmd.IndexOffset, cmd.IndexOffset+cmd.IndexCount, len(list.Indices))
		}
	}

	vertexPayload := common.SliceToBytes(list.Vertices)
	indexPayload := common.SliceToBytes(list.Indices)

	if err := o.mesh.UploadMesh(vertexPayload, indexPayload, nil, onReady); err != nil {
		return rerr.Newf(rerr.Staging, "gui.Submit", "upload: %v", err)
	}
	return nil
}
