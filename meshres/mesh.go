// Package meshres implements the mesh factory (spec §4.2): one buddy
// allocator per vertex attribute layout, one shared allocator for indices,
// one for meshlets, and the mesh slot table. Grounded on the teacher's
// `engine/model` package for the mesh-as-interface-wrapped-struct shape and
// its builder pattern, generalized to the spec's handle/lifecycle discipline
// and attribute-layout addressing instead of the teacher's glTF-import-bound
// single static mesh shape.
package meshres

import (
	"sync"

	"github.com/ashenforge/rendercore/bufalloc"
	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/handle"
	"github.com/ashenforge/rendercore/rerr"
)

// Attribute identifies one vertex attribute stream. Positions are always
// present; the rest are optional per mesh, per spec §4.2.
type Attribute int

const (
	Position Attribute = iota
	Normal
	Tangent
	Color
	UV0
	UV1
	UV2
	UV3

	attributeCount
)

// VertexLayout is the set of attributes a mesh provides, as a bitmask over
// Attribute values. A material variant's required layout must be a subset of
// a mesh's layout for that mesh to be drawn with it (spec §3).
type VertexLayout uint32

func (l VertexLayout) Has(a Attribute) bool { return l&(1<<uint(a)) != 0 }
func (l VertexLayout) With(a Attribute) VertexLayout {
	return l | (1 << uint(a))
}

// IsSubsetOf reports whether every attribute in l is also present in other —
// the draw-group invariant from spec §3.
func (l VertexLayout) IsSubsetOf(other VertexLayout) bool {
	return l&other == l
}

// Handle identifies a mesh slot.
type Handle = handle.Handle

// Mesh is the spec §3 Mesh record.
type Mesh struct {
	Layout       VertexLayout
	Bounds       common.Bounds
	VertexBlock  [attributeCount]bufalloc.Block // indexed by Attribute; zero Block if absent
	IndexBlock   bufalloc.Block
	MeshletBlock bufalloc.Block
	VertexCount  uint32
	IndexCount   uint32
	MeshletCount uint32
	Ready        bool
	BLAS         *BLASHandle
	Version      uint32
}

// BLASHandle is an opaque reference to a ray-tracing bottom-level
// acceleration structure build, swapped in one frame after its staging
// request completes (spec §4.2 step 4).
type BLASHandle struct {
	id      uint64
	pending bool
}

// CreateMeshInput bundles the attribute data for one mesh creation request.
// Unset optional slices are nil. Bounds, if non-nil, skips recomputation
// (spec §4.2 step 2).
type CreateMeshInput struct {
	Positions [][3]float32
	Normals   [][3]float32
	Tangents  [][4]float32
	Colors    [][4]float32
	UVs       [4][][2]float32 // UVs[0]..UVs[3] map to UV0..UV3
	Indices   []uint32
	Bounds    *common.Bounds
	RayTraced bool
}

// Uploader stages a mesh's vertex/index/meshlet bytes for GPU transfer and
// invokes onReady once the transfer completes. Implemented by the staging
// package; kept as a narrow interface here so meshres has no import-time
// dependency on staging's wgpu plumbing.
type Uploader interface {
	UploadMesh(vertexPayload, indexPayload, meshletPayload []byte, onReady func()) error
}

type layoutPool struct {
	alloc *bufalloc.Allocator
}

// Factory owns the per-layout, index, and meshlet allocators plus the mesh
// slot table. Safe for concurrent use: allocator work is serialized by the
// factory's own mutex, and lookups go through the slot table's internal
// locking (spec §5: "each resource kind holds an independent mutex").
type Factory struct {
	mu       sync.Mutex
	layouts  map[Attribute]*layoutPool
	indices  *bufalloc.Allocator
	meshlets *bufalloc.Allocator
	table    *handle.Table[Mesh]
	uploader Uploader

	baseBlockLen uint32
	dropLatency  uint64
}

// Config bundles the per-allocator sizing parameters a Factory is built
// with. ObjectSize/UsageFlags are backend-buffer-creation metadata threaded
// through to the allocator but otherwise opaque to meshres.
type Config struct {
	BaseBlockLen uint32
	InitialBlockCount uint32
	ObjectSize        uint32
	UsageFlags        uint32
	DropLatencyFrames uint64
}

// NewFactory creates a Factory whose position, index and meshlet allocators
// are pre-sized per cfg. Other attribute allocators are created lazily, on
// the first mesh that uses the attribute, with a single initial block.
func NewFactory(cfg Config, uploader Uploader) *Factory {
	f := &Factory{
		layouts:      make(map[Attribute]*layoutPool),
		table:        handle.NewTable[Mesh](cfg.DropLatencyFrames),
		uploader:     uploader,
		baseBlockLen: cfg.BaseBlockLen,
		dropLatency:  cfg.DropLatencyFrames,
	}
	f.layouts[Position] = &layoutPool{alloc: bufalloc.New(cfg.BaseBlockLen, cfg.InitialBlockCount, cfg.ObjectSize, cfg.UsageFlags)}
	f.indices = bufalloc.New(cfg.BaseBlockLen, cfg.InitialBlockCount, 4, cfg.UsageFlags)
	f.meshlets = bufalloc.New(cfg.BaseBlockLen, cfg.InitialBlockCount, cfg.ObjectSize, cfg.UsageFlags)
	return f
}

func (f *Factory) poolFor(a Attribute, objectSize, usageFlags uint32) *layoutPool {
	if p, ok := f.layouts[a]; ok {
		return p
	}
	p := &layoutPool{alloc: bufalloc.New(f.baseBlockLen, 1, objectSize, usageFlags)}
	f.layouts[a] = p
	return p
}

// CreateMesh validates attributes, computes bounds, allocates blocks, and
// kicks off an asynchronous upload. Returns a live Handle immediately; the
// mesh is not eligible for draws until its Ready flag flips (observed
// through Get).
func (f *Factory) CreateMesh(in CreateMeshInput) (Handle, error) {
	n := len(in.Positions)
	if n == 0 {
		return Handle{}, rerr.New(rerr.BadInput, "meshres.CreateMesh", nil)
	}
	if in.Normals != nil && len(in.Normals) != n {
		return Handle{}, rerr.Newf(rerr.BadInput, "meshres.CreateMesh", "normals length %d != positions length %d", len(in.Normals), n)
	}
	if in.Tangents != nil && len(in.Tangents) != n {
		return Handle{}, rerr.Newf(rerr.BadInput, "meshres.CreateMesh", "tangents length %d != positions length %d", len(in.Tangents), n)
	}
	if in.Colors != nil && len(in.Colors) != n {
		return Handle{}, rerr.Newf(rerr.BadInput, "meshres.CreateMesh", "colors length %d != positions length %d", len(in.Colors), n)
	}
	for i, uv := range in.UVs {
		if uv != nil && len(uv) != n {
			return Handle{}, rerr.Newf(rerr.BadInput, "meshres.CreateMesh", "uv%d length %d != positions length %d", i, len(uv), n)
		}
	}
	if len(in.Indices) == 0 {
		return Handle{}, rerr.New(rerr.BadInput, "meshres.CreateMesh", nil)
	}

	bounds := in.Bounds
	if bounds == nil {
		b := common.ComputeBounds(in.Positions)
		bounds = &b
	}

	f.mu.Lock()
	var mesh Mesh
	mesh.Bounds = *bounds
	mesh.VertexCount = uint32(n)
	mesh.IndexCount = uint32(len(in.Indices))
	mesh.Layout = mesh.Layout.With(Position)

	vertexBlock, err := f.allocateAttribute(Position, n, 12)
	if err != nil {
		f.mu.Unlock()
		return Handle{}, err
	}
	mesh.VertexBlock[Position] = vertexBlock

	type attrReq struct {
		attr Attribute
		data bool
		size uint32
	}
	reqs := []attrReq{
		{Normal, in.Normals != nil, 12},
		{Tangent, in.Tangents != nil, 16},
		{Color, in.Colors != nil, 16},
		{UV0, in.UVs[0] != nil, 8},
		{UV1, in.UVs[1] != nil, 8},
		{UV2, in.UVs[2] != nil, 8},
		{UV3, in.UVs[3] != nil, 8},
	}
	for _, r := range reqs {
		if !r.data {
			continue
		}
		block, err := f.allocateAttribute(r.attr, n, r.size)
		if err != nil {
			f.mu.Unlock()
			return Handle{}, err
		}
		mesh.VertexBlock[r.attr] = block
		mesh.Layout = mesh.Layout.With(r.attr)
	}

	idxBlock, _, err := f.indices.Allocate(uint32(len(in.Indices)))
	if err != nil {
		f.mu.Unlock()
		return Handle{}, rerr.New(rerr.ResourceExhausted, "meshres.CreateMesh", err)
	}
	mesh.IndexBlock = idxBlock
	f.mu.Unlock()

	h := f.table.Create(mesh)

	payload := marshalIndices(in.Indices)
	err = f.uploader.UploadMesh(nil, payload, nil, func() {
		f.table.Mutate(h, func(m *Mesh) { m.Ready = true })
	})
	if err != nil {
		return h, rerr.New(rerr.Staging, "meshres.CreateMesh", err)
	}
	return h, nil
}

func (f *Factory) allocateAttribute(a Attribute, count int, objectSize uint32) (bufalloc.Block, error) {
	pool := f.poolFor(a, objectSize, 0)
	block, _, err := pool.alloc.Allocate(uint32(count))
	if err != nil {
		return bufalloc.Block{}, rerr.New(rerr.ResourceExhausted, "meshres.allocateAttribute", err)
	}
	return block, nil
}

func marshalIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, v := range indices {
		out[i*4+0] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

// Get resolves h to its Mesh record. ok is false for a stale handle.
func (f *Factory) Get(h Handle) (Mesh, bool) {
	return f.table.Get(h)
}

// IsReady reports whether h resolves to a mesh whose transfer has completed.
// A stale handle is never ready.
func (f *Factory) IsReady(h Handle) bool {
	m, ok := f.table.Get(h)
	return ok && m.Ready
}

// Drop releases the factory's reference to h. The underlying blocks are
// freed once the resource's drop-latency has elapsed (handled by Retire).
func (f *Factory) Drop(h Handle, frameIndex uint64) {
	f.table.Release(h, frameIndex)
}

// Retire frees any meshes whose drop latency has elapsed as of currentFrame,
// returning their blocks to the owning allocators.
func (f *Factory) Retire(currentFrame uint64) {
	retired := f.table.Retire(currentFrame)
	if len(retired) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range retired {
		for a := Attribute(0); a < attributeCount; a++ {
			if !m.Layout.Has(a) {
				continue
			}
			if pool, ok := f.layouts[a]; ok {
				pool.alloc.Free(m.VertexBlock[a])
			}
		}
		f.indices.Free(m.IndexBlock)
		if m.MeshletCount > 0 {
			f.meshlets.Free(m.MeshletBlock)
		}
	}
}
