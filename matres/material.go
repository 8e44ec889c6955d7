// Package matres implements the material factory (spec §4.4) and the
// material-type/material-instance data model from spec §3: per-pass variant
// selection with memoization, per-data-size UBO pools, and a texture-slot
// array pool for instance texture bindings.
//
// Grounded on the teacher's `engine/renderer/material` package for the
// interface-wrapped-impl-struct shape and its per-pass pipeline lookup
// (material.go's variant resolution), generalized from the teacher's
// fixed single-variant-per-material model to the spec's
// largest-subset-vertex-layout memoized selection.
package matres

import (
	"sync"

	"github.com/ashenforge/rendercore/handle"
	"github.com/ashenforge/rendercore/meshres"
	"github.com/ashenforge/rendercore/rerr"
	"github.com/ashenforge/rendercore/texres"
)

// PassID identifies a render pass a material can be drawn in (depth prepass,
// opaque, shadow, transparent, ...).
type PassID int

// TransparencyMode resolves spec.md §9 open question (c): whether a
// transparent variant's draw group should be back-to-front sorted by the
// renderable-set builder, or left in frustum/HZB-survival order because the
// variant's pipeline handles order independently (alpha-to-coverage, OIT).
// Opaque/cutout variants ignore this field.
type TransparencyMode int

const (
	BackToFront TransparencyMode = iota
	OrderIndependent
)

// VariantDesc is the caller-supplied description of one (pass, layout)
// variant at material-creation time (spec §6 create_material).
type VariantDesc struct {
	Pass             PassID
	VertexLayout     meshres.VertexLayout
	PipelineKey      string // resolved pipeline object lookup key in gpubackend's pipeline cache
	PushConstantSize uint32
	Transparency     TransparencyMode
}

// Variant is the resolved, cached binding for a (pass, requested_layout)
// lookup: the chosen descriptor plus the requested layout it was matched
// against.
type Variant struct {
	Desc            VariantDesc
	RequestedLayout meshres.VertexLayout
}

// Material is the spec §3 Material-type record.
type Material struct {
	descs        map[PassID][]VariantDesc // all caller-declared variants for each pass
	DataSize     uint32
	TextureSlots uint32

	mu    sync.Mutex
	cache map[variantKey]Variant
}

type variantKey struct {
	pass   PassID
	layout meshres.VertexLayout
}

// CreateMaterialInput bundles the per-pass variant descriptors and data
// layout for a new material type (spec §6 create_material).
type CreateMaterialInput struct {
	Variants     []VariantDesc
	DataSize     uint32
	TextureSlots uint32
}

func newMaterial(in CreateMaterialInput) (*Material, error) {
	if in.DataSize == 0 {
		return nil, rerr.New(rerr.BadInput, "matres.CreateMaterial", nil)
	}
	descs := make(map[PassID][]VariantDesc)
	seen := make(map[variantKey]bool)
	for _, v := range in.Variants {
		key := variantKey{pass: v.Pass, layout: v.VertexLayout}
		if seen[key] {
			return nil, rerr.Newf(rerr.BadInput, "matres.CreateMaterial", "duplicate variant for pass %d, layout %v", v.Pass, v.VertexLayout)
		}
		seen[key] = true
		descs[v.Pass] = append(descs[v.Pass], v)
	}
	return &Material{
		descs:        descs,
		DataSize:     in.DataSize,
		TextureSlots: in.TextureSlots,
		cache:        make(map[variantKey]Variant),
	}, nil
}

// ResolveVariant selects, for (pass, requestedLayout), the declared variant
// whose vertex layout is the largest subset of requestedLayout, memoizing
// the result (spec §3 "Lookup is memoized"). Returns false if no declared
// variant's layout is a subset of requestedLayout.
func (m *Material) ResolveVariant(pass PassID, requestedLayout meshres.VertexLayout) (Variant, bool) {
	key := variantKey{pass: pass, layout: requestedLayout}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache[key]; ok {
		return v, true
	}

	candidates := m.descs[pass]
	var best *VariantDesc
	var bestBits int
	for i := range candidates {
		c := &candidates[i]
		if !c.VertexLayout.IsSubsetOf(requestedLayout) {
			continue
		}
		bits := popcount(uint32(c.VertexLayout))
		if best == nil || bits > bestBits {
			best = c
			bestBits = bits
		}
	}
	if best == nil {
		return Variant{}, false
	}
	v := Variant{Desc: *best, RequestedLayout: requestedLayout}
	m.cache[key] = v
	return v, true
}

func popcount(x uint32) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

// MaterialHandle identifies a material type slot.
type MaterialHandle = handle.Handle

// InstanceHandle identifies a material instance slot.
type InstanceHandle = handle.Handle

const maxFIF = 3 // upper bound on frames-in-flight this engine supports

// Instance is the spec §3 Material-instance record.
type Instance struct {
	Material      MaterialHandle
	DataSlot      uint32
	TextureSlot   uint32
	Textures      []texres.Handle // length == owning material's TextureSlots
	Data          []byte          // length == owning material's DataSize
	DirtyFrames   uint32          // bitmask over 0..FIF-1
	TexturesReady bool
}

type dataPool struct {
	dataSize  uint32
	slots     []bool // true = occupied
	freeList  []uint32
	gpuShadow [][]byte // per-frame UBO shadow, indexed [frame][slot*dataSize:...]
	fif       uint32
}

func newDataPool(dataSize, fif uint32) *dataPool {
	shadow := make([][]byte, fif)
	return &dataPool{dataSize: dataSize, fif: fif, gpuShadow: shadow}
}

func (p *dataPool) allocate() uint32 {
	if n := len(p.freeList); n > 0 {
		slot := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.slots[slot] = true
		return slot
	}
	slot := uint32(len(p.slots))
	p.slots = append(p.slots, true)
	for f := range p.gpuShadow {
		p.gpuShadow[f] = append(p.gpuShadow[f], make([]byte, p.dataSize)...)
	}
	return slot
}

func (p *dataPool) free(slot uint32) {
	p.slots[slot] = false
	p.freeList = append(p.freeList, slot)
}

func (p *dataPool) writeFrame(frame, slot uint32, data []byte) {
	off := slot * p.dataSize
	copy(p.gpuShadow[frame][off:off+p.dataSize], data)
}

// Factory owns material-type and instance slot tables, one dataPool per
// distinct DataSize, and per-instance texture-slot arrays. Tables store
// pointers: the factory's own mu guards dataPools/textureArr bookkeeping,
// while each *Instance/*Material's own fields are mutated in place through
// the pointer the table hands back (single-writer per frame, per spec §5).
type Factory struct {
	mu         sync.Mutex
	materials  *handle.Table[*Material]
	instances  *handle.Table[*Instance]
	dataPools  map[uint32]*dataPool // keyed by DataSize
	textureArr map[InstanceHandle][]texres.Handle
	fif        uint32
}

// NewFactory creates a Factory configured for fif frames in flight.
func NewFactory(fif uint32, dropLatency uint64) *Factory {
	if fif == 0 || fif > maxFIF {
		fif = 2
	}
	return &Factory{
		materials:  handle.NewTable[*Material](dropLatency),
		instances:  handle.NewTable[*Instance](dropLatency),
		dataPools:  make(map[uint32]*dataPool),
		textureArr: make(map[InstanceHandle][]texres.Handle),
		fif:        fif,
	}
}

// CreateMaterial registers a new material type.
func (f *Factory) CreateMaterial(in CreateMaterialInput) (MaterialHandle, error) {
	m, err := newMaterial(in)
	if err != nil {
		return MaterialHandle{}, err
	}
	f.mu.Lock()
	if _, ok := f.dataPools[in.DataSize]; !ok {
		f.dataPools[in.DataSize] = newDataPool(in.DataSize, f.fif)
	}
	f.mu.Unlock()
	return f.materials.Create(m), nil
}

// CreateMaterialInstance allocates a data-pool slot and a texture-slot array
// for a new instance of material.
func (f *Factory) CreateMaterialInstance(material MaterialHandle) (InstanceHandle, error) {
	matPtr, ok := f.materials.Get(material)
	if !ok {
		return InstanceHandle{}, rerr.New(rerr.Lifecycle, "matres.CreateMaterialInstance", nil)
	}

	f.mu.Lock()
	pool := f.dataPools[matPtr.DataSize]
	slot := pool.allocate()
	f.mu.Unlock()

	inst := &Instance{
		Material:    material,
		DataSlot:    slot,
		Data:        make([]byte, matPtr.DataSize),
		Textures:    make([]texres.Handle, matPtr.TextureSlots),
		DirtyFrames: (1 << f.fif) - 1,
		// No texture without loaded mips has been bound yet.
		TexturesReady: true,
	}
	h := f.instances.Create(inst)
	f.mu.Lock()
	f.textureArr[h] = inst.Textures
	f.mu.Unlock()
	return h, nil
}

// SetMaterialData copies data into the instance's CPU shadow and marks it
// dirty for every frame in flight (spec §4.4).
func (f *Factory) SetMaterialData(inst InstanceHandle, data []byte) error {
	instPtr, ok := f.instances.Get(inst)
	if !ok {
		return rerr.New(rerr.Lifecycle, "matres.SetMaterialData", nil)
	}
	if len(data) != len(instPtr.Data) {
		return rerr.Newf(rerr.BadInput, "matres.SetMaterialData", "data length %d != material data_size %d", len(data), len(instPtr.Data))
	}
	copy(instPtr.Data, data)
	instPtr.DirtyFrames = (1 << f.fif) - 1
	return nil
}

// SetMaterialTextureSlot writes a texture handle into an instance's texture
// array, marks the instance dirty, and clears TexturesReady if tex has no
// loaded mips yet.
func (f *Factory) SetMaterialTextureSlot(inst InstanceHandle, slot uint32, tex texres.Handle, texLoaded bool) error {
	instPtr, ok := f.instances.Get(inst)
	if !ok {
		return rerr.New(rerr.Lifecycle, "matres.SetMaterialTextureSlot", nil)
	}
	if int(slot) >= len(instPtr.Textures) {
		return rerr.Newf(rerr.BadInput, "matres.SetMaterialTextureSlot", "slot %d out of range [0,%d)", slot, len(instPtr.Textures))
	}
	instPtr.Textures[slot] = tex
	instPtr.DirtyFrames = (1 << f.fif) - 1
	if !texLoaded {
		instPtr.TexturesReady = false
	}
	return nil
}

// Flush writes every frame-dirty instance's CPU shadow into the frame's UBO
// region and clears that frame's dirty bit (spec §4.4 flush(frame, instances)).
func (f *Factory) Flush(frame uint32, instances []InstanceHandle) {
	bit := uint32(1) << (frame % f.fif)
	for _, h := range instances {
		instPtr, ok := f.instances.Get(h)
		if !ok || instPtr.DirtyFrames&bit == 0 {
			continue
		}
		matPtr, ok := f.materials.Get(instPtr.Material)
		if !ok {
			continue
		}
		f.mu.Lock()
		pool := f.dataPools[matPtr.DataSize]
		pool.writeFrame(frame%f.fif, instPtr.DataSlot, instPtr.Data)
		f.mu.Unlock()
		instPtr.DirtyFrames &^= bit
	}
}

// GetMaterial resolves a material-type handle.
func (f *Factory) GetMaterial(h MaterialHandle) (*Material, bool) {
	return f.materials.Get(h)
}

// GetInstance resolves a material-instance handle.
func (f *Factory) GetInstance(h InstanceHandle) (*Instance, bool) {
	return f.instances.Get(h)
}

// DropInstance releases an instance handle; its data-pool slot is freed once
// drop latency elapses (see RetireInstances).
func (f *Factory) DropInstance(h InstanceHandle, frameIndex uint64) {
	f.instances.Release(h, frameIndex)
}

// RetireInstances frees data-pool slots for instances whose drop latency has
// elapsed.
func (f *Factory) RetireInstances(currentFrame uint64) {
	retired := f.instances.Retire(currentFrame)
	if len(retired) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range retired {
		matPtr, ok := f.materials.Get(inst.Material)
		if !ok {
			continue
		}
		if pool, ok := f.dataPools[matPtr.DataSize]; ok {
			pool.free(inst.DataSlot)
		}
	}
}
