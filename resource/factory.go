// Package resource is the resource-factory facade (spec §4's "Resource
// factory (facade)" row and §6's create_*/set_* operations): it composes
// meshres, texres, and matres plus a shader slot table behind one surface,
// and drives their shared per-frame drop-queue retirement.
//
// Grounded on the teacher's top-level `engine.go`, which is itself a facade
// composing renderer/scene/window/profiler behind one struct with a builder
// — the same "one façade, several owned subsystems, one mutex-guarded
// operation per concern" shape, generalized here to resource creation
// instead of frame ticking.
package resource

import (
	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/handle"
	"github.com/ashenforge/rendercore/matres"
	"github.com/ashenforge/rendercore/meshres"
	"github.com/ashenforge/rendercore/rerr"
	"github.com/ashenforge/rendercore/texres"
)

// ShaderHandle identifies a shader slot.
type ShaderHandle = handle.Handle

// Shader is the compiled-shader-module record backing create_shader (spec
// §6). Actual pipeline/module compilation is gpubackend's concern (the
// teacher's engine/renderer/shader package); this package only tracks the
// declaration and hands back a stable handle other resources (materials)
// reference by id.
type Shader struct {
	DebugName      string
	Code           string
	TextureSlots   uint32
	DataSize       uint32
	WorkGroupSize  [3]uint32
}

// Config bundles the sub-factory configuration the resource Factory is
// built with.
type Config struct {
	Mesh        meshres.Config
	MeshUpload  meshres.Uploader
	TexUpload   texres.Uploader
	FIF         uint32
	DropLatency uint64
}

// Factory composes the mesh, texture, material, and shader resource
// factories behind the operations named in spec §6.
type Factory struct {
	meshes    *meshres.Factory
	textures  *texres.Factory
	materials *matres.Factory
	shaders   *handle.Table[Shader]
}

// NewFactory constructs a Factory from cfg.
func NewFactory(cfg Config) *Factory {
	return &Factory{
		meshes:    meshres.NewFactory(cfg.Mesh, cfg.MeshUpload),
		textures:  texres.NewFactory(cfg.DropLatency, cfg.TexUpload),
		materials: matres.NewFactory(cfg.FIF, cfg.DropLatency),
		shaders:   handle.NewTable[Shader](cfg.DropLatency),
	}
}

// CreateMesh implements spec §6's create_mesh.
func (f *Factory) CreateMesh(in meshres.CreateMeshInput) (meshres.Handle, error) {
	return f.meshes.CreateMesh(in)
}

// GetMesh resolves a mesh handle.
func (f *Factory) GetMesh(h meshres.Handle) (meshres.Mesh, bool) { return f.meshes.Get(h) }

// DropMesh releases a mesh handle.
func (f *Factory) DropMesh(h meshres.Handle, frameIndex uint64) { f.meshes.Drop(h, frameIndex) }

// CreateTexture implements spec §6's create_texture.
func (f *Factory) CreateTexture(format, width, height, mipCount uint32, mipType texres.MipType, sampler common.SamplerStagingData, pixels []byte) (texres.Handle, error) {
	return f.textures.CreateTexture(format, width, height, mipCount, mipType, sampler, pixels)
}

// LoadTextureMip implements spec §6's load_texture_mip.
func (f *Factory) LoadTextureMip(h texres.Handle, level uint32, bytes []byte) error {
	return f.textures.LoadTextureMip(h, level, bytes)
}

// GetTexture resolves a texture handle.
func (f *Factory) GetTexture(h texres.Handle) (texres.Texture, bool) { return f.textures.Get(h) }

// DropTexture releases a texture handle.
func (f *Factory) DropTexture(h texres.Handle, frameIndex uint64) {
	f.textures.Drop(h, frameIndex)
}

// FlushTextureBindings drains the coalesced bindless-array rewrite batch for
// this frame (spec §4.3).
func (f *Factory) FlushTextureBindings() []texres.BindingUpdate {
	return f.textures.FlushUpdates()
}

// CreateShader implements spec §6's create_shader. Validates the push
// constant/data-size contract declared here is honored later by any material
// variant referencing this shader (enforced at material-creation time by the
// caller, which cross-checks VariantDesc.PushConstantSize).
func (f *Factory) CreateShader(code, debugName string, textureSlots, dataSize uint32, workGroupSize [3]uint32) (ShaderHandle, error) {
	if code == "" {
		return ShaderHandle{}, rerr.New(rerr.BadInput, "resource.CreateShader", nil)
	}
	return f.shaders.Create(Shader{
		DebugName:     debugName,
		Code:          code,
		TextureSlots:  textureSlots,
		DataSize:      dataSize,
		WorkGroupSize: workGroupSize,
	}), nil
}

// GetShader resolves a shader handle.
func (f *Factory) GetShader(h ShaderHandle) (Shader, bool) { return f.shaders.Get(h) }

// CreateMaterial implements spec §6's create_material.
func (f *Factory) CreateMaterial(in matres.CreateMaterialInput) (matres.MaterialHandle, error) {
	return f.materials.CreateMaterial(in)
}

// CreateMaterialInstance implements spec §6's create_material_instance.
func (f *Factory) CreateMaterialInstance(mat matres.MaterialHandle) (matres.InstanceHandle, error) {
	return f.materials.CreateMaterialInstance(mat)
}

// SetMaterialData implements spec §6's set_material_data.
func (f *Factory) SetMaterialData(inst matres.InstanceHandle, data []byte) error {
	return f.materials.SetMaterialData(inst, data)
}

// SetMaterialTextureSlot implements spec §6's set_material_texture_slot. The
// bound texture's current loaded-mip state determines whether the instance's
// TexturesReady flag survives the write (spec §4.4).
func (f *Factory) SetMaterialTextureSlot(inst matres.InstanceHandle, slot uint32, tex texres.Handle) error {
	texLoaded := false
	if t, ok := f.textures.Get(tex); ok {
		_, _, texLoaded = t.LoadedRange()
	}
	return f.materials.SetMaterialTextureSlot(inst, slot, tex, texLoaded)
}

// FlushMaterials writes frame-dirty instances' CPU shadows into the frame's
// UBO region (spec §4.4 flush).
func (f *Factory) FlushMaterials(frame uint32, instances []matres.InstanceHandle) {
	f.materials.Flush(frame, instances)
}

// RetireAll processes every owned resource kind's drop queue for
// currentFrame (spec §4.13 step 3: "Process factory drop queues for this
// frame").
func (f *Factory) RetireAll(currentFrame uint64) {
	f.meshes.Retire(currentFrame)
	f.textures.Retire(currentFrame)
	f.materials.RetireInstances(currentFrame)
	f.shaders.Retire(currentFrame)
}
