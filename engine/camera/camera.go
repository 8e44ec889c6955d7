package camera

import (
	"sync"

	"github.com/ashenforge/rendercore/common"
	"github.com/ashenforge/rendercore/gpubackend"
)

// ClearSpec describes how a camera's target attachment is cleared before rendering.
type ClearSpec struct {
	// Clear indicates whether the color attachment should be cleared at all.
	Clear bool
	// Color is the clear color, used only when Clear is true.
	Color [4]float32
}

// cameraImpl is the implementation of the Camera interface.
//
// Unlike the teacher's camera, position and target are supplied directly by the
// scene producer each frame (see spec §6's active-camera descriptor) rather than
// read from an attached input controller — camera movement is the windowing/input
// collaborator's concern, out of the render core's scope.
type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	// order controls multi-camera submission order within a frame (lower first).
	order int
	// layersMask is the bitmask of scene layers this camera accepts.
	layersMask uint32
	clear      ClearSpec

	viewMatrix              [16]float32
	projectionMatrix        [16]float32
	viewProjectionMatrix    [16]float32
	inverseProjectionMatrix [16]float32

	// uboBinding is this camera's slot in gpubackend's shared camera UBO.
	// It starts zero-valued (Valid() == false) and is only populated once
	// gpubackend.Device.AllocateCameraBinding runs for this camera, mirroring
	// the teacher's "populated by the Renderer during initialization, not by
	// user-creation" bind-group lifecycle.
	uboBinding gpubackend.CameraBinding
}

// Camera defines the interface for an active render camera. It holds perspective
// settings plus the per-frame pose supplied by the scene producer, and computes
// view/projection matrices via SetPose().
type Camera interface {
	Position() (x, y, z float32)
	Target() (x, y, z float32)
	Up() (x, y, z float32)
	Fov() float32
	Aspect() float32
	Near() float32
	Far() float32
	Order() int
	LayersMask() uint32
	ClearSpec() ClearSpec

	ViewMatrix() [16]float32
	ProjectionMatrix() [16]float32
	ViewProjectionMatrix() [16]float32
	InverseProjectionMatrix() [16]float32
	// Frustum extracts the current view frustum from the view-projection matrix.
	Frustum() common.Frustum

	UBOBinding() gpubackend.CameraBinding

	// SetPose updates position/target/up for the frame and recomputes matrices.
	// Called once per frame by the scene producer before the camera is used.
	SetPose(position, target, up [3]float32)
	SetFov(fov float32)
	SetAspect(aspect float32)
	SetNear(near float32)
	SetFar(far float32)
	SetOrder(order int)
	SetLayersMask(mask uint32)
	SetClearSpec(spec ClearSpec)
	SetUBOBinding(binding gpubackend.CameraBinding)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings. Its UBO
// binding stays unassigned until SetUBOBinding is called once the camera is
// handed to a gpubackend.Device.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:                   &sync.Mutex{},
		up:                   [3]float32{0, 1, 0},
		fov:                  45.0 * (3.14159265 / 180.0),
		aspect:               1.0,
		near:                 0.1,
		far:                  100.0,
		layersMask:           ^uint32(0),
		viewMatrix:           [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		projectionMatrix:     [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		viewProjectionMatrix: [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Target() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target[0], c.target[1], c.target[2]
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Order() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

func (c *cameraImpl) LayersMask() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layersMask
}

func (c *cameraImpl) ClearSpec() ClearSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clear
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}

func (c *cameraImpl) SetPose(position, target, up [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.target = target
	c.up = up
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetOrder(order int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
}

func (c *cameraImpl) SetLayersMask(mask uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layersMask = mask
}

func (c *cameraImpl) SetClearSpec(spec ClearSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear = spec
}

func (c *cameraImpl) UBOBinding() gpubackend.CameraBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uboBinding
}

func (c *cameraImpl) SetUBOBinding(binding gpubackend.CameraBinding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uboBinding = binding
}

// updateMatrices recalculates the view, projection, view-projection, and inverse
// projection matrices from the camera's current pose. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.position[0], c.position[1], c.position[2],
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2],
	)

	common.Perspective(c.projectionMatrix[:],
		c.fov, c.aspect, c.near, c.far,
	)

	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}
