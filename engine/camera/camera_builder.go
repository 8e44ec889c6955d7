package camera

import (
	"github.com/ashenforge/rendercore/gpubackend"
)

type CameraBuilderOption func(*cameraImpl)

// WithPose sets the camera's initial position, target, and up vector.
func WithPose(position, target, up [3]float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.position = position
		c.target = target
		c.up = up
	}
}

// WithFov sets the camera's field of view in radians.
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithOrder sets the camera's submission order relative to other active cameras.
func WithOrder(order int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.order = order
	}
}

// WithLayersMask restricts the camera to a subset of scene layers.
func WithLayersMask(mask uint32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.layersMask = mask
	}
}

// WithClearSpec sets the camera's target-attachment clear behavior.
func WithClearSpec(spec ClearSpec) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.clear = spec
	}
}

// WithUBOBinding attaches a pre-allocated camera UBO binding to the camera.
func WithUBOBinding(binding gpubackend.CameraBinding) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.uboBinding = binding
	}
}
