package swapchain

import (
	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/syncobj"
)

const (
	matrixSize = 16 * 4

	// CameraSize is the uniform block: view, projection and their product.
	CameraSize = 3 * matrixSize
	// InstanceStride is one model matrix in the storage buffer.
	InstanceStride = matrixSize
)

// FrameResource is everything one swapchain image needs to be rendered into.
type FrameResource struct {
	Image       gpu.Image
	View        gpu.ImageView
	Framebuffer gpu.Framebuffer
	Depth       gpu.DepthTarget

	// Camera and Instances stay mapped for the resource's lifetime.
	Camera      gpu.MappedBuffer
	Instances   gpu.MappedBuffer
	Descriptors gpu.DescriptorSet

	Commands gpu.CommandBuffer
	Sync     *syncobj.Frame
}

// Destroy releases the frame's objects in dependency order: synchronization objects, the
// command buffer, the buffers, the framebuffer that references the views, then the views
// and the depth target. The descriptor set belongs to the bundle's pool and the image to
// the swapchain. Destroy may be called on a partially built frame and more than once.
func (f *FrameResource) Destroy() {
	if f == nil {
		return
	}

	f.Sync.Destroy()
	f.Sync = nil

	if f.Commands != nil {
		f.Commands.Free()
		f.Commands = nil
	}
	if f.Camera != nil {
		f.Camera.Destroy()
		f.Camera = nil
	}
	if f.Instances != nil {
		f.Instances.Destroy()
		f.Instances = nil
	}
	f.Descriptors = nil

	if f.Framebuffer != nil {
		f.Framebuffer.Destroy()
		f.Framebuffer = nil
	}
	if f.View != nil {
		f.View.Destroy()
		f.View = nil
	}
	if f.Depth != nil {
		f.Depth.Destroy()
		f.Depth = nil
	}
	f.Image = nil
}
