package gpu

import (
	"image"
	"time"
)

// Device is everything the renderer asks of a logical device. All methods are called
// from the render thread.
type Device interface {
	Properties() DeviceProperties
	WaitIdle() error

	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)

	SurfaceSupport() (*SurfaceSupport, error)
	NewSwapchain(info SwapchainInfo) (Swapchain, error)
	NewColorView(img Image, format Format) (ImageView, error)
	NewDepthTarget(extent Extent2D) (DepthTarget, error)
	NewFramebuffer(pass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)

	// NewMappedBuffer allocates host-visible, host-coherent memory that stays mapped
	// until Destroy.
	NewMappedBuffer(size int, usage BufferUsage) (MappedBuffer, error)
	// NewDeviceBuffer uploads data through a staging buffer into device-local memory.
	NewDeviceBuffer(data []byte, usage BufferUsage) (Buffer, error)
	NewTexture(img *image.RGBA) (Texture, error)

	NewDescriptorPool(maxSets int, sizes []PoolSize) (DescriptorPool, error)
	NewCommandBuffers(count int) ([]CommandBuffer, error)

	NewPipelineCache(initialData []byte) (PipelineCache, error)
	NewPipeline(info PipelineInfo) (*PipelineBundle, error)

	Submit(info SubmitInfo) error
	// Present reports StatusSuboptimal alongside a nil error when the image was shown
	// but the swapchain no longer matches the surface.
	Present(info PresentInfo) (Status, error)
}

type Fence interface {
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

type Semaphore interface {
	Destroy()
}

// Image is a swapchain image. It is owned by its swapchain and never destroyed directly.
type Image interface {
	Index() int
}

type ImageView interface {
	Destroy()
}

type DepthTarget interface {
	Format() Format
	View() ImageView
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Buffer interface {
	Size() int
	Destroy()
}

// MappedBuffer is a Buffer whose memory is visible through Bytes until Destroy, which
// unmaps before freeing.
type MappedBuffer interface {
	Buffer
	Bytes() []byte
}

type Texture interface {
	Extent() Extent2D
	Destroy()
}

type DescriptorSetLayout interface {
	Destroy()
}

// DescriptorPool frees every set allocated from it on Destroy; sets are never freed
// individually.
type DescriptorPool interface {
	Allocate(layout DescriptorSetLayout, count int) ([]DescriptorSet, error)
	Destroy()
}

type DescriptorSet interface {
	WriteBuffer(binding int, kind DescriptorType, buf Buffer) error
	WriteTexture(binding int, tex Texture) error
}

type Swapchain interface {
	Images() ([]Image, error)
	// AcquireNextImage signals signal once the returned image may be rendered to.
	AcquireNextImage(timeout time.Duration, signal Semaphore) (int, Status, error)
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Pipeline interface {
	Destroy()
}

type PipelineLayout interface {
	Destroy()
}

type PipelineCache interface {
	Data() ([]byte, error)
	Destroy()
}

type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error

	BeginRenderPass(pass RenderPass, framebuffer Framebuffer, extent Extent2D, clear ClearValues) error
	EndRenderPass()
	SetViewport(extent Extent2D)
	BindPipeline(pipeline Pipeline)
	BindDescriptorSet(layout PipelineLayout, set int, descriptors DescriptorSet)
	BindVertexBuffer(buf Buffer)
	BindIndexBuffer(buf Buffer)
	DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int)

	Free()
}

// Destroy releases the bundle's handles, pipeline first. Nil members are skipped.
func (b *PipelineBundle) Destroy() {
	if b == nil {
		return
	}
	if b.Pipeline != nil {
		b.Pipeline.Destroy()
		b.Pipeline = nil
	}
	if b.Layout != nil {
		b.Layout.Destroy()
		b.Layout = nil
	}
	if b.RenderPass != nil {
		b.RenderPass.Destroy()
		b.RenderPass = nil
	}
	if b.MaterialLayout != nil {
		b.MaterialLayout.Destroy()
		b.MaterialLayout = nil
	}
	if b.FrameLayout != nil {
		b.FrameLayout.Destroy()
		b.FrameLayout = nil
	}
}
