package swapchain

import (
	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// Bundle is one generation of the swapchain and everything sized by it. Frames are
// indexed by swapchain image index.
type Bundle struct {
	Swapchain   gpu.Swapchain
	Frames      []*FrameResource
	Format      gpu.SurfaceFormat
	PresentMode gpu.PresentMode
	Extent      gpu.Extent2D

	pool gpu.DescriptorPool
}

// ImageCount is the number of swapchain images, which is also the number of frames that
// may be in flight.
func (b *Bundle) ImageCount() int {
	return len(b.Frames)
}

// Destroy tears the bundle down: every frame, then the descriptor pool (which frees the
// frame descriptor sets), then the swapchain. It is safe on a partially built bundle and
// on a bundle that was already destroyed.
func (b *Bundle) Destroy() {
	if b == nil {
		return
	}

	for _, frame := range b.Frames {
		frame.Destroy()
	}
	b.Frames = nil

	if b.pool != nil {
		b.pool.Destroy()
		b.pool = nil
	}

	if b.Swapchain != nil {
		b.Swapchain.Destroy()
		b.Swapchain = nil
	}
}
