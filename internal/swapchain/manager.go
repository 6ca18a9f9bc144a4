// Package swapchain owns the presentation surface's images and every per-image resource
// that must be rebuilt when the surface changes.
package swapchain

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/syncobj"
)

// Window is the part of the OS window the manager needs while rebuilding.
type Window interface {
	// DrawableSize is the current size in pixels. It is empty while minimized.
	DrawableSize() gpu.Extent2D
	// WaitEvents blocks until the window system has something to report.
	WaitEvents()
}

// Options configures a Manager.
type Options struct {
	// Pipeline supplies the render pass for framebuffers and the frame descriptor set
	// layout. It outlives every bundle.
	Pipeline *gpu.PipelineBundle
	// ColorFormat is the format the render pass was built for. A surface that stops
	// offering it cannot be rebuilt without a new pipeline.
	ColorFormat gpu.Format
	// MaxInstances sizes each frame's instance buffer.
	MaxInstances int
}

// Manager builds and rebuilds swapchain bundles.
type Manager struct {
	dev    gpu.Device
	window Window
	opts   Options

	bundle *Bundle
}

func NewManager(dev gpu.Device, window Window, opts Options) (*Manager, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("swapchain manager needs a pipeline")
	}
	if opts.MaxInstances <= 0 {
		return nil, errors.Newf("max instances must be positive, got %d", opts.MaxInstances)
	}
	return &Manager{dev: dev, window: window, opts: opts}, nil
}

// Bundle is the live bundle, or nil before the first Build and after Close.
func (m *Manager) Bundle() *Bundle {
	return m.bundle
}

// Build creates and finalizes a bundle for extent and makes it the live one. The previous
// live bundle, if any, must already have been destroyed.
func (m *Manager) Build(extent gpu.Extent2D) (*Bundle, error) {
	b, err := m.Create(extent)
	if err != nil {
		return nil, err
	}
	if err := m.Finalize(b); err != nil {
		m.Destroy(b)
		return nil, err
	}

	m.bundle = b
	logging.Logger().Debug("swapchain built",
		"images", b.ImageCount(),
		"width", b.Extent.Width,
		"height", b.Extent.Height,
		"format", b.Format.Format,
		"present_mode", b.PresentMode,
	)
	return b, nil
}

// Create builds the swapchain and, for every image it returns, a color view, a depth
// target, the camera and instance buffers, and a descriptor set pointing at both. Frames
// are created for the number of images the swapchain actually returned, which may exceed
// the number requested.
func (m *Manager) Create(extent gpu.Extent2D) (*Bundle, error) {
	support, err := m.dev.SurfaceSupport()
	if err != nil {
		return nil, errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 {
		return nil, errors.Mark(errors.New("surface offers no formats"), gpu.ErrDeviceCreation)
	}

	format := ChooseSurfaceFormat(support.Formats)
	if m.opts.ColorFormat != gpu.FormatUndefined && format.Format != m.opts.ColorFormat {
		return nil, errors.Mark(
			errors.Newf("surface format changed from %s to %s", m.opts.ColorFormat, format.Format),
			gpu.ErrDeviceCreation,
		)
	}

	b := &Bundle{
		Format:      format,
		PresentMode: ChoosePresentMode(support.PresentModes),
		Extent:      ChooseExtent(support.Capabilities, extent),
	}

	b.Swapchain, err = m.dev.NewSwapchain(gpu.SwapchainInfo{
		ImageCount:  ImageCount(support.Capabilities),
		Format:      b.Format,
		Extent:      b.Extent,
		PresentMode: b.PresentMode,
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create swapchain"), gpu.ErrDeviceCreation)
	}

	if err := m.createFrames(b); err != nil {
		m.Destroy(b)
		return nil, err
	}
	return b, nil
}

func (m *Manager) createFrames(b *Bundle) error {
	images, err := b.Swapchain.Images()
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	count := len(images)

	b.pool, err = m.dev.NewDescriptorPool(count, []gpu.PoolSize{
		{Type: gpu.DescriptorTypeUniformBuffer, Count: count},
		{Type: gpu.DescriptorTypeStorageBuffer, Count: count},
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create descriptor pool"), gpu.ErrDeviceCreation)
	}

	sets, err := b.pool.Allocate(m.opts.Pipeline.FrameLayout, count)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocate frame descriptor sets"), gpu.ErrDeviceCreation)
	}

	for i, img := range images {
		frame := &FrameResource{Image: img, Descriptors: sets[i]}
		b.Frames = append(b.Frames, frame)

		if err := m.createFrame(b, frame); err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	return nil
}

func (m *Manager) createFrame(b *Bundle, frame *FrameResource) error {
	var err error

	frame.View, err = m.dev.NewColorView(frame.Image, b.Format.Format)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create image view"), gpu.ErrDeviceCreation)
	}

	frame.Depth, err = m.dev.NewDepthTarget(b.Extent)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create depth target"), gpu.ErrDeviceCreation)
	}

	frame.Camera, err = m.dev.NewMappedBuffer(CameraSize, gpu.BufferUsageUniform)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create camera buffer"), gpu.ErrDeviceCreation)
	}

	frame.Instances, err = m.dev.NewMappedBuffer(m.opts.MaxInstances*InstanceStride, gpu.BufferUsageStorage)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create instance buffer"), gpu.ErrDeviceCreation)
	}

	if err := frame.Descriptors.WriteBuffer(0, gpu.DescriptorTypeUniformBuffer, frame.Camera); err != nil {
		return errors.Wrap(err, "write camera descriptor")
	}
	if err := frame.Descriptors.WriteBuffer(1, gpu.DescriptorTypeStorageBuffer, frame.Instances); err != nil {
		return errors.Wrap(err, "write instance descriptor")
	}
	return nil
}

// Finalize adds what depends on the render pass or on the command pool: a framebuffer,
// a command buffer and the synchronization objects for every frame.
func (m *Manager) Finalize(b *Bundle) error {
	commands, err := m.dev.NewCommandBuffers(len(b.Frames))
	if err != nil {
		return errors.Mark(errors.Wrap(err, "allocate command buffers"), gpu.ErrDeviceCreation)
	}
	for i, frame := range b.Frames {
		frame.Commands = commands[i]
	}

	for i, frame := range b.Frames {
		frame.Framebuffer, err = m.dev.NewFramebuffer(
			m.opts.Pipeline.RenderPass,
			[]gpu.ImageView{frame.View, frame.Depth.View()},
			b.Extent,
		)
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "create framebuffer %d", i), gpu.ErrDeviceCreation)
		}

		frame.Sync, err = syncobj.NewFrame(m.dev)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
	}
	return nil
}

// Destroy releases b. When b is the live bundle the manager forgets it.
func (m *Manager) Destroy(b *Bundle) {
	b.Destroy()
	if m.bundle == b {
		m.bundle = nil
	}
}

// Recreate waits for the device to go idle, then waits for a drawable surface, then
// replaces the live bundle with one built for the new size. While the window is
// minimized it blocks on window events; cancelling ctx abandons the wait and leaves the
// old bundle in place.
func (m *Manager) Recreate(ctx context.Context) (*Bundle, error) {
	if err := m.dev.WaitIdle(); err != nil {
		return nil, errors.Wrap(err, "wait for device idle")
	}

	extent := m.window.DrawableSize()
	if extent.Empty() {
		logging.Logger().Debug("window minimized, waiting for a drawable surface")
	}
	for extent.Empty() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.window.WaitEvents()
		extent = m.window.DrawableSize()
	}

	m.Destroy(m.bundle)
	return m.Build(extent)
}

// Close waits for the device and releases the live bundle.
func (m *Manager) Close() error {
	err := m.dev.WaitIdle()
	m.Destroy(m.bundle)
	return errors.Wrap(err, "wait for device idle")
}
