package vkng

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
)

// Device is a logical device presenting to its instance's surface.
type Device struct {
	inst     *Instance
	physical core1_0.PhysicalDevice
	props    gpu.DeviceProperties
	queues   queueFamilies

	driver             core1_0.CoreDeviceDriver
	swapchainExtension khr_swapchain.ExtensionDriver
	graphicsQueue      core1_0.Queue
	presentQueue       core1_0.Queue
	commandPool        core1_0.CommandPool

	depthFormat   core1_0.Format
	maxAnisotropy float32
}

var _ gpu.Device = (*Device)(nil)

// NewDevice creates the logical device for c, which must be one of inst's suitable
// candidates.
func (inst *Instance) NewDevice(c Candidate) (*Device, error) {
	if !c.Suitable {
		return nil, errors.Newf("device %q is unsuitable: %s", c.Properties.Name, c.Reason)
	}

	d := &Device{inst: inst, physical: c.physical, props: c.Properties, queues: c.queues}
	if err := d.create(); err != nil {
		d.Destroy()
		return nil, err
	}

	logging.Logger().Info("device selected",
		"name", d.props.Name,
		"type", d.props.Type,
		"depth_format", d.depthFormat,
	)
	return d, nil
}

func (d *Device) create() error {
	families := []int{d.queues.graphics}
	if d.queues.present != d.queues.graphics {
		families = append(families, d.queues.present)
	}

	var queueInfos []core1_0.DeviceQueueCreateInfo
	for _, family := range families {
		queueInfos = append(queueInfos, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{1.0},
		})
	}

	extensionNames := append([]string(nil), deviceExtensions...)
	extensions, _, err := d.inst.instanceDriver.EnumerateDeviceExtensionProperties(d.physical)
	if err != nil {
		return errors.Wrap(err, "list device extensions")
	}
	// Required wherever the implementation is a portability subset, such as MoltenVK.
	if _, ok := extensions[khr_portability_subset.ExtensionName]; ok {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	features := d.inst.instanceDriver.GetPhysicalDeviceFeatures(d.physical)
	props, err := d.inst.instanceDriver.GetPhysicalDeviceProperties(d.physical)
	if err != nil {
		return errors.Wrap(err, "get physical device properties")
	}
	if features.SamplerAnisotropy {
		d.maxAnisotropy = props.Limits.MaxSamplerAnisotropy
	}

	d.driver, _, err = d.inst.instanceDriver.CreateDevice(d.physical, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueInfos,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: features.SamplerAnisotropy,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create logical device"), gpu.ErrDeviceCreation)
	}

	d.graphicsQueue = d.driver.GetQueue(d.queues.graphics, 0)
	d.presentQueue = d.driver.GetQueue(d.queues.present, 0)
	d.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(d.driver)

	d.commandPool, _, err = d.driver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: d.queues.graphics,
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "create command pool"), gpu.ErrDeviceCreation)
	}

	d.depthFormat, err = d.findSupportedFormat(
		[]core1_0.Format{core1_0.FormatD32SignedFloat, core1_0.FormatD32SignedFloatS8UnsignedInt, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment,
	)
	return err
}

func (d *Device) findSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.inst.instanceDriver.GetPhysicalDeviceFormatProperties(d.physical, format)

		if tiling == core1_0.ImageTilingLinear && props.LinearTilingFeatures&features == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}

	return 0, errors.Newf("failed to find supported format for tiling %s, featureset %s", tiling, features)
}

// Destroy waits for the device and releases it. Every object created from the device
// must already be destroyed.
func (d *Device) Destroy() {
	if d.driver == nil {
		return
	}
	if _, err := d.driver.DeviceWaitIdle(); err != nil {
		logging.Logger().Warn("wait for device idle before destroy", "err", err)
	}
	if d.commandPool.Initialized() {
		d.driver.DestroyCommandPool(d.commandPool, nil)
		d.commandPool = core1_0.CommandPool{}
	}
	d.driver.DestroyDevice(nil)
	d.driver = nil
}

func (d *Device) Properties() gpu.DeviceProperties {
	return d.props
}

func (d *Device) WaitIdle() error {
	res, err := d.driver.DeviceWaitIdle()
	return checkResult(res, err, "wait for device idle")
}

func timeoutToVk(timeout time.Duration) time.Duration {
	if timeout < 0 {
		return common.NoTimeout
	}
	return timeout
}

type fence struct {
	d *Device
	h core1_0.Fence
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}
	h, _, err := d.driver.CreateFence(nil, core1_0.FenceCreateInfo{Flags: flags})
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &fence{d: d, h: h}, nil
}

func (f *fence) Wait(timeout time.Duration) error {
	res, err := f.d.driver.WaitForFences(true, timeoutToVk(timeout), f.h)
	return checkResult(res, err, "wait for fence")
}

func (f *fence) Reset() error {
	res, err := f.d.driver.ResetFences(f.h)
	return checkResult(res, err, "reset fence")
}

func (f *fence) Destroy() {
	f.d.driver.DestroyFence(f.h, nil)
}

type semaphore struct {
	d *Device
	h core1_0.Semaphore
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	h, _, err := d.driver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &semaphore{d: d, h: h}, nil
}

func (s *semaphore) Destroy() {
	s.d.driver.DestroySemaphore(s.h, nil)
}

func (d *Device) SurfaceSupport() (*gpu.SurfaceSupport, error) {
	return d.inst.surfaceSupport(d.physical)
}

type swapchainImage struct {
	index int
	h     core1_0.Image
}

func (i swapchainImage) Index() int { return i.index }

type swapchain struct {
	d      *Device
	h      khr_swapchain.Swapchain
	images []gpu.Image
}

func (d *Device) NewSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	caps, _, err := d.inst.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(d.inst.surface, d.physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface capabilities")
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if d.queues.graphics != d.queues.present {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = []int{d.queues.graphics, d.queues.present}
	}

	h, res, err := d.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: d.inst.surface,

		MinImageCount:    info.ImageCount,
		ImageFormat:      core1_0.Format(info.Format.Format),
		ImageColorSpace:  khr_surface.ColorSpace(info.Format.ColorSpace),
		ImageExtent:      extentToVk(info.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    khr_surface.PresentMode(info.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		_, err := presentStatus(res, errors.Wrap(err, "create swapchain"))
		return nil, err
	}

	images, _, err := d.swapchainExtension.GetSwapchainImages(h)
	if err != nil {
		d.swapchainExtension.DestroySwapchain(h, nil)
		return nil, errors.Wrap(err, "get swapchain images")
	}

	sc := &swapchain{d: d, h: h}
	for i, img := range images {
		sc.images = append(sc.images, swapchainImage{index: i, h: img})
	}
	return sc, nil
}

func (s *swapchain) Images() ([]gpu.Image, error) {
	return s.images, nil
}

func (s *swapchain) AcquireNextImage(timeout time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	sem := signal.(*semaphore).h
	index, res, err := s.d.swapchainExtension.AcquireNextImage(s.h, timeoutToVk(timeout), &sem, nil)
	status, err := presentStatus(res, err)
	return index, status, err
}

func (s *swapchain) Destroy() {
	s.d.swapchainExtension.DestroySwapchain(s.h, nil)
}

type imageView struct {
	d *Device
	h core1_0.ImageView
}

func (v *imageView) Destroy() {
	v.d.driver.DestroyImageView(v.h, nil)
}

func (d *Device) createImageView(img core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (*imageView, error) {
	h, _, err := d.driver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    img,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return &imageView{d: d, h: h}, nil
}

func (d *Device) NewColorView(img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	return d.createImageView(img.(swapchainImage).h, core1_0.Format(format), core1_0.ImageAspectColor)
}

type depthTarget struct {
	d      *Device
	format core1_0.Format
	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   *imageView
}

func (d *Device) NewDepthTarget(extent gpu.Extent2D) (gpu.DepthTarget, error) {
	img, mem, err := d.createImage(extent, d.depthFormat, core1_0.ImageUsageDepthStencilAttachment)
	if err != nil {
		return nil, errors.Wrap(err, "create depth image")
	}

	t := &depthTarget{d: d, format: d.depthFormat, image: img, memory: mem}
	t.view, err = d.createImageView(img, d.depthFormat, core1_0.ImageAspectDepth)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *depthTarget) Format() gpu.Format {
	return gpu.Format(t.format)
}

func (t *depthTarget) View() gpu.ImageView {
	return t.view
}

func (t *depthTarget) Destroy() {
	if t.view != nil {
		t.view.Destroy()
		t.view = nil
	}
	t.d.driver.DestroyImage(t.image, nil)
	t.d.driver.FreeMemory(t.memory, nil)
}

type framebuffer struct {
	d *Device
	h core1_0.Framebuffer
}

func (d *Device) NewFramebuffer(pass gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	views := make([]core1_0.ImageView, 0, len(attachments))
	for _, a := range attachments {
		views = append(views, a.(*imageView).h)
	}

	h, _, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  pass.(*renderPass).h,
		Layers:      1,
		Attachments: views,
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create framebuffer")
	}
	return &framebuffer{d: d, h: h}, nil
}

func (f *framebuffer) Destroy() {
	f.d.driver.DestroyFramebuffer(f.h, nil)
}
