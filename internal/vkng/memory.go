package vkng

import (
	"image"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

func bufferUsageToVk(usage gpu.BufferUsage) core1_0.BufferUsageFlags {
	var flags core1_0.BufferUsageFlags
	if usage&gpu.BufferUsageUniform != 0 {
		flags |= core1_0.BufferUsageUniformBuffer
	}
	if usage&gpu.BufferUsageStorage != 0 {
		flags |= core1_0.BufferUsageStorageBuffer
	}
	if usage&gpu.BufferUsageVertex != 0 {
		flags |= core1_0.BufferUsageVertexBuffer
	}
	if usage&gpu.BufferUsageIndex != 0 {
		flags |= core1_0.BufferUsageIndexBuffer
	}
	return flags
}

func (d *Device) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := d.inst.instanceDriver.GetPhysicalDeviceMemoryProperties(d.physical)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if typeFilter&typeBit != 0 && memoryType.PropertyFlags&properties == properties {
			return i, nil
		}
	}

	return 0, errors.New("failed to find any suitable memory type")
}

type buffer struct {
	d      *Device
	h      core1_0.Buffer
	memory core1_0.DeviceMemory
	size   int
}

func (d *Device) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*buffer, error) {
	h, _, err := d.driver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create buffer")
	}
	b := &buffer{d: d, h: h, size: size}

	memRequirements := d.driver.GetBufferMemoryRequirements(h)
	memoryTypeIndex, err := d.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		b.Destroy()
		return nil, err
	}

	b.memory, _, err = d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "allocate buffer memory")
	}

	if _, err := d.driver.BindBufferMemory(h, b.memory, 0); err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return b, nil
}

func (b *buffer) Size() int {
	return b.size
}

func (b *buffer) Destroy() {
	if b.h.Initialized() {
		b.d.driver.DestroyBuffer(b.h, nil)
		b.h = core1_0.Buffer{}
	}
	if b.memory.Initialized() {
		b.d.driver.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
}

type mappedBuffer struct {
	*buffer
	data []byte
}

func (d *Device) NewMappedBuffer(size int, usage gpu.BufferUsage) (gpu.MappedBuffer, error) {
	b, err := d.createBuffer(size, bufferUsageToVk(usage), core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, err
	}

	ptr, _, err := d.driver.MapMemory(b.memory, 0, size, 0)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "map buffer memory")
	}
	return &mappedBuffer{buffer: b, data: unsafe.Slice((*byte)(ptr), size)}, nil
}

func (m *mappedBuffer) Bytes() []byte {
	return m.data
}

func (m *mappedBuffer) Destroy() {
	if m.data != nil {
		m.d.driver.UnmapMemory(m.memory)
		m.data = nil
	}
	m.buffer.Destroy()
}

// stage copies data into a host-visible transfer source buffer.
func (d *Device) stage(data []byte) (*buffer, error) {
	staging, err := d.createBuffer(len(data), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}

	ptr, _, err := d.driver.MapMemory(staging.memory, 0, len(data), 0)
	if err != nil {
		staging.Destroy()
		return nil, errors.Wrap(err, "map staging memory")
	}
	copy(unsafe.Slice((*byte)(ptr), len(data)), data)
	d.driver.UnmapMemory(staging.memory)
	return staging, nil
}

func (d *Device) NewDeviceBuffer(data []byte, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("device buffer with no data")
	}

	staging, err := d.stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	b, err := d.createBuffer(len(data), core1_0.BufferUsageTransferDst|bufferUsageToVk(usage), core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, err
	}

	err = d.singleTimeCommands(func(cb core1_0.CommandBuffer) error {
		return d.driver.CmdCopyBuffer(cb, staging.h, b.h, core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      len(data),
		})
	})
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "copy to device buffer")
	}
	return b, nil
}

func (d *Device) createImage(extent gpu.Extent2D, format core1_0.Format, usage core1_0.ImageUsageFlags) (core1_0.Image, core1_0.DeviceMemory, error) {
	img, _, err := d.driver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	memReqs := d.driver.GetImageMemoryRequirements(img)
	memoryIndex, err := d.findMemoryType(memReqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		d.driver.DestroyImage(img, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	mem, _, err := d.driver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		d.driver.DestroyImage(img, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}

	if _, err := d.driver.BindImageMemory(img, mem, 0); err != nil {
		d.driver.DestroyImage(img, nil)
		d.driver.FreeMemory(mem, nil)
		return core1_0.Image{}, core1_0.DeviceMemory{}, err
	}
	return img, mem, nil
}

type texture struct {
	d       *Device
	extent  gpu.Extent2D
	image   core1_0.Image
	memory  core1_0.DeviceMemory
	view    *imageView
	sampler core1_0.Sampler
}

// NewTexture uploads img as an sRGB sampled image with a linear, repeating sampler.
func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	size := img.Rect.Size()
	extent := gpu.Extent2D{Width: size.X, Height: size.Y}
	if extent.Empty() {
		return nil, errors.New("texture with no pixels")
	}

	staging, err := d.stage(packPixels(img))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	t := &texture{d: d, extent: extent}
	t.image, t.memory, err = d.createImage(extent, core1_0.FormatR8G8B8A8SRGB, core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled)
	if err != nil {
		return nil, errors.Wrap(err, "create texture image")
	}

	err = d.singleTimeCommands(func(cb core1_0.CommandBuffer) error {
		if err := d.transitionImageLayout(cb, t.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}

		err := d.driver.CmdCopyBufferToImage(cb, staging.h, t.image, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
			},
		)
		if err != nil {
			return err
		}

		return d.transitionImageLayout(cb, t.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.Destroy()
		return nil, errors.Wrap(err, "upload texture")
	}

	t.view, err = d.createImageView(t.image, core1_0.FormatR8G8B8A8SRGB, core1_0.ImageAspectColor)
	if err != nil {
		t.Destroy()
		return nil, err
	}

	t.sampler, _, err = d.driver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: d.maxAnisotropy > 0,
		MaxAnisotropy:    d.maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     0,
	})
	if err != nil {
		t.Destroy()
		return nil, errors.Wrap(err, "create sampler")
	}
	return t, nil
}

// packPixels returns img's pixels without row padding.
func packPixels(img *image.RGBA) []byte {
	size := img.Rect.Size()
	rowBytes := size.X * 4
	if img.Stride == rowBytes {
		return img.Pix[:rowBytes*size.Y]
	}

	pixels := make([]byte, 0, rowBytes*size.Y)
	for y := 0; y < size.Y; y++ {
		start := y * img.Stride
		pixels = append(pixels, img.Pix[start:start+rowBytes]...)
	}
	return pixels
}

func (t *texture) Extent() gpu.Extent2D {
	return t.extent
}

func (t *texture) Destroy() {
	if t.sampler.Initialized() {
		t.d.driver.DestroySampler(t.sampler, nil)
		t.sampler = core1_0.Sampler{}
	}
	if t.view != nil {
		t.view.Destroy()
		t.view = nil
	}
	if t.image.Initialized() {
		t.d.driver.DestroyImage(t.image, nil)
		t.image = core1_0.Image{}
	}
	if t.memory.Initialized() {
		t.d.driver.FreeMemory(t.memory, nil)
		t.memory = core1_0.DeviceMemory{}
	}
}

func (d *Device) transitionImageLayout(cb core1_0.CommandBuffer, img core1_0.Image, oldLayout, newLayout core1_0.ImageLayout) error {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Newf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	return d.driver.CmdPipelineBarrier(cb, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               img,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
}

// singleTimeCommands records fn into a throwaway command buffer, submits it and waits
// for the graphics queue to drain.
func (d *Device) singleTimeCommands(fn func(cb core1_0.CommandBuffer) error) error {
	buffers, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocate command buffer")
	}
	cb := buffers[0]
	defer d.driver.FreeCommandBuffers(cb)

	if _, err := d.driver.BeginCommandBuffer(cb, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	}); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	if err := fn(cb); err != nil {
		return err
	}

	if _, err := d.driver.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "end command buffer")
	}

	if _, err := d.driver.QueueSubmit(d.graphicsQueue, nil, core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{cb},
	}); err != nil {
		return errors.Wrap(err, "submit transfer")
	}

	res, err := d.driver.QueueWaitIdle(d.graphicsQueue)
	return checkResult(res, err, "wait for transfer")
}
