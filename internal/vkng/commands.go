package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// presentStatus maps the result of an acquire or present onto gpu.Status, marking the
// error with the matching sentinel.
func presentStatus(res common.VkResult, err error) (gpu.Status, error) {
	switch res {
	case khr_swapchain.VKSuboptimal:
		return gpu.StatusSuboptimal, nil
	case khr_swapchain.VKErrorOutOfDate:
		return gpu.StatusOutOfDate, mark(err, res, gpu.ErrOutOfDate)
	case khr_surface.VKErrorSurfaceLost:
		return gpu.StatusSurfaceLost, mark(err, res, gpu.ErrSurfaceLost)
	case core1_0.VKErrorDeviceLost:
		return gpu.StatusDeviceLost, mark(err, res, gpu.ErrDeviceLost)
	case core1_0.VKTimeout, core1_0.VKNotReady:
		return gpu.StatusTimeout, mark(err, res, gpu.ErrTimeout)
	}
	if err != nil {
		return gpu.StatusError, err
	}
	return gpu.StatusSuccess, nil
}

func mark(err error, res common.VkResult, sentinel error) error {
	if err == nil {
		err = errors.Newf("vulkan result %s", res)
	}
	return errors.Mark(err, sentinel)
}

// checkResult wraps a failed call, keeping device loss recognizable.
func checkResult(res common.VkResult, err error, msg string) error {
	if res == core1_0.VKErrorDeviceLost {
		return errors.Wrap(mark(err, res, gpu.ErrDeviceLost), msg)
	}
	if res == core1_0.VKTimeout {
		return errors.Wrap(mark(err, res, gpu.ErrTimeout), msg)
	}
	return errors.Wrap(err, msg)
}

func bufferHandle(b gpu.Buffer) core1_0.Buffer {
	switch b := b.(type) {
	case *buffer:
		return b.h
	case *mappedBuffer:
		return b.h
	}
	panic(errors.AssertionFailedf("buffer %T was not created by this device", b))
}

type descriptorPool struct {
	d *Device
	h core1_0.DescriptorPool
}

func (d *Device) NewDescriptorPool(maxSets int, sizes []gpu.PoolSize) (gpu.DescriptorPool, error) {
	var poolSizes []core1_0.DescriptorPoolSize
	for _, s := range sizes {
		poolSizes = append(poolSizes, core1_0.DescriptorPoolSize{
			Type:            core1_0.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		})
	}

	h, _, err := d.driver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets:   maxSets,
		PoolSizes: poolSizes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor pool")
	}
	return &descriptorPool{d: d, h: h}, nil
}

func (p *descriptorPool) Allocate(layout gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	layouts := make([]core1_0.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout.(*setLayout).h
	}

	handles, _, err := p.d.driver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: p.h,
		SetLayouts:     layouts,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate descriptor sets")
	}

	sets := make([]gpu.DescriptorSet, 0, len(handles))
	for _, h := range handles {
		sets = append(sets, &descriptorSet{d: p.d, h: h})
	}
	return sets, nil
}

func (p *descriptorPool) Destroy() {
	p.d.driver.DestroyDescriptorPool(p.h, nil)
}

type descriptorSet struct {
	d *Device
	h core1_0.DescriptorSet
}

func (s *descriptorSet) WriteBuffer(binding int, kind gpu.DescriptorType, buf gpu.Buffer) error {
	err := s.d.driver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          s.h,
			DstBinding:      binding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorType(kind),

			BufferInfo: []core1_0.DescriptorBufferInfo{
				{
					Buffer: bufferHandle(buf),
					Offset: 0,
					Range:  buf.Size(),
				},
			},
		},
	}, nil)
	return errors.Wrapf(err, "write binding %d", binding)
}

func (s *descriptorSet) WriteTexture(binding int, tex gpu.Texture) error {
	t := tex.(*texture)
	err := s.d.driver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          s.h,
			DstBinding:      binding,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   t.view.h,
					Sampler:     t.sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}, nil)
	return errors.Wrapf(err, "write binding %d", binding)
}

type commandBuffer struct {
	d *Device
	h core1_0.CommandBuffer
}

func (d *Device) NewCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	handles, _, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffers")
	}

	buffers := make([]gpu.CommandBuffer, 0, len(handles))
	for _, h := range handles {
		buffers = append(buffers, &commandBuffer{d: d, h: h})
	}
	return buffers, nil
}

func (c *commandBuffer) Reset() error {
	res, err := c.d.driver.ResetCommandBuffer(c.h, 0)
	return checkResult(res, err, "reset command buffer")
}

func (c *commandBuffer) Begin() error {
	res, err := c.d.driver.BeginCommandBuffer(c.h, core1_0.CommandBufferBeginInfo{})
	return checkResult(res, err, "begin command buffer")
}

func (c *commandBuffer) End() error {
	res, err := c.d.driver.EndCommandBuffer(c.h)
	return checkResult(res, err, "end command buffer")
}

func (c *commandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent2D, clear gpu.ClearValues) error {
	err := c.d.driver.CmdBeginRenderPass(c.h, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  pass.(*renderPass).h,
			Framebuffer: fb.(*framebuffer).h,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extentToVk(extent),
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(clear.Color),
				core1_0.ClearValueDepthStencil{Depth: clear.Depth, Stencil: clear.Stencil},
			},
		})
	return errors.Wrap(err, "begin render pass")
}

func (c *commandBuffer) EndRenderPass() {
	c.d.driver.CmdEndRenderPass(c.h)
}

func (c *commandBuffer) SetViewport(extent gpu.Extent2D) {
	c.d.driver.CmdSetViewport(c.h, []core1_0.Viewport{
		{
			X:        0,
			Y:        0,
			Width:    float32(extent.Width),
			Height:   float32(extent.Height),
			MinDepth: 0,
			MaxDepth: 1,
		},
	}...)
	c.d.driver.CmdSetScissor(c.h, []core1_0.Rect2D{
		{
			Offset: core1_0.Offset2D{X: 0, Y: 0},
			Extent: extentToVk(extent),
		},
	}...)
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	c.d.driver.CmdBindPipeline(c.h, core1_0.PipelineBindPointGraphics, p.(*pipeline).h)
}

func (c *commandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set int, descriptors gpu.DescriptorSet) {
	c.d.driver.CmdBindDescriptorSets(c.h, core1_0.PipelineBindPointGraphics, layout.(*pipelineLayout).h, set,
		[]core1_0.DescriptorSet{descriptors.(*descriptorSet).h}, nil)
}

func (c *commandBuffer) BindVertexBuffer(buf gpu.Buffer) {
	c.d.driver.CmdBindVertexBuffers(c.h, 0, []core1_0.Buffer{bufferHandle(buf)}, []int{0})
}

func (c *commandBuffer) BindIndexBuffer(buf gpu.Buffer) {
	c.d.driver.CmdBindIndexBuffer(c.h, bufferHandle(buf), 0, core1_0.IndexTypeUInt32)
}

func (c *commandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	c.d.driver.CmdDrawIndexed(c.h, indexCount, instanceCount, uint32(firstIndex), vertexOffset, uint32(firstInstance))
}

func (c *commandBuffer) Free() {
	c.d.driver.FreeCommandBuffers(c.h)
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	var f *core1_0.Fence
	if info.Fence != nil {
		f = &info.Fence.(*fence).h
	}

	res, err := d.driver.QueueSubmit(d.graphicsQueue, f,
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{info.Wait.(*semaphore).h},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{info.CommandBuffer.(*commandBuffer).h},
			SignalSemaphores: []core1_0.Semaphore{info.Signal.(*semaphore).h},
		},
	)
	return checkResult(res, err, "submit")
}

func (d *Device) Present(info gpu.PresentInfo) (gpu.Status, error) {
	res, err := d.swapchainExtension.QueuePresent(d.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{info.Wait.(*semaphore).h},
		Swapchains:     []khr_swapchain.Swapchain{info.Swapchain.(*swapchain).h},
		ImageIndices:   []int{info.Image},
	})
	return presentStatus(res, err)
}
