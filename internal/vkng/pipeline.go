package vkng

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/mesh"
)

const spirvMagic = 0x07230203

type renderPass struct {
	d *Device
	h core1_0.RenderPass
}

func (p *renderPass) Destroy() {
	p.d.driver.DestroyRenderPass(p.h, nil)
}

type setLayout struct {
	d *Device
	h core1_0.DescriptorSetLayout
}

func (l *setLayout) Destroy() {
	l.d.driver.DestroyDescriptorSetLayout(l.h, nil)
}

type pipelineLayout struct {
	d *Device
	h core1_0.PipelineLayout
}

func (l *pipelineLayout) Destroy() {
	l.d.driver.DestroyPipelineLayout(l.h, nil)
}

type pipeline struct {
	d *Device
	h core1_0.Pipeline
}

func (p *pipeline) Destroy() {
	p.d.driver.DestroyPipeline(p.h, nil)
}

type pipelineCache struct {
	d *Device
	h core1_0.PipelineCache
}

func (d *Device) NewPipelineCache(initialData []byte) (gpu.PipelineCache, error) {
	h, _, err := d.driver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: initialData,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline cache")
	}
	return &pipelineCache{d: d, h: h}, nil
}

func (c *pipelineCache) Data() ([]byte, error) {
	data, _, err := c.d.driver.GetPipelineCacheData(c.h)
	return data, errors.Wrap(err, "get pipeline cache data")
}

func (c *pipelineCache) Destroy() {
	c.d.driver.DestroyPipelineCache(c.h, nil)
}

// NewPipeline builds the render pass, both descriptor set layouts and the graphics
// pipeline. Viewport and scissor are dynamic so the pipeline survives swapchain
// rebuilds.
func (d *Device) NewPipeline(info gpu.PipelineInfo) (*gpu.PipelineBundle, error) {
	bundle := &gpu.PipelineBundle{}
	if err := d.buildPipeline(bundle, info); err != nil {
		bundle.Destroy()
		return nil, err
	}
	return bundle, nil
}

func (d *Device) buildPipeline(bundle *gpu.PipelineBundle, info gpu.PipelineInfo) error {
	vertCode, err := bytesToBytecode(info.VertexShader)
	if err != nil {
		return errors.Wrap(err, "vertex shader")
	}
	fragCode, err := bytesToBytecode(info.FragmentShader)
	if err != nil {
		return errors.Wrap(err, "fragment shader")
	}

	pass, err := d.createRenderPass(core1_0.Format(info.ColorFormat))
	if err != nil {
		return err
	}
	bundle.RenderPass = pass

	frameLayout, err := d.createSetLayout([]core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      core1_0.StageVertex,
		},
		{
			Binding:         1,
			DescriptorType:  core1_0.DescriptorTypeStorageBuffer,
			DescriptorCount: 1,
			StageFlags:      core1_0.StageVertex,
		},
	})
	if err != nil {
		return err
	}
	bundle.FrameLayout = frameLayout

	materialLayout, err := d.createSetLayout([]core1_0.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      core1_0.StageFragment,
		},
	})
	if err != nil {
		return err
	}
	bundle.MaterialLayout = materialLayout

	layoutHandle, _, err := d.driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{frameLayout.h, materialLayout.h},
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}
	layout := &pipelineLayout{d: d, h: layoutHandle}
	bundle.Layout = layout

	vertShader, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{Code: vertCode})
	if err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}
	defer d.driver.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := d.driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{Code: fragCode})
	if err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}
	defer d.driver.DestroyShaderModule(fragShader, nil)

	var cache *core1_0.PipelineCache
	if c, ok := info.Cache.(*pipelineCache); ok && c != nil {
		cache = &c.h
	}

	pipelines, _, err := d.driver.CreateGraphicsPipelines(cache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{Stage: core1_0.StageVertex, Module: vertShader, Name: "main"},
				{Stage: core1_0.StageFragment, Module: fragShader, Name: "main"},
			},
			VertexInputState: vertexInputState(),
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               core1_0.PrimitiveTopologyTriangleList,
				PrimitiveRestartEnable: false,
			},
			// Counts only; the rectangles are set per frame.
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{{MaxDepth: 1}},
				Scissors:  []core1_0.Rect2D{{}},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    core1_0.CullModeNone,
				FrontFace:   core1_0.FrontFaceCounterClockwise,
				LineWidth:   1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				RasterizationSamples: core1_0.Samples1,
				MinSampleShading:     1.0,
			},
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  true,
				DepthWriteEnable: true,
				DepthCompareOp:   core1_0.CompareOpLess,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOp: core1_0.LogicOpCopy,
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						BlendEnabled:   false,
						ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
				DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
			},
			Layout:            layoutHandle,
			RenderPass:        pass.h,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	)
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}
	bundle.Pipeline = &pipeline{d: d, h: pipelines[0]}
	return nil
}

// vertexInputState describes mesh.Vertex: position, color, texture coordinate.
func vertexInputState() *core1_0.PipelineVertexInputStateCreateInfo {
	return &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    mesh.VertexSize,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
		VertexAttributeDescriptions: []core1_0.VertexInputAttributeDescription{
			{Binding: 0, Location: 0, Format: core1_0.FormatR32G32SignedFloat, Offset: 0},
			{Binding: 0, Location: 1, Format: core1_0.FormatR32G32B32SignedFloat, Offset: 8},
			{Binding: 0, Location: 2, Format: core1_0.FormatR32G32SignedFloat, Offset: 20},
		},
	}
}

func (d *Device) createRenderPass(colorFormat core1_0.Format) (*renderPass, error) {
	h, _, err := d.driver.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         colorFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         d.depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{Attachment: 0, Layout: core1_0.ImageLayoutColorAttachmentOptimal},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	return &renderPass{d: d, h: h}, nil
}

func (d *Device) createSetLayout(bindings []core1_0.DescriptorSetLayoutBinding) (*setLayout, error) {
	h, _, err := d.driver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: bindings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}
	return &setLayout{d: d, h: h}, nil
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Newf("SPIR-V is %d bytes, not a whole number of words", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = common.ByteOrder.Uint32(b[i*4:])
	}
	if byteCode[0] != spirvMagic {
		return nil, errors.Newf("bad SPIR-V magic 0x%08x", byteCode[0])
	}
	return byteCode, nil
}
