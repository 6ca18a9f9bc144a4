// Package record writes a frame's draw commands into a command buffer.
package record

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/mesh"
)

// Descriptor set indices in the pipeline layout.
const (
	FrameSet    = 0
	MaterialSet = 1
)

// Draw asks for Instances copies of one mesh type.
type Draw struct {
	Mesh      mesh.Type
	Instances int
}

// Target is where the frame is rendered.
type Target struct {
	RenderPass  gpu.RenderPass
	Framebuffer gpu.Framebuffer
	Extent      gpu.Extent2D
	ClearColor  [4]float32
}

type Input struct {
	Target   Target
	Pipeline *gpu.PipelineBundle
	// Frame is the acquired image's descriptor set holding the camera and instance data.
	Frame     gpu.DescriptorSet
	Geometry  *mesh.Geometry
	Materials [mesh.Count]gpu.DescriptorSet
	Draws     []Draw
}

// Plan returns the first instance of each draw, the prefix sum of the instance counts
// before it, and the total instance count.
func Plan(draws []Draw) ([]int, int) {
	starts := make([]int, len(draws))
	total := 0
	for i, d := range draws {
		starts[i] = total
		total += d.Instances
	}
	return starts, total
}

// Record begins cb, draws every non-empty entry of in.Draws as one instanced indexed draw
// reading its model matrices from the instance range Plan assigns it, and ends cb.
func Record(cb gpu.CommandBuffer, in Input) error {
	if err := validate(in); err != nil {
		return err
	}

	if err := cb.Begin(); err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	clearValues := gpu.ClearValues{Color: in.Target.ClearColor, Depth: 1.0, Stencil: 0}
	if err := cb.BeginRenderPass(in.Target.RenderPass, in.Target.Framebuffer, in.Target.Extent, clearValues); err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	cb.SetViewport(in.Target.Extent)
	cb.BindPipeline(in.Pipeline.Pipeline)
	cb.BindDescriptorSet(in.Pipeline.Layout, FrameSet, in.Frame)
	cb.BindVertexBuffer(in.Geometry.Vertices)
	cb.BindIndexBuffer(in.Geometry.Indices)

	starts, _ := Plan(in.Draws)
	for i, d := range in.Draws {
		if d.Instances == 0 {
			continue
		}
		r := in.Geometry.Range(d.Mesh)
		cb.BindDescriptorSet(in.Pipeline.Layout, MaterialSet, in.Materials[d.Mesh])
		cb.DrawIndexed(r.IndexCount, d.Instances, r.FirstIndex, 0, starts[i])
	}

	cb.EndRenderPass()

	if err := cb.End(); err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

func validate(in Input) error {
	if in.Pipeline == nil || in.Geometry == nil || in.Frame == nil {
		return errors.New("record input is missing pipeline, geometry or frame descriptors")
	}
	for i, d := range in.Draws {
		if d.Mesh < 0 || int(d.Mesh) >= mesh.Count {
			return errors.Newf("draw %d: unknown mesh type %d", i, int(d.Mesh))
		}
		if d.Instances < 0 {
			return errors.Newf("draw %d: negative instance count %d", i, d.Instances)
		}
		if d.Instances > 0 && in.Materials[d.Mesh] == nil {
			return errors.Newf("draw %d: no material for %s", i, d.Mesh)
		}
	}
	return nil
}
