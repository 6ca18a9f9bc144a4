package gputest

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// Command is one recorded call. Args holds the integer arguments in call order.
type Command struct {
	Op   string
	Args []int
	Ref  any
}

type CommandBuffer struct {
	handle
	Commands  []Command
	Resets    int
	recording bool
	ended     bool
}

// Draws returns the recorded DrawIndexed calls.
func (c *CommandBuffer) Draws() []Command {
	var draws []Command
	for _, cmd := range c.Commands {
		if cmd.Op == "DrawIndexed" {
			draws = append(draws, cmd)
		}
	}
	return draws
}

// Ops returns the recorded operation names in order.
func (c *CommandBuffer) Ops() []string {
	ops := make([]string, 0, len(c.Commands))
	for _, cmd := range c.Commands {
		ops = append(ops, cmd.Op)
	}
	return ops
}

func (c *CommandBuffer) push(op string, ref any, args ...int) {
	c.Commands = append(c.Commands, Command{Op: op, Args: args, Ref: ref})
}

func (c *CommandBuffer) Reset() error {
	if c.destroyed {
		return errors.Newf("reset of freed %s", c.Name())
	}
	for _, s := range c.dev.Submits {
		if s.CommandBuffer != gpu.CommandBuffer(c) {
			continue
		}
		if f, ok := s.Fence.(*Fence); ok && f.pending {
			return errors.Newf("reset of %s while its submission is in flight", c.Name())
		}
	}
	c.Resets++
	c.Commands = nil
	c.recording = false
	c.ended = false
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return errors.Newf("%s already recording", c.Name())
	}
	c.recording = true
	c.ended = false
	c.push("Begin", nil)
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return errors.Newf("%s not recording", c.Name())
	}
	c.recording = false
	c.ended = true
	c.push("End", nil)
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent2D, _ gpu.ClearValues) error {
	if !c.recording {
		return errors.Newf("%s not recording", c.Name())
	}
	c.push("BeginRenderPass", fb, extent.Width, extent.Height)
	return nil
}

func (c *CommandBuffer) EndRenderPass() {
	c.push("EndRenderPass", nil)
}

func (c *CommandBuffer) SetViewport(extent gpu.Extent2D) {
	c.push("SetViewport", nil, extent.Width, extent.Height)
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	c.push("BindPipeline", p)
}

func (c *CommandBuffer) BindDescriptorSet(_ gpu.PipelineLayout, set int, descriptors gpu.DescriptorSet) {
	c.push("BindDescriptorSet", descriptors, set)
}

func (c *CommandBuffer) BindVertexBuffer(buf gpu.Buffer) {
	c.push("BindVertexBuffer", buf)
}

func (c *CommandBuffer) BindIndexBuffer(buf gpu.Buffer) {
	c.push("BindIndexBuffer", buf)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex, vertexOffset, firstInstance int) {
	c.push("DrawIndexed", nil, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandBuffer) Free() {
	c.Destroy()
}
