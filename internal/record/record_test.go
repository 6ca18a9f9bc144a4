package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/gpu/gputest"
	"github.com/vkngwrapper/menagerie/internal/mesh"
)

func TestPlanPrefixSums(t *testing.T) {
	starts, total := Plan([]Draw{
		{Mesh: mesh.Triangle, Instances: 3},
		{Mesh: mesh.Square, Instances: 2},
		{Mesh: mesh.Star, Instances: 4},
	})
	assert.Equal(t, []int{0, 3, 5}, starts)
	assert.Equal(t, 9, total)

	starts, total = Plan(nil)
	assert.Empty(t, starts)
	assert.Zero(t, total)
}

type fixture struct {
	dev       *gputest.Device
	cb        *gputest.CommandBuffer
	input     Input
	materials [mesh.Count]*gputest.DescriptorSet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := gputest.NewDevice()

	var m mesh.Menagerie
	for _, typ := range mesh.Types {
		require.NoError(t, m.Consume(typ, mesh.Builtin(typ)))
	}
	geometry, err := m.Finalize(dev)
	require.NoError(t, err)

	pipeline, err := dev.NewPipeline(gpu.PipelineInfo{VertexShader: []byte{1}, FragmentShader: []byte{1}})
	require.NoError(t, err)

	fb, err := dev.NewFramebuffer(pipeline.RenderPass, nil, gpu.Extent2D{Width: 640, Height: 480})
	require.NoError(t, err)

	cbs, err := dev.NewCommandBuffers(1)
	require.NoError(t, err)

	f := &fixture{dev: dev, cb: cbs[0].(*gputest.CommandBuffer)}
	var materials [mesh.Count]gpu.DescriptorSet
	for i := range materials {
		f.materials[i] = &gputest.DescriptorSet{}
		materials[i] = f.materials[i]
	}

	f.input = Input{
		Target: Target{
			RenderPass:  pipeline.RenderPass,
			Framebuffer: fb,
			Extent:      gpu.Extent2D{Width: 640, Height: 480},
			ClearColor:  [4]float32{1, 0.5, 0.25, 1},
		},
		Pipeline:  pipeline,
		Frame:     &gputest.DescriptorSet{},
		Geometry:  geometry,
		Materials: materials,
	}
	return f
}

func TestRecordDrawsEachMeshOnce(t *testing.T) {
	f := newFixture(t)
	f.input.Draws = []Draw{
		{Mesh: mesh.Triangle, Instances: 3},
		{Mesh: mesh.Square, Instances: 2},
		{Mesh: mesh.Star, Instances: 4},
	}

	require.NoError(t, Record(f.cb, f.input))

	assert.Equal(t, []string{
		"Begin", "BeginRenderPass", "SetViewport", "BindPipeline", "BindDescriptorSet",
		"BindVertexBuffer", "BindIndexBuffer",
		"BindDescriptorSet", "DrawIndexed",
		"BindDescriptorSet", "DrawIndexed",
		"BindDescriptorSet", "DrawIndexed",
		"EndRenderPass", "End",
	}, f.cb.Ops())

	draws := f.cb.Draws()
	require.Len(t, draws, 3)
	// indexCount, instanceCount, firstIndex, vertexOffset, firstInstance
	assert.Equal(t, []int{3, 3, 0, 0, 0}, draws[0].Args)
	assert.Equal(t, []int{6, 2, 3, 0, 3}, draws[1].Args)
	assert.Equal(t, []int{30, 4, 9, 0, 5}, draws[2].Args)

	total := 0
	for _, d := range draws {
		total += d.Args[1]
	}
	assert.Equal(t, 9, total)

	pass := f.cb.Commands[1]
	assert.Same(t, f.input.Target.Framebuffer, pass.Ref)
	assert.Equal(t, []int{640, 480}, pass.Args)

	frameBind := f.cb.Commands[4]
	assert.Equal(t, []int{FrameSet}, frameBind.Args)
	assert.Same(t, f.input.Frame, frameBind.Ref)

	starBind := f.cb.Commands[11]
	assert.Equal(t, []int{MaterialSet}, starBind.Args)
	assert.Same(t, f.materials[mesh.Star], starBind.Ref)
}

func TestRecordSkipsEmptyDrawsButKeepsOffsets(t *testing.T) {
	f := newFixture(t)
	f.input.Draws = []Draw{
		{Mesh: mesh.Triangle, Instances: 2},
		{Mesh: mesh.Square, Instances: 0},
		{Mesh: mesh.Star, Instances: 1},
	}

	require.NoError(t, Record(f.cb, f.input))

	draws := f.cb.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, 2, draws[1].Args[4])
}

func TestRecordRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)

	bad := f.input
	bad.Draws = []Draw{{Mesh: mesh.Type(9), Instances: 1}}
	assert.Error(t, Record(f.cb, bad))

	bad = f.input
	bad.Draws = []Draw{{Mesh: mesh.Square, Instances: -1}}
	assert.Error(t, Record(f.cb, bad))

	bad = f.input
	bad.Materials[mesh.Star] = nil
	bad.Draws = []Draw{{Mesh: mesh.Star, Instances: 1}}
	assert.Error(t, Record(f.cb, bad))

	bad = f.input
	bad.Geometry = nil
	assert.Error(t, Record(f.cb, bad))

	// Nothing was recorded for any of the rejected inputs.
	assert.Empty(t, f.cb.Commands)
}

func TestRecordFailsWhenAlreadyRecording(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cb.Begin())

	assert.Error(t, Record(f.cb, f.input))
}
