package frame

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/gpu/gputest"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/scene"
	"github.com/vkngwrapper/menagerie/internal/swapchain"
)

type window struct{}

func (window) DrawableSize() gpu.Extent2D { return gpu.Extent2D{Width: 800, Height: 600} }
func (window) WaitEvents()                {}

type harness struct {
	dev       *gputest.Device
	manager   *swapchain.Manager
	scheduler *Scheduler
	scene     *scene.Scene
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	dev := gputest.NewDevice()

	pipeline, err := dev.NewPipeline(gpu.PipelineInfo{VertexShader: []byte{1}, FragmentShader: []byte{1}})
	require.NoError(t, err)

	var m mesh.Menagerie
	for _, typ := range mesh.Types {
		require.NoError(t, m.Consume(typ, mesh.Builtin(typ)))
	}
	geometry, err := m.Finalize(dev)
	require.NoError(t, err)

	if opts.MaxInstances == 0 {
		opts.MaxInstances = 64
	}
	manager, err := swapchain.NewManager(dev, window{}, swapchain.Options{
		Pipeline:     pipeline,
		ColorFormat:  gpu.FormatB8G8R8A8SRGB,
		MaxInstances: opts.MaxInstances,
	})
	require.NoError(t, err)
	_, err = manager.Build(gpu.Extent2D{Width: 800, Height: 600})
	require.NoError(t, err)

	var materials [mesh.Count]gpu.DescriptorSet
	for i := range materials {
		materials[i] = &gputest.DescriptorSet{}
	}

	scheduler, err := NewScheduler(dev, manager, Resources{
		Pipeline:   pipeline,
		Geometry:   geometry,
		Materials:  materials,
		Camera:     scene.DefaultCamera(),
		ClearColor: [4]float32{1, 0.5, 0.25, 1},
	}, opts)
	require.NoError(t, err)

	return &harness{dev: dev, manager: manager, scheduler: scheduler, scene: scene.Default()}
}

func (h *harness) render(t *testing.T) Outcome {
	t.Helper()
	outcome, err := h.scheduler.Render(context.Background(), h.scene)
	require.NoError(t, err)
	return outcome
}

func TestCursorFollowsPresentedFrames(t *testing.T) {
	h := newHarness(t, Options{})
	require.Equal(t, 3, h.scheduler.Cursor().Count())

	for k := 1; k <= 7; k++ {
		assert.Equal(t, OutcomePresented, h.render(t))
		assert.Equal(t, k%3, h.scheduler.Cursor().Slot())
		assert.LessOrEqual(t, h.dev.Unsignaled(), 3)
	}

	assert.Len(t, h.dev.Submits, 7)
	require.Len(t, h.dev.Presents, 7)
	for i, p := range h.dev.Presents {
		assert.Equal(t, i%3, p.Image)
	}
}

func TestSubmissionUsesSlotCommandsAndImageTargets(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Image: 2}}

	assert.Equal(t, OutcomePresented, h.render(t))

	b := h.manager.Bundle()
	submit := h.dev.Submits[0]
	assert.Same(t, b.Frames[0].Commands, submit.CommandBuffer)
	assert.Same(t, b.Frames[0].Sync.ImageAvailable, submit.Wait)
	assert.Same(t, b.Frames[0].Sync.RenderFinished, submit.Signal)
	assert.Same(t, b.Frames[0].Sync.InFlight, submit.Fence)

	cb := b.Frames[0].Commands.(*gputest.CommandBuffer)
	assert.Same(t, b.Frames[2].Framebuffer, cb.Commands[1].Ref)
	assert.Same(t, b.Frames[2].Descriptors, cb.Commands[4].Ref)

	draws := cb.Draws()
	require.Len(t, draws, 3)
	assert.Equal(t, []int{0, 10, 20}, []int{draws[0].Args[4], draws[1].Args[4], draws[2].Args[4]})

	// Camera and instances landed in the acquired image's buffers, not the slot's.
	assert.NotEqual(t, make([]byte, swapchain.CameraSize), b.Frames[2].Camera.Bytes())
	assert.Equal(t, make([]byte, swapchain.CameraSize), b.Frames[0].Camera.Bytes())

	present := h.dev.Presents[0]
	assert.Equal(t, 2, present.Image)
	assert.Same(t, b.Frames[0].Sync.RenderFinished, present.Wait)
}

func TestImageInFlightIsWaitedOn(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Image: 0}, {Image: 0}}

	require.Equal(t, OutcomePresented, h.render(t))
	first := h.manager.Bundle().Frames[0].Sync.InFlight.(*gputest.Fence)
	assert.False(t, first.Signaled())

	// Slot 1 receives image 0, which slot 0 is still rendering into.
	require.Equal(t, OutcomePresented, h.render(t))
	assert.True(t, first.Signaled())
}

func TestPresentSuboptimalRecreates(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.PresentResults = []gputest.Result{gputest.OK, {Status: gpu.StatusSuboptimal, Image: -1}}

	require.Equal(t, OutcomePresented, h.render(t))
	require.Equal(t, 1, h.scheduler.Cursor().Slot())

	assert.Equal(t, OutcomeRecreated, h.render(t))
	assert.Equal(t, 1, h.scheduler.Cursor().Slot())
	require.Len(t, h.dev.Swapchains, 2)

	assert.Equal(t, OutcomePresented, h.render(t))
	assert.Same(t, h.dev.Swapchains[1], h.dev.Presents[2].Swapchain)
	assert.Equal(t, 2, h.scheduler.Cursor().Slot())
}

func TestAcquireOutOfDateRecreatesWithoutSubmitting(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Status: gpu.StatusOutOfDate, Image: -1}}

	assert.Equal(t, OutcomeRecreated, h.render(t))
	assert.Empty(t, h.dev.Submits)
	assert.Equal(t, 0, h.scheduler.Cursor().Slot())
	assert.Len(t, h.dev.Swapchains, 2)
	assert.Zero(t, h.dev.Live("swapchain")-1)

	assert.Equal(t, OutcomePresented, h.render(t))
}

func TestRecreateShrinksCursor(t *testing.T) {
	h := newHarness(t, Options{})
	h.render(t)
	h.render(t)
	require.Equal(t, 2, h.scheduler.Cursor().Slot())

	h.dev.Support.Capabilities.MinImageCount = 1
	h.dev.Support.Capabilities.MaxImageCount = 2
	h.dev.PresentResults = []gputest.Result{{Status: gpu.StatusOutOfDate, Image: -1}}

	assert.Equal(t, OutcomeRecreated, h.render(t))
	assert.Equal(t, 2, h.scheduler.Cursor().Count())
	assert.Equal(t, 0, h.scheduler.Cursor().Slot())

	assert.Equal(t, OutcomePresented, h.render(t))
	assert.Equal(t, 1, h.scheduler.Cursor().Slot())
}

func TestAcquireErrorAbandonsFrame(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Status: gpu.StatusError, Err: assert.AnError, Image: -1}}

	assert.Equal(t, OutcomeAbandoned, h.render(t))
	assert.Empty(t, h.dev.Submits)
	assert.Equal(t, 0, h.scheduler.Cursor().Slot())
	assert.Zero(t, h.dev.Unsignaled())

	assert.Equal(t, OutcomePresented, h.render(t))
}

func TestStrictModeMakesAcquireErrorsFatal(t *testing.T) {
	h := newHarness(t, Options{Strict: true})
	h.dev.AcquireResults = []gputest.Result{{Status: gpu.StatusError, Err: assert.AnError, Image: -1}}

	outcome, err := h.scheduler.Render(context.Background(), h.scene)
	assert.Equal(t, OutcomeAbandoned, outcome)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDeviceLostIsAlwaysFatal(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Status: gpu.StatusDeviceLost, Image: -1}}

	_, err := h.scheduler.Render(context.Background(), h.scene)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)

	h = newHarness(t, Options{})
	h.dev.SubmitErrors = []error{gpu.ErrDeviceLost}

	_, err = h.scheduler.Render(context.Background(), h.scene)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
}

func TestSubmitErrorRebuildsSyncObjects(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.SubmitErrors = []error{assert.AnError}

	assert.Equal(t, OutcomeAbandoned, h.render(t))
	assert.Equal(t, 0, h.scheduler.Cursor().Slot())
	assert.Len(t, h.dev.Swapchains, 1)

	// The next frame rebuilds first, so it never waits on the fence that was reset but
	// not submitted.
	assert.Equal(t, OutcomePresented, h.render(t))
	assert.Len(t, h.dev.Swapchains, 2)
	assert.Equal(t, 1, h.scheduler.Cursor().Slot())
}

func TestPresentErrorAdvances(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.PresentResults = []gputest.Result{{Status: gpu.StatusError, Err: assert.AnError, Image: -1}}

	assert.Equal(t, OutcomeAbandoned, h.render(t))
	assert.Equal(t, 1, h.scheduler.Cursor().Slot())
	assert.Len(t, h.dev.Submits, 1)

	h = newHarness(t, Options{Strict: true})
	h.dev.PresentResults = []gputest.Result{{Status: gpu.StatusError, Err: assert.AnError, Image: -1}}

	_, err := h.scheduler.Render(context.Background(), h.scene)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTooManyInstancesFailsBeforeGPUWork(t *testing.T) {
	h := newHarness(t, Options{MaxInstances: 4})
	h.scene.Add(mesh.Star, mgl32.Vec3{})

	outcome, err := h.scheduler.Render(context.Background(), h.scene)
	assert.Error(t, err)
	assert.Equal(t, OutcomeAbandoned, outcome)
	assert.Empty(t, h.dev.Submits)
	assert.Zero(t, h.dev.Unsignaled())
}

func TestRequestRecreate(t *testing.T) {
	h := newHarness(t, Options{})
	h.render(t)

	h.scheduler.RequestRecreate()
	assert.Equal(t, OutcomePresented, h.render(t))
	assert.Len(t, h.dev.Swapchains, 2)
	assert.Equal(t, 2, h.scheduler.Cursor().Slot())
}

func TestCancelledContextDoesNotInterruptRebuild(t *testing.T) {
	h := newHarness(t, Options{})
	h.dev.AcquireResults = []gputest.Result{{Status: gpu.StatusOutOfDate, Image: -1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The window is never minimized here, so cancellation does not interrupt the rebuild.
	outcome, err := h.scheduler.Render(ctx, h.scene)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRecreated, outcome)
}

func TestCursor(t *testing.T) {
	c := NewCursor(3)
	c.Advance()
	c.Advance()
	assert.Equal(t, 2, c.Slot())
	c.Advance()
	assert.Equal(t, 0, c.Slot())

	c.Advance()
	c.Advance()
	c.Resize(3)
	assert.Equal(t, 2, c.Slot())
	c.Resize(2)
	assert.Equal(t, 0, c.Slot())
	assert.Equal(t, 2, c.Count())
}
