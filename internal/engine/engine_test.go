package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/assets"
	"github.com/vkngwrapper/menagerie/internal/frame"
	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/gpu/gputest"
	"github.com/vkngwrapper/menagerie/internal/pipecache"
	"github.com/vkngwrapper/menagerie/internal/scene"
)

type fakeWindow struct {
	sizes []gpu.Extent2D
	waits int
}

func (w *fakeWindow) DrawableSize() gpu.Extent2D {
	size := w.sizes[0]
	if len(w.sizes) > 1 {
		w.sizes = w.sizes[1:]
	}
	return size
}

func (w *fakeWindow) WaitEvents() {
	w.waits++
}

func window() *fakeWindow {
	return &fakeWindow{sizes: []gpu.Extent2D{{Width: 800, Height: 600}}}
}

func options(t *testing.T) Options {
	t.Helper()

	set, err := assets.Load(context.Background(), assets.Sources{})
	require.NoError(t, err)

	return Options{
		VertexShader:   []byte{0x03, 0x02, 0x23, 0x07},
		FragmentShader: []byte{0x03, 0x02, 0x23, 0x07},
		Assets:         set,
		MaxInstances:   64,
		ClearColor:     [4]float32{1, 0.5, 0.25, 1},
		Camera:         scene.DefaultCamera(),
	}
}

func TestEngineRendersAndReleasesEverything(t *testing.T) {
	dev := gputest.NewDevice()

	e, err := New(context.Background(), dev, window(), options(t))
	require.NoError(t, err)

	assert.Equal(t, 3, dev.Live("texture"))
	assert.Equal(t, 1, dev.Live("pipeline"))
	assert.Equal(t, 1, dev.Live("swapchain"))

	sc := scene.Default()
	for i := 0; i < 4; i++ {
		outcome, err := e.Render(context.Background(), sc)
		require.NoError(t, err)
		assert.Equal(t, frame.OutcomePresented, outcome)
	}
	assert.Len(t, dev.Presents, 4)

	require.NoError(t, e.Close())
	assert.Zero(t, dev.LiveTotal())

	// A second close finds nothing left to release.
	require.NoError(t, e.Close())
}

func TestEngineRequestRecreateRebuildsSwapchain(t *testing.T) {
	dev := gputest.NewDevice()

	e, err := New(context.Background(), dev, window(), options(t))
	require.NoError(t, err)
	defer e.Close()

	e.RequestRecreate()
	outcome, err := e.Render(context.Background(), scene.Default())
	require.NoError(t, err)
	assert.Equal(t, frame.OutcomePresented, outcome)

	assert.Len(t, dev.Swapchains, 2)
	assert.Equal(t, 1, dev.Live("swapchain"))
}

func TestEngineFailedSetupLeaksNothing(t *testing.T) {
	dev := gputest.NewDevice()
	opts := options(t)
	opts.FragmentShader = nil

	_, err := New(context.Background(), dev, window(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrDeviceCreation))
	assert.Zero(t, dev.LiveTotal())
}

func TestEngineNeedsSurfaceFormats(t *testing.T) {
	dev := gputest.NewDevice()
	dev.Support.Formats = nil

	_, err := New(context.Background(), dev, window(), options(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gpu.ErrDeviceCreation))
	assert.Zero(t, dev.LiveTotal())
}

func TestEngineWaitsForMinimizedWindow(t *testing.T) {
	dev := gputest.NewDevice()
	win := &fakeWindow{sizes: []gpu.Extent2D{{}, {}, {Width: 640, Height: 480}}}

	e, err := New(context.Background(), dev, win, options(t))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 2, win.waits)
}

func TestEngineStartsMinimizedAndCancelled(t *testing.T) {
	dev := gputest.NewDevice()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, dev, &fakeWindow{sizes: []gpu.Extent2D{{}}}, options(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dev.LiveTotal())
}

func TestEnginePersistsPipelineCache(t *testing.T) {
	dev := gputest.NewDevice()
	path := filepath.Join(t.TempDir(), "cache", "pipeline_cache.bin")

	data := append(pipecache.NewHeader(dev.Props).Bytes(), 0xde, 0xad, 0xbe, 0xef)
	require.NoError(t, pipecache.Write(path, data))

	opts := options(t)
	opts.PipelineCachePath = path

	e, err := New(context.Background(), dev, window(), opts)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, saved)
}

func TestEngineRequiresAssets(t *testing.T) {
	dev := gputest.NewDevice()
	opts := options(t)
	opts.Assets = nil

	_, err := New(context.Background(), dev, window(), opts)
	assert.Error(t, err)
	assert.Zero(t, dev.LiveTotal())
}
