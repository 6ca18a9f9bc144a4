package syncobj

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/gpu/gputest"
)

func TestNewFrameFenceStartsSignaled(t *testing.T) {
	dev := gputest.NewDevice()

	f, err := NewFrame(dev)
	require.NoError(t, err)

	assert.Equal(t, 2, dev.Live("semaphore"))
	assert.Equal(t, 1, dev.Live("fence"))
	assert.Equal(t, 0, dev.Unsignaled())
	assert.NoError(t, f.InFlight.Wait(gpu.NoTimeout))
}

func TestFrameDestroyIsIdempotent(t *testing.T) {
	dev := gputest.NewDevice()

	f, err := NewFrame(dev)
	require.NoError(t, err)

	f.Destroy()
	f.Destroy()

	assert.Zero(t, dev.LiveTotal())
	assert.Equal(t, []string{"fence", "semaphore", "semaphore"}, dev.Destroyed)

	var nilFrame *Frame
	nilFrame.Destroy()
}

func TestResetFenceBlocksUntilSubmitted(t *testing.T) {
	dev := gputest.NewDevice()

	fence, err := NewFence(dev, true)
	require.NoError(t, err)
	require.NoError(t, fence.Reset())

	// Nothing was submitted with the fence, so the fake reports the would-be deadlock.
	assert.Error(t, fence.Wait(time.Second))
}
