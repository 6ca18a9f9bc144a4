// Package syncobj creates and releases the per-frame synchronization objects.
package syncobj

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// Frame holds the objects that order one frame slot's work: ImageAvailable is signaled
// by acquire, RenderFinished by the submission, and InFlight once the GPU is done.
type Frame struct {
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence
}

// NewSemaphore wraps device semaphore creation with the device-creation sentinel.
func NewSemaphore(dev gpu.Device) (gpu.Semaphore, error) {
	s, err := dev.NewSemaphore()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create semaphore"), gpu.ErrDeviceCreation)
	}
	return s, nil
}

// NewFence creates a fence, signaled if requested so the first wait on it returns at once.
func NewFence(dev gpu.Device, signaled bool) (gpu.Fence, error) {
	f, err := dev.NewFence(signaled)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "create fence"), gpu.ErrDeviceCreation)
	}
	return f, nil
}

// NewFrame creates both semaphores and a pre-signaled in-flight fence. On failure the
// objects already created are released.
func NewFrame(dev gpu.Device) (*Frame, error) {
	f := &Frame{}
	var err error

	f.ImageAvailable, err = NewSemaphore(dev)
	if err != nil {
		return nil, err
	}

	f.RenderFinished, err = NewSemaphore(dev)
	if err != nil {
		f.Destroy()
		return nil, err
	}

	f.InFlight, err = NewFence(dev, true)
	if err != nil {
		f.Destroy()
		return nil, err
	}

	return f, nil
}

// Destroy releases the fence, then the semaphores. It is safe to call more than once.
func (f *Frame) Destroy() {
	if f == nil {
		return
	}
	if f.InFlight != nil {
		f.InFlight.Destroy()
		f.InFlight = nil
	}
	if f.ImageAvailable != nil {
		f.ImageAvailable.Destroy()
		f.ImageAvailable = nil
	}
	if f.RenderFinished != nil {
		f.RenderFinished.Destroy()
		f.RenderFinished = nil
	}
}
