package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/swapchain"
)

// acquireResult is one of acquireSuccess, acquireRetry or acquireFatal.
type acquireResult interface {
	acquire()
}

type acquireSuccess struct {
	image      int
	suboptimal bool
}

// acquireRetry abandons this frame. When recreate is set the swapchain no longer
// matches the surface and must be rebuilt first.
type acquireRetry struct {
	reason   error
	recreate bool
}

type acquireFatal struct {
	reason error
}

func (acquireSuccess) acquire() {}
func (acquireRetry) acquire()   {}
func (acquireFatal) acquire()   {}

// classify folds a backend status and error into one status. Backends may report a
// condition through either.
func classify(status gpu.Status, err error) gpu.Status {
	if err == nil {
		return status
	}
	if fromErr := gpu.StatusOf(err); fromErr != gpu.StatusError {
		return fromErr
	}
	if status == gpu.StatusSuccess || status == gpu.StatusSuboptimal {
		return gpu.StatusError
	}
	return status
}

func (s *Scheduler) acquireImage(b *swapchain.Bundle, slot *swapchain.FrameResource) acquireResult {
	image, status, err := b.Swapchain.AcquireNextImage(gpu.NoTimeout, slot.Sync.ImageAvailable)

	switch classify(status, err) {
	case gpu.StatusSuccess:
		return acquireSuccess{image: image}
	case gpu.StatusSuboptimal:
		return acquireSuccess{image: image, suboptimal: true}
	case gpu.StatusOutOfDate, gpu.StatusSurfaceLost:
		return acquireRetry{reason: errOrStatus(err, status), recreate: true}
	case gpu.StatusDeviceLost:
		return acquireFatal{reason: errors.Wrap(errOrStatus(err, status), "acquire next image")}
	}

	reason := errors.Wrap(errOrStatus(err, status), "acquire next image")
	if s.opts.Strict {
		return acquireFatal{reason: reason}
	}
	return acquireRetry{reason: reason}
}

func errOrStatus(err error, status gpu.Status) error {
	if err != nil {
		return err
	}
	if statusErr := status.Err(); statusErr != nil {
		return statusErr
	}
	return errors.Newf("unexpected status %s", status)
}
