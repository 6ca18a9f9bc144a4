package gpu

import (
	"github.com/cockroachdb/errors"
)

// Status is the non-error outcome of an acquire or present call.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
	StatusSurfaceLost
	StatusTimeout
	StatusDeviceLost
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	case StatusSurfaceLost:
		return "surface lost"
	case StatusTimeout:
		return "timeout"
	case StatusDeviceLost:
		return "device lost"
	}
	return "error"
}

var (
	ErrOutOfDate      = errors.New("swapchain out of date")
	ErrSuboptimal     = errors.New("swapchain suboptimal")
	ErrSurfaceLost    = errors.New("surface lost or incompatible")
	ErrDeviceLost     = errors.New("device lost")
	ErrTimeout        = errors.New("timed out")
	ErrDeviceCreation = errors.New("device object creation failed")
)

// Err returns the sentinel matching s, or nil for success and suboptimal.
func (s Status) Err() error {
	switch s {
	case StatusOutOfDate:
		return ErrOutOfDate
	case StatusSurfaceLost:
		return ErrSurfaceLost
	case StatusTimeout:
		return ErrTimeout
	case StatusDeviceLost:
		return ErrDeviceLost
	}
	return nil
}

// StatusOf classifies an error returned by a backend call.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrOutOfDate):
		return StatusOutOfDate
	case errors.Is(err, ErrSuboptimal):
		return StatusSuboptimal
	case errors.Is(err, ErrSurfaceLost):
		return StatusSurfaceLost
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	case errors.Is(err, ErrDeviceLost):
		return StatusDeviceLost
	}
	return StatusError
}

// NeedsRecreate reports whether a presentation status calls for a new swapchain.
func (s Status) NeedsRecreate() bool {
	return s == StatusOutOfDate || s == StatusSuboptimal || s == StatusSurfaceLost
}
