// Package frame drives one frame at a time through wait, acquire, update, record,
// submit and present, rebuilding the swapchain whenever presentation reports it stale.
package frame

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/record"
	"github.com/vkngwrapper/menagerie/internal/scene"
	"github.com/vkngwrapper/menagerie/internal/swapchain"
)

// Outcome is what became of one call to Render.
type Outcome int

const (
	// OutcomePresented: the frame was submitted and queued for presentation.
	OutcomePresented Outcome = iota
	// OutcomeRecreated: the swapchain was rebuilt and the frame was not shown. The
	// cursor did not move.
	OutcomeRecreated
	// OutcomeAbandoned: the frame was not shown. The cursor moved only if the frame's
	// work had already been submitted.
	OutcomeAbandoned
)

func (o Outcome) String() string {
	switch o {
	case OutcomePresented:
		return "presented"
	case OutcomeRecreated:
		return "recreated"
	case OutcomeAbandoned:
		return "abandoned"
	}
	return "unknown"
}

// Swapchains is the part of swapchain.Manager the scheduler drives.
type Swapchains interface {
	Bundle() *swapchain.Bundle
	Recreate(ctx context.Context) (*swapchain.Bundle, error)
}

// Resources are the session-lifetime objects every frame records against.
type Resources struct {
	Pipeline   *gpu.PipelineBundle
	Geometry   *mesh.Geometry
	Materials  [mesh.Count]gpu.DescriptorSet
	Camera     scene.Camera
	ClearColor [4]float32
}

type Options struct {
	// MaxInstances is the capacity of each frame's instance buffer.
	MaxInstances int
	// Strict turns acquire, submit and present errors that are otherwise logged and
	// skipped into errors returned from Render.
	Strict bool
}

// Scheduler renders frames against the live swapchain bundle. It is not safe for
// concurrent use.
type Scheduler struct {
	dev        gpu.Device
	swapchains Swapchains
	res        Resources
	opts       Options

	cursor Cursor
	// imagesInFlight holds, per swapchain image, the fence of the slot that last
	// rendered into it.
	imagesInFlight []gpu.Fence
	needsRecreate  bool
}

func NewScheduler(dev gpu.Device, swapchains Swapchains, res Resources, opts Options) (*Scheduler, error) {
	b := swapchains.Bundle()
	if b == nil || b.ImageCount() == 0 {
		return nil, errors.New("scheduler needs a built swapchain")
	}
	if res.Pipeline == nil || res.Geometry == nil {
		return nil, errors.New("scheduler needs a pipeline and geometry")
	}

	return &Scheduler{
		dev:            dev,
		swapchains:     swapchains,
		res:            res,
		opts:           opts,
		cursor:         NewCursor(b.ImageCount()),
		imagesInFlight: make([]gpu.Fence, b.ImageCount()),
	}, nil
}

func (s *Scheduler) Cursor() Cursor {
	return s.cursor
}

// RequestRecreate rebuilds the swapchain at the start of the next Render, for example
// after the window was resized.
func (s *Scheduler) RequestRecreate() {
	s.needsRecreate = true
}

// Render draws sc into the next swapchain image and presents it. A returned error is
// fatal to the session.
func (s *Scheduler) Render(ctx context.Context, sc *scene.Scene) (Outcome, error) {
	if total := sc.Total(); total > s.opts.MaxInstances {
		return OutcomeAbandoned, errors.Newf("scene has %d instances, at most %d fit", total, s.opts.MaxInstances)
	}

	if s.needsRecreate {
		if err := s.recreate(ctx, "requested"); err != nil {
			return OutcomeAbandoned, err
		}
	}

	b := s.swapchains.Bundle()
	slot := b.Frames[s.cursor.Slot()]

	if err := slot.Sync.InFlight.Wait(gpu.NoTimeout); err != nil {
		return OutcomeAbandoned, errors.Wrap(err, "wait for frame fence")
	}

	var ticket Ticket
	switch res := s.acquireImage(b, slot).(type) {
	case acquireFatal:
		return OutcomeAbandoned, res.reason
	case acquireRetry:
		if !res.recreate {
			logging.Logger().Warn("frame abandoned", "stage", "acquire", "err", res.reason)
			return OutcomeAbandoned, nil
		}
		if err := s.recreate(ctx, res.reason.Error()); err != nil {
			return OutcomeAbandoned, err
		}
		return OutcomeRecreated, nil
	case acquireSuccess:
		ticket = Ticket{Slot: s.cursor.Slot(), Image: res.image}
		if res.suboptimal {
			logging.Logger().Debug("acquired suboptimal image", "image", res.image)
		}
	}

	if ticket.Image < 0 || ticket.Image >= b.ImageCount() {
		return OutcomeAbandoned, errors.Newf("acquired image %d of %d", ticket.Image, b.ImageCount())
	}

	// From here the image-available semaphore is signaled. If the frame cannot be
	// submitted, the sync objects are rebuilt with the swapchain.
	if err := s.claimImage(ticket, slot); err != nil {
		s.needsRecreate = true
		return OutcomeAbandoned, err
	}

	if err := s.update(ticket, b, sc); err != nil {
		s.needsRecreate = true
		return OutcomeAbandoned, err
	}

	if err := s.record(ticket, b, sc); err != nil {
		s.needsRecreate = true
		return OutcomeAbandoned, err
	}

	if err := slot.Sync.InFlight.Reset(); err != nil {
		s.needsRecreate = true
		return OutcomeAbandoned, errors.Wrap(err, "reset frame fence")
	}
	s.imagesInFlight[ticket.Image] = slot.Sync.InFlight

	if err := s.submit(slot); err != nil {
		s.imagesInFlight[ticket.Image] = nil
		s.needsRecreate = true
		if fatal := s.transient(err, "submit"); fatal != nil {
			return OutcomeAbandoned, fatal
		}
		return OutcomeAbandoned, nil
	}

	return s.present(ctx, ticket, b, slot)
}

// claimImage waits until no other slot is still rendering into the acquired image.
func (s *Scheduler) claimImage(t Ticket, slot *swapchain.FrameResource) error {
	previous := s.imagesInFlight[t.Image]
	if previous == nil || previous == slot.Sync.InFlight {
		return nil
	}
	if err := previous.Wait(gpu.NoTimeout); err != nil {
		return errors.Wrapf(err, "wait for image %d", t.Image)
	}
	return nil
}

// update writes the camera block and the model matrices into the acquired image's
// buffers.
func (s *Scheduler) update(t Ticket, b *swapchain.Bundle, sc *scene.Scene) error {
	target := b.Frames[t.Image]

	if err := s.res.Camera.WriteCamera(target.Camera.Bytes(), b.Extent); err != nil {
		return errors.Wrapf(err, "image %d", t.Image)
	}
	if _, err := sc.WriteInstances(target.Instances.Bytes()); err != nil {
		return errors.Wrapf(err, "image %d", t.Image)
	}
	return nil
}

// record re-records the slot's command buffer against the acquired image's framebuffer
// and descriptors. The slot's fence has been waited on, so the buffer is idle.
func (s *Scheduler) record(t Ticket, b *swapchain.Bundle, sc *scene.Scene) error {
	cb := b.Frames[t.Slot].Commands
	target := b.Frames[t.Image]

	if err := cb.Reset(); err != nil {
		return errors.Wrapf(err, "reset command buffer %d", t.Slot)
	}

	err := record.Record(cb, record.Input{
		Target: record.Target{
			RenderPass:  s.res.Pipeline.RenderPass,
			Framebuffer: target.Framebuffer,
			Extent:      b.Extent,
			ClearColor:  s.res.ClearColor,
		},
		Pipeline:  s.res.Pipeline,
		Frame:     target.Descriptors,
		Geometry:  s.res.Geometry,
		Materials: s.res.Materials,
		Draws:     sc.Draws(),
	})
	return errors.Wrapf(err, "record frame %d image %d", t.Slot, t.Image)
}

func (s *Scheduler) submit(slot *swapchain.FrameResource) error {
	return s.dev.Submit(gpu.SubmitInfo{
		CommandBuffer: slot.Commands,
		Wait:          slot.Sync.ImageAvailable,
		Signal:        slot.Sync.RenderFinished,
		Fence:         slot.Sync.InFlight,
	})
}

func (s *Scheduler) present(ctx context.Context, t Ticket, b *swapchain.Bundle, slot *swapchain.FrameResource) (Outcome, error) {
	status, err := s.dev.Present(gpu.PresentInfo{
		Swapchain: b.Swapchain,
		Image:     t.Image,
		Wait:      slot.Sync.RenderFinished,
	})

	switch st := classify(status, err); {
	case st == gpu.StatusSuccess:
	case st.NeedsRecreate():
		if err := s.recreate(ctx, st.String()); err != nil {
			return OutcomeAbandoned, err
		}
		return OutcomeRecreated, nil
	default:
		// The frame's work was submitted, so the slot moves on either way.
		s.cursor.Advance()
		if fatal := s.transient(errOrStatus(err, status), "present"); fatal != nil {
			return OutcomeAbandoned, fatal
		}
		return OutcomeAbandoned, nil
	}

	s.cursor.Advance()
	return OutcomePresented, nil
}

// transient applies the error policy to a failure that does not invalidate the
// swapchain: device loss and strict mode make it fatal, otherwise it is logged.
func (s *Scheduler) transient(err error, stage string) error {
	if errors.Is(err, gpu.ErrDeviceLost) || s.opts.Strict {
		return errors.Wrap(err, stage)
	}
	logging.Logger().Warn("frame abandoned", "stage", stage, "err", err)
	return nil
}

func (s *Scheduler) recreate(ctx context.Context, reason string) error {
	b, err := s.swapchains.Recreate(ctx)
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}

	s.needsRecreate = false
	s.cursor.Resize(b.ImageCount())
	s.imagesInFlight = make([]gpu.Fence, b.ImageCount())

	logging.Logger().Info("swapchain recreated",
		"reason", reason,
		"images", b.ImageCount(),
		"width", b.Extent.Width,
		"height", b.Extent.Height,
	)
	return nil
}
