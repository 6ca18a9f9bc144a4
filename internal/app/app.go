// Package app runs the event and render loop.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/loov/hrtime"

	"github.com/vkngwrapper/menagerie/internal/frame"
	"github.com/vkngwrapper/menagerie/internal/input"
	"github.com/vkngwrapper/menagerie/internal/logging"
	"github.com/vkngwrapper/menagerie/internal/scene"
)

type Window interface {
	Poll() []input.Event
	// WaitEvents blocks until there may be events to poll. It must return after a
	// short timeout so a cancelled context is noticed.
	WaitEvents()
	SetTitle(title string)
}

type Renderer interface {
	Render(ctx context.Context, sc *scene.Scene) (frame.Outcome, error)
	RequestRecreate()
}

type Options struct {
	Title string
	// TitleInterval is how often the frame rate is written to the title. Zero disables it.
	TitleInterval time.Duration
	// Clock defaults to hrtime.Now.
	Clock func() time.Duration
}

// Stats counts what became of every Render call.
type Stats struct {
	Presented int
	Recreated int
	Abandoned int
}

func (s *Stats) count(o frame.Outcome) {
	switch o {
	case frame.OutcomePresented:
		s.Presented++
	case frame.OutcomeRecreated:
		s.Recreated++
	case frame.OutcomeAbandoned:
		s.Abandoned++
	}
}

// Run renders sc until the window closes, ctx ends or rendering fails. It does not
// render while the window is minimized. Ending ctx is a clean stop, even when it
// interrupts a frame.
func Run(ctx context.Context, win Window, r Renderer, sc *scene.Scene, opts Options) (Stats, error) {
	clock := opts.Clock
	if clock == nil {
		clock = hrtime.Now
	}

	var (
		stats     Stats
		state     input.State
		lastTitle = clock()
		frames    int
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, nil
		}

		state.Apply(win.Poll()...)
		if state.Quit() {
			return stats, nil
		}
		if state.TakeResize() {
			r.RequestRecreate()
		}
		if !state.Rendering() {
			win.WaitEvents()
			continue
		}

		outcome, err := r.Render(ctx, sc)
		if err != nil {
			if ctx.Err() != nil {
				logging.Logger().Debug("render interrupted", "err", err)
				return stats, nil
			}
			return stats, err
		}
		stats.count(outcome)
		if outcome == frame.OutcomePresented {
			frames++
		}

		if opts.TitleInterval <= 0 {
			continue
		}
		if elapsed := clock() - lastTitle; elapsed >= opts.TitleInterval {
			fps := float64(frames) / elapsed.Seconds()
			win.SetTitle(fmt.Sprintf("%s - %.0f fps", opts.Title, fps))
			logging.Logger().Debug("frame rate", "fps", fps, "recreated", stats.Recreated, "abandoned", stats.Abandoned)
			frames = 0
			lastTitle += elapsed
		}
	}
}
