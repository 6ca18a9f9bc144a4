// Package window owns the SDL2 window the renderer presents to.
package window

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/input"
	"github.com/vkngwrapper/menagerie/internal/logging"
)

// waitTimeout bounds WaitEvents in milliseconds so a cancelled context is noticed.
const waitTimeout = 100

type Window struct {
	handle  *sdl.Window
	pending []input.Event
}

type Options struct {
	Title  string
	Width  int
	Height int
	// Hidden creates the window without showing it, for querying devices.
	Hidden bool
}

// New initializes SDL video and opens a resizable Vulkan window. Call it from the
// thread that will poll events.
func New(opts Options) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl video")
	}

	var flags uint32 = sdl.WINDOW_VULKAN | sdl.WINDOW_RESIZABLE
	if opts.Hidden {
		flags |= sdl.WINDOW_HIDDEN
	} else {
		flags |= sdl.WINDOW_SHOWN
	}

	handle, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.Width), int32(opts.Height), flags)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	return &Window{handle: handle}, nil
}

// Handle is the SDL window, for surface creation.
func (w *Window) Handle() *sdl.Window {
	return w.handle
}

// InstanceExtensions lists the instance extensions SDL needs to create a surface.
func (w *Window) InstanceExtensions() []string {
	return w.handle.VulkanGetInstanceExtensions()
}

// DrawableSize is the surface size in pixels, empty while minimized.
func (w *Window) DrawableSize() gpu.Extent2D {
	if w.handle.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return gpu.Extent2D{}
	}
	width, height := w.handle.VulkanGetDrawableSize()
	return gpu.Extent2D{Width: int(width), Height: int(height)}
}

// WaitEvents blocks until an event arrives or a short timeout passes. Events it sees
// are queued for the next Poll.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEventTimeout(waitTimeout); event != nil {
		w.queue(event)
	}
}

// Poll drains queued and pending SDL events.
func (w *Window) Poll() []input.Event {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.queue(event)
	}
	events := w.pending
	w.pending = nil
	return events
}

func (w *Window) queue(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.pending = append(w.pending, input.Event{Kind: input.Quit})
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_CLOSE:
			w.pending = append(w.pending, input.Event{Kind: input.Quit})
		case sdl.WINDOWEVENT_MINIMIZED:
			w.pending = append(w.pending, input.Event{Kind: input.Minimized})
		case sdl.WINDOWEVENT_RESTORED:
			w.pending = append(w.pending, input.Event{Kind: input.Restored})
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			size := w.DrawableSize()
			w.pending = append(w.pending, input.Event{Kind: input.Resized, Width: size.Width, Height: size.Height})
			logging.Logger().Debug("window resized", "width", size.Width, "height", size.Height)
		}
	}
}

func (w *Window) SetTitle(title string) {
	w.handle.SetTitle(title)
}

// Destroy closes the window and shuts SDL down.
func (w *Window) Destroy() {
	if w.handle != nil {
		// Nothing to do if the window is already gone.
		_ = w.handle.Destroy()
		w.handle = nil
	}
	sdl.Quit()
}
