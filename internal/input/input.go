// Package input folds window events into the state the render loop acts on.
package input

type Kind int

const (
	Quit Kind = iota
	Minimized
	Restored
	Resized
)

func (k Kind) String() string {
	switch k {
	case Quit:
		return "quit"
	case Minimized:
		return "minimized"
	case Restored:
		return "restored"
	case Resized:
		return "resized"
	}
	return "unknown"
}

// Event is a window event. Width and Height are set for Resized.
type Event struct {
	Kind   Kind
	Width  int
	Height int
}

// State tracks whether the loop should render, rebuild or stop.
type State struct {
	quit      bool
	minimized bool
	resized   bool
}

func (s *State) Apply(events ...Event) {
	for _, e := range events {
		switch e.Kind {
		case Quit:
			s.quit = true
		case Minimized:
			s.minimized = true
		case Restored:
			s.minimized = false
		case Resized:
			// Some platforms report minimizing as a resize to nothing.
			if e.Width > 0 && e.Height > 0 {
				s.minimized = false
				s.resized = true
			} else {
				s.minimized = true
			}
		}
	}
}

func (s *State) Quit() bool {
	return s.quit
}

// Rendering reports whether there is a surface worth drawing to.
func (s *State) Rendering() bool {
	return !s.quit && !s.minimized
}

// TakeResize reports a resize seen since the last call and clears it.
func (s *State) TakeResize() bool {
	resized := s.resized
	s.resized = false
	return resized
}
