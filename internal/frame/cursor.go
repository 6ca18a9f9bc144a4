package frame

// Cursor selects the frame slot, and with it the synchronization objects and command
// buffer, used for the next render. It is independent of the image index the swapchain
// hands back.
type Cursor struct {
	frame int
	count int
}

func NewCursor(count int) Cursor {
	return Cursor{count: count}
}

// Slot is the current frame number, in [0, Count).
func (c Cursor) Slot() int {
	return c.frame
}

// Count is the number of frames that may be in flight.
func (c Cursor) Count() int {
	return c.count
}

func (c *Cursor) Advance() {
	c.frame = (c.frame + 1) % c.count
}

// Resize adopts a new frame count after the swapchain was rebuilt. The slot is kept when
// it is still valid.
func (c *Cursor) Resize(count int) {
	c.count = count
	c.frame %= count
}

// Ticket is one frame in progress: the slot whose sync objects and command buffer are in
// use, and the swapchain image being rendered.
type Ticket struct {
	Slot  int
	Image int
}
