// Package gputest provides an in-memory gpu.Device that tracks handle lifetimes, fence
// state and the recorded command stream.
package gputest

import (
	"fmt"
	"image"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// Result scripts the outcome of one acquire or present call.
type Result struct {
	Status gpu.Status
	Err    error
	// Image overrides the acquired index when >= 0.
	Image int
}

// OK is a successful scripted result that leaves image selection to the swapchain.
var OK = Result{Image: -1}

type Device struct {
	Support gpu.SurfaceSupport
	Props   gpu.DeviceProperties

	// Scripted outcomes, consumed front to back. An empty queue means success.
	AcquireResults []Result
	PresentResults []Result
	SubmitErrors   []error
	SwapchainErr   error

	// OnWaitIdle runs inside WaitIdle, after in-flight work is retired.
	OnWaitIdle func()

	Submits       []gpu.SubmitInfo
	Presents      []gpu.PresentInfo
	WaitIdleCalls int
	Swapchains    []*Swapchain
	Fences        []*Fence
	Destroyed     []string

	nextID int
	live   map[string]int
}

// NewDevice returns a device whose surface offers a B8G8R8A8 sRGB format, FIFO and
// mailbox, 2..4 images and a fixed 800x600 extent.
func NewDevice() *Device {
	return &Device{
		Support: gpu.SurfaceSupport{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  4,
				CurrentExtent:  gpu.Extent2D{Width: 800, Height: 600},
				MinImageExtent: gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: gpu.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []gpu.SurfaceFormat{
				{Format: gpu.FormatB8G8R8A8UNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
				{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear},
			},
			PresentModes: []gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox},
		},
		Props: gpu.DeviceProperties{
			Name:              "fake",
			Type:              gpu.DeviceTypeCPU,
			VendorID:          0x10de,
			DeviceID:          0x2204,
			PipelineCacheUUID: uuid.MustParse("6f1c2e4a-58b0-4f3e-9a43-0c1e8f7d2b11"),
		},
		live: map[string]int{},
	}
}

// Live returns how many handles of kind are alive.
func (d *Device) Live(kind string) int {
	return d.live[kind]
}

// LiveTotal returns the number of live handles of every kind.
func (d *Device) LiveTotal() int {
	total := 0
	for _, n := range d.live {
		total += n
	}
	return total
}

// Unsignaled counts live fences that are not signaled.
func (d *Device) Unsignaled() int {
	n := 0
	for _, f := range d.Fences {
		if !f.destroyed && !f.signaled {
			n++
		}
	}
	return n
}

func (d *Device) newHandle(kind string) handle {
	d.nextID++
	d.live[kind]++
	return handle{dev: d, kind: kind, id: d.nextID}
}

type handle struct {
	dev       *Device
	kind      string
	id        int
	destroyed bool
}

func (h *handle) Name() string {
	return fmt.Sprintf("%s#%d", h.kind, h.id)
}

func (h *handle) Destroy() {
	if h.destroyed {
		panic("gputest: double destroy of " + h.Name())
	}
	h.destroyed = true
	h.dev.live[h.kind]--
	h.dev.Destroyed = append(h.dev.Destroyed, h.kind)
}

func (d *Device) Properties() gpu.DeviceProperties {
	return d.Props
}

func (d *Device) WaitIdle() error {
	d.WaitIdleCalls++
	for _, f := range d.Fences {
		if f.pending {
			f.pending = false
			f.signaled = true
		}
	}
	if d.OnWaitIdle != nil {
		d.OnWaitIdle()
	}
	return nil
}

type Fence struct {
	handle
	signaled bool
	pending  bool
}

// Signaled reports the fence state.
func (f *Fence) Signaled() bool {
	return f.signaled
}

// Wait retires pending work. Waiting on a fence that nothing will signal is reported as
// an error instead of hanging.
func (f *Fence) Wait(time.Duration) error {
	if f.destroyed {
		return errors.Newf("wait on destroyed %s", f.Name())
	}
	if f.pending {
		f.pending = false
		f.signaled = true
	}
	if !f.signaled {
		return errors.Newf("%s would never signal", f.Name())
	}
	return nil
}

func (f *Fence) Reset() error {
	if f.pending {
		return errors.Newf("reset of in-flight %s", f.Name())
	}
	f.signaled = false
	return nil
}

func (d *Device) NewFence(signaled bool) (gpu.Fence, error) {
	f := &Fence{handle: d.newHandle("fence"), signaled: signaled}
	d.Fences = append(d.Fences, f)
	return f, nil
}

type Semaphore struct {
	handle
}

func (d *Device) NewSemaphore() (gpu.Semaphore, error) {
	return &Semaphore{handle: d.newHandle("semaphore")}, nil
}

func (d *Device) SurfaceSupport() (*gpu.SurfaceSupport, error) {
	s := d.Support
	return &s, nil
}

type Image struct {
	index int
}

func (i Image) Index() int { return i.index }

type Swapchain struct {
	handle
	Info   gpu.SwapchainInfo
	images []gpu.Image
	next   int
}

func (s *Swapchain) Images() ([]gpu.Image, error) {
	return s.images, nil
}

func (s *Swapchain) AcquireNextImage(_ time.Duration, signal gpu.Semaphore) (int, gpu.Status, error) {
	if s.destroyed {
		return 0, gpu.StatusError, errors.Newf("acquire on destroyed %s", s.Name())
	}
	if signal == nil {
		return 0, gpu.StatusError, errors.New("acquire without a semaphore")
	}

	res := OK
	if len(s.dev.AcquireResults) > 0 {
		res = s.dev.AcquireResults[0]
		s.dev.AcquireResults = s.dev.AcquireResults[1:]
	}
	if res.Err != nil {
		return 0, res.Status, res.Err
	}
	if err := res.Status.Err(); err != nil {
		return 0, res.Status, err
	}

	idx := s.next
	if res.Image >= 0 {
		idx = res.Image
	}
	s.next = (idx + 1) % len(s.images)
	return idx, res.Status, nil
}

func (d *Device) NewSwapchain(info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	if d.SwapchainErr != nil {
		return nil, d.SwapchainErr
	}
	// A real driver may hand back more images than requested; the fake returns exactly
	// the requested count.
	sc := &Swapchain{handle: d.newHandle("swapchain"), Info: info}
	for i := 0; i < info.ImageCount; i++ {
		sc.images = append(sc.images, Image{index: i})
	}
	d.Swapchains = append(d.Swapchains, sc)
	return sc, nil
}

type ImageView struct {
	handle
}

func (d *Device) NewColorView(gpu.Image, gpu.Format) (gpu.ImageView, error) {
	return &ImageView{handle: d.newHandle("imageview")}, nil
}

type DepthTarget struct {
	handle
	Extent gpu.Extent2D
	view   *ImageView
}

func (t *DepthTarget) Format() gpu.Format  { return gpu.FormatD32Float }
func (t *DepthTarget) View() gpu.ImageView { return t.view }

func (d *Device) NewDepthTarget(extent gpu.Extent2D) (gpu.DepthTarget, error) {
	if extent.Empty() {
		return nil, errors.Newf("depth target with empty extent %dx%d", extent.Width, extent.Height)
	}
	// The view is accounted under the depth target itself.
	return &DepthTarget{handle: d.newHandle("depth"), Extent: extent, view: &ImageView{}}, nil
}

type Framebuffer struct {
	handle
	Attachments []gpu.ImageView
	Extent      gpu.Extent2D
}

func (d *Device) NewFramebuffer(_ gpu.RenderPass, attachments []gpu.ImageView, extent gpu.Extent2D) (gpu.Framebuffer, error) {
	return &Framebuffer{handle: d.newHandle("framebuffer"), Attachments: attachments, Extent: extent}, nil
}

type Buffer struct {
	handle
	Usage gpu.BufferUsage
	data  []byte
}

func (b *Buffer) Size() int     { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

func (d *Device) NewMappedBuffer(size int, usage gpu.BufferUsage) (gpu.MappedBuffer, error) {
	return &Buffer{handle: d.newHandle("buffer"), Usage: usage, data: make([]byte, size)}, nil
}

func (d *Device) NewDeviceBuffer(data []byte, usage gpu.BufferUsage) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("device buffer with no data")
	}
	return &Buffer{handle: d.newHandle("buffer"), Usage: usage, data: append([]byte(nil), data...)}, nil
}

type Texture struct {
	handle
	extent gpu.Extent2D
	Pixels []byte
}

func (t *Texture) Extent() gpu.Extent2D { return t.extent }

func (d *Device) NewTexture(img *image.RGBA) (gpu.Texture, error) {
	b := img.Bounds()
	return &Texture{
		handle: d.newHandle("texture"),
		extent: gpu.Extent2D{Width: b.Dx(), Height: b.Dy()},
		Pixels: append([]byte(nil), img.Pix...),
	}, nil
}

type DescriptorPool struct {
	handle
	MaxSets int
	Sizes   []gpu.PoolSize
	Sets    []*DescriptorSet
}

func (p *DescriptorPool) Allocate(_ gpu.DescriptorSetLayout, count int) ([]gpu.DescriptorSet, error) {
	if len(p.Sets)+count > p.MaxSets {
		return nil, errors.Newf("descriptor pool exhausted: %d + %d > %d", len(p.Sets), count, p.MaxSets)
	}
	var sets []gpu.DescriptorSet
	for i := 0; i < count; i++ {
		s := &DescriptorSet{Buffers: map[int]gpu.Buffer{}, Textures: map[int]gpu.Texture{}}
		p.Sets = append(p.Sets, s)
		sets = append(sets, s)
	}
	return sets, nil
}

func (d *Device) NewDescriptorPool(maxSets int, sizes []gpu.PoolSize) (gpu.DescriptorPool, error) {
	return &DescriptorPool{handle: d.newHandle("descriptorpool"), MaxSets: maxSets, Sizes: sizes}, nil
}

type DescriptorSet struct {
	Buffers  map[int]gpu.Buffer
	Textures map[int]gpu.Texture
}

func (s *DescriptorSet) WriteBuffer(binding int, _ gpu.DescriptorType, buf gpu.Buffer) error {
	s.Buffers[binding] = buf
	return nil
}

func (s *DescriptorSet) WriteTexture(binding int, tex gpu.Texture) error {
	s.Textures[binding] = tex
	return nil
}

func (d *Device) NewCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	var bufs []gpu.CommandBuffer
	for i := 0; i < count; i++ {
		bufs = append(bufs, &CommandBuffer{handle: d.newHandle("commandbuffer")})
	}
	return bufs, nil
}

type PipelineCache struct {
	handle
	Initial []byte
}

func (c *PipelineCache) Data() ([]byte, error) {
	return append([]byte(nil), c.Initial...), nil
}

func (d *Device) NewPipelineCache(initialData []byte) (gpu.PipelineCache, error) {
	return &PipelineCache{handle: d.newHandle("pipelinecache"), Initial: initialData}, nil
}

type object struct {
	handle
}

func (d *Device) NewPipeline(info gpu.PipelineInfo) (*gpu.PipelineBundle, error) {
	if len(info.VertexShader) == 0 || len(info.FragmentShader) == 0 {
		return nil, errors.New("pipeline without shader code")
	}
	return &gpu.PipelineBundle{
		Pipeline:       &object{handle: d.newHandle("pipeline")},
		Layout:         &object{handle: d.newHandle("pipelinelayout")},
		RenderPass:     &object{handle: d.newHandle("renderpass")},
		FrameLayout:    &object{handle: d.newHandle("setlayout")},
		MaterialLayout: &object{handle: d.newHandle("setlayout")},
	}, nil
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	if len(d.SubmitErrors) > 0 {
		err := d.SubmitErrors[0]
		d.SubmitErrors = d.SubmitErrors[1:]
		if err != nil {
			return err
		}
	}
	cb, ok := info.CommandBuffer.(*CommandBuffer)
	if !ok || cb.recording || !cb.ended {
		return errors.New("submit of a command buffer that is not fully recorded")
	}
	if f, ok := info.Fence.(*Fence); ok && f != nil {
		if f.signaled || f.pending {
			return errors.Newf("submit with %s not reset", f.Name())
		}
		f.pending = true
	}
	d.Submits = append(d.Submits, info)
	return nil
}

func (d *Device) Present(info gpu.PresentInfo) (gpu.Status, error) {
	res := OK
	if len(d.PresentResults) > 0 {
		res = d.PresentResults[0]
		d.PresentResults = d.PresentResults[1:]
	}
	d.Presents = append(d.Presents, info)
	if res.Err != nil {
		return res.Status, res.Err
	}
	return res.Status, res.Status.Err()
}
