// Package gpu is the contract between the frame machinery and a graphics backend.
//
// Handles are small interfaces owned by whoever created them. Enum values match the
// Vulkan encodings so a Vulkan backend converts them with a plain type conversion.
package gpu

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NoTimeout waits forever.
const NoTimeout time.Duration = -1

type Extent2D struct {
	Width  int
	Height int
}

// Empty reports whether the extent has zero area, as a minimized window does.
func (e Extent2D) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

type Format int32

const (
	FormatUndefined      Format = 0
	FormatR8G8B8A8UNorm  Format = 37
	FormatR8G8B8A8SRGB   Format = 43
	FormatB8G8R8A8UNorm  Format = 44
	FormatB8G8R8A8SRGB   Format = 50
	FormatD32Float       Format = 126
	FormatD24UNormS8UInt Format = 129
	FormatD32FloatS8UInt Format = 130
)

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case FormatR8G8B8A8UNorm:
		return "R8G8B8A8 UNorm"
	case FormatR8G8B8A8SRGB:
		return "R8G8B8A8 sRGB"
	case FormatB8G8R8A8UNorm:
		return "B8G8R8A8 UNorm"
	case FormatB8G8R8A8SRGB:
		return "B8G8R8A8 sRGB"
	case FormatD32Float:
		return "D32 Float"
	case FormatD24UNormS8UInt:
		return "D24 UNorm S8 UInt"
	case FormatD32FloatS8UInt:
		return "D32 Float S8 UInt"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

type ColorSpace int32

const ColorSpaceSRGBNonlinear ColorSpace = 0

type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFIFO        PresentMode = 2
	PresentModeFIFORelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "Immediate"
	case PresentModeMailbox:
		return "Mailbox"
	case PresentModeFIFO:
		return "FIFO"
	case PresentModeFIFORelaxed:
		return "FIFO Relaxed"
	}
	return "PresentMode(" + strconv.Itoa(int(m)) + ")"
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SurfaceCapabilities mirrors the surface limits. CurrentExtent.Width is -1 when the
// surface lets the swapchain pick its own size.
type SurfaceCapabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainInfo struct {
	ImageCount  int
	Format      SurfaceFormat
	Extent      Extent2D
	PresentMode PresentMode
}

type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageStorage
	BufferUsageVertex
	BufferUsageIndex
)

type DescriptorType int32

const (
	DescriptorTypeCombinedImageSampler DescriptorType = 1
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
)

type PoolSize struct {
	Type  DescriptorType
	Count int
}

type ClearValues struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// SubmitInfo describes one graphics queue submission.
type SubmitInfo struct {
	CommandBuffer CommandBuffer
	Wait          Semaphore
	Signal        Semaphore
	Fence         Fence
}

type PresentInfo struct {
	Swapchain Swapchain
	Image     int
	Wait      Semaphore
}

type DeviceType int32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

type DeviceProperties struct {
	Name              string
	Type              DeviceType
	VendorID          uint32
	DeviceID          uint32
	DriverVersion     uint32
	PipelineCacheUUID uuid.UUID
}

// PipelineInfo carries what the backend needs to build the session pipeline.
type PipelineInfo struct {
	VertexShader   []byte
	FragmentShader []byte
	ColorFormat    Format
	Cache          PipelineCache
}

// PipelineBundle is the immutable pipeline state for a session: set 0 holds the frame
// uniform and storage buffers, set 1 the per-mesh texture.
type PipelineBundle struct {
	Pipeline       Pipeline
	Layout         PipelineLayout
	RenderPass     RenderPass
	FrameLayout    DescriptorSetLayout
	MaterialLayout DescriptorSetLayout
}
