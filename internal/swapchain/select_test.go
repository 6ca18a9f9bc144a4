package swapchain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8SRGB, ColorSpace: gpu.ColorSpaceSRGBNonlinear}
	unorm := gpu.SurfaceFormat{Format: gpu.FormatB8G8R8A8UNorm, ColorSpace: gpu.ColorSpaceSRGBNonlinear}

	assert.Equal(t, srgb, ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm, srgb}))
	assert.Equal(t, unorm, ChooseSurfaceFormat([]gpu.SurfaceFormat{unorm}))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, gpu.PresentModeMailbox, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeFIFO, gpu.PresentModeMailbox}))
	assert.Equal(t, gpu.PresentModeFIFO, ChoosePresentMode([]gpu.PresentMode{gpu.PresentModeImmediate, gpu.PresentModeFIFO}))
	assert.Equal(t, gpu.PresentModeFIFO, ChoosePresentMode(nil))
}

func TestChooseExtent(t *testing.T) {
	caps := gpu.SurfaceCapabilities{
		CurrentExtent:  gpu.Extent2D{Width: 640, Height: 480},
		MinImageExtent: gpu.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: gpu.Extent2D{Width: 1000, Height: 1000},
	}
	assert.Equal(t, gpu.Extent2D{Width: 640, Height: 480}, ChooseExtent(caps, gpu.Extent2D{Width: 2000, Height: 10}))

	caps.CurrentExtent = gpu.Extent2D{Width: -1, Height: -1}
	assert.Equal(t, gpu.Extent2D{Width: 1000, Height: 100}, ChooseExtent(caps, gpu.Extent2D{Width: 2000, Height: 10}))
	assert.Equal(t, gpu.Extent2D{Width: 300, Height: 400}, ChooseExtent(caps, gpu.Extent2D{Width: 300, Height: 400}))
}

func TestImageCount(t *testing.T) {
	assert.Equal(t, 3, ImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 4}))
	assert.Equal(t, 2, ImageCount(gpu.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
	assert.Equal(t, 4, ImageCount(gpu.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 0}))
}
