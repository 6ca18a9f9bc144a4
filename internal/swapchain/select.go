package swapchain

import (
	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// ChooseSurfaceFormat prefers B8G8R8A8 sRGB in the sRGB nonlinear color space and
// otherwise takes the first format the surface reports.
func ChooseSurfaceFormat(available []gpu.SurfaceFormat) gpu.SurfaceFormat {
	for _, format := range available {
		if format.Format == gpu.FormatB8G8R8A8SRGB && format.ColorSpace == gpu.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

// ChoosePresentMode prefers mailbox. FIFO is always supported.
func ChoosePresentMode(available []gpu.PresentMode) gpu.PresentMode {
	for _, mode := range available {
		if mode == gpu.PresentModeMailbox {
			return mode
		}
	}

	return gpu.PresentModeFIFO
}

// ChooseExtent uses the surface's current extent when it has one and otherwise clamps the
// requested size into the supported range.
func ChooseExtent(capabilities gpu.SurfaceCapabilities, requested gpu.Extent2D) gpu.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := clamp(requested.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	height := clamp(requested.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)

	return gpu.Extent2D{Width: width, Height: height}
}

// ImageCount asks for one image more than the minimum so the driver never stalls the
// application, capped by the maximum (zero meaning no limit).
func ImageCount(capabilities gpu.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
