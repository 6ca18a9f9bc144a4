// Package vkng implements gpu.Device on Vulkan through vkngwrapper.
package vkng

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/logging"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

var deviceExtensions = []string{khr_swapchain.ExtensionName}

type Options struct {
	AppName string
	// Debug enables the validation layer and routes its messages to the logger.
	Debug bool
}

// Instance is a Vulkan instance with a surface for one SDL window.
type Instance struct {
	opts Options

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface
}

// NewInstance creates the instance and the window surface. The window must have been
// created with sdl.WINDOW_VULKAN.
func NewInstance(window *sdl.Window, opts Options) (*Instance, error) {
	inst := &Instance{opts: opts}

	var err error
	inst.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan")
	}

	if err := inst.createInstance(window); err != nil {
		inst.Destroy()
		return nil, err
	}
	if err := inst.setupDebugMessenger(); err != nil {
		inst.Destroy()
		return nil, err
	}

	inst.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(inst.instanceDriver)
	inst.surface, err = vkng_sdl2.CreateSurface(inst.instanceDriver.Instance(), inst.surfaceExtension, window)
	if err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "create surface")
	}

	return inst, nil
}

func (inst *Instance) createInstance(window *sdl.Window) error {
	info := core1_0.InstanceCreateInfo{
		ApplicationName:    inst.opts.AppName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "menagerie",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	available, _, err := inst.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "list instance extensions")
	}

	for _, ext := range window.VulkanGetInstanceExtensions() {
		if _, ok := available[ext]; !ok {
			return errors.Newf("sdl needs missing instance extension %s", ext)
		}
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext)
	}

	if _, ok := available[khr_portability_enumeration.ExtensionName]; ok {
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		info.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if inst.opts.Debug {
		layers, _, err := inst.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "list instance layers")
		}
		if _, ok := layers[validationLayer]; !ok {
			return errors.Newf("validation layer %s is not available; install the Vulkan SDK or run without debug", validationLayer)
		}

		info.EnabledLayerNames = append(info.EnabledLayerNames, validationLayer)
		info.EnabledExtensionNames = append(info.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		info.Next = debugMessengerInfo()
	}

	inst.instanceDriver, _, err = inst.globalDriver.CreateInstance(nil, info)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}
	return nil
}

func debugMessengerInfo() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning | ext_debug_utils.SeverityInfo,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func (inst *Instance) setupDebugMessenger() error {
	if !inst.opts.Debug {
		return nil
	}

	var err error
	inst.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(inst.instanceDriver)
	inst.debugMessenger, _, err = inst.debugDriver.CreateDebugUtilsMessenger(nil, debugMessengerInfo())
	return errors.Wrap(err, "create debug messenger")
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelDebug
	switch {
	case severity&ext_debug_utils.SeverityError != 0:
		level = slog.LevelError
	case severity&ext_debug_utils.SeverityWarning != 0:
		level = slog.LevelWarn
	case severity&ext_debug_utils.SeverityInfo != 0:
		level = slog.LevelInfo
	}

	logging.Logger().Log(context.Background(), level, data.Message, "source", "vulkan", "type", msgType)
	return false
}

// Candidate describes a physical device and whether it can drive the window.
type Candidate struct {
	Properties gpu.DeviceProperties
	Suitable   bool
	// Reason explains why an unsuitable device was rejected.
	Reason string

	physical core1_0.PhysicalDevice
	queues   queueFamilies
}

// Candidates lists every physical device in enumeration order.
func (inst *Instance) Candidates() ([]Candidate, error) {
	physicalDevices, _, err := inst.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate physical devices")
	}

	var candidates []Candidate
	for _, physical := range physicalDevices {
		props, err := inst.instanceDriver.GetPhysicalDeviceProperties(physical)
		if err != nil {
			return nil, errors.Wrap(err, "get physical device properties")
		}

		c := Candidate{Properties: convertProperties(props), physical: physical}
		c.queues, c.Reason, err = inst.suitability(physical)
		if err != nil {
			return nil, err
		}
		c.Suitable = c.Reason == ""
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func convertProperties(props *core1_0.PhysicalDeviceProperties) gpu.DeviceProperties {
	out := gpu.DeviceProperties{
		Name:              props.DeviceName,
		VendorID:          props.VendorID,
		DeviceID:          props.DeviceID,
		DriverVersion:     uint32(props.DriverVersion),
		PipelineCacheUUID: props.PipelineCacheUUID,
	}

	switch props.DriverType {
	case core1_0.PhysicalDeviceTypeIntegratedGPU:
		out.Type = gpu.DeviceTypeIntegratedGPU
	case core1_0.PhysicalDeviceTypeDiscreteGPU:
		out.Type = gpu.DeviceTypeDiscreteGPU
	case core1_0.PhysicalDeviceTypeVirtualGPU:
		out.Type = gpu.DeviceTypeVirtualGPU
	case core1_0.PhysicalDeviceTypeCPU:
		out.Type = gpu.DeviceTypeCPU
	default:
		out.Type = gpu.DeviceTypeOther
	}
	return out
}

type queueFamilies struct {
	graphics int
	present  int
}

// suitability returns an empty reason when physical has the queues, extensions and
// surface support the renderer needs.
func (inst *Instance) suitability(physical core1_0.PhysicalDevice) (queueFamilies, string, error) {
	families := queueFamilies{graphics: -1, present: -1}
	for idx, family := range inst.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(physical) {
		if family.QueueFlags&core1_0.QueueGraphics != 0 && families.graphics < 0 {
			families.graphics = idx
		}

		supported, _, err := inst.surfaceExtension.GetPhysicalDeviceSurfaceSupport(inst.surface, physical, idx)
		if err != nil {
			return families, "", errors.Wrap(err, "query surface support")
		}
		if supported && families.present < 0 {
			families.present = idx
		}
	}
	if families.graphics < 0 {
		return families, "no graphics queue", nil
	}
	if families.present < 0 {
		return families, "cannot present to the window", nil
	}

	extensions, _, err := inst.instanceDriver.EnumerateDeviceExtensionProperties(physical)
	if err != nil {
		return families, "", errors.Wrap(err, "list device extensions")
	}
	for _, ext := range deviceExtensions {
		if _, ok := extensions[ext]; !ok {
			return families, "missing " + ext, nil
		}
	}

	support, err := inst.surfaceSupport(physical)
	if err != nil {
		return families, "", err
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return families, "surface offers no formats or present modes", nil
	}
	return families, "", nil
}

func (inst *Instance) surfaceSupport(physical core1_0.PhysicalDevice) (*gpu.SurfaceSupport, error) {
	caps, _, err := inst.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(inst.surface, physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface capabilities")
	}
	formats, _, err := inst.surfaceExtension.GetPhysicalDeviceSurfaceFormats(inst.surface, physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface formats")
	}
	modes, _, err := inst.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(inst.surface, physical)
	if err != nil {
		return nil, errors.Wrap(err, "get surface present modes")
	}

	support := &gpu.SurfaceSupport{
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  extentFromVk(caps.CurrentExtent),
			MinImageExtent: extentFromVk(caps.MinImageExtent),
			MaxImageExtent: extentFromVk(caps.MaxImageExtent),
		},
	}
	for _, f := range formats {
		support.Formats = append(support.Formats, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}
	for _, m := range modes {
		support.PresentModes = append(support.PresentModes, gpu.PresentMode(m))
	}
	return support, nil
}

// Pick chooses the device named name, or when name is empty the first suitable
// discrete GPU, falling back to the first suitable device of any type.
func Pick(candidates []Candidate, name string) (Candidate, error) {
	var fallback *Candidate
	for i := range candidates {
		c := &candidates[i]
		if name != "" {
			if c.Properties.Name != name {
				continue
			}
			if !c.Suitable {
				return Candidate{}, errors.Newf("device %q is unsuitable: %s", name, c.Reason)
			}
			return *c, nil
		}
		if !c.Suitable {
			continue
		}
		if c.Properties.Type == gpu.DeviceTypeDiscreteGPU {
			return *c, nil
		}
		if fallback == nil {
			fallback = c
		}
	}

	if name != "" {
		return Candidate{}, errors.Newf("no device named %q", name)
	}
	if fallback == nil {
		return Candidate{}, errors.New("failed to find a suitable GPU")
	}
	return *fallback, nil
}

func (inst *Instance) Destroy() {
	if inst.surface.Initialized() {
		inst.surfaceExtension.DestroySurface(inst.surface, nil)
		inst.surface = khr_surface.Surface{}
	}
	if inst.debugMessenger.Initialized() {
		inst.debugDriver.DestroyDebugUtilsMessenger(inst.debugMessenger, nil)
		inst.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}
	if inst.instanceDriver != nil {
		inst.instanceDriver.DestroyInstance(nil)
		inst.instanceDriver = nil
	}
}

func extentFromVk(e core1_0.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func extentToVk(e gpu.Extent2D) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}
