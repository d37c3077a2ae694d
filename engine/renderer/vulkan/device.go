package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/core"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// SurfaceProvider is the window the native driver presents to.
type SurfaceProvider interface {
	Window
	// InstanceProcAddr returns vkGetInstanceProcAddr as loaded by the windowing library.
	InstanceProcAddr() unsafe.Pointer
	RequiredInstanceExtensions() []string
	// CreateSurface creates a VkSurfaceKHR for instance and returns it as a raw pointer.
	CreateSurface(instance interface{}) (uintptr, error)
}

type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	GraphicsQueue      vk.Queue
	PresentQueue       vk.Queue

	// GraphicsCommandPool serves one-shot uploads and layout transitions.
	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type queueFamilyInfo struct {
	graphics, present       uint32
	hasGraphics, hasPresent bool
}

func (vc *VulkanContext) createInstance(appName string, extensions []string, validation bool) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Kestrel"),
	}

	required := append([]string{vk.KhrSurfaceExtensionName}, extensions...)
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}
	if runtime.GOOS == "darwin" {
		required = append(required, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if validation {
		if hasInstanceLayer(validationLayerName) {
			layers = append(layers, validationLayerName)
			required = append(required, vk.ExtDebugReportExtensionName)
		} else {
			core.LogWarn("validation requested but %s is not installed", validationLayerName)
		}
	}
	for _, e := range required {
		core.LogDebug("instance extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(required))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(required)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vc.Allocator, &vc.Instance); res != vk.Success {
		return vkError(res, "vkCreateInstance")
	}
	if err := vk.InitInstance(vc.Instance); err != nil {
		return errors.Wrap(err, "loading instance functions")
	}
	core.LogInfo("Vulkan instance created.")

	if len(layers) > 0 {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReportCallback,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, vc.Allocator, &dbg); res != vk.Success {
			core.LogWarn("vkCreateDebugReportCallback failed with %s", VulkanResultString(res))
		} else {
			vc.debugReport = dbg
		}
	}
	return nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (vc *VulkanContext) createSurface(p SurfaceProvider) error {
	surface, err := p.CreateSurface(vc.Instance)
	if err != nil {
		return errors.Mark(errors.Wrap(err, "creating window surface"), core.ErrSurfaceLost)
	}
	vc.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")
	return nil
}

// selectPhysicalDevice takes the first device meeting the requirements,
// preferring a discrete GPU.
func (vc *VulkanContext) selectPhysicalDevice() error {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &count, nil); res != vk.Success {
		return vkError(res, "vkEnumeratePhysicalDevices")
	}
	if count == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(vc.Instance, &count, devices); res != vk.Success {
		return vkError(res, "vkEnumeratePhysicalDevices")
	}

	var (
		chosen      vk.PhysicalDevice
		chosenQueue queueFamilyInfo
		chosenProps vk.PhysicalDeviceProperties
		bestScore   = -1
	)
	for _, device := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()

		queues, ok := vc.deviceMeetsRequirements(device)
		if !ok {
			core.LogInfo("device %q does not meet the requirements, skipping", cString(properties.DeviceName[:]))
			continue
		}
		score := 1
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			score = 2
		}
		if score > bestScore {
			chosen, chosenQueue, chosenProps, bestScore = device, queues, properties, score
		}
	}
	if chosen == nil {
		return errors.New("no physical devices were found which meet the requirements")
	}

	dev := vc.Device
	dev.PhysicalDevice = chosen
	dev.GraphicsQueueIndex = chosenQueue.graphics
	dev.PresentQueueIndex = chosenQueue.present
	dev.Properties = chosenProps
	dev.Properties.Limits.Deref()
	vk.GetPhysicalDeviceFeatures(chosen, &dev.Features)
	dev.Features.Deref()
	vk.GetPhysicalDeviceMemoryProperties(chosen, &dev.Memory)
	dev.Memory.Deref()

	core.LogInfo("Selected device: '%s'.", cString(chosenProps.DeviceName[:]))
	core.LogInfo("GPU Driver version: %d.%d.%d",
		vk.Version(chosenProps.DriverVersion).Major(),
		vk.Version(chosenProps.DriverVersion).Minor(),
		vk.Version(chosenProps.DriverVersion).Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(chosenProps.ApiVersion).Major(),
		vk.Version(chosenProps.ApiVersion).Minor(),
		vk.Version(chosenProps.ApiVersion).Patch())
	return nil
}

func (vc *VulkanContext) deviceMeetsRequirements(device vk.PhysicalDevice) (queueFamilyInfo, bool) {
	var info queueFamilyInfo

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	for i := range families {
		families[i].Deref()
		index := uint32(i)
		graphics := vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, index, vc.Surface, &supportsPresent)
		present := supportsPresent == vk.True

		// a family doing both is preferred
		if graphics && present {
			info = queueFamilyInfo{graphics: index, present: index, hasGraphics: true, hasPresent: true}
			break
		}
		if graphics && !info.hasGraphics {
			info.graphics, info.hasGraphics = index, true
		}
		if present && !info.hasPresent {
			info.present, info.hasPresent = index, true
		}
	}
	if !info.hasGraphics || !info.hasPresent {
		return info, false
	}

	if !hasDeviceExtension(device, vk.KhrSwapchainExtensionName) {
		return info, false
	}

	var formatCount, modeCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(device, vc.Surface, &formatCount, nil)
	vk.GetPhysicalDeviceSurfacePresentModes(device, vc.Surface, &modeCount, nil)
	if formatCount == 0 || modeCount == 0 {
		return info, false
	}
	return info, true
}

func hasDeviceExtension(device vk.PhysicalDevice, name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	extensions := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, extensions); res != vk.Success {
		return false
	}
	for i := range extensions {
		extensions[i].Deref()
		if cString(extensions[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (vc *VulkanContext) createLogicalDevice() error {
	dev := vc.Device

	indices := []uint32{dev.GraphicsQueueIndex}
	if dev.PresentQueueIndex != dev.GraphicsQueueIndex {
		indices = append(indices, dev.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(dev.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: dev.Features.SamplerAnisotropy,
		FillModeNonSolid:  dev.Features.FillModeNonSolid,
		WideLines:         dev.Features.WideLines,
	}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	var device vk.Device
	if res := vk.CreateDevice(dev.PhysicalDevice, &deviceCreateInfo, vc.Allocator, &device); res != vk.Success {
		return vkError(res, "vkCreateDevice")
	}
	dev.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(device, dev.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(device, dev.PresentQueueIndex, 0, &present)
	dev.GraphicsQueue = graphics
	dev.PresentQueue = present

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: dev.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(device, &poolCreateInfo, vc.Allocator, &pool); res != vk.Success {
		return vkError(res, "vkCreateCommandPool")
	}
	dev.GraphicsCommandPool = pool
	return nil
}

// destroy releases the device, surface, debug callback and instance, in that order.
func (vc *VulkanContext) destroy() {
	if dev := vc.Device; dev != nil && dev.LogicalDevice != nil {
		vk.DeviceWaitIdle(dev.LogicalDevice)
		if dev.GraphicsCommandPool != nil {
			vk.DestroyCommandPool(dev.LogicalDevice, dev.GraphicsCommandPool, vc.Allocator)
			dev.GraphicsCommandPool = nil
		}
		core.LogDebug("Destroying logical device...")
		vk.DestroyDevice(dev.LogicalDevice, vc.Allocator)
		dev.LogicalDevice = nil
		dev.GraphicsQueue = nil
		dev.PresentQueue = nil
	}
	if vc.Surface != vk.NullSurface {
		vk.DestroySurface(vc.Instance, vc.Surface, vc.Allocator)
		vc.Surface = vk.NullSurface
	}
	if vc.debugReport != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugReport, vc.Allocator)
		vc.debugReport = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}

func debugReportCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit|vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
