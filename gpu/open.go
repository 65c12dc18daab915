// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Register the Vulkan backend for OpenDefault.
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// OpenNoop opens a device on the no-op HAL backend. Nothing is drawn; all
// bookkeeping runs as on a real device. Used for headless runs and tests.
func OpenNoop(cfg DeviceConfig) (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("gpu: create noop instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	return openAdapter(instance, &adapters[0], cfg)
}

// OpenDefault opens the first discrete or integrated GPU exposed by the
// Vulkan backend, falling back to the first adapter found.
func OpenDefault(cfg DeviceConfig) (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoAdapter)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}

	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	slogger().Info("gpu: adapter selected", "name", selected.Info.Name)
	return openAdapter(instance, selected, cfg)
}

func openAdapter(instance hal.Instance, adapter *hal.ExposedAdapter, cfg DeviceConfig) (*Device, error) {
	openDev, err := adapter.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}
	d, err := NewDevice(openDev.Device, openDev.Queue, cfg)
	if err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	d.instance = instance
	d.owned = true
	return d, nil
}

// halProvider is implemented by hosts that expose their wgpu HAL objects.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewDeviceFromProvider shares the GPU device of a host application. The
// provider must also expose HalDevice() and HalQueue() returning hal.Device
// and hal.Queue. The swapchain format follows the provider's surface format
// unless cfg sets one.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider, cfg DeviceConfig) (*Device, error) {
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrProviderNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProviderNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProviderNotHAL)
	}
	if cfg.SwapchainFormat == gputypes.TextureFormatUndefined {
		cfg.SwapchainFormat = provider.SurfaceFormat()
	}
	return NewDevice(device, queue, cfg)
}
