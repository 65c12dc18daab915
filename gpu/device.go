// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"time"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Default device limits.
const (
	// DefaultFramesInFlight is the number of frames the CPU may record ahead
	// of the GPU.
	DefaultFramesInFlight = 2

	// MaxFramesInFlight bounds FramesInFlight.
	MaxFramesInFlight = 4

	// DefaultDynamicPerFrameSize is the per-frame dynamic ring region (1 MB).
	DefaultDynamicPerFrameSize = 1 << 20

	// DynamicAlignment is the alignment of dynamic allocations. It matches
	// the minimum uniform buffer offset alignment of the default limits.
	DynamicAlignment = 256

	// DefaultFenceTimeout bounds the wait for a frame fence.
	DefaultFenceTimeout = 5 * time.Second
)

// Capacities sets the fixed size of each resource pool.
type Capacities struct {
	Buffers         uint32
	Textures        uint32
	Samplers        uint32
	Pipelines       uint32
	ResourceLayouts uint32
	ResourceLists   uint32
	RenderPasses    uint32
}

// DefaultCapacities returns pool capacities suitable for demos.
func DefaultCapacities() Capacities {
	return Capacities{
		Buffers:         512,
		Textures:        512,
		Samplers:        32,
		Pipelines:       128,
		ResourceLayouts: 128,
		ResourceLists:   256,
		RenderPasses:    64,
	}
}

// Presenter supplies swapchain images from a window surface. A device
// without a Presenter renders the swapchain pass into offscreen textures.
type Presenter interface {
	// AcquireView returns the view to render into for the current frame.
	AcquireView() (hal.TextureView, error)
	// Present queues the acquired image for display.
	Present() error
	// Resize reconfigures the surface.
	Resize(width, height uint32) error
}

// DeviceConfig configures a Device.
type DeviceConfig struct {
	Width  uint32
	Height uint32

	FramesInFlight      uint32
	DynamicPerFrameSize uint32

	// SwapchainFormat is the color format of the swapchain pass.
	// Zero selects BGRA8Unorm.
	SwapchainFormat gputypes.TextureFormat
	// DepthFormat adds a depth attachment to the swapchain pass when set.
	DepthFormat gputypes.TextureFormat

	Capacities Capacities

	// DeferredCommands records commands without issuing backend calls and
	// replays them sorted by key when the command buffer is submitted.
	DeferredCommands bool

	Presenter    Presenter
	FenceTimeout time.Duration
}

// DefaultDeviceConfig returns a configuration for a 1280x720 target.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Width:               1280,
		Height:              720,
		FramesInFlight:      DefaultFramesInFlight,
		DynamicPerFrameSize: DefaultDynamicPerFrameSize,
		SwapchainFormat:     gputypes.TextureFormatBGRA8Unorm,
		Capacities:          DefaultCapacities(),
		FenceTimeout:        DefaultFenceTimeout,
	}
}

// withDefaults fills zero fields from DefaultDeviceConfig.
func (c DeviceConfig) withDefaults() DeviceConfig {
	def := DefaultDeviceConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.FramesInFlight == 0 {
		c.FramesInFlight = def.FramesInFlight
	}
	c.FramesInFlight = min(c.FramesInFlight, MaxFramesInFlight)
	if c.DynamicPerFrameSize == 0 {
		c.DynamicPerFrameSize = def.DynamicPerFrameSize
	}
	c.DynamicPerFrameSize = alignUp(c.DynamicPerFrameSize, DynamicAlignment)
	if c.SwapchainFormat == gputypes.TextureFormatUndefined {
		c.SwapchainFormat = def.SwapchainFormat
	}
	if c.Capacities == (Capacities{}) {
		c.Capacities = def.Capacities
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = def.FenceTimeout
	}
	return c
}

// deletion is a resource waiting for the GPU to finish with it.
type deletion struct {
	kind   resourceKind
	handle uint32
	frame  uint64
}

type resourceKind uint8

const (
	kindBuffer resourceKind = iota
	kindTexture
	kindSampler
	kindPipeline
	kindResourceLayout
	kindResourceList
	kindRenderPass
)

// Device owns a HAL device and queue and every resource created on them.
type Device struct {
	raw   hal.Device
	queue hal.Queue
	cfg   DeviceConfig

	// instance is set when the device was opened by this package and is
	// destroyed with it.
	instance hal.Instance
	owned    bool

	buffers   *pool.Pool[buffer]
	textures  *pool.Pool[texture]
	samplers  *pool.Pool[sampler]
	pipelines *pool.Pool[pipeline]
	layouts   *pool.Pool[resourceLayout]
	lists     *pool.Pool[resourceList]
	passes    *pool.Pool[renderPass]

	fence       hal.Fence
	fenceValue  uint64
	frameValues []uint64

	frameIndex    uint32
	absoluteFrame uint64

	commandBuffers [][]*CommandBuffer
	usedBuffers    []int
	queued         []*CommandBuffer

	deletions []deletion

	dynamicBuffer    BufferHandle
	dynamicShadow    []byte
	dynamicAllocated uint32

	width, height     uint32
	swapchainTextures []TextureHandle
	swapchainDepth    TextureHandle
	swapchainPass     RenderPassHandle
	swapchainView     hal.TextureView

	closed bool
}

// NewDevice wraps an open HAL device and queue. The caller keeps
// ownership of the HAL device; Close releases only resources created
// through the returned Device.
func NewDevice(device hal.Device, queue hal.Queue, cfg DeviceConfig) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("%w: nil device or queue", ErrInvalidCreation)
	}
	cfg = cfg.withDefaults()
	caps := cfg.Capacities
	d := &Device{
		raw:            device,
		queue:          queue,
		cfg:            cfg,
		buffers:        pool.New[buffer](caps.Buffers),
		textures:       pool.New[texture](caps.Textures),
		samplers:       pool.New[sampler](caps.Samplers),
		pipelines:      pool.New[pipeline](caps.Pipelines),
		layouts:        pool.New[resourceLayout](caps.ResourceLayouts),
		lists:          pool.New[resourceList](caps.ResourceLists),
		passes:         pool.New[renderPass](caps.RenderPasses),
		frameValues:    make([]uint64, cfg.FramesInFlight),
		commandBuffers: make([][]*CommandBuffer, cfg.FramesInFlight),
		usedBuffers:    make([]int, cfg.FramesInFlight),
		dynamicBuffer:  InvalidBuffer,
		swapchainDepth: InvalidTexture,
		swapchainPass:  InvalidRenderPass,
		width:          cfg.Width,
		height:         cfg.Height,
	}

	fence, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("gpu: create frame fence: %w", err)
	}
	d.fence = fence

	if err := d.createDynamicBuffer(); err != nil {
		d.raw.DestroyFence(d.fence)
		return nil, err
	}
	if err := d.createSwapchain(); err != nil {
		d.destroyAll()
		return nil, err
	}

	slogger().Info("gpu: device ready",
		"width", d.width,
		"height", d.height,
		"framesInFlight", cfg.FramesInFlight,
		"dynamicPerFrame", cfg.DynamicPerFrameSize,
		"deferred", cfg.DeferredCommands)
	return d, nil
}

// Config returns the effective configuration.
func (d *Device) Config() DeviceConfig { return d.cfg }

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() hal.Device { return d.raw }

// HalQueue returns the underlying HAL queue.
func (d *Device) HalQueue() hal.Queue { return d.queue }

// FrameIndex returns the ring slot of the frame being recorded.
func (d *Device) FrameIndex() uint32 { return d.frameIndex }

// AbsoluteFrame returns the number of frames presented so far.
func (d *Device) AbsoluteFrame() uint64 { return d.absoluteFrame }

// Size returns the swapchain size.
func (d *Device) Size() (width, height uint32) { return d.width, d.height }

// WaitIdle blocks until all submitted work has completed.
func (d *Device) WaitIdle() error {
	if d.fenceValue == 0 {
		return nil
	}
	ok, err := d.raw.Wait(d.fence, d.fenceValue, d.cfg.FenceTimeout)
	if err != nil {
		return fmt.Errorf("gpu: wait idle: %w", err)
	}
	if !ok {
		return ErrFenceTimeout
	}
	return nil
}

// Close waits for the GPU, destroys every resource still alive and, for
// devices opened by this package, the HAL device itself.
func (d *Device) Close() {
	if d.closed {
		return
	}
	if err := d.WaitIdle(); err != nil {
		slogger().Warn("gpu: close without idle", "error", err)
	}
	d.destroyAll()
	d.closed = true
	if d.owned {
		d.raw.Destroy()
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	slogger().Info("gpu: device closed")
}

func (d *Device) destroyAll() {
	for _, frame := range d.commandBuffers {
		for _, cb := range frame {
			cb.release()
		}
	}
	d.commandBuffers = nil
	d.queued = nil

	// Everything still pending deletion plus every live resource.
	d.flushDeletions(true)
	d.lists.Each(func(i pool.Index, _ *resourceList) bool {
		d.destroyResourceListNow(resourceListHandle(i))
		return true
	})
	d.pipelines.Each(func(i pool.Index, _ *pipeline) bool {
		d.destroyPipelineNow(pipelineHandle(i))
		return true
	})
	d.layouts.Each(func(i pool.Index, _ *resourceLayout) bool {
		d.destroyResourceLayoutNow(resourceLayoutHandle(i))
		return true
	})
	d.passes.Each(func(i pool.Index, _ *renderPass) bool {
		d.passes.Release(i)
		return true
	})
	d.samplers.Each(func(i pool.Index, _ *sampler) bool {
		d.destroySamplerNow(samplerHandle(i))
		return true
	})
	d.textures.Each(func(i pool.Index, _ *texture) bool {
		d.destroyTextureNow(textureHandle(i))
		return true
	})
	d.buffers.Each(func(i pool.Index, _ *buffer) bool {
		d.destroyBufferNow(bufferHandle(i))
		return true
	})
	if d.fence != nil {
		d.raw.DestroyFence(d.fence)
		d.fence = nil
	}
}

// Stats reports pool usage.
type Stats struct {
	Buffers, Textures, Samplers uint32
	Pipelines                   uint32
	ResourceLayouts             uint32
	ResourceLists               uint32
	RenderPasses                uint32
	PendingDeletions            int
}

// Stats returns the number of live resources per pool.
func (d *Device) Stats() Stats {
	return Stats{
		Buffers:          d.buffers.Used(),
		Textures:         d.textures.Used(),
		Samplers:         d.samplers.Used(),
		Pipelines:        d.pipelines.Used(),
		ResourceLayouts:  d.layouts.Used(),
		ResourceLists:    d.lists.Used(),
		RenderPasses:     d.passes.Used(),
		PendingDeletions: len(d.deletions),
	}
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}
