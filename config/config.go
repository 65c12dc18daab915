// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads the engine configuration from TOML.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default:
//
//	[window]
//	width = 1920
//	height = 1080
//
//	[device]
//	backend = "vulkan"
//	frames_in_flight = 3
//
//	[graph]
//	strict = true
//	file = "graphs/forward.toml"
//
//	[log]
//	level = "debug"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/renderer"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid")

// Backends accepted by Device.Backend.
const (
	BackendNoop   = "noop"
	BackendVulkan = "vulkan"
)

// Config is the engine configuration.
type Config struct {
	Window   Window   `toml:"window"`
	Device   Device   `toml:"device"`
	Renderer Renderer `toml:"renderer"`
	Graph    Graph    `toml:"graph"`
	Shaders  Shaders  `toml:"shaders"`
	Log      Log      `toml:"log"`
}

// Window is the initial swapchain size.
type Window struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

// Device configures the GPU device.
type Device struct {
	Backend             string `toml:"backend"`
	FramesInFlight      uint32 `toml:"frames_in_flight"`
	DynamicPerFrameSize uint32 `toml:"dynamic_per_frame_size"`
	SwapchainFormat     string `toml:"swapchain_format"`
	DepthFormat         string `toml:"depth_format"`
	DeferredCommands    bool   `toml:"deferred_commands"`
	// FenceTimeout is a Go duration string such as "5s".
	FenceTimeout string `toml:"fence_timeout"`

	Buffers         uint32 `toml:"buffers"`
	Textures        uint32 `toml:"textures"`
	Samplers        uint32 `toml:"samplers"`
	Pipelines       uint32 `toml:"pipelines"`
	ResourceLayouts uint32 `toml:"resource_layouts"`
	ResourceLists   uint32 `toml:"resource_lists"`
	RenderPasses    uint32 `toml:"render_passes"`
}

// Renderer sets the renderer pool capacities.
type Renderer struct {
	Textures  uint32 `toml:"textures"`
	Buffers   uint32 `toml:"buffers"`
	Samplers  uint32 `toml:"samplers"`
	Shaders   uint32 `toml:"shaders"`
	Materials uint32 `toml:"materials"`
}

// Graph configures the render graph.
type Graph struct {
	Strict    bool   `toml:"strict"`
	MaxStages uint32 `toml:"max_stages"`
	// File is a graph declaration file loaded by graphfile.
	File string `toml:"file"`
}

// Shaders configures effect loading and hot reload.
type Shaders struct {
	Dir   string `toml:"dir"`
	SPIRV bool   `toml:"spirv"`
	Watch bool   `toml:"watch"`
}

// Log configures logging.
type Log struct {
	// Level is one of debug, info, warn and error.
	Level string `toml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	dc := gpu.DefaultDeviceConfig()
	rc := renderer.DefaultConfig().Capacities
	return Config{
		Window: Window{Width: dc.Width, Height: dc.Height},
		Device: Device{
			Backend:             BackendNoop,
			FramesInFlight:      dc.FramesInFlight,
			DynamicPerFrameSize: dc.DynamicPerFrameSize,
			SwapchainFormat:     "bgra8unorm",
			FenceTimeout:        dc.FenceTimeout.String(),
			Buffers:             dc.Capacities.Buffers,
			Textures:            dc.Capacities.Textures,
			Samplers:            dc.Capacities.Samplers,
			Pipelines:           dc.Capacities.Pipelines,
			ResourceLayouts:     dc.Capacities.ResourceLayouts,
			ResourceLists:       dc.Capacities.ResourceLists,
			RenderPasses:        dc.Capacities.RenderPasses,
		},
		Renderer: Renderer{
			Textures:  rc.Textures,
			Buffers:   rc.Buffers,
			Samplers:  rc.Samplers,
			Shaders:   rc.Shaders,
			Materials: rc.Materials,
		},
		Graph:   Graph{MaxStages: framegraph.DefaultMaxStages},
		Shaders: Shaders{Dir: "shaders"},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	switch c.Device.Backend {
	case BackendNoop, BackendVulkan:
	default:
		bad("device backend %q", c.Device.Backend)
	}
	if c.Device.FramesInFlight == 0 || c.Device.FramesInFlight > 4 {
		bad("frames_in_flight %d, want 1..4", c.Device.FramesInFlight)
	}
	if c.Device.DynamicPerFrameSize < gpu.DynamicAlignment {
		bad("dynamic_per_frame_size %d below alignment %d", c.Device.DynamicPerFrameSize, gpu.DynamicAlignment)
	}
	if _, err := effect.ParseTextureFormat(c.Device.SwapchainFormat); err != nil {
		bad("swapchain_format: %v", err)
	}
	if c.Device.DepthFormat != "" {
		if _, err := effect.ParseTextureFormat(c.Device.DepthFormat); err != nil {
			bad("depth_format: %v", err)
		}
	}
	if c.Device.FenceTimeout != "" {
		if d, err := time.ParseDuration(c.Device.FenceTimeout); err != nil || d <= 0 {
			bad("fence_timeout %q", c.Device.FenceTimeout)
		}
	}
	if _, err := c.LogLevel(); err != nil {
		bad("log level %q", c.Log.Level)
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}

// DeviceConfig returns the gpu device configuration. Call it on a
// validated Config.
func (c *Config) DeviceConfig() gpu.DeviceConfig {
	dc := gpu.DefaultDeviceConfig()
	dc.Width, dc.Height = c.Window.Width, c.Window.Height
	dc.FramesInFlight = c.Device.FramesInFlight
	dc.DynamicPerFrameSize = c.Device.DynamicPerFrameSize
	dc.DeferredCommands = c.Device.DeferredCommands
	if f, err := effect.ParseTextureFormat(c.Device.SwapchainFormat); err == nil {
		dc.SwapchainFormat = f
	}
	if c.Device.DepthFormat != "" {
		if f, err := effect.ParseTextureFormat(c.Device.DepthFormat); err == nil {
			dc.DepthFormat = f
		}
	}
	if d, err := time.ParseDuration(c.Device.FenceTimeout); err == nil {
		dc.FenceTimeout = d
	}
	dc.Capacities = gpu.Capacities{
		Buffers:         c.Device.Buffers,
		Textures:        c.Device.Textures,
		Samplers:        c.Device.Samplers,
		Pipelines:       c.Device.Pipelines,
		ResourceLayouts: c.Device.ResourceLayouts,
		ResourceLists:   c.Device.ResourceLists,
		RenderPasses:    c.Device.RenderPasses,
	}
	return dc
}

// RendererConfig returns the renderer configuration.
func (c *Config) RendererConfig() renderer.Config {
	return renderer.Config{Capacities: renderer.Capacities{
		Textures:  c.Renderer.Textures,
		Buffers:   c.Renderer.Buffers,
		Samplers:  c.Renderer.Samplers,
		Shaders:   c.Renderer.Shaders,
		Materials: c.Renderer.Materials,
	}}
}

// GraphConfig returns the render graph configuration.
func (c *Config) GraphConfig() framegraph.Config {
	return framegraph.Config{Strict: c.Graph.Strict, MaxStages: c.Graph.MaxStages}
}

// EffectOptions returns the options effects are loaded with.
func (c *Config) EffectOptions() effect.Options {
	return effect.Options{SPIRV: c.Shaders.SPIRV}
}
