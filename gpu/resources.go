// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// BufferCreation describes a buffer to create.
type BufferCreation struct {
	Name        string
	Size        uint32
	Usage       gputypes.BufferUsage
	Memory      MemoryUsage
	InitialData []byte
}

// BufferDescription mirrors the parameters a buffer was created with.
type BufferDescription struct {
	Name   string
	Size   uint32
	Usage  gputypes.BufferUsage
	Memory MemoryUsage
	// Parent is the ring buffer backing a dynamic buffer, or InvalidBuffer.
	Parent BufferHandle
	Handle BufferHandle
}

// TextureCreation describes a texture to create.
type TextureCreation struct {
	Name      string
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Format    gputypes.TextureFormat
	Type      TextureType
	Flags     TextureFlags
	// InitialData is uploaded to mip level 0 when non-empty.
	InitialData []byte
}

// TextureDescription mirrors the parameters a texture was created with.
type TextureDescription struct {
	Name      string
	Width     uint32
	Height    uint32
	Depth     uint32
	MipLevels uint32
	Format    gputypes.TextureFormat
	Type      TextureType
	Flags     TextureFlags
	Handle    TextureHandle
}

// IsRenderTarget reports whether the texture can be a color or depth attachment.
func (d TextureDescription) IsRenderTarget() bool {
	return d.Flags&TextureRenderTarget != 0 || isDepthFormat(d.Format)
}

// IsDepth reports whether the texture has a depth format.
func (d TextureDescription) IsDepth() bool { return isDepthFormat(d.Format) }

// SamplerCreation describes a sampler to create.
type SamplerCreation struct {
	Name      string
	MinFilter gputypes.FilterMode
	MagFilter gputypes.FilterMode
	MipFilter gputypes.FilterMode
	AddressU  gputypes.AddressMode
	AddressV  gputypes.AddressMode
	AddressW  gputypes.AddressMode
}

// SamplerDescription mirrors the parameters a sampler was created with.
type SamplerDescription struct {
	Name      string
	MinFilter gputypes.FilterMode
	MagFilter gputypes.FilterMode
	MipFilter gputypes.FilterMode
	AddressU  gputypes.AddressMode
	AddressV  gputypes.AddressMode
	AddressW  gputypes.AddressMode
	Handle    SamplerHandle
}

// LayoutBinding is one slot of a resource layout.
type LayoutBinding struct {
	Index uint32
	Type  BindingType
	// Name is matched against graph resource names by materials.
	Name   string
	Stages ShaderStageFlags
	// Dynamic marks a buffer binding whose offset is supplied per draw.
	Dynamic bool
	// Format is the storage texture format; only used by BindingStorageTexture.
	Format gputypes.TextureFormat
}

// ResourceLayoutCreation describes a bind group layout.
type ResourceLayoutCreation struct {
	Name     string
	Bindings []LayoutBinding
}

// ResourceLayoutDescription mirrors a resource layout.
type ResourceLayoutDescription struct {
	Name     string
	Bindings []LayoutBinding
	Handle   ResourceLayoutHandle
}

// ResourceListEntry binds one resource to a layout slot. Only the handle
// matching the slot's BindingType is used.
type ResourceListEntry struct {
	Binding uint32
	Buffer  BufferHandle
	Texture TextureHandle
	Sampler SamplerHandle
}

// BufferEntry returns an entry binding a buffer.
func BufferEntry(binding uint32, h BufferHandle) ResourceListEntry {
	return ResourceListEntry{Binding: binding, Buffer: h, Texture: InvalidTexture, Sampler: InvalidSampler}
}

// TextureEntry returns an entry binding a texture's default view.
func TextureEntry(binding uint32, h TextureHandle) ResourceListEntry {
	return ResourceListEntry{Binding: binding, Buffer: InvalidBuffer, Texture: h, Sampler: InvalidSampler}
}

// SamplerEntry returns an entry binding a sampler.
func SamplerEntry(binding uint32, h SamplerHandle) ResourceListEntry {
	return ResourceListEntry{Binding: binding, Buffer: InvalidBuffer, Texture: InvalidTexture, Sampler: h}
}

// ResourceListCreation describes a bind group.
type ResourceListCreation struct {
	Name    string
	Layout  ResourceLayoutHandle
	Entries []ResourceListEntry
}

// ResourceListDescription mirrors a resource list.
type ResourceListDescription struct {
	Name    string
	Layout  ResourceLayoutHandle
	Entries []ResourceListEntry
	Handle  ResourceListHandle
}

// RenderPassOutput is the attachment format signature of a render pass.
// Pipelines are created against an output so they match the pass they
// are used in.
type RenderPassOutput struct {
	Colors      []gputypes.TextureFormat
	Depth       gputypes.TextureFormat
	SampleCount uint32
	ColorOp     RenderPassOperation
	DepthOp     RenderPassOperation
	StencilOp   RenderPassOperation
}

// HasDepth reports whether the output has a depth attachment.
func (o RenderPassOutput) HasDepth() bool { return o.Depth != gputypes.TextureFormatUndefined }

// RenderPassCreation describes a render pass.
type RenderPassCreation struct {
	Name         string
	Type         RenderPassType
	Outputs      []TextureHandle
	DepthStencil TextureHandle
	ColorOp      RenderPassOperation
	DepthOp      RenderPassOperation
	StencilOp    RenderPassOperation
}

// RenderPassDescription mirrors a render pass.
type RenderPassDescription struct {
	Name         string
	Type         RenderPassType
	Outputs      []TextureHandle
	DepthStencil TextureHandle
	Output       RenderPassOutput
	Width        uint32
	Height       uint32
	Handle       RenderPassHandle
}

// ShaderStage is one shader module of a pipeline.
type ShaderStage struct {
	Kind       ShaderKind
	EntryPoint string
	// WGSL source; used unless SPIRV is set.
	WGSL  string
	SPIRV []uint32
}

// VertexAttribute describes one attribute of a vertex stream.
type VertexAttribute struct {
	Location uint32
	Offset   uint64
	Format   gputypes.VertexFormat
}

// VertexStream describes one vertex buffer binding.
type VertexStream struct {
	Stride     uint64
	Instance   bool
	Attributes []VertexAttribute
}

// DepthStencilCreation describes depth testing for a pipeline.
type DepthStencilCreation struct {
	DepthEnable  bool
	DepthWrite   bool
	DepthCompare gputypes.CompareFunction
}

// RasterizationCreation describes primitive assembly for a pipeline.
type RasterizationCreation struct {
	Topology gputypes.PrimitiveTopology
	CullMode gputypes.CullMode
}

// PipelineCreation describes a render or compute pipeline. A pipeline with
// a compute stage is a compute pipeline; any other stages are ignored.
// The pipeline creates and owns its resource layouts.
type PipelineCreation struct {
	Name          string
	Stages        []ShaderStage
	VertexStreams []VertexStream
	Layouts       []ResourceLayoutCreation
	Output        RenderPassOutput
	Blend         BlendMode
	DepthStencil  DepthStencilCreation
	Rasterization RasterizationCreation
}

// IsCompute reports whether the creation describes a compute pipeline.
func (c *PipelineCreation) IsCompute() bool {
	for _, s := range c.Stages {
		if s.Kind == ShaderKindCompute {
			return true
		}
	}
	return false
}

// PipelineDescription mirrors a pipeline.
type PipelineDescription struct {
	Name            string
	Compute         bool
	ResourceLayouts []ResourceLayoutHandle
	Output          RenderPassOutput
	Handle          PipelineHandle
}

// MapBufferParameters selects a region of a buffer to map for writing.
// A zero Size maps the whole buffer.
type MapBufferParameters struct {
	Buffer BufferHandle
	Offset uint32
	Size   uint32
}

// pool slot types

type buffer struct {
	raw  hal.Buffer
	desc BufferDescription
	// globalOffset is the ring offset of a dynamic buffer for the current frame.
	globalOffset uint32
	staging      []byte
	mapOffset    uint32
	mapped       bool
	state        PipelineStage
	hasState     bool
}

type texture struct {
	raw   hal.Texture
	view  hal.TextureView
	desc  TextureDescription
	usage gputypes.TextureUsage
	// state is the last usage recorded by a barrier; zero means undefined.
	state gputypes.TextureUsage
}

type sampler struct {
	raw  hal.Sampler
	desc SamplerDescription
}

type resourceLayout struct {
	raw  hal.BindGroupLayout
	desc ResourceLayoutDescription
	// owned layouts are destroyed with their pipeline.
	owner PipelineHandle
}

type resourceList struct {
	raw  hal.BindGroup
	desc ResourceListDescription
	// dynamic lists the bindings that take a per-draw dynamic offset.
	dynamic []BufferHandle
}

type pipeline struct {
	render  hal.RenderPipeline
	compute hal.ComputePipeline
	layout  hal.PipelineLayout
	modules []hal.ShaderModule
	desc    PipelineDescription
}

type renderPass struct {
	desc      RenderPassDescription
	swapchain bool
}
