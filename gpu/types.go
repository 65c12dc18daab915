// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// MemoryUsage describes how often a buffer's contents change.
type MemoryUsage uint8

const (
	// MemoryImmutable buffers are written once at creation.
	MemoryImmutable MemoryUsage = iota
	// MemoryDynamic buffers live in the per-frame ring and are rewritten
	// every frame through MapBuffer.
	MemoryDynamic
	// MemoryStream buffers own device memory and are updated through
	// MapBuffer/UnmapBuffer or the queue.
	MemoryStream
)

var memoryUsageNames = [...]string{"Immutable", "Dynamic", "Stream"}

func (m MemoryUsage) String() string {
	if int(m) < len(memoryUsageNames) {
		return memoryUsageNames[m]
	}
	return fmt.Sprintf("MemoryUsage(%d)", m)
}

// TextureType is the dimensionality of a texture.
type TextureType uint8

// Texture types.
const (
	Texture2D TextureType = iota
	Texture1D
	Texture3D
)

func (t TextureType) dimension() gputypes.TextureDimension {
	switch t {
	case Texture1D:
		return gputypes.TextureDimension1D
	case Texture3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

func (t TextureType) viewDimension() gputypes.TextureViewDimension {
	switch t {
	case Texture1D:
		return gputypes.TextureViewDimension1D
	case Texture3D:
		return gputypes.TextureViewDimension3D
	default:
		return gputypes.TextureViewDimension2D
	}
}

// TextureFlags select optional texture capabilities.
type TextureFlags uint8

const (
	// TextureRenderTarget allows the texture to be a render pass attachment.
	TextureRenderTarget TextureFlags = 1 << iota
	// TextureCompute allows the texture to be written by compute shaders.
	TextureCompute
)

// RenderPassType selects how a render pass is begun.
type RenderPassType uint8

const (
	// PassGeometry renders into offscreen color and depth attachments.
	PassGeometry RenderPassType = iota
	// PassSwapchain renders into the current swapchain image.
	PassSwapchain
	// PassCompute begins a compute pass; it has no attachments.
	PassCompute
)

var passTypeNames = [...]string{"Geometry", "Swapchain", "Compute"}

func (t RenderPassType) String() string {
	if int(t) < len(passTypeNames) {
		return passTypeNames[t]
	}
	return fmt.Sprintf("RenderPassType(%d)", t)
}

// RenderPassOperation is the load behavior of a render pass attachment.
type RenderPassOperation uint8

const (
	// OpDontCare leaves attachment contents undefined at pass start.
	OpDontCare RenderPassOperation = iota
	// OpLoad preserves previous attachment contents.
	OpLoad
	// OpClear clears the attachment to the pass clear value.
	OpClear
)

func (op RenderPassOperation) loadOp() gputypes.LoadOp {
	if op == OpLoad {
		return gputypes.LoadOpLoad
	}
	return gputypes.LoadOpClear
}

// PipelineStage names a point in the GPU pipeline used by barriers.
type PipelineStage uint8

const (
	StageDrawIndirect PipelineStage = iota
	StageVertexInput
	StageVertexShader
	StageFragmentShader
	StageRenderTarget
	StageComputeShader
	StageTransfer
)

var pipelineStageNames = [...]string{
	"DrawIndirect", "VertexInput", "VertexShader", "FragmentShader",
	"RenderTarget", "ComputeShader", "Transfer",
}

func (s PipelineStage) String() string {
	if int(s) < len(pipelineStageNames) {
		return pipelineStageNames[s]
	}
	return fmt.Sprintf("PipelineStage(%d)", s)
}

// textureUsage maps a pipeline stage to the texture usage a texture must be
// in when accessed at that stage. Depth textures use the attachment usage
// for the render target stage like color textures do.
func (s PipelineStage) textureUsage() gputypes.TextureUsage {
	switch s {
	case StageRenderTarget:
		return gputypes.TextureUsageRenderAttachment
	case StageVertexShader, StageFragmentShader:
		return gputypes.TextureUsageTextureBinding
	case StageComputeShader:
		return gputypes.TextureUsageStorageBinding
	case StageTransfer:
		return gputypes.TextureUsageCopySrc
	default:
		return 0
	}
}

// BindingType is the kind of resource bound at a layout slot.
type BindingType uint8

const (
	BindingUniformBuffer BindingType = iota
	BindingStorageBuffer
	BindingReadOnlyStorageBuffer
	BindingTexture
	BindingStorageTexture
	BindingSampler
)

var bindingTypeNames = [...]string{
	"UniformBuffer", "StorageBuffer", "ReadOnlyStorageBuffer",
	"Texture", "StorageTexture", "Sampler",
}

func (b BindingType) String() string {
	if int(b) < len(bindingTypeNames) {
		return bindingTypeNames[b]
	}
	return fmt.Sprintf("BindingType(%d)", b)
}

// ParseBindingType converts a binding type name as written in effect
// manifests ("uniform", "storage", "texture", ...) to a BindingType.
func ParseBindingType(s string) (BindingType, error) {
	switch s {
	case "uniform", "UniformBuffer":
		return BindingUniformBuffer, nil
	case "storage", "StorageBuffer":
		return BindingStorageBuffer, nil
	case "readonly_storage", "ReadOnlyStorageBuffer":
		return BindingReadOnlyStorageBuffer, nil
	case "texture", "Texture":
		return BindingTexture, nil
	case "storage_texture", "StorageTexture":
		return BindingStorageTexture, nil
	case "sampler", "Sampler":
		return BindingSampler, nil
	}
	return 0, fmt.Errorf("%w: unknown binding type %q", ErrInvalidCreation, s)
}

// IsBuffer reports whether the binding refers to a buffer.
func (b BindingType) IsBuffer() bool { return b <= BindingReadOnlyStorageBuffer }

// ShaderStageFlags selects the shader stages a binding is visible to.
type ShaderStageFlags uint8

const (
	ShaderVertex ShaderStageFlags = 1 << iota
	ShaderFragment
	ShaderCompute
)

// ShaderKind is the stage a shader module is compiled for.
type ShaderKind uint8

const (
	ShaderKindVertex ShaderKind = iota
	ShaderKindFragment
	ShaderKindCompute
)

// BlendMode selects a color target blend state.
type BlendMode uint8

const (
	// BlendOpaque disables blending.
	BlendOpaque BlendMode = iota
	// BlendPremultiplied composites premultiplied alpha.
	BlendPremultiplied
)

// isDepthFormat reports whether f carries a depth aspect.
func isDepthFormat(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth32Float,
		gputypes.TextureFormatDepth16Unorm:
		return true
	}
	return false
}

// hasStencil reports whether f carries a stencil aspect.
func hasStencil(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatDepth24PlusStencil8
}

// bytesPerPixel returns the texel size of formats accepted as initial data.
func bytesPerPixel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}
