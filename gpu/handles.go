// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "github.com/gogpu/framegraph/pool"

// Handles store their pool slot plus one, so the zero value of every handle
// type is invalid and an unset creation field never names a live resource.

// BufferHandle identifies a buffer owned by a Device.
type BufferHandle uint32

// TextureHandle identifies a texture owned by a Device.
type TextureHandle uint32

// SamplerHandle identifies a sampler owned by a Device.
type SamplerHandle uint32

// PipelineHandle identifies a render or compute pipeline owned by a Device.
type PipelineHandle uint32

// ResourceLayoutHandle identifies a bind group layout owned by a Device.
type ResourceLayoutHandle uint32

// ResourceListHandle identifies a bind group owned by a Device.
type ResourceListHandle uint32

// RenderPassHandle identifies a render pass (attachment set) owned by a Device.
type RenderPassHandle uint32

// Invalid handle values. Each equals the zero value of its type.
const (
	InvalidBuffer         BufferHandle         = 0
	InvalidTexture        TextureHandle        = 0
	InvalidSampler        SamplerHandle        = 0
	InvalidPipeline       PipelineHandle       = 0
	InvalidResourceLayout ResourceLayoutHandle = 0
	InvalidResourceList   ResourceListHandle   = 0
	InvalidRenderPass     RenderPassHandle     = 0
)

// IsValid reports whether h is not InvalidBuffer.
func (h BufferHandle) IsValid() bool { return h != InvalidBuffer }

// IsValid reports whether h is not InvalidTexture.
func (h TextureHandle) IsValid() bool { return h != InvalidTexture }

// IsValid reports whether h is not InvalidSampler.
func (h SamplerHandle) IsValid() bool { return h != InvalidSampler }

// IsValid reports whether h is not InvalidPipeline.
func (h PipelineHandle) IsValid() bool { return h != InvalidPipeline }

// IsValid reports whether h is not InvalidResourceLayout.
func (h ResourceLayoutHandle) IsValid() bool { return h != InvalidResourceLayout }

// IsValid reports whether h is not InvalidResourceList.
func (h ResourceListHandle) IsValid() bool { return h != InvalidResourceList }

// IsValid reports whether h is not InvalidRenderPass.
func (h RenderPassHandle) IsValid() bool { return h != InvalidRenderPass }

// Slot conversions. pool.InvalidIndex maps to the invalid handle and back.

func bufferHandle(i pool.Index) BufferHandle                 { return BufferHandle(i + 1) }
func textureHandle(i pool.Index) TextureHandle               { return TextureHandle(i + 1) }
func samplerHandle(i pool.Index) SamplerHandle               { return SamplerHandle(i + 1) }
func pipelineHandle(i pool.Index) PipelineHandle             { return PipelineHandle(i + 1) }
func resourceLayoutHandle(i pool.Index) ResourceLayoutHandle { return ResourceLayoutHandle(i + 1) }
func resourceListHandle(i pool.Index) ResourceListHandle     { return ResourceListHandle(i + 1) }
func renderPassHandle(i pool.Index) RenderPassHandle         { return RenderPassHandle(i + 1) }

func (h BufferHandle) index() pool.Index         { return pool.Index(h) - 1 }
func (h TextureHandle) index() pool.Index        { return pool.Index(h) - 1 }
func (h SamplerHandle) index() pool.Index        { return pool.Index(h) - 1 }
func (h PipelineHandle) index() pool.Index       { return pool.Index(h) - 1 }
func (h ResourceLayoutHandle) index() pool.Index { return pool.Index(h) - 1 }
func (h ResourceListHandle) index() pool.Index   { return pool.Index(h) - 1 }
func (h RenderPassHandle) index() pool.Index     { return pool.Index(h) - 1 }
