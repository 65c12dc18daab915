// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
)

// TextureHandle identifies a Texture in a Renderer.
type TextureHandle uint32

// BufferHandle identifies a Buffer in a Renderer.
type BufferHandle uint32

// SamplerHandle identifies a Sampler in a Renderer.
type SamplerHandle uint32

// ShaderHandle identifies a ShaderEffect in a Renderer.
type ShaderHandle uint32

// MaterialHandle identifies a Material in a Renderer.
type MaterialHandle uint32

// Invalid handle values.
const (
	InvalidTexture  = TextureHandle(pool.InvalidIndex)
	InvalidBuffer   = BufferHandle(pool.InvalidIndex)
	InvalidSampler  = SamplerHandle(pool.InvalidIndex)
	InvalidShader   = ShaderHandle(pool.InvalidIndex)
	InvalidMaterial = MaterialHandle(pool.InvalidIndex)
)

func (h TextureHandle) IsValid() bool  { return h != InvalidTexture }
func (h BufferHandle) IsValid() bool   { return h != InvalidBuffer }
func (h SamplerHandle) IsValid() bool  { return h != InvalidSampler }
func (h ShaderHandle) IsValid() bool   { return h != InvalidShader }
func (h MaterialHandle) IsValid() bool { return h != InvalidMaterial }

// Texture is a reference-counted device texture.
type Texture struct {
	handle TextureHandle
	gpu    gpu.TextureHandle
	desc   gpu.TextureDescription
	refs   int
}

func (t *Texture) Handle() TextureHandle               { return t.handle }
func (t *Texture) GPU() gpu.TextureHandle              { return t.gpu }
func (t *Texture) Description() gpu.TextureDescription { return t.desc }
func (t *Texture) Name() string                        { return t.desc.Name }
func (t *Texture) References() int                     { return t.refs }

// Buffer is a reference-counted device buffer.
type Buffer struct {
	handle BufferHandle
	gpu    gpu.BufferHandle
	desc   gpu.BufferDescription
	refs   int
}

func (b *Buffer) Handle() BufferHandle               { return b.handle }
func (b *Buffer) GPU() gpu.BufferHandle              { return b.gpu }
func (b *Buffer) Description() gpu.BufferDescription { return b.desc }
func (b *Buffer) Name() string                       { return b.desc.Name }
func (b *Buffer) References() int                    { return b.refs }

// Sampler is a reference-counted device sampler.
type Sampler struct {
	handle SamplerHandle
	gpu    gpu.SamplerHandle
	desc   gpu.SamplerDescription
	refs   int
}

func (s *Sampler) Handle() SamplerHandle               { return s.handle }
func (s *Sampler) GPU() gpu.SamplerHandle              { return s.gpu }
func (s *Sampler) Description() gpu.SamplerDescription { return s.desc }
func (s *Sampler) Name() string                        { return s.desc.Name }
func (s *Sampler) References() int                     { return s.refs }

// ShaderEffectCreation describes a shader effect: one pipeline per pass.
type ShaderEffectCreation struct {
	Name   string
	Effect *effect.Effect
	// Outputs holds the render pass output each pass renders into. Passes
	// without an entry use the swapchain output.
	Outputs []gpu.RenderPassOutput
}

// ShaderEffect is an effect with a pipeline per pass.
type ShaderEffect struct {
	handle    ShaderHandle
	name      string
	effect    *effect.Effect
	pipelines []gpu.PipelineHandle
	refs      int
}

func (s *ShaderEffect) Handle() ShaderHandle   { return s.handle }
func (s *ShaderEffect) Name() string           { return s.name }
func (s *ShaderEffect) Effect() *effect.Effect { return s.effect }
func (s *ShaderEffect) References() int        { return s.refs }
func (s *ShaderEffect) Passes() int            { return len(s.pipelines) }

// Pipeline returns the pipeline of pass i, or gpu.InvalidPipeline.
func (s *ShaderEffect) Pipeline(i int) gpu.PipelineHandle {
	if i < 0 || i >= len(s.pipelines) {
		return gpu.InvalidPipeline
	}
	return s.pipelines[i]
}

// MaterialPass binds resources to one pass of a shader effect.
type MaterialPass struct {
	Entries []gpu.ResourceListEntry
}

// MaterialCreation describes a material.
type MaterialCreation struct {
	Name   string
	Shader *ShaderEffect
	// Passes holds the resources of each shader pass, by pass index.
	Passes []MaterialPass
}

// Material is a shader effect with bound resources per pass.
type Material struct {
	handle MaterialHandle
	name   string
	shader *ShaderEffect
	lists  []gpu.ResourceListHandle
	refs   int
}

func (m *Material) Handle() MaterialHandle { return m.handle }
func (m *Material) Name() string           { return m.name }
func (m *Material) Shader() *ShaderEffect  { return m.shader }
func (m *Material) References() int        { return m.refs }

// ResourceList returns the resource list of pass i, or
// gpu.InvalidResourceList when the pass binds nothing.
func (m *Material) ResourceList(i int) gpu.ResourceListHandle {
	if i < 0 || i >= len(m.lists) {
		return gpu.InvalidResourceList
	}
	return m.lists[i]
}
