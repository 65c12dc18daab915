// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"slices"

	"github.com/chewxy/math32"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/renderer"
)

// StageHandle indexes the graph's stage pool.
type StageHandle uint32

// InvalidStage is the handle of a stage that does not exist.
const InvalidStage = StageHandle(pool.InvalidIndex)

// IsValid reports whether the handle refers to a stage slot.
func (h StageHandle) IsValid() bool { return h != InvalidStage }

// Stage is a resolved render stage: a render pass, its attachments, an
// optional material pass and the features that record into it.
type Stage struct {
	handle StageHandle
	name   string
	typ    StageType

	pass          gpu.RenderPassHandle
	output        gpu.RenderPassOutput
	width, height uint32
	outputs       []*renderer.Texture
	depth         *renderer.Texture

	materialName string
	material     *renderer.Material
	materialPass int

	resize   ResizeCreation
	clear    ClearCreation
	features []Feature
}

// Handle returns the stage's handle.
func (s *Stage) Handle() StageHandle { return s.handle }

// Name returns the declared name.
func (s *Stage) Name() string { return s.name }

// Type returns the stage type.
func (s *Stage) Type() StageType { return s.typ }

// RenderPass returns the stage's render pass, invalid if creation failed.
func (s *Stage) RenderPass() gpu.RenderPassHandle { return s.pass }

// Output returns the attachment formats pipelines in this stage must match.
func (s *Stage) Output() gpu.RenderPassOutput { return s.output }

// Size returns the size of the stage's attachments.
func (s *Stage) Size() (width, height uint32) { return s.width, s.height }

// Outputs returns the resolved color outputs.
func (s *Stage) Outputs() []*renderer.Texture { return s.outputs }

// DepthStencil returns the resolved depth-stencil target, or nil.
func (s *Stage) DepthStencil() *renderer.Texture { return s.depth }

// Material returns the bound material, or nil.
func (s *Stage) Material() *renderer.Material { return s.material }

// MaterialPass returns the index of the bound material pass.
func (s *Stage) MaterialPass() int { return s.materialPass }

// Features returns the attached features in attach order.
func (s *Stage) Features() []Feature { return s.features }

func (s *Stage) viewport() gpu.Rect { return gpu.Rect{Width: s.width, Height: s.height} }

// targets returns the output textures followed by the depth target.
func (s *Stage) targets() []*renderer.Texture {
	out := slices.Clone(s.outputs)
	if s.depth != nil {
		out = append(out, s.depth)
	}
	return out
}

func (s *Stage) attachmentHandles(depth bool) []gpu.TextureHandle {
	out := make([]gpu.TextureHandle, 0, len(s.outputs)+1)
	for _, t := range s.outputs {
		out = append(out, t.GPU())
	}
	if depth && s.depth != nil {
		out = append(out, s.depth.GPU())
	}
	return out
}

// bind resolves the stage's material pass after materials are created.
func (s *Stage) bind(g *Graph, material string) {
	s.materialName = material
	s.material = nil
	if material == "" {
		return
	}
	m := g.Material(material)
	if m == nil {
		slogger().Warn("framegraph: stage material unavailable", "stage", s.name, "material", material)
		return
	}
	if s.materialPass < 0 || s.materialPass >= m.Shader().Passes() {
		slogger().Warn("framegraph: stage material pass out of range",
			"stage", s.name, "material", material, "pass", s.materialPass, "passes", m.Shader().Passes())
		return
	}
	s.material = m
}

func barrier(src, dst gpu.PipelineStage, images []gpu.TextureHandle) gpu.ExecutionBarrier {
	b := gpu.NewBarrier(src, dst)
	for _, h := range images {
		b = b.AddImage(h)
	}
	return b
}

// render records the stage into cb.
func (s *Stage) render(cb *gpu.CommandBuffer) {
	if !s.pass.IsValid() {
		return
	}
	if len(s.features) == 0 {
		slogger().Debug("framegraph: stage has no features", "stage", s.name)
	}
	switch s.typ {
	case StageCompute:
		cb.Barrier(barrier(gpu.StageFragmentShader, gpu.StageComputeShader, s.attachmentHandles(false)))
		cb.BindPass(s.pass)
		s.dispatch(cb)
		s.renderFeatures(cb)
		cb.Barrier(barrier(gpu.StageComputeShader, gpu.StageFragmentShader, s.attachmentHandles(false)))
	case StageSwapchain:
		s.beginGraphics(cb)
		s.renderFeatures(cb)
		cb.EndPass()
	default:
		cb.Barrier(barrier(gpu.StageFragmentShader, gpu.StageRenderTarget, s.attachmentHandles(true)))
		s.beginGraphics(cb)
		s.renderFeatures(cb)
		cb.Barrier(barrier(gpu.StageRenderTarget, gpu.StageFragmentShader, s.attachmentHandles(true)))
	}
}

func (s *Stage) beginGraphics(cb *gpu.CommandBuffer) {
	if s.clear.Color {
		cb.Clear(s.clear.R, s.clear.G, s.clear.B, s.clear.A)
	}
	if s.clear.Depth {
		cb.ClearDepthStencil(s.clear.DepthValue, s.clear.StencilValue)
	}
	cb.BindPass(s.pass)
	cb.SetScissor(s.viewport())
	cb.SetViewport(gpu.Viewport{Rect: s.viewport(), MinDepth: 0, MaxDepth: 1})
}

func (s *Stage) renderFeatures(cb *gpu.CommandBuffer) {
	for _, f := range s.features {
		f.Render(cb)
	}
}

// dispatch runs the bound compute pass over the stage size.
func (s *Stage) dispatch(cb *gpu.CommandBuffer) {
	if s.material == nil {
		slogger().Debug("framegraph: compute stage has no material, skipping dispatch", "stage", s.name)
		return
	}
	shader := s.material.Shader()
	pass := &shader.Effect().Passes[s.materialPass]
	if !pass.Compute {
		slogger().Warn("framegraph: compute stage bound to a render pass", "stage", s.name, "pass", pass.Name)
		return
	}
	cb.BindPipeline(shader.Pipeline(s.materialPass))
	if l := s.material.ResourceList(s.materialPass); l.IsValid() {
		cb.BindResourceList(0, []gpu.ResourceListHandle{l}, nil)
	}
	x, y, z := pass.DispatchGroups(s.width, s.height)
	cb.Dispatch(x, y, z)
}

// scaledSize returns round(size * scale) clamped to one pixel.
func scaledSize(size uint32, scale float32) uint32 {
	if scale <= 0 {
		scale = 1
	}
	v := math32.Round(float32(size) * scale)
	if v < 1 {
		return 1
	}
	return uint32(v)
}
