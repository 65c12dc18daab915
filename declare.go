// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
)

// ShaderCreation declares a shader effect.
type ShaderCreation struct {
	Name   string
	Effect *effect.Effect
}

// ResourceBinding binds a graph resource to a named layout binding.
type ResourceBinding struct {
	Binding  string
	Resource string
}

// MaterialPassCreation lists the resources of one effect pass.
type MaterialPassCreation struct {
	Bindings []ResourceBinding
}

// MaterialPass binds each resource to the layout binding of the same name.
func MaterialPass(resources ...string) MaterialPassCreation {
	p := MaterialPassCreation{Bindings: make([]ResourceBinding, 0, len(resources))}
	for _, r := range resources {
		p.Bindings = append(p.Bindings, ResourceBinding{Binding: r, Resource: r})
	}
	return p
}

// Bind adds a binding and returns the pass.
func (p MaterialPassCreation) Bind(binding, resource string) MaterialPassCreation {
	p.Bindings = append(p.Bindings, ResourceBinding{Binding: binding, Resource: resource})
	return p
}

func (p *MaterialPassCreation) resource(binding string) (string, bool) {
	for _, b := range p.Bindings {
		if b.Binding == binding {
			return b.Resource, true
		}
	}
	return "", false
}

// MaterialCreation declares a material: a shader plus the resources bound
// by each of its passes. Passes[i] belongs to effect pass i.
type MaterialCreation struct {
	Name   string
	Shader string
	Passes []MaterialPassCreation
}

// StageType selects how a stage records its pass.
type StageType uint8

const (
	// StageGeometry renders into its output textures.
	StageGeometry StageType = iota
	// StageCompute dispatches its material's compute pass.
	StageCompute
	// StageSwapchain renders into the swapchain image.
	StageSwapchain
)

var stageTypeNames = [...]string{"geometry", "compute", "swapchain"}

func (t StageType) String() string {
	if int(t) < len(stageTypeNames) {
		return stageTypeNames[t]
	}
	return "unknown"
}

// ResizeCreation controls how a stage follows window resizes. Output
// textures become round(window size * scale).
type ResizeCreation struct {
	Resize      bool
	ScaleWidth  float32
	ScaleHeight float32
}

// ClearCreation selects the clears a stage performs when its pass begins.
type ClearCreation struct {
	Color        bool
	R, G, B, A   float64
	Depth        bool
	DepthValue   float32
	StencilValue uint32
}

// StageCreation declares a render stage. The builder methods return the
// receiver so a declaration can be chained from AddStage.
type StageCreation struct {
	Name         string
	Type         StageType
	Outputs      []string
	DepthStencil string
	Material     string
	MaterialPass int
	Resize       ResizeCreation
	Clear        ClearCreation
}

// AddRenderTexture adds a color output.
func (s *StageCreation) AddRenderTexture(name string) *StageCreation {
	s.Outputs = append(s.Outputs, name)
	return s
}

// SetDepthStencil sets the depth-stencil target.
func (s *StageCreation) SetDepthStencil(name string) *StageCreation {
	s.DepthStencil = name
	return s
}

// SetMaterial binds the stage to pass of material.
func (s *StageCreation) SetMaterial(name string, pass int) *StageCreation {
	s.Material, s.MaterialPass = name, pass
	return s
}

// SetResize makes the stage follow window resizes at the given scale.
func (s *StageCreation) SetResize(resize bool, scaleWidth, scaleHeight float32) *StageCreation {
	s.Resize = ResizeCreation{Resize: resize, ScaleWidth: scaleWidth, ScaleHeight: scaleHeight}
	return s
}

// SetClear clears the color outputs to the given value.
func (s *StageCreation) SetClear(r, g, b, a float64) *StageCreation {
	s.Clear.Color = true
	s.Clear.R, s.Clear.G, s.Clear.B, s.Clear.A = r, g, b, a
	return s
}

// SetClearDepth clears the depth-stencil target to the given values.
func (s *StageCreation) SetClearDepth(depth float32, stencil uint32) *StageCreation {
	s.Clear.Depth = true
	s.Clear.DepthValue, s.Clear.StencilValue = depth, stencil
	return s
}

// declaration locates a declared name.
type declaration struct {
	kind  ResourceKind
	index int
}

// declare records name for kind unless it is already taken. It reports
// whether the declaration was accepted.
func (g *Graph) declare(name string, kind ResourceKind, index int) bool {
	if prev, ok := g.declared[name]; ok {
		slogger().Warn("framegraph: duplicate declaration ignored",
			"name", name, "kind", kind, "declared_as", prev.kind)
		g.diagnostics = append(g.diagnostics, Diagnostic{
			Kind: DiagnosticDuplicate, Resource: name, Reference: name,
		})
		return false
	}
	g.declared[name] = declaration{kind: kind, index: index}
	return true
}

// AddTexture declares a texture.
func (g *Graph) AddTexture(c gpu.TextureCreation) {
	if g.declare(c.Name, KindTexture, len(g.textures)) {
		g.textures = append(g.textures, c)
	}
}

// AddBuffer declares a buffer.
func (g *Graph) AddBuffer(c gpu.BufferCreation) {
	if g.declare(c.Name, KindBuffer, len(g.buffers)) {
		g.buffers = append(g.buffers, c)
	}
}

// AddSampler declares a sampler.
func (g *Graph) AddSampler(c gpu.SamplerCreation) {
	if g.declare(c.Name, KindSampler, len(g.samplers)) {
		g.samplers = append(g.samplers, c)
	}
}

// AddShader declares a shader effect.
func (g *Graph) AddShader(c ShaderCreation) {
	if g.declare(c.Name, KindShader, len(g.shaders)) {
		g.shaders = append(g.shaders, c)
	}
}

// AddMaterial declares a material.
func (g *Graph) AddMaterial(c MaterialCreation) {
	if g.declare(c.Name, KindMaterial, len(g.materials)) {
		g.materials = append(g.materials, c)
	}
}

// AddStage declares a stage and returns it for further building. A
// duplicate name returns a detached copy that the graph ignores.
func (g *Graph) AddStage(c StageCreation) *StageCreation {
	s := &c
	if g.declare(c.Name, KindStage, len(g.stageDecls)) {
		g.stageDecls = append(g.stageDecls, s)
	}
	return s
}
