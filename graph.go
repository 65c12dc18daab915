// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/renderer"
)

// DefaultMaxStages is the stage capacity used when Config.MaxStages is zero.
const DefaultMaxStages = 64

// Config configures a Graph.
type Config struct {
	// Strict turns unresolved names, wrong-kind references and backward
	// edges into Init errors instead of diagnostics.
	Strict bool
	// MaxStages is the capacity of the stage pool.
	MaxStages uint32
}

// DefaultConfig returns a lenient configuration.
func DefaultConfig() Config {
	return Config{MaxStages: DefaultMaxStages}
}

// Graph holds declarations and, after Init, the resolved resources.
type Graph struct {
	renderer *renderer.Renderer
	cfg      Config

	// declarations, in declaration order
	textures   []gpu.TextureCreation
	buffers    []gpu.BufferCreation
	samplers   []gpu.SamplerCreation
	shaders    []ShaderCreation
	materials  []MaterialCreation
	stageDecls []*StageCreation
	declared   map[string]declaration

	nodes []ResourceNode
	index map[string]NodeID

	stages *pool.Pool[Stage]
	// order lists stages in declaration order.
	order []StageHandle
	// pending holds features attached by name before Init.
	pending map[string][]Feature

	diagnostics []Diagnostic
	initialized bool
}

// New returns an empty graph creating its resources through r.
func New(r *renderer.Renderer, cfg Config) *Graph {
	if cfg.MaxStages == 0 {
		cfg.MaxStages = DefaultMaxStages
	}
	return &Graph{
		renderer: r,
		cfg:      cfg,
		declared: make(map[string]declaration),
		index:    make(map[string]NodeID),
		stages:   pool.New[Stage](cfg.MaxStages),
	}
}

// Renderer returns the renderer the graph creates resources with.
func (g *Graph) Renderer() *renderer.Renderer { return g.renderer }

// Device returns the renderer's device.
func (g *Graph) Device() *gpu.Device { return g.renderer.Device() }

// Initialized reports whether Init has completed.
func (g *Graph) Initialized() bool { return g.initialized }

// Diagnostics returns the problems recorded while declaring and building.
func (g *Graph) Diagnostics() []Diagnostic { return g.diagnostics }

// Nodes returns every node in registration order. The slice is owned by
// the graph.
func (g *Graph) Nodes() []ResourceNode { return g.nodes }

// Node returns the node registered under name, or nil.
func (g *Graph) Node(name string) *ResourceNode {
	id, ok := g.index[name]
	if !ok {
		return nil
	}
	return &g.nodes[id]
}

// NodeID returns the id registered under name, or InvalidNode.
func (g *Graph) NodeID(name string) NodeID {
	if id, ok := g.index[name]; ok {
		return id
	}
	return InvalidNode
}

// GetTexture returns the texture handle for name, or an invalid handle.
func (g *Graph) GetTexture(name string) renderer.TextureHandle {
	if n := g.Node(name); n != nil {
		return n.Texture()
	}
	return renderer.InvalidTexture
}

// GetBuffer returns the buffer handle for name, or an invalid handle.
func (g *Graph) GetBuffer(name string) renderer.BufferHandle {
	if n := g.Node(name); n != nil {
		return n.Buffer()
	}
	return renderer.InvalidBuffer
}

// GetSampler returns the sampler handle for name, or an invalid handle.
func (g *Graph) GetSampler(name string) renderer.SamplerHandle {
	if n := g.Node(name); n != nil {
		return n.Sampler()
	}
	return renderer.InvalidSampler
}

// GetShader returns the shader effect handle for name, or an invalid handle.
func (g *Graph) GetShader(name string) renderer.ShaderHandle {
	if n := g.Node(name); n != nil {
		return n.Shader()
	}
	return renderer.InvalidShader
}

// GetMaterial returns the material handle for name, or an invalid handle.
func (g *Graph) GetMaterial(name string) renderer.MaterialHandle {
	if n := g.Node(name); n != nil {
		return n.Material()
	}
	return renderer.InvalidMaterial
}

// GetStage returns the stage handle for name, or an invalid handle.
func (g *Graph) GetStage(name string) StageHandle {
	if n := g.Node(name); n != nil {
		return n.Stage()
	}
	return InvalidStage
}

// Texture returns the live texture for name, or nil.
func (g *Graph) Texture(name string) *renderer.Texture {
	return g.renderer.TextureByHandle(g.GetTexture(name))
}

// Buffer returns the live buffer for name, or nil.
func (g *Graph) Buffer(name string) *renderer.Buffer {
	return g.renderer.BufferByHandle(g.GetBuffer(name))
}

// Material returns the live material for name, or nil.
func (g *Graph) Material(name string) *renderer.Material {
	return g.renderer.MaterialByHandle(g.GetMaterial(name))
}

// Stage returns the stage h, or nil.
func (g *Graph) Stage(h StageHandle) *Stage {
	if !h.IsValid() || !g.stages.InUse(uint32(h)) {
		return nil
	}
	return g.stages.Access(uint32(h))
}

// Stages returns the stages in declaration order.
func (g *Graph) Stages() []*Stage {
	out := make([]*Stage, 0, len(g.order))
	for _, h := range g.order {
		out = append(out, g.stages.Access(uint32(h)))
	}
	return out
}
