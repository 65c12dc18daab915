// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/renderer"
)

// AttachFeature adds f to stage h and initializes it.
func (g *Graph) AttachFeature(h StageHandle, f Feature) error {
	s := g.Stage(h)
	if s == nil {
		return fmt.Errorf("%w: stage %d", ErrUnknownResource, h)
	}
	if err := f.Init(g, s); err != nil {
		return fmt.Errorf("framegraph: stage %q feature init: %w", s.name, err)
	}
	s.features = append(s.features, f)
	return nil
}

// AttachFeatureTo adds f to the stage declared as name. Before Init the
// feature is queued and initialized by Init; afterwards it behaves like
// AttachFeature.
func (g *Graph) AttachFeatureTo(name string, f Feature) error {
	if g.initialized {
		h := g.GetStage(name)
		if !h.IsValid() {
			return fmt.Errorf("%w: stage %q", ErrUnknownResource, name)
		}
		return g.AttachFeature(h, f)
	}
	if d, ok := g.declared[name]; !ok || d.kind != KindStage {
		return fmt.Errorf("%w: stage %q", ErrUnknownResource, name)
	}
	if g.pending == nil {
		g.pending = make(map[string][]Feature)
	}
	g.pending[name] = append(g.pending[name], f)
	return nil
}

// Update advances every feature by dt.
func (g *Graph) Update(dt time.Duration) {
	for _, h := range g.order {
		for _, f := range g.stages.Access(uint32(h)).features {
			f.Update(dt)
		}
	}
}

// Render records every stage in declaration order starting at sortKey and
// returns the sort key following the last recorded command.
func (g *Graph) Render(sortKey uint64, cb *gpu.CommandBuffer) uint64 {
	cb.SetSortKey(sortKey)
	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		cb.PushMarker(s.name)
		s.render(cb)
		cb.PopMarker()
	}
	return cb.SortKey()
}

// Resize resizes the swapchain and every stage that follows the window.
// Output textures of those stages become round(size * scale). Every stage
// writing a resized texture gets a new render pass and size, including
// stages that do not resize themselves, and materials sampling the
// textures are rebuilt.
func (g *Graph) Resize(width, height uint32) error {
	if !g.initialized {
		return ErrNotInitialized
	}
	d := g.Device()
	if err := d.Resize(width, height); err != nil {
		return fmt.Errorf("framegraph: resize: %w", err)
	}

	var errs []error
	resized := make(map[string]bool)
	var dirty []NodeID
	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		if s.typ == StageSwapchain || !s.resize.Resize {
			continue
		}
		w := scaledSize(width, s.resize.ScaleWidth)
		ht := scaledSize(height, s.resize.ScaleHeight)
		for _, t := range s.targets() {
			if resized[t.Name()] {
				continue
			}
			resized[t.Name()] = true
			if err := g.renderer.ResizeTexture(t, w, ht); err != nil {
				errs = append(errs, err)
				continue
			}
			dirty = append(dirty, g.NodeID(t.Name()))
		}
	}

	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		if s.typ == StageSwapchain {
			if s.pass.IsValid() {
				if desc, err := d.QueryRenderPass(s.pass); err == nil {
					s.width, s.height = desc.Width, desc.Height
				}
			}
		} else {
			if !s.resize.Resize && !slices.ContainsFunc(s.targets(), func(t *renderer.Texture) bool {
				return resized[t.Name()]
			}) {
				continue
			}
			dirty = append(dirty, g.NodeID(s.name))
			if s.pass.IsValid() {
				d.DestroyRenderPass(s.pass)
				s.pass = gpu.InvalidRenderPass
			}
			if err := g.createPass(s); err != nil {
				errs = append(errs, fmt.Errorf("framegraph: stage %q: %w", s.name, err))
			}
		}
		for _, f := range s.features {
			f.Resize(s.width, s.height)
		}
	}

	var materials []NodeID
	for _, id := range dirty {
		if !id.IsValid() {
			continue
		}
		for _, out := range g.nodes[id].Outputs {
			if g.nodes[out].Kind == KindMaterial && !slices.Contains(materials, out) {
				materials = append(materials, out)
			}
		}
	}
	if err := g.rebuildMaterials(materials); err != nil {
		errs = append(errs, err)
	}
	slogger().Info("framegraph: resized", "width", width, "height", height, "materials", len(materials))
	return errors.Join(errs...)
}

// ReloadShader replaces the effect of shader name, rebuilds every material
// that uses it and rebinds the stages using those materials. On failure
// the previous effect stays active.
func (g *Graph) ReloadShader(name string, e *effect.Effect) error {
	n := g.Node(name)
	if n == nil || n.Kind != KindShader {
		return fmt.Errorf("%w: shader %q", ErrUnknownResource, name)
	}
	decl := &g.shaders[n.Creation]
	prev := decl.Effect
	decl.Effect = e
	shader, err := g.createShader(decl)
	if err != nil {
		decl.Effect = prev
		return fmt.Errorf("framegraph: reload shader %q: %w", name, err)
	}
	old := g.renderer.ShaderEffectByHandle(n.Shader())
	n.ActiveHandle = uint32(shader.Handle())

	var materials []NodeID
	for _, out := range n.Outputs {
		if g.nodes[out].Kind == KindMaterial {
			materials = append(materials, out)
		}
	}
	err = g.rebuildMaterials(materials)
	g.renderer.DestroyShaderEffect(old)
	slogger().Info("framegraph: shader reloaded", "shader", name, "materials", len(materials))
	return err
}

// rebuildMaterials recreates the given materials, rebinds the stages and
// reloads every feature.
func (g *Graph) rebuildMaterials(ids []NodeID) error {
	if len(ids) == 0 {
		return nil
	}
	var errs []error
	for _, id := range ids {
		n := &g.nodes[id]
		m, err := g.createMaterial(&g.materials[n.Creation])
		if err != nil {
			errs = append(errs, fmt.Errorf("framegraph: rebuild material %q: %w", n.Name, err))
			continue
		}
		old := g.renderer.MaterialByHandle(n.Material())
		n.ActiveHandle = uint32(m.Handle())
		g.renderer.DestroyMaterial(old)
	}
	if err := g.bindStages(); err != nil {
		errs = append(errs, err)
	}
	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		for _, f := range s.features {
			if err := f.Reload(); err != nil {
				errs = append(errs, fmt.Errorf("framegraph: stage %q feature reload: %w", s.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Shutdown shuts down every feature and destroys the graph's resources,
// higher tiers first. The graph can be declared into and built again
// afterwards.
func (g *Graph) Shutdown() {
	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		for _, f := range s.features {
			f.Shutdown()
		}
		s.features = nil
	}

	r := g.renderer
	for _, kind := range []ResourceKind{KindMaterial, KindShader, KindStage, KindSampler, KindBuffer, KindTexture} {
		for i := range g.nodes {
			n := &g.nodes[i]
			if n.Kind != kind || !n.Resolved() {
				continue
			}
			switch kind {
			case KindMaterial:
				r.DestroyMaterial(r.MaterialByHandle(n.Material()))
			case KindShader:
				r.DestroyShaderEffect(r.ShaderEffectByHandle(n.Shader()))
			case KindStage:
				if s := g.Stage(n.Stage()); s != nil {
					if s.pass.IsValid() {
						g.Device().DestroyRenderPass(s.pass)
					}
					*s = Stage{}
					g.stages.Release(n.ActiveHandle)
				}
			case KindSampler:
				r.DestroySampler(r.SamplerByHandle(n.Sampler()))
			case KindBuffer:
				r.DestroyBuffer(r.BufferByHandle(n.Buffer()))
			case KindTexture:
				r.DestroyTexture(r.TextureByHandle(n.Texture()))
			}
			n.ActiveHandle = pool.InvalidIndex
		}
	}
	g.nodes = nil
	g.index = make(map[string]NodeID)
	g.order = nil
	g.diagnostics = nil
	g.initialized = false
	slogger().Info("framegraph: graph shut down")
}
