// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package fullscreen draws a material over a whole stage with a single
// triangle and no vertex buffer.
//
// The package registers the "fullscreen" feature. Its parameters are
// "material" (defaults to the stage's bound material) and "pass".
package fullscreen

import (
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/renderer"
)

//go:embed shaders/blit.toml shaders/blit.wgsl
var shaders embed.FS

func init() {
	framegraph.RegisterFeature("fullscreen", func(p framegraph.FeatureParams) (framegraph.Feature, error) {
		return New(p.String("material", ""), p.Int("pass", 0)), nil
	})
}

// BlitEffect returns the built-in blit effect targeting stage. Its pass
// samples the "source" texture through "source_sampler".
func BlitEffect(stage string) (*effect.Effect, error) {
	data, err := shaders.ReadFile("shaders/blit.toml")
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(shaders, "shaders")
	if err != nil {
		return nil, err
	}
	e, err := effect.Parse(data, sub, effect.Options{})
	if err != nil {
		return nil, err
	}
	for i := range e.Passes {
		e.Passes[i].Stage = stage
	}
	return e, nil
}

// Feature draws three vertices with a material pass.
type Feature struct {
	materialName string
	pass         int

	graph    *framegraph.Graph
	stage    *framegraph.Stage
	material *renderer.Material
}

// New returns a feature drawing pass of the named material. An empty name
// uses the material bound to the stage.
func New(material string, pass int) *Feature {
	return &Feature{materialName: material, pass: pass}
}

// Init resolves the material.
func (f *Feature) Init(g *framegraph.Graph, s *framegraph.Stage) error {
	f.graph, f.stage = g, s
	return f.resolve()
}

func (f *Feature) resolve() error {
	f.material = nil
	if f.materialName == "" {
		f.material = f.stage.Material()
		f.pass = f.stage.MaterialPass()
	} else {
		f.material = f.graph.Material(f.materialName)
	}
	if f.material == nil {
		return fmt.Errorf("fullscreen: stage %q: material %q is not available", f.stage.Name(), f.materialName)
	}
	if f.pass < 0 || f.pass >= f.material.Shader().Passes() {
		return fmt.Errorf("fullscreen: material %q has no pass %d", f.material.Name(), f.pass)
	}
	return nil
}

// Shutdown drops the material reference.
func (f *Feature) Shutdown() { f.material = nil }

// Reload picks up a rebuilt material.
func (f *Feature) Reload() error { return f.resolve() }

// Update does nothing.
func (f *Feature) Update(time.Duration) {}

// Resize does nothing; the triangle always covers the viewport.
func (f *Feature) Resize(uint32, uint32) {}

// Render records the draw.
func (f *Feature) Render(cb *gpu.CommandBuffer) {
	if f.material == nil {
		return
	}
	cb.BindPipeline(f.material.Shader().Pipeline(f.pass))
	if l := f.material.ResourceList(f.pass); l.IsValid() {
		cb.BindResourceList(0, []gpu.ResourceListHandle{l}, nil)
	}
	cb.Draw(3, 1, 0, 0)
}

// Material returns the resolved material, or nil.
func (f *Feature) Material() *renderer.Material { return f.material }
