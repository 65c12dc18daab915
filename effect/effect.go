// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package effect holds compiled shader effects: per-pass pipeline state,
// named resource-layout bindings, the stage each pass renders into and,
// for compute passes, the dispatch size.
//
// Effects are loaded from a TOML manifest next to WGSL sources:
//
//	name = "blur"
//
//	[[pass]]
//	name = "horizontal"
//	stage = "blur_h"
//	source = "blur.wgsl"
//	compute = true
//	dispatch = [8, 8, 1]
//
//	  [[pass.binding]]
//	  index = 0
//	  name = "source"
//	  type = "texture"
//
// The graph matches binding names against declared resources when it
// builds materials, so binding names double as resource names.
package effect

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/gputypes"
)

// Sentinel errors.
var (
	ErrNoPasses         = errors.New("effect: effect has no passes")
	ErrNoSource         = errors.New("effect: pass has no shader source")
	ErrDuplicateBinding = errors.New("effect: duplicate binding index")
	ErrDispatchSize     = errors.New("effect: compute pass needs a non-zero dispatch size")
	ErrUnknownValue     = errors.New("effect: unknown value")
)

// Binding is one named slot of a pass's resource layout.
type Binding struct {
	Index   uint32
	Name    string
	Type    gpu.BindingType
	Stages  gpu.ShaderStageFlags
	Dynamic bool
	Format  gputypes.TextureFormat
}

// Pass is one pipeline of an effect.
type Pass struct {
	Name string
	// Stage names the render stage the pass renders into.
	Stage string

	// Source is WGSL code holding every entry point of the pass.
	Source string
	// SPIRV, when set, replaces Source at pipeline creation.
	SPIRV []uint32

	VertexEntry   string
	FragmentEntry string
	ComputeEntry  string
	Compute       bool

	Bindings      []Binding
	VertexStreams []gpu.VertexStream
	Blend         gpu.BlendMode
	DepthStencil  gpu.DepthStencilCreation
	Rasterization gpu.RasterizationCreation

	// DispatchSize is the workgroup extent a compute pass covers.
	DispatchSize [3]uint32
}

// Effect is a named list of passes.
type Effect struct {
	Name   string
	Passes []Pass
}

// PassIndex returns the index of the named pass, or -1.
func (e *Effect) PassIndex(name string) int {
	for i := range e.Passes {
		if e.Passes[i].Name == name {
			return i
		}
	}
	return -1
}

// Validate checks every pass.
func (e *Effect) Validate() error {
	if len(e.Passes) == 0 {
		return fmt.Errorf("%w: %q", ErrNoPasses, e.Name)
	}
	for i := range e.Passes {
		if err := e.Passes[i].validate(); err != nil {
			return fmt.Errorf("effect %q: %w", e.Name, err)
		}
	}
	return nil
}

func (p *Pass) validate() error {
	if p.Source == "" && len(p.SPIRV) == 0 {
		return fmt.Errorf("%w: pass %q", ErrNoSource, p.Name)
	}
	seen := make(map[uint32]string, len(p.Bindings))
	for _, b := range p.Bindings {
		if prev, ok := seen[b.Index]; ok {
			return fmt.Errorf("%w: pass %q index %d used by %q and %q",
				ErrDuplicateBinding, p.Name, b.Index, prev, b.Name)
		}
		seen[b.Index] = b.Name
	}
	if p.Compute && (p.DispatchSize[0] == 0 || p.DispatchSize[1] == 0 || p.DispatchSize[2] == 0) {
		return fmt.Errorf("%w: pass %q", ErrDispatchSize, p.Name)
	}
	return nil
}

// Layout returns the resource layout of the pass.
func (p *Pass) Layout(name string) gpu.ResourceLayoutCreation {
	bindings := make([]gpu.LayoutBinding, 0, len(p.Bindings))
	for _, b := range p.Bindings {
		bindings = append(bindings, gpu.LayoutBinding{
			Index:   b.Index,
			Type:    b.Type,
			Name:    b.Name,
			Stages:  b.Stages,
			Dynamic: b.Dynamic,
			Format:  b.Format,
		})
	}
	return gpu.ResourceLayoutCreation{Name: name, Bindings: bindings}
}

// PipelineCreation returns the pipeline for the pass rendering into output.
func (p *Pass) PipelineCreation(name string, output gpu.RenderPassOutput) gpu.PipelineCreation {
	stage := func(kind gpu.ShaderKind, entry string) gpu.ShaderStage {
		s := gpu.ShaderStage{Kind: kind, EntryPoint: entry}
		if len(p.SPIRV) > 0 {
			s.SPIRV = p.SPIRV
		} else {
			s.WGSL = p.Source
		}
		return s
	}
	c := gpu.PipelineCreation{
		Name:    name,
		Layouts: []gpu.ResourceLayoutCreation{p.Layout(name + "_layout")},
	}
	if p.Compute {
		c.Stages = []gpu.ShaderStage{stage(gpu.ShaderKindCompute, p.ComputeEntry)}
		return c
	}
	c.Stages = []gpu.ShaderStage{
		stage(gpu.ShaderKindVertex, p.VertexEntry),
		stage(gpu.ShaderKindFragment, p.FragmentEntry),
	}
	c.VertexStreams = p.VertexStreams
	c.Output = output
	c.Blend = p.Blend
	c.DepthStencil = p.DepthStencil
	c.Rasterization = p.Rasterization
	return c
}

// DispatchGroups returns the workgroup counts covering width x height.
func (p *Pass) DispatchGroups(width, height uint32) (x, y, z uint32) {
	ceil := func(n, d uint32) uint32 {
		if d == 0 {
			return 0
		}
		return (n + d - 1) / d
	}
	return ceil(width, p.DispatchSize[0]), ceil(height, p.DispatchSize[1]), ceil(1, p.DispatchSize[2])
}
