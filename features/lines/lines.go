// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package lines is an immediate-mode debug line renderer. Lines added
// during a frame are drawn by the next Render and then discarded.
//
// Vertices and the view-projection matrix live in dynamic buffers that are
// mapped once per frame. The package registers the "lines" feature with a
// "capacity" parameter giving the maximum number of lines per frame.
package lines

import (
	"embed"
	"encoding/binary"
	"fmt"
	"image/color"
	"io/fs"
	"math"
	"time"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/renderer"
	"github.com/gogpu/gputypes"
)

//go:embed shaders/lines.toml shaders/lines.wgsl
var shaders embed.FS

// DefaultCapacity is the line capacity used when none is given.
const DefaultCapacity = 4096

const (
	vertexSize = 16 // float32x3 position, unorm8x4 color
	localsSize = 64 // mat4x4<f32>
)

func init() {
	framegraph.RegisterFeature("lines", func(p framegraph.FeatureParams) (framegraph.Feature, error) {
		c := p.Int("capacity", DefaultCapacity)
		if c <= 0 {
			return nil, fmt.Errorf("lines: capacity %d", c)
		}
		return New(c), nil
	})
}

// Vec3 is a position.
type Vec3 [3]float32

type line struct {
	from, to Vec3
	color    color.RGBA
}

// Feature draws the lines added since the last frame.
type Feature struct {
	capacity int
	lines    []line

	viewProj [16]float32
	custom   bool

	r        *renderer.Renderer
	stage    *framegraph.Stage
	vertices *renderer.Buffer
	locals   *renderer.Buffer
	shader   *renderer.ShaderEffect
	material *renderer.Material

	drawn int
}

// New returns a feature drawing up to capacity lines per frame.
func New(capacity int) *Feature {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feature{capacity: capacity, lines: make([]line, 0, capacity)}
}

// Effect returns the line effect. Its single pass draws a line list with
// a dynamic "locals" uniform holding the view-projection matrix.
func Effect() (*effect.Effect, error) {
	data, err := shaders.ReadFile("shaders/lines.toml")
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(shaders, "shaders")
	if err != nil {
		return nil, err
	}
	return effect.Parse(data, sub, effect.Options{})
}

// AddLine queues a line for the next frame. It reports false when the
// frame's capacity is used up.
func (f *Feature) AddLine(from, to Vec3, c color.RGBA) bool {
	if len(f.lines) >= f.capacity {
		return false
	}
	f.lines = append(f.lines, line{from: from, to: to, color: c})
	return true
}

// Len returns the number of queued lines.
func (f *Feature) Len() int { return len(f.lines) }

// Drawn returns the number of lines the last Render drew.
func (f *Feature) Drawn() int { return f.drawn }

// SetViewProjection sets a column-major view-projection matrix. Without one
// positions are in pixels with the origin at the top left of the stage.
func (f *Feature) SetViewProjection(m [16]float32) {
	f.viewProj = m
	f.custom = true
}

// Init creates the buffers and a pipeline matching the stage's attachments.
func (f *Feature) Init(g *framegraph.Graph, s *framegraph.Stage) error {
	f.r, f.stage = g.Renderer(), s
	name := "lines_" + s.Name()

	e, err := Effect()
	if err != nil {
		return err
	}
	for i := range e.Passes {
		e.Passes[i].Stage = s.Name()
	}

	if f.vertices, err = f.r.CreateBuffer(gpu.BufferCreation{
		Name:   name + "_vertices",
		Size:   uint32(f.capacity * 2 * vertexSize), // #nosec G115 -- capacity is validated positive
		Usage:  gputypes.BufferUsageVertex,
		Memory: gpu.MemoryDynamic,
	}); err != nil {
		return f.fail(err)
	}
	if f.locals, err = f.r.CreateBuffer(gpu.BufferCreation{
		Name:   name + "_locals",
		Size:   localsSize,
		Usage:  gputypes.BufferUsageUniform,
		Memory: gpu.MemoryDynamic,
	}); err != nil {
		return f.fail(err)
	}
	if f.shader, err = f.r.CreateShaderEffect(renderer.ShaderEffectCreation{
		Name:    name,
		Effect:  e,
		Outputs: []gpu.RenderPassOutput{s.Output()},
	}); err != nil {
		return f.fail(err)
	}
	if f.material, err = f.r.CreateMaterial(renderer.MaterialCreation{
		Name:   name,
		Shader: f.shader,
		Passes: []renderer.MaterialPass{{
			Entries: []gpu.ResourceListEntry{gpu.BufferEntry(0, f.locals.GPU())},
		}},
	}); err != nil {
		return f.fail(err)
	}
	f.Resize(s.Size())
	return nil
}

func (f *Feature) fail(err error) error {
	f.Shutdown()
	return fmt.Errorf("lines: stage %q: %w", f.stage.Name(), err)
}

// Shutdown destroys the feature's resources.
func (f *Feature) Shutdown() {
	if f.r == nil {
		return
	}
	f.r.DestroyMaterial(f.material)
	f.r.DestroyShaderEffect(f.shader)
	f.r.DestroyBuffer(f.locals)
	f.r.DestroyBuffer(f.vertices)
	f.material, f.shader, f.locals, f.vertices = nil, nil, nil, nil
	f.lines = f.lines[:0]
}

// Reload does nothing; the feature owns its pipeline.
func (f *Feature) Reload() error { return nil }

// Update does nothing.
func (f *Feature) Update(time.Duration) {}

// Resize rebuilds the pixel-space projection unless a custom matrix is set.
func (f *Feature) Resize(width, height uint32) {
	if f.custom || width == 0 || height == 0 {
		return
	}
	f.viewProj = [16]float32{
		2 / float32(width), 0, 0, 0,
		0, -2 / float32(height), 0, 0,
		0, 0, 1, 0,
		-1, 1, 0, 1,
	}
}

// Render uploads and draws the queued lines, then clears the queue.
func (f *Feature) Render(cb *gpu.CommandBuffer) {
	f.drawn = 0
	if f.material == nil || len(f.lines) == 0 {
		return
	}
	defer func() { f.lines = f.lines[:0] }()

	verts, err := f.r.MapBuffer(f.vertices, 0, uint32(len(f.lines)*2*vertexSize)) // #nosec G115 -- bounded by capacity
	if err != nil {
		framegraph.Logger().Warn("lines: map vertices", "stage", f.stage.Name(), "error", err)
		return
	}
	for i, l := range f.lines {
		putVertex(verts[(2*i)*vertexSize:], l.from, l.color)
		putVertex(verts[(2*i+1)*vertexSize:], l.to, l.color)
	}
	locals, err := f.r.MapBuffer(f.locals, 0, localsSize)
	if err != nil {
		framegraph.Logger().Warn("lines: map locals", "stage", f.stage.Name(), "error", err)
		return
	}
	for i, v := range f.viewProj {
		binary.LittleEndian.PutUint32(locals[i*4:], math.Float32bits(v))
	}

	cb.BindPipeline(f.shader.Pipeline(0))
	cb.BindResourceList(0, []gpu.ResourceListHandle{f.material.ResourceList(0)}, nil)
	cb.BindVertexBuffer(f.vertices.GPU(), 0, 0)
	cb.Draw(uint32(len(f.lines)*2), 1, 0, 0) // #nosec G115 -- bounded by capacity
	f.drawn = len(f.lines)
}

func putVertex(b []byte, p Vec3, c color.RGBA) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(p[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(p[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(p[2]))
	b[12], b[13], b[14], b[15] = c.R, c.G, c.B, c.A
}
