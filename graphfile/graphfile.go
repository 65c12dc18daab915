// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package graphfile reads render graph declarations from TOML.
//
// A graph file lists resources by kind. Names refer to each other the same
// way the Add* calls do, and paths are relative to the file:
//
//	[[texture]]
//	name = "scene"
//	width = 1280
//	height = 720
//	format = "rgba8unorm"
//
//	[[sampler]]
//	name = "linear"
//
//	[[shader]]
//	name = "blit"
//	effect = "shaders/blit.toml"
//
//	[[material]]
//	name = "blit"
//	shader = "blit"
//	  [[material.pass]]
//	  bind = { source = "scene", source_sampler = "linear" }
//
//	[[stage]]
//	name = "scene"
//	outputs = ["scene"]
//	clear = [0.1, 0.1, 0.1, 1.0]
//	resize = true
//
//	[[stage]]
//	name = "present"
//	type = "swapchain"
//	material = "blit"
//	  [[stage.feature]]
//	  type = "fullscreen"
//
// Feature types are looked up with framegraph.NewFeature, so the packages
// providing them must be imported.
package graphfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/texload"
	"github.com/gogpu/gputypes"
)

// ErrInvalid reports a malformed declaration.
var ErrInvalid = errors.New("graphfile: invalid declaration")

// File is a decoded graph file.
type File struct {
	Textures  []Texture  `toml:"texture"`
	Buffers   []Buffer   `toml:"buffer"`
	Samplers  []Sampler  `toml:"sampler"`
	Shaders   []Shader   `toml:"shader"`
	Materials []Material `toml:"material"`
	Stages    []Stage    `toml:"stage"`

	// dir resolves relative paths.
	dir string
}

// Texture declares a texture, optionally loaded from an image file.
type Texture struct {
	Name   string   `toml:"name"`
	Width  uint32   `toml:"width"`
	Height uint32   `toml:"height"`
	Mips   uint32   `toml:"mips"`
	Format string   `toml:"format"`
	Flags  []string `toml:"flags"`
	// File loads the texture from an image; size and format come from it.
	File         string `toml:"file"`
	GenerateMips bool   `toml:"generate_mips"`
	FlipY        bool   `toml:"flip_y"`
}

// Buffer declares a buffer.
type Buffer struct {
	Name   string   `toml:"name"`
	Size   uint32   `toml:"size"`
	Usage  []string `toml:"usage"`
	Memory string   `toml:"memory"`
}

// Sampler declares a sampler.
type Sampler struct {
	Name    string `toml:"name"`
	Filter  string `toml:"filter"`
	Address string `toml:"address"`
}

// Shader declares a shader from an effect manifest.
type Shader struct {
	Name   string `toml:"name"`
	Effect string `toml:"effect"`
}

// Material declares a material.
type Material struct {
	Name   string         `toml:"name"`
	Shader string         `toml:"shader"`
	Passes []MaterialPass `toml:"pass"`
}

// MaterialPass binds resources to one effect pass. Resources bind to the
// layout binding of the same name; Bind maps binding names to resources.
type MaterialPass struct {
	Resources []string          `toml:"resources"`
	Bind      map[string]string `toml:"bind"`
}

// Stage declares a render stage.
type Stage struct {
	Name     string    `toml:"name"`
	Type     string    `toml:"type"`
	Outputs  []string  `toml:"outputs"`
	Depth    string    `toml:"depth"`
	Material string    `toml:"material"`
	Pass     int       `toml:"pass"`
	Resize   bool      `toml:"resize"`
	Scale    []float32 `toml:"scale"`
	Clear    []float64 `toml:"clear"`
	// ClearDepth clears depth to the value when set.
	ClearDepth   *float32  `toml:"clear_depth"`
	ClearStencil uint32    `toml:"clear_stencil"`
	Features     []Feature `toml:"feature"`
}

// Feature attaches a registered feature to a stage.
type Feature struct {
	Type   string         `toml:"type"`
	Params map[string]any `toml:"params"`
}

// Load reads a graph file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

// Parse decodes a graph file. Relative paths resolve against the working
// directory.
func Parse(data []byte) (*File, error) {
	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("graphfile: decode: %w", err)
	}
	return &f, nil
}

// Path resolves p against the file's directory.
func (f *File) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || f.dir == "" {
		return p
	}
	return filepath.Join(f.dir, p)
}

// Manifests maps each shader name to its resolved effect manifest path.
func (f *File) Manifests() map[string]string {
	out := make(map[string]string, len(f.Shaders))
	for _, s := range f.Shaders {
		out[s.Name] = f.Path(s.Effect)
	}
	return out
}

// Options control Apply.
type Options struct {
	Effect effect.Options
	// Decoders bounds concurrent image decoding. Zero means no limit.
	Decoders int
}

// Apply declares everything in the file into g and queues the stage
// features. It must run before g.Init. Image files are decoded in
// parallel before anything is declared.
func (f *File) Apply(ctx context.Context, g *framegraph.Graph, opts Options) error {
	textures, err := f.textures(ctx, opts.Decoders)
	if err != nil {
		return err
	}
	for _, t := range textures {
		g.AddTexture(t)
	}
	for i := range f.Buffers {
		b, err := f.Buffers[i].creation()
		if err != nil {
			return err
		}
		g.AddBuffer(b)
	}
	for i := range f.Samplers {
		s, err := f.Samplers[i].creation()
		if err != nil {
			return err
		}
		g.AddSampler(s)
	}
	for _, s := range f.Shaders {
		if s.Effect == "" {
			return fmt.Errorf("%w: shader %q has no effect", ErrInvalid, s.Name)
		}
		e, err := effect.Load(f.Path(s.Effect), opts.Effect)
		if err != nil {
			return fmt.Errorf("graphfile: shader %q: %w", s.Name, err)
		}
		g.AddShader(framegraph.ShaderCreation{Name: s.Name, Effect: e})
	}
	for _, m := range f.Materials {
		g.AddMaterial(m.creation())
	}
	for i := range f.Stages {
		if err := f.Stages[i].declare(g); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) textures(ctx context.Context, decoders int) ([]gpu.TextureCreation, error) {
	var reqs []texload.Request
	for _, t := range f.Textures {
		if t.File != "" {
			reqs = append(reqs, texload.Request{
				Name:    t.Name,
				Path:    f.Path(t.File),
				Options: texload.Options{GenerateMips: t.GenerateMips, FlipY: t.FlipY},
			})
		}
	}
	images, err := texload.LoadAll(ctx, reqs, decoders)
	if err != nil {
		return nil, fmt.Errorf("graphfile: %w", err)
	}

	out := make([]gpu.TextureCreation, 0, len(f.Textures))
	for _, t := range f.Textures {
		flags, err := textureFlags(t.Flags)
		if err != nil {
			return nil, fmt.Errorf("graphfile: texture %q: %w", t.Name, err)
		}
		var c gpu.TextureCreation
		if t.File != "" {
			c = images[0].TextureCreation(t.Name)
			images = images[1:]
		} else {
			c = gpu.TextureCreation{Name: t.Name, Width: t.Width, Height: t.Height, MipLevels: t.Mips}
			if c.Format, err = effect.ParseTextureFormat(t.Format); err != nil {
				return nil, fmt.Errorf("graphfile: texture %q: %w", t.Name, err)
			}
		}
		c.Flags |= flags
		out = append(out, c)
	}
	return out, nil
}

func textureFlags(names []string) (gpu.TextureFlags, error) {
	var flags gpu.TextureFlags
	for _, n := range names {
		switch n {
		case "render_target":
			flags |= gpu.TextureRenderTarget
		case "compute":
			flags |= gpu.TextureCompute
		default:
			return 0, fmt.Errorf("%w: texture flag %q", ErrInvalid, n)
		}
	}
	return flags, nil
}

var bufferUsages = map[string]gputypes.BufferUsage{
	"uniform":  gputypes.BufferUsageUniform,
	"storage":  gputypes.BufferUsageStorage,
	"vertex":   gputypes.BufferUsageVertex,
	"index":    gputypes.BufferUsageIndex,
	"indirect": gputypes.BufferUsageIndirect,
	"copy_src": gputypes.BufferUsageCopySrc,
	"copy_dst": gputypes.BufferUsageCopyDst,
}

func (b *Buffer) creation() (gpu.BufferCreation, error) {
	c := gpu.BufferCreation{Name: b.Name, Size: b.Size}
	for _, u := range b.Usage {
		v, ok := bufferUsages[u]
		if !ok {
			return c, fmt.Errorf("%w: buffer %q usage %q", ErrInvalid, b.Name, u)
		}
		c.Usage |= v
	}
	switch strings.ToLower(b.Memory) {
	case "", "immutable":
		c.Memory = gpu.MemoryImmutable
	case "dynamic":
		c.Memory = gpu.MemoryDynamic
	case "stream":
		c.Memory = gpu.MemoryStream
	default:
		return c, fmt.Errorf("%w: buffer %q memory %q", ErrInvalid, b.Name, b.Memory)
	}
	return c, nil
}

func (s *Sampler) creation() (gpu.SamplerCreation, error) {
	c := gpu.DefaultSamplerCreation(s.Name)
	switch s.Filter {
	case "", "linear":
	case "nearest":
		c.MinFilter = gputypes.FilterModeNearest
		c.MagFilter = gputypes.FilterModeNearest
		c.MipFilter = gputypes.FilterModeNearest
	default:
		return c, fmt.Errorf("%w: sampler %q filter %q", ErrInvalid, s.Name, s.Filter)
	}
	var mode gputypes.AddressMode
	switch s.Address {
	case "", "clamp":
		return c, nil
	case "repeat":
		mode = gputypes.AddressModeRepeat
	case "mirror":
		mode = gputypes.AddressModeMirrorRepeat
	default:
		return c, fmt.Errorf("%w: sampler %q address %q", ErrInvalid, s.Name, s.Address)
	}
	c.AddressU, c.AddressV, c.AddressW = mode, mode, mode
	return c, nil
}

func (m *Material) creation() framegraph.MaterialCreation {
	c := framegraph.MaterialCreation{Name: m.Name, Shader: m.Shader}
	for _, p := range m.Passes {
		pass := framegraph.MaterialPass(p.Resources...)
		bindings := make([]string, 0, len(p.Bind))
		for b := range p.Bind {
			bindings = append(bindings, b)
		}
		slices.Sort(bindings)
		for _, b := range bindings {
			pass = pass.Bind(b, p.Bind[b])
		}
		c.Passes = append(c.Passes, pass)
	}
	return c
}

func (s *Stage) declare(g *framegraph.Graph) error {
	c := framegraph.StageCreation{Name: s.Name}
	switch s.Type {
	case "", "geometry":
		c.Type = framegraph.StageGeometry
	case "compute":
		c.Type = framegraph.StageCompute
	case "swapchain":
		c.Type = framegraph.StageSwapchain
	default:
		return fmt.Errorf("%w: stage %q type %q", ErrInvalid, s.Name, s.Type)
	}
	sc := g.AddStage(c)
	for _, o := range s.Outputs {
		sc.AddRenderTexture(o)
	}
	if s.Depth != "" {
		sc.SetDepthStencil(s.Depth)
	}
	if s.Material != "" {
		sc.SetMaterial(s.Material, s.Pass)
	}
	if s.Resize {
		sw, sh := float32(1), float32(1)
		switch len(s.Scale) {
		case 0:
		case 1:
			sw, sh = s.Scale[0], s.Scale[0]
		case 2:
			sw, sh = s.Scale[0], s.Scale[1]
		default:
			return fmt.Errorf("%w: stage %q scale needs 1 or 2 values", ErrInvalid, s.Name)
		}
		sc.SetResize(true, sw, sh)
	}
	switch len(s.Clear) {
	case 0:
	case 4:
		sc.SetClear(s.Clear[0], s.Clear[1], s.Clear[2], s.Clear[3])
	default:
		return fmt.Errorf("%w: stage %q clear needs 4 values", ErrInvalid, s.Name)
	}
	if s.ClearDepth != nil {
		sc.SetClearDepth(*s.ClearDepth, s.ClearStencil)
	}

	for _, fd := range s.Features {
		f, err := framegraph.NewFeature(fd.Type, framegraph.FeatureParams(fd.Params))
		if err != nil {
			return fmt.Errorf("graphfile: stage %q: %w", s.Name, err)
		}
		if err := g.AttachFeatureTo(s.Name, f); err != nil {
			return fmt.Errorf("graphfile: stage %q: %w", s.Name, err)
		}
	}
	return nil
}
