// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package effect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// manifest is the TOML form of an Effect.
type manifest struct {
	Name   string         `toml:"name"`
	Passes []passManifest `toml:"pass"`
}

type passManifest struct {
	Name          string            `toml:"name"`
	Stage         string            `toml:"stage"`
	Source        string            `toml:"source"`
	Code          string            `toml:"code"`
	VertexEntry   string            `toml:"vertex_entry"`
	FragmentEntry string            `toml:"fragment_entry"`
	ComputeEntry  string            `toml:"compute_entry"`
	Compute       bool              `toml:"compute"`
	Dispatch      []uint32          `toml:"dispatch"`
	Blend         string            `toml:"blend"`
	DepthTest     bool              `toml:"depth_test"`
	DepthWrite    bool              `toml:"depth_write"`
	DepthCompare  string            `toml:"depth_compare"`
	Topology      string            `toml:"topology"`
	Cull          string            `toml:"cull"`
	Bindings      []bindingManifest `toml:"binding"`
	VertexStreams []streamManifest  `toml:"vertex_stream"`
}

type bindingManifest struct {
	Index   uint32   `toml:"index"`
	Name    string   `toml:"name"`
	Type    string   `toml:"type"`
	Stages  []string `toml:"stages"`
	Dynamic bool     `toml:"dynamic"`
	Format  string   `toml:"format"`
}

type streamManifest struct {
	Stride     uint64              `toml:"stride"`
	Instance   bool                `toml:"instance"`
	Attributes []attributeManifest `toml:"attribute"`
}

type attributeManifest struct {
	Location uint32 `toml:"location"`
	Offset   uint64 `toml:"offset"`
	Format   string `toml:"format"`
}

// Options control loading.
type Options struct {
	// SPIRV compiles every pass to SPIR-V after loading.
	SPIRV bool
}

// Load reads an effect manifest. Shader sources are resolved relative to
// the manifest's directory.
func Load(path string, opts Options) (*Effect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("effect: %w", err)
	}
	e, err := Parse(data, os.DirFS(filepath.Dir(path)), opts)
	if err != nil {
		return nil, fmt.Errorf("effect: load %s: %w", path, err)
	}
	slogger().Debug("effect: loaded", "effect", e.Name, "path", path, "passes", len(e.Passes))
	return e, nil
}

// Parse decodes a manifest. Pass sources named by "source" are read from
// fsys; fsys may be nil when every pass uses inline "code".
func Parse(data []byte, fsys fs.FS, opts Options) (*Effect, error) {
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("effect: decode manifest: %w", err)
	}
	e := &Effect{Name: m.Name, Passes: make([]Pass, 0, len(m.Passes))}
	for i := range m.Passes {
		p, err := m.Passes[i].pass(fsys)
		if err != nil {
			return nil, fmt.Errorf("effect %q pass %d: %w", m.Name, i, err)
		}
		e.Passes = append(e.Passes, p)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if opts.SPIRV {
		if err := e.CompileSPIRV(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (pm *passManifest) pass(fsys fs.FS) (Pass, error) {
	p := Pass{
		Name:          pm.Name,
		Stage:         pm.Stage,
		Source:        pm.Code,
		VertexEntry:   pm.VertexEntry,
		FragmentEntry: pm.FragmentEntry,
		ComputeEntry:  pm.ComputeEntry,
		Compute:       pm.Compute,
		DepthStencil: gpu.DepthStencilCreation{
			DepthEnable: pm.DepthTest,
			DepthWrite:  pm.DepthWrite,
		},
	}
	if pm.Source != "" {
		if fsys == nil {
			return p, fmt.Errorf("source %q without a file system", pm.Source)
		}
		src, err := fs.ReadFile(fsys, pm.Source)
		if err != nil {
			return p, err
		}
		p.Source = string(src)
	}
	for i, v := range pm.Dispatch {
		if i < len(p.DispatchSize) {
			p.DispatchSize[i] = v
		}
	}
	if p.Compute && len(pm.Dispatch) < 3 {
		for i := max(len(pm.Dispatch), 1); i < 3; i++ {
			p.DispatchSize[i] = 1
		}
	}

	var err error
	if p.Blend, err = parseBlend(pm.Blend); err != nil {
		return p, err
	}
	if p.DepthStencil.DepthCompare, err = parseCompare(pm.DepthCompare); err != nil {
		return p, err
	}
	if p.Rasterization.Topology, err = parseTopology(pm.Topology); err != nil {
		return p, err
	}
	if p.Rasterization.CullMode, err = parseCull(pm.Cull); err != nil {
		return p, err
	}
	for _, bm := range pm.Bindings {
		b, err := bm.binding()
		if err != nil {
			return p, err
		}
		p.Bindings = append(p.Bindings, b)
	}
	for _, sm := range pm.VertexStreams {
		s := gpu.VertexStream{Stride: sm.Stride, Instance: sm.Instance}
		for _, am := range sm.Attributes {
			f, err := parseVertexFormat(am.Format)
			if err != nil {
				return p, err
			}
			s.Attributes = append(s.Attributes, gpu.VertexAttribute{
				Location: am.Location,
				Offset:   am.Offset,
				Format:   f,
			})
		}
		p.VertexStreams = append(p.VertexStreams, s)
	}
	return p, nil
}

func (bm *bindingManifest) binding() (Binding, error) {
	t, err := gpu.ParseBindingType(bm.Type)
	if err != nil {
		return Binding{}, fmt.Errorf("binding %q: %w", bm.Name, err)
	}
	b := Binding{Index: bm.Index, Name: bm.Name, Type: t, Dynamic: bm.Dynamic}
	for _, s := range bm.Stages {
		switch strings.ToLower(s) {
		case "vertex":
			b.Stages |= gpu.ShaderVertex
		case "fragment":
			b.Stages |= gpu.ShaderFragment
		case "compute":
			b.Stages |= gpu.ShaderCompute
		default:
			return b, fmt.Errorf("%w: shader stage %q", ErrUnknownValue, s)
		}
	}
	if bm.Format != "" {
		if b.Format, err = ParseTextureFormat(bm.Format); err != nil {
			return b, err
		}
	}
	return b, nil
}

func parseBlend(s string) (gpu.BlendMode, error) {
	switch s {
	case "", "opaque":
		return gpu.BlendOpaque, nil
	case "premultiplied":
		return gpu.BlendPremultiplied, nil
	}
	return 0, fmt.Errorf("%w: blend %q", ErrUnknownValue, s)
}

func parseCompare(s string) (gputypes.CompareFunction, error) {
	switch s {
	case "":
		return 0, nil
	case "never":
		return gputypes.CompareFunctionNever, nil
	case "less":
		return gputypes.CompareFunctionLess, nil
	case "less-equal":
		return gputypes.CompareFunctionLessEqual, nil
	case "equal":
		return gputypes.CompareFunctionEqual, nil
	case "greater":
		return gputypes.CompareFunctionGreater, nil
	case "greater-equal":
		return gputypes.CompareFunctionGreaterEqual, nil
	case "not-equal":
		return gputypes.CompareFunctionNotEqual, nil
	case "always":
		return gputypes.CompareFunctionAlways, nil
	}
	return 0, fmt.Errorf("%w: depth compare %q", ErrUnknownValue, s)
}

func parseTopology(s string) (gputypes.PrimitiveTopology, error) {
	switch s {
	case "", "triangle-list":
		return gputypes.PrimitiveTopologyTriangleList, nil
	case "triangle-strip":
		return gputypes.PrimitiveTopologyTriangleStrip, nil
	case "line-list":
		return gputypes.PrimitiveTopologyLineList, nil
	case "line-strip":
		return gputypes.PrimitiveTopologyLineStrip, nil
	case "point-list":
		return gputypes.PrimitiveTopologyPointList, nil
	}
	return 0, fmt.Errorf("%w: topology %q", ErrUnknownValue, s)
}

func parseCull(s string) (gputypes.CullMode, error) {
	switch s {
	case "", "none":
		return gputypes.CullModeNone, nil
	case "front":
		return gputypes.CullModeFront, nil
	case "back":
		return gputypes.CullModeBack, nil
	}
	return 0, fmt.Errorf("%w: cull mode %q", ErrUnknownValue, s)
}

var vertexFormats = map[string]gputypes.VertexFormat{
	"float32":   gputypes.VertexFormatFloat32,
	"float32x2": gputypes.VertexFormatFloat32x2,
	"float32x3": gputypes.VertexFormatFloat32x3,
	"float32x4": gputypes.VertexFormatFloat32x4,
	"uint32":    gputypes.VertexFormatUint32,
	"unorm8x4":  gputypes.VertexFormatUnorm8x4,
}

func parseVertexFormat(s string) (gputypes.VertexFormat, error) {
	if f, ok := vertexFormats[strings.ToLower(s)]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: vertex format %q", ErrUnknownValue, s)
}

var textureFormats = map[string]gputypes.TextureFormat{
	"r8unorm":              gputypes.TextureFormatR8Unorm,
	"rgba8unorm":           gputypes.TextureFormatRGBA8Unorm,
	"bgra8unorm":           gputypes.TextureFormatBGRA8Unorm,
	"rgba16float":          gputypes.TextureFormatRGBA16Float,
	"rgba32float":          gputypes.TextureFormatRGBA32Float,
	"depth16unorm":         gputypes.TextureFormatDepth16Unorm,
	"depth24plus":          gputypes.TextureFormatDepth24Plus,
	"depth24plus-stencil8": gputypes.TextureFormatDepth24PlusStencil8,
	"depth32float":         gputypes.TextureFormatDepth32Float,
}

// ParseTextureFormat parses a WebGPU texture format name such as
// "rgba8unorm" or "depth32float".
func ParseTextureFormat(s string) (gputypes.TextureFormat, error) {
	if f, ok := textureFormats[strings.ToLower(s)]; ok {
		return f, nil
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("%w: texture format %q", ErrUnknownValue, s)
}
