// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"errors"
	"testing"

	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/texload"
	"github.com/gogpu/gputypes"
)

const blitWGSL = `
@group(0) @binding(0) var source: texture_2d<f32>;
@group(0) @binding(1) var linear: sampler;

@vertex fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
	let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
	return vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
}
@fragment fn fs_main(@builtin(position) p: vec4<f32>) -> @location(0) vec4<f32> {
	return textureSample(source, linear, p.xy);
}
`

func newTestRenderer(t *testing.T, cfg Config) *Renderer {
	t.Helper()
	dcfg := gpu.DefaultDeviceConfig()
	dcfg.Width, dcfg.Height = 64, 64
	d, err := gpu.OpenNoop(dcfg)
	if err != nil {
		t.Fatalf("OpenNoop failed: %v", err)
	}
	t.Cleanup(d.Close)
	return New(d, cfg)
}

func rgba(name string, w, h uint32) gpu.TextureCreation {
	return gpu.TextureCreation{Name: name, Width: w, Height: h, Format: gputypes.TextureFormatRGBA8Unorm}
}

func blitEffect() *effect.Effect {
	return &effect.Effect{
		Name: "blit",
		Passes: []effect.Pass{{
			Name:   "main",
			Source: blitWGSL,
			Bindings: []effect.Binding{
				{Index: 0, Name: "source", Type: gpu.BindingTexture, Stages: gpu.ShaderFragment},
				{Index: 1, Name: "linear", Type: gpu.BindingSampler, Stages: gpu.ShaderFragment},
			},
		}},
	}
}

func TestTextureDescriptionRoundTrip(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	tex, err := r.CreateTexture(rgba("albedo", 32, 16))
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	desc := tex.Description()
	if desc.Name != "albedo" || desc.Width != 32 || desc.Height != 16 || desc.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("description = %+v", desc)
	}
	if tex.References() != 1 {
		t.Errorf("References = %d, want 1", tex.References())
	}
	if got := r.FindTexture("albedo"); got != tex {
		t.Error("FindTexture did not return the created texture")
	}
	if got := r.TextureByHandle(tex.Handle()); got != tex {
		t.Error("TextureByHandle did not return the created texture")
	}
}

func TestDestroyCountSafety(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	buf, err := r.CreateBuffer(gpu.BufferCreation{Name: "verts", Size: 64, Usage: gputypes.BufferUsageVertex})
	if err != nil {
		t.Fatal(err)
	}
	r.RetainBuffer(buf)
	r.RetainBuffer(buf)

	for i := range 2 {
		r.DestroyBuffer(buf)
		if r.FindBuffer("verts") == nil {
			t.Fatalf("buffer released after %d of 3 destroys", i+1)
		}
	}
	r.DestroyBuffer(buf)
	if r.FindBuffer("verts") != nil {
		t.Fatal("buffer still cached after the last destroy")
	}
	if r.buffers.Used() != 0 {
		t.Fatalf("buffer slots used = %d, want 0", r.buffers.Used())
	}

	// Extra destroys are ignored.
	r.DestroyBuffer(buf)
	if buf.References() != 0 || r.buffers.Used() != 0 {
		t.Error("extra destroy changed the pool")
	}
}

func TestPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacities.Samplers = 1
	r := newTestRenderer(t, cfg)
	if _, err := r.CreateSampler(gpu.DefaultSamplerCreation("a")); err != nil {
		t.Fatal(err)
	}
	_, err := r.CreateSampler(gpu.DefaultSamplerCreation("b"))
	if !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err = %v, want ErrPoolExhausted", err)
	}
	if r.FindSampler("b") != nil {
		t.Error("failed creation registered a name")
	}
}

func TestBackendFailureReleasesSlot(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	_, err := r.CreateTexture(rgba("empty", 0, 0))
	if !errors.Is(err, gpu.ErrInvalidCreation) {
		t.Fatalf("err = %v, want gpu.ErrInvalidCreation", err)
	}
	if r.textures.Used() != 0 {
		t.Errorf("slot leaked: %d used", r.textures.Used())
	}
}

func TestShaderAndMaterial(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	tex, err := r.CreateTexture(rgba("source", 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	smp, err := r.CreateSampler(gpu.DefaultSamplerCreation("linear"))
	if err != nil {
		t.Fatal(err)
	}
	shader, err := r.CreateShaderEffect(ShaderEffectCreation{Name: "blit", Effect: blitEffect()})
	if err != nil {
		t.Fatalf("CreateShaderEffect failed: %v", err)
	}
	if shader.Passes() != 1 || !shader.Pipeline(0).IsValid() || shader.Pipeline(1).IsValid() {
		t.Fatalf("pipelines = %v", shader.pipelines)
	}

	mat, err := r.CreateMaterial(MaterialCreation{
		Name:   "blit_mat",
		Shader: shader,
		Passes: []MaterialPass{{Entries: []gpu.ResourceListEntry{
			gpu.TextureEntry(0, tex.GPU()),
			gpu.SamplerEntry(1, smp.GPU()),
		}}},
	})
	if err != nil {
		t.Fatalf("CreateMaterial failed: %v", err)
	}
	if !mat.ResourceList(0).IsValid() {
		t.Error("material pass 0 has no resource list")
	}
	if shader.References() != 2 {
		t.Errorf("shader references = %d, want 2", shader.References())
	}

	r.DestroyMaterial(mat)
	if shader.References() != 1 {
		t.Errorf("shader references after material destroy = %d, want 1", shader.References())
	}
	r.DestroyShaderEffect(shader)
	if r.FindShaderEffect("blit") != nil {
		t.Error("shader still cached")
	}
}

func TestMaterialWithoutShader(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	if _, err := r.CreateMaterial(MaterialCreation{Name: "m"}); !errors.Is(err, ErrInvalidCreation) {
		t.Errorf("err = %v, want ErrInvalidCreation", err)
	}
	if _, err := r.CreateShaderEffect(ShaderEffectCreation{Name: "s"}); !errors.Is(err, ErrInvalidCreation) {
		t.Errorf("err = %v, want ErrInvalidCreation", err)
	}
}

type fakeLoader struct {
	calls int
}

func (f *fakeLoader) LoadTexture(name, path string, _ texload.Options) (gpu.TextureCreation, error) {
	f.calls++
	if path == "missing.png" {
		return gpu.TextureCreation{}, errors.New("no such file")
	}
	return rgba(name, 4, 4), nil
}

func TestLoadTexture(t *testing.T) {
	loader := &fakeLoader{}
	cfg := DefaultConfig()
	cfg.Loader = loader
	r := newTestRenderer(t, cfg)

	tex, err := r.LoadTexture("logo", "logo.png", texload.Options{})
	if err != nil || tex == nil || tex.Name() != "logo" {
		t.Fatalf("LoadTexture = %v, %v", tex, err)
	}
	tex, err = r.LoadTexture("gone", "missing.png", texload.Options{})
	if err == nil || tex != nil {
		t.Error("expected error and nil texture for a missing file")
	}
	if loader.calls != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls)
	}
}

func TestMapDynamicBuffer(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	buf, err := r.CreateBuffer(gpu.BufferCreation{
		Name: "locals", Size: 64, Usage: gputypes.BufferUsageUniform, Memory: gpu.MemoryDynamic,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Device().NewFrame(); err != nil {
		t.Fatal(err)
	}
	mem, err := r.MapBuffer(buf, 0, 0)
	if err != nil || len(mem) != 64 {
		t.Fatalf("MapBuffer = %d bytes, %v", len(mem), err)
	}
	if err := r.UnmapBuffer(buf); err != nil {
		t.Errorf("UnmapBuffer on dynamic buffer: %v", err)
	}
}

func TestResizeTexture(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	tex, err := r.CreateTexture(gpu.TextureCreation{
		Name: "rt", Width: 16, Height: 16, Format: gputypes.TextureFormatRGBA8Unorm, Flags: gpu.TextureRenderTarget,
	})
	if err != nil {
		t.Fatal(err)
	}
	handle := tex.GPU()
	if err := r.ResizeTexture(tex, 40, 20); err != nil {
		t.Fatal(err)
	}
	if d := tex.Description(); d.Width != 40 || d.Height != 20 {
		t.Errorf("size = %dx%d, want 40x20", d.Width, d.Height)
	}
	if tex.GPU() != handle {
		t.Error("resize changed the device handle")
	}
}

func TestShutdownReportsLeaks(t *testing.T) {
	r := newTestRenderer(t, DefaultConfig())
	kept, err := r.CreateTexture(rgba("kept", 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	r.RetainTexture(kept)
	freed, err := r.CreateTexture(rgba("freed", 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	r.DestroyTexture(freed)

	leaks := r.Shutdown()
	if len(leaks) != 1 || leaks[0].Name != "kept" || leaks[0].References != 2 || leaks[0].Kind != "texture" {
		t.Errorf("leaks = %+v", leaks)
	}
	if r.textures.Used() != 0 {
		t.Errorf("textures still live: %d", r.textures.Used())
	}
}
