// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gogpu/framegraph/effect"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/renderer"
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

const gridWGSL = `
@compute @workgroup_size(8, 8) fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {}
`

func newTestGraph(t *testing.T, cfg Config) *Graph {
	t.Helper()
	dcfg := gpu.DefaultDeviceConfig()
	dcfg.Width, dcfg.Height = 320, 240
	d, err := gpu.OpenNoop(dcfg)
	if err != nil {
		t.Fatalf("OpenNoop failed: %v", err)
	}
	t.Cleanup(d.Close)
	return New(renderer.New(d, renderer.DefaultConfig()), cfg)
}

func rgba(name string, w, h uint32) gpu.TextureCreation {
	return gpu.TextureCreation{Name: name, Width: w, Height: h, Format: gputypes.TextureFormatRGBA8Unorm}
}

func blitEffect() *effect.Effect {
	return &effect.Effect{
		Name: "blit",
		Passes: []effect.Pass{{
			Name:   "main",
			Stage:  "present",
			Source: blitWGSL,
			Bindings: []effect.Binding{
				{Index: 0, Name: "source", Type: gpu.BindingTexture, Stages: gpu.ShaderFragment},
				{Index: 1, Name: "linear", Type: gpu.BindingSampler, Stages: gpu.ShaderFragment},
			},
		}},
	}
}

// declareBlit declares a forward stage into "rt" and a swapchain stage
// sampling it through the blit material.
func declareBlit(g *Graph) {
	g.AddTexture(rgba("rt", 256, 256))
	g.AddSampler(gpu.DefaultSamplerCreation("linear"))
	g.AddShader(ShaderCreation{Name: "blit", Effect: blitEffect()})
	g.AddMaterial(MaterialCreation{
		Name:   "blit_mat",
		Shader: "blit",
		Passes: []MaterialPassCreation{MaterialPass("linear").Bind("source", "rt")},
	})
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt").SetClear(0, 0, 0, 1)
	g.AddStage(StageCreation{Name: "present", Type: StageSwapchain}).SetMaterial("blit_mat", 0)
}

func mustInit(t *testing.T, g *Graph) {
	t.Helper()
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
}

// renderFrame renders one frame and returns the recorded command types.
func renderFrame(t *testing.T, g *Graph) []gpu.RecordedCommand {
	t.Helper()
	d := g.Device()
	if err := d.NewFrame(); err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	cb := d.GetCommandBuffer()
	g.Render(0, cb)
	cmds := slices.Clone(cb.Commands())
	d.QueueCommandBuffer(cb)
	if err := d.Present(); err != nil {
		t.Fatalf("Present failed: %v", err)
	}
	return cmds
}

func countType(cmds []gpu.RecordedCommand, typ gpu.CommandType) int {
	n := 0
	for _, c := range cmds {
		if c.Command.Type() == typ {
			n++
		}
	}
	return n
}

type recordingFeature struct {
	calls  []string
	stage  *Stage
	width  uint32
	height uint32
	draw   bool
}

func (f *recordingFeature) Init(_ *Graph, s *Stage) error {
	f.calls = append(f.calls, "init")
	f.stage = s
	return nil
}

func (f *recordingFeature) Shutdown()              { f.calls = append(f.calls, "shutdown") }
func (f *recordingFeature) Reload() error          { f.calls = append(f.calls, "reload"); return nil }
func (f *recordingFeature) Update(_ time.Duration) { f.calls = append(f.calls, "update") }

func (f *recordingFeature) Render(cb *gpu.CommandBuffer) {
	f.calls = append(f.calls, "render")
	if f.draw {
		cb.Draw(3, 1, 0, 0)
	}
}

func (f *recordingFeature) Resize(width, height uint32) {
	f.calls = append(f.calls, "resize")
	f.width, f.height = width, height
}

func TestRenderTargetScenario(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 256, 256))
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt")
	mustInit(t, g)

	h := g.GetTexture("rt")
	if !h.IsValid() {
		t.Fatal("GetTexture(rt) is invalid")
	}
	desc := g.Renderer().TextureByHandle(h).Description()
	if desc.Width != 256 || desc.Height != 256 || desc.Format != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("rt = %dx%d %v, want 256x256 RGBA8Unorm", desc.Width, desc.Height, desc.Format)
	}
	if desc.Flags&gpu.TextureRenderTarget == 0 {
		t.Error("stage output was not made a render target")
	}

	s := g.Stage(g.GetStage("forward"))
	if s == nil || !s.RenderPass().IsValid() {
		t.Fatal("forward stage has no render pass")
	}
	if w, ht := s.Size(); w != 256 || ht != 256 {
		t.Errorf("stage size = %dx%d, want 256x256", w, ht)
	}
	if len(s.Output().Colors) != 1 || s.Output().Colors[0] != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("stage output = %+v", s.Output())
	}

	rt, fwd := g.NodeID("rt"), g.NodeID("forward")
	if !slices.Contains(g.Nodes()[rt].Outputs, fwd) || !slices.Contains(g.Nodes()[fwd].Inputs, rt) {
		t.Error("missing rt -> forward edge")
	}
	if len(g.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", g.Diagnostics())
	}
}

func TestGetUndeclared(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 8, 8))
	mustInit(t, g)

	if g.GetTexture("nope").IsValid() || g.GetBuffer("nope").IsValid() ||
		g.GetSampler("nope").IsValid() || g.GetMaterial("nope").IsValid() ||
		g.GetShader("nope").IsValid() || g.GetStage("nope").IsValid() {
		t.Error("undeclared name returned a valid handle")
	}
	// Kind-checked accessors reject a name of another kind.
	if g.GetBuffer("rt").IsValid() || g.GetStage("rt").IsValid() {
		t.Error("texture name resolved as another kind")
	}
	if !g.GetTexture("rt").IsValid() {
		t.Error("unreferenced texture was not swept into the graph")
	}
}

func TestBuildOrderAndTiers(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddBuffer(gpu.BufferCreation{Name: "unused", Size: 64, Usage: gputypes.BufferUsageUniform})
	declareBlit(g)
	mustInit(t, g)

	var names []string
	for _, n := range g.Nodes() {
		names = append(names, n.Name)
	}
	// Stages first in declaration order with their references, then the
	// sweep in kind order.
	want := []string{"forward", "rt", "present", "blit_mat", "blit", "linear", "unused"}
	if !slices.Equal(names, want) {
		t.Errorf("node order = %v, want %v", names, want)
	}

	for i, n := range g.Nodes() {
		for _, out := range n.Outputs {
			if g.Nodes()[out].Kind.Tier() <= n.Kind.Tier() {
				t.Errorf("edge %s -> %s does not go up a tier", n.Name, g.Nodes()[out].Name)
			}
			if !slices.Contains(g.Nodes()[out].Inputs, NodeID(i)) {
				t.Errorf("edge %s -> %s has no matching input", n.Name, g.Nodes()[out].Name)
			}
		}
	}

	mat := g.Node("blit_mat")
	for _, in := range []string{"blit", "rt", "linear", "present"} {
		if !slices.Contains(mat.Inputs, g.NodeID(in)) {
			t.Errorf("blit_mat inputs missing %s", in)
		}
	}
	if !slices.Contains(g.Node("blit").Inputs, g.NodeID("present")) {
		t.Error("shader does not depend on its target stage")
	}
}

func TestBuildDeterminism(t *testing.T) {
	build := func() []ResourceNode {
		g := newTestGraph(t, DefaultConfig())
		declareBlit(g)
		mustInit(t, g)
		return g.Nodes()
	}
	a, b := build(), build()
	if len(a) != len(b) {
		t.Fatalf("node counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Kind != b[i].Kind || a[i].ActiveHandle != b[i].ActiveHandle ||
			!slices.Equal(a[i].Inputs, b[i].Inputs) || !slices.Equal(a[i].Outputs, b[i].Outputs) {
			t.Errorf("node %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestMaterialAndStageBinding(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	declareBlit(g)
	mustInit(t, g)

	m := g.Material("blit_mat")
	if m == nil {
		t.Fatal("material not created")
	}
	if !m.ResourceList(0).IsValid() {
		t.Error("material pass 0 has no resource list")
	}
	s := g.Stage(g.GetStage("present"))
	if s.Material() != m || s.MaterialPass() != 0 {
		t.Error("present stage not bound to blit_mat pass 0")
	}
	shader := g.Renderer().ShaderEffectByHandle(g.GetShader("blit"))
	if shader == nil || shader.References() != 2 {
		t.Fatalf("shader = %v, want two references (graph and material)", shader)
	}
}

func TestUnresolvedReferenceLenient(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 16, 16))
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt").AddRenderTexture("missing")
	mustInit(t, g)

	diags := g.Diagnostics()
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %v, want 1", diags)
	}
	if d := diags[0]; d.Kind != DiagnosticUnresolved || d.Resource != "forward" || d.Reference != "missing" {
		t.Errorf("diagnostic = %+v", d)
	}
	if !errors.Is(diags[0].Err, ErrUnresolvedReference) {
		t.Errorf("diagnostic error = %v", diags[0].Err)
	}
	if g.Node("missing") != nil {
		t.Error("unresolved name got a node")
	}
	if s := g.Stage(g.GetStage("forward")); s == nil || len(s.Outputs()) != 1 || !s.RenderPass().IsValid() {
		t.Error("stage should build with the resolved output only")
	}
}

func TestStrictMode(t *testing.T) {
	tests := []struct {
		name    string
		declare func(g *Graph)
		want    error
	}{
		{
			name: "unresolved",
			declare: func(g *Graph) {
				g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("missing")
			},
			want: ErrUnresolvedReference,
		},
		{
			name: "output names a material",
			declare: func(g *Graph) {
				g.AddMaterial(MaterialCreation{Name: "m"})
				g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("m")
			},
			want: ErrTierOrder,
		},
		{
			name: "material names a texture",
			declare: func(g *Graph) {
				g.AddTexture(rgba("rt", 4, 4))
				g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt").SetMaterial("rt", 0)
			},
			want: ErrTierOrder,
		},
		{
			name: "output names a buffer",
			declare: func(g *Graph) {
				g.AddBuffer(gpu.BufferCreation{Name: "b", Size: 16, Usage: gputypes.BufferUsageUniform})
				g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("b")
			},
			want: ErrKindMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGraph(t, Config{Strict: true})
			tt.declare(g)
			err := g.Init(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("Init error = %v, want %v", err, tt.want)
			}

			lenient := newTestGraph(t, DefaultConfig())
			tt.declare(lenient)
			if err := lenient.Init(context.Background()); err != nil {
				t.Errorf("lenient Init failed: %v", err)
			}
			if len(lenient.Diagnostics()) == 0 {
				t.Error("lenient build recorded no diagnostic")
			}
		})
	}
}

func TestDuplicateDeclarationKeepsFirst(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 64, 64))
	g.AddTexture(rgba("rt", 128, 128))
	second := g.AddStage(StageCreation{Name: "rt"})
	second.AddRenderTexture("rt")
	mustInit(t, g)

	if d := g.Texture("rt").Description(); d.Width != 64 {
		t.Errorf("rt width = %d, want the first declaration's 64", d.Width)
	}
	if g.GetStage("rt").IsValid() {
		t.Error("duplicate stage declaration was built")
	}
	diags := g.Diagnostics()
	if len(diags) != 2 || diags[0].Kind != DiagnosticDuplicate || diags[1].Kind != DiagnosticDuplicate {
		t.Errorf("diagnostics = %v, want two duplicates", diags)
	}
}

func TestCreateFailureLeavesHandleInvalid(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("empty", 0, 0))
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("empty")
	mustInit(t, g)

	if g.GetTexture("empty").IsValid() {
		t.Error("failed texture has a valid handle")
	}
	s := g.Stage(g.GetStage("forward"))
	if s == nil || s.RenderPass().IsValid() {
		t.Error("stage without attachments should exist without a render pass")
	}
	if n := countType(renderFrame(t, g), gpu.CmdBindPass); n != 0 {
		t.Errorf("unbuilt stage recorded %d BindPass commands", n)
	}

	strict := newTestGraph(t, Config{Strict: true})
	strict.AddTexture(rgba("empty", 0, 0))
	if err := strict.Init(context.Background()); !errors.Is(err, gpu.ErrInvalidCreation) {
		t.Errorf("strict Init error = %v, want gpu.ErrInvalidCreation", err)
	}
}

func TestZeroFeatureStage(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 32, 32))
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt").SetClear(1, 0, 0, 1)
	mustInit(t, g)

	cmds := renderFrame(t, g)
	want := []gpu.CommandType{
		gpu.CmdPushMarker,
		gpu.CmdBarrier,
		gpu.CmdClear,
		gpu.CmdBindPass,
		gpu.CmdSetScissor,
		gpu.CmdSetViewport,
		gpu.CmdEndPass,
		gpu.CmdBarrier,
		gpu.CmdPopMarker,
	}
	got := make([]gpu.CommandType, len(cmds))
	for i, c := range cmds {
		got[i] = c.Command.Type()
	}
	if !slices.Equal(got, want) {
		t.Errorf("commands = %v, want %v", got, want)
	}
}

func TestRenderReturnsNextSortKey(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	declareBlit(g)
	mustInit(t, g)

	d := g.Device()
	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	cb := d.GetCommandBuffer()
	next := g.Render(100, cb)
	cmds := cb.Commands()
	if next != 100+uint64(len(cmds)) {
		t.Errorf("next key = %d, want %d", next, 100+len(cmds))
	}
	for i, c := range cmds {
		if c.Key != 100+uint64(i) {
			t.Fatalf("command %d key = %d, want %d", i, c.Key, 100+i)
		}
	}
	d.QueueCommandBuffer(cb)
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
}

func TestFeatureLifecycle(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 32, 32))
	g.AddStage(StageCreation{Name: "forward"}).AddRenderTexture("rt")

	early := &recordingFeature{draw: true}
	if err := g.AttachFeatureTo("forward", early); err != nil {
		t.Fatal(err)
	}
	if err := g.AttachFeatureTo("nope", &recordingFeature{}); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("attach to unknown stage = %v", err)
	}
	mustInit(t, g)

	late := &recordingFeature{}
	if err := g.AttachFeature(g.GetStage("forward"), late); err != nil {
		t.Fatal(err)
	}
	if early.stage == nil || early.stage != late.stage {
		t.Fatal("features not initialized with their stage")
	}

	g.Update(time.Millisecond)
	cmds := renderFrame(t, g)
	if countType(cmds, gpu.CmdDraw) != 1 {
		t.Errorf("draws = %d, want 1", countType(cmds, gpu.CmdDraw))
	}
	g.Shutdown()

	want := []string{"init", "update", "render", "shutdown"}
	if !slices.Equal(early.calls, want) || !slices.Equal(late.calls, want) {
		t.Errorf("calls = %v / %v, want %v", early.calls, late.calls, want)
	}
}

func TestResizeScalesStages(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("half", 160, 120))
	g.AddTexture(rgba("fixed", 64, 64))
	g.AddStage(StageCreation{Name: "bloom"}).AddRenderTexture("half").SetResize(true, 0.5, 0.5)
	g.AddStage(StageCreation{Name: "hud"}).AddRenderTexture("fixed")
	mustInit(t, g)

	f := &recordingFeature{}
	if err := g.AttachFeature(g.GetStage("bloom"), f); err != nil {
		t.Fatal(err)
	}
	if err := g.Resize(1001, 333); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	// round(500.5) and round(166.5) round away from zero.
	if d := g.Texture("half").Description(); d.Width != 501 || d.Height != 167 {
		t.Errorf("half = %dx%d, want 501x167", d.Width, d.Height)
	}
	if d := g.Texture("fixed").Description(); d.Width != 64 || d.Height != 64 {
		t.Errorf("fixed = %dx%d, want unchanged 64x64", d.Width, d.Height)
	}
	bloom := g.Stage(g.GetStage("bloom"))
	if w, h := bloom.Size(); w != 501 || h != 167 {
		t.Errorf("bloom stage = %dx%d, want 501x167", w, h)
	}
	if !bloom.RenderPass().IsValid() {
		t.Error("bloom pass not recreated")
	}
	if f.width != 501 || f.height != 167 {
		t.Errorf("feature resized to %dx%d", f.width, f.height)
	}
	if w, h := g.Device().Size(); w != 1001 || h != 333 {
		t.Errorf("swapchain = %dx%d", w, h)
	}
}

func TestResizeSharedTargets(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 256, 256))
	g.AddStage(StageCreation{Name: "a"}).AddRenderTexture("rt").SetClear(0, 0, 0, 1).SetResize(true, 1, 1)
	g.AddStage(StageCreation{Name: "b"}).AddRenderTexture("rt")
	mustInit(t, g)

	f := &recordingFeature{}
	if err := g.AttachFeature(g.GetStage("b"), f); err != nil {
		t.Fatal(err)
	}
	if err := g.Resize(320, 240); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}

	b := g.Stage(g.GetStage("b"))
	if w, h := b.Size(); w != 320 || h != 240 {
		t.Errorf("stage b = %dx%d, want 320x240", w, h)
	}
	desc, err := g.Device().QueryRenderPass(b.RenderPass())
	if err != nil {
		t.Fatalf("stage b pass: %v", err)
	}
	if desc.Width != 320 || desc.Height != 240 {
		t.Errorf("stage b pass = %dx%d, want 320x240", desc.Width, desc.Height)
	}
	if f.width != 320 || f.height != 240 {
		t.Errorf("stage b feature resized to %dx%d", f.width, f.height)
	}
	cmds := renderFrame(t, g)
	for _, rc := range cmds {
		if v, ok := rc.Command.(gpu.SetViewportCommand); ok && (v.Viewport.Width != 320 || v.Viewport.Height != 240) {
			t.Errorf("viewport = %+v, want 320x240", v.Viewport)
		}
	}
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		size  uint32
		scale float32
		want  uint32
	}{
		{1280, 1, 1280},
		{1280, 0.5, 640},
		{1001, 0.5, 501},
		{3, 0.25, 1},
		{1, 0.1, 1},
		{100, 0, 100},
		{100, 1.5, 150},
	}
	for _, tt := range tests {
		if got := scaledSize(tt.size, tt.scale); got != tt.want {
			t.Errorf("scaledSize(%d, %v) = %d, want %d", tt.size, tt.scale, got, tt.want)
		}
	}
}

func TestResizeRebuildsSamplingMaterials(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	declareBlit(g)
	g.stageDecls[0].SetResize(true, 1, 1)
	mustInit(t, g)

	before := g.GetMaterial("blit_mat")
	if err := g.Resize(400, 300); err != nil {
		t.Fatal(err)
	}
	after := g.GetMaterial("blit_mat")
	if !after.IsValid() || after == before {
		t.Errorf("material not rebuilt: before %d after %d", before, after)
	}
	if g.Stage(g.GetStage("present")).Material() != g.Material("blit_mat") {
		t.Error("stage not rebound to the rebuilt material")
	}
}

func TestReloadShader(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	declareBlit(g)
	mustInit(t, g)
	f := &recordingFeature{}
	if err := g.AttachFeature(g.GetStage("present"), f); err != nil {
		t.Fatal(err)
	}

	oldShader, oldMat := g.GetShader("blit"), g.GetMaterial("blit_mat")
	reloaded := blitEffect()
	reloaded.Passes[0].Blend = gpu.BlendPremultiplied
	if err := g.ReloadShader("blit", reloaded); err != nil {
		t.Fatalf("ReloadShader failed: %v", err)
	}
	r := g.Renderer()
	if g.GetShader("blit") == oldShader || r.ShaderEffectByHandle(oldShader) != nil {
		t.Error("old shader effect still live")
	}
	if r.FindShaderEffect("blit").Effect() != reloaded {
		t.Error("shader cache does not point at the reloaded effect")
	}
	if g.GetMaterial("blit_mat") == oldMat {
		t.Error("material not rebuilt")
	}
	if g.Material("blit_mat").Shader().Effect() != reloaded {
		t.Error("material uses the old shader")
	}
	if !slices.Contains(f.calls, "reload") {
		t.Error("feature not reloaded")
	}

	if err := g.ReloadShader("rt", reloaded); !errors.Is(err, ErrUnknownResource) {
		t.Errorf("reload of a texture = %v, want ErrUnknownResource", err)
	}
	if err := g.ReloadShader("blit", nil); err == nil {
		t.Error("reload with nil effect should fail")
	}
	if r.FindShaderEffect("blit").Effect() != reloaded {
		t.Error("failed reload replaced the active effect")
	}
}

func TestComputeStageDispatch(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("grid", 100, 40))
	g.AddShader(ShaderCreation{Name: "fill", Effect: &effect.Effect{
		Name: "fill",
		Passes: []effect.Pass{{
			Name:         "main",
			Stage:        "simulate",
			Source:       gridWGSL,
			Compute:      true,
			DispatchSize: [3]uint32{8, 8, 1},
		}},
	}})
	g.AddMaterial(MaterialCreation{Name: "fill_mat", Shader: "fill"})
	g.AddStage(StageCreation{Name: "simulate", Type: StageCompute}).
		AddRenderTexture("grid").
		SetMaterial("fill_mat", 0)
	g.AddStage(StageCreation{Name: "idle", Type: StageCompute})
	mustInit(t, g)

	if d := g.Texture("grid").Description(); d.Flags&gpu.TextureCompute == 0 {
		t.Error("compute output was not made writable by compute")
	}
	cmds := renderFrame(t, g)
	var dispatches []gpu.DispatchCommand
	for _, c := range cmds {
		if dc, ok := c.Command.(gpu.DispatchCommand); ok {
			dispatches = append(dispatches, dc)
		}
	}
	if len(dispatches) != 1 {
		t.Fatalf("dispatches = %d, want 1 (idle stage has no material)", len(dispatches))
	}
	if d := dispatches[0]; d.X != 13 || d.Y != 5 || d.Z != 1 {
		t.Errorf("dispatch = %dx%dx%d, want 13x5x1", d.X, d.Y, d.Z)
	}
	if countType(cmds, gpu.CmdEndPass) != 0 {
		t.Error("compute passes must not record EndPass")
	}
}

func TestInitCancelled(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	g.AddTexture(rgba("rt", 8, 8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Init(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Init error = %v, want context.Canceled", err)
	}
}

func TestInitTwice(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	mustInit(t, g)
	if err := g.Init(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init = %v", err)
	}
	if err := New(g.Renderer(), DefaultConfig()).Resize(10, 10); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Resize before Init = %v", err)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	g := newTestGraph(t, DefaultConfig())
	declareBlit(g)
	mustInit(t, g)
	renderFrame(t, g)
	g.Shutdown()

	if g.Initialized() || len(g.Nodes()) != 0 {
		t.Error("graph still holds nodes")
	}
	// Declarations survive and can be built again.
	mustInit(t, g)
	if !g.GetMaterial("blit_mat").IsValid() {
		t.Error("rebuild after shutdown failed")
	}
	g.Shutdown()

	if leaks := g.Renderer().Shutdown(); len(leaks) != 0 {
		t.Errorf("leaks after graph shutdown: %+v", leaks)
	}
}

func TestFeatureRegistry(t *testing.T) {
	RegisterFeature("test-recording", func(p FeatureParams) (Feature, error) {
		return &recordingFeature{draw: p.String("draw", "") == "yes"}, nil
	})
	defer UnregisterFeature("test-recording")

	if !slices.Contains(RegisteredFeatures(), "test-recording") {
		t.Error("feature not listed")
	}
	f, err := NewFeature("test-recording", FeatureParams{"draw": "yes"})
	if err != nil {
		t.Fatal(err)
	}
	if !f.(*recordingFeature).draw {
		t.Error("params not passed to the factory")
	}
	if _, err := NewFeature("missing", nil); err == nil {
		t.Error("unknown feature should fail")
	}
	func() {
		defer func() {
			if recover() == nil {
				t.Error("duplicate registration should panic")
			}
		}()
		RegisterFeature("test-recording", func(FeatureParams) (Feature, error) { return nil, nil })
	}()
}

func TestFeatureParams(t *testing.T) {
	p := FeatureParams{"name": "x", "n64": int64(7), "nf": 2.0, "n": 3}
	if p.String("name", "d") != "x" || p.String("missing", "d") != "d" {
		t.Error("String")
	}
	if p.Int("n64", 0) != 7 || p.Int("nf", 0) != 2 || p.Int("n", 0) != 3 || p.Int("name", 9) != 9 {
		t.Error("Int")
	}
}
