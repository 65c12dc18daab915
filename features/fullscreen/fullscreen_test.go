// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package fullscreen

import (
	"context"
	"testing"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/renderer"
	"github.com/gogpu/gputypes"
)

func newGraph(t *testing.T) *framegraph.Graph {
	t.Helper()
	cfg := gpu.DefaultDeviceConfig()
	cfg.Width, cfg.Height = 128, 96
	d, err := gpu.OpenNoop(cfg)
	if err != nil {
		t.Fatalf("OpenNoop failed: %v", err)
	}
	t.Cleanup(d.Close)
	g := framegraph.New(renderer.New(d, renderer.DefaultConfig()), framegraph.DefaultConfig())

	blit, err := BlitEffect("present")
	if err != nil {
		t.Fatalf("BlitEffect failed: %v", err)
	}
	g.AddTexture(gpu.TextureCreation{Name: "scene", Width: 128, Height: 96, Format: gputypes.TextureFormatRGBA8Unorm})
	g.AddSampler(gpu.DefaultSamplerCreation("linear"))
	g.AddShader(framegraph.ShaderCreation{Name: "blit", Effect: blit})
	g.AddMaterial(framegraph.MaterialCreation{
		Name:   "blit_mat",
		Shader: "blit",
		Passes: []framegraph.MaterialPassCreation{
			framegraph.MaterialPass().Bind("source", "scene").Bind("source_sampler", "linear"),
		},
	})
	g.AddStage(framegraph.StageCreation{Name: "forward"}).AddRenderTexture("scene")
	g.AddStage(framegraph.StageCreation{Name: "present", Type: framegraph.StageSwapchain}).SetMaterial("blit_mat", 0)
	return g
}

func draws(t *testing.T, g *framegraph.Graph) []gpu.CommandType {
	t.Helper()
	d := g.Device()
	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	cb := d.GetCommandBuffer()
	g.Render(0, cb)
	var types []gpu.CommandType
	for _, c := range cb.Commands() {
		switch c.Command.Type() {
		case gpu.CmdBindPipeline, gpu.CmdBindResourceList, gpu.CmdDraw:
			types = append(types, c.Command.Type())
		}
	}
	d.QueueCommandBuffer(cb)
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}
	return types
}

func TestBlitEffect(t *testing.T) {
	e, err := BlitEffect("final")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Passes) != 1 || e.Passes[0].Stage != "final" || e.Passes[0].Source == "" {
		t.Errorf("effect = %+v", e)
	}
	if len(e.Passes[0].Bindings) != 2 || e.Passes[0].Bindings[1].Type != gpu.BindingSampler {
		t.Errorf("bindings = %+v", e.Passes[0].Bindings)
	}
}

func TestDrawsStageMaterial(t *testing.T) {
	g := newGraph(t)
	f := New("", 0)
	if err := g.AttachFeatureTo("present", f); err != nil {
		t.Fatal(err)
	}
	if err := g.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if f.Material() == nil || f.Material() != g.Material("blit_mat") {
		t.Fatal("feature did not pick up the stage material")
	}

	got := draws(t, g)
	want := []gpu.CommandType{gpu.CmdBindPipeline, gpu.CmdBindResourceList, gpu.CmdDraw}
	if len(got) != len(want) {
		t.Fatalf("commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestReloadFollowsRebuiltMaterial(t *testing.T) {
	g := newGraph(t)
	f := New("blit_mat", 0)
	if err := g.AttachFeatureTo("present", f); err != nil {
		t.Fatal(err)
	}
	if err := g.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := f.Material()

	e, err := BlitEffect("present")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.ReloadShader("blit", e); err != nil {
		t.Fatalf("ReloadShader failed: %v", err)
	}
	if f.Material() == before || f.Material() != g.Material("blit_mat") {
		t.Error("feature kept the destroyed material")
	}
}

func TestMissingMaterial(t *testing.T) {
	g := newGraph(t)
	if err := g.AttachFeatureTo("forward", New("nope", 0)); err != nil {
		t.Fatal(err)
	}
	if err := g.Init(context.Background()); err == nil {
		t.Error("Init should fail when the feature's material is missing")
	}
}

func TestRegistered(t *testing.T) {
	f, err := framegraph.NewFeature("fullscreen", framegraph.FeatureParams{"material": "blit", "pass": int64(0)})
	if err != nil {
		t.Fatal(err)
	}
	if fs, ok := f.(*Feature); !ok || fs.materialName != "blit" {
		t.Errorf("NewFeature returned %#v", f)
	}
}
