// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command fgdemo builds a render graph and renders frames with it.
//
// Without -graph it renders a built-in graph: a scene stage drawing a
// rotating line fan and a swapchain stage blitting the scene. The noop
// backend runs headless; -backend vulkan uses the first Vulkan GPU.
//
//	fgdemo -frames 300 -log debug
//	fgdemo -config framegraph.toml -graph graphs/forward.toml -watch
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/config"
	"github.com/gogpu/framegraph/features/fullscreen"
	"github.com/gogpu/framegraph/features/lines"
	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/graphfile"
	"github.com/gogpu/framegraph/hotreload"
	"github.com/gogpu/framegraph/renderer"
	"github.com/gogpu/gputypes"
)

func main() {
	var (
		configPath = flag.String("config", "", "engine configuration file (TOML)")
		graphPath  = flag.String("graph", "", "render graph file (TOML); empty renders the built-in graph")
		backend    = flag.String("backend", "", "device backend: noop or vulkan (overrides the config)")
		frames     = flag.Int("frames", 120, "number of frames to render")
		level      = flag.String("log", "", "log level (overrides the config)")
		watch      = flag.Bool("watch", false, "reload shaders when their files change")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *backend != "" {
		cfg.Device.Backend = *backend
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *graphPath != "" {
		cfg.Graph.File = *graphPath
	}
	cfg.Shaders.Watch = cfg.Shaders.Watch || *watch
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(&cfg, *frames); err != nil {
		slog.Error("fgdemo failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, frames int) error {
	lvl, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	framegraph.SetLogger(logger)

	d, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	r := renderer.New(d, cfg.RendererConfig())
	g := framegraph.New(r, cfg.GraphConfig())
	ctx := context.Background()

	var (
		fan      *lines.Feature
		manifest map[string]string
	)
	if cfg.Graph.File != "" {
		f, err := graphfile.Load(cfg.Graph.File)
		if err != nil {
			return err
		}
		if err := f.Apply(ctx, g, graphfile.Options{Effect: cfg.EffectOptions()}); err != nil {
			return err
		}
		manifest = f.Manifests()
	} else {
		if fan, err = declareBuiltin(g); err != nil {
			return err
		}
	}
	if err := g.Init(ctx); err != nil {
		return err
	}
	defer func() {
		g.Shutdown()
		for _, l := range r.Shutdown() {
			logger.Warn("resource leaked", "kind", l.Kind, "name", l.Name, "references", l.References)
		}
	}()
	for _, diag := range g.Diagnostics() {
		logger.Warn("graph diagnostic", "diagnostic", diag.String())
	}

	var (
		watcher  *hotreload.Watcher
		reloader *hotreload.Reloader
	)
	if cfg.Shaders.Watch && len(manifest) > 0 {
		reloader = hotreload.NewReloader(g, cfg.EffectOptions())
		var dirs []string
		for name, path := range manifest {
			reloader.Track(name, path)
		}
		for _, m := range reloader.Manifests() {
			dirs = appendDir(dirs, m)
		}
		if watcher, err = hotreload.New(hotreload.Options{}, dirs...); err != nil {
			return err
		}
		defer watcher.Close()
	}

	start := time.Now()
	last := start
	for i := range frames {
		if watcher != nil {
			for _, path := range watcher.Pending() {
				if _, err := reloader.Apply(path); err != nil {
					logger.Warn("shader reload failed", "path", path, "error", err)
				}
			}
		}

		now := time.Now()
		g.Update(now.Sub(last))
		last = now
		if fan != nil {
			drawFan(fan, g, now.Sub(start))
		}
		if err := renderFrame(g, uint64(i)<<32); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	logger.Info("frames rendered", "frames", frames, "elapsed", elapsed,
		"fps", float64(frames)/max(elapsed.Seconds(), 1e-9))
	return nil
}

func openDevice(cfg *config.Config) (*gpu.Device, error) {
	dc := cfg.DeviceConfig()
	switch cfg.Device.Backend {
	case config.BackendVulkan:
		return gpu.OpenDefault(dc)
	default:
		return gpu.OpenNoop(dc)
	}
}

func renderFrame(g *framegraph.Graph, key uint64) error {
	d := g.Device()
	if err := d.NewFrame(); err != nil {
		return fmt.Errorf("new frame: %w", err)
	}
	cb := d.GetCommandBuffer()
	g.Render(key, cb)
	d.QueueCommandBuffer(cb)
	if err := d.Present(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// declareBuiltin declares the demo graph and returns its line feature.
func declareBuiltin(g *framegraph.Graph) (*lines.Feature, error) {
	w, h := g.Device().Size()
	blit, err := fullscreen.BlitEffect("present")
	if err != nil {
		return nil, err
	}
	g.AddTexture(gpu.TextureCreation{Name: "scene", Width: w, Height: h, Format: gputypes.TextureFormatRGBA8Unorm})
	g.AddSampler(gpu.DefaultSamplerCreation("linear"))
	g.AddShader(framegraph.ShaderCreation{Name: "blit", Effect: blit})
	g.AddMaterial(framegraph.MaterialCreation{
		Name:   "blit_mat",
		Shader: "blit",
		Passes: []framegraph.MaterialPassCreation{
			framegraph.MaterialPass().Bind("source", "scene").Bind("source_sampler", "linear"),
		},
	})
	g.AddStage(framegraph.StageCreation{Name: "forward"}).
		AddRenderTexture("scene").
		SetClear(0.05, 0.05, 0.08, 1).
		SetResize(true, 1, 1)
	g.AddStage(framegraph.StageCreation{Name: "present", Type: framegraph.StageSwapchain}).
		SetMaterial("blit_mat", 0)

	fan := lines.New(64)
	if err := g.AttachFeatureTo("forward", fan); err != nil {
		return nil, err
	}
	if err := g.AttachFeatureTo("present", fullscreen.New("", 0)); err != nil {
		return nil, err
	}
	return fan, nil
}

func drawFan(f *lines.Feature, g *framegraph.Graph, t time.Duration) {
	s := g.Stage(g.GetStage("forward"))
	if s == nil {
		return
	}
	w, h := s.Size()
	cx, cy := float64(w)/2, float64(h)/2
	radius := math.Min(cx, cy) * 0.9
	const spokes = 32
	for i := range spokes {
		a := t.Seconds() + float64(i)*2*math.Pi/spokes
		c := color.RGBA{R: uint8(128 + 127*math.Cos(a)), G: uint8(128 + 127*math.Sin(a)), B: 255, A: 255}
		f.AddLine(
			lines.Vec3{float32(cx), float32(cy), 0},
			lines.Vec3{float32(cx + radius*math.Cos(a)), float32(cy + radius*math.Sin(a)), 0},
			c,
		)
	}
}

func appendDir(dirs []string, path string) []string {
	dir := filepath.Dir(path)
	for _, d := range dirs {
		if d == dir {
			return dirs
		}
	}
	return append(dirs, dir)
}
