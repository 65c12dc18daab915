// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framegraph builds GPU resources from declarative, name-based
// descriptions and drives them frame by frame.
//
// # Overview
//
// Application code declares textures, buffers, samplers, shaders,
// materials and render stages by name. [Graph.Init] resolves the names into
// a dependency graph and creates every resource through a
// [renderer.Renderer] in five fixed tiers:
//
//  1. textures, buffers and samplers
//  2. stages (render passes over concrete texture descriptions)
//  3. shader effects (pipelines matching the output of the stage each pass targets)
//  4. materials (resource lists built from named layout bindings)
//  5. binding every stage to its material pass
//
// Edges point from a resource to its consumer and never from a higher tier
// to a lower one.
//
// # Quick Start
//
//	g := framegraph.New(r, framegraph.DefaultConfig())
//	g.AddTexture(gpu.TextureCreation{
//	    Name: "rt", Width: 256, Height: 256,
//	    Format: gputypes.TextureFormatRGBA8Unorm,
//	})
//	g.AddStage(framegraph.StageCreation{Name: "forward"}).
//	    AddRenderTexture("rt").
//	    SetClear(0, 0, 0, 1)
//	if err := g.Init(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// per frame
//	dev.NewFrame()
//	cb := dev.GetCommandBuffer()
//	g.Render(0, cb)
//	dev.QueueCommandBuffer(cb)
//	dev.Present()
//
// # Missing references
//
// A name that no declaration provides is dropped from the graph and
// reported through [Graph.Diagnostics] and a warning log. With
// [Config.Strict] such references fail [Graph.Init] with
// [ErrUnresolvedReference] instead, and edges that point backwards across
// tiers fail with [ErrTierOrder].
//
// A Graph is not safe for concurrent use.
package framegraph
