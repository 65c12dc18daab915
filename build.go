// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"context"
	"fmt"
	"slices"

	"github.com/gogpu/framegraph/gpu"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/renderer"
)

// Init registers a node for every declaration and creates the resources
// tier by tier. Features attached before Init are initialized last.
//
// In lenient mode Init fails only on context cancellation, stage pool
// exhaustion or a feature error; other problems end up in Diagnostics.
// A failed Init leaves a partially built graph that should be shut down.
func (g *Graph) Init(ctx context.Context) error {
	if g.initialized {
		return ErrAlreadyInitialized
	}
	if err := g.registerNodes(); err != nil {
		return err
	}

	tiers := []struct {
		name string
		fn   func() error
	}{
		{"resources", g.createResources},
		{"stages", g.createStages},
		{"shaders", g.createShaders},
		{"materials", g.createMaterials},
		{"bind", g.bindStages},
	}
	for _, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("framegraph: init %s: %w", tier.name, err)
		}
		if err := tier.fn(); err != nil {
			return err
		}
	}
	g.initialized = true

	for _, h := range g.order {
		s := g.stages.Access(uint32(h))
		for _, f := range s.features {
			if err := f.Init(g, s); err != nil {
				return fmt.Errorf("framegraph: stage %q feature init: %w", s.name, err)
			}
		}
	}
	slogger().Info("framegraph: graph built",
		"nodes", len(g.nodes), "stages", len(g.order), "diagnostics", len(g.diagnostics))
	return nil
}

// --------------------------------------------------------------------------
// Node registration
// --------------------------------------------------------------------------

// registerNodes walks every stage in declaration order, then sweeps up the
// declarations no stage reached.
func (g *Graph) registerNodes() error {
	for _, s := range g.stageDecls {
		if err := g.wire(g.register(s.Name)); err != nil {
			return err
		}
	}
	sweep := []struct {
		kind ResourceKind
		n    int
	}{
		{KindTexture, len(g.textures)},
		{KindBuffer, len(g.buffers)},
		{KindSampler, len(g.samplers)},
		{KindShader, len(g.shaders)},
		{KindMaterial, len(g.materials)},
	}
	for _, k := range sweep {
		for i := range k.n {
			if err := g.wire(g.register(g.declName(k.kind, i))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) declName(kind ResourceKind, i int) string {
	switch kind {
	case KindTexture:
		return g.textures[i].Name
	case KindBuffer:
		return g.buffers[i].Name
	case KindSampler:
		return g.samplers[i].Name
	case KindStage:
		return g.stageDecls[i].Name
	case KindShader:
		return g.shaders[i].Name
	default:
		return g.materials[i].Name
	}
}

// register returns the node for a declared name, creating it on first use.
func (g *Graph) register(name string) NodeID {
	if id, ok := g.index[name]; ok {
		return id
	}
	d := g.declared[name]
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, ResourceNode{
		Name:         name,
		Kind:         d.kind,
		Creation:     d.index,
		ActiveHandle: pool.InvalidIndex,
	})
	g.index[name] = id
	return id
}

// reference resolves a name used by the node from. Undeclared names are
// reported and yield InvalidNode.
func (g *Graph) reference(from NodeID, name string) (NodeID, error) {
	if _, ok := g.declared[name]; !ok {
		return InvalidNode, g.report(Diagnostic{
			Kind: DiagnosticUnresolved, Resource: g.nodes[from].Name, Reference: name,
		}, ErrUnresolvedReference)
	}
	return g.register(name), nil
}

// dependency resolves name as an input of node to and adds the edge
// name -> to. The input must be one of kinds.
func (g *Graph) dependency(to NodeID, name string, kinds ...ResourceKind) (NodeID, error) {
	id, err := g.reference(to, name)
	if err != nil || !id.IsValid() {
		return InvalidNode, err
	}
	if ok, err := g.checkEdge(id, to, id, kinds); !ok {
		return InvalidNode, err
	}
	g.link(id, to)
	return id, nil
}

// dependent resolves name as a consumer of node from and adds the edge
// from -> name. The consumer must be one of kinds.
func (g *Graph) dependent(from NodeID, name string, kinds ...ResourceKind) (NodeID, error) {
	id, err := g.reference(from, name)
	if err != nil || !id.IsValid() {
		return InvalidNode, err
	}
	if ok, err := g.checkEdge(from, id, id, kinds); !ok {
		return InvalidNode, err
	}
	g.link(from, id)
	return id, nil
}

// checkEdge validates the edge from -> to whose referenced end is ref.
// Edges pointing backwards across tiers, or whose ref has a kind outside
// kinds, are reported and dropped.
func (g *Graph) checkEdge(from, to, ref NodeID, kinds []ResourceKind) (bool, error) {
	src, dst := &g.nodes[from], &g.nodes[to]
	if src.Kind.Tier() >= dst.Kind.Tier() {
		return false, g.report(Diagnostic{
			Kind: DiagnosticTierOrder, Resource: g.nodes[otherEnd(from, to, ref)].Name, Reference: g.nodes[ref].Name,
			Err: fmt.Errorf("%w: %s %q -> %s %q", ErrTierOrder, src.Kind, src.Name, dst.Kind, dst.Name),
		}, ErrTierOrder)
	}
	if kind := g.nodes[ref].Kind; !slices.Contains(kinds, kind) {
		return false, g.report(Diagnostic{
			Kind: DiagnosticKindMismatch, Resource: g.nodes[otherEnd(from, to, ref)].Name, Reference: g.nodes[ref].Name,
			Err: fmt.Errorf("%w: %q is a %s", ErrKindMismatch, g.nodes[ref].Name, kind),
		}, ErrKindMismatch)
	}
	return true, nil
}

func otherEnd(from, to, ref NodeID) NodeID {
	if ref == from {
		return to
	}
	return from
}

// link adds the edge from -> to.
func (g *Graph) link(from, to NodeID) {
	g.nodes[from].Outputs = addEdge(g.nodes[from].Outputs, to)
	g.nodes[to].Inputs = addEdge(g.nodes[to].Inputs, from)
}

// report records a diagnostic. In strict mode it returns sentinel wrapped
// with the diagnostic instead.
func (g *Graph) report(d Diagnostic, sentinel error) error {
	if g.cfg.Strict {
		return fmt.Errorf("%w: %q references %q", sentinel, d.Resource, d.Reference)
	}
	if d.Err == nil {
		d.Err = sentinel
	}
	slogger().Warn("framegraph: reference dropped",
		"kind", d.Kind.String(), "resource", d.Resource, "reference", d.Reference)
	g.diagnostics = append(g.diagnostics, d)
	return nil
}

// wire adds the edges of a node once.
func (g *Graph) wire(id NodeID) error {
	n := &g.nodes[id]
	if n.wired {
		return nil
	}
	n.wired = true
	switch n.Kind {
	case KindStage:
		return g.wireStage(id)
	case KindShader:
		return g.wireShader(id)
	case KindMaterial:
		return g.wireMaterial(id)
	}
	return nil
}

// useTexture resolves a stage attachment and marks the texture declaration
// usable for the stage's kind of pass.
func (g *Graph) useTexture(stage NodeID, name string, flags gpu.TextureFlags) error {
	tn, err := g.dependency(stage, name, KindTexture)
	if err != nil || !tn.IsValid() {
		return err
	}
	g.textures[g.nodes[tn].Creation].Flags |= flags
	return nil
}

func (g *Graph) wireStage(id NodeID) error {
	s := g.stageDecls[g.nodes[id].Creation]
	flags := gpu.TextureRenderTarget
	if s.Type == StageCompute {
		flags = gpu.TextureCompute
	}
	for _, name := range s.Outputs {
		if err := g.useTexture(id, name, flags); err != nil {
			return err
		}
	}
	if s.DepthStencil != "" {
		if err := g.useTexture(id, s.DepthStencil, gpu.TextureRenderTarget); err != nil {
			return err
		}
	}
	if s.Material == "" {
		return nil
	}
	mn, err := g.dependent(id, s.Material, KindMaterial)
	if err != nil || !mn.IsValid() {
		return err
	}
	return g.wire(mn)
}

func (g *Graph) wireMaterial(id NodeID) error {
	m := &g.materials[g.nodes[id].Creation]
	if m.Shader != "" {
		sn, err := g.dependency(id, m.Shader, KindShader)
		if err != nil {
			return err
		}
		if sn.IsValid() {
			if err := g.wire(sn); err != nil {
				return err
			}
		}
	}
	for _, pass := range m.Passes {
		for _, b := range pass.Bindings {
			if _, err := g.dependency(id, b.Resource, KindTexture, KindBuffer, KindSampler, KindStage); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Graph) wireShader(id NodeID) error {
	s := &g.shaders[g.nodes[id].Creation]
	if s.Effect == nil {
		return nil
	}
	for _, p := range s.Effect.Passes {
		if p.Stage == "" {
			continue
		}
		if _, err := g.dependency(id, p.Stage, KindStage); err != nil {
			return err
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Tiered creation
// --------------------------------------------------------------------------

// created records the result of creating a node's resource. Failures are
// logged and leave the handle invalid; strict mode returns them.
func (g *Graph) created(n *ResourceNode, handle pool.Index, err error) error {
	if err == nil {
		n.ActiveHandle = handle
		return nil
	}
	if g.cfg.Strict {
		return fmt.Errorf("framegraph: create %s %q: %w", n.Kind, n.Name, err)
	}
	slogger().Warn("framegraph: resource creation failed", "kind", n.Kind.String(), "name", n.Name, "error", err)
	g.diagnostics = append(g.diagnostics, Diagnostic{
		Kind: DiagnosticCreateFailed, Resource: n.Name, Reference: n.Name, Err: err,
	})
	return nil
}

func (g *Graph) createResources() error {
	for i := range g.nodes {
		n := &g.nodes[i]
		var err error
		h := pool.InvalidIndex
		switch n.Kind {
		case KindTexture:
			var t *renderer.Texture
			if t, err = g.renderer.CreateTexture(g.textures[n.Creation]); err == nil {
				h = uint32(t.Handle())
			}
		case KindBuffer:
			var b *renderer.Buffer
			if b, err = g.renderer.CreateBuffer(g.buffers[n.Creation]); err == nil {
				h = uint32(b.Handle())
			}
		case KindSampler:
			var s *renderer.Sampler
			if s, err = g.renderer.CreateSampler(g.samplers[n.Creation]); err == nil {
				h = uint32(s.Handle())
			}
		default:
			continue
		}
		if err := g.created(n, h, err); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) createStages() error {
	for _, decl := range g.stageDecls {
		n := g.Node(decl.Name)
		i := g.stages.Obtain()
		if i == pool.InvalidIndex {
			return fmt.Errorf("framegraph: stage %q: %w (capacity %d)", decl.Name, renderer.ErrPoolExhausted, g.stages.Capacity())
		}
		s := g.stages.Access(i)
		*s = Stage{
			handle:       StageHandle(i),
			name:         decl.Name,
			typ:          decl.Type,
			resize:       decl.Resize,
			clear:        decl.Clear,
			pass:         gpu.InvalidRenderPass,
			materialPass: decl.MaterialPass,
		}
		for _, name := range decl.Outputs {
			if t := g.Texture(name); t != nil {
				s.outputs = append(s.outputs, t)
			}
		}
		if decl.DepthStencil != "" {
			s.depth = g.Texture(decl.DepthStencil)
		}
		s.features = g.pending[decl.Name]
		delete(g.pending, decl.Name)
		n.ActiveHandle = i
		g.order = append(g.order, s.handle)
		if err := g.created(n, i, g.createPass(s)); err != nil {
			return err
		}
	}
	return nil
}

// createPass creates the render pass of a stage from its resolved textures.
func (g *Graph) createPass(s *Stage) error {
	d := g.Device()
	c := gpu.RenderPassCreation{
		Name:         s.name,
		DepthStencil: gpu.InvalidTexture,
		ColorOp:      gpu.OpLoad,
		DepthOp:      gpu.OpLoad,
		StencilOp:    gpu.OpLoad,
	}
	if s.clear.Color {
		c.ColorOp = gpu.OpClear
	}
	if s.clear.Depth {
		c.DepthOp, c.StencilOp = gpu.OpClear, gpu.OpClear
	}
	switch s.typ {
	case StageCompute:
		c.Type = gpu.PassCompute
	case StageSwapchain:
		c.Type = gpu.PassSwapchain
	default:
		c.Type = gpu.PassGeometry
		for _, t := range s.outputs {
			c.Outputs = append(c.Outputs, t.GPU())
		}
		if s.depth != nil {
			c.DepthStencil = s.depth.GPU()
		}
	}
	h, err := d.CreateRenderPass(c)
	if err != nil {
		return err
	}
	desc, err := d.QueryRenderPass(h)
	if err != nil {
		d.DestroyRenderPass(h)
		return err
	}
	s.pass, s.output = h, desc.Output
	s.width, s.height = desc.Width, desc.Height
	if s.typ == StageCompute {
		s.width, s.height = d.Size()
		if len(s.outputs) > 0 {
			od := s.outputs[0].Description()
			s.width, s.height = od.Width, od.Height
		}
	}
	return nil
}

// shaderOutputs returns the render pass output each effect pass targets.
func (g *Graph) shaderOutputs(c *ShaderCreation) []gpu.RenderPassOutput {
	outputs := make([]gpu.RenderPassOutput, len(c.Effect.Passes))
	for i, p := range c.Effect.Passes {
		outputs[i] = g.Device().SwapchainOutput()
		if st := g.Stage(g.GetStage(p.Stage)); st != nil && st.pass.IsValid() && st.typ != StageCompute {
			outputs[i] = st.output
		}
	}
	return outputs
}

func (g *Graph) createShader(c *ShaderCreation) (*renderer.ShaderEffect, error) {
	if c.Effect == nil {
		return nil, fmt.Errorf("%w: shader %q has no effect", renderer.ErrInvalidCreation, c.Name)
	}
	return g.renderer.CreateShaderEffect(renderer.ShaderEffectCreation{
		Name:    c.Name,
		Effect:  c.Effect,
		Outputs: g.shaderOutputs(c),
	})
}

func (g *Graph) createShaders() error {
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.Kind != KindShader {
			continue
		}
		h := pool.InvalidIndex
		s, err := g.createShader(&g.shaders[n.Creation])
		if err == nil {
			h = uint32(s.Handle())
		}
		if err := g.created(n, h, err); err != nil {
			return err
		}
	}
	return nil
}

// materialEntries matches each layout binding of the material's effect
// passes to the resolved resource bound under the same name.
func (g *Graph) materialEntries(m *MaterialCreation, shader *renderer.ShaderEffect) []renderer.MaterialPass {
	passes := make([]renderer.MaterialPass, len(shader.Effect().Passes))
	for p, ep := range shader.Effect().Passes {
		if p >= len(m.Passes) {
			break
		}
		for _, b := range ep.Bindings {
			name, ok := m.Passes[p].resource(b.Name)
			if !ok {
				slogger().Debug("framegraph: binding left unbound", "material", m.Name, "pass", ep.Name, "binding", b.Name)
				continue
			}
			if e, ok := g.entry(b.Index, name); ok {
				passes[p].Entries = append(passes[p].Entries, e)
			}
		}
	}
	return passes
}

// entry returns the resource list entry for a resolved resource. Stages
// bind their first output texture.
func (g *Graph) entry(binding uint32, name string) (gpu.ResourceListEntry, bool) {
	n := g.Node(name)
	if n == nil || !n.Resolved() {
		return gpu.ResourceListEntry{}, false
	}
	r := g.renderer
	switch n.Kind {
	case KindTexture:
		if t := r.TextureByHandle(n.Texture()); t != nil {
			return gpu.TextureEntry(binding, t.GPU()), true
		}
	case KindBuffer:
		if b := r.BufferByHandle(n.Buffer()); b != nil {
			return gpu.BufferEntry(binding, b.GPU()), true
		}
	case KindSampler:
		if s := r.SamplerByHandle(n.Sampler()); s != nil {
			return gpu.SamplerEntry(binding, s.GPU()), true
		}
	case KindStage:
		if s := g.Stage(n.Stage()); s != nil && len(s.outputs) > 0 {
			return gpu.TextureEntry(binding, s.outputs[0].GPU()), true
		}
	}
	return gpu.ResourceListEntry{}, false
}

func (g *Graph) createMaterial(m *MaterialCreation) (*renderer.Material, error) {
	shader := g.renderer.ShaderEffectByHandle(g.GetShader(m.Shader))
	if shader == nil {
		return nil, fmt.Errorf("%w: material %q shader %q is not available", renderer.ErrInvalidCreation, m.Name, m.Shader)
	}
	return g.renderer.CreateMaterial(renderer.MaterialCreation{
		Name:   m.Name,
		Shader: shader,
		Passes: g.materialEntries(m, shader),
	})
}

func (g *Graph) createMaterials() error {
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.Kind != KindMaterial {
			continue
		}
		h := pool.InvalidIndex
		m, err := g.createMaterial(&g.materials[n.Creation])
		if err == nil {
			h = uint32(m.Handle())
		}
		if err := g.created(n, h, err); err != nil {
			return err
		}
	}
	return nil
}

// bindStages resolves every stage's material pass.
func (g *Graph) bindStages() error {
	for i, h := range g.order {
		g.stages.Access(uint32(h)).bind(g, g.stageDecls[i].Material)
	}
	return nil
}
