// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Default shader entry points used when a ShaderStage leaves EntryPoint empty.
const (
	DefaultVertexEntry   = "vs_main"
	DefaultFragmentEntry = "fs_main"
	DefaultComputeEntry  = "cs_main"
)

// --------------------------------------------------------------------------
// Resource layouts
// --------------------------------------------------------------------------

// CreateResourceLayout creates a bind group layout.
func (d *Device) CreateResourceLayout(c ResourceLayoutCreation) (ResourceLayoutHandle, error) {
	return d.createResourceLayout(c, InvalidPipeline)
}

func (d *Device) createResourceLayout(c ResourceLayoutCreation, owner PipelineHandle) (ResourceLayoutHandle, error) {
	if d.closed {
		return InvalidResourceLayout, ErrDeviceClosed
	}
	i := d.layouts.Obtain()
	if i == pool.InvalidIndex {
		return InvalidResourceLayout, fmt.Errorf("%w: resource layouts (capacity %d)", ErrPoolExhausted, d.layouts.Capacity())
	}
	entries := make([]gputypes.BindGroupLayoutEntry, 0, len(c.Bindings))
	for _, b := range c.Bindings {
		entries = append(entries, layoutEntry(b))
	}
	raw, err := d.raw.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   c.Name,
		Entries: entries,
	})
	if err != nil {
		d.layouts.Release(i)
		return InvalidResourceLayout, fmt.Errorf("gpu: create resource layout %q: %w", c.Name, err)
	}
	h := resourceLayoutHandle(i)
	*d.layouts.Access(i) = resourceLayout{
		raw:   raw,
		owner: owner,
		desc: ResourceLayoutDescription{
			Name:     c.Name,
			Bindings: slices.Clone(c.Bindings),
			Handle:   h,
		},
	}
	return h, nil
}

func layoutEntry(b LayoutBinding) gputypes.BindGroupLayoutEntry {
	e := gputypes.BindGroupLayoutEntry{Binding: b.Index}
	stages := b.Stages
	if stages == 0 {
		stages = ShaderVertex | ShaderFragment | ShaderCompute
	}
	if stages&ShaderVertex != 0 {
		e.Visibility |= gputypes.ShaderStageVertex
	}
	if stages&ShaderFragment != 0 {
		e.Visibility |= gputypes.ShaderStageFragment
	}
	if stages&ShaderCompute != 0 {
		e.Visibility |= gputypes.ShaderStageCompute
	}
	switch b.Type {
	case BindingUniformBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform, HasDynamicOffset: b.Dynamic}
	case BindingStorageBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage, HasDynamicOffset: b.Dynamic}
	case BindingReadOnlyStorageBuffer:
		e.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage, HasDynamicOffset: b.Dynamic}
	case BindingTexture:
		e.Texture = &gputypes.TextureBindingLayout{
			SampleType:    gputypes.TextureSampleTypeFloat,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case BindingStorageTexture:
		format := b.Format
		if format == gputypes.TextureFormatUndefined {
			format = gputypes.TextureFormatRGBA8Unorm
		}
		e.Storage = &gputypes.StorageTextureBindingLayout{
			Access:        gputypes.StorageTextureAccessReadWrite,
			Format:        format,
			ViewDimension: gputypes.TextureViewDimension2D,
		}
	case BindingSampler:
		e.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
	}
	return e
}

// QueryResourceLayout returns the description of a live resource layout.
func (d *Device) QueryResourceLayout(h ResourceLayoutHandle) (ResourceLayoutDescription, error) {
	if !d.layouts.InUse(h.index()) {
		return ResourceLayoutDescription{}, fmt.Errorf("%w: resource layout %d", ErrInvalidHandle, h)
	}
	return d.layouts.Access(h.index()).desc, nil
}

// DestroyResourceLayout schedules a resource layout for destruction.
// Layouts owned by a pipeline are destroyed with the pipeline instead.
func (d *Device) DestroyResourceLayout(h ResourceLayoutHandle) {
	live := d.layouts.InUse(h.index())
	if live && d.layouts.Access(h.index()).owner.IsValid() {
		return
	}
	d.scheduleDeletion(kindResourceLayout, h.index(), live)
}

func (d *Device) destroyResourceLayoutNow(h ResourceLayoutHandle) {
	l := d.layouts.Access(h.index())
	if l.raw != nil {
		d.raw.DestroyBindGroupLayout(l.raw)
	}
	*l = resourceLayout{}
	d.layouts.Release(h.index())
}

// --------------------------------------------------------------------------
// Resource lists
// --------------------------------------------------------------------------

// CreateResourceList creates a bind group against a layout. Entries are
// matched to layout bindings by index; the binding type decides which
// handle of an entry is used.
func (d *Device) CreateResourceList(c ResourceListCreation) (ResourceListHandle, error) {
	if d.closed {
		return InvalidResourceList, ErrDeviceClosed
	}
	if !d.layouts.InUse(c.Layout.index()) {
		return InvalidResourceList, fmt.Errorf("%w: resource list %q layout %d", ErrInvalidHandle, c.Name, c.Layout)
	}
	layout := d.layouts.Access(c.Layout.index())

	entries := make([]gputypes.BindGroupEntry, 0, len(c.Entries))
	var dynamic []BufferHandle
	for _, e := range c.Entries {
		binding, ok := findBinding(layout.desc.Bindings, e.Binding)
		if !ok {
			return InvalidResourceList, fmt.Errorf("%w: resource list %q binding %d not in layout %q",
				ErrInvalidCreation, c.Name, e.Binding, layout.desc.Name)
		}
		entry, isDynamic, err := d.bindGroupEntry(binding, e)
		if err != nil {
			return InvalidResourceList, fmt.Errorf("gpu: resource list %q: %w", c.Name, err)
		}
		if isDynamic {
			dynamic = append(dynamic, e.Buffer)
		}
		entries = append(entries, entry)
	}

	i := d.lists.Obtain()
	if i == pool.InvalidIndex {
		return InvalidResourceList, fmt.Errorf("%w: resource lists (capacity %d)", ErrPoolExhausted, d.lists.Capacity())
	}
	raw, err := d.raw.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   c.Name,
		Layout:  layout.raw,
		Entries: entries,
	})
	if err != nil {
		d.lists.Release(i)
		return InvalidResourceList, fmt.Errorf("gpu: create resource list %q: %w", c.Name, err)
	}
	h := resourceListHandle(i)
	*d.lists.Access(i) = resourceList{
		raw:     raw,
		dynamic: dynamic,
		desc: ResourceListDescription{
			Name:    c.Name,
			Layout:  c.Layout,
			Entries: slices.Clone(c.Entries),
			Handle:  h,
		},
	}
	return h, nil
}

func findBinding(bindings []LayoutBinding, index uint32) (LayoutBinding, bool) {
	for _, b := range bindings {
		if b.Index == index {
			return b, true
		}
	}
	return LayoutBinding{}, false
}

func (d *Device) bindGroupEntry(b LayoutBinding, e ResourceListEntry) (gputypes.BindGroupEntry, bool, error) {
	out := gputypes.BindGroupEntry{Binding: b.Index}
	switch {
	case b.Type.IsBuffer():
		if !d.buffers.InUse(e.Buffer.index()) {
			return out, false, fmt.Errorf("%w: buffer %d at binding %d", ErrInvalidHandle, e.Buffer, b.Index)
		}
		buf := d.buffers.Access(e.Buffer.index())
		raw := buf.raw
		dynamic := buf.desc.Parent.IsValid()
		if dynamic {
			raw = d.buffers.Access(buf.desc.Parent.index()).raw
		}
		var offset uint64
		if dynamic && !b.Dynamic {
			// Bound at this frame's ring offset only.
			offset = uint64(buf.globalOffset)
			slogger().Warn("gpu: dynamic buffer bound without dynamic offset",
				"buffer", buf.desc.Name, "binding", b.Index)
		}
		out.Resource = gputypes.BufferBinding{
			Buffer: raw.NativeHandle(),
			Offset: offset,
			Size:   uint64(buf.desc.Size),
		}
		return out, dynamic && b.Dynamic, nil
	case b.Type == BindingTexture || b.Type == BindingStorageTexture:
		if !d.textures.InUse(e.Texture.index()) {
			return out, false, fmt.Errorf("%w: texture %d at binding %d", ErrInvalidHandle, e.Texture, b.Index)
		}
		t := d.textures.Access(e.Texture.index())
		out.Resource = gputypes.TextureViewBinding{
			TextureView: gputypes.TextureViewHandle(t.view.NativeHandle()),
		}
	case b.Type == BindingSampler:
		if !d.samplers.InUse(e.Sampler.index()) {
			return out, false, fmt.Errorf("%w: sampler %d at binding %d", ErrInvalidHandle, e.Sampler, b.Index)
		}
		s := d.samplers.Access(e.Sampler.index())
		out.Resource = gputypes.SamplerBinding{
			Sampler: gputypes.SamplerHandle(s.raw.NativeHandle()),
		}
	}
	return out, false, nil
}

// QueryResourceList returns the description of a live resource list.
func (d *Device) QueryResourceList(h ResourceListHandle) (ResourceListDescription, error) {
	if !d.lists.InUse(h.index()) {
		return ResourceListDescription{}, fmt.Errorf("%w: resource list %d", ErrInvalidHandle, h)
	}
	return d.lists.Access(h.index()).desc, nil
}

// DestroyResourceList schedules a resource list for destruction.
func (d *Device) DestroyResourceList(h ResourceListHandle) {
	d.scheduleDeletion(kindResourceList, h.index(), d.lists.InUse(h.index()))
}

func (d *Device) destroyResourceListNow(h ResourceListHandle) {
	l := d.lists.Access(h.index())
	if l.raw != nil {
		d.raw.DestroyBindGroup(l.raw)
	}
	*l = resourceList{}
	d.lists.Release(h.index())
}

// --------------------------------------------------------------------------
// Pipelines
// --------------------------------------------------------------------------

// DefaultRasterization returns triangle-list rasterization without culling.
func DefaultRasterization() RasterizationCreation {
	return RasterizationCreation{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		CullMode: gputypes.CullModeNone,
	}
}

// CreatePipeline creates a render or compute pipeline together with its
// shader modules, resource layouts and pipeline layout.
func (d *Device) CreatePipeline(c PipelineCreation) (PipelineHandle, error) {
	if d.closed {
		return InvalidPipeline, ErrDeviceClosed
	}
	if len(c.Stages) == 0 {
		return InvalidPipeline, fmt.Errorf("%w: pipeline %q has no shader stages", ErrInvalidCreation, c.Name)
	}
	i := d.pipelines.Obtain()
	if i == pool.InvalidIndex {
		return InvalidPipeline, fmt.Errorf("%w: pipelines (capacity %d)", ErrPoolExhausted, d.pipelines.Capacity())
	}
	h := pipelineHandle(i)
	p := d.pipelines.Access(i)
	*p = pipeline{desc: PipelineDescription{
		Name:    c.Name,
		Compute: c.IsCompute(),
		Output:  c.Output,
		Handle:  h,
	}}

	if err := d.buildPipeline(p, &c); err != nil {
		d.destroyPipelineNow(h)
		return InvalidPipeline, fmt.Errorf("gpu: create pipeline %q: %w", c.Name, err)
	}
	slogger().Debug("gpu: pipeline created",
		"pipeline", c.Name,
		"compute", p.desc.Compute,
		"layouts", len(p.desc.ResourceLayouts))
	return h, nil
}

func (d *Device) buildPipeline(p *pipeline, c *PipelineCreation) error {
	rawLayouts := make([]hal.BindGroupLayout, 0, len(c.Layouts))
	for _, lc := range c.Layouts {
		lh, err := d.createResourceLayout(lc, p.desc.Handle)
		if err != nil {
			return err
		}
		p.desc.ResourceLayouts = append(p.desc.ResourceLayouts, lh)
		rawLayouts = append(rawLayouts, d.layouts.Access(lh.index()).raw)
	}

	layout, err := d.raw.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            c.Name + "_layout",
		BindGroupLayouts: rawLayouts,
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	p.layout = layout

	modules := make(map[ShaderKind]hal.ShaderModule, len(c.Stages))
	entries := make(map[ShaderKind]string, len(c.Stages))
	for _, s := range c.Stages {
		src := hal.ShaderSource{WGSL: s.WGSL}
		if len(s.SPIRV) > 0 {
			src = hal.ShaderSource{SPIRV: s.SPIRV}
		}
		m, err := d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{
			Label:  c.Name + "_" + s.Kind.String(),
			Source: src,
		})
		if err != nil {
			return fmt.Errorf("shader module %s: %w", s.Kind, err)
		}
		p.modules = append(p.modules, m)
		modules[s.Kind] = m
		entries[s.Kind] = s.entryPoint()
	}

	if p.desc.Compute {
		cp, err := d.raw.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  c.Name,
			Layout: layout,
			Compute: hal.ComputeState{
				Module:     modules[ShaderKindCompute],
				EntryPoint: entries[ShaderKindCompute],
			},
		})
		if err != nil {
			return err
		}
		p.compute = cp
		return nil
	}

	vs, ok := modules[ShaderKindVertex]
	if !ok {
		return fmt.Errorf("%w: render pipeline without vertex stage", ErrInvalidCreation)
	}
	desc := &hal.RenderPipelineDescriptor{
		Label:  c.Name,
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: entries[ShaderKindVertex],
			Buffers:    vertexLayouts(c.VertexStreams),
		},
		Multisample: gputypes.MultisampleState{
			Count: max(c.Output.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
		Primitive: primitiveState(c.Rasterization),
	}
	if fs, ok := modules[ShaderKindFragment]; ok {
		desc.Fragment = &hal.FragmentState{
			Module:     fs,
			EntryPoint: entries[ShaderKindFragment],
			Targets:    colorTargets(c.Output.Colors, c.Blend),
		}
	}
	if c.Output.HasDepth() {
		desc.DepthStencil = depthStencilState(c.Output.Depth, c.DepthStencil)
	}
	rp, err := d.raw.CreateRenderPipeline(desc)
	if err != nil {
		return err
	}
	p.render = rp
	return nil
}

func (s ShaderStage) entryPoint() string {
	if s.EntryPoint != "" {
		return s.EntryPoint
	}
	switch s.Kind {
	case ShaderKindFragment:
		return DefaultFragmentEntry
	case ShaderKindCompute:
		return DefaultComputeEntry
	default:
		return DefaultVertexEntry
	}
}

var shaderKindNames = [...]string{"vertex", "fragment", "compute"}

func (k ShaderKind) String() string {
	if int(k) < len(shaderKindNames) {
		return shaderKindNames[k]
	}
	return fmt.Sprintf("ShaderKind(%d)", k)
}

func vertexLayouts(streams []VertexStream) []gputypes.VertexBufferLayout {
	if len(streams) == 0 {
		return nil
	}
	out := make([]gputypes.VertexBufferLayout, 0, len(streams))
	for _, s := range streams {
		attrs := make([]gputypes.VertexAttribute, 0, len(s.Attributes))
		for _, a := range s.Attributes {
			attrs = append(attrs, gputypes.VertexAttribute{
				Format:         a.Format,
				Offset:         a.Offset,
				ShaderLocation: a.Location,
			})
		}
		layout := gputypes.VertexBufferLayout{
			ArrayStride: s.Stride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes:  attrs,
		}
		if s.Instance {
			layout.StepMode = gputypes.VertexStepModeInstance
		}
		out = append(out, layout)
	}
	return out
}

func primitiveState(r RasterizationCreation) gputypes.PrimitiveState {
	if r == (RasterizationCreation{}) {
		r = DefaultRasterization()
	}
	return gputypes.PrimitiveState{
		Topology: r.Topology,
		CullMode: r.CullMode,
	}
}

func colorTargets(formats []gputypes.TextureFormat, blend BlendMode) []gputypes.ColorTargetState {
	targets := make([]gputypes.ColorTargetState, 0, len(formats))
	for _, f := range formats {
		target := gputypes.ColorTargetState{
			Format:    f,
			WriteMask: gputypes.ColorWriteMaskAll,
		}
		if blend == BlendPremultiplied {
			premul := gputypes.BlendStatePremultiplied()
			target.Blend = &premul
		}
		targets = append(targets, target)
	}
	return targets
}

func depthStencilState(format gputypes.TextureFormat, ds DepthStencilCreation) *hal.DepthStencilState {
	compare := gputypes.CompareFunctionAlways
	if ds.DepthEnable {
		compare = ds.DepthCompare
		if compare == 0 {
			compare = gputypes.CompareFunctionLess
		}
	}
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	return &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: ds.DepthEnable && ds.DepthWrite,
		DepthCompare:      compare,
		StencilFront:      keep,
		StencilBack:       keep,
		StencilReadMask:   0xFF,
		StencilWriteMask:  0xFF,
	}
}

// QueryPipeline returns the description of a live pipeline.
func (d *Device) QueryPipeline(h PipelineHandle) (PipelineDescription, error) {
	if !d.pipelines.InUse(h.index()) {
		return PipelineDescription{}, fmt.Errorf("%w: pipeline %d", ErrInvalidHandle, h)
	}
	return d.pipelines.Access(h.index()).desc, nil
}

// DestroyPipeline schedules a pipeline and the layouts it owns for destruction.
func (d *Device) DestroyPipeline(h PipelineHandle) {
	d.scheduleDeletion(kindPipeline, h.index(), d.pipelines.InUse(h.index()))
}

func (d *Device) destroyPipelineNow(h PipelineHandle) {
	p := d.pipelines.Access(h.index())
	if p.render != nil {
		d.raw.DestroyRenderPipeline(p.render)
	}
	if p.compute != nil {
		d.raw.DestroyComputePipeline(p.compute)
	}
	for _, m := range p.modules {
		d.raw.DestroyShaderModule(m)
	}
	if p.layout != nil {
		d.raw.DestroyPipelineLayout(p.layout)
	}
	for _, lh := range p.desc.ResourceLayouts {
		if d.layouts.InUse(lh.index()) {
			d.destroyResourceLayoutNow(lh)
		}
	}
	*p = pipeline{}
	d.pipelines.Release(h.index())
}
