// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// CommandBuffer records GPU commands for one frame.
//
// Every command is stamped with the current sort key, which then advances
// by one. In immediate mode (the default) each command is issued to the
// backend as it is recorded. In deferred mode commands are only recorded
// and are replayed in stable sort-key order when the device submits the
// buffer.
//
// Recording rules are enforced when recording: drawing outside a graphics
// pass or dispatching outside a compute pass panics.
type CommandBuffer struct {
	device   *Device
	deferred bool

	commands []RecordedCommand
	sortKey  uint64

	// recording state
	boundPass     RenderPassHandle
	boundKind     RenderPassType
	boundPipeline PipelineHandle
	markerDepth   int

	// execution state
	encoder      hal.CommandEncoder
	encoding     bool
	renderPass   hal.RenderPassEncoder
	computePass  hal.ComputePassEncoder
	pipelines    []PipelineHandle
	clearColor   gputypes.Color
	clearDepth   float32
	clearStencil uint32
	execErr      error

	// submitted is the backend buffer from the last submission of this
	// command buffer; it is freed when the frame slot is reused.
	submitted hal.CommandBuffer
}

func newCommandBuffer(d *Device) *CommandBuffer {
	return &CommandBuffer{
		device:   d,
		deferred: d.cfg.DeferredCommands,
	}
}

// reset clears recorded commands and state for a new frame.
func (cb *CommandBuffer) reset() {
	cb.commands = cb.commands[:0]
	cb.sortKey = 0
	cb.boundPass = InvalidRenderPass
	cb.boundPipeline = InvalidPipeline
	cb.markerDepth = 0
	cb.renderPass = nil
	cb.computePass = nil
	cb.encoder = nil
	cb.encoding = false
	cb.clearColor = gputypes.Color{R: 0, G: 0, B: 0, A: 1}
	cb.clearDepth = 1
	cb.clearStencil = 0
	cb.execErr = nil
}

// recycle frees the backend buffer of the previous submission.
func (cb *CommandBuffer) recycle() {
	if cb.submitted != nil {
		cb.device.raw.FreeCommandBuffer(cb.submitted)
		cb.submitted = nil
	}
}

// release discards all backend state; used when the device closes.
func (cb *CommandBuffer) release() {
	if cb.encoding {
		cb.encoder.DiscardEncoding()
		cb.encoding = false
	}
	cb.recycle()
}

// Deferred reports whether the buffer replays commands at submission.
func (cb *CommandBuffer) Deferred() bool { return cb.deferred }

// SetSortKey sets the key stamped on the next recorded command.
func (cb *CommandBuffer) SetSortKey(key uint64) { cb.sortKey = key }

// SortKey returns the key the next recorded command will get.
func (cb *CommandBuffer) SortKey() uint64 { return cb.sortKey }

// Commands returns the recorded commands. In deferred mode the slice is in
// replay order after submission.
func (cb *CommandBuffer) Commands() []RecordedCommand { return cb.commands }

// CurrentPass returns the pass that is bound, or InvalidRenderPass.
func (cb *CommandBuffer) CurrentPass() RenderPassHandle { return cb.boundPass }

func (cb *CommandBuffer) record(c Command) {
	cb.commands = append(cb.commands, RecordedCommand{Key: cb.sortKey, Command: c})
	cb.sortKey++
	if !cb.deferred {
		cb.execute(c)
	}
}

// --------------------------------------------------------------------------
// Passes and barriers
// --------------------------------------------------------------------------

// BindPass makes h the current pass. Binding the pass that is already bound
// records nothing. Switching passes first ends the bound pass; an end
// command is recorded only for graphics passes, compute passes close
// implicitly.
func (cb *CommandBuffer) BindPass(h RenderPassHandle) {
	if h == cb.boundPass {
		return
	}
	if !cb.device.passes.InUse(h.index()) {
		panic(fmt.Sprintf("gpu: BindPass with invalid render pass %d", h))
	}
	if cb.boundPass.IsValid() {
		cb.endPass()
	}
	kind := cb.device.passes.Access(h.index()).desc.Type
	cb.boundPass = h
	cb.boundKind = kind
	cb.boundPipeline = InvalidPipeline
	cb.record(BindPassCommand{Pass: h, Kind: kind})
}

// EndPass ends the bound pass, if any.
func (cb *CommandBuffer) EndPass() {
	if cb.boundPass.IsValid() {
		cb.endPass()
	}
}

func (cb *CommandBuffer) endPass() {
	if cb.boundKind != PassCompute {
		cb.record(EndPassCommand{Pass: cb.boundPass, Kind: cb.boundKind})
	}
	cb.boundPass = InvalidRenderPass
	cb.boundPipeline = InvalidPipeline
}

// Barrier records an execution barrier. A bound pass is ended first since
// transitions cannot happen inside a pass. The barrier command is always
// recorded; transitions are issued only for textures whose tracked usage
// differs from the destination stage's usage.
func (cb *CommandBuffer) Barrier(b ExecutionBarrier) {
	if cb.boundPass.IsValid() {
		cb.endPass()
	}
	transitions := cb.device.resolveBarrier(b)
	cb.record(BarrierCommand{Barrier: b, Transitions: transitions})
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// BindPipeline binds a pipeline in the current pass. A compute pipeline
// needs a compute pass and a render pipeline needs a graphics pass.
func (cb *CommandBuffer) BindPipeline(h PipelineHandle) {
	if !cb.device.pipelines.InUse(h.index()) {
		panic(fmt.Sprintf("gpu: BindPipeline with invalid pipeline %d", h))
	}
	p := cb.device.pipelines.Access(h.index())
	cb.requirePass("BindPipeline", p.desc.Compute)
	cb.boundPipeline = h
	cb.record(BindPipelineCommand{Pipeline: h})
}

// BindResourceList binds resource lists starting at group firstSet. When
// offsets is empty the current ring offsets of the lists' dynamic buffers
// are used.
func (cb *CommandBuffer) BindResourceList(firstSet uint32, lists []ResourceListHandle, offsets []uint32) {
	if !cb.boundPass.IsValid() {
		panic("gpu: BindResourceList outside a pass")
	}
	if len(offsets) == 0 {
		for _, h := range lists {
			if !cb.device.lists.InUse(h.index()) {
				panic(fmt.Sprintf("gpu: BindResourceList with invalid list %d", h))
			}
			for _, buf := range cb.device.lists.Access(h.index()).dynamic {
				offsets = append(offsets, cb.device.DynamicOffset(buf))
			}
		}
	}
	cb.record(BindResourceListCommand{
		FirstSet:       firstSet,
		Lists:          slices.Clone(lists),
		DynamicOffsets: slices.Clone(offsets),
	})
}

// BindVertexBuffer binds a vertex buffer. Dynamic buffers are bound at
// their current ring offset plus offset.
func (cb *CommandBuffer) BindVertexBuffer(h BufferHandle, slot uint32, offset uint64) {
	cb.requirePass("BindVertexBuffer", false)
	cb.record(BindVertexBufferCommand{Buffer: h, Slot: slot, Offset: cb.bufferOffset(h, offset)})
}

// BindIndexBuffer binds an index buffer.
func (cb *CommandBuffer) BindIndexBuffer(h BufferHandle, format gputypes.IndexFormat, offset uint64) {
	cb.requirePass("BindIndexBuffer", false)
	cb.record(BindIndexBufferCommand{Buffer: h, Format: format, Offset: cb.bufferOffset(h, offset)})
}

func (cb *CommandBuffer) bufferOffset(h BufferHandle, offset uint64) uint64 {
	if !cb.device.buffers.InUse(h.index()) {
		panic(fmt.Sprintf("gpu: invalid buffer %d", h))
	}
	b := cb.device.buffers.Access(h.index())
	if b.desc.Parent.IsValid() {
		return offset + uint64(b.globalOffset)
	}
	return offset
}

// SetViewport sets the viewport of the current graphics pass.
func (cb *CommandBuffer) SetViewport(v Viewport) {
	cb.requirePass("SetViewport", false)
	cb.record(SetViewportCommand{Viewport: v})
}

// SetScissor sets the scissor rectangle of the current graphics pass.
func (cb *CommandBuffer) SetScissor(r Rect) {
	cb.requirePass("SetScissor", false)
	cb.record(SetScissorCommand{Rect: r})
}

// Clear sets the color the next bound pass clears to.
func (cb *CommandBuffer) Clear(r, g, b, a float64) {
	cb.record(ClearCommand{Color: gputypes.Color{R: r, G: g, B: b, A: a}})
}

// ClearDepthStencil sets the depth and stencil values the next bound pass
// clears to.
func (cb *CommandBuffer) ClearDepthStencil(depth float32, stencil uint32) {
	cb.record(ClearDepthStencilCommand{Depth: depth, Stencil: stencil})
}

// --------------------------------------------------------------------------
// Work
// --------------------------------------------------------------------------

// Draw draws non-indexed primitives.
func (cb *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb.requirePass("Draw", false)
	cb.record(DrawCommand{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// DrawIndexed draws indexed primitives.
func (cb *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	cb.requirePass("DrawIndexed", false)
	cb.record(DrawIndexedCommand{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		VertexOffset:  vertexOffset,
		FirstInstance: firstInstance,
	})
}

// DrawIndirect issues count draws with arguments read from buffer at
// offset, stride bytes apart.
func (cb *CommandBuffer) DrawIndirect(h BufferHandle, offset uint64, count, stride uint32) {
	cb.requirePass("DrawIndirect", false)
	cb.record(DrawIndirectCommand{Buffer: h, Offset: cb.bufferOffset(h, offset), Count: count, Stride: stride})
}

// DrawIndexedIndirect is DrawIndirect for indexed draws.
func (cb *CommandBuffer) DrawIndexedIndirect(h BufferHandle, offset uint64, count, stride uint32) {
	cb.requirePass("DrawIndexedIndirect", false)
	cb.record(DrawIndirectCommand{Buffer: h, Offset: cb.bufferOffset(h, offset), Count: count, Stride: stride, Indexed: true})
}

// Dispatch dispatches compute workgroups.
func (cb *CommandBuffer) Dispatch(x, y, z uint32) {
	cb.requirePass("Dispatch", true)
	cb.record(DispatchCommand{X: x, Y: y, Z: z})
}

// DispatchIndirect dispatches with workgroup counts read from a buffer.
func (cb *CommandBuffer) DispatchIndirect(h BufferHandle, offset uint64) {
	cb.requirePass("DispatchIndirect", true)
	cb.record(DispatchIndirectCommand{Buffer: h, Offset: cb.bufferOffset(h, offset)})
}

// PushMarker opens a named debug region.
func (cb *CommandBuffer) PushMarker(name string) {
	cb.markerDepth++
	cb.record(PushMarkerCommand{Name: name})
}

// PopMarker closes the innermost debug region.
func (cb *CommandBuffer) PopMarker() {
	if cb.markerDepth == 0 {
		panic("gpu: PopMarker without PushMarker")
	}
	cb.markerDepth--
	cb.record(PopMarkerCommand{})
}

func (cb *CommandBuffer) requirePass(op string, compute bool) {
	if !cb.boundPass.IsValid() {
		panic("gpu: " + op + " outside a pass")
	}
	if compute && cb.boundKind != PassCompute {
		panic(fmt.Sprintf("gpu: %s in %s pass", op, cb.boundKind))
	}
	if !compute && cb.boundKind == PassCompute {
		panic(fmt.Sprintf("gpu: %s in compute pass", op))
	}
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

func (cb *CommandBuffer) ensureEncoding() bool {
	if cb.encoding {
		return true
	}
	if cb.execErr != nil {
		return false
	}
	enc, err := cb.device.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame_encoder"})
	if err != nil {
		cb.execErr = fmt.Errorf("gpu: create command encoder: %w", err)
		return false
	}
	if err := enc.BeginEncoding("frame"); err != nil {
		cb.execErr = fmt.Errorf("gpu: begin encoding: %w", err)
		return false
	}
	cb.encoder = enc
	cb.encoding = true
	return true
}

// closeCompute ends an open compute pass before encoder-level work.
func (cb *CommandBuffer) closeCompute() {
	if cb.computePass != nil {
		cb.computePass.End()
		cb.computePass = nil
	}
}

func (cb *CommandBuffer) execute(c Command) {
	d := cb.device
	switch c := c.(type) {
	case BindPassCommand:
		cb.closeCompute()
		if cb.renderPass != nil {
			cb.renderPass.End()
			cb.renderPass = nil
		}
		if !cb.ensureEncoding() {
			return
		}
		cb.beginPass(c.Pass)

	case EndPassCommand:
		if cb.renderPass != nil {
			cb.renderPass.End()
			cb.renderPass = nil
		}

	case BarrierCommand:
		cb.closeCompute()
		if len(c.Transitions) == 0 || !cb.ensureEncoding() {
			return
		}
		barriers := make([]hal.TextureBarrier, 0, len(c.Transitions))
		for _, t := range c.Transitions {
			if !d.textures.InUse(t.Texture.index()) {
				continue
			}
			barriers = append(barriers, hal.TextureBarrier{
				Texture: d.textures.Access(t.Texture.index()).raw,
				Usage: hal.TextureUsageTransition{
					OldUsage: t.From,
					NewUsage: t.To,
				},
			})
		}
		cb.encoder.TransitionTextures(barriers)

	case BindPipelineCommand:
		p := d.pipelines.Access(c.Pipeline.index())
		switch {
		case cb.computePass != nil && p.compute != nil:
			cb.computePass.SetPipeline(p.compute)
		case cb.renderPass != nil && p.render != nil:
			cb.renderPass.SetPipeline(p.render)
		}

	case BindResourceListCommand:
		offsets := c.DynamicOffsets
		for i, h := range c.Lists {
			l := d.lists.Access(h.index())
			if l == nil || l.raw == nil {
				continue
			}
			n := min(len(l.dynamic), len(offsets))
			group := c.FirstSet + uint32(i) // #nosec G115 -- bind group count is small
			var dyn []uint32
			if n > 0 {
				dyn, offsets = offsets[:n], offsets[n:]
			}
			if cb.computePass != nil {
				cb.computePass.SetBindGroup(group, l.raw, dyn)
			} else if cb.renderPass != nil {
				cb.renderPass.SetBindGroup(group, l.raw, dyn)
			}
		}

	case BindVertexBufferCommand:
		if raw := cb.rawBuffer(c.Buffer); raw != nil && cb.renderPass != nil {
			cb.renderPass.SetVertexBuffer(c.Slot, raw, c.Offset)
		}

	case BindIndexBufferCommand:
		if raw := cb.rawBuffer(c.Buffer); raw != nil && cb.renderPass != nil {
			cb.renderPass.SetIndexBuffer(raw, c.Format, c.Offset)
		}

	case SetViewportCommand:
		if cb.renderPass != nil {
			v := c.Viewport
			cb.renderPass.SetViewport(float32(v.X), float32(v.Y), float32(v.Width), float32(v.Height), v.MinDepth, v.MaxDepth)
		}

	case SetScissorCommand:
		if cb.renderPass != nil {
			cb.renderPass.SetScissorRect(c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height)
		}

	case ClearCommand:
		cb.clearColor = c.Color

	case ClearDepthStencilCommand:
		cb.clearDepth = c.Depth
		cb.clearStencil = c.Stencil

	case DrawCommand:
		if cb.renderPass != nil {
			cb.renderPass.Draw(c.VertexCount, c.InstanceCount, c.FirstVertex, c.FirstInstance)
		}

	case DrawIndexedCommand:
		if cb.renderPass != nil {
			cb.renderPass.DrawIndexed(c.IndexCount, c.InstanceCount, c.FirstIndex, c.VertexOffset, c.FirstInstance)
		}

	case DrawIndirectCommand:
		raw := cb.rawBuffer(c.Buffer)
		if raw == nil || cb.renderPass == nil {
			return
		}
		for i := range c.Count {
			offset := c.Offset + uint64(i)*uint64(c.Stride)
			if c.Indexed {
				cb.renderPass.DrawIndexedIndirect(raw, offset)
			} else {
				cb.renderPass.DrawIndirect(raw, offset)
			}
		}

	case DispatchCommand:
		if cb.computePass != nil {
			cb.computePass.Dispatch(c.X, c.Y, c.Z)
		}

	case DispatchIndirectCommand:
		if raw := cb.rawBuffer(c.Buffer); raw != nil && cb.computePass != nil {
			cb.computePass.DispatchIndirect(raw, c.Offset)
		}

	case PushMarkerCommand, PopMarkerCommand:
		// Markers are kept in the command log only.
	}
}

// rawBuffer returns the backend buffer for h, resolving dynamic buffers to
// the ring.
func (cb *CommandBuffer) rawBuffer(h BufferHandle) hal.Buffer {
	d := cb.device
	if !d.buffers.InUse(h.index()) {
		return nil
	}
	b := d.buffers.Access(h.index())
	if b.desc.Parent.IsValid() {
		return d.buffers.Access(b.desc.Parent.index()).raw
	}
	return b.raw
}

func (cb *CommandBuffer) beginPass(h RenderPassHandle) {
	d := cb.device
	p := d.passes.Access(h.index())
	if p.desc.Type == PassCompute {
		cb.computePass = cb.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: p.desc.Name})
		return
	}

	out := p.desc.Output
	desc := &hal.RenderPassDescriptor{Label: p.desc.Name}
	color := func(view hal.TextureView) hal.RenderPassColorAttachment {
		return hal.RenderPassColorAttachment{
			View:       view,
			LoadOp:     out.ColorOp.loadOp(),
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: cb.clearColor,
		}
	}
	if p.swapchain {
		if view := d.currentSwapchainView(); view != nil {
			desc.ColorAttachments = append(desc.ColorAttachments, color(view))
		}
	} else {
		for _, t := range p.desc.Outputs {
			if tex := d.textures.Access(t.index()); tex != nil && tex.view != nil {
				desc.ColorAttachments = append(desc.ColorAttachments, color(tex.view))
			}
		}
	}
	if p.desc.DepthStencil.IsValid() && d.textures.InUse(p.desc.DepthStencil.index()) {
		depth := d.textures.Access(p.desc.DepthStencil.index())
		att := &hal.RenderPassDepthStencilAttachment{
			View:            depth.view,
			DepthLoadOp:     out.DepthOp.loadOp(),
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: cb.clearDepth,
		}
		if hasStencil(depth.desc.Format) {
			att.StencilLoadOp = out.StencilOp.loadOp()
			att.StencilStoreOp = gputypes.StoreOpStore
			att.StencilClearValue = cb.clearStencil
		}
		desc.DepthStencilAttachment = att
	}
	cb.renderPass = cb.encoder.BeginRenderPass(desc)
}

// finish ends recording, replays deferred commands and returns the
// backend command buffer, or nil if nothing needed encoding.
func (cb *CommandBuffer) finish() (hal.CommandBuffer, error) {
	if cb.boundPass.IsValid() {
		cb.endPass()
	}
	if cb.deferred {
		slices.SortStableFunc(cb.commands, func(a, b RecordedCommand) int {
			switch {
			case a.Key < b.Key:
				return -1
			case a.Key > b.Key:
				return 1
			}
			return 0
		})
		for _, rc := range cb.commands {
			cb.execute(rc.Command)
		}
	}
	if cb.renderPass != nil {
		cb.renderPass.End()
		cb.renderPass = nil
	}
	cb.closeCompute()
	if !cb.encoding {
		return nil, cb.execErr
	}
	cb.encoding = false
	raw, err := cb.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("gpu: end encoding: %w", err)
	}
	cb.submitted = raw
	return raw, cb.execErr
}
