// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"slices"

	"github.com/gogpu/gputypes"
)

// ExecutionBarrier orders work between two pipeline stages and transitions
// the listed resources to the usage the destination stage needs.
type ExecutionBarrier struct {
	Source      PipelineStage
	Destination PipelineStage
	Images      []TextureHandle
	Buffers     []BufferHandle
}

// NewBarrier returns a barrier from src to dst with no resources.
func NewBarrier(src, dst PipelineStage) ExecutionBarrier {
	return ExecutionBarrier{Source: src, Destination: dst}
}

// AddImage adds a texture to the barrier.
func (b ExecutionBarrier) AddImage(h TextureHandle) ExecutionBarrier {
	b.Images = append(slices.Clip(b.Images), h)
	return b
}

// AddBuffer adds a buffer to the barrier.
func (b ExecutionBarrier) AddBuffer(h BufferHandle) ExecutionBarrier {
	b.Buffers = append(slices.Clip(b.Buffers), h)
	return b
}

// TextureTransition is one texture usage change issued by a barrier.
type TextureTransition struct {
	Texture TextureHandle
	From    gputypes.TextureUsage
	To      gputypes.TextureUsage
}

// resolveBarrier computes the texture transitions a barrier needs and
// updates the tracked state of every listed resource. Textures already in
// the destination usage, or that cannot take it, produce no transition.
func (d *Device) resolveBarrier(b ExecutionBarrier) []TextureTransition {
	var transitions []TextureTransition
	to := b.Destination.textureUsage()
	for _, h := range b.Images {
		if !d.textures.InUse(h.index()) {
			slogger().Debug("gpu: barrier skips invalid texture", "texture", uint32(h))
			continue
		}
		t := d.textures.Access(h.index())
		if to == 0 || t.usage&to == 0 || t.state == to {
			continue
		}
		transitions = append(transitions, TextureTransition{Texture: h, From: t.state, To: to})
		t.state = to
	}
	// Buffers only record their stage; no backend transition is issued.
	for _, h := range b.Buffers {
		if d.buffers.InUse(h.index()) {
			buf := d.buffers.Access(h.index())
			buf.state = b.Destination
			buf.hasState = true
		}
	}
	return transitions
}

// TextureState returns the usage a texture was last transitioned to, or
// zero if no barrier has touched it since creation.
func (d *Device) TextureState(h TextureHandle) gputypes.TextureUsage {
	if !d.textures.InUse(h.index()) {
		return 0
	}
	return d.textures.Access(h.index()).state
}

// BufferState returns the stage a buffer was last transitioned to.
func (d *Device) BufferState(h BufferHandle) (PipelineStage, bool) {
	if !d.buffers.InUse(h.index()) {
		return 0, false
	}
	b := d.buffers.Access(h.index())
	return b.state, b.hasState
}
