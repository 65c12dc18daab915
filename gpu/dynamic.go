// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

func (d *Device) createDynamicBuffer() error {
	total := d.cfg.DynamicPerFrameSize * d.cfg.FramesInFlight
	h, err := d.CreateBuffer(BufferCreation{
		Name: "dynamic_ring",
		Size: total,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageVertex |
			gputypes.BufferUsageIndex | gputypes.BufferUsageStorage,
		Memory: MemoryStream,
	})
	if err != nil {
		return fmt.Errorf("gpu: create dynamic ring: %w", err)
	}
	d.dynamicBuffer = h
	d.dynamicShadow = make([]byte, d.cfg.DynamicPerFrameSize)
	return nil
}

// DynamicBuffer returns the ring buffer backing all dynamic buffers.
func (d *Device) DynamicBuffer() BufferHandle { return d.dynamicBuffer }

// DynamicAllocated returns the bytes allocated from the current frame's
// dynamic region.
func (d *Device) DynamicAllocated() uint32 { return d.dynamicAllocated }

// MapBuffer returns writable memory for a buffer region.
//
// For a dynamic buffer it allocates from the current frame's ring region:
// the buffer's offset becomes frame_index*per_frame_size plus the
// allocation offset, and no UnmapBuffer call is needed. Each call allocates
// again, so map a dynamic buffer once per frame before recording draws that
// use it. For other buffers it returns a staging slice that UnmapBuffer
// uploads.
func (d *Device) MapBuffer(p MapBufferParameters) ([]byte, error) {
	if !d.buffers.InUse(p.Buffer.index()) {
		return nil, fmt.Errorf("%w: buffer %d", ErrInvalidHandle, p.Buffer)
	}
	b := d.buffers.Access(p.Buffer.index())
	size := p.Size
	if size == 0 {
		size = b.desc.Size - min(p.Offset, b.desc.Size)
	}

	if b.desc.Parent.IsValid() {
		perFrame := d.cfg.DynamicPerFrameSize
		start := alignUp(d.dynamicAllocated, DynamicAlignment)
		if start < d.dynamicAllocated || start > perFrame || size > perFrame-start {
			return nil, fmt.Errorf("%w: %q needs %d bytes, %d left",
				ErrDynamicExhausted, b.desc.Name, size, perFrame-min(start, perFrame))
		}
		d.dynamicAllocated = start + size
		b.globalOffset = d.frameIndex*d.cfg.DynamicPerFrameSize + start
		return d.dynamicShadow[start : start+size : start+size], nil
	}

	if p.Offset > b.desc.Size || size > b.desc.Size-p.Offset {
		return nil, fmt.Errorf("%w: map %d+%d of %q exceeds size %d",
			ErrInvalidCreation, p.Offset, size, b.desc.Name, b.desc.Size)
	}
	if uint32(cap(b.staging)) < size { // #nosec G115 -- staging is bounded by a uint32 size
		b.staging = make([]byte, size)
	}
	b.staging = b.staging[:size]
	b.mapOffset = p.Offset
	b.mapped = true
	return b.staging, nil
}

// UnmapBuffer uploads a mapped staging region. It is a no-op for dynamic
// buffers.
func (d *Device) UnmapBuffer(h BufferHandle) error {
	if !d.buffers.InUse(h.index()) {
		return fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	b := d.buffers.Access(h.index())
	if b.desc.Parent.IsValid() {
		return nil
	}
	if !b.mapped {
		return fmt.Errorf("%w: %q", ErrNotMapped, b.desc.Name)
	}
	d.queue.WriteBuffer(b.raw, uint64(b.mapOffset), padTo4(b.staging))
	b.mapped = false
	return nil
}

// DynamicOffset returns the ring offset a dynamic buffer was last mapped at.
func (d *Device) DynamicOffset(h BufferHandle) uint32 {
	if !d.buffers.InUse(h.index()) {
		return 0
	}
	return d.buffers.Access(h.index()).globalOffset
}

// uploadDynamic copies the current frame's dynamic region to the ring.
func (d *Device) uploadDynamic() {
	if d.dynamicAllocated == 0 || !d.dynamicBuffer.IsValid() {
		return
	}
	ring := d.buffers.Access(d.dynamicBuffer.index())
	n := alignUp(d.dynamicAllocated, 4)
	d.queue.WriteBuffer(ring.raw, uint64(d.frameIndex*d.cfg.DynamicPerFrameSize), d.dynamicShadow[:n])
}
