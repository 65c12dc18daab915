// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"
)

// NewFrame begins recording a frame. It waits until the GPU has finished
// the frame that last used this ring slot, destroys resources whose grace
// period has passed and acquires the swapchain image.
func (d *Device) NewFrame() error {
	if d.closed {
		return ErrDeviceClosed
	}
	if v := d.frameValues[d.frameIndex]; v > 0 {
		ok, err := d.raw.Wait(d.fence, v, d.cfg.FenceTimeout)
		if err != nil {
			return fmt.Errorf("gpu: wait frame %d: %w", d.absoluteFrame, err)
		}
		if !ok {
			return ErrFenceTimeout
		}
	}
	for _, cb := range d.commandBuffers[d.frameIndex] {
		cb.recycle()
	}
	d.usedBuffers[d.frameIndex] = 0
	d.dynamicAllocated = 0
	d.flushDeletions(false)

	if d.cfg.Presenter != nil {
		view, err := d.cfg.Presenter.AcquireView()
		if err != nil {
			return fmt.Errorf("gpu: acquire swapchain image: %w", err)
		}
		d.swapchainView = view
	}
	return nil
}

// currentSwapchainView returns the view the swapchain pass renders into.
func (d *Device) currentSwapchainView() hal.TextureView {
	if d.cfg.Presenter != nil {
		return d.swapchainView
	}
	if t := d.SwapchainTexture(); t.IsValid() {
		return d.textures.Access(t.index()).view
	}
	return nil
}

// GetCommandBuffer returns a reset command buffer owned by the current
// frame. It stays valid until the same ring slot comes around again.
func (d *Device) GetCommandBuffer() *CommandBuffer {
	frame := d.frameIndex
	n := d.usedBuffers[frame]
	if n == len(d.commandBuffers[frame]) {
		d.commandBuffers[frame] = append(d.commandBuffers[frame], newCommandBuffer(d))
	}
	cb := d.commandBuffers[frame][n]
	d.usedBuffers[frame]++
	cb.reset()
	return cb
}

// QueueCommandBuffer queues a command buffer for submission by Present.
func (d *Device) QueueCommandBuffer(cb *CommandBuffer) {
	d.queued = append(d.queued, cb)
}

// Present uploads the frame's dynamic data, submits every queued command
// buffer in queue order, presents the swapchain image and advances to the
// next ring slot.
func (d *Device) Present() error {
	if d.closed {
		return ErrDeviceClosed
	}
	d.uploadDynamic()

	raws := make([]hal.CommandBuffer, 0, len(d.queued))
	var firstErr error
	for _, cb := range d.queued {
		raw, err := cb.finish()
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if raw != nil {
			raws = append(raws, raw)
		}
	}
	d.queued = d.queued[:0]

	d.fenceValue++
	if err := d.queue.Submit(raws, d.fence, d.fenceValue); err != nil {
		return fmt.Errorf("gpu: submit frame %d: %w", d.absoluteFrame, err)
	}
	d.frameValues[d.frameIndex] = d.fenceValue

	if d.cfg.Presenter != nil {
		if err := d.cfg.Presenter.Present(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gpu: present: %w", err)
		}
	}

	slogger().Debug("gpu: frame presented",
		"frame", d.absoluteFrame,
		"slot", d.frameIndex,
		"commandBuffers", len(raws),
		"dynamicBytes", d.dynamicAllocated)

	d.frameIndex = (d.frameIndex + 1) % d.cfg.FramesInFlight
	d.absoluteFrame++
	return firstErr
}
