// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/gputypes"
)

// CreateRenderPass creates an attachment set. Geometry passes need at least
// one color output or a depth-stencil texture; every attachment must be a
// render target and all attachments must share one size. Compute passes
// take no attachments.
func (d *Device) CreateRenderPass(c RenderPassCreation) (RenderPassHandle, error) {
	if d.closed {
		return InvalidRenderPass, ErrDeviceClosed
	}
	desc := RenderPassDescription{
		Name:         c.Name,
		Type:         c.Type,
		Outputs:      slices.Clone(c.Outputs),
		DepthStencil: c.DepthStencil,
	}
	switch c.Type {
	case PassCompute:
		desc.Outputs = nil
		desc.DepthStencil = InvalidTexture
	case PassSwapchain:
		return d.createSwapchainPass(c)
	default:
		if err := d.fillPassOutput(&desc, c); err != nil {
			return InvalidRenderPass, err
		}
	}
	return d.storePass(desc, false)
}

func (d *Device) fillPassOutput(desc *RenderPassDescription, c RenderPassCreation) error {
	if len(c.Outputs) == 0 && !c.DepthStencil.IsValid() {
		return fmt.Errorf("%w: render pass %q has no attachments", ErrInvalidCreation, c.Name)
	}
	out := RenderPassOutput{
		SampleCount: 1,
		ColorOp:     c.ColorOp,
		DepthOp:     c.DepthOp,
		StencilOp:   c.StencilOp,
	}
	setSize := func(t *TextureDescription) error {
		if desc.Width == 0 {
			desc.Width, desc.Height = t.Width, t.Height
			return nil
		}
		if desc.Width != t.Width || desc.Height != t.Height {
			return fmt.Errorf("%w: render pass %q attachment %q is %dx%d, want %dx%d",
				ErrInvalidCreation, c.Name, t.Name, t.Width, t.Height, desc.Width, desc.Height)
		}
		return nil
	}
	for _, h := range c.Outputs {
		if !d.textures.InUse(h.index()) {
			return fmt.Errorf("%w: render pass %q output %d", ErrInvalidHandle, c.Name, h)
		}
		t := &d.textures.Access(h.index()).desc
		if !t.IsRenderTarget() || t.IsDepth() {
			return fmt.Errorf("%w: render pass %q output %q is not a color render target",
				ErrInvalidCreation, c.Name, t.Name)
		}
		if err := setSize(t); err != nil {
			return err
		}
		out.Colors = append(out.Colors, t.Format)
	}
	if c.DepthStencil.IsValid() {
		if !d.textures.InUse(c.DepthStencil.index()) {
			return fmt.Errorf("%w: render pass %q depth %d", ErrInvalidHandle, c.Name, c.DepthStencil)
		}
		t := &d.textures.Access(c.DepthStencil.index()).desc
		if !t.IsDepth() {
			return fmt.Errorf("%w: render pass %q depth %q has no depth format",
				ErrInvalidCreation, c.Name, t.Name)
		}
		if err := setSize(t); err != nil {
			return err
		}
		out.Depth = t.Format
	}
	desc.Output = out
	return nil
}

func (d *Device) storePass(desc RenderPassDescription, swapchain bool) (RenderPassHandle, error) {
	i := d.passes.Obtain()
	if i == pool.InvalidIndex {
		return InvalidRenderPass, fmt.Errorf("%w: render passes (capacity %d)", ErrPoolExhausted, d.passes.Capacity())
	}
	h := renderPassHandle(i)
	desc.Handle = h
	*d.passes.Access(i) = renderPass{desc: desc, swapchain: swapchain}
	return h, nil
}

// QueryRenderPass returns the description of a live render pass.
func (d *Device) QueryRenderPass(h RenderPassHandle) (RenderPassDescription, error) {
	if !d.passes.InUse(h.index()) {
		return RenderPassDescription{}, fmt.Errorf("%w: render pass %d", ErrInvalidHandle, h)
	}
	return d.passes.Access(h.index()).desc, nil
}

// DestroyRenderPass schedules a render pass for destruction. The device's
// own swapchain pass is never destroyed this way.
func (d *Device) DestroyRenderPass(h RenderPassHandle) {
	if h == d.swapchainPass {
		return
	}
	d.scheduleDeletion(kindRenderPass, h.index(), d.passes.InUse(h.index()))
}

// --------------------------------------------------------------------------
// Swapchain
// --------------------------------------------------------------------------

func (d *Device) swapchainOutput(c RenderPassCreation) RenderPassOutput {
	return RenderPassOutput{
		Colors:      []gputypes.TextureFormat{d.cfg.SwapchainFormat},
		Depth:       d.cfg.DepthFormat,
		SampleCount: 1,
		ColorOp:     c.ColorOp,
		DepthOp:     c.DepthOp,
		StencilOp:   c.StencilOp,
	}
}

// createSwapchainPass creates a pass that renders into the swapchain image
// with its own load operations.
func (d *Device) createSwapchainPass(c RenderPassCreation) (RenderPassHandle, error) {
	desc := RenderPassDescription{
		Name:         c.Name,
		Type:         PassSwapchain,
		DepthStencil: d.swapchainDepth,
		Output:       d.swapchainOutput(c),
		Width:        d.width,
		Height:       d.height,
	}
	return d.storePass(desc, true)
}

func (d *Device) createSwapchain() error {
	if d.cfg.Presenter == nil {
		d.swapchainTextures = make([]TextureHandle, 0, d.cfg.FramesInFlight)
		for i := range d.cfg.FramesInFlight {
			h, err := d.CreateTexture(TextureCreation{
				Name:   fmt.Sprintf("swapchain_%d", i),
				Width:  d.width,
				Height: d.height,
				Format: d.cfg.SwapchainFormat,
				Flags:  TextureRenderTarget,
			})
			if err != nil {
				return fmt.Errorf("gpu: create swapchain: %w", err)
			}
			d.swapchainTextures = append(d.swapchainTextures, h)
		}
	}
	if d.cfg.DepthFormat != gputypes.TextureFormatUndefined {
		h, err := d.CreateTexture(TextureCreation{
			Name:   "swapchain_depth",
			Width:  d.width,
			Height: d.height,
			Format: d.cfg.DepthFormat,
			Flags:  TextureRenderTarget,
		})
		if err != nil {
			return fmt.Errorf("gpu: create swapchain depth: %w", err)
		}
		d.swapchainDepth = h
	}
	pass, err := d.createSwapchainPass(RenderPassCreation{
		Name:      "swapchain",
		ColorOp:   OpClear,
		DepthOp:   OpClear,
		StencilOp: OpClear,
	})
	if err != nil {
		return err
	}
	d.swapchainPass = pass
	return nil
}

// SwapchainPass returns the device's swapchain render pass.
func (d *Device) SwapchainPass() RenderPassHandle { return d.swapchainPass }

// SwapchainOutput returns the attachment signature of the swapchain pass.
func (d *Device) SwapchainOutput() RenderPassOutput {
	return d.passes.Access(d.swapchainPass.index()).desc.Output
}

// SwapchainTexture returns the offscreen texture backing the current
// swapchain image, or InvalidTexture when a Presenter supplies images.
func (d *Device) SwapchainTexture() TextureHandle {
	if len(d.swapchainTextures) == 0 {
		return InvalidTexture
	}
	return d.swapchainTextures[d.frameIndex%uint32(len(d.swapchainTextures))] // #nosec G115 -- bounded by MaxFramesInFlight
}

// Resize resizes the swapchain and every swapchain pass.
func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero swapchain size", ErrInvalidCreation)
	}
	if width == d.width && height == d.height {
		return nil
	}
	if err := d.WaitIdle(); err != nil {
		return err
	}
	if d.cfg.Presenter != nil {
		if err := d.cfg.Presenter.Resize(width, height); err != nil {
			return fmt.Errorf("gpu: resize surface: %w", err)
		}
	}
	for _, h := range d.swapchainTextures {
		if err := d.ResizeTexture(h, width, height); err != nil {
			return err
		}
	}
	if d.swapchainDepth.IsValid() {
		if err := d.ResizeTexture(d.swapchainDepth, width, height); err != nil {
			return err
		}
	}
	d.width, d.height = width, height
	d.passes.Each(func(_ pool.Index, p *renderPass) bool {
		if p.swapchain {
			p.desc.Width, p.desc.Height = width, height
		}
		return true
	})
	slogger().Info("gpu: swapchain resized", "width", width, "height", height)
	return nil
}
