// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// --------------------------------------------------------------------------
// Buffers
// --------------------------------------------------------------------------

// CreateBuffer creates a buffer. Dynamic buffers get no device memory of
// their own; they are views into the per-frame ring.
func (d *Device) CreateBuffer(c BufferCreation) (BufferHandle, error) {
	if d.closed {
		return InvalidBuffer, ErrDeviceClosed
	}
	if c.Size == 0 {
		return InvalidBuffer, fmt.Errorf("%w: buffer %q has zero size", ErrInvalidCreation, c.Name)
	}
	i := d.buffers.Obtain()
	if i == pool.InvalidIndex {
		return InvalidBuffer, fmt.Errorf("%w: buffers (capacity %d)", ErrPoolExhausted, d.buffers.Capacity())
	}
	h := bufferHandle(i)
	b := d.buffers.Access(i)
	*b = buffer{desc: BufferDescription{
		Name:   c.Name,
		Size:   c.Size,
		Usage:  c.Usage,
		Memory: c.Memory,
		Parent: InvalidBuffer,
		Handle: h,
	}}

	if c.Memory == MemoryDynamic && d.dynamicBuffer.IsValid() {
		b.desc.Parent = d.dynamicBuffer
		if len(c.InitialData) > 0 {
			slogger().Warn("gpu: initial data ignored for dynamic buffer", "buffer", c.Name)
		}
		return h, nil
	}

	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: c.Name,
		Size:  uint64(alignUp(c.Size, 4)),
		Usage: c.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		d.buffers.Release(i)
		return InvalidBuffer, fmt.Errorf("gpu: create buffer %q: %w", c.Name, err)
	}
	b.raw = raw
	if len(c.InitialData) > 0 {
		d.queue.WriteBuffer(raw, 0, padTo4(c.InitialData))
	}
	return h, nil
}

// QueryBuffer returns the description of a live buffer.
func (d *Device) QueryBuffer(h BufferHandle) (BufferDescription, error) {
	if !d.buffers.InUse(h.index()) {
		return BufferDescription{}, fmt.Errorf("%w: buffer %d", ErrInvalidHandle, h)
	}
	return d.buffers.Access(h.index()).desc, nil
}

// DestroyBuffer schedules a buffer for destruction.
func (d *Device) DestroyBuffer(h BufferHandle) {
	d.scheduleDeletion(kindBuffer, h.index(), d.buffers.InUse(h.index()))
}

func (d *Device) destroyBufferNow(h BufferHandle) {
	b := d.buffers.Access(h.index())
	if b.raw != nil {
		d.raw.DestroyBuffer(b.raw)
	}
	*b = buffer{}
	d.buffers.Release(h.index())
}

// --------------------------------------------------------------------------
// Textures
// --------------------------------------------------------------------------

// CreateTexture creates a texture and its default view. InitialData may
// hold mip level 0 or a tightly packed mip chain.
func (d *Device) CreateTexture(c TextureCreation) (TextureHandle, error) {
	if d.closed {
		return InvalidTexture, ErrDeviceClosed
	}
	if c.Width == 0 || c.Height == 0 {
		return InvalidTexture, fmt.Errorf("%w: texture %q has zero size", ErrInvalidCreation, c.Name)
	}
	i := d.textures.Obtain()
	if i == pool.InvalidIndex {
		return InvalidTexture, fmt.Errorf("%w: textures (capacity %d)", ErrPoolExhausted, d.textures.Capacity())
	}
	h := textureHandle(i)
	t := d.textures.Access(i)
	*t = texture{desc: TextureDescription{
		Name:      c.Name,
		Width:     c.Width,
		Height:    c.Height,
		Depth:     max(c.Depth, 1),
		MipLevels: max(c.MipLevels, 1),
		Format:    c.Format,
		Type:      c.Type,
		Flags:     c.Flags,
		Handle:    h,
	}}
	if err := d.createTextureObjects(t); err != nil {
		*t = texture{}
		d.textures.Release(i)
		return InvalidTexture, err
	}
	if len(c.InitialData) > 0 {
		d.uploadTexture(t, c.InitialData)
	}
	return h, nil
}

func (d *Device) createTextureObjects(t *texture) error {
	desc := &t.desc
	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc
	if desc.IsRenderTarget() {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	if desc.Flags&TextureCompute != 0 {
		usage |= gputypes.TextureUsageStorageBinding
	}
	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Name,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: desc.Depth},
		MipLevelCount: desc.MipLevels,
		SampleCount:   1,
		Dimension:     desc.Type.dimension(),
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return fmt.Errorf("gpu: create texture %q: %w", desc.Name, err)
	}
	view, err := d.raw.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:         desc.Name + "_view",
		Format:        desc.Format,
		Dimension:     desc.Type.viewDimension(),
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: desc.MipLevels,
	})
	if err != nil {
		d.raw.DestroyTexture(raw)
		return fmt.Errorf("gpu: create texture view %q: %w", desc.Name, err)
	}
	t.raw = raw
	t.view = view
	t.usage = usage
	t.state = 0
	return nil
}

// uploadTexture writes data into consecutive mip levels until it runs out.
func (d *Device) uploadTexture(t *texture, data []byte) {
	bpp := bytesPerPixel(t.desc.Format)
	w, h := t.desc.Width, t.desc.Height
	for level := uint32(0); level < t.desc.MipLevels; level++ {
		size := int(w * h * t.desc.Depth * bpp)
		if len(data) < size {
			if level == 0 {
				slogger().Warn("gpu: texture data too small",
					"texture", t.desc.Name, "have", len(data), "want", size)
			}
			return
		}
		d.queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: t.raw, MipLevel: level},
			data[:size],
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * bpp, RowsPerImage: h},
			&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: t.desc.Depth},
		)
		data = data[size:]
		w, h = max(w/2, 1), max(h/2, 1)
	}
}

// UploadTexture replaces the contents of a texture starting at mip level 0.
func (d *Device) UploadTexture(h TextureHandle, data []byte) error {
	if !d.textures.InUse(h.index()) {
		return fmt.Errorf("%w: texture %d", ErrInvalidHandle, h)
	}
	d.uploadTexture(d.textures.Access(h.index()), data)
	return nil
}

// QueryTexture returns the description of a live texture.
func (d *Device) QueryTexture(h TextureHandle) (TextureDescription, error) {
	if !d.textures.InUse(h.index()) {
		return TextureDescription{}, fmt.Errorf("%w: texture %d", ErrInvalidHandle, h)
	}
	return d.textures.Access(h.index()).desc, nil
}

// ResizeTexture recreates a texture's device objects at a new size. The
// handle stays valid. The device waits for idle first since in-flight
// frames may still sample the old texture.
func (d *Device) ResizeTexture(h TextureHandle, width, height uint32) error {
	if !d.textures.InUse(h.index()) {
		return fmt.Errorf("%w: texture %d", ErrInvalidHandle, h)
	}
	if width == 0 || height == 0 {
		return fmt.Errorf("%w: zero texture size", ErrInvalidCreation)
	}
	t := d.textures.Access(h.index())
	if t.desc.Width == width && t.desc.Height == height {
		return nil
	}
	if err := d.WaitIdle(); err != nil {
		return err
	}
	d.destroyTextureObjects(t)
	t.desc.Width, t.desc.Height = width, height
	return d.createTextureObjects(t)
}

// DestroyTexture schedules a texture for destruction.
func (d *Device) DestroyTexture(h TextureHandle) {
	d.scheduleDeletion(kindTexture, h.index(), d.textures.InUse(h.index()))
}

func (d *Device) destroyTextureObjects(t *texture) {
	if t.view != nil {
		d.raw.DestroyTextureView(t.view)
		t.view = nil
	}
	if t.raw != nil {
		d.raw.DestroyTexture(t.raw)
		t.raw = nil
	}
}

func (d *Device) destroyTextureNow(h TextureHandle) {
	t := d.textures.Access(h.index())
	d.destroyTextureObjects(t)
	*t = texture{}
	d.textures.Release(h.index())
}

// --------------------------------------------------------------------------
// Samplers
// --------------------------------------------------------------------------

// DefaultSamplerCreation returns a linear, clamp-to-edge sampler creation.
func DefaultSamplerCreation(name string) SamplerCreation {
	return SamplerCreation{
		Name:      name,
		MinFilter: gputypes.FilterModeLinear,
		MagFilter: gputypes.FilterModeLinear,
		MipFilter: gputypes.FilterModeLinear,
		AddressU:  gputypes.AddressModeClampToEdge,
		AddressV:  gputypes.AddressModeClampToEdge,
		AddressW:  gputypes.AddressModeClampToEdge,
	}
}

// CreateSampler creates a sampler.
func (d *Device) CreateSampler(c SamplerCreation) (SamplerHandle, error) {
	if d.closed {
		return InvalidSampler, ErrDeviceClosed
	}
	i := d.samplers.Obtain()
	if i == pool.InvalidIndex {
		return InvalidSampler, fmt.Errorf("%w: samplers (capacity %d)", ErrPoolExhausted, d.samplers.Capacity())
	}
	raw, err := d.raw.CreateSampler(&hal.SamplerDescriptor{
		Label:        c.Name,
		AddressModeU: c.AddressU,
		AddressModeV: c.AddressV,
		AddressModeW: c.AddressW,
		MagFilter:    c.MagFilter,
		MinFilter:    c.MinFilter,
		MipmapFilter: c.MipFilter,
	})
	if err != nil {
		d.samplers.Release(i)
		return InvalidSampler, fmt.Errorf("gpu: create sampler %q: %w", c.Name, err)
	}
	h := samplerHandle(i)
	*d.samplers.Access(i) = sampler{raw: raw, desc: SamplerDescription{
		Name:      c.Name,
		MinFilter: c.MinFilter,
		MagFilter: c.MagFilter,
		MipFilter: c.MipFilter,
		AddressU:  c.AddressU,
		AddressV:  c.AddressV,
		AddressW:  c.AddressW,
		Handle:    h,
	}}
	return h, nil
}

// QuerySampler returns the description of a live sampler.
func (d *Device) QuerySampler(h SamplerHandle) (SamplerDescription, error) {
	if !d.samplers.InUse(h.index()) {
		return SamplerDescription{}, fmt.Errorf("%w: sampler %d", ErrInvalidHandle, h)
	}
	return d.samplers.Access(h.index()).desc, nil
}

// DestroySampler schedules a sampler for destruction.
func (d *Device) DestroySampler(h SamplerHandle) {
	d.scheduleDeletion(kindSampler, h.index(), d.samplers.InUse(h.index()))
}

func (d *Device) destroySamplerNow(h SamplerHandle) {
	s := d.samplers.Access(h.index())
	if s.raw != nil {
		d.raw.DestroySampler(s.raw)
	}
	*s = sampler{}
	d.samplers.Release(h.index())
}

// --------------------------------------------------------------------------
// Deferred deletion
// --------------------------------------------------------------------------

func (d *Device) scheduleDeletion(kind resourceKind, handle uint32, live bool) {
	if !live {
		return
	}
	for _, del := range d.deletions {
		if del.kind == kind && del.handle == handle {
			return
		}
	}
	d.deletions = append(d.deletions, deletion{kind: kind, handle: handle, frame: d.absoluteFrame})
}

// flushDeletions destroys resources no in-flight frame can reference.
// force destroys every pending resource regardless of frame.
func (d *Device) flushDeletions(force bool) {
	keep := d.deletions[:0]
	for _, del := range d.deletions {
		if !force && d.absoluteFrame < del.frame+uint64(d.cfg.FramesInFlight) {
			keep = append(keep, del)
			continue
		}
		switch del.kind {
		case kindBuffer:
			if d.buffers.InUse(del.handle) {
				d.destroyBufferNow(bufferHandle(del.handle))
			}
		case kindTexture:
			if d.textures.InUse(del.handle) {
				d.destroyTextureNow(textureHandle(del.handle))
			}
		case kindSampler:
			if d.samplers.InUse(del.handle) {
				d.destroySamplerNow(samplerHandle(del.handle))
			}
		case kindPipeline:
			if d.pipelines.InUse(del.handle) {
				d.destroyPipelineNow(pipelineHandle(del.handle))
			}
		case kindResourceLayout:
			if d.layouts.InUse(del.handle) {
				d.destroyResourceLayoutNow(resourceLayoutHandle(del.handle))
			}
		case kindResourceList:
			if d.lists.InUse(del.handle) {
				d.destroyResourceListNow(resourceListHandle(del.handle))
			}
		case kindRenderPass:
			if d.passes.InUse(del.handle) {
				d.passes.Release(del.handle)
			}
		}
	}
	d.deletions = keep
}

func padTo4(data []byte) []byte {
	if len(data)%4 == 0 {
		return data
	}
	padded := make([]byte, alignUp(uint32(len(data)), 4)) // #nosec G115 -- buffer sizes are uint32
	copy(padded, data)
	return padded
}
