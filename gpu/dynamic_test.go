// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func newDynamicBuffer(t *testing.T, d *Device, name string, size uint32) BufferHandle {
	t.Helper()
	h, err := d.CreateBuffer(BufferCreation{
		Name:   name,
		Size:   size,
		Usage:  gputypes.BufferUsageUniform,
		Memory: MemoryDynamic,
	})
	if err != nil {
		t.Fatalf("CreateBuffer(%q) failed: %v", name, err)
	}
	return h
}

func TestDynamicBufferHasRingParent(t *testing.T) {
	d := newTestDevice(t, smallConfig())
	h := newDynamicBuffer(t, d, "locals", 64)
	desc, err := d.QueryBuffer(h)
	if err != nil {
		t.Fatal(err)
	}
	if desc.Parent != d.DynamicBuffer() {
		t.Errorf("Parent = %d, want ring %d", desc.Parent, d.DynamicBuffer())
	}
}

func TestDynamicMapAlignment(t *testing.T) {
	d := newTestDevice(t, smallConfig())
	a := newDynamicBuffer(t, d, "a", 40)
	b := newDynamicBuffer(t, d, "b", 16)

	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	mem, err := d.MapBuffer(MapBufferParameters{Buffer: a})
	if err != nil {
		t.Fatalf("MapBuffer(a) failed: %v", err)
	}
	if len(mem) != 40 {
		t.Errorf("len(mem) = %d, want 40", len(mem))
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: b}); err != nil {
		t.Fatalf("MapBuffer(b) failed: %v", err)
	}
	if got := d.DynamicOffset(a); got != 0 {
		t.Errorf("offset(a) = %d, want 0", got)
	}
	if got := d.DynamicOffset(b); got != DynamicAlignment {
		t.Errorf("offset(b) = %d, want %d", got, DynamicAlignment)
	}
	if got := d.DynamicAllocated(); got != DynamicAlignment+16 {
		t.Errorf("DynamicAllocated = %d, want %d", got, DynamicAlignment+16)
	}
	if err := d.UnmapBuffer(a); err != nil {
		t.Errorf("UnmapBuffer on dynamic buffer: %v", err)
	}
	if err := d.Present(); err != nil {
		t.Fatal(err)
	}

	// Second frame maps into the next ring region.
	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	if d.DynamicAllocated() != 0 {
		t.Errorf("DynamicAllocated not reset: %d", d.DynamicAllocated())
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: a}); err != nil {
		t.Fatal(err)
	}
	if got, want := d.DynamicOffset(a), d.Config().DynamicPerFrameSize; got != want {
		t.Errorf("frame 1 offset(a) = %d, want %d", got, want)
	}
}

func TestDynamicExhausted(t *testing.T) {
	d := newTestDevice(t, smallConfig())
	big := newDynamicBuffer(t, d, "big", 4000)
	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: big}); err != nil {
		t.Fatalf("first map failed: %v", err)
	}
	_, err := d.MapBuffer(MapBufferParameters{Buffer: big})
	if !errors.Is(err, ErrDynamicExhausted) {
		t.Fatalf("err = %v, want ErrDynamicExhausted", err)
	}
}

func TestMapSizeOverflow(t *testing.T) {
	d := newTestDevice(t, smallConfig())
	small := newDynamicBuffer(t, d, "small", 16)
	if err := d.NewFrame(); err != nil {
		t.Fatal(err)
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: small}); err != nil {
		t.Fatal(err)
	}
	before := d.DynamicAllocated()
	// start+size wraps to a small value in uint32.
	_, err := d.MapBuffer(MapBufferParameters{Buffer: small, Size: 1<<32 - DynamicAlignment})
	if !errors.Is(err, ErrDynamicExhausted) {
		t.Fatalf("dynamic err = %v, want ErrDynamicExhausted", err)
	}
	if d.DynamicAllocated() != before {
		t.Errorf("allocated = %d after a rejected map, want %d", d.DynamicAllocated(), before)
	}

	h, err := d.CreateBuffer(BufferCreation{Name: "static", Size: 32, Usage: gputypes.BufferUsageStorage})
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.MapBuffer(MapBufferParameters{Buffer: h, Offset: 16, Size: 1<<32 - 8})
	if !errors.Is(err, ErrInvalidCreation) {
		t.Errorf("static err = %v, want ErrInvalidCreation", err)
	}
}

func TestStaticMapUnmap(t *testing.T) {
	d := newTestDevice(t, smallConfig())
	h, err := d.CreateBuffer(BufferCreation{Name: "static", Size: 32, Usage: gputypes.BufferUsageStorage})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.UnmapBuffer(h); !errors.Is(err, ErrNotMapped) {
		t.Errorf("UnmapBuffer before map err = %v, want ErrNotMapped", err)
	}
	mem, err := d.MapBuffer(MapBufferParameters{Buffer: h, Offset: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(mem) != 24 {
		t.Errorf("len(mem) = %d, want 24", len(mem))
	}
	copy(mem, []byte{1, 2, 3})
	if err := d.UnmapBuffer(h); err != nil {
		t.Errorf("UnmapBuffer failed: %v", err)
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: h, Offset: 16, Size: 32}); !errors.Is(err, ErrInvalidCreation) {
		t.Errorf("out of range map err = %v, want ErrInvalidCreation", err)
	}
}

func TestBindResourceListDynamicOffsets(t *testing.T) {
	s := newTestScene(t, smallConfig())
	d := s.d
	locals := newDynamicBuffer(t, d, "locals", 64)
	layout, err := d.CreateResourceLayout(ResourceLayoutCreation{
		Name: "locals_layout",
		Bindings: []LayoutBinding{
			{Index: 0, Type: BindingUniformBuffer, Name: "locals", Dynamic: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	list, err := d.CreateResourceList(ResourceListCreation{
		Name:    "locals_list",
		Layout:  layout,
		Entries: []ResourceListEntry{BufferEntry(0, locals)},
	})
	if err != nil {
		t.Fatalf("CreateResourceList failed: %v", err)
	}

	other := newDynamicBuffer(t, d, "pad", 8)
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: other}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.MapBuffer(MapBufferParameters{Buffer: locals}); err != nil {
		t.Fatal(err)
	}

	cb := d.GetCommandBuffer()
	cb.BindPass(s.pass)
	cb.BindPipeline(s.draw)
	cb.BindResourceList(0, []ResourceListHandle{list}, nil)

	last := cb.Commands()[len(cb.Commands())-1].Command.(BindResourceListCommand)
	if len(last.DynamicOffsets) != 1 || last.DynamicOffsets[0] != DynamicAlignment {
		t.Errorf("DynamicOffsets = %v, want [%d]", last.DynamicOffsets, DynamicAlignment)
	}
}

func TestDynamicVertexBufferOffset(t *testing.T) {
	s := newTestScene(t, smallConfig())
	d := s.d
	pad := newDynamicBuffer(t, d, "pad", 4)
	verts, err := d.CreateBuffer(BufferCreation{
		Name: "verts", Size: 48, Usage: gputypes.BufferUsageVertex, Memory: MemoryDynamic,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range []BufferHandle{pad, verts} {
		if _, err := d.MapBuffer(MapBufferParameters{Buffer: h}); err != nil {
			t.Fatal(err)
		}
	}
	cb := d.GetCommandBuffer()
	cb.BindPass(s.pass)
	cb.BindVertexBuffer(verts, 0, 12)
	vb := cb.Commands()[1].Command.(BindVertexBufferCommand)
	if vb.Offset != DynamicAlignment+12 {
		t.Errorf("vertex buffer offset = %d, want %d", vb.Offset, DynamicAlignment+12)
	}
}
