// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "errors"

// Device errors.
var (
	// ErrPoolExhausted is returned when a resource pool has no free slot.
	ErrPoolExhausted = errors.New("gpu: resource pool exhausted")

	// ErrInvalidHandle is returned when a handle does not refer to a live resource.
	ErrInvalidHandle = errors.New("gpu: invalid resource handle")

	// ErrInvalidCreation is returned when creation parameters are unusable.
	ErrInvalidCreation = errors.New("gpu: invalid creation parameters")

	// ErrNoAdapter is returned when no GPU adapter could be opened.
	ErrNoAdapter = errors.New("gpu: no adapter available")

	// ErrProviderNotHAL is returned when a device provider does not expose
	// wgpu HAL types.
	ErrProviderNotHAL = errors.New("gpu: provider does not expose HAL types")

	// ErrDynamicExhausted is returned when a frame's dynamic region is full.
	ErrDynamicExhausted = errors.New("gpu: dynamic buffer region exhausted")

	// ErrNotMapped is returned by UnmapBuffer for a buffer that is not mapped.
	ErrNotMapped = errors.New("gpu: buffer is not mapped")

	// ErrDeviceClosed is returned when using a device after Close.
	ErrDeviceClosed = errors.New("gpu: device closed")

	// ErrFenceTimeout is returned when a frame fence does not signal in time.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")
)
