// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu wraps a wgpu HAL device with handle-based resource pools,
// per-frame synchronization and a command buffer that records typed
// commands with sort keys.
//
// Every Create call maps to one backend call and returns a small integer
// handle. Query calls return a description mirroring the creation
// parameters. Destroy calls are deferred until the frames that may still
// reference the resource have completed on the GPU.
//
// # Frame loop
//
//	dev.NewFrame()
//	cb := dev.GetCommandBuffer()
//	cb.BindPass(dev.SwapchainPass())
//	cb.Draw(...)
//	dev.QueueCommandBuffer(cb)
//	dev.Present()
//
// # Dynamic memory
//
// Buffers created with [MemoryDynamic] share one ring buffer sized
// DynamicPerFrameSize * FramesInFlight. [Device.MapBuffer] on such a buffer
// returns a slice into the region owned by the current frame, so writes for
// frame N+1 never alias data the GPU reads for frame N.
//
// A Device is not safe for concurrent use.
package gpu
