// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package pool provides a fixed-capacity slot allocator used by the GPU
// device and the renderer to store resources behind small integer handles.
//
// A Pool never grows: its backing array is allocated once by [New], so a
// pointer returned by [Pool.Access] stays valid until the pool itself is
// discarded. Released slots keep their contents until they are handed out
// again; callers must reinitialize a slot after [Pool.Obtain].
//
// Pools are not safe for concurrent use.
package pool
