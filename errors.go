// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import "errors"

// Sentinel errors returned by Graph methods.
var (
	// ErrUnresolvedReference is returned in strict mode when a stage,
	// shader or material references a name nothing declares.
	ErrUnresolvedReference = errors.New("framegraph: unresolved reference")

	// ErrTierOrder is returned in strict mode when a dependency would point
	// from a higher creation tier to a lower one.
	ErrTierOrder = errors.New("framegraph: dependency crosses tiers backwards")

	// ErrKindMismatch is returned in strict mode when a name resolves to a
	// resource of the wrong kind, such as a stage output naming a buffer.
	ErrKindMismatch = errors.New("framegraph: reference has the wrong resource kind")

	// ErrAlreadyInitialized is returned by Init on a built graph.
	ErrAlreadyInitialized = errors.New("framegraph: graph already initialized")

	// ErrNotInitialized is returned by operations that need a built graph.
	ErrNotInitialized = errors.New("framegraph: graph not initialized")

	// ErrUnknownResource is returned when a name or handle does not resolve.
	ErrUnknownResource = errors.New("framegraph: unknown resource")
)
