// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"slices"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/renderer"
)

// ResourceKind tags the payload of a ResourceNode.
type ResourceKind uint8

const (
	KindTexture ResourceKind = iota
	KindBuffer
	KindSampler
	KindStage
	KindShader
	KindMaterial
)

var resourceKindNames = [...]string{"texture", "buffer", "sampler", "stage", "shader", "material"}

func (k ResourceKind) String() string {
	if int(k) < len(resourceKindNames) {
		return resourceKindNames[k]
	}
	return fmt.Sprintf("ResourceKind(%d)", k)
}

// Tier returns the creation tier of the kind. Leaf resources are tier 0,
// stages 1, shaders 2 and materials 3.
func (k ResourceKind) Tier() int {
	switch k {
	case KindStage:
		return 1
	case KindShader:
		return 2
	case KindMaterial:
		return 3
	default:
		return 0
	}
}

// NodeID indexes Graph.Nodes.
type NodeID int32

// InvalidNode is returned by lookups that found nothing.
const InvalidNode NodeID = -1

// IsValid reports whether the id refers to a node.
func (id NodeID) IsValid() bool { return id >= 0 }

// ResourceNode is one resolved resource. Inputs are the nodes it depends
// on; Outputs are the nodes that depend on it.
type ResourceNode struct {
	Name string
	Kind ResourceKind
	// Creation indexes the declaration slice of Kind.
	Creation int
	// ActiveHandle is the renderer (or stage) handle, pool.InvalidIndex
	// until the node's tier has been created.
	ActiveHandle pool.Index
	Inputs       []NodeID
	Outputs      []NodeID

	wired bool
}

// Resolved reports whether the node's resource was created.
func (n *ResourceNode) Resolved() bool { return n.ActiveHandle != pool.InvalidIndex }

// Texture returns the texture handle of a texture node.
func (n *ResourceNode) Texture() renderer.TextureHandle {
	if n.Kind != KindTexture {
		return renderer.InvalidTexture
	}
	return renderer.TextureHandle(n.ActiveHandle)
}

// Buffer returns the buffer handle of a buffer node.
func (n *ResourceNode) Buffer() renderer.BufferHandle {
	if n.Kind != KindBuffer {
		return renderer.InvalidBuffer
	}
	return renderer.BufferHandle(n.ActiveHandle)
}

// Sampler returns the sampler handle of a sampler node.
func (n *ResourceNode) Sampler() renderer.SamplerHandle {
	if n.Kind != KindSampler {
		return renderer.InvalidSampler
	}
	return renderer.SamplerHandle(n.ActiveHandle)
}

// Shader returns the shader effect handle of a shader node.
func (n *ResourceNode) Shader() renderer.ShaderHandle {
	if n.Kind != KindShader {
		return renderer.InvalidShader
	}
	return renderer.ShaderHandle(n.ActiveHandle)
}

// Material returns the material handle of a material node.
func (n *ResourceNode) Material() renderer.MaterialHandle {
	if n.Kind != KindMaterial {
		return renderer.InvalidMaterial
	}
	return renderer.MaterialHandle(n.ActiveHandle)
}

// Stage returns the stage handle of a stage node.
func (n *ResourceNode) Stage() StageHandle {
	if n.Kind != KindStage {
		return InvalidStage
	}
	return StageHandle(n.ActiveHandle)
}

func addEdge(set []NodeID, id NodeID) []NodeID {
	if slices.Contains(set, id) {
		return set
	}
	return append(set, id)
}

// DiagnosticKind classifies a problem found while building a graph.
type DiagnosticKind uint8

const (
	// DiagnosticUnresolved marks a reference to a name nothing declares.
	DiagnosticUnresolved DiagnosticKind = iota
	// DiagnosticDuplicate marks a declaration whose name was already taken.
	DiagnosticDuplicate
	// DiagnosticKindMismatch marks a reference to a resource of the wrong kind.
	DiagnosticKindMismatch
	// DiagnosticTierOrder marks an edge pointing backwards across tiers.
	DiagnosticTierOrder
	// DiagnosticCreateFailed marks a resource the renderer could not create.
	DiagnosticCreateFailed
)

var diagnosticKindNames = [...]string{"unresolved", "duplicate", "kind mismatch", "tier order", "create failed"}

func (k DiagnosticKind) String() string {
	if int(k) < len(diagnosticKindNames) {
		return diagnosticKindNames[k]
	}
	return fmt.Sprintf("DiagnosticKind(%d)", k)
}

// Diagnostic records one problem found by Init. The affected edge or
// resource is left out of the graph.
type Diagnostic struct {
	Kind DiagnosticKind
	// Resource is the node that holds the reference.
	Resource string
	// Reference is the referenced name.
	Reference string
	Err       error
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %q -> %q", d.Kind, d.Resource, d.Reference)
	if d.Err != nil {
		s += ": " + d.Err.Error()
	}
	return s
}
