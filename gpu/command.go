// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "github.com/gogpu/gputypes"

// CommandType identifies the type of a recorded command.
type CommandType uint8

const (
	// Pass commands
	CmdBindPass CommandType = iota // Begin a render or compute pass
	CmdEndPass                     // End the current pass
	CmdBarrier                     // Execution barrier with resource transitions

	// State commands
	CmdBindPipeline      // Bind a pipeline
	CmdBindResourceList  // Bind resource lists
	CmdBindVertexBuffer  // Bind a vertex buffer
	CmdBindIndexBuffer   // Bind an index buffer
	CmdSetViewport       // Set the viewport
	CmdSetScissor        // Set the scissor rectangle
	CmdClear             // Set the color clear value of the next pass
	CmdClearDepthStencil // Set the depth/stencil clear values of the next pass

	// Work commands
	CmdDraw
	CmdDrawIndexed
	CmdDrawIndirect
	CmdDrawIndexedIndirect
	CmdDispatch
	CmdDispatchIndirect

	// Debug commands
	CmdPushMarker
	CmdPopMarker
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdBindPass:            "BindPass",
	CmdEndPass:             "EndPass",
	CmdBarrier:             "Barrier",
	CmdBindPipeline:        "BindPipeline",
	CmdBindResourceList:    "BindResourceList",
	CmdBindVertexBuffer:    "BindVertexBuffer",
	CmdBindIndexBuffer:     "BindIndexBuffer",
	CmdSetViewport:         "SetViewport",
	CmdSetScissor:          "SetScissor",
	CmdClear:               "Clear",
	CmdClearDepthStencil:   "ClearDepthStencil",
	CmdDraw:                "Draw",
	CmdDrawIndexed:         "DrawIndexed",
	CmdDrawIndirect:        "DrawIndirect",
	CmdDrawIndexedIndirect: "DrawIndexedIndirect",
	CmdDispatch:            "Dispatch",
	CmdDispatchIndirect:    "DispatchIndirect",
	CmdPushMarker:          "PushMarker",
	CmdPopMarker:           "PopMarker",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is implemented by all recorded command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// RecordedCommand is a command stamped with the sort key it was recorded at.
type RecordedCommand struct {
	Key     uint64
	Command Command
}

// Rect is an integer rectangle in framebuffer pixels.
type Rect struct {
	X, Y          uint32
	Width, Height uint32
}

// Viewport is a viewport rectangle with a depth range.
type Viewport struct {
	Rect
	MinDepth, MaxDepth float32
}

// BindPassCommand begins a pass.
type BindPassCommand struct {
	Pass RenderPassHandle
	Kind RenderPassType
}

// Type implements Command.
func (BindPassCommand) Type() CommandType { return CmdBindPass }

// EndPassCommand ends the pass that was bound.
type EndPassCommand struct {
	Pass RenderPassHandle
	Kind RenderPassType
}

// Type implements Command.
func (EndPassCommand) Type() CommandType { return CmdEndPass }

// BarrierCommand records an execution barrier. Transitions holds only the
// texture transitions that changed state; it is empty when every texture
// was already in the destination usage.
type BarrierCommand struct {
	Barrier     ExecutionBarrier
	Transitions []TextureTransition
}

// Type implements Command.
func (BarrierCommand) Type() CommandType { return CmdBarrier }

// BindPipelineCommand binds a pipeline.
type BindPipelineCommand struct {
	Pipeline PipelineHandle
}

// Type implements Command.
func (BindPipelineCommand) Type() CommandType { return CmdBindPipeline }

// BindResourceListCommand binds resource lists starting at group FirstSet.
type BindResourceListCommand struct {
	FirstSet       uint32
	Lists          []ResourceListHandle
	DynamicOffsets []uint32
}

// Type implements Command.
func (BindResourceListCommand) Type() CommandType { return CmdBindResourceList }

// BindVertexBufferCommand binds a vertex buffer to a slot.
type BindVertexBufferCommand struct {
	Buffer BufferHandle
	Slot   uint32
	Offset uint64
}

// Type implements Command.
func (BindVertexBufferCommand) Type() CommandType { return CmdBindVertexBuffer }

// BindIndexBufferCommand binds an index buffer.
type BindIndexBufferCommand struct {
	Buffer BufferHandle
	Format gputypes.IndexFormat
	Offset uint64
}

// Type implements Command.
func (BindIndexBufferCommand) Type() CommandType { return CmdBindIndexBuffer }

// SetViewportCommand sets the viewport.
type SetViewportCommand struct {
	Viewport Viewport
}

// Type implements Command.
func (SetViewportCommand) Type() CommandType { return CmdSetViewport }

// SetScissorCommand sets the scissor rectangle.
type SetScissorCommand struct {
	Rect Rect
}

// Type implements Command.
func (SetScissorCommand) Type() CommandType { return CmdSetScissor }

// ClearCommand sets the color clear value used when the next pass begins.
type ClearCommand struct {
	Color gputypes.Color
}

// Type implements Command.
func (ClearCommand) Type() CommandType { return CmdClear }

// ClearDepthStencilCommand sets the depth and stencil clear values used
// when the next pass begins.
type ClearDepthStencilCommand struct {
	Depth   float32
	Stencil uint32
}

// Type implements Command.
func (ClearDepthStencilCommand) Type() CommandType { return CmdClearDepthStencil }

// DrawCommand draws non-indexed primitives.
type DrawCommand struct {
	VertexCount, InstanceCount uint32
	FirstVertex, FirstInstance uint32
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// DrawIndexedCommand draws indexed primitives.
type DrawIndexedCommand struct {
	IndexCount, InstanceCount uint32
	FirstIndex                uint32
	VertexOffset              int32
	FirstInstance             uint32
}

// Type implements Command.
func (DrawIndexedCommand) Type() CommandType { return CmdDrawIndexed }

// DrawIndirectCommand draws with arguments read from a buffer.
type DrawIndirectCommand struct {
	Buffer  BufferHandle
	Offset  uint64
	Count   uint32
	Stride  uint32
	Indexed bool
}

// Type implements Command.
func (c DrawIndirectCommand) Type() CommandType {
	if c.Indexed {
		return CmdDrawIndexedIndirect
	}
	return CmdDrawIndirect
}

// DispatchCommand dispatches compute workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// Type implements Command.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// DispatchIndirectCommand dispatches with workgroup counts read from a buffer.
type DispatchIndirectCommand struct {
	Buffer BufferHandle
	Offset uint64
}

// Type implements Command.
func (DispatchIndirectCommand) Type() CommandType { return CmdDispatchIndirect }

// PushMarkerCommand opens a named debug region.
type PushMarkerCommand struct {
	Name string
}

// Type implements Command.
func (PushMarkerCommand) Type() CommandType { return CmdPushMarker }

// PopMarkerCommand closes the innermost debug region.
type PopMarkerCommand struct{}

// Type implements Command.
func (PopMarkerCommand) Type() CommandType { return CmdPopMarker }
