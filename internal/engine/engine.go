// Package engine defines the Event and Op channels that connect the Turn
// Loop to a driver (a TUI, an RPC server, a test harness). The engine only
// ever talks to a driver across these two channels: Event flows engine to
// driver, Op flows driver to engine. Neither side touches the other's
// memory directly.
package engine

import (
	"github.com/gencode-ai/turnengine/internal/approval"
	"github.com/gencode-ai/turnengine/internal/client"
	"github.com/gencode-ai/turnengine/internal/message"
)

// EventType identifies the kind of Event flowing from the engine to a driver.
type EventType string

const (
	EventTurnStarted      EventType = "turn_started"
	EventTurnComplete     EventType = "turn_complete"
	EventMessageStarted   EventType = "message_started"
	EventMessageDelta     EventType = "message_delta"
	EventMessageComplete  EventType = "message_complete"
	EventThinkingStarted  EventType = "thinking_started"
	EventThinkingDelta    EventType = "thinking_delta"
	EventThinkingComplete EventType = "thinking_complete"
	EventToolCallStarted  EventType = "tool_call_started"
	EventToolCallProgress EventType = "tool_call_progress"
	EventToolCallComplete EventType = "tool_call_complete"
	EventAgentSpawned     EventType = "agent_spawned"
	EventAgentProgress    EventType = "agent_progress"
	EventAgentComplete    EventType = "agent_complete"
	EventAgentList        EventType = "agent_list"
	EventError            EventType = "error"
	EventStatus           EventType = "status"
	EventApprovalRequired EventType = "approval_required"
)

// Event is a single message on the Event channel. Only the fields relevant
// to Type are meaningful; the rest are left zero. This mirrors
// message.StreamChunk's single-struct-with-discriminant shape rather than a
// tagged union of distinct Go types, since most consumers switch on Type
// once and read two or three fields off the same value.
type Event struct {
	Type EventType

	// MessageDelta / ThinkingDelta
	Index   int
	Content string

	// ToolCallStarted / ToolCallProgress / ToolCallComplete
	ToolID     string
	ToolName   string
	ToolInput  string
	ToolResult *message.ToolResult

	// TurnComplete
	Usage client.TokenUsage

	// AgentSpawned / AgentProgress / AgentComplete
	AgentID       string
	AgentName     string
	AgentProgress string
	AgentResult   string

	// AgentList
	Agents []string

	// Error
	Message     string
	Recoverable bool

	// Status
	StatusMessage string

	// ApprovalRequired
	ApprovalID          string
	ApprovalToolName    string
	ApprovalDescription string
}

// OpType identifies the kind of Op a driver sends to the engine.
type OpType string

const (
	OpSendMessage   OpType = "send_message"
	OpCancelRequest OpType = "cancel_request"
	OpApproveTool   OpType = "approve_tool_call"
	OpDenyTool      OpType = "deny_tool_call"
	OpSpawnSubAgent OpType = "spawn_sub_agent"
	OpListSubAgents OpType = "list_sub_agents"
	OpChangeMode    OpType = "change_mode"
	OpSetModel      OpType = "set_model"
	OpShutdown      OpType = "shutdown"
)

// Op is a single message on the Op channel, driver to engine.
type Op struct {
	Type OpType

	// SendMessage
	Content string
	Images  []message.ImageData
	Mode    approval.Mode

	// ApproveToolCall / DenyToolCall
	ToolID     string
	ForSession bool // ApproveToolCall: remember this tool for the rest of the session

	// SpawnSubAgent
	Prompt string

	// ChangeMode
	NewMode approval.Mode

	// SetModel
	Model string
}
