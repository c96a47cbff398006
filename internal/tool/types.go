package tool

import (
	"context"

	"github.com/gencode-ai/turnengine/internal/tool/permission"
)

// Tool represents a tool that can be executed; tools that need user
// approval also implement PermissionAwareTool
type Tool interface {
	// Name returns the tool name
	Name() string

	// Description returns a brief description of the tool
	Description() string

	// Icon returns the tool icon emoji
	Icon() string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params map[string]any, cwd string) ToolResult
}

// PermissionAwareTool is a tool that requires user permission before execution
type PermissionAwareTool interface {
	Tool

	// RequiresPermission returns true if the tool needs user approval
	RequiresPermission() bool

	// PreparePermission prepares a permission request (e.g., computes diff)
	PreparePermission(ctx context.Context, params map[string]any, cwd string) (*permission.PermissionRequest, error)

	// ExecuteApproved executes the tool after user approval
	ExecuteApproved(ctx context.Context, params map[string]any, cwd string) ToolResult
}

// ToolInput represents parsed tool input
type ToolInput struct {
	Name   string         // Tool name
	Args   string         // Raw argument string
	Params map[string]any // Parsed parameters
}

// Capability is one bit of a Tool Spec's capability set (spec.md §3).
type Capability int

const (
	CapReadOnly Capability = iota
	CapWritesFiles
	CapExecutesCode
	CapNetwork
	CapSandboxable
	CapRequiresApproval
)

// Category classifies a tool for the Approval Policy (spec.md §4.6).
type Category int

const (
	CategorySafe Category = iota
	CategoryFileWrite
	CategoryShell
	CategoryPaidMultimedia
)

func (c Category) String() string {
	switch c {
	case CategoryFileWrite:
		return "file_write"
	case CategoryShell:
		return "shell"
	case CategoryPaidMultimedia:
		return "paid_multimedia"
	default:
		return "safe"
	}
}

// ApprovalRequirement is a tool's own declared approval stance, independent
// of session mode (spec.md §3 Tool Spec).
type ApprovalRequirement int

const (
	ApprovalAuto ApprovalRequirement = iota
	ApprovalSuggest
	ApprovalNever
)

// CategorizedTool describes a registered tool's static metadata for the Approval
// Policy and the model-facing tool catalogue (spec.md §3 "Tool Spec").
// Tools that don't implement CategorizedTool default to CategorySafe /
// ApprovalAuto / {CapReadOnly}, matching the teacher's read-only default.
type CategorizedTool interface {
	Tool
	Category() Category
	Capabilities() []Capability
	ApprovalRequirement() ApprovalRequirement
}
