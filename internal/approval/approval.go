// Package approval implements the Approval Policy: a pure function of
// operating mode, tool category, and approval mode that decides
// whether a tool call must be surfaced to the user before it runs.
package approval

import "github.com/gencode-ai/turnengine/internal/tool"

// Mode is the engine's current operating mode (spec.md §4.6).
type Mode int

const (
	ModeNormal Mode = iota
	ModePlan
	ModeAgent
	ModeYolo
	ModeRlm
)

// ApprovalMode is the user's configured approval stance, independent
// of a tool's own declared ApprovalRequirement.
type ApprovalMode int

const (
	Auto ApprovalMode = iota
	Suggest
	Never
)

// Decision is the Approval Policy's verdict for one tool call.
type Decision int

const (
	// DecisionAllow lets the call run without surfacing it.
	DecisionAllow Decision = iota
	// DecisionRequireApproval blocks the Turn Loop until the UI answers
	// ApproveToolCall/DenyToolCall on the Op channel.
	DecisionRequireApproval
	// DecisionDeny forces a ToolError::PermissionDenied without ever
	// asking (approval_mode Never on a non-Safe category).
	DecisionDeny
)

// Check implements the rule table from spec.md §4.6: session-approved
// tools always pass; Auto never asks; Never denies anything above
// Safe; Suggest asks depending on mode and category.
func Check(mode Mode, category tool.Category, approvalMode ApprovalMode, toolName string, sessionApproved map[string]bool) Decision {
	if sessionApproved[toolName] {
		return DecisionAllow
	}

	switch approvalMode {
	case Auto:
		return DecisionAllow
	case Never:
		if category == tool.CategorySafe {
			return DecisionAllow
		}
		return DecisionDeny
	}

	// Suggest.
	switch mode {
	case ModeYolo, ModeRlm:
		return DecisionAllow
	case ModeAgent:
		if category == tool.CategoryShell || category == tool.CategoryPaidMultimedia {
			return DecisionRequireApproval
		}
		return DecisionAllow
	default: // Normal, Plan
		if category == tool.CategoryFileWrite || category == tool.CategoryShell || category == tool.CategoryPaidMultimedia {
			return DecisionRequireApproval
		}
		return DecisionAllow
	}
}

// Outcome is the answer the UI carries back for a pending approval
// (spec.md §4.6: Approved / ApprovedForSession / Denied / Abort).
type Outcome int

const (
	Approved Outcome = iota
	ApprovedForSession
	Denied
	Abort
)
