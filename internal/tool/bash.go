package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gencode-ai/turnengine/internal/shell"
	"github.com/gencode-ai/turnengine/internal/tool/permission"
)

const (
	IconBash = "$"
)

// defaultRunner backs BashTool when no ExecContext-scoped runner is
// configured. Sandbox is disabled by default — enabling it is a
// deployment decision, not a tool-level one.
var defaultRunner = shell.NewRunner(false)

// BashTool executes shell commands via the shell subsystem, which
// classifies the command (spec.md §4.7) before running it.
type BashTool struct{}

func (t *BashTool) Name() string        { return "Bash" }
func (t *BashTool) Description() string { return "Execute shell commands" }
func (t *BashTool) Icon() string        { return IconBash }

func (t *BashTool) Category() Category             { return CategoryShell }
func (t *BashTool) Capabilities() []Capability      { return []Capability{CapExecutesCode, CapRequiresApproval, CapSandboxable} }
func (t *BashTool) ApprovalRequirement() ApprovalRequirement { return ApprovalSuggest }

// RequiresPermission returns true - Bash always requires permission
func (t *BashTool) RequiresPermission() bool {
	return true
}

// PreparePermission prepares a permission request with command preview
func (t *BashTool) PreparePermission(ctx context.Context, params map[string]any, cwd string) (*permission.PermissionRequest, error) {
	command, ok := params["command"].(string)
	if !ok || command == "" {
		return nil, &ToolError{Message: "command is required"}
	}

	description, _ := params["description"].(string)
	runBackground, _ := params["run_in_background"].(bool)

	lineCount := strings.Count(command, "\n") + 1

	return &permission.PermissionRequest{
		ID:          generateRequestID(),
		ToolName:    t.Name(),
		Description: description,
		BashMeta: &permission.BashMetadata{
			Command:       command,
			Description:   description,
			RunBackground: runBackground,
			LineCount:     lineCount,
		},
	}, nil
}

// ExecuteApproved executes the command after user approval, or after
// the command-safety classifier clears it on its own (spec.md §4.7).
func (t *BashTool) ExecuteApproved(ctx context.Context, params map[string]any, cwd string) ToolResult {
	command, _ := params["command"].(string)
	description, _ := params["description"].(string)
	runBackground, _ := params["run_in_background"].(bool)

	req := shell.Request{
		Command:     command,
		Description: description,
		Workspace:   cwd,
		Background:  runBackground,
	}
	if timeoutMs, ok := params["timeout"].(float64); ok && timeoutMs > 0 {
		req.Timeout = time.Duration(timeoutMs) * time.Millisecond
	}

	result := defaultRunner.Run(ctx, req)
	return t.toToolResult(result, command, description)
}

// Execute implements the Tool interface (for permission-unaware execution)
func (t *BashTool) Execute(ctx context.Context, params map[string]any, cwd string) ToolResult {
	return t.ExecuteApproved(ctx, params, cwd)
}

func (t *BashTool) toToolResult(r shell.Result, command, description string) ToolResult {
	if r.Blocked {
		res := NewKindErrorResult(t.Name(), ErrPermissionDenied, r.Error)
		res.Blocked = true
		return res
	}

	if !r.Success {
		kind := ErrExecutionFailed
		if r.TimedOut {
			kind = ErrTimeout
		}
		return ToolResult{
			Success:   false,
			Output:    r.Output,
			Error:     r.Error,
			ErrorKind: kind,
			Metadata: ResultMetadata{
				Title:     t.Name(),
				Icon:      t.Icon(),
				Subtitle:  "Failed: " + r.Error,
				LineCount: r.LineCount,
				Duration:  r.Duration,
				Truncated: r.Truncated,
			},
		}
	}

	if r.TaskID != "" {
		return ToolResult{
			Success: true,
			Output:  r.Output,
			Metadata: ResultMetadata{
				Title:    t.Name(),
				Icon:     t.Icon(),
				Subtitle: fmt.Sprintf("[background] %s", r.TaskID),
			},
		}
	}

	subtitle := "Done"
	if description != "" {
		subtitle = description
	} else if r.Truncated {
		subtitle = fmt.Sprintf("%d+ lines (truncated)", r.LineCount)
	} else if r.LineCount > 1 {
		subtitle = fmt.Sprintf("%d lines", r.LineCount)
	} else if r.Output != "" {
		firstLine := strings.TrimSpace(strings.Split(r.Output, "\n")[0])
		if len(firstLine) > 50 {
			firstLine = firstLine[:50] + "..."
		}
		if firstLine != "" {
			subtitle = firstLine
		}
	}

	return ToolResult{
		Success: true,
		Output:  r.Output,
		Metadata: ResultMetadata{
			Title:     t.Name(),
			Icon:      t.Icon(),
			Subtitle:  subtitle,
			LineCount: r.LineCount,
			Duration:  r.Duration,
			Truncated: r.Truncated,
		},
	}
}

func init() {
	Register(&BashTool{})
}
