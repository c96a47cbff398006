package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/gencode-ai/turnengine/internal/task"
)

const (
	IconKillShell = "x"
)

// KillShellTool terminates a background task
type KillShellTool struct{}

func (t *KillShellTool) Name() string        { return "KillShell" }
func (t *KillShellTool) Description() string { return "Terminate a background task" }
func (t *KillShellTool) Icon() string        { return IconKillShell }

// Execute terminates a background task
func (t *KillShellTool) Execute(ctx context.Context, params map[string]any, cwd string) ToolResult {
	start := time.Now()

	shellID, ok := params["shell_id"].(string)
	if !ok || shellID == "" {
		return ToolResult{
			Success: false,
			Error:   "shell_id is required",
			Metadata: ResultMetadata{
				Title: t.Name(),
				Icon:  t.Icon(),
			},
		}
	}

	// Get task to check status before killing
	bgTask, found := task.DefaultManager.Get(shellID)
	if !found {
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("task not found: %s", shellID),
			Metadata: ResultMetadata{
				Title: t.Name(),
				Icon:  t.Icon(),
			},
		}
	}

	// Check if already completed
	if !bgTask.IsRunning() {
		info := bgTask.GetStatus()
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("task already completed with status: %s", info.Status),
			Metadata: ResultMetadata{
				Title:    t.Name(),
				Icon:     t.Icon(),
				Subtitle: fmt.Sprintf("Already: %s", info.Status),
			},
		}
	}

	// Get task info before killing
	info := bgTask.GetStatus()

	// Kill the task
	err := task.DefaultManager.Kill(shellID)
	duration := time.Since(start)

	if err != nil {
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("failed to kill task: %v", err),
			Metadata: ResultMetadata{
				Title:    t.Name(),
				Icon:     t.Icon(),
				Duration: duration,
			},
		}
	}

	// Get final status
	finalInfo := bgTask.GetStatus()

	output := fmt.Sprintf("Task killed successfully.\nTask ID: %s\nPID: %d\nStatus: %s", shellID, info.PID, finalInfo.Status)
	if finalInfo.Output != "" {
		output += fmt.Sprintf("\n\nOutput before kill:\n%s", finalInfo.Output)
	}

	return ToolResult{
		Success: true,
		Output:  output,
		Metadata: ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: fmt.Sprintf("Killed: %s", shellID),
			Duration: duration,
		},
	}
}

func init() {
	Register(&KillShellTool{})
}
