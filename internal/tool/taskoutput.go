package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/gencode-ai/turnengine/internal/task"
)

const (
	IconTaskOutput = ">"
)

// TaskOutputTool retrieves output from background tasks
type TaskOutputTool struct{}

func (t *TaskOutputTool) Name() string        { return "TaskOutput" }
func (t *TaskOutputTool) Description() string { return "Retrieve output from a background task" }
func (t *TaskOutputTool) Icon() string        { return IconTaskOutput }

// Execute retrieves task output
func (t *TaskOutputTool) Execute(ctx context.Context, params map[string]any, cwd string) ToolResult {
	start := time.Now()

	taskID, ok := params["task_id"].(string)
	if !ok || taskID == "" {
		return ToolResult{
			Success: false,
			Error:   "task_id is required",
			Metadata: ResultMetadata{
				Title: t.Name(),
				Icon:  t.Icon(),
			},
		}
	}

	// Get block parameter (default true)
	block := true
	if b, ok := params["block"].(bool); ok {
		block = b
	}

	// Get timeout (default 30 seconds, max 600 seconds)
	timeout := 30 * time.Second
	if timeoutMs, ok := params["timeout"].(float64); ok && timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
		if timeout > 600*time.Second {
			timeout = 600 * time.Second
		}
	}

	// Get task
	bgTask, found := task.DefaultManager.Get(taskID)
	if !found {
		return ToolResult{
			Success: false,
			Error:   fmt.Sprintf("task not found: %s", taskID),
			Metadata: ResultMetadata{
				Title: t.Name(),
				Icon:  t.Icon(),
			},
		}
	}

	// If blocking, wait for completion
	if block && bgTask.IsRunning() {
		bgTask.WaitForCompletion(timeout)
	}

	// Get task status
	info := bgTask.GetStatus()
	duration := time.Since(start)

	var statusStr string
	switch info.Status {
	case task.StatusRunning:
		statusStr = "still running"
	case task.StatusCompleted:
		statusStr = "completed"
	case task.StatusFailed:
		statusStr = "failed"
	case task.StatusKilled:
		statusStr = "killed"
	}

	output := formatTaskOutput(info, statusStr)

	return ToolResult{
		Success: info.Status != task.StatusFailed,
		Output:  output,
		Metadata: ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: fmt.Sprintf("%s: %s", taskID, statusStr),
			Duration: duration,
		},
	}
}

// formatTaskOutput renders a task's status for the model, branching on
// whether it's a bash command or a sub-agent run.
func formatTaskOutput(info task.TaskInfo, statusStr string) string {
	var out string
	switch info.Type {
	case task.TaskTypeAgent:
		out = fmt.Sprintf("Task ID: %s\nAgent: %s\nStatus: %s\nTurns: %d\n", info.ID, info.AgentName, statusStr, info.TurnCount)
	default:
		out = fmt.Sprintf("Task ID: %s\nStatus: %s\nPID: %d\n", info.ID, statusStr, info.PID)
		if info.Command != "" {
			out += fmt.Sprintf("Command: %s\n", info.Command)
		}
		if info.Status == task.StatusFailed {
			out = fmt.Sprintf("Task ID: %s\nStatus: failed (exit code: %d)\nPID: %d\n", info.ID, info.ExitCode, info.PID)
			if info.Command != "" {
				out += fmt.Sprintf("Command: %s\n", info.Command)
			}
		}
	}

	if !info.EndTime.IsZero() {
		out += fmt.Sprintf("Duration: %v\n", info.EndTime.Sub(info.StartTime))
	}
	if info.Output != "" {
		out += fmt.Sprintf("\nOutput:\n%s", info.Output)
	}
	if info.Error != "" {
		out += fmt.Sprintf("\nError: %s", info.Error)
	}

	if info.Status == task.StatusRunning {
		out += fmt.Sprintf("\n\nOptions:\n- Call TaskOutput again with task_id %q to check progress or wait for completion.\n- Call TaskStop with task_id %q to cancel it.\n", info.ID, info.ID)
	}

	return out
}

func init() {
	Register(&TaskOutputTool{})
}
