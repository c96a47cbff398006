package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/gencode-ai/turnengine/internal/task"
)

const (
	// DefaultTimeout matches the teacher's Bash tool default.
	DefaultTimeout = 120 * time.Second
	// MaxTimeout is the hard ceiling regardless of the caller's request.
	MaxTimeout = 600 * time.Second
	// MaxOutputChars truncates combined stdout+stderr, same threshold
	// the teacher's synchronous Bash path used.
	MaxOutputChars = 30000
)

// Request describes one command invocation.
type Request struct {
	Command     string
	Description string
	Workspace   string
	Timeout     time.Duration
	Background  bool
}

// Result is the outcome of a Run call, independent of tool.ToolResult so
// this package has no dependency on internal/tool.
type Result struct {
	Success       bool
	Blocked       bool
	Classification Classification
	Output        string
	Error         string
	TimedOut      bool
	Truncated     bool
	Duration      time.Duration
	LineCount     int
	// Background-only fields.
	TaskID string
	PID    int
}

// Runner executes shell commands with classification, sandboxing, and
// background-task tracking.
type Runner struct {
	Sandbox *SandboxProfile
	Tasks   *task.Manager
}

// NewRunner builds a Runner. sandboxEnabled turns on best-effort
// bubblewrap confinement for non-approval-tier commands (see
// SandboxProfile.Wrap).
func NewRunner(sandboxEnabled bool) *Runner {
	return &Runner{
		Sandbox: NewSandboxProfile(sandboxEnabled),
		// Shared with internal/tool's KillShell/TaskOutput/TaskStop
		// tools and the Sub-Agent Manager, all of which key off the
		// same background-task IDs.
		Tasks: task.DefaultManager,
	}
}

// Run classifies req.Command and, unless it is Dangerous, executes it —
// synchronously or in the background per req.Background.
func (r *Runner) Run(ctx context.Context, req Request) Result {
	class := Classify(req.Command)
	if class == Dangerous {
		return Result{Success: false, Blocked: true, Classification: class,
			Error: "command classified as dangerous and refused: " + req.Command}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	if req.Background {
		return r.runBackground(req, class, timeout)
	}
	return r.runSync(ctx, req, class, timeout)
}

func (r *Runner) runSync(ctx context.Context, req Request, class Classification, timeout time.Duration) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := r.Sandbox.Wrap(req.Workspace, req.Command)
	cmd := exec.CommandContext(ctx, env.Program, env.Args...)
	cmd.Dir = req.Workspace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := time.Since(start)

	output := stdout.String()
	if errOutput := stderr.String(); errOutput != "" {
		if output != "" {
			output += "\n"
		}
		output += errOutput
	}

	lineCount := 0
	if output != "" {
		lineCount = strings.Count(strings.TrimSuffix(output, "\n"), "\n") + 1
	}

	truncated := false
	if len(output) > MaxOutputChars {
		output = output[:MaxOutputChars] + "\n... (output truncated)"
		truncated = true
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return Result{
				Success: false, Classification: class, Output: output,
				Error: "command timed out after " + timeout.String(), TimedOut: true,
				Truncated: truncated, Duration: duration, LineCount: lineCount,
			}
		}
		errorMsg := err.Error()
		if exitErr, ok := err.(*exec.ExitError); ok {
			errorMsg = fmt.Sprintf("exit code %d", exitErr.ExitCode())
		}
		return Result{
			Success: false, Classification: class, Output: output, Error: errorMsg,
			Truncated: truncated, Duration: duration, LineCount: lineCount,
		}
	}

	return Result{
		Success: true, Classification: class, Output: output,
		Truncated: truncated, Duration: duration, LineCount: lineCount,
	}
}

func (r *Runner) runBackground(req Request, class Classification, timeout time.Duration) Result {
	taskCtx, cancel := context.WithTimeout(context.Background(), timeout)

	env := r.Sandbox.Wrap(req.Workspace, req.Command)
	cmd := exec.CommandContext(taskCtx, env.Program, env.Args...)
	cmd.Dir = req.Workspace
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return Result{Success: false, Classification: class, Error: "failed to create stdout pipe: " + err.Error()}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return Result{Success: false, Classification: class, Error: "failed to create stderr pipe: " + err.Error()}
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return Result{Success: false, Classification: class, Error: "failed to start command: " + err.Error()}
	}

	bgTask := r.Tasks.Create(cmd, req.Command, req.Description, taskCtx, cancel)

	go func() {
		defer cancel()

		var stdoutBuf, stderrBuf bytes.Buffer
		done := make(chan struct{}, 2)
		go func() { io.Copy(&stdoutBuf, stdout); done <- struct{}{} }()
		go func() { io.Copy(&stderrBuf, stderr); done <- struct{}{} }()
		<-done
		<-done

		waitErr := cmd.Wait()

		output := stdoutBuf.String()
		if stderrBuf.Len() > 0 {
			if output != "" {
				output += "\n"
			}
			output += stderrBuf.String()
		}
		bgTask.AppendOutput([]byte(output))

		exitCode := 0
		if waitErr != nil {
			if exitErr, ok := waitErr.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
		}
		bgTask.Complete(exitCode, waitErr)
	}()

	return Result{
		Success:        true,
		Classification: class,
		Output:         fmt.Sprintf("Task started in background.\nTask ID: %s\nPID: %d\nCommand: %s", bgTask.ID, bgTask.PID, req.Command),
		TaskID:         bgTask.ID,
		PID:            bgTask.PID,
	}
}

// Kill delegates to the Tasks manager's SIGTERM→SIGKILL escalation.
func (r *Runner) Kill(id string) error {
	return r.Tasks.Kill(id)
}
