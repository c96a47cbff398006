package shell

import (
	"context"
	"testing"
	"time"
)

func TestRunner_RunSync(t *testing.T) {
	r := NewRunner(false)
	dir := t.TempDir()

	res := r.Run(context.Background(), Request{
		Command:   "echo hello",
		Workspace: dir,
	})

	if !res.Success {
		t.Fatalf("expected success, got error: %s", res.Error)
	}
	if res.Output != "hello\n" && res.Output != "hello" {
		t.Errorf("unexpected output: %q", res.Output)
	}
}

func TestRunner_RunSyncFailure(t *testing.T) {
	r := NewRunner(false)
	dir := t.TempDir()

	res := r.Run(context.Background(), Request{
		Command:   "exit 3",
		Workspace: dir,
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error == "" {
		t.Error("expected error message")
	}
}

func TestRunner_DangerousCommandBlocked(t *testing.T) {
	r := NewRunner(false)
	dir := t.TempDir()

	res := r.Run(context.Background(), Request{
		Command:   "rm -rf /",
		Workspace: dir,
	})

	if !res.Blocked {
		t.Fatal("expected dangerous command to be blocked")
	}
	if res.Success {
		t.Error("blocked command should not report success")
	}
}

func TestRunner_Timeout(t *testing.T) {
	r := NewRunner(false)
	dir := t.TempDir()

	res := r.Run(context.Background(), Request{
		Command:   "sleep 5",
		Workspace: dir,
		Timeout:   50 * time.Millisecond,
	})

	if !res.TimedOut {
		t.Fatal("expected command to time out")
	}
}

func TestRunner_Background(t *testing.T) {
	r := NewRunner(false)
	dir := t.TempDir()

	res := r.Run(context.Background(), Request{
		Command:    "echo background",
		Workspace:  dir,
		Background: true,
	})

	if !res.Success {
		t.Fatalf("expected background start success, got: %s", res.Error)
	}
	if res.TaskID == "" {
		t.Error("expected a task ID for background run")
	}

	task, ok := r.Tasks.Get(res.TaskID)
	if !ok {
		t.Fatal("expected to find background task")
	}
	if !task.WaitForCompletion(2 * time.Second) {
		t.Fatal("background task did not complete in time")
	}
}
