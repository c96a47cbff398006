package shell

import (
	"os/exec"
	"runtime"
)

// SandboxType names the isolation strategy applied to a command.
type SandboxType string

const (
	// SandboxNone runs the command directly with no extra isolation
	// beyond the workspace-confinement already applied to tool params.
	SandboxNone SandboxType = "none"
	// SandboxBubblewrap wraps the command in bwrap(1), confining the
	// filesystem view to the workspace root (read-write) plus a
	// minimal read-only system view. Linux-only, best effort: if
	// bwrap isn't on PATH the manager falls back to SandboxNone.
	SandboxBubblewrap SandboxType = "bubblewrap"
)

// ExecEnv is the resolved program/args/env a Runner actually execs,
// after sandbox wrapping has been applied.
type ExecEnv struct {
	Program     string
	Args        []string
	SandboxType SandboxType
}

// SandboxProfile selects and applies a sandbox strategy for a given
// workspace and trust level.
type SandboxProfile struct {
	// Enabled turns on best-effort bubblewrap confinement for
	// WorkspaceSafe/Safe commands. Commands already cleared through
	// RequiresApproval still run un-sandboxed once approved, matching
	// the teacher's synchronous bash execution path — sandboxing is a
	// defense in depth for the common case, not an approval substitute.
	Enabled bool
	bwrap   string // resolved bwrap path, empty if unavailable
}

// NewSandboxProfile probes for bwrap on PATH when enabled is requested.
// Returns a profile that silently degrades to SandboxNone off Linux or
// when bwrap is missing, so callers never have to branch on platform.
func NewSandboxProfile(enabled bool) *SandboxProfile {
	p := &SandboxProfile{}
	if !enabled || runtime.GOOS != "linux" {
		return p
	}
	if path, err := exec.LookPath("bwrap"); err == nil {
		p.Enabled = true
		p.bwrap = path
	}
	return p
}

// Wrap produces the ExecEnv to run command under, given the resolved
// workspace root it should be confined to.
func (p *SandboxProfile) Wrap(workspace, command string) ExecEnv {
	if !p.Enabled {
		return ExecEnv{Program: "bash", Args: []string{"-c", command}, SandboxType: SandboxNone}
	}

	args := []string{
		"--die-with-parent",
		"--unshare-pid",
		"--ro-bind", "/usr", "/usr",
		"--ro-bind", "/bin", "/bin",
		"--ro-bind", "/lib", "/lib",
		"--bind", workspace, workspace,
		"--chdir", workspace,
		"--proc", "/proc",
		"--dev", "/dev",
		"bash", "-c", command,
	}
	return ExecEnv{Program: p.bwrap, Args: args, SandboxType: SandboxBubblewrap}
}
