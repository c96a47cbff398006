package tool

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// execCtxKey is the context.Context key under which the per-call Tool
// Context (spec.md §3 "Tool Context") travels. Tools receive ctx as their
// first Execute parameter already (for cancellation); this carries the
// rest of the contract — trust flag, notes path, MCP-config path — without
// changing every tool's signature.
type execCtxKey struct{}

// ExecContext is the Tool Context passed to every tool invocation.
type ExecContext struct {
	Workspace   string
	Trust       bool
	NotesPath   string
	MCPConfig   string
	SessionID   string
	EmitEvent   func(name string, detail any)
}

// WithExecContext attaches an ExecContext to ctx.
func WithExecContext(ctx context.Context, ec ExecContext) context.Context {
	return context.WithValue(ctx, execCtxKey{}, ec)
}

// ExecContextFrom retrieves the ExecContext attached to ctx, or a
// zero-value ExecContext (non-trust, no workspace) if none was attached.
func ExecContextFrom(ctx context.Context) ExecContext {
	ec, _ := ctx.Value(execCtxKey{}).(ExecContext)
	return ec
}

// Trusted reports whether ctx carries a trusted Tool Context.
func Trusted(ctx context.Context) bool {
	return ExecContextFrom(ctx).Trust
}

// ErrPathEscape is returned by ResolvePath when a non-trust resolution
// would escape the workspace root (spec.md §6, invariant 4).
var ErrPathEscape = errors.New("path escapes workspace root")

// ResolvePath implements the filesystem path-confinement rule every
// filesystem tool must apply (spec.md §4.4 step 5, §6 "Filesystem", and
// the RLM load path in §4.5): resolve input against the workspace root,
// and reject any resolution that escapes the workspace unless trust is
// enabled. Accepts either path separator; a bare leading "/" means
// absolute, and without trust an absolute path is accepted only when it
// lies inside the workspace. Callers that need the `@`-prefix
// RLM semantics should strip the prefix before calling this (see
// internal/rlm.NormalizeLoadPath).
func ResolvePath(workspaceRoot, input string, trust bool) (string, error) {
	if workspaceRoot == "" {
		return "", errors.New("workspace root is not set")
	}
	input = filepath.FromSlash(strings.ReplaceAll(input, "\\", "/"))

	root, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return "", err
	}

	var resolved string
	if filepath.IsAbs(input) {
		resolved = filepath.Clean(input)
	} else {
		resolved = filepath.Clean(filepath.Join(root, input))
	}

	if trust {
		return resolved, nil
	}

	if !isDescendant(root, resolved) {
		return "", ErrPathEscape
	}
	return resolved, nil
}

// isDescendant reports whether candidate is root or a path below root.
func isDescendant(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
