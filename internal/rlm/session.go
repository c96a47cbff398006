package rlm

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gencode-ai/turnengine/internal/message"
)

// Session holds every loaded Context plus the currently active one and
// running query-usage totals, shared across all rlm_* tool calls for
// the lifetime of a turn loop (spec.md §4.5).
type Session struct {
	mu            sync.Mutex
	Contexts      map[string]*Context
	ActiveContext string
	QueriesIssued int
	CharsSent     int
	CharsReceived int
	InputTokens   int
	OutputTokens  int
}

// NewSession returns an empty session with "default" as the active
// context id placeholder (no context loaded under it yet).
func NewSession() *Session {
	return &Session{
		Contexts:      make(map[string]*Context),
		ActiveContext: "default",
	}
}

// LoadFile reads path from disk and stores it under id, making it the
// active context. Returns (lineCount, charCount).
func (s *Session) LoadFile(id, path string) (int, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read file: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := NewContext(id, string(data), path)
	s.Contexts[id] = ctx
	s.ActiveContext = id
	return ctx.LineCount, ctx.CharCount, nil
}

// GetContext returns the context with the given id, if loaded.
func (s *Session) GetContext(id string) (*Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.Contexts[id]
	return ctx, ok
}

// HasContext reports whether id is already loaded.
func (s *Session) HasContext(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Contexts[id]
	return ok
}

// RecordQueryUsage accumulates rlm_query sub-call usage into the
// session totals surfaced by rlm_status.
func (s *Session) RecordQueryUsage(usage message.Usage, charsSent, charsReceived int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueriesIssued++
	s.CharsSent += charsSent
	s.CharsReceived += charsReceived
	s.InputTokens += usage.InputTokens
	s.OutputTokens += usage.OutputTokens
}

// ContextIDFromPath derives a default context id from a file path: its
// base name, stripped of extension.
func ContextIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UniqueContextID appends a numeric suffix to baseID until it no
// longer collides with an already-loaded context.
func (s *Session) UniqueContextID(baseID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.Contexts[baseID]; !exists {
		return baseID
	}
	for i := 2; ; i++ {
		candidate := baseID + "_" + strconv.Itoa(i)
		if _, exists := s.Contexts[candidate]; !exists {
			return candidate
		}
	}
}

// Summary renders the rlm_status output: every loaded context's size
// plus the running sub-query usage totals.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Active context: %s\n", s.ActiveContext))
	sb.WriteString(fmt.Sprintf("Loaded contexts: %d\n", len(s.Contexts)))
	for id, ctx := range s.Contexts {
		sb.WriteString(fmt.Sprintf("  %s: %d lines, %d chars", id, ctx.LineCount, ctx.CharCount))
		if ctx.SourcePath != "" {
			sb.WriteString(fmt.Sprintf(" (from %s)", ctx.SourcePath))
		}
		if len(ctx.Variables) > 0 {
			sb.WriteString(fmt.Sprintf(", %d vars", len(ctx.Variables)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Queries issued: %d (chars sent: %d, received: %d)\n", s.QueriesIssued, s.CharsSent, s.CharsReceived))
	sb.WriteString(fmt.Sprintf("Tokens: %d in / %d out\n", s.InputTokens, s.OutputTokens))
	return sb.String()
}

// NormalizeLoadPath implements rlm_load's "@path" workspace-relative
// convention: an "@" prefix means relative to the workspace root,
// stripped before ResolvePath-style resolution; anything else is
// passed through unchanged.
func NormalizeLoadPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("path is required")
	}
	if stripped, ok := strings.CutPrefix(trimmed, "@"); ok {
		stripped = strings.TrimSpace(stripped)
		if stripped == "" {
			return "", fmt.Errorf("path is required after '@' prefix")
		}
		stripped = strings.TrimLeft(stripped, "/\\")
		if stripped == "" {
			return "", fmt.Errorf("path is required after '@' prefix")
		}
		return stripped, nil
	}
	return trimmed, nil
}
