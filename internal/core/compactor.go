package core

import (
	"context"
	"strings"

	"github.com/gencode-ai/turnengine/internal/message"
)

// Defaults for the Compactor's trigger and rewrite (spec.md §4.10).
const (
	defaultCompactTokenThreshold   = 150_000
	defaultCompactMessageThreshold = 60
	defaultCompactKeepRecent       = 6
)

// estimateTokens applies the Compactor's per-block heuristic: ~4 chars/token
// for plain text, ~3 for code-looking text, ~2 for JSON-looking text.
// Thinking blocks are counted the same as their surrounding message's text.
func estimateTokens(systemText string, msgs []message.Message) int {
	total := estimateBlockTokens(systemText)
	for _, m := range msgs {
		total += estimateBlockTokens(m.Content)
		total += estimateBlockTokens(m.Thinking)
		for _, tc := range m.ToolCalls {
			total += estimateBlockTokens(tc.Input)
		}
		if m.ToolResult != nil {
			total += estimateBlockTokens(m.ToolResult.Content)
		}
	}
	return total
}

func estimateBlockTokens(s string) int {
	if s == "" {
		return 0
	}
	charsPerToken := 4.0
	trimmed := strings.TrimSpace(s)
	switch {
	case looksLikeJSON(trimmed):
		charsPerToken = 2.0
	case looksLikeCode(trimmed):
		charsPerToken = 3.0
	}
	n := int(float64(len(s)) / charsPerToken)
	if n == 0 {
		n = 1
	}
	return n
}

func looksLikeJSON(s string) bool {
	if s == "" {
		return false
	}
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}

func looksLikeCode(s string) bool {
	if len(s) < 8 {
		return false
	}
	indicators := 0
	for _, r := range s {
		switch r {
		case '{', '}', ';', '\t', '(', ')':
			indicators++
		}
	}
	return float64(indicators)/float64(len(s)) > 0.02
}

// needsCompaction decides whether the Compactor should run before the next
// outgoing request, per spec.md §4.10's two triggers.
func (l *Loop) needsCompaction(systemText string) bool {
	tokenThreshold := l.CompactTokenThreshold
	if tokenThreshold <= 0 {
		tokenThreshold = defaultCompactTokenThreshold
	}
	messageThreshold := l.CompactMessageThreshold
	if messageThreshold <= 0 {
		messageThreshold = defaultCompactMessageThreshold
	}

	if len(l.messages) > messageThreshold {
		return true
	}
	return estimateTokens(systemText, l.messages) > tokenThreshold
}

// MaybeCompact runs the Compactor if the conversation has crossed either
// trigger threshold. It keeps the last keepRecent messages verbatim,
// summarizes the rest with a single Client.Complete call, and rewrites the
// system prompt by merging the original prompt with a new summary block
// (spec.md §4.10, invariant §8.6). Summarization failure is non-fatal: on
// error, compaction is skipped for this turn and the conversation is left
// untouched.
func (l *Loop) MaybeCompact(ctx context.Context) (compacted bool, warning string) {
	if l.Client == nil || l.System == nil {
		return false, ""
	}

	originalPrompt := l.System.Prompt()
	if !l.needsCompaction(originalPrompt) {
		return false, ""
	}

	keepRecent := l.CompactKeepRecent
	if keepRecent <= 0 {
		keepRecent = defaultCompactKeepRecent
	}
	if len(l.messages) <= keepRecent {
		return false, ""
	}

	prefix := l.messages[:len(l.messages)-keepRecent]
	tail := l.messages[len(l.messages)-keepRecent:]

	summary, _, err := Compact(ctx, l.Client, prefix, "")
	if err != nil {
		return false, "compaction skipped: " + err.Error()
	}

	if l.compactSummary != "" {
		// A previous compaction's summary is folded into this one so the
		// system prompt carries one summary block, not a growing chain.
		summary = l.compactSummary + "\n\n" + summary
	}

	l.compactSummary = summary
	l.messages = append([]message.Message{}, tail...)

	return true, ""
}

// renderedSystemPrompt returns the system prompt to use for the next
// request: the System's freshly built prompt, with the Compactor's summary
// block merged in per spec.md §4.10 if one has been produced.
func (l *Loop) renderedSystemPrompt() string {
	base := ""
	if l.System != nil {
		base = l.System.Prompt()
	}
	if l.compactSummary == "" {
		return base
	}
	merged := MergeSystemPrompt(TextSystemPrompt(base), BlocksSystemPrompt(SystemPromptBlock{
		Label: "Conversation Summary",
		Text:  l.compactSummary,
	}))
	return merged.Render()
}
