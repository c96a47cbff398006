// Package core provides a reusable agent loop that manages conversation state
// and orchestrates LLM interactions. It serves as the runtime for all agent types:
// subagents, the TUI, and custom agents.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gencode-ai/turnengine/internal/approval"
	"github.com/gencode-ai/turnengine/internal/client"
	"github.com/gencode-ai/turnengine/internal/engine"
	"github.com/gencode-ai/turnengine/internal/hooks"
	"github.com/gencode-ai/turnengine/internal/log"
	"github.com/gencode-ai/turnengine/internal/message"
	"github.com/gencode-ai/turnengine/internal/permission"
	"github.com/gencode-ai/turnengine/internal/system"
	"github.com/gencode-ai/turnengine/internal/tool"
)

const defaultMaxTurns = 50

// RunOptions controls the synchronous Run() loop.
type RunOptions struct {
	MaxTurns    int
	OnResponse  func(resp *message.CompletionResponse)
	OnToolStart func(tc message.ToolCall) bool
	OnToolDone  func(tc message.ToolCall, result message.ToolResult)
}

// Result is returned by Loop.Run() upon completion.
type Result struct {
	Content    string
	Messages   []message.Message
	Turns      int
	Tokens     client.TokenUsage
	StopReason string // "end_turn", "max_turns", "cancelled"
}

// --- Loop ---

// Loop is a reusable agent runtime that manages conversation state
// and orchestrates LLM interactions. It supports two execution models:
//
//	Synchronous: loop.Run(ctx, opts) — drives the full turn loop
//	Incremental: loop.Stream()/Collect()/AddResponse()/FilterToolCalls()/ExecTool() — for event-driven callers
type Loop struct {
	System     *system.System
	Client     *client.Client
	Tool       *tool.Set
	Permission permission.Checker
	Hooks      *hooks.Engine

	// Events, when set, receives the Turn Loop's event stream (spec.md §6).
	// Sends block on the caller draining the channel, so a slow or absent
	// reader stalls the loop; use a buffered channel if that's unwanted.
	// Nil-safe: a nil Events disables emission without changing behavior.
	Events chan<- engine.Event

	// Ops, when set, is consulted whenever the Approval Policy (§4.6)
	// requires a human decision: the loop blocks here for a matching
	// ApproveToolCall/DenyToolCall op. Nil-safe: a nil Ops auto-approves,
	// matching today's non-interactive callers.
	Ops <-chan engine.Op

	// Mode is the engine's current operating mode, consulted by the
	// Approval Policy alongside ApprovalMode and per-tool category.
	Mode approval.Mode
	// ApprovalMode is the user's configured approval stance (§4.6).
	ApprovalMode approval.ApprovalMode
	// SessionApproved holds tool names approved for the rest of the
	// session via an ApproveToolCall op with ForSession set.
	SessionApproved map[string]bool
	// ApprovalTimeout bounds how long a pending approval blocks the loop
	// before it's treated as Denied with a timed_out flag. Zero means no
	// timeout (blocks until an op or cancellation arrives), per §4.8.
	ApprovalTimeout time.Duration

	// Compactor tuning (§4.10); zero values fall back to the package
	// defaults in compactor.go.
	CompactTokenThreshold   int
	CompactMessageThreshold int
	CompactKeepRecent       int

	// State (managed by the loop)
	messages       []message.Message
	compactSummary string
}

// --- High-level: synchronous agent loop ---

// Run drives the full conversation loop: stream -> response -> tools -> repeat,
// emitting the Turn Loop's event set on Events as it goes (spec.md §4.3, §6).
// Stops on end_turn, max turns, or context cancellation.
func (l *Loop) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	l.emit(ctx, engine.Event{Type: engine.EventTurnStarted})

	for step := 1; step <= maxTurns; step++ {
		select {
		case <-ctx.Done():
			l.emit(ctx, engine.Event{Type: engine.EventError, Message: "cancelled", Recoverable: true})
			return l.buildResult("cancelled", step-1), ctx.Err()
		default:
		}

		if warning := l.runCompaction(ctx); warning != "" {
			l.emit(ctx, engine.Event{Type: engine.EventStatus, StatusMessage: warning})
		}

		// Stream + collect response, emitting per-chunk events as they arrive.
		resp, err := l.collectStreaming(ctx, l.Stream(ctx))
		if err != nil {
			if ctx.Err() != nil {
				l.emit(ctx, engine.Event{Type: engine.EventError, Message: "cancelled", Recoverable: true})
				return l.buildResult("cancelled", step-1), ctx.Err()
			}
			return nil, err
		}

		calls := l.AddResponse(resp)
		if opts.OnResponse != nil {
			opts.OnResponse(resp)
		}

		// No tool calls -> turn complete.
		if len(calls) == 0 {
			l.emit(ctx, engine.Event{Type: engine.EventTurnComplete, Usage: l.Tokens()})
			r := l.buildResult("end_turn", step)
			r.Content = resp.Content
			return r, nil
		}

		// Step budget exhausted: the assistant's pending tool uses are left
		// unresolved in history (this is the documented exception to the
		// "every ToolUse has a ToolResult" invariant) and the turn ends
		// without executing them.
		if step == maxTurns {
			l.emit(ctx, engine.Event{Type: engine.EventStatus, StatusMessage: "max steps reached"})
			l.emit(ctx, engine.Event{Type: engine.EventTurnComplete, Usage: l.Tokens()})
			return l.buildResult("max_turns", step), nil
		}

		// Filter through hooks.
		allowed, blocked := l.FilterToolCalls(ctx, calls)
		for _, br := range blocked {
			l.AddToolResult(br)
		}

		// Execute tools sequentially, in the model's emission order; a
		// failed tool call does not abort the turn (§4.3(g)).
		for _, tc := range allowed {
			select {
			case <-ctx.Done():
				l.discardDanglingAssistant()
				l.emit(ctx, engine.Event{Type: engine.EventError, Message: "cancelled", Recoverable: true})
				return l.buildResult("cancelled", step), ctx.Err()
			default:
			}

			if opts.OnToolStart != nil && !opts.OnToolStart(tc) {
				continue
			}

			result := l.ExecTool(ctx, tc)
			l.AddToolResult(*result)
			if opts.OnToolDone != nil {
				opts.OnToolDone(tc, *result)
			}
		}
	}

	return l.buildResult("max_turns", maxTurns), nil
}

// runCompaction runs the Compactor (§4.10) before the next outgoing request
// and returns a warning string if summarization failed (non-fatal).
func (l *Loop) runCompaction(ctx context.Context) string {
	_, warning := l.MaybeCompact(ctx)
	return warning
}

// emit sends an event on Events if one is wired, without blocking past
// context cancellation. A nil Events makes this a no-op.
func (l *Loop) emit(ctx context.Context, ev engine.Event) {
	if l.Events == nil {
		return
	}
	select {
	case l.Events <- ev:
	case <-ctx.Done():
	}
}

// discardDanglingAssistant drops the last assistant message if it carries
// unsatisfied tool uses, preserving the turn-alternation invariant after a
// mid-turn cancellation (spec.md §5, §9).
func (l *Loop) discardDanglingAssistant() {
	if len(l.messages) == 0 {
		return
	}
	last := l.messages[len(l.messages)-1]
	if last.Role == message.RoleAssistant && len(last.ToolCalls) > 0 {
		l.messages = l.messages[:len(l.messages)-1]
	}
}

func (l *Loop) buildResult(reason string, turns int) *Result {
	return &Result{
		Content:    l.lastAssistantContent(),
		Messages:   l.messages,
		Turns:      turns,
		Tokens:     l.Client.Tokens(),
		StopReason: reason,
	}
}

// lastAssistantContent returns the content of the most recent assistant message.
func (l *Loop) lastAssistantContent() string {
	for i := len(l.messages) - 1; i >= 0; i-- {
		msg := l.messages[i]
		if msg.Role == message.RoleAssistant && msg.Content != "" {
			return msg.Content
		}
	}
	return ""
}

// --- Low-level: incremental control (for TUI / event-driven callers) ---

// Stream starts an LLM stream and returns the chunk channel.
// It builds the system prompt and tool set from the loop's fields.
func (l *Loop) Stream(ctx context.Context) <-chan message.StreamChunk {
	sysPrompt := l.renderedSystemPrompt()
	tools := l.Tool.Tools()
	return l.Client.Stream(ctx, l.messages, tools, sysPrompt)
}

// Collect synchronously drains a stream into a CompletionResponse.
func Collect(ctx context.Context, ch <-chan message.StreamChunk) (*message.CompletionResponse, error) {
	var response message.CompletionResponse

	for chunk := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch chunk.Type {
		case message.ChunkTypeText:
			response.Content += chunk.Text
		case message.ChunkTypeThinking:
			response.Thinking += chunk.Text
		case message.ChunkTypeToolStart:
			response.ToolCalls = append(response.ToolCalls, message.ToolCall{
				ID:   chunk.ToolID,
				Name: chunk.ToolName,
			})
		case message.ChunkTypeToolInput:
			if len(response.ToolCalls) > 0 {
				idx := len(response.ToolCalls) - 1
				response.ToolCalls[idx].Input += chunk.Text
			}
		case message.ChunkTypeDone:
			if chunk.Response != nil {
				return chunk.Response, nil
			}
			return &response, nil
		case message.ChunkTypeError:
			return nil, chunk.Error
		}
	}

	return &response, nil
}

// collectStreaming drains a stream into a CompletionResponse like Collect,
// additionally emitting MessageStarted/MessageDelta/MessageComplete and
// ThinkingStarted/ThinkingDelta/ThinkingComplete on Events as chunks arrive
// (spec.md §4.3(d)). Block indices are tracked locally since StreamChunk
// carries no index of its own.
func (l *Loop) collectStreaming(ctx context.Context, ch <-chan message.StreamChunk) (*message.CompletionResponse, error) {
	var response message.CompletionResponse
	messageOpen := false
	thinkingOpen := false
	blockIndex := -1

	for chunk := range ch {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch chunk.Type {
		case message.ChunkTypeText:
			if !messageOpen {
				blockIndex++
				l.emit(ctx, engine.Event{Type: engine.EventMessageStarted, Index: blockIndex})
				messageOpen = true
			}
			response.Content += chunk.Text
			l.emit(ctx, engine.Event{Type: engine.EventMessageDelta, Index: blockIndex, Content: chunk.Text})

		case message.ChunkTypeThinking:
			if !thinkingOpen {
				blockIndex++
				l.emit(ctx, engine.Event{Type: engine.EventThinkingStarted, Index: blockIndex})
				thinkingOpen = true
			}
			response.Thinking += chunk.Text
			l.emit(ctx, engine.Event{Type: engine.EventThinkingDelta, Index: blockIndex, Content: chunk.Text})

		case message.ChunkTypeToolStart:
			blockIndex++
			response.ToolCalls = append(response.ToolCalls, message.ToolCall{
				ID:   chunk.ToolID,
				Name: chunk.ToolName,
			})

		case message.ChunkTypeToolInput:
			if len(response.ToolCalls) > 0 {
				idx := len(response.ToolCalls) - 1
				response.ToolCalls[idx].Input += chunk.Text
			}

		case message.ChunkTypeDone:
			if messageOpen {
				l.emit(ctx, engine.Event{Type: engine.EventMessageComplete, Index: blockIndex})
			}
			if thinkingOpen {
				l.emit(ctx, engine.Event{Type: engine.EventThinkingComplete})
			}
			if chunk.Response != nil {
				return chunk.Response, nil
			}
			return &response, nil

		case message.ChunkTypeError:
			l.emit(ctx, engine.Event{Type: engine.EventError, Message: chunk.Error.Error(), Recoverable: false})
			return nil, chunk.Error
		}
	}

	return &response, nil
}

// --- Message management ---

// Messages returns the current conversation messages.
func (l *Loop) Messages() []message.Message {
	return l.messages
}

// SetMessages replaces the conversation messages.
func (l *Loop) SetMessages(msgs []message.Message) {
	l.messages = msgs
}

// Tokens returns the accumulated token usage from the client.
func (l *Loop) Tokens() client.TokenUsage {
	if l.Client == nil {
		return client.TokenUsage{}
	}
	return l.Client.Tokens()
}

// AddUser appends a user message to the conversation.
func (l *Loop) AddUser(content string, images []message.ImageData) {
	l.messages = append(l.messages, message.UserMessage(content, images))
}

// AddResponse processes a CompletionResponse: appends the assistant message
// to the conversation, updates token counters, and returns the tool calls.
func (l *Loop) AddResponse(resp *message.CompletionResponse) []message.ToolCall {
	if l.Client != nil {
		l.Client.AddUsage(resp.Usage)
	}

	l.messages = append(l.messages, message.AssistantMessage(resp.Content, resp.Thinking, resp.ToolCalls))

	return resp.ToolCalls
}

// AddToolResult appends a tool result message to the conversation.
func (l *Loop) AddToolResult(r message.ToolResult) {
	l.messages = append(l.messages, message.ToolResultMessage(r))
}

// --- Tool dispatch ---

// FilterToolCalls runs PreToolUse hooks, returning allowed tool calls and blocked results.
func (l *Loop) FilterToolCalls(ctx context.Context, calls []message.ToolCall) (
	allowed []message.ToolCall, blocked []message.ToolResult,
) {
	if l.Hooks == nil {
		return calls, nil
	}

	for _, tc := range calls {
		params, _ := message.ParseToolInput(tc.Input)
		outcome := l.Hooks.Execute(ctx, hooks.PreToolUse, hooks.HookInput{
			ToolName:  tc.Name,
			ToolInput: params,
			ToolUseID: tc.ID,
		})

		if outcome.ShouldBlock {
			blocked = append(blocked, *message.ErrorResult(tc, "Blocked by hook: "+outcome.BlockReason))
			continue
		}

		if outcome.UpdatedInput != nil {
			if updated, err := json.Marshal(outcome.UpdatedInput); err == nil {
				tc.Input = string(updated)
			}
		}
		allowed = append(allowed, tc)
	}
	return allowed, blocked
}

// ExecTool executes a single tool call: the Permission checker gates it
// first (Reject denies outright), then the Approval Policy (§4.6) decides
// whether it needs a human decision before running. ToolCallStarted and
// ToolCallComplete are emitted around the actual execution (§4.4).
func (l *Loop) ExecTool(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	params, err := message.ParseToolInput(tc.Input)
	if err != nil {
		return message.ErrorResult(tc, fmt.Sprintf("Error parsing tool input: %v", err))
	}

	decision := permission.Permit
	if l.Permission != nil {
		decision = l.Permission.Check(tc.Name, params)
	}

	if decision == permission.Reject {
		return message.ErrorResult(tc, fmt.Sprintf("Tool %s is not permitted in this mode", tc.Name))
	}

	if result := l.checkApproval(ctx, tc); result != nil {
		return result
	}

	l.emit(ctx, engine.Event{Type: engine.EventToolCallStarted, ToolID: tc.ID, ToolName: tc.Name, ToolInput: tc.Input})
	result := l.runTool(ctx, tc, params)
	l.emit(ctx, engine.Event{Type: engine.EventToolCallComplete, ToolID: tc.ID, ToolName: tc.Name, ToolResult: result})

	return result
}

// checkApproval consults the Approval Policy (§4.6) for tc. When the policy
// requires a human decision, it emits ApprovalRequired and blocks on the Op
// channel for a matching ApproveToolCall/DenyToolCall op, implementing the
// approval-blocking-mid-turn mechanism as an internal queue over a channel
// (§4.8, §9). Returns a non-nil ToolResult when the call must not proceed.
func (l *Loop) checkApproval(ctx context.Context, tc message.ToolCall) *message.ToolResult {
	category, _, _ := tool.DefaultRegistry.CategoryOf(tc.Name)
	decision := approval.Check(l.Mode, category, l.ApprovalMode, tc.Name, l.SessionApproved)

	switch decision {
	case approval.DecisionAllow:
		return nil
	case approval.DecisionDeny:
		return message.ErrorResult(tc, fmt.Sprintf("Tool %s requires approval and approval mode is set to never", tc.Name))
	}

	l.emit(ctx, engine.Event{
		Type:                engine.EventApprovalRequired,
		ApprovalID:          tc.ID,
		ApprovalToolName:    tc.Name,
		ApprovalDescription: fmt.Sprintf("Run %s?", tc.Name),
	})

	if l.Ops == nil {
		// No driver is wired to answer approvals; auto-approve rather than
		// block forever, matching today's non-interactive callers.
		return nil
	}

	var timeoutCh <-chan time.Time
	if l.ApprovalTimeout > 0 {
		timer := time.NewTimer(l.ApprovalTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return message.ErrorResult(tc, "Tool call aborted: turn cancelled while awaiting approval")
		case <-timeoutCh:
			return message.ErrorResult(tc, fmt.Sprintf("Approval for %s timed out", tc.Name))
		case op, ok := <-l.Ops:
			if !ok {
				return message.ErrorResult(tc, "Tool call aborted: op channel closed while awaiting approval")
			}
			switch op.Type {
			case engine.OpApproveTool:
				if op.ToolID != tc.ID {
					continue
				}
				if op.ForSession {
					if l.SessionApproved == nil {
						l.SessionApproved = make(map[string]bool)
					}
					l.SessionApproved[tc.Name] = true
				}
				return nil
			case engine.OpDenyTool:
				if op.ToolID != tc.ID {
					continue
				}
				return message.ErrorResult(tc, fmt.Sprintf("Tool %s denied by user", tc.Name))
			case engine.OpCancelRequest:
				return message.ErrorResult(tc, "Tool call aborted: cancelled while awaiting approval")
			case engine.OpShutdown:
				return message.ErrorResult(tc, "Tool call aborted: shutdown requested while awaiting approval")
			}
			// Any other op is irrelevant to this pending approval; keep waiting.
		}
	}
}

// runTool runs the actual tool execution.
func (l *Loop) runTool(ctx context.Context, tc message.ToolCall, params map[string]any) *message.ToolResult {
	cwd := ""
	if l.System != nil {
		cwd = l.System.Cwd
	}

	t, ok := tool.Get(tc.Name)
	if !ok {
		return message.ErrorResult(tc, fmt.Sprintf("Unknown tool: %s", tc.Name))
	}

	var toolResult tool.ToolResult
	if pat, ok := t.(tool.PermissionAwareTool); ok && pat.RequiresPermission() {
		toolResult = pat.ExecuteApproved(ctx, params, cwd)
	} else {
		toolResult = t.Execute(ctx, params, cwd)
	}

	log.Logger().Debug("Tool executed",
		zap.String("tool", tc.Name),
		zap.Bool("success", toolResult.Success),
	)

	return &message.ToolResult{
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    toolResult.FormatForLLM(),
		IsError:    !toolResult.Success,
	}
}

// --- Compaction ---

// Compact summarizes a conversation to reduce context window usage.
// It sends the conversation to the LLM with a compact prompt and returns
// the summary text, the original message count, and any error. This is the
// low-level primitive the Compactor (MaybeCompact) builds on; it performs
// no threshold check or history rewrite of its own.
func Compact(ctx context.Context, c *client.Client,
	msgs []message.Message, focus string) (summary string, count int, err error) {
	count = len(msgs)

	conversationText := message.BuildConversationText(msgs)

	if focus != "" {
		conversationText += fmt.Sprintf("\n\n**Important**: Focus the summary on: %s", focus)
	}

	response, err := c.Complete(ctx,
		system.CompactPrompt(),
		[]message.Message{message.UserMessage(conversationText, nil)},
		2048,
	)
	if err != nil {
		return "", count, fmt.Errorf("failed to generate summary: %w", err)
	}

	return strings.TrimSpace(response.Content), count, nil
}
