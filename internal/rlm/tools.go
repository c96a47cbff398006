package rlm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gencode-ai/turnengine/internal/client"
	"github.com/gencode-ai/turnengine/internal/message"
	"github.com/gencode-ai/turnengine/internal/provider"
	"github.com/gencode-ai/turnengine/internal/tool"
)

// Constants carried over verbatim from the RLM sub-call design: a
// runaway rlm_query batch should fail loudly rather than silently
// truncate the model's context window.
const (
	DefaultQueryMaxTokens   = 2048
	MaxQueryMaxTokens       = 8192
	MaxExecOutputChars      = 12000
	MaxQueryChars           = 400000
	DefaultAutoChunkMaxChars = 20000
)

// DefaultSession is the process-wide RLM context store, shared across
// the four rlm_* tools the way task.DefaultManager is shared across
// the background-shell tools.
var DefaultSession = NewSession()

// RlmLoadTool loads a file into the RLM context store.
type RlmLoadTool struct{}

func (t *RlmLoadTool) Name() string        { return "rlm_load" }
func (t *RlmLoadTool) Description() string { return "Load a file into the RLM context store. Returns the context_id and stats. Use @path for workspace-relative loads." }
func (t *RlmLoadTool) Icon() string        { return tool.IconRead }

func (t *RlmLoadTool) Category() tool.Category          { return tool.CategorySafe }
func (t *RlmLoadTool) Capabilities() []tool.Capability  { return []tool.Capability{tool.CapReadOnly} }
func (t *RlmLoadTool) ApprovalRequirement() tool.ApprovalRequirement { return tool.ApprovalAuto }

func (t *RlmLoadTool) Execute(ctx context.Context, params map[string]any, cwd string) tool.ToolResult {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "path is required")
	}

	normalized, err := NormalizeLoadPath(path)
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, err.Error())
	}

	resolved, err := tool.ResolvePath(cwd, normalized, tool.Trusted(ctx))
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrPermissionDenied, err.Error())
	}

	contextID, _ := params["context_id"].(string)
	baseID := contextID
	if baseID == "" {
		baseID = ContextIDFromPath(resolved)
	}
	id := baseID
	if !DefaultSession.HasContext(baseID) {
		id = DefaultSession.UniqueContextID(baseID)
	}

	lineCount, charCount, err := DefaultSession.LoadFile(id, resolved)
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrExecutionFailed, err.Error())
	}

	return tool.ToolResult{
		Success: true,
		Output:  fmt.Sprintf("Loaded %s as '%s' (%d lines, %d chars)", resolved, id, lineCount, charCount),
		Metadata: tool.ResultMetadata{
			Title:     t.Name(),
			Icon:      t.Icon(),
			Subtitle:  id,
			LineCount: lineCount,
			Size:      int64(charCount),
		},
	}
}

func init() { tool.Register(&RlmLoadTool{}) }

// RlmExecTool evaluates an RLM script against the active (or named)
// context.
type RlmExecTool struct{}

func (t *RlmExecTool) Name() string { return "rlm_exec" }
func (t *RlmExecTool) Description() string {
	return "Execute an RLM expression against the current context. Supports: len, line_count, head, tail, peek(), lines(), search(), chunk(), chunk_sections(), chunk_auto(), vars/get/set/append/del."
}
func (t *RlmExecTool) Icon() string { return tool.IconSearch }

func (t *RlmExecTool) Category() tool.Category         { return tool.CategorySafe }
func (t *RlmExecTool) Capabilities() []tool.Capability { return []tool.Capability{tool.CapReadOnly} }
func (t *RlmExecTool) ApprovalRequirement() tool.ApprovalRequirement { return tool.ApprovalAuto }

func (t *RlmExecTool) Execute(ctx context.Context, params map[string]any, cwd string) tool.ToolResult {
	code, ok := params["code"].(string)
	if !ok || code == "" {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "code is required")
	}
	contextID, _ := params["context_id"].(string)
	if contextID == "" {
		contextID = DefaultSession.ActiveContext
	}

	rctx, found := DefaultSession.GetContext(contextID)
	if !found {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, fmt.Sprintf("context %q not loaded", contextID))
	}

	output, err := EvalScript(rctx, code)
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrExecutionFailed, err.Error())
	}

	truncated := false
	if len(output) > MaxExecOutputChars {
		output = truncateToBoundary(output, MaxExecOutputChars) + fmt.Sprintf("\n\n[output truncated to %d chars]", MaxExecOutputChars)
		truncated = true
	}

	return tool.ToolResult{
		Success: true,
		Output:  output,
		Metadata: tool.ResultMetadata{
			Title:     t.Name(),
			Icon:      t.Icon(),
			Subtitle:  contextID,
			Truncated: truncated,
		},
	}
}

func init() { tool.Register(&RlmExecTool{}) }

// RlmStatusTool summarizes the RLM session's loaded contexts and
// running sub-query usage.
type RlmStatusTool struct{}

func (t *RlmStatusTool) Name() string        { return "rlm_status" }
func (t *RlmStatusTool) Description() string { return "Show RLM session status (contexts, usage, variables)." }
func (t *RlmStatusTool) Icon() string        { return tool.IconSearch }

func (t *RlmStatusTool) Category() tool.Category         { return tool.CategorySafe }
func (t *RlmStatusTool) Capabilities() []tool.Capability { return []tool.Capability{tool.CapReadOnly} }
func (t *RlmStatusTool) ApprovalRequirement() tool.ApprovalRequirement { return tool.ApprovalAuto }

func (t *RlmStatusTool) Execute(ctx context.Context, params map[string]any, cwd string) tool.ToolResult {
	return tool.ToolResult{
		Success: true,
		Output:  DefaultSession.Summary(),
		Metadata: tool.ResultMetadata{
			Title: t.Name(),
			Icon:  t.Icon(),
		},
	}
}

func init() { tool.Register(&RlmStatusTool{}) }

// RlmQueryTool runs a focused model sub-call over a context slice —
// the "recursive" half of the Recursive Language Model: instead of
// feeding the whole document to the main conversation, a chunk goes
// to a disposable one-shot call and only its FINAL answer comes back.
type RlmQueryTool struct{}

func (t *RlmQueryTool) Name() string { return "rlm_query" }
func (t *RlmQueryTool) Description() string {
	return "Run a focused LLM query over a context slice. Provide line/char range, chunk index, or section index; use batch for multiple queries or auto_chunks for chunk_auto batching."
}
func (t *RlmQueryTool) Icon() string { return tool.IconSearch }

func (t *RlmQueryTool) Category() tool.Category { return tool.CategorySafe }
func (t *RlmQueryTool) Capabilities() []tool.Capability {
	return []tool.Capability{tool.CapNetwork, tool.CapRequiresApproval}
}
func (t *RlmQueryTool) ApprovalRequirement() tool.ApprovalRequirement { return tool.ApprovalSuggest }

func (t *RlmQueryTool) Execute(ctx context.Context, params map[string]any, cwd string) tool.ToolResult {
	c, err := resolveClient(ctx)
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrNotAvailable, err.Error())
	}

	autoChunks, _ := params["auto_chunks"].(bool)
	batchItems, hasBatch := params["batch"].([]any)
	if autoChunks && hasBatch {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "auto_chunks cannot be combined with batch queries")
	}

	query, _ := params["query"].(string)
	if (autoChunks || !hasBatch) && query == "" {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "query is required")
	}

	contextID, _ := params["context_id"].(string)
	mode, _ := params["mode"].(string)
	if mode == "" {
		mode = "analysis"
	}
	storeAs, _ := params["store_as"].(string)

	defaultMax := defaultQueryMaxTokens(c.Model)
	maxTokens := intParam(params, "max_tokens", defaultMax)
	if maxTokens < 256 {
		maxTokens = 256
	}
	if maxTokens > MaxQueryMaxTokens {
		maxTokens = MaxQueryMaxTokens
	}

	var prompt, usedContextID string
	var batchCount int

	switch {
	case autoChunks:
		maxChars := intParam(params, "auto_max_chars", DefaultAutoChunkMaxChars)
		maxChunks := intParam(params, "auto_max_chunks", 0)
		chunks, ctxID, err := t.extractAutoChunks(contextID, maxChars)
		if err != nil {
			return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, err.Error())
		}
		if len(chunks) == 0 {
			return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "no chunks available for auto_chunks")
		}
		if maxChunks > 0 && len(chunks) > maxChunks {
			return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput,
				fmt.Sprintf("auto_chunks produced %d chunks; reduce input or set auto_max_chunks", len(chunks)))
		}

		var tasks []string
		total := 0
		for i, chunk := range chunks {
			task := fmt.Sprintf("TASK %d:\nContext:\n%s\n\nQuestion:\n%s\n", i+1, chunk, query)
			total += len(task)
			if total > MaxQueryChars {
				return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput,
					"auto_chunks payload too large; lower auto_max_chars or use manual batching")
			}
			tasks = append(tasks, task)
		}
		prompt = subcallPrompt(mode, true) + "\n\n" + strings.Join(tasks, "\n")
		usedContextID = ctxID
		batchCount = len(tasks)

	case hasBatch:
		if len(batchItems) == 0 {
			return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, "batch must include at least one query")
		}
		var tasks []string
		fallback := contextID
		for i, raw := range batchItems {
			item, _ := raw.(map[string]any)
			itemQuery, _ := item["query"].(string)
			chunk, ctxID, err := t.extractChunk(item, fallback)
			if err != nil {
				return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, err.Error())
			}
			fallback = ctxID
			tasks = append(tasks, fmt.Sprintf("TASK %d:\nContext:\n%s\n\nQuestion:\n%s\n", i+1, chunk, itemQuery))
		}
		prompt = subcallPrompt(mode, true) + "\n\n" + strings.Join(tasks, "\n")
		usedContextID = fallback
		batchCount = len(batchItems)

	default:
		chunk, ctxID, err := t.extractChunk(params, contextID)
		if err != nil {
			return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput, err.Error())
		}
		prompt = fmt.Sprintf("%s\n\nContext:\n%s\n\nQuestion:\n%s\n", subcallPrompt(mode, false), chunk, query)
		usedContextID = ctxID
		batchCount = 1
	}

	if len(prompt) > MaxQueryChars {
		return tool.NewKindErrorResult(t.Name(), tool.ErrInvalidInput,
			fmt.Sprintf("RLM query payload is too large (%d chars); use smaller chunks or batch less", len(prompt)))
	}

	resp, err := c.Complete(ctx, subcallSystemPrompt(mode), []message.Message{message.UserMessage(prompt, nil)}, maxTokens)
	if err != nil {
		return tool.NewKindErrorResult(t.Name(), tool.ErrExecutionFailed, "RLM query failed: "+err.Error())
	}

	responseText := strings.TrimSpace(resp.Content)
	t.recordUsage(usedContextID, resp.Usage, len(prompt), len(responseText), responseText, storeAs)

	return tool.ToolResult{
		Success: true,
		Output:  responseText,
		Metadata: tool.ResultMetadata{
			Title:    t.Name(),
			Icon:     t.Icon(),
			Subtitle: fmt.Sprintf("%s (%d queries)", usedContextID, batchCount),
		},
	}
}

func (t *RlmQueryTool) extractChunk(input map[string]any, fallbackContextID string) (string, string, error) {
	ctxID, _ := input["context_id"].(string)
	if ctxID == "" {
		ctxID = fallbackContextID
	}
	if ctxID == "" {
		ctxID = DefaultSession.ActiveContext
	}

	rctx, found := DefaultSession.GetContext(ctxID)
	if !found {
		return "", "", fmt.Errorf("context %q not loaded", ctxID)
	}

	if text, ok := input["text"].(string); ok && text != "" {
		return text, ctxID, nil
	}
	if v, ok := input["section_index"]; ok {
		idx := toInt(v)
		sectionSize := intParam(input, "section_size", 20000)
		sections := rctx.ChunkSections(sectionSize)
		if idx < 0 || idx >= len(sections) {
			return "", "", fmt.Errorf("section index %d out of range", idx)
		}
		s := sections[idx]
		end := s.EndChar
		return rctx.Peek(s.StartChar, &end), ctxID, nil
	}
	if v, ok := input["chunk_index"]; ok {
		idx := toInt(v)
		chunkSize := intParam(input, "chunk_size", 2000)
		overlap := intParam(input, "overlap", 200)
		chunks := rctx.Chunk(chunkSize, overlap)
		if idx < 0 || idx >= len(chunks) {
			return "", "", fmt.Errorf("chunk index %d out of range", idx)
		}
		c := chunks[idx]
		end := c.EndChar
		return rctx.Peek(c.StartChar, &end), ctxID, nil
	}
	if v, ok := input["line_start"]; ok {
		start := toInt(v)
		var end *int
		if e, ok := input["line_end"]; ok {
			ev := toInt(e)
			end = &ev
		}
		return extractLines(rctx, start, end), ctxID, nil
	}
	if v, ok := input["char_start"]; ok {
		start := toInt(v)
		var end *int
		if e, ok := input["char_end"]; ok {
			ev := toInt(e)
			end = &ev
		}
		return rctx.Peek(start, end), ctxID, nil
	}

	return "", "", fmt.Errorf("provide chunk_index, section_index, line_start, or char_start")
}

func (t *RlmQueryTool) extractAutoChunks(fallbackContextID string, maxChars int) ([]string, string, error) {
	ctxID := fallbackContextID
	if ctxID == "" {
		ctxID = DefaultSession.ActiveContext
	}
	rctx, found := DefaultSession.GetContext(ctxID)
	if !found {
		return nil, "", fmt.Errorf("context %q not loaded", ctxID)
	}

	if maxChars < 1 {
		maxChars = 1
	}
	sections := rctx.ChunkAuto(maxChars)
	outputs := make([]string, len(sections))
	for i, s := range sections {
		end := s.EndChar
		outputs[i] = rctx.Peek(s.StartChar, &end)
	}
	return outputs, ctxID, nil
}

func (t *RlmQueryTool) recordUsage(contextID string, usage message.Usage, charsSent, charsReceived int, responseText, storeAs string) {
	DefaultSession.RecordQueryUsage(usage, charsSent, charsReceived)

	rctx, found := DefaultSession.GetContext(contextID)
	if !found {
		return
	}
	if storeAs != "" {
		final := extractFinal(responseText)
		if final == "" {
			final = responseText
		}
		rctx.SetVar(storeAs, final)
	}
	for name, value := range extractFinalVars(responseText) {
		rctx.SetVar(name, value)
	}
}

func init() { tool.Register(&RlmQueryTool{}) }

// resolveClient builds a one-shot client.Client from the persisted
// provider store's current model, the same way the turn loop's main
// client is configured, so sub-queries use whatever model the session
// is already connected to.
func resolveClient(ctx context.Context) (*client.Client, error) {
	store, err := provider.NewStore()
	if err != nil {
		return nil, fmt.Errorf("rlm query requires an API client: %w", err)
	}
	current := store.GetCurrentModel()
	if current == nil {
		return nil, fmt.Errorf("rlm query requires an API client: no model configured")
	}

	key := string(current.Provider) + ":" + string(current.AuthMethod)
	p, err := provider.NewProvider(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("rlm query requires an API client: %w", err)
	}

	return &client.Client{Provider: p, Model: current.ModelID}, nil
}

func defaultQueryMaxTokens(model string) int {
	if strings.Contains(strings.ToLower(model), "claude") {
		return 1024
	}
	return DefaultQueryMaxTokens
}

func extractLines(ctx *Context, start int, end *int) string {
	if start < 1 {
		start = 1
	}
	endLine := ctx.LineCount
	if end != nil && *end > 0 {
		endLine = *end
	}
	if endLine < start {
		endLine = start
	}
	startIdx := start - 1
	endIdx := endLine
	if endIdx > ctx.LineCount {
		endIdx = ctx.LineCount
	}
	return formatLines(ctx.Lines(startIdx, &endIdx))
}

var finalRe = regexp.MustCompile(`(?s)FINAL\s*:?\s*(.+)$`)
var finalVarRe = regexp.MustCompile(`(?m)^FINAL_VAR\(([^)]+)\)\s*:?\s*(.+)$`)

func extractFinal(text string) string {
	m := finalRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractFinalVars(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range finalVarRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		value := strings.TrimSpace(m[2])
		if name != "" && value != "" {
			out[name] = value
		}
	}
	return out
}

func subcallPrompt(mode string, batch bool) string {
	switch {
	case mode == "verify" && batch:
		return "You are verifying answers. Provide a brief check for each task."
	case mode == "verify":
		return "You are verifying an answer. Provide a brief check and highlight any issues."
	case batch:
		return "Answer each task using only the provided context. Label each response clearly."
	default:
		return "Answer the question using only the provided context."
	}
}

func subcallSystemPrompt(mode string) string {
	prompt := "You are an RLM sub-call. Use ONLY the provided context. Respond concisely.\n\n" +
		"Output format:\n- Use FINAL: <answer> for the final response.\n- Use FINAL_VAR(name): <value> to store buffer values if needed.\n"
	if mode == "verify" {
		prompt += "\nVerification mode: check for contradictions or missing evidence."
	}
	return prompt
}

func truncateToBoundary(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}

func intParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	return toInt(v)
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, err := strconv.Atoi(n)
		if err == nil {
			return i
		}
	}
	return 0
}
