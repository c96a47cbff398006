package rlm

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalExpr evaluates one rlm_exec statement against ctx, mutating its
// Variables map for vars/get/set/append/del, and returns its textual
// result (empty string for statements with no output, e.g. set/del).
func EvalExpr(ctx *Context, expr string) (string, error) {
	code := strings.TrimSpace(expr)

	switch code {
	case "len", "len(ctx)":
		return strconv.Itoa(ctx.CharCount), nil
	case "line_count", "lines":
		return strconv.Itoa(ctx.LineCount), nil
	case "head", "head()":
		return formatLines(ctx.Lines(0, intPtr(10))), nil
	case "tail", "tail()":
		start := ctx.LineCount - 10
		if start < 0 {
			start = 0
		}
		return formatLines(ctx.Lines(start, nil)), nil
	case "vars":
		return formatVars(ctx), nil
	}

	if args, ok := call(code, "peek"); ok {
		start, end := parseRange(args)
		return ctx.Peek(start, end), nil
	}
	if args, ok := call(code, "lines"); ok {
		start, end := parseRange(args)
		return formatLines(ctx.Lines(start, end)), nil
	}
	if args, ok := call(code, "search"); ok {
		pattern := strings.Trim(strings.TrimSpace(args), `"'`)
		results, err := ctx.Search(pattern, 2, 20)
		if err != nil {
			return "", err
		}
		return formatSearch(results), nil
	}
	if args, ok := call(code, "chunk"); ok {
		size, overlap := parseSizeOverlap(args, 2000, 200)
		return formatChunks(ctx.Chunk(size, overlap)), nil
	}
	if args, ok := call(code, "chunk_sections"); ok {
		size, _ := parseSizeOverlap(args, 20000, 0)
		return formatSections(ctx.ChunkSections(size)), nil
	}
	if args, ok := call(code, "chunk_auto"); ok {
		size, _ := parseSizeOverlap(args, 20000, 0)
		return formatSections(ctx.ChunkAuto(size)), nil
	}
	if args, ok := call(code, "get"); ok {
		name := strings.Trim(strings.TrimSpace(args), `"'`)
		v, found := ctx.GetVar(name)
		if !found {
			return "", fmt.Errorf("variable %q not set", name)
		}
		return v, nil
	}
	if args, ok := call(code, "set"); ok {
		name, value, err := parseNameValue(args)
		if err != nil {
			return "", err
		}
		ctx.SetVar(name, value)
		return "", nil
	}
	if args, ok := call(code, "append"); ok {
		name, value, err := parseNameValue(args)
		if err != nil {
			return "", err
		}
		ctx.AppendVar(name, value)
		return "", nil
	}
	if args, ok := call(code, "del"); ok {
		name := strings.Trim(strings.TrimSpace(args), `"'`)
		ctx.DelVar(name)
		return "", nil
	}

	return "", fmt.Errorf("unknown expression: %s (supported: len, line_count, head, tail, peek(s,e), lines(s,e), search(pattern), chunk(size,overlap), chunk_sections(size), chunk_auto(size), vars, get(name), set(name,value), append(name,value), del(name))", code)
}

// EvalScript runs each non-blank line of code through EvalExpr in
// order (so set()/append() calls in earlier lines are visible to
// later ones) and joins the non-empty results with newlines.
func EvalScript(ctx *Context, code string) (string, error) {
	var outputs []string
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		result, err := EvalExpr(ctx, trimmed)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(result) != "" {
			outputs = append(outputs, result)
		}
	}
	return strings.Join(outputs, "\n"), nil
}

func call(code, name string) (string, bool) {
	prefix := name + "("
	if !strings.HasPrefix(code, prefix) || !strings.HasSuffix(code, ")") {
		return "", false
	}
	return code[len(prefix) : len(code)-1], true
}

func parseRange(args string) (int, *int) {
	parts := splitArgs(args)
	start := 0
	if len(parts) > 0 {
		if v, err := strconv.Atoi(parts[0]); err == nil {
			start = v
		}
	}
	var end *int
	if len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			end = &v
		}
	}
	return start, end
}

func parseSizeOverlap(args string, defaultSize, defaultOverlap int) (int, int) {
	parts := splitArgs(args)
	size := defaultSize
	if len(parts) > 0 {
		if v, err := strconv.Atoi(parts[0]); err == nil {
			size = v
		}
	}
	overlap := defaultOverlap
	if len(parts) > 1 {
		if v, err := strconv.Atoi(parts[1]); err == nil {
			overlap = v
		}
	}
	return size, overlap
}

func parseNameValue(args string) (string, string, error) {
	parts := splitArgs(args)
	if len(parts) < 2 {
		return "", "", fmt.Errorf("expected name, value arguments, got %q", args)
	}
	name := strings.Trim(parts[0], `"'`)
	value := strings.Trim(strings.Join(parts[1:], ","), `"' `)
	return name, value, nil
}

func splitArgs(args string) []string {
	raw := strings.Split(args, ",")
	out := make([]string, len(raw))
	for i, p := range raw {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func intPtr(v int) *int { return &v }

func formatLines(lines []LineEntry) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = fmt.Sprintf("%5d %s", l.LineNo, l.Text)
	}
	return strings.Join(parts, "\n")
}

func formatSearch(results []SearchResult) string {
	if len(results) == 0 {
		return "No matches found."
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n" + strings.Repeat("-", 60) + "\n")
		}
		sb.WriteString(strings.Join(r.Context, "\n"))
	}
	return sb.String()
}

func formatChunks(chunks []Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		preview := c.Preview
		if len(preview) > 50 {
			preview = preview[:50]
		}
		parts[i] = fmt.Sprintf("Chunk %d: chars %d..%d - %s", c.Index, c.StartChar, c.EndChar, preview)
	}
	return strings.Join(parts, "\n")
}

func formatSections(sections []Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = fmt.Sprintf("Section %d: chars %d..%d", s.Index, s.StartChar, s.EndChar)
	}
	return strings.Join(parts, "\n")
}

func formatVars(ctx *Context) string {
	if len(ctx.Variables) == 0 {
		return "No variables set."
	}
	parts := make([]string, 0, len(ctx.Variables))
	for name, value := range ctx.Variables {
		preview := value
		if len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		parts = append(parts, fmt.Sprintf("%s = %s", name, preview))
	}
	return strings.Join(parts, "\n")
}
