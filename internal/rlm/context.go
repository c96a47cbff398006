// Package rlm implements the Recursive Language Model subsystem: a
// context store holding large loaded documents plus a small scripting
// language (rlm_exec) and model sub-call tool (rlm_query) for working
// through them in slices instead of stuffing them into the main
// conversation.
package rlm

import (
	"fmt"
	"regexp"
	"strings"
)

// Context holds one loaded document plus any variables an rlm_exec
// script has stashed in it (via set/append). Query usage from rlm_query
// sub-calls is recorded on the Session, not here.
type Context struct {
	ID         string
	Content    string
	SourcePath string
	LineCount  int
	CharCount  int
	Variables  map[string]string
}

// NewContext builds a Context, deriving LineCount/CharCount from content.
func NewContext(id, content, sourcePath string) *Context {
	return &Context{
		ID:         id,
		Content:    content,
		SourcePath: sourcePath,
		LineCount:  strings.Count(content, "\n") + boolToInt(content != "" && !strings.HasSuffix(content, "\n")),
		CharCount:  len(content),
		Variables:  make(map[string]string),
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Peek returns the raw character slice content[start:end], clamped to
// content bounds.
func (c *Context) Peek(start int, end *int) string {
	if start < 0 {
		start = 0
	}
	if start > len(c.Content) {
		start = len(c.Content)
	}
	e := len(c.Content)
	if end != nil && *end < e {
		e = *end
	}
	if e < start {
		e = start
	}
	return c.Content[start:e]
}

// Lines returns 1-based (lineNo, text) pairs for the half-open line
// range [start, end) of 0-based line indices.
func (c *Context) Lines(start int, end *int) []LineEntry {
	lines := strings.Split(c.Content, "\n")
	if start < 0 {
		start = 0
	}
	if start > len(lines) {
		start = len(lines)
	}
	e := len(lines)
	if end != nil && *end < e {
		e = *end
	}
	if e < start {
		e = start
	}

	out := make([]LineEntry, 0, e-start)
	for i := start; i < e; i++ {
		out = append(out, LineEntry{LineNo: i + 1, Text: lines[i]})
	}
	return out
}

// LineEntry is one numbered line from Context.Lines.
type LineEntry struct {
	LineNo int
	Text   string
}

// SearchResult is one regex match from Context.Search, with surrounding
// context lines for orientation.
type SearchResult struct {
	LineNo    int
	MatchLine string
	Context   []string
}

// Search runs a regex over the content line by line, returning up to
// maxResults matches each with contextLines of surrounding context,
// formatted "%5d > text" for the match and "%5d   text" otherwise.
func (c *Context) Search(pattern string, contextLines, maxResults int) ([]SearchResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	lines := strings.Split(c.Content, "\n")
	var results []SearchResult

	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}

		start := max(0, i-contextLines)
		end := min(len(lines), i+contextLines+1)

		ctxLines := make([]string, 0, end-start)
		for j := start; j < end; j++ {
			lineNo := j + 1
			if j == i {
				ctxLines = append(ctxLines, fmt.Sprintf("%5d > %s", lineNo, lines[j]))
			} else {
				ctxLines = append(ctxLines, fmt.Sprintf("%5d   %s", lineNo, lines[j]))
			}
		}

		results = append(results, SearchResult{
			LineNo:    i + 1,
			MatchLine: line,
			Context:   ctxLines,
		})

		if len(results) >= maxResults {
			break
		}
	}

	return results, nil
}

// Chunk is one fixed-size, overlapping window over Content (chars).
type Chunk struct {
	Index     int
	StartChar int
	EndChar   int
	Preview   string
}

// Chunk splits Content into chunkSize windows, each starting overlap
// chars before the previous one ends, matching the original RLM sandbox's chunk() semantics.
func (c *Context) Chunk(chunkSize, overlap int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	var chunks []Chunk
	start := 0
	idx := 0

	for start < len(c.Content) {
		end := min(start+chunkSize, len(c.Content))
		previewEnd := min(start+100, end)
		preview := strings.ReplaceAll(c.Content[start:previewEnd], "\n", " ")

		chunks = append(chunks, Chunk{Index: idx, StartChar: start, EndChar: end, Preview: preview})

		if end == len(c.Content) {
			start = end
		} else {
			next := end - overlap
			if next <= start {
				next = start + 1
			}
			start = next
		}
		idx++
	}
	return chunks
}

// Section is a ChunkSections window — like Chunk but non-overlapping
// and sized for whole-section sub-queries (rlm_query section_index).
type Section struct {
	Index     int
	StartChar int
	EndChar   int
}

// ChunkSections splits Content into contiguous, non-overlapping
// sections of sectionSize chars.
func (c *Context) ChunkSections(sectionSize int) []Section {
	if sectionSize <= 0 {
		sectionSize = 20000
	}
	var sections []Section
	start := 0
	idx := 0
	for start < len(c.Content) {
		end := min(start+sectionSize, len(c.Content))
		sections = append(sections, Section{Index: idx, StartChar: start, EndChar: end})
		start = end
		idx++
	}
	return sections
}

// ChunkAuto is an alias for ChunkSections used by rlm_query's
// auto_chunks mode (same non-overlapping semantics, different caller).
func (c *Context) ChunkAuto(maxChars int) []Section {
	return c.ChunkSections(maxChars)
}

// SetVar, GetVar, AppendVar, DelVar back the vars/get/set/append/del
// rlm_exec verbs, letting a script accumulate findings across calls.
func (c *Context) SetVar(name, value string) { c.Variables[name] = value }

func (c *Context) GetVar(name string) (string, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

func (c *Context) AppendVar(name, value string) {
	c.Variables[name] = c.Variables[name] + value
}

func (c *Context) DelVar(name string) { delete(c.Variables, name) }
