package tool

import (
	"strconv"
	"strings"
	"time"
)

// Icons used in result metadata subtitles; purely descriptive, the engine
// never renders them — that's the UI's job, out of scope for this repo.
const (
	IconRead   = "\U0001F4C4"
	IconGlob   = "\U0001F50D"
	IconGrep   = "\U0001F50E"
	IconWeb    = "\U0001F310"
	IconSearch = "\U0001F50D"
)

// LineType distinguishes rendering intent for a ContentLine; kept because
// Read/Grep results carry structured line data other components may want,
// even though this repo does not render it.
type LineType int

const (
	LineNormal LineType = iota
	LineMatch
	LineHeader
	LineTruncated
)

// ContentLine is one line of structured tool output (Read, Grep).
type ContentLine struct {
	LineNo int
	Text   string
	Type   LineType
	File   string
}

// ResultMetadata describes a tool result for logging/approval-preview
// purposes (spec.md §3 Approval Request "displayable params").
type ResultMetadata struct {
	Title     string
	Icon      string
	Subtitle  string
	Size      int64
	LineCount int
	ItemCount int
	Duration  time.Duration
	Truncated bool
	// StatusCode is the HTTP status of a WebFetch response (0 otherwise).
	StatusCode int
}

// SkillResultInfo carries Skill-tool-specific result detail.
type SkillResultInfo struct {
	SkillName   string
	Scripts     []string
	ScriptCount int
	RefCount    int
}

// TodoItem is one entry in a TodoWrite/TodoRead call.
type TodoItem struct {
	Content    string `json:"content"`
	Status     string `json:"status"`
	ActiveForm string `json:"activeForm"`
}

// ToolResult is the Tool Result / Tool Error union from spec.md §3: a string
// payload plus optional structured metadata on success, or an error kind
// and message on failure. Every tool.Execute returns one of these.
type ToolResult struct {
	Success   bool
	Output    string
	Error     string
	ErrorKind ErrorKind
	Metadata  ResultMetadata
	Lines     []ContentLine
	Files     []string
	SkillInfo *SkillResultInfo
	TodoItems []TodoItem
	// Blocked marks a command-safety classifier refusal (spec.md §4.7):
	// the tool never ran.
	Blocked bool
}

// ErrorKind is the closed error taxonomy from spec.md §7.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrInvalidInput
	ErrExecutionFailed
	ErrPermissionDenied
	ErrNotAvailable
	ErrCancelled
	ErrTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidInput:
		return "invalid_input"
	case ErrExecutionFailed:
		return "execution_failed"
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrNotAvailable:
		return "not_available"
	case ErrCancelled:
		return "cancelled"
	case ErrTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// NewSuccessResult creates a success result with metadata.
func NewSuccessResult(title, icon, subtitle string, size int64, lineCount, itemCount int, duration time.Duration) ToolResult {
	return ToolResult{
		Success: true,
		Metadata: ResultMetadata{
			Title:     title,
			Icon:      icon,
			Subtitle:  subtitle,
			Size:      size,
			LineCount: lineCount,
			ItemCount: itemCount,
			Duration:  duration,
		},
	}
}

// NewErrorResult creates a generic ExecutionFailed error result.
func NewErrorResult(title, errorMsg string) ToolResult {
	return NewKindErrorResult(title, ErrExecutionFailed, errorMsg)
}

// NewKindErrorResult creates an error result with an explicit ErrorKind.
func NewKindErrorResult(title string, kind ErrorKind, errorMsg string) ToolResult {
	return ToolResult{
		Success:   false,
		Error:     errorMsg,
		ErrorKind: kind,
		Metadata:  ResultMetadata{Title: title},
	}
}

// Text returns a plain-text representation of the result for feeding back
// to the model as a ToolResult content block.
func (r ToolResult) Text() string {
	if !r.Success {
		return "Error: " + r.Error
	}

	var sb strings.Builder
	switch r.Metadata.Title {
	case "Read":
		if len(r.Lines) > 0 {
			for _, line := range r.Lines {
				sb.WriteString(line.Text)
				sb.WriteString("\n")
			}
		} else if r.Output != "" {
			sb.WriteString(r.Output)
		}
	case "Glob":
		if len(r.Files) > 0 {
			for _, f := range r.Files {
				sb.WriteString(f)
				sb.WriteString("\n")
			}
		} else if r.Output != "" {
			sb.WriteString(r.Output)
		}
	case "Grep":
		if len(r.Lines) > 0 {
			for _, line := range r.Lines {
				if line.File != "" {
					sb.WriteString(line.File)
					sb.WriteString(":")
				}
				if line.LineNo > 0 {
					sb.WriteString(strconv.Itoa(line.LineNo))
					sb.WriteString(":")
				}
				sb.WriteString(line.Text)
				sb.WriteString("\n")
			}
		} else if r.Output != "" {
			sb.WriteString(r.Output)
		}
	default:
		if r.Output != "" {
			sb.WriteString(r.Output)
		}
	}
	return sb.String()
}
