package core

import (
	"fmt"
	"strings"
)

// SystemPromptKind discriminates the three shapes a system prompt can take:
// absent, a single opaque string, or an ordered list of labelled blocks.
type SystemPromptKind int

const (
	SystemPromptNone SystemPromptKind = iota
	SystemPromptText
	SystemPromptBlocks
)

// SystemPromptBlock is one labelled section of a block-shaped system prompt.
// Label is rendered as a heading; it may be empty for an unlabelled block.
type SystemPromptBlock struct {
	Label string
	Text  string
}

// SystemPromptValue is the tagged union the Compactor merges: None, a plain
// Text string, or an ordered list of Blocks.
type SystemPromptValue struct {
	Kind   SystemPromptKind
	Text   string
	Blocks []SystemPromptBlock
}

// NoneSystemPrompt returns the absent system prompt.
func NoneSystemPrompt() SystemPromptValue {
	return SystemPromptValue{Kind: SystemPromptNone}
}

// TextSystemPrompt wraps a plain string as a SystemPromptValue.
func TextSystemPrompt(s string) SystemPromptValue {
	if s == "" {
		return NoneSystemPrompt()
	}
	return SystemPromptValue{Kind: SystemPromptText, Text: s}
}

// BlocksSystemPrompt wraps an ordered list of labelled blocks.
func BlocksSystemPrompt(blocks ...SystemPromptBlock) SystemPromptValue {
	if len(blocks) == 0 {
		return NoneSystemPrompt()
	}
	return SystemPromptValue{Kind: SystemPromptBlocks, Blocks: blocks}
}

// Render flattens the value back to the plain string every provider client
// call (client.Client.Stream/Complete) expects.
func (v SystemPromptValue) Render() string {
	switch v.Kind {
	case SystemPromptText:
		return v.Text
	case SystemPromptBlocks:
		var sb strings.Builder
		for i, b := range v.Blocks {
			if i > 0 {
				sb.WriteString("\n\n")
			}
			if b.Label != "" {
				fmt.Fprintf(&sb, "## %s\n", b.Label)
			}
			sb.WriteString(b.Text)
		}
		return sb.String()
	default:
		return ""
	}
}

// MergeSystemPrompt composes the Compactor's rewritten system prompt: the
// original's blocks, in order, followed by the new summary block(s). The
// five named cases (None+None, Text(a)+None, Blocks(B)+Blocks(S),
// Text(a)+Blocks(S), Blocks(B)+Text(s)) are handled explicitly; the
// remaining combinations fall out of the same "prepend original, in order"
// rule applied generically.
func MergeSystemPrompt(original, summary SystemPromptValue) SystemPromptValue {
	switch {
	case original.Kind == SystemPromptNone && summary.Kind == SystemPromptNone:
		return NoneSystemPrompt()

	case original.Kind == SystemPromptText && summary.Kind == SystemPromptNone:
		return TextSystemPrompt(original.Text)

	case original.Kind == SystemPromptBlocks && summary.Kind == SystemPromptBlocks:
		merged := make([]SystemPromptBlock, 0, len(original.Blocks)+len(summary.Blocks))
		merged = append(merged, original.Blocks...)
		merged = append(merged, summary.Blocks...)
		return BlocksSystemPrompt(merged...)

	case original.Kind == SystemPromptText && summary.Kind == SystemPromptBlocks:
		merged := make([]SystemPromptBlock, 0, 1+len(summary.Blocks))
		merged = append(merged, SystemPromptBlock{Text: original.Text})
		merged = append(merged, summary.Blocks...)
		return BlocksSystemPrompt(merged...)

	case original.Kind == SystemPromptBlocks && summary.Kind == SystemPromptText:
		merged := make([]SystemPromptBlock, 0, len(original.Blocks)+1)
		merged = append(merged, original.Blocks...)
		merged = append(merged, SystemPromptBlock{Text: summary.Text})
		return BlocksSystemPrompt(merged...)

	// Generalizations of the five named cases: nothing from original to
	// prepend, or nothing from summary to append.
	case original.Kind == SystemPromptNone:
		return summary
	case summary.Kind == SystemPromptNone:
		return original
	default: // Text+Text: order them as two blocks.
		return BlocksSystemPrompt(
			SystemPromptBlock{Text: original.Text},
			SystemPromptBlock{Text: summary.Text},
		)
	}
}
