package rlm

import "testing"

func TestExtractFinal_PrefersFinalMarker(t *testing.T) {
	text := "Some reasoning here.\nFINAL: the answer is 42"
	if got := extractFinal(text); got != "the answer is 42" {
		t.Errorf("extractFinal() = %q, want %q", got, "the answer is 42")
	}
}

func TestExtractFinal_NoMarkerReturnsEmpty(t *testing.T) {
	text := "Just reasoning, no marker."
	if got := extractFinal(text); got != "" {
		t.Errorf("extractFinal() = %q, want empty", got)
	}
}

func TestExtractFinalVars_ParsesLines(t *testing.T) {
	text := "FINAL_VAR(summary): the gist\nFINAL_VAR(count): 7\nFINAL: done"
	vars := extractFinalVars(text)
	if vars["summary"] != "the gist" {
		t.Errorf("summary = %q", vars["summary"])
	}
	if vars["count"] != "7" {
		t.Errorf("count = %q", vars["count"])
	}
}

func TestExtractLines_FormatsNumbers(t *testing.T) {
	ctx := NewContext("doc", "alpha\nbeta\ngamma\n", "")
	out := extractLines(ctx, 1, nil)
	want := "    1 alpha\n    2 beta\n    3 gamma"
	if out != want {
		t.Errorf("extractLines() = %q, want %q", out, want)
	}
}

func TestExtractLines_RangeClampedToContext(t *testing.T) {
	ctx := NewContext("doc", "a\nb\nc\n", "")
	end := 100
	out := extractLines(ctx, 2, &end)
	want := "    2 b\n    3 c"
	if out != want {
		t.Errorf("extractLines() = %q, want %q", out, want)
	}
}

func TestNormalizeLoadPath_AcceptsAtPrefix(t *testing.T) {
	got, err := NormalizeLoadPath("@docs/readme.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "docs/readme.md" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeLoadPath_StripsLeadingSeparators(t *testing.T) {
	got, err := NormalizeLoadPath("@/etc/passwd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "etc/passwd" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeLoadPath_RejectsEmpty(t *testing.T) {
	if _, err := NormalizeLoadPath("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := NormalizeLoadPath("@"); err == nil {
		t.Fatal("expected error for bare @ prefix")
	}
}

func TestExtractChunk_LineRange(t *testing.T) {
	q := &RlmQueryTool{}
	DefaultSession.Contexts["doc"] = NewContext("doc", "one\ntwo\nthree\nfour\n", "")
	DefaultSession.ActiveContext = "doc"

	chunk, ctxID, err := q.extractChunk(map[string]any{
		"context_id": "doc",
		"line_start": float64(2),
		"line_end":   float64(3),
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctxID != "doc" {
		t.Errorf("context id = %q", ctxID)
	}
	want := "    2 two\n    3 three"
	if chunk != want {
		t.Errorf("chunk = %q, want %q", chunk, want)
	}
}

func TestExtractChunk_MissingContextErrors(t *testing.T) {
	q := &RlmQueryTool{}
	if _, _, err := q.extractChunk(map[string]any{"context_id": "nope", "char_start": float64(0)}, ""); err == nil {
		t.Fatal("expected error for missing context")
	}
}

func TestTruncateToBoundary_LeavesShortTextAlone(t *testing.T) {
	if got := truncateToBoundary("short", 100); got != "short" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateToBoundary_TruncatesLongText(t *testing.T) {
	text := "0123456789"
	if got := truncateToBoundary(text, 4); got != "0123" {
		t.Errorf("got %q", got)
	}
}
