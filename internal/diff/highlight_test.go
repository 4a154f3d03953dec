package diff

import (
	"testing"
)

func TestHighlightLines(t *testing.T) {
	lines := []string{
		"package main",
		"",
		"func main() {",
		`	fmt.Println("hello")`,
		"}",
	}

	highlighted := HighlightLines("main.go", lines)

	if len(highlighted) != len(lines) {
		t.Fatalf("expected %d highlighted lines, got %d", len(lines), len(highlighted))
	}
	if len(highlighted[0].Tokens) == 0 {
		t.Error("expected tokens in first line")
	}
	for i, line := range lines {
		if got := highlighted[i].Plain(); got != line {
			t.Errorf("line %d: plain text %q, want %q", i, got, line)
		}
	}
}

func TestHighlightLinesUnknownStyle(t *testing.T) {
	highlighted := HighlightLinesStyle("main.go", []string{"package main"}, "no-such-style")
	if len(highlighted) != 1 || highlighted[0].Plain() != "package main" {
		t.Errorf("unexpected result %+v", highlighted)
	}
}

func TestHighlightLinesUnknownLanguage(t *testing.T) {
	lines := []string{"some content", "more content"}
	highlighted := HighlightLines("unknown.xyz123", lines)

	if len(highlighted) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(highlighted))
	}
	if highlighted[0].Plain() != "some content" {
		t.Errorf("expected plain passthrough, got %q", highlighted[0].Plain())
	}
}

func TestHighlighterReusesLexer(t *testing.T) {
	h := NewHighlighter(DefaultStyle)
	first := h.Lines("a.go", []string{"package a"})
	second := h.Lines("a.go", []string{"package a", "", "var x = 1"})

	if len(h.lexers) != 1 {
		t.Errorf("expected one cached lexer, got %d", len(h.lexers))
	}
	if first[0].Plain() != second[0].Plain() {
		t.Errorf("inconsistent output %q vs %q", first[0].Plain(), second[0].Plain())
	}
	if len(second) != 3 || second[2].Plain() != "var x = 1" {
		t.Errorf("unexpected lines %+v", second)
	}
}
