package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/auditor/internal/diff"
	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
)

// renderedLine is a single source line ready for display.
type renderedLine struct {
	Num     int // zero-based line number
	Content string
	State   review.State
	Tracked bool
	// Comments is the number of comments attached to the line.
	Comments int

	// Syntax highlighting tokens (nil = no highlighting)
	Tokens []diff.Token
}

// buildLines pairs each source line with its review category and comments.
func buildLines(name string, source []string, fs review.FileState, comments model.FileComments) []renderedLine {
	highlighted := diff.HighlightLines(name, source)
	lines := make([]renderedLine, len(source))
	for i, text := range source {
		st, tracked := fs.StateOf(i)
		lines[i] = renderedLine{
			Num:      i,
			Content:  strings.TrimRight(text, "\r\n"),
			State:    st,
			Tracked:  tracked,
			Comments: len(comments[i]),
			Tokens:   highlighted[i].Tokens,
		}
	}
	return lines
}

// gutter returns the marker shown left of a line.
func gutter(rl renderedLine) string {
	if !rl.Tracked {
		return gutterUntrackedStyle.Render("·")
	}
	switch rl.State {
	case review.Reviewed:
		return gutterReviewedStyle.Render("✓")
	case review.Modified:
		return gutterModifiedStyle.Render("!")
	case review.Ignored:
		return gutterIgnoredStyle.Render("-")
	}
	return " "
}

// renderHighlightedContent renders line content with syntax tokens. Ignored
// lines are dimmed instead.
func renderHighlightedContent(rl renderedLine) string {
	if rl.Tracked && rl.State == review.Ignored {
		return ignoredLineStyle.Render(rl.Content)
	}
	if len(rl.Tokens) == 0 {
		return rl.Content
	}

	var b strings.Builder
	for _, tok := range rl.Tokens {
		if tok.Color != "" {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(tok.Color)).Render(tok.Text))
		} else {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

// styleLine renders one line: number, gutter, comment mark and content.
func styleLine(rl renderedLine, width int) string {
	num := lineNumberStyle.Render(fmt.Sprintf("%d", rl.Num+1))

	mark := " "
	if rl.Comments > 0 {
		mark = commentMarkStyle.Render("*")
	}

	content := renderHighlightedContent(rl)
	maxContent := width - 10
	if maxContent > 0 && lipgloss.Width(content) > maxContent {
		content = truncate(rl.Content, maxContent)
		if rl.Tracked && rl.State == review.Ignored {
			content = ignoredLineStyle.Render(content)
		}
	}

	return num + " " + gutter(rl) + mark + " " + content
}

// RenderFile renders a whole file with its review gutter, for printing
// outside the interactive view. width 0 disables truncation.
func RenderFile(name string, source []string, fs review.FileState, comments model.FileComments, width int) string {
	lines := buildLines(name, source, fs, comments)

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(name))
	b.WriteByte('\n')
	for _, rl := range lines {
		b.WriteString(styleLine(rl, width))
		b.WriteByte('\n')
		if rl.Comments > 0 {
			for _, c := range comments[rl.Num] {
				b.WriteString(renderComment(c))
				b.WriteByte('\n')
			}
		}
	}
	b.WriteString(legend(review.Progress(fs)))
	b.WriteByte('\n')
	return b.String()
}

func renderComment(c model.Comment) string {
	return helpBarStyle.Render(fmt.Sprintf("        %s %s: %s", commentMarkStyle.Render("*"), c.Author, c.Body))
}

// legend summarizes a file's line counts.
func legend(s review.Summary) string {
	return fmt.Sprintf("%s %d reviewed  %s %d modified  %s %d ignored  %s %d untracked  (%.0f%%)",
		gutterReviewedStyle.Render("✓"), s.Reviewed,
		gutterModifiedStyle.Render("!"), s.Modified,
		gutterIgnoredStyle.Render("-"), s.Ignored,
		gutterUntrackedStyle.Render("·"), s.Untracked,
		s.Percent())
}

// progressBar draws reviewed, ignored and modified shares of a file as a
// bar of the given width.
func progressBar(s review.Summary, width int) string {
	if width <= 0 {
		return ""
	}
	if s.Total == 0 {
		return gutterUntrackedStyle.Render(strings.Repeat("░", width))
	}
	cells := func(n int) int {
		return min(width, n*width/s.Total)
	}
	reviewed := cells(s.Reviewed)
	ignored := min(width-reviewed, cells(s.Ignored))
	modified := min(width-reviewed-ignored, cells(s.Modified))
	rest := width - reviewed - ignored - modified

	return gutterReviewedStyle.Render(strings.Repeat("█", reviewed)) +
		gutterIgnoredStyle.Render(strings.Repeat("█", ignored)) +
		gutterModifiedStyle.Render(strings.Repeat("█", modified)) +
		gutterUntrackedStyle.Render(strings.Repeat("░", rest))
}

func priorityLabel(p *model.Priority) string {
	if p == nil {
		return ""
	}
	switch *p {
	case model.PriorityHigh:
		return priorityHighStyle.Render(p.String())
	case model.PriorityMedium:
		return priorityMediumStyle.Render(p.String())
	case model.PriorityLow:
		return priorityLowStyle.Render(p.String())
	}
	return gutterIgnoredStyle.Render(p.String())
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) > max {
		return s[:max-1] + "…"
	}
	return s
}
