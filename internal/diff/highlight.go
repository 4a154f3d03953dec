package diff

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultStyle is the chroma style used when none is requested.
const DefaultStyle = "dracula"

// Token is a syntax-highlighted chunk of text.
type Token struct {
	Text  string
	Color string // hex colour, empty for default
}

// HighlightedLine is one source line split into coloured tokens.
type HighlightedLine struct {
	Tokens []Token
}

// Plain returns the concatenated plain text of all tokens.
func (hl HighlightedLine) Plain() string {
	var b strings.Builder
	for _, t := range hl.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Highlighter colours source files with one chroma style. Lexers are looked
// up once per file name. Safe for concurrent use.
type Highlighter struct {
	style *chroma.Style

	mu      sync.Mutex
	lexers  map[string]chroma.Lexer
	colours map[chroma.TokenType]string
}

// NewHighlighter returns a Highlighter for the named style, falling back to
// chroma's default when the name is unknown.
func NewHighlighter(styleName string) *Highlighter {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{
		style:   style,
		lexers:  map[string]chroma.Lexer{},
		colours: map[chroma.TokenType]string{},
	}
}

var defaultHighlighter = NewHighlighter(DefaultStyle)

// HighlightLines highlights lines of filename with DefaultStyle.
func HighlightLines(filename string, lines []string) []HighlightedLine {
	return defaultHighlighter.Lines(filename, lines)
}

// HighlightLinesStyle is HighlightLines with a named chroma style.
func HighlightLinesStyle(filename string, lines []string, styleName string) []HighlightedLine {
	return NewHighlighter(styleName).Lines(filename, lines)
}

// Lines returns exactly one HighlightedLine per input line. Files with no
// matching lexer come back as plain text.
func (h *Highlighter) Lines(filename string, lines []string) []HighlightedLine {
	lexer := h.lexer(filename)
	if lexer == nil {
		return plainLines(lines)
	}
	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plainLines(lines)
	}

	result := make([]HighlightedLine, len(lines))
	row := 0
	for tok := iterator(); tok != chroma.EOF && row < len(lines); tok = iterator() {
		colour := h.colour(tok.Type)
		for i, part := range strings.Split(tok.Value, "\n") {
			if i > 0 {
				row++
			}
			if row >= len(lines) {
				break
			}
			if part != "" {
				result[row].Tokens = append(result[row].Tokens, Token{Text: part, Color: colour})
			}
		}
	}
	return result
}

func (h *Highlighter) lexer(filename string) chroma.Lexer {
	key := filepath.Base(filename)

	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.lexers[key]; ok {
		return l
	}
	l := lexers.Match(filename)
	if l == nil && filepath.Ext(filename) != "" {
		l = lexers.Match("file" + filepath.Ext(filename))
	}
	if l != nil {
		l = chroma.Coalesce(l)
	}
	h.lexers[key] = l
	return l
}

func (h *Highlighter) colour(tt chroma.TokenType) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.colours[tt]; ok {
		return c
	}
	c := ""
	if entry := h.style.Get(tt); entry.Colour.IsSet() {
		c = entry.Colour.String()
	}
	h.colours[tt] = c
	return c
}

func plainLines(lines []string) []HighlightedLine {
	result := make([]HighlightedLine, len(lines))
	for i, line := range lines {
		result[i] = HighlightedLine{Tokens: []Token{{Text: line}}}
	}
	return result
}
