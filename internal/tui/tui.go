// Package tui implements the Bubble Tea review dashboard.
package tui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/auditor/internal/model"
	"github.com/sprite-ai/auditor/internal/review"
	"github.com/sprite-ai/auditor/internal/service"
)

// Loader fetches the current file summaries.
type Loader func() ([]service.FileInfo, error)

// FileReader returns the source lines and review state of a file.
type FileReader func(name string) ([]string, review.FileState, error)

type sortMode int

const (
	sortByName sortMode = iota
	sortByProgress
	sortByPriority
)

var sortNames = [...]string{"name", "progress", "priority"}

// loadedMsg carries the result of a refresh.
type loadedMsg struct {
	files []service.FileInfo
	err   error
}

// Model is the top-level Bubble Tea model for the dashboard.
type Model struct {
	load Loader
	read FileReader

	files  []service.FileInfo
	sortBy sortMode

	// UI state
	width  int
	height int

	// File list
	fileIndex int // currently selected file

	// File view
	viewing      bool
	lines        []renderedLine
	scrollOffset int
	viewHeight   int

	showHelp bool
	err      error
}

// New creates a dashboard over files. load and read may be nil, which
// disables refreshing and opening files.
func New(files []service.FileInfo, load Loader, read FileReader) Model {
	m := Model{load: load, read: read, files: slices.Clone(files)}
	m.sortFiles()
	return m
}

func (m *Model) sortFiles() {
	switch m.sortBy {
	case sortByName:
		slices.SortStableFunc(m.files, func(a, b service.FileInfo) int {
			return cmp.Compare(a.FileName, b.FileName)
		})
	case sortByProgress:
		slices.SortStableFunc(m.files, func(a, b service.FileInfo) int {
			return cmp.Or(
				cmp.Compare(a.Summary.Percent(), b.Summary.Percent()),
				cmp.Compare(a.FileName, b.FileName))
		})
	case sortByPriority:
		slices.SortStableFunc(m.files, func(a, b service.FileInfo) int {
			return cmp.Or(
				cmp.Compare(priorityRank(a.Priority), priorityRank(b.Priority)),
				cmp.Compare(a.FileName, b.FileName))
		})
	}
}

// priorityRank orders files with no priority after every explicit one
// except Ignore.
func priorityRank(p *model.Priority) int {
	if p == nil {
		return int(model.PriorityLow) + 1
	}
	if *p == model.PriorityIgnore {
		return int(model.PriorityLow) + 2
	}
	return int(*p)
}

func (m Model) selected() (service.FileInfo, bool) {
	if m.fileIndex < 0 || m.fileIndex >= len(m.files) {
		return service.FileInfo{}, false
	}
	return m.files[m.fileIndex], true
}

func (m *Model) openSelected() {
	f, ok := m.selected()
	if !ok || m.read == nil {
		return
	}
	source, fs, err := m.read(f.FileName)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.lines = buildLines(f.FileName, source, fs, f.Comments)
	m.scrollOffset = 0
	m.viewing = true
}

func (m Model) refresh() tea.Cmd {
	if m.load == nil {
		return nil
	}
	load := m.load
	return func() tea.Msg {
		files, err := load()
		return loadedMsg{files: files, err: err}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewHeight = max(1, m.height-6) // header, borders, status bar
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		current, _ := m.selected()
		m.err = nil
		m.files = msg.files
		m.sortFiles()
		m.fileIndex = max(0, slices.IndexFunc(m.files, func(f service.FileInfo) bool {
			return f.FileName == current.FileName
		}))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp

		case key.Matches(msg, keys.Down):
			if m.viewing {
				if m.scrollOffset < len(m.lines)-1 {
					m.scrollOffset++
				}
			} else if m.fileIndex < len(m.files)-1 {
				m.fileIndex++
			}

		case key.Matches(msg, keys.Up):
			if m.viewing {
				if m.scrollOffset > 0 {
					m.scrollOffset--
				}
			} else if m.fileIndex > 0 {
				m.fileIndex--
			}

		case key.Matches(msg, keys.PageDown):
			if m.viewing {
				m.scrollOffset = min(max(0, len(m.lines)-1), m.scrollOffset+m.viewHeight)
			}

		case key.Matches(msg, keys.PageUp):
			if m.viewing {
				m.scrollOffset = max(0, m.scrollOffset-m.viewHeight)
			}

		case key.Matches(msg, keys.NextFile):
			if m.fileIndex < len(m.files)-1 {
				m.fileIndex++
				if m.viewing {
					m.openSelected()
				}
			}

		case key.Matches(msg, keys.PrevFile):
			if m.fileIndex > 0 {
				m.fileIndex--
				if m.viewing {
					m.openSelected()
				}
			}

		case key.Matches(msg, keys.Open):
			if !m.viewing {
				m.openSelected()
			}

		case key.Matches(msg, keys.Back):
			m.viewing = false
			m.lines = nil

		case key.Matches(msg, keys.Sort):
			if !m.viewing {
				current, _ := m.selected()
				m.sortBy = (m.sortBy + 1) % sortMode(len(sortNames))
				m.sortFiles()
				m.fileIndex = max(0, slices.IndexFunc(m.files, func(f service.FileInfo) bool {
					return f.FileName == current.FileName
				}))
			}

		case key.Matches(msg, keys.Refresh):
			return m, m.refresh()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var main string
	if m.viewing {
		main = m.renderFileView(m.width, m.height-1)
	} else {
		main = m.renderFileList(m.width, m.height-1)
	}
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderFileList(width, height int) string {
	if len(m.files) == 0 {
		return fileListStyle.Width(width).Height(height - 2).Render("No reviewed files yet")
	}

	innerWidth := width - 4
	barWidth := min(30, max(10, innerWidth/4))
	nameWidth := max(10, innerWidth-barWidth-22)

	// Keep the selection in view.
	visible := max(1, height-2)
	start := 0
	if m.fileIndex >= visible {
		start = m.fileIndex - visible + 1
	}
	end := min(len(m.files), start+visible)

	var b strings.Builder
	for i := start; i < end; i++ {
		f := m.files[i]
		name := f.FileName
		if len(name) > nameWidth {
			name = "…" + name[len(name)-nameWidth+1:]
		}

		comments := ""
		if n := f.Comments.Count(); n > 0 {
			comments = fmt.Sprintf("%d*", n)
		}
		line := fmt.Sprintf("%-*s %s %4.0f%% %4s %s",
			nameWidth, name,
			progressBar(f.Summary, barWidth),
			f.Summary.Percent(),
			comments,
			priorityLabel(f.Priority))

		var style lipgloss.Style
		switch {
		case i == m.fileIndex:
			style = fileItemSelectedStyle
		case f.Stale:
			style = fileItemStaleStyle
		case f.Summary.Total > 0 && f.Summary.Percent() >= 100:
			style = fileItemDoneStyle
		default:
			style = fileItemStyle
		}

		b.WriteString(style.Render(line))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	return fileListStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderFileView(width, height int) string {
	f, _ := m.selected()
	innerWidth := width - 4
	innerHeight := height - 2

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(f.FileName))
	b.WriteByte('\n')

	visibleLines := max(1, innerHeight-2)
	end := min(len(m.lines), m.scrollOffset+visibleLines)
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], innerWidth))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	return fileViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

func (m Model) renderStatusBar() string {
	var left string
	if m.viewing {
		left = fmt.Sprintf(" Line %d/%d", m.scrollOffset+1, len(m.lines))
		if f, ok := m.selected(); ok {
			left += "  " + legend(f.Summary)
		}
	} else {
		left = fmt.Sprintf(" File %d/%d  sort: %s", min(m.fileIndex+1, len(m.files)), len(m.files), sortNames[m.sortBy])
		if stale := m.staleCount(); stale > 0 {
			left += fmt.Sprintf("  %d stale", stale)
		}
	}
	if m.err != nil {
		left += "  " + errorStyle.Render(m.err.Error())
	}

	right := "? help "

	gap := max(0, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) staleCount() int {
	n := 0
	for _, f := range m.files {
		if f.Stale {
			n++
		}
	}
	return n
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("auditor dashboard: keyboard shortcuts"))
	b.WriteString("\n\n")

	for _, k := range []key.Binding{
		keys.Up, keys.Down, keys.PageUp, keys.PageDown,
		keys.Open, keys.Back, keys.NextFile, keys.PrevFile,
		keys.Sort, keys.Refresh, keys.Help, keys.Quit,
	} {
		h := k.Help()
		b.WriteString(fmt.Sprintf("  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc))
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run starts the dashboard.
func Run(files []service.FileInfo, load Loader, read FileReader) error {
	m := New(files, load, read)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
