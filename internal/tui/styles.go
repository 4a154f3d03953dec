package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	// File list styles
	fileListStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	fileItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	fileItemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorFg).
				Background(colorHighlight).
				Bold(true)

	fileItemStaleStyle = lipgloss.NewStyle().
				Foreground(colorOrange)

	fileItemDoneStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	// File view styles
	fileViewStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(5).
			Align(lipgloss.Right)

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	commentMarkStyle = lipgloss.NewStyle().
				Foreground(colorPurple).
				Bold(true)

	// Review gutter, one style per category
	gutterReviewedStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	gutterModifiedStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	gutterIgnoredStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	gutterUntrackedStyle = lipgloss.NewStyle().
				Foreground(colorBorder)

	ignoredLineStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	// Priority labels
	priorityHighStyle = lipgloss.NewStyle().
				Foreground(colorRed).
				Bold(true)

	priorityMediumStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	priorityLowStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	// Help bar
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
