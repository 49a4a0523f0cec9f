package chatview

import (
	"github.com/charmbracelet/lipgloss"
)

// Black background with yellow text throughout.
const (
	colorBlack  = lipgloss.Color("0")
	colorYellow = lipgloss.Color("11")
)

var (
	baseStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Background(colorBlack)

	chatAreaStyle = baseStyle.
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorYellow).
			BorderBackground(colorBlack)

	inputStyle = baseStyle.
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorYellow).
			BorderBackground(colorBlack)

	// Inverted, like a button
	sendButtonStyle = lipgloss.NewStyle().
			Foreground(colorBlack).
			Background(colorYellow).
			Bold(true).
			Padding(0, 1)

	statusStyle = baseStyle.Faint(true)
)
