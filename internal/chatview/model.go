// Package chatview is a full-screen terminal chat window: a scrolling
// message area above a single-line input.
package chatview

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	minWidth  = 40
	minHeight = 10

	sendLabel = "Send"
	statusBar = "Enter: send  PgUp/PgDn: scroll  Esc: quit"
)

// SendFunc transmits one line typed by the user.
type SendFunc func(text string) error

// lineMsg carries a chunk received from the relay.
type lineMsg string

// sendErrMsg reports a failed send.
type sendErrMsg struct{ err error }

// Model is the chat window.
type Model struct {
	title    string
	send     SendFunc
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	status   string
	width    int
	height   int
}

// NewModel creates a chat window for name that hands typed lines to send.
func NewModel(name string, send SendFunc) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type a message"
	ti.CharLimit = 512
	ti.PromptStyle = baseStyle
	ti.TextStyle = baseStyle
	ti.Cursor.Style = baseStyle
	ti.Focus()

	vp := viewport.New(minWidth, minHeight)
	vp.Style = baseStyle

	m := Model{
		title:    "Chat - " + name,
		send:     send,
		viewport: vp,
		input:    ti,
		status:   statusBar,
		width:    minWidth,
		height:   minHeight,
	}
	m.layout()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.SetWindowTitle(m.title), textinput.Blink)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, minWidth)
		m.height = max(msg.Height, minHeight)
		m.layout()
		return m, nil

	case lineMsg:
		m.appendLine(string(msg))
		return m, nil

	case sendErrMsg:
		m.status = "Send failed: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEscape, tea.KeyCtrlC:
			return m, tea.Quit

		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			return m, m.sendCmd(text)

		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendCmd runs the send off the update loop so a slow socket never freezes
// the window.
func (m Model) sendCmd(text string) tea.Cmd {
	send := m.send
	return func() tea.Msg {
		if send == nil {
			return nil
		}
		if err := send(text); err != nil {
			return sendErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.content())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) content() string {
	w := m.viewport.Width
	wrapped := make([]string, len(m.lines))
	for i, line := range m.lines {
		wrapped[i] = lipgloss.NewStyle().Width(w).Render(line)
	}
	return strings.Join(wrapped, "\n")
}

// layout sizes the chat area and input to the window. Borders take two
// columns and two rows each.
func (m *Model) layout() {
	innerWidth := m.width - 2
	m.viewport.Width = innerWidth
	// Input box is three rows, status bar one.
	m.viewport.Height = m.height - 2 - 3 - 1
	m.input.Width = innerWidth - lipgloss.Width(sendButtonStyle.Render(sendLabel)) - len(m.input.Prompt) - 3
	m.viewport.SetContent(m.content())
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	chat := chatAreaStyle.Width(m.width - 2).Render(m.viewport.View())

	button := sendButtonStyle.Render(sendLabel)
	inputBox := inputStyle.
		Width(m.width - 2 - lipgloss.Width(button)).
		Render(m.input.View())
	inputRow := lipgloss.JoinHorizontal(lipgloss.Center, inputBox, button)

	status := statusStyle.Width(m.width).Render(m.status)

	return baseStyle.Render(lipgloss.JoinVertical(lipgloss.Left, chat, inputRow, status))
}

// Lines returns everything received so far.
func (m Model) Lines() []string {
	return append([]string(nil), m.lines...)
}
