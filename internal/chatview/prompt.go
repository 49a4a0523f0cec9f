package chatview

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// promptModel asks for a display name.
type promptModel struct {
	input     textinput.Model
	name      string
	confirmed bool
}

func newPromptModel() promptModel {
	ti := textinput.New()
	ti.Placeholder = "nickname"
	ti.CharLimit = 64
	ti.Width = 30
	ti.PromptStyle = baseStyle
	ti.TextStyle = baseStyle
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.name = m.input.Value()
			m.confirmed = true
			return m, tea.Quit
		case tea.KeyEscape, tea.KeyCtrlC:
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	box := chatAreaStyle.Padding(0, 1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			baseStyle.Bold(true).Render("Choose your nickname"),
			"",
			m.input.View(),
		))
	return fmt.Sprintf("%s\n%s\n", box, statusStyle.Render("Enter: join  Esc: cancel"))
}

// result reports the confirmed name. Esc, or Enter on an empty field,
// counts as no name.
func (m promptModel) result() (string, bool) {
	if !m.confirmed || m.input.Value() == "" {
		return "", false
	}
	return m.name, true
}

// PromptName runs a small full-screen program that asks for a display name.
func PromptName(opts ...tea.ProgramOption) (string, bool, error) {
	final, err := tea.NewProgram(newPromptModel(), opts...).Run()
	if err != nil {
		return "", false, err
	}
	name, ok := final.(promptModel).result()
	return name, ok, nil
}
