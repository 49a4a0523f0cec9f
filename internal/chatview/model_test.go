package chatview

import (
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestModelAppendsReceivedLines(t *testing.T) {
	m := NewModel("alice", nil)
	m, _ = update(t, m, lineMsg("bob joined the chat!"))
	m, _ = update(t, m, lineMsg("bob: hi"))

	lines := m.Lines()
	if len(lines) != 2 || lines[0] != "bob joined the chat!" || lines[1] != "bob: hi" {
		t.Fatalf("unexpected lines %q", lines)
	}
	if !strings.Contains(m.View(), "bob: hi") {
		t.Errorf("view does not show the latest line")
	}
}

func TestModelEnterSends(t *testing.T) {
	var sent []string
	m := NewModel("alice", func(text string) error {
		sent = append(sent, text)
		return nil
	})

	m = typeText(t, m, "hello there")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a send command")
	}
	if msg := cmd(); msg != nil {
		t.Errorf("unexpected message from send: %v", msg)
	}
	if len(sent) != 1 || sent[0] != "hello there" {
		t.Errorf("unexpected sends %q", sent)
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestModelEnterIgnoresBlank(t *testing.T) {
	called := false
	m := NewModel("alice", func(string) error {
		called = true
		return nil
	})

	m = typeText(t, m, "   ")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		cmd()
	}
	if called {
		t.Error("blank input should not be sent")
	}
}

func TestModelSendError(t *testing.T) {
	m := NewModel("alice", func(string) error { return errors.New("broken pipe") })

	m = typeText(t, m, "hi")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	msg := cmd()
	if _, ok := msg.(sendErrMsg); !ok {
		t.Fatalf("expected sendErrMsg, got %T", msg)
	}
	m, _ = update(t, m, msg)
	if !strings.Contains(m.status, "broken pipe") {
		t.Errorf("status does not report the failure: %q", m.status)
	}
}

func TestModelQuitKeys(t *testing.T) {
	for _, key := range []tea.KeyType{tea.KeyEscape, tea.KeyCtrlC} {
		_, cmd := update(t, NewModel("alice", nil), tea.KeyMsg{Type: key})
		if cmd == nil {
			t.Fatalf("key %v: expected quit command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %v: expected tea.QuitMsg", key)
		}
	}
}

func TestModelWindowSize(t *testing.T) {
	m, _ := update(t, NewModel("alice", nil), tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.width != 100 || m.height != 30 {
		t.Errorf("unexpected size %dx%d", m.width, m.height)
	}
	if m.viewport.Width != 98 {
		t.Errorf("expected viewport width 98, got %d", m.viewport.Width)
	}

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 5, Height: 2})
	if m.width != minWidth || m.height != minHeight {
		t.Errorf("expected minimum size, got %dx%d", m.width, m.height)
	}
}

func TestPromptModelResult(t *testing.T) {
	m := newPromptModel()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("alice")})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit after Enter")
	}
	name, ok := next.(promptModel).result()
	if !ok || name != "alice" {
		t.Errorf("expected alice, got %q, %v", name, ok)
	}

	cancelled, _ := newPromptModel().Update(tea.KeyMsg{Type: tea.KeyEscape})
	if _, ok := cancelled.(promptModel).result(); ok {
		t.Error("Esc should not confirm a name")
	}

	empty, _ := newPromptModel().Update(tea.KeyMsg{Type: tea.KeyEnter})
	if _, ok := empty.(promptModel).result(); ok {
		t.Error("empty name should not be confirmed")
	}
}

func TestViewPresetName(t *testing.T) {
	name, ok := NewView("bob").PromptForName()
	if !ok || name != "bob" {
		t.Errorf("expected preset name, got %q, %v", name, ok)
	}
}

func TestViewReplaysBacklog(t *testing.T) {
	v := NewView("alice")
	v.Render("You are now connected!")
	v.Render("bob joined the chat!")

	p := tea.NewProgram(NewModel("alice", nil),
		tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer())

	done := make(chan tea.Model, 1)
	go func() {
		final, err := p.Run()
		if err != nil {
			t.Errorf("program: %v", err)
		}
		done <- final
	}()

	v.Attach(p)
	v.Render("bob: hi")
	p.Quit()

	final := (<-done).(Model)
	got := strings.Join(final.Lines(), "|")
	if got != "You are now connected!|bob joined the chat!|bob: hi" {
		t.Errorf("unexpected lines %q", got)
	}
}
