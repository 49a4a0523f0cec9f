package chatview

import (
	"log"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// View adapts the chat window to the client's View interface. Lines rendered
// before a program is attached are held and replayed on Attach.
type View struct {
	preset string

	mu      sync.Mutex
	program *tea.Program
	backlog []string
}

// NewView creates an adapter. A non-empty name skips the name prompt.
func NewView(name string) *View {
	return &View{preset: name}
}

// PromptForName returns the preset name or runs the name prompt.
func (v *View) PromptForName() (string, bool) {
	if v.preset != "" {
		return v.preset, true
	}
	name, ok, err := PromptName(tea.WithAltScreen())
	if err != nil {
		log.Printf("ERROR: Name prompt failed: %v", err)
		return "", false
	}
	return name, ok
}

// Attach routes future Render calls to p and replays the backlog. It
// blocks until p is running, so call it from its own goroutine.
func (v *View) Attach(p *tea.Program) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.program = p
	for _, line := range v.backlog {
		p.Send(lineMsg(line))
	}
	v.backlog = nil
}

// Render shows line in the chat area.
func (v *View) Render(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.program == nil {
		v.backlog = append(v.backlog, line)
		return
	}
	v.program.Send(lineMsg(line))
}
