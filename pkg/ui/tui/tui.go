package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"chainblock/pkg/session"
)

// TUI runs the session dashboard. It is a session.Sink, so it can be
// plugged into the manager directly.
type TUI struct {
	program *tea.Program
	model   *Model
}

// NewTUI creates a full-screen dashboard driving ctrl
func NewTUI(ctrl Controller) *TUI {
	model := NewModel(ctrl)
	return &TUI{
		program: tea.NewProgram(&model, tea.WithAltScreen()),
		model:   &model,
	}
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Stop quits the program
func (t *TUI) Stop() {
	t.program.Quit()
}

// HandleEvent forwards a session event to the program
func (t *TUI) HandleEvent(e session.Event) {
	t.program.Send(EventMsg{Event: e})
}

// Log adds a line to the log panel
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}
