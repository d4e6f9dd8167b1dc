package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"chainblock/pkg/session"
)

// EventMsg carries a session event into the program
type EventMsg struct {
	Event session.Event
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to refresh countdowns
type TickMsg time.Time

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, m.width/2-30)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		m.applyEvent(msg.Event)
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.order)-1 {
			m.selected++
		}
		return m, nil

	case "s":
		if id, ok := m.Selected(); ok {
			return m, m.stopCmd(id)
		}
		return m, nil

	case "r":
		if id, ok := m.Selected(); ok {
			return m, m.rewindCmd(id)
		}
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// stopCmd stops a session off the program goroutine, since the resulting
// event is delivered back through the program.
func (m *Model) stopCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl == nil {
			return nil
		}
		if err := ctrl.Stop(id, session.ReasonUserRequest); err != nil {
			return LogMsg{Level: "ERROR", Message: "Stop failed: " + err.Error()}
		}
		return LogMsg{Level: "INFO", Message: "Stop requested for " + id}
	}
}

func (m *Model) rewindCmd(id string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl == nil {
			return nil
		}
		if err := ctrl.Rewind(context.Background(), id); err != nil {
			return LogMsg{Level: "ERROR", Message: "Rewind failed: " + err.Error()}
		}
		return LogMsg{Level: "INFO", Message: "Rewound " + id}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
