package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chainblock/pkg/session"
)

// Controller is the part of the session manager the dashboard drives
type Controller interface {
	Stop(id string, reason session.StopReason) error
	Rewind(ctx context.Context, id string) error
}

// SessionItem is the dashboard's view of one session
type SessionItem struct {
	Info      session.Info
	Reason    session.StopReason
	NextRun   time.Time
	Err       error
	UpdatedAt time.Time
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the bubbletea model of the session dashboard. It is only mutated
// from Update, on the program goroutine.
type Model struct {
	spinner spinner.Model
	bar     progress.Model
	ctrl    Controller

	sessions map[string]*SessionItem
	order    []string
	selected int

	startedAt time.Time
	now       func() time.Time

	width, height  int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a dashboard that sends stop and rewind commands to ctrl
func NewModel(ctrl Controller) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30

	return Model{
		spinner:        s,
		bar:            bar,
		ctrl:           ctrl,
		sessions:       make(map[string]*SessionItem),
		startedAt:      time.Now(),
		now:            time.Now,
		maxLogMessages: 50,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// applyEvent folds a session event into the dashboard
func (m *Model) applyEvent(e session.Event) {
	item, ok := m.sessions[e.Info.ID]
	if !ok {
		item = &SessionItem{}
		m.sessions[e.Info.ID] = item
		m.order = append(m.order, e.Info.ID)
	}
	item.Info = e.Info
	item.UpdatedAt = m.now()

	label := e.Info.Request.Target.String()
	switch e.Kind {
	case session.EventStarted:
		item.Reason, item.Err, item.NextRun = "", nil, time.Time{}
		m.AddLogMessage("INFO", "Started "+e.Info.Request.String())
	case session.EventMarkUser:
		if e.Failed {
			m.AddLogMessage("WARN", string(e.Verb)+" failed for "+e.UserID)
		}
	case session.EventRateLimit:
		m.AddLogMessage("WARN", "Rate limited: "+label)
	case session.EventRateLimitReset:
		m.AddLogMessage("INFO", "Resumed: "+label)
	case session.EventStopped:
		item.Reason = e.Reason
		m.AddLogMessage("WARN", "Stopped ("+string(e.Reason)+"): "+label)
	case session.EventRecurringWaiting:
		item.NextRun = m.now().Add(e.Delay)
		m.AddLogMessage("INFO", "Waiting for next run: "+label)
	case session.EventComplete:
		m.AddLogMessage("SUCCESS", "Completed: "+label)
	case session.EventError:
		item.Err = e.Err
		if e.Err != nil {
			m.AddLogMessage("ERROR", label+": "+e.Err.Error())
		}
	}
}

// AddLogMessage appends a log line, keeping the most recent ones
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = neonRed
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Items returns the sessions in the order they first reported
func (m *Model) Items() []*SessionItem {
	items := make([]*SessionItem, 0, len(m.order))
	for _, id := range m.order {
		items = append(items, m.sessions[id])
	}
	return items
}

// Selected returns the ID of the highlighted session
func (m *Model) Selected() (string, bool) {
	if len(m.order) == 0 {
		return "", false
	}
	if m.selected >= len(m.order) {
		m.selected = len(m.order) - 1
	}
	return m.order[m.selected], true
}

// Counts tallies the sessions by coarse state
func (m *Model) Counts() (active, waiting, finished int) {
	for _, item := range m.sessions {
		switch st := item.Info.Status; {
		case st.Active():
			active++
		case st == session.StatusAwaitingUntilRecur:
			waiting++
		case st.Terminal():
			finished++
		}
	}
	return active, waiting, finished
}

// fraction is scraped/total clamped to [0, 1]; zero when the total is unknown
func fraction(p session.Progress) float64 {
	if p.Total == nil || *p.Total <= 0 {
		return 0
	}
	f := float64(p.Scraped) / float64(*p.Total)
	if f > 1 {
		f = 1
	}
	return f
}
