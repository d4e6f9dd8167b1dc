package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/session"
)

type fakeController struct {
	mu      sync.Mutex
	stopped []string
	rewound []string
	stopErr error
}

func (f *fakeController) Stop(id string, reason session.StopReason) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id+":"+string(reason))
	return f.stopErr
}

func (f *fakeController) Rewind(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rewound = append(f.rewound, id)
	return nil
}

func event(kind session.EventKind, id string, status session.Status) session.Event {
	total := 10
	return session.Event{
		Kind: kind,
		Info: session.Info{
			ID:     id,
			Status: status,
			Request: request.Request{
				Purpose: request.Purpose{Kind: request.ChainBlock},
				Target:  request.Target{Kind: request.FollowerList, User: &models.User{ID: "t", ScreenName: id}, List: request.Followers},
			},
			Progress: session.Progress{Success: map[request.Verb]int{request.Block: 4}, Scraped: 4, Total: &total},
		},
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel() (*Model, *fakeController) {
	ctrl := &fakeController{}
	m := NewModel(ctrl)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return &m, ctrl
}

func TestEventsBuildSessionList(t *testing.T) {
	m, _ := newTestModel()

	m.Update(EventMsg{event(session.EventStarted, "a", session.StatusRunning)})
	m.Update(EventMsg{event(session.EventStarted, "b", session.StatusRunning)})
	m.Update(EventMsg{event(session.EventComplete, "a", session.StatusCompleted)})

	items := m.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Info.ID)
	assert.Equal(t, session.StatusCompleted, items[0].Info.Status)

	active, waiting, finished := m.Counts()
	assert.Equal(t, 1, active)
	assert.Equal(t, 0, waiting)
	assert.Equal(t, 1, finished)
	assert.Len(t, m.logMessages, 3)
}

func TestStoppedAndWaitingDetails(t *testing.T) {
	m, _ := newTestModel()

	stopped := event(session.EventStopped, "a", session.StatusStopped)
	stopped.Reason = session.ReasonBlockLimitationReached
	m.Update(EventMsg{stopped})

	waiting := event(session.EventRecurringWaiting, "b", session.StatusAwaitingUntilRecur)
	waiting.Delay = 5 * time.Minute
	m.Update(EventMsg{waiting})

	failed := event(session.EventError, "c", session.StatusError)
	failed.Err = errors.New("boom")
	m.Update(EventMsg{failed})

	items := m.Items()
	assert.Equal(t, "stopped: block-limitation-reached", m.detail(items[0]))
	assert.Equal(t, "next run in 5m0s", m.detail(items[1]))
	assert.Equal(t, "error: boom", m.detail(items[2]))
}

func TestStopKeyStopsSelectedSession(t *testing.T) {
	m, ctrl := newTestModel()
	m.Update(EventMsg{event(session.EventStarted, "a", session.StatusRunning)})
	m.Update(EventMsg{event(session.EventStarted, "b", session.StatusRunning)})

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := m.Update(key("s"))
	require.NotNil(t, cmd)

	msg := cmd()
	assert.Equal(t, LogMsg{Level: "INFO", Message: "Stop requested for b"}, msg)
	assert.Equal(t, []string{"b:user-request"}, ctrl.stopped)

	m.Update(msg)
	assert.Equal(t, "Stop requested for b", m.logMessages[len(m.logMessages)-1].Message)
}

func TestStopErrorIsLogged(t *testing.T) {
	m, ctrl := newTestModel()
	ctrl.stopErr = errors.New("session not found")
	m.Update(EventMsg{event(session.EventStarted, "a", session.StatusRunning)})

	_, cmd := m.Update(key("s"))
	msg := cmd().(LogMsg)
	assert.Equal(t, "ERROR", msg.Level)
}

func TestRewindKey(t *testing.T) {
	m, ctrl := newTestModel()
	m.Update(EventMsg{event(session.EventComplete, "a", session.StatusCompleted)})

	_, cmd := m.Update(key("r"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []string{"a"}, ctrl.rewound)
}

func TestKeysWithoutSessions(t *testing.T) {
	m, ctrl := newTestModel()

	_, cmd := m.Update(key("s"))
	assert.Nil(t, cmd)
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Empty(t, ctrl.stopped)
}

func TestViewRendersSessions(t *testing.T) {
	m, _ := newTestModel()
	assert.Equal(t, "Initializing...", m.View())

	m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	m.Update(EventMsg{event(session.EventStarted, "target", session.StatusRunning)})

	view := m.View()
	assert.Contains(t, view, "SESSIONS")
	assert.Contains(t, view, "Running")
	assert.Contains(t, view, "4/10")
}

func TestLogIsBounded(t *testing.T) {
	m, _ := newTestModel()
	for i := 0; i < 60; i++ {
		m.AddLogMessage("INFO", "line")
	}
	assert.Len(t, m.logMessages, 50)

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.logMessages)
}

func TestFraction(t *testing.T) {
	total := 4
	assert.Equal(t, 0.5, fraction(session.Progress{Scraped: 2, Total: &total}))
	assert.Equal(t, 1.0, fraction(session.Progress{Scraped: 9, Total: &total}))
	assert.Equal(t, 0.0, fraction(session.Progress{Scraped: 2}))
}
