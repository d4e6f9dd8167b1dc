package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentNotification struct{ title, message string }

type fakeSender struct{ sent []sentNotification }

func (f *fakeSender) Send(title, message string) error {
	f.sent = append(f.sent, sentNotification{title, message})
	return nil
}

func info(scraped int, total *int) session.Info {
	return session.Info{
		ID: "0123456789abcdef",
		Request: request.Request{
			Purpose: request.Purpose{Kind: request.ChainBlock},
			Target:  request.Target{Kind: request.FollowerList, User: &models.User{ID: "t", ScreenName: "target"}, List: request.Followers},
		},
		Progress: session.Progress{
			Success: map[request.Verb]int{request.Block: scraped},
			Scraped: scraped,
			Total:   total,
		},
	}
}

func newTestConsole(verbose bool, cfg config.NotificationConfig) (*Console, *bytes.Buffer, *fakeSender) {
	NoColor()
	var buf bytes.Buffer
	sender := &fakeSender{}
	return NewConsole(&buf, NewNotifierWithSender(sender), cfg, verbose), &buf, sender
}

func TestConsolePrintsLifecycle(t *testing.T) {
	c, buf, sender := newTestConsole(false, config.NotificationConfig{Enabled: true, OnComplete: true})
	total := 4

	c.HandleEvent(session.Event{Kind: session.EventStarted, Info: info(0, &total)})
	c.HandleEvent(session.Event{Kind: session.EventMarkUser, Info: info(1, &total), UserID: "u1", Verb: request.Block})
	c.HandleEvent(session.Event{Kind: session.EventComplete, Info: info(4, &total)})

	out := buf.String()
	assert.Contains(t, out, "[01234567] started")
	assert.NotContains(t, out, "u1")
	assert.Contains(t, out, "complete 4/4 Block 4")

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "chainblock: complete", sender.sent[0].title)
}

func TestConsoleVerbosePrintsAccounts(t *testing.T) {
	c, buf, _ := newTestConsole(true, config.NotificationConfig{})
	total := 2

	c.HandleEvent(session.Event{Kind: session.EventMarkUser, Info: info(1, &total), UserID: "u1", Verb: request.Block})
	c.HandleEvent(session.Event{Kind: session.EventMarkUser, Info: info(1, nil), UserID: "u2", Verb: request.Block, Failed: true})

	out := buf.String()
	assert.Contains(t, out, "✓ Block u1  ━━━━━━━━━━────────── 1/2")
	assert.Contains(t, out, "✗ Block u2")
	assert.Contains(t, out, "1/?")
}

func TestConsoleRateLimitAndErrors(t *testing.T) {
	cfg := config.NotificationConfig{Enabled: true, OnError: true, OnRateLimit: true}
	c, buf, sender := newTestConsole(false, cfg)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	limited := info(0, nil)
	limited.Limit = &models.RateLimitWindow{Reset: now.Add(90 * time.Second)}
	c.HandleEvent(session.Event{Kind: session.EventRateLimit, Info: limited})
	c.HandleEvent(session.Event{Kind: session.EventError, Info: info(0, nil), Err: errors.New("boom")})
	c.HandleEvent(session.Event{Kind: session.EventStopped, Info: info(2, nil), Reason: session.ReasonUserRequest})

	out := buf.String()
	assert.Contains(t, out, "resets in 1m30s")
	assert.Contains(t, out, "error boom")
	assert.Contains(t, out, "stopped (user-request) Block 2")
	assert.Len(t, sender.sent, 2)
}

func TestNotificationsDisabled(t *testing.T) {
	c, _, sender := newTestConsole(false, config.NotificationConfig{Enabled: false, OnComplete: true})
	c.HandleEvent(session.Event{Kind: session.EventComplete, Info: info(0, nil)})
	assert.Empty(t, sender.sent)
}

func TestFormatCounts(t *testing.T) {
	p := session.Progress{
		Success: map[request.Verb]int{request.Mute: 2, request.Block: 1, request.UnBlock: 0},
		Already: 3,
		Error:   1,
	}
	assert.Equal(t, "Block 1 • Mute 2 • already 3 • errors 1", FormatCounts(p))
	assert.Equal(t, "nothing yet", FormatCounts(session.Progress{}))
}

func TestProgressBar(t *testing.T) {
	total := 10
	assert.Equal(t, "━━━━━━━━━━──────────", ProgressBar(session.Progress{Scraped: 5, Total: &total}))
	assert.Equal(t, "━━━━━━━━━━━━━━━━━━━━", ProgressBar(session.Progress{Scraped: 12, Total: &total}))
	assert.Equal(t, "────────────────────", ProgressBar(session.Progress{Scraped: 3}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", FormatDuration(45*time.Second))
	assert.Equal(t, "3m12s", FormatDuration(3*time.Minute+12*time.Second))
	assert.Equal(t, "2h5m", FormatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "0s", FormatDuration(-time.Second))
}
