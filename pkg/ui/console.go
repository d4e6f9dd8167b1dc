package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/session"
)

// Console is a session.Sink that prints events as lines and raises desktop
// notifications for the events enabled in its NotificationConfig.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	notify  *Notifier
	cfg     config.NotificationConfig
	verbose bool
	now     func() time.Time
}

// NewConsole creates a console writing to out. When verbose, every account
// that was acted on gets its own line.
func NewConsole(out io.Writer, notifier *Notifier, cfg config.NotificationConfig, verbose bool) *Console {
	return &Console{out: out, notify: notifier, cfg: cfg, verbose: verbose, now: time.Now}
}

func (c *Console) HandleEvent(e session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := e.Info
	tag := Dim(fmt.Sprintf("[%s]", shortID(info.ID)))

	switch e.Kind {
	case session.EventStarted:
		fmt.Fprintf(c.out, "%s %s %s\n", tag, Cyan("started"), info.Request)
	case session.EventMarkUser:
		if !c.verbose {
			return
		}
		mark := Green("✓")
		if e.Failed {
			mark = Red("✗")
		}
		fmt.Fprintf(c.out, "%s %s %s %s  %s %s\n", tag, mark, e.Verb, e.UserID, ProgressBar(info.Progress), FormatTotal(info.Progress))
	case session.EventRateLimit:
		wait := "unknown"
		if info.Limit != nil {
			wait = FormatDuration(info.Limit.Reset.Sub(c.now()))
		}
		fmt.Fprintf(c.out, "%s %s resets in %s\n", tag, Yellow("rate limited,"), wait)
		if c.cfg.Enabled && c.cfg.OnRateLimit {
			c.notify.Notify("chainblock: rate limited", fmt.Sprintf("%s resumes in %s", info.Request.Target, wait))
		}
	case session.EventRateLimitReset:
		fmt.Fprintf(c.out, "%s %s\n", tag, Cyan("resumed"))
	case session.EventStopped:
		fmt.Fprintf(c.out, "%s %s (%s) %s\n", tag, Yellow("stopped"), e.Reason, FormatCounts(info.Progress))
	case session.EventRecurringWaiting:
		fmt.Fprintf(c.out, "%s %s %s, next run in %s\n", tag, Magenta("waiting"), FormatCounts(info.Progress), FormatDuration(e.Delay))
	case session.EventComplete:
		fmt.Fprintf(c.out, "%s %s %s %s\n", tag, Green("complete"), FormatTotal(info.Progress), FormatCounts(info.Progress))
		if c.cfg.Enabled && c.cfg.OnComplete {
			c.notify.Notify("chainblock: complete", fmt.Sprintf("%s: %s", info.Request.Target, FormatCounts(info.Progress)))
		}
	case session.EventError:
		fmt.Fprintf(c.out, "%s %s %v\n", tag, Red("error"), e.Err)
		if c.cfg.Enabled && c.cfg.OnError {
			c.notify.Notify("chainblock: error", fmt.Sprintf("%s: %v", info.Request.Target, e.Err))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
