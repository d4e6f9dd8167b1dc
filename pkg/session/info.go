package session

import (
	"maps"
	"time"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
)

// Status is the lifecycle state of a session
type Status string

const (
	StatusInitial            Status = "Initial"
	StatusRunning            Status = "Running"
	StatusRateLimited        Status = "RateLimited"
	StatusCompleted          Status = "Completed"
	StatusStopped            Status = "Stopped"
	StatusError              Status = "Error"
	StatusAwaitingUntilRecur Status = "AwaitingUntilRecur"
)

// Active reports whether the run loop owns the session
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusRateLimited
}

// Terminal reports whether the session has ended for good. A session waiting
// for its next recurrence is not terminal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}

// Progress counts what happened to every scraped account
type Progress struct {
	Success map[request.Verb]int `json:"success"`
	Already int                  `json:"already"`
	Skipped int                  `json:"skipped"`
	Failure int                  `json:"failure"`
	// Error counts accounts that were listed but could not be loaded
	Error   int  `json:"error"`
	Scraped int  `json:"scraped"`
	Total   *int `json:"total"`
}

func newProgress() Progress {
	return Progress{Success: make(map[request.Verb]int)}
}

// SuccessTotal sums the success counters of every verb
func (p Progress) SuccessTotal() int {
	n := 0
	for _, c := range p.Success {
		n += c
	}
	return n
}

// recount sets Scraped to the sum of all buckets
func (p *Progress) recount() {
	p.Scraped = p.SuccessTotal() + p.Already + p.Skipped + p.Failure + p.Error
}

func (p Progress) clone() Progress {
	out := p
	out.Success = maps.Clone(p.Success)
	if out.Success == nil {
		out.Success = make(map[request.Verb]int)
	}
	if p.Total != nil {
		t := *p.Total
		out.Total = &t
	}
	return out
}

// Info is an immutable snapshot of a session
type Info struct {
	ID       string                  `json:"id"`
	Request  request.Request         `json:"request"`
	Progress Progress                `json:"progress"`
	Status   Status                  `json:"status"`
	Limit    *models.RateLimitWindow `json:"limit"`
	Exported bool                    `json:"exported"`
}

// StopReason says why a session was stopped
type StopReason string

const (
	ReasonUserRequest            StopReason = "user-request"
	ReasonBlockLimitationReached StopReason = "block-limitation-reached"
	ReasonCancelled              StopReason = "cancelled"
	ReasonReset                  StopReason = "reset"
)

// EventKind names a lifecycle event
type EventKind string

const (
	EventStarted          EventKind = "started"
	EventRateLimit        EventKind = "rate-limit"
	EventRateLimitReset   EventKind = "rate-limit-reset"
	EventMarkUser         EventKind = "mark-user"
	EventStopped          EventKind = "stopped"
	EventRecurringWaiting EventKind = "recurring-waiting"
	EventComplete         EventKind = "complete"
	EventError            EventKind = "error"
)

// Event is delivered to a Sink. Only the payload fields for Kind are set.
type Event struct {
	Kind EventKind
	Info Info

	// mark-user
	UserID string
	Verb   request.Verb
	Failed bool

	// stopped
	Reason StopReason

	// recurring-waiting
	Delay time.Duration

	// error
	Err error
}

// Sink receives session events. Events of one session are delivered one at
// a time, in the order the changes happened; sinks shared by several
// sessions must be safe for concurrent use. A sink must not call Stop or
// Rewind on the emitting session synchronously.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(e Event) { f(e) }

// MultiSink delivers every event to each of its sinks in order
type MultiSink []Sink

func (m MultiSink) HandleEvent(e Event) {
	for _, s := range m {
		if s != nil {
			s.HandleEvent(e)
		}
	}
}
