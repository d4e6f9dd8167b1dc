// Package scheduler provides delayed wake-ups for recurring sessions.
package scheduler

import (
	"slices"
	"sync"
	"time"

	"chainblock/pkg/logger"
)

// Entry is a pending wake-up
type Entry struct {
	ID     string    `json:"id"`
	WakeAt time.Time `json:"wake_at"`
}

// Scheduler wakes session IDs after a delay. Scheduling an ID that is
// already pending replaces the earlier wake-up.
type Scheduler interface {
	Schedule(id string, delay time.Duration) Entry
	// Cancel drops the pending wake-up of id and reports whether there was one
	Cancel(id string) bool
	// OnWake sets the handler called, on its own goroutine, when an entry fires
	OnWake(fn func(id string))
	List() []Entry
}

type timer struct {
	entry Entry
	t     *time.Timer
}

// TimerScheduler implements Scheduler with one runtime timer per entry
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*timer
	onWake func(id string)
	now    func() time.Time
	logger logger.Logger
}

var _ Scheduler = (*TimerScheduler)(nil)

// NewTimerScheduler creates an empty scheduler
func NewTimerScheduler(log logger.Logger) *TimerScheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	return &TimerScheduler{
		timers: make(map[string]*timer),
		now:    time.Now,
		logger: log.WithField("component", "scheduler"),
	}
}

func (s *TimerScheduler) OnWake(fn func(id string)) {
	s.mu.Lock()
	s.onWake = fn
	s.mu.Unlock()
}

func (s *TimerScheduler) Schedule(id string, delay time.Duration) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[id]; ok {
		old.t.Stop()
	}

	tm := &timer{entry: Entry{ID: id, WakeAt: s.now().Add(delay)}}
	tm.t = time.AfterFunc(delay, func() { s.fire(tm) })
	s.timers[id] = tm

	s.logger.DebugWithFields("Wake-up scheduled", map[string]interface{}{
		"session_id": id,
		"delay":      delay,
	})
	return tm.entry
}

func (s *TimerScheduler) fire(tm *timer) {
	s.mu.Lock()
	// a replaced or cancelled timer may still fire
	if s.timers[tm.entry.ID] != tm {
		s.mu.Unlock()
		return
	}
	delete(s.timers, tm.entry.ID)
	fn := s.onWake
	s.mu.Unlock()

	if fn != nil {
		fn(tm.entry.ID)
	}
}

func (s *TimerScheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tm, ok := s.timers[id]
	if !ok {
		return false
	}
	tm.t.Stop()
	delete(s.timers, id)
	return true
}

// List returns pending entries ordered by wake time
func (s *TimerScheduler) List() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.timers))
	for _, tm := range s.timers {
		out = append(out, tm.entry)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Entry) int { return a.WakeAt.Compare(b.WakeAt) })
	return out
}

// Stop cancels every pending wake-up
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, tm := range s.timers {
		tm.t.Stop()
		delete(s.timers, id)
	}
}
