// Package limiter implements the block limiter: a rolling-window counter of
// destructive actions per executing account. The counter resets once the
// window has elapsed since the last increment.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainblock/pkg/logger"
)

const (
	DefaultMax    = 500
	DefaultWindow = 3 * time.Hour
)

// Status is the admission verdict for an executor
type Status string

const (
	StatusOK     Status = "ok"
	StatusDanger Status = "danger"
)

// State is the persisted counter for one executor
type State struct {
	Count         int       `json:"count"`
	LastIncrement time.Time `json:"last_increment"`
}

// Store persists limiter state. Incr is atomic for every Limiter sharing the
// store, including ones in other processes for stores that span them.
type Store interface {
	Get(ctx context.Context, key string) (State, error)
	// Incr adds n to key's count and stamps at as its last increment. A count
	// whose window elapsed since its last increment starts over from zero.
	Incr(ctx context.Context, key string, n int, at time.Time, window time.Duration) (State, error)
	Delete(ctx context.Context, key string) error
}

// advance applies an increment to st for stores that read and write whole states
func advance(st State, n int, at time.Time, window time.Duration) State {
	if !st.LastIncrement.IsZero() && at.Sub(st.LastIncrement) >= window {
		st = State{}
	}
	st.Count += n
	st.LastIncrement = at
	return st
}

// Limiter is shared by every session acting as the same executor
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
	logger logger.Logger

	mu sync.Mutex
}

// New creates a limiter over store. Non-positive max or window fall back to
// the defaults.
func New(store Store, max int, window time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:  store,
		max:    max,
		window: window,
		now:    time.Now,
		logger: logger.GetLogger().WithField("component", "limiter"),
	}
}

// Max returns the cap
func (l *Limiter) Max() int { return l.max }

// Window returns the reset window
func (l *Limiter) Window() time.Duration { return l.window }

// load returns the live state, treating an expired window as empty
func (l *Limiter) load(ctx context.Context, executorID string) (State, error) {
	st, err := l.store.Get(ctx, executorID)
	if err != nil {
		return State{}, fmt.Errorf("failed to read limiter state for %s: %w", executorID, err)
	}
	if !st.LastIncrement.IsZero() && l.now().Sub(st.LastIncrement) >= l.window {
		return State{}, nil
	}
	return st, nil
}

// Count returns the number of actions recorded in the current window
func (l *Limiter) Count(ctx context.Context, executorID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.load(ctx, executorID)
	return st.Count, err
}

// Increment records n actions and returns the new count
func (l *Limiter) Increment(ctx context.Context, executorID string, n int) (int, error) {
	if n <= 0 {
		return l.Count(ctx, executorID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.Incr(ctx, executorID, n, l.now(), l.window)
	if err != nil {
		return 0, fmt.Errorf("failed to write limiter state for %s: %w", executorID, err)
	}

	if st.Count >= l.max {
		l.logger.WarnWithFields("Block limit reached", map[string]interface{}{
			"executor": executorID,
			"count":    st.Count,
			"max":      l.max,
		})
	}
	return st.Count, nil
}

// Check reports whether executorID may issue further destructive actions
func (l *Limiter) Check(ctx context.Context, executorID string) (Status, error) {
	return l.CheckPending(ctx, executorID, 0)
}

// CheckPending is Check with pending not-yet-recorded actions counted in
func (l *Limiter) CheckPending(ctx context.Context, executorID string, pending int) (Status, error) {
	count, err := l.Count(ctx, executorID)
	if err != nil {
		return StatusDanger, err
	}
	if count+pending >= l.max {
		return StatusDanger, nil
	}
	return StatusOK, nil
}

// Remaining returns how many actions are left in the current window
func (l *Limiter) Remaining(ctx context.Context, executorID string) (int, error) {
	count, err := l.Count(ctx, executorID)
	if err != nil {
		return 0, err
	}
	return max(l.max-count, 0), nil
}

// ResetsAt returns when the current window ends, or the zero time if nothing
// has been recorded.
func (l *Limiter) ResetsAt(ctx context.Context, executorID string) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.load(ctx, executorID)
	if err != nil || st.LastIncrement.IsZero() {
		return time.Time{}, err
	}
	return st.LastIncrement.Add(l.window), nil
}

// Reset clears the counter for executorID
func (l *Limiter) Reset(ctx context.Context, executorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, executorID); err != nil {
		return fmt.Errorf("failed to reset limiter for %s: %w", executorID, err)
	}
	l.logger.InfoWithFields("Block limiter reset", map[string]interface{}{"executor": executorID})
	return nil
}
