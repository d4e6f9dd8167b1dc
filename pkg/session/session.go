package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"chainblock/pkg/config"
	errs "chainblock/pkg/errors"
	"chainblock/pkg/limiter"
	"chainblock/pkg/logger"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/scraper"
)

var (
	// ErrNotInitial is returned by Start when the session is not in Initial status
	ErrNotInitial = errors.New("session is not in Initial status")
	// ErrActive is returned by Rewind while the run loop owns the session
	ErrActive = errors.New("session is running")
	// ErrNotExport is returned by ExportResult for non-export sessions
	ErrNotExport = errors.New("session is not an export")
	// ErrNotFinished is returned by ExportResult before the export has run
	ErrNotFinished = errors.New("export has not finished")
)

// Config tunes a session and wires its collaborators
type Config struct {
	// RateLimitPause is how long the loop sleeps before retrying a throttled page
	RateLimitPause time.Duration
	// BatchSize bounds each awaited batch of rate-sensitive calls; zero
	// flushes once per page
	BatchSize int
	// Concurrency bounds in-flight platform calls
	Concurrency    int
	QuickModeLimit int
	// RewindCap bounds the accounts scraped after a rewind; zero disables
	RewindCap int

	Limiter  *limiter.Limiter
	Defaults config.DefaultsStore
	// Alternates lists other authenticated accounts for anti-block
	Alternates func(ctx context.Context) ([]request.Actor, error)
	// Validate re-checks a request on rewind
	Validate func(req request.Request) error
	Sink     Sink
	Logger   logger.Logger
	Now      func() time.Time
}

// ConfigFrom copies the tuning knobs of c
func ConfigFrom(c config.SessionConfig) Config {
	return Config{
		RateLimitPause: c.RateLimitPause,
		BatchSize:      c.BatchSize,
		Concurrency:    c.Concurrency,
		QuickModeLimit: c.QuickModeLimit,
		RewindCap:      c.RewindCap,
	}
}

func (c *Config) setDefaults() {
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = time.Minute
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.Logger == nil {
		c.Logger = logger.GetLogger()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Session drives one request from Initial to a terminal status
type Session struct {
	id  string
	cfg Config
	log logger.Logger

	// emitMu orders state changes with the events describing them
	emitMu sync.Mutex

	mu        sync.Mutex
	req       request.Request
	scraper   scraper.Scraper
	status    Status
	progress  Progress
	limit     *models.RateLimitWindow
	exported  bool
	stopFlag  bool
	// looping is set while a Start call owns the session, which can outlast
	// a Stop that already moved the status to Stopped
	looping   bool
	reason    StopReason
	stopCh    chan struct{}
	seen      map[string]bool
	exportIDs []string
	// base is Scraped when the current run began
	base int
	// inner is the scraper's own total for the current run
	inner *int
	// repeats counts accounts re-yielded in the current run that were already
	// counted, by an earlier run or an earlier page
	repeats int
}

// New builds a session in Initial status
func New(id string, req request.Request, cfg Config) (*Session, error) {
	cfg.setDefaults()

	if err := req.Purpose.Validate(); err != nil {
		return nil, err
	}
	if cfg.Validate != nil {
		if err := cfg.Validate(req); err != nil {
			return nil, err
		}
	}
	sc, err := scraper.New(req, scraper.Config{QuickModeLimit: cfg.QuickModeLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to build scraper: %w", err)
	}

	return &Session{
		id:       id,
		cfg:      cfg,
		log:      cfg.Logger.WithField("session_id", id),
		req:      req,
		scraper:  sc,
		status:   StatusInitial,
		progress: newProgress(),
		stopCh:   make(chan struct{}),
		seen:     make(map[string]bool),
	}, nil
}

// ID returns the session ID
func (s *Session) ID() string { return s.id }

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Request returns the request the session currently runs
func (s *Session) Request() request.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.req
}

// Info returns a snapshot of the session
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Info {
	req := s.req
	req.Target = req.Target.Clone()

	var limit *models.RateLimitWindow
	if s.limit != nil {
		l := *s.limit
		limit = &l
	}
	return Info{
		ID:       s.id,
		Request:  req,
		Progress: s.progress.clone(),
		Status:   s.status,
		Limit:    limit,
		Exported: s.exported,
	}
}

// mutate runs fn under the state lock and delivers the event it returns
func (s *Session) mutate(fn func() *Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	ev := fn()
	if ev != nil {
		ev.Info = s.snapshotLocked()
	}
	s.mu.Unlock()

	if ev != nil && s.cfg.Sink != nil {
		s.cfg.Sink.HandleEvent(*ev)
	}
}

func (s *Session) stopRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopFlag
}

// Start runs the session until it ends. It returns the fatal error, if any,
// after the session has moved to Error.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInitial {
		st := s.status
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInitial, st)
	}
	req := s.req
	sc := s.scraper
	stopCh := s.stopCh
	s.base = s.progress.Scraped
	s.inner = nil
	s.repeats = 0
	s.mu.Unlock()

	if req.Purpose.Destructive() && s.cfg.Limiter != nil {
		st, err := s.cfg.Limiter.Check(ctx, req.Executor.User.ID)
		if err != nil {
			return s.fail(fmt.Errorf("failed to check block limiter: %w", err))
		}
		if st == limiter.StatusDanger {
			s.Stop(ReasonBlockLimitationReached)
			return nil
		}
	}

	started := false
	s.mutate(func() *Event {
		if s.status != StatusInitial {
			return nil
		}
		s.status = StatusRunning
		s.looping = true
		started = true
		return &Event{Kind: EventStarted}
	})
	if !started {
		return nil
	}
	s.log.InfoWithFields("Session started", map[string]interface{}{
		"request": req.String(),
	})

	for page := range sc.Scrape(ctx) {
		if s.stopRequested() {
			break
		}

		if page.Err != nil {
			if errs.IsRateLimit(page.Err) {
				if !s.pause(ctx, req, page.Err, stopCh) {
					break
				}
				continue
			}
			if ctx.Err() != nil {
				break
			}
			return s.fail(page.Err)
		}

		if !s.resume() {
			break
		}
		s.refineTotal(sc.TotalCount())

		if err := s.processPage(ctx, req, page, stopCh); err != nil {
			return s.fail(err)
		}

		s.mu.Lock()
		scraped, total := s.progress.Scraped, s.progress.Total
		s.mu.Unlock()
		logger.LogSessionProgress(s.id, scraped, total)
	}

	s.finish(ctx)
	return nil
}

// pause records the current rate limit window and sleeps. It returns false
// when the session must stop instead of retrying.
func (s *Session) pause(ctx context.Context, req request.Request, cause error, stopCh <-chan struct{}) bool {
	window, endpoint := s.queryWindow(ctx, req, cause)

	stopped := false
	s.mutate(func() *Event {
		if s.stopFlag {
			stopped = true
			return nil
		}
		entered := s.status != StatusRateLimited
		s.status = StatusRateLimited
		s.limit = window
		if !entered {
			return nil
		}
		return &Event{Kind: EventRateLimit}
	})
	if stopped {
		return false
	}

	var reset time.Time
	if window != nil {
		reset = window.Reset
	}
	logger.LogRateLimit(s.id, endpoint, reset, s.cfg.RateLimitPause)

	return wait(ctx, stopCh, s.cfg.RateLimitPause)
}

// queryWindow returns the window of the throttled endpoint, preferring a
// fresh rate limit status over the headers carried by cause.
func (s *Session) queryWindow(ctx context.Context, req request.Request, cause error) (*models.RateLimitWindow, string) {
	var apiErr *errs.Error
	if !errors.As(cause, &apiErr) {
		return nil, ""
	}

	var window *models.RateLimitWindow
	if info := apiErr.RateLimit; info != nil {
		window = &models.RateLimitWindow{Limit: info.Limit, Remaining: info.Remaining, Reset: info.Reset}
	}

	client := req.Retriever.Client
	if client == nil {
		client = req.Executor.Client
	}
	if apiErr.Endpoint == "" || client == nil {
		return window, apiErr.Endpoint
	}

	status, err := client.RateLimitStatus(ctx)
	if err != nil {
		s.log.WithError(err).Debug("Rate limit status unavailable")
		return window, apiErr.Endpoint
	}
	if w, ok := status[apiErr.Endpoint]; ok {
		window = &w
	}
	return window, apiErr.Endpoint
}

// resume moves a rate limited session back to Running. It returns false if
// the session was stopped meanwhile.
func (s *Session) resume() bool {
	ok := true
	s.mutate(func() *Event {
		if s.stopFlag {
			ok = false
			return nil
		}
		if s.status != StatusRateLimited {
			return nil
		}
		s.status = StatusRunning
		s.limit = nil
		return &Event{Kind: EventRateLimitReset}
	})
	return ok
}

func (s *Session) refineTotal(t *int) {
	if t == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := *t
	s.inner = &n
	s.updateTotalLocked()
}

// updateTotalLocked estimates Total as the accounts counted before this run
// plus the ones this run can still add
func (s *Session) updateTotalLocked() {
	if s.inner == nil {
		return
	}
	n := max(s.base+*s.inner-s.repeats, s.progress.Scraped)
	s.progress.Total = &n
}

func (s *Session) finish(ctx context.Context) {
	s.mutate(func() *Event {
		s.looping = false
		if s.status.Terminal() {
			return nil
		}
		if !s.stopFlag && ctx.Err() != nil {
			s.stopFlag = true
			s.reason = ReasonCancelled
		}
		s.limit = nil

		switch {
		case s.stopFlag:
			s.status = StatusStopped
			return &Event{Kind: EventStopped, Reason: s.reason}
		case s.req.Options.Recurring > 0:
			s.status = StatusAwaitingUntilRecur
			return &Event{Kind: EventRecurringWaiting, Delay: s.req.Options.Recurring}
		default:
			s.status = StatusCompleted
			return &Event{Kind: EventComplete}
		}
	})

	info := s.Info()
	s.log.InfoWithFields("Session finished", map[string]interface{}{
		"status":  string(info.Status),
		"scraped": info.Progress.Scraped,
		"success": info.Progress.SuccessTotal(),
		"failure": info.Progress.Failure,
	})
}

func (s *Session) fail(err error) error {
	s.mutate(func() *Event {
		s.looping = false
		s.status = StatusError
		s.limit = nil
		return &Event{Kind: EventError, Err: err}
	})
	s.log.WithError(err).Error("Session failed")
	return err
}

// Stop asks the session to stop. While Running the loop winds down on its
// own; from Initial, RateLimited or AwaitingUntilRecur the session stops
// immediately. Stopping an ended session does nothing.
func (s *Session) Stop(reason StopReason) {
	s.mutate(func() *Event {
		if s.status.Terminal() || s.stopFlag {
			return nil
		}
		s.stopFlag = true
		s.reason = reason
		close(s.stopCh)

		if s.status == StatusRunning {
			return nil
		}
		s.status = StatusStopped
		s.limit = nil
		return &Event{Kind: EventStopped, Reason: reason}
	})
}

// ExportResult returns the account IDs collected by an export session and
// marks it as exported.
func (s *Session) ExportResult() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.req.Purpose.Kind != request.Export {
		return nil, ErrNotExport
	}
	if s.status == StatusInitial || s.status.Active() {
		return nil, ErrNotFinished
	}
	s.exported = true
	return slices.Clone(s.exportIDs), nil
}

// wait sleeps for d. It returns false if stopCh or ctx ended the wait early.
func wait(ctx context.Context, stopCh <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
