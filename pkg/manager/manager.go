// Package manager admits, runs and tracks sessions.
package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"chainblock/pkg/logger"
	"chainblock/pkg/request"
	"chainblock/pkg/scheduler"
	"chainblock/pkg/scraper"
	"chainblock/pkg/session"

	"github.com/google/uuid"
)

// DefaultMaxRunning is the running-session ceiling used when none is configured
const DefaultMaxRunning = 3

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateTarget is returned when an active session already runs
	// against the same target for the same executor
	ErrDuplicateTarget = errors.New("a session against this target is already active")
)

// Indicator is told how many sessions are running
type Indicator interface {
	SetRunning(n int)
}

// Config wires a Manager
type Config struct {
	// MaxRunning caps concurrently running sessions
	MaxRunning int
	// KeepCompleted keeps completed sessions listed instead of removing them
	KeepCompleted bool

	// Session is the template for every session's config. Its Sink and
	// Validate fields are set by the manager.
	Session   session.Config
	Scheduler scheduler.Scheduler
	// Sink receives every session event after the manager has handled it
	Sink      session.Sink
	Indicator Indicator
	Logger    logger.Logger
	NewID     func() string
}

type entry struct {
	s *session.Session
	// launched is set while a goroutine runs s.Start
	launched bool
}

// Manager owns every session of the process
type Manager struct {
	cfg    Config
	logger logger.Logger

	mu       sync.Mutex
	sessions map[string]*entry
	order    []string
	running  int
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ session.Sink = (*Manager)(nil)

// New creates a manager and registers it for scheduler wake-ups
func New(cfg Config) *Manager {
	if cfg.MaxRunning <= 0 {
		cfg.MaxRunning = DefaultMaxRunning
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = scheduler.NewTimerScheduler(cfg.Logger)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		logger:   cfg.Logger.WithField("component", "manager"),
		sessions: make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
	}
	cfg.Scheduler.OnWake(m.wake)
	return m
}

// Create validates req, builds a session and starts it if a running slot is
// free. Otherwise the session waits in Initial until one is.
func (m *Manager) Create(ctx context.Context, req request.Request) (session.Info, error) {
	req, err := m.resolveRetriever(ctx, req)
	if err != nil {
		return session.Info{}, err
	}
	if err := Validate(req); err != nil {
		return session.Info{}, err
	}

	m.mu.Lock()
	for _, id := range m.order {
		other := m.sessions[id].s
		if other.Status().Terminal() {
			continue
		}
		if sameTarget(other.Request(), req) {
			m.mu.Unlock()
			return session.Info{}, fmt.Errorf("%w: %s", ErrDuplicateTarget, id)
		}
	}

	id := m.cfg.NewID()
	scfg := m.cfg.Session
	scfg.Sink = m
	scfg.Validate = Validate
	if scfg.Logger == nil {
		scfg.Logger = m.cfg.Logger
	}
	s, err := session.New(id, req, scfg)
	if err != nil {
		m.mu.Unlock()
		return session.Info{}, err
	}
	m.sessions[id] = &entry{s: s}
	m.order = append(m.order, id)
	m.mu.Unlock()

	m.logger.InfoWithFields("Session created", map[string]interface{}{
		"session_id": id,
		"request":    req.String(),
	})

	m.promote()
	return s.Info(), nil
}

// resolveRetriever swaps in an alternate account when anti-block is enabled
// and the target blocks the executor.
func (m *Manager) resolveRetriever(ctx context.Context, req request.Request) (request.Request, error) {
	t := req.Target
	if !req.Options.EnableAntiBlock || t.Kind != request.FollowerList || t.User == nil || !t.User.BlockedBy {
		return req, nil
	}
	if req.Retriever.User.ID != "" && req.Retriever.User.ID != req.Executor.User.ID {
		return req, nil
	}

	var alternates []request.Actor
	if m.cfg.Session.Alternates != nil {
		alts, err := m.cfg.Session.Alternates(ctx)
		if err != nil {
			return req, fmt.Errorf("failed to list alternate accounts: %w", err)
		}
		alternates = alts
	}
	retriever, err := scraper.FindUnblockedRetriever(ctx, *t.User, req.Executor, alternates)
	if err != nil {
		if errors.Is(err, scraper.ErrNoUnblockedRetriever) {
			return req, &ValidationError{Violation: ViolationBlockedByTarget, Detail: err.Error()}
		}
		return req, err
	}
	req.Retriever = retriever
	return req, nil
}

// sameTarget reports whether a and b enumerate the same accounts, whoever
// acts on them. A blocklist export belongs to its executor.
func sameTarget(a, b request.Request) bool {
	if !a.Target.Equal(b.Target) {
		return false
	}
	if a.Target.Kind == request.ExportMyBlocklist {
		return a.Executor.User.ID == b.Executor.User.ID
	}
	return true
}

// promote starts Initial sessions in creation order while slots are free
func (m *Manager) promote() {
	m.mu.Lock()
	var starting []*entry
	for _, id := range m.order {
		if m.running >= m.cfg.MaxRunning {
			break
		}
		e := m.sessions[id]
		if e.launched || e.s.Status() != session.StatusInitial {
			continue
		}
		e.launched = true
		m.running++
		starting = append(starting, e)
	}
	running := m.running
	ctx := m.ctx
	m.mu.Unlock()

	if len(starting) > 0 {
		m.report(running)
	}
	for _, e := range starting {
		m.launch(ctx, e)
	}
}

func (m *Manager) launch(ctx context.Context, e *entry) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		if err := e.s.Start(ctx); err != nil && !errors.Is(err, session.ErrNotInitial) {
			m.logger.WithError(err).WithField("session_id", e.s.ID()).Warn("Session ended with an error")
		}

		m.mu.Lock()
		e.launched = false
		m.running--
		running := m.running
		m.mu.Unlock()

		m.report(running)
		m.promote()
	}()
}

func (m *Manager) report(running int) {
	if m.cfg.Indicator != nil {
		m.cfg.Indicator.SetRunning(running)
	}
}

// RunningCount returns the number of sessions holding a running slot
func (m *Manager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// HandleEvent reacts to session events and relays them to the configured sink
func (m *Manager) HandleEvent(e session.Event) {
	id := e.Info.ID

	switch e.Kind {
	case session.EventRecurringWaiting:
		entry := m.cfg.Scheduler.Schedule(id, e.Delay)
		m.logger.InfoWithFields("Session will run again", map[string]interface{}{
			"session_id": id,
			"wake_at":    entry.WakeAt,
		})
	case session.EventStopped:
		m.cfg.Scheduler.Cancel(id)
		if e.Reason == session.ReasonBlockLimitationReached {
			m.cancelRecurring(e.Info.Request.Executor.User.ID, id)
		}
	case session.EventComplete:
		if !m.cfg.KeepCompleted && e.Info.Request.Purpose.Kind != request.Export {
			m.remove(id)
		}
	}

	if m.cfg.Sink != nil {
		m.cfg.Sink.HandleEvent(e)
	}
}

// cancelRecurring drops the pending wake-ups of executorID's sessions and
// stops those sessions.
func (m *Manager) cancelRecurring(executorID, except string) {
	m.mu.Lock()
	var waiting []*session.Session
	for _, id := range m.order {
		s := m.sessions[id].s
		if id == except || s.Request().Executor.User.ID != executorID {
			continue
		}
		if m.cfg.Scheduler.Cancel(id) {
			waiting = append(waiting, s)
		}
	}
	m.mu.Unlock()

	for _, s := range waiting {
		m.logger.InfoWithFields("Recurring session cancelled by block limit", map[string]interface{}{
			"session_id": s.ID(),
			"executor":   executorID,
		})
		// the sink runs with the emitting session's event lock held
		go s.Stop(session.ReasonBlockLimitationReached)
	}
}

func (m *Manager) wake(id string) {
	s, err := m.get(id)
	if err != nil || s.Status() != session.StatusAwaitingUntilRecur {
		return
	}
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()

	if err := s.Rewind(ctx); err != nil {
		m.logger.WithError(err).WithField("session_id", id).Warn("Recurring session could not be rewound")
		return
	}
	m.promote()
}

func (m *Manager) get(id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.s, nil
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
}

// Stop stops one session
func (m *Manager) Stop(id string, reason session.StopReason) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.cfg.Scheduler.Cancel(id)
	s.Stop(reason)
	return nil
}

// StopAll stops every session
func (m *Manager) StopAll(reason session.StopReason) {
	for _, s := range m.list() {
		m.cfg.Scheduler.Cancel(s.ID())
		s.Stop(reason)
	}
}

// Rewind prepares an ended session to run again and starts it when a slot
// is free.
func (m *Manager) Rewind(ctx context.Context, id string) error {
	s, err := m.get(id)
	if err != nil {
		return err
	}
	m.cfg.Scheduler.Cancel(id)
	if err := s.Rewind(ctx); err != nil {
		return err
	}
	m.promote()
	return nil
}

func (m *Manager) list() []*session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*session.Session, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].s)
	}
	return out
}

// Infos returns a snapshot of every session in creation order
func (m *Manager) Infos() []session.Info {
	sessions := m.list()
	out := make([]session.Info, len(sessions))
	for i, s := range sessions {
		out[i] = s.Info()
	}
	return out
}

// Info returns the snapshot of one session
func (m *Manager) Info(id string) (session.Info, error) {
	s, err := m.get(id)
	if err != nil {
		return session.Info{}, err
	}
	return s.Info(), nil
}

// CleanupInactive removes every session that has ended for good and returns
// how many were removed.
func (m *Manager) CleanupInactive() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	m.order = slices.DeleteFunc(m.order, func(id string) bool {
		if !m.sessions[id].s.Status().Terminal() {
			return false
		}
		delete(m.sessions, id)
		removed++
		return true
	})
	return removed
}

// FetchExportResult returns the account IDs collected by an export session.
// Completed exports are removed once fetched unless KeepCompleted is set.
func (m *Manager) FetchExportResult(id string) ([]string, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	ids, err := s.ExportResult()
	if err != nil {
		return nil, err
	}
	if !m.cfg.KeepCompleted && s.Status() == session.StatusCompleted {
		m.remove(id)
	}
	return ids, nil
}

// ResetAll stops every session, cancels their pending wake-ups, waits for
// running sessions to return and forgets all of them.
func (m *Manager) ResetAll() {
	m.shutdown(session.ReasonReset)

	m.mu.Lock()
	m.sessions = make(map[string]*entry)
	m.order = nil
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	m.report(0)
	m.logger.Info("All sessions reset")
}

// Close stops every session and waits for them to return
func (m *Manager) Close() {
	m.shutdown(session.ReasonCancelled)
}

func (m *Manager) shutdown(reason session.StopReason) {
	sessions := m.list()
	for _, s := range sessions {
		m.cfg.Scheduler.Cancel(s.ID())
	}

	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop(reason)
	}
	cancel()
	m.wg.Wait()
}

// Wait blocks until no session is running
func (m *Manager) Wait() {
	m.wg.Wait()
}
