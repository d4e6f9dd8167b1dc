package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chainblock/pkg/config"
	errs "chainblock/pkg/errors"
	"chainblock/pkg/limiter"
	"chainblock/pkg/logger"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var self = models.User{ID: "me", ScreenName: "me"}

type recorder struct {
	t      *testing.T
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(e Event) {
	p := e.Info.Progress
	sum := p.SuccessTotal() + p.Already + p.Skipped + p.Failure + p.Error
	assert.Equal(r.t, sum, p.Scraped, "scraped must equal the bucket sum at %s", e.Kind)

	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return Event{}, false
}

func platform(followers ...models.User) *twitter.MockClient {
	m := twitter.NewMockClient(self)
	m.PageSize = 2
	ids := make([]string, len(followers))
	for i, u := range followers {
		ids[i] = u.ID
	}
	m.AddUser(models.User{ID: "t", ScreenName: "target", FollowersCount: len(followers)})
	m.AddUser(followers...)
	m.SetFollowers("t", ids...)
	return m
}

func chainblock(m *twitter.MockClient) request.Request {
	target, _ := m.User("t")
	actor := request.Actor{User: self, Client: m}
	return request.Request{
		Purpose: request.Purpose{
			Kind:         request.ChainBlock,
			MyFollowers:  request.Skip,
			MyFollowings: request.Skip,
			Verified:     request.Block,
		},
		Target:    request.Target{Kind: request.FollowerList, User: &target, List: request.Followers},
		Retriever: actor,
		Executor:  actor,
	}
}

func newSession(t *testing.T, req request.Request, mutate ...func(*Config)) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{t: t}
	cfg := Config{
		RateLimitPause: 10 * time.Millisecond,
		Concurrency:    4,
		Limiter:        limiter.New(limiter.NewMemoryStore(), 500, time.Hour),
		Sink:           rec,
		Logger:         logger.NewNopLogger(),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	s, err := New("s1", req, cfg)
	require.NoError(t, err)
	return s, rec
}

func TestChainblockEndToEnd(t *testing.T) {
	m := platform(
		models.User{ID: "a", Following: true, FollowedBy: true},
		models.User{ID: "b", Following: true, FollowedBy: true},
		models.User{ID: "c"},
	)
	s, rec := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, 1, info.Progress.Success[request.Block])
	assert.Equal(t, 2, info.Progress.Skipped)
	assert.Equal(t, 3, info.Progress.Scraped)
	require.NotNil(t, info.Progress.Total)
	assert.Equal(t, 3, *info.Progress.Total)

	assert.Equal(t, []twitter.MockAction{{Kind: twitter.MockBlock, UserID: "c"}}, m.Actions())
	assert.Equal(t, []EventKind{EventStarted, EventMarkUser, EventComplete}, rec.kinds())

	mark, _ := rec.last(EventMarkUser)
	assert.Equal(t, "c", mark.UserID)
	assert.Equal(t, request.Block, mark.Verb)
	assert.False(t, mark.Failed)
}

func TestDuplicateAccountsAreProcessedOnce(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"})
	m.SetFollowers("t", "a", "b", "a", "b", "a")
	s, _ := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 2, info.Progress.Success[request.Block])
	assert.Equal(t, 2, info.Progress.Scraped)
	assert.Len(t, m.Actions(), 2)
}

func TestAlreadyBlockedCollapses(t *testing.T) {
	m := platform(models.User{ID: "a", Blocking: true}, models.User{ID: "b"})
	s, _ := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 1, info.Progress.Already)
	assert.Equal(t, 1, info.Progress.Success[request.Block])
	assert.Equal(t, []twitter.MockAction{{Kind: twitter.MockBlock, UserID: "b"}}, m.Actions())
}

func TestExecutorIsNeverCounted(t *testing.T) {
	m := platform(models.User{ID: "a"})
	m.AddUser(self)
	m.SetFollowers("t", "me", "a")
	s, _ := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, s.Info().Progress.Scraped)
}

func TestFailedActionsAreIsolated(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"}, models.User{ID: "c"})
	m.FailAction("b", errs.New(errs.ErrorTypeForbidden, 403, "cannot block"))
	s, rec := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, 2, info.Progress.Success[request.Block])
	assert.Equal(t, 1, info.Progress.Failure)
	assert.Equal(t, 3, info.Progress.Scraped)
	assert.Equal(t, 3, rec.count(EventMarkUser))
}

func TestLowRiskVerbs(t *testing.T) {
	m := platform(
		models.User{ID: "a", Blocking: true},
		models.User{ID: "b", Blocking: true},
		models.User{ID: "c"},
	)
	req := chainblock(m)
	req.Purpose = request.Purpose{Kind: request.UnChainBlock, MutualBlocked: request.Skip}
	s, _ := newSession(t, req)

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 2, info.Progress.Success[request.UnBlock])
	assert.Equal(t, 1, info.Progress.Already)
	assert.ElementsMatch(t, []twitter.MockAction{
		{Kind: twitter.MockUnblock, UserID: "a"},
		{Kind: twitter.MockUnblock, UserID: "b"},
	}, m.Actions())
}

func TestMissingAccountsCountAsErrors(t *testing.T) {
	m := platform(models.User{ID: "a"})
	req := chainblock(m)
	req.Target = request.Target{Kind: request.ImportedIDList, UserIDs: []string{"a", "ghost"}}
	s, _ := newSession(t, req)

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 1, info.Progress.Error)
	assert.Equal(t, 1, info.Progress.Success[request.Block])
	assert.Equal(t, 2, info.Progress.Scraped)
}

func TestRateLimitPausesAndResumes(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"}, models.User{ID: "c"})
	m.FailWithRateLimit(twitter.EndpointFollowersList, 3)
	s, rec := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, 3, info.Progress.Success[request.Block])
	assert.Equal(t, 3, info.Progress.Scraped)
	assert.Nil(t, info.Limit)
	assert.Len(t, m.Actions(), 3)

	assert.Equal(t, 1, rec.count(EventRateLimit))
	assert.Equal(t, 1, rec.count(EventRateLimitReset))
	// two pages plus three throttled attempts
	assert.Equal(t, 5, m.Calls(twitter.EndpointFollowersList))

	limited, _ := rec.last(EventRateLimit)
	assert.Equal(t, StatusRateLimited, limited.Info.Status)
	require.NotNil(t, limited.Info.Limit)
	assert.Equal(t, m.Reset.Unix(), limited.Info.Limit.Reset.Unix())

	kinds := rec.kinds()
	assert.Equal(t, []EventKind{EventStarted, EventRateLimit, EventRateLimitReset}, kinds[:3])
}

func TestStopWhileRateLimited(t *testing.T) {
	m := platform(models.User{ID: "a"})
	m.FailWithRateLimit(twitter.EndpointFollowersList, 1000)
	s, rec := newSession(t, chainblock(m), func(c *Config) { c.RateLimitPause = time.Hour })

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return rec.count(EventRateLimit) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusRateLimited, s.Status())

	s.Stop(ReasonUserRequest)
	assert.Equal(t, StatusStopped, s.Status())
	s.Stop(ReasonUserRequest)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not observe stop during rate limit pause")
	}

	assert.Equal(t, StatusStopped, s.Status())
	assert.Equal(t, 1, rec.count(EventStopped))
	ev, _ := rec.last(EventStopped)
	assert.Equal(t, ReasonUserRequest, ev.Reason)
	assert.Empty(t, m.Actions())
}

func TestStopWhileRunning(t *testing.T) {
	followers := make([]models.User, 20)
	for i := range followers {
		followers[i] = models.User{ID: string(rune('a' + i))}
	}
	m := platform(followers...)
	m.Latency = 5 * time.Millisecond
	s, rec := newSession(t, chainblock(m))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return rec.count(EventMarkUser) > 0 }, 2*time.Second, time.Millisecond)
	s.Stop(ReasonUserRequest)
	s.Stop(ReasonUserRequest)
	require.NoError(t, <-done)

	info := s.Info()
	assert.Equal(t, StatusStopped, info.Status)
	assert.Less(t, info.Progress.Scraped, 20)
	assert.Equal(t, info.Progress.Success[request.Block], len(m.Actions()))
	assert.Equal(t, 1, rec.count(EventStopped))
	assert.Equal(t, EventStopped, rec.kinds()[len(rec.kinds())-1])
}

func TestStopBeforeStart(t *testing.T) {
	m := platform(models.User{ID: "a"})
	s, rec := newSession(t, chainblock(m))

	s.Stop(ReasonUserRequest)
	s.Stop(ReasonUserRequest)
	assert.Equal(t, StatusStopped, s.Status())
	assert.Equal(t, []EventKind{EventStopped}, rec.kinds())

	assert.ErrorIs(t, s.Start(context.Background()), ErrNotInitial)
	assert.Empty(t, m.Actions())
}

func TestDelayBetweenBatchesObservesStop(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"}, models.User{ID: "c"}, models.User{ID: "d"})
	req := chainblock(m)
	req.Options.DelayBetweenBatches = time.Hour
	s, rec := newSession(t, req, func(c *Config) { c.BatchSize = 1 })

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return rec.count(EventMarkUser) == 1 }, 2*time.Second, time.Millisecond)
	s.Stop(ReasonUserRequest)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inter-batch delay did not observe stop")
	}
	assert.Equal(t, 1, s.Info().Progress.Success[request.Block])
}

func TestBlockLimiterStopsSession(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"}, models.User{ID: "c"}, models.User{ID: "d"})
	lim := limiter.New(limiter.NewMemoryStore(), 2, time.Hour)
	s, rec := newSession(t, chainblock(m), func(c *Config) { c.Limiter = lim })

	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, StatusStopped, info.Status)
	assert.Equal(t, 2, info.Progress.Success[request.Block])
	ev, ok := rec.last(EventStopped)
	require.True(t, ok)
	assert.Equal(t, ReasonBlockLimitationReached, ev.Reason)

	count, err := lim.Count(context.Background(), self.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExhaustedLimiterPreventsStart(t *testing.T) {
	m := platform(models.User{ID: "a"})
	lim := limiter.New(limiter.NewMemoryStore(), 1, time.Hour)
	_, err := lim.Increment(context.Background(), self.ID, 1)
	require.NoError(t, err)
	s, rec := newSession(t, chainblock(m), func(c *Config) { c.Limiter = lim })

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatusStopped, s.Status())
	assert.Equal(t, []EventKind{EventStopped}, rec.kinds())
	assert.Empty(t, m.Actions())
}

func TestLimiterIgnoredForNonDestructivePurposes(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"})
	lim := limiter.New(limiter.NewMemoryStore(), 1, time.Hour)
	_, err := lim.Increment(context.Background(), self.ID, 1)
	require.NoError(t, err)
	req := chainblock(m)
	req.Purpose = request.Purpose{Kind: request.ChainMute, MyFollowers: request.Skip, MyFollowings: request.Skip}
	s, _ := newSession(t, req, func(c *Config) { c.Limiter = lim })

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 2, s.Info().Progress.Success[request.Mute])
}

func TestFatalScrapeError(t *testing.T) {
	m := platform(models.User{ID: "a"})
	boom := errs.New(errs.ErrorTypeServerError, 500, "over capacity")
	m.FailWith(twitter.EndpointFollowersList, boom)
	s, rec := newSession(t, chainblock(m))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, StatusError, s.Status())

	ev, ok := rec.last(EventError)
	require.True(t, ok)
	assert.Equal(t, boom, ev.Err)
}

func TestRecurringSessionWaits(t *testing.T) {
	m := platform(models.User{ID: "a"})
	req := chainblock(m)
	req.Options.Recurring = 30 * time.Minute
	s, rec := newSession(t, req)

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatusAwaitingUntilRecur, s.Status())

	ev, ok := rec.last(EventRecurringWaiting)
	require.True(t, ok)
	assert.Equal(t, 30*time.Minute, ev.Delay)

	s.Stop(ReasonUserRequest)
	assert.Equal(t, StatusStopped, s.Status())
}

func TestRewindKeepsIdentityAndProgress(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"})
	s, _ := newSession(t, chainblock(m))

	require.NoError(t, s.Start(context.Background()))
	before := s.Info()
	require.Equal(t, StatusCompleted, before.Status)

	require.NoError(t, s.Rewind(context.Background()))

	after := s.Info()
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, StatusInitial, after.Status)
	assert.Equal(t, before.Progress, after.Progress)
}

func TestRewindRunsOnlyNewAccounts(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"})
	req := chainblock(m)
	req.Options.Recurring = time.Minute
	s, _ := newSession(t, req)

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, StatusAwaitingUntilRecur, s.Status())

	m.AddUser(models.User{ID: "c"})
	m.SetFollowers("t", "c", "a", "b")
	require.NoError(t, s.Rewind(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 3, info.Progress.Success[request.Block])
	assert.Equal(t, 3, info.Progress.Scraped)
	assert.Len(t, m.Actions(), 3)
}

func TestRewindTotalExcludesAccountsAlreadyCounted(t *testing.T) {
	m := platform(models.User{ID: "a"}, models.User{ID: "b"})
	req := chainblock(m)
	req.Options.Recurring = time.Minute
	s, rec := newSession(t, req)

	require.NoError(t, s.Start(context.Background()))

	m.AddUser(models.User{ID: "t", ScreenName: "target", FollowersCount: 3}, models.User{ID: "c"})
	m.SetFollowers("t", "c", "a", "b")
	require.NoError(t, s.Rewind(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	assert.Equal(t, 3, info.Progress.Scraped)
	require.NotNil(t, info.Progress.Total)
	assert.Equal(t, 3, *info.Progress.Total)

	waiting, _ := rec.last(EventRecurringWaiting)
	require.NotNil(t, waiting.Info.Progress.Total)
	assert.Equal(t, waiting.Info.Progress.Scraped, *waiting.Info.Progress.Total)
}

func TestRewindAppliesCap(t *testing.T) {
	m := platform(models.User{ID: "a"})
	s, _ := newSession(t, chainblock(m), func(c *Config) { c.RewindCap = 2 })
	require.NoError(t, s.Start(context.Background()))

	m.AddUser(models.User{ID: "x"}, models.User{ID: "y"}, models.User{ID: "z"})
	m.SetFollowers("t", "x", "y", "z", "a")
	require.NoError(t, s.Rewind(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, 3, s.Info().Progress.Success[request.Block])
	z, _ := m.User("z")
	assert.False(t, z.Blocking)
}

func TestRewindReloadsDefaults(t *testing.T) {
	m := platform(models.User{ID: "a", FollowedBy: true})
	defaults := config.DefaultConfig().Defaults
	store := config.NewMemoryDefaultsStore(defaults)
	s, _ := newSession(t, chainblock(m), func(c *Config) { c.Defaults = store })

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 1, s.Info().Progress.Skipped)

	defaults.MyFollowers = string(request.Block)
	require.NoError(t, store.SaveDefaults(defaults))
	require.NoError(t, s.Rewind(context.Background()))
	assert.Equal(t, request.Block, s.Request().Purpose.MyFollowers)
}

func TestRewindFailureMovesToError(t *testing.T) {
	m := platform(models.User{ID: "a"})
	s, rec := newSession(t, chainblock(m))
	require.NoError(t, s.Start(context.Background()))

	m.FailWith(twitter.EndpointUsersShow, errs.New(errs.ErrorTypeNotFound, 404, "user not found"))
	require.Error(t, s.Rewind(context.Background()))
	assert.Equal(t, StatusError, s.Status())
	assert.Equal(t, 1, rec.count(EventError))
}

func TestRewindResolvesUnblockedRetriever(t *testing.T) {
	m := platform(models.User{ID: "a"})
	req := chainblock(m)
	req.Options.EnableAntiBlock = true
	s, _ := newSession(t, req, func(c *Config) {
		c.Alternates = func(ctx context.Context) ([]request.Actor, error) {
			alt := twitter.NewMockClient(models.User{ID: "alt"})
			alt.AddUser(models.User{ID: "t", ScreenName: "target"})
			alt.AddUser(models.User{ID: "a"})
			alt.SetFollowers("t", "a")
			return []request.Actor{{User: models.User{ID: "alt", ScreenName: "alt"}, Client: alt}}, nil
		}
	})
	require.NoError(t, s.Start(context.Background()))

	m.AddUser(models.User{ID: "t", ScreenName: "target", BlockedBy: true})
	require.NoError(t, s.Rewind(context.Background()))
	assert.Equal(t, "alt", s.Request().Retriever.User.ID)
	assert.Equal(t, "me", s.Request().Executor.User.ID)
}

func TestRewindWhileRunning(t *testing.T) {
	m := platform(models.User{ID: "a"})
	m.FailWithRateLimit(twitter.EndpointFollowersList, 1000)
	s, rec := newSession(t, chainblock(m), func(c *Config) { c.RateLimitPause = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	require.Eventually(t, func() bool { return rec.count(EventRateLimit) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Rewind(context.Background()), ErrActive)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StatusStopped, s.Status())
	ev, _ := rec.last(EventStopped)
	assert.Equal(t, ReasonCancelled, ev.Reason)
}

func TestRewindAfterStopWaitsForRunLoop(t *testing.T) {
	m := platform(models.User{ID: "a"})
	m.FailWithRateLimit(twitter.EndpointFollowersList, 3)
	m.Latency = 100 * time.Millisecond
	s, rec := newSession(t, chainblock(m), func(c *Config) { c.RateLimitPause = time.Millisecond })

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return rec.count(EventRateLimit) == 1 }, 2*time.Second, time.Millisecond)

	s.Stop(ReasonUserRequest)
	require.Equal(t, StatusStopped, s.Status())

	err := s.Rewind(context.Background())
	if err != nil {
		require.ErrorIs(t, err, ErrActive)
	}
	require.NoError(t, <-done)
	if err != nil {
		require.NoError(t, s.Rewind(context.Background()))
	}

	assert.Equal(t, StatusInitial, s.Status())
	assert.Zero(t, rec.count(EventComplete))
	assert.Equal(t, 1, rec.count(EventStopped))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatusCompleted, s.Status())
	assert.Equal(t, []twitter.MockAction{{Kind: twitter.MockBlock, UserID: "a"}}, m.Actions())
}

func TestExportCollectsBlocklist(t *testing.T) {
	m := twitter.NewMockClient(self)
	m.PageSize = 2
	m.AddUser(
		models.User{ID: "a", Blocking: true},
		models.User{ID: "b"},
		models.User{ID: "c", Blocking: true},
		models.User{ID: "d", Blocking: true},
	)
	actor := request.Actor{User: self, Client: m}
	req := request.Request{
		Purpose:   request.Purpose{Kind: request.Export},
		Target:    request.Target{Kind: request.ExportMyBlocklist},
		Retriever: actor,
		Executor:  actor,
	}
	s, _ := newSession(t, req)

	_, err := s.ExportResult()
	assert.ErrorIs(t, err, ErrNotFinished)

	require.NoError(t, s.Start(context.Background()))
	info := s.Info()
	assert.Equal(t, StatusCompleted, info.Status)
	assert.Equal(t, 3, info.Progress.Skipped)
	assert.False(t, info.Exported)
	assert.Empty(t, m.Actions())

	ids, err := s.ExportResult()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "d"}, ids)
	assert.True(t, s.Info().Exported)
}

func TestExportResultRejectsOtherPurposes(t *testing.T) {
	m := platform(models.User{ID: "a"})
	s, _ := newSession(t, chainblock(m))
	require.NoError(t, s.Start(context.Background()))

	_, err := s.ExportResult()
	assert.ErrorIs(t, err, ErrNotExport)
}

func TestInfoIsASnapshot(t *testing.T) {
	m := platform(models.User{ID: "a"})
	s, _ := newSession(t, chainblock(m))
	require.NoError(t, s.Start(context.Background()))

	info := s.Info()
	info.Progress.Success[request.Block] = 99
	*info.Progress.Total = 42

	info.Request.Target.User.ScreenName = "changed"

	fresh := s.Info()
	assert.Equal(t, 1, fresh.Progress.Success[request.Block])
	assert.Equal(t, 1, *fresh.Progress.Total)
	assert.Equal(t, "target", fresh.Request.Target.User.ScreenName)
	assert.Equal(t, "target", s.Request().Target.User.ScreenName)
}

func TestNewRejectsInvalidRequests(t *testing.T) {
	m := platform()
	req := chainblock(m)
	req.Purpose.Verified = request.UnFollow
	_, err := New("x", req, Config{Logger: logger.NewNopLogger()})
	assert.Error(t, err)

	req = chainblock(m)
	_, err = New("x", req, Config{
		Logger:   logger.NewNopLogger(),
		Validate: func(request.Request) error { return errors.New("nope") },
	})
	assert.EqualError(t, err, "nope")
}

func TestMultiSinkDeliversInOrder(t *testing.T) {
	var got []string
	first := SinkFunc(func(e Event) { got = append(got, "first:"+string(e.Kind)) })
	second := SinkFunc(func(e Event) { got = append(got, "second:"+string(e.Kind)) })

	MultiSink{first, nil, second}.HandleEvent(Event{Kind: EventStarted})

	assert.Equal(t, []string{"first:started", "second:started"}, got)
}
