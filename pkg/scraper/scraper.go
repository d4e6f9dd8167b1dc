package scraper

import (
	"context"
	"fmt"
	"iter"
	"sync"

	errs "chainblock/pkg/errors"
	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"
)

// DefaultQuickModeLimit bounds quick-mode scrapes when no limit is configured
const DefaultQuickModeLimit = 200

// Result is one item of a scrape: either a page or a failure
type Result struct {
	Users []models.User
	// IDs carries raw account IDs for strategies that do not hydrate
	IDs []string
	// Missing lists IDs (or names) that were listed but could not be hydrated
	Missing []string
	Err     error
}

// Scraper produces a lazy, single-pass sequence of results. A rate limit
// failure is yielded as a Result; if the consumer keeps iterating, the same
// page is requested again. Any other failure is yielded once and ends the
// sequence.
type Scraper interface {
	Scrape(ctx context.Context) iter.Seq[Result]
	// TotalCount is the current estimate of accounts to be yielded, or nil
	// when it cannot be known before enumeration finishes.
	TotalCount() *int
}

// Config tunes strategy selection
type Config struct {
	QuickModeLimit int
}

// total is a nullable counter shared between a scraper and its observers
type total struct {
	mu sync.Mutex
	v  *int
}

func (t *total) set(n int) {
	t.mu.Lock()
	t.v = &n
	t.mu.Unlock()
}

func (t *total) get() *int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.v == nil {
		return nil
	}
	n := *t.v
	return &n
}

// attempt calls fetch until it succeeds. Rate limit failures are yielded and
// retried when the consumer continues; other failures are yielded once and
// stop the sequence.
func attempt[T any](ctx context.Context, yield func(Result) bool, fetch func(ctx context.Context) (T, error)) (T, bool) {
	for {
		v, err := fetch(ctx)
		if err == nil {
			return v, true
		}
		var zero T
		if ctx.Err() != nil {
			return zero, false
		}
		if !yield(Result{Err: err}) || !errs.IsRateLimit(err) {
			return zero, false
		}
	}
}

// hydrate looks ids up in batches and yields one page per batch. It returns
// false when the sequence must end.
func hydrate(ctx context.Context, client twitter.Client, ids []string, yield func(Result) bool) bool {
	for start := 0; start < len(ids); start += twitter.MaxLookupBatch {
		chunk := ids[start:min(start+twitter.MaxLookupBatch, len(ids))]

		users, ok := attempt(ctx, yield, func(ctx context.Context) ([]models.User, error) {
			return client.LookupUsersByIDs(ctx, chunk)
		})
		if !ok {
			return false
		}
		if !yield(Result{Users: users, Missing: missingIDs(chunk, users)}) {
			return false
		}
	}
	return true
}

func missingIDs(wanted []string, got []models.User) []string {
	seen := make(map[string]bool, len(got))
	for _, u := range got {
		seen[u.ID] = true
	}
	var missing []string
	for _, id := range wanted {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func userIDs(users []models.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}

// New selects the strategy for req
func New(req request.Request, cfg Config) (Scraper, error) {
	quickLimit := cfg.QuickModeLimit
	if quickLimit <= 0 {
		quickLimit = DefaultQuickModeLimit
	}

	retriever := req.Retriever.Client
	executor := req.Executor.Client
	if executor == nil {
		return nil, fmt.Errorf("request has no executor client")
	}
	if retriever == nil {
		retriever = executor
	}
	separate := req.Retriever.User.ID != "" && req.Retriever.User.ID != req.Executor.User.ID

	var s Scraper
	t := req.Target
	switch t.Kind {
	case request.FollowerList:
		if t.User == nil {
			return nil, fmt.Errorf("follower-list target has no user")
		}
		switch {
		case t.List == request.MutualFollowers:
			s = NewMutualScraper(retriever, executor, *t.User)
		case separate:
			s = NewAntiBlockScraper(retriever, executor, *t.User, relationOf(t.List))
		default:
			s = NewRelationScraper(executor, *t.User, relationOf(t.List))
		}
		if req.Options.QuickMode && t.List != request.MutualFollowers {
			s = Limit(s, quickLimit)
		}
	case request.LockpickerSelf:
		s = NewRelationScraper(executor, req.Executor.User, models.RelationFollowers)
	case request.TweetReaction:
		if t.Tweet == nil {
			return nil, fmt.Errorf("tweet-reaction target has no tweet")
		}
		s = NewTweetReactionScraper(retriever, executor, *t.Tweet, t.Reactions)
	case request.ImportedIDList:
		s = NewLookupScraper(executor, t.UserIDs, t.ScreenNames)
	case request.SearchQuery:
		s = NewSearchScraper(retriever, executor, t.Query)
	case request.AudioSpace:
		if t.Space == nil {
			return nil, fmt.Errorf("audio-space target has no space")
		}
		s = NewAudioSpaceScraper(executor, *t.Space, t.Participants)
	case request.ExportMyBlocklist:
		return NewBlocklistScraper(executor), nil
	default:
		return nil, fmt.Errorf("unknown target kind %q", t.Kind)
	}

	switch req.Purpose.IncludeUsersInBio {
	case request.BioAll, request.BioSmart:
		s = NewBioExpander(s, executor, req.Purpose.IncludeUsersInBio)
	}
	return s, nil
}

func relationOf(k request.FollowKind) models.Relation {
	if k == request.Friends {
		return models.RelationFriends
	}
	return models.RelationFollowers
}

// limited caps the number of accounts yielded by an inner scraper
type limited struct {
	inner Scraper
	n     int
}

// Limit wraps s so that at most n accounts (users or raw IDs) are yielded
func Limit(s Scraper, n int) Scraper {
	return &limited{inner: s, n: n}
}

func (l *limited) TotalCount() *int {
	t := l.inner.TotalCount()
	if t == nil {
		return nil
	}
	n := min(*t, l.n)
	return &n
}

func (l *limited) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		left := l.n
		if left <= 0 {
			return
		}
		for r := range l.inner.Scrape(ctx) {
			if r.Err == nil {
				if len(r.Users) > left {
					r.Users = r.Users[:left]
				}
				left -= len(r.Users)
				if len(r.IDs) > left {
					r.IDs = r.IDs[:left]
				}
				left -= len(r.IDs)
			}
			if !yield(r) || left <= 0 {
				return
			}
		}
	}
}
