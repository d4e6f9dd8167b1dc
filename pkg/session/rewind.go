package session

import (
	"context"
	"fmt"

	"chainblock/pkg/request"
	"chainblock/pkg/scraper"
)

// Rewind prepares an ended session to run again. It reloads the persisted
// defaults, re-fetches the target, re-resolves the retriever when anti-block
// is enabled and re-validates the result. On success the session is back in
// Initial with its ID, progress and seen accounts kept; on failure it moves
// to Error. A stopped session whose run loop has not returned yet is still
// active.
func (s *Session) Rewind(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Active() || s.looping {
		s.mu.Unlock()
		return ErrActive
	}
	req := s.req
	s.mu.Unlock()

	next, sc, err := s.prepare(ctx, req)
	if err != nil {
		return s.fail(fmt.Errorf("rewind failed: %w", err))
	}

	var busy bool
	s.mutate(func() *Event {
		if s.status.Active() || s.looping {
			busy = true
			return nil
		}
		s.req = next
		s.scraper = sc
		s.status = StatusInitial
		s.stopFlag = false
		s.reason = ""
		s.stopCh = make(chan struct{})
		s.limit = nil
		return nil
	})
	if busy {
		return ErrActive
	}

	s.log.InfoWithFields("Session rewound", map[string]interface{}{
		"request":   next.String(),
		"retriever": next.Retriever.User.ScreenName,
	})
	return nil
}

func (s *Session) prepare(ctx context.Context, req request.Request) (request.Request, scraper.Scraper, error) {
	next := req
	if s.cfg.Defaults != nil {
		d, err := s.cfg.Defaults.LoadDefaults()
		if err != nil {
			return next, nil, fmt.Errorf("failed to load defaults: %w", err)
		}
		next.Purpose = req.Purpose.WithDefaults(d)
		next.Options = req.Options.WithDefaults(d)
	}

	if err := s.refreshTarget(ctx, &next); err != nil {
		return next, nil, err
	}

	next.Retriever = next.Executor
	if next.Options.EnableAntiBlock && next.Target.Kind == request.FollowerList {
		var alternates []request.Actor
		if s.cfg.Alternates != nil {
			alts, err := s.cfg.Alternates(ctx)
			if err != nil {
				return next, nil, fmt.Errorf("failed to list alternate accounts: %w", err)
			}
			alternates = alts
		}
		retriever, err := scraper.FindUnblockedRetriever(ctx, *next.Target.User, next.Executor, alternates)
		if err != nil {
			return next, nil, err
		}
		next.Retriever = retriever
	}

	if err := next.Purpose.Validate(); err != nil {
		return next, nil, err
	}
	if s.cfg.Validate != nil {
		if err := s.cfg.Validate(next); err != nil {
			return next, nil, err
		}
	}

	sc, err := scraper.New(next, scraper.Config{QuickModeLimit: s.cfg.QuickModeLimit})
	if err != nil {
		return next, nil, fmt.Errorf("failed to build scraper: %w", err)
	}
	// mutual-follower lists produce nothing until both edges are enumerated,
	// so a cap would cut them at an arbitrary point of the intersection
	mutual := next.Target.Kind == request.FollowerList && next.Target.List == request.MutualFollowers
	if s.cfg.RewindCap > 0 && !mutual {
		sc = scraper.Limit(sc, s.cfg.RewindCap)
	}
	return next, sc, nil
}

// refreshTarget replaces the remote objects of req's target (and the
// executor, for lockpicker) with their current state.
func (s *Session) refreshTarget(ctx context.Context, req *request.Request) error {
	client := req.Executor.Client
	t := req.Target

	switch t.Kind {
	case request.FollowerList:
		if t.User == nil {
			return fmt.Errorf("follower-list target has no user")
		}
		u, err := client.GetUser(ctx, t.User.ID)
		if err != nil {
			return fmt.Errorf("failed to refresh @%s: %w", t.User.ScreenName, err)
		}
		req.Target = t.Refreshed(u, nil, nil)
	case request.TweetReaction:
		if t.Tweet == nil {
			return fmt.Errorf("tweet-reaction target has no tweet")
		}
		tw, err := client.GetTweet(ctx, t.Tweet.ID)
		if err != nil {
			return fmt.Errorf("failed to refresh tweet %s: %w", t.Tweet.ID, err)
		}
		req.Target = t.Refreshed(nil, tw, nil)
	case request.AudioSpace:
		if t.Space == nil {
			return fmt.Errorf("audio-space target has no space")
		}
		sp, err := client.GetAudioSpace(ctx, t.Space.ID)
		if err != nil {
			return fmt.Errorf("failed to refresh audio space %s: %w", t.Space.ID, err)
		}
		req.Target = t.Refreshed(nil, nil, sp)
	case request.LockpickerSelf:
		me, err := client.VerifyCredentials(ctx)
		if err != nil {
			return fmt.Errorf("failed to refresh executor: %w", err)
		}
		req.Executor.User = *me
		req.Target = t.Refreshed(me, nil, nil)
	}
	return nil
}
