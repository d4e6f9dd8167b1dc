package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"
)

// ErrNoUnblockedRetriever is returned when every account is blocked by the target
var ErrNoUnblockedRetriever = errors.New("no authenticated account can view the target")

// RelationScraper pages through hydrated users on one relationship edge
type RelationScraper struct {
	client twitter.Client
	user   models.User
	rel    models.Relation
	total  total
}

func NewRelationScraper(client twitter.Client, user models.User, rel models.Relation) *RelationScraper {
	s := &RelationScraper{client: client, user: user, rel: rel}
	s.total.set(edgeCount(user, rel))
	return s
}

func edgeCount(user models.User, rel models.Relation) int {
	if rel == models.RelationFriends {
		return user.FriendsCount
	}
	return user.FollowersCount
}

func (s *RelationScraper) TotalCount() *int { return s.total.get() }

func (s *RelationScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		cursor := "-1"
		for {
			page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.UserPage, error) {
				return s.client.ListRelations(ctx, s.rel, s.user.ID, cursor)
			})
			if !ok || !yield(Result{Users: page.Users}) || !page.HasNext() {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// AntiBlockScraper lists IDs through a retriever that can see the target and
// hydrates them through the executor, so relationship flags stay relative to
// the account that will act on them.
type AntiBlockScraper struct {
	lister   twitter.Client
	hydrator twitter.Client
	user     models.User
	rel      models.Relation
	total    total
}

func NewAntiBlockScraper(lister, hydrator twitter.Client, user models.User, rel models.Relation) *AntiBlockScraper {
	s := &AntiBlockScraper{lister: lister, hydrator: hydrator, user: user, rel: rel}
	s.total.set(edgeCount(user, rel))
	return s
}

func (s *AntiBlockScraper) TotalCount() *int { return s.total.get() }

func (s *AntiBlockScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		cursor := "-1"
		for {
			page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.IDPage, error) {
				return s.lister.ListRelationIDs(ctx, s.rel, s.user.ID, cursor)
			})
			if !ok || !hydrate(ctx, s.hydrator, page.IDs, yield) || !page.HasNext() {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// MutualScraper yields accounts that are both followers and followings of a
// user. Both edges are enumerated in full before anything is yielded, and the
// total stays unknown until then.
type MutualScraper struct {
	lister   twitter.Client
	hydrator twitter.Client
	user     models.User
	total    total
}

func NewMutualScraper(lister, hydrator twitter.Client, user models.User) *MutualScraper {
	return &MutualScraper{lister: lister, hydrator: hydrator, user: user}
}

func (s *MutualScraper) TotalCount() *int { return s.total.get() }

func (s *MutualScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		followers, ok := s.allIDs(ctx, models.RelationFollowers, yield)
		if !ok {
			return
		}
		friends, ok := s.allIDs(ctx, models.RelationFriends, yield)
		if !ok {
			return
		}

		isFriend := make(map[string]bool, len(friends))
		for _, id := range friends {
			isFriend[id] = true
		}
		var mutual []string
		for _, id := range followers {
			if isFriend[id] {
				mutual = append(mutual, id)
			}
		}
		s.total.set(len(mutual))

		hydrate(ctx, s.hydrator, mutual, yield)
	}
}

func (s *MutualScraper) allIDs(ctx context.Context, rel models.Relation, yield func(Result) bool) ([]string, bool) {
	var ids []string
	cursor := "-1"
	for {
		page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.IDPage, error) {
			return s.lister.ListRelationIDs(ctx, rel, s.user.ID, cursor)
		})
		if !ok {
			return nil, false
		}
		ids = append(ids, page.IDs...)
		if !page.HasNext() {
			return ids, true
		}
		cursor = page.NextCursor
	}
}

// FindUnblockedRetriever returns an actor able to read target. The executor is
// preferred; when the target blocks it, alternates are tried in order.
func FindUnblockedRetriever(ctx context.Context, target models.User, executor request.Actor, alternates []request.Actor) (request.Actor, error) {
	if !target.BlockedBy {
		return executor, nil
	}

	for _, alt := range alternates {
		if alt.Client == nil || alt.User.ID == executor.User.ID {
			continue
		}
		seen, err := alt.Client.GetUser(ctx, target.ID)
		if err != nil {
			if ctx.Err() != nil {
				return request.Actor{}, ctx.Err()
			}
			continue
		}
		if !seen.BlockedBy {
			return alt, nil
		}
	}
	return request.Actor{}, fmt.Errorf("@%s: %w", target.ScreenName, ErrNoUnblockedRetriever)
}
