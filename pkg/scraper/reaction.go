package scraper

import (
	"context"
	"iter"
	"regexp"
	"slices"
	"strings"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
	"chainblock/pkg/twitter"
)

var mentionPattern = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@([A-Za-z0-9_]{1,15})`)

// extractMentions returns the unique @names in text, in order of appearance
func extractMentions(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		key := strings.ToLower(m[1])
		if !seen[key] {
			seen[key] = true
			names = append(names, m[1])
		}
	}
	return names
}

// TweetReactionScraper yields the accounts that reacted to a tweet in the
// selected ways. Lists are read through reader; when hydrator is a different
// account the users are re-hydrated so their flags are relative to it.
type TweetReactionScraper struct {
	reader    twitter.Client
	hydrator  twitter.Client
	tweet     models.Tweet
	selection request.ReactionSelection
	total     total
}

func NewTweetReactionScraper(reader, hydrator twitter.Client, tweet models.Tweet, selection request.ReactionSelection) *TweetReactionScraper {
	s := &TweetReactionScraper{reader: reader, hydrator: hydrator, tweet: tweet, selection: selection}

	estimate := 0
	if selection.Retweeters {
		estimate += tweet.RetweetCount
	}
	if selection.Likers {
		estimate += tweet.FavoriteCount
	}
	if selection.QuotedUsers {
		estimate += tweet.QuoteCount
	}
	if selection.MentionedUsers {
		estimate += len(tweet.MentionedUserIDs)
	}
	if selection.NonLinkedMentions {
		estimate += len(extractMentions(tweet.Text))
	}
	s.total.set(estimate)
	return s
}

func (s *TweetReactionScraper) TotalCount() *int { return s.total.get() }

func (s *TweetReactionScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if s.selection.Retweeters && !s.reacted(ctx, models.ReactionRetweeted, yield) {
			return
		}
		if s.selection.Likers && !s.reacted(ctx, models.ReactionLiked, yield) {
			return
		}
		if s.selection.MentionedUsers && !hydrate(ctx, s.hydrator, s.tweet.MentionedUserIDs, yield) {
			return
		}
		if s.selection.QuotedUsers && !s.quoted(ctx, yield) {
			return
		}
		if s.selection.NonLinkedMentions {
			s.nonLinked(ctx, yield)
		}
	}
}

// emit yields users, re-hydrating them through the executor if needed
func (s *TweetReactionScraper) emit(ctx context.Context, users []models.User, yield func(Result) bool) bool {
	if s.hydrator == nil || s.hydrator == s.reader {
		return yield(Result{Users: users})
	}
	return hydrate(ctx, s.hydrator, userIDs(users), yield)
}

func (s *TweetReactionScraper) reacted(ctx context.Context, reaction models.Reaction, yield func(Result) bool) bool {
	cursor := ""
	for {
		page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.UserPage, error) {
			return s.reader.ListReactedUsers(ctx, reaction, s.tweet.ID, cursor)
		})
		if !ok || !s.emit(ctx, page.Users, yield) {
			return false
		}
		if !page.HasNext() {
			return true
		}
		cursor = page.NextCursor
	}
}

// quoted pages through tweets quoting this one and yields their authors
func (s *TweetReactionScraper) quoted(ctx context.Context, yield func(Result) bool) bool {
	query := "quoted_tweet_id:" + s.tweet.ID
	cursor := ""
	for {
		page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.TweetPage, error) {
			return s.reader.SearchTweets(ctx, query, cursor)
		})
		if !ok || !s.emit(ctx, authors(page.Tweets), yield) {
			return false
		}
		if !page.HasNext() {
			return true
		}
		cursor = page.NextCursor
	}
}

// nonLinked resolves @names in the text that the platform did not link
func (s *TweetReactionScraper) nonLinked(ctx context.Context, yield func(Result) bool) bool {
	names := extractMentions(s.tweet.Text)
	if len(names) == 0 {
		return true
	}
	users, ok := lookupNames(ctx, s.hydrator, names, yield)
	if !ok {
		return false
	}
	missing := missingNames(names, users)
	users = slices.DeleteFunc(users, func(u models.User) bool {
		return slices.Contains(s.tweet.MentionedUserIDs, u.ID)
	})
	return yield(Result{Users: users, Missing: missing})
}

// lookupNames resolves screen names in batches
func lookupNames(ctx context.Context, client twitter.Client, names []string, yield func(Result) bool) ([]models.User, bool) {
	var out []models.User
	for start := 0; start < len(names); start += twitter.MaxLookupBatch {
		chunk := names[start:min(start+twitter.MaxLookupBatch, len(names))]
		users, ok := attempt(ctx, yield, func(ctx context.Context) ([]models.User, error) {
			return client.LookupUsersByNames(ctx, chunk)
		})
		if !ok {
			return nil, false
		}
		out = append(out, users...)
	}
	return out, true
}

func missingNames(wanted []string, got []models.User) []string {
	seen := make(map[string]bool, len(got))
	for _, u := range got {
		seen[strings.ToLower(u.ScreenName)] = true
	}
	var missing []string
	for _, n := range wanted {
		if !seen[strings.ToLower(strings.TrimPrefix(n, "@"))] {
			missing = append(missing, n)
		}
	}
	return missing
}

func authors(tweets []models.Tweet) []models.User {
	seen := make(map[string]bool)
	var users []models.User
	for _, t := range tweets {
		if t.User.ID == "" || seen[t.User.ID] {
			continue
		}
		seen[t.User.ID] = true
		users = append(users, t.User)
	}
	return users
}

// SearchScraper yields the authors of tweets matching a query. The number of
// results is not known in advance.
type SearchScraper struct {
	reader   twitter.Client
	hydrator twitter.Client
	query    string
}

func NewSearchScraper(reader, hydrator twitter.Client, query string) *SearchScraper {
	return &SearchScraper{reader: reader, hydrator: hydrator, query: query}
}

func (s *SearchScraper) TotalCount() *int { return nil }

func (s *SearchScraper) Scrape(ctx context.Context) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		cursor := ""
		for {
			page, ok := attempt(ctx, yield, func(ctx context.Context) (*models.TweetPage, error) {
				return s.reader.SearchTweets(ctx, s.query, cursor)
			})
			if !ok {
				return
			}

			users := authors(page.Tweets)
			if s.hydrator != nil && s.hydrator != s.reader {
				if !hydrate(ctx, s.hydrator, userIDs(users), yield) {
					return
				}
			} else if !yield(Result{Users: users}) {
				return
			}

			if !page.HasNext() {
				return
			}
			cursor = page.NextCursor
		}
	}
}
