package twitter

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	errs "chainblock/pkg/errors"
	"chainblock/pkg/models"
)

// MockAction records one mutating call made against a MockClient
type MockAction struct {
	Kind   string
	UserID string
}

// MockClient is an in-memory platform seen from one account. It is used by
// tests and by `run --dry-run`. User flags are relative to Self and are
// updated by mutating calls.
type MockClient struct {
	mu sync.Mutex

	self  models.User
	users map[string]models.User
	order []string

	followers map[string][]string
	friends   map[string][]string
	tweets    map[string]models.Tweet
	reactions map[string]map[models.Reaction][]string
	searches  map[string][]models.Tweet
	spaces    map[string]models.AudioSpace

	rateLimits   map[string]int
	failures     map[string]error
	actionErrors map[string]error
	calls        map[string]int
	actions      []MockAction

	// PageSize bounds every listing page
	PageSize int
	// Latency is added to every call
	Latency time.Duration
	// Reset is reported as the reset time of throttled endpoints
	Reset time.Time
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates an empty platform authenticated as self
func NewMockClient(self models.User) *MockClient {
	return &MockClient{
		self:         self,
		users:        make(map[string]models.User),
		followers:    make(map[string][]string),
		friends:      make(map[string][]string),
		tweets:       make(map[string]models.Tweet),
		reactions:    make(map[string]map[models.Reaction][]string),
		searches:     make(map[string][]models.Tweet),
		spaces:       make(map[string]models.AudioSpace),
		rateLimits:   make(map[string]int),
		failures:     make(map[string]error),
		actionErrors: make(map[string]error),
		calls:        make(map[string]int),
		PageSize:     100,
		Reset:        time.Now().Add(15 * time.Minute),
	}
}

// AddUser registers users, replacing existing snapshots
func (m *MockClient) AddUser(users ...models.User) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		if _, ok := m.users[u.ID]; !ok {
			m.order = append(m.order, u.ID)
		}
		m.users[u.ID] = u
	}
	return m
}

// SetFollowers sets the follower list of userID
func (m *MockClient) SetFollowers(userID string, ids ...string) *MockClient {
	m.mu.Lock()
	m.followers[userID] = ids
	m.mu.Unlock()
	return m
}

// SetFriends sets the following list of userID
func (m *MockClient) SetFriends(userID string, ids ...string) *MockClient {
	m.mu.Lock()
	m.friends[userID] = ids
	m.mu.Unlock()
	return m
}

// AddTweet registers a tweet with its retweeters and likers
func (m *MockClient) AddTweet(t models.Tweet, retweeters, likers []string) *MockClient {
	m.mu.Lock()
	m.tweets[t.ID] = t
	m.reactions[t.ID] = map[models.Reaction][]string{
		models.ReactionRetweeted: retweeters,
		models.ReactionLiked:     likers,
	}
	m.mu.Unlock()
	return m
}

// AddSearch registers the results returned for query
func (m *MockClient) AddSearch(query string, tweets ...models.Tweet) *MockClient {
	m.mu.Lock()
	m.searches[query] = tweets
	m.mu.Unlock()
	return m
}

// AddSpace registers an audio space
func (m *MockClient) AddSpace(s models.AudioSpace) *MockClient {
	m.mu.Lock()
	m.spaces[s.ID] = s
	m.mu.Unlock()
	return m
}

// FailWithRateLimit makes the next n calls to endpoint fail with a rate limit
func (m *MockClient) FailWithRateLimit(endpoint string, n int) *MockClient {
	m.mu.Lock()
	m.rateLimits[endpoint] = n
	m.mu.Unlock()
	return m
}

// FailWith makes every call to endpoint fail with err until cleared with nil
func (m *MockClient) FailWith(endpoint string, err error) *MockClient {
	m.mu.Lock()
	if err == nil {
		delete(m.failures, endpoint)
	} else {
		m.failures[endpoint] = err
	}
	m.mu.Unlock()
	return m
}

// FailAction makes every mutating call against userID fail with err
func (m *MockClient) FailAction(userID string, err error) *MockClient {
	m.mu.Lock()
	m.actionErrors[userID] = err
	m.mu.Unlock()
	return m
}

// Actions returns the mutating calls made so far, in order
func (m *MockClient) Actions() []MockAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.actions)
}

// Calls returns how many times endpoint was called
func (m *MockClient) Calls(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

// User returns the current snapshot of userID
func (m *MockClient) User(userID string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	return u, ok
}

// enter simulates latency and injected failures. It returns with m.mu held
// when err is nil.
func (m *MockClient) enter(ctx context.Context, endpoint string) error {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.calls[endpoint]++
	if n := m.rateLimits[endpoint]; n > 0 {
		m.rateLimits[endpoint] = n - 1
		reset := m.Reset
		m.mu.Unlock()
		return errs.NewRateLimit(endpoint, &errs.RateLimitInfo{Limit: 15, Remaining: 0, Reset: reset})
	}
	if err := m.failures[endpoint]; err != nil {
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockClient) page(ids []string, cursor string) ([]string, string, error) {
	start := 0
	if cursor != "" && cursor != "-1" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(ids) {
			return nil, "", errs.New(errs.ErrorTypeParsing, 400, fmt.Sprintf("bad cursor %q", cursor))
		}
		start = n
	}
	size := m.PageSize
	if size <= 0 {
		size = len(ids)
	}
	end := min(start+size, len(ids))
	next := "0"
	if end < len(ids) {
		next = strconv.Itoa(end)
	}
	return slices.Clone(ids[start:end]), next, nil
}

func (m *MockClient) hydrate(ids []string) []models.User {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (m *MockClient) edge(rel models.Relation, userID string) ([]string, error) {
	if u, ok := m.users[userID]; ok && u.BlockedBy {
		return nil, errs.New(errs.ErrorTypeForbidden, 403, "you have been blocked from viewing this account")
	}
	if userID == m.self.ID {
		return m.selfEdge(rel), nil
	}
	if rel == models.RelationFollowers {
		return m.followers[userID], nil
	}
	return m.friends[userID], nil
}

// selfEdge derives Self's own lists from the relationship flags when no list
// was registered explicitly.
func (m *MockClient) selfEdge(rel models.Relation) []string {
	if rel == models.RelationFollowers {
		if ids, ok := m.followers[m.self.ID]; ok {
			return ids
		}
	} else if ids, ok := m.friends[m.self.ID]; ok {
		return ids
	}
	var ids []string
	for _, id := range m.order {
		u := m.users[id]
		if (rel == models.RelationFollowers && u.FollowedBy) || (rel == models.RelationFriends && u.Following) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *MockClient) VerifyCredentials(ctx context.Context) (*models.User, error) {
	if err := m.enter(ctx, EndpointVerify); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	self := m.self
	return &self, nil
}

func (m *MockClient) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := m.enter(ctx, EndpointUsersShow); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, "user not found")
	}
	return &u, nil
}

func (m *MockClient) GetUserByName(ctx context.Context, screenName string) (*models.User, error) {
	if err := m.enter(ctx, EndpointUsersShow); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	name := strings.ToLower(strings.TrimPrefix(screenName, "@"))
	for _, id := range m.order {
		if u := m.users[id]; strings.ToLower(u.ScreenName) == name {
			return &u, nil
		}
	}
	return nil, errs.New(errs.ErrorTypeNotFound, 404, "user not found")
}

func (m *MockClient) ListRelations(ctx context.Context, rel models.Relation, userID, cursor string) (*models.UserPage, error) {
	if err := m.enter(ctx, RelationEndpoint(rel, false)); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	all, err := m.edge(rel, userID)
	if err != nil {
		return nil, err
	}
	ids, next, err := m.page(all, cursor)
	if err != nil {
		return nil, err
	}
	return &models.UserPage{Users: m.hydrate(ids), NextCursor: next}, nil
}

func (m *MockClient) ListRelationIDs(ctx context.Context, rel models.Relation, userID, cursor string) (*models.IDPage, error) {
	if err := m.enter(ctx, RelationEndpoint(rel, true)); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	all, err := m.edge(rel, userID)
	if err != nil {
		return nil, err
	}
	ids, next, err := m.page(all, cursor)
	if err != nil {
		return nil, err
	}
	return &models.IDPage{IDs: ids, NextCursor: next}, nil
}

func (m *MockClient) LookupUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) > MaxLookupBatch {
		return nil, fmt.Errorf("lookup batch of %d exceeds %d", len(ids), MaxLookupBatch)
	}
	if err := m.enter(ctx, EndpointUsersLookup); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	return m.hydrate(ids), nil
}

func (m *MockClient) LookupUsersByNames(ctx context.Context, names []string) ([]models.User, error) {
	if len(names) > MaxLookupBatch {
		return nil, fmt.Errorf("lookup batch of %d exceeds %d", len(names), MaxLookupBatch)
	}
	if err := m.enter(ctx, EndpointUsersLookup); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimPrefix(n, "@"))] = true
	}
	var out []models.User
	for _, id := range m.order {
		if u := m.users[id]; wanted[strings.ToLower(u.ScreenName)] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MockClient) SearchTweets(ctx context.Context, query, cursor string) (*models.TweetPage, error) {
	if err := m.enter(ctx, EndpointSearchTweets); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	tweets := m.searches[query]
	idx := make([]string, len(tweets))
	for i := range tweets {
		idx[i] = strconv.Itoa(i)
	}
	page, next, err := m.page(idx, cursor)
	if err != nil {
		return nil, err
	}
	out := &models.TweetPage{NextCursor: next}
	for _, s := range page {
		i, _ := strconv.Atoi(s)
		out.Tweets = append(out.Tweets, tweets[i])
	}
	return out, nil
}

func (m *MockClient) GetTweet(ctx context.Context, tweetID string) (*models.Tweet, error) {
	if err := m.enter(ctx, EndpointStatusesShow); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	t, ok := m.tweets[tweetID]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, "tweet not found")
	}
	return &t, nil
}

func (m *MockClient) ListReactedUsers(ctx context.Context, reaction models.Reaction, tweetID, cursor string) (*models.UserPage, error) {
	if err := m.enter(ctx, ReactionEndpoint(reaction)); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	ids, next, err := m.page(m.reactions[tweetID][reaction], cursor)
	if err != nil {
		return nil, err
	}
	return &models.UserPage{Users: m.hydrate(ids), NextCursor: next}, nil
}

func (m *MockClient) GetAudioSpace(ctx context.Context, spaceID string) (*models.AudioSpace, error) {
	if err := m.enter(ctx, EndpointAudioSpace); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	s, ok := m.spaces[spaceID]
	if !ok {
		return nil, errs.New(errs.ErrorTypeNotFound, 404, "space not found")
	}
	return &s, nil
}

func (m *MockClient) ListBlockedIDs(ctx context.Context, cursor string) (*models.IDPage, error) {
	if err := m.enter(ctx, EndpointBlocksIDs); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var blocked []string
	for _, id := range m.order {
		if m.users[id].Blocking {
			blocked = append(blocked, id)
		}
	}
	ids, next, err := m.page(blocked, cursor)
	if err != nil {
		return nil, err
	}
	return &models.IDPage{IDs: ids, NextCursor: next}, nil
}

func (m *MockClient) mutate(ctx context.Context, kind, userID string, apply func(u *models.User)) error {
	if err := m.enter(ctx, kind); err != nil {
		return err
	}
	defer m.mu.Unlock()

	m.actions = append(m.actions, MockAction{Kind: kind, UserID: userID})
	if err := m.actionErrors[userID]; err != nil {
		return err
	}
	u, ok := m.users[userID]
	if !ok {
		return errs.New(errs.ErrorTypeNotFound, 404, "user not found")
	}
	apply(&u)
	m.users[userID] = u
	return nil
}

// Mutation kinds recorded in MockAction.Kind
const (
	MockBlock    = "block"
	MockUnblock  = "unblock"
	MockMute     = "mute"
	MockUnmute   = "unmute"
	MockUnfollow = "unfollow"
)

func (m *MockClient) BlockUser(ctx context.Context, userID string) error {
	return m.mutate(ctx, MockBlock, userID, func(u *models.User) {
		u.Blocking = true
		u.Following = false
		u.FollowedBy = false
	})
}

func (m *MockClient) UnblockUser(ctx context.Context, userID string) error {
	return m.mutate(ctx, MockUnblock, userID, func(u *models.User) { u.Blocking = false })
}

func (m *MockClient) MuteUser(ctx context.Context, userID string) error {
	return m.mutate(ctx, MockMute, userID, func(u *models.User) { u.Muting = true })
}

func (m *MockClient) UnmuteUser(ctx context.Context, userID string) error {
	return m.mutate(ctx, MockUnmute, userID, func(u *models.User) { u.Muting = false })
}

func (m *MockClient) UnfollowUser(ctx context.Context, userID string) error {
	return m.mutate(ctx, MockUnfollow, userID, func(u *models.User) { u.Following = false })
}

func (m *MockClient) RateLimitStatus(ctx context.Context) (models.RateLimitStatus, error) {
	if err := m.enter(ctx, EndpointRateLimit); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	status := make(models.RateLimitStatus)
	for _, endpoint := range []string{
		EndpointFollowersList, EndpointFriendsList, EndpointFollowersIDs, EndpointFriendsIDs,
		EndpointUsersLookup, EndpointSearchTweets, EndpointRetweeters, EndpointLikers, EndpointBlocksIDs,
	} {
		remaining := 15
		if m.rateLimits[endpoint] > 0 {
			remaining = 0
		}
		status[endpoint] = models.RateLimitWindow{Limit: 15, Remaining: remaining, Reset: m.Reset}
	}
	return status, nil
}
