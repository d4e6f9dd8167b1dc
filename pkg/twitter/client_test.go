package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"chainblock/pkg/config"
	errs "chainblock/pkg/errors"
	"chainblock/pkg/logger"
	"chainblock/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig().Twitter
	cfg.BaseURL = server.URL
	cfg.RequestsPerMinute = 60000
	cfg.MaxRetries = 2
	c := NewHTTPClient(cfg, Credentials{AuthToken: "auth", CSRFToken: "csrf"}, logger.NewNopLogger())
	c.retry.Backoff = nil
	return c
}

func TestListRelations(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/followers/list.json", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("user_id"))
		assert.Equal(t, "csrf", r.Header.Get("X-Csrf-Token"))
		fmt.Fprint(w, `{"users":[
			{"id_str":"1","screen_name":"one","following":true,"status":{"created_at":"Mon Jan 02 15:04:05 +0000 2023"}},
			{"id_str":"2","screen_name":"two","blocking":true}
		],"next_cursor_str":"1234"}`)
	})

	page, err := c.ListRelations(context.Background(), models.RelationFollowers, "42", "")
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.True(t, page.Users[0].Following)
	assert.Equal(t, 2023, page.Users[0].LastActivity.Year())
	assert.True(t, page.Users[1].Blocking)
	assert.Equal(t, "1234", page.NextCursor)
	assert.True(t, page.HasNext())
}

func TestRateLimitResponse(t *testing.T) {
	reset := time.Now().Add(10 * time.Minute).Unix()
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("x-rate-limit-limit", "15")
		w.Header().Set("x-rate-limit-remaining", "0")
		w.Header().Set("x-rate-limit-reset", fmt.Sprint(reset))
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`)
	})

	_, err := c.ListRelationIDs(context.Background(), models.RelationFriends, "42", "")
	require.Error(t, err)
	assert.True(t, errs.IsRateLimit(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "rate limits are not retried by the transport")

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, EndpointFriendsIDs, apiErr.Endpoint)
	require.NotNil(t, apiErr.RateLimit)
	assert.Equal(t, reset, apiErr.RateLimit.Reset.Unix())
}

func TestThrottleErrorCodeWithoutStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"errors":[{"code":161,"message":"You are unable to follow more people at this time."}]}`)
	})

	err := c.BlockUser(context.Background(), "1")
	assert.True(t, errs.IsRateLimit(err))
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"id_str":"7","screen_name":"me"}`)
	})

	me, err := c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "7", me.ID)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"errors":[{"code":50,"message":"User not found."}]}`)
	})

	_, err := c.GetUserByName(context.Background(), "@ghost")
	assert.True(t, errs.IsNotFound(err))
}

func TestLookupUsesCacheAndMutationsInvalidate(t *testing.T) {
	var lookups int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/lookup.json":
			atomic.AddInt32(&lookups, 1)
			assert.NoError(t, r.ParseForm())
			var parts []string
			for _, id := range strings.Split(r.PostForm.Get("user_id"), ",") {
				if id == "404" {
					continue
				}
				parts = append(parts, fmt.Sprintf(`{"id_str":%q,"screen_name":"u%s"}`, id, id))
			}
			fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
		case "/blocks/create.json":
			fmt.Fprint(w, `{}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	users, err := c.LookupUsersByIDs(ctx, []string{"1", "2", "404"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = c.LookupUsersByIDs(ctx, []string{"2", "1"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "2", users[0].ID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&lookups))

	require.NoError(t, c.BlockUser(ctx, "1"))
	_, err = c.LookupUsersByIDs(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&lookups))

	_, err = c.LookupUsersByIDs(ctx, make([]string, MaxLookupBatch+1))
	assert.Error(t, err)
}

func TestSearchCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "from:someone", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"statuses":[{"id_str":"9","full_text":"hi @a","user":{"id_str":"5"},
			"entities":{"user_mentions":[{"id_str":"6"}]}}],
			"search_metadata":{"next_results":"?max_id=8&q=from%3Asomeone"}}`)
	})

	page, err := c.SearchTweets(context.Background(), "from:someone", "")
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)
	assert.Equal(t, "5", page.Tweets[0].User.ID)
	assert.Equal(t, []string{"6"}, page.Tweets[0].MentionedUserIDs)
	assert.Equal(t, "8", page.NextCursor)
}

func TestRateLimitStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"resources":{"followers":{"/followers/list":{"limit":15,"remaining":3,"reset":1700000000}}}}`)
	})

	status, err := c.RateLimitStatus(context.Background())
	require.NoError(t, err)
	w := status[EndpointFollowersList]
	assert.Equal(t, 15, w.Limit)
	assert.Equal(t, 3, w.Remaining)
	assert.Equal(t, int64(1700000000), w.Reset.Unix())
}
