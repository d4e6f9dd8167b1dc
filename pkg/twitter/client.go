package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chainblock/pkg/config"
	errs "chainblock/pkg/errors"
	"chainblock/pkg/logger"
	"chainblock/pkg/models"
	"chainblock/pkg/retry"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Credentials authenticate one account against the web API
type Credentials struct {
	BearerToken string
	AuthToken   string
	CSRFToken   string
	UserAgent   string
}

// HTTPClient implements Client over the platform's REST API
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	pacer      *rate.Limiter
	users      *expirable.LRU[string, models.User]
	retry      *retry.Config
	logger     logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for one account
func NewHTTPClient(cfg config.TwitterConfig, creds Credentials, log logger.Logger) *HTTPClient {
	if log == nil {
		log = logger.GetLogger()
	}

	userAgent := creds.UserAgent
	if userAgent == "" {
		userAgent = cfg.UserAgent
	}
	headers := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "application/json",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if creds.BearerToken != "" {
		headers["Authorization"] = "Bearer " + creds.BearerToken
	} else if cfg.BearerToken != "" {
		headers["Authorization"] = "Bearer " + cfg.BearerToken
	}
	if creds.CSRFToken != "" {
		headers["X-Csrf-Token"] = creds.CSRFToken
		headers["Cookie"] = fmt.Sprintf("auth_token=%s; ct0=%s", creds.AuthToken, creds.CSRFToken)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 180
	}
	cacheSize := cfg.UserCacheSize
	if cacheSize <= 0 {
		cacheSize = 10000
	}

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.MaxRetries + 1
	retryCfg.Logger = log

	return &HTTPClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    headers,
		pacer:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 10),
		users:      expirable.NewLRU[string, models.User](cacheSize, nil, cfg.UserCacheTTL),
		retry:      retryCfg,
		logger:     log,
	}
}

// do performs one paced request and decodes the JSON response into out.
// endpoint is the rate limit key used in errors.
func (c *HTTPClient) do(ctx context.Context, method, endpoint, path string, params url.Values, out interface{}) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}
		return c.doOnce(ctx, method, endpoint, path, params, out)
	})
}

func (c *HTTPClient) doOnce(ctx context.Context, method, endpoint, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"endpoint": endpoint,
			"error":    err.Error(),
			"duration": duration,
		})
		return &errs.Error{Type: errs.ErrorTypeNetwork, Message: fmt.Sprintf("network error: %v", err), Endpoint: endpoint}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   method,
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{Type: errs.ErrorTypeNetwork, Code: resp.StatusCode, Message: fmt.Sprintf("failed to read response body: %v", err), Endpoint: endpoint}
	}

	if err := c.checkResponse(resp, data, endpoint); err != nil {
		return err
	}
	if out == nil {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"endpoint":     endpoint,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return &errs.Error{Type: errs.ErrorTypeParsing, Code: resp.StatusCode, Message: fmt.Sprintf("failed to parse JSON: %v", err), Endpoint: endpoint}
	}
	return nil
}

// checkResponse maps a non-2xx response to a typed error
func (c *HTTPClient) checkResponse(resp *http.Response, data []byte, endpoint string) error {
	var body apiErrorBody
	_ = json.Unmarshal(data, &body)

	throttled := resp.StatusCode == http.StatusTooManyRequests
	message := http.StatusText(resp.StatusCode)
	for _, e := range body.Errors {
		if e.Code == codeRateLimitExceeded || e.Code == codeTooManyActions {
			throttled = true
		}
		if e.Message != "" {
			message = e.Message
		}
	}

	if throttled {
		info := rateLimitFromHeaders(resp.Header)
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		})
		return errs.NewRateLimit(endpoint, info)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	errType := errs.FromStatusCode(resp.StatusCode)
	c.logger.WarnWithFields("API error", map[string]interface{}{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"type":     string(errType),
		"message":  message,
	})
	return &errs.Error{Type: errType, Code: resp.StatusCode, Message: message, Endpoint: endpoint}
}

func rateLimitFromHeaders(h http.Header) *errs.RateLimitInfo {
	if h.Get("x-rate-limit-reset") == "" {
		return nil
	}
	info := &errs.RateLimitInfo{}
	if n, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		info.Reset = time.Unix(n, 0)
	}
	if n, err := strconv.Atoi(h.Get("x-rate-limit-limit")); err == nil {
		info.Limit = n
	}
	if n, err := strconv.Atoi(h.Get("x-rate-limit-remaining")); err == nil {
		info.Remaining = n
	}
	return info
}

func (c *HTTPClient) VerifyCredentials(ctx context.Context) (*models.User, error) {
	var u apiUser
	if err := c.do(ctx, http.MethodGet, EndpointVerify, EndpointVerify+".json", url.Values{"skip_status": {"true"}}, &u); err != nil {
		return nil, err
	}
	user := u.toModel()
	return &user, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return c.showUser(ctx, url.Values{"user_id": {userID}})
}

func (c *HTTPClient) GetUserByName(ctx context.Context, screenName string) (*models.User, error) {
	return c.showUser(ctx, url.Values{"screen_name": {strings.TrimPrefix(screenName, "@")}})
}

func (c *HTTPClient) showUser(ctx context.Context, params url.Values) (*models.User, error) {
	var u apiUser
	if err := c.do(ctx, http.MethodGet, EndpointUsersShow, EndpointUsersShow+".json", params, &u); err != nil {
		return nil, err
	}
	user := u.toModel()
	c.users.Add(user.ID, user)
	return &user, nil
}

func (c *HTTPClient) ListRelations(ctx context.Context, rel models.Relation, userID, cursor string) (*models.UserPage, error) {
	params := url.Values{
		"user_id":               {userID},
		"count":                 {strconv.Itoa(UserListPageSize)},
		"include_user_entities": {"false"},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var list apiUserList
	if err := c.do(ctx, http.MethodGet, RelationEndpoint(rel, false), relationPath(rel, false), params, &list); err != nil {
		return nil, err
	}
	return &models.UserPage{Users: usersToModels(list.Users), NextCursor: list.NextCursorStr}, nil
}

func (c *HTTPClient) ListRelationIDs(ctx context.Context, rel models.Relation, userID, cursor string) (*models.IDPage, error) {
	params := url.Values{
		"user_id":       {userID},
		"count":         {strconv.Itoa(IDListPageSize)},
		"stringify_ids": {"true"},
	}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var list apiIDList
	if err := c.do(ctx, http.MethodGet, RelationEndpoint(rel, true), relationPath(rel, true), params, &list); err != nil {
		return nil, err
	}
	return &models.IDPage{IDs: list.IDs, NextCursor: list.NextCursorStr}, nil
}

// LookupUsersByIDs hydrates up to MaxLookupBatch IDs, serving cached users
// where possible. IDs the platform does not return are omitted.
func (c *HTTPClient) LookupUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) > MaxLookupBatch {
		return nil, fmt.Errorf("lookup batch of %d exceeds %d", len(ids), MaxLookupBatch)
	}

	found := make(map[string]models.User, len(ids))
	var missing []string
	for _, id := range ids {
		if u, ok := c.users.Get(id); ok {
			found[id] = u
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		var list []apiUser
		params := url.Values{"user_id": {strings.Join(missing, ",")}}
		if err := c.do(ctx, http.MethodPost, EndpointUsersLookup, EndpointUsersLookup+".json", params, &list); err != nil && !errs.IsNotFound(err) {
			return nil, err
		}
		for _, u := range list {
			user := u.toModel()
			c.users.Add(user.ID, user)
			found[user.ID] = user
		}
	}

	out := make([]models.User, 0, len(found))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *HTTPClient) LookupUsersByNames(ctx context.Context, names []string) ([]models.User, error) {
	if len(names) > MaxLookupBatch {
		return nil, fmt.Errorf("lookup batch of %d exceeds %d", len(names), MaxLookupBatch)
	}
	if len(names) == 0 {
		return nil, nil
	}

	var list []apiUser
	params := url.Values{"screen_name": {strings.Join(names, ",")}}
	if err := c.do(ctx, http.MethodPost, EndpointUsersLookup, EndpointUsersLookup+".json", params, &list); err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	users := usersToModels(list)
	for _, u := range users {
		c.users.Add(u.ID, u)
	}
	return users, nil
}

func (c *HTTPClient) SearchTweets(ctx context.Context, query, cursor string) (*models.TweetPage, error) {
	params := url.Values{
		"q":           {query},
		"count":       {strconv.Itoa(SearchPageSize)},
		"result_type": {"recent"},
		"tweet_mode":  {"extended"},
	}
	if cursor != "" {
		params.Set("max_id", cursor)
	}

	var res apiSearch
	if err := c.do(ctx, http.MethodGet, EndpointSearchTweets, EndpointSearchTweets+".json", params, &res); err != nil {
		return nil, err
	}
	page := &models.TweetPage{NextCursor: nextSearchCursor(res.SearchMetadata.NextResults)}
	for _, t := range res.Statuses {
		page.Tweets = append(page.Tweets, t.toModel())
	}
	return page, nil
}

func (c *HTTPClient) GetTweet(ctx context.Context, tweetID string) (*models.Tweet, error) {
	var t apiTweet
	params := url.Values{"id": {tweetID}, "tweet_mode": {"extended"}}
	if err := c.do(ctx, http.MethodGet, EndpointStatusesShow, EndpointStatusesShow+".json", params, &t); err != nil {
		return nil, err
	}
	tweet := t.toModel()
	return &tweet, nil
}

func (c *HTTPClient) ListReactedUsers(ctx context.Context, reaction models.Reaction, tweetID, cursor string) (*models.UserPage, error) {
	params := url.Values{"id": {tweetID}, "count": {strconv.Itoa(UserListPageSize)}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	endpoint := ReactionEndpoint(reaction)
	var list apiUserList
	if err := c.do(ctx, http.MethodGet, endpoint, endpoint+"/list.json", params, &list); err != nil {
		return nil, err
	}
	return &models.UserPage{Users: usersToModels(list.Users), NextCursor: list.NextCursorStr}, nil
}

func (c *HTTPClient) GetAudioSpace(ctx context.Context, spaceID string) (*models.AudioSpace, error) {
	var s apiAudioSpace
	if err := c.do(ctx, http.MethodGet, EndpointAudioSpace, EndpointAudioSpace+".json", url.Values{"id": {spaceID}}, &s); err != nil {
		return nil, err
	}
	return &models.AudioSpace{
		ID:          s.ID,
		Title:       s.Title,
		HostIDs:     s.HostIDs,
		SpeakerIDs:  s.SpeakerIDs,
		ListenerIDs: s.ListenerIDs,
	}, nil
}

func (c *HTTPClient) ListBlockedIDs(ctx context.Context, cursor string) (*models.IDPage, error) {
	params := url.Values{"stringify_ids": {"true"}}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var list apiIDList
	if err := c.do(ctx, http.MethodGet, EndpointBlocksIDs, EndpointBlocksIDs+".json", params, &list); err != nil {
		return nil, err
	}
	return &models.IDPage{IDs: list.IDs, NextCursor: list.NextCursorStr}, nil
}

// mutate issues a single relationship change and drops the cached snapshot
// of the user, whose flags are now stale.
func (c *HTTPClient) mutate(ctx context.Context, path, userID string) error {
	endpoint := strings.TrimSuffix(path, ".json")
	if err := c.do(ctx, http.MethodPost, endpoint, path, url.Values{"user_id": {userID}}, nil); err != nil {
		return err
	}
	c.users.Remove(userID)
	return nil
}

func (c *HTTPClient) BlockUser(ctx context.Context, userID string) error {
	return c.mutate(ctx, "/blocks/create.json", userID)
}

func (c *HTTPClient) UnblockUser(ctx context.Context, userID string) error {
	return c.mutate(ctx, "/blocks/destroy.json", userID)
}

func (c *HTTPClient) MuteUser(ctx context.Context, userID string) error {
	return c.mutate(ctx, "/mutes/users/create.json", userID)
}

func (c *HTTPClient) UnmuteUser(ctx context.Context, userID string) error {
	return c.mutate(ctx, "/mutes/users/destroy.json", userID)
}

func (c *HTTPClient) UnfollowUser(ctx context.Context, userID string) error {
	return c.mutate(ctx, "/friendships/destroy.json", userID)
}

func (c *HTTPClient) RateLimitStatus(ctx context.Context) (models.RateLimitStatus, error) {
	var s apiRateLimitStatus
	if err := c.do(ctx, http.MethodGet, EndpointRateLimit, EndpointRateLimit+".json", nil, &s); err != nil {
		return nil, err
	}
	return s.toModel(), nil
}
