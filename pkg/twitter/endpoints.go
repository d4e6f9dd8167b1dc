package twitter

import (
	"net/url"
	"strings"
	"time"

	"chainblock/pkg/models"
)

// Page sizes requested from the platform
const (
	UserListPageSize = 200
	IDListPageSize   = 5000
	SearchPageSize   = 100
)

// apiUser is the wire shape of a user object
type apiUser struct {
	IDStr          string `json:"id_str"`
	ScreenName     string `json:"screen_name"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Protected      bool   `json:"protected"`
	Verified       bool   `json:"verified"`
	Following      bool   `json:"following"`
	FollowedBy     bool   `json:"followed_by"`
	Blocking       bool   `json:"blocking"`
	BlockedBy      bool   `json:"blocked_by"`
	Muting         bool   `json:"muting"`
	FollowersCount int    `json:"followers_count"`
	FriendsCount   int    `json:"friends_count"`
	StatusesCount  int    `json:"statuses_count"`
	Status         *struct {
		CreatedAt string `json:"created_at"`
	} `json:"status,omitempty"`
}

func (u apiUser) toModel() models.User {
	user := models.User{
		ID:             u.IDStr,
		ScreenName:     u.ScreenName,
		Name:           u.Name,
		Description:    u.Description,
		Protected:      u.Protected,
		Verified:       u.Verified,
		Following:      u.Following,
		FollowedBy:     u.FollowedBy,
		Blocking:       u.Blocking,
		BlockedBy:      u.BlockedBy,
		Muting:         u.Muting,
		FollowersCount: u.FollowersCount,
		FriendsCount:   u.FriendsCount,
		StatusesCount:  u.StatusesCount,
	}
	if u.Status != nil {
		if t, err := time.Parse(time.RubyDate, u.Status.CreatedAt); err == nil {
			user.LastActivity = t
		}
	}
	return user
}

func usersToModels(in []apiUser) []models.User {
	out := make([]models.User, 0, len(in))
	for _, u := range in {
		out = append(out, u.toModel())
	}
	return out
}

type apiUserList struct {
	Users         []apiUser `json:"users"`
	NextCursorStr string    `json:"next_cursor_str"`
}

type apiIDList struct {
	IDs           []string `json:"ids"`
	NextCursorStr string   `json:"next_cursor_str"`
}

type apiTweet struct {
	IDStr    string  `json:"id_str"`
	FullText string  `json:"full_text"`
	Text     string  `json:"text"`
	User     apiUser `json:"user"`
	Entities struct {
		UserMentions []struct {
			IDStr string `json:"id_str"`
		} `json:"user_mentions"`
	} `json:"entities"`
	RetweetCount  int `json:"retweet_count"`
	FavoriteCount int `json:"favorite_count"`
	QuoteCount    int `json:"quote_count"`
}

func (t apiTweet) toModel() models.Tweet {
	text := t.FullText
	if text == "" {
		text = t.Text
	}
	tweet := models.Tweet{
		ID:            t.IDStr,
		Text:          text,
		User:          t.User.toModel(),
		RetweetCount:  t.RetweetCount,
		FavoriteCount: t.FavoriteCount,
		QuoteCount:    t.QuoteCount,
	}
	for _, m := range t.Entities.UserMentions {
		tweet.MentionedUserIDs = append(tweet.MentionedUserIDs, m.IDStr)
	}
	return tweet
}

type apiSearch struct {
	Statuses       []apiTweet `json:"statuses"`
	SearchMetadata struct {
		NextResults string `json:"next_results"`
	} `json:"search_metadata"`
}

// nextSearchCursor extracts max_id from the "?max_id=...&q=..." continuation
func nextSearchCursor(nextResults string) string {
	if nextResults == "" {
		return ""
	}
	values, err := url.ParseQuery(strings.TrimPrefix(nextResults, "?"))
	if err != nil {
		return ""
	}
	return values.Get("max_id")
}

type apiAudioSpace struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	HostIDs     []string `json:"host_ids"`
	SpeakerIDs  []string `json:"speaker_ids"`
	ListenerIDs []string `json:"listener_ids"`
}

type apiRateLimitStatus struct {
	Resources map[string]map[string]struct {
		Limit     int   `json:"limit"`
		Remaining int   `json:"remaining"`
		Reset     int64 `json:"reset"`
	} `json:"resources"`
}

func (s apiRateLimitStatus) toModel() models.RateLimitStatus {
	out := make(models.RateLimitStatus)
	for _, group := range s.Resources {
		for endpoint, w := range group {
			out[endpoint] = models.RateLimitWindow{
				Limit:     w.Limit,
				Remaining: w.Remaining,
				Reset:     time.Unix(w.Reset, 0),
			}
		}
	}
	return out
}

type apiErrorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// platform error codes that mean "throttled" regardless of HTTP status
const (
	codeRateLimitExceeded = 88
	codeTooManyActions    = 161
)

func relationPath(rel models.Relation, idsOnly bool) string {
	return RelationEndpoint(rel, idsOnly) + ".json"
}
