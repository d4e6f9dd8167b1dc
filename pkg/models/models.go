package models

import "time"

// User is a snapshot of an account with relationship flags relative to the
// authenticated account that fetched it.
type User struct {
	ID             string    `json:"id_str"`
	ScreenName     string    `json:"screen_name"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Protected      bool      `json:"protected"`
	Verified       bool      `json:"verified"`
	Following      bool      `json:"following"`
	FollowedBy     bool      `json:"followed_by"`
	Blocking       bool      `json:"blocking"`
	BlockedBy      bool      `json:"blocked_by"`
	Muting         bool      `json:"muting"`
	FollowersCount int       `json:"followers_count"`
	FriendsCount   int       `json:"friends_count"`
	StatusesCount  int       `json:"statuses_count"`
	LastActivity   time.Time `json:"last_activity,omitempty"`
}

// Tweet is the subset of a status needed to enumerate its reactors
type Tweet struct {
	ID               string   `json:"id_str"`
	Text             string   `json:"full_text"`
	User             User     `json:"user"`
	MentionedUserIDs []string `json:"mentioned_user_ids"`
	RetweetCount     int      `json:"retweet_count"`
	FavoriteCount    int      `json:"favorite_count"`
	QuoteCount       int      `json:"quote_count"`
}

// AudioSpace is a live audio room and its participants
type AudioSpace struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	HostIDs     []string `json:"host_ids"`
	SpeakerIDs  []string `json:"speaker_ids"`
	ListenerIDs []string `json:"listener_ids"`
}

// RateLimitWindow describes the quota state of one endpoint
type RateLimitWindow struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// RateLimitStatus maps an endpoint path (e.g. "/followers/list") to its window
type RateLimitStatus map[string]RateLimitWindow

// Relation is a relationship edge that can be listed for a user
type Relation string

const (
	RelationFollowers Relation = "followers"
	RelationFriends   Relation = "friends"
)

// Reaction is a kind of tweet reaction whose users can be listed
type Reaction string

const (
	ReactionRetweeted Reaction = "retweeted"
	ReactionLiked     Reaction = "liked"
)

// UserPage is one page of a cursor-paginated user listing
type UserPage struct {
	Users      []User
	NextCursor string
}

// IDPage is one page of a cursor-paginated ID listing
type IDPage struct {
	IDs        []string
	NextCursor string
}

// TweetPage is one page of search results
type TweetPage struct {
	Tweets     []Tweet
	NextCursor string
}

// HasNext reports whether another page is available
func (p *UserPage) HasNext() bool { return p.NextCursor != "" && p.NextCursor != "0" }

// HasNext reports whether another page is available
func (p *IDPage) HasNext() bool { return p.NextCursor != "" && p.NextCursor != "0" }

// HasNext reports whether another page is available
func (p *TweetPage) HasNext() bool { return p.NextCursor != "" && p.NextCursor != "0" }
