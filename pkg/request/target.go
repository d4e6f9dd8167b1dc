package request

import (
	"fmt"
	"slices"
	"strings"

	"chainblock/pkg/models"
)

// TargetKind names what a session enumerates
type TargetKind string

const (
	FollowerList      TargetKind = "follower-list"
	TweetReaction     TargetKind = "tweet-reaction"
	ImportedIDList    TargetKind = "imported-id-list"
	SearchQuery       TargetKind = "search-query"
	AudioSpace        TargetKind = "audio-space"
	LockpickerSelf    TargetKind = "lockpicker-self"
	ExportMyBlocklist TargetKind = "export-my-blocklist"
)

// FollowKind selects the edge of a follower-list target
type FollowKind string

const (
	Followers       FollowKind = "followers"
	Friends         FollowKind = "friends"
	MutualFollowers FollowKind = "mutual-followers"
)

// ReactionSelection picks which reactors of a tweet are enumerated
type ReactionSelection struct {
	Retweeters        bool `json:"retweeters"`
	Likers            bool `json:"likers"`
	MentionedUsers    bool `json:"mentioned_users"`
	QuotedUsers       bool `json:"quoted_users"`
	NonLinkedMentions bool `json:"non_linked_mentions"`
}

// Any reports whether at least one reaction kind is selected
func (r ReactionSelection) Any() bool {
	return r.Retweeters || r.Likers || r.MentionedUsers || r.QuotedUsers || r.NonLinkedMentions
}

// SpaceSelection picks which participants of an audio space are enumerated
type SpaceSelection struct {
	Hosts     bool `json:"hosts"`
	Speakers  bool `json:"speakers"`
	Listeners bool `json:"listeners"`
}

// Any reports whether at least one participant group is selected
func (s SpaceSelection) Any() bool {
	return s.Hosts || s.Speakers || s.Listeners
}

// Target is a tagged variant; only the fields for Kind are meaningful.
type Target struct {
	Kind TargetKind `json:"kind"`

	// follower-list and lockpicker-self
	User *models.User `json:"user,omitempty"`
	List FollowKind   `json:"list,omitempty"`

	// tweet-reaction
	Tweet     *models.Tweet     `json:"tweet,omitempty"`
	Reactions ReactionSelection `json:"reactions,omitempty"`

	// imported-id-list
	UserIDs     []string `json:"user_ids,omitempty"`
	ScreenNames []string `json:"screen_names,omitempty"`

	// search-query
	Query string `json:"query,omitempty"`

	// audio-space
	Space        *models.AudioSpace `json:"space,omitempty"`
	Participants SpaceSelection     `json:"participants,omitempty"`
}

// AccountID returns the ID of the account the target is about, if any. This
// account is skipped unless Options.IncludeTarget is set.
func (t Target) AccountID() string {
	switch t.Kind {
	case FollowerList:
		if t.User != nil {
			return t.User.ID
		}
	case TweetReaction:
		if t.Tweet != nil {
			return t.Tweet.User.ID
		}
	}
	return ""
}

// Equal reports whether two targets enumerate the same thing
func (t Target) Equal(o Target) bool {
	if t.Kind != o.Kind {
		return false
	}

	switch t.Kind {
	case FollowerList:
		return t.List == o.List && userID(t.User) == userID(o.User)
	case TweetReaction:
		return t.Reactions == o.Reactions && tweetID(t.Tweet) == tweetID(o.Tweet)
	case ImportedIDList:
		return slices.Equal(t.UserIDs, o.UserIDs) && slices.Equal(t.ScreenNames, o.ScreenNames)
	case SearchQuery:
		return t.Query == o.Query
	case AudioSpace:
		return t.Participants == o.Participants && spaceID(t.Space) == spaceID(o.Space)
	case LockpickerSelf:
		return userID(t.User) == userID(o.User)
	case ExportMyBlocklist:
		return true
	default:
		return false
	}
}

func (t Target) String() string {
	switch t.Kind {
	case FollowerList:
		name := ""
		if t.User != nil {
			name = t.User.ScreenName
		}
		return fmt.Sprintf("%s of @%s", t.List, name)
	case TweetReaction:
		return fmt.Sprintf("reactions to tweet %s", tweetID(t.Tweet))
	case ImportedIDList:
		return fmt.Sprintf("imported list (%d accounts)", len(t.UserIDs)+len(t.ScreenNames))
	case SearchQuery:
		return fmt.Sprintf("search %q", t.Query)
	case AudioSpace:
		return fmt.Sprintf("audio space %s", spaceID(t.Space))
	case LockpickerSelf:
		return "protected followers"
	case ExportMyBlocklist:
		return "my blocklist"
	default:
		return string(t.Kind)
	}
}

// Refreshed returns a copy of t with its remote objects replaced, keeping the
// selection fields. Used when the target is re-fetched on rewind.
func (t Target) Refreshed(user *models.User, tweet *models.Tweet, space *models.AudioSpace) Target {
	out := t
	if user != nil {
		out.User = user
	}
	if tweet != nil {
		out.Tweet = tweet
	}
	if space != nil {
		out.Space = space
	}
	out.UserIDs = slices.Clone(t.UserIDs)
	out.ScreenNames = slices.Clone(t.ScreenNames)
	return out
}

// Clone returns a deep copy of t that shares no memory with it
func (t Target) Clone() Target {
	out := t.Refreshed(nil, nil, nil)
	if t.User != nil {
		u := *t.User
		out.User = &u
	}
	if t.Tweet != nil {
		tw := *t.Tweet
		tw.MentionedUserIDs = slices.Clone(t.Tweet.MentionedUserIDs)
		out.Tweet = &tw
	}
	if t.Space != nil {
		sp := *t.Space
		sp.HostIDs = slices.Clone(t.Space.HostIDs)
		sp.SpeakerIDs = slices.Clone(t.Space.SpeakerIDs)
		sp.ListenerIDs = slices.Clone(t.Space.ListenerIDs)
		out.Space = &sp
	}
	return out
}

// NormalizeScreenName strips a leading @ and lowercases the name
func NormalizeScreenName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func tweetID(t *models.Tweet) string {
	if t == nil {
		return ""
	}
	return t.ID
}

func spaceID(s *models.AudioSpace) string {
	if s == nil {
		return ""
	}
	return s.ID
}
