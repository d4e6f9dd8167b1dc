package twitter

import (
	"context"

	"chainblock/pkg/models"
)

// MaxLookupBatch is the largest number of IDs or names accepted by one
// lookup call.
const MaxLookupBatch = 100

// Client is the authenticated platform surface used by scrapers and sessions.
// All calls are bound to one account. Rate limit failures are returned as
// *errors.Error values with ErrorTypeRateLimit so callers can tell them
// apart from generic failures.
type Client interface {
	// VerifyCredentials returns the account the client is authenticated as
	VerifyCredentials(ctx context.Context) (*models.User, error)

	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByName(ctx context.Context, screenName string) (*models.User, error)

	// ListRelations returns one page of hydrated users on a relationship edge
	ListRelations(ctx context.Context, rel models.Relation, userID, cursor string) (*models.UserPage, error)
	// ListRelationIDs returns one page of IDs on a relationship edge
	ListRelationIDs(ctx context.Context, rel models.Relation, userID, cursor string) (*models.IDPage, error)

	LookupUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	LookupUsersByNames(ctx context.Context, names []string) ([]models.User, error)

	SearchTweets(ctx context.Context, query, cursor string) (*models.TweetPage, error)
	GetTweet(ctx context.Context, tweetID string) (*models.Tweet, error)
	ListReactedUsers(ctx context.Context, reaction models.Reaction, tweetID, cursor string) (*models.UserPage, error)
	GetAudioSpace(ctx context.Context, spaceID string) (*models.AudioSpace, error)

	// ListBlockedIDs returns one page of the authenticated account's block list
	ListBlockedIDs(ctx context.Context, cursor string) (*models.IDPage, error)

	BlockUser(ctx context.Context, userID string) error
	UnblockUser(ctx context.Context, userID string) error
	MuteUser(ctx context.Context, userID string) error
	UnmuteUser(ctx context.Context, userID string) error
	UnfollowUser(ctx context.Context, userID string) error

	// RateLimitStatus returns the current quota windows keyed by endpoint
	RateLimitStatus(ctx context.Context) (models.RateLimitStatus, error)
}

// Endpoint keys as reported by RateLimitStatus
const (
	EndpointFollowersList = "/followers/list"
	EndpointFriendsList   = "/friends/list"
	EndpointFollowersIDs  = "/followers/ids"
	EndpointFriendsIDs    = "/friends/ids"
	EndpointUsersLookup   = "/users/lookup"
	EndpointUsersShow     = "/users/show"
	EndpointSearchTweets  = "/search/tweets"
	EndpointStatusesShow  = "/statuses/show"
	EndpointRetweeters    = "/statuses/retweeters"
	EndpointLikers        = "/statuses/favoriters"
	EndpointAudioSpace    = "/audiospace/by_id"
	EndpointBlocksIDs     = "/blocks/ids"
	EndpointVerify        = "/account/verify_credentials"
	EndpointRateLimit     = "/application/rate_limit_status"
)

// RelationEndpoint returns the rate limit key for listing rel
func RelationEndpoint(rel models.Relation, idsOnly bool) string {
	switch {
	case rel == models.RelationFollowers && idsOnly:
		return EndpointFollowersIDs
	case rel == models.RelationFollowers:
		return EndpointFollowersList
	case idsOnly:
		return EndpointFriendsIDs
	default:
		return EndpointFriendsList
	}
}

// ReactionEndpoint returns the rate limit key for listing users who reacted
func ReactionEndpoint(reaction models.Reaction) string {
	if reaction == models.ReactionLiked {
		return EndpointLikers
	}
	return EndpointRetweeters
}
