package request

import (
	"testing"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerbClasses(t *testing.T) {
	for _, v := range EffectfulVerbs {
		assert.True(t, v.Effectful(), v)
	}
	assert.False(t, Skip.Effectful())
	assert.False(t, AlreadyDone.Effectful())

	assert.True(t, Block.Sensitive())
	assert.True(t, Mute.Sensitive())
	assert.True(t, BlockAndUnBlock.Sensitive())
	assert.False(t, UnBlock.Sensitive())
	assert.False(t, UnFollow.Sensitive())

	_, err := ParseVerb("Nuke")
	assert.Error(t, err)
	v, err := ParseVerb("UnMute")
	require.NoError(t, err)
	assert.Equal(t, UnMute, v)
}

func TestTargetEqual(t *testing.T) {
	alice := &models.User{ID: "1", ScreenName: "alice"}
	aliceAgain := &models.User{ID: "1", ScreenName: "alice_renamed"}
	bob := &models.User{ID: "2", ScreenName: "bob"}

	tests := []struct {
		name string
		a, b Target
		want bool
	}{
		{"same follower list", Target{Kind: FollowerList, User: alice, List: Followers}, Target{Kind: FollowerList, User: aliceAgain, List: Followers}, true},
		{"different list", Target{Kind: FollowerList, User: alice, List: Followers}, Target{Kind: FollowerList, User: alice, List: Friends}, false},
		{"different user", Target{Kind: FollowerList, User: alice, List: Followers}, Target{Kind: FollowerList, User: bob, List: Followers}, false},
		{"different kind", Target{Kind: FollowerList, User: alice}, Target{Kind: LockpickerSelf, User: alice}, false},
		{"same tweet", Target{Kind: TweetReaction, Tweet: &models.Tweet{ID: "9"}, Reactions: ReactionSelection{Likers: true}}, Target{Kind: TweetReaction, Tweet: &models.Tweet{ID: "9"}, Reactions: ReactionSelection{Likers: true}}, true},
		{"tweet selection differs", Target{Kind: TweetReaction, Tweet: &models.Tweet{ID: "9"}, Reactions: ReactionSelection{Likers: true}}, Target{Kind: TweetReaction, Tweet: &models.Tweet{ID: "9"}, Reactions: ReactionSelection{Retweeters: true}}, false},
		{"imported", Target{Kind: ImportedIDList, UserIDs: []string{"1", "2"}}, Target{Kind: ImportedIDList, UserIDs: []string{"1", "2"}}, true},
		{"search", Target{Kind: SearchQuery, Query: "a"}, Target{Kind: SearchQuery, Query: "b"}, false},
		{"space", Target{Kind: AudioSpace, Space: &models.AudioSpace{ID: "s"}, Participants: SpaceSelection{Hosts: true}}, Target{Kind: AudioSpace, Space: &models.AudioSpace{ID: "s"}, Participants: SpaceSelection{Hosts: true}}, true},
		{"export", Target{Kind: ExportMyBlocklist}, Target{Kind: ExportMyBlocklist}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
			assert.Equal(t, tt.want, tt.b.Equal(tt.a))
		})
	}
}

func TestTargetCloneSharesNothing(t *testing.T) {
	orig := Target{
		Kind:  TweetReaction,
		User:  &models.User{ID: "1", ScreenName: "alice"},
		Tweet: &models.Tweet{ID: "9", MentionedUserIDs: []string{"2"}},
		Space: &models.AudioSpace{ID: "s", HostIDs: []string{"3"}},
	}

	c := orig.Clone()
	c.User.ScreenName = "mallory"
	c.Tweet.MentionedUserIDs[0] = "x"
	c.Space.HostIDs[0] = "y"

	assert.Equal(t, "alice", orig.User.ScreenName)
	assert.Equal(t, []string{"2"}, orig.Tweet.MentionedUserIDs)
	assert.Equal(t, []string{"3"}, orig.Space.HostIDs)
	assert.True(t, orig.Equal(c))
}

func TestTargetAccountID(t *testing.T) {
	assert.Equal(t, "1", Target{Kind: FollowerList, User: &models.User{ID: "1"}}.AccountID())
	assert.Equal(t, "7", Target{Kind: TweetReaction, Tweet: &models.Tweet{User: models.User{ID: "7"}}}.AccountID())
	assert.Equal(t, "", Target{Kind: SearchQuery, Query: "x"}.AccountID())
}

func TestPurposeFromDefaults(t *testing.T) {
	d := config.DefaultConfig().Defaults
	d.MyFollowers = "Block"
	d.MyFollowings = "UnFollow"

	p := PurposeFromDefaults(ChainBlock, d)
	assert.Equal(t, Block, p.MyFollowers)
	assert.Equal(t, UnFollow, p.MyFollowings)
	assert.Equal(t, Block, p.Verified)
	require.NoError(t, p.Validate())

	m := PurposeFromDefaults(ChainMute, d)
	assert.Equal(t, Skip, m.MyFollowers)
	assert.Equal(t, Skip, m.MyFollowings)
	require.NoError(t, m.Validate())

	assert.Equal(t, BlockAndUnBlock, PurposeFromDefaults(Lockpicker, d).DefaultVerb())
}

func TestPurposeWithDefaultsKeepsPerRequestFields(t *testing.T) {
	p := Purpose{Kind: UnChainBlock, MutualBlocked: UnBlock}
	fresh := p.WithDefaults(config.DefaultConfig().Defaults)
	assert.Equal(t, UnBlock, fresh.MutualBlocked)

	o := Options{IncludeTarget: true, QuickMode: true, Recurring: time.Hour}
	d := config.DefaultConfig().Defaults
	d.DelayBetweenBatches = time.Second
	fo := o.WithDefaults(d)
	assert.True(t, fo.IncludeTarget)
	assert.Equal(t, time.Hour, fo.Recurring)
	assert.False(t, fo.QuickMode)
	assert.Equal(t, time.Second, fo.DelayBetweenBatches)
}

func TestPurposeValidate(t *testing.T) {
	assert.Error(t, Purpose{Kind: ChainBlock, Verified: UnFollow}.Validate())
	assert.Error(t, Purpose{Kind: ChainMute, MyFollowers: Block}.Validate())
	assert.Error(t, Purpose{Kind: Lockpicker, ProtectedFollowers: Mute}.Validate())
	assert.Error(t, Purpose{Kind: "nuke"}.Validate())
	assert.Error(t, Purpose{Kind: Export, IncludeUsersInBio: "some"}.Validate())
	assert.NoError(t, Purpose{Kind: ChainUnfollow}.Validate())
}

func TestPurposeValidateRejectsForeignPolicies(t *testing.T) {
	tests := []struct {
		name    string
		purpose Purpose
	}{
		{"unchainblock my-followers", Purpose{Kind: UnChainBlock, MyFollowers: Block}},
		{"unchainmute my-followings", Purpose{Kind: UnChainMute, MyFollowings: Block}},
		{"chainunfollow my-followers", Purpose{Kind: ChainUnfollow, MyFollowers: Block}},
		{"lockpicker my-followers", Purpose{Kind: Lockpicker, ProtectedFollowers: Block, MyFollowers: Block}},
		{"export my-followings", Purpose{Kind: Export, MyFollowings: Skip}},
		{"chainmute verified", Purpose{Kind: ChainMute, Verified: Mute}},
		{"chainblock mutual-blocked", Purpose{Kind: ChainBlock, MutualBlocked: UnBlock}},
		{"chainmute protected-followers", Purpose{Kind: ChainMute, ProtectedFollowers: Block}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.purpose.Validate())
		})
	}

	assert.True(t, Purpose{Kind: ChainMute}.HasFollowerPolicies())
	assert.False(t, Purpose{Kind: UnChainBlock}.HasFollowerPolicies())
}

func TestInactiveThreshold(t *testing.T) {
	assert.Zero(t, InactiveNever.Threshold())
	assert.Equal(t, 2*365*24*time.Hour, Inactive2y.Threshold())
}
