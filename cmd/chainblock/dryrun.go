package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"chainblock/pkg/models"
	"chainblock/pkg/twitter"
)

// demoAudience is the number of followers @demo has in the dry-run platform
const demoAudience = 60

// demoPlatform builds the in-memory platform used by `run --dry-run`: @demo
// with a mixed audience, one tweet (2000) with reactors, a search for "demo"
// and an audio space (3000).
func demoPlatform(now time.Time) *twitter.MockClient {
	self := models.User{ID: "1", ScreenName: "dryrun", Name: "Dry Run", Protected: true}
	target := models.User{
		ID:             "100",
		ScreenName:     "demo",
		Name:           "Demo Account",
		FollowersCount: demoAudience,
		StatusesCount:  420,
		LastActivity:   now,
	}

	mock := twitter.NewMockClient(self).AddUser(target)
	mock.PageSize = 20
	mock.Latency = 25 * time.Millisecond

	var audience, friends []string
	for i := range demoAudience {
		u := models.User{
			ID:            strconv.Itoa(1000 + i),
			ScreenName:    fmt.Sprintf("demo_follower_%02d", i),
			Name:          fmt.Sprintf("Follower %d", i),
			Verified:      i%10 == 0,
			Protected:     i%7 == 0,
			FollowedBy:    i%9 == 0,
			Following:     i%11 == 0,
			Blocking:      i%13 == 0,
			StatusesCount: i * 3,
			LastActivity:  now.Add(-time.Duration(i) * 30 * 24 * time.Hour),
		}
		if i%15 == 0 {
			u.Description = fmt.Sprintf("backup account: @demo_follower_%02d", (i+1)%demoAudience)
		}
		mock.AddUser(u)
		audience = append(audience, u.ID)
		if i%3 == 0 {
			friends = append(friends, u.ID)
		}
	}
	mock.SetFollowers(target.ID, audience...)
	mock.SetFriends(target.ID, friends...)

	tweet := models.Tweet{
		ID:               "2000",
		Text:             "hello from @demo_follower_01",
		User:             target,
		MentionedUserIDs: audience[1:3],
		RetweetCount:     12,
		FavoriteCount:    20,
	}
	mock.AddTweet(tweet, audience[:12], audience[10:30])
	mock.AddSearch("demo", tweet)
	mock.AddSpace(models.AudioSpace{
		ID:          "3000",
		Title:       "Demo space",
		HostIDs:     audience[:1],
		SpeakerIDs:  audience[1:4],
		ListenerIDs: audience[4:25],
	})
	return mock
}

// summarizeActions renders the calls a dry run would have made
func summarizeActions(actions []twitter.MockAction) string {
	if len(actions) == 0 {
		return "no accounts would be changed"
	}
	counts := make(map[string]int)
	for _, a := range actions {
		counts[a.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return "would " + strings.Join(parts, ", ")
}
