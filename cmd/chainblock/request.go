package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/export"
	"chainblock/pkg/request"
)

// runOptions holds the flags of the run command
type runOptions struct {
	account string
	purpose string

	followers string
	friends   string
	mutuals   string

	tweet      string
	retweeters bool
	likers     bool
	mentions   bool
	quotes     bool
	nonLinked  bool

	importFile string
	query      string

	space     string
	hosts     bool
	speakers  bool
	listeners bool

	myFollowers        string
	myFollowings       string
	verified           string
	mutualBlocked      string
	protectedFollowers string
	bio                string

	quick         bool
	delay         time.Duration
	skipInactive  string
	includeTarget bool
	recurring     time.Duration
	antiBlock     bool

	maxRunning        int
	concurrency       int
	requestsPerMinute int
	limiterStore      string
	metricsAddr       string
	exportDir         string
	exportFormat      string

	useTUI bool
	dryRun bool
}

var errTargetFlags = errors.New("exactly one of --followers, --friends, --mutuals, --tweet, --import, --search or --space is required")

// buildRequest turns the run flags into a request for executor. Policy and
// option flags override d only when they were set on the command line.
func buildRequest(ctx context.Context, o runOptions, changed func(string) bool, executor request.Actor, d config.Defaults) (request.Request, error) {
	kind := request.PurposeKind(strings.ToLower(o.purpose))

	target, err := resolveTarget(ctx, o, kind, executor)
	if err != nil {
		return request.Request{}, err
	}

	purpose := request.PurposeFromDefaults(kind, d)
	verbs := []struct {
		flag  string
		value string
		dst   *request.Verb
	}{
		{"my-followers", o.myFollowers, &purpose.MyFollowers},
		{"my-followings", o.myFollowings, &purpose.MyFollowings},
		{"verified", o.verified, &purpose.Verified},
		{"mutual-blocked", o.mutualBlocked, &purpose.MutualBlocked},
		{"protected-followers", o.protectedFollowers, &purpose.ProtectedFollowers},
	}
	for _, v := range verbs {
		if !changed(v.flag) {
			continue
		}
		verb, err := request.ParseVerb(v.value)
		if err != nil {
			return request.Request{}, fmt.Errorf("--%s: %w", v.flag, err)
		}
		*v.dst = verb
	}
	if changed("bio") {
		purpose.IncludeUsersInBio = request.BioPolicy(o.bio)
	}
	if err := purpose.Validate(); err != nil {
		return request.Request{}, err
	}

	opts := request.OptionsFromDefaults(d)
	if changed("quick") {
		opts.QuickMode = o.quick
	}
	if changed("delay") {
		opts.DelayBetweenBatches = o.delay
	}
	if changed("skip-inactive") {
		opts.SkipInactive = request.InactivePeriod(o.skipInactive)
	}
	if changed("recurring") {
		opts.Recurring = o.recurring
	}
	if changed("anti-block") {
		opts.EnableAntiBlock = o.antiBlock
	}
	opts.IncludeTarget = o.includeTarget

	return request.Request{
		Purpose:   purpose,
		Target:    target,
		Options:   opts,
		Retriever: executor,
		Executor:  executor,
	}, nil
}

// resolveTarget fetches the remote object named by the target flags
func resolveTarget(ctx context.Context, o runOptions, kind request.PurposeKind, executor request.Actor) (request.Target, error) {
	switch kind {
	case request.Lockpicker:
		me := executor.User
		return request.Target{Kind: request.LockpickerSelf, User: &me}, nil
	case request.Export:
		return request.Target{Kind: request.ExportMyBlocklist}, nil
	}

	set := 0
	for _, v := range []string{o.followers, o.friends, o.mutuals, o.tweet, o.importFile, o.query, o.space} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	if set != 1 {
		return request.Target{}, errTargetFlags
	}

	client := executor.Client
	switch {
	case o.followers != "" || o.friends != "" || o.mutuals != "":
		name, list := o.followers, request.Followers
		if o.friends != "" {
			name, list = o.friends, request.Friends
		}
		if o.mutuals != "" {
			name, list = o.mutuals, request.MutualFollowers
		}
		user, err := client.GetUserByName(ctx, request.NormalizeScreenName(name))
		if err != nil {
			return request.Target{}, fmt.Errorf("failed to look up @%s: %w", request.NormalizeScreenName(name), err)
		}
		return request.Target{Kind: request.FollowerList, User: user, List: list}, nil

	case o.tweet != "":
		tweet, err := client.GetTweet(ctx, strings.TrimSpace(o.tweet))
		if err != nil {
			return request.Target{}, fmt.Errorf("failed to fetch tweet %s: %w", o.tweet, err)
		}
		reactions := request.ReactionSelection{
			Retweeters:        o.retweeters,
			Likers:            o.likers,
			MentionedUsers:    o.mentions,
			QuotedUsers:       o.quotes,
			NonLinkedMentions: o.nonLinked,
		}
		if !reactions.Any() {
			reactions.Retweeters, reactions.Likers = true, true
		}
		return request.Target{Kind: request.TweetReaction, Tweet: tweet, Reactions: reactions}, nil

	case o.importFile != "":
		entries, err := export.ReadFile(o.importFile)
		if err != nil {
			return request.Target{}, err
		}
		ids, names := splitImported(entries)
		return request.Target{Kind: request.ImportedIDList, UserIDs: ids, ScreenNames: names}, nil

	case o.query != "":
		return request.Target{Kind: request.SearchQuery, Query: strings.TrimSpace(o.query)}, nil

	default:
		space, err := client.GetAudioSpace(ctx, strings.TrimSpace(o.space))
		if err != nil {
			return request.Target{}, fmt.Errorf("failed to fetch audio space %s: %w", o.space, err)
		}
		parts := request.SpaceSelection{Hosts: o.hosts, Speakers: o.speakers, Listeners: o.listeners}
		if !parts.Any() {
			parts.Hosts, parts.Speakers = true, true
		}
		return request.Target{Kind: request.AudioSpace, Space: space, Participants: parts}, nil
	}
}

// splitImported separates numeric account IDs from screen names
func splitImported(entries []string) (ids, names []string) {
	for _, e := range entries {
		if isNumeric(e) {
			ids = append(ids, e)
			continue
		}
		if name := request.NormalizeScreenName(e); name != "" {
			names = append(names, name)
		}
	}
	return ids, names
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
