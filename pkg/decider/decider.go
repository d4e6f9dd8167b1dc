// Package decider maps a candidate account to the verb a session applies to it.
package decider

import (
	"time"

	"chainblock/pkg/models"
	"chainblock/pkg/request"
)

// Decide returns the verb for user under req's policy. The checks run in a
// fixed order and the first match wins:
//
//  1. the target's own account, unless Options.IncludeTarget
//  2. inactive accounts, per Options.SkipInactive
//  3. mutual follows
//  4. the my-followers policy (chainblock and chainmute)
//  5. the my-followings policy (chainblock and chainmute)
//  6. the verified policy (chainblock only)
//  7. the purpose's default verb
//
// The chosen verb collapses to AlreadyDone when its effect already holds.
func Decide(req request.Request, user models.User, now time.Time) request.Verb {
	if id := req.Target.AccountID(); id != "" && user.ID == id && !req.Options.IncludeTarget {
		return request.Skip
	}

	if isInactive(req, user, now) {
		return request.Skip
	}

	if user.Following && user.FollowedBy {
		return request.Skip
	}

	verb := policyVerb(req.Purpose, user)
	return collapse(verb, user)
}

func isInactive(req request.Request, user models.User, now time.Time) bool {
	threshold := req.Options.SkipInactive.Threshold()
	if threshold == 0 {
		return false
	}
	// a protected account's activity cannot be observed, except by lockpicker
	// which targets exactly those accounts
	if user.Protected && req.Purpose.Kind != request.Lockpicker {
		return true
	}
	if user.LastActivity.IsZero() {
		return false
	}
	return now.Sub(user.LastActivity) > threshold
}

func policyVerb(p request.Purpose, user models.User) request.Verb {
	if p.HasFollowerPolicies() {
		if user.FollowedBy && p.MyFollowers != "" {
			return p.MyFollowers
		}
		if user.Following && p.MyFollowings != "" {
			return p.MyFollowings
		}
	}
	if user.Verified && p.Kind == request.ChainBlock && p.Verified != "" {
		return p.Verified
	}

	switch p.Kind {
	case request.UnChainBlock:
		if user.BlockedBy && p.MutualBlocked == request.Skip {
			return request.Skip
		}
	case request.Lockpicker:
		if !user.Protected || !user.FollowedBy {
			return request.Skip
		}
	}
	return p.DefaultVerb()
}

func collapse(verb request.Verb, user models.User) request.Verb {
	var done bool
	switch verb {
	case request.Block:
		done = user.Blocking
	case request.UnBlock:
		done = !user.Blocking
	case request.Mute:
		done = user.Muting
	case request.UnMute:
		done = !user.Muting
	case request.UnFollow:
		done = !user.Following
	case request.BlockAndUnBlock:
		done = !user.FollowedBy
	}
	if done {
		return request.AlreadyDone
	}
	return verb
}
