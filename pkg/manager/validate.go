package manager

import (
	"fmt"
	"strings"

	"chainblock/pkg/request"
)

// Violation names a reason a request cannot become a session
type Violation string

const (
	ViolationNoExecutor          Violation = "no-executor"
	ViolationInvalidPurpose      Violation = "invalid-purpose"
	ViolationPurposeMismatch     Violation = "purpose-target-mismatch"
	ViolationEmptyTarget         Violation = "empty-target"
	ViolationTargetIsSelf        Violation = "target-is-self"
	ViolationProtectedTarget     Violation = "protected-target"
	ViolationBlockedByTarget     Violation = "blocked-by-target"
	ViolationNoAccounts          Violation = "target-has-no-accounts"
	ViolationNothingSelected     Violation = "nothing-selected"
	ViolationExecutorNotLocked   Violation = "executor-not-protected"
	ViolationRecurringNotAllowed Violation = "recurring-not-allowed"
)

// ValidationError reports the violation that rejected a request
type ValidationError struct {
	Violation Violation
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid request: %s", e.Violation)
	}
	return fmt.Sprintf("invalid request: %s: %s", e.Violation, e.Detail)
}

func violation(v Violation, format string, args ...interface{}) error {
	return &ValidationError{Violation: v, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks req before a session is built from it. The returned error,
// if any, is a *ValidationError.
func Validate(req request.Request) error {
	executor := req.Executor.User
	if req.Executor.Client == nil || executor.ID == "" {
		return violation(ViolationNoExecutor, "request has no authenticated executor")
	}
	if err := req.Purpose.Validate(); err != nil {
		return &ValidationError{Violation: ViolationInvalidPurpose, Detail: err.Error()}
	}

	kind := req.Purpose.Kind
	t := req.Target
	if (kind == request.Lockpicker) != (t.Kind == request.LockpickerSelf) ||
		(kind == request.Export) != (t.Kind == request.ExportMyBlocklist) {
		return violation(ViolationPurposeMismatch, "%s cannot run against %s", kind, t.Kind)
	}
	if kind == request.Export && req.Options.Recurring > 0 {
		return violation(ViolationRecurringNotAllowed, "exports run once")
	}

	switch t.Kind {
	case request.FollowerList:
		return validateFollowerList(req)
	case request.TweetReaction:
		if t.Tweet == nil {
			return violation(ViolationEmptyTarget, "no tweet")
		}
		if !t.Reactions.Any() {
			return violation(ViolationNothingSelected, "select at least one kind of reaction")
		}
	case request.ImportedIDList:
		if len(t.UserIDs)+len(t.ScreenNames) == 0 {
			return violation(ViolationEmptyTarget, "imported list is empty")
		}
	case request.SearchQuery:
		if strings.TrimSpace(t.Query) == "" {
			return violation(ViolationEmptyTarget, "search query is empty")
		}
	case request.AudioSpace:
		if t.Space == nil {
			return violation(ViolationEmptyTarget, "no audio space")
		}
		if !t.Participants.Any() {
			return violation(ViolationNothingSelected, "select hosts, speakers or listeners")
		}
	case request.LockpickerSelf:
		if !executor.Protected {
			return violation(ViolationExecutorNotLocked, "@%s must be protected to use lockpicker", executor.ScreenName)
		}
		if executor.FollowersCount == 0 {
			return violation(ViolationNoAccounts, "@%s has no followers", executor.ScreenName)
		}
	case request.ExportMyBlocklist:
	default:
		return violation(ViolationEmptyTarget, "unknown target kind %q", t.Kind)
	}
	return nil
}

func validateFollowerList(req request.Request) error {
	t := req.Target
	user := t.User
	if user == nil || user.ID == "" {
		return violation(ViolationEmptyTarget, "no target user")
	}
	if user.ID == req.Executor.User.ID {
		return violation(ViolationTargetIsSelf, "cannot run against your own %s", t.List)
	}
	if user.Protected && !user.Following {
		return violation(ViolationProtectedTarget, "@%s is protected", user.ScreenName)
	}
	retriever := req.Retriever.User.ID
	if retriever == "" {
		retriever = req.Executor.User.ID
	}
	if user.BlockedBy && retriever == req.Executor.User.ID {
		return violation(ViolationBlockedByTarget, "@%s blocks @%s", user.ScreenName, req.Executor.User.ScreenName)
	}

	var empty bool
	switch t.List {
	case request.Followers:
		empty = user.FollowersCount == 0
	case request.Friends:
		empty = user.FriendsCount == 0
	case request.MutualFollowers:
		empty = user.FollowersCount == 0 || user.FriendsCount == 0
	default:
		return violation(ViolationNothingSelected, "unknown list %q", t.List)
	}
	if empty {
		return violation(ViolationNoAccounts, "@%s has no %s", user.ScreenName, t.List)
	}
	return nil
}
