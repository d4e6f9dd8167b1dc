package request

import (
	"fmt"
	"time"

	"chainblock/pkg/config"
	"chainblock/pkg/models"
	"chainblock/pkg/twitter"
)

// InactivePeriod is the staleness threshold past which accounts are skipped
type InactivePeriod string

const (
	InactiveNever InactivePeriod = "never"
	Inactive1y    InactivePeriod = "1y"
	Inactive2y    InactivePeriod = "2y"
	Inactive3y    InactivePeriod = "3y"
)

// Threshold returns the inactivity duration, or zero for never
func (p InactivePeriod) Threshold() time.Duration {
	const year = 365 * 24 * time.Hour
	switch p {
	case Inactive1y:
		return year
	case Inactive2y:
		return 2 * year
	case Inactive3y:
		return 3 * year
	default:
		return 0
	}
}

// Options are the per-request knobs frozen at creation time
type Options struct {
	QuickMode           bool           `json:"quick_mode"`
	DelayBetweenBatches time.Duration  `json:"delay_between_batches"`
	SkipInactive        InactivePeriod `json:"skip_inactive"`
	// IncludeTarget acts on the target's own account too
	IncludeTarget bool `json:"include_target"`
	// Recurring re-runs the session after this delay; zero disables
	Recurring       time.Duration `json:"recurring"`
	EnableAntiBlock bool          `json:"enable_anti_block"`
}

// OptionsFromDefaults builds options from persisted defaults
func OptionsFromDefaults(d config.Defaults) Options {
	return Options{
		QuickMode:           d.QuickMode,
		DelayBetweenBatches: d.DelayBetweenBatches,
		SkipInactive:        InactivePeriod(d.SkipInactive),
		Recurring:           d.Recurring,
		EnableAntiBlock:     d.EnableAntiBlock,
	}
}

// WithDefaults returns o with the persisted fields replaced by d. IncludeTarget
// and Recurring are per-request choices and are kept.
func (o Options) WithDefaults(d config.Defaults) Options {
	fresh := OptionsFromDefaults(d)
	fresh.IncludeTarget = o.IncludeTarget
	fresh.Recurring = o.Recurring
	return fresh
}

// Actor is an authenticated account and the client bound to it
type Actor struct {
	User   models.User
	Client twitter.Client
}

// Request describes one bulk operation. It is treated as immutable once a
// session has been built from it.
type Request struct {
	Purpose Purpose `json:"purpose"`
	Target  Target  `json:"target"`
	Options Options `json:"options"`

	// Retriever reads target data, Executor performs mutations. They differ
	// only when anti-block picked an alternate account.
	Retriever Actor `json:"-"`
	Executor  Actor `json:"-"`
}

// String returns a short description used in logs
func (r Request) String() string {
	return fmt.Sprintf("%s %s as @%s", r.Purpose.Kind, r.Target, r.Executor.User.ScreenName)
}
