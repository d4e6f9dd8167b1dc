package request

import (
	"fmt"

	"chainblock/pkg/config"
)

// PurposeKind names what a session is for
type PurposeKind string

const (
	ChainBlock    PurposeKind = "chainblock"
	UnChainBlock  PurposeKind = "unchainblock"
	ChainMute     PurposeKind = "chainmute"
	UnChainMute   PurposeKind = "unchainmute"
	ChainUnfollow PurposeKind = "chainunfollow"
	Lockpicker    PurposeKind = "lockpicker"
	Export        PurposeKind = "export"
)

// BioPolicy controls expansion of accounts mentioned in bios
type BioPolicy string

const (
	BioNever BioPolicy = "never"
	BioAll   BioPolicy = "all"
	// BioSmart only expands bios that look like they point at an alternate account
	BioSmart BioPolicy = "smart"
)

// Purpose is the kind of a session plus the verb policy that goes with it.
// Fields that do not apply to Kind are ignored.
type Purpose struct {
	Kind PurposeKind `json:"kind"`

	// MyFollowers applies to accounts that follow the executor
	MyFollowers Verb `json:"my_followers,omitempty"`
	// MyFollowings applies to accounts the executor follows
	MyFollowings Verb `json:"my_followings,omitempty"`
	// Verified applies to verified accounts (chainblock only)
	Verified Verb `json:"verified,omitempty"`
	// MutualBlocked is Skip or UnBlock for accounts that also block the executor (unchainblock only)
	MutualBlocked Verb `json:"mutual_blocked,omitempty"`
	// ProtectedFollowers is Block or BlockAndUnBlock (lockpicker only)
	ProtectedFollowers Verb `json:"protected_followers,omitempty"`

	IncludeUsersInBio BioPolicy `json:"include_users_in_bio,omitempty"`
}

// Destructive reports whether sessions of this purpose are gated by the block limiter
func (p Purpose) Destructive() bool {
	return p.Kind == ChainBlock || p.Kind == Lockpicker
}

// HasFollowerPolicies reports whether MyFollowers and MyFollowings apply to Kind
func (p Purpose) HasFollowerPolicies() bool {
	return p.Kind == ChainBlock || p.Kind == ChainMute
}

// DefaultVerb is the verb applied when no more specific policy matches
func (p Purpose) DefaultVerb() Verb {
	switch p.Kind {
	case ChainBlock:
		return Block
	case UnChainBlock:
		return UnBlock
	case ChainMute:
		return Mute
	case UnChainMute:
		return UnMute
	case ChainUnfollow:
		return UnFollow
	case Lockpicker:
		if p.ProtectedFollowers == "" {
			return BlockAndUnBlock
		}
		return p.ProtectedFollowers
	default:
		return Skip
	}
}

// Validate checks the policy fields allowed for Kind
func (p Purpose) Validate() error {
	in := func(v Verb, allowed ...Verb) bool {
		if v == "" {
			return true
		}
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}

	if !p.HasFollowerPolicies() && (p.MyFollowers != "" || p.MyFollowings != "") {
		return fmt.Errorf("%s: follower policies only apply to chainblock and chainmute", p.Kind)
	}
	if p.Kind != ChainBlock && p.Verified != "" {
		return fmt.Errorf("%s: the verified policy only applies to chainblock", p.Kind)
	}
	if p.Kind != UnChainBlock && p.MutualBlocked != "" {
		return fmt.Errorf("%s: the mutual-blocked policy only applies to unchainblock", p.Kind)
	}
	if p.Kind != Lockpicker && p.ProtectedFollowers != "" {
		return fmt.Errorf("%s: the protected-followers policy only applies to lockpicker", p.Kind)
	}

	switch p.Kind {
	case ChainBlock:
		if !in(p.MyFollowers, Skip, Mute, Block, BlockAndUnBlock) {
			return fmt.Errorf("chainblock: invalid my-followers verb %q", p.MyFollowers)
		}
		if !in(p.MyFollowings, Skip, Mute, Block, UnFollow, BlockAndUnBlock) {
			return fmt.Errorf("chainblock: invalid my-followings verb %q", p.MyFollowings)
		}
		if !in(p.Verified, Skip, Mute, Block) {
			return fmt.Errorf("chainblock: invalid verified verb %q", p.Verified)
		}
	case UnChainBlock:
		if !in(p.MutualBlocked, Skip, UnBlock) {
			return fmt.Errorf("unchainblock: invalid mutual-blocked verb %q", p.MutualBlocked)
		}
	case ChainMute:
		if !in(p.MyFollowers, Skip, Mute) || !in(p.MyFollowings, Skip, Mute) {
			return fmt.Errorf("chainmute: follower policies must be Skip or Mute")
		}
	case Lockpicker:
		if !in(p.ProtectedFollowers, Block, BlockAndUnBlock) {
			return fmt.Errorf("lockpicker: invalid protected-followers verb %q", p.ProtectedFollowers)
		}
	case UnChainMute, ChainUnfollow, Export:
	default:
		return fmt.Errorf("unknown purpose %q", p.Kind)
	}

	switch p.IncludeUsersInBio {
	case "", BioNever, BioAll, BioSmart:
	default:
		return fmt.Errorf("invalid bio policy %q", p.IncludeUsersInBio)
	}
	return nil
}

// PurposeFromDefaults builds a purpose of the given kind from persisted defaults
func PurposeFromDefaults(kind PurposeKind, d config.Defaults) Purpose {
	p := Purpose{Kind: kind, IncludeUsersInBio: BioPolicy(d.IncludeUsersInBio)}

	switch kind {
	case ChainBlock:
		p.MyFollowers = Verb(d.MyFollowers)
		p.MyFollowings = Verb(d.MyFollowings)
		p.Verified = Verb(d.Verified)
	case ChainMute:
		p.MyFollowers = muteOrSkip(Verb(d.MyFollowers))
		p.MyFollowings = muteOrSkip(Verb(d.MyFollowings))
	case UnChainBlock:
		p.MutualBlocked = Skip
	case Lockpicker:
		p.ProtectedFollowers = BlockAndUnBlock
	}
	return p
}

func muteOrSkip(v Verb) Verb {
	if v == Mute {
		return Mute
	}
	return Skip
}

// WithDefaults replaces the user-configurable policy fields of p with d,
// keeping Kind and the fields the defaults do not cover.
func (p Purpose) WithDefaults(d config.Defaults) Purpose {
	fresh := PurposeFromDefaults(p.Kind, d)
	if p.Kind == UnChainBlock {
		fresh.MutualBlocked = p.MutualBlocked
	}
	if p.Kind == Lockpicker {
		fresh.ProtectedFollowers = p.ProtectedFollowers
	}
	return fresh
}
