package request

import "fmt"

// Verb is the outcome of deciding what to do with one account. Skip and
// AlreadyDone are no-op classifications, the rest are effectful calls.
type Verb string

const (
	Skip            Verb = "Skip"
	AlreadyDone     Verb = "AlreadyDone"
	Block           Verb = "Block"
	UnBlock         Verb = "UnBlock"
	Mute            Verb = "Mute"
	UnMute          Verb = "UnMute"
	UnFollow        Verb = "UnFollow"
	BlockAndUnBlock Verb = "BlockAndUnBlock"
)

// EffectfulVerbs lists every verb that results in a platform call
var EffectfulVerbs = []Verb{Block, UnBlock, Mute, UnMute, UnFollow, BlockAndUnBlock}

// Effectful reports whether v dispatches a platform call
func (v Verb) Effectful() bool {
	switch v {
	case Block, UnBlock, Mute, UnMute, UnFollow, BlockAndUnBlock:
		return true
	default:
		return false
	}
}

// Sensitive reports whether v belongs to the rate-sensitive class whose
// calls are awaited as a batch.
func (v Verb) Sensitive() bool {
	return v == Block || v == Mute || v == BlockAndUnBlock
}

// CountsAgainstLimit reports whether a successful v increments the block limiter
func (v Verb) CountsAgainstLimit() bool {
	return v == Block || v == BlockAndUnBlock
}

// ParseVerb converts a persisted verb name
func ParseVerb(s string) (Verb, error) {
	switch v := Verb(s); v {
	case Skip, AlreadyDone, Block, UnBlock, Mute, UnMute, UnFollow, BlockAndUnBlock:
		return v, nil
	default:
		return "", fmt.Errorf("unknown verb %q", s)
	}
}
