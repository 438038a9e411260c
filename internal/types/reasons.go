package types

// ExitReason is the typed outcome a caller flow terminates with. These are
// expected outcomes, not failures.
type ExitReason string

const (
	ExitBridged    ExitReason = "BRIDGED"
	ExitTimeout    ExitReason = "TIMEOUT"
	ExitFull       ExitReason = "FULL"
	ExitJoinEmpty  ExitReason = "JOINEMPTY"
	ExitLeaveEmpty ExitReason = "LEAVEEMPTY"
	ExitWithKey    ExitReason = "EXITWITHKEY"
	ExitAbandoned  ExitReason = "ABANDON"
)

// EmptyConditions is the queue-level bitmask of which unavailability
// reasons count when deciding whether a queue is "empty" for the purposes
// of the join-empty and leave-when-empty policies.
type EmptyConditions uint

const (
	CondPaused EmptyConditions = 1 << iota
	CondPenalty
	CondInUse
	CondRinging
	CondUnavailable
	CondInvalid
	CondUnknown
	CondWrapup
)

// Preset condition sets matching the common config keywords.
var (
	// EmptyStrict treats everything short of a fully idle member as empty.
	EmptyStrict = CondPaused | CondPenalty | CondInUse | CondRinging |
		CondUnavailable | CondInvalid | CondUnknown | CondWrapup
	// EmptyLoose only counts members that can never take a call.
	EmptyLoose = CondPenalty | CondInvalid
	// EmptyNever disables the empty check entirely.
	EmptyNever EmptyConditions = 0
)

// ParseEmptyConditions maps a config keyword to a condition set.
func ParseEmptyConditions(v string) EmptyConditions {
	switch v {
	case "strict", "yes", "true":
		return EmptyStrict
	case "loose":
		return EmptyLoose
	}
	return EmptyNever
}

// Has reports whether the set includes the given condition.
func (c EmptyConditions) Has(cond EmptyConditions) bool {
	return c&cond != 0
}
