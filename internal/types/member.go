package types

// MemberSource records where a member definition came from. Static members
// survive everything, realtime members are owned by the directory database,
// dynamic members were added at runtime and are persisted back out.
type MemberSource string

const (
	SourceStatic   MemberSource = "static"
	SourceRealtime MemberSource = "realtime"
	SourceDynamic  MemberSource = "dynamic"
)

// AutoPause controls whether a member is paused automatically after a
// ring-no-answer.
type AutoPause string

const (
	AutoPauseOff AutoPause = "no"
	AutoPauseOn  AutoPause = "yes"
	AutoPauseAll AutoPause = "all" // pause in every queue sharing the interface
)

// ParseAutoPause maps a config value to an AutoPause policy, defaulting
// to off for anything unrecognized.
func ParseAutoPause(v string) AutoPause {
	switch v {
	case "yes", "true", "1":
		return AutoPauseOn
	case "all":
		return AutoPauseAll
	}
	return AutoPauseOff
}

// MemberConfig is the directory-service shape of one member definition.
type MemberConfig struct {
	Interface      string       `json:"interface"`
	StateInterface string       `json:"state_interface,omitempty"`
	Name           string       `json:"membername,omitempty"`
	Penalty        int          `json:"penalty"`
	Paused         bool         `json:"paused"`
	PausedReason   string       `json:"paused_reason,omitempty"`
	RingInUse      *bool        `json:"ringinuse,omitempty"`
	UniqueID       string       `json:"uniqueid,omitempty"`
	Source         MemberSource `json:"source,omitempty"`
}
