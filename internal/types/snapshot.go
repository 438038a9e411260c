package types

import "time"

// MemberSnapshot is the status-surface view of one queue member.
type MemberSnapshot struct {
	Interface  string      `json:"interface"`
	Name       string      `json:"membername"`
	Penalty    int         `json:"penalty"`
	Paused     bool        `json:"paused"`
	Status     DeviceState `json:"status"`
	StatusName string      `json:"statusName"`
	CallsTaken int         `json:"callsTaken"`
	LastCall   *time.Time  `json:"lastCall,omitempty"`
	InCall     bool        `json:"inCall"`
	Source     MemberSource `json:"source"`
}

// WaiterSnapshot is the status-surface view of one waiting caller.
type WaiterSnapshot struct {
	CallID   string    `json:"callId"`
	Position int       `json:"position"`
	Priority int       `json:"priority"`
	JoinedAt time.Time `json:"joinedAt"`
	WaitSecs float64   `json:"waitSecs"`
}

// AlertSeverity grades a queue alert.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// QueueAlert is one triggered alert rule on a queue snapshot.
type QueueAlert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// QueueSnapshot is the one-shot view of a queue returned by the status
// surface. Read-only; never fed back into routing decisions.
type QueueSnapshot struct {
	Name             string           `json:"name"`
	Strategy         Strategy         `json:"strategy"`
	Weight           int              `json:"weight"`
	WaitingCount     int              `json:"waitingCount"`
	LongestWaitSecs  float64          `json:"longestWaitSecs"`
	HoldTimeSecs     int              `json:"holdTimeSecs"`
	TalkTimeSecs     int              `json:"talkTimeSecs"`
	Completed        int              `json:"completed"`
	Abandoned        int              `json:"abandoned"`
	CompletedInSL    int              `json:"completedInSL"`
	ServiceLevelSecs int              `json:"serviceLevelSecs"`
	ServiceLevelPct  float64          `json:"serviceLevelPct"`
	AvailableMembers int              `json:"availableMembers"`
	Members          []MemberSnapshot `json:"members"`
	Waiters          []WaiterSnapshot `json:"waiters,omitempty"`
	Alerts           []QueueAlert     `json:"alerts,omitempty"`
}
