package alerts

import (
	"fmt"
	"time"

	"github.com/dialdesk/acd/internal/types"
)

// Thresholds for the queue alert rules. Wait thresholds are per-caller
// longest wait; the service-level rule only fires with enough completed
// calls to mean anything.
const (
	longWaitWarn     = 2 * time.Minute
	longWaitCritical = 5 * time.Minute
	slFloorPct       = 80.0
	slMinCompleted   = 10
	starvedWaiting   = 25
)

// CheckQueueAlerts evaluates alert rules for a slice of queue snapshots,
// mutating each snapshot's Alerts field in place.
func CheckQueueAlerts(snapshots []types.QueueSnapshot) {
	for i := range snapshots {
		snapshots[i].Alerts = nil

		longest := time.Duration(snapshots[i].LongestWaitSecs * float64(time.Second))
		switch {
		case longest > longWaitCritical:
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "wait_long",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("longest wait %s", formatDuration(longest)),
			})
		case longest > longWaitWarn:
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "wait_long",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("longest wait %s", formatDuration(longest)),
			})
		}

		if snapshots[i].Completed >= slMinCompleted && snapshots[i].ServiceLevelPct < slFloorPct {
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "service_level",
				Severity: types.SeverityWarning,
				Message:  fmt.Sprintf("service level %.1f%%", snapshots[i].ServiceLevelPct),
			})
		}

		if snapshots[i].WaitingCount >= starvedWaiting && snapshots[i].AvailableMembers == 0 {
			snapshots[i].Alerts = append(snapshots[i].Alerts, types.QueueAlert{
				Rule:     "starved",
				Severity: types.SeverityCritical,
				Message:  fmt.Sprintf("%d waiting, no members available", snapshots[i].WaitingCount),
			})
		}
	}
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}
