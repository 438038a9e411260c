package queue

import (
	"time"

	"github.com/dialdesk/acd/internal/member"
	"github.com/dialdesk/acd/internal/types"
)

// Callable reports whether a member could take a call right now: not
// paused, not in wrapup, and with an effective device state that permits
// a new leg. An occupied device is still callable when the member accepts
// overlapping calls.
func Callable(m *member.Member, q *Queue, now time.Time) bool {
	if paused, _ := m.Paused(); paused {
		return false
	}
	if m.InWrapup(q.WrapupSecs(), now) {
		return false
	}
	switch status := m.Status(); status {
	case types.DeviceNotInUse, types.DeviceUnknown:
		return true
	default:
		return status.InUse() && m.RingInUse()
	}
}

// blocked reports whether a member trips one of the unavailability reasons
// the queue's condition mask cares about. band is the caller's penalty
// filter, nil when no caller context applies.
func blocked(m *member.Member, q *Queue, conds types.EmptyConditions, band func(int) bool, now time.Time) bool {
	if conds.Has(types.CondPaused) {
		if paused, _ := m.Paused(); paused {
			return true
		}
	}
	if conds.Has(types.CondPenalty) && band != nil && !band(m.Penalty()) {
		return true
	}
	if conds.Has(types.CondWrapup) && m.InWrapup(q.WrapupSecs(), now) {
		return true
	}

	switch m.Status() {
	case types.DeviceInUse, types.DeviceBusy, types.DeviceOnHold:
		return conds.Has(types.CondInUse)
	case types.DeviceRinging, types.DeviceRingInUse:
		return conds.Has(types.CondRinging)
	case types.DeviceUnavailable:
		return conds.Has(types.CondUnavailable)
	case types.DeviceInvalid:
		return conds.Has(types.CondInvalid)
	case types.DeviceUnknown:
		return conds.Has(types.CondUnknown)
	}
	return false
}

// MemberAvailable iterates the roster honoring the given condition mask
// and returns true on the first member that clears every configured
// filter. It gates both joining an empty queue and mid-wait abandonment.
func MemberAvailable(q *Queue, conds types.EmptyConditions, band func(int) bool, now time.Time) bool {
	if conds == types.EmptyNever {
		return true
	}
	for _, m := range q.Stats().Members() {
		if !blocked(m, q, conds, band, now) {
			return true
		}
	}
	return false
}

// NumAvailable counts members passing the per-member availability check.
// It short-circuits to 1 as soon as one is found when the strategy is
// ring-all or autofill is disabled, because only the head caller can be
// served in those modes regardless of how many members are free.
func NumAvailable(q *Queue, now time.Time) int {
	avail := 0
	for _, m := range q.Stats().Members() {
		if !Callable(m, q, now) {
			continue
		}
		avail++
		if q.Strategy() == types.StrategyRingAll || !q.Autofill() {
			return 1
		}
	}
	return avail
}
