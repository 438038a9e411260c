package engine

import (
	"time"

	"github.com/dialdesk/acd/internal/member"
	"github.com/dialdesk/acd/internal/queue"
)

// compareWeight reports whether a heavier queue has a claim on this member
// right now, in which case q must not ring them. The scan is read-only:
// the heavier queue's own ring cycles do the actual dialing.
func (e *Engine) compareWeight(q *queue.Queue, m *member.Member) bool {
	now := time.Now()
	for _, other := range e.queues.Queues() {
		if other.Name() == q.Name() || other.Weight() <= q.Weight() {
			continue
		}
		stats := other.Stats()
		if stats.WaitingCount() == 0 {
			continue
		}
		om, ok := stats.FindMember(m.Interface())
		if !ok {
			continue
		}
		if paused, _ := om.Paused(); paused {
			continue
		}
		// The heavier queue only claims the member when it has more
		// callers than members it could serve without this one.
		if stats.WaitingCount() >= queue.NumAvailable(other, now) {
			return true
		}
	}
	return false
}
