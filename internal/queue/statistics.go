package queue

import (
	"sync"
	"time"

	"github.com/dialdesk/acd/internal/member"
	"github.com/dialdesk/acd/internal/types"
)

// Statistics is the reload-surviving half of a queue: the waiting list,
// the member roster and the live counters. All generations of a same-named
// Queue share one Statistics; it is reference-counted and destroyed only
// when the last generation is dropped.
type Statistics struct {
	mu   sync.Mutex
	name string
	refs int

	members     map[string]*member.Member // keyed by dial interface
	memberOrder []string                  // stable roster order for position-based strategies

	waiting []*Entry

	holdTimeSecs  int // exponentially weighted averages
	talkTimeSecs  int
	completed     int
	abandoned     int
	completedInSL int

	rrPos   int
	wrapped bool
}

func newStatistics(name string) *Statistics {
	return &Statistics{
		name:    name,
		members: make(map[string]*member.Member),
	}
}

func (s *Statistics) Name() string { return s.name }

// --- waiting list ---

// Insert links a new entry into the waiting list: entries with strictly
// higher priority precede it, equal priority honors the caller-requested
// position while yielding to higher-priority callers already occupying it.
// Fails with ErrQueueFull when maxLen is enforced and exceeded.
func (s *Statistics) Insert(e *Entry, requestedPos, maxLen int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxLen > 0 && len(s.waiting) >= maxLen {
		return ErrQueueFull
	}

	// First index a lower-priority entry occupies; we may not go past it.
	limit := len(s.waiting)
	for i, w := range s.waiting {
		if w.priority < e.priority {
			limit = i
			break
		}
	}

	idx := limit
	if requestedPos > 0 && requestedPos-1 < limit {
		idx = requestedPos - 1
		// Yield to higher-priority callers already at the requested slot.
		for idx < limit && s.waiting[idx].priority > e.priority {
			idx++
		}
	}

	s.waiting = append(s.waiting, nil)
	copy(s.waiting[idx+1:], s.waiting[idx:])
	s.waiting[idx] = e
	s.renumberLocked()
	return nil
}

// Remove unlinks the entry and renumbers the remaining waiters. Returns
// false if the entry was already gone.
func (s *Statistics) Remove(e *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, w := range s.waiting {
		if w == e {
			s.waiting = append(s.waiting[:i], s.waiting[i+1:]...)
			e.mu.Lock()
			e.left = true
			e.mu.Unlock()
			s.renumberLocked()
			return true
		}
	}
	return false
}

// renumberLocked reassigns dense 1-based positions. Caller holds s.mu;
// list-then-entry is the only lock order used here.
func (s *Statistics) renumberLocked() {
	for i, e := range s.waiting {
		e.setPos(i + 1)
	}
}

// WaitingCount returns the number of callers in the list.
func (s *Statistics) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// Waiters returns a copy of the current waiting list in order.
func (s *Statistics) Waiters() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, len(s.waiting))
	copy(out, s.waiting)
	return out
}

// AheadNotDialing counts the entries strictly ahead of e that are not
// themselves already inside a ring cycle. Used by the turn check.
func (s *Statistics) AheadNotDialing(e *Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, w := range s.waiting {
		if w == e {
			break
		}
		if !w.Dialing() {
			n++
		}
	}
	return n
}

// LongestWaitSecs is the wait time of the head caller, 0 when empty.
func (s *Statistics) LongestWaitSecs(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiting) == 0 {
		return 0
	}
	return now.Sub(s.waiting[0].joined).Seconds()
}

// --- member roster ---

// AddMember links a member into the roster. A duplicate dial interface or
// duplicate non-empty unique id rejects the addition and keeps the
// original entry.
func (s *Statistics) AddMember(m *member.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.Interface()]; ok {
		return ErrDuplicateMember
	}
	if uid := m.UniqueID(); uid != "" {
		for _, existing := range s.members {
			if existing.UniqueID() == uid {
				return ErrDuplicateMember
			}
		}
	}

	s.members[m.Interface()] = m
	s.memberOrder = append(s.memberOrder, m.Interface())
	return nil
}

// RemoveMember unlinks a member by dial interface.
func (s *Statistics) RemoveMember(iface string) (*member.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[iface]
	if !ok {
		return nil, false
	}
	delete(s.members, iface)
	for i, name := range s.memberOrder {
		if name == iface {
			s.memberOrder = append(s.memberOrder[:i], s.memberOrder[i+1:]...)
			break
		}
	}
	return m, true
}

// FindMember returns the member with the given dial interface.
func (s *Statistics) FindMember(iface string) (*member.Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[iface]
	return m, ok
}

// Members returns the roster in stable insertion order.
func (s *Statistics) Members() []*member.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*member.Member, 0, len(s.memberOrder))
	for _, iface := range s.memberOrder {
		out = append(out, s.members[iface])
	}
	return out
}

// MemberCount returns the roster size.
func (s *Statistics) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// --- counters ---

// ewma folds a new sample into a weighted running average, weighting
// history three to one.
func ewma(old, sample int) int {
	if old == 0 {
		return sample
	}
	return (old*3 + sample) / 4
}

// RecordConnect folds the answered caller's hold time into the average
// and counts a service-level hit when the wait was inside the threshold.
func (s *Statistics) RecordConnect(holdSecs, slSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdTimeSecs = ewma(s.holdTimeSecs, holdSecs)
	if slSecs > 0 && holdSecs <= slSecs {
		s.completedInSL++
	}
}

// RecordCompleted folds the talk time in and bumps the completed counter.
func (s *Statistics) RecordCompleted(talkSecs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.talkTimeSecs = ewma(s.talkTimeSecs, talkSecs)
	s.completed++
}

// RecordAbandoned bumps the abandoned counter.
func (s *Statistics) RecordAbandoned() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned++
}

// Counters returns the live counter values.
func (s *Statistics) Counters() (holdTime, talkTime, completed, abandoned, completedInSL int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holdTimeSecs, s.talkTimeSecs, s.completed, s.abandoned, s.completedInSL
}

// --- round-robin cursor ---

// Cursor returns the queue-global round-robin position.
func (s *Statistics) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rrPos
}

// AdvanceCursor moves the cursor forward exactly one place, wrapping on
// the roster size. Called once per completed ring cycle, never per
// individual attempt.
func (s *Statistics) AdvanceCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rrPos++
	if s.rrPos >= len(s.members) {
		s.rrPos = 0
		s.wrapped = true
	}
}

// SetCursor pins the cursor; used when a wrapped cycle found its answer
// behind the cursor.
func (s *Statistics) SetCursor(pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos < 0 || pos >= len(s.members) {
		pos = 0
	}
	s.rrPos = pos
}

// --- snapshot ---

// Snapshot assembles the status-surface view under one lock acquisition
// per contained object.
func (s *Statistics) Snapshot(q *Queue, now time.Time, includeWaiters bool) types.QueueSnapshot {
	members := s.Members()

	s.mu.Lock()
	snap := types.QueueSnapshot{
		Name:             s.name,
		Strategy:         q.Strategy(),
		Weight:           q.Weight(),
		WaitingCount:     len(s.waiting),
		HoldTimeSecs:     s.holdTimeSecs,
		TalkTimeSecs:     s.talkTimeSecs,
		Completed:        s.completed,
		Abandoned:        s.abandoned,
		CompletedInSL:    s.completedInSL,
		ServiceLevelSecs: q.ServiceLevelSecs(),
	}
	if len(s.waiting) > 0 {
		snap.LongestWaitSecs = now.Sub(s.waiting[0].joined).Seconds()
	}
	if s.completed > 0 {
		snap.ServiceLevelPct = float64(s.completedInSL) / float64(s.completed) * 100.0
	}
	var waiters []*Entry
	if includeWaiters {
		waiters = make([]*Entry, len(s.waiting))
		copy(waiters, s.waiting)
	}
	s.mu.Unlock()

	for _, m := range members {
		if Callable(m, q, now) {
			snap.AvailableMembers++
		}
		snap.Members = append(snap.Members, m.Snapshot())
	}
	for _, e := range waiters {
		snap.Waiters = append(snap.Waiters, types.WaiterSnapshot{
			CallID:   e.ID(),
			Position: e.Position(),
			Priority: e.Priority(),
			JoinedAt: e.JoinedAt(),
			WaitSecs: now.Sub(e.JoinedAt()).Seconds(),
		})
	}
	return snap
}
