package queue

import (
	"sync"
	"time"

	"github.com/dialdesk/acd/internal/rules"
)

// Entry is one waiting caller. It is created on join, mutated by the
// owning caller flow plus position renumbering by peers in the same list,
// and destroyed on leave.
type Entry struct {
	mu sync.Mutex

	id    string // call id
	queue *Queue

	pos     int
	origPos int

	priority   int
	minPenalty int
	maxPenalty int

	joined time.Time
	expire time.Time // zero means no expiry

	lastAnnouncedPos int
	lastAnnounce     time.Time
	lastPeriodic     time.Time

	digits string

	ruleList *rules.List
	ruleIdx  int

	dialed  map[string]bool // interfaces already dialed, stops forward loops
	dialing bool            // currently inside a ring cycle
	left    bool

	linPos int // per-caller cursor for the linear strategy
}

func (e *Entry) ID() string    { return e.id }
func (e *Entry) Queue() *Queue { return e.queue }

func (e *Entry) Position() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

// OriginalPosition is the position the entry held right after joining.
func (e *Entry) OriginalPosition() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.origPos
}

func (e *Entry) setPos(pos int) {
	e.mu.Lock()
	e.pos = pos
	if e.origPos == 0 {
		e.origPos = pos
	}
	e.mu.Unlock()
}

func (e *Entry) Priority() int { return e.priority }

func (e *Entry) JoinedAt() time.Time { return e.joined }

// WaitSecs is the entry's elapsed time in queue.
func (e *Entry) WaitSecs(now time.Time) int {
	return int(now.Sub(e.joined).Seconds())
}

// Expired reports whether the caller-level expiry has passed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.expire.IsZero() && now.After(e.expire)
}

// PenaltyBand returns the entry's current min/max penalty filter.
func (e *Entry) PenaltyBand() (min, max int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.minPenalty, e.maxPenalty
}

// SetPenaltyBand replaces the band, typically after a penalty rule fires.
func (e *Entry) SetPenaltyBand(min, max int) {
	e.mu.Lock()
	e.minPenalty = min
	e.maxPenalty = max
	e.mu.Unlock()
}

// AcceptsPenalty reports whether a member penalty falls inside the
// caller's band. A max of -1 means no upper bound.
func (e *Entry) AcceptsPenalty(penalty int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.maxPenalty >= 0 && penalty > e.maxPenalty {
		return false
	}
	return penalty >= e.minPenalty
}

// UpdateRule fires every penalty rule whose threshold the entry's wait
// time has reached, in order, each at most once. Returns true if the band
// changed.
func (e *Entry) UpdateRule(now time.Time) bool {
	elapsed := e.WaitSecs(now)

	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	for {
		idx := e.ruleList.NextDue(e.ruleIdx, elapsed)
		if idx < 0 {
			break
		}
		min, max := e.minPenalty, e.maxPenalty
		if max < 0 {
			max = 0
		}
		e.minPenalty, e.maxPenalty = e.ruleList.Rules[idx].Apply(min, max)
		e.ruleIdx = idx + 1
		changed = true
	}
	return changed
}

// Digits returns the accumulated DTMF buffer.
func (e *Entry) Digits() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.digits
}

// PushDigit appends one collected DTMF digit and returns the new buffer.
func (e *Entry) PushDigit(d rune) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.digits += string(d)
	return e.digits
}

// ClearDigits resets the DTMF buffer after a failed match.
func (e *Entry) ClearDigits() {
	e.mu.Lock()
	e.digits = ""
	e.mu.Unlock()
}

// MarkDialed records an interface in the forward-loop memo; returns false
// when the interface was already dialed for this caller.
func (e *Entry) MarkDialed(iface string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dialed[iface] {
		return false
	}
	e.dialed[iface] = true
	return true
}

// SetDialing flags the entry as inside (or out of) a ring cycle. Peers
// behind it use the flag when counting how many callers ahead still need
// a member.
func (e *Entry) SetDialing(d bool) {
	e.mu.Lock()
	e.dialing = d
	e.mu.Unlock()
}

func (e *Entry) Dialing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dialing
}

// Left reports whether the entry has been unlinked from the waiting list.
func (e *Entry) Left() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.left
}

// LinearCursor is the per-caller ring position used by the linear
// strategy.
func (e *Entry) LinearCursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linPos
}

// AdvanceLinearCursor moves the caller's linear cursor one place forward,
// wrapping on the roster size. Called once per completed ring cycle.
func (e *Entry) AdvanceLinearCursor(rosterSize int) {
	e.mu.Lock()
	e.linPos++
	if e.linPos >= rosterSize {
		e.linPos = 0
	}
	e.mu.Unlock()
}

// Announced records a position announcement; the wait-state loop uses the
// stamps to rate-limit position and periodic announcements independently.
func (e *Entry) Announced(pos int, at time.Time) {
	e.mu.Lock()
	e.lastAnnouncedPos = pos
	e.lastAnnounce = at
	e.mu.Unlock()
}

func (e *Entry) LastAnnounce() (pos int, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAnnouncedPos, e.lastAnnounce
}

// PeriodicAnnounced stamps the periodic announcement clock.
func (e *Entry) PeriodicAnnounced(at time.Time) {
	e.mu.Lock()
	e.lastPeriodic = at
	e.mu.Unlock()
}

func (e *Entry) LastPeriodic() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPeriodic
}
