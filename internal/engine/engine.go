// Package engine runs the caller flows: joining a queue, the wait state
// machine, ring orchestration with the answer multiplexer, and cross-queue
// preemption. One goroutine per waiting caller; there is no global
// scheduler thread.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/metrics"
	"github.com/dialdesk/acd/internal/qlog"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/rules"
	"github.com/dialdesk/acd/internal/session"
	"github.com/dialdesk/acd/internal/telephony"
	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

const defaultTick = time.Second

// Engine coordinates the registries, the transport and the logging sink
// for every caller flow.
type Engine struct {
	queues  *queue.Registry
	devices *device.Registry
	rules   *rules.Registry
	tel     telephony.Service
	sink    *qlog.Sink
	logger  zerolog.Logger
	tick    time.Duration
}

// New creates an engine. All collaborators are injected; the engine never
// reaches for ambient singletons.
func New(queues *queue.Registry, devices *device.Registry, ruleReg *rules.Registry, tel telephony.Service, sink *qlog.Sink, logger zerolog.Logger) *Engine {
	return &Engine{
		queues:  queues,
		devices: devices,
		rules:   ruleReg,
		tel:     tel,
		sink:    sink,
		logger:  logger,
		tick:    defaultTick,
	}
}

// SetTick overrides the wait-state re-evaluation interval. Tests shorten
// it; production keeps the default one second.
func (e *Engine) SetTick(d time.Duration) {
	if d > 0 {
		e.tick = d
	}
}

// Options are the caller-supplied join parameters.
type Options struct {
	Queue    string
	Priority int
	Position int // requested insertion position, 0 for tail

	// Penalty band filter. MaxPenalty -1 means unbounded; both zero
	// disables the filter.
	MinPenalty int
	MaxPenalty int

	// TimeoutSecs bounds the caller's total time in queue; 0 waits
	// until another exit condition fires.
	TimeoutSecs int

	RuleName string

	// DisallowForwards refuses call-forward signals instead of chasing
	// the forwarded target.
	DisallowForwards bool

	MusicClass string
}

// Result is the typed outcome of one caller flow.
type Result struct {
	Reason   types.ExitReason
	Member   string // interface bridged to, for ExitBridged
	WaitSecs int
	TalkSecs int
}

// Queue runs a caller through the full wait state machine and returns the
// typed exit outcome. It blocks until the caller is bridged, leaves, or is
// cancelled; cancellation at any point tears down in-flight attempts.
func (e *Engine) Queue(ctx context.Context, sess session.Session, opts Options) (Result, error) {
	q, err := e.queues.Find(opts.Queue)
	if err != nil {
		return Result{}, err
	}

	now := time.Now()
	minPen, maxPen := opts.MinPenalty, opts.MaxPenalty
	if minPen == 0 && maxPen == 0 {
		maxPen = -1
	}
	bandActive := maxPen >= 0 || minPen > 0

	// Join-empty gate.
	if conds := q.JoinEmpty(); conds != types.EmptyNever {
		band := bandFunc(bandActive, minPen, maxPen)
		if !queue.MemberAvailable(q, conds, band, now) {
			e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventExitEmpty, "0", "0", "0")
			metrics.CallsExited.WithLabelValues(q.Name(), string(types.ExitJoinEmpty)).Inc()
			return Result{Reason: types.ExitJoinEmpty}, nil
		}
	}

	req := queue.JoinRequest{
		CallID:     sess.ID(),
		Priority:   opts.Priority,
		Position:   opts.Position,
		MinPenalty: minPen,
		MaxPenalty: maxPen,
	}
	if opts.TimeoutSecs > 0 {
		req.ExpireAt = now.Add(time.Duration(opts.TimeoutSecs) * time.Second)
	}
	if name := ruleName(opts.RuleName, q); name != "" {
		req.RuleList = e.rules.Find(name)
	}

	entry := queue.NewEntry(q, req, now)
	if err := q.Stats().Insert(entry, opts.Position, q.MaxLen()); err != nil {
		metrics.CallsExited.WithLabelValues(q.Name(), string(types.ExitFull)).Inc()
		return Result{Reason: types.ExitFull}, nil
	}

	e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventEnterQueue,
		sess.CallerID().Number, strconv.Itoa(entry.Position()))
	metrics.CallsEnqueued.WithLabelValues(q.Name()).Inc()

	sess.StartMusic(opts.MusicClass)
	defer sess.StopMusic()

	return e.wait(ctx, sess, q, entry, opts)
}

// wait is the Waiting/Eligible loop: once per tick (or on a caller event)
// re-check terminal conditions, fire due penalty rules, announce, and test
// turn eligibility; when eligible, run a ring cycle and either finish or
// loop back.
func (e *Engine) wait(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, opts Options) (Result, error) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		now := time.Now()

		if entry.Expired(now) {
			return e.leave(sess, q, entry, types.ExitTimeout, now), nil
		}

		if conds := q.LeaveWhenEmpty(); conds != types.EmptyNever {
			min, max := entry.PenaltyBand()
			band := bandFunc(max >= 0 || min > 0, min, max)
			if !queue.MemberAvailable(q, conds, band, now) {
				return e.leave(sess, q, entry, types.ExitLeaveEmpty, now), nil
			}
		}

		if entry.UpdateRule(now) {
			min, max := entry.PenaltyBand()
			e.logger.Debug().
				Str("queue", q.Name()).
				Str("call_id", entry.ID()).
				Int("min_penalty", min).
				Int("max_penalty", max).
				Msg("penalty rule applied")
		}

		e.maybeAnnounce(ctx, sess, q, entry, now)

		if e.isOurTurn(q, entry, now) {
			res, done := e.ringCycle(ctx, sess, q, entry, opts)
			if done {
				return res, nil
			}
			// Retrying: pause before looping back into the wait state.
			res, done, alive := e.sleep(ctx, sess, q, entry, time.Duration(q.RetrySecs())*time.Second)
			if done {
				return res, nil
			}
			if !alive {
				return e.callerGone(ctx, sess, q, entry), nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return e.leave(sess, q, entry, types.ExitAbandoned, time.Now()), nil
		case ev, ok := <-sess.Events():
			if !ok || ev.Kind == session.EventHangup {
				return e.leave(sess, q, entry, types.ExitAbandoned, time.Now()), nil
			}
			if ev.Kind == session.EventDigit {
				if res, done := e.handleDigit(sess, q, entry, ev.Digit); done {
					return res, nil
				}
			}
		case <-ticker.C:
		}
	}
}

// sleep waits out the retry interval while staying responsive to caller
// hangup and exit digits. done reports a digit exit with its Result;
// alive reports whether the caller is still connected.
func (e *Engine) sleep(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, d time.Duration) (res Result, done, alive bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, false, false
		case ev, ok := <-sess.Events():
			if !ok || ev.Kind == session.EventHangup {
				return Result{}, false, false
			}
			if ev.Kind == session.EventDigit {
				if res, exited := e.handleDigit(sess, q, entry, ev.Digit); exited {
					return res, true, true
				}
			}
		case <-timer.C:
			return Result{}, false, true
		}
	}
}

// callerGone finalizes an abandon detected outside the main select.
func (e *Engine) callerGone(_ context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry) Result {
	return e.leave(sess, q, entry, types.ExitAbandoned, time.Now())
}

// handleDigit buffers a digit and exits the queue when the buffer matches
// a dialplan exit destination.
func (e *Engine) handleDigit(sess session.Session, q *queue.Queue, entry *queue.Entry, d rune) (Result, bool) {
	digits := entry.PushDigit(d)
	if sess.ExistsExtension(digits) {
		return e.leave(sess, q, entry, types.ExitWithKey, time.Now()), true
	}
	if !sess.ExistsExtension(digits) && len(digits) >= 8 {
		// No exit can match anymore; start over.
		entry.ClearDigits()
	}
	return Result{}, false
}

// isOurTurn applies the turn rule: the number of not-already-dialing
// callers ahead must be smaller than the number of available members, and
// with autofill off (or ring-all) only the head of the line is served.
func (e *Engine) isOurTurn(q *queue.Queue, entry *queue.Entry, now time.Time) bool {
	avail := queue.NumAvailable(q, now)
	if avail == 0 {
		return false
	}
	if !q.Autofill() && entry.Position() != 1 {
		return false
	}
	return q.Stats().AheadNotDialing(entry) < avail
}

// leave unlinks the entry, renumbers the peers, and emits the typed exit.
func (e *Engine) leave(sess session.Session, q *queue.Queue, entry *queue.Entry, reason types.ExitReason, now time.Time) Result {
	q.Stats().Remove(entry)

	waitSecs := entry.WaitSecs(now)
	pos := strconv.Itoa(entry.Position())
	origPos := strconv.Itoa(entry.OriginalPosition())
	wait := strconv.Itoa(waitSecs)

	switch reason {
	case types.ExitAbandoned:
		q.Stats().RecordAbandoned()
		e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventAbandon, pos, origPos, wait)
		metrics.CallsAbandoned.WithLabelValues(q.Name()).Inc()
	case types.ExitTimeout:
		e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventExitWithTimeout, pos, origPos, wait)
	case types.ExitLeaveEmpty:
		e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventExitEmpty, pos, origPos, wait)
	case types.ExitWithKey:
		e.sink.Log(q.Name(), sess.ID(), "NONE", types.EventExitWithKey, entry.Digits(), pos, origPos, wait)
	}
	metrics.CallsExited.WithLabelValues(q.Name(), string(reason)).Inc()

	return Result{Reason: reason, WaitSecs: waitSecs}
}

// maybeAnnounce plays position and periodic announcements, each on its own
// rate limit.
func (e *Engine) maybeAnnounce(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, now time.Time) {
	if freq := q.AnnounceFrequency(); freq > 0 {
		lastPos, lastAt := entry.LastAnnounce()
		pos := entry.Position()
		due := lastAt.IsZero() || now.Sub(lastAt) >= time.Duration(freq)*time.Second
		unchanged := pos == lastPos
		if due && unchanged && q.MinAnnounceFrequency() > 0 {
			due = now.Sub(lastAt) >= time.Duration(q.MinAnnounceFrequency())*time.Second
		}
		withinLimit := q.AnnouncePositionLimit() == 0 || pos <= q.AnnouncePositionLimit()
		if due && withinLimit {
			hold, _, _, _, _ := q.Stats().Counters()
			if err := sess.AnnouncePosition(ctx, pos, hold); err == nil {
				entry.Announced(pos, now)
			}
		}
	}

	if freq := q.PeriodicAnnounceFrequency(); freq > 0 {
		last := entry.LastPeriodic()
		if last.IsZero() || now.Sub(last) >= time.Duration(freq)*time.Second {
			if err := sess.PlayPrompt(ctx, "queue-periodic-announce"); err == nil {
				entry.PeriodicAnnounced(now)
			}
		}
	}
}

func ruleName(requested string, q *queue.Queue) string {
	if requested != "" {
		return requested
	}
	return q.DefaultRule()
}

// bandFunc builds the penalty filter closure handed to the availability
// checks, or nil when the caller carries no band.
func bandFunc(active bool, min, max int) func(int) bool {
	if !active {
		return nil
	}
	return func(p int) bool {
		if max >= 0 && p > max {
			return false
		}
		return p >= min
	}
}

// rnaInfo formats the RINGNOANSWER payload: ring time in milliseconds.
func rnaInfo(ringTime time.Duration) string {
	return fmt.Sprintf("%d", ringTime.Milliseconds())
}
