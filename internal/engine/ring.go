package engine

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/dialdesk/acd/internal/member"
	"github.com/dialdesk/acd/internal/metrics"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/session"
	"github.com/dialdesk/acd/internal/strategy"
	"github.com/dialdesk/acd/internal/telephony"
	"github.com/dialdesk/acd/internal/types"
)

// attempt is the cycle-local ring state for one member (or one forward of
// one member). Attempts never outlive their ring cycle.
type attempt struct {
	member  *member.Member
	target  string
	metric  int
	wrapped bool

	leg     telephony.Leg
	ringing bool
	dead    bool
	started time.Time
}

// legEvent is a tagged signal fanned in from one leg's forwarder goroutine.
type legEvent struct {
	att    *attempt
	sig    telephony.Signal
	closed bool
}

// ringCycle runs one full ring cycle for the entry: collect candidates,
// dial per strategy, multiplex the leg signals, and finish the flow when a
// member answers. Returns done=false when the cycle ends unanswered and
// the caller should retry after the queue's retry interval.
func (e *Engine) ringCycle(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, opts Options) (Result, bool) {
	entry.SetDialing(true)
	defer entry.SetDialing(false)

	now := time.Now()
	candidates := e.buildCandidates(q, entry, now)
	if len(candidates) == 0 {
		return Result{}, false
	}

	// The cursor moves exactly once per cycle however the cycle ends.
	switch q.Strategy() {
	case types.StrategyLinear:
		defer entry.AdvanceLinearCursor(q.Stats().MemberCount())
	case types.StrategyRoundRobinMemory, types.StrategyRoundRobinOrder:
		defer q.Stats().AdvanceCursor()
	}

	// cycleDone releases the forwarder goroutines of legs that are still
	// alive when the cycle ends.
	cycleDone := make(chan struct{})
	defer close(cycleDone)
	legEvents := make(chan legEvent, 16)

	pending := candidates
	live := 0

	dialNext := func() {
		for len(pending) > 0 {
			best := pending[0].metric
			tier := 1
			if q.Strategy() == types.StrategyRingAll {
				for tier < len(pending) && pending[tier].metric == best {
					tier++
				}
			}
			dialed := 0
			for _, att := range pending[:tier] {
				if e.ringEntry(ctx, sess, q, entry, att, legEvents, cycleDone) {
					dialed++
				}
			}
			pending = pending[tier:]
			if dialed > 0 {
				live += dialed
				return
			}
		}
	}

	dialNext()
	if live == 0 {
		return Result{}, false
	}

	deadline := time.NewTimer(time.Duration(q.TimeoutSecs()) * time.Second)
	defer deadline.Stop()

	var winner *attempt
	all := candidates

wait:
	for {
		select {
		case <-ctx.Done():
			e.abortCycle(all)
			return e.leave(sess, q, entry, types.ExitAbandoned, time.Now()), true

		case ev, ok := <-sess.Events():
			if !ok || ev.Kind == session.EventHangup {
				e.abortCycle(all)
				return e.leave(sess, q, entry, types.ExitAbandoned, time.Now()), true
			}
			if ev.Kind == session.EventDigit {
				if res, done := e.handleDigit(sess, q, entry, ev.Digit); done {
					e.abortCycle(all)
					return res, true
				}
			}

		case <-deadline.C:
			// Ring window over: everyone still ringing gets an RNA.
			for _, att := range all {
				if att.ringing {
					e.ringNoAnswer(q, entry, att, time.Now())
				}
			}
			e.abortCycle(all)
			return Result{}, false

		case le := <-legEvents:
			att := le.att
			if le.closed {
				if att.ringing {
					// Leg died without answering.
					e.ringNoAnswer(q, entry, att, time.Now())
					e.dropAttempt(att)
					live--
				}
				if live == 0 {
					dialNext()
					if live == 0 {
						return Result{}, false
					}
				}
				continue
			}

			switch le.sig.Kind {
			case telephony.SignalAnswer:
				if !att.ringing {
					// Late answer after another leg won; dump it.
					att.leg.Hangup()
					continue
				}
				winner = att
				break wait

			case telephony.SignalBusy, telephony.SignalCongestion:
				e.dropAttempt(att)
				live--
				if q.TimeoutRestart() {
					if !deadline.Stop() {
						select {
						case <-deadline.C:
						default:
						}
					}
					deadline.Reset(time.Duration(q.TimeoutSecs()) * time.Second)
				}
				if live == 0 {
					dialNext()
					if live == 0 {
						return Result{}, false
					}
				}

			case telephony.SignalHangup:
				e.ringNoAnswer(q, entry, att, time.Now())
				e.dropAttempt(att)
				live--
				if live == 0 {
					dialNext()
					if live == 0 {
						return Result{}, false
					}
				}

			case telephony.SignalForward:
				e.dropAttempt(att)
				live--
				if fwd := e.followForward(ctx, sess, q, entry, att, le.sig.Target, legEvents, cycleDone, opts); fwd != nil {
					all = append(all, fwd)
					live++
				} else if live == 0 {
					dialNext()
					if live == 0 {
						return Result{}, false
					}
				}

			case telephony.SignalRinging, telephony.SignalConnectedLine, telephony.SignalRedirect:
				// Progress only; nothing for the cycle to decide.
			}
		}
	}

	// First answer wins; every other live leg is dumped.
	winner.ringing = false
	for _, att := range all {
		if att != winner && att.ringing {
			att.leg.Hangup()
			att.ringing = false
			att.dead = true
			att.member.Device().Unreserve()
		}
	}

	return e.connect(ctx, sess, q, entry, winner), true
}

// buildCandidates snapshots the roster into scored attempts, cheapest
// metric first. The entry's penalty band filters candidates unless the
// roster is small enough for penaltymemberslimit to disregard bands.
func (e *Engine) buildCandidates(q *queue.Queue, entry *queue.Entry, now time.Time) []*attempt {
	members := q.Stats().Members()
	disregard := q.PenaltyMembersLimit() > 0 && len(members) < q.PenaltyMembersLimit()

	cursor := q.Stats().Cursor()
	if q.Strategy() == types.StrategyLinear {
		cursor = entry.LinearCursor()
	}

	out := make([]*attempt, 0, len(members))
	for pos, m := range members {
		if !disregard && !entry.AcceptsPenalty(m.Penalty()) {
			continue
		}
		penalty := m.Penalty()
		if disregard {
			penalty = 0
		}
		metric, wrapped, err := strategy.Compute(q.Strategy(), strategy.Input{
			Penalty:    penalty,
			Pos:        pos,
			Cursor:     cursor,
			CallsTaken: m.CallsTaken(),
			LastCall:   m.LastCall(),
			Now:        now,
		})
		if err != nil {
			e.logger.Error().Err(err).Str("queue", q.Name()).Msg("metric computation failed")
			continue
		}
		out = append(out, &attempt{
			member:  m,
			target:  m.Interface(),
			metric:  metric,
			wrapped: wrapped,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].metric < out[j].metric })
	return out
}

// ringEntry revalidates one attempt at dial time and, if it still holds,
// reserves the device, originates the leg, and starts the forwarder that
// fans its signals into the cycle's event channel.
func (e *Engine) ringEntry(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, att *attempt, legEvents chan<- legEvent, cycleDone <-chan struct{}) bool {
	m := att.member
	now := time.Now()

	// Conditions can have changed since the candidate snapshot.
	if e.compareWeight(q, m) {
		e.logger.Debug().
			Str("queue", q.Name()).
			Str("member", m.Interface()).
			Msg("held for a heavier queue")
		att.dead = true
		return false
	}
	if paused, _ := m.Paused(); paused || m.Dead() || m.InWrapup(q.WrapupSecs(), now) {
		att.dead = true
		return false
	}
	if !queue.Callable(m, q, now) {
		att.dead = true
		return false
	}
	if !entry.MarkDialed(att.target) {
		att.dead = true
		return false
	}

	m.Device().Reserve()

	leg, err := e.tel.Originate(ctx, att.target, telephony.CallerContext{
		CallID:   entry.ID(),
		CallerID: sess.CallerID(),
	})
	if err != nil {
		m.Device().Unreserve()
		att.dead = true
		e.logger.Warn().Err(err).
			Str("queue", q.Name()).
			Str("member", m.Interface()).
			Msg("originate failed")
		return false
	}
	att.leg = leg
	if err := e.tel.Place(ctx, leg); err != nil {
		leg.Hangup()
		m.Device().Unreserve()
		att.dead = true
		return false
	}

	att.ringing = true
	att.started = now
	metrics.RingAttempts.WithLabelValues(q.Name()).Inc()

	go forward(att, legEvents, cycleDone)
	return true
}

// forward copies one leg's signals into the cycle's shared channel,
// bailing out the moment the cycle ends so a dead cycle never blocks a
// transport goroutine.
func forward(att *attempt, legEvents chan<- legEvent, cycleDone <-chan struct{}) {
	for {
		select {
		case sig, ok := <-att.leg.Signals():
			if !ok {
				select {
				case legEvents <- legEvent{att: att, closed: true}:
				case <-cycleDone:
				}
				return
			}
			select {
			case legEvents <- legEvent{att: att, sig: sig}:
			case <-cycleDone:
				return
			}
		case <-cycleDone:
			return
		}
	}
}

// followForward chases a call-forward by dialing the new target on a fresh
// leg under the same member, unless forwards are disallowed or the target
// was already tried for this caller.
func (e *Engine) followForward(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, from *attempt, target string, legEvents chan<- legEvent, cycleDone <-chan struct{}, opts Options) *attempt {
	if opts.DisallowForwards || target == "" {
		return nil
	}
	if !entry.MarkDialed(target) {
		return nil
	}

	att := &attempt{member: from.member, target: target, metric: from.metric}
	leg, err := e.tel.Originate(ctx, target, telephony.CallerContext{
		CallID:   entry.ID(),
		CallerID: sess.CallerID(),
	})
	if err != nil {
		return nil
	}
	att.leg = leg
	if err := e.tel.Place(ctx, leg); err != nil {
		leg.Hangup()
		return nil
	}

	att.member.Device().Reserve()
	att.ringing = true
	att.started = time.Now()
	go forward(att, legEvents, cycleDone)
	return att
}

// dropAttempt retires a leg that will not answer.
func (e *Engine) dropAttempt(att *attempt) {
	if att.leg != nil && att.ringing {
		att.leg.Hangup()
	}
	if att.ringing {
		att.member.Device().Unreserve()
	}
	att.ringing = false
	att.dead = true
}

// abortCycle dumps every leg still ringing.
func (e *Engine) abortCycle(all []*attempt) {
	for _, att := range all {
		if att.ringing {
			att.leg.Hangup()
			att.member.Device().Unreserve()
			att.ringing = false
			att.dead = true
		}
	}
}

// ringNoAnswer records an unanswered ring: the queue-log event and, when
// the queue auto-pauses, the pause fan-out.
func (e *Engine) ringNoAnswer(q *queue.Queue, entry *queue.Entry, att *attempt, now time.Time) {
	ringTime := now.Sub(att.started)
	e.sink.Log(q.Name(), entry.ID(), att.member.Interface(), types.EventRingNoAnswer, rnaInfo(ringTime))
	metrics.RingNoAnswer.WithLabelValues(q.Name(), att.member.Interface()).Inc()

	mode := q.AutoPause()
	if mode == types.AutoPauseOff {
		return
	}
	m := att.member
	if delay := q.AutoPauseDelay(); delay > 0 {
		if last := m.LastCall(); !last.IsZero() && now.Sub(last) < time.Duration(delay)*time.Second {
			return
		}
	}

	if mode == types.AutoPauseAll {
		for _, qm := range e.queues.MembersByInterface(m.Interface()) {
			qm.Member.SetPaused(true, "Auto-Pause")
			e.sink.Log(qm.Queue.Name(), "NONE", m.Interface(), types.EventPause, "Auto-Pause")
		}
		return
	}
	m.SetPaused(true, "Auto-Pause")
	e.sink.Log(q.Name(), "NONE", m.Interface(), types.EventPause, "Auto-Pause")
}

// connect finishes the flow for the answering member: account the device,
// unlink the caller, report hold time, bridge, and settle the counters
// when the bridge ends.
func (e *Engine) connect(ctx context.Context, sess session.Session, q *queue.Queue, entry *queue.Entry, winner *attempt) Result {
	m := winner.member
	now := time.Now()

	m.Device().Unreserve()
	m.Device().AddActive()
	m.StartCall()

	q.Stats().Remove(entry)
	waitSecs := entry.WaitSecs(now)
	q.Stats().RecordConnect(waitSecs, q.ServiceLevelSecs())
	metrics.CallsConnected.WithLabelValues(q.Name()).Inc()
	metrics.ObserveHold(q.Name(), now.Sub(entry.JoinedAt()))

	e.sink.Log(q.Name(), entry.ID(), m.Interface(), types.EventConnect,
		strconv.Itoa(waitSecs), winner.leg.ID(),
		strconv.Itoa(int(now.Sub(winner.started).Seconds())))

	if q.ReportHoldTime() {
		_ = e.tel.Announce(ctx, winner.leg, "queue-reporthold:"+strconv.Itoa(waitSecs))
	}

	sess.StopMusic()

	outcome, err := e.tel.Bridge(ctx, sess.ID(), winner.leg, telephony.BridgeOptions{})
	endedAt := time.Now()

	m.FinishCall(endedAt)
	m.Device().RemoveActive()
	if q.SharedLastCall() {
		for _, qm := range e.queues.MembersByInterface(m.Interface()) {
			if qm.Member != m {
				qm.Member.RecordSharedCall(endedAt)
			}
		}
	}

	if err != nil {
		// The bridge never came up; the caller already left the waiting
		// list, so this counts as a completed zero-length call.
		e.logger.Error().Err(err).
			Str("queue", q.Name()).
			Str("member", m.Interface()).
			Msg("bridge failed")
		q.Stats().RecordCompleted(0)
		return Result{Reason: types.ExitBridged, Member: m.Interface(), WaitSecs: waitSecs}
	}

	q.Stats().RecordCompleted(outcome.TalkSecs)
	event := types.EventCompleteAgent
	if outcome.CallerHungUp {
		event = types.EventCompleteCaller
	}
	e.sink.Log(q.Name(), entry.ID(), m.Interface(), event,
		strconv.Itoa(waitSecs), strconv.Itoa(outcome.TalkSecs),
		strconv.Itoa(entry.OriginalPosition()))

	return Result{
		Reason:   types.ExitBridged,
		Member:   m.Interface(),
		WaitSecs: waitSecs,
		TalkSecs: outcome.TalkSecs,
	}
}
