package telephony

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Behavior scripts how the loopback transport treats one dial target.
type Behavior struct {
	// Answer the leg after AnswerAfter when set.
	Answer      bool
	AnswerAfter time.Duration
	// Busy/Congestion signal immediately after Place.
	Busy       bool
	Congestion bool
	// ForwardTo redirects the leg to another target after RingFor.
	ForwardTo string
	// HangupAfter ends an unanswered leg after the given ring time
	// (treated as ring-no-answer by the engine).
	HangupAfter time.Duration
	// RingFor delays the ringing signal; zero rings immediately.
	RingFor time.Duration
	// TalkSecs reported by Bridge when the leg was answered.
	TalkSecs int
}

// Loopback is an in-process Service used by tests and the dev binary. Leg
// behavior is scripted per target; unscripted targets ring forever.
type Loopback struct {
	mu        sync.Mutex
	behaviors map[string]Behavior
	placed    []string
	logger    zerolog.Logger
}

// NewLoopback creates a loopback transport.
func NewLoopback(logger zerolog.Logger) *Loopback {
	return &Loopback{
		behaviors: make(map[string]Behavior),
		logger:    logger,
	}
}

// Script installs the behavior for a target.
func (l *Loopback) Script(target string, b Behavior) {
	l.mu.Lock()
	l.behaviors[target] = b
	l.mu.Unlock()
}

// Placed returns the targets placed so far, in order.
func (l *Loopback) Placed() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.placed))
	copy(out, l.placed)
	return out
}

type loopbackLeg struct {
	id      string
	target  string
	signals chan Signal
	done    chan struct{}
	once    sync.Once
}

func (lg *loopbackLeg) ID() string             { return lg.id }
func (lg *loopbackLeg) Target() string         { return lg.target }
func (lg *loopbackLeg) Signals() <-chan Signal { return lg.signals }

func (lg *loopbackLeg) Hangup() {
	lg.once.Do(func() {
		close(lg.done)
	})
}

// Originate allocates an idle leg. Signals start flowing on Place.
func (l *Loopback) Originate(_ context.Context, target string, caller CallerContext) (Leg, error) {
	return &loopbackLeg{
		id:      uuid.New().String(),
		target:  target,
		signals: make(chan Signal, 8),
		done:    make(chan struct{}),
	}, nil
}

// Place starts the scripted signal sequence for the leg's target.
func (l *Loopback) Place(ctx context.Context, leg Leg) error {
	lg, ok := leg.(*loopbackLeg)
	if !ok {
		return ErrOriginateFailed
	}

	l.mu.Lock()
	b := l.behaviors[lg.target]
	l.placed = append(l.placed, lg.target)
	l.mu.Unlock()

	go lg.run(b)
	return nil
}

// run plays the scripted behavior until the leg is hung up.
func (lg *loopbackLeg) run(b Behavior) {
	defer close(lg.signals)

	send := func(s Signal) bool {
		select {
		case lg.signals <- s:
			return true
		case <-lg.done:
			return false
		}
	}
	wait := func(d time.Duration) bool {
		if d <= 0 {
			return true
		}
		select {
		case <-time.After(d):
			return true
		case <-lg.done:
			return false
		}
	}

	switch {
	case b.Busy:
		send(Signal{Kind: SignalBusy})
		return
	case b.Congestion:
		send(Signal{Kind: SignalCongestion})
		return
	}

	if !wait(b.RingFor) {
		return
	}
	if !send(Signal{Kind: SignalRinging}) {
		return
	}

	if b.ForwardTo != "" {
		if !wait(b.AnswerAfter) {
			return
		}
		send(Signal{Kind: SignalForward, Target: b.ForwardTo})
		return
	}

	if b.Answer {
		if !wait(b.AnswerAfter) {
			return
		}
		send(Signal{Kind: SignalAnswer})
		<-lg.done
		return
	}

	if b.HangupAfter > 0 {
		if !wait(b.HangupAfter) {
			return
		}
		send(Signal{Kind: SignalHangup})
		return
	}

	// Unanswered and unscripted: ring until hung up.
	<-lg.done
}

// Announce records the prompt; the loopback has no audio path.
func (l *Loopback) Announce(_ context.Context, leg Leg, prompt string) error {
	l.logger.Debug().Str("leg", leg.ID()).Str("prompt", prompt).Msg("announce")
	return nil
}

// Bridge reports the scripted talk time once the "call" ends.
func (l *Loopback) Bridge(ctx context.Context, callerLegID string, leg Leg, opts BridgeOptions) (BridgeOutcome, error) {
	lg, ok := leg.(*loopbackLeg)
	if !ok {
		return BridgeOutcome{}, ErrOriginateFailed
	}

	l.mu.Lock()
	b := l.behaviors[lg.target]
	l.mu.Unlock()

	select {
	case <-ctx.Done():
	default:
	}
	lg.Hangup()
	return BridgeOutcome{TalkSecs: b.TalkSecs, CallerHungUp: true}, nil
}
