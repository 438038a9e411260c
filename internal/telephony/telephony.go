// Package telephony is the boundary to the transport that actually
// originates, bridges and hangs up calls. The dispatch core drives it
// through the Service interface and consumes its asynchronous signals;
// no transport SDK calls happen outside this package's implementations.
package telephony

import (
	"context"
	"errors"

	"github.com/dialdesk/acd/internal/types"
)

// ErrOriginateFailed is returned when a leg cannot be allocated or placed.
// The engine treats it as a busy outcome for that attempt only.
var ErrOriginateFailed = errors.New("originate failed")

// SignalKind tags the asynchronous control signals a leg delivers.
type SignalKind int

const (
	SignalAnswer SignalKind = iota
	SignalBusy
	SignalCongestion
	SignalRinging
	SignalForward
	SignalConnectedLine
	SignalRedirect
	SignalHangup
)

func (k SignalKind) String() string {
	switch k {
	case SignalAnswer:
		return "answer"
	case SignalBusy:
		return "busy"
	case SignalCongestion:
		return "congestion"
	case SignalRinging:
		return "ringing"
	case SignalForward:
		return "forward"
	case SignalConnectedLine:
		return "connected_line"
	case SignalRedirect:
		return "redirect"
	case SignalHangup:
		return "hangup"
	}
	return "unknown"
}

// Signal is one asynchronous event on a dialed leg.
type Signal struct {
	Kind   SignalKind
	Target string // forward destination for SignalForward
	Party  string // updated party info for connected-line/redirect
}

// CallerContext is the identity and variable state seeded onto a new leg.
type CallerContext struct {
	CallID    string
	CallerID  types.CallerID
	Variables map[string]string
}

// Leg is one transport call leg owned by the dispatch core.
type Leg interface {
	ID() string
	Target() string
	// Signals delivers this leg's control events. The channel is closed
	// when the leg dies.
	Signals() <-chan Signal
	Hangup()
}

// BridgeOptions carries the few bridge parameters the core controls.
type BridgeOptions struct {
	// MaxDuration bounds the bridged call; zero means unbounded.
	MaxDuration int
}

// BridgeOutcome reports how a bridge ended.
type BridgeOutcome struct {
	TalkSecs     int
	CallerHungUp bool // caller ended the call; otherwise the member did
}

// Service is the telephony channel service contract per the dispatch
// core's needs: allocate a leg, start it dialing, bridge it to the caller.
type Service interface {
	// Originate allocates a leg toward target, seeded with the caller's
	// inherited identity and variables. The leg is not yet dialing.
	Originate(ctx context.Context, target string, caller CallerContext) (Leg, error)
	// Place starts the leg dialing. Signals begin to flow after Place.
	Place(ctx context.Context, leg Leg) error
	// Announce plays a prompt into an answered leg, used to report the
	// caller's hold time to the member before bridging.
	Announce(ctx context.Context, leg Leg, prompt string) error
	// Bridge connects the answered leg to the caller and blocks until the
	// bridge ends.
	Bridge(ctx context.Context, callerLegID string, leg Leg, opts BridgeOptions) (BridgeOutcome, error)
}
