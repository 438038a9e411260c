// Package session is the boundary to the caller-facing leg: variables,
// prompt playback, hold music, digit collection. The dispatch core only
// informs and listens; everything caller-audible lives behind this
// interface.
package session

import (
	"context"

	"github.com/dialdesk/acd/internal/types"
)

// EventKind tags caller-side events.
type EventKind int

const (
	EventHangup EventKind = iota
	EventDigit
)

// Event is one caller-side occurrence delivered while the caller waits or
// while legs are ringing.
type Event struct {
	Kind  EventKind
	Digit rune
}

// Session is one caller's session for the duration of queueing.
type Session interface {
	ID() string
	CallerID() types.CallerID

	// Events delivers hangup and digit events. Closed on session end.
	Events() <-chan Event

	// Variable access mirrors the dialplan variable space.
	Variable(name string) string
	SetVariable(name, value string)

	// AnnouncePosition plays the "you are number N" prompt with the
	// estimated hold time when it is known (-1 hides it).
	AnnouncePosition(ctx context.Context, position, estHoldSecs int) error
	// PlayPrompt plays a named prompt file.
	PlayPrompt(ctx context.Context, prompt string) error

	StartMusic(class string)
	StopMusic()

	// ExistsExtension reports whether the collected digits match an exit
	// destination in the caller's dialplan context.
	ExistsExtension(digits string) bool
}
