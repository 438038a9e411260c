package session

import (
	"context"
	"sync"

	"github.com/dialdesk/acd/internal/types"
	"github.com/google/uuid"
)

// Fake is a channel-driven Session used by tests and the dev binary.
type Fake struct {
	id     string
	caller types.CallerID

	mu        sync.Mutex
	vars      map[string]string
	events    chan Event
	exits     map[string]bool
	announced []int
	prompts   []string
	musicOn   bool
	closeOnce sync.Once
}

// NewFake creates a fake caller session.
func NewFake(caller types.CallerID) *Fake {
	return &Fake{
		id:     uuid.New().String(),
		caller: caller,
		vars:   make(map[string]string),
		events: make(chan Event, 16),
		exits:  make(map[string]bool),
	}
}

func (f *Fake) ID() string               { return f.id }
func (f *Fake) CallerID() types.CallerID { return f.caller }
func (f *Fake) Events() <-chan Event     { return f.events }

func (f *Fake) Variable(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vars[name]
}

func (f *Fake) SetVariable(name, value string) {
	f.mu.Lock()
	f.vars[name] = value
	f.mu.Unlock()
}

func (f *Fake) AnnouncePosition(_ context.Context, position, _ int) error {
	f.mu.Lock()
	f.announced = append(f.announced, position)
	f.mu.Unlock()
	return nil
}

func (f *Fake) PlayPrompt(_ context.Context, prompt string) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return nil
}

func (f *Fake) StartMusic(string) {
	f.mu.Lock()
	f.musicOn = true
	f.mu.Unlock()
}

func (f *Fake) StopMusic() {
	f.mu.Lock()
	f.musicOn = false
	f.mu.Unlock()
}

func (f *Fake) ExistsExtension(digits string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exits[digits]
}

// AddExit registers a digit sequence as a valid exit destination.
func (f *Fake) AddExit(digits string) {
	f.mu.Lock()
	f.exits[digits] = true
	f.mu.Unlock()
}

// Hangup injects a caller hangup.
func (f *Fake) Hangup() {
	f.closeOnce.Do(func() {
		f.events <- Event{Kind: EventHangup}
		close(f.events)
	})
}

// PressDigit injects one DTMF digit.
func (f *Fake) PressDigit(d rune) {
	f.events <- Event{Kind: EventDigit, Digit: d}
}

// AnnouncedPositions returns every position announced so far.
func (f *Fake) AnnouncedPositions() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.announced))
	copy(out, f.announced)
	return out
}

// MusicPlaying reports whether hold music is currently on.
func (f *Fake) MusicPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.musicOn
}
