package queue

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialdesk/acd/internal/rules"
)

func TestAcceptsPenalty(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	now := time.Now()

	e := NewEntry(q, JoinRequest{CallID: "a", MinPenalty: 1, MaxPenalty: 3}, now)
	for penalty, want := range map[int]bool{0: false, 1: true, 3: true, 4: false} {
		if got := e.AcceptsPenalty(penalty); got != want {
			t.Errorf("AcceptsPenalty(%d) = %v, want %v", penalty, got, want)
		}
	}

	open := NewEntry(q, JoinRequest{CallID: "b", MaxPenalty: -1}, now)
	if !open.AcceptsPenalty(1000) {
		t.Error("max -1 means unbounded")
	}
}

func TestUpdateRuleFiresInOrderOnce(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	reg := rules.NewRegistry(zerolog.Nop())
	list := reg.Load("ramp", []string{"10,+2", "20,+2,+1"})

	now := time.Now()
	e := NewEntry(q, JoinRequest{CallID: "a", MinPenalty: 0, MaxPenalty: 1, RuleList: list}, now)

	if e.UpdateRule(now.Add(5 * time.Second)) {
		t.Fatal("no rule due at 5s")
	}

	if !e.UpdateRule(now.Add(12 * time.Second)) {
		t.Fatal("first rule due at 12s")
	}
	min, max := e.PenaltyBand()
	if min != 0 || max != 3 {
		t.Fatalf("band after first rule = %d..%d, want 0..3", min, max)
	}

	// Same elapsed window again: nothing new fires.
	if e.UpdateRule(now.Add(13 * time.Second)) {
		t.Fatal("first rule must not fire twice")
	}

	if !e.UpdateRule(now.Add(25 * time.Second)) {
		t.Fatal("second rule due at 25s")
	}
	min, max = e.PenaltyBand()
	if min != 1 || max != 5 {
		t.Fatalf("band after second rule = %d..%d, want 1..5", min, max)
	}
}

func TestUpdateRuleCatchesUpPastRules(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	reg := rules.NewRegistry(zerolog.Nop())
	list := reg.Load("ramp", []string{"10,+1", "20,+1"})

	now := time.Now()
	e := NewEntry(q, JoinRequest{CallID: "a", MaxPenalty: 0, RuleList: list}, now)

	// A long stall fires every overdue rule in one pass.
	if !e.UpdateRule(now.Add(60 * time.Second)) {
		t.Fatal("overdue rules should fire")
	}
	_, max := e.PenaltyBand()
	if max != 2 {
		t.Fatalf("max = %d, want 2", max)
	}
}

func TestUpdateRuleTreatsUnboundedAsZero(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	reg := rules.NewRegistry(zerolog.Nop())
	list := reg.Load("ramp", []string{"10,+2"})

	now := time.Now()
	e := NewEntry(q, JoinRequest{CallID: "a", MaxPenalty: -1, RuleList: list}, now)
	e.UpdateRule(now.Add(15 * time.Second))
	_, max := e.PenaltyBand()
	if max != 2 {
		t.Fatalf("unbounded max should seed from zero, got %d", max)
	}
}

func TestDigitBuffer(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	e := NewEntry(q, JoinRequest{CallID: "a", MaxPenalty: -1}, time.Now())

	if got := e.PushDigit('1'); got != "1" {
		t.Errorf("buffer = %q", got)
	}
	if got := e.PushDigit('2'); got != "12" {
		t.Errorf("buffer = %q", got)
	}
	e.ClearDigits()
	if e.Digits() != "" {
		t.Error("buffer should be empty after clear")
	}
}

func TestMarkDialedStopsForwardLoops(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "ringall"})
	e := NewEntry(q, JoinRequest{CallID: "a", MaxPenalty: -1}, time.Now())

	if !e.MarkDialed("SIP/1001") {
		t.Fatal("first dial should be allowed")
	}
	if e.MarkDialed("SIP/1001") {
		t.Fatal("re-dial of the same interface must be refused")
	}
	if !e.MarkDialed("SIP/1002") {
		t.Fatal("other interfaces unaffected")
	}
}

func TestLinearCursorWraps(t *testing.T) {
	_, q := newTestQueue(t, Config{Name: "support", Strategy: "linear"})
	e := NewEntry(q, JoinRequest{CallID: "a", MaxPenalty: -1}, time.Now())

	e.AdvanceLinearCursor(3)
	e.AdvanceLinearCursor(3)
	if e.LinearCursor() != 2 {
		t.Fatalf("cursor = %d, want 2", e.LinearCursor())
	}
	e.AdvanceLinearCursor(3)
	if e.LinearCursor() != 0 {
		t.Fatalf("cursor should wrap, got %d", e.LinearCursor())
	}
}
