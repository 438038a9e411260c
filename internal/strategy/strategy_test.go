package strategy

import (
	"testing"
	"time"

	"github.com/dialdesk/acd/internal/types"
)

func TestComputeUnknownStrategy(t *testing.T) {
	_, _, err := Compute(types.Strategy("bogus"), Input{})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestPenaltyDominatesEveryStrategy(t *testing.T) {
	// A penalty-1 member must always rank behind a penalty-0 member, no
	// matter how favorable its strategy term is.
	now := time.Now()
	strategies := []types.Strategy{
		types.StrategyRingAll,
		types.StrategyLinear,
		types.StrategyLeastRecent,
		types.StrategyFewestCalls,
		types.StrategyRandom,
		types.StrategyRoundRobinMemory,
		types.StrategyRoundRobinOrder,
	}

	for _, s := range strategies {
		t.Run(string(s), func(t *testing.T) {
			good, _, err := Compute(s, Input{
				Penalty:    1,
				Pos:        0,
				CallsTaken: 0,
				Now:        now,
				Rand:       func(int) int { return 0 },
			})
			if err != nil {
				t.Fatal(err)
			}
			bad, _, err := Compute(s, Input{
				Penalty:    0,
				Pos:        500,
				Cursor:     900,
				CallsTaken: 999,
				LastCall:   now.Add(-time.Second),
				Now:        now,
				Rand:       func(n int) int { return n - 1 },
			})
			if err != nil {
				t.Fatal(err)
			}
			if bad >= good {
				t.Errorf("penalty 0 metric %d should beat penalty 1 metric %d", bad, good)
			}
		})
	}
}

func TestRingAllTiesWithinTier(t *testing.T) {
	a, _, _ := Compute(types.StrategyRingAll, Input{Penalty: 0, Pos: 0})
	b, _, _ := Compute(types.StrategyRingAll, Input{Penalty: 0, Pos: 7})
	if a != b {
		t.Errorf("same-penalty ringall metrics should tie, got %d and %d", a, b)
	}

	c, _, _ := Compute(types.StrategyRingAll, Input{Penalty: 1, Pos: 0})
	if c <= a {
		t.Errorf("higher penalty tier should rank behind, got %d <= %d", c, a)
	}
}

func TestRoundRobinCursorWrap(t *testing.T) {
	// Members at or past the cursor ring first, in roster order; members
	// behind it are wrapped to the back.
	ahead, wrappedAhead, _ := Compute(types.StrategyRoundRobinMemory, Input{Pos: 3, Cursor: 2})
	behind, wrappedBehind, _ := Compute(types.StrategyRoundRobinMemory, Input{Pos: 1, Cursor: 2})

	if wrappedAhead {
		t.Error("member at cursor+1 should not be wrapped")
	}
	if !wrappedBehind {
		t.Error("member behind cursor should be wrapped")
	}
	if ahead >= behind {
		t.Errorf("member ahead of cursor should rank first: %d vs %d", ahead, behind)
	}
}

func TestLinearUsesCallerCursor(t *testing.T) {
	first, _, _ := Compute(types.StrategyLinear, Input{Pos: 0, Cursor: 0})
	second, _, _ := Compute(types.StrategyLinear, Input{Pos: 1, Cursor: 0})
	if first >= second {
		t.Errorf("linear should preserve roster order: %d vs %d", first, second)
	}
}

func TestLeastRecentPrefersIdleMember(t *testing.T) {
	now := time.Now()
	idle, _, _ := Compute(types.StrategyLeastRecent, Input{LastCall: now.Add(-time.Hour), Now: now})
	busy, _, _ := Compute(types.StrategyLeastRecent, Input{LastCall: now.Add(-time.Minute), Now: now})
	never, _, _ := Compute(types.StrategyLeastRecent, Input{Now: now})

	if idle >= busy {
		t.Errorf("hour-idle member should beat minute-idle: %d vs %d", idle, busy)
	}
	if never > idle {
		t.Errorf("member with no calls should rank at least as well: %d vs %d", never, idle)
	}
}

func TestFewestCallsOrdersByCounter(t *testing.T) {
	few, _, _ := Compute(types.StrategyFewestCalls, Input{CallsTaken: 2})
	many, _, _ := Compute(types.StrategyFewestCalls, Input{CallsTaken: 9})
	if few >= many {
		t.Errorf("fewer calls should rank first: %d vs %d", few, many)
	}
}

func TestWeightedRandomPenaltyWidensDraw(t *testing.T) {
	// With a deterministic max draw, a higher penalty yields a larger
	// possible metric.
	maxDraw := func(n int) int { return n - 1 }
	low, _, _ := Compute(types.StrategyWeightedRandom, Input{Penalty: 0, Rand: maxDraw})
	high, _, _ := Compute(types.StrategyWeightedRandom, Input{Penalty: 2, Rand: maxDraw})
	if high <= low {
		t.Errorf("penalty should widen the weighted draw: %d vs %d", high, low)
	}
}
