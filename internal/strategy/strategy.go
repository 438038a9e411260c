// Package strategy computes the selection metric that ranks queue members
// inside one ring cycle. Lower metrics ring first. Each strategy is a pure
// function over the same input; dispatch goes through a table keyed by the
// strategy name.
package strategy

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dialdesk/acd/internal/types"
)

const penaltyWeight = 1000000

// Input carries everything a metric function may consult. Penalty is the
// member's penalty after the caller's band filter and the queue's
// penalty-disregard threshold have been applied.
type Input struct {
	Penalty    int
	Pos        int // member's index in this ring cycle's candidate order
	Cursor     int // round-robin cursor (per caller for linear, per queue otherwise)
	CallsTaken int
	LastCall   time.Time
	Now        time.Time
	Rand       func(n int) int // nil means math/rand
}

func (in Input) intn(n int) int {
	if n <= 0 {
		return 0
	}
	if in.Rand != nil {
		return in.Rand(n)
	}
	return rand.Intn(n)
}

// Func computes a metric for one member; wrapped reports that the member
// sits behind the round-robin cursor and the cycle has wrapped past it.
type Func func(in Input) (metric int, wrapped bool)

var table = map[types.Strategy]Func{
	types.StrategyRingAll:          ringAll,
	types.StrategyLinear:           roundRobin,
	types.StrategyRoundRobinMemory: roundRobin,
	types.StrategyRoundRobinOrder:  roundRobin,
	types.StrategyLeastRecent:      leastRecent,
	types.StrategyFewestCalls:      fewestCalls,
	types.StrategyRandom:           random,
	types.StrategyWeightedRandom:   weightedRandom,
}

// Compute ranks one member under the given strategy. An unknown strategy
// is a metric computation error, fatal only for the attempt it concerns.
func Compute(s types.Strategy, in Input) (metric int, wrapped bool, err error) {
	fn, ok := table[s]
	if !ok {
		return 0, false, fmt.Errorf("unknown ring strategy %q", s)
	}
	metric, wrapped = fn(in)
	return metric, wrapped, nil
}

// ringAll carries only the penalty term, so every member in the lowest
// penalty tier ties at the minimum and rings in parallel.
func ringAll(in Input) (int, bool) {
	return in.Penalty * penaltyWeight, false
}

// roundRobin ranks by cycle position, pushing members behind the cursor a
// thousand places back so they ring after everyone the cursor has not yet
// passed. Shared by linear (per-caller cursor) and both round-robin modes
// (queue-global cursor).
func roundRobin(in Input) (int, bool) {
	metric := in.Pos
	wrapped := false
	if in.Pos < in.Cursor {
		metric = in.Pos + 1000
		wrapped = true
	}
	return metric + in.Penalty*penaltyWeight, wrapped
}

func leastRecent(in Input) (int, bool) {
	metric := 0
	if !in.LastCall.IsZero() {
		since := int(in.Now.Sub(in.LastCall).Seconds())
		metric = penaltyWeight - since
		if metric < 0 {
			metric = 0
		}
	}
	return metric + in.Penalty*penaltyWeight, false
}

func fewestCalls(in Input) (int, bool) {
	return in.CallsTaken + in.Penalty*penaltyWeight, false
}

func random(in Input) (int, bool) {
	return in.intn(1000) + in.Penalty*penaltyWeight, false
}

// weightedRandom lets penalty bias the draw instead of dominating it.
func weightedRandom(in Input) (int, bool) {
	return in.intn((1 + in.Penalty) * 1000), false
}
