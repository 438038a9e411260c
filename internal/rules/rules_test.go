package rules

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseRule(t *testing.T) {
	cases := []struct {
		def  string
		want Rule
	}{
		{"30,+2", Rule{Time: 30, MaxDelta: 2, MaxRelative: true, HasMax: true}},
		{"60,5", Rule{Time: 60, MaxDelta: 5, HasMax: true}},
		{"45,+2,-1", Rule{Time: 45, MaxDelta: 2, MaxRelative: true, HasMax: true, MinDelta: -1, MinRelative: true, HasMin: true}},
		{"0,3,1", Rule{Time: 0, MaxDelta: 3, HasMax: true, MinDelta: 1, HasMin: true}},
	}
	for _, c := range cases {
		got, err := ParseRule(c.def)
		if err != nil {
			t.Fatalf("ParseRule(%q): %v", c.def, err)
		}
		if got != c.want {
			t.Errorf("ParseRule(%q) = %+v, want %+v", c.def, got, c.want)
		}
	}
}

func TestParseRuleRejectsMalformed(t *testing.T) {
	for _, def := range []string{"", "30", "x,+2", "-5,+2", "30,", "30,+2,", "30,+2,-1,9"} {
		if _, err := ParseRule(def); err == nil {
			t.Errorf("ParseRule(%q) should fail", def)
		}
	}
}

func TestApplyClampsBand(t *testing.T) {
	// Relative drop below zero clamps to zero.
	r, _ := ParseRule("10,-5,-5")
	min, max := r.Apply(1, 2)
	if min != 0 || max != 0 {
		t.Errorf("band should clamp at zero, got %d..%d", min, max)
	}

	// Absolute min above max is pulled down to max.
	r, _ = ParseRule("10,3,9")
	min, max = r.Apply(0, 5)
	if max != 3 || min != 3 {
		t.Errorf("min should never exceed max, got %d..%d", min, max)
	}
}

func TestApplyMixedRelativeAbsolute(t *testing.T) {
	r, _ := ParseRule("10,+2,0")
	min, max := r.Apply(1, 3)
	if min != 0 || max != 5 {
		t.Errorf("got %d..%d, want 0..5", min, max)
	}
}

func TestRegistryLoadSkipsBadRules(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	list := reg.Load("evening", []string{"60,+1", "garbage", "15,+3"})
	if len(list.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(list.Rules))
	}
	// Sorted ascending by time regardless of definition order.
	if list.Rules[0].Time != 15 || list.Rules[1].Time != 60 {
		t.Errorf("rules not time-ordered: %+v", list.Rules)
	}
	if reg.Find("evening") != list {
		t.Error("Find should return the installed list")
	}
	if reg.Find("missing") != nil {
		t.Error("Find of unknown list should be nil")
	}
}

func TestNextDueFiresOncePerRule(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	list := reg.Load("ramp", []string{"10,+1", "20,+1"})

	if got := list.NextDue(0, 5); got != -1 {
		t.Errorf("nothing due at 5s, got %d", got)
	}
	if got := list.NextDue(0, 10); got != 0 {
		t.Errorf("first rule due at 10s, got %d", got)
	}
	// Caller advanced past index 0; same elapsed time fires nothing new.
	if got := list.NextDue(1, 10); got != -1 {
		t.Errorf("first rule must not fire twice, got %d", got)
	}
	if got := list.NextDue(1, 25); got != 1 {
		t.Errorf("second rule due at 25s, got %d", got)
	}
	if got := list.NextDue(2, 1000); got != -1 {
		t.Errorf("exhausted list fires nothing, got %d", got)
	}
}

func TestNextDueNilList(t *testing.T) {
	var l *List
	if got := l.NextDue(0, 100); got != -1 {
		t.Errorf("nil list should report nothing due, got %d", got)
	}
}
