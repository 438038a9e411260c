// Package rules implements timed penalty-change rules. A rule list is a
// name-keyed, time-ordered sequence of adjustments to a waiting caller's
// min/max penalty band; each rule fires at most once, when the caller's
// time in queue reaches the rule's threshold.
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Rule is one penalty change: at Time seconds in queue, adjust the max and
// min penalty by the given deltas. A relative delta is added to the current
// band edge; an absolute one replaces it.
type Rule struct {
	Time        int
	MaxDelta    int
	MaxRelative bool
	MinDelta    int
	MinRelative bool
	HasMax      bool
	HasMin      bool
}

// List is a named, ascending-time-ordered rule list.
type List struct {
	Name  string
	Rules []Rule
}

// ParseRule parses one rule definition of the form
// "<seconds>,<maxchange>[,<minchange>]" where a signed change is relative
// and an unsigned one absolute, e.g. "30,+2,-1" or "60,5".
func ParseRule(def string) (Rule, error) {
	parts := strings.Split(def, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return Rule{}, fmt.Errorf("malformed penalty rule %q", def)
	}

	secs, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || secs < 0 {
		return Rule{}, fmt.Errorf("malformed penalty rule %q: bad time", def)
	}
	rule := Rule{Time: secs}

	rule.MaxDelta, rule.MaxRelative, err = parseChange(parts[1])
	if err != nil {
		return Rule{}, fmt.Errorf("malformed penalty rule %q: %w", def, err)
	}
	rule.HasMax = true

	if len(parts) == 3 {
		rule.MinDelta, rule.MinRelative, err = parseChange(parts[2])
		if err != nil {
			return Rule{}, fmt.Errorf("malformed penalty rule %q: %w", def, err)
		}
		rule.HasMin = true
	}

	return rule, nil
}

func parseChange(s string) (delta int, relative bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, fmt.Errorf("empty change")
	}
	relative = s[0] == '+' || s[0] == '-'
	delta, err = strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("bad change %q", s)
	}
	return delta, relative, nil
}

// Apply computes the new penalty band after this rule fires. The band is
// clamped so both edges stay non-negative and min never exceeds max.
func (r Rule) Apply(min, max int) (newMin, newMax int) {
	newMin, newMax = min, max

	if r.HasMax {
		if r.MaxRelative {
			newMax += r.MaxDelta
		} else {
			newMax = r.MaxDelta
		}
	}
	if r.HasMin {
		if r.MinRelative {
			newMin += r.MinDelta
		} else {
			newMin = r.MinDelta
		}
	}

	if newMax < 0 {
		newMax = 0
	}
	if newMin < 0 {
		newMin = 0
	}
	if newMin > newMax {
		newMin = newMax
	}
	return newMin, newMax
}

// Registry holds all loaded rule lists, keyed by name.
type Registry struct {
	mu     sync.Mutex
	lists  map[string]*List
	logger zerolog.Logger
}

// NewRegistry creates an empty rule registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		lists:  make(map[string]*List),
		logger: logger,
	}
}

// Load parses and installs a rule list, replacing any previous list with
// the same name. A single malformed rule rejects only that rule, not the
// whole list.
func (r *Registry) Load(name string, defs []string) *List {
	list := &List{Name: name}
	for _, def := range defs {
		rule, err := ParseRule(def)
		if err != nil {
			r.logger.Warn().Err(err).Str("rule_list", name).Msg("skipping malformed penalty rule")
			continue
		}
		list.Rules = append(list.Rules, rule)
	}
	sort.SliceStable(list.Rules, func(i, j int) bool {
		return list.Rules[i].Time < list.Rules[j].Time
	})

	r.mu.Lock()
	r.lists[name] = list
	r.mu.Unlock()
	return list
}

// Find returns the rule list with the given name, or nil.
func (r *Registry) Find(name string) *List {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists[name]
}

// NextDue returns the index of the first rule at or after idx whose
// threshold has been reached by elapsed seconds, or -1 when none is due.
// Callers advance their own index past applied rules so a rule never
// fires twice.
func (l *List) NextDue(idx int, elapsedSecs int) int {
	if l == nil {
		return -1
	}
	if idx < 0 {
		idx = 0
	}
	if idx < len(l.Rules) && elapsedSecs >= l.Rules[idx].Time {
		return idx
	}
	return -1
}
