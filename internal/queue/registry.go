package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/member"
	"github.com/dialdesk/acd/internal/metrics"
	"github.com/dialdesk/acd/internal/rules"
	"github.com/dialdesk/acd/internal/types"
	"github.com/rs/zerolog"
)

// Registry is the pair of name-keyed registries: one for the current
// Queue generation, one for the persistent Statistics. Lookup-or-create is
// atomic under the registry lock; the lock is released before any found
// object is touched. The registry is the last logical owner of a
// Statistics: it is destroyed when the last Queue generation referencing
// it is removed.
type Registry struct {
	mu      sync.Mutex
	queues  map[string]*Queue
	stats   map[string]*Statistics
	devices *device.Registry
	logger  zerolog.Logger
}

// NewRegistry creates an empty queue registry backed by the given device
// registry.
func NewRegistry(devices *device.Registry, logger zerolog.Logger) *Registry {
	return &Registry{
		queues:  make(map[string]*Queue),
		stats:   make(map[string]*Statistics),
		devices: devices,
		logger:  logger,
	}
}

// Find returns the current generation of the named queue.
func (r *Registry) Find(name string) (*Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[name]
	if !ok {
		return nil, ErrNoSuchQueue
	}
	return q, nil
}

// Load installs a queue configuration. An existing queue is replaced
// wholesale (copy-on-reload) but resolves to the same Statistics, so
// waiting callers and counters survive the reload. Member definitions are
// synced into the shared roster: new ones added, vanished static/realtime
// ones removed, dynamic ones left alone.
func (r *Registry) Load(cfg Config) *Queue {
	r.mu.Lock()
	st, ok := r.stats[cfg.Name]
	if !ok {
		st = newStatistics(cfg.Name)
		r.stats[cfg.Name] = st
	}
	old := r.queues[cfg.Name]
	r.mu.Unlock()

	q, strategyOK := newQueue(cfg, st)
	if !strategyOK {
		r.logger.Warn().
			Str("queue", cfg.Name).
			Str("strategy", cfg.Strategy).
			Msg("invalid ring strategy, falling back to ringall")
	}

	r.syncMembers(q, cfg.Members)

	r.mu.Lock()
	r.queues[cfg.Name] = q
	st.refs++
	if old != nil {
		st.refs--
	}
	r.mu.Unlock()

	if old != nil {
		r.logger.Info().Str("queue", cfg.Name).Msg("queue configuration reloaded")
	} else {
		r.logger.Info().
			Str("queue", cfg.Name).
			Str("strategy", string(q.Strategy())).
			Int("members", len(cfg.Members)).
			Msg("queue loaded")
	}
	return q
}

// syncMembers reconciles the configured roster with the shared member set.
func (r *Registry) syncMembers(q *Queue, configured []types.MemberConfig) {
	st := q.Stats()

	want := make(map[string]types.MemberConfig, len(configured))
	for _, mc := range configured {
		want[mc.Interface] = mc
	}

	// Drop config-sourced members that vanished from the definition.
	for _, m := range st.Members() {
		if m.Source() == types.SourceDynamic {
			continue
		}
		if _, ok := want[m.Interface()]; !ok {
			if removed, ok := st.RemoveMember(m.Interface()); ok {
				removed.Release(r.devices)
				r.logger.Debug().
					Str("queue", q.Name()).
					Str("interface", m.Interface()).
					Msg("member removed on reload")
			}
		}
	}

	for _, mc := range configured {
		if existing, ok := st.FindMember(mc.Interface); ok {
			existing.SetPenalty(mc.Penalty)
			continue
		}
		m := member.New(mc, q.RingInUse(), r.devices)
		if err := st.AddMember(m); err != nil {
			m.Release(r.devices)
			r.logger.Warn().
				Str("queue", q.Name()).
				Str("interface", mc.Interface).
				Str("uniqueid", mc.UniqueID).
				Msg("rejecting duplicate member on load, keeping original")
		}
	}
}

// Remove drops the queue and, when this was the last generation, its
// Statistics. Members release their device references.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	q, ok := r.queues[name]
	if !ok {
		r.mu.Unlock()
		return ErrNoSuchQueue
	}
	delete(r.queues, name)
	st := q.Stats()
	st.refs--
	destroy := st.refs <= 0
	if destroy {
		delete(r.stats, name)
	}
	r.mu.Unlock()

	if destroy {
		for _, m := range st.Members() {
			if removed, ok := st.RemoveMember(m.Interface()); ok {
				removed.Release(r.devices)
			}
		}
		metrics.WaitingCalls.DeleteLabelValues(name)
		r.logger.Info().Str("queue", name).Msg("queue removed")
	}
	return nil
}

// Queues returns the current generations sorted by name.
func (r *Registry) Queues() []*Queue {
	r.mu.Lock()
	out := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		out = append(out, q)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// QueueMember pairs a member with the queue that holds it, for fan-out
// traversals keyed by device.
type QueueMember struct {
	Queue  *Queue
	Member *member.Member
}

// MembersByStateInterface walks every queue's roster and returns the
// members observing the given device. This lookup traversal replaces any
// back-reference from a device to its members.
func (r *Registry) MembersByStateInterface(dev string) []QueueMember {
	var out []QueueMember
	for _, q := range r.Queues() {
		for _, m := range q.Stats().Members() {
			if m.StateInterface() == dev {
				out = append(out, QueueMember{Queue: q, Member: m})
			}
		}
	}
	return out
}

// MembersByInterface is the same traversal keyed by dial interface; used
// for shared-lastcall fan-out and autopause-all.
func (r *Registry) MembersByInterface(iface string) []QueueMember {
	var out []QueueMember
	for _, q := range r.Queues() {
		for _, m := range q.Stats().Members() {
			if m.Interface() == iface {
				out = append(out, QueueMember{Queue: q, Member: m})
			}
		}
	}
	return out
}

// AddDynamicMember adds a runtime member to the named queue. The config's
// source is forced to dynamic so reloads leave it alone.
func (r *Registry) AddDynamicMember(queueName string, mc types.MemberConfig) (*member.Member, error) {
	q, err := r.Find(queueName)
	if err != nil {
		return nil, err
	}
	mc.Source = types.SourceDynamic
	m := member.New(mc, q.RingInUse(), r.devices)
	if err := q.Stats().AddMember(m); err != nil {
		m.Release(r.devices)
		return nil, err
	}
	r.logger.Info().
		Str("queue", queueName).
		Str("interface", mc.Interface).
		Msg("dynamic member added")
	return m, nil
}

// RemoveDynamicMember removes a runtime member. Static and realtime
// members belong to their source and cannot be removed this way.
func (r *Registry) RemoveDynamicMember(queueName, iface string) error {
	q, err := r.Find(queueName)
	if err != nil {
		return err
	}
	st := q.Stats()
	m, ok := st.FindMember(iface)
	if !ok {
		return ErrNoSuchMember
	}
	if m.Source() != types.SourceDynamic {
		return ErrMemberNotDynamic
	}
	if removed, ok := st.RemoveMember(iface); ok {
		removed.Release(r.devices)
	}
	r.logger.Info().
		Str("queue", queueName).
		Str("interface", iface).
		Msg("dynamic member removed")
	return nil
}

// SetMemberPaused flips the pause flag. An empty queueName applies the
// change to the interface in every queue; it returns how many members
// changed.
func (r *Registry) SetMemberPaused(queueName, iface string, paused bool, reason string) (int, error) {
	if queueName != "" {
		q, err := r.Find(queueName)
		if err != nil {
			return 0, err
		}
		m, ok := q.Stats().FindMember(iface)
		if !ok {
			return 0, ErrNoSuchMember
		}
		m.SetPaused(paused, reason)
		return 1, nil
	}

	changed := 0
	for _, qm := range r.MembersByInterface(iface) {
		qm.Member.SetPaused(paused, reason)
		changed++
	}
	if changed == 0 {
		return 0, ErrNoSuchMember
	}
	return changed, nil
}

// SetMemberPenalty updates a member's penalty in one queue.
func (r *Registry) SetMemberPenalty(queueName, iface string, penalty int) error {
	q, err := r.Find(queueName)
	if err != nil {
		return err
	}
	m, ok := q.Stats().FindMember(iface)
	if !ok {
		return ErrNoSuchMember
	}
	m.SetPenalty(penalty)
	return nil
}

// JoinRequest carries the caller-supplied join parameters.
type JoinRequest struct {
	CallID     string
	Priority   int
	Position   int // requested insertion position, 0 for tail
	MinPenalty int
	MaxPenalty int // -1 means unbounded
	ExpireAt   time.Time
	RuleList   *rules.List
}

// NewEntry builds a waiting-list entry for a caller about to join q. The
// entry is not linked until Statistics.Insert succeeds.
func NewEntry(q *Queue, req JoinRequest, now time.Time) *Entry {
	return &Entry{
		id:         req.CallID,
		queue:      q,
		priority:   req.Priority,
		minPenalty: req.MinPenalty,
		maxPenalty: req.MaxPenalty,
		joined:     now,
		expire:     req.ExpireAt,
		ruleList:   req.RuleList,
		dialed:     make(map[string]bool),
	}
}
