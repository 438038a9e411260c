// Package queue holds the queue configuration objects, the reload-safe
// statistics they share, and the name-keyed registries for both. A Queue is
// immutable once active: reload builds a replacement bound to the same
// Statistics, so waiting callers and counters survive configuration
// changes.
package queue

import (
	"errors"

	"github.com/dialdesk/acd/internal/types"
)

var (
	// ErrNoSuchQueue is returned when a queue name resolves to nothing.
	ErrNoSuchQueue = errors.New("no such queue")
	// ErrQueueFull is returned when a join would exceed the queue's maxlen.
	ErrQueueFull = errors.New("queue full")
	// ErrDuplicateMember is returned when an added member's interface or
	// unique id already exists in the queue.
	ErrDuplicateMember = errors.New("duplicate member")
	// ErrNoSuchMember is returned when an interface resolves to no member.
	ErrNoSuchMember = errors.New("no such member")
	// ErrMemberNotDynamic is returned when removal targets a member owned
	// by the static or realtime configuration.
	ErrMemberNotDynamic = errors.New("member not dynamic")
)

// Config is the directory-service shape of one queue definition.
type Config struct {
	Name                      string
	Strategy                  string
	TimeoutSecs               int // ring window per cycle
	RetrySecs                 int // pause between ring cycles
	WrapupSecs                int
	MaxLen                    int // 0 means unbounded
	Weight                    int
	Autofill                  bool
	JoinEmpty                 string
	LeaveWhenEmpty            string
	AutoPause                 string
	AutoPauseDelay            int
	PenaltyMembersLimit       int
	AnnounceFrequency         int // seconds between position announcements
	MinAnnounceFrequency      int
	PeriodicAnnounceFrequency int
	AnnouncePositionLimit     int
	ReportHoldTime            bool
	SharedLastCall            bool
	RingInUse                 bool
	TimeoutRestart            bool
	ServiceLevelSecs          int
	DefaultRule               string
	Members                   []types.MemberConfig
}

// Queue is one active generation of a queue's configuration plus a shared
// reference to its Statistics. Never mutated in place; reload replaces it
// wholesale so existing references stay valid until dropped.
type Queue struct {
	name     string
	strategy types.Strategy

	timeoutSecs         int
	retrySecs           int
	wrapupSecs          int
	maxLen              int
	weight              int
	autofill            bool
	joinEmpty           types.EmptyConditions
	leaveWhenEmpty      types.EmptyConditions
	autoPause           types.AutoPause
	autoPauseDelay      int
	penaltyMembersLimit int

	announceFrequency         int
	minAnnounceFrequency      int
	periodicAnnounceFrequency int
	announcePositionLimit     int
	reportHoldTime            bool

	sharedLastCall   bool
	ringInUse        bool
	timeoutRestart   bool
	serviceLevelSecs int
	defaultRule      string

	stats *Statistics
}

const (
	defaultTimeoutSecs = 15
	defaultRetrySecs   = 5
)

// newQueue builds a Queue generation from config. An invalid strategy
// falls back to ring-all; the caller logs that.
func newQueue(cfg Config, stats *Statistics) (*Queue, bool) {
	strategy, ok := types.ParseStrategy(cfg.Strategy)
	if !ok {
		strategy = types.StrategyRingAll
	}

	timeout := cfg.TimeoutSecs
	if timeout <= 0 {
		timeout = defaultTimeoutSecs
	}
	retry := cfg.RetrySecs
	if retry <= 0 {
		retry = defaultRetrySecs
	}

	return &Queue{
		name:                cfg.Name,
		strategy:            strategy,
		timeoutSecs:         timeout,
		retrySecs:           retry,
		wrapupSecs:          cfg.WrapupSecs,
		maxLen:              cfg.MaxLen,
		weight:              cfg.Weight,
		autofill:            cfg.Autofill,
		joinEmpty:           types.ParseEmptyConditions(cfg.JoinEmpty),
		leaveWhenEmpty:      types.ParseEmptyConditions(cfg.LeaveWhenEmpty),
		autoPause:           types.ParseAutoPause(cfg.AutoPause),
		autoPauseDelay:      cfg.AutoPauseDelay,
		penaltyMembersLimit: cfg.PenaltyMembersLimit,

		announceFrequency:         cfg.AnnounceFrequency,
		minAnnounceFrequency:      cfg.MinAnnounceFrequency,
		periodicAnnounceFrequency: cfg.PeriodicAnnounceFrequency,
		announcePositionLimit:     cfg.AnnouncePositionLimit,
		reportHoldTime:            cfg.ReportHoldTime,

		sharedLastCall:   cfg.SharedLastCall,
		ringInUse:        cfg.RingInUse,
		timeoutRestart:   cfg.TimeoutRestart,
		serviceLevelSecs: cfg.ServiceLevelSecs,
		defaultRule:      cfg.DefaultRule,

		stats: stats,
	}, ok
}

func (q *Queue) Name() string             { return q.name }
func (q *Queue) Strategy() types.Strategy { return q.strategy }
func (q *Queue) TimeoutSecs() int         { return q.timeoutSecs }
func (q *Queue) RetrySecs() int           { return q.retrySecs }
func (q *Queue) WrapupSecs() int          { return q.wrapupSecs }
func (q *Queue) MaxLen() int              { return q.maxLen }
func (q *Queue) Weight() int              { return q.weight }
func (q *Queue) Autofill() bool           { return q.autofill }
func (q *Queue) RingInUse() bool          { return q.ringInUse }
func (q *Queue) SharedLastCall() bool     { return q.sharedLastCall }
func (q *Queue) TimeoutRestart() bool     { return q.timeoutRestart }
func (q *Queue) ServiceLevelSecs() int    { return q.serviceLevelSecs }
func (q *Queue) DefaultRule() string      { return q.defaultRule }
func (q *Queue) ReportHoldTime() bool     { return q.reportHoldTime }

func (q *Queue) JoinEmpty() types.EmptyConditions      { return q.joinEmpty }
func (q *Queue) LeaveWhenEmpty() types.EmptyConditions { return q.leaveWhenEmpty }
func (q *Queue) AutoPause() types.AutoPause            { return q.autoPause }
func (q *Queue) AutoPauseDelay() int                   { return q.autoPauseDelay }
func (q *Queue) PenaltyMembersLimit() int              { return q.penaltyMembersLimit }

func (q *Queue) AnnounceFrequency() int         { return q.announceFrequency }
func (q *Queue) MinAnnounceFrequency() int      { return q.minAnnounceFrequency }
func (q *Queue) PeriodicAnnounceFrequency() int { return q.periodicAnnounceFrequency }
func (q *Queue) AnnouncePositionLimit() int     { return q.announcePositionLimit }

// Stats returns the shared statistics object for this queue name. All
// generations of a reloaded queue resolve to the same Statistics.
func (q *Queue) Stats() *Statistics { return q.stats }
