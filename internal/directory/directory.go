// Package directory resolves queue definitions and member rosters from
// three layers: the static file config, the realtime database, and the
// dynamic members added at runtime. Static wins over realtime, realtime
// over dynamic, keyed by member interface.
package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Dynamic members live in one redis hash per queue, field keyed by
// interface, until explicitly removed.
const dynamicKeyPrefix = "acd:dynamic:"

// Service composes the three member sources into ready-to-load queue
// configurations.
type Service struct {
	db     *sql.DB
	rdb    *redis.Client
	static map[string]queue.Config
	logger zerolog.Logger
}

// New builds a directory service. db and rdb may each be nil, which
// disables the realtime and dynamic layers respectively.
func New(db *sql.DB, rdb *redis.Client, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		rdb:    rdb,
		static: make(map[string]queue.Config),
		logger: logger,
	}
}

// SetStatic replaces the static layer, usually after a config file reload.
func (s *Service) SetStatic(cfgs []queue.Config) {
	static := make(map[string]queue.Config, len(cfgs))
	for _, cfg := range cfgs {
		static[cfg.Name] = cfg
	}
	s.static = static
}

// QueueNames lists every queue the directory knows about, static and
// realtime combined.
func (s *Service) QueueNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool, len(s.static))
	var names []string
	for name := range s.static {
		seen[name] = true
		names = append(names, name)
	}

	if s.db != nil {
		rows, err := s.db.QueryContext(ctx, `SELECT name FROM queues`)
		if err != nil {
			return nil, fmt.Errorf("query queues: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, fmt.Errorf("scan queue name: %w", err)
			}
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// Compose resolves one queue's full configuration: the static definition
// (or the realtime row when no static one exists) plus the merged member
// roster from all three layers.
func (s *Service) Compose(ctx context.Context, name string) (queue.Config, error) {
	cfg, haveStatic := s.static[name]
	if !haveStatic {
		rtCfg, err := s.realtimeQueue(ctx, name)
		if err != nil {
			return queue.Config{}, err
		}
		if rtCfg == nil {
			return queue.Config{}, queue.ErrNoSuchQueue
		}
		cfg = *rtCfg
	}

	members := make(map[string]types.MemberConfig)
	order := make([]string, 0, len(cfg.Members))

	add := func(m types.MemberConfig) {
		if _, dup := members[m.Interface]; dup {
			return
		}
		members[m.Interface] = m
		order = append(order, m.Interface)
	}

	for _, m := range cfg.Members {
		m.Source = types.SourceStatic
		add(m)
	}

	if s.db != nil {
		rt, err := s.realtimeMembers(ctx, name)
		if err != nil {
			return queue.Config{}, err
		}
		for _, m := range rt {
			add(m)
		}
	}

	if s.rdb != nil {
		dyn, err := s.dynamicMembers(ctx, name)
		if err != nil {
			// A broken dynamic layer degrades to static+realtime.
			s.logger.Warn().Err(err).Str("queue", name).Msg("dynamic member load failed")
		}
		for _, m := range dyn {
			add(m)
		}
	}

	merged := make([]types.MemberConfig, 0, len(order))
	for _, iface := range order {
		merged = append(merged, members[iface])
	}
	cfg.Members = merged
	return cfg, nil
}

// realtimeQueue loads one queue row, nil when absent.
func (s *Service) realtimeQueue(ctx context.Context, name string) (*queue.Config, error) {
	if s.db == nil {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT name, strategy, timeout_secs, retry_secs, wrapup_secs,
		       max_len, weight, autofill, join_empty, leave_when_empty,
		       auto_pause, service_level_secs
		FROM queues WHERE name = $1`, name)

	var cfg queue.Config
	err := row.Scan(&cfg.Name, &cfg.Strategy, &cfg.TimeoutSecs, &cfg.RetrySecs,
		&cfg.WrapupSecs, &cfg.MaxLen, &cfg.Weight, &cfg.Autofill,
		&cfg.JoinEmpty, &cfg.LeaveWhenEmpty, &cfg.AutoPause, &cfg.ServiceLevelSecs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query queue %s: %w", name, err)
	}
	return &cfg, nil
}

// realtimeMembers loads the database roster for one queue.
func (s *Service) realtimeMembers(ctx context.Context, name string) ([]types.MemberConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT interface, membername, state_interface, penalty, paused
		FROM queue_members WHERE queue_name = $1
		ORDER BY interface`, name)
	if err != nil {
		return nil, fmt.Errorf("query members for %s: %w", name, err)
	}
	defer rows.Close()

	var out []types.MemberConfig
	for rows.Next() {
		var m types.MemberConfig
		if err := rows.Scan(&m.Interface, &m.Name, &m.StateInterface, &m.Penalty, &m.Paused); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Source = types.SourceRealtime
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateRealtimePaused writes a pause flag back to the realtime table so
// it survives a reload.
func (s *Service) UpdateRealtimePaused(ctx context.Context, queueName, iface string, paused bool) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_members SET paused = $1
		WHERE queue_name = $2 AND interface = $3`, paused, queueName, iface)
	if err != nil {
		return fmt.Errorf("update paused: %w", err)
	}
	return nil
}

// PersistDynamic stores one dynamic member so it survives a restart.
func (s *Service) PersistDynamic(ctx context.Context, queueName string, m types.MemberConfig) error {
	if s.rdb == nil {
		return nil
	}
	m.Source = types.SourceDynamic
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, dynamicKeyPrefix+queueName, m.Interface, raw).Err()
}

// ForgetDynamic removes one dynamic member from the persistence layer.
func (s *Service) ForgetDynamic(ctx context.Context, queueName, iface string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.HDel(ctx, dynamicKeyPrefix+queueName, iface).Err()
}

// dynamicMembers loads the persisted dynamic roster for one queue.
func (s *Service) dynamicMembers(ctx context.Context, queueName string) ([]types.MemberConfig, error) {
	raw, err := s.rdb.HGetAll(ctx, dynamicKeyPrefix+queueName).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.MemberConfig, 0, len(raw))
	for iface, blob := range raw {
		var m types.MemberConfig
		if err := json.Unmarshal([]byte(blob), &m); err != nil {
			s.logger.Warn().Str("queue", queueName).Str("interface", iface).Msg("corrupt dynamic member dropped")
			continue
		}
		m.Source = types.SourceDynamic
		out = append(out, m)
	}
	return out, nil
}

// Reload recomposes every known queue and pushes the result into the
// registry. Queues that fail to compose are skipped, not fatal.
func (s *Service) Reload(ctx context.Context, reg *queue.Registry) error {
	names, err := s.QueueNames(ctx)
	if err != nil {
		return err
	}
	start := time.Now()
	for _, name := range names {
		cfg, err := s.Compose(ctx, name)
		if err != nil {
			s.logger.Error().Err(err).Str("queue", name).Msg("compose failed, queue skipped")
			continue
		}
		reg.Load(cfg)
	}
	s.logger.Info().Int("queues", len(names)).Dur("took", time.Since(start)).Msg("directory reload complete")
	return nil
}
