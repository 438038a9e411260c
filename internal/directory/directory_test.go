package directory

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialdesk/acd/internal/device"
	"github.com/dialdesk/acd/internal/queue"
	"github.com/dialdesk/acd/internal/types"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestComposeStaticOnly(t *testing.T) {
	svc := New(nil, nil, zerolog.Nop())
	svc.SetStatic([]queue.Config{{
		Name:     "support",
		Strategy: "rrmemory",
		Members:  []types.MemberConfig{{Interface: "SIP/1001", Penalty: 1}},
	}})

	cfg, err := svc.Compose(context.Background(), "support")
	require.NoError(t, err)
	assert.Equal(t, "rrmemory", cfg.Strategy)
	require.Len(t, cfg.Members, 1)
	assert.Equal(t, types.SourceStatic, cfg.Members[0].Source)
}

func TestComposeUnknownQueue(t *testing.T) {
	svc := New(nil, nil, zerolog.Nop())
	_, err := svc.Compose(context.Background(), "ghost")
	assert.ErrorIs(t, err, queue.ErrNoSuchQueue)
}

func TestComposeMergesLayersStaticWins(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rdb := newRedis(t)
	svc := New(db, rdb, zerolog.Nop())
	svc.SetStatic([]queue.Config{{
		Name:     "support",
		Strategy: "ringall",
		Members:  []types.MemberConfig{{Interface: "SIP/1001", Penalty: 1}},
	}})

	// Realtime roster carries a duplicate of the static member with a
	// different penalty plus one member of its own.
	mock.ExpectQuery("SELECT interface, membername, state_interface, penalty, paused").
		WithArgs("support").
		WillReturnRows(sqlmock.NewRows([]string{"interface", "membername", "state_interface", "penalty", "paused"}).
			AddRow("SIP/1001", "alice", "SIP/1001", 9, false).
			AddRow("SIP/1002", "bob", "SIP/1002", 2, true))

	require.NoError(t, svc.PersistDynamic(context.Background(), "support",
		types.MemberConfig{Interface: "Local/3000", Name: "carol"}))

	cfg, err := svc.Compose(context.Background(), "support")
	require.NoError(t, err)
	require.Len(t, cfg.Members, 3)

	byIface := map[string]types.MemberConfig{}
	for _, m := range cfg.Members {
		byIface[m.Interface] = m
	}
	assert.Equal(t, 1, byIface["SIP/1001"].Penalty, "static definition wins over realtime")
	assert.Equal(t, types.SourceStatic, byIface["SIP/1001"].Source)
	assert.Equal(t, types.SourceRealtime, byIface["SIP/1002"].Source)
	assert.True(t, byIface["SIP/1002"].Paused)
	assert.Equal(t, types.SourceDynamic, byIface["Local/3000"].Source)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComposeRealtimeQueue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(db, nil, zerolog.Nop())

	mock.ExpectQuery("SELECT name, strategy, timeout_secs").
		WithArgs("overflow").
		WillReturnRows(sqlmock.NewRows([]string{
			"name", "strategy", "timeout_secs", "retry_secs", "wrapup_secs",
			"max_len", "weight", "autofill", "join_empty", "leave_when_empty",
			"auto_pause", "service_level_secs",
		}).AddRow("overflow", "leastrecent", 20, 5, 0, 0, 3, true, "strict", "", "no", 60))
	mock.ExpectQuery("SELECT interface, membername, state_interface, penalty, paused").
		WithArgs("overflow").
		WillReturnRows(sqlmock.NewRows([]string{"interface", "membername", "state_interface", "penalty", "paused"}))

	cfg, err := svc.Compose(context.Background(), "overflow")
	require.NoError(t, err)
	assert.Equal(t, "leastrecent", cfg.Strategy)
	assert.Equal(t, 20, cfg.TimeoutSecs)
	assert.Equal(t, 3, cfg.Weight)
	assert.True(t, cfg.Autofill)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComposeMissingEverywhere(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(db, nil, zerolog.Nop())
	mock.ExpectQuery("SELECT name, strategy, timeout_secs").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = svc.Compose(context.Background(), "ghost")
	assert.ErrorIs(t, err, queue.ErrNoSuchQueue)
}

func TestQueueNamesMergesSources(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(db, nil, zerolog.Nop())
	svc.SetStatic([]queue.Config{{Name: "support"}, {Name: "sales"}})

	mock.ExpectQuery("SELECT name FROM queues").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("support").
			AddRow("overflow"))

	names, err := svc.QueueNames(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"support", "sales", "overflow"}, names)
}

func TestDynamicRoundTrip(t *testing.T) {
	rdb := newRedis(t)
	svc := New(nil, rdb, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.PersistDynamic(ctx, "support",
		types.MemberConfig{Interface: "Local/3000", Name: "carol", Penalty: 2}))

	members, err := svc.dynamicMembers(ctx, "support")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "carol", members[0].Name)
	assert.Equal(t, 2, members[0].Penalty)
	assert.Equal(t, types.SourceDynamic, members[0].Source)

	require.NoError(t, svc.ForgetDynamic(ctx, "support", "Local/3000"))
	members, err = svc.dynamicMembers(ctx, "support")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestCorruptDynamicMemberDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.HSet("acd:dynamic:support", "Local/3000", "{not json")

	svc := New(nil, rdb, zerolog.Nop())
	svc.SetStatic([]queue.Config{{Name: "support", Strategy: "ringall"}})

	cfg, err := svc.Compose(context.Background(), "support")
	require.NoError(t, err)
	assert.Empty(t, cfg.Members, "corrupt entries degrade, never fail the compose")
}

func TestUpdateRealtimePaused(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := New(db, nil, zerolog.Nop())
	mock.ExpectExec("UPDATE queue_members SET paused").
		WithArgs(true, "support", "SIP/1001").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.UpdateRealtimePaused(context.Background(), "support", "SIP/1001", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReloadLoadsEveryComposableQueue(t *testing.T) {
	svc := New(nil, nil, zerolog.Nop())
	svc.SetStatic([]queue.Config{
		{Name: "support", Strategy: "ringall",
			Members: []types.MemberConfig{{Interface: "SIP/1001"}}},
		{Name: "sales", Strategy: "leastrecent"},
	})

	devices := device.NewRegistry(zerolog.Nop())
	reg := queue.NewRegistry(devices, zerolog.Nop())
	require.NoError(t, svc.Reload(context.Background(), reg))

	assert.Len(t, reg.Queues(), 2)
	q, err := reg.Find("support")
	require.NoError(t, err)
	assert.Equal(t, 1, q.Stats().MemberCount())
}
