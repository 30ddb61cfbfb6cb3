package api

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gami-engine/canister"
)

func TestProfileSyncScheduler_RunNow(t *testing.T) {
	// GIVEN a logged-in player whose remote profile is ahead
	s := newTestServer(t, fixedProvider{})
	s.login(t)
	s.network.SeedProfile(canister.UserProfile{ID: testPrincipal, Username: "ada", XP: 12500, Level: 13})
	logger, _ := test.NewNullLogger()
	sched, err := NewProfileSyncScheduler(s.handler.Manager, "@every 5m", logger)
	require.NoError(t, err)

	// WHEN syncing immediately
	sched.RunNow()

	// THEN the remote xp is adopted
	stats := s.handler.Manager.GetUserStats(context.Background())
	assert.Equal(t, int64(12500), stats.XP)
	assert.Equal(t, 13, stats.Level)
}

func TestProfileSyncScheduler_SkipsWithoutSession(t *testing.T) {
	s := newTestServer(t, fixedProvider{})
	logger, hook := test.NewNullLogger()
	sched, err := NewProfileSyncScheduler(s.handler.Manager, "@every 5m", logger)
	require.NoError(t, err)

	sched.RunNow()

	assert.Equal(t, int64(2847), s.handler.Manager.GetUserStats(context.Background()).XP)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "profile synced", e.Message)
	}
}

func TestProfileSyncScheduler_StartStop(t *testing.T) {
	s := newTestServer(t, fixedProvider{})
	logger, _ := test.NewNullLogger()
	sched, err := NewProfileSyncScheduler(s.handler.Manager, "*/10 * * * *", logger)
	require.NoError(t, err)
	assert.True(t, sched.NextRun().IsZero())

	sched.Start()
	t.Cleanup(sched.Stop)

	assert.False(t, sched.NextRun().IsZero())
	sched.Start()
}

func TestProfileSyncScheduler_BadSchedule(t *testing.T) {
	s := newTestServer(t, fixedProvider{})
	logger, _ := test.NewNullLogger()

	_, err := NewProfileSyncScheduler(s.handler.Manager, "every now and then", logger)

	assert.Error(t, err)
}
