/*
scheduler.go - Periodic profile sync

PURPOSE:
  Keeps local progression in step with the profiles canister. On every
  tick it adopts the remote profile's xp and asks the leaderboard
  canister to recompute rankings.

DESIGN:
  - Uses a cron schedule ("@every 5m" by default, any 5-field spec works)
  - Skips ticks while nobody is logged in
  - Failures are logged; the next tick retries

USAGE:
  scheduler, err := NewProfileSyncScheduler(mgr, "@every 5m", log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - progression/remote.go: SyncProfile, RefreshRankings
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/gami-engine/progression"
)

// ProfileSyncScheduler runs SyncProfile and RefreshRankings on a schedule.
type ProfileSyncScheduler struct {
	Manager *progression.Manager
	Timeout time.Duration

	log   logrus.FieldLogger
	cron  *cron.Cron
	entry cron.EntryID

	mu      sync.Mutex
	running bool
}

// NewProfileSyncScheduler parses schedule and registers the sync job.
func NewProfileSyncScheduler(mgr *progression.Manager, schedule string, log logrus.FieldLogger) (*ProfileSyncScheduler, error) {
	s := &ProfileSyncScheduler{
		Manager: mgr,
		Timeout: 30 * time.Second,
		log:     log.WithField("component", "scheduler"),
		cron:    cron.New(),
	}
	id, err := s.cron.AddFunc(schedule, s.RunNow)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start begins the scheduler.
func (s *ProfileSyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.log.WithField("next", s.cron.Entry(s.entry).Next).Info("profile sync started")
}

// Stop stops the scheduler and waits for a running sync to finish.
func (s *ProfileSyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("profile sync stopped")
}

// RunNow syncs immediately.
func (s *ProfileSyncScheduler) RunNow() {
	if s.Manager.Session() == nil {
		s.log.Debug("no session, skipping profile sync")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	profile, err := s.Manager.SyncProfile(ctx)
	if err != nil {
		s.log.WithError(err).Warn("profile sync failed")
		return
	}
	if err := s.Manager.RefreshRankings(ctx); err != nil {
		s.log.WithError(err).Warn("refresh rankings failed")
	}
	if profile != nil {
		s.log.WithFields(logrus.Fields{
			"principal": profile.ID,
			"xp":        profile.XP,
		}).Info("profile synced")
	}
}

// NextRun returns when the next sync will occur. Zero before Start.
func (s *ProfileSyncScheduler) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}
