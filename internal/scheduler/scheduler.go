/**
 * @description
 * Cron runner for the housekeeping sweeps: stale withdrawal expiry and
 * one-time token purging.
 */
package scheduler

import (
	"context"
	"log/slog"

	"github.com/Zymoclassic/eduplat/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler owns the cron instance and the sweep schedules.
type Scheduler struct {
	runner         *cron.Cron
	jobs           *Jobs
	logger         *slog.Logger
	expirySchedule string
	purgeSchedule  string
}

func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	return &Scheduler{
		runner:         cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		jobs:           jobs,
		logger:         logger,
		expirySchedule: cfg.WithdrawalExpirySchedule,
		purgeSchedule:  cfg.TokenPurgeSchedule,
	}
}

// Start registers the sweeps and starts the runner. It returns how many
// sweeps were accepted; a malformed schedule is logged and skipped.
func (s *Scheduler) Start() int {
	accepted := 0
	for _, entry := range []struct {
		name     string
		schedule string
		run      func()
	}{
		{"withdrawal_expiry", s.expirySchedule, s.jobs.ExpireStaleWithdrawals},
		{"token_purge", s.purgeSchedule, s.jobs.PurgeExpiredTokens},
	} {
		if _, err := s.runner.AddFunc(entry.schedule, entry.run); err != nil {
			s.logger.Error("sweep not scheduled", "job", entry.name, "schedule", entry.schedule, "error", err)
			continue
		}
		accepted++
		s.logger.Info("sweep scheduled", "job", entry.name, "schedule", entry.schedule)
	}

	s.runner.Start()
	return accepted
}

// Stop halts the runner; the returned context is done once running sweeps finish.
func (s *Scheduler) Stop() context.Context {
	return s.runner.Stop()
}
