// internal/scheduler/scheduler.go
//
// Package scheduler runs periodic full syncs on a cron expression.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github-dashboard/internal/model"
)

// Syncer runs one full fetch-and-snapshot pass.
type Syncer interface {
	Sync(ctx context.Context) (model.SyncReport, error)
}

// Scheduler wraps a cron runner around a Syncer.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New schedules syncer on the given cron spec (standard 5-field format).
func New(spec string, syncer Syncer, logger *slog.Logger) (*Scheduler, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		report, err := syncer.Sync(context.Background())
		if err != nil {
			logger.Error("scheduled sync failed", "error", err)
			return
		}
		logger.Info("scheduled sync complete",
			"repos", report.Stats.Repos,
			"issues", report.Stats.Issues,
			"prs", report.Stats.PRs,
			"commits", report.Stats.Commits,
		)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start begins running scheduled syncs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any in-flight sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
