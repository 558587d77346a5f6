package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"car-scraper/utils"
)

// Scheduler triggers Supervisor.Scheduled on a five-field cron expression
// evaluated in local time.
type Scheduler struct {
	cron   *cron.Cron
	expr   string
	logger *utils.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler registers the scheduled run. It fails on an invalid
// expression.
func NewScheduler(expr string, sup *Supervisor, logger *utils.Logger) (*Scheduler, error) {
	return newScheduler(expr, func(ctx context.Context) { _ = sup.Scheduled(ctx) }, logger)
}

func newScheduler(expr string, job func(ctx context.Context), logger *utils.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := cron.PrintfLogger(logger)

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		expr:   expr,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	_, err := s.cron.AddFunc(expr, func() {
		s.logger.Info("[scheduler] Triggering scheduled run (%s)", s.expr)
		job(s.ctx)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", expr, err)
	}
	return s, nil
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		s.logger.Info("[scheduler] Started with %q, next run at %s", s.expr, next.Format(time.RFC3339))
	}
}

// Next returns the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop stops firing and returns a context that is done once a running job
// has returned. The running job is not cancelled.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("[scheduler] Stopping")
	return s.cron.Stop()
}

// Abort cancels the context handed to a running job.
func (s *Scheduler) Abort() {
	s.cancel()
}
