package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"car-scraper/filters"
	"car-scraper/lock"
	"car-scraper/models"
	"car-scraper/scraper/leboncoin"
	"car-scraper/storage"
	"car-scraper/utils"
)

// ErrRunInProgress is returned when a scheduled or startup run is skipped
// because another run holds the browser session.
var ErrRunInProgress = errors.New("pipeline: a run is already in progress")

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, spec *models.FilterSpec) ([]models.ScoredListing, error)
}

// SupervisorOptions tunes a Supervisor.
type SupervisorOptions struct {
	// RunTimeout bounds a whole run, 0 for no bound.
	RunTimeout time.Duration
	// MaxAttempts and RetryBaseDelay apply to startup and scheduled runs.
	MaxAttempts    int
	RetryBaseDelay time.Duration
	// MinRunInterval is the minimum spacing between two browser sessions.
	MinRunInterval time.Duration
	// PollInterval is how often a queued search retries the lock.
	PollInterval time.Duration
}

// Supervisor serialises pipeline runs behind a single-flight lock and applies
// the failure policy of each trigger.
type Supervisor struct {
	runner   Runner
	store    storage.SnapshotReader
	locker   lock.Locker
	throttle *utils.Throttle
	retry    utils.RetryConfig
	opts     SupervisorOptions
	logger   *utils.Logger

	inflight sync.WaitGroup
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(runner Runner, store storage.SnapshotReader, locker lock.Locker,
	opts SupervisorOptions, logger *utils.Logger) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return &Supervisor{
		runner:   runner,
		store:    store,
		locker:   locker,
		throttle: utils.NewThrottle(opts.MinRunInterval),
		retry: utils.RetryConfig{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.RetryBaseDelay,
			Logger:      logger,
			Retryable:   retryable,
		},
		opts:   opts,
		logger: logger,
	}
}

// Startup runs the pipeline once with the default filters. On failure it
// falls back to the persisted snapshot so there is always data to serve.
func (s *Supervisor) Startup(ctx context.Context) []models.ScoredListing {
	snapshot, err := s.background(ctx, "startup run")
	if err != nil {
		s.logger.Error("[supervisor] Startup run failed, serving last snapshot: %v", err)
		return s.store.Read()
	}
	return snapshot
}

// Scheduled runs the pipeline with the default filters. It is skipped with
// ErrRunInProgress when another run is active. Errors are logged here and
// returned for the caller's information only.
func (s *Supervisor) Scheduled(ctx context.Context) error {
	_, err := s.background(ctx, "scheduled run")
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("[supervisor] Scheduled run skipped: another run is in progress")
	case err != nil:
		s.logger.Error("[supervisor] Scheduled run failed: %v", err)
	}
	return err
}

// Search runs the pipeline with a caller-supplied, validated spec. It waits
// for any active run to finish, then runs once. The run itself is detached
// from ctx and bounded by RunTimeout, so it completes and replaces the
// snapshot even when the caller goes away.
func (s *Supervisor) Search(ctx context.Context, spec models.FilterSpec) ([]models.ScoredListing, error) {
	waitCtx, cancelWait := s.withRunTimeout(ctx)
	defer cancelWait()

	release, err := lock.Wait(waitCtx, s.locker, s.opts.PollInterval)
	if err != nil {
		return nil, err
	}
	defer release()

	s.inflight.Add(1)
	defer s.inflight.Done()

	runCtx, cancel := s.withRunTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if err := s.throttle.Wait(runCtx); err != nil {
		return nil, err
	}
	return s.runner.Run(runCtx, &spec)
}

// Wait blocks until in-flight runs finish or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// background runs the default search with retries. Each attempt takes the
// lock without waiting and releases it before the back-off, so a lease
// only has to outlive one attempt.
func (s *Supervisor) background(ctx context.Context, name string) ([]models.ScoredListing, error) {
	var snapshot []models.ScoredListing
	err := s.retry.Do(ctx, name, func() error {
		result, err := s.attempt(ctx)
		if err != nil {
			return err
		}
		snapshot = result
		return nil
	})
	return snapshot, err
}

func (s *Supervisor) attempt(ctx context.Context) ([]models.ScoredListing, error) {
	release, err := s.locker.TryLock(ctx)
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrRunInProgress
	}
	if err != nil {
		return nil, err
	}
	defer release()

	s.inflight.Add(1)
	defer s.inflight.Done()

	runCtx, cancel := s.withRunTimeout(ctx)
	defer cancel()

	if err := s.throttle.Wait(runCtx); err != nil {
		return nil, err
	}
	return s.runner.Run(runCtx, nil)
}

func (s *Supervisor) withRunTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.RunTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.RunTimeout)
}

// retryable rejects failures another attempt cannot fix.
func retryable(err error) bool {
	var verr *filters.ValidationError
	switch {
	case errors.Is(err, leboncoin.ErrAccessRestricted), errors.Is(err, ErrRunInProgress):
		return false
	case errors.As(err, &verr):
		return false
	case errors.Is(err, context.Canceled):
		return false
	}
	return true
}
