package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
	"github.com/angelmondragon/licensehub-wallet/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval while holding the
// cluster-wide cron lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
		now:      time.Now,
	}
	if s.registry == nil {
		s.registry, _ = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run fires a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce executes one locked cycle. Job failures are collected and returned
// together; a cycle skipped because another replica holds the lock is not an
// error.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	if ctx.Err() != nil {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "cron lock held by another replica, skipping cycle")
		return nil
	}
	defer func() {
		// release on a fresh context so shutdown does not strand the lease
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			err = multierr.Append(err, fmt.Errorf("lock release: %w", relErr))
		}
	}()

	cycleStart := s.now()
	for i, job := range s.registry.Jobs() {
		if i > 0 {
			if refreshErr := s.lock.Refresh(ctx); refreshErr != nil {
				return multierr.Append(err, fmt.Errorf("lock refresh before %s: %w", job.Name(), refreshErr))
			}
		}
		err = multierr.Append(err, s.runJob(ctx, job))
		if ctx.Err() != nil {
			break
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        s.registry.Len(),
		"failures":    len(multierr.Errors(err)),
		"duration_ms": s.now().Sub(cycleStart).Milliseconds(),
	}), "cron.cycle_complete")
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	runCtx := jobCtx
	if bounded, ok := job.(TimeoutJob); ok && bounded.Timeout() > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(jobCtx, bounded.Timeout())
		defer cancel()
	}

	start := s.now()
	err := s.safeRun(runCtx, job)
	elapsed := s.now().Sub(start)
	s.metrics.ObserveDuration(name, elapsed)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(jobCtx, "job failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(jobCtx, "job completed")
	return nil
}

// safeRun turns a job panic into an error so later jobs still run.
func (s *Service) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint("panic: ", r))
		}
	}()
	return job.Run(ctx)
}
