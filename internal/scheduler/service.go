// Package scheduler runs periodic jobs under a cluster-wide lock.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/vaidashi/delivery-orders/pkg/logger"
	"github.com/vaidashi/delivery-orders/pkg/metrics"
)

const defaultInterval = 15 * time.Minute

// ServiceParams configure the scheduler
type ServiceParams struct {
	Logger   logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs the registered jobs on a fixed cadence
type Service struct {
	logger   logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

// NewService creates a new Service
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}

	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Service{
		logger:   params.Logger.With("component", "scheduler"),
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then every interval until ctx is done
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logger.Error("Scheduled run failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logger.Error("Scheduled run failed", "error", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !locked {
		s.logger.Info("Another scheduler holds the lock, skipping cycle")
		return nil
	}
	defer func() {
		// release even when ctx was cancelled mid-cycle
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("Failed to release scheduler lock", "error", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	log := s.logger.With("job", job.Name())
	start := time.Now()

	err := job.Run(ctx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)

	if err != nil {
		log.Error("Job failed", "error", err, "durationMs", duration.Milliseconds())
		s.metrics.IncFailure(job.Name())
		return
	}

	log.Info("Job completed", "durationMs", duration.Milliseconds())
	s.metrics.IncSuccess(job.Name())
}
