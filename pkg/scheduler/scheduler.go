// Package scheduler runs the periodic sweep jobs. Each job ticks on
// its own cadence and takes a distributed lock before running, so a
// multi-instance deployment never runs the same sweep twice at once.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/laurel/pkg/appctx"
	"github.com/Ramsey-B/laurel/pkg/metrics"
	"github.com/Ramsey-B/laurel/pkg/redis"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

const (
	// DefaultLockTTL is the default TTL for sweep locks
	DefaultLockTTL = 10 * time.Minute

	// LockKeyPrefix is the prefix for sweep locks
	LockKeyPrefix = "sweep:"
)

// JobFunc is one sweep entry point
type JobFunc func(ctx context.Context) error

// Job is a named sweep on its own cadence
type Job struct {
	Name     string
	Interval time.Duration
	Run      JobFunc
}

// Config holds scheduler configuration
type Config struct {
	// LockTTL is how long a sweep lock is held; it should comfortably
	// exceed the longest sweep duration.
	LockTTL time.Duration
}

// Scheduler ticks the registered sweep jobs
type Scheduler struct {
	jobs   []Job
	locker *redis.Locker
	config Config
	logger ectologger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(locker *redis.Locker, config Config, logger ectologger.Logger) *Scheduler {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	return &Scheduler{
		locker: locker,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Register adds a sweep job. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run JobFunc) {
	s.jobs = append(s.jobs, Job{Name: name, Interval: interval, Run: run})
}

// Start launches one ticker goroutine per registered job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler with %d jobs", len(s.jobs))

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.jobLoop(ctx, job)
	}

	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	close(s.stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) jobLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runJob(ctx, job)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debugf("Job loop stopping: %s", job.Name)
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

// runJob runs one sweep under its distributed lock. A lock miss means
// another instance is already sweeping; that is a skip, not an error.
func (s *Scheduler) runJob(ctx context.Context, job Job) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runJob")
	defer span.End()

	ctx = appctx.SetActor(ctx, "system")

	lock, err := s.locker.Acquire(ctx, LockKeyPrefix+job.Name, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			metrics.SweepRunsTotal.WithLabelValues(job.Name, "skipped").Inc()
			s.logger.WithContext(ctx).Debugf("Sweep %s already running elsewhere, skipping", job.Name)
			return
		}
		metrics.SweepRunsTotal.WithLabelValues(job.Name, "lock_error").Inc()
		s.logger.WithContext(ctx).WithError(err).Errorf("Failed to acquire lock for sweep %s", job.Name)
		return
	}
	defer lock.Release(ctx)

	start := time.Now()
	s.logger.WithContext(ctx).Debugf("Running sweep: %s", job.Name)

	if err := job.Run(ctx); err != nil {
		metrics.SweepRunsTotal.WithLabelValues(job.Name, "error").Inc()
		s.logger.WithContext(ctx).WithError(err).Errorf("Sweep %s failed", job.Name)
	} else {
		metrics.SweepRunsTotal.WithLabelValues(job.Name, "success").Inc()
	}

	duration := time.Since(start)
	metrics.SweepDuration.WithLabelValues(job.Name).Observe(duration.Seconds())
	s.logger.WithContext(ctx).Infof("Sweep %s completed in %s", job.Name, duration)
}
