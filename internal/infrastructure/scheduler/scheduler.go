package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of periodic work
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc func(ctx context.Context) error

// Run calls f(ctx)
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Config holds configuration for an IntervalScheduler
type Config struct {
	Name       string
	Enabled    bool
	Interval   time.Duration
	JobTimeout time.Duration
	RunOnStart bool
}

// Stats is a snapshot of scheduler activity
type Stats struct {
	Runs      int64
	Failures  int64
	Skipped   int64
	LastRunAt time.Time
	LastError string
}

// IntervalScheduler runs one job every Interval. Runs never overlap: a tick
// that lands while the previous run is still going is skipped.
type IntervalScheduler struct {
	config Config
	job    Job
	logger *zap.Logger

	running   atomic.Bool
	mu        sync.Mutex
	isStarted bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewIntervalScheduler creates a scheduler for job
func NewIntervalScheduler(config Config, job Job, logger *zap.Logger) (*IntervalScheduler, error) {
	if config.Enabled && config.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s interval must be positive", ErrInvalidConfig, config.Name)
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = config.Interval
	}
	return &IntervalScheduler{
		config: config,
		job:    job,
		logger: logger.With(zap.String("scheduler", config.Name)),
	}, nil
}

// Start launches the ticker loop. Disabled schedulers log and return.
func (s *IntervalScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.isStarted = true

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Bool("run_on_start", s.config.RunOnStart),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx
func (s *IntervalScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isStarted {
		s.mu.Unlock()
		return nil
	}
	s.isStarted = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// TriggerNow runs the job synchronously outside the ticker
func (s *IntervalScheduler) TriggerNow(ctx context.Context) error {
	s.mu.Lock()
	started := s.isStarted
	s.mu.Unlock()
	if !started {
		return ErrSchedulerNotRunning
	}
	return s.runOnce(ctx)
}

// Stats returns a snapshot of run counters
func (s *IntervalScheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *IntervalScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_ = s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.runOnce(ctx)
		}
	}
}

func (s *IntervalScheduler) runOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.record(func(st *Stats) { st.Skipped++ })
		s.logger.Warn("Previous run still in progress, skipping")
		return ErrJobAlreadyRunning
	}
	defer s.running.Store(false)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := s.job.Run(jobCtx)
	s.record(func(st *Stats) {
		st.Runs++
		st.LastRunAt = start
		st.LastError = ""
		if err != nil {
			st.Failures++
			st.LastError = err.Error()
		}
	})

	if err != nil {
		s.logger.Error("Scheduled job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Debug("Scheduled job completed", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *IntervalScheduler) record(fn func(*Stats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	fn(&s.stats)
}
