package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// ErrSchedulerStopped is returned by manual triggers outside Start/Stop.
var ErrSchedulerStopped = errors.New("scheduler is not running")

// Scheduler wires the cron-like driver and manual triggers with a Runner.
type Scheduler struct {
	driver      ports.Scheduler
	runner      Runner
	runNowDelay time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	ctx     context.Context
	pending map[*time.Timer]struct{}
	wg      sync.WaitGroup
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, runner Runner, runNowDelay time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		driver:      driver,
		runner:      runner,
		runNowDelay: runNowDelay,
		logger:      logger,
		now:         time.Now,
		pending:     make(map[*time.Timer]struct{}),
	}
}

// Start registers the full chain with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if s.driver == nil {
		return nil
	}
	job := func(trigger time.Time) {
		task := domain.NewTask(domain.TaskCrawl, trigger)
		task.Chain = true
		s.submit(ctx, task)
	}
	return s.driver.Start(ctx, job)
}

// RunNow schedules the full chain with a settings refresh after the
// configured delay, and returns the task and when it will run.
func (s *Scheduler) RunNow() (domain.Task, time.Time, error) {
	task := domain.NewTask(domain.TaskCrawl, s.now())
	task.Chain = true
	task.Refresh = true
	at, err := s.after(s.runNowDelay, task)
	return task, at, err
}

// RunCrawl triggers ingestion only.
func (s *Scheduler) RunCrawl() (domain.Task, error) {
	task := domain.NewTask(domain.TaskCrawl, s.now())
	_, err := s.after(0, task)
	return task, err
}

// RunNotify triggers notification only over the last ingested window.
func (s *Scheduler) RunNotify() (domain.Task, error) {
	task := domain.NewTask(domain.TaskNotify, s.now())
	_, err := s.after(0, task)
	return task, err
}

func (s *Scheduler) after(delay time.Duration, task domain.Task) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return time.Time{}, ErrSchedulerStopped
	}
	ctx := s.ctx

	var timer *time.Timer
	s.wg.Add(1)
	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.pending, timer)
		s.mu.Unlock()
		s.submit(ctx, task)
	})
	s.pending[timer] = struct{}{}

	at := s.now().Add(delay).UTC()
	s.logger.Info("task scheduled",
		zap.String("task_id", task.ID),
		zap.String("kind", string(task.Kind)),
		zap.Bool("chain", task.Chain),
		zap.Time("at", at))
	return at, nil
}

func (s *Scheduler) submit(ctx context.Context, task domain.Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", zap.String("task_id", task.ID), zap.Any("panic", r))
		}
	}()
	if err := s.runner.Submit(ctx, task); err != nil {
		s.logger.Error("submit task failed",
			zap.String("task_id", task.ID),
			zap.String("kind", string(task.Kind)),
			zap.Error(err))
	}
}

// Stop cancels pending manual triggers, waits for running ones and stops the driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = nil
	for timer := range s.pending {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.pending, timer)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("wait for running tasks: %w", ctx.Err())
	}

	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
