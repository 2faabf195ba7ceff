package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// Workers consume crawl and notify tasks from a queue.
type Workers struct {
	queue    ports.Queue
	pipeline *Pipeline
	logger   *zap.Logger
	now      func() time.Time
}

// NewWorkers binds a queue to the pipeline.
func NewWorkers(queue ports.Queue, pipeline *Pipeline, logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workers{queue: queue, pipeline: pipeline, logger: logger, now: time.Now}
}

// RunCrawler blocks consuming crawl tasks until ctx ends.
func (w *Workers) RunCrawler(ctx context.Context) error {
	w.logger.Info("crawler worker started")
	return w.queue.Consume(ctx, domain.TaskCrawl, w.HandleCrawl)
}

// RunNotifier blocks consuming notify tasks until ctx ends.
func (w *Workers) RunNotifier(ctx context.Context) error {
	w.logger.Info("notifier worker started")
	return w.queue.Consume(ctx, domain.TaskNotify, w.HandleNotify)
}

// HandleCrawl ingests the next window and, for chained tasks, enqueues the
// notification for exactly that window. Only the hand-off error is returned
// so the queue redelivers; a redelivered crawl is duplicate-safe.
func (w *Workers) HandleCrawl(ctx context.Context, task domain.Task) error {
	log := w.logger.With(zap.String("task_id", task.ID))
	if task.Refresh {
		if _, err := w.pipeline.RefreshSettings(ctx); err != nil {
			log.Warn("settings refresh failed", zap.Error(err))
		}
	}

	report, err := w.pipeline.Ingest(ctx)
	if err != nil {
		log.Error("crawl task failed", zap.Error(err))
		return nil
	}
	if !task.Chain {
		return nil
	}

	next := domain.NewTask(domain.TaskNotify, w.now())
	win := report.Window
	next.Window = &win
	if err := w.queue.Publish(ctx, next); err != nil {
		return fmt.Errorf("enqueue notify for %s: %w", task.ID, err)
	}
	log.Info("notify task enqueued", zap.String("notify_task_id", next.ID))
	return nil
}

// HandleNotify runs notification over the task's window.
func (w *Workers) HandleNotify(ctx context.Context, task domain.Task) error {
	results, err := w.pipeline.Notify(ctx, task.Window)
	if err != nil {
		w.logger.Error("notify task failed", zap.String("task_id", task.ID), zap.Error(err))
		return nil
	}
	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	w.logger.Info("notify task finished",
		zap.String("task_id", task.ID),
		zap.Int("keywords", len(results)),
		zap.Int("failed", failed))
	return nil
}
