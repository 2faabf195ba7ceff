package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// Runner executes or hands off a task.
type Runner interface {
	Submit(ctx context.Context, task domain.Task) error
}

// LocalRunner executes tasks in-process against the pipeline.
type LocalRunner struct {
	pipeline *Pipeline
	logger   *zap.Logger
}

// NewLocalRunner is used when no queue separates the workers.
func NewLocalRunner(pipeline *Pipeline, logger *zap.Logger) *LocalRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalRunner{pipeline: pipeline, logger: logger}
}

// Submit runs the task to completion. Pipeline failures are logged, not returned.
func (r *LocalRunner) Submit(ctx context.Context, task domain.Task) error {
	log := r.logger.With(zap.String("task_id", task.ID), zap.String("kind", string(task.Kind)))
	switch task.Kind {
	case domain.TaskCrawl:
		if task.Chain {
			outcome := r.pipeline.RunCycle(ctx, CycleOptions{Refresh: task.Refresh})
			log.Info("cycle task finished", zap.String("cycle_id", outcome.ID), zap.String("state", string(outcome.State)))
			return nil
		}
		if task.Refresh {
			if _, err := r.pipeline.RefreshSettings(ctx); err != nil {
				log.Warn("settings refresh failed", zap.Error(err))
			}
		}
		if _, err := r.pipeline.Ingest(ctx); err != nil {
			log.Warn("crawl task failed", zap.Error(err))
		}
		return nil
	case domain.TaskNotify:
		if _, err := r.pipeline.Notify(ctx, task.Window); err != nil {
			log.Warn("notify task failed", zap.Error(err))
		}
		return nil
	default:
		return fmt.Errorf("unknown task kind %q", task.Kind)
	}
}

// QueueRunner publishes tasks for isolated workers.
type QueueRunner struct {
	queue ports.Queue
}

// NewQueueRunner wraps a queue.
func NewQueueRunner(queue ports.Queue) *QueueRunner {
	return &QueueRunner{queue: queue}
}

// Submit publishes the task.
func (r *QueueRunner) Submit(ctx context.Context, task domain.Task) error {
	return r.queue.Publish(ctx, task)
}
