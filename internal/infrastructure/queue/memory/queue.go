// Package memory provides a channel-backed task queue for single-process runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with one channel per task kind.
type Queue struct {
	capacity int
	logger   *zap.Logger

	mu    sync.Mutex
	chans map[domain.TaskKind]chan domain.Task

	done      chan struct{}
	closeOnce sync.Once
}

var _ ports.Queue = (*Queue)(nil)

// NewQueue constructs a queue whose per-kind buffers hold capacity tasks.
func NewQueue(capacity int, logger *zap.Logger) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		capacity: capacity,
		logger:   logger,
		chans:    make(map[domain.TaskKind]chan domain.Task),
		done:     make(chan struct{}),
	}
}

func (q *Queue) channel(kind domain.TaskKind) chan domain.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.chans[kind]
	if !ok {
		ch = make(chan domain.Task, q.capacity)
		q.chans[kind] = ch
	}
	return ch
}

// Publish pushes a task or returns if the context ends.
func (q *Queue) Publish(ctx context.Context, task domain.Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("publish canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.channel(task.Kind) <- task:
		return nil
	}
}

// Consume hands tasks of kind to handler one at a time until ctx ends or the queue closes.
func (q *Queue) Consume(ctx context.Context, kind domain.TaskKind, handler ports.TaskHandler) error {
	ch := q.channel(kind)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.done:
			return nil
		case task := <-ch:
			if err := handler(ctx, task); err != nil {
				q.logger.Warn("task handler failed",
					zap.String("task_id", task.ID),
					zap.String("kind", string(task.Kind)),
					zap.Error(err))
			}
		}
	}
}

// Close stops consumers and rejects new tasks.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
