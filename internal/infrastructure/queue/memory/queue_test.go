package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func TestQueueRoutesByKind(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domain.Task, 2)
	consumed := make(chan error, 1)
	go func() {
		consumed <- q.Consume(ctx, domain.TaskNotify, func(_ context.Context, task domain.Task) error {
			got <- task
			return errors.New("ignored")
		})
	}()

	crawl := domain.NewTask(domain.TaskCrawl, time.Now())
	notify := domain.NewTask(domain.TaskNotify, time.Now())
	require.NoError(t, q.Publish(ctx, crawl))
	require.NoError(t, q.Publish(ctx, notify))

	select {
	case task := <-got:
		assert.Equal(t, notify.ID, task.ID)
	case <-time.After(time.Second):
		t.Fatal("notify task was not consumed")
	}

	cancel()
	select {
	case err := <-consumed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, got)
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(0, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), domain.NewTask(domain.TaskCrawl, time.Now()))
	assert.ErrorIs(t, err, ErrClosed)

	err = q.Consume(context.Background(), domain.TaskCrawl, func(context.Context, domain.Task) error { return nil })
	assert.NoError(t, err)
}

func TestQueuePublishCanceled(t *testing.T) {
	t.Parallel()

	q := NewQueue(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Publish(ctx, domain.NewTask(domain.TaskCrawl, time.Now()))
	assert.ErrorIs(t, err, context.Canceled)
}
