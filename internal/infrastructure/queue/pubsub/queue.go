// Package pubsub carries tasks between isolated workers over Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// Options names the topic and subscription for each task kind.
type Options struct {
	CrawlTopic         string
	NotifyTopic        string
	CrawlSubscription  string
	NotifySubscription string
}

// Queue publishes tasks as JSON messages and consumes them one at a time.
type Queue struct {
	client *pubsub.Client
	topics map[domain.TaskKind]*pubsub.Topic
	subs   map[domain.TaskKind]string
	logger *zap.Logger
}

var _ ports.Queue = (*Queue)(nil)

// NewClient creates a client authenticated with Application Default Credentials.
func NewClient(ctx context.Context, projectID string) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return client, nil
}

// New wraps client; the queue owns it from here on and closes it in Close.
func New(client *pubsub.Client, opts Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		client: client,
		topics: map[domain.TaskKind]*pubsub.Topic{
			domain.TaskCrawl:  client.Topic(opts.CrawlTopic),
			domain.TaskNotify: client.Topic(opts.NotifyTopic),
		},
		subs: map[domain.TaskKind]string{
			domain.TaskCrawl:  opts.CrawlSubscription,
			domain.TaskNotify: opts.NotifySubscription,
		},
		logger: logger,
	}
}

// Publish sends the task and waits for the server to acknowledge it.
func (q *Queue) Publish(ctx context.Context, task domain.Task) error {
	topic, ok := q.topics[task.Kind]
	if !ok {
		return fmt.Errorf("no topic for task kind %q", task.Kind)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"kind":    string(task.Kind),
			"task_id": task.ID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish %s task %s: %w", task.Kind, task.ID, err)
	}
	return nil
}

// Consume receives tasks until ctx ends. Handler errors nack the message so
// Pub/Sub redelivers it; undecodable messages are acked and dropped.
func (q *Queue) Consume(ctx context.Context, kind domain.TaskKind, handler ports.TaskHandler) error {
	name, ok := q.subs[kind]
	if !ok || name == "" {
		return fmt.Errorf("no subscription for task kind %q", kind)
	}
	sub := q.client.Subscription(name)
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.NumGoroutines = 1

	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var task domain.Task
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			q.logger.Error("dropping undecodable task", zap.String("message_id", msg.ID), zap.Error(err))
			msg.Ack()
			return
		}
		if err := handler(ctx, task); err != nil {
			q.logger.Warn("task handler failed, will be redelivered",
				zap.String("task_id", task.ID),
				zap.String("kind", string(task.Kind)),
				zap.Error(err))
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("receive %s: %w", name, err)
	}
	return nil
}

// Close flushes publishers and closes the client.
func (q *Queue) Close() error {
	for _, topic := range q.topics {
		topic.Stop()
	}
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
