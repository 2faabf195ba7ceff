package ports

import (
	"context"
	"time"

	"PaperNotifier/internal/domain"
)

// FeedClient pulls raw entries for one category submitted inside a window.
type FeedClient interface {
	Fetch(ctx context.Context, category string, window domain.Window) ([]domain.Entry, error)
}

// DocumentIndex is the shared, append-only full-text index.
type DocumentIndex interface {
	// Create inserts doc only if its identifier is absent. An existing
	// identifier yields WriteAlreadyExists and a nil error.
	Create(ctx context.Context, doc domain.Document) (domain.WriteOutcome, error)
	// Search returns documents whose abstract matches the keyword terms and
	// whose published time is inside [From, To], in index relevance order.
	Search(ctx context.Context, q domain.Query) ([]domain.Document, error)
}

// StateStore is the shared key-value store holding crawl state, keywords and settings.
type StateStore interface {
	// Get returns domain.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set writes a value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetMany writes all values atomically.
	SetMany(ctx context.Context, values map[string]string) error
	Members(ctx context.Context, key string) ([]string, error)
	// ReplaceMembers swaps the whole set atomically; an empty slice deletes it.
	ReplaceMembers(ctx context.Context, key string, members []string) error
}

// Scorer computes relevance of each text to a query in one batched call.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
	Model() string
}

// Messenger formats ranked results and delivers them to an external endpoint.
type Messenger interface {
	Name() string
	Format(keyword string, results []domain.RankedResult) (domain.Message, error)
	Send(ctx context.Context, msg domain.Message) (domain.Delivery, error)
}

// TaskHandler processes a task consumed from a queue.
type TaskHandler func(ctx context.Context, task domain.Task) error

// Queue hands tasks between isolated workers.
type Queue interface {
	Publish(ctx context.Context, task domain.Task) error
	// Consume blocks, dispatching tasks of the given kind until ctx ends.
	Consume(ctx context.Context, kind domain.TaskKind, handler TaskHandler) error
	Close() error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
