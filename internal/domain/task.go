package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind names a unit of work handled by a worker class.
type TaskKind string

const (
	TaskCrawl  TaskKind = "crawl"
	TaskNotify TaskKind = "notify"
)

// Task is the explicit hand-off between the scheduler and isolated workers.
type Task struct {
	ID          string    `json:"id"`
	Kind        TaskKind  `json:"kind"`
	Chain       bool      `json:"chain,omitempty"`
	Refresh     bool      `json:"refresh,omitempty"`
	Window      *Window   `json:"window,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewTask stamps a task with a UUIDv7 identifier.
func NewTask(kind TaskKind, requestedAt time.Time) Task {
	return Task{
		ID:          NewID(),
		Kind:        kind,
		RequestedAt: requestedAt.UTC(),
	}
}

// NewID returns a time-sortable identifier for tasks and cycles.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
