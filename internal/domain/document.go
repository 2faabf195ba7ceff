package domain

import (
	"errors"
	"time"
)

// Entry is a raw feed record before it becomes an indexed Document.
type Entry struct {
	ID          string
	Title       string
	Authors     []string
	Summary     string
	PublishedAt time.Time
	Link        string
	Category    string
}

// Document is an indexed paper. It is never mutated once written.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Authors     []string  `json:"authors"`
	Abstract    string    `json:"abstract"`
	PublishedAt time.Time `json:"published_date"`
	Link        string    `json:"link"`
}

// RankedResult pairs a document with an optional relevance score.
type RankedResult struct {
	Document Document
	Score    *float64
}

// HasScore reports whether a reranker scored the result.
func (r RankedResult) HasScore() bool {
	return r.Score != nil
}

// WriteOutcome classifies a create-only index write.
type WriteOutcome int

const (
	WriteFailed WriteOutcome = iota
	WriteCreated
	WriteAlreadyExists
)

func (o WriteOutcome) String() string {
	switch o {
	case WriteCreated:
		return "created"
	case WriteAlreadyExists:
		return "already_exists"
	default:
		return "failed"
	}
}

// Query describes a retrieval against the index.
type Query struct {
	Keyword string
	From    time.Time
	To      time.Time
	Limit   int
}

// CrawlState is the persisted bookkeeping of the last completed window.
type CrawlState struct {
	LastCrawlEnd *time.Time
	// LastCrawlStart is nil for state written before window starts were kept.
	LastCrawlStart *time.Time
	DocumentCount  int
}

var (
	// ErrFetchFailed means no category could be fetched for a window.
	ErrFetchFailed = errors.New("feed fetch failed for every category")
	// ErrNoCategories means ingestion was asked to run without categories.
	ErrNoCategories = errors.New("no categories configured")
	// ErrNotFound is returned by state lookups for absent keys.
	ErrNotFound = errors.New("not found")
)
