package usecase

import (
	"context"
	"strings"
	"time"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
)

// Retriever queries the index for one keyword inside an inclusive window.
type Retriever struct {
	index   ports.DocumentIndex
	timeout time.Duration
}

// NewRetriever binds the index with a per-query timeout.
func NewRetriever(index ports.DocumentIndex, timeout time.Duration) *Retriever {
	return &Retriever{index: index, timeout: timeout}
}

// Search returns up to limit documents in index relevance order. A blank
// keyword issues no query.
func (r *Retriever) Search(ctx context.Context, keyword string, w domain.Window, limit int) ([]domain.Document, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || limit <= 0 {
		return nil, nil
	}

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	docs, err := r.index.Search(ctx, domain.Query{
		Keyword: keyword,
		From:    w.Start,
		To:      w.End,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}
