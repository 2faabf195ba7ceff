package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
)

// IngestReport summarizes one ingestion pass.
type IngestReport struct {
	Window           domain.Window
	Processed        int
	Created          int
	Skipped          int
	Failed           int
	FailedCategories []string
	// Documents holds the newly created documents.
	Documents []domain.Document
}

// IngestorDeps wires the feed and index into the indexer.
type IngestorDeps struct {
	Feed         ports.FeedClient
	Index        ports.DocumentIndex
	FetchTimeout time.Duration
	WriteTimeout time.Duration
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Ingestor fetches a window per category and performs create-only writes.
type Ingestor struct {
	feed         ports.FeedClient
	index        ports.DocumentIndex
	fetchTimeout time.Duration
	writeTimeout time.Duration
	policy       *bluemonday.Policy
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewIngestor constructs the indexer.
func NewIngestor(deps IngestorDeps) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		feed:         deps.Feed,
		index:        deps.Index,
		fetchTimeout: deps.FetchTimeout,
		writeTimeout: deps.WriteTimeout,
		policy:       bluemonday.StrictPolicy(),
		metrics:      deps.Metrics,
		logger:       logger,
	}
}

// Ingest indexes every entry submitted inside w for each category. A failed
// category is logged and skipped; ErrFetchFailed is returned only when every
// category failed, in which case the caller must not advance crawl state.
func (i *Ingestor) Ingest(ctx context.Context, categories []string, w domain.Window) (IngestReport, error) {
	report := IngestReport{Window: w}
	if len(categories) == 0 {
		return report, domain.ErrNoCategories
	}

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingest canceled: %w", err)
		}

		entries, err := i.fetch(ctx, category, w)
		if err != nil {
			i.logger.Warn("category fetch failed",
				zap.String("category", category),
				zap.Time("window_start", w.Start),
				zap.Time("window_end", w.End),
				zap.Error(err))
			i.metrics.ObserveFetchFailure(category)
			report.FailedCategories = append(report.FailedCategories, category)
			continue
		}

		for _, entry := range entries {
			report.Processed++
			doc := i.toDocument(entry)
			outcome, err := i.write(ctx, doc)
			i.metrics.ObserveDocument(outcome.String())

			switch outcome {
			case domain.WriteCreated:
				report.Created++
				report.Documents = append(report.Documents, doc)
			case domain.WriteAlreadyExists:
				report.Skipped++
			default:
				report.Failed++
				i.logger.Warn("index write failed", zap.String("paper_id", doc.ID), zap.Error(err))
			}
		}
		i.logger.Debug("category ingested", zap.String("category", category), zap.Int("entries", len(entries)))
	}

	if len(report.FailedCategories) == len(categories) {
		return report, domain.ErrFetchFailed
	}
	return report, nil
}

func (i *Ingestor) fetch(ctx context.Context, category string, w domain.Window) ([]domain.Entry, error) {
	ctx, cancel := withTimeout(ctx, i.fetchTimeout)
	defer cancel()
	return i.feed.Fetch(ctx, category, w)
}

func (i *Ingestor) write(ctx context.Context, doc domain.Document) (domain.WriteOutcome, error) {
	if doc.ID == "" {
		return domain.WriteFailed, errors.New("entry has no identifier")
	}
	ctx, cancel := withTimeout(ctx, i.writeTimeout)
	defer cancel()
	return i.index.Create(ctx, doc)
}

// toDocument derives the stable identifier from the last path segment of the
// entry id and flattens markup and line breaks out of the text fields.
func (i *Ingestor) toDocument(e domain.Entry) domain.Document {
	doc := domain.Document{
		ID:          documentID(e.ID),
		Title:       i.clean(e.Title),
		Abstract:    i.clean(e.Summary),
		PublishedAt: e.PublishedAt.UTC(),
		Link:        strings.TrimSpace(e.Link),
	}
	for _, a := range e.Authors {
		if name := i.clean(a); name != "" {
			doc.Authors = append(doc.Authors, name)
		}
	}
	if doc.Link == "" {
		doc.Link = strings.TrimSpace(e.ID)
	}
	return doc
}

func (i *Ingestor) clean(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(i.policy.Sanitize(s))), " ")
}

func documentID(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	return path.Base(raw)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
