package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
)

// ScoreThreshold is the minimum rounded score a reranked document needs to survive.
const ScoreThreshold = 0.5

// Reranker re-scores retrieved documents with an optional Scorer.
type Reranker struct {
	scorer  ports.Scorer
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewReranker returns an identity reranker when scorer is nil.
func NewReranker(scorer ports.Scorer, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{scorer: scorer, timeout: timeout, metrics: m, logger: logger}
}

// Enabled reports whether a scorer is configured.
func (r *Reranker) Enabled() bool { return r.scorer != nil }

// Rerank scores all documents in one call, drops those under ScoreThreshold
// and sorts the rest by score descending, keeping input order on ties. When
// the scorer fails the input order is returned unscored.
func (r *Reranker) Rerank(ctx context.Context, keyword string, docs []domain.Document) []domain.RankedResult {
	if len(docs) == 0 {
		return nil
	}
	if r.scorer == nil {
		return passThrough(docs)
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Abstract
	}

	scores, err := r.score(ctx, keyword, texts)
	if err != nil {
		r.logger.Warn("reranker unavailable, keeping retrieval order",
			zap.String("keyword", keyword),
			zap.String("model", r.scorer.Model()),
			zap.Error(err))
		r.metrics.ObserveRerankDegraded()
		return passThrough(docs)
	}

	return rankByScore(docs, scores)
}

func (r *Reranker) score(ctx context.Context, keyword string, texts []string) ([]float64, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	scores, err := r.scorer.Score(ctx, keyword, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(texts) {
		return nil, fmt.Errorf("got %d scores for %d documents", len(scores), len(texts))
	}
	return scores, nil
}

func rankByScore(docs []domain.Document, scores []float64) []domain.RankedResult {
	out := make([]domain.RankedResult, 0, len(docs))
	for i, d := range docs {
		s := clampScore(roundScore(scores[i]))
		if math.IsNaN(s) || s < ScoreThreshold {
			continue
		}
		out = append(out, domain.RankedResult{Document: d, Score: &s})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Score > *out[j].Score
	})
	return out
}

func roundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}

// clampScore keeps raw logits from a scorer without activation inside [0, 1].
func clampScore(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < 0:
		return 0
	}
	return s
}

func passThrough(docs []domain.Document) []domain.RankedResult {
	out := make([]domain.RankedResult, len(docs))
	for i, d := range docs {
		out[i] = domain.RankedResult{Document: d}
	}
	return out
}
