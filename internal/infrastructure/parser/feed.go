package parser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/logging"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/scanner"
)

// Feed implements ports.FeedClient via a registered scanner strategy.
type Feed struct {
	registry *scanner.Registry
	strategy string
	logger   *zap.Logger
}

var _ ports.FeedClient = (*Feed)(nil)

// NewFeed binds the configured strategy name to the registry.
func NewFeed(reg *scanner.Registry, strategy string, logger *zap.Logger) *Feed {
	return &Feed{
		registry: reg,
		strategy: strategy,
		logger:   logging.OrNop(logger),
	}
}

// Fetch runs the strategy for one category and window.
func (f *Feed) Fetch(ctx context.Context, category string, window domain.Window) ([]domain.Entry, error) {
	if f.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := f.registry.Resolve(f.strategy)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetch category",
		zap.String("strategy", f.strategy),
		zap.String("category", category),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)

	entries, err := strategy.Scan(ctx, scanner.Request{Category: category, Window: window})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", category, err)
	}

	f.logger.Debug("category produced entries", zap.String("category", category), zap.Int("count", len(entries)))
	return entries, nil
}
