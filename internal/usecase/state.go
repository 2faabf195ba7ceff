package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/settings"
	"PaperNotifier/internal/window"
)

// Keys shared by every worker through the state store.
const (
	KeyLastCrawlTimestamp = "last_crawl_timestamp"
	KeyLastCrawlCount     = "last_crawl_paper_count"
	KeyLastCrawlStart     = "last_crawl_window_start"
	KeySearchKeywords     = "search_keywords"
	KeyConfig             = "config"
	KeyRecentPapers       = "recent_papers"
)

const maxRecentPapers = 100

// StateRepository maps pipeline state onto the key-value store.
type StateRepository struct {
	store     ports.StateStore
	recentTTL time.Duration
	logger    *zap.Logger
}

// NewStateRepository wraps store. recentTTL bounds the recent papers cache.
func NewStateRepository(store ports.StateStore, recentTTL time.Duration, logger *zap.Logger) *StateRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateRepository{store: store, recentTTL: recentTTL, logger: logger}
}

// LoadCrawlState reads the last crawl end and count. Missing or unparsable
// values degrade to the zero state so the next window bootstraps.
func (r *StateRepository) LoadCrawlState(ctx context.Context) (domain.CrawlState, error) {
	var state domain.CrawlState

	raw, err := r.store.Get(ctx, KeyLastCrawlTimestamp)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return state, nil
	case err != nil:
		return state, fmt.Errorf("load crawl state: %w", err)
	}

	end, err := window.ParseTimestamp(raw)
	if err != nil {
		r.logger.Warn("ignoring unparsable crawl timestamp", zap.String("value", raw), zap.Error(err))
		return state, nil
	}
	state.LastCrawlEnd = &end

	if rawStart, err := r.store.Get(ctx, KeyLastCrawlStart); err == nil {
		if start, parseErr := window.ParseTimestamp(rawStart); parseErr == nil {
			state.LastCrawlStart = &start
		}
	}
	if rawCount, err := r.store.Get(ctx, KeyLastCrawlCount); err == nil {
		if n, convErr := strconv.Atoi(rawCount); convErr == nil {
			state.DocumentCount = n
		}
	}
	return state, nil
}

// SaveCrawlState persists the window bounds and count in one atomic write.
func (r *StateRepository) SaveCrawlState(ctx context.Context, w domain.Window, count int) error {
	err := r.store.SetMany(ctx, map[string]string{
		KeyLastCrawlTimestamp: window.FormatTimestamp(w.End),
		KeyLastCrawlStart:     window.FormatTimestamp(w.Start),
		KeyLastCrawlCount:     strconv.Itoa(count),
	})
	if err != nil {
		return fmt.Errorf("save crawl state: %w", err)
	}
	return nil
}

// ActiveKeywords returns the stored keyword set when it is non-empty and the
// configured keywords otherwise. The two are never merged.
func (r *StateRepository) ActiveKeywords(ctx context.Context, configured []string) []string {
	stored, err := r.store.Members(ctx, KeySearchKeywords)
	if err != nil {
		r.logger.Warn("stored keywords unavailable, using configured keywords", zap.Error(err))
		return configured
	}
	if len(stored) == 0 {
		return configured
	}
	sort.Strings(stored)
	return stored
}

// ReplaceKeywords overwrites the stored keyword set; an empty list clears it.
func (r *StateRepository) ReplaceKeywords(ctx context.Context, keywords []string) error {
	if err := r.store.ReplaceMembers(ctx, KeySearchKeywords, keywords); err != nil {
		return fmt.Errorf("replace keywords: %w", err)
	}
	return nil
}

// SaveSettings caches the operator settings for every worker.
func (r *StateRepository) SaveSettings(ctx context.Context, s settings.Settings) error {
	raw, err := s.Encode()
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, KeyConfig, raw, 0); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// LoadSettings returns the cached settings or domain.ErrNotFound.
func (r *StateRepository) LoadSettings(ctx context.Context) (settings.Settings, error) {
	raw, err := r.store.Get(ctx, KeyConfig)
	if err != nil {
		return settings.Settings{}, err
	}
	return settings.Decode(raw)
}

// CacheRecent stores the newest documents with the configured TTL.
func (r *StateRepository) CacheRecent(ctx context.Context, docs []domain.Document) error {
	docs = append([]domain.Document(nil), docs...)
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].PublishedAt.After(docs[j].PublishedAt)
	})
	if len(docs) > maxRecentPapers {
		docs = docs[:maxRecentPapers]
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode recent papers: %w", err)
	}
	if err := r.store.Set(ctx, KeyRecentPapers, string(raw), r.recentTTL); err != nil {
		return fmt.Errorf("cache recent papers: %w", err)
	}
	return nil
}

// Recent returns the cached documents; an expired cache is an empty list.
func (r *StateRepository) Recent(ctx context.Context) ([]domain.Document, error) {
	raw, err := r.store.Get(ctx, KeyRecentPapers)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load recent papers: %w", err)
	}
	docs := []domain.Document{}
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, fmt.Errorf("decode recent papers: %w", err)
	}
	return docs, nil
}
