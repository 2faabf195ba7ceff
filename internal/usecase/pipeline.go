package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"PaperNotifier/internal/domain"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/settings"
	"PaperNotifier/internal/window"
)

// Components builds the settings-dependent adapters for a cycle.
type Components interface {
	// Scorer returns nil when model is empty.
	Scorer(model string) (ports.Scorer, error)
	Messenger(s settings.Settings) (ports.Messenger, error)
}

// SettingsLoader reads operator settings from their source of truth.
type SettingsLoader func() (settings.Settings, error)

// Timeouts bound each kind of external call.
type Timeouts struct {
	Feed      time.Duration
	Index     time.Duration
	Scorer    time.Duration
	Messenger time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Feed       ports.FeedClient
	Index      ports.DocumentIndex
	State      *StateRepository
	Tracker    *window.Tracker
	Components Components
	Settings   SettingsLoader
	Timeouts   Timeouts
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// CycleState is the terminal state of a cycle.
type CycleState string

const (
	CycleDone    CycleState = "done"
	CycleFailed  CycleState = "failed"
	CyclePartial CycleState = "partial"
)

// CycleOptions changes how a cycle starts.
type CycleOptions struct {
	// Refresh reloads settings from their source before ingesting.
	Refresh bool
}

// CycleOutcome is reported to the caller and the log sink.
type CycleOutcome struct {
	ID       string           `json:"id"`
	State    CycleState       `json:"state"`
	Window   domain.Window    `json:"window"`
	Ingest   IngestReport     `json:"-"`
	Keywords []DispatchResult `json:"keywords"`
	Err      string           `json:"error,omitempty"`
}

// Pipeline runs ingestion and per-keyword notification.
type Pipeline struct {
	state      *StateRepository
	tracker    *window.Tracker
	ingestor   *Ingestor
	retriever  *Retriever
	components Components
	loader     SettingsLoader
	timeouts   Timeouts
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = window.NewTracker(0, nil)
	}
	return &Pipeline{
		state:   deps.State,
		tracker: tracker,
		ingestor: NewIngestor(IngestorDeps{
			Feed:         deps.Feed,
			Index:        deps.Index,
			FetchTimeout: deps.Timeouts.Feed,
			WriteTimeout: deps.Timeouts.Index,
			Metrics:      deps.Metrics,
			Logger:       logger.Named("ingest"),
		}),
		retriever:  NewRetriever(deps.Index, deps.Timeouts.Index),
		components: deps.Components,
		loader:     deps.Settings,
		timeouts:   deps.Timeouts,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// RefreshSettings reloads settings from the loader, caches them in the state
// store and overwrites the stored keyword set with the configured keywords.
func (p *Pipeline) RefreshSettings(ctx context.Context) (settings.Settings, error) {
	s, err := p.loadSettings(ctx)
	if err != nil {
		return settings.Settings{}, err
	}
	if err := p.state.ReplaceKeywords(ctx, s.Keywords); err != nil {
		return settings.Settings{}, err
	}
	p.logger.Info("settings refreshed",
		zap.Strings("keywords", s.Keywords),
		zap.Strings("categories", s.Categories),
		zap.String("messenger", s.Messenger),
		zap.String("reranker", s.Reranker))
	return s, nil
}

// loadSettings reads the settings source and caches the result.
func (p *Pipeline) loadSettings(ctx context.Context) (settings.Settings, error) {
	if p.loader == nil {
		return settings.Settings{}, errors.New("no settings source configured")
	}
	s, err := p.loader()
	if err != nil {
		return settings.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if err := p.state.SaveSettings(ctx, s); err != nil {
		return settings.Settings{}, err
	}
	return s, nil
}

// Settings returns the cached settings, falling back to the source and then
// to defaults when nothing usable is stored. The fallback leaves the stored
// keyword set alone.
func (p *Pipeline) Settings(ctx context.Context) settings.Settings {
	s, err := p.state.LoadSettings(ctx)
	if err == nil {
		return s
	}
	if !errors.Is(err, domain.ErrNotFound) {
		p.logger.Warn("cached settings unusable", zap.Error(err))
	}
	s, err = p.loadSettings(ctx)
	if err == nil {
		return s
	}
	p.logger.Warn("using default settings", zap.Error(err))
	return settings.Default()
}

// Ingest crawls the next window and advances crawl state on success.
func (p *Pipeline) Ingest(ctx context.Context) (IngestReport, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("ingest", time.Since(start)) }()

	s := p.Settings(ctx)
	state, err := p.state.LoadCrawlState(ctx)
	if err != nil {
		p.logger.Warn("crawl state unavailable, bootstrapping window", zap.Error(err))
		state = domain.CrawlState{}
	}
	w := p.tracker.Next(state, s.Lookback())
	log := p.logger.With(zap.Time("window_start", w.Start), zap.Time("window_end", w.End))
	log.Info("ingestion started", zap.Strings("categories", s.Categories))

	report, err := p.ingestor.Ingest(ctx, s.Categories, w)
	if err != nil {
		log.Error("ingestion failed, crawl state unchanged", zap.Error(err))
		return report, err
	}

	if err := p.state.SaveCrawlState(ctx, w, report.Processed); err != nil {
		log.Error("crawl state not advanced", zap.Error(err))
		return report, err
	}
	p.metrics.SetLastCrawlEnd(w.End)

	if len(report.Documents) > 0 {
		if err := p.state.CacheRecent(ctx, report.Documents); err != nil {
			log.Warn("recent papers cache not updated", zap.Error(err))
		}
	}

	log.Info("ingestion finished",
		zap.Int("processed", report.Processed),
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Strings("failed_categories", report.FailedCategories))
	return report, nil
}

// Notify retrieves, reranks and dispatches for every active keyword over w.
// A nil window means the last successfully ingested window.
func (p *Pipeline) Notify(ctx context.Context, w *domain.Window) ([]DispatchResult, error) {
	start := time.Now()
	defer func() { p.metrics.ObserveStage("notify", time.Since(start)) }()

	s := p.Settings(ctx)
	if w == nil {
		state, err := p.state.LoadCrawlState(ctx)
		if err != nil {
			p.logger.Warn("crawl state unavailable, using bootstrap window", zap.Error(err))
		}
		last := p.tracker.Last(state, s.Lookback())
		w = &last
	}

	keywords := p.state.ActiveKeywords(ctx, s.Keywords)
	if len(keywords) == 0 {
		p.logger.Warn("no search keywords registered")
		return nil, nil
	}

	scorer, err := p.components.Scorer(s.Reranker)
	if err != nil {
		p.logger.Warn("reranker unavailable, results stay in retrieval order",
			zap.String("reranker", s.Reranker), zap.Error(err))
		p.metrics.ObserveRerankDegraded()
		scorer = nil
	}
	messenger, err := p.components.Messenger(s)
	if err != nil {
		return nil, fmt.Errorf("build messenger %s: %w", s.Messenger, err)
	}

	reranker := NewReranker(scorer, p.timeouts.Scorer, p.metrics, p.logger.Named("rerank"))
	dispatcher := NewDispatcher(messenger, DispatcherOptions{
		TopK:        s.TopK,
		NotifyEmpty: s.NotifyEmpty,
		Timeout:     p.timeouts.Messenger,
		Metrics:     p.metrics,
		Logger:      p.logger.Named("dispatch"),
	})

	limit := s.TopK
	if reranker.Enabled() && s.CandidateLimit > limit {
		limit = s.CandidateLimit
	}

	results := make([]DispatchResult, 0, len(keywords))
	for _, keyword := range keywords {
		results = append(results, p.notifyKeyword(ctx, keyword, *w, limit, reranker, dispatcher))
	}
	return results, nil
}

func (p *Pipeline) notifyKeyword(ctx context.Context, keyword string, w domain.Window, limit int, reranker *Reranker, dispatcher *Dispatcher) DispatchResult {
	docs, err := p.retriever.Search(ctx, keyword, w, limit)
	if err != nil {
		p.logger.Warn("retrieval failed", zap.String("keyword", keyword), zap.Error(err))
		p.metrics.ObserveDispatch(string(DispatchFailed))
		return DispatchResult{Keyword: keyword, Status: DispatchFailed}
	}
	ranked := reranker.Rerank(ctx, keyword, docs)
	p.logger.Debug("keyword candidates",
		zap.String("keyword", keyword),
		zap.Int("retrieved", len(docs)),
		zap.Int("ranked", len(ranked)))
	return dispatcher.Dispatch(ctx, keyword, ranked)
}

// RunCycle ingests the next window and notifies over that same window. It
// never panics; the outcome carries the terminal state.
func (p *Pipeline) RunCycle(ctx context.Context, opts CycleOptions) (outcome CycleOutcome) {
	outcome.ID = domain.NewID()
	log := p.logger.With(zap.String("cycle_id", outcome.ID))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("cycle panicked", zap.Any("panic", r))
			outcome.State = CycleFailed
			outcome.Err = fmt.Sprint(r)
		}
		p.metrics.ObserveStage("cycle", time.Since(start))
		log.Info("cycle finished", zap.String("state", string(outcome.State)), zap.Duration("elapsed", time.Since(start)))
	}()

	if opts.Refresh {
		if _, err := p.RefreshSettings(ctx); err != nil {
			log.Warn("settings refresh failed, using cached settings", zap.Error(err))
		}
	}

	report, err := p.Ingest(ctx)
	outcome.Ingest = report
	outcome.Window = report.Window
	if err != nil {
		outcome.State = CycleFailed
		outcome.Err = err.Error()
		return outcome
	}

	w := report.Window
	results, err := p.Notify(ctx, &w)
	outcome.Keywords = results
	if err != nil {
		outcome.State = CyclePartial
		outcome.Err = err.Error()
		return outcome
	}

	outcome.State = CycleDone
	for _, r := range results {
		if !r.OK() {
			outcome.State = CyclePartial
			break
		}
	}
	return outcome
}
