package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"PaperNotifier/internal/api"
	"PaperNotifier/internal/config"
	"PaperNotifier/internal/infrastructure/index/postgres"
	"PaperNotifier/internal/infrastructure/index/sqlite"
	"PaperNotifier/internal/infrastructure/parser"
	memqueue "PaperNotifier/internal/infrastructure/queue/memory"
	"PaperNotifier/internal/infrastructure/queue/pubsub"
	"PaperNotifier/internal/infrastructure/scheduler"
	memstate "PaperNotifier/internal/infrastructure/state/memory"
	redisstate "PaperNotifier/internal/infrastructure/state/redis"
	"PaperNotifier/internal/logging"
	"PaperNotifier/internal/metrics"
	"PaperNotifier/internal/ports"
	"PaperNotifier/internal/scanner"
	"PaperNotifier/internal/settings"
	"PaperNotifier/internal/usecase"
	"PaperNotifier/internal/window"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	state    *usecase.StateRepository
	pipeline *usecase.Pipeline
	queue    ports.Queue
	closers  []func() error
}

// New connects every collaborator the configured role needs.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *Application, err error) {
	logger = logging.OrNop(logger)
	a := &Application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)

	index, err := a.openIndex(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.openState(ctx)
	if err != nil {
		return nil, err
	}
	if a.queue, err = a.openQueue(ctx); err != nil {
		return nil, err
	}

	client := &http.Client{}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivAPIScanner(client, cfg.Feed.APIURL, cfg.Feed.PageSize, cfg.Feed.MaxResults))
	registry.Register(parser.NewArxivListingScanner(client, cfg.Feed.ListingURL, cfg.Feed.PageSize))
	if _, err := registry.Resolve(cfg.Feed.Strategy); err != nil {
		return nil, fmt.Errorf("feed.strategy: %w", err)
	}

	a.state = usecase.NewStateRepository(store, cfg.Cache.RecentTTL, logger.Named("state"))
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Feed:       parser.NewFeed(registry, cfg.Feed.Strategy, logger.Named("feed")),
		Index:      index,
		State:      a.state,
		Tracker:    window.NewTracker(cfg.Scheduler.WindowSlack, nil),
		Components: components{cfg: cfg, client: client},
		Settings:   func() (settings.Settings, error) { return settings.Load(cfg.SettingsPath) },
		Timeouts: usecase.Timeouts{
			Feed:      cfg.Timeouts.Feed,
			Index:     cfg.Timeouts.Index,
			Scorer:    cfg.Timeouts.Scorer,
			Messenger: cfg.Timeouts.Messenger,
		},
		Metrics: a.metrics,
		Logger:  logger.Named("pipeline"),
	})
	return a, nil
}

func (a *Application) openIndex(ctx context.Context) (ports.DocumentIndex, error) {
	switch a.cfg.Index.Driver {
	case "postgres":
		idx, err := postgres.Open(ctx, a.cfg.Index.DSN, a.cfg.Index.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { idx.Close(); return nil })
		if err := idx.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return idx, nil
	default:
		idx, err := sqlite.Open(ctx, a.cfg.Index.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, idx.Close)
		return idx, nil
	}
}

func (a *Application) openState(ctx context.Context) (ports.StateStore, error) {
	if a.cfg.State.Driver != "redis" {
		return memstate.New(nil), nil
	}
	store, err := redisstate.Open(ctx, redisstate.Options{
		Addr:     a.cfg.State.Addr,
		Password: a.cfg.State.Password,
		DB:       a.cfg.State.DB,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func (a *Application) openQueue(ctx context.Context) (ports.Queue, error) {
	q := a.cfg.Queue
	switch q.Driver {
	case "memory":
		queue := memqueue.NewQueue(q.Capacity, a.logger.Named("queue"))
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	case "pubsub":
		client, err := pubsub.NewClient(ctx, q.ProjectID)
		if err != nil {
			return nil, err
		}
		queue := pubsub.New(client, pubsub.Options{
			CrawlTopic:         q.CrawlTopic,
			NotifyTopic:        q.NotifyTopic,
			CrawlSubscription:  q.CrawlSubscription,
			NotifySubscription: q.NotifySubscription,
		}, a.logger.Named("queue"))
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	default:
		return nil, nil
	}
}

// Run serves the configured role until ctx is canceled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("starting", zap.String("role", a.cfg.Role))
	g, ctx := errgroup.WithContext(ctx)

	var workers *usecase.Workers
	if a.queue != nil {
		workers = usecase.NewWorkers(a.queue, a.pipeline, a.logger.Named("worker"))
	}

	switch a.cfg.Role {
	case config.RoleCrawler:
		g.Go(func() error { return workers.RunCrawler(ctx) })
	case config.RoleNotifier:
		g.Go(func() error { return workers.RunNotifier(ctx) })
	case config.RoleScheduler:
		if err := a.startScheduler(ctx, g); err != nil {
			return err
		}
	default:
		if workers != nil {
			g.Go(func() error { return workers.RunCrawler(ctx) })
			g.Go(func() error { return workers.RunNotifier(ctx) })
		}
		if err := a.startScheduler(ctx, g); err != nil {
			return err
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// startScheduler refreshes settings, installs the cron trigger and serves the admin API.
func (a *Application) startScheduler(ctx context.Context, g *errgroup.Group) error {
	s, err := a.pipeline.RefreshSettings(ctx)
	if err != nil {
		a.logger.Warn("settings refresh failed at startup", zap.Error(err))
		s = a.pipeline.Settings(ctx)
	}
	spec, err := s.CronSpec()
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	driver, err := scheduler.NewCronScheduler(spec)
	if err != nil {
		return err
	}

	var runner usecase.Runner
	if a.queue != nil {
		runner = usecase.NewQueueRunner(a.queue)
	} else {
		runner = usecase.NewLocalRunner(a.pipeline, a.logger.Named("runner"))
	}
	sched := usecase.NewScheduler(driver, runner, a.cfg.Scheduler.RunNowDelay, a.logger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", zap.String("cron", spec), zap.Time("next", driver.Next()))

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewServer(sched, a.state, a.pipeline.Settings, a.metrics.Handler(), a.logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.logger.Info("admin server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("admin server shutdown", zap.Error(err))
		}
		return sched.Stop(shutdownCtx)
	})
	return nil
}

// Close releases every opened collaborator in reverse order.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
