package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"NewsHarvester/internal/config"
	"NewsHarvester/internal/httpapi"
	"NewsHarvester/internal/infrastructure/crosspost"
	"NewsHarvester/internal/infrastructure/gsheets"
	"NewsHarvester/internal/infrastructure/llm"
	"NewsHarvester/internal/infrastructure/memtable"
	"NewsHarvester/internal/infrastructure/ml"
	"NewsHarvester/internal/infrastructure/parser"
	"NewsHarvester/internal/infrastructure/scheduler"
	"NewsHarvester/internal/infrastructure/storage"
	"NewsHarvester/internal/infrastructure/telegram"
	"NewsHarvester/internal/logging"
	"NewsHarvester/internal/metrics"
	"NewsHarvester/internal/ports"
	"NewsHarvester/internal/scanner"
	"NewsHarvester/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	table    ports.Table
	runner   *usecase.Runner
	registry *prometheus.Registry
	closers  []func() error
}

// New validates cfg and builds every component. Configuration problems are
// returned as *domain.ConfigError before any network or database access.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	keys, err := cfg.KeyFields()
	if err != nil {
		return nil, err
	}
	cutoff, err := cfg.InitialCutoff()
	if err != nil {
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	table, err := a.openTable(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.table = table

	httpClient := &http.Client{Timeout: cfg.Source.Timeout}
	src := cfg.Source
	fetcher := parser.NewHTTPPageFetcher(httpClient, parser.PageFetcherOptions{
		ListingURL:         src.ListingURL,
		PageParam:          src.PageParam,
		OmitFirstPageParam: src.OmitFirstPageParam,
		UserAgent:          src.UserAgent,
	})
	listing, err := parser.NewListingExtractor(src.ListingURL, parser.ListingSelectors{
		Item:       src.ItemSelector,
		Link:       src.LinkSelector,
		Title:      src.TitleSelector,
		Date:       src.DateSelector,
		DateAttr:   src.DateAttr,
		DateLayout: src.DateLayout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	content := parser.NewContentExtractor(httpClient, parser.ContentOptions{
		Selector:    src.ContentSelector,
		Readability: src.ReadabilityFallback,
		UserAgent:   src.UserAgent,
	})

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(a.registry)

	layout := usecase.Layout{Articles: cfg.Store.ArticlesSheet, Processed: cfg.Store.ProcessedSheet}

	ingestor := usecase.NewIngestor(usecase.IngestorDeps{
		Table:     table,
		Content:   content,
		Layout:    layout,
		KeyFields: keys,
		BatchSize: cfg.Ingest.BatchSize,
		Workers:   cfg.Ingest.Workers,
		Logger:    baseLogger.With("component", "ingest"),
	})
	reviewer := usecase.NewReviewer(usecase.ReviewerDeps{
		Table:  table,
		Judge:  newJudge(cfg.Judge),
		Poster: a.crossPoster(),
		Layout: layout,
		Options: usecase.ReviewOptions{
			CrossPostThreshold: cfg.Review.CrossPostThreshold,
			MinScore:           cfg.Review.MinScore,
			CrossPostLabel:     cfg.Review.CrossPostLabel,
			BodyLimit:          cfg.Review.BodyLimit,
			JudgeDelay:         cfg.Review.JudgeDelay,
			MaxDuration:        cfg.Review.MaxDuration,
		},
		Logger: baseLogger.With("component", "review"),
	})

	a.runner = usecase.NewRunner(usecase.RunnerDeps{
		Table:               table,
		Crawler:             scanner.NewCrawler(fetcher, listing, baseLogger.With("component", "scanner")),
		Ingestor:            ingestor,
		Reviewer:            reviewer,
		Layout:              layout,
		InitialCutoff:       cutoff,
		IncrementalLookback: cfg.Run.IncrementalLookback,
		MaxPages:            cfg.Crawl.MaxPages,
		ReviewAfterIngest:   cfg.Run.ReviewAfterIngest,
		Recorder:            recorder,
		Logger:              baseLogger.With("component", "runner"),
	})

	baseLogger.Info("application ready",
		"store", cfg.Store.Driver,
		"judge", cfg.Judge.Provider,
		"identity_key", keys.Mode(),
		"listing", src.ListingURL,
	)
	return a, nil
}

// Run performs one trigger invocation.
func (a *Application) Run(ctx context.Context, mode usecase.Mode) (usecase.RunReport, error) {
	return a.runner.Run(ctx, mode)
}

// Review runs a standalone review pass.
func (a *Application) Review(ctx context.Context) (usecase.ReviewResult, error) {
	return a.runner.Review(ctx)
}

// Handler returns the HTTP trigger router.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Runner:    a.runner,
		KeyStates: a.cfg.KeyStates,
		Gatherer:  a.registry,
		Logger:    a.logger.With("component", "http"),
	})
}

// Serve listens on cfg.Server.Addr until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Schedule fires incremental runs on the configured cron expression until ctx is done.
func (a *Application) Schedule(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, scheduler.Options{
		Location:   a.cfg.Scheduler.Location(),
		RunOnStart: a.cfg.Scheduler.RunOnStart,
		Logger:     a.logger.With("component", "scheduler"),
	})
	sched := usecase.NewScheduler(driver, a.runner, a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases database and Redis connections.
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

func (a *Application) openTable(ctx context.Context) (ports.Table, error) {
	switch a.cfg.Store.Driver {
	case config.DriverSheets:
		return gsheets.New(ctx, a.cfg.Store.Sheets)
	case config.DriverPostgres:
		db, err := sql.Open("postgres", a.cfg.Store.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		table := storage.NewPostgresTable(db)
		if err := table.Migrate(ctx); err != nil {
			return nil, err
		}
		return table, nil
	default:
		a.logger.Warn("using in-memory store; data is lost on exit")
		return memtable.New(), nil
	}
}

func newJudge(cfg config.JudgeConfig) ports.RelevanceJudge {
	if cfg.Provider == config.ProviderML {
		return ml.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Timeout)
	}
	return llm.NewPerplexityJudge(cfg)
}

func (a *Application) crossPoster() ports.CrossPoster {
	var posters crosspost.Fanout
	if tg := a.cfg.CrossPost.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		posters = append(posters, telegram.NewNotifier(tg.BotToken, tg.ChatID))
	}
	if rc := a.cfg.CrossPost.Redis; rc.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		a.closers = append(a.closers, client.Close)
		posters = append(posters, crosspost.NewRedisQueue(client, rc.Key))
	}
	if len(posters) == 0 {
		return nil
	}
	return posters
}
