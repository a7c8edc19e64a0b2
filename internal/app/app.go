package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"newsmonitor/internal/config"
	"newsmonitor/internal/domain"
	"newsmonitor/internal/httpapi"
	"newsmonitor/internal/infrastructure/email"
	"newsmonitor/internal/infrastructure/extractor"
	"newsmonitor/internal/infrastructure/llm"
	"newsmonitor/internal/infrastructure/ml"
	"newsmonitor/internal/infrastructure/parser"
	"newsmonitor/internal/infrastructure/scheduler"
	"newsmonitor/internal/infrastructure/storage"
	"newsmonitor/internal/infrastructure/telegram"
	"newsmonitor/internal/infrastructure/web"
	"newsmonitor/internal/logging"
	"newsmonitor/internal/metrics"
	"newsmonitor/internal/ports"
	"newsmonitor/internal/scanner"
	"newsmonitor/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.SQLStore
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	driver    *scheduler.Driver
	metrics   *metrics.Recorder
	http      *httpapi.Server
}

// New validates cfg, opens the dedup store and builds every adapter.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	schedule, err := scheduler.NewSchedule(cfg.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	notifier, err := newNotifier(cfg, cfg.Notifications.Channel)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	alerter, err := newAlerter(cfg, baseLogger.With("component", "alert"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	fetcher := web.NewClient(web.Options{
		UserAgent:     cfg.Extraction.UserAgent,
		Timeout:       cfg.Extraction.Timeout(),
		RespectRobots: cfg.Extraction.RespectRobots,
		Logger:        baseLogger.With("component", "web"),
	})

	registry := scanner.NewRegistry()
	registry.Register(parser.NewHTMLScanner(fetcher, baseLogger.With("component", "scanner.html")))
	source := parser.NewStrategySource(registry, cfg.Sites, baseLogger.With("component", "source"))

	var pacer *rate.Limiter
	if pacing := cfg.Pipeline.Pacing(); pacing > 0 {
		pacer = rate.NewLimiter(rate.Every(pacing), 1)
	}

	recorder := metrics.New()
	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Store:       store,
		Extractor:   extractor.New(fetcher, cfg.Extraction.MaxChars, baseLogger.With("component", "extractor")),
		Analyzer:    analyzer,
		Notifier:    notifier,
		Pacer:       pacer,
		CallTimeout: cfg.Pipeline.CallTimeout(),
		Logger:      baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewDriver(scheduler.Options{
		Schedule: schedule,
		Logger:   baseLogger.With("component", "scheduler"),
		OnSkip:   recorder.ObserveSkippedTicks,
	})
	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:   driver,
		Pipeline: pipeline,
		Alerter:  alerter,
		Recorder: recorder,
		Logger:   baseLogger.With("component", "monitor"),
	})

	a := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		pipeline:  pipeline,
		scheduler: sched,
		driver:    driver,
		metrics:   recorder,
	}
	if cfg.HTTP.Enabled {
		a.http = httpapi.NewServer(cfg.HTTP.Addr, httpapi.Deps{
			Store:     store,
			Scheduler: driver,
			Runs:      sched,
			Metrics:   recorder.Handler(),
			Settings:  settings(cfg),
		}, baseLogger.With("component", "http"))
	}
	return a, nil
}

// Serve runs the scheduler and the status server until ctx is cancelled or
// the scheduler halts. An in-flight run is always allowed to finish.
func (a *Application) Serve(ctx context.Context) error {
	a.logger.Info("news monitor starting",
		"sites", len(a.cfg.Sites),
		"interval_minutes", a.cfg.Scheduler.IntervalMinutes,
		"cron", a.cfg.Scheduler.CronExpression,
		"store", a.cfg.Database.Driver,
	)

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	var httpErr <-chan error
	if a.http != nil {
		httpErr = a.http.StartAsync()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown requested, waiting for in-flight run")
	case <-a.driver.Done():
	case err := <-httpErr:
		serveErr = err
	}

	if err := a.scheduler.Stop(context.Background()); err != nil {
		a.logger.Error("scheduler stop", "error", err)
	}
	if a.http != nil {
		if err := a.http.Shutdown(context.Background()); err != nil {
			a.logger.Error("http shutdown", "error", err)
		}
	}

	if err := a.driver.Wait(); err != nil {
		return err
	}
	return serveErr
}

// RunOnce executes a single pipeline pass outside the scheduler.
func (a *Application) RunOnce(ctx context.Context) (domain.RunReport, error) {
	report, err := a.pipeline.RunOnce(ctx)
	if errors.Is(err, domain.ErrSourceUnavailable) {
		a.logger.Warn("news source unavailable", "error", err)
	}
	return report, err
}

// Status returns store statistics for the last day and the most recent records.
func (a *Application) Status(ctx context.Context, recent int) (storage.StoreStats, []domain.ProcessedRecord, error) {
	stats, err := a.store.Stats(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return storage.StoreStats{}, nil, err
	}
	records, err := a.store.Recent(ctx, recent)
	if err != nil {
		return storage.StoreStats{}, nil, err
	}
	return stats, records, nil
}

// Close releases the dedup store.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func newAnalyzer(cfg config.Config) (ports.GrammarAnalyzer, error) {
	switch cfg.Analyzer.Provider {
	case config.ProviderOpenAI:
		return llm.NewChatGPTClient(cfg.Analyzer, cfg.Pipeline.CallTimeout()), nil
	case config.ProviderService:
		return ml.NewClient(cfg.Analyzer.Endpoint, cfg.Analyzer.APIKey, cfg.Pipeline.CallTimeout()), nil
	default:
		return nil, fmt.Errorf("%w: unknown analyzer provider %q", domain.ErrInvalidConfig, cfg.Analyzer.Provider)
	}
}

type notifierAlerter interface {
	ports.Notifier
	ports.Alerter
}

func newNotifier(cfg config.Config, channel string) (notifierAlerter, error) {
	n := cfg.Notifications
	switch channel {
	case config.ChannelEmail:
		return email.NewNotifier(n.Email, n.SubjectPrefix), nil
	case config.ChannelTelegram:
		tg := telegram.NewNotifier(n.Telegram.BotToken, n.Telegram.ChatID)
		if n.Telegram.APIBase != "" {
			tg.WithAPIBase(n.Telegram.APIBase)
		}
		return tg, nil
	default:
		return nil, fmt.Errorf("%w: unknown notification channel %q", domain.ErrInvalidConfig, channel)
	}
}

func newAlerter(cfg config.Config, logger *slog.Logger) (ports.Alerter, error) {
	if cfg.Notifications.AlertChannel == config.ChannelLog {
		return logAlerter{logger: logger}, nil
	}
	return newNotifier(cfg, cfg.Notifications.AlertChannel)
}

// logAlerter writes operator alerts to the log only.
type logAlerter struct {
	logger *slog.Logger
}

func (l logAlerter) Alert(_ context.Context, subject, body string) error {
	l.logger.Error("ALERT "+subject, "details", body)
	return nil
}

func settings(cfg config.Config) map[string]any {
	sites := make([]string, 0, len(cfg.Sites))
	for _, s := range cfg.Sites {
		sites = append(sites, s.Name)
	}
	return map[string]any{
		"sites":              sites,
		"interval_minutes":   cfg.Scheduler.IntervalMinutes,
		"cron_expression":    cfg.Scheduler.CronExpression,
		"database_driver":    cfg.Database.Driver,
		"analyzer_provider":  cfg.Analyzer.Provider,
		"analyzer_model":     cfg.Analyzer.Model,
		"channel":            cfg.Notifications.Channel,
		"alert_channel":      cfg.Notifications.AlertChannel,
		"pacing_seconds":     cfg.Pipeline.PacingSeconds,
		"call_timeout_secs":  cfg.Pipeline.CallTimeoutSeconds,
		"respect_robots_txt": cfg.Extraction.RespectRobots,
	}
}
