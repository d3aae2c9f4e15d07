package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/config"
	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/handler"
	"github.com/boddenberg/finstatements-go/internal/infra/cache"
	"github.com/boddenberg/finstatements-go/internal/infra/client"
	"github.com/boddenberg/finstatements-go/internal/infra/observability"
	"github.com/boddenberg/finstatements-go/internal/infra/postgres"
	"github.com/boddenberg/finstatements-go/internal/infra/resilience"
	"github.com/boddenberg/finstatements-go/internal/infra/supabase"
	"github.com/boddenberg/finstatements-go/internal/jobs"
	"github.com/boddenberg/finstatements-go/internal/port"
	"github.com/boddenberg/finstatements-go/internal/service"
)

// backend is everything a ledger backend provides.
type backend struct {
	ledger   port.LedgerSource
	settings port.SettingsProvider
	lister   port.CompanyLister
	writer   port.EntryWriter
	checks   []handler.HealthCheck
	close    func()
}

func main() {
	monthEndOnce := flag.Bool("month-end", false, "run the month-end export once and exit")
	flag.Parse()

	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.Bool("rates_enabled", cfg.RatesAPIURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("build_timeout", cfg.BuildTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("schedule_enabled", cfg.ScheduleEnabled),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	settingsCache := cache.New[*domain.CompanySettings](cfg.CacheTTL)
	defer settingsCache.Close()
	ratesCache := cache.New[*domain.RateTable](cfg.CacheTTL)
	defer ratesCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	be, err := openBackend(cfg, httpClient, resilienceCfg, logger)
	if err != nil {
		logger.Fatal("failed to open ledger backend", zap.String("backend", cfg.LedgerBackend), zap.Error(err))
	}
	defer be.close()

	var rates port.RateProvider
	if cfg.RatesAPIURL != "" {
		rates = client.NewRatesClient(httpClient, cfg.RatesAPIURL, resilience.NewCircuitBreaker("rates"), resilienceCfg)
	} else {
		logger.Warn("RATES_API_URL not set, currency conversion unavailable")
	}

	// --- Services ---
	statementSvc := service.NewStatementService(
		be.ledger,
		be.settings,
		rates,
		settingsCache,
		ratesCache,
		metrics,
		logger,
		service.WithBuildTimeout(cfg.BuildTimeout),
	)
	batchSvc := service.NewBatchService(statementSvc, be.lister, resilience.NewBulkhead(cfg.MaxConcurrency), metrics, logger)
	journalSvc := service.NewJournalService(statementSvc, be.writer, logger)

	monthEnd := jobs.NewMonthEnd(batchSvc, jobs.MonthEndConfig{
		ExportDir: cfg.ExportDir,
		Currency:  cfg.ScheduleCurrency,
	}, logger)

	if *monthEndOnce {
		report, err := monthEnd.Run(context.Background())
		if err != nil {
			logger.Fatal("month-end run failed", zap.Error(err))
		}
		logger.Info("month-end run finished", zap.Strings("files", report.Files))
		return
	}

	if cfg.ScheduleEnabled {
		scheduler, err := jobs.Schedule(monthEnd, cfg.ScheduleSpec, cfg.ScheduleTimezone, logger)
		if err != nil {
			logger.Fatal("failed to schedule month-end job", zap.Error(err))
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		logger.Info("month-end job scheduled",
			zap.String("spec", cfg.ScheduleSpec),
			zap.String("timezone", cfg.ScheduleTimezone),
		)
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Statements: statementSvc,
		Batch:      batchSvc,
		Journal:    journalSvc,
		Checks:     be.checks,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.BuildTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openBackend(cfg *config.Config, httpClient *http.Client, resilienceCfg resilience.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.LedgerBackend {
	case config.BackendSupabase:
		if cfg.SupabaseURL == "" {
			return nil, fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		sb := supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		return &backend{
			ledger: sb, settings: sb, lister: sb, writer: sb,
			checks: []handler.HealthCheck{{Name: "supabase", Ping: sb.Ping}},
			close:  func() {},
		}, nil

	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("using Postgres as data backend")
		return &backend{
			ledger: store, settings: store, lister: store, writer: store,
			checks: []handler.HealthCheck{{Name: "postgres", Ping: store.Ping}},
			close:  store.Close,
		}, nil

	case config.BackendHTTP:
		settings, err := config.LoadSettingsFile(cfg.CompanySettingsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("using HTTP ledger API as data backend",
			zap.String("ledger_api_url", cfg.LedgerAPIURL),
			zap.String("settings_file", cfg.CompanySettingsFile),
		)
		return &backend{
			ledger:   client.NewLedgerClient(httpClient, cfg.LedgerAPIURL, resilience.NewCircuitBreaker("ledger"), resilienceCfg),
			settings: settings,
			lister:   settings,
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
}
