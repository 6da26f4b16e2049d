package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyetrack/dyetrack/internal/app"
	"github.com/dyetrack/dyetrack/internal/batches"
	"github.com/dyetrack/dyetrack/internal/dashboard"
	"github.com/dyetrack/dyetrack/internal/dispatch"
	"github.com/dyetrack/dyetrack/internal/intake"
	"github.com/dyetrack/dyetrack/internal/observability"
	"github.com/dyetrack/dyetrack/internal/platform/cache"
	"github.com/dyetrack/dyetrack/internal/platform/restapi"
	"github.com/dyetrack/dyetrack/internal/records"
	"github.com/dyetrack/dyetrack/internal/reference"
	"github.com/dyetrack/dyetrack/internal/shared"
	"github.com/dyetrack/dyetrack/internal/view"
	"github.com/dyetrack/dyetrack/report"
)

const exportsPerMinute = 10

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	// Sessions always use Redis; the item cache falls back to memory when the
	// server is unreachable at startup.
	var itemCache batches.ItemCache
	redisOpts := cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	redisClient, err := cache.Connect(ctx, redisOpts)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory item cache", slog.Any("error", err))
		redisClient = cache.Open(redisOpts)
		itemCache = batches.NewMemoryItemCache(cfg.ItemsCacheTTL)
	} else {
		itemCache = batches.NewRedisItemCache(redisClient, cfg.ItemsCacheTTL)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "dyetrack_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	apiClient := restapi.New(cfg.APIBaseURL, cfg.APITimeout, restapi.WithObserver(metrics))

	refs := reference.NewRepository(apiClient)
	batchService := batches.NewService(batches.NewRepository(apiClient), itemCache, logger)

	pdfClient := report.NewClient(cfg.GotenbergURL)
	if !pdfClient.Enabled() {
		logger.Info("GOTENBERG_URL not set, PDF export disabled")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Metrics:          metrics,
		DashboardHandler: dashboard.NewHandler(logger, batchService, templates, csrfManager),
		IntakeHandler:    intake.NewHandler(logger, batchService, refs, templates, csrfManager),
		DispatchHandler:  dispatch.NewHandler(logger, batchService, refs, templates, csrfManager),
		RecordsHandler:   records.NewHandler(logger, batchService, refs, templates, csrfManager, pdfClient, exportsPerMinute),
		ReportHandler:    report.NewHandler(pdfClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", apiClient.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
