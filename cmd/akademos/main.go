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

	"github.com/hibiken/asynq"

	"github.com/akademos/akademos/internal/admin"
	"github.com/akademos/akademos/internal/app"
	"github.com/akademos/akademos/internal/auth"
	"github.com/akademos/akademos/internal/catalog"
	"github.com/akademos/akademos/internal/gate"
	"github.com/akademos/akademos/internal/observability"
	"github.com/akademos/akademos/internal/overrides"
	"github.com/akademos/akademos/internal/platform/cache"
	"github.com/akademos/akademos/internal/platform/db"
	"github.com/akademos/akademos/internal/refresh"
	"github.com/akademos/akademos/internal/resolve"
	"github.com/akademos/akademos/internal/shared"
	"github.com/akademos/akademos/internal/upstream"
	"github.com/akademos/akademos/jobs"
)

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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "akademos_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	upstreamClient := upstream.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamToken, cfg.UpstreamTimeout)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient)

	catalogStore := catalog.NewStore(upstreamClient, cfg.CatalogFreshness, logger)
	catalogStore.Instrument(metrics)
	overrideRepo := overrides.NewPGRepository(dbpool)
	overrideStore := overrides.NewStore(overrideRepo, enqueuer, logger)
	controller := refresh.NewController(catalogStore, overrideStore, enqueuer, logger)

	engine := resolve.NewEngine(catalogStore, overrideStore)
	accessGate := gate.New(engine, metrics)
	guard := gate.Middleware{Gate: accessGate, Logger: logger}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	authzHandler := gate.NewHandler(logger, accessGate, engine)
	if cfg.CrossCheckSampleRate > 0 {
		authzHandler.EnableCrossCheck(enqueuer, cfg.CrossCheckSampleRate)
	}
	rolesHandler := admin.NewRolesHandler(logger, upstreamClient, controller, guard)
	overridesHandler := admin.NewOverridesHandler(logger, overrideStore, guard)
	invalidateHandler := admin.NewInvalidateHandler(logger, controller, guard)
	jobsHandler := jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger)

	// Warm the catalog before serving. A failed first load keeps the gate
	// fail-closed; the background refresh keeps retrying.
	loadCtx, cancel := context.WithTimeout(ctx, cfg.UpstreamTimeout)
	if _, err := catalogStore.Load(loadCtx); err != nil {
		logger.Warn("initial catalog load failed, gate starts fail-closed", slog.Any("error", err))
	}
	cancel()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		AuthzHandler:      authzHandler,
		RolesHandler:      rolesHandler,
		OverridesHandler:  overridesHandler,
		InvalidateHandler: invalidateHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("akademos gate listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server run", slog.Any("error", err))
		os.Exit(1)
	}
}
