package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-pos/meridian/internal/adjustment"
	"github.com/meridian-pos/meridian/internal/alerts"
	"github.com/meridian-pos/meridian/internal/app"
	"github.com/meridian-pos/meridian/internal/batch"
	"github.com/meridian-pos/meridian/internal/observability"
	"github.com/meridian-pos/meridian/internal/platform/cache"
	"github.com/meridian-pos/meridian/internal/platform/db"
	"github.com/meridian-pos/meridian/internal/settings"
	"github.com/meridian-pos/meridian/internal/shared"
	"github.com/meridian-pos/meridian/internal/transaction"
	"github.com/meridian-pos/meridian/internal/transfer"
	"github.com/meridian-pos/meridian/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	settingsRepo := settings.NewRepository(pool)
	settingsService := settings.NewService(settingsRepo, redisClient, cfg.SettingsCacheTTL, logger)
	settingsHandler := settings.NewHandler(logger, settingsService)

	batchRepo := batch.NewRepository(pool)
	checker := batch.NewChecker(batchRepo, settingsService)
	stockHandler := batch.NewHandler(logger, batchRepo, checker, settingsService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	notifier := alerts.NewNotifier(logger, batchRepo, settingsService, jobClient)

	transactionRepo := transaction.NewRepository(pool)
	transactionService := transaction.NewService(transactionRepo, settingsService, auditLogger, idempotencyStore)
	transactionHandler := transaction.NewHandler(logger, transactionService, checker, notifier)

	adjustmentRepo := adjustment.NewRepository(pool)
	adjustmentService := adjustment.NewService(adjustmentRepo, settingsService, auditLogger, idempotencyStore)
	adjustmentHandler := adjustment.NewHandler(logger, adjustmentService, checker, notifier)

	transferRepo := transfer.NewRepository(pool)
	transferService := transfer.NewService(transferRepo, settingsService, auditLogger, idempotencyStore)
	transferHandler := transfer.NewHandler(logger, transferService, checker, notifier)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		SettingsHandler:    settingsHandler,
		StockHandler:       stockHandler,
		TransactionHandler: transactionHandler,
		AdjustmentHandler:  adjustmentHandler,
		TransferHandler:    transferHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if err := idempotencyStore.Cleanup(groupCtx, cfg.IdempotencyTTL); err != nil {
					logger.Warn("idempotency cleanup", slog.Any("error", err))
				}
			}
		}
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
