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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MRAMOS343/moncar-api/internal/app"
	"github.com/MRAMOS343/moncar-api/internal/auth"
	"github.com/MRAMOS343/moncar-api/internal/catalog"
	"github.com/MRAMOS343/moncar-api/internal/importer"
	"github.com/MRAMOS343/moncar-api/internal/inventory"
	jobmetrics "github.com/MRAMOS343/moncar-api/internal/jobs"
	"github.com/MRAMOS343/moncar-api/internal/observability"
	"github.com/MRAMOS343/moncar-api/internal/platform/cache"
	"github.com/MRAMOS343/moncar-api/internal/platform/db"
	"github.com/MRAMOS343/moncar-api/internal/sales"
	"github.com/MRAMOS343/moncar-api/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MinConns: cfg.PGMinConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The catalog falls back to direct reads when Redis is down at boot.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	repoCfg := cfg.RepositoryConfig()
	importRepo := importer.NewRepository(dbpool, repoCfg)
	importService := importer.NewService(importRepo, cfg.ImporterConfig(), importer.NewMetrics(metrics.Registerer()), logger)

	jobClient, err := jobs.NewClient(cfg.RedisOpt())
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(cfg.RedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	salesService := sales.NewService(sales.NewRepository(dbpool, repoCfg.Schema), logger)
	catalogCache := cache.NewVersioned(redisClient, "catalog", cfg.CatalogCacheTTL).WithLogger(logger)
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalogCache, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Verifier:         auth.NewVerifier(cfg.JWTSecret),
		SyncHandler:      importer.NewHandler(logger, importService, jobClient),
		SalesHandler:     sales.NewHandler(logger, salesService),
		CatalogHandler:   catalog.NewHandler(logger, catalogService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Ready: func(r *http.Request) error {
			return dbpool.Ping(r.Context())
		},
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if cfg.EmbedWorker {
		worker, err := app.NewSyncWorker(cfg, importService, logger, jobMetrics)
		if err != nil {
			logger.Error("init worker", slog.Any("error", err))
			os.Exit(1)
		}
		group.Go(func() error {
			logger.Info("starting embedded worker")
			if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
