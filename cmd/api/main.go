package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-receiving/api/routes"
	"github.com/angelmondragon/packfinderz-receiving/internal/receipts"
	"github.com/angelmondragon/packfinderz-receiving/pkg/config"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/metrics"
	"github.com/angelmondragon/packfinderz-receiving/pkg/migrate"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox"
	"github.com/angelmondragon/packfinderz-receiving/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "receiving-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "receiving-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "receiving api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	var locks receipts.LockFactory
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
		locks = receipts.NewRedisLockFactory(redisClient, cfg.Receiving.LockTTL)
	} else {
		logg.Warn(ctx, "redis not configured: idempotency and save locks disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	receivingMetrics := metrics.NewReceivingMetrics(registry)

	params := receipts.ServiceParams{
		Repo:    receipts.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Locks:   locks,
		Metrics: receivingMetrics,
		Logger:  logg,
		Config:  cfg.Receiving,
	}
	if cfg.Outbox.Enabled {
		params.Outbox = outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	}
	receiptsService, err := receipts.NewService(params)
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, registry, receiptsService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting receiving api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down receiving api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
