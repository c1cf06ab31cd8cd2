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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/packfinderz-receiving/pkg/config"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/metrics"
	"github.com/angelmondragon/packfinderz-receiving/pkg/migrate"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox"
	"github.com/angelmondragon/packfinderz-receiving/pkg/redis"
)

const serviceName = "receiving-outbox-relay"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "stream": cfg.Outbox.Stream})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox relay stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox relay shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	if !cfg.Redis.Enabled() {
		return errors.New("outbox relay requires redis: set " + config.EnvRedisURL)
	}

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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	stream, err := redis.NewStreamPublisher(redisClient, cfg.Outbox.Stream, cfg.Outbox.StreamMaxLen)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	relay, err := outbox.NewRelay(outbox.RelayParams{
		DB:             dbClient,
		Repo:           outbox.NewRepository(dbClient.DB()),
		Registry:       outbox.NewReceivingRegistry(),
		Publisher:      streamPublisher{stream: stream},
		Logger:         logg,
		Metrics:        metrics.NewOutboxMetrics(registry),
		BatchSize:      cfg.Outbox.BatchSize,
		MaxAttempts:    cfg.Outbox.MaxAttempts,
		PollInterval:   cfg.Outbox.PollInterval,
		PublishTimeout: cfg.Outbox.PublishTimeout,
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Outbox.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "outbox relay metrics server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err = multierr.Append(err, metricsServer.Shutdown(shutdownCtx))
	}()

	logg.Info(ctx, "starting outbox relay")
	return relay.Run(ctx)
}

// streamPublisher adapts the redis stream to the relay's Publisher.
type streamPublisher struct {
	stream *redis.StreamPublisher
}

func (p streamPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	_, err := p.stream.Append(ctx, redis.StreamMessage{
		EventID:       msg.EventID,
		EventType:     msg.EventType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		RequestID:     msg.RequestID,
		OccurredAt:    msg.OccurredAt,
		Payload:       msg.Payload,
	})
	return err
}
