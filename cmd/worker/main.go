package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/recoco/recoco-relay/internal/connectors"
	"github.com/recoco/recoco-relay/internal/events"
	"github.com/recoco/recoco-relay/internal/grist"
	"github.com/recoco/recoco-relay/internal/lescommuns"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/metrics"
	"github.com/recoco/recoco-relay/pkg/migrate"
	"github.com/recoco/recoco-relay/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	gristConnector, err := grist.NewConnector(grist.ConnectorParams{
		Repo:           grist.NewRepository(dbClient.DB()),
		Logger:         logg,
		Metrics:        syncMetrics,
		Recoco:         cfg.Recoco,
		BatchSize:      cfg.Grist.RecordBatchSize,
		RequestTimeout: cfg.Grist.RequestTimeout,
	})
	requireResource(ctx, logg, "grist connector", err)

	lescommunsConnector, err := lescommuns.NewConnector(lescommuns.ConnectorParams{
		Repo:    lescommuns.NewRepository(dbClient.DB()),
		Logger:  logg,
		Metrics: syncMetrics,
		Recoco:  cfg.Recoco,
		Config:  cfg.LesCommuns,
	})
	requireResource(ctx, logg, "lescommuns connector", err)

	registry, err := connectors.NewRegistry(gristConnector, lescommunsConnector)
	requireResource(ctx, logg, "connector registry", err)

	eventsRepo := events.NewRepository(dbClient.DB())
	router, err := events.NewRouter(registry, eventsRepo, logg)
	requireResource(ctx, logg, "event router", err)

	consumer, err := events.NewConsumer(eventsRepo, router, pubsubClient.EventsSubscription(), logg)
	requireResource(ctx, logg, "event consumer", err)

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	requireResource(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": "worker",
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "event worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "event worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "event worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
