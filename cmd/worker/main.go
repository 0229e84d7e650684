package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/lastcall-app/lastcall-backend/internal/loyalty"
	"github.com/lastcall-app/lastcall-backend/internal/notifications"
	"github.com/lastcall-app/lastcall-backend/internal/venues"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/migrate"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox/idempotency"
	"github.com/lastcall-app/lastcall-backend/pkg/pubsub"
	"github.com/lastcall-app/lastcall-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	exitOnError(logg, "config", err)
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	exitOnError(logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing database", err)
		}
	}()
	exitOnError(logg, "dev migrations", migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient))

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	exitOnError(logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	exitOnError(logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(bootCtx, "error closing pubsub client", err)
		}
	}()

	processed, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	exitOnError(logg, "idempotency manager", err)

	notifier, err := notifications.NewConsumer(notifications.ConsumerParams{
		Sender:        mailer.New(cfg.Mail, cfg.FeatureFlags, logg),
		Renderer:      mailer.MustRenderer(),
		PublicBaseURL: cfg.App.PublicBaseURL,
		Logger:        logg,
	})
	exitOnError(logg, "notification processor", err)

	conn := dbClient.DB()
	loyaltyService, err := loyalty.NewService(loyalty.ServiceParams{
		Repo:   loyalty.NewRepository(conn),
		Venues: venues.NewRepository(conn),
		Config: cfg.Loyalty,
		Clock:  clock.Real{},
		Logger: logg,
	})
	exitOnError(logg, "loyalty service", err)
	awards, err := loyalty.NewConsumer(loyaltyService, logg)
	exitOnError(logg, "loyalty processor", err)

	notificationConsumer, err := pubsub.NewConsumer("notifications", pubsubClient.NotificationSubscription(), processed, notifier, logg)
	exitOnError(logg, "notification consumer", err)
	loyaltyConsumer, err := pubsub.NewConsumer("loyalty", pubsubClient.LoyaltySubscription(), processed, awards, logg)
	exitOnError(logg, "loyalty consumer", err)

	service, err := NewService(ServiceParams{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
		PubSub: pubsubClient,
		Consumers: map[string]runner{
			"notifications": notificationConsumer,
			"loyalty":       loyaltyConsumer,
		},
	})
	exitOnError(logg, "worker service", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func exitOnError(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
