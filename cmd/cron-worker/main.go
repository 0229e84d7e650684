package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/abandonedcart"
	"github.com/lastcall-app/lastcall-backend/internal/auth"
	"github.com/lastcall-app/lastcall-backend/internal/cron"
	"github.com/lastcall-app/lastcall-backend/internal/profiles"
	"github.com/lastcall-app/lastcall-backend/internal/sobriety"
	"github.com/lastcall-app/lastcall-backend/pkg/auth/session"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/metrics"
	"github.com/lastcall-app/lastcall-backend/pkg/migrate"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/redis"
)

const (
	serviceKind = "cron-worker"
	lockName    = "cron-worker"
)

func main() {
	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	exitOnError(bootLog, "config", err)
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	exitOnError(logg, "database", err)
	defer closeQuietly(logg, "database", dbClient.Close)
	exitOnError(logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	exitOnError(logg, "redis", err)
	defer closeQuietly(logg, "redis", redisClient.Close)

	registry, err := buildRegistry(cfg, dbClient.DB(), redisClient, logg)
	exitOnError(logg, "cron registry", err)

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Cron.LockTTL)
	exitOnError(logg, "cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	exitOnError(logg, "cron service", err)

	stopMetrics := metrics.Serve(ctx, ":"+cfg.Service.MetricsPort, logg)
	defer stopMetrics()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildRegistry wires the domain services each job drives.
func buildRegistry(cfg *config.Config, conn *gorm.DB, redisClient *redis.Client, logg *logger.Logger) (*cron.Registry, error) {
	clk := clock.Real{}
	sender := mailer.New(cfg.Mail, cfg.FeatureFlags, logg)
	renderer := mailer.MustRenderer()
	profileRepo := profiles.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)

	reminders, err := abandonedcart.NewReminderService(abandonedcart.ReminderParams{
		Store:         abandonedcart.NewRepository(conn),
		Sender:        sender,
		Renderer:      renderer,
		Config:        cfg.Cart,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Clock:         clk,
		Logger:        logg,
		Metrics:       metrics.NewCartMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return nil, err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		OTPs:     auth.NewOTPRepository(conn),
		Profiles: profileRepo,
		Sessions: sessions,
		Sender:   sender,
		Renderer: renderer,
		JWT:      cfg.JWT,
		OTP:      cfg.OTP,
		Clock:    clk,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	drinking, err := sobriety.NewService(sobriety.ServiceParams{
		Repo:     sobriety.NewRepository(conn),
		Profiles: profileRepo,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Config:   cfg.Sobriety,
		Clock:    clk,
		Logger:   logg,
		Metrics:  metrics.NewSobrietyMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, err
	}

	return cron.StandardRegistry(cron.JobParams{
		Reminders:       reminders,
		Carts:           reminders,
		OTPs:            authService,
		Sessions:        drinking,
		Outbox:          outboxRepo,
		OutboxRetention: cfg.Outbox.Retention,
		Clock:           clk,
		Logger:          logg,
	})
}

func closeQuietly(logg *logger.Logger, resource string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+resource, err)
	}
}

func exitOnError(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to bootstrap "+resource, err)
	os.Exit(1)
}
