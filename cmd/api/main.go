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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lastcall-app/lastcall-backend/api/controllers"
	"github.com/lastcall-app/lastcall-backend/api/routes"
	"github.com/lastcall-app/lastcall-backend/internal/abandonedcart"
	"github.com/lastcall-app/lastcall-backend/internal/auth"
	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/internal/checkout"
	"github.com/lastcall-app/lastcall-backend/internal/loyalty"
	"github.com/lastcall-app/lastcall-backend/internal/orders"
	"github.com/lastcall-app/lastcall-backend/internal/products"
	"github.com/lastcall-app/lastcall-backend/internal/profiles"
	"github.com/lastcall-app/lastcall-backend/internal/sobriety"
	"github.com/lastcall-app/lastcall-backend/internal/venues"
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

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	clk := clock.Real{}
	sender := mailer.New(cfg.Mail, cfg.FeatureFlags, logg)
	renderer := mailer.MustRenderer()
	cartMetrics := metrics.NewCartMetrics(prometheus.DefaultRegisterer)
	sobrietyMetrics := metrics.NewSobrietyMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	profileRepo := profiles.NewRepository(conn)
	productRepo := products.NewRepository(conn)
	venueRepo := venues.NewRepository(conn)
	abandonedRepo := abandonedcart.NewRepository(conn)

	profileService, err := profiles.NewService(profileRepo)
	exitOnError(logg, "profile service", err)
	productService, err := products.NewService(productRepo)
	exitOnError(logg, "product service", err)
	venueService, err := venues.NewService(venueRepo, productRepo)
	exitOnError(logg, "venue service", err)

	synchronizer := abandonedcart.NewSynchronizer(abandonedcart.SynchronizerParams{
		Store:       abandonedRepo,
		Clock:       clk,
		QuietPeriod: cfg.Cart.SyncQuietPeriod,
		Logger:      logg,
		Metrics:     cartMetrics,
	})
	cartService, err := cart.NewService(cart.ServiceParams{
		Store:    cart.NewStore(redisClient, cfg.Cart.StoreTTL, logg),
		Products: productRepo,
		Profiles: profileRepo,
		Observer: synchronizer,
		Logger:   logg,
	})
	exitOnError(logg, "cart service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		OTPs:     auth.NewOTPRepository(conn),
		Profiles: profileRepo,
		Sessions: sessionManager,
		Sender:   sender,
		Renderer: renderer,
		JWT:      cfg.JWT,
		OTP:      cfg.OTP,
		Hooks:    []auth.LoginHook{auth.CartHandoff(cartService, synchronizer)},
		Clock:    clk,
		Logger:   logg,
	})
	exitOnError(logg, "auth service", err)

	sobrietyService, err := sobriety.NewService(sobriety.ServiceParams{
		Repo:     sobriety.NewRepository(conn),
		Profiles: profileRepo,
		Outbox:   outboxService,
		Config:   cfg.Sobriety,
		Clock:    clk,
		Logger:   logg,
		Metrics:  sobrietyMetrics,
	})
	exitOnError(logg, "sobriety service", err)

	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orderRepo, dbClient, outboxService, logg)
	exitOnError(logg, "order service", err)
	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:       dbClient,
		Carts:    cartService,
		Products: productRepo,
		Venues:   venueRepo,
		Sobriety: sobrietyService,
		Mirror:   abandonedRepo,
		Orders:   orderRepo,
		Payments: checkout.NewMockProcessor(),
		Outbox:   outboxService,
		Logger:   logg,
		Metrics:  sobrietyMetrics,
	})
	exitOnError(logg, "checkout service", err)

	loyaltyService, err := loyalty.NewService(loyalty.ServiceParams{
		Repo:   loyalty.NewRepository(conn),
		Venues: venueRepo,
		Config: cfg.Loyalty,
		Clock:  clk,
		Logger: logg,
	})
	exitOnError(logg, "loyalty service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:      cfg,
			Logger:      logg,
			Sessions:    sessionManager,
			Counters:    redisClient,
			Idempotency: redisClient,
			Readiness:   map[string]controllers.Pinger{"db": dbClient, "redis": redisClient},
			Metrics:     promhttp.Handler(),
			Auth:        authService,
			Profiles:    profileService,
			Venues:      venueService,
			Products:    productService,
			Cart:        cartService,
			Checkout:    checkoutService,
			Orders:      orderService,
			Sobriety:    sobrietyService,
			Loyalty:     loyaltyService,
			OptOut:      abandonedcart.NewOptOutService(abandonedRepo),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown failed", err)
	}
	// Pending cart mirror writes are flushed before the database closes.
	synchronizer.Close(shutdownCtx)
	logg.Info(ctx, "api server stopped")
}

func exitOnError(logg *logger.Logger, name string, err error) {
	if err != nil {
		logg.Error(context.Background(), "failed to create "+name, err)
		os.Exit(1)
	}
}
