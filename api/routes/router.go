package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lastcall-app/lastcall-backend/api/controllers"
	"github.com/lastcall-app/lastcall-backend/api/middleware"
	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/internal/checkout"
	"github.com/lastcall-app/lastcall-backend/internal/orders"
	"github.com/lastcall-app/lastcall-backend/internal/products"
	"github.com/lastcall-app/lastcall-backend/internal/profiles"
	"github.com/lastcall-app/lastcall-backend/internal/venues"
	"github.com/lastcall-app/lastcall-backend/pkg/auth/session"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	pkgredis "github.com/lastcall-app/lastcall-backend/pkg/redis"
)

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Params carries everything the HTTP surface depends on. Nil stores disable
// the middleware that needs them.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	Sessions    session.AccessSessionChecker
	Counters    counterStore
	Idempotency pkgredis.IdempotencyStore
	Readiness   map[string]controllers.Pinger
	Metrics     http.Handler

	Auth     controllers.AuthService
	Profiles profiles.Service
	Venues   venues.Service
	Products products.Service
	Cart     cart.Service
	Checkout checkout.Service
	Orders   orders.Service
	Sobriety controllers.SobrietyService
	Loyalty  controllers.LoyaltyService
	OptOut   controllers.OptOutService
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	sendPolicy := middleware.OTPRateLimitPolicy{
		Name:       "otp_send",
		Window:     cfg.AuthRateLimit.SendWindow,
		IPLimit:    cfg.AuthRateLimit.SendIPLimit,
		EmailLimit: cfg.AuthRateLimit.SendEmailLimit,
	}
	verifyPolicy := middleware.OTPRateLimitPolicy{
		Name:       "otp_verify",
		Window:     cfg.AuthRateLimit.VerifyWindow,
		IPLimit:    cfg.AuthRateLimit.VerifyIPLimit,
		EmailLimit: cfg.AuthRateLimit.VerifyEmailLimit,
	}
	idem := middleware.Idempotency(p.Idempotency, middleware.IdempotencyPolicy{}, logg)
	idemRequired := middleware.Idempotency(p.Idempotency, middleware.IdempotencyPolicy{Required: true}, logg)
	idemCheckout := middleware.Idempotency(p.Idempotency, middleware.IdempotencyPolicy{TTL: middleware.CheckoutIdempotencyTTL}, logg)
	limiter := middleware.NewIPRateLimiter(cfg.APIRateLimit.RequestsPerMinute, cfg.APIRateLimit.Burst)
	staffOnly := middleware.RequireRole(logg, enums.RoleStaff, enums.RoleAdmin)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.Readiness))
	})
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.IPRateLimit(limiter, logg))
		r.Get("/carts/opt-out", controllers.CartOptOut(p.OptOut, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.IPRateLimit(limiter, logg))
		r.Use(middleware.CartSession(!cfg.App.IsDev(), logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.OTPRateLimit(sendPolicy, p.Counters, logg)).Post("/otp/send", controllers.AuthSendOTP(p.Auth, logg))
			r.With(middleware.OTPRateLimit(verifyPolicy, p.Counters, logg)).Post("/otp/verify", controllers.AuthVerifyOTP(p.Auth, logg))
			r.Post("/validate-email", controllers.AuthValidateEmail(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
			r.Post("/logout", controllers.AuthLogout(p.Auth, logg))
		})

		// Guests and signed-in users share these routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, p.Sessions, logg))

			r.Get("/venues", controllers.VenueList(p.Venues, logg))
			r.Get("/venues/{venueID}", controllers.VenueGet(p.Venues, logg))
			r.Get("/venues/{venueID}/menu", controllers.VenueMenu(p.Venues, logg))
			r.Get("/products/{productID}", controllers.ProductGet(p.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(p.Cart, logg))
				r.Delete("/", controllers.CartClear(p.Cart, logg))
				r.Post("/items", controllers.CartAddItem(p.Cart, logg))
				r.Post("/items/{productID}/decrement", controllers.CartDecrementItem(p.Cart, logg))
				r.Delete("/items/{productID}", controllers.CartDeleteItem(p.Cart, logg))
				r.Put("/contact", controllers.CartSetContact(p.Cart, logg))
			})

			r.Get("/checkout/preflight", controllers.CheckoutPreflight(p.Checkout, logg))
			r.With(idemCheckout).Post("/checkout", controllers.CheckoutSubmit(p.Checkout, logg))
			r.Get("/orders/track", controllers.OrderTrack(p.Orders, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

			r.Get("/me", controllers.MeGet(p.Profiles, logg))
			r.Patch("/me", controllers.MeUpdate(p.Profiles, logg))
			r.Post("/me/verify-age", controllers.MeVerifyAge(p.Profiles, logg))

			r.Get("/orders", controllers.OrderList(p.Orders, logg))
			r.Get("/orders/{orderID}", controllers.OrderGet(p.Orders, logg))

			r.Route("/sobriety", func(r chi.Router) {
				r.Get("/profile", controllers.SobrietyProfileGet(p.Sobriety, logg))
				r.Put("/profile", controllers.SobrietyProfilePut(p.Sobriety, logg))
				r.Post("/sessions", controllers.SobrietySessionStart(p.Sobriety, logg))
				r.Post("/sessions/end", controllers.SobrietySessionEnd(p.Sobriety, logg))
				r.Get("/status", controllers.SobrietyStatus(p.Sobriety, logg))
				r.Get("/stream", controllers.SobrietyStream(p.Sobriety, logg))
				r.Post("/drinks", controllers.SobrietyRecordDrink(p.Sobriety, logg))
				r.Post("/readings", controllers.SobrietyRecordReading(p.Sobriety, logg))
				r.Post("/alerts/{alertID}/ack", controllers.SobrietyAcknowledgeAlert(p.Sobriety, logg))
			})

			r.Route("/loyalty", func(r chi.Router) {
				r.Get("/", controllers.LoyaltySummary(p.Loyalty, logg))
				r.Get("/transactions", controllers.LoyaltyTransactions(p.Loyalty, logg))
				r.With(idem).Post("/check-ins", controllers.LoyaltyCheckIn(p.Loyalty, logg))
				r.With(idemRequired).Post("/redeem", controllers.LoyaltyRedeem(p.Loyalty, logg))
			})

			r.Route("/backoffice", func(r chi.Router) {
				r.Use(staffOnly)
				r.Get("/venues/{venueID}/orders", controllers.VenueOrderList(p.Orders, logg))
				r.With(idem).Patch("/orders/{orderID}/status", controllers.OrderUpdateStatus(p.Orders, logg))
				r.Patch("/products/{productID}/availability", controllers.ProductSetAvailability(p.Products, logg))
			})
		})
	})

	return r
}
