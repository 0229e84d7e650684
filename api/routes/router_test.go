package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcall-app/lastcall-backend/api/controllers"
	"github.com/lastcall-app/lastcall-backend/api/middleware"
	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/internal/loyalty"
	"github.com/lastcall-app/lastcall-backend/internal/orders"
	pkgauth "github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/auth/session"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSessions struct{}

func (stubSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubCart struct{ cart.Service }

func (stubCart) Get(context.Context, cart.Identity) (*cart.Cart, error) { return cart.New(), nil }

type stubOrders struct{ orders.Service }

func (stubOrders) ListVenue(context.Context, pkgauth.Actor, uuid.UUID, orders.VenueOrderFilters, pagination.Params) (pagination.Page[orders.OrderDTO], error) {
	return pagination.Page[orders.OrderDTO]{Items: []orders.OrderDTO{}}, nil
}

type stubLoyalty struct {
	controllers.LoyaltyService
	redeemed int
}

func (s *stubLoyalty) Redeem(_ context.Context, _ uuid.UUID, input loyalty.RedeemInput) (*loyalty.TransactionDTO, error) {
	s.redeemed++
	return &loyalty.TransactionDTO{Points: -input.Points}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", AllowedOrigins: []string{"http://localhost:5173"}},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "lastcall-test", ExpirationMinutes: 15, RefreshTokenTTLMinutes: 60},
	}
}

func newTestRouter(t *testing.T, loy *stubLoyalty) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	if loy == nil {
		loy = &stubLoyalty{}
	}
	return NewRouter(Params{
		Config:    cfg,
		Logger:    logger.Nop(),
		Sessions:  stubSessions{},
		Readiness: map[string]controllers.Pinger{"db": stubPinger{}},
		Cart:      stubCart{},
		Orders:    stubOrders{},
		Loyalty:   loy,
	}), cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "router@example.com",
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Header().Get("X-LastCall-Env"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuestCartGetsSessionCookie(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.CartSessionHeader))
	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.CartSessionCookie {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	for _, path := range []string{"/api/v1/me", "/api/v1/orders", "/api/v1/sobriety/status", "/api/v1/loyalty"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestBackofficeRequiresStaff(t *testing.T) {
	router, cfg := newTestRouter(t, nil)
	path := "/api/v1/backoffice/venues/" + uuid.NewString() + "/orders"

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleStaff))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedeemRequiresIdempotencyKey(t *testing.T) {
	loy := &stubLoyalty{}
	cfg := testConfig()
	router := NewRouter(Params{
		Config:      cfg,
		Logger:      logger.Nop(),
		Sessions:    stubSessions{},
		Idempotency: newMemoryIdempotency(),
		Loyalty:     loy,
	})
	token := bearer(t, cfg, enums.RoleCustomer)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/loyalty/redeem", strings.NewReader(`{"points":100}`))
	req.Header.Set("Authorization", token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, loy.redeemed)

	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/loyalty/redeem", strings.NewReader(`{"points":100}`))
		req.Header.Set("Authorization", token)
		req.Header.Set("Idempotency-Key", "redeem-1")
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	assert.Equal(t, 1, loy.redeemed)
}

type memoryIdempotency struct {
	values map[string]string
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{values: map[string]string{}}
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	return m.values[key], nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + "|" + id }

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}
