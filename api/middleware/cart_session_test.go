package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcall-app/lastcall-backend/pkg/auth"
)

func captureSession(seen *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = CartSessionFromContext(r.Context())
	})
}

func TestCartSessionMintsCookie(t *testing.T) {
	var seen string
	rec := httptest.NewRecorder()
	CartSession(true, nil)(captureSession(&seen)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.NotEmpty(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CartSessionCookie, cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, seen, rec.Header().Get(CartSessionHeader))
}

func TestCartSessionReusesHeaderOrCookie(t *testing.T) {
	const existing = "abcdefghijklmnopqrstuvwx"
	var seen string

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CartSessionHeader, existing)
	rec := httptest.NewRecorder()
	CartSession(false, nil)(captureSession(&seen)).ServeHTTP(rec, req)
	assert.Equal(t, existing, seen)
	assert.Empty(t, rec.Result().Cookies())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.AddCookie(&http.Cookie{Name: CartSessionCookie, Value: existing})
	CartSession(false, nil)(captureSession(&seen)).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, existing, seen)
}

func TestCartSessionReplacesMalformedValue(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(CartSessionHeader, "bad value!")
	CartSession(false, nil)(captureSession(&seen)).ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "bad value!", seen)
	assert.Regexp(t, cartSessionPattern, seen)
}

func TestCartIdentityPrefersUser(t *testing.T) {
	userID := uuid.New()
	ctx := WithCartSession(WithActor(httptest.NewRequest(http.MethodGet, "/", nil).Context(), auth.Actor{UserID: userID}), "guest-session-000001")
	id, ok := CartIdentity(ctx)
	require.True(t, ok)
	require.NotNil(t, id.UserID)
	assert.Equal(t, userID, *id.UserID)

	id, ok = CartIdentity(WithCartSession(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "guest-session-000001"))
	require.True(t, ok)
	assert.Equal(t, "guest-session-000001", id.SessionID)
}
