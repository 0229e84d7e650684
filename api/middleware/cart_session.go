package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/lastcall-app/lastcall-backend/api/responses"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/security"
)

const (
	CartSessionCookie = "lc_cart_session"
	CartSessionHeader = "X-Cart-Session"

	cartSessionTokenBytes = 24
	cartSessionMaxAge     = 30 * 24 * time.Hour
)

var cartSessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// CartSession resolves the anonymous cart session from the header or the
// cookie, minting a cookie when neither is present. Malformed values are
// replaced rather than trusted.
func CartSession(secureCookie bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if sessionID == "" {
				if c, err := r.Cookie(CartSessionCookie); err == nil {
					sessionID = strings.TrimSpace(c.Value)
				}
			}
			if !cartSessionPattern.MatchString(sessionID) {
				minted, err := security.URLToken(cartSessionTokenBytes)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint cart session"))
					return
				}
				sessionID = minted
				http.SetCookie(w, &http.Cookie{
					Name:     CartSessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(cartSessionMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(CartSessionHeader, sessionID)
			next.ServeHTTP(w, r.WithContext(WithCartSession(r.Context(), sessionID)))
		})
	}
}
