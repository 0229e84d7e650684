package middleware

import (
	"context"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	pkgauth "github.com/lastcall-app/lastcall-backend/pkg/auth"
)

type contextKey string

const (
	ctxActor       contextKey = "actor"
	ctxCartSession contextKey = "cart_session"
)

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (pkgauth.Actor, bool) {
	if ctx == nil {
		return pkgauth.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(pkgauth.Actor)
	return actor, ok
}

// WithActor injects the authenticated caller into the context.
func WithActor(ctx context.Context, actor pkgauth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func CartSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartSession).(string); ok {
		return v
	}
	return ""
}

func WithCartSession(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, sessionID)
}

// CartIdentity resolves whose cart a request addresses: the signed-in user,
// otherwise the anonymous cart session.
func CartIdentity(ctx context.Context) (cart.Identity, bool) {
	if actor, ok := ActorFromContext(ctx); ok {
		return cart.UserIdentity(actor.UserID), true
	}
	if sessionID := CartSessionFromContext(ctx); sessionID != "" {
		return cart.SessionIdentity(sessionID), true
	}
	return cart.Identity{}, false
}
