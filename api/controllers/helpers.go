package controllers

import (
	"net/http"

	"github.com/lastcall-app/lastcall-backend/api/middleware"
	"github.com/lastcall-app/lastcall-backend/internal/cart"
	pkgauth "github.com/lastcall-app/lastcall-backend/pkg/auth"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
)

func requireActor(r *http.Request) (pkgauth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return pkgauth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

func optionalActor(r *http.Request) *pkgauth.Actor {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return nil
	}
	return &actor
}

func cartIdentity(r *http.Request) (cart.Identity, error) {
	id, ok := middleware.CartIdentity(r.Context())
	if !ok {
		return cart.Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "cart session required")
	}
	return id, nil
}
