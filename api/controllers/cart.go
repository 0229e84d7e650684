package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/api/responses"
	"github.com/lastcall-app/lastcall-backend/api/validators"
	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

type cartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
}

type cartContactRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
	Name  string `json:"name" validate:"omitempty,max=120"`
}

type cartMutation func(ctx context.Context, id cart.Identity, productID uuid.UUID) (*cart.Cart, error)

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cartIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// CartAddItem adds one unit of the product in the request body.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cartIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.AddItem(r.Context(), id, body.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// CartDecrementItem removes one unit; the entry disappears at zero.
func CartDecrementItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return cartItemHandler(svc.RemoveItem, logg)
}

// CartDeleteItem drops the entry whatever its quantity.
func CartDeleteItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return cartItemHandler(svc.DeleteItem, logg)
}

func cartItemHandler(mutate cartMutation, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cartIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := mutate(r.Context(), id, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cartIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.Clear(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}

// CartSetContact stores the guest's email and name so reminders can reach them.
func CartSetContact(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := cartIdentity(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body cartContactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c, err := svc.SetContact(r.Context(), id, cart.Contact{
			Email: body.Email,
			Name:  validators.SanitizeString(body.Name, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, c)
	}
}
