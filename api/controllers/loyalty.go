package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/api/responses"
	"github.com/lastcall-app/lastcall-backend/api/validators"
	"github.com/lastcall-app/lastcall-backend/internal/loyalty"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type LoyaltyService interface {
	Summary(ctx context.Context, userID uuid.UUID) (*loyalty.SummaryDTO, error)
	Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[loyalty.TransactionDTO], error)
	CheckIn(ctx context.Context, userID uuid.UUID, input loyalty.CheckInInput) (*loyalty.TransactionDTO, error)
	Redeem(ctx context.Context, userID uuid.UUID, input loyalty.RedeemInput) (*loyalty.TransactionDTO, error)
}

func LoyaltySummary(svc LoyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func LoyaltyTransactions(svc LoyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.Transactions(r.Context(), actor.UserID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// LoyaltyCheckIn credits the daily venue check-in bonus.
func LoyaltyCheckIn(svc LoyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body loyalty.CheckInInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := svc.CheckIn(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func LoyaltyRedeem(svc LoyaltyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body loyalty.RedeemInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Description = validators.SanitizeString(body.Description, 200)
		entry, err := svc.Redeem(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
