package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/api/responses"
	"github.com/lastcall-app/lastcall-backend/api/validators"
	"github.com/lastcall-app/lastcall-backend/internal/sobriety"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

// SobrietyService is the subset of *sobriety.Service the HTTP layer calls.
type SobrietyService interface {
	SetupProfile(ctx context.Context, userID uuid.UUID, input sobriety.ProfileInput) (*sobriety.ProfileDTO, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*sobriety.ProfileDTO, error)
	StartSession(ctx context.Context, userID uuid.UUID, venueID *uuid.UUID) (*sobriety.SessionDTO, error)
	EndSession(ctx context.Context, userID uuid.UUID) (*sobriety.SessionDTO, error)
	Status(ctx context.Context, userID uuid.UUID) (*sobriety.Status, error)
	RecordDrink(ctx context.Context, userID uuid.UUID, input sobriety.DrinkInput) (*sobriety.Status, error)
	RecordReading(ctx context.Context, userID uuid.UUID, input sobriety.ReadingInput) (*sobriety.Status, error)
	AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID) error
	Watch(ctx context.Context, userID uuid.UUID, emit func(*sobriety.Status) error, onErr func(error)) error
}

type startSessionRequest struct {
	VenueID *uuid.UUID `json:"venue_id,omitempty"`
}

func SobrietyProfilePut(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sobriety.ProfileInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.SetupProfile(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func SobrietyProfileGet(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.GetProfile(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func SobrietySessionStart(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body startSessionRequest
		if err := validators.DecodeOptionalJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.StartSession(r.Context(), actor.UserID, body.VenueID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func SobrietySessionEnd(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.EndSession(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

func SobrietyStatus(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Status(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func SobrietyRecordDrink(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sobriety.DrinkInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body.Name = validators.SanitizeString(body.Name, 200)
		status, err := svc.RecordDrink(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, status)
	}
}

func SobrietyRecordReading(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sobriety.ReadingInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.RecordReading(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, status)
	}
}

func SobrietyAcknowledgeAlert(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		alertID, err := validators.ParseUUIDParam(r, "alertID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.AcknowledgeAlert(r.Context(), actor.UserID, alertID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "acknowledged"})
	}
}

// SobrietyStream pushes the caller's status as server-sent events until the
// client disconnects. Each frame is a "status" event carrying the JSON body
// GET /sobriety/status would return.
func SobrietyStream(svc SobrietyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		emit := func(status *sobriety.Status) error {
			payload, err := json.Marshal(status)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}
		onErr := func(err error) {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "sobriety.stream.status_failed")
			_, _ = fmt.Fprint(w, ": status unavailable\n\n")
			flusher.Flush()
		}

		logg.Debug(ctx, "sobriety.stream.open")
		if err := svc.Watch(ctx, actor.UserID, emit, onErr); err != nil && ctx.Err() == nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "sobriety.stream.closed")
		}
	}
}
