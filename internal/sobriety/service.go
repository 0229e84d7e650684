package sobriety

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/metrics"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
)

const expiryBatch = 500

type profileLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type Service struct {
	repo     *Repository
	profiles profileLookup
	outbox   outbox.Emitter
	cfg      config.SobrietyConfig
	clock    clock.Clock
	logg     *logger.Logger
	metrics  *metrics.SobrietyMetrics
}

type ServiceParams struct {
	Repo     *Repository
	Profiles profileLookup
	Outbox   outbox.Emitter
	Config   config.SobrietyConfig
	Clock    clock.Clock
	Logger   *logger.Logger
	Metrics  *metrics.SobrietyMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sobriety repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	cfg := params.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.IdleSessionAfter <= 0 {
		cfg.IdleSessionAfter = time.Hour
	}
	if cfg.MaxSession <= 0 {
		cfg.MaxSession = 12 * time.Hour
	}
	return &Service{
		repo:     params.Repo,
		profiles: params.Profiles,
		outbox:   params.Outbox,
		cfg:      cfg,
		clock:    clk,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// PollInterval is how often status subscribers are refreshed.
func (s *Service) PollInterval() time.Duration { return s.cfg.PollInterval }

// SetupProfile stores the biometric inputs. Consent is mandatory.
func (s *Service) SetupProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*ProfileDTO, error) {
	if !input.Consent {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consent is required").
			WithDetails(map[string]string{"consent": "must be true"})
	}
	sex, err := enums.ParseBiologicalSex(strings.ToLower(strings.TrimSpace(input.Sex)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sex")
	}
	if input.WeightKg <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weight_kg must be positive")
	}
	profile := models.BiometricProfile{
		UserID:      userID,
		WeightKg:    input.WeightKg,
		HeightCm:    input.HeightCm,
		Sex:         sex,
		ConsentedAt: s.now(),
	}
	if err := s.repo.SaveProfile(ctx, &profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save biometric profile")
	}
	dto := profileDTO(profile)
	return &dto, nil
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "biometric profile not set up")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load biometric profile")
	}
	dto := profileDTO(*profile)
	return &dto, nil
}

func (s *Service) requireProfile(ctx context.Context, userID uuid.UUID) (*models.BiometricProfile, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "biometric setup required").
			WithDetails(map[string]string{"decision": "require_biometric_setup"})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load biometric profile")
	}
	return profile, nil
}

// StartSession opens a session. It fails without a biometric profile and
// when one is already active. Alcohol from the previous session that has not
// yet been eliminated carries into the new one.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID, venueID *uuid.UUID) (*SessionDTO, error) {
	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	var session models.DrinkingSession
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		active, err := s.repo.FindActiveTx(tx, userID)
		if err != nil {
			return err
		}
		if active != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a drinking session is already active").
				WithDetails(map[string]string{"session_id": active.ID.String()})
		}
		session = models.DrinkingSession{
			UserID:    userID,
			VenueID:   venueID,
			Status:    enums.SessionStatusActive,
			StartedAt: s.now(),
		}
		previous, err := s.repo.FindLastEndedTx(tx, userID)
		if err != nil {
			return err
		}
		if previous != nil && s.currentBAC(*previous, *profile) > 0 {
			session.TotalAlcoholML = previous.TotalAlcoholML
			session.FirstDrinkAt = previous.FirstDrinkAt
			session.EstimatedBAC = s.currentBAC(session, *profile)
			session.PeakBAC = session.EstimatedBAC
		}
		return s.repo.CreateSessionTx(tx, &session)
	})
	if err != nil {
		return nil, txError(err, "start session")
	}
	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "drinking session started")
	dto := sessionDTO(session)
	return &dto, nil
}

// Status reports the live estimate, decayed to now, and open alerts.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*Status, error) {
	status := &Status{Alerts: []AlertDTO{}}
	profile, err := s.repo.FindProfile(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load biometric profile")
	default:
		status.HasProfile = true
	}

	session, err := s.repo.FindActive(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	if session == nil || profile == nil {
		status.SafeToOrder = true
		return status, nil
	}
	dto := sessionDTO(*session)
	status.Session = &dto
	status.BAC = s.currentBAC(*session, *profile)
	status.SafeToOrder = IsSafeToOrder(status.BAC)

	alerts, err := s.repo.ListOpenAlerts(ctx, session.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load alerts")
	}
	for _, a := range alerts {
		status.Alerts = append(status.Alerts, alertDTO(a))
	}
	return status, nil
}

// GateInputs collects what the checkout gate needs for userID.
func (s *Service) GateInputs(ctx context.Context, userID uuid.UUID) (GateInputs, error) {
	status, err := s.Status(ctx, userID)
	if err != nil {
		return GateInputs{}, err
	}
	return GateInputs{HasBiometrics: status.HasProfile, SessionActive: status.Session != nil, BAC: status.BAC}, nil
}

func (s *Service) currentBAC(session models.DrinkingSession, profile models.BiometricProfile) float64 {
	if session.FirstDrinkAt == nil {
		return 0
	}
	return EstimateBAC(session.TotalAlcoholML, profile.WeightKg, profile.Sex, s.now().Sub(*session.FirstDrinkAt))
}

// RecordDrink appends one record per unit to the active session.
func (s *Service) RecordDrink(ctx context.Context, userID uuid.UUID, input DrinkInput) (*Status, error) {
	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, userID, *profile, []DrinkInput{input}, nil, true); err != nil {
		return nil, err
	}
	return s.Status(ctx, userID)
}

// RecordOrderDrinks logs the alcoholic lines of a paid order. Without an
// active session it does nothing.
func (s *Service) RecordOrderDrinks(ctx context.Context, userID, orderID uuid.UUID, drinks []DrinkInput) error {
	if len(drinks) == 0 {
		return nil
	}
	profile, err := s.repo.FindProfile(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load biometric profile")
	}
	for i := range drinks {
		drinks[i].OrderID = &orderID
	}
	return s.record(ctx, userID, *profile, drinks, nil, false)
}

// RecordReading stores an optional vitals observation.
func (s *Service) RecordReading(ctx context.Context, userID uuid.UUID, input ReadingInput) (*Status, error) {
	if input.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one reading value is required")
	}
	profile, err := s.requireProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.record(ctx, userID, *profile, nil, &input, true); err != nil {
		return nil, err
	}
	return s.Status(ctx, userID)
}

func (s *Service) record(ctx context.Context, userID uuid.UUID, profile models.BiometricProfile, drinks []DrinkInput, reading *ReadingInput, requireSession bool) error {
	email := s.emailFor(ctx, userID)
	now := s.now()
	var raised []models.SobrietyAlert

	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.repo.FindActiveTx(tx, userID)
		if err != nil {
			return err
		}
		if session == nil {
			if requireSession {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "no active drinking session").
					WithDetails(map[string]string{"decision": "start_session"})
			}
			return nil
		}

		records := drinkRecords(session.ID, drinks, now)
		if err := s.repo.InsertDrinksTx(tx, records); err != nil {
			return err
		}
		for _, rec := range records {
			session.DrinkCount++
			session.TotalAlcoholML += rec.AlcoholML
		}
		if len(records) > 0 {
			if session.FirstDrinkAt == nil {
				session.FirstDrinkAt = &now
			}
			session.LastDrinkAt = &now
		}

		var advisory string
		if reading != nil {
			row := models.BiometricReading{
				SessionID:        session.ID,
				HeartRate:        reading.HeartRate,
				SystolicBP:       reading.SystolicBP,
				DiastolicBP:      reading.DiastolicBP,
				TemperatureC:     reading.TemperatureC,
				OxygenSaturation: reading.OxygenSaturation,
				RecordedAt:       now,
			}
			if err := s.repo.InsertReadingTx(tx, &row); err != nil {
				return err
			}
			advisory, _ = ReadingAdvisory(reading.HeartRate, reading.OxygenSaturation)
		}

		session.EstimatedBAC = s.currentBAC(*session, profile)
		if session.EstimatedBAC > session.PeakBAC {
			session.PeakBAC = session.EstimatedBAC
		}
		if err := s.repo.SaveSessionTx(tx, session); err != nil {
			return err
		}

		if severity, ok := SeverityFor(session.EstimatedBAC); ok {
			alert, err := s.raiseOnce(ctx, tx, *session, severity, severityMessage(severity), email, false)
			if err != nil {
				return err
			}
			if alert != nil {
				raised = append(raised, *alert)
			}
		}
		if advisory != "" {
			alert, err := s.raiseOnce(ctx, tx, *session, enums.AlertSeverityAdvisory, advisory, email, true)
			if err != nil {
				return err
			}
			if alert != nil {
				raised = append(raised, *alert)
			}
		}
		return nil
	})
	if err != nil {
		return txError(err, "record drink")
	}
	for _, alert := range raised {
		s.metrics.IncAlert(alert.Severity.String())
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"user_id":  userID.String(),
			"severity": alert.Severity.String(),
			"bac":      alert.BAC,
		}), "sobriety alert raised")
	}
	return nil
}

// raiseOnce inserts an alert unless the session already has one of that
// severity. openOnly limits the check to unacknowledged alerts.
func (s *Service) raiseOnce(ctx context.Context, tx *gorm.DB, session models.DrinkingSession, severity enums.AlertSeverity, message, email string, openOnly bool) (*models.SobrietyAlert, error) {
	exists, err := s.repo.HasAlertTx(tx, session.ID, severity, openOnly)
	if err != nil || exists {
		return nil, err
	}
	alert := models.SobrietyAlert{
		SessionID: session.ID,
		Severity:  severity,
		Message:   message,
		BAC:       session.EstimatedBAC,
	}
	if err := s.repo.InsertAlertTx(tx, &alert); err != nil {
		return nil, err
	}
	if s.outbox != nil {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSobrietyAlert,
			AggregateType: enums.AggregateDrinkingSession,
			AggregateID:   session.ID,
			Actor:         &outbox.ActorRef{UserID: session.UserID, Role: enums.RoleCustomer.String()},
			Data: outbox.SobrietyAlertEvent{
				SessionID: session.ID,
				UserID:    session.UserID,
				Email:     email,
				AlertID:   alert.ID,
				Severity:  severity,
				BAC:       alert.BAC,
				Message:   message,
			},
		})
		if err != nil {
			return nil, err
		}
	}
	return &alert, nil
}

func (s *Service) emailFor(ctx context.Context, userID uuid.UUID) string {
	if s.profiles == nil {
		return ""
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return ""
	}
	return profile.Email
}

func drinkRecords(sessionID uuid.UUID, drinks []DrinkInput, at time.Time) []models.DrinkRecord {
	var records []models.DrinkRecord
	for _, d := range drinks {
		qty := d.Quantity
		if qty <= 0 {
			qty = 1
		}
		for i := 0; i < qty; i++ {
			records = append(records, models.DrinkRecord{
				SessionID:   sessionID,
				OrderID:     d.OrderID,
				ProductID:   d.ProductID,
				ProductName: strings.TrimSpace(d.Name),
				ABVPercent:  d.ABVPercent,
				VolumeML:    d.VolumeML,
				AlcoholML:   AlcoholML(d.ABVPercent, d.VolumeML),
				ConsumedAt:  at,
			})
		}
	}
	return records
}

func (s *Service) AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID) error {
	err := s.repo.AcknowledgeAlert(ctx, userID, alertID, s.now())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "alert not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acknowledge alert")
	}
	return nil
}

// EndSession ends the user's active session.
func (s *Service) EndSession(ctx context.Context, userID uuid.UUID) (*SessionDTO, error) {
	profile, err := s.repo.FindProfile(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load biometric profile")
	}
	var ended models.DrinkingSession
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		session, err := s.repo.FindActiveTx(tx, userID)
		if err != nil {
			return err
		}
		if session == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active drinking session")
		}
		bac := session.EstimatedBAC
		if profile != nil {
			bac = s.currentBAC(*session, *profile)
		}
		ended = *session
		ended.Status = enums.SessionStatusEnded
		reason := enums.SessionEndUser
		ended.EndReason = &reason
		now := s.now()
		ended.EndedAt = &now
		ended.EstimatedBAC = bac
		_, err = s.repo.EndIfActiveTx(tx, session.ID, reason, bac, now)
		return err
	})
	if err != nil {
		return nil, txError(err, "end session")
	}
	dto := sessionDTO(ended)
	return &dto, nil
}

// ExpireStale ends sessions past the maximum length, and sessions whose
// estimate has decayed to zero with no drink inside the idle window.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	sessions, err := s.repo.ListActive(ctx, expiryBatch)
	if err != nil {
		return 0, err
	}
	now := s.now()
	ended := 0
	var errs error
	for _, session := range sessions {
		reason, bac, ok, err := s.staleReason(ctx, session, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		if !ok {
			continue
		}
		var changed bool
		err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
			var txErr error
			changed, txErr = s.repo.EndIfActiveTx(tx, session.ID, reason, bac, now)
			return txErr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("end session %s: %w", session.ID, err))
			continue
		}
		if changed {
			ended++
		}
	}
	return ended, errs
}

func (s *Service) staleReason(ctx context.Context, session models.DrinkingSession, now time.Time) (enums.SessionEndReason, float64, bool, error) {
	if now.Sub(session.StartedAt) >= s.cfg.MaxSession {
		return enums.SessionEndExpired, session.EstimatedBAC, true, nil
	}
	profile, err := s.repo.FindProfile(ctx, session.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", 0, false, err
	}
	bac := 0.0
	if profile != nil {
		bac = s.currentBAC(session, *profile)
	}
	lastActivity := session.StartedAt
	if session.LastDrinkAt != nil {
		lastActivity = *session.LastDrinkAt
	}
	if bac == 0 && now.Sub(lastActivity) >= s.cfg.IdleSessionAfter {
		return enums.SessionEndIdle, 0, true, nil
	}
	return "", 0, false, nil
}

func txError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
