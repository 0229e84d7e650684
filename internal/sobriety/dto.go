package sobriety

import (
	"time"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type ProfileInput struct {
	WeightKg float64  `json:"weight_kg" validate:"required,gt=20,lt=400"`
	HeightCm *float64 `json:"height_cm,omitempty" validate:"omitempty,gt=50,lt=300"`
	Sex      string   `json:"sex" validate:"omitempty,oneof=male female unspecified"`
	Consent  bool     `json:"consent"`
}

type ProfileDTO struct {
	WeightKg    float64             `json:"weight_kg"`
	HeightCm    *float64            `json:"height_cm,omitempty"`
	Sex         enums.BiologicalSex `json:"sex"`
	ConsentedAt time.Time           `json:"consented_at"`
}

func profileDTO(p models.BiometricProfile) ProfileDTO {
	return ProfileDTO{WeightKg: p.WeightKg, HeightCm: p.HeightCm, Sex: p.Sex, ConsentedAt: p.ConsentedAt}
}

type SessionDTO struct {
	ID             uuid.UUID               `json:"id"`
	VenueID        *uuid.UUID              `json:"venue_id,omitempty"`
	Status         enums.SessionStatus     `json:"status"`
	DrinkCount     int                     `json:"drink_count"`
	TotalAlcoholML float64                 `json:"total_alcohol_ml"`
	EstimatedBAC   float64                 `json:"estimated_bac"`
	PeakBAC        float64                 `json:"peak_bac"`
	StartedAt      time.Time               `json:"started_at"`
	FirstDrinkAt   *time.Time              `json:"first_drink_at,omitempty"`
	LastDrinkAt    *time.Time              `json:"last_drink_at,omitempty"`
	EndedAt        *time.Time              `json:"ended_at,omitempty"`
	EndReason      *enums.SessionEndReason `json:"end_reason,omitempty"`
}

func sessionDTO(s models.DrinkingSession) SessionDTO {
	return SessionDTO{
		ID:             s.ID,
		VenueID:        s.VenueID,
		Status:         s.Status,
		DrinkCount:     s.DrinkCount,
		TotalAlcoholML: s.TotalAlcoholML,
		EstimatedBAC:   s.EstimatedBAC,
		PeakBAC:        s.PeakBAC,
		StartedAt:      s.StartedAt,
		FirstDrinkAt:   s.FirstDrinkAt,
		LastDrinkAt:    s.LastDrinkAt,
		EndedAt:        s.EndedAt,
		EndReason:      s.EndReason,
	}
}

type AlertDTO struct {
	ID        uuid.UUID           `json:"id"`
	Severity  enums.AlertSeverity `json:"severity"`
	Message   string              `json:"message"`
	BAC       float64             `json:"bac"`
	CreatedAt time.Time           `json:"created_at"`
}

func alertDTO(a models.SobrietyAlert) AlertDTO {
	return AlertDTO{ID: a.ID, Severity: a.Severity, Message: a.Message, BAC: a.BAC, CreatedAt: a.CreatedAt}
}

// Status is what the client polls: the live estimate plus open alerts.
type Status struct {
	HasProfile  bool        `json:"has_profile"`
	Session     *SessionDTO `json:"session"`
	BAC         float64     `json:"bac"`
	SafeToOrder bool        `json:"safe_to_order"`
	Alerts      []AlertDTO  `json:"alerts"`
}

// DrinkInput records quantity units of one drink.
type DrinkInput struct {
	ProductID  *uuid.UUID `json:"product_id,omitempty"`
	Name       string     `json:"name" validate:"required,max=200"`
	ABVPercent float64    `json:"abv_percent" validate:"gt=0,lte=100"`
	VolumeML   float64    `json:"volume_ml" validate:"gt=0,lte=5000"`
	Quantity   int        `json:"quantity" validate:"omitempty,min=1,max=20"`
	OrderID    *uuid.UUID `json:"-"`
}

type ReadingInput struct {
	HeartRate        *int     `json:"heart_rate,omitempty" validate:"omitempty,min=20,max=250"`
	SystolicBP       *int     `json:"systolic_bp,omitempty" validate:"omitempty,min=50,max=260"`
	DiastolicBP      *int     `json:"diastolic_bp,omitempty" validate:"omitempty,min=30,max=180"`
	TemperatureC     *float64 `json:"temperature_c,omitempty" validate:"omitempty,min=30,max=45"`
	OxygenSaturation *float64 `json:"oxygen_saturation,omitempty" validate:"omitempty,min=50,max=100"`
}

func (r ReadingInput) empty() bool {
	return r.HeartRate == nil && r.SystolicBP == nil && r.DiastolicBP == nil && r.TemperatureC == nil && r.OxygenSaturation == nil
}

// GateInputs are the facts the checkout gate decides on.
type GateInputs struct {
	HasBiometrics bool
	SessionActive bool
	BAC           float64
}
