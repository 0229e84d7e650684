package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// BiometricProfile holds the inputs the BAC estimate needs. Its presence is
// the "biometric setup" precondition for starting a session.
type BiometricProfile struct {
	UserID      uuid.UUID           `gorm:"column:user_id;type:uuid;primaryKey"`
	WeightKg    float64             `gorm:"column:weight_kg;not null"`
	HeightCm    *float64            `gorm:"column:height_cm"`
	Sex         enums.BiologicalSex `gorm:"column:sex;type:varchar(16);not null"`
	ConsentedAt time.Time           `gorm:"column:consented_at;not null"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

type DrinkingSession struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	VenueID        *uuid.UUID              `gorm:"column:venue_id;type:uuid"`
	Status         enums.SessionStatus     `gorm:"column:status;type:varchar(16);not null"`
	DrinkCount     int                     `gorm:"column:drink_count;not null;default:0"`
	TotalAlcoholML float64                 `gorm:"column:total_alcohol_ml;not null;default:0"`
	EstimatedBAC   float64                 `gorm:"column:estimated_bac;not null;default:0"`
	PeakBAC        float64                 `gorm:"column:peak_bac;not null;default:0"`
	StartedAt      time.Time               `gorm:"column:started_at;not null"`
	FirstDrinkAt   *time.Time              `gorm:"column:first_drink_at"`
	LastDrinkAt    *time.Time              `gorm:"column:last_drink_at"`
	EndedAt        *time.Time              `gorm:"column:ended_at"`
	EndReason      *enums.SessionEndReason `gorm:"column:end_reason;type:varchar(16)"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *DrinkingSession) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// DrinkRecord is append-only; one row per unit consumed.
type DrinkRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SessionID   uuid.UUID  `gorm:"column:session_id;type:uuid;not null;index"`
	OrderID     *uuid.UUID `gorm:"column:order_id;type:uuid"`
	ProductID   *uuid.UUID `gorm:"column:product_id;type:uuid"`
	ProductName string     `gorm:"column:product_name;not null"`
	ABVPercent  float64    `gorm:"column:abv_percent;not null"`
	VolumeML    float64    `gorm:"column:volume_ml;not null"`
	AlcoholML   float64    `gorm:"column:alcohol_ml;not null"`
	ConsumedAt  time.Time  `gorm:"column:consumed_at;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (d *DrinkRecord) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// BiometricReading is an optional, append-only observation.
type BiometricReading struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SessionID        uuid.UUID `gorm:"column:session_id;type:uuid;not null;index"`
	HeartRate        *int      `gorm:"column:heart_rate"`
	SystolicBP       *int      `gorm:"column:systolic_bp"`
	DiastolicBP      *int      `gorm:"column:diastolic_bp"`
	TemperatureC     *float64  `gorm:"column:temperature_c"`
	OxygenSaturation *float64  `gorm:"column:oxygen_saturation"`
	RecordedAt       time.Time `gorm:"column:recorded_at;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (b *BiometricReading) BeforeCreate(*gorm.DB) error {
	assignID(&b.ID)
	return nil
}

type SobrietyAlert struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SessionID      uuid.UUID           `gorm:"column:session_id;type:uuid;not null;index"`
	Severity       enums.AlertSeverity `gorm:"column:severity;type:varchar(16);not null"`
	Message        string              `gorm:"column:message;not null"`
	BAC            float64             `gorm:"column:bac;not null"`
	AcknowledgedAt *time.Time          `gorm:"column:acknowledged_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (a *SobrietyAlert) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
