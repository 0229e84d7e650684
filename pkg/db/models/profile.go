package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// Profile is the account row; OTP login creates it on first verification.
type Profile struct {
	UserID        uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey"`
	Email         string         `gorm:"column:email;not null;uniqueIndex:ux_profiles_email"`
	FullName      *string        `gorm:"column:full_name"`
	Phone         *string        `gorm:"column:phone"`
	DateOfBirth   *time.Time     `gorm:"column:date_of_birth;type:date"`
	AgeVerifiedAt *time.Time     `gorm:"column:age_verified_at"`
	Role          enums.UserRole `gorm:"column:role;type:varchar(16);not null;default:'customer'"`
	VenueID       *uuid.UUID     `gorm:"column:venue_id;type:uuid"`
	LastLoginAt   *time.Time     `gorm:"column:last_login_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Profile) BeforeCreate(*gorm.DB) error {
	assignID(&p.UserID)
	return nil
}

// OTPCode stores an argon2id hash of an emailed passcode.
type OTPCode struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email      string     `gorm:"column:email;not null;index"`
	CodeHash   string     `gorm:"column:code_hash;not null"`
	Attempts   int        `gorm:"column:attempts;not null;default:0"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	ConsumedAt *time.Time `gorm:"column:consumed_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (o *OTPCode) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
