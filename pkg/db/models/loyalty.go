package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type LoyaltyTier struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name       string          `gorm:"column:name;not null;uniqueIndex:ux_loyalty_tiers_name"`
	MinPoints  int             `gorm:"column:min_points;not null"`
	Multiplier decimal.Decimal `gorm:"column:multiplier;type:numeric(4,2);not null"`
	Perks      []string        `gorm:"column:perks;type:jsonb;serializer:json"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *LoyaltyTier) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

type UserLoyalty struct {
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	PointsBalance  int        `gorm:"column:points_balance;not null;default:0"`
	LifetimePoints int        `gorm:"column:lifetime_points;not null;default:0"`
	TierID         *uuid.UUID `gorm:"column:tier_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// PointsTransaction is the loyalty ledger. Points is signed.
type PointsTransaction struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	Type         enums.PointsTransactionType `gorm:"column:type;type:varchar(24);not null;uniqueIndex:ux_points_transactions_order_type"`
	Points       int                         `gorm:"column:points;not null"`
	BalanceAfter int                         `gorm:"column:balance_after;not null"`
	OrderID      *uuid.UUID                  `gorm:"column:order_id;type:uuid;uniqueIndex:ux_points_transactions_order_type"`
	VenueID      *uuid.UUID                  `gorm:"column:venue_id;type:uuid"`
	Description  string                      `gorm:"column:description;not null"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (p *PointsTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type CheckIn struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_check_ins_daily"`
	VenueID       uuid.UUID `gorm:"column:venue_id;type:uuid;not null;uniqueIndex:ux_check_ins_daily"`
	CheckInDate   string    `gorm:"column:check_in_date;type:varchar(10);not null;uniqueIndex:ux_check_ins_daily"`
	PointsAwarded int       `gorm:"column:points_awarded;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *CheckIn) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
