package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// CartSnapshotVersion is bumped whenever CartSnapshot changes shape.
const CartSnapshotVersion = 1

// CartSnapshot is the JSON blob mirrored into abandoned_carts.snapshot.
type CartSnapshot struct {
	Version int                `json:"version"`
	Items   []CartSnapshotItem `json:"items"`
}

type CartSnapshotItem struct {
	ProductID uuid.UUID         `json:"product_id"`
	Name      string            `json:"name"`
	Kind      enums.ProductKind `json:"kind"`
	UnitPrice decimal.Decimal   `json:"unit_price"`
	Quantity  int               `json:"quantity"`
	ImageURL  *string           `json:"image_url,omitempty"`
}

// AbandonedCart is keyed by exactly one of UserID or SessionID. At most one
// non-converted row exists per identity.
type AbandonedCart struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID               *uuid.UUID      `gorm:"column:user_id;type:uuid;index"`
	SessionID            *string         `gorm:"column:session_id;index"`
	VenueID              *uuid.UUID      `gorm:"column:venue_id;type:uuid"`
	Snapshot             CartSnapshot    `gorm:"column:snapshot;type:jsonb;serializer:json;not null"`
	Total                decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	ItemCount            int             `gorm:"column:item_count;not null"`
	ContactEmail         *string         `gorm:"column:contact_email"`
	ContactName          *string         `gorm:"column:contact_name"`
	FirstReminderSentAt  *time.Time      `gorm:"column:first_reminder_sent_at"`
	SecondReminderSentAt *time.Time      `gorm:"column:second_reminder_sent_at"`
	OptedOut             bool            `gorm:"column:opted_out;not null;default:false"`
	OptOutToken          string          `gorm:"column:opt_out_token;not null;uniqueIndex:ux_abandoned_carts_opt_out_token"`
	ConvertedToOrder     bool            `gorm:"column:converted_to_order;not null;default:false"`
	OrderID              *uuid.UUID      `gorm:"column:order_id;type:uuid"`
	LastActivityAt       time.Time       `gorm:"column:last_activity_at;not null;index"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *AbandonedCart) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
