package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// Product is a menu item sold by a single venue.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	VenueID     uuid.UUID         `gorm:"column:venue_id;type:uuid;not null;index"`
	CategoryID  *uuid.UUID        `gorm:"column:category_id;type:uuid;index"`
	Name        string            `gorm:"column:name;not null"`
	Description *string           `gorm:"column:description"`
	Kind        enums.ProductKind `gorm:"column:kind;type:varchar(16);not null"`
	Price       decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	ABVPercent  *decimal.Decimal  `gorm:"column:abv_percent;type:numeric(5,2)"`
	VolumeML    *int              `gorm:"column:volume_ml"`
	ImageURL    *string           `gorm:"column:image_url"`
	IsAvailable bool              `gorm:"column:is_available;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// IsAlcoholic reports whether units of the product should be recorded as
// drinks.
func (p Product) IsAlcoholic() bool {
	return p.Kind == enums.ProductKindDrink && p.ABVPercent != nil && p.ABVPercent.IsPositive() && p.VolumeML != nil && *p.VolumeML > 0
}
