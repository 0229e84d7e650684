package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Venue struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex:ux_venues_slug"`
	Name        string    `gorm:"column:name;not null"`
	Description *string   `gorm:"column:description"`
	Address     string    `gorm:"column:address;not null"`
	City        string    `gorm:"column:city;not null"`
	Timezone    string    `gorm:"column:timezone;not null;default:'UTC'"`
	ImageURL    *string   `gorm:"column:image_url"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Venue) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}

type ProductCategory struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VenueID   uuid.UUID `gorm:"column:venue_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *ProductCategory) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
