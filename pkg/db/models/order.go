package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber      string            `gorm:"column:order_number;not null;uniqueIndex:ux_orders_number"`
	UserID           *uuid.UUID        `gorm:"column:user_id;type:uuid;index"`
	VenueID          uuid.UUID         `gorm:"column:venue_id;type:uuid;not null;index"`
	ContactEmail     string            `gorm:"column:contact_email;not null"`
	ContactName      string            `gorm:"column:contact_name;not null"`
	ContactPhone     *string           `gorm:"column:contact_phone"`
	Status           enums.OrderStatus `gorm:"column:status;type:varchar(16);not null;default:'pending'"`
	Subtotal         decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tip              decimal.Decimal   `gorm:"column:tip;type:numeric(12,2);not null"`
	Total            decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	PaymentReference string            `gorm:"column:payment_reference;not null"`
	CardLast4        string            `gorm:"column:card_last4;not null"`
	Notes            *string           `gorm:"column:notes"`
	Items            []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// OrderItem freezes product data at purchase time.
type OrderItem struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductName string            `gorm:"column:product_name;not null"`
	Kind        enums.ProductKind `gorm:"column:kind;type:varchar(16);not null"`
	UnitPrice   decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	LineTotal   decimal.Decimal   `gorm:"column:line_total;type:numeric(12,2);not null"`
	ABVPercent  *decimal.Decimal  `gorm:"column:abv_percent;type:numeric(5,2)"`
	VolumeML    *int              `gorm:"column:volume_ml"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
