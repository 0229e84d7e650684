package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type OrderItemDTO struct {
	ProductID   uuid.UUID         `json:"product_id"`
	ProductName string            `json:"product_name"`
	Kind        enums.ProductKind `json:"kind"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	Quantity    int               `json:"quantity"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

type OrderDTO struct {
	ID           uuid.UUID         `json:"id"`
	OrderNumber  string            `json:"order_number"`
	Status       enums.OrderStatus `json:"status"`
	VenueID      uuid.UUID         `json:"venue_id"`
	ContactEmail string            `json:"contact_email"`
	ContactName  string            `json:"contact_name"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	Tip          decimal.Decimal   `json:"tip"`
	Total        decimal.Decimal   `json:"total"`
	CardLast4    string            `json:"card_last4"`
	Notes        *string           `json:"notes,omitempty"`
	Items        []OrderItemDTO    `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:           o.ID,
		OrderNumber:  o.OrderNumber,
		Status:       o.Status,
		VenueID:      o.VenueID,
		ContactEmail: o.ContactEmail,
		ContactName:  o.ContactName,
		Subtotal:     o.Subtotal,
		Tip:          o.Tip,
		Total:        o.Total,
		CardLast4:    o.CardLast4,
		Notes:        o.Notes,
		Items:        make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Kind:        item.Kind,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal,
		})
	}
	return dto
}

// TrackDTO is the public view returned to guests looking up an order.
type TrackDTO struct {
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	VenueID     uuid.UUID         `json:"venue_id"`
	Total       decimal.Decimal   `json:"total"`
	Items       []OrderItemDTO    `json:"items"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func trackDTO(o models.Order) TrackDTO {
	full := FromModel(o)
	return TrackDTO{
		OrderNumber: full.OrderNumber,
		Status:      full.Status,
		VenueID:     full.VenueID,
		Total:       full.Total,
		Items:       full.Items,
		CreatedAt:   full.CreatedAt,
		UpdatedAt:   full.UpdatedAt,
	}
}

// VenueOrderFilters narrows the backoffice queue.
type VenueOrderFilters struct {
	Status *enums.OrderStatus
}
