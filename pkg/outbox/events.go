package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// OrderCreatedEvent drives the confirmation email and the loyalty award.
type OrderCreatedEvent struct {
	OrderID      uuid.UUID          `json:"orderId"`
	OrderNumber  string             `json:"orderNumber"`
	UserID       *uuid.UUID         `json:"userId,omitempty"`
	VenueID      uuid.UUID          `json:"venueId"`
	VenueName    string             `json:"venueName"`
	ContactEmail string             `json:"contactEmail"`
	ContactName  string             `json:"contactName"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Tip          decimal.Decimal    `json:"tip"`
	Total        decimal.Decimal    `json:"total"`
	Items        []OrderCreatedItem `json:"items"`
}

type OrderCreatedItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type OrderStatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"orderId"`
	OrderNumber  string            `json:"orderNumber"`
	VenueID      uuid.UUID         `json:"venueId"`
	ContactEmail string            `json:"contactEmail"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
}

type CartConvertedEvent struct {
	CartID  uuid.UUID `json:"cartId"`
	OrderID uuid.UUID `json:"orderId"`
}

type SobrietyAlertEvent struct {
	SessionID uuid.UUID           `json:"sessionId"`
	UserID    uuid.UUID           `json:"userId"`
	Email     string              `json:"email,omitempty"`
	AlertID   uuid.UUID           `json:"alertId"`
	Severity  enums.AlertSeverity `json:"severity"`
	BAC       float64             `json:"bac"`
	Message   string              `json:"message"`
}
