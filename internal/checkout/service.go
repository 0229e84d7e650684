// Package checkout turns a cart into a paid order behind the age and
// sobriety gates.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/internal/orders"
	"github.com/lastcall-app/lastcall-backend/internal/sobriety"
	"github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/metrics"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
)

const orderNumberAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartService interface {
	Get(ctx context.Context, id cart.Identity) (*cart.Cart, error)
	Clear(ctx context.Context, id cart.Identity) (*cart.Cart, error)
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type venueLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Venue, error)
}

type sobrietyService interface {
	GateInputs(ctx context.Context, userID uuid.UUID) (sobriety.GateInputs, error)
	RecordOrderDrinks(ctx context.Context, userID, orderID uuid.UUID, drinks []sobriety.DrinkInput) error
}

type cartConverter interface {
	MarkConvertedTx(tx *gorm.DB, id cart.Identity, orderID uuid.UUID) (*uuid.UUID, error)
}

// Input is the checkout request body.
type Input struct {
	Email string           `json:"email" validate:"omitempty,email,max=254"`
	Name  string           `json:"name" validate:"omitempty,max=120"`
	Phone *string          `json:"phone,omitempty" validate:"omitempty,max=32"`
	Notes *string          `json:"notes,omitempty" validate:"omitempty,max=500"`
	Tip   *decimal.Decimal `json:"tip,omitempty"`
	Card  Card             `json:"card" validate:"required"`
}

// Preflight tells the client which step the gate requires before payment.
type Preflight struct {
	Decision                Decision        `json:"decision"`
	BAC                     float64         `json:"bac"`
	HasAlcohol              bool            `json:"has_alcohol"`
	RequiresAuth            bool            `json:"requires_auth"`
	RequiresAgeVerification bool            `json:"requires_age_verification"`
	Total                   decimal.Decimal `json:"total"`
	ItemCount               int             `json:"item_count"`
}

type Service interface {
	Preflight(ctx context.Context, id cart.Identity, actor *auth.Actor) (*Preflight, error)
	Execute(ctx context.Context, id cart.Identity, actor *auth.Actor, input Input) (*orders.OrderDTO, error)
}

type service struct {
	tx       txRunner
	carts    cartService
	products productLoader
	venues   venueLoader
	sobriety sobrietyService
	mirror   cartConverter
	orders   orders.Repository
	payments PaymentProcessor
	outbox   outbox.Emitter
	logg     *logger.Logger
	metrics  *metrics.SobrietyMetrics
}

type ServiceParams struct {
	Tx       txRunner
	Carts    cartService
	Products productLoader
	Venues   venueLoader
	Sobriety sobrietyService
	Mirror   cartConverter
	Orders   orders.Repository
	Payments PaymentProcessor
	Outbox   outbox.Emitter
	Logger   *logger.Logger
	Metrics  *metrics.SobrietyMetrics
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case p.Products == nil:
		return nil, fmt.Errorf("product loader required")
	case p.Venues == nil:
		return nil, fmt.Errorf("venue loader required")
	case p.Sobriety == nil:
		return nil, fmt.Errorf("sobriety service required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	payments := p.Payments
	if payments == nil {
		payments = NewMockProcessor()
	}
	return &service{
		tx:       p.Tx,
		carts:    p.Carts,
		products: p.Products,
		venues:   p.Venues,
		sobriety: p.Sobriety,
		mirror:   p.Mirror,
		orders:   p.Orders,
		payments: payments,
		outbox:   p.Outbox,
		logg:     p.Logger,
		metrics:  p.Metrics,
	}, nil
}

func (s *service) Preflight(ctx context.Context, id cart.Identity, actor *auth.Actor) (*Preflight, error) {
	c, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Preflight{Decision: DecisionProceed, HasAlcohol: c.HasAlcohol(), Total: c.Total, ItemCount: c.ItemCount}
	if c.HasAgeRestricted() {
		out.RequiresAuth = actor == nil
		out.RequiresAgeVerification = actor == nil || !actor.AgeVerified
	}
	if out.HasAlcohol && actor != nil {
		inputs, err := s.sobriety.GateInputs(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		out.Decision = Decide(inputs.HasBiometrics, inputs.SessionActive, inputs.BAC)
		out.BAC = inputs.BAC
	}
	return out, nil
}

// Execute charges the cart and records the order. The cart is cleared only
// after the order commits.
func (s *service) Execute(ctx context.Context, id cart.Identity, actor *auth.Actor, input Input) (*orders.OrderDTO, error) {
	c, err := s.carts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() || c.VenueID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines, subtotal, err := s.priceLines(ctx, *c)
	if err != nil {
		return nil, err
	}
	if err := s.checkBuyer(ctx, *c, actor); err != nil {
		return nil, err
	}

	venue, err := s.venues.FindByID(ctx, *c.VenueID)
	if err != nil || !venue.IsActive {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "venue is not taking orders")
	}

	contact, err := resolveContact(input, *c, actor)
	if err != nil {
		return nil, err
	}
	tip := decimal.Zero
	if input.Tip != nil {
		tip = input.Tip.Round(2)
	}
	if tip.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative").
			WithDetails(map[string]string{"tip": "must be zero or more"})
	}
	total := subtotal.Add(tip)

	charge, err := s.payments.Charge(ctx, ChargeRequest{Amount: total, Card: input.Card, Description: venue.Name})
	if err != nil {
		return nil, paymentError(err)
	}

	order := models.Order{
		UserID:           actorID(actor),
		VenueID:          venue.ID,
		ContactEmail:     contact.Email,
		ContactName:      contact.Name,
		ContactPhone:     input.Phone,
		Status:           enums.OrderStatusPending,
		Subtotal:         subtotal,
		Tip:              tip,
		Total:            total,
		PaymentReference: charge.Reference,
		CardLast4:        charge.Last4,
		Notes:            input.Notes,
		Items:            lines,
	}
	if err := s.persist(ctx, id, actor, venue, &order); err != nil {
		if voidErr := s.payments.Void(ctx, charge.Reference); voidErr != nil {
			s.logg.Error(s.logg.WithField(ctx, "payment_reference", charge.Reference), "void charge after failed order", voidErr)
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"order_id": order.ID.String(), "order_number": order.OrderNumber})
	s.logg.Info(ctx, "order placed")

	if actor != nil {
		if drinks := orderDrinks(order); len(drinks) > 0 {
			if err := s.sobriety.RecordOrderDrinks(ctx, actor.UserID, order.ID, drinks); err != nil {
				s.logg.Error(ctx, "record order drinks", err)
			}
		}
	}
	if _, err := s.carts.Clear(ctx, id); err != nil {
		s.logg.Error(ctx, "clear cart after checkout", err)
	}

	dto := orders.FromModel(order)
	return &dto, nil
}

// priceLines reprices the cart from current product rows and rejects lines
// that are gone or unavailable.
func (s *service) priceLines(ctx context.Context, c cart.Cart) ([]models.OrderItem, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.Product.ID)
	}
	current, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	subtotal := decimal.Zero
	lines := make([]models.OrderItem, 0, len(c.Items))
	var unavailable []string
	for _, item := range c.Items {
		product, ok := current[item.Product.ID]
		if !ok || !product.IsAvailable || product.VenueID != *c.VenueID {
			unavailable = append(unavailable, item.Product.Name)
			continue
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Kind:        product.Kind,
			UnitPrice:   product.Price,
			Quantity:    item.Quantity,
			LineTotal:   lineTotal,
			ABVPercent:  product.ABVPercent,
			VolumeML:    product.VolumeML,
		})
	}
	if len(unavailable) > 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "some items are no longer available").
			WithDetails(map[string]any{"unavailable": unavailable})
	}
	return lines, subtotal.Round(2), nil
}

func (s *service) checkBuyer(ctx context.Context, c cart.Cart, actor *auth.Actor) error {
	if !c.HasAgeRestricted() {
		return nil
	}
	if actor == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to order age-restricted items")
	}
	if !actor.AgeVerified {
		return pkgerrors.New(pkgerrors.CodeForbidden, "age verification required").
			WithDetails(map[string]string{"decision": "verify_age"})
	}
	if !c.HasAlcohol() {
		return nil
	}
	inputs, err := s.sobriety.GateInputs(ctx, actor.UserID)
	if err != nil {
		return err
	}
	switch decision := Decide(inputs.HasBiometrics, inputs.SessionActive, inputs.BAC); decision {
	case DecisionProceed:
		return nil
	case DecisionBlocked:
		s.metrics.IncBlocked()
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"user_id": actor.UserID.String(), "bac": inputs.BAC}), "alcohol checkout blocked")
		return pkgerrors.New(pkgerrors.CodeSafetyBlocked, "your estimated BAC is over the legal limit").
			WithDetails(map[string]any{"decision": decision, "bac": inputs.BAC})
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "complete the sobriety check before ordering alcohol").
			WithDetails(map[string]any{"decision": decision})
	}
}

func (s *service) persist(ctx context.Context, id cart.Identity, actor *auth.Actor, venue *models.Venue, order *models.Order) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.ID = uuid.Nil
		for i := range order.Items {
			order.Items[i].ID = uuid.Nil
			order.Items[i].OrderID = uuid.Nil
		}
		if order.OrderNumber, err = orders.NewOrderNumber(); err != nil {
			return err
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.persistTx(ctx, tx, id, actor, venue, order)
		})
		if !db.IsUniqueViolation(err, orders.OrderNumberConstraint) {
			return err
		}
	}
	return err
}

func (s *service) persistTx(ctx context.Context, tx *gorm.DB, id cart.Identity, actor *auth.Actor, venue *models.Venue, order *models.Order) error {
	if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
		return err
	}
	var actorRef *outbox.ActorRef
	if actor != nil {
		actorRef = &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
	}
	event := outbox.OrderCreatedEvent{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		UserID:       order.UserID,
		VenueID:      venue.ID,
		VenueName:    venue.Name,
		ContactEmail: order.ContactEmail,
		ContactName:  order.ContactName,
		Subtotal:     order.Subtotal,
		Tip:          order.Tip,
		Total:        order.Total,
	}
	for _, item := range order.Items {
		event.Items = append(event.Items, outbox.OrderCreatedItem{Name: item.ProductName, Quantity: item.Quantity, LineTotal: item.LineTotal})
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef,
		Data:          event,
	}); err != nil {
		return err
	}

	if s.mirror == nil {
		return nil
	}
	cartID, err := s.mirror.MarkConvertedTx(tx, id, order.ID)
	if err != nil || cartID == nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCartConverted,
		AggregateType: enums.AggregateAbandonedCart,
		AggregateID:   *cartID,
		Actor:         actorRef,
		Data:          outbox.CartConvertedEvent{CartID: *cartID, OrderID: order.ID},
	})
}

func resolveContact(input Input, c cart.Cart, actor *auth.Actor) (cart.Contact, error) {
	contact := cart.Contact{
		Email: strings.ToLower(strings.TrimSpace(input.Email)),
		Name:  strings.TrimSpace(input.Name),
	}
	if contact.Email == "" {
		contact.Email = c.Contact.Email
	}
	if contact.Email == "" && actor != nil {
		contact.Email = actor.Email
	}
	if contact.Name == "" {
		contact.Name = c.Contact.Name
	}
	if contact.Email == "" {
		return cart.Contact{}, pkgerrors.New(pkgerrors.CodeValidation, "contact email is required").
			WithDetails(map[string]string{"email": "required"})
	}
	return contact, nil
}

func orderDrinks(order models.Order) []sobriety.DrinkInput {
	var drinks []sobriety.DrinkInput
	for _, item := range order.Items {
		if item.Kind != enums.ProductKindDrink || item.ABVPercent == nil || item.VolumeML == nil {
			continue
		}
		abv := item.ABVPercent.InexactFloat64()
		if abv <= 0 || *item.VolumeML <= 0 {
			continue
		}
		productID := item.ProductID
		drinks = append(drinks, sobriety.DrinkInput{
			ProductID:  &productID,
			Name:       item.ProductName,
			ABVPercent: abv,
			VolumeML:   float64(*item.VolumeML),
			Quantity:   item.Quantity,
		})
	}
	return drinks
}

func paymentError(err error) error {
	switch {
	case errors.Is(err, ErrCardDeclined):
		return pkgerrors.New(pkgerrors.CodePaymentDeclined, "your card was declined").
			WithDetails(map[string]string{"reason": "declined"})
	case errors.Is(err, ErrInvalidCard):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid card details").
			WithDetails(map[string]string{"card": err.Error()})
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "charge card")
	}
}

func actorID(actor *auth.Actor) *uuid.UUID {
	if actor == nil {
		return nil
	}
	id := actor.UserID
	return &id
}
