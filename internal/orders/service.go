package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes order lookups for shoppers and the backoffice queue.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error)
	Track(ctx context.Context, number, email string) (*TrackDTO, error)
	ListVenue(ctx context.Context, actor auth.Actor, venueID uuid.UUID, filters VenueOrderFilters, params pagination.Params) (pagination.Page[OrderDTO], error)
	UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, to enums.OrderStatus) (*OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err)
	}
	if !canView(actor, *order) {
		// Hide existence from other shoppers.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := FromModel(*order)
	return &dto, nil
}

func canView(actor auth.Actor, order models.Order) bool {
	if order.UserID != nil && *order.UserID == actor.UserID {
		return true
	}
	return actor.CanManageVenue(order.VenueID)
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[OrderDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return page(rows, params.Limit), nil
}

// Track lets a guest look an order up by number; the contact email must match.
func (s *service) Track(ctx context.Context, number, email string) (*TrackDTO, error) {
	number = strings.TrimSpace(number)
	email = strings.ToLower(strings.TrimSpace(email))
	if number == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and email are required")
	}
	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, loadError(err)
	}
	if !strings.EqualFold(order.ContactEmail, email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	dto := trackDTO(*order)
	return &dto, nil
}

func (s *service) ListVenue(ctx context.Context, actor auth.Actor, venueID uuid.UUID, filters VenueOrderFilters, params pagination.Params) (pagination.Page[OrderDTO], error) {
	if !actor.CanManageVenue(venueID) {
		return pagination.Page[OrderDTO]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage this venue")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByVenue(ctx, venueID, filters, cursor, params.Limit)
	if err != nil {
		return pagination.Page[OrderDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list venue orders")
	}
	return page(rows, params.Limit), nil
}

// UpdateStatus advances an order one step, or cancels it, and emits
// order_status_changed in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, to enums.OrderStatus) (*OrderDTO, error) {
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return loadError(err)
		}
		if !actor.CanManageVenue(order.VenueID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage this venue")
		}
		from := order.Status
		if !from.CanTransitionTo(to) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", from, to).
				WithDetails(map[string]string{"from": from.String(), "to": to.String()})
		}
		moved, err := repo.UpdateStatus(ctx, id, from, to)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()},
			Data: outbox.OrderStatusChangedEvent{
				OrderID:      order.ID,
				OrderNumber:  order.OrderNumber,
				VenueID:      order.VenueID,
				ContactEmail: order.ContactEmail,
				From:         from,
				To:           to,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": id.String(), "status": to.String()}), "order status updated")
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadError(err)
	}
	dto := FromModel(*order)
	return &dto, nil
}

func page(rows []models.Order, limit int) pagination.Page[OrderDTO] {
	built := pagination.Build(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	out := pagination.Page[OrderDTO]{Items: make([]OrderDTO, 0, len(built.Items)), NextCursor: built.NextCursor}
	for _, row := range built.Items {
		out.Items = append(out.Items, FromModel(row))
	}
	return out
}

func loadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
