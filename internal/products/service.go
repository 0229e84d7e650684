package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
)

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	SetAvailability(ctx context.Context, id uuid.UUID, available bool) error
}

type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	SetAvailability(ctx context.Context, actor auth.Actor, id uuid.UUID, available bool) (*ProductDTO, error)
}

type service struct {
	repo productRepository
}

func NewService(repo productRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*product)
	return &dto, nil
}

// SetAvailability lets venue staff 86 an item.
func (s *service) SetAvailability(ctx context.Context, actor auth.Actor, id uuid.UUID, available bool) (*ProductDTO, error) {
	product, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageVenue(product.VenueID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not staff of this venue")
	}
	if err := s.repo.SetAvailability(ctx, id, available); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product availability")
	}
	product.IsAvailable = available
	dto := FromModel(*product)
	return &dto, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}
