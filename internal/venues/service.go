package venues

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/products"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type venueRepository interface {
	List(ctx context.Context, query string, cursor *pagination.Cursor, limit int) ([]models.Venue, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Venue, error)
	Categories(ctx context.Context, venueID uuid.UUID) ([]models.ProductCategory, error)
}

type productLister interface {
	ListByVenue(ctx context.Context, venueID uuid.UUID, includeUnavailable bool) ([]models.Product, error)
}

type Service interface {
	List(ctx context.Context, query string, params pagination.Params) (pagination.Page[VenueDTO], error)
	Get(ctx context.Context, id uuid.UUID) (*VenueDTO, error)
	Menu(ctx context.Context, id uuid.UUID) (*MenuDTO, error)
}

type service struct {
	repo     venueRepository
	products productLister
}

func NewService(repo venueRepository, products productLister) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("venue repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) List(ctx context.Context, query string, params pagination.Params) (pagination.Page[VenueDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[VenueDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, query, cursor, params.Limit)
	if err != nil {
		return pagination.Page[VenueDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list venues")
	}
	dtos := make([]VenueDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, FromModel(row))
	}
	return pagination.Build(dtos, params.Limit, func(v VenueDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: v.CreatedAt, ID: v.ID}
	}), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*VenueDTO, error) {
	venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*venue)
	return &dto, nil
}

func (s *service) Menu(ctx context.Context, id uuid.UUID) (*MenuDTO, error) {
	venue, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	categories, err := s.repo.Categories(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load categories")
	}
	items, err := s.products.ListByVenue(ctx, id, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	byCategory := map[uuid.UUID][]products.ProductDTO{}
	var other []products.ProductDTO
	for _, item := range items {
		dto := products.FromModel(item)
		if item.CategoryID == nil {
			other = append(other, dto)
			continue
		}
		byCategory[*item.CategoryID] = append(byCategory[*item.CategoryID], dto)
	}

	menu := &MenuDTO{Venue: FromModel(*venue), Categories: []CategoryDTO{}}
	for _, category := range categories {
		list, ok := byCategory[category.ID]
		if !ok {
			continue
		}
		id := category.ID
		menu.Categories = append(menu.Categories, CategoryDTO{ID: &id, Name: category.Name, Products: list})
		delete(byCategory, category.ID)
	}
	// Products pointing at a missing category fall through to "Other".
	for _, list := range byCategory {
		other = append(other, list...)
	}
	if len(other) > 0 {
		menu.Categories = append(menu.Categories, CategoryDTO{Name: "Other", Products: other})
	}
	return menu, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	venue, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
	}
	if !venue.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
	}
	return venue, nil
}
