package venues

import (
	"time"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/internal/products"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
)

type VenueDTO struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	Timezone    string    `json:"timezone"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromModel(v models.Venue) VenueDTO {
	return VenueDTO{
		ID:          v.ID,
		Slug:        v.Slug,
		Name:        v.Name,
		Description: v.Description,
		Address:     v.Address,
		City:        v.City,
		Timezone:    v.Timezone,
		ImageURL:    v.ImageURL,
		CreatedAt:   v.CreatedAt,
	}
}

type CategoryDTO struct {
	ID       *uuid.UUID            `json:"id,omitempty"`
	Name     string                `json:"name"`
	Products []products.ProductDTO `json:"products"`
}

// MenuDTO groups a venue's available products by category, in category
// sort order. Products without a category land in a trailing "Other" group.
type MenuDTO struct {
	Venue      VenueDTO      `json:"venue"`
	Categories []CategoryDTO `json:"categories"`
}
