package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// ProductDTO is the public shape of a menu item.
type ProductDTO struct {
	ID            uuid.UUID         `json:"id"`
	VenueID       uuid.UUID         `json:"venue_id"`
	CategoryID    *uuid.UUID        `json:"category_id,omitempty"`
	Name          string            `json:"name"`
	Description   *string           `json:"description,omitempty"`
	Kind          enums.ProductKind `json:"kind"`
	Price         decimal.Decimal   `json:"price"`
	ABVPercent    *decimal.Decimal  `json:"abv_percent,omitempty"`
	VolumeML      *int              `json:"volume_ml,omitempty"`
	ImageURL      *string           `json:"image_url,omitempty"`
	IsAvailable   bool              `json:"is_available"`
	AgeRestricted bool              `json:"age_restricted"`
}

func FromModel(p models.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		VenueID:       p.VenueID,
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		Kind:          p.Kind,
		Price:         p.Price,
		ABVPercent:    p.ABVPercent,
		VolumeML:      p.VolumeML,
		ImageURL:      p.ImageURL,
		IsAvailable:   p.IsAvailable,
		AgeRestricted: p.Kind.AgeRestricted(),
	}
}
