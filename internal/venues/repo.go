package venues

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns active venues, optionally filtered by a name or city search.
func (r *Repository) List(ctx context.Context, query string, cursor *pagination.Cursor, limit int) ([]models.Venue, error) {
	q := r.db.WithContext(ctx).Model(&models.Venue{}).Where("is_active = ?", true)
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(city) LIKE ?", like, like)
	}
	var rows []models.Venue
	if err := q.Scopes(pagination.Scope(cursor, limit)).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Venue, error) {
	var venue models.Venue
	if err := r.db.WithContext(ctx).First(&venue, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &venue, nil
}

func (r *Repository) Categories(ctx context.Context, venueID uuid.UUID) ([]models.ProductCategory, error) {
	var rows []models.ProductCategory
	err := r.db.WithContext(ctx).
		Where("venue_id = ?", venueID).
		Order("sort_order ASC").
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}
