package profiles

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, "email = ?", NormalizeEmail(email)).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindOrCreateByEmailTx returns the profile for email, creating a customer
// profile on first login, and stamps last_login_at.
func (r *Repository) FindOrCreateByEmailTx(tx *gorm.DB, email string, now time.Time) (*models.Profile, bool, error) {
	if tx == nil {
		return nil, false, gorm.ErrInvalidTransaction
	}
	email = NormalizeEmail(email)

	var profile models.Profile
	err := tx.First(&profile, "email = ?", email).Error
	created := false
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		profile = models.Profile{Email: email, Role: enums.RoleCustomer}
		if err := tx.Create(&profile).Error; err != nil {
			if !db.IsUniqueViolation(err, "ux_profiles_email") {
				return nil, false, err
			}
			// Lost a race with a concurrent first login.
			if err := tx.First(&profile, "email = ?", email).Error; err != nil {
				return nil, false, err
			}
		} else {
			created = true
		}
	default:
		return nil, false, err
	}

	at := now.UTC()
	if err := tx.Model(&models.Profile{}).Where("user_id = ?", profile.UserID).Update("last_login_at", at).Error; err != nil {
		return nil, false, err
	}
	profile.LastLoginAt = &at
	return &profile, created, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
