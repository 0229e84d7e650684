package loyalty

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

const (
	OrderAwardConstraint = "ux_points_transactions_order_type"
	CheckInConstraint    = "ux_check_ins_daily"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// Tiers returns every tier ordered by threshold.
func (r *Repository) Tiers(ctx context.Context) ([]models.LoyaltyTier, error) {
	var tiers []models.LoyaltyTier
	err := r.db.WithContext(ctx).Order("min_points ASC").Find(&tiers).Error
	return tiers, err
}

func (r *Repository) FindAccount(ctx context.Context, userID uuid.UUID) (*models.UserLoyalty, error) {
	var account models.UserLoyalty
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserLoyalty{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// LockAccountTx creates the account on first use and returns it locked.
func (r *Repository) LockAccountTx(tx *gorm.DB, userID uuid.UUID) (*models.UserLoyalty, error) {
	err := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&models.UserLoyalty{UserID: userID}).Error
	if err != nil {
		return nil, err
	}
	var account models.UserLoyalty
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).Take(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) SaveAccountTx(tx *gorm.DB, account *models.UserLoyalty) error {
	return tx.Model(account).Select("points_balance", "lifetime_points", "tier_id", "updated_at").Updates(account).Error
}

func (r *Repository) InsertTransactionTx(tx *gorm.DB, entry *models.PointsTransaction) error {
	return tx.Create(entry).Error
}

func (r *Repository) HasOrderAwardTx(tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&models.PointsTransaction{}).
		Where("order_id = ? AND type = ?", orderID, enums.PointsEarnOrder).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) HasCheckInTx(tx *gorm.DB, userID, venueID uuid.UUID, date string) (bool, error) {
	var count int64
	err := tx.Model(&models.CheckIn{}).
		Where("user_id = ? AND venue_id = ? AND check_in_date = ?", userID, venueID, date).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) InsertCheckInTx(tx *gorm.DB, checkIn *models.CheckIn) error {
	return tx.Create(checkIn).Error
}

func (r *Repository) ListTransactions(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PointsTransaction, error) {
	var rows []models.PointsTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Scope(cursor, limit)).
		Find(&rows).Error
	return rows, err
}
