package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
)

type OTPRepository struct {
	db *gorm.DB
}

func NewOTPRepository(conn *gorm.DB) *OTPRepository {
	return &OTPRepository{db: conn}
}

func (r *OTPRepository) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// InvalidateOpenTx consumes every unused code for email so only the newest
// one can be verified.
func (r *OTPRepository) InvalidateOpenTx(tx *gorm.DB, email string, at time.Time) error {
	return tx.Model(&models.OTPCode{}).
		Where("email = ? AND consumed_at IS NULL", email).
		Update("consumed_at", at).Error
}

func (r *OTPRepository) CreateTx(tx *gorm.DB, code *models.OTPCode) error {
	return tx.Create(code).Error
}

// LatestActiveTx returns the newest unconsumed, unexpired code, locked, or
// nil when there is none.
func (r *OTPRepository) LatestActiveTx(tx *gorm.DB, email string, now time.Time) (*models.OTPCode, error) {
	var code models.OTPCode
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ? AND consumed_at IS NULL AND expires_at > ?", email, now).
		Order("created_at DESC").
		Take(&code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *OTPRepository) IncrementAttemptsTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.OTPCode{}).Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}

func (r *OTPRepository) ConsumeTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&models.OTPCode{}).Where("id = ?", id).Update("consumed_at", at).Error
}

// DeleteExpired removes codes that expired before cutoff.
func (r *OTPRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&models.OTPCode{})
	return res.RowsAffected, res.Error
}
