package sobriety

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// WithTx runs fn inside a transaction on the repository's connection.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *Repository) FindProfile(ctx context.Context, userID uuid.UUID) (*models.BiometricProfile, error) {
	var profile models.BiometricProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *Repository) SaveProfile(ctx context.Context, profile *models.BiometricProfile) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight_kg", "height_cm", "sex", "consented_at", "updated_at"}),
	}).Create(profile).Error
}

// FindActiveTx returns the user's active session, locked, or nil.
func (r *Repository) FindActiveTx(tx *gorm.DB, userID uuid.UUID) (*models.DrinkingSession, error) {
	var session models.DrinkingSession
	err := tx.Where("user_id = ? AND status = ?", userID, enums.SessionStatusActive).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("started_at DESC").
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) FindActive(ctx context.Context, userID uuid.UUID) (*models.DrinkingSession, error) {
	return r.FindActiveTx(r.db.WithContext(ctx), userID)
}

// FindLastEndedTx returns the user's most recently ended session that had
// at least one drink, or nil.
func (r *Repository) FindLastEndedTx(tx *gorm.DB, userID uuid.UUID) (*models.DrinkingSession, error) {
	var session models.DrinkingSession
	err := tx.Where("user_id = ? AND status = ? AND first_drink_at IS NOT NULL", userID, enums.SessionStatusEnded).
		Order("ended_at DESC").
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) CreateSessionTx(tx *gorm.DB, session *models.DrinkingSession) error {
	return tx.Create(session).Error
}

func (r *Repository) InsertDrinksTx(tx *gorm.DB, drinks []models.DrinkRecord) error {
	if len(drinks) == 0 {
		return nil
	}
	return tx.Create(&drinks).Error
}

func (r *Repository) InsertReadingTx(tx *gorm.DB, reading *models.BiometricReading) error {
	return tx.Create(reading).Error
}

// SaveSessionTx writes the mutable session columns.
func (r *Repository) SaveSessionTx(tx *gorm.DB, session *models.DrinkingSession) error {
	return tx.Model(session).
		Select("status", "drink_count", "total_alcohol_ml", "estimated_bac", "peak_bac", "first_drink_at", "last_drink_at", "ended_at", "end_reason", "updated_at").
		Updates(session).Error
}

func (r *Repository) HasAlertTx(tx *gorm.DB, sessionID uuid.UUID, severity enums.AlertSeverity, openOnly bool) (bool, error) {
	var n int64
	q := tx.Model(&models.SobrietyAlert{}).Where("session_id = ? AND severity = ?", sessionID, severity)
	if openOnly {
		q = q.Where("acknowledged_at IS NULL")
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *Repository) InsertAlertTx(tx *gorm.DB, alert *models.SobrietyAlert) error {
	return tx.Create(alert).Error
}

func (r *Repository) ListOpenAlerts(ctx context.Context, sessionID uuid.UUID) ([]models.SobrietyAlert, error) {
	var alerts []models.SobrietyAlert
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND acknowledged_at IS NULL", sessionID).
		Order("created_at DESC").Order("id DESC").
		Find(&alerts).Error
	return alerts, err
}

// AcknowledgeAlert stamps the alert when it belongs to one of the user's
// sessions. Returns gorm.ErrRecordNotFound otherwise.
func (r *Repository) AcknowledgeAlert(ctx context.Context, userID, alertID uuid.UUID, at time.Time) error {
	owned := r.db.Model(&models.DrinkingSession{}).Select("id").Where("user_id = ?", userID)
	res := r.db.WithContext(ctx).Model(&models.SobrietyAlert{}).
		Where("id = ? AND session_id IN (?)", alertID, owned).
		Where("acknowledged_at IS NULL").
		Update("acknowledged_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.SobrietyAlert{}).
			Where("id = ? AND session_id IN (?)", alertID, owned).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *Repository) ListDrinks(ctx context.Context, sessionID uuid.UUID) ([]models.DrinkRecord, error) {
	var drinks []models.DrinkRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("consumed_at ASC").Order("id ASC").
		Find(&drinks).Error
	return drinks, err
}

// ListActive returns every active session, oldest first.
func (r *Repository) ListActive(ctx context.Context, limit int) ([]models.DrinkingSession, error) {
	var sessions []models.DrinkingSession
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.SessionStatusActive).
		Order("started_at ASC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// EndIfActiveTx ends the session unless another writer already did.
func (r *Repository) EndIfActiveTx(tx *gorm.DB, sessionID uuid.UUID, reason enums.SessionEndReason, bac float64, at time.Time) (bool, error) {
	res := tx.Model(&models.DrinkingSession{}).
		Where("id = ? AND status = ?", sessionID, enums.SessionStatusActive).
		Updates(map[string]any{
			"status":        enums.SessionStatusEnded,
			"end_reason":    reason,
			"ended_at":      at,
			"estimated_bac": bac,
		})
	return res.RowsAffected > 0, res.Error
}
