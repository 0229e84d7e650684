package abandonedcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/security"
)

const optOutTokenBytes = 24

// Snapshot is the mirrored state of a non-empty cart.
type Snapshot struct {
	VenueID      *uuid.UUID
	Items        models.CartSnapshot
	Total        decimal.Decimal
	ItemCount    int
	ContactEmail string
	ContactName  string
}

// SnapshotFrom copies everything the mirror needs out of c.
func SnapshotFrom(c cart.Cart) Snapshot {
	snap := Snapshot{
		Items:        c.Snapshot(),
		Total:        c.Total,
		ItemCount:    c.ItemCount,
		ContactEmail: c.Contact.Email,
		ContactName:  c.Contact.Name,
	}
	if c.VenueID != nil {
		venueID := *c.VenueID
		snap.VenueID = &venueID
	}
	return snap
}

// Repository persists abandoned_carts. Only non-converted rows are "open";
// each identity has at most one.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func identityScope(id cart.Identity) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("converted_to_order = ?", false)
		if id.UserID != nil {
			return q.Where("user_id = ?", *id.UserID)
		}
		return q.Where("session_id = ?", id.SessionID)
	}
}

func findOpen(tx *gorm.DB, id cart.Identity) (*models.AbandonedCart, error) {
	var row models.AbandonedCart
	err := tx.Scopes(identityScope(id)).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindOpen returns the identity's open row or nil.
func (r *Repository) FindOpen(ctx context.Context, id cart.Identity) (*models.AbandonedCart, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return findOpen(r.db.WithContext(ctx), id)
}

// Upsert writes snap into the identity's open row, creating it when absent.
func (r *Repository) Upsert(ctx context.Context, id cart.Identity, snap Snapshot, at time.Time) error {
	if err := id.Validate(); err != nil {
		return err
	}
	err := r.upsertOnce(ctx, id, snap, at)
	if db.IsUniqueViolation(err, "") {
		// A concurrent writer created the row first; the second pass updates it.
		err = r.upsertOnce(ctx, id, snap, at)
	}
	return err
}

func (r *Repository) upsertOnce(ctx context.Context, id cart.Identity, snap Snapshot, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findOpen(tx, id)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.VenueID = snap.VenueID
			existing.Snapshot = snap.Items
			existing.Total = snap.Total
			existing.ItemCount = snap.ItemCount
			existing.ContactEmail = optional(snap.ContactEmail)
			existing.ContactName = optional(snap.ContactName)
			existing.LastActivityAt = at
			return tx.Model(existing).
				Select("venue_id", "snapshot", "total", "item_count", "contact_email", "contact_name", "last_activity_at").
				Updates(existing).Error
		}

		token, err := security.URLToken(optOutTokenBytes)
		if err != nil {
			return fmt.Errorf("generate opt-out token: %w", err)
		}
		row := models.AbandonedCart{
			UserID:         id.UserID,
			VenueID:        snap.VenueID,
			Snapshot:       snap.Items,
			Total:          snap.Total,
			ItemCount:      snap.ItemCount,
			ContactEmail:   optional(snap.ContactEmail),
			ContactName:    optional(snap.ContactName),
			OptOutToken:    token,
			LastActivityAt: at,
		}
		if !id.IsUser() {
			sessionID := id.SessionID
			row.SessionID = &sessionID
		}
		return tx.Create(&row).Error
	})
}

// DeleteOpen removes the identity's open row, if any.
func (r *Repository) DeleteOpen(ctx context.Context, id cart.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Scopes(identityScope(id)).Delete(&models.AbandonedCart{}).Error
}

// TransferOnLogin rekeys the guest row to the user when the user has no open
// row. Otherwise the guest row is dropped and the user row left alone.
func (r *Repository) TransferOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) error {
	if sessionID == "" || userID == uuid.Nil {
		return fmt.Errorf("session id and user id required")
	}
	guestID := cart.SessionIdentity(sessionID)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		guest, err := findOpen(tx, guestID)
		if err != nil || guest == nil {
			return err
		}
		user, err := findOpen(tx, cart.UserIdentity(userID))
		if err != nil {
			return err
		}
		if user != nil {
			return tx.Delete(&models.AbandonedCart{}, "id = ?", guest.ID).Error
		}
		return tx.Model(&models.AbandonedCart{}).
			Where("id = ?", guest.ID).
			Updates(map[string]any{"user_id": userID, "session_id": nil}).Error
	})
}

// MarkConvertedTx flags the identity's open row as converted into orderID
// and returns the row id, or nil when the identity had no open row.
func (r *Repository) MarkConvertedTx(tx *gorm.DB, id cart.Identity, orderID uuid.UUID) (*uuid.UUID, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	row, err := findOpen(tx, id)
	if err != nil || row == nil {
		return nil, err
	}
	err = tx.Model(&models.AbandonedCart{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{"converted_to_order": true, "order_id": orderID}).Error
	if err != nil {
		return nil, err
	}
	return &row.ID, nil
}

// ListDue returns rows eligible for stage whose last activity is at or before
// cutoff. Opted-out, converted and contactless rows never match.
func (r *Repository) ListDue(ctx context.Context, stage enums.ReminderStage, cutoff time.Time, limit int) ([]models.AbandonedCart, error) {
	q := r.db.WithContext(ctx).
		Where("opted_out = ? AND converted_to_order = ?", false, false).
		Where("contact_email IS NOT NULL AND contact_email <> ''").
		Where("item_count > 0").
		Where("last_activity_at <= ?", cutoff)
	switch stage {
	case enums.ReminderFirst:
		q = q.Where("first_reminder_sent_at IS NULL")
	case enums.ReminderSecond:
		q = q.Where("first_reminder_sent_at IS NOT NULL AND second_reminder_sent_at IS NULL")
	default:
		return nil, fmt.Errorf("unknown reminder stage %q", stage)
	}
	var rows []models.AbandonedCart
	err := q.Order("last_activity_at ASC").Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Stamp records that the stage's send was attempted.
func (r *Repository) Stamp(ctx context.Context, id uuid.UUID, stage enums.ReminderStage, at time.Time) error {
	column := "first_reminder_sent_at"
	if stage == enums.ReminderSecond {
		column = "second_reminder_sent_at"
	}
	return r.db.WithContext(ctx).Model(&models.AbandonedCart{}).
		Where("id = ?", id).
		Update(column, at).Error
}

// DeleteOlderThan purges rows whose last activity predates cutoff.
func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("last_activity_at < ?", cutoff).Delete(&models.AbandonedCart{})
	return res.RowsAffected, res.Error
}

// OptOut flags the token's row. Repeated calls succeed; found is false for
// unknown tokens.
func (r *Repository) OptOut(ctx context.Context, token string) (found bool, err error) {
	if token == "" {
		return false, nil
	}
	var row models.AbandonedCart
	err = r.db.WithContext(ctx).Where("opt_out_token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if row.OptedOut {
		return true, nil
	}
	err = r.db.WithContext(ctx).Model(&models.AbandonedCart{}).
		Where("id = ?", row.ID).
		Update("opted_out", true).Error
	return err == nil, err
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
