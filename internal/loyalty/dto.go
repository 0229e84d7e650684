package loyalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type TierDTO struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	MinPoints  int             `json:"min_points"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Perks      []string        `json:"perks"`
}

func tierDTO(t models.LoyaltyTier) TierDTO {
	perks := t.Perks
	if perks == nil {
		perks = []string{}
	}
	return TierDTO{ID: t.ID, Name: t.Name, MinPoints: t.MinPoints, Multiplier: t.Multiplier, Perks: perks}
}

type SummaryDTO struct {
	PointsBalance  int      `json:"points_balance"`
	LifetimePoints int      `json:"lifetime_points"`
	Tier           *TierDTO `json:"tier,omitempty"`
	NextTier       *TierDTO `json:"next_tier,omitempty"`
	PointsToNext   int      `json:"points_to_next"`
}

type TransactionDTO struct {
	ID           uuid.UUID                   `json:"id"`
	Type         enums.PointsTransactionType `json:"type"`
	Points       int                         `json:"points"`
	BalanceAfter int                         `json:"balance_after"`
	OrderID      *uuid.UUID                  `json:"order_id,omitempty"`
	VenueID      *uuid.UUID                  `json:"venue_id,omitempty"`
	Description  string                      `json:"description"`
	CreatedAt    time.Time                   `json:"created_at"`
}

func transactionDTO(t models.PointsTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           t.ID,
		Type:         t.Type,
		Points:       t.Points,
		BalanceAfter: t.BalanceAfter,
		OrderID:      t.OrderID,
		VenueID:      t.VenueID,
		Description:  t.Description,
		CreatedAt:    t.CreatedAt,
	}
}

type CheckInInput struct {
	VenueID uuid.UUID `json:"venue_id" validate:"required"`
}

type RedeemInput struct {
	Points      int    `json:"points" validate:"required,min=1"`
	Description string `json:"description" validate:"omitempty,max=200"`
}

// AwardResult reports the points credited for an order. Already is set when
// the order had been awarded before.
type AwardResult struct {
	Points  int
	Already bool
}
