package migrate

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
)

// DefaultLoyaltyTiers mirrors the rows inserted by the loyalty migration.
func DefaultLoyaltyTiers() []models.LoyaltyTier {
	return []models.LoyaltyTier{
		{Name: "Bronze", MinPoints: 0, Multiplier: decimal.RequireFromString("1.00"), Perks: []string{"Member pricing"}},
		{Name: "Silver", MinPoints: 500, Multiplier: decimal.RequireFromString("1.25"), Perks: []string{"Member pricing", "Priority pickup"}},
		{Name: "Gold", MinPoints: 1500, Multiplier: decimal.RequireFromString("1.50"), Perks: []string{"Member pricing", "Priority pickup", "Free birthday drink"}},
		{Name: "Platinum", MinPoints: 5000, Multiplier: decimal.RequireFromString("2.00"), Perks: []string{"Member pricing", "Priority pickup", "Free birthday drink", "Skip the line"}},
	}
}

// SeedLoyaltyTiers inserts the default tiers, leaving existing names alone.
func SeedLoyaltyTiers(ctx context.Context, conn *gorm.DB) error {
	tiers := DefaultLoyaltyTiers()
	return conn.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&tiers).Error
}
