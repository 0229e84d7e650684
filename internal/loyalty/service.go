// Package loyalty keeps the points ledger: order awards, daily check-ins and
// redemptions, with tiers derived from lifetime points.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

const checkInDateLayout = "2006-01-02"

type venueChecker interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Venue, error)
}

type Service struct {
	repo   *Repository
	venues venueChecker
	cfg    config.LoyaltyConfig
	clock  clock.Clock
	logg   *logger.Logger
}

type ServiceParams struct {
	Repo   *Repository
	Venues venueChecker
	Config config.LoyaltyConfig
	Clock  clock.Clock
	Logger *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if params.Venues == nil {
		return nil, fmt.Errorf("venue lookup required")
	}
	if params.Config.PointsPerDollar <= 0 {
		return nil, fmt.Errorf("points per dollar must be positive")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: params.Repo, venues: params.Venues, cfg: params.Config, clock: clk, logg: logg}, nil
}

func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error) {
	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load loyalty account")
	}
	tiers, err := s.repo.Tiers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tiers")
	}
	out := &SummaryDTO{PointsBalance: account.PointsBalance, LifetimePoints: account.LifetimePoints}
	current, next := tierFor(tiers, account.LifetimePoints)
	if current != nil {
		dto := tierDTO(*current)
		out.Tier = &dto
	}
	if next != nil {
		dto := tierDTO(*next)
		out.NextTier = &dto
		out.PointsToNext = next.MinPoints - account.LifetimePoints
	}
	return out, nil
}

func (s *Service) Transactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[TransactionDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[TransactionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListTransactions(ctx, userID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[TransactionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	built := pagination.Build(rows, params.Limit, func(t models.PointsTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	out := pagination.Page[TransactionDTO]{Items: make([]TransactionDTO, 0, len(built.Items)), NextCursor: built.NextCursor}
	for _, row := range built.Items {
		out.Items = append(out.Items, transactionDTO(row))
	}
	return out, nil
}

// AwardOrder credits floor(total × points per dollar × tier multiplier).
// A second award for the same order is a no-op.
func (s *Service) AwardOrder(ctx context.Context, userID, orderID, venueID uuid.UUID, orderNumber string, total decimal.Decimal) (AwardResult, error) {
	tiers, err := s.repo.Tiers(ctx)
	if err != nil {
		return AwardResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tiers")
	}
	var result AwardResult
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.repo.LockAccountTx(tx, userID)
		if err != nil {
			return err
		}
		already, err := s.repo.HasOrderAwardTx(tx, orderID)
		if err != nil {
			return err
		}
		if already {
			result.Already = true
			return nil
		}
		multiplier := decimal.NewFromInt(1)
		if current, _ := tierFor(tiers, account.LifetimePoints); current != nil {
			multiplier = current.Multiplier
		}
		points := int(total.Mul(decimal.NewFromInt(int64(s.cfg.PointsPerDollar))).Mul(multiplier).Floor().IntPart())
		if points <= 0 {
			return nil
		}
		orderRef, venueRef := orderID, venueID
		entry := &models.PointsTransaction{
			Type:        enums.PointsEarnOrder,
			Points:      points,
			OrderID:     &orderRef,
			VenueID:     &venueRef,
			Description: "Order " + orderNumber,
		}
		if err := s.credit(tx, tiers, account, entry); err != nil {
			return err
		}
		result.Points = points
		return nil
	})
	if db.IsUniqueViolation(err, OrderAwardConstraint) {
		return AwardResult{Already: true}, nil
	}
	if err != nil {
		return AwardResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "award order points")
	}
	return result, nil
}

// CheckIn credits the fixed check-in points once per venue per UTC day.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID, input CheckInInput) (*TransactionDTO, error) {
	venue, err := s.venues.FindByID(ctx, input.VenueID)
	if err != nil || !venue.IsActive {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load venue")
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "venue not found")
	}
	tiers, err := s.repo.Tiers(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tiers")
	}
	date := s.now().Format(checkInDateLayout)
	conflict := pkgerrors.New(pkgerrors.CodeConflict, "already checked in here today")

	var entry *models.PointsTransaction
	err = s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.repo.LockAccountTx(tx, userID)
		if err != nil {
			return err
		}
		exists, err := s.repo.HasCheckInTx(tx, userID, venue.ID, date)
		if err != nil {
			return err
		}
		if exists {
			return conflict
		}
		if err := s.repo.InsertCheckInTx(tx, &models.CheckIn{
			UserID: userID, VenueID: venue.ID, CheckInDate: date, PointsAwarded: s.cfg.CheckInPoints,
		}); err != nil {
			return err
		}
		venueRef := venue.ID
		entry = &models.PointsTransaction{
			Type:        enums.PointsEarnCheckIn,
			Points:      s.cfg.CheckInPoints,
			VenueID:     &venueRef,
			Description: "Check-in at " + venue.Name,
		}
		return s.credit(tx, tiers, account, entry)
	})
	switch {
	case errors.Is(err, conflict), db.IsUniqueViolation(err, CheckInConstraint):
		return nil, conflict
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check in")
	}
	dto := transactionDTO(*entry)
	return &dto, nil
}

// Redeem deducts points from the balance. Lifetime points and the tier are
// left alone.
func (s *Service) Redeem(ctx context.Context, userID uuid.UUID, input RedeemInput) (*TransactionDTO, error) {
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive").
			WithDetails(map[string]string{"points": "min 1"})
	}
	description := input.Description
	if description == "" {
		description = "Reward redemption"
	}
	var entry *models.PointsTransaction
	var insufficient *pkgerrors.Error
	err := s.repo.WithTx(ctx, func(tx *gorm.DB) error {
		account, err := s.repo.LockAccountTx(tx, userID)
		if err != nil {
			return err
		}
		if account.PointsBalance < input.Points {
			insufficient = pkgerrors.New(pkgerrors.CodeStateConflict, "not enough points").
				WithDetails(map[string]int{"balance": account.PointsBalance, "requested": input.Points})
			return insufficient
		}
		account.PointsBalance -= input.Points
		entry = &models.PointsTransaction{
			UserID:       userID,
			Type:         enums.PointsRedeem,
			Points:       -input.Points,
			BalanceAfter: account.PointsBalance,
			Description:  description,
			CreatedAt:    s.now(),
		}
		if err := s.repo.InsertTransactionTx(tx, entry); err != nil {
			return err
		}
		return s.repo.SaveAccountTx(tx, account)
	})
	if insufficient != nil {
		return nil, insufficient
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem points")
	}
	dto := transactionDTO(*entry)
	return &dto, nil
}

// credit applies a positive entry to the account and re-derives the tier.
func (s *Service) credit(tx *gorm.DB, tiers []models.LoyaltyTier, account *models.UserLoyalty, entry *models.PointsTransaction) error {
	account.PointsBalance += entry.Points
	account.LifetimePoints += entry.Points
	if current, _ := tierFor(tiers, account.LifetimePoints); current != nil {
		id := current.ID
		account.TierID = &id
	}
	entry.UserID = account.UserID
	entry.BalanceAfter = account.PointsBalance
	entry.CreatedAt = s.now()
	if err := s.repo.InsertTransactionTx(tx, entry); err != nil {
		return err
	}
	return s.repo.SaveAccountTx(tx, account)
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// tierFor returns the highest tier reached and the one after it. Tiers must
// be ordered by MinPoints.
func tierFor(tiers []models.LoyaltyTier, lifetime int) (current, next *models.LoyaltyTier) {
	for i := range tiers {
		if tiers[i].MinPoints <= lifetime {
			current = &tiers[i]
			continue
		}
		next = &tiers[i]
		break
	}
	return current, next
}
