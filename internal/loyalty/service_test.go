package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db/dbtest"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/migrate"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

type stubVenues map[uuid.UUID]models.Venue

func (s stubVenues) FindByID(_ context.Context, id uuid.UUID) (*models.Venue, error) {
	v, ok := s[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

type fixture struct {
	svc    *Service
	clock  *clock.Fake
	venue  models.Venue
	closed models.Venue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	require.NoError(t, migrate.SeedLoyaltyTiers(context.Background(), conn))
	f := &fixture{
		clock:  clock.NewFake(time.Date(2026, 3, 6, 21, 0, 0, 0, time.UTC)),
		venue:  models.Venue{ID: uuid.New(), Name: "The Dive", IsActive: true},
		closed: models.Venue{ID: uuid.New(), Name: "Shuttered", IsActive: false},
	}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Venues: stubVenues{f.venue.ID: f.venue, f.closed.ID: f.closed},
		Config: config.LoyaltyConfig{PointsPerDollar: 10, CheckInPoints: 25},
		Clock:  f.clock,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) award(t *testing.T, userID uuid.UUID, total string) AwardResult {
	t.Helper()
	res, err := f.svc.AwardOrder(context.Background(), userID, uuid.New(), f.venue.ID, "LC-TEST", decimal.RequireFromString(total))
	require.NoError(t, err)
	return res
}

func TestSummaryForNewMember(t *testing.T) {
	f := newFixture(t)
	summary, err := f.svc.Summary(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, summary.PointsBalance)
	require.NotNil(t, summary.Tier)
	assert.Equal(t, "Bronze", summary.Tier.Name)
	require.NotNil(t, summary.NextTier)
	assert.Equal(t, "Silver", summary.NextTier.Name)
	assert.Equal(t, 500, summary.PointsToNext)
}

func TestAwardOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID, orderID := uuid.New(), uuid.New()
	total := decimal.RequireFromString("23.47")

	first, err := f.svc.AwardOrder(ctx, userID, orderID, f.venue.ID, "LC-AAAA2222", total)
	require.NoError(t, err)
	assert.Equal(t, AwardResult{Points: 234}, first)

	again, err := f.svc.AwardOrder(ctx, userID, orderID, f.venue.ID, "LC-AAAA2222", total)
	require.NoError(t, err)
	assert.True(t, again.Already)

	summary, err := f.svc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 234, summary.PointsBalance)
	assert.Equal(t, 234, summary.LifetimePoints)
	assert.Equal(t, 266, summary.PointsToNext)
}

func TestAwardOrderAppliesTierMultiplier(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	assert.Equal(t, 600, f.award(t, userID, "60").Points)
	assert.Equal(t, 125, f.award(t, userID, "10").Points)

	summary, err := f.svc.Summary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 725, summary.LifetimePoints)
	assert.Equal(t, "Silver", summary.Tier.Name)
}

func TestCheckInOncePerVenuePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	entry, err := f.svc.CheckIn(ctx, userID, CheckInInput{VenueID: f.venue.ID})
	require.NoError(t, err)
	assert.Equal(t, 25, entry.Points)
	assert.Equal(t, enums.PointsEarnCheckIn, entry.Type)

	_, err = f.svc.CheckIn(ctx, userID, CheckInInput{VenueID: f.venue.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.CheckIn(ctx, userID, CheckInInput{VenueID: f.closed.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	f.clock.Advance(3 * time.Hour)
	entry, err = f.svc.CheckIn(ctx, userID, CheckInInput{VenueID: f.venue.ID})
	require.NoError(t, err)
	assert.Equal(t, 50, entry.BalanceAfter)
}

func TestRedeemKeepsTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	f.award(t, userID, "55")

	_, err := f.svc.Redeem(ctx, userID, RedeemInput{Points: 551})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Redeem(ctx, userID, RedeemInput{Points: 0})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	entry, err := f.svc.Redeem(ctx, userID, RedeemInput{Points: 500})
	require.NoError(t, err)
	assert.Equal(t, -500, entry.Points)
	assert.Equal(t, 50, entry.BalanceAfter)
	assert.Equal(t, "Reward redemption", entry.Description)

	summary, err := f.svc.Summary(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 50, summary.PointsBalance)
	assert.Equal(t, 550, summary.LifetimePoints)
	assert.Equal(t, "Silver", summary.Tier.Name)
}

func TestTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	f.award(t, userID, "10")
	f.clock.Advance(time.Minute)
	_, err := f.svc.CheckIn(ctx, userID, CheckInInput{VenueID: f.venue.ID})
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Redeem(ctx, userID, RedeemInput{Points: 20})
	require.NoError(t, err)

	page, err := f.svc.Transactions(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, enums.PointsRedeem, page.Items[0].Type)
	assert.Equal(t, enums.PointsEarnCheckIn, page.Items[1].Type)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.Transactions(ctx, userID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, enums.PointsEarnOrder, rest.Items[0].Type)
	assert.Empty(t, rest.NextCursor)
}

func TestTierFor(t *testing.T) {
	tiers := migrate.DefaultLoyaltyTiers()
	current, next := tierFor(tiers, 1499)
	assert.Equal(t, "Silver", current.Name)
	assert.Equal(t, "Gold", next.Name)

	current, next = tierFor(tiers, 9000)
	assert.Equal(t, "Platinum", current.Name)
	assert.Nil(t, next)

	current, _ = tierFor(nil, 10)
	assert.Nil(t, current)
}
