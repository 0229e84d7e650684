package venues

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/products"
	"github.com/lastcall-app/lastcall-backend/pkg/db/dbtest"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func seedVenue(t *testing.T, conn *gorm.DB, slug, name, city string) models.Venue {
	t.Helper()
	venue := models.Venue{Slug: slug, Name: name, Address: "1 Main St", City: city, Timezone: "UTC", IsActive: true}
	require.NoError(t, conn.Create(&venue).Error)
	return venue
}

func TestListSearchAndPaging(t *testing.T) {
	svc, conn := newTestService(t)
	seedVenue(t, conn, "velvet", "The Velvet Room", "Austin")
	seedVenue(t, conn, "neon", "Neon Tiger", "Austin")
	seedVenue(t, conn, "harbor", "Harbor Lounge", "Seattle")
	closed := seedVenue(t, conn, "closed", "Closed Bar", "Austin")
	require.NoError(t, conn.Model(&closed).Update("is_active", false).Error)

	page, err := svc.List(context.Background(), "austin", pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.List(context.Background(), "austin", pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)
	assert.NotEqual(t, page.Items[0].ID, next.Items[0].ID)

	_, err = svc.List(context.Background(), "", pagination.Params{Cursor: "%%%"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMenuGroupsByCategory(t *testing.T) {
	svc, conn := newTestService(t)
	venue := seedVenue(t, conn, "velvet", "The Velvet Room", "Austin")
	cocktails := models.ProductCategory{VenueID: venue.ID, Name: "Cocktails", SortOrder: 1}
	bites := models.ProductCategory{VenueID: venue.ID, Name: "Bites", SortOrder: 2}
	require.NoError(t, conn.Create(&cocktails).Error)
	require.NoError(t, conn.Create(&bites).Error)

	for _, p := range []models.Product{
		{VenueID: venue.ID, CategoryID: &cocktails.ID, Name: "Old Fashioned", Kind: enums.ProductKindDrink, Price: decimal.RequireFromString("16"), IsAvailable: true},
		{VenueID: venue.ID, CategoryID: &bites.ID, Name: "Fries", Kind: enums.ProductKindFood, Price: decimal.RequireFromString("8"), IsAvailable: true},
		{VenueID: venue.ID, Name: "Water", Kind: enums.ProductKindDrink, Price: decimal.Zero, IsAvailable: true},
	} {
		p := p
		require.NoError(t, conn.Create(&p).Error)
	}

	menu, err := svc.Menu(context.Background(), venue.ID)
	require.NoError(t, err)
	require.Len(t, menu.Categories, 3)
	assert.Equal(t, "Cocktails", menu.Categories[0].Name)
	assert.Equal(t, "Bites", menu.Categories[1].Name)
	assert.Equal(t, "Other", menu.Categories[2].Name)
	assert.Equal(t, "Water", menu.Categories[2].Products[0].Name)
}

func TestGetUnknownVenue(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
