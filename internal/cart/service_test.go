package cart

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

type stubProducts map[uuid.UUID]models.Product

func (s stubProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

type stubProfiles map[uuid.UUID]models.Profile

func (s stubProfiles) FindByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	p, ok := s[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []Identity
	last  Cart
}

func (o *recordingObserver) CartChanged(id Identity, c Cart) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, id)
	o.last = c
}

func newTestCartService(t *testing.T, products stubProducts, profiles stubProfiles) (Service, *recordingObserver) {
	t.Helper()
	observer := &recordingObserver{}
	svc, err := NewService(ServiceParams{
		Store:    NewStore(newMemoryRedis(), time.Hour, nil),
		Products: products,
		Profiles: profiles,
		Observer: observer,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	return svc, observer
}

func product(name, price string, available bool) models.Product {
	return models.Product{ID: uuid.New(), VenueID: testVenue, Name: name, Kind: enums.ProductKindDrink, Price: decimal.RequireFromString(price), IsAvailable: available}
}

func TestServiceAddItemNotifiesObserver(t *testing.T) {
	p := product("Old Fashioned", "16", true)
	svc, observer := newTestCartService(t, stubProducts{p.ID: p}, nil)
	id := SessionIdentity("guest-1")

	_, err := svc.AddItem(context.Background(), id, p.ID)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), id, p.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, c.ItemCount)
	assert.Len(t, observer.calls, 2)
	assert.Equal(t, 2, observer.last.ItemCount)
}

func TestServiceAddItemErrors(t *testing.T) {
	off := product("Sold Out", "10", false)
	svc, observer := newTestCartService(t, stubProducts{off.ID: off}, nil)
	id := SessionIdentity("guest-1")

	_, err := svc.AddItem(context.Background(), id, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AddItem(context.Background(), id, off.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = svc.RemoveItem(context.Background(), id, off.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(context.Background(), Identity{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, observer.calls)
}

func TestServiceFillsContactFromProfile(t *testing.T) {
	p := product("IPA", "7", true)
	userID := uuid.New()
	name := "Sam"
	svc, _ := newTestCartService(t, stubProducts{p.ID: p}, stubProfiles{userID: {UserID: userID, Email: "sam@example.com", FullName: &name}})

	c, err := svc.AddItem(context.Background(), UserIdentity(userID), p.ID)
	require.NoError(t, err)
	assert.Equal(t, Contact{Email: "sam@example.com", Name: "Sam"}, c.Contact)
}

func TestServiceMergeGuest(t *testing.T) {
	p := product("Margarita", "12", true)
	userID := uuid.New()
	svc, _ := newTestCartService(t, stubProducts{p.ID: p}, nil)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, SessionIdentity("guest-1"), p.ID)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, UserIdentity(userID), p.ID)
	require.NoError(t, err)

	merged, err := svc.MergeGuest(ctx, "guest-1", userID)
	require.NoError(t, err)
	assert.Equal(t, 2, merged.ItemCount)

	guest, err := svc.Get(ctx, SessionIdentity("guest-1"))
	require.NoError(t, err)
	assert.True(t, guest.IsEmpty())
}

// deleteHookStore runs beforeDelete ahead of every Delete.
type deleteHookStore struct {
	*Store
	beforeDelete func()
}

func (d *deleteHookStore) Delete(ctx context.Context, id Identity) error {
	if d.beforeDelete != nil {
		d.beforeDelete()
	}
	return d.Store.Delete(ctx, id)
}

func TestServiceMergeGuestHoldsGuestCartUntilDeleted(t *testing.T) {
	p := product("Negroni", "14", true)
	userID := uuid.New()
	guestID := SessionIdentity("guest-1")
	store := &deleteHookStore{Store: NewStore(newMemoryRedis(), time.Hour, nil)}
	svc, err := NewService(ServiceParams{Store: store, Products: stubProducts{p.ID: p}, Logger: logger.Nop()})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.AddItem(ctx, guestID, p.ID)
	require.NoError(t, err)

	added := make(chan error, 1)
	store.beforeDelete = func() {
		store.beforeDelete = nil
		go func() {
			_, err := svc.AddItem(ctx, guestID, p.ID)
			added <- err
		}()
		select {
		case <-added:
			t.Error("guest add completed while the merge still held the guest cart")
		case <-time.After(50 * time.Millisecond):
		}
	}

	merged, err := svc.MergeGuest(ctx, "guest-1", userID)
	require.NoError(t, err)
	assert.Equal(t, 1, merged.ItemCount)

	require.NoError(t, <-added)
	guest, err := svc.Get(ctx, guestID)
	require.NoError(t, err)
	assert.Equal(t, 1, guest.ItemCount, "the add that waited on the merge is kept")
}

func TestServiceSetContactNormalizes(t *testing.T) {
	svc, _ := newTestCartService(t, stubProducts{}, nil)
	c, err := svc.SetContact(context.Background(), SessionIdentity("guest-1"), Contact{Email: " Guest@Example.COM ", Name: " Sam "})
	require.NoError(t, err)
	assert.Equal(t, "guest@example.com", c.Contact.Email)
	assert.Equal(t, "Sam", c.Contact.Name)
}
