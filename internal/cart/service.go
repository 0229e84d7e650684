package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

type productLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type profileLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

type cartStore interface {
	Load(ctx context.Context, id Identity) (*Cart, error)
	Save(ctx context.Context, id Identity, c *Cart) error
	Delete(ctx context.Context, id Identity) error
}

// Observer hears about every persisted cart change.
type Observer interface {
	CartChanged(id Identity, c Cart)
}

type Service interface {
	Get(ctx context.Context, id Identity) (*Cart, error)
	AddItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error)
	RemoveItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error)
	DeleteItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error)
	Clear(ctx context.Context, id Identity) (*Cart, error)
	SetContact(ctx context.Context, id Identity, contact Contact) (*Cart, error)
	MergeGuest(ctx context.Context, sessionID string, userID uuid.UUID) (*Cart, error)
}

const lockStripes = 64

type service struct {
	store    cartStore
	products productLookup
	profiles profileLookup
	observer Observer
	logg     *logger.Logger
	locks    [lockStripes]sync.Mutex
}

type ServiceParams struct {
	Store    cartStore
	Products productLookup
	Profiles profileLookup
	Observer Observer
	Logger   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		store:    params.Store,
		products: params.Products,
		profiles: params.Profiles,
		observer: params.Observer,
		logg:     params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, id Identity) (*Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart identity")
	}
	c, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return c, nil
}

func (s *service) AddItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsAvailable {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product is not available")
	}
	ref := RefFromProduct(*product)
	return s.mutate(ctx, id, func(c *Cart) error {
		if err := c.AddItem(ref); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "start a new cart to order from this venue")
		}
		return nil
	})
}

func (s *service) RemoveItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		return itemError(c.RemoveItem(productID))
	})
}

func (s *service) DeleteItem(ctx context.Context, id Identity, productID uuid.UUID) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		return itemError(c.DeleteItem(productID))
	})
}

func (s *service) Clear(ctx context.Context, id Identity) (*Cart, error) {
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Clear()
		return nil
	})
}

func (s *service) SetContact(ctx context.Context, id Identity, contact Contact) (*Cart, error) {
	contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
	contact.Name = strings.TrimSpace(contact.Name)
	return s.mutate(ctx, id, func(c *Cart) error {
		c.Contact = contact
		return nil
	})
}

// MergeGuest restores a guest cart into the user's cart, summing
// quantities, and deletes the guest copy. Both carts stay locked until the
// guest copy is gone.
func (s *service) MergeGuest(ctx context.Context, sessionID string, userID uuid.UUID) (*Cart, error) {
	guestID := SessionIdentity(sessionID)
	if sessionID == "" {
		return s.Get(ctx, UserIdentity(userID))
	}
	userCart := UserIdentity(userID)
	if err := userCart.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart identity")
	}
	unlock := s.lockPair(guestID, userCart)
	defer unlock()

	guest, err := s.store.Load(ctx, guestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}
	merged, err := s.apply(ctx, userCart, func(c *Cart) error {
		if dropped := c.Merge(guest); dropped > 0 {
			s.logg.Warn(s.logg.WithField(ctx, "dropped_items", dropped), "guest cart lines from another venue dropped on merge")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, guestID); err != nil {
		s.logg.Error(s.logg.WithCartIdentity(ctx, guestID.String()), "delete merged guest cart", err)
	}
	return merged, nil
}

func (s *service) mutate(ctx context.Context, id Identity, fn func(*Cart) error) (*Cart, error) {
	if err := id.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart identity")
	}
	unlock := s.lock(id)
	defer unlock()
	return s.apply(ctx, id, fn)
}

// apply runs fn against the stored cart. The caller holds the cart's lock.
func (s *service) apply(ctx context.Context, id Identity, fn func(*Cart) error) (*Cart, error) {
	c, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	s.fillContact(ctx, id, c)
	if err := s.store.Save(ctx, id, c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	if s.observer != nil {
		s.observer.CartChanged(id, *c)
	}
	return c, nil
}

// fillContact defaults a signed-in shopper's contact to their profile.
func (s *service) fillContact(ctx context.Context, id Identity, c *Cart) {
	if !id.IsUser() || c.Contact.Email != "" || s.profiles == nil {
		return
	}
	profile, err := s.profiles.FindByID(ctx, *id.UserID)
	if err != nil {
		return
	}
	c.Contact.Email = profile.Email
	if profile.FullName != nil {
		c.Contact.Name = *profile.FullName
	}
}

func (s *service) stripe(id Identity) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id.String()))
	return h.Sum32() % lockStripes
}

func (s *service) lock(id Identity) func() {
	m := &s.locks[s.stripe(id)]
	m.Lock()
	return m.Unlock
}

// lockPair takes both stripes in index order so two merges cannot deadlock.
func (s *service) lockPair(a, b Identity) func() {
	i, j := s.stripe(a), s.stripe(b)
	if i == j {
		return s.lock(a)
	}
	if i > j {
		i, j = j, i
	}
	s.locks[i].Lock()
	s.locks[j].Lock()
	return func() {
		s.locks[j].Unlock()
		s.locks[i].Unlock()
	}
}

func itemError(err error) error {
	if errors.Is(err, ErrItemNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
	}
	return err
}
