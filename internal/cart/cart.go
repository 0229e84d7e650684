// Package cart holds the shopper's cart, mirrored to Redis per identity.
package cart

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

var (
	ErrItemNotFound  = errors.New("item not in cart")
	ErrVenueMismatch = errors.New("cart holds items from another venue")
)

// ProductRef is the product data frozen into a cart line.
type ProductRef struct {
	ID         uuid.UUID         `json:"id"`
	VenueID    uuid.UUID         `json:"venue_id"`
	Name       string            `json:"name"`
	Kind       enums.ProductKind `json:"kind"`
	Price      decimal.Decimal   `json:"price"`
	ABVPercent *decimal.Decimal  `json:"abv_percent,omitempty"`
	VolumeML   *int              `json:"volume_ml,omitempty"`
	ImageURL   *string           `json:"image_url,omitempty"`
}

func RefFromProduct(p models.Product) ProductRef {
	return ProductRef{
		ID:         p.ID,
		VenueID:    p.VenueID,
		Name:       p.Name,
		Kind:       p.Kind,
		Price:      p.Price,
		ABVPercent: p.ABVPercent,
		VolumeML:   p.VolumeML,
		ImageURL:   p.ImageURL,
	}
}

type Item struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
}

func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

// Contact is used for abandoned-cart reminders.
type Contact struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Cart keeps items in insertion order. Total and ItemCount are recomputed
// on every mutation.
type Cart struct {
	Items     []Item          `json:"items"`
	VenueID   *uuid.UUID      `json:"venue_id,omitempty"`
	Contact   Contact         `json:"contact"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"item_count"`
}

func New() *Cart {
	return &Cart{Items: []Item{}, Total: decimal.Zero}
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) indexOf(productID uuid.UUID) int {
	for i, item := range c.Items {
		if item.Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem increments an existing line or appends a new one with quantity 1.
func (c *Cart) AddItem(product ProductRef) error {
	if c.VenueID != nil && *c.VenueID != product.VenueID && !c.IsEmpty() {
		return ErrVenueMismatch
	}
	if idx := c.indexOf(product.ID); idx >= 0 {
		c.Items[idx].Quantity++
		c.Items[idx].Product = product
	} else {
		c.Items = append(c.Items, Item{Product: product, Quantity: 1})
	}
	venueID := product.VenueID
	c.VenueID = &venueID
	c.recompute()
	return nil
}

// RemoveItem decrements a line, dropping it at zero.
func (c *Cart) RemoveItem(productID uuid.UUID) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items[idx].Quantity--
	if c.Items[idx].Quantity <= 0 {
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	}
	c.recompute()
	return nil
}

// DeleteItem drops a line regardless of quantity.
func (c *Cart) DeleteItem(productID uuid.UUID) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	c.recompute()
	return nil
}

// Clear empties the cart but keeps contact details.
func (c *Cart) Clear() {
	c.Items = []Item{}
	c.recompute()
}

// Merge folds other into c, summing quantities of shared products. Lines
// from a different venue than c's are dropped.
func (c *Cart) Merge(other *Cart) (dropped int) {
	if other == nil {
		return 0
	}
	for _, item := range other.Items {
		if c.VenueID != nil && !c.IsEmpty() && *c.VenueID != item.Product.VenueID {
			dropped++
			continue
		}
		if idx := c.indexOf(item.Product.ID); idx >= 0 {
			c.Items[idx].Quantity += item.Quantity
		} else {
			c.Items = append(c.Items, item)
		}
		venueID := item.Product.VenueID
		c.VenueID = &venueID
	}
	if c.Contact.Email == "" {
		c.Contact = other.Contact
	}
	c.recompute()
	return dropped
}

func (c *Cart) recompute() {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
		count += item.Quantity
	}
	c.Total = total.Round(2)
	c.ItemCount = count
	if len(c.Items) == 0 {
		c.VenueID = nil
	}
}

// HasAgeRestricted reports whether any line needs an age-verified buyer.
func (c *Cart) HasAgeRestricted() bool {
	for _, item := range c.Items {
		if item.Product.Kind.AgeRestricted() {
			return true
		}
	}
	return false
}

// HasAlcohol reports whether any line contributes to a BAC estimate.
func (c *Cart) HasAlcohol() bool {
	for _, item := range c.Items {
		if item.Product.Kind == enums.ProductKindDrink && item.Product.ABVPercent != nil && item.Product.ABVPercent.IsPositive() {
			return true
		}
	}
	return false
}

// Snapshot is the durable shape written to abandoned_carts.
func (c *Cart) Snapshot() models.CartSnapshot {
	snap := models.CartSnapshot{Version: models.CartSnapshotVersion, Items: make([]models.CartSnapshotItem, 0, len(c.Items))}
	for _, item := range c.Items {
		snap.Items = append(snap.Items, models.CartSnapshotItem{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Kind:      item.Product.Kind,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
			ImageURL:  item.Product.ImageURL,
		})
	}
	return snap
}

// Identity keys a cart: exactly one of UserID or SessionID is set.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

func UserIdentity(id uuid.UUID) Identity { return Identity{UserID: &id} }

func SessionIdentity(id string) Identity { return Identity{SessionID: id} }

func (i Identity) Valid() bool {
	return (i.UserID != nil) != (i.SessionID != "")
}

func (i Identity) IsUser() bool { return i.UserID != nil }

func (i Identity) String() string {
	if i.UserID != nil {
		return "user:" + i.UserID.String()
	}
	return "session:" + i.SessionID
}

func (i Identity) Validate() error {
	if !i.Valid() {
		return fmt.Errorf("cart identity requires exactly one of user id or session id")
	}
	return nil
}
