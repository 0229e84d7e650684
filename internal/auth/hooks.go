package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
)

type guestCartMerger interface {
	MergeGuest(ctx context.Context, sessionID string, userID uuid.UUID) (*cart.Cart, error)
}

type guestCartMirror interface {
	TransferOnLogin(ctx context.Context, sessionID string, userID uuid.UUID)
}

// CartHandoff merges the guest cart into the user's cart, then moves the
// guest's abandoned-cart row over. The merge runs first so the user's next
// mirror write carries the combined items.
func CartHandoff(carts guestCartMerger, mirror guestCartMirror) LoginHook {
	return func(ctx context.Context, guestSessionID string, userID uuid.UUID) error {
		if _, err := carts.MergeGuest(ctx, guestSessionID, userID); err != nil {
			return err
		}
		if mirror != nil {
			mirror.TransferOnLogin(ctx, guestSessionID, userID)
		}
		return nil
	}
}
