package auth

import (
	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// Actor is the authenticated caller as seen by services.
type Actor struct {
	UserID      uuid.UUID
	Email       string
	Role        enums.UserRole
	VenueID     *uuid.UUID
	AgeVerified bool
}

// CanManageVenue reports whether the actor may run the backoffice for
// venueID. Admins manage every venue; staff only their own.
func (a Actor) CanManageVenue(venueID uuid.UUID) bool {
	switch a.Role {
	case enums.RoleAdmin:
		return true
	case enums.RoleStaff:
		return a.VenueID != nil && *a.VenueID == venueID
	default:
		return false
	}
}

// Actor projects verified token claims onto the caller used by services.
func (c AccessTokenClaims) Actor() Actor {
	return Actor{
		UserID:      c.UserID,
		Email:       c.Email,
		Role:        c.Role,
		VenueID:     c.VenueID,
		AgeVerified: c.AgeVerified,
	}
}
