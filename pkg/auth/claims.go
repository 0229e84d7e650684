package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID      uuid.UUID
	Email       string
	Role        enums.UserRole
	VenueID     *uuid.UUID
	AgeVerified bool
	JTI         string
}

// AccessTokenClaims represents the typed JWT issued to clients. VenueID is
// only set for staff scoped to a single venue.
type AccessTokenClaims struct {
	UserID      uuid.UUID      `json:"user_id"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
	VenueID     *uuid.UUID     `json:"venue_id,omitempty"`
	AgeVerified bool           `json:"age_verified"`
	jwt.RegisteredClaims
}
