package profiles

import (
	"time"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
)

type ProfileDTO struct {
	UserID        uuid.UUID      `json:"user_id"`
	Email         string         `json:"email"`
	FullName      *string        `json:"full_name,omitempty"`
	Phone         *string        `json:"phone,omitempty"`
	DateOfBirth   *string        `json:"date_of_birth,omitempty"`
	AgeVerified   bool           `json:"age_verified"`
	AgeVerifiedAt *time.Time     `json:"age_verified_at,omitempty"`
	Role          enums.UserRole `json:"role"`
	VenueID       *uuid.UUID     `json:"venue_id,omitempty"`
}

const dateLayout = "2006-01-02"

func FromModel(p models.Profile) ProfileDTO {
	dto := ProfileDTO{
		UserID:        p.UserID,
		Email:         p.Email,
		FullName:      p.FullName,
		Phone:         p.Phone,
		AgeVerified:   p.AgeVerifiedAt != nil,
		AgeVerifiedAt: p.AgeVerifiedAt,
		Role:          p.Role,
		VenueID:       p.VenueID,
	}
	if p.DateOfBirth != nil {
		dob := p.DateOfBirth.Format(dateLayout)
		dto.DateOfBirth = &dob
	}
	return dto
}

// UpdateInput leaves nil fields untouched.
type UpdateInput struct {
	FullName *string
	Phone    *string
}
