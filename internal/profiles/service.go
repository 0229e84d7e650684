package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
)

// MinimumAge gates alcohol and cannabis purchases.
const MinimumAge = 21

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error)
	Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*ProfileDTO, error)
	VerifyAge(ctx context.Context, userID uuid.UUID, dateOfBirth string) (*ProfileDTO, error)
}

type service struct {
	repo profileRepository
	now  func() time.Time
}

func NewService(repo profileRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	dto := FromModel(*profile)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, input UpdateInput) (*ProfileDTO, error) {
	fields := map[string]any{}
	if input.FullName != nil {
		fields["full_name"] = nullable(*input.FullName)
	}
	if input.Phone != nil {
		fields["phone"] = nullable(*input.Phone)
	}
	if err := s.repo.Update(ctx, userID, fields); err != nil {
		return nil, mapLoadError(err)
	}
	return s.Get(ctx, userID)
}

// VerifyAge records the date of birth. Users under MinimumAge are refused
// and nothing is stored.
func (s *service) VerifyAge(ctx context.Context, userID uuid.UUID, dateOfBirth string) (*ProfileDTO, error) {
	dob, err := time.Parse(dateLayout, strings.TrimSpace(dateOfBirth))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_of_birth must be YYYY-MM-DD").
			WithDetails(map[string]string{"date_of_birth": "must be YYYY-MM-DD"})
	}
	now := s.now().UTC()
	if dob.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_of_birth is in the future")
	}
	if AgeOn(dob, now) < MinimumAge {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "you must be %d or older", MinimumAge)
	}
	if err := s.repo.Update(ctx, userID, map[string]any{"date_of_birth": dob, "age_verified_at": now}); err != nil {
		return nil, mapLoadError(err)
	}
	return s.Get(ctx, userID)
}

// AgeOn returns completed years between dob and at.
func AgeOn(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	return years
}

func nullable(value string) any {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return nil
}

func mapLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "profile store")
}
