package abandonedcart

import (
	"context"
	"strings"

	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
)

type optOutStore interface {
	OptOut(ctx context.Context, token string) (bool, error)
}

// OptOutService stops reminders for the cart behind an emailed token.
type OptOutService struct {
	store optOutStore
}

func NewOptOutService(store optOutStore) *OptOutService {
	return &OptOutService{store: store}
}

func (s *OptOutService) OptOut(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	found, err := s.store.OptOut(ctx, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "opt out")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "unknown opt-out link")
	}
	return nil
}
