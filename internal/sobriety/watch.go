package sobriety

import (
	"context"

	"github.com/google/uuid"
)

// Watch pushes the user's status to emit immediately and then on every poll
// tick until ctx is cancelled or emit fails. Status errors are reported
// through onErr and polling continues.
func (s *Service) Watch(ctx context.Context, userID uuid.UUID, emit func(*Status) error, onErr func(error)) error {
	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	push := func() error {
		status, err := s.Status(ctx, userID)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return nil
		}
		return emit(status)
	}

	if err := push(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			if err := push(); err != nil {
				return err
			}
		}
	}
}
