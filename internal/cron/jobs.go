package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/lastcall-app/lastcall-backend/internal/abandonedcart"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

const (
	JobAbandonedCartReminders = "abandoned-cart-reminders"
	JobAbandonedCartCleanup   = "abandoned-cart-cleanup"
	JobOTPCleanup             = "otp-cleanup"
	JobSobrietyExpiry         = "sobriety-session-expiry"
	JobOutboxRetention        = "outbox-retention"

	cleanupEvery = time.Hour
)

type reminderSender interface {
	SendDue(ctx context.Context) (abandonedcart.RunResult, error)
}

type cartCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type otpCleaner interface {
	CleanupOTPs(ctx context.Context) (int64, error)
}

type sessionExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// funcJob adapts a closure to Job.
type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

// JobParams carries the services the standard jobs call into. Nil members
// leave their job out of the registry.
type JobParams struct {
	Reminders       reminderSender
	Carts           cartCleaner
	OTPs            otpCleaner
	Sessions        sessionExpirer
	Outbox          outboxPruner
	OutboxRetention time.Duration
	Clock           clock.Clock
	Logger          *logger.Logger
}

// StandardRegistry registers the jobs in run order: reminders go out before
// cleanup removes old carts. Reminders and session expiry run every cycle,
// the retention sweeps hourly.
func StandardRegistry(params JobParams) (*Registry, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	logg := params.Logger
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	registry := NewRegistry()
	var regErr error
	register := func(job Job, every time.Duration) {
		if regErr == nil {
			regErr = registry.Register(job, every)
		}
	}

	if params.Reminders != nil {
		register(funcJob{name: JobAbandonedCartReminders, run: func(ctx context.Context) error {
			result, err := params.Reminders.SendDue(ctx)
			if result.FirstSent+result.SecondSent+result.Failed > 0 {
				logg.Info(logg.WithFields(ctx, map[string]any{
					"first_sent":  result.FirstSent,
					"second_sent": result.SecondSent,
					"failed":      result.Failed,
				}), "abandoned cart reminders sent")
			}
			return err
		}}, 0)
	}
	if params.Carts != nil {
		register(funcJob{name: JobAbandonedCartCleanup, run: func(ctx context.Context) error {
			return logDeleted(ctx, logg, "abandoned carts", params.Carts.Cleanup)
		}}, cleanupEvery)
	}
	if params.OTPs != nil {
		register(funcJob{name: JobOTPCleanup, run: func(ctx context.Context) error {
			return logDeleted(ctx, logg, "otp codes", params.OTPs.CleanupOTPs)
		}}, cleanupEvery)
	}
	if params.Sessions != nil {
		register(funcJob{name: JobSobrietyExpiry, run: func(ctx context.Context) error {
			ended, err := params.Sessions.ExpireStale(ctx)
			if ended > 0 {
				logg.Info(logg.WithField(ctx, "sessions_ended", ended), "stale drinking sessions ended")
			}
			return err
		}}, 0)
	}
	if params.Outbox != nil {
		retention := params.OutboxRetention
		if retention <= 0 {
			retention = 7 * 24 * time.Hour
		}
		register(funcJob{name: JobOutboxRetention, run: func(ctx context.Context) error {
			cutoff := clk.Now().UTC().Add(-retention)
			return logDeleted(ctx, logg, "published outbox events", func(ctx context.Context) (int64, error) {
				return params.Outbox.DeletePublishedBefore(ctx, cutoff)
			})
		}}, cleanupEvery)
	}
	if regErr != nil {
		return nil, regErr
	}
	return registry, nil
}

func logDeleted(ctx context.Context, logg *logger.Logger, what string, fn func(context.Context) (int64, error)) error {
	deleted, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", what, err)
	}
	if deleted > 0 {
		logg.Info(logg.WithField(ctx, "rows_deleted", deleted), what+" deleted")
	}
	return nil
}
