package abandonedcart

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/metrics"
)

type reminderStore interface {
	ListDue(ctx context.Context, stage enums.ReminderStage, cutoff time.Time, limit int) ([]models.AbandonedCart, error)
	Stamp(ctx context.Context, id uuid.UUID, stage enums.ReminderStage, at time.Time) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RunResult summarizes one reminder pass.
type RunResult struct {
	FirstSent  int
	SecondSent int
	Failed     int
}

type ReminderService struct {
	store    reminderStore
	sender   mailer.Sender
	renderer *mailer.Renderer
	cfg      config.CartConfig
	baseURL  string
	clock    clock.Clock
	logg     *logger.Logger
	metrics  *metrics.CartMetrics
}

type ReminderParams struct {
	Store         reminderStore
	Sender        mailer.Sender
	Renderer      *mailer.Renderer
	Config        config.CartConfig
	PublicBaseURL string
	Clock         clock.Clock
	Logger        *logger.Logger
	Metrics       *metrics.CartMetrics
}

func NewReminderService(params ReminderParams) (*ReminderService, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("reminder store required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = mailer.MustRenderer()
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	cfg := params.Config
	if cfg.ReminderBatch <= 0 {
		cfg.ReminderBatch = 100
	}
	return &ReminderService{
		store:    params.Store,
		sender:   params.Sender,
		renderer: renderer,
		cfg:      cfg,
		baseURL:  strings.TrimRight(params.PublicBaseURL, "/"),
		clock:    clk,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// SendDue sends every reminder whose threshold has passed. The second stage
// runs first so a cart that only now receives its first nudge waits a full
// cycle before the second. Every attempted row is stamped, even when the
// send fails.
func (s *ReminderService) SendDue(ctx context.Context) (RunResult, error) {
	now := s.clock.Now().UTC()
	var result RunResult
	var errs error

	stages := []struct {
		stage enums.ReminderStage
		after time.Duration
		count *int
	}{
		{enums.ReminderSecond, s.cfg.SecondReminder, &result.SecondSent},
		{enums.ReminderFirst, s.cfg.FirstReminder, &result.FirstSent},
	}
	for _, st := range stages {
		rows, err := s.store.ListDue(ctx, st.stage, now.Add(-st.after), s.cfg.ReminderBatch)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list %s reminders: %w", st.stage, err))
			continue
		}
		for _, row := range rows {
			if row.ContactEmail == nil || *row.ContactEmail == "" {
				continue
			}
			sendErr := s.send(ctx, row, st.stage)
			s.metrics.IncReminder(st.stage.String(), sendErr)
			if sendErr != nil {
				result.Failed++
				errs = multierr.Append(errs, fmt.Errorf("send %s reminder for %s: %w", st.stage, row.ID, sendErr))
			} else {
				*st.count++
			}
			if err := s.store.Stamp(ctx, row.ID, st.stage, now); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("stamp %s reminder for %s: %w", st.stage, row.ID, err))
			}
		}
	}
	return result, errs
}

func (s *ReminderService) send(ctx context.Context, row models.AbandonedCart, stage enums.ReminderStage) error {
	data := mailer.CartReminderData{
		Second:    stage == enums.ReminderSecond,
		Total:     row.Total.StringFixed(2),
		ResumeURL: s.resumeURL(row),
		OptOutURL: s.OptOutURL(row.OptOutToken),
	}
	if row.ContactName != nil {
		data.Name = *row.ContactName
	}
	for _, item := range row.Snapshot.Items {
		data.Items = append(data.Items, mailer.LineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			LineTotal: item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2),
		})
	}
	subject := "You left something at the bar"
	if data.Second {
		subject = "Last call: your cart is still waiting"
	}
	msg, err := s.renderer.Render(mailer.TemplateCartReminder, *row.ContactEmail, subject, data)
	if err != nil {
		return err
	}
	msg.ToName = data.Name
	msg.Category = "abandoned_cart_" + stage.String()
	return s.sender.Send(ctx, msg)
}

func (s *ReminderService) resumeURL(row models.AbandonedCart) string {
	if row.VenueID == nil {
		return s.baseURL + "/menu"
	}
	return s.baseURL + "/menu?venue=" + row.VenueID.String()
}

// OptOutURL is the link embedded in reminder emails.
func (s *ReminderService) OptOutURL(token string) string {
	return s.baseURL + "/carts/opt-out?token=" + url.QueryEscape(token)
}

// Cleanup deletes rows older than the retention window.
func (s *ReminderService) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.Retention)
	return s.store.DeleteOlderThan(ctx, cutoff)
}
