// Package notifications turns domain events into transactional email.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/pubsub"
)

// ConsumerName keys the idempotency markers of the email consumer.
const ConsumerName = "email-notifications"

// emailedStatuses are the order transitions the guest hears about.
var emailedStatuses = map[enums.OrderStatus]string{
	enums.OrderStatusConfirmed: "confirmed",
	enums.OrderStatusReady:     "ready for pickup",
	enums.OrderStatusCancelled: "cancelled",
}

type Consumer struct {
	sender        mailer.Sender
	renderer      *mailer.Renderer
	publicBaseURL string
	logg          *logger.Logger
}

type ConsumerParams struct {
	Sender        mailer.Sender
	Renderer      *mailer.Renderer
	PublicBaseURL string
	Logger        *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
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
	return &Consumer{
		sender:        params.Sender,
		renderer:      renderer,
		publicBaseURL: strings.TrimRight(params.PublicBaseURL, "/"),
		logg:          params.Logger,
	}, nil
}

func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	switch eventType {
	case enums.EventOrderCreated:
		payload, err := outbox.DecodeData[outbox.OrderCreatedEvent](envelope)
		if err != nil {
			return pubsub.Permanent(err)
		}
		return c.orderConfirmation(ctx, payload)
	case enums.EventOrderStatusChanged:
		payload, err := outbox.DecodeData[outbox.OrderStatusChangedEvent](envelope)
		if err != nil {
			return pubsub.Permanent(err)
		}
		return c.orderStatus(ctx, payload)
	case enums.EventSobrietyAlert:
		payload, err := outbox.DecodeData[outbox.SobrietyAlertEvent](envelope)
		if err != nil {
			return pubsub.Permanent(err)
		}
		return c.sobrietyAlert(ctx, payload)
	default:
		return nil
	}
}

func (c *Consumer) orderConfirmation(ctx context.Context, event outbox.OrderCreatedEvent) error {
	items := make([]mailer.LineItem, 0, len(event.Items))
	for _, item := range event.Items {
		items = append(items, mailer.LineItem{Name: item.Name, Quantity: item.Quantity, LineTotal: item.LineTotal.StringFixed(2)})
	}
	name := event.ContactName
	if name == "" {
		name = "there"
	}
	data := mailer.OrderConfirmationData{
		OrderNumber: event.OrderNumber,
		Name:        name,
		VenueName:   event.VenueName,
		Items:       items,
		Tip:         event.Tip.StringFixed(2),
		Total:       event.Total.StringFixed(2),
		TrackURL:    c.trackURL(event.OrderNumber, event.ContactEmail),
	}
	subject := fmt.Sprintf("Order %s confirmed", event.OrderNumber)
	return c.send(ctx, mailer.TemplateOrderConfirmation, event.ContactEmail, event.ContactName, subject, data)
}

func (c *Consumer) orderStatus(ctx context.Context, event outbox.OrderStatusChangedEvent) error {
	label, ok := emailedStatuses[event.To]
	if !ok {
		return nil
	}
	data := mailer.OrderStatusData{
		OrderNumber: event.OrderNumber,
		Status:      label,
		TrackURL:    c.trackURL(event.OrderNumber, event.ContactEmail),
	}
	subject := fmt.Sprintf("Order %s is %s", event.OrderNumber, label)
	return c.send(ctx, mailer.TemplateOrderStatus, event.ContactEmail, "", subject, data)
}

// sobrietyAlert only emails danger alerts; lower tiers surface in the app.
func (c *Consumer) sobrietyAlert(ctx context.Context, event outbox.SobrietyAlertEvent) error {
	if event.Severity != enums.AlertSeverityDanger || event.Email == "" {
		return nil
	}
	data := mailer.SobrietyAlertData{
		Severity: string(event.Severity),
		BAC:      strconv.FormatFloat(event.BAC, 'f', 3, 64),
		Message:  event.Message,
	}
	return c.send(ctx, mailer.TemplateSobrietyAlert, event.Email, "", "Time to slow down", data)
}

func (c *Consumer) send(ctx context.Context, template, to, toName, subject string, data any) error {
	ctx = c.logg.WithFields(ctx, map[string]any{"template": template})
	if strings.TrimSpace(to) == "" {
		c.logg.Warn(ctx, "no recipient for notification")
		return nil
	}
	msg, err := c.renderer.Render(template, to, subject, data)
	if err != nil {
		return pubsub.Permanent(err)
	}
	msg.ToName = toName
	if err := c.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrInvalidRecipient) {
			return pubsub.Permanent(err)
		}
		return err
	}
	c.logg.Info(ctx, "notification sent")
	return nil
}

func (c *Consumer) trackURL(number, email string) string {
	q := url.Values{}
	q.Set("number", number)
	q.Set("email", email)
	return c.publicBaseURL + "/track-order?" + q.Encode()
}
