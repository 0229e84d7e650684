package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/pubsub"
)

type recordingSender struct {
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func newTestConsumer(t *testing.T, sender *recordingSender) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerParams{Sender: sender, PublicBaseURL: "https://lastcall.test/", Logger: logger.Nop()})
	require.NoError(t, err)
	return c
}

func envelope(t *testing.T, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return outbox.PayloadEnvelope{Version: 1, EventID: uuid.New(), Data: raw}
}

func TestOrderConfirmationEmail(t *testing.T) {
	sender := &recordingSender{}
	c := newTestConsumer(t, sender)
	event := outbox.OrderCreatedEvent{
		OrderID: uuid.New(), OrderNumber: "LC-ABCD2345", VenueName: "The Dive",
		ContactEmail: "sam@example.com", ContactName: "Sam",
		Tip: decimal.RequireFromString("4"), Total: decimal.RequireFromString("60"),
		Items: []outbox.OrderCreatedItem{{Name: "Old Fashioned", Quantity: 2, LineTotal: decimal.RequireFromString("32")}},
	}

	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, envelope(t, event)))
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "sam@example.com", msg.To)
	assert.Equal(t, "Sam", msg.ToName)
	assert.Equal(t, "Order LC-ABCD2345 confirmed", msg.Subject)
	assert.Contains(t, msg.HTML, "Old Fashioned")
	assert.Contains(t, msg.HTML, "60.00")
	assert.Contains(t, msg.Text, "https://lastcall.test/track-order?email=sam%40example.com&number=LC-ABCD2345")
}

func TestOrderStatusEmailOnlyForGuestFacingSteps(t *testing.T) {
	sender := &recordingSender{}
	c := newTestConsumer(t, sender)
	ctx := context.Background()

	preparing := outbox.OrderStatusChangedEvent{OrderNumber: "LC-1", ContactEmail: "sam@example.com", From: enums.OrderStatusConfirmed, To: enums.OrderStatusPreparing}
	require.NoError(t, c.Process(ctx, enums.EventOrderStatusChanged, envelope(t, preparing)))
	assert.Empty(t, sender.sent)

	ready := outbox.OrderStatusChangedEvent{OrderNumber: "LC-1", ContactEmail: "sam@example.com", From: enums.OrderStatusPreparing, To: enums.OrderStatusReady}
	require.NoError(t, c.Process(ctx, enums.EventOrderStatusChanged, envelope(t, ready)))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Order LC-1 is ready for pickup", sender.sent[0].Subject)
}

func TestSobrietyAlertEmailOnlyForDanger(t *testing.T) {
	sender := &recordingSender{}
	c := newTestConsumer(t, sender)
	ctx := context.Background()

	warning := outbox.SobrietyAlertEvent{Severity: enums.AlertSeverityWarning, Email: "sam@example.com", BAC: 0.09}
	require.NoError(t, c.Process(ctx, enums.EventSobrietyAlert, envelope(t, warning)))
	noEmail := outbox.SobrietyAlertEvent{Severity: enums.AlertSeverityDanger, BAC: 0.16}
	require.NoError(t, c.Process(ctx, enums.EventSobrietyAlert, envelope(t, noEmail)))
	assert.Empty(t, sender.sent)

	danger := outbox.SobrietyAlertEvent{Severity: enums.AlertSeverityDanger, Email: "sam@example.com", BAC: 0.1627, Message: "Stop drinking now."}
	require.NoError(t, c.Process(ctx, enums.EventSobrietyAlert, envelope(t, danger)))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "0.163")
}

func TestSendFailures(t *testing.T) {
	ctx := context.Background()
	event := outbox.OrderStatusChangedEvent{OrderNumber: "LC-1", ContactEmail: "sam@example.com", To: enums.OrderStatusCancelled}

	transient := newTestConsumer(t, &recordingSender{err: errors.New("502 from provider")})
	err := transient.Process(ctx, enums.EventOrderStatusChanged, envelope(t, event))
	require.Error(t, err)
	assert.False(t, pubsub.IsPermanent(err))

	invalid := newTestConsumer(t, &recordingSender{err: mailer.ErrInvalidRecipient})
	err = invalid.Process(ctx, enums.EventOrderStatusChanged, envelope(t, event))
	assert.True(t, pubsub.IsPermanent(err))

	bad := outbox.PayloadEnvelope{Version: 1, EventID: uuid.New(), Data: json.RawMessage(`[]`)}
	err = transient.Process(ctx, enums.EventOrderCreated, bad)
	assert.True(t, pubsub.IsPermanent(err))
}
