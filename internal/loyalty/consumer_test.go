package loyalty

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/pubsub"
)

type recordingAwarder struct {
	calls []uuid.UUID
}

func (r *recordingAwarder) AwardOrder(_ context.Context, _, orderID, _ uuid.UUID, _ string, _ decimal.Decimal) (AwardResult, error) {
	r.calls = append(r.calls, orderID)
	return AwardResult{Points: 10}, nil
}

func orderEnvelope(t *testing.T, event outbox.OrderCreatedEvent) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return outbox.PayloadEnvelope{Version: 1, EventID: uuid.New(), Data: data}
}

func TestConsumerAwardsSignedInOrders(t *testing.T) {
	awards := &recordingAwarder{}
	consumer, err := NewConsumer(awards, logger.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	userID := uuid.New()
	signedIn := outbox.OrderCreatedEvent{OrderID: uuid.New(), UserID: &userID, Total: decimal.RequireFromString("12")}
	require.NoError(t, consumer.Process(ctx, enums.EventOrderCreated, orderEnvelope(t, signedIn)))

	guest := outbox.OrderCreatedEvent{OrderID: uuid.New(), Total: decimal.RequireFromString("12")}
	require.NoError(t, consumer.Process(ctx, enums.EventOrderCreated, orderEnvelope(t, guest)))

	require.NoError(t, consumer.Process(ctx, enums.EventCartConverted, orderEnvelope(t, signedIn)))

	assert.Equal(t, []uuid.UUID{signedIn.OrderID}, awards.calls)
}

func TestConsumerDropsMalformedPayload(t *testing.T) {
	consumer, err := NewConsumer(&recordingAwarder{}, logger.Nop())
	require.NoError(t, err)
	envelope := outbox.PayloadEnvelope{Version: 1, EventID: uuid.New(), Data: json.RawMessage(`"nope"`)}
	err = consumer.Process(context.Background(), enums.EventOrderCreated, envelope)
	assert.True(t, pubsub.IsPermanent(err))
}
