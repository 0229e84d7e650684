package loyalty

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
	"github.com/lastcall-app/lastcall-backend/pkg/pubsub"
)

// ConsumerName keys the idempotency markers of the award consumer.
const ConsumerName = "loyalty-award"

type orderAwarder interface {
	AwardOrder(ctx context.Context, userID, orderID, venueID uuid.UUID, orderNumber string, total decimal.Decimal) (AwardResult, error)
}

// Consumer awards points for order_created events placed by signed-in users.
type Consumer struct {
	awards orderAwarder
	logg   *logger.Logger
}

func NewConsumer(awards orderAwarder, logg *logger.Logger) (*Consumer, error) {
	if awards == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{awards: awards, logg: logg}, nil
}

func (c *Consumer) Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	if eventType != enums.EventOrderCreated {
		return nil
	}
	payload, err := outbox.DecodeData[outbox.OrderCreatedEvent](envelope)
	if err != nil {
		return pubsub.Permanent(err)
	}
	ctx = c.logg.WithField(ctx, "order_id", payload.OrderID.String())
	if payload.UserID == nil {
		c.logg.Debug(ctx, "guest order earns no points")
		return nil
	}
	result, err := c.awards.AwardOrder(ctx, *payload.UserID, payload.OrderID, payload.VenueID, payload.OrderNumber, payload.Total)
	if err != nil {
		return err
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"user_id": payload.UserID.String(), "points": result.Points})
	if result.Already {
		c.logg.Info(ctx, "order already awarded")
		return nil
	}
	c.logg.Info(ctx, "loyalty points awarded")
	return nil
}
