package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
)

// Processor handles one decoded domain event. Returning a Permanent error
// acks the message without a retry.
type Processor interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

type idempotencyMarker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth redelivering.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Consumer runs a Processor against a subscription, deduplicating
// deliveries per consumer name.
type Consumer struct {
	name         string
	subscription *pubsub.Subscriber
	idempotency  idempotencyMarker
	processor    Processor
	logg         *logger.Logger
}

func NewConsumer(name string, subscription *pubsub.Subscriber, marker idempotencyMarker, processor Processor, logg *logger.Logger) (*Consumer, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("consumer name required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("subscription required for %s", name)
	}
	if marker == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{name: name, subscription: subscription, idempotency: marker, processor: processor, logg: logg}, nil
}

func (c *Consumer) Name() string { return c.name }

// Run starts the receive loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Handle(ctx, msg.ID, msg.Attributes["event_type"], msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Handle processes one delivery and reports whether it should be acked.
func (c *Consumer) Handle(ctx context.Context, messageID, eventType string, data []byte) bool {
	return handleDelivery(ctx, c.name, c.idempotency, c.processor, c.logg, messageID, eventType, data)
}

func handleDelivery(ctx context.Context, name string, marker idempotencyMarker, processor Processor, logg *logger.Logger, messageID, eventType string, data []byte) bool {
	logCtx := logg.WithFields(ctx, map[string]any{
		"consumer":   name,
		"message_id": messageID,
		"event_type": eventType,
	})

	kind, err := enums.ParseOutboxEventType(eventType)
	if err != nil {
		logg.Warn(logCtx, "skipping unknown event type")
		return true
	}

	envelope, err := outbox.DecodeEnvelope(data)
	if err != nil {
		logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	logCtx = logg.WithField(logCtx, "event_id", envelope.EventID.String())

	already, err := marker.CheckAndMarkProcessed(ctx, name, envelope.EventID)
	if err != nil {
		logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		logg.Info(logCtx, "event already processed")
		return true
	}

	if err := processor.Process(logCtx, kind, envelope); err != nil {
		if IsPermanent(err) {
			logg.Error(logCtx, "dropping event", err)
			return true
		}
		logg.Error(logCtx, "event handling failed", err)
		if releaseErr := marker.Release(ctx, name, envelope.EventID); releaseErr != nil {
			logg.Error(logCtx, "release idempotency marker", releaseErr)
		}
		return false
	}
	return true
}
