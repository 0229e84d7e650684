package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event. Nil for system actions.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable JSON shape stored in outbox_events.payload
// and published as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    uuid.UUID       `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a Pub/Sub message body or an outbox payload column.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventID == uuid.Nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: missing event id")
	}
	return envelope, nil
}

// DecodeData unmarshals the envelope's data into T.
func DecodeData[T any](envelope PayloadEnvelope) (T, error) {
	var out T
	if err := json.Unmarshal(envelope.Data, &out); err != nil {
		return out, fmt.Errorf("decode event data: %w", err)
	}
	return out, nil
}
