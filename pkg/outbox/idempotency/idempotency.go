// Package idempotency remembers which outbox events a consumer has already
// handled so Pub/Sub redeliveries are acknowledged without side effects.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/pkg/instance"
)

// DefaultTTL applies when the configured TTL is zero. It must outlive the
// subscription's message retention.
const DefaultTTL = 7 * 24 * time.Hour

// Store is the slice of the Redis client the manager needs.
type Store interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	ConsumerKey(consumer, eventID string) string
}

type Manager struct {
	store Store
	ttl   time.Duration
	owner string
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, owner: instance.GetID()}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It returns true when
// another delivery already claimed it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.owner, m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Release drops the claim so the next redelivery is handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", fmt.Errorf("%s: event id is required", consumer)
	}
	return m.store.ConsumerKey(consumer, eventID.String()), nil
}
