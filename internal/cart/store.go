package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/redis"
)

type redisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(identity string) string
}

// Store persists carts in Redis as JSON. Writes are last-write-wins.
type Store struct {
	redis redisStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewStore(r redisStore, ttl time.Duration, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{redis: r, ttl: ttl, logg: logg}
}

type storedCart struct {
	Version int   `json:"version"`
	Cart    *Cart `json:"cart"`
}

const storedVersion = 1

// Load returns an empty cart when nothing is stored.
func (s *Store) Load(ctx context.Context, id Identity) (*Cart, error) {
	raw, err := s.redis.Get(ctx, s.redis.CartKey(id.String()))
	if errors.Is(err, redis.ErrNil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var stored storedCart
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.Cart == nil {
		if err == nil {
			err = errors.New("stored cart has no body")
		}
		logCtx := s.logg.WithFields(s.logg.WithCartIdentity(ctx, id.String()), map[string]any{"error": err.Error(), "version": stored.Version})
		s.logg.Warn(logCtx, "cart.load.corrupt_blob")
		return New(), nil
	}
	stored.Cart.recompute()
	return stored.Cart, nil
}

func (s *Store) Save(ctx context.Context, id Identity, c *Cart) error {
	if c.IsEmpty() && c.Contact == (Contact{}) {
		return s.Delete(ctx, id)
	}
	payload, err := json.Marshal(storedCart{Version: storedVersion, Cart: c})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.redis.Set(ctx, s.redis.CartKey(id.String()), string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id Identity) error {
	if err := s.redis.Del(ctx, s.redis.CartKey(id.String())); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
