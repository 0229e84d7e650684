// Package abandonedcart mirrors live carts into abandoned_carts and sends
// the reminder emails for carts left behind.
package abandonedcart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/metrics"
)

const writeTimeout = 5 * time.Second

type mirrorStore interface {
	Upsert(ctx context.Context, id cart.Identity, snap Snapshot, at time.Time) error
	DeleteOpen(ctx context.Context, id cart.Identity) error
	TransferOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) error
}

type pendingWrite struct {
	id    cart.Identity
	empty bool
	snap  Snapshot
	timer clock.Timer
}

// Synchronizer debounces cart changes per identity and writes the final
// state once the quiet period passes without another change. Store errors
// are logged and dropped; the next change retries.
type Synchronizer struct {
	store   mirrorStore
	clock   clock.Clock
	quiet   time.Duration
	logg    *logger.Logger
	metrics *metrics.CartMetrics

	mu      sync.Mutex
	pending map[string]*pendingWrite
	closed  bool
}

type SynchronizerParams struct {
	Store       mirrorStore
	Clock       clock.Clock
	QuietPeriod time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.CartMetrics
}

func NewSynchronizer(params SynchronizerParams) *Synchronizer {
	clk := params.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	quiet := params.QuietPeriod
	if quiet <= 0 {
		quiet = time.Second
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Synchronizer{
		store:   params.Store,
		clock:   clk,
		quiet:   quiet,
		logg:    logg,
		metrics: params.Metrics,
		pending: make(map[string]*pendingWrite),
	}
}

// CartChanged schedules a write of c, replacing any write still pending for
// the same identity.
func (s *Synchronizer) CartChanged(id cart.Identity, c cart.Cart) {
	write := &pendingWrite{id: id, empty: c.IsEmpty()}
	if !write.empty {
		write.snap = SnapshotFrom(c)
	}
	key := id.String()

	s.mu.Lock()
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		delete(s.pending, key)
	}
	if s.closed {
		s.mu.Unlock()
		s.write(context.Background(), write)
		return
	}
	write.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(key, write) })
	s.pending[key] = write
	s.mu.Unlock()
}

func (s *Synchronizer) fire(key string, write *pendingWrite) {
	s.mu.Lock()
	if s.pending[key] != write {
		// Superseded or flushed after the timer had already fired.
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()
	s.write(context.Background(), write)
}

func (s *Synchronizer) write(ctx context.Context, w *pendingWrite) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	ctx = s.logg.WithCartIdentity(ctx, w.id.String())

	if w.empty {
		err := s.store.DeleteOpen(ctx, w.id)
		s.metrics.IncSyncWrite("delete", err)
		if err != nil {
			s.logg.Error(ctx, "abandoned cart delete failed", err)
		}
		return
	}
	err := s.store.Upsert(ctx, w.id, w.snap, s.clock.Now().UTC())
	s.metrics.IncSyncWrite("upsert", err)
	if err != nil {
		s.logg.Error(ctx, "abandoned cart upsert failed", err)
	}
}

// TransferOnLogin cancels the guest's pending write and hands the guest row
// over to the user.
func (s *Synchronizer) TransferOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) {
	if sessionID == "" {
		return
	}
	key := cart.SessionIdentity(sessionID).String()
	s.mu.Lock()
	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
		delete(s.pending, key)
	}
	s.mu.Unlock()

	ctx = s.logg.WithUserID(ctx, userID.String())
	err := s.store.TransferOnLogin(ctx, sessionID, userID)
	s.metrics.IncSyncWrite("transfer", err)
	if err != nil {
		s.logg.Error(ctx, "abandoned cart transfer failed", err)
	}
}

// Pending reports how many identities have an unwritten change.
func (s *Synchronizer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes every pending change now.
func (s *Synchronizer) Flush(ctx context.Context) {
	s.mu.Lock()
	writes := make([]*pendingWrite, 0, len(s.pending))
	for key, w := range s.pending {
		w.timer.Stop()
		writes = append(writes, w)
		delete(s.pending, key)
	}
	s.mu.Unlock()

	for _, w := range writes {
		s.write(ctx, w)
	}
}

// Close flushes pending writes. Changes arriving afterwards are written
// immediately.
func (s *Synchronizer) Close(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.Flush(ctx)
}
