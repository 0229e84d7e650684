package abandonedcart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/pkg/clock"
	"github.com/lastcall-app/lastcall-backend/pkg/config"
	"github.com/lastcall-app/lastcall-backend/pkg/db/dbtest"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/mailer"
)

type recordingSender struct {
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

var testCartConfig = config.CartConfig{
	FirstReminder:  5 * time.Minute,
	SecondReminder: 10 * time.Minute,
	Retention:      24 * time.Hour,
	ReminderBatch:  10,
}

func newTestReminders(t *testing.T, sender *recordingSender) (*ReminderService, *Repository, *clock.Fake) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	clk := clock.NewFake(epoch)
	svc, err := NewReminderService(ReminderParams{
		Store:         repo,
		Sender:        sender,
		Config:        testCartConfig,
		PublicBaseURL: "https://lastcall.test/",
		Clock:         clk,
		Logger:        logger.Nop(),
	})
	require.NoError(t, err)
	return svc, repo, clk
}

func TestReminderLifecycle(t *testing.T) {
	sender := &recordingSender{}
	svc, repo, clk := newTestReminders(t, sender)
	ctx := context.Background()
	id := cart.SessionIdentity("guest-1")
	require.NoError(t, repo.Upsert(ctx, id, snapshot("32", 2, "sam@example.com"), epoch))

	clk.Advance(4 * time.Minute)
	res, err := svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, res)

	clk.Advance(time.Minute)
	res, err = svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FirstSent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "sam@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "https://lastcall.test/carts/opt-out?token=")

	res, err = svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, res, "each threshold is attempted once")

	clk.Advance(5 * time.Minute)
	res, err = svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SecondSent)
	assert.Len(t, sender.sent, 2)

	row, err := repo.FindOpen(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, row.FirstReminderSentAt)
	require.NotNil(t, row.SecondReminderSentAt)

	clk.Advance(24 * time.Hour)
	deleted, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestLateFirstReminderDefersSecond(t *testing.T) {
	sender := &recordingSender{}
	svc, repo, clk := newTestReminders(t, sender)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, cart.SessionIdentity("guest-1"), snapshot("16", 1, "sam@example.com"), epoch))

	clk.Advance(15 * time.Minute)
	res, err := svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{FirstSent: 1}, res)

	res, err = svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{SecondSent: 1}, res)
}

func TestFailedSendStillStamps(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	svc, repo, clk := newTestReminders(t, sender)
	ctx := context.Background()
	id := cart.SessionIdentity("guest-1")
	require.NoError(t, repo.Upsert(ctx, id, snapshot("16", 1, "sam@example.com"), epoch))

	clk.Advance(6 * time.Minute)
	res, err := svc.SendDue(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, res.Failed)

	row, err := repo.FindOpen(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, row.FirstReminderSentAt)

	sender.err = nil
	res, err = svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunResult{}, res)
}

func TestContactlessRowsAreNotStamped(t *testing.T) {
	sender := &recordingSender{}
	svc, repo, clk := newTestReminders(t, sender)
	ctx := context.Background()
	id := cart.SessionIdentity("guest-1")
	require.NoError(t, repo.Upsert(ctx, id, snapshot("16", 1, ""), epoch))

	clk.Advance(time.Hour)
	_, err := svc.SendDue(ctx)
	require.NoError(t, err)
	assert.Empty(t, sender.sent)

	row, err := repo.FindOpen(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, row.FirstReminderSentAt)
}
