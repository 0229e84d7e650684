package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lastcall-app/lastcall-backend/internal/cart"
	"github.com/lastcall-app/lastcall-backend/internal/orders"
	"github.com/lastcall-app/lastcall-backend/internal/sobriety"
	"github.com/lastcall-app/lastcall-backend/pkg/auth"
	"github.com/lastcall-app/lastcall-backend/pkg/db"
	"github.com/lastcall-app/lastcall-backend/pkg/db/dbtest"
	"github.com/lastcall-app/lastcall-backend/pkg/db/models"
	"github.com/lastcall-app/lastcall-backend/pkg/enums"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
	"github.com/lastcall-app/lastcall-backend/pkg/outbox"
)

type stubCarts struct {
	carts   map[string]*cart.Cart
	cleared []cart.Identity
}

func (s *stubCarts) Get(_ context.Context, id cart.Identity) (*cart.Cart, error) {
	if c, ok := s.carts[id.String()]; ok {
		return c, nil
	}
	return cart.New(), nil
}

func (s *stubCarts) Clear(_ context.Context, id cart.Identity) (*cart.Cart, error) {
	s.cleared = append(s.cleared, id)
	delete(s.carts, id.String())
	return cart.New(), nil
}

type stubProducts map[uuid.UUID]models.Product

func (s stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type stubVenues map[uuid.UUID]models.Venue

func (s stubVenues) FindByID(_ context.Context, id uuid.UUID) (*models.Venue, error) {
	v, ok := s[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &v, nil
}

type stubSobriety struct {
	inputs   sobriety.GateInputs
	recorded []sobriety.DrinkInput
}

func (s *stubSobriety) GateInputs(context.Context, uuid.UUID) (sobriety.GateInputs, error) {
	return s.inputs, nil
}

func (s *stubSobriety) RecordOrderDrinks(_ context.Context, _, _ uuid.UUID, drinks []sobriety.DrinkInput) error {
	s.recorded = append(s.recorded, drinks...)
	return nil
}

type stubMirror struct {
	cartID *uuid.UUID
	calls  int
}

func (s *stubMirror) MarkConvertedTx(*gorm.DB, cart.Identity, uuid.UUID) (*uuid.UUID, error) {
	s.calls++
	return s.cartID, nil
}

type recordingEmitter struct {
	events []outbox.DomainEvent
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event)
	return nil
}

type recordingProcessor struct {
	inner   PaymentProcessor
	charges []ChargeRequest
	voided  []string
}

func (p *recordingProcessor) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	p.charges = append(p.charges, req)
	return p.inner.Charge(ctx, req)
}

func (p *recordingProcessor) Void(_ context.Context, reference string) error {
	p.voided = append(p.voided, reference)
	return nil
}

type fixture struct {
	svc      Service
	orders   orders.Repository
	carts    *stubCarts
	sobriety *stubSobriety
	mirror   *stubMirror
	emitter  *recordingEmitter
	payments *recordingProcessor
	venue    models.Venue
	beer     models.Product
	fries    models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	abv := decimal.RequireFromString("5")
	volume := 355
	f := &fixture{
		carts:    &stubCarts{carts: map[string]*cart.Cart{}},
		sobriety: &stubSobriety{inputs: sobriety.GateInputs{HasBiometrics: true, SessionActive: true, BAC: 0.02}},
		mirror:   &stubMirror{},
		emitter:  &recordingEmitter{},
		payments: &recordingProcessor{inner: NewMockProcessor()},
		venue:    models.Venue{ID: uuid.New(), Name: "The Dive", IsActive: true},
	}
	f.beer = models.Product{
		ID: uuid.New(), VenueID: f.venue.ID, Name: "Lager", Kind: enums.ProductKindDrink,
		Price: decimal.RequireFromString("8"), ABVPercent: &abv, VolumeML: &volume, IsAvailable: true,
	}
	f.fries = models.Product{
		ID: uuid.New(), VenueID: f.venue.ID, Name: "Fries", Kind: enums.ProductKindFood,
		Price: decimal.RequireFromString("6.50"), IsAvailable: true,
	}
	f.orders = orders.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Tx:       db.Wrap(conn),
		Carts:    f.carts,
		Products: stubProducts{f.beer.ID: f.beer, f.fries.ID: f.fries},
		Venues:   stubVenues{f.venue.ID: f.venue},
		Sobriety: f.sobriety,
		Mirror:   f.mirror,
		Orders:   f.orders,
		Payments: f.payments,
		Outbox:   f.emitter,
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) fill(t *testing.T, id cart.Identity, products ...models.Product) {
	t.Helper()
	c := cart.New()
	for _, p := range products {
		require.NoError(t, c.AddItem(cart.RefFromProduct(p)))
	}
	f.carts.carts[id.String()] = c
}

func verifiedActor() *auth.Actor {
	return &auth.Actor{UserID: uuid.New(), Email: "sam@example.com", Role: enums.RoleCustomer, AgeVerified: true}
}

func goodCard() Card {
	return Card{Number: "4242424242424242", ExpMonth: 12, ExpYear: 2099, CVC: "123"}
}

func tip(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestExecutePlacesOrder(t *testing.T) {
	f := newFixture(t)
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.beer, f.beer, f.fries)
	cartID := uuid.New()
	f.mirror.cartID = &cartID

	dto, err := f.svc.Execute(context.Background(), id, actor, Input{Tip: tip("3.50"), Card: goodCard()})
	require.NoError(t, err)

	assert.Equal(t, "22.50", dto.Subtotal.StringFixed(2))
	assert.Equal(t, "26.00", dto.Total.StringFixed(2))
	assert.Equal(t, "sam@example.com", dto.ContactEmail)
	require.Len(t, f.payments.charges, 1)
	assert.True(t, f.payments.charges[0].Amount.Equal(decimal.RequireFromString("26")))

	stored, err := f.orders.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Equal(t, "4242", stored.CardLast4)

	require.Len(t, f.emitter.events, 2)
	assert.Equal(t, enums.EventOrderCreated, f.emitter.events[0].EventType)
	assert.Equal(t, enums.EventCartConverted, f.emitter.events[1].EventType)
	assert.Equal(t, cartID, f.emitter.events[1].AggregateID)

	require.Len(t, f.sobriety.recorded, 1)
	assert.Equal(t, 2, f.sobriety.recorded[0].Quantity)
	assert.Equal(t, 5.0, f.sobriety.recorded[0].ABVPercent)
	assert.Equal(t, 355.0, f.sobriety.recorded[0].VolumeML)

	assert.Equal(t, []cart.Identity{id}, f.carts.cleared)
}

func TestExecuteGuestFoodOrder(t *testing.T) {
	f := newFixture(t)
	id := cart.SessionIdentity("guest-1")
	f.fill(t, id, f.fries)

	dto, err := f.svc.Execute(context.Background(), id, nil, Input{Email: " Guest@Example.com ", Name: "Guest", Card: goodCard()})
	require.NoError(t, err)
	stored, err := f.orders.FindByID(context.Background(), dto.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.UserID)
	assert.Equal(t, "guest@example.com", dto.ContactEmail)
	assert.Equal(t, "6.50", dto.Total.StringFixed(2))
	assert.Len(t, f.emitter.events, 1)
	assert.Equal(t, 1, f.mirror.calls)
	assert.Empty(t, f.sobriety.recorded)
}

func TestExecuteRequiresContactEmail(t *testing.T) {
	f := newFixture(t)
	id := cart.SessionIdentity("guest-1")
	f.fill(t, id, f.fries)

	_, err := f.svc.Execute(context.Background(), id, nil, Input{Card: goodCard()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.payments.charges)
}

func TestExecuteAgeChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest := cart.SessionIdentity("guest-1")
	f.fill(t, guest, f.beer)
	_, err := f.svc.Execute(ctx, guest, nil, Input{Email: "g@example.com", Card: goodCard()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	actor := verifiedActor()
	actor.AgeVerified = false
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.beer)
	_, err = f.svc.Execute(ctx, id, actor, Input{Card: goodCard()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	assert.Equal(t, map[string]string{"decision": "verify_age"}, pkgerrors.As(err).Details())
	assert.Empty(t, f.payments.charges)
}

func TestExecuteSobrietyGate(t *testing.T) {
	cases := []struct {
		name     string
		inputs   sobriety.GateInputs
		code     pkgerrors.Code
		decision Decision
	}{
		{"no profile", sobriety.GateInputs{}, pkgerrors.CodeStateConflict, DecisionRequireBiometricSetup},
		{"no session", sobriety.GateInputs{HasBiometrics: true}, pkgerrors.CodeStateConflict, DecisionStartSession},
		{"over limit", sobriety.GateInputs{HasBiometrics: true, SessionActive: true, BAC: 0.09}, pkgerrors.CodeSafetyBlocked, DecisionBlocked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.sobriety.inputs = tc.inputs
			actor := verifiedActor()
			id := cart.UserIdentity(actor.UserID)
			f.fill(t, id, f.beer)

			_, err := f.svc.Execute(context.Background(), id, actor, Input{Card: goodCard()})
			require.True(t, pkgerrors.HasCode(err, tc.code))
			details, ok := pkgerrors.As(err).Details().(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tc.decision, details["decision"])
			assert.Empty(t, f.payments.charges)
			assert.Empty(t, f.carts.cleared)
		})
	}
}

func TestExecuteFoodSkipsSobrietyGate(t *testing.T) {
	f := newFixture(t)
	f.sobriety.inputs = sobriety.GateInputs{}
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.fries)

	_, err := f.svc.Execute(context.Background(), id, actor, Input{Card: goodCard()})
	require.NoError(t, err)
}

func TestExecuteRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	ctx := context.Background()

	_, err := f.svc.Execute(ctx, id, actor, Input{Card: goodCard()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "empty cart")

	f.fill(t, id, f.fries)
	_, err = f.svc.Execute(ctx, id, actor, Input{Tip: tip("-1"), Card: goodCard()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "negative tip")
	assert.Empty(t, f.payments.charges)
}

func TestExecuteRejectsUnavailableItems(t *testing.T) {
	f := newFixture(t)
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.fries)
	gone := f.fries
	gone.IsAvailable = false
	f.svc.(*service).products = stubProducts{gone.ID: gone}

	_, err := f.svc.Execute(context.Background(), id, actor, Input{Card: goodCard()})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, map[string]any{"unavailable": []string{"Fries"}}, pkgerrors.As(err).Details())
}

func TestExecuteRepricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.fries)
	repriced := f.fries
	repriced.Price = decimal.RequireFromString("7")
	f.svc.(*service).products = stubProducts{repriced.ID: repriced}

	dto, err := f.svc.Execute(context.Background(), id, actor, Input{Card: goodCard()})
	require.NoError(t, err)
	assert.Equal(t, "7.00", dto.Total.StringFixed(2))
}

func TestExecuteDeclinedCard(t *testing.T) {
	f := newFixture(t)
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.fries)
	card := goodCard()
	card.Number = DeclineCardNumber

	_, err := f.svc.Execute(context.Background(), id, actor, Input{Card: card})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePaymentDeclined))
	assert.Empty(t, f.emitter.events)
	assert.Empty(t, f.carts.cleared)

	card.Number = "4242424242424241"
	_, err = f.svc.Execute(context.Background(), id, actor, Input{Card: card})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestExecuteVoidsChargeWhenOrderFails(t *testing.T) {
	f := newFixture(t)
	f.emitter.err = errors.New("outbox down")
	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.fries)

	_, err := f.svc.Execute(context.Background(), id, actor, Input{Card: goodCard()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	assert.Len(t, f.payments.voided, 1)
	assert.Empty(t, f.carts.cleared)

	list, err := f.orders.ListByUser(context.Background(), actor.UserID, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPreflight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	guest := cart.SessionIdentity("guest-1")
	f.fill(t, guest, f.beer)
	pre, err := f.svc.Preflight(ctx, guest, nil)
	require.NoError(t, err)
	assert.True(t, pre.RequiresAuth)
	assert.True(t, pre.RequiresAgeVerification)
	assert.True(t, pre.HasAlcohol)

	actor := verifiedActor()
	id := cart.UserIdentity(actor.UserID)
	f.fill(t, id, f.beer, f.fries)
	f.sobriety.inputs = sobriety.GateInputs{HasBiometrics: true, SessionActive: true, BAC: 0.1}
	pre, err = f.svc.Preflight(ctx, id, actor)
	require.NoError(t, err)
	assert.False(t, pre.RequiresAuth)
	assert.False(t, pre.RequiresAgeVerification)
	assert.Equal(t, DecisionBlocked, pre.Decision)
	assert.Equal(t, 0.1, pre.BAC)
	assert.Equal(t, 2, pre.ItemCount)
	assert.Equal(t, "14.50", pre.Total.StringFixed(2))
}
