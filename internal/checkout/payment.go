package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lastcall-app/lastcall-backend/pkg/security"
)

// DeclineCardNumber always declines in the mock processor.
const DeclineCardNumber = "4000000000000002"

var (
	ErrCardDeclined = errors.New("card declined")
	ErrInvalidCard  = errors.New("invalid card details")
)

type Card struct {
	Number   string `json:"number" validate:"required,min=12,max=23"`
	ExpMonth int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"exp_year" validate:"required,min=1,max=2100"`
	CVC      string `json:"cvc" validate:"required,min=3,max=4,numeric"`
}

// Last4 returns the final four digits of the normalized number.
func (c Card) Last4() string {
	digits := normalizeCardNumber(c.Number)
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

type ChargeRequest struct {
	Amount      decimal.Decimal
	Card        Card
	Description string
}

type Charge struct {
	Reference string
	Last4     string
}

// PaymentProcessor charges cards and voids charges whose order failed to
// persist.
type PaymentProcessor interface {
	Charge(ctx context.Context, req ChargeRequest) (Charge, error)
	Void(ctx context.Context, reference string) error
}

// MockProcessor accepts any Luhn-valid, unexpired card except
// DeclineCardNumber.
type MockProcessor struct {
	now func() time.Time
}

func NewMockProcessor() *MockProcessor {
	return &MockProcessor{now: time.Now}
}

func (m *MockProcessor) Charge(ctx context.Context, req ChargeRequest) (Charge, error) {
	if err := ctx.Err(); err != nil {
		return Charge{}, err
	}
	if !req.Amount.IsPositive() {
		return Charge{}, fmt.Errorf("%w: amount must be positive", ErrInvalidCard)
	}
	number := normalizeCardNumber(req.Card.Number)
	if !luhnValid(number) {
		return Charge{}, fmt.Errorf("%w: card number", ErrInvalidCard)
	}
	if expired(req.Card.ExpMonth, req.Card.ExpYear, m.now()) {
		return Charge{}, fmt.Errorf("%w: card expired", ErrInvalidCard)
	}
	if len(req.Card.CVC) < 3 || len(req.Card.CVC) > 4 {
		return Charge{}, fmt.Errorf("%w: cvc", ErrInvalidCard)
	}
	if _, err := strconv.Atoi(req.Card.CVC); err != nil {
		return Charge{}, fmt.Errorf("%w: cvc", ErrInvalidCard)
	}
	if number == DeclineCardNumber {
		return Charge{}, ErrCardDeclined
	}
	token, err := security.URLToken(12)
	if err != nil {
		return Charge{}, err
	}
	return Charge{Reference: "mock_" + token, Last4: number[len(number)-4:]}, nil
}

func (m *MockProcessor) Void(context.Context, string) error { return nil }

func normalizeCardNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func luhnValid(digits string) bool {
	if len(digits) < 12 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expired treats the card as valid through the last day of its month.
func expired(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return true
	}
	if year < 100 {
		year += 2000
	}
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(endOfMonth)
}
