package money

import (
	"fmt"

	"github.com/haatbari/haatbari-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Money is a fixed-precision amount in the smallest unit of its currency
// (paisa for BDT, cents for USD). Arithmetic never leaves the integer domain
// except through the decimal helpers below.
type Money struct {
	Amount   int64          `json:"amount"`
	Currency enums.Currency `json:"currency"`
}

// Paisa builds a BDT amount from paisa.
func Paisa(amount int64) Money {
	return Money{Amount: amount, Currency: enums.CurrencyBDT}
}

// Cents builds a USD amount from cents.
func Cents(amount int64) Money {
	return Money{Amount: amount, Currency: enums.CurrencyUSD}
}

func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// MulQty scales a unit price by an item quantity.
func (m Money) MulQty(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency}
}

// Percent returns pct% of the amount, rounded down to the smallest unit.
func (m Money) Percent(pct decimal.Decimal) Money {
	amount := decimal.NewFromInt(m.Amount).
		Mul(pct).
		Div(decimal.NewFromInt(100)).
		Floor()
	return Money{Amount: amount.IntPart(), Currency: m.Currency}
}

// ClampMax caps the amount at limit; both sides must share a currency.
func (m Money) ClampMax(limit Money) Money {
	if m.Currency == limit.Currency && m.Amount > limit.Amount {
		return limit
	}
	return m
}

// ClampMin raises the amount to at least floor.
func (m Money) ClampMin(floor Money) Money {
	if m.Currency == floor.Currency && m.Amount < floor.Amount {
		return floor
	}
	return m
}

// Decimal returns the amount in major units (taka/dollars) as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(100))
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Decimal().StringFixed(2), m.Currency)
}

// Rate converts BDT amounts into a foreign settlement currency.
type Rate struct {
	// BDTPer is how many BDT buy one major unit of the target currency.
	BDTPer   decimal.Decimal
	Currency enums.Currency
}

// ParseRate builds a Rate from its decimal string representation.
func ParseRate(value string, currency enums.Currency) (Rate, error) {
	per, err := decimal.NewFromString(value)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", value, err)
	}
	if per.Sign() <= 0 {
		return Rate{}, fmt.Errorf("rate must be positive, got %s", per)
	}
	return Rate{BDTPer: per, Currency: currency}, nil
}

// Convert translates a BDT amount into the rate's currency, rounding to the
// nearest smallest unit. paisa / (BDT per unit) = hundredths of the target.
func (r Rate) Convert(m Money) (Money, error) {
	if m.Currency != enums.CurrencyBDT {
		return Money{}, fmt.Errorf("convert expects BDT, got %s", m.Currency)
	}
	if r.BDTPer.Sign() <= 0 {
		return Money{}, fmt.Errorf("invalid conversion rate %s", r.BDTPer)
	}
	converted := decimal.NewFromInt(m.Amount).
		Div(r.BDTPer).
		Round(0)
	return Money{Amount: converted.IntPart(), Currency: r.Currency}, nil
}
