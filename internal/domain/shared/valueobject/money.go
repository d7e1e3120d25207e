package valueobject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code. Records carry their local currency; amounts
// are only ever added within one currency.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
)

// NormalizeCurrency upper-cases and trims a currency code
func NormalizeCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

// Valid reports whether c has the shape of an ISO 4217 code
func (c Currency) Valid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Money is an immutable amount in one currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("invalid currency code %q", currency)
	}
	return Money{amount: amount, currency: currency}, nil
}

// MustNewMoney panics on an invalid currency. Meant for literals.
func MustNewMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero is the neutral amount in currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }

func (m Money) Currency() Currency { return m.currency }

func (m Money) IsZero() bool { return m.amount.IsZero() }

// Add sums two amounts of the same currency
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return m.WithAmount(m.amount.Add(other.amount)), nil
}

// WithAmount keeps the currency and replaces the amount
func (m Money) WithAmount(amount decimal.Decimal) Money {
	return Money{amount: amount, currency: m.currency}
}

func (m Money) Multiply(factor decimal.Decimal) Money {
	return m.WithAmount(m.amount.Mul(factor))
}

func (m Money) Negate() Money {
	return m.WithAmount(m.amount.Neg())
}

func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String formats m with two decimals, e.g. "1250.00 EUR"
func (m Money) String() string {
	return m.amount.StringFixed(2) + " " + string(m.currency)
}

// Ptr returns a pointer to a copy of m, for optional record lines
func (m Money) Ptr() *Money {
	return &m
}

type moneyJSON struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// MarshalJSON writes the amount as a string to keep its precision
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.amount, Currency: m.currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid money: %w", err)
	}
	m.amount = v.Amount
	m.currency = NormalizeCurrency(string(v.Currency))
	return nil
}

// Clone copies an optional line so that the copy can be moved independently
func Clone(m *Money) *Money {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}
