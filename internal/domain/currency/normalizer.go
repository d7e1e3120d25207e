// Package currency converts money values expressed in different currencies
// into one shared currency for a single computation run.
package currency

import (
	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Named is an optional money value labelled for lookup after conversion.
type Named struct {
	Name  string
	Value *valueobject.Money
}

// N builds a Named value.
func N(name string, value *valueobject.Money) Named {
	return Named{Name: name, Value: value}
}

// Homogenized holds converted amounts sharing one currency.
type Homogenized struct {
	Currency valueobject.Currency
	Values   map[string]decimal.Decimal
}

// Amount returns the converted amount for name, zero when it was absent.
func (h Homogenized) Amount(name string) decimal.Decimal {
	return h.Values[name]
}

// Money returns the converted amount for name as Money in the shared currency.
func (h Homogenized) Money(name string) valueobject.Money {
	return valueobject.Zero(h.Currency).WithAmount(h.Values[name])
}

// Normalizer converts named money values into one shared currency.
// An empty target selects the currency of the first present value.
// Absent values convert to zero.
type Normalizer interface {
	Homogenize(target valueobject.Currency, values ...Named) (Homogenized, error)
	Convert(m valueobject.Money, to valueobject.Currency) (valueobject.Money, error)
}
