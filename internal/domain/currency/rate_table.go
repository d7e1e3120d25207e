package currency

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Rate is the number of units of Currency worth one unit of the table's base.
type Rate struct {
	Currency valueobject.Currency `json:"currency"`
	Rate     decimal.Decimal      `json:"rate"`
}

// RateTable is a fixed set of rates against a base currency. It is built
// once per computation run and only read afterwards.
type RateTable struct {
	base  valueobject.Currency
	asOf  time.Time
	rates map[valueobject.Currency]decimal.Decimal
}

// NewRateTable validates rates and builds a table. The base currency always
// has rate one.
func NewRateTable(base valueobject.Currency, asOf time.Time, rates []Rate) (*RateTable, error) {
	t := &RateTable{
		base:  base,
		asOf:  asOf,
		rates: make(map[valueobject.Currency]decimal.Decimal, len(rates)+1),
	}
	for _, r := range rates {
		if r.Currency == "" {
			return nil, fmt.Errorf("%w: rate without currency", shared.ErrInvalidRateTable)
		}
		if !r.Rate.IsPositive() {
			return nil, fmt.Errorf("%w: rate for %s must be positive, got %s", shared.ErrInvalidRateTable, r.Currency, r.Rate)
		}
		t.rates[r.Currency] = r.Rate
	}
	if base != "" {
		t.rates[base] = decimal.NewFromInt(1)
	}
	return t, nil
}

// EmptyRateTable converts only between identical currencies.
func EmptyRateTable() *RateTable {
	return &RateTable{rates: map[valueobject.Currency]decimal.Decimal{}}
}

// Base returns the base currency
func (t *RateTable) Base() valueobject.Currency { return t.base }

// AsOf returns the date the rates apply to
func (t *RateTable) AsOf() time.Time { return t.asOf }

// Len returns the number of currencies the table knows, base included
func (t *RateTable) Len() int { return len(t.rates) }

// Rates returns the rates sorted by currency code.
func (t *RateTable) Rates() []Rate {
	out := make([]Rate, 0, len(t.rates))
	for c, r := range t.rates {
		out = append(out, Rate{Currency: c, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// Convert expresses m in currency to. An amount without currency is taken
// as already expressed in to.
func (t *RateTable) Convert(m valueobject.Money, to valueobject.Currency) (valueobject.Money, error) {
	if m.Currency() == to || to == "" {
		return m, nil
	}
	if m.Currency() == "" {
		return valueobject.Zero(to).WithAmount(m.Amount()), nil
	}
	from, ok := t.rates[m.Currency()]
	if !ok {
		return valueobject.Money{}, fmt.Errorf("%w: no rate for %s", shared.ErrInvalidRateTable, m.Currency())
	}
	target, ok := t.rates[to]
	if !ok {
		return valueobject.Money{}, fmt.Errorf("%w: no rate for %s", shared.ErrInvalidRateTable, to)
	}
	return valueobject.Zero(to).WithAmount(m.Amount().Div(from).Mul(target)), nil
}

// Homogenize implements Normalizer.
func (t *RateTable) Homogenize(target valueobject.Currency, values ...Named) (Homogenized, error) {
	common := target
	if common == "" {
		for _, v := range values {
			if v.Value != nil {
				common = v.Value.Currency()
				break
			}
		}
	}
	out := Homogenized{
		Currency: common,
		Values:   make(map[string]decimal.Decimal, len(values)),
	}
	for _, v := range values {
		if v.Value == nil {
			out.Values[v.Name] = decimal.Zero
			continue
		}
		converted, err := t.Convert(*v.Value, common)
		if err != nil {
			return Homogenized{}, fmt.Errorf("homogenize %s: %w", v.Name, err)
		}
		out.Values[v.Name] = converted.Amount()
	}
	return out, nil
}

var _ Normalizer = (*RateTable)(nil)
