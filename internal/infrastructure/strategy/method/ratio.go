// Package method implements one strategy per transfer-pricing method. Each
// strategy computes the method's KPI and inverts it into an adjustment.
package method

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

const (
	profitIndicator = "profit_indicator"
	base            = "base"
)

// RatioStrategy handles the methods whose KPI is the profit indicator over a
// single base that the adjustment does not move.
type RatioStrategy struct {
	strategy.BaseStrategy
	method transferpricing.Method
	base   func(rec *transferpricing.OutputRecord) *valueobject.Money
}

// NewROAStrategy measures profit over assets
func NewROAStrategy() *RatioStrategy {
	return newRatio(transferpricing.MethodROA, "tnmm-roa", "Return on assets: profit indicator over assets",
		func(rec *transferpricing.OutputRecord) *valueobject.Money { return rec.Input.Assets })
}

// NewROCEStrategy measures profit over capital employed
func NewROCEStrategy() *RatioStrategy {
	return newRatio(transferpricing.MethodROCE, "tnmm-roce", "Return on capital employed: profit indicator over capital employed",
		func(rec *transferpricing.OutputRecord) *valueobject.Money { return rec.Input.CapitalEmployed })
}

// NewROOGSStrategy measures profit over out-of-group sales
func NewROOGSStrategy() *RatioStrategy {
	return newRatio(transferpricing.MethodROOGS, "tnmm-roogs", "Return on out-of-group sales: profit indicator over out-of-group sales",
		func(rec *transferpricing.OutputRecord) *valueobject.Money { return rec.Input.OGSales })
}

// NewROCOGSStrategy measures profit over cost of goods sold
func NewROCOGSStrategy() *RatioStrategy {
	return newRatio(transferpricing.MethodROCOGS, "tnmm-rocogs", "Return on cost of goods sold: profit indicator over COGS",
		func(rec *transferpricing.OutputRecord) *valueobject.Money { return rec.Lines.COGS })
}

// NewROOEStrategy measures profit over operating expenses (Berry ratio)
func NewROOEStrategy() *RatioStrategy {
	return newRatio(transferpricing.MethodROOE, "tnmm-rooe", "Berry ratio: profit indicator over operating expenses",
		func(rec *transferpricing.OutputRecord) *valueobject.Money { return rec.Lines.OperatingExpenses })
}

func newRatio(
	m transferpricing.Method,
	name, description string,
	base func(rec *transferpricing.OutputRecord) *valueobject.Money,
) *RatioStrategy {
	return &RatioStrategy{
		BaseStrategy: strategy.NewBaseStrategy(name, description),
		method:       m,
		base:         base,
	}
}

// Method returns the handled method
func (s *RatioStrategy) Method() transferpricing.Method {
	return s.method
}

// KPI returns profit indicator / base
func (s *RatioStrategy) KPI(rec *transferpricing.OutputRecord, norm currency.Normalizer) (decimal.NullDecimal, error) {
	h, err := s.homogenize(rec, norm)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return ratio(h.Amount(profitIndicator), h.Amount(base)), nil
}

// Adjustment returns target * base - profit indicator
func (s *RatioStrategy) Adjustment(
	rec *transferpricing.OutputRecord,
	_ *transferpricing.Rule,
	target decimal.Decimal,
	norm currency.Normalizer,
) (valueobject.Money, error) {
	h, err := s.homogenize(rec, norm)
	if err != nil {
		return valueobject.Money{}, err
	}
	return h.Money(base).WithAmount(target.Mul(h.Amount(base)).Sub(h.Amount(profitIndicator))), nil
}

func (s *RatioStrategy) homogenize(rec *transferpricing.OutputRecord, norm currency.Normalizer) (currency.Homogenized, error) {
	h, err := norm.Homogenize(rec.Currency(),
		currency.N(profitIndicator, rec.Lines.ProfitIndicator),
		currency.N(base, s.base(rec)),
	)
	if err != nil {
		return currency.Homogenized{}, fmt.Errorf("%s on record %d: %w", s.method, rec.Input.ID, err)
	}
	return h, nil
}

// ratio divides num by den, undefined when den is zero
func ratio(num, den decimal.Decimal) decimal.NullDecimal {
	if den.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(num.Div(den))
}
