package method

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

const sales = "before_sales"

var one = decimal.NewFromInt(1)

// ROSStrategy measures profit over sales before adjustment. When the rule
// books the adjustment on sales, the adjustment also grows the denominator.
type ROSStrategy struct {
	strategy.BaseStrategy
}

// NewROSStrategy creates the return-on-sales strategy
func NewROSStrategy() *ROSStrategy {
	return &ROSStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"tnmm-ros",
			"Return on sales: profit indicator over sales",
		),
	}
}

// Method returns the handled method
func (s *ROSStrategy) Method() transferpricing.Method {
	return transferpricing.MethodROS
}

// KPI returns profit indicator / sales
func (s *ROSStrategy) KPI(rec *transferpricing.OutputRecord, norm currency.Normalizer) (decimal.NullDecimal, error) {
	h, err := salesAndProfit(rec, norm, s.Method())
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return ratio(h.Amount(profitIndicator), h.Amount(sales)), nil
}

// Adjustment returns (t*S - pi) / (1 - t) when booked on sales, t*S - pi otherwise
func (s *ROSStrategy) Adjustment(
	rec *transferpricing.OutputRecord,
	rule *transferpricing.Rule,
	target decimal.Decimal,
	norm currency.Normalizer,
) (valueobject.Money, error) {
	h, err := salesAndProfit(rec, norm, s.Method())
	if err != nil {
		return valueobject.Money{}, err
	}
	gap := target.Mul(h.Amount(sales)).Sub(h.Amount(profitIndicator))
	if rule.DeclaringImpact != transferpricing.ImpactSales {
		return h.Money(sales).WithAmount(gap), nil
	}
	divisor := one.Sub(target)
	if divisor.IsZero() {
		return valueobject.Money{}, fmt.Errorf("%w: rule %d: return on sales target %s cannot be reached through sales",
			shared.ErrInvalidInput, rule.ID, target)
	}
	return h.Money(sales).WithAmount(gap.Div(divisor)), nil
}

// ROCStrategy measures profit over costs, costs being sales minus profit.
type ROCStrategy struct {
	strategy.BaseStrategy
}

// NewROCStrategy creates the return-on-costs strategy
func NewROCStrategy() *ROCStrategy {
	return &ROCStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"tnmm-roc",
			"Return on costs: profit indicator over sales minus profit indicator",
		),
	}
}

// Method returns the handled method
func (s *ROCStrategy) Method() transferpricing.Method {
	return transferpricing.MethodROC
}

// KPI returns profit indicator / (sales - profit indicator)
func (s *ROCStrategy) KPI(rec *transferpricing.OutputRecord, norm currency.Normalizer) (decimal.NullDecimal, error) {
	h, err := salesAndProfit(rec, norm, s.Method())
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	pi := h.Amount(profitIndicator)
	return ratio(pi, h.Amount(sales).Sub(pi)), nil
}

// Adjustment returns t/(1+t)*S - pi when booked on sales, t*S - pi*(1+t) otherwise
func (s *ROCStrategy) Adjustment(
	rec *transferpricing.OutputRecord,
	rule *transferpricing.Rule,
	target decimal.Decimal,
	norm currency.Normalizer,
) (valueobject.Money, error) {
	h, err := salesAndProfit(rec, norm, s.Method())
	if err != nil {
		return valueobject.Money{}, err
	}
	pi := h.Amount(profitIndicator)
	s0 := h.Amount(sales)
	markup := one.Add(target)
	if rule.DeclaringImpact != transferpricing.ImpactSales {
		return h.Money(sales).WithAmount(target.Mul(s0).Sub(pi.Mul(markup))), nil
	}
	if markup.IsZero() {
		return valueobject.Money{}, fmt.Errorf("%w: rule %d: return on costs target %s cannot be reached through sales",
			shared.ErrInvalidInput, rule.ID, target)
	}
	return h.Money(sales).WithAmount(target.Div(markup).Mul(s0).Sub(pi)), nil
}

func salesAndProfit(rec *transferpricing.OutputRecord, norm currency.Normalizer, m transferpricing.Method) (currency.Homogenized, error) {
	h, err := norm.Homogenize(rec.Currency(),
		currency.N(profitIndicator, rec.Lines.ProfitIndicator),
		currency.N(sales, rec.Input.BeforeSales),
	)
	if err != nil {
		return currency.Homogenized{}, fmt.Errorf("%s on record %d: %w", m, rec.Input.ID, err)
	}
	return h, nil
}
