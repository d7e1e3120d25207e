package method

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

// RoyaltyStrategy sets the royalty paid to a target rate of the royalty base.
type RoyaltyStrategy struct {
	strategy.BaseStrategy
}

// NewRoyaltyStrategy creates the royalty strategy
func NewRoyaltyStrategy() *RoyaltyStrategy {
	return &RoyaltyStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"royalty",
			"Royalty rate: royalty paid brought to a target rate of the royalty base",
		),
	}
}

// Method returns the handled method
func (s *RoyaltyStrategy) Method() transferpricing.Method {
	return transferpricing.MethodRoyalty
}

// KPI returns profit indicator / operating expenses
func (s *RoyaltyStrategy) KPI(rec *transferpricing.OutputRecord, norm currency.Normalizer) (decimal.NullDecimal, error) {
	h, err := norm.Homogenize(rec.Currency(),
		currency.N(profitIndicator, rec.Lines.ProfitIndicator),
		currency.N("operating_expenses", rec.Lines.OperatingExpenses),
	)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s on record %d: %w", s.Method(), rec.Input.ID, err)
	}
	return ratio(h.Amount(profitIndicator), h.Amount("operating_expenses")), nil
}

// Adjustment returns -royalty paid - target * royalty base
func (s *RoyaltyStrategy) Adjustment(
	rec *transferpricing.OutputRecord,
	_ *transferpricing.Rule,
	target decimal.Decimal,
	norm currency.Normalizer,
) (valueobject.Money, error) {
	h, err := norm.Homogenize(rec.Currency(),
		currency.N("base_royalty", rec.Input.BaseRoyalty),
		currency.N("royalty_paid", rec.Lines.RoyaltyPaid),
	)
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("%s on record %d: %w", s.Method(), rec.Input.ID, err)
	}
	amount := h.Amount("royalty_paid").Neg().Sub(target.Mul(h.Amount("base_royalty")))
	return h.Money("royalty_paid").WithAmount(amount), nil
}
