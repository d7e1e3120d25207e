package strategy

import (
	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	"github.com/tpa/backend/internal/domain/transferpricing"
)

// MethodStrategy measures the KPI of one transfer-pricing method and inverts
// it into the adjustment reaching a target ratio.
type MethodStrategy interface {
	Strategy
	// Method returns the transfer-pricing method handled
	Method() transferpricing.Method
	// KPI computes the ratio for rec in its local currency. The result is
	// undefined when the denominator is zero.
	KPI(rec *transferpricing.OutputRecord, norm currency.Normalizer) (decimal.NullDecimal, error)
	// Adjustment computes the money moving rec's KPI to target, in rec's
	// local currency.
	Adjustment(rec *transferpricing.OutputRecord, rule *transferpricing.Rule, target decimal.Decimal, norm currency.Normalizer) (valueobject.Money, error)
}
