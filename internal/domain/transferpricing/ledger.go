package transferpricing

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Outcome is what one pass computed for a record under its rule.
// Adjustment is nil when the fired band carries no target.
type Outcome struct {
	KPI        decimal.NullDecimal
	Band       Band
	Adjustment *valueobject.Money
}

// HasAdjustment reports whether the outcome moves any line
func (o Outcome) HasAdjustment() bool {
	return o.Adjustment != nil && !o.Adjustment.IsZero()
}

// Apply books an outcome on rec and the opposite movement on counterpart.
// counterpart may be nil, in which case only rec is touched.
func Apply(rec, counterpart *OutputRecord, rule *Rule, out Outcome, norm currency.Normalizer) error {
	if out.KPI.Valid && !rec.KPIValue.Valid {
		rec.KPIValue = out.KPI
	}
	rec.KPI = rule.Method.KPI()
	if out.Band.IsValid() && rec.FiredBand == BandUndefined {
		rec.FiredBand = out.Band
	}
	if !out.HasAdjustment() {
		return nil
	}
	tpa := *out.Adjustment
	neg := tpa.Negate()

	l := ledger{norm: norm}
	l.shift(rec, &rec.Adjustment, tpa)
	l.shift(rec, &rec.Lines.ProfitIndicator, tpa)
	if counterpart != nil {
		l.shift(counterpart, &counterpart.Adjustment, neg)
		l.shift(counterpart, &counterpart.Lines.ProfitIndicator, neg)
	}

	if rule.Method == MethodRoyalty {
		l.shift(rec, &rec.Lines.RoyaltyPaid, tpa)
		if counterpart != nil {
			l.shift(counterpart, &counterpart.Lines.RoyaltyReceived, neg)
			l.shift(counterpart, &counterpart.Lines.RoyaltyReceivedSpecificRate,
				neg.Multiply(orZero(rule.Royalty.SpecificRate)))
		}
	}

	switch rule.DeclaringImpact {
	case ImpactSales:
		l.shift(rec, &rec.Lines.Sales, tpa)
	case ImpactCOGS:
		l.shift(rec, &rec.Lines.COGS, neg)
	case ImpactOperatingExpenses:
		l.shift(rec, &rec.Lines.OperatingExpenses, neg)
	}
	if counterpart != nil {
		switch rule.CounterpartImpact {
		case ImpactSales:
			l.shift(counterpart, &counterpart.Lines.Sales, neg)
		case ImpactCOGS:
			l.shift(counterpart, &counterpart.Lines.COGS, tpa)
		case ImpactOperatingExpenses:
			l.shift(counterpart, &counterpart.Lines.OperatingExpenses, tpa)
		}
	}
	return l.err
}

// ApplyWithholding accumulates the withholding-tax deltas of a royalty
// adjustment. Other methods and empty adjustments are ignored.
func ApplyWithholding(rec, counterpart *OutputRecord, rule *Rule, tpa *valueobject.Money, norm currency.Normalizer) error {
	if rule.Method != MethodRoyalty || tpa == nil || tpa.IsZero() {
		return nil
	}
	royalty := rule.Royalty
	// base * rate * tpa
	withheld := tpa.Multiply(orZero(royalty.WHTBase).Mul(orZero(royalty.WHTRate)))
	one := decimal.NewFromInt(1)

	l := ledger{norm: norm}
	l.shift(rec, &rec.Withholding.DeltaWHTRoyaltyPaid, withheld.Negate())
	l.shift(rec, &rec.Withholding.DeltaPBTWHTRoyaltyPaid,
		withheld.Multiply(one.Sub(orZero(royalty.WHTDeductibility))))
	if counterpart != nil {
		exemption := orZero(royalty.ExemptionRate)
		l.shift(counterpart, &counterpart.Withholding.DeltaWHTRoyaltyReceived, withheld.Negate())
		l.shift(counterpart, &counterpart.Withholding.PossibleWHTTaxCredits,
			withheld.Negate().Multiply(orZero(royalty.TaxCredits).Mul(one.Sub(exemption))))
		l.shift(counterpart, &counterpart.Withholding.DeltaPBTWHTRoyaltyReceived,
			withheld.Multiply(exemption))
		l.shift(counterpart, &counterpart.Withholding.DeltaTaxWHTRoyaltyReceived,
			withheld.Multiply(orZero(royalty.SpecificRate).Mul(exemption)))
	}
	return l.err
}

// ledger applies a sequence of line movements and keeps the first error.
type ledger struct {
	norm currency.Normalizer
	err  error
}

func (l *ledger) shift(owner *OutputRecord, line **valueobject.Money, delta valueobject.Money) {
	if l.err != nil {
		return
	}
	moved, err := Sum(l.norm, owner.Currency(), *line, &delta)
	if err != nil {
		l.err = fmt.Errorf("record %d: %w", owner.Input.ID, err)
		return
	}
	*line = moved
}

// Sum adds the present values in currency cur, or in the currency of the
// first present value when cur is empty. It returns nil when every value is
// absent.
func Sum(norm currency.Normalizer, cur valueobject.Currency, values ...*valueobject.Money) (*valueobject.Money, error) {
	named := make([]currency.Named, 0, len(values))
	present := false
	for i, v := range values {
		if v != nil {
			present = true
		}
		named = append(named, currency.N(strconv.Itoa(i), v))
	}
	if !present {
		return nil, nil
	}
	h, err := norm.Homogenize(cur, named...)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, amount := range h.Values {
		total = total.Add(amount)
	}
	return valueobject.Zero(h.Currency).WithAmount(total).Ptr(), nil
}
