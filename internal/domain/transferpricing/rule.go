package transferpricing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Benchmark holds the interquartile range and the target ratio used in each band.
type Benchmark struct {
	FirstQuartile decimal.NullDecimal
	ThirdQuartile decimal.NullDecimal
	TargetBelow   decimal.NullDecimal
	TargetIn      decimal.NullDecimal
	TargetAbove   decimal.NullDecimal
}

// Validity is the date window in which a rule applies. Nil bounds are open.
type Validity struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether d falls inside the window, bounds included
func (v Validity) Contains(d time.Time) bool {
	if v.From != nil && d.Before(*v.From) {
		return false
	}
	if v.To != nil && d.After(*v.To) {
		return false
	}
	return true
}

// TaxParams drive the fiscal cascade of the taxpayer groups a rule reaches.
type TaxParams struct {
	Rate             decimal.NullDecimal
	TLCFDepreciation decimal.NullDecimal
	TLCFCeiling      *valueobject.Money
	TLCFShare        decimal.NullDecimal
}

// RoyaltyParams drive the withholding tax booked on royalty adjustments.
type RoyaltyParams struct {
	WHTRate          decimal.NullDecimal
	WHTBase          decimal.NullDecimal
	WHTDeductibility decimal.NullDecimal
	SpecificRate     decimal.NullDecimal
	ExemptionRate    decimal.NullDecimal
	TaxCredits       decimal.NullDecimal
}

// Rule is a pricing rule keyed by declaring segmentation. Every field is
// optional so that rules of different specificity can be merged.
type Rule struct {
	ID                int64
	Method            Method
	Benchmark         Benchmark
	Validity          Validity
	InScope           *bool
	Modulations       []Band
	DeclaringImpact   AccountingImpact
	CounterpartImpact AccountingImpact
	Tax               TaxParams
	Royalty           RoyaltyParams
	Declaring         Segmentation
	Counterpart       Segmentation
}

// OutOfScope reports whether the rule is explicitly excluded
func (r *Rule) OutOfScope() bool {
	return r.InScope != nil && !*r.InScope
}

// Allows reports whether the rule permits an adjustment in band b
func (r *Rule) Allows(b Band) bool {
	for _, m := range r.Modulations {
		if m == b {
			return true
		}
	}
	return false
}

// Classify places kpi in its band. Missing quartiles count as zero.
func (r *Rule) Classify(kpi decimal.Decimal) Band {
	switch {
	case kpi.LessThan(orZero(r.Benchmark.FirstQuartile)):
		return BandBelow
	case kpi.GreaterThan(orZero(r.Benchmark.ThirdQuartile)):
		return BandAbove
	default:
		return BandInside
	}
}

// Target returns the target ratio for band b
func (r *Rule) Target(b Band) decimal.NullDecimal {
	switch b {
	case BandBelow:
		return r.Benchmark.TargetBelow
	case BandAbove:
		return r.Benchmark.TargetAbove
	case BandInside:
		return r.Benchmark.TargetIn
	default:
		return decimal.NullDecimal{}
	}
}

// WithFallback returns a copy of r in which every field r leaves undefined
// is taken from fallback.
func (r Rule) WithFallback(fallback Rule) Rule {
	out := r
	if out.ID == 0 {
		out.ID = fallback.ID
	}
	if out.Method == "" {
		out.Method = fallback.Method
	}
	out.Benchmark = Benchmark{
		FirstQuartile: pick(r.Benchmark.FirstQuartile, fallback.Benchmark.FirstQuartile),
		ThirdQuartile: pick(r.Benchmark.ThirdQuartile, fallback.Benchmark.ThirdQuartile),
		TargetBelow:   pick(r.Benchmark.TargetBelow, fallback.Benchmark.TargetBelow),
		TargetIn:      pick(r.Benchmark.TargetIn, fallback.Benchmark.TargetIn),
		TargetAbove:   pick(r.Benchmark.TargetAbove, fallback.Benchmark.TargetAbove),
	}
	if out.Validity.From == nil {
		out.Validity.From = fallback.Validity.From
	}
	if out.Validity.To == nil {
		out.Validity.To = fallback.Validity.To
	}
	if out.InScope == nil {
		out.InScope = fallback.InScope
	}
	if out.Modulations == nil {
		out.Modulations = append([]Band(nil), fallback.Modulations...)
	}
	if out.DeclaringImpact == ImpactUndefined {
		out.DeclaringImpact = fallback.DeclaringImpact
	}
	if out.CounterpartImpact == ImpactUndefined {
		out.CounterpartImpact = fallback.CounterpartImpact
	}
	out.Tax = TaxParams{
		Rate:             pick(r.Tax.Rate, fallback.Tax.Rate),
		TLCFDepreciation: pick(r.Tax.TLCFDepreciation, fallback.Tax.TLCFDepreciation),
		TLCFCeiling:      r.Tax.TLCFCeiling,
		TLCFShare:        pick(r.Tax.TLCFShare, fallback.Tax.TLCFShare),
	}
	if out.Tax.TLCFCeiling == nil {
		out.Tax.TLCFCeiling = valueobject.Clone(fallback.Tax.TLCFCeiling)
	}
	out.Royalty = RoyaltyParams{
		WHTRate:          pick(r.Royalty.WHTRate, fallback.Royalty.WHTRate),
		WHTBase:          pick(r.Royalty.WHTBase, fallback.Royalty.WHTBase),
		WHTDeductibility: pick(r.Royalty.WHTDeductibility, fallback.Royalty.WHTDeductibility),
		SpecificRate:     pick(r.Royalty.SpecificRate, fallback.Royalty.SpecificRate),
		ExemptionRate:    pick(r.Royalty.ExemptionRate, fallback.Royalty.ExemptionRate),
		TaxCredits:       pick(r.Royalty.TaxCredits, fallback.Royalty.TaxCredits),
	}
	out.Declaring = r.Declaring.Merge(fallback.Declaring)
	out.Counterpart = r.Counterpart.Merge(fallback.Counterpart)
	return out
}

func pick(primary, fallback decimal.NullDecimal) decimal.NullDecimal {
	if primary.Valid {
		return primary
	}
	return fallback
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}
