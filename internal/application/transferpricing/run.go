package transferpricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/strategy"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

// step is a ruled record with everything a pass needs to adjust it.
type step struct {
	output      *tp.OutputRecord
	counterpart *tp.OutputRecord
	rule        *tp.Rule
	method      strategy.MethodStrategy
}

// run is the mutable state of one computation.
type run struct {
	norm    currency.Normalizer
	outputs []*tp.OutputRecord
	steps   []step
}

// pass evaluates every step once, in order, and returns the sum of the
// absolute adjustments it booked.
func (r *run) pass() (decimal.Decimal, error) {
	total := decimal.Zero
	for _, st := range r.steps {
		moved, err := r.evaluate(st)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(moved.Abs())
	}
	return total, nil
}

// evaluate computes and books the adjustment of a single step. A record
// that is its own counterpart, whose rule names no method or whose KPI is
// undefined is left alone.
func (r *run) evaluate(st step) (decimal.Decimal, error) {
	if st.output == st.counterpart || st.method == nil {
		return decimal.Zero, nil
	}
	kpi, err := st.method.KPI(st.output, r.norm)
	if err != nil {
		return decimal.Zero, err
	}
	if !kpi.Valid {
		return decimal.Zero, nil
	}

	out := tp.Outcome{KPI: kpi, Band: st.rule.Classify(kpi.Decimal)}
	if st.rule.Allows(out.Band) {
		if target := st.rule.Target(out.Band); target.Valid {
			tpa, err := st.method.Adjustment(st.output, st.rule, target.Decimal, r.norm)
			if err != nil {
				return decimal.Zero, err
			}
			out.Adjustment = &tpa
		}
	}

	if err := tp.Apply(st.output, st.counterpart, st.rule, out, r.norm); err != nil {
		return decimal.Zero, fmt.Errorf("rule %d: %w", st.rule.ID, err)
	}
	if err := tp.ApplyWithholding(st.output, st.counterpart, st.rule, out.Adjustment, r.norm); err != nil {
		return decimal.Zero, fmt.Errorf("rule %d: %w", st.rule.ID, err)
	}
	if out.Adjustment == nil {
		return decimal.Zero, nil
	}
	return out.Adjustment.Amount(), nil
}

// participants lists the ruled outputs for the fiscal aggregation.
// Counterparts take part only through their own rule.
func (r *run) participants() []tp.Participant {
	out := make([]tp.Participant, 0, len(r.steps))
	for _, st := range r.steps {
		out = append(out, tp.Participant{Output: st.output, Rule: st.rule})
	}
	return out
}
