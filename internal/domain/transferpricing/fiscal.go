package transferpricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/currency"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
)

// Participant is a ruled output taking part in the fiscal cascade, with the
// rule it was adjusted under.
type Participant struct {
	Output *OutputRecord
	Rule   *Rule
}

// TaxPayer aggregates the members of one taxpayer group. All amounts are in
// Currency.
type TaxPayer struct {
	ID       string
	Currency valueobject.Currency
	Members  []*OutputRecord
	Tax      TaxParams

	PBT                        decimal.Decimal
	DeltaPBT                   decimal.Decimal
	TaxExpenses                decimal.Decimal
	TLCFN                      decimal.Decimal
	TLCFN1                     decimal.Decimal
	DeltaWHTRoyaltyReceived    decimal.Decimal
	DeltaWHTRoyaltyPaid        decimal.Decimal
	DeltaPBTWHTRoyaltyReceived decimal.Decimal
	DeltaPBTWHTRoyaltyPaid     decimal.Decimal
	PossibleWHTTaxCredits      decimal.Decimal
	DeltaTaxWHTRoyaltyReceived decimal.Decimal
	RoyaltyReceived            decimal.Decimal
	RoyaltyReceivedSpecific    decimal.Decimal

	TLCFConsumedInit      decimal.Decimal
	UnexplainedConsumed   decimal.Decimal
	TLCFCreatedInit       decimal.Decimal
	UnexplainedCreated    decimal.Decimal
	TLCFCreatedNew        decimal.Decimal
	TLCFConsumedNew       decimal.Decimal
	NewTLCFBalance        decimal.Decimal
	DeltaTaxInit          decimal.Decimal
	MeanTaxRate           decimal.Decimal
	DeltaTaxBis           decimal.Decimal
	ConsumableTaxCredit   decimal.Decimal
	DeltaTax              decimal.Decimal
	FiscalPBT             decimal.Decimal
	TLCFMovement          decimal.Decimal
	LossGeneratedConsumed decimal.Decimal
	WHTPaid               decimal.Decimal
}

// Money expresses a group amount in the group currency.
func (t *TaxPayer) Money(amount decimal.Decimal) valueobject.Money {
	return valueobject.Zero(t.Currency).WithAmount(amount)
}

// PBTDelta is the group adjustment including its withholding PBT effects.
func (t *TaxPayer) PBTDelta() decimal.Decimal {
	return t.DeltaPBT.Add(t.DeltaPBTWHTRoyaltyPaid).Add(t.DeltaPBTWHTRoyaltyReceived)
}

// Aggregate groups participants by taxpayer, runs the fiscal cascade for
// each group and projects the results back onto the members. Participants
// without a taxpayer are skipped. Only input values and adjustment
// accumulators are read, so running it again yields the same projection.
func Aggregate(participants []Participant, norm currency.Normalizer) ([]*TaxPayer, error) {
	groups := make(map[string][]Participant)
	var order []string
	seen := make(map[*OutputRecord]bool)
	for _, p := range participants {
		if p.Output == nil || p.Output.Input.Taxpayer == "" || seen[p.Output] {
			continue
		}
		seen[p.Output] = true
		id := p.Output.Input.Taxpayer
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], p)
	}

	out := make([]*TaxPayer, 0, len(order))
	for _, id := range order {
		tp, err := newTaxPayer(id, groups[id], norm)
		if err != nil {
			return nil, err
		}
		tp.cascade()
		if err := tp.redistribute(norm); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, nil
}

func newTaxPayer(id string, members []Participant, norm currency.Normalizer) (*TaxPayer, error) {
	tp := &TaxPayer{ID: id, Currency: members[0].Output.Currency()}
	usePBT := false
	for _, m := range members {
		if m.Output.Input.BeforePBT != nil {
			usePBT = true
			break
		}
	}
	for _, m := range members {
		o := m.Output
		pbt := o.Input.ProfitIndicator
		if usePBT {
			pbt = o.Input.BeforePBT
		}
		h, err := norm.Homogenize(tp.Currency,
			currency.N("pbt", pbt),
			currency.N("adj", o.Adjustment),
			currency.N("tax", o.Input.BeforeTaxExpenses),
			currency.N("tlcfn", o.Input.TLCFN),
			currency.N("tlcfn1", o.Input.TLCFN1),
			currency.N("whtRcv", o.Withholding.DeltaWHTRoyaltyReceived),
			currency.N("whtPaid", o.Withholding.DeltaWHTRoyaltyPaid),
			currency.N("pbtWhtRcv", o.Withholding.DeltaPBTWHTRoyaltyReceived),
			currency.N("pbtWhtPaid", o.Withholding.DeltaPBTWHTRoyaltyPaid),
			currency.N("credits", o.Withholding.PossibleWHTTaxCredits),
			currency.N("taxWhtRcv", o.Withholding.DeltaTaxWHTRoyaltyReceived),
			currency.N("royRcv", o.Lines.RoyaltyReceived),
			currency.N("royRcvSpecific", o.Lines.RoyaltyReceivedSpecificRate),
		)
		if err != nil {
			return nil, fmt.Errorf("taxpayer %s, record %d: %w", id, o.Input.ID, err)
		}
		if tp.Currency == "" {
			tp.Currency = h.Currency
		}
		tp.PBT = tp.PBT.Add(h.Amount("pbt"))
		tp.DeltaPBT = tp.DeltaPBT.Add(h.Amount("adj"))
		tp.TaxExpenses = tp.TaxExpenses.Add(h.Amount("tax"))
		tp.TLCFN = tp.TLCFN.Add(h.Amount("tlcfn"))
		tp.TLCFN1 = tp.TLCFN1.Add(h.Amount("tlcfn1"))
		tp.DeltaWHTRoyaltyReceived = tp.DeltaWHTRoyaltyReceived.Add(h.Amount("whtRcv"))
		tp.DeltaWHTRoyaltyPaid = tp.DeltaWHTRoyaltyPaid.Add(h.Amount("whtPaid"))
		tp.DeltaPBTWHTRoyaltyReceived = tp.DeltaPBTWHTRoyaltyReceived.Add(h.Amount("pbtWhtRcv"))
		tp.DeltaPBTWHTRoyaltyPaid = tp.DeltaPBTWHTRoyaltyPaid.Add(h.Amount("pbtWhtPaid"))
		tp.PossibleWHTTaxCredits = tp.PossibleWHTTaxCredits.Add(h.Amount("credits"))
		tp.DeltaTaxWHTRoyaltyReceived = tp.DeltaTaxWHTRoyaltyReceived.Add(h.Amount("taxWhtRcv"))
		tp.RoyaltyReceived = tp.RoyaltyReceived.Add(h.Amount("royRcv"))
		tp.RoyaltyReceivedSpecific = tp.RoyaltyReceivedSpecific.Add(h.Amount("royRcvSpecific"))

		if m.Rule != nil {
			tp.Tax = m.Rule.Tax
		}
		tp.Members = append(tp.Members, o)
	}
	if tp.Tax.TLCFCeiling != nil {
		ceiling, err := norm.Convert(*tp.Tax.TLCFCeiling, tp.Currency)
		if err != nil {
			return nil, fmt.Errorf("taxpayer %s ceiling: %w", id, err)
		}
		tp.Tax.TLCFCeiling = ceiling.Ptr()
	}
	return tp, nil
}

// usable returns the part of profit a carryforward can absorb: profit up to
// the ceiling plus the configured share of what exceeds it. Without a
// ceiling the whole profit is usable, a loss included.
func (t *TaxPayer) usable(profit decimal.Decimal) decimal.Decimal {
	if t.Tax.TLCFCeiling == nil {
		return profit
	}
	ceiling := t.Tax.TLCFCeiling.Amount()
	excess := decimal.Max(decimal.Zero, profit.Sub(ceiling))
	return decimal.Min(ceiling, profit).Add(orZero(t.Tax.TLCFShare).Mul(excess))
}

// cascade computes the carryforward and tax quantities in dependency order.
func (t *TaxPayer) cascade() {
	zero := decimal.Zero
	one := decimal.NewFromInt(1)
	rate := orZero(t.Tax.Rate)
	prior := t.TLCFN1.Mul(one.Sub(orZero(t.Tax.TLCFDepreciation)))

	t.TLCFConsumedInit = decimal.Max(zero, prior.Sub(t.TLCFN))

	var usableNow decimal.Decimal
	if t.Tax.TLCFCeiling == nil {
		usableNow = decimal.Max(zero, t.PBT)
	} else {
		ceiling := t.Tax.TLCFCeiling.Amount()
		usableNow = decimal.Max(zero, decimal.Min(ceiling, t.PBT)).
			Add(orZero(t.Tax.TLCFShare).Mul(decimal.Max(zero, t.PBT.Sub(ceiling))))
	}
	t.UnexplainedConsumed = t.TLCFConsumedInit.Sub(decimal.Min(prior, usableNow))

	t.TLCFCreatedInit = decimal.Min(zero, prior.Sub(t.TLCFN)).Neg()
	t.UnexplainedCreated = t.TLCFCreatedInit.Add(decimal.Min(zero, t.PBT))

	adjusted := t.PBT.Add(t.PBTDelta())
	t.TLCFCreatedNew = decimal.Max(zero, decimal.Min(zero, adjusted.Add(t.UnexplainedCreated)).Neg())
	t.TLCFConsumedNew = decimal.Max(zero, decimal.Min(prior, t.usable(adjusted).Add(t.UnexplainedConsumed)))
	t.NewTLCFBalance = prior.Add(t.TLCFCreatedNew).Sub(t.TLCFConsumedNew)

	royaltyTax := t.RoyaltyReceived.Mul(rate).Sub(t.RoyaltyReceivedSpecific)
	t.DeltaTaxInit = t.DeltaPBT.Mul(rate).Sub(royaltyTax.Add(t.DeltaTaxWHTRoyaltyReceived))
	if t.DeltaPBT.IsZero() {
		t.MeanTaxRate = zero
	} else {
		t.MeanTaxRate = t.DeltaTaxInit.Div(t.DeltaPBT)
	}
	movement := t.TLCFConsumedNew.Add(t.TLCFCreatedNew).Sub(t.TLCFConsumedInit.Add(t.TLCFCreatedInit))
	t.DeltaTaxBis = decimal.Max(decimal.Max(zero, t.TaxExpenses).Neg(), t.DeltaTaxInit.Sub(t.MeanTaxRate.Mul(movement)))
	t.ConsumableTaxCredit = decimal.Max(zero, decimal.Min(t.PossibleWHTTaxCredits, t.DeltaTaxBis.Add(t.TaxExpenses)))
	t.DeltaTax = t.DeltaTaxBis.Sub(t.ConsumableTaxCredit).Add(t.DeltaWHTRoyaltyReceived)

	t.FiscalPBT = adjusted
	t.TLCFMovement = t.TLCFN.Sub(t.NewTLCFBalance)
	t.LossGeneratedConsumed = t.TLCFCreatedNew.Sub(t.TLCFConsumedNew)
	t.WHTPaid = t.DeltaWHTRoyaltyReceived
}

// redistribute projects the group results onto each member, weighted by the
// member's share of the group PBT delta.
func (t *TaxPayer) redistribute(norm currency.Normalizer) error {
	for _, o := range t.Members {
		cur := o.Currency()
		own, err := norm.Homogenize(cur,
			currency.N("adj", o.Adjustment),
			currency.N("pbtWhtPaid", o.Withholding.DeltaPBTWHTRoyaltyPaid),
			currency.N("pbtWhtRcv", o.Withholding.DeltaPBTWHTRoyaltyReceived),
		)
		if err != nil {
			return fmt.Errorf("taxpayer %s, record %d: %w", t.ID, o.Input.ID, err)
		}
		if cur == "" {
			cur = own.Currency
		}
		if cur == "" {
			cur = t.Currency
		}
		group, err := norm.Homogenize(cur,
			currency.N("delta", t.Money(t.PBTDelta()).Ptr()),
			currency.N("tax", t.Money(t.DeltaTax).Ptr()),
			currency.N("movement", t.Money(t.TLCFMovement).Ptr()),
			currency.N("generated", t.Money(t.LossGeneratedConsumed).Ptr()),
		)
		if err != nil {
			return fmt.Errorf("taxpayer %s, record %d: %w", t.ID, o.Input.ID, err)
		}
		ownDelta := own.Amount("adj").Add(own.Amount("pbtWhtPaid")).Add(own.Amount("pbtWhtRcv"))
		key := decimal.Zero
		if denominator := group.Amount("delta"); !denominator.IsZero() {
			key = ownDelta.Div(denominator)
		}
		weighted := func(name string) valueobject.Money {
			return valueobject.Zero(group.Currency).WithAmount(group.Amount(name).Mul(key))
		}

		pbt, err := Sum(norm, cur, o.Input.BeforePBT, o.Adjustment,
			o.Withholding.DeltaPBTWHTRoyaltyPaid, o.Withholding.DeltaPBTWHTRoyaltyReceived)
		if err != nil {
			return err
		}
		tax := weighted("tax")
		taxExpenses, err := Sum(norm, cur, o.Input.BeforeTaxExpenses, &tax)
		if err != nil {
			return err
		}
		movement := weighted("movement").Negate()
		tlcf, err := Sum(norm, cur, o.Input.TLCFN, &movement)
		if err != nil {
			return err
		}

		o.Fiscal = Fiscal{
			PBT:                        pbt,
			TaxExpenses:                taxExpenses,
			TLCFN:                      tlcf,
			TaxLossesGeneratedConsumed: weighted("generated").Ptr(),
			WHTPaid:                    valueobject.Clone(o.Withholding.DeltaWHTRoyaltyPaid),
		}
	}
	return nil
}
