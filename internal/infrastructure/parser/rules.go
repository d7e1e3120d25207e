package parser

import (
	tp "github.com/tpa/backend/internal/domain/transferpricing"
)

// Rule attribute names
const (
	FieldFirstQuartile     = "atp_benchmark_first_quartil"
	FieldThirdQuartile     = "atp_benchmark_third_quartil"
	FieldTargetBelow       = "atp_benchmark_target_below"
	FieldTargetIn          = "atp_benchmark_target_in"
	FieldTargetAbove       = "atp_benchmark_target_above"
	FieldMethod            = "atp_tp_method"
	FieldDateFrom          = "atp_date_inf"
	FieldDateTo            = "atp_date_sup"
	FieldDeclaringImpact   = "atp_accounting_impact_for_declaring"
	FieldCounterpartImpact = "atp_accounting_impact_for_counterpart"
	FieldInScope           = "atp_in_scope"
	FieldModulation        = "atp_rule_application_modulation"
	FieldTaxRate           = "atp_tax_rate"
	FieldTLCFDepreciation  = "atp_tax_losses_carryforward_depreciation"
	FieldTLCFCeiling       = "atp_tax_loss_carryforward_ceiling_for_use"
	FieldTLCFShare         = "atp_share_of_tax_losses_carryfoward"
	FieldWHTRate           = "atp_royalties_wht_rates"
	FieldWHTBase           = "atp_royalties_wht_base"
	FieldWHTDeductibility  = "atp_royalties_wht_deductibility"
	FieldSpecificRate      = "atp_royalties_specific_rate"
	FieldExemptionRate     = "atp_royalties_rate_of_exemption"
	FieldTaxCredits        = "atp_royalties_tax_credits"
)

// ParseRules converts raw rule entries. Entries without an integer id are
// numbered by position, starting at 1.
func ParseRules(raw []map[string]any) ([]tp.Rule, error) {
	rules := make([]tp.Rule, 0, len(raw))
	for i, m := range raw {
		r, err := parseRule(i, entry(m))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func parseRule(row int, e entry) (tp.Rule, error) {
	declaring, err := e.segmentation(row, tp.DeclaringSegmentationPrefix)
	if err != nil {
		return tp.Rule{}, err
	}
	counterpart, err := e.segmentation(row, tp.CounterpartSegmentationPrefix)
	if err != nil {
		return tp.Rule{}, err
	}

	id, ok := e.integer(FieldID)
	if !ok {
		id = int64(row + 1)
	}

	return tp.Rule{
		ID:     id,
		Method: e.method(FieldMethod),
		Benchmark: tp.Benchmark{
			FirstQuartile: e.number(FieldFirstQuartile),
			ThirdQuartile: e.number(FieldThirdQuartile),
			TargetBelow:   e.number(FieldTargetBelow),
			TargetIn:      e.number(FieldTargetIn),
			TargetAbove:   e.number(FieldTargetAbove),
		},
		Validity: tp.Validity{
			From: e.date(FieldDateFrom),
			To:   e.date(FieldDateTo),
		},
		InScope:           e.boolean(FieldInScope),
		Modulations:       e.bands(FieldModulation),
		DeclaringImpact:   e.impact(FieldDeclaringImpact),
		CounterpartImpact: e.impact(FieldCounterpartImpact),
		Tax: tp.TaxParams{
			Rate:             e.number(FieldTaxRate),
			TLCFDepreciation: e.number(FieldTLCFDepreciation),
			TLCFCeiling:      e.money(FieldTLCFCeiling, ""),
			TLCFShare:        e.number(FieldTLCFShare),
		},
		Royalty: tp.RoyaltyParams{
			WHTRate:          e.number(FieldWHTRate),
			WHTBase:          e.number(FieldWHTBase),
			WHTDeductibility: e.number(FieldWHTDeductibility),
			SpecificRate:     e.number(FieldSpecificRate),
			ExemptionRate:    e.number(FieldExemptionRate),
			TaxCredits:       e.number(FieldTaxCredits),
		},
		Declaring:   declaring,
		Counterpart: counterpart,
	}, nil
}
