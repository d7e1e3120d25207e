package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tpa/backend/internal/domain/shared/valueobject"
	tp "github.com/tpa/backend/internal/domain/transferpricing"
	"github.com/tpa/backend/internal/infrastructure/parser"
)

// AffectationRequest carries raw financial entries and raw rules
// @Name HandlerAffectationRequest
type AffectationRequest struct {
	Data  json.RawMessage `json:"data" binding:"required"`
	Rules json.RawMessage `json:"rules" binding:"required"`
}

// ComputationRequest carries a full computation input. Without
// exchangeRates the stored rates for rateBase at rateDate are used.
// @Name HandlerComputationRequest
type ComputationRequest struct {
	Data          json.RawMessage    `json:"data" binding:"required"`
	Rules         json.RawMessage    `json:"rules" binding:"required"`
	ExchangeRates *parser.RatesInput `json:"exchangeRates"`
	RateDate      string             `json:"rateDate" binding:"omitempty,datetime=2006-01-02" example:"2024-12-31"`
	RateBase      string             `json:"rateBase" binding:"omitempty,len=3,alpha" example:"EUR"`
}

// RecordResponse is a financial record in its wire form. Segmentation
// attributes are flattened into atp_declaring_entity_segmentation_N keys.
type RecordResponse struct {
	ID                int64              `json:"id"`
	Taxpayer          string             `json:"atp_taxpayer,omitempty"`
	LocalCurrency     string             `json:"local_currency,omitempty"`
	Assets            *valueobject.Money `json:"atp_assets,omitempty"`
	CapitalEmployed   *valueobject.Money `json:"atp_capital_employed,omitempty"`
	BeforeSales       *valueobject.Money `json:"atp_before_sales,omitempty"`
	OGSales           *valueobject.Money `json:"atp_og_sales,omitempty"`
	COGS              *valueobject.Money `json:"atp_cogs,omitempty"`
	RoyaltyPaid       *valueobject.Money `json:"atp_royalty_paid,omitempty"`
	OperatingExpenses *valueobject.Money `json:"atp_operating_expenses,omitempty"`
	ProfitIndicator   *valueobject.Money `json:"atp_profit_indicator,omitempty"`
	BeforePBT         *valueobject.Money `json:"atp_before_pbt,omitempty"`
	BeforeTaxExpenses *valueobject.Money `json:"atp_before_tax_expenses,omitempty"`
	TLCFN             *valueobject.Money `json:"atp_tax_losses_carryforward_n,omitempty"`
	TLCFN1            *valueobject.Money `json:"atp_tax_losses_carryforward_n1,omitempty"`
	Tax               *valueobject.Money `json:"atp_tax,omitempty"`
	BaseRoyalty       *valueobject.Money `json:"atp_base_royalty,omitempty"`
	FirmCreationDate  string             `json:"atp_firm_creation_date,omitempty"`
	Declaring         tp.Segmentation    `json:"-"`
}

// MarshalJSON flattens the segmentation
func (r RecordResponse) MarshalJSON() ([]byte, error) {
	type plain RecordResponse
	return mergeObjects(plain(r), segmentationFields(tp.DeclaringSegmentationPrefix, r.Declaring))
}

// RuleResponse is a pricing rule in its wire form
type RuleResponse struct {
	ID                int64               `json:"id"`
	Method            string              `json:"atp_tp_method,omitempty"`
	FirstQuartile     decimal.NullDecimal `json:"atp_benchmark_first_quartil"`
	ThirdQuartile     decimal.NullDecimal `json:"atp_benchmark_third_quartil"`
	TargetBelow       decimal.NullDecimal `json:"atp_benchmark_target_below"`
	TargetIn          decimal.NullDecimal `json:"atp_benchmark_target_in"`
	TargetAbove       decimal.NullDecimal `json:"atp_benchmark_target_above"`
	DateFrom          string              `json:"atp_date_inf,omitempty"`
	DateTo            string              `json:"atp_date_sup,omitempty"`
	InScope           *bool               `json:"atp_in_scope,omitempty"`
	Modulations       []int               `json:"atp_rule_application_modulation"`
	DeclaringImpact   int                 `json:"atp_accounting_impact_for_declaring,omitempty"`
	CounterpartImpact int                 `json:"atp_accounting_impact_for_counterpart,omitempty"`
	TaxRate           decimal.NullDecimal `json:"atp_tax_rate"`
	TLCFDepreciation  decimal.NullDecimal `json:"atp_tax_losses_carryforward_depreciation"`
	TLCFCeiling       *valueobject.Money  `json:"atp_tax_loss_carryforward_ceiling_for_use,omitempty"`
	TLCFShare         decimal.NullDecimal `json:"atp_share_of_tax_losses_carryfoward"`
	WHTRate           decimal.NullDecimal `json:"atp_royalties_wht_rates"`
	WHTBase           decimal.NullDecimal `json:"atp_royalties_wht_base"`
	WHTDeductibility  decimal.NullDecimal `json:"atp_royalties_wht_deductibility"`
	SpecificRate      decimal.NullDecimal `json:"atp_royalties_specific_rate"`
	ExemptionRate     decimal.NullDecimal `json:"atp_royalties_rate_of_exemption"`
	TaxCredits        decimal.NullDecimal `json:"atp_royalties_tax_credits"`
	Declaring         tp.Segmentation     `json:"-"`
	Counterpart       tp.Segmentation     `json:"-"`
}

// MarshalJSON flattens both segmentations
func (r RuleResponse) MarshalJSON() ([]byte, error) {
	type plain RuleResponse
	return mergeObjects(
		plain(r),
		segmentationFields(tp.DeclaringSegmentationPrefix, r.Declaring),
		segmentationFields(tp.CounterpartSegmentationPrefix, r.Counterpart),
	)
}

// AffectationResponse is a record with every rule matching it, most specific first
type AffectationResponse struct {
	Record RecordResponse `json:"-"`
	Rules  []RuleResponse `json:"rules"`
}

// MarshalJSON inlines the record
func (a AffectationResponse) MarshalJSON() ([]byte, error) {
	type plain AffectationResponse
	return mergeObjects(a.Record, plain(a))
}

// PairingResponse is a record with the rule resolved for it
type PairingResponse struct {
	Record RecordResponse `json:"-"`
	Rule   *RuleResponse  `json:"rule"`
}

// MarshalJSON inlines the record
func (p PairingResponse) MarshalJSON() ([]byte, error) {
	type plain PairingResponse
	return mergeObjects(p.Record, plain(p))
}

// OutputResponse is a record with its adjusted lines. Adjusted lines replace
// the input values of the same name.
type OutputResponse struct {
	Record                      RecordResponse      `json:"-"`
	Adjustment                  *valueobject.Money  `json:"atp_tpa_adj_amount,omitempty"`
	ProfitIndicator             *valueobject.Money  `json:"atp_profit_indicator,omitempty"`
	Sales                       *valueobject.Money  `json:"atp_sales,omitempty"`
	COGS                        *valueobject.Money  `json:"atp_cogs,omitempty"`
	OperatingExpenses           *valueobject.Money  `json:"atp_operating_expenses,omitempty"`
	RoyaltyPaid                 *valueobject.Money  `json:"atp_royalty_paid,omitempty"`
	RoyaltyReceived             *valueobject.Money  `json:"atp_royalty_received,omitempty"`
	RoyaltyReceivedSpecificRate *valueobject.Money  `json:"atp_royalty_received_prod_specific_rate,omitempty"`
	PBT                         *valueobject.Money  `json:"atp_pbt,omitempty"`
	TaxExpenses                 *valueobject.Money  `json:"atp_tax_expenses,omitempty"`
	TLCFN                       *valueobject.Money  `json:"atp_tax_losses_carryforward_n,omitempty"`
	TaxLossesGeneratedConsumed  *valueobject.Money  `json:"atp_taxes_losses_generated_consumed,omitempty"`
	WHTPaid                     *valueobject.Money  `json:"atp_wht_paid,omitempty"`
	KPIValue                    decimal.NullDecimal `json:"atp_kpi_value"`
	KPI                         string              `json:"atp_kpi_from_rule,omitempty"`
	FiredBand                   int                 `json:"atp_actual_rule_application_modulation,omitempty"`
	DeltaWHTRoyaltyReceived     *valueobject.Money  `json:"delta_wht_royalty_received,omitempty"`
	DeltaWHTRoyaltyPaid         *valueobject.Money  `json:"delta_wht_royalty_paid,omitempty"`
	PossibleWHTTaxCredits       *valueobject.Money  `json:"possible_wht_royalty_tax_credits,omitempty"`
	DeltaPBTWHTRoyaltyReceived  *valueobject.Money  `json:"delta_pbt_wht_royalty_received,omitempty"`
	DeltaPBTWHTRoyaltyPaid      *valueobject.Money  `json:"delta_pbt_wht_royalty_paid,omitempty"`
	DeltaTaxWHTRoyaltyReceived  *valueobject.Money  `json:"delta_tax_wht_royalty_received,omitempty"`
}

// MarshalJSON inlines the record under the adjusted lines
func (o OutputResponse) MarshalJSON() ([]byte, error) {
	type plain OutputResponse
	return mergeObjects(o.Record, plain(o))
}

// TaxPayerResponse is the fiscal cascade of one taxpayer group
type TaxPayerResponse struct {
	Taxpayer                   string              `json:"atp_taxpayer"`
	PBT                        valueobject.Money   `json:"atp_pbt"`
	DeltaPBT                   valueobject.Money   `json:"atp_delta_pbt"`
	TaxExpenses                valueobject.Money   `json:"atp_tax_expenses"`
	TLCFN                      valueobject.Money   `json:"atp_tax_losses_carryforward_n"`
	TLCFN1                     valueobject.Money   `json:"atp_tax_losses_carryforward_n1"`
	TLCFConsumedInit           valueobject.Money   `json:"atp_tlcf_consumed_init"`
	UnexplainedConsumed        valueobject.Money   `json:"atp_unexplained_consumed_tlcf"`
	TLCFCreatedInit            valueobject.Money   `json:"atp_tlcf_created_init"`
	UnexplainedCreated         valueobject.Money   `json:"atp_unexplained_created_tlcf"`
	TLCFCreatedNew             valueobject.Money   `json:"atp_tlcf_created_new"`
	TLCFConsumedNew            valueobject.Money   `json:"atp_tlcf_consumed_new"`
	NewTLCFBalance             valueobject.Money   `json:"atp_new_tlcf_n"`
	DeltaTaxInit               valueobject.Money   `json:"atp_delta_tax_init"`
	RoyaltyReceived            valueobject.Money   `json:"atp_royalty_received"`
	RoyaltyReceivedSpecific    valueobject.Money   `json:"atp_royalty_received_prod_specific_rate"`
	MeanTaxRate                decimal.Decimal     `json:"atp_mean_tax_rate"`
	DeltaTaxBis                valueobject.Money   `json:"atp_delta_tax_bis"`
	ConsumableTaxCredit        valueobject.Money   `json:"atp_consummable_tax_credit"`
	DeltaTax                   valueobject.Money   `json:"atp_delta_tax"`
	FiscalPBT                  valueobject.Money   `json:"atp_fiscal_pbt"`
	LossGeneratedConsumed      valueobject.Money   `json:"atp_taxes_losses_generated_consumed"`
	WHTPaid                    valueobject.Money   `json:"atp_wht_paid"`
	DeltaWHTRoyaltyReceived    valueobject.Money   `json:"delta_wht_royalty_received"`
	DeltaPBTWHTRoyaltyReceived valueobject.Money   `json:"delta_pbt_wht_royalty_received"`
	DeltaPBTWHTRoyaltyPaid     valueobject.Money   `json:"delta_pbt_wht_royalty_paid"`
	PossibleWHTTaxCredits      valueobject.Money   `json:"possible_wht_royalty_tax_credits"`
	DeltaTaxWHTRoyaltyReceived valueobject.Money   `json:"delta_tax_wht_royalty_received"`
	TLCFDepreciation           decimal.NullDecimal `json:"rule_atp_tax_losses_carryforward_depreciation"`
	TLCFCeiling                *valueobject.Money  `json:"rule_atp_tax_loss_carryforward_ceiling_for_use,omitempty"`
	TLCFShare                  decimal.NullDecimal `json:"rule_atp_share_of_tax_losses_carryfoward"`
	TaxRate                    decimal.NullDecimal `json:"rule_atp_tax_rate"`
	MemberIDs                  []int64             `json:"from_data_output"`
}

// ReportResponse summarizes a computation run
type ReportResponse struct {
	Pairings  int                `json:"pairings"`
	Ruled     int                `json:"ruled"`
	Passes    int                `json:"passes"`
	FinalSum  decimal.Decimal    `json:"final_sum"`
	Forced    bool               `json:"forced"`
	Taxpayers []TaxPayerResponse `json:"taxpayers"`
}

// ComputationResponse is the result of a computation run
// @Name HandlerComputationResponse
type ComputationResponse struct {
	RunID         string            `json:"runId"`
	DataWithRules []PairingResponse `json:"dataWithRules"`
	DataOutput    []OutputResponse  `json:"dataOutput"`
	Report        ReportResponse    `json:"report"`
	Archived      bool              `json:"archived"`
}

// RunLinkResponse points at an archived computation
type RunLinkResponse struct {
	RunID     string    `json:"runId" example:"0b7e3c9a-5f1d-4a8e-9c2b-6d4f8e1a2b3c"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toRecordResponse(r tp.Record) RecordResponse {
	resp := RecordResponse{
		ID:                r.ID,
		Taxpayer:          r.Taxpayer,
		LocalCurrency:     string(r.LocalCurrency),
		Assets:            r.Assets,
		CapitalEmployed:   r.CapitalEmployed,
		BeforeSales:       r.BeforeSales,
		OGSales:           r.OGSales,
		COGS:              r.COGS,
		RoyaltyPaid:       r.RoyaltyPaid,
		OperatingExpenses: r.OperatingExpenses,
		ProfitIndicator:   r.ProfitIndicator,
		BeforePBT:         r.BeforePBT,
		BeforeTaxExpenses: r.BeforeTaxExpenses,
		TLCFN:             r.TLCFN,
		TLCFN1:            r.TLCFN1,
		Tax:               r.Tax,
		BaseRoyalty:       r.BaseRoyalty,
		Declaring:         r.Declaring,
	}
	if r.FirmCreationDate != nil {
		resp.FirmCreationDate = r.FirmCreationDate.Format(time.DateOnly)
	}
	return resp
}

func toRecordResponses(records []tp.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = toRecordResponse(r)
	}
	return out
}

func toRuleResponse(r *tp.Rule) RuleResponse {
	resp := RuleResponse{
		ID:                r.ID,
		Method:            r.Method.String(),
		FirstQuartile:     r.Benchmark.FirstQuartile,
		ThirdQuartile:     r.Benchmark.ThirdQuartile,
		TargetBelow:       r.Benchmark.TargetBelow,
		TargetIn:          r.Benchmark.TargetIn,
		TargetAbove:       r.Benchmark.TargetAbove,
		InScope:           r.InScope,
		Modulations:       make([]int, len(r.Modulations)),
		DeclaringImpact:   int(r.DeclaringImpact),
		CounterpartImpact: int(r.CounterpartImpact),
		TaxRate:           r.Tax.Rate,
		TLCFDepreciation:  r.Tax.TLCFDepreciation,
		TLCFCeiling:       r.Tax.TLCFCeiling,
		TLCFShare:         r.Tax.TLCFShare,
		WHTRate:           r.Royalty.WHTRate,
		WHTBase:           r.Royalty.WHTBase,
		WHTDeductibility:  r.Royalty.WHTDeductibility,
		SpecificRate:      r.Royalty.SpecificRate,
		ExemptionRate:     r.Royalty.ExemptionRate,
		TaxCredits:        r.Royalty.TaxCredits,
		Declaring:         r.Declaring,
		Counterpart:       r.Counterpart,
	}
	for i, b := range r.Modulations {
		resp.Modulations[i] = int(b)
	}
	if r.Validity.From != nil {
		resp.DateFrom = r.Validity.From.Format(time.DateOnly)
	}
	if r.Validity.To != nil {
		resp.DateTo = r.Validity.To.Format(time.DateOnly)
	}
	return resp
}

func toRuleResponses(rules []tp.Rule) []RuleResponse {
	out := make([]RuleResponse, len(rules))
	for i := range rules {
		out[i] = toRuleResponse(&rules[i])
	}
	return out
}

func toAffectationResponses(candidates []tp.Candidates) []AffectationResponse {
	out := make([]AffectationResponse, len(candidates))
	for i, c := range candidates {
		out[i] = AffectationResponse{
			Record: toRecordResponse(c.Record),
			Rules:  toRuleResponses(c.Rules),
		}
	}
	return out
}

func toPairingResponses(pairings []tp.Pairing) []PairingResponse {
	out := make([]PairingResponse, len(pairings))
	for i, p := range pairings {
		out[i] = PairingResponse{Record: toRecordResponse(p.Record)}
		if p.Rule != nil {
			rule := toRuleResponse(p.Rule)
			out[i].Rule = &rule
		}
	}
	return out
}

func toOutputResponse(o *tp.OutputRecord) OutputResponse {
	resp := OutputResponse{
		Record:                      toRecordResponse(o.Input),
		Adjustment:                  o.Adjustment,
		ProfitIndicator:             o.Lines.ProfitIndicator,
		Sales:                       o.Lines.Sales,
		COGS:                        o.Lines.COGS,
		OperatingExpenses:           o.Lines.OperatingExpenses,
		RoyaltyPaid:                 o.Lines.RoyaltyPaid,
		RoyaltyReceived:             o.Lines.RoyaltyReceived,
		RoyaltyReceivedSpecificRate: o.Lines.RoyaltyReceivedSpecificRate,
		PBT:                         o.Fiscal.PBT,
		TaxExpenses:                 o.Fiscal.TaxExpenses,
		TLCFN:                       o.Fiscal.TLCFN,
		TaxLossesGeneratedConsumed:  o.Fiscal.TaxLossesGeneratedConsumed,
		WHTPaid:                     o.Fiscal.WHTPaid,
		KPIValue:                    o.KPIValue,
		FiredBand:                   int(o.FiredBand),
		DeltaWHTRoyaltyReceived:     o.Withholding.DeltaWHTRoyaltyReceived,
		DeltaWHTRoyaltyPaid:         o.Withholding.DeltaWHTRoyaltyPaid,
		PossibleWHTTaxCredits:       o.Withholding.PossibleWHTTaxCredits,
		DeltaPBTWHTRoyaltyReceived:  o.Withholding.DeltaPBTWHTRoyaltyReceived,
		DeltaPBTWHTRoyaltyPaid:      o.Withholding.DeltaPBTWHTRoyaltyPaid,
		DeltaTaxWHTRoyaltyReceived:  o.Withholding.DeltaTaxWHTRoyaltyReceived,
	}
	if o.KPI != 0 {
		resp.KPI = o.KPI.String()
	}
	return resp
}

func toTaxPayerResponse(t *tp.TaxPayer) TaxPayerResponse {
	resp := TaxPayerResponse{
		Taxpayer:                   t.ID,
		PBT:                        t.Money(t.PBT),
		DeltaPBT:                   t.Money(t.DeltaPBT),
		TaxExpenses:                t.Money(t.TaxExpenses),
		TLCFN:                      t.Money(t.TLCFN),
		TLCFN1:                     t.Money(t.TLCFN1),
		TLCFConsumedInit:           t.Money(t.TLCFConsumedInit),
		UnexplainedConsumed:        t.Money(t.UnexplainedConsumed),
		TLCFCreatedInit:            t.Money(t.TLCFCreatedInit),
		UnexplainedCreated:         t.Money(t.UnexplainedCreated),
		TLCFCreatedNew:             t.Money(t.TLCFCreatedNew),
		TLCFConsumedNew:            t.Money(t.TLCFConsumedNew),
		NewTLCFBalance:             t.Money(t.NewTLCFBalance),
		DeltaTaxInit:               t.Money(t.DeltaTaxInit),
		RoyaltyReceived:            t.Money(t.RoyaltyReceived),
		RoyaltyReceivedSpecific:    t.Money(t.RoyaltyReceivedSpecific),
		MeanTaxRate:                t.MeanTaxRate,
		DeltaTaxBis:                t.Money(t.DeltaTaxBis),
		ConsumableTaxCredit:        t.Money(t.ConsumableTaxCredit),
		DeltaTax:                   t.Money(t.DeltaTax),
		FiscalPBT:                  t.Money(t.FiscalPBT),
		LossGeneratedConsumed:      t.Money(t.LossGeneratedConsumed),
		WHTPaid:                    t.Money(t.WHTPaid),
		DeltaWHTRoyaltyReceived:    t.Money(t.DeltaWHTRoyaltyReceived),
		DeltaPBTWHTRoyaltyReceived: t.Money(t.DeltaPBTWHTRoyaltyReceived),
		DeltaPBTWHTRoyaltyPaid:     t.Money(t.DeltaPBTWHTRoyaltyPaid),
		PossibleWHTTaxCredits:      t.Money(t.PossibleWHTTaxCredits),
		DeltaTaxWHTRoyaltyReceived: t.Money(t.DeltaTaxWHTRoyaltyReceived),
		TLCFDepreciation:           t.Tax.TLCFDepreciation,
		TLCFCeiling:                t.Tax.TLCFCeiling,
		TLCFShare:                  t.Tax.TLCFShare,
		TaxRate:                    t.Tax.Rate,
		MemberIDs:                  make([]int64, len(t.Members)),
	}
	for i, m := range t.Members {
		resp.MemberIDs[i] = m.Input.ID
	}
	return resp
}

// mergeObjects marshals every part as a JSON object and merges their keys.
// Later parts win on duplicate keys.
func mergeObjects(parts ...any) ([]byte, error) {
	merged := make(map[string]json.RawMessage)
	for _, p := range parts {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

func segmentationFields(prefix string, s tp.Segmentation) map[string]string {
	out := make(map[string]string, len(s))
	for i, v := range s {
		out[tp.Key(prefix, i)] = v
	}
	return out
}
